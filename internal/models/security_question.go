package models

import (
	"time"

	"github.com/google/uuid"
)

// SecurityQuestion is a stored challenge question. Answers are kept only as salted hashes.
type SecurityQuestion struct {
	ID         uuid.UUID `db:"id"`
	Identity   string    `db:"identity"`
	Position   int       `db:"position"`
	Prompt     string    `db:"prompt"`
	AnswerHash []byte    `db:"answer_hash"`
	Salt       []byte    `db:"salt"`
	CreatedAt  time.Time `db:"created_at"`
}

// QuestionInput is a question and plaintext answer supplied at setup time
type QuestionInput struct {
	Prompt string
	Answer string
}

// QuestionPrompt is the public view of a question
type QuestionPrompt struct {
	ID     string `json:"question_id"`
	Prompt string `json:"prompt"`
}

// AnsweredQuestion is a caller-supplied answer to one question
type AnsweredQuestion struct {
	QuestionID string
	Answer     string
}
