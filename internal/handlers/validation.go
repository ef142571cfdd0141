package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/BradenHooton/warden/internal/models"
	"github.com/BradenHooton/warden/internal/validation"
)

// maxBodyBytes caps request bodies; the largest legal body is a full question set
const maxBodyBytes = 64 << 10

var errInvalidBody = errors.New("invalid request body")

// decodeAndValidate reads a JSON body into req and runs its validate tags.
// Unknown fields are rejected.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, req any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(req); err != nil {
		return errInvalidBody
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errInvalidBody
	}

	return ValidateRequest(req)
}

// ValidateRequest validates a request struct. The error is a *models.ValidationError
// whose message is safe to return verbatim.
func ValidateRequest(req any) error {
	return validation.Default().Struct(req)
}

// AnswerDTO is one answered security question
type AnswerDTO struct {
	QuestionID string `json:"question_id" validate:"required,uuid"`
	Answer     string `json:"answer" validate:"required,max=100,nocontrol,notblank"`
}

func toAnswered(in []AnswerDTO) []models.AnsweredQuestion {
	out := make([]models.AnsweredQuestion, 0, len(in))
	for _, a := range in {
		out = append(out, models.AnsweredQuestion{QuestionID: a.QuestionID, Answer: a.Answer})
	}
	return out
}
