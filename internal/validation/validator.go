// Package validation is the strict input gate for every inbound field.
// Values are accepted or rejected as given; nothing is trimmed or rewritten.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/BradenHooton/warden/internal/models"
	"github.com/go-playground/validator/v10"
)

// Field bounds
const (
	MaxEmailLen    = 254
	MinPasswordLen = 8
	MaxPasswordLen = 72
	MaxPromptLen   = 200
	MaxAnswerLen   = 100
	MinQuestions   = 3
	MaxQuestions   = 10
	MinAnswers     = 2
	MaxAnswers     = MaxQuestions
)

const (
	emailTag      = "required,max=254,trimmed,nocontrol,email"
	passwordTag   = "required,min=8,max=72,nocontrol"
	promptTag     = "required,max=200,trimmed,nocontrol"
	answerTag     = "required,max=100,nocontrol,notblank"
	questionIDTag = "required,uuid"
)

// Validator wraps go-playground/validator with the custom tags used here
type Validator struct {
	validate *validator.Validate
}

// New creates a Validator with the nocontrol and trimmed tags registered
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	_ = v.RegisterValidation("nocontrol", noControl)
	_ = v.RegisterValidation("trimmed", trimmed)
	_ = v.RegisterValidation("notblank", notBlank)

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})

	return &Validator{validate: v}
}

var defaultValidator = New()

// Default returns the shared Validator
func Default() *Validator {
	return defaultValidator
}

// noControl rejects any control character, including newlines and tabs
func noControl(fl validator.FieldLevel) bool {
	return strings.IndexFunc(fl.Field().String(), unicode.IsControl) == -1
}

// trimmed rejects leading or trailing whitespace
func trimmed(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	return strings.TrimSpace(s) == s
}

func notBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

// Struct validates a tagged request struct
func (v *Validator) Struct(s any) error {
	if err := v.validate.Struct(s); err != nil {
		return toValidationError("", err)
	}
	return nil
}

// Email validates an email address as typed by the caller
func (v *Validator) Email(email string) error {
	return v.field(email, "email", emailTag)
}

// Password validates a new primary credential
func (v *Validator) Password(password string) error {
	return v.field(password, "new_password", passwordTag)
}

// PasswordPair validates a new password and its confirmation
func (v *Validator) PasswordPair(password, confirmation string) error {
	if err := v.Password(password); err != nil {
		return err
	}
	if password != confirmation {
		return models.NewValidationError("confirm_password", "passwords do not match")
	}
	return nil
}

// QuestionSet validates a full set of questions and answers for setup
func (v *Validator) QuestionSet(questions []models.QuestionInput) error {
	return v.QuestionSetMin(questions, MinQuestions)
}

// QuestionSetMin is QuestionSet with a configured minimum, clamped to
// [MinQuestions, MaxQuestions].
func (v *Validator) QuestionSetMin(questions []models.QuestionInput, minimum int) error {
	minimum = max(MinQuestions, min(minimum, MaxQuestions))
	if len(questions) < minimum {
		return models.NewValidationError("questions", fmt.Sprintf("at least %d questions are required", minimum))
	}
	if len(questions) > MaxQuestions {
		return models.NewValidationError("questions", fmt.Sprintf("at most %d questions are allowed", MaxQuestions))
	}

	seen := make(map[string]struct{}, len(questions))
	for i, q := range questions {
		if err := v.field(q.Prompt, fmt.Sprintf("questions[%d].prompt", i), promptTag); err != nil {
			return err
		}
		if err := v.field(q.Answer, fmt.Sprintf("questions[%d].answer", i), answerTag); err != nil {
			return err
		}

		key := strings.ToLower(q.Prompt)
		if _, dup := seen[key]; dup {
			return models.NewValidationError(fmt.Sprintf("questions[%d].prompt", i), "duplicate question")
		}
		seen[key] = struct{}{}
	}
	return nil
}

// AnsweredSet validates the answers supplied at Verify or Commit
func (v *Validator) AnsweredSet(answers []models.AnsweredQuestion) error {
	if len(answers) < MinAnswers {
		return models.NewValidationError("answers", fmt.Sprintf("at least %d answers are required", MinAnswers))
	}
	if len(answers) > MaxAnswers {
		return models.NewValidationError("answers", fmt.Sprintf("at most %d answers are allowed", MaxAnswers))
	}

	for i, a := range answers {
		if err := v.field(a.QuestionID, fmt.Sprintf("answers[%d].question_id", i), questionIDTag); err != nil {
			return err
		}
		if err := v.field(a.Answer, fmt.Sprintf("answers[%d].answer", i), answerTag); err != nil {
			return err
		}
	}
	return nil
}

func (v *Validator) field(value any, name, tag string) error {
	if err := v.validate.Var(value, tag); err != nil {
		return toValidationError(name, err)
	}
	return nil
}

func toValidationError(name string, err error) error {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return models.NewValidationError(name, "invalid value")
	}

	fe := ve[0]
	if name == "" {
		name = fe.Namespace()
		if _, rest, ok := strings.Cut(name, "."); ok {
			name = rest
		}
	}
	return models.NewValidationError(name, Message(fe))
}

// Message converts a validator FieldError to a user-friendly message
func Message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return "this field is required"
	case "email":
		return "must be a valid email address"
	case "uuid":
		return "must be a valid identifier"
	case "nocontrol":
		return "must not contain control characters"
	case "trimmed":
		return "must not start or end with whitespace"
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must have at least %s entries", fe.Param())
		}
		return fmt.Sprintf("must have a minimum of %s characters", fe.Param())
	case "max":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must have at most %s entries", fe.Param())
		}
		return fmt.Sprintf("must have a maximum of %s characters", fe.Param())
	case "eqfield":
		return fmt.Sprintf("must match %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	default:
		return fmt.Sprintf("failed validation: %s", fe.Tag())
	}
}
