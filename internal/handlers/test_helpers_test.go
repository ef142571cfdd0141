package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BradenHooton/warden/internal/auth"
	"github.com/BradenHooton/warden/internal/models"
	"github.com/BradenHooton/warden/internal/services"
	pkghttp "github.com/BradenHooton/warden/pkg/http"
	"github.com/stretchr/testify/assert"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithAuthContext adds user claims to the request context
func WithAuthContext(req *http.Request, userID, email, role string) *http.Request {
	claims := &models.TokenClaims{
		Type:   models.TokenTypeAccess,
		UserID: userID,
		Email:  email,
		Role:   role,
	}
	return req.WithContext(auth.WithClaims(req.Context(), claims))
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	t.Helper()
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
}

// MockLoginService implements LoginServiceInterface for testing
type MockLoginService struct {
	LoginFunc func(ctx context.Context, email, password string) (*services.LoginResult, error)
}

func (m *MockLoginService) Login(ctx context.Context, email, password string) (*services.LoginResult, error) {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, email, password)
	}
	return nil, models.ErrUnauthorized
}

// MockPasswordResetService implements PasswordResetServiceInterface for testing
type MockPasswordResetService struct {
	IdentifyFunc func(ctx context.Context, email string) (*services.IdentifyResult, error)
	VerifyFunc   func(ctx context.Context, email string, answers []models.AnsweredQuestion) (*services.VerifyResult, error)
	CommitFunc   func(ctx context.Context, req services.CommitRequest) error
}

func (m *MockPasswordResetService) Identify(ctx context.Context, email string) (*services.IdentifyResult, error) {
	if m.IdentifyFunc != nil {
		return m.IdentifyFunc(ctx, email)
	}
	return &services.IdentifyResult{}, nil
}

func (m *MockPasswordResetService) Verify(ctx context.Context, email string, answers []models.AnsweredQuestion) (*services.VerifyResult, error) {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(ctx, email, answers)
	}
	return nil, models.ErrVerificationFailed
}

func (m *MockPasswordResetService) Commit(ctx context.Context, req services.CommitRequest) error {
	if m.CommitFunc != nil {
		return m.CommitFunc(ctx, req)
	}
	return nil
}

// MockSecurityQuestionService implements SecurityQuestionServiceInterface for testing
type MockSecurityQuestionService struct {
	SetupFunc        func(ctx context.Context, identity string, inputs []models.QuestionInput) error
	QuestionsForFunc func(ctx context.Context, identity string) ([]models.QuestionPrompt, error)
}

func (m *MockSecurityQuestionService) Setup(ctx context.Context, identity string, inputs []models.QuestionInput) error {
	if m.SetupFunc != nil {
		return m.SetupFunc(ctx, identity, inputs)
	}
	return nil
}

func (m *MockSecurityQuestionService) QuestionsFor(ctx context.Context, identity string) ([]models.QuestionPrompt, error) {
	if m.QuestionsForFunc != nil {
		return m.QuestionsForFunc(ctx, identity)
	}
	return []models.QuestionPrompt{}, nil
}

// MockLockoutAdmin implements LockoutAdminInterface for testing
type MockLockoutAdmin struct {
	CheckLockedFunc func(ctx context.Context, identity string) (models.LockStatus, error)
	UnlockFunc      func(ctx context.Context, identity, clearedBy string) error
}

func (m *MockLockoutAdmin) CheckLocked(ctx context.Context, identity string) (models.LockStatus, error) {
	if m.CheckLockedFunc != nil {
		return m.CheckLockedFunc(ctx, identity)
	}
	return models.LockStatus{}, nil
}

func (m *MockLockoutAdmin) Unlock(ctx context.Context, identity, clearedBy string) error {
	if m.UnlockFunc != nil {
		return m.UnlockFunc(ctx, identity, clearedBy)
	}
	return nil
}

// MockRateLimitAdmin implements RateLimitAdminInterface for testing
type MockRateLimitAdmin struct {
	StatusFunc func(ctx context.Context, key string) (models.RateLimitWindow, error)
	ResetFunc  func(ctx context.Context, key string) error
}

func (m *MockRateLimitAdmin) Status(ctx context.Context, key string) (models.RateLimitWindow, error) {
	if m.StatusFunc != nil {
		return m.StatusFunc(ctx, key)
	}
	return models.RateLimitWindow{Key: key, Limit: 60, WindowResetAt: time.Now()}, nil
}

func (m *MockRateLimitAdmin) Reset(ctx context.Context, key string) error {
	if m.ResetFunc != nil {
		return m.ResetFunc(ctx, key)
	}
	return nil
}

// MockHealthChecker implements HealthChecker for testing
type MockHealthChecker struct {
	Err error
}

func (m *MockHealthChecker) HealthCheck(ctx context.Context) error {
	return m.Err
}
