package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/BradenHooton/warden/internal/config"
	"github.com/BradenHooton/warden/internal/models"
)

var (
	ErrProviderConnection = errors.New("identity provider unreachable")
	ErrProviderResponse   = errors.New("invalid identity provider response")
)

// HTTPProvider delegates identity lookup and credential storage to an external JSON API.
//
//	POST {base}/lookup        {"email"}             -> {"found","user_id","email","role"}
//	POST {base}/authenticate  {"email","password"}  -> {"success","user_id","email","role","message"}
//	POST {base}/credentials   {"identity","password"} -> {"success","message"}
type HTTPProvider struct {
	baseURL string
	token   string
	client  *http.Client
	logger  *slog.Logger
}

func NewHTTPProvider(cfg config.IdentityConfig, logger *slog.Logger) *HTTPProvider {
	return NewHTTPProviderWithClient(cfg, &http.Client{Timeout: cfg.HTTPTimeout}, logger)
}

func NewHTTPProviderWithClient(cfg config.IdentityConfig, client *http.Client, logger *slog.Logger) *HTTPProvider {
	return &HTTPProvider{
		baseURL: strings.TrimRight(cfg.HTTPURL, "/"),
		token:   cfg.HTTPAuthToken,
		client:  client,
		logger:  logger,
	}
}

type lookupRequest struct {
	Email string `json:"email"`
}

type authenticateRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type credentialRequest struct {
	Identity string `json:"identity"`
	Password string `json:"password"`
}

type providerResponse struct {
	Found   bool   `json:"found"`
	Success bool   `json:"success"`
	UserID  string `json:"user_id,omitempty"`
	Email   string `json:"email,omitempty"`
	Role    string `json:"role,omitempty"`
	Message string `json:"message,omitempty"`
}

func (r providerResponse) identity(fallbackEmail string) (*models.Identity, error) {
	if r.UserID == "" {
		return nil, fmt.Errorf("%w: missing user_id", ErrProviderResponse)
	}
	email := r.Email
	if email == "" {
		email = fallbackEmail
	}
	role := r.Role
	if role == "" {
		role = "user"
	}
	return &models.Identity{ID: r.UserID, Email: models.NormalizeIdentity(email), Role: role}, nil
}

// Lookup resolves an email to an identity, or models.ErrNotFound
func (p *HTTPProvider) Lookup(ctx context.Context, email string) (*models.Identity, error) {
	email = models.NormalizeIdentity(email)

	resp, status, err := p.post(ctx, "/lookup", lookupRequest{Email: email})
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound || (status < 300 && !resp.Found) {
		return nil, models.ErrNotFound
	}
	if status >= 300 {
		return nil, p.statusError("lookup", status, resp)
	}

	return resp.identity(email)
}

// Authenticate checks a credential pair. Rejections map to models.ErrUnauthorized.
func (p *HTTPProvider) Authenticate(ctx context.Context, email, password string) (*models.Identity, error) {
	email = models.NormalizeIdentity(email)

	resp, status, err := p.post(ctx, "/authenticate", authenticateRequest{Email: email, Password: password})
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized || status == http.StatusNotFound || (status < 300 && !resp.Success) {
		return nil, models.ErrUnauthorized
	}
	if status >= 300 {
		return nil, p.statusError("authenticate", status, resp)
	}

	return resp.identity(email)
}

// UpdateCredential asks the provider to replace the identity's password
func (p *HTTPProvider) UpdateCredential(ctx context.Context, identity, newPassword string) error {
	resp, status, err := p.post(ctx, "/credentials", credentialRequest{Identity: identity, Password: newPassword})
	if err != nil {
		return err
	}
	if status == http.StatusNotFound {
		return models.ErrNotFound
	}
	if status >= 300 {
		return p.statusError("update credential", status, resp)
	}
	if !resp.Success {
		return fmt.Errorf("%w: %s", models.ErrCredentialUpdate, resp.Message)
	}
	return nil
}

func (p *HTTPProvider) post(ctx context.Context, path string, payload any) (providerResponse, int, error) {
	var out providerResponse

	body, err := json.Marshal(payload)
	if err != nil {
		return out, 0, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return out, 0, models.NewStorageError("identity provider", fmt.Errorf("%w: %v", ErrProviderConnection, err))
	}
	req.Header.Set("Content-Type", "application/json")
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Warn("identity provider request failed",
			slog.String("path", path),
			slog.Any("error", err))
		return out, 0, models.NewStorageError("identity provider", fmt.Errorf("%w: %v", ErrProviderConnection, err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return out, resp.StatusCode, fmt.Errorf("%w: failed to read response", ErrProviderResponse)
	}

	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil && resp.StatusCode < 300 {
			return out, resp.StatusCode, fmt.Errorf("%w: %v", ErrProviderResponse, err)
		}
	}

	return out, resp.StatusCode, nil
}

func (p *HTTPProvider) statusError(op string, status int, resp providerResponse) error {
	p.logger.Warn("identity provider returned error",
		slog.String("op", op),
		slog.Int("status", status),
		slog.String("message", resp.Message))
	if status >= 500 {
		return models.NewStorageError("identity provider", fmt.Errorf("%w: HTTP %d", ErrProviderResponse, status))
	}
	return fmt.Errorf("%w: HTTP %d", ErrProviderResponse, status)
}
