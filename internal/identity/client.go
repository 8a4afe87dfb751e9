package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Errors mapped from the identity provider's response codes.
var (
	// ErrInvalidCredentials covers both an unknown email and a wrong password.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrSignInDisabled means password sign-in is administratively turned off.
	ErrSignInDisabled = errors.New("password sign-in is disabled")
	// ErrEmailExists is returned by SignUp for an already-registered email.
	ErrEmailExists = errors.New("email already registered")
)

const identityToolkitBase = "https://identitytoolkit.googleapis.com/v1"

// Client calls the Firebase identity toolkit REST API.
type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
	Skip    bool
}

// New creates a client. With skip=true every credential verifies successfully,
// for local development without a Firebase project.
func New(apiKey string, skip bool) *Client {
	return &Client{
		BaseURL: identityToolkitBase,
		APIKey:  apiKey,
		Skip:    skip,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Verify checks an email/password pair and returns the provider's stable
// subject id on success.
func (c *Client) Verify(ctx context.Context, email, password string) (string, error) {
	if c.Skip {
		return "dev-" + email, nil
	}
	var out struct {
		LocalID string `json:"localId"`
	}
	if err := c.post(ctx, "/accounts:signInWithPassword", map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &out); err != nil {
		return "", err
	}
	return out.LocalID, nil
}

// SignUp creates a provider account and returns its subject id.
func (c *Client) SignUp(ctx context.Context, email, password string) (string, error) {
	if c.Skip {
		return "dev-" + email, nil
	}
	var out struct {
		LocalID string `json:"localId"`
	}
	if err := c.post(ctx, "/accounts:signUp", map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &out); err != nil {
		return "", err
	}
	return out.LocalID, nil
}

func (c *Client) post(ctx context.Context, path string, body map[string]any, out any) error {
	payload, _ := json.Marshal(body)
	url := fmt.Sprintf("%s%s?key=%s", c.BaseURL, path, c.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("identity provider request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return mapError(resp.Status, raw)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// mapError translates the provider's error codes into package errors.
func mapError(status string, body []byte) error {
	var parsed struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	_ = json.Unmarshal(body, &parsed)
	code := parsed.Error.Message

	switch {
	case code == "EMAIL_NOT_FOUND", code == "INVALID_PASSWORD",
		strings.HasPrefix(code, "INVALID_LOGIN_CREDENTIALS"):
		return ErrInvalidCredentials
	case code == "PASSWORD_LOGIN_DISABLED":
		return ErrSignInDisabled
	case code == "EMAIL_EXISTS":
		return ErrEmailExists
	}
	return fmt.Errorf("identity provider error %s: %s", status, string(body))
}
