package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"secdash/internal/config"
	"secdash/internal/model"
)

// Error is an auth-service failure surfaced as a user-facing message.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return e.Message
}

type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

type LoginResult struct {
	Token string     `json:"token"`
	User  model.User `json:"user"`
}

func New(cfg config.AuthConfig, tokens TokenSource, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: NewBearerTransport(nil, tokens),
		},
		logger: logger,
	}
}

func (c *Client) Login(ctx context.Context, email, password string) (LoginResult, error) {
	payload := map[string]string{"email": email, "password": password}
	var result LoginResult
	if err := c.post(ctx, "/auth/login", payload, &result, "Login failed"); err != nil {
		return LoginResult{}, err
	}
	if result.Token == "" {
		return LoginResult{}, &Error{Message: "Login failed"}
	}
	return result, nil
}

func (c *Client) Register(ctx context.Context, username, email, password string) error {
	payload := map[string]string{"username": username, "email": email, "password": password}
	return c.post(ctx, "/auth/register", payload, nil, "Registration failed")
}

// Verify checks the token against the profile endpoint. The token is passed
// explicitly so bootstrap can verify a stored credential before the session
// publishes it.
func (c *Client) Verify(ctx context.Context, token string) (model.User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/profile", nil)
	if err != nil {
		return model.User{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := c.http.Do(req)
	if err != nil {
		return model.User{}, &Error{Message: "Session verification failed"}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return model.User{}, &Error{Message: "Session verification failed"}
	}
	if resp.StatusCode != http.StatusOK {
		return model.User{}, decodeError(resp.StatusCode, body, "Session verification failed")
	}
	var user model.User
	if err := json.Unmarshal(body, &user); err != nil {
		return model.User{}, fmt.Errorf("decode profile: %w", err)
	}
	return user, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, out any, fallback string) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		if c.logger != nil {
			c.logger.Warn("auth service unreachable", "path", path, "err", err)
		}
		return &Error{Message: fallback}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &Error{Message: fallback}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp.StatusCode, body, fallback)
	}
	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func decodeError(status int, body []byte, fallback string) error {
	var envelope struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != "" {
		return &Error{StatusCode: status, Message: envelope.Error}
	}
	return &Error{StatusCode: status, Message: fallback}
}
