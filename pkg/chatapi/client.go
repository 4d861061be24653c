package chatapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jon4hz/parley/internal/config"
)

// Client represents a chat backend API client.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new chat backend API client.
func New(cfg *config.BackendConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    cfg.URL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// User represents a user profile as returned by the backend.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
}

// Message represents a direct message between two users.
// Ordering is assigned by the backend.
type Message struct {
	FromID    int64     `json:"from_id"`
	Content   string    `json:"content"`
	Timestamp Timestamp `json:"timestamp"`
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

type sendRequest struct {
	Content string `json:"content"`
}

// StatusError is returned for every response outside the 2xx range.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API request failed with status %d: %s", e.StatusCode, e.Body)
}

// IsStatus reports whether err is a StatusError with the given status code.
func IsStatus(err error, code int) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == code
}

// doRequest performs an HTTP request to the chat backend.
// An empty token sends the request without credentials.
func (c *Client) doRequest(ctx context.Context, method, endpoint, token string, body any) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("error marshaling request body: %w", err)
		}
		reqBody = io.NopCloser(bytes.NewReader(jsonBody))
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error performing request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close() //nolint:errcheck
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(bodyBytes))}
	}

	return resp, nil
}

// doAck performs a request whose response body carries nothing of interest.
func (c *Client) doAck(ctx context.Context, method, endpoint, token string, body any) error {
	resp, err := c.doRequest(ctx, method, endpoint, token, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close() //nolint:errcheck

	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Me returns the profile of the user the token belongs to.
func (c *Client) Me(ctx context.Context, token string) (*User, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/me", token, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	var user User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("error decoding user response: %w", err)
	}
	if user.ID == 0 {
		return nil, fmt.Errorf("user profile did not contain an id")
	}

	return &user, nil
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/login", "", credentials{Username: username, Password: password})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close() //nolint:errcheck

	var token tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return "", fmt.Errorf("error decoding login response: %w", err)
	}
	if token.Token == "" {
		return "", fmt.Errorf("login response did not contain a token")
	}

	return token.Token, nil
}

// Register creates a new account. It does not log the user in.
func (c *Client) Register(ctx context.Context, username, password string) error {
	return c.doAck(ctx, http.MethodPost, "/register", "", credentials{Username: username, Password: password})
}

// Logout revokes the token on the backend.
func (c *Client) Logout(ctx context.Context, token string) error {
	return c.doAck(ctx, http.MethodPost, "/logout", token, nil)
}

// ListUsers retrieves all registered users.
// Both a bare array and a {"users": [...]} envelope are accepted.
func (c *Client) ListUsers(ctx context.Context, token string) ([]User, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/users", token, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading users response: %w", err)
	}

	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '{' {
		var envelope struct {
			Users []User `json:"users"`
		}
		if err := json.Unmarshal(raw, &envelope); err != nil {
			return nil, fmt.Errorf("error decoding users response: %w", err)
		}
		return envelope.Users, nil
	}

	var users []User
	if err := json.Unmarshal(raw, &users); err != nil {
		return nil, fmt.Errorf("error decoding users response: %w", err)
	}
	return users, nil
}

// RemoveUser deletes a user account. Requires an admin token.
func (c *Client) RemoveUser(ctx context.Context, token string, id int64) error {
	return c.doAck(ctx, http.MethodDelete, fmt.Sprintf("/users/%d", id), token, nil)
}

// ListMessages retrieves the conversation with the given peer.
func (c *Client) ListMessages(ctx context.Context, token string, peerID int64) ([]Message, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/messages/%d", peerID), token, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	var messages []Message
	if err := json.NewDecoder(resp.Body).Decode(&messages); err != nil {
		return nil, fmt.Errorf("error decoding messages response: %w", err)
	}

	return messages, nil
}

// SendMessage sends a direct message to the given peer.
func (c *Client) SendMessage(ctx context.Context, token string, peerID int64, content string) error {
	return c.doAck(ctx, http.MethodPost, fmt.Sprintf("/messages/%d", peerID), token, sendRequest{Content: content})
}
