// Package auth talks to Supabase GoTrue for sign-up, login and token checks.
package auth

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

// ErrInvalidToken is returned when GoTrue rejects an access token.
var ErrInvalidToken = errors.New("invalid access token")

type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
	User         User   `json:"user"`
}

type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// StatusError carries a non-2xx GoTrue response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("supabase status %d: %s", e.Code, e.Body)
}

// Verifier resolves an access token to its user.
type Verifier interface {
	VerifyAccessToken(ctx context.Context, accessToken string) (User, error)
}

type Client struct {
	baseURL    string
	anonKey    string
	httpClient *http.Client
}

func NewClient(baseURL, anonKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		anonKey: anonKey,
		httpClient: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
}

func (c *Client) SignUp(ctx context.Context, email, password string) (Session, error) {
	var out Session
	err := c.do(ctx, http.MethodPost, "/auth/v1/signup", "", credentials(email, password), &out)
	return out, err
}

func (c *Client) Login(ctx context.Context, email, password string) (Session, error) {
	var out Session
	err := c.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=password", "", credentials(email, password), &out)
	return out, err
}

func (c *Client) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	var out Session
	payload := map[string]string{"refresh_token": refreshToken}
	err := c.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=refresh_token", "", payload, &out)
	return out, err
}

func (c *Client) VerifyAccessToken(ctx context.Context, accessToken string) (User, error) {
	var user User
	err := c.do(ctx, http.MethodGet, "/auth/v1/user", accessToken, nil, &user)
	var se *StatusError
	if errors.As(err, &se) && (se.Code == http.StatusUnauthorized || se.Code == http.StatusForbidden) {
		return User{}, fmt.Errorf("%w: %s", ErrInvalidToken, se.Body)
	}
	if err != nil {
		return User{}, fmt.Errorf("verify token: %w", err)
	}
	if user.ID == "" {
		return User{}, ErrInvalidToken
	}
	return user, nil
}

func credentials(email, password string) map[string]string {
	return map[string]string{
		"email":    strings.TrimSpace(email),
		"password": password,
	}
}

func (c *Client) do(ctx context.Context, method, path, bearer string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("apikey", c.anonKey)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("supabase request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
