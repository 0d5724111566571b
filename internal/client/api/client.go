package api

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

	"github.com/iudanet/gophauth/pkg/api"
)

// RefreshCookieName is the cookie carrying the refresh token
const RefreshCookieName = "jid"

// APIError is a non-2xx reply decoded from the server's error body
type APIError struct {
	Kind       string
	Message    string
	StatusCode int
}

func (e *APIError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("server error (%d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("server error (%d %s): %s", e.StatusCode, e.Kind, e.Message)
}

// IsKind reports whether err is an *APIError of the given kind
func IsKind(err error, kind string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == kind
}

// Session is a freshly started server session
type Session struct {
	User         api.User
	AccessToken  string
	RefreshToken string // jid cookie value
}

// RefreshResult is the outcome of POST /refresh_token
type RefreshResult struct {
	AccessToken  string
	RefreshToken string
	OK           bool
}

// Client is the HTTP client for the gophauth server
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a client for baseURL
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("stopped after 10 redirects")
				}
				if len(via) > 0 && via[0].Header.Get("Authorization") != "" {
					req.Header.Set("Authorization", via[0].Header.Get("Authorization"))
				}
				return nil
			},
		},
	}
}

// Register creates an account and starts a session
func (c *Client) Register(ctx context.Context, req api.RegisterRequest) (*Session, error) {
	session, err := c.startSession(ctx, "/api/v1/auth/register", req)
	if err != nil {
		return nil, fmt.Errorf("register request failed: %w", err)
	}
	return session, nil
}

// Login authenticates and starts a session
func (c *Client) Login(ctx context.Context, req api.LoginRequest) (*Session, error) {
	session, err := c.startSession(ctx, "/api/v1/auth/login", req)
	if err != nil {
		return nil, fmt.Errorf("login request failed: %w", err)
	}
	return session, nil
}

// Refresh exchanges the refresh cookie for a new token pair. A rejected
// cookie is reported as OK=false, not as an error.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	var resp api.RefreshResponse
	httpResp, err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/refresh_token",
		cookie: refreshToken,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("refresh request failed: %w", err)
	}

	result := &RefreshResult{OK: resp.OK, AccessToken: resp.AccessToken}
	if resp.OK {
		result.RefreshToken = refreshCookie(httpResp)
	}
	return result, nil
}

// Logout asks the server to clear the refresh cookie
func (c *Client) Logout(ctx context.Context, refreshToken string) error {
	var resp api.OKResponse
	if _, err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/v1/auth/logout",
		cookie: refreshToken,
	}, &resp); err != nil {
		return fmt.Errorf("logout request failed: %w", err)
	}
	return nil
}

// Me returns the user the access token belongs to, or nil when the server
// does not accept the token
func (c *Client) Me(ctx context.Context, accessToken string) (*api.User, error) {
	var resp api.MeResponse
	if _, err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/api/v1/auth/me",
		bearer: accessToken,
	}, &resp); err != nil {
		return nil, fmt.Errorf("me request failed: %w", err)
	}
	return resp.User, nil
}

// Revoke invalidates every refresh token of the caller and returns the new
// token version
func (c *Client) Revoke(ctx context.Context, accessToken string) (int, error) {
	var resp api.RevokeResponse
	if _, err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/v1/auth/revoke",
		bearer: accessToken,
	}, &resp); err != nil {
		return 0, fmt.Errorf("revoke request failed: %w", err)
	}
	return resp.TokenVersion, nil
}

// RequestPasswordReset asks the server to email a reset token
func (c *Client) RequestPasswordReset(ctx context.Context, email string) error {
	var resp api.OKResponse
	if _, err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/v1/auth/password/reset-request",
		body:   api.ResetRequestRequest{Email: email},
	}, &resp); err != nil {
		return fmt.Errorf("reset request failed: %w", err)
	}
	return nil
}

// PerformPasswordReset sets a new password using an emailed token
func (c *Client) PerformPasswordReset(ctx context.Context, token, newPassword string) error {
	var resp api.OKResponse
	if _, err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/v1/auth/password/reset",
		body:   api.ResetPerformRequest{Token: token, NewPassword: newPassword},
	}, &resp); err != nil {
		return fmt.Errorf("password reset failed: %w", err)
	}
	return nil
}

// GetProfile returns the caller's profile
func (c *Client) GetProfile(ctx context.Context, accessToken string) (*api.User, error) {
	var resp api.User
	if _, err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/api/v1/profile",
		bearer: accessToken,
	}, &resp); err != nil {
		return nil, fmt.Errorf("get profile failed: %w", err)
	}
	return &resp, nil
}

// UpdateProfile replaces the caller's profile names
func (c *Client) UpdateProfile(ctx context.Context, accessToken string, req api.ProfileRequest) (*api.User, error) {
	var resp api.User
	if _, err := c.do(ctx, request{
		method: http.MethodPut,
		path:   "/api/v1/profile",
		bearer: accessToken,
		body:   req,
	}, &resp); err != nil {
		return nil, fmt.Errorf("update profile failed: %w", err)
	}
	return &resp, nil
}

// ListUsers returns every account
func (c *Client) ListUsers(ctx context.Context, accessToken string) ([]api.User, error) {
	var resp api.UsersResponse
	if _, err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/api/v1/users",
		bearer: accessToken,
	}, &resp); err != nil {
		return nil, fmt.Errorf("list users failed: %w", err)
	}
	return resp.Users, nil
}

func (c *Client) startSession(ctx context.Context, path string, body any) (*Session, error) {
	var resp api.AuthResponse
	httpResp, err := c.do(ctx, request{method: http.MethodPost, path: path, body: body}, &resp)
	if err != nil {
		return nil, err
	}

	return &Session{
		User:         resp.User,
		AccessToken:  resp.AccessToken,
		RefreshToken: refreshCookie(httpResp),
	}, nil
}

type request struct {
	body   any
	method string
	path   string
	bearer string
	cookie string
}

// do executes req and decodes a 2xx JSON reply into result. The body is
// already consumed when the response is returned, only headers remain usable.
func (c *Client) do(ctx context.Context, req request, result any) (*http.Response, error) {
	var bodyReader io.Reader
	if req.body != nil {
		jsonData, err := json.Marshal(req.body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.baseURL+req.path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.bearer != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.bearer)
	}
	if req.cookie != "" {
		httpReq.AddCookie(&http.Cookie{Name: RefreshCookieName, Value: req.cookie})
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var errResp api.ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Message != "" {
			apiErr.Kind = errResp.ErrorKind
			apiErr.Message = errResp.Message
		} else {
			apiErr.Message = strings.TrimSpace(string(respBody))
		}
		return nil, apiErr
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return resp, nil
}

// refreshCookie returns the jid value the server set, or "" if it set none
// or cleared it
func refreshCookie(resp *http.Response) string {
	for _, cookie := range resp.Cookies() {
		if cookie.Name == RefreshCookieName && cookie.MaxAge >= 0 {
			return cookie.Value
		}
	}
	return ""
}
