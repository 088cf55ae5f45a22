// Package twofaclient is an HTTP client for the two-factor authentication API.
// It implements otpsession.Remote.
package twofaclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	apperrors "github.com/tendant/simple-2fa/pkg/errors"
)

// BasePath is where the 2FA API is mounted on the server.
const BasePath = "/modules/two-factor-authentication"

const (
	PathSendOTP           = "/send/otp"
	PathAuthenticatorLink = "/google/authenticator/qr"
	PathVerifyOTP         = "/verify/otp"
	PathEnable            = "/enable/2fa"
	PathVerifyEnable      = "/verify/otp/enable"
)

// TokenSource returns the caller's current authorization token.
type TokenSource func(ctx context.Context) (string, error)

// Client calls the 2FA API on behalf of one authenticated user.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	tokens     TokenSource
	scheme     string
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithToken uses a fixed token.
func WithToken(token string) Option {
	return func(c *Client) {
		c.tokens = func(context.Context) (string, error) { return token, nil }
	}
}

// WithTokenSource fetches the token on every request.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) {
		c.tokens = ts
	}
}

// WithAuthScheme sets the Authorization scheme. Defaults to "Token".
func WithAuthScheme(scheme string) Option {
	return func(c *Client) {
		c.scheme = scheme
	}
}

// New creates a client for the server at baseURL. BasePath is appended to
// the URL path unless it already ends with it.
func New(baseURL string, opts ...Option) (*Client, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid base url: %q must be absolute", baseURL)
	}
	if !strings.HasSuffix(strings.TrimRight(parsed.Path, "/"), BasePath) {
		parsed.Path = path.Join(parsed.Path, BasePath)
	}

	c := &Client{
		baseURL:    parsed,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		scheme:     "Token",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type methodRequest struct {
	Method string `json:"method"`
}

type verifyRequest struct {
	Method string `json:"method"`
	Code   string `json:"code"`
}

type linkResponse struct {
	Link    string `json:"link"`
	QRImage string `json:"qr_image,omitempty"`
}

type statusResponse struct {
	Enabled bool     `json:"enabled"`
	Methods []string `json:"methods"`
}

type errorResponse struct {
	Message string `json:"message"`
}

// SendVerification asks the server to deliver a login code via method.
func (c *Client) SendVerification(ctx context.Context, method string) error {
	return c.do(ctx, http.MethodPost, PathSendOTP, methodRequest{Method: method}, nil)
}

// AuthenticatorLink returns the otpauth enrollment link for the caller.
func (c *Client) AuthenticatorLink(ctx context.Context) (string, error) {
	var resp linkResponse
	if err := c.do(ctx, http.MethodGet, PathAuthenticatorLink, nil, &resp); err != nil {
		return "", err
	}
	return resp.Link, nil
}

func (c *Client) VerifyLoginCode(ctx context.Context, method, code string) error {
	return c.do(ctx, http.MethodPost, PathVerifyOTP, verifyRequest{Method: method, Code: code}, nil)
}

// RequestEnableCode starts enablement of method and, for delivered methods,
// sends a code.
func (c *Client) RequestEnableCode(ctx context.Context, method string) error {
	return c.do(ctx, http.MethodPost, PathEnable, methodRequest{Method: method}, nil)
}

func (c *Client) VerifyEnableCode(ctx context.Context, method, code string) error {
	return c.do(ctx, http.MethodPost, PathVerifyEnable, verifyRequest{Method: method, Code: code}, nil)
}

// Status reports whether 2FA is enabled and for which methods.
func (c *Client) Status(ctx context.Context) (bool, []string, error) {
	var resp statusResponse
	if err := c.do(ctx, http.MethodGet, PathEnable, nil, &resp); err != nil {
		return false, nil, err
	}
	return resp.Enabled, resp.Methods, nil
}

func (c *Client) Disable(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, PathEnable, nil, nil)
}

func (c *Client) do(ctx context.Context, method, reqPath string, body any, out any) error {
	u := *c.baseURL
	u.Path = path.Join(c.baseURL.Path, reqPath)

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		token, err := c.tokens(ctx)
		if err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeUnauthorized, "failed to get token")
		}
		if token != "" {
			req.Header.Set("Authorization", c.scheme+" "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeRemoteUnreachable, "failed to make request")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeRemoteUnreachable, "failed to read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return handleHTTPError(resp.StatusCode, data)
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeRemoteUnreachable, "failed to decode response")
		}
	}
	return nil
}

// handleHTTPError turns a non-2xx response into a RemoteRejected error when
// the body carries a message, otherwise RemoteUnreachable.
func handleHTTPError(status int, data []byte) error {
	var er errorResponse
	if err := json.Unmarshal(data, &er); err == nil && strings.TrimSpace(er.Message) != "" {
		return apperrors.New(apperrors.ErrCodeRemoteRejected, er.Message).WithDetail("status", status)
	}
	return apperrors.Newf(apperrors.ErrCodeRemoteUnreachable, "unexpected status %d", status).WithDetail("status", status)
}
