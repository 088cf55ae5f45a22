package twofaclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/tendant/simple-2fa/pkg/errors"
	"github.com/tendant/simple-2fa/pkg/otpsession"
)

var _ otpsession.Remote = (*Client)(nil)

type recorded struct {
	method string
	path   string
	auth   string
	body   map[string]any
}

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *[]recorded) {
	t.Helper()
	var calls []recorded
	r := chi.NewRouter()
	r.Route(BasePath, func(r chi.Router) {
		r.HandleFunc("/*", func(w http.ResponseWriter, req *http.Request) {
			rec := recorded{method: req.Method, path: req.URL.Path, auth: req.Header.Get("Authorization")}
			if req.Body != nil {
				_ = json.NewDecoder(req.Body).Decode(&rec.body)
			}
			calls = append(calls, rec)
			handler(w, req)
		})
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, &calls
}

func ok(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodGet && r.URL.Path == BasePath+PathAuthenticatorLink:
		render.JSON(w, r, map[string]string{"link": "otpauth://totp/simple-2fa:jane?secret=ABC"})
	case r.Method == http.MethodGet && r.URL.Path == BasePath+PathEnable:
		render.JSON(w, r, map[string]any{"enabled": true, "methods": []string{"email"}})
	default:
		render.JSON(w, r, map[string]string{"result": "success"})
	}
}

func TestClientRequests(t *testing.T) {
	ctx := context.Background()
	srv, calls := newTestServer(t, ok)

	c, err := New(srv.URL, WithToken("tok-123"))
	require.NoError(t, err)

	require.NoError(t, c.SendVerification(ctx, "email"))
	link, err := c.AuthenticatorLink(ctx)
	require.NoError(t, err)
	assert.Equal(t, "otpauth://totp/simple-2fa:jane?secret=ABC", link)
	require.NoError(t, c.VerifyLoginCode(ctx, "email", "012345"))
	require.NoError(t, c.RequestEnableCode(ctx, "phone_number"))
	require.NoError(t, c.VerifyEnableCode(ctx, "phone_number", "654321"))
	enabled, methods, err := c.Status(ctx)
	require.NoError(t, err)
	assert.True(t, enabled)
	assert.Equal(t, []string{"email"}, methods)
	require.NoError(t, c.Disable(ctx))

	require.Len(t, *calls, 7)
	want := []recorded{
		{method: http.MethodPost, path: BasePath + PathSendOTP, body: map[string]any{"method": "email"}},
		{method: http.MethodGet, path: BasePath + PathAuthenticatorLink},
		{method: http.MethodPost, path: BasePath + PathVerifyOTP, body: map[string]any{"method": "email", "code": "012345"}},
		{method: http.MethodPost, path: BasePath + PathEnable, body: map[string]any{"method": "phone_number"}},
		{method: http.MethodPost, path: BasePath + PathVerifyEnable, body: map[string]any{"method": "phone_number", "code": "654321"}},
		{method: http.MethodGet, path: BasePath + PathEnable},
		{method: http.MethodDelete, path: BasePath + PathEnable},
	}
	for i, call := range *calls {
		assert.Equal(t, want[i].method, call.method, "call %d", i)
		assert.Equal(t, want[i].path, call.path, "call %d", i)
		assert.Equal(t, "Token tok-123", call.auth, "call %d", i)
		if want[i].body != nil {
			assert.Equal(t, want[i].body, call.body, "call %d", i)
		}
	}
}

func TestClientBaseURL(t *testing.T) {
	srv, calls := newTestServer(t, ok)

	c, err := New(srv.URL+BasePath+"/", WithToken("t"), WithAuthScheme("Bearer"))
	require.NoError(t, err)
	require.NoError(t, c.Disable(context.Background()))
	require.Len(t, *calls, 1)
	assert.Equal(t, BasePath+PathEnable, (*calls)[0].path)
	assert.Equal(t, "Bearer t", (*calls)[0].auth)

	_, err = New("not a url")
	assert.Error(t, err)
}

func TestClientErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("server message is a rejection", func(t *testing.T) {
		srv, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"message": "Invalid code"})
		})
		c, err := New(srv.URL)
		require.NoError(t, err)

		err = c.VerifyLoginCode(ctx, "email", "000000")
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeRemoteRejected))
		assert.Equal(t, "Invalid code", apperrors.Message(err))
	})

	t.Run("error without message is unreachable", func(t *testing.T) {
		srv, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "bad gateway", http.StatusBadGateway)
		})
		c, err := New(srv.URL)
		require.NoError(t, err)

		err = c.SendVerification(ctx, "email")
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeRemoteUnreachable))
	})

	t.Run("transport failure is unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		srv.Close()
		c, err := New(srv.URL, WithHTTPClient(&http.Client{Timeout: time.Second}))
		require.NoError(t, err)

		err = c.Disable(ctx)
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeRemoteUnreachable))
	})

	t.Run("token source error", func(t *testing.T) {
		srv, calls := newTestServer(t, ok)
		c, err := New(srv.URL, WithTokenSource(func(context.Context) (string, error) {
			return "", assert.AnError
		}))
		require.NoError(t, err)

		err = c.Disable(ctx)
		assert.ErrorIs(t, err, assert.AnError)
		assert.Empty(t, *calls)
	})
}
