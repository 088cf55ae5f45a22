package authn

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("test-jwt-secret-key")

func newTestRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(Verifier(jwtauth.New("HS256", secret, nil)))
	r.Use(Middleware)
	r.Get("/me", func(w http.ResponseWriter, r *http.Request) {
		p, ok := FromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{
			"login_id": p.LoginID.String(),
			"email":    p.Email,
			"phone":    p.PhoneNumber,
		})
	})
	return r
}

func TestMiddleware(t *testing.T) {
	loginID := uuid.New()
	token, err := IssueToken(secret, "simple-2fa", Principal{
		LoginID:     loginID,
		Email:       "jane@example.com",
		PhoneNumber: "+15551234567",
	}, time.Now(), time.Hour)
	require.NoError(t, err)

	router := newTestRouter()

	for _, header := range []string{"Token " + token, "Bearer " + token, "token " + token} {
		t.Run(header[:6], func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			req.Header.Set("Authorization", header)
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			require.Equal(t, http.StatusOK, rr.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.Equal(t, loginID.String(), body["login_id"])
			assert.Equal(t, "jane@example.com", body["email"])
			assert.Equal(t, "+15551234567", body["phone"])
		})
	}

	t.Run("cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.AddCookie(&http.Cookie{Name: ACCESS_TOKEN_NAME, Value: token})
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code)
	})
}

func TestMiddlewareRejects(t *testing.T) {
	router := newTestRouter()
	loginID := uuid.New()

	expired, err := IssueToken(secret, "simple-2fa", Principal{LoginID: loginID}, time.Now().Add(-2*time.Hour), time.Hour)
	require.NoError(t, err)
	wrongKey, err := IssueToken([]byte("other-secret"), "simple-2fa", Principal{LoginID: loginID}, time.Now(), time.Hour)
	require.NoError(t, err)

	ja := jwtauth.New("HS256", secret, nil)
	_, noLogin, err := ja.Encode(map[string]interface{}{"sub": "u1", "exp": time.Now().Add(time.Hour).Unix()})
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"unknown scheme", "Basic " + wrongKey},
		{"expired", "Token " + expired},
		{"wrong key", "Token " + wrongKey},
		{"no login id", "Token " + noLogin},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			assert.Equal(t, http.StatusUnauthorized, rr.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.NotEmpty(t, body["message"])
		})
	}
}

func TestPrincipalFromClaims(t *testing.T) {
	loginID := uuid.New()

	p, err := PrincipalFromClaims(map[string]interface{}{
		"sub": "user-1",
		"extra_claims": map[string]interface{}{
			"login_id": loginID.String(),
			"email":    "nested@example.com",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, loginID, p.LoginID)
	assert.Equal(t, "nested@example.com", p.Email)
	assert.Equal(t, "user-1", p.UserID)

	_, err = PrincipalFromClaims(map[string]interface{}{"login_id": "not-a-uuid"})
	assert.Error(t, err)

	_, err = PrincipalFromClaims(map[string]interface{}{"login_id": loginID.String(), "extra_claims": "bad"})
	assert.Error(t, err)
}

func TestIssueTokenValidation(t *testing.T) {
	_, err := IssueToken(nil, "x", Principal{LoginID: uuid.New()}, time.Now(), time.Hour)
	assert.Error(t, err)
	_, err = IssueToken(secret, "x", Principal{}, time.Now(), time.Hour)
	assert.Error(t, err)
}
