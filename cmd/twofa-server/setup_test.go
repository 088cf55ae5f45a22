package main

import (
	"context"
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
	"github.com/tendant/simple-2fa/pkg/authn"
	"github.com/tendant/simple-2fa/pkg/config"
	apperrors "github.com/tendant/simple-2fa/pkg/errors"
	"github.com/tendant/simple-2fa/pkg/notification"
	"github.com/tendant/simple-2fa/pkg/twofa"
	"github.com/tendant/simple-2fa/pkg/twofaclient"
)

func loadConfig(t *testing.T, env map[string]string) config.ServerConfig {
	t.Helper()
	for k, v := range env {
		t.Setenv(k, v)
	}
	cfg, err := config.LoadServerConfig()
	require.NoError(t, err)
	return cfg
}

func TestNewTwoFactorServiceDisabled(t *testing.T) {
	cfg := loadConfig(t, map[string]string{"TWOFA_ENABLED": "false"})

	service, cleanup, err := newTwoFactorService(cfg, nil)
	require.NoError(t, err)
	defer cleanup()

	subject := twofa.Subject{LoginID: uuid.New(), Email: "jane@example.com"}
	status, err := service.Status(context.Background(), subject)
	require.NoError(t, err)
	assert.False(t, status.Enabled)

	err = service.SendVerification(context.Background(), subject, twofa.TWO_FACTOR_TYPE_EMAIL)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeUnavailable))
}

func TestNewTwoFactorServicePostgresNeedsDB(t *testing.T) {
	cfg := loadConfig(t, map[string]string{"TWOFA_PERSISTENCE": "postgres"})

	_, _, err := newTwoFactorService(cfg, nil)
	assert.Error(t, err)
}

func TestNewNotificationManagerFallsBackToLog(t *testing.T) {
	cfg := loadConfig(t, nil)

	nm, err := newNotificationManager(cfg)
	require.NoError(t, err)
	assert.True(t, nm.HasNotifier(notification.EmailSystem))
	assert.True(t, nm.HasNotifier(notification.SMSSystem))
}

func TestMountTwoFA(t *testing.T) {
	cfg := loadConfig(t, map[string]string{
		"TWOFA_DATA_DIR":     t.TempDir(),
		"TWOFA_PERSISTENCE":  "file",
		"RATELIMIT_CAPACITY": "2",
	})

	service, cleanup, err := newTwoFactorService(cfg, nil)
	require.NoError(t, err)
	defer cleanup()

	r := chi.NewRouter()
	closeRoutes := mountTwoFA(r, cfg, service, jwtauth.New("HS256", []byte(cfg.JWT.Secret), nil))
	defer closeRoutes()

	token, err := authn.IssueToken([]byte(cfg.JWT.Secret), cfg.JWT.Issuer,
		authn.Principal{LoginID: uuid.New(), Email: "jane@example.com"}, time.Now(), time.Hour)
	require.NoError(t, err)

	get := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, twofaclient.BasePath+twofaclient.PathEnable, nil)
		req.RemoteAddr = "203.0.113.7:51234"
		req.Header.Set("Authorization", "Token "+token)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		return rr
	}

	rr := get()
	require.Equal(t, http.StatusOK, rr.Code)
	var status map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &status))
	assert.Equal(t, false, status["enabled"])

	assert.Equal(t, http.StatusOK, get().Code)

	rr = get()
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))
}
