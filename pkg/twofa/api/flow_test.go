package api

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-2fa/pkg/clock"
	apperrors "github.com/tendant/simple-2fa/pkg/errors"
	"github.com/tendant/simple-2fa/pkg/otpsession"
	"github.com/tendant/simple-2fa/pkg/twofaclient"
)

// TestSessionAgainstServer drives the client session layer against the real
// handler over HTTP.
func TestSessionAgainstServer(t *testing.T) {
	ctx := context.Background()
	service, sent := newService(t)
	s := newTestServer(t, service, sent)
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	client, err := twofaclient.New(srv.URL, twofaclient.WithToken(s.token))
	require.NoError(t, err)

	clk := clock.NewManual(time.Now())
	store := otpsession.NewMemoryIssuedAtStore()
	var signals []otpsession.SessionSignal
	var navigations []otpsession.Navigation
	observer := otpsession.ObserverFuncs{
		OnSessionSignal: func(sig otpsession.SessionSignal) { signals = append(signals, sig) },
		OnNavigate:      func(n otpsession.Navigation) { navigations = append(navigations, n) },
	}
	opts := []otpsession.Option{
		otpsession.WithClock(clk),
		otpsession.WithStore(store),
		otpsession.WithObserver(observer),
		otpsession.WithTickInterval(time.Hour),
	}
	selector := otpsession.NewSelector(client, opts...)

	lastCode := func() string {
		msg, ok := sent.Last("jane@example.com")
		require.True(t, ok)
		return msg.Data["TwofaPasscode"]
	}

	t.Run("enable", func(t *testing.T) {
		vctx, err := selector.Choose(ctx, otpsession.MethodEmail, otpsession.FlowEnable)
		require.NoError(t, err)

		ctrl, err := otpsession.New(vctx, client, opts...)
		require.NoError(t, err)
		require.NoError(t, ctrl.Start(ctx))
		defer ctrl.Close()

		code := lastCode()
		wrong := "000000"
		if code == wrong {
			wrong = "111111"
		}
		clk.Advance(5 * time.Second)
		ctrl.Tick()
		_, err = ctrl.Submit(ctx, wrong)
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeRemoteRejected))
		assert.Equal(t, "Invalid code", ctrl.State().ErrorMessage)
		assert.Equal(t, 54, ctrl.State().RemainingSeconds)

		outcome, err := ctrl.Submit(ctx, code)
		require.NoError(t, err)
		assert.Equal(t, otpsession.OutcomeEnableSuccess, outcome)
		require.NotEmpty(t, navigations)
		assert.Equal(t, "Two-factor authentication has been enabled", navigations[len(navigations)-1].Notice)
	})

	t.Run("status", func(t *testing.T) {
		enabled, methods, err := selector.Status(ctx)
		require.NoError(t, err)
		assert.True(t, enabled)
		assert.Equal(t, []string{"email"}, methods)
	})

	t.Run("login", func(t *testing.T) {
		vctx, err := selector.Choose(ctx, otpsession.MethodEmail, otpsession.FlowLogin)
		require.NoError(t, err)

		ctrl, err := otpsession.New(vctx, client, opts...)
		require.NoError(t, err)
		require.NoError(t, ctrl.Start(ctx))
		defer ctrl.Close()

		require.NoError(t, ctrl.Resend(ctx))
		outcome, err := ctrl.Submit(ctx, lastCode())
		require.NoError(t, err)
		assert.Equal(t, otpsession.OutcomeLoginSuccess, outcome)
		assert.Equal(t, otpsession.LoginEstablished, signals[len(signals)-1])
	})

	t.Run("disable", func(t *testing.T) {
		require.NoError(t, selector.Disable(ctx))
		enabled, _, err := selector.Status(ctx)
		require.NoError(t, err)
		assert.False(t, enabled)

		err = selector.Disable(ctx)
		require.Error(t, err)
		assert.Equal(t, "Two-factor authentication is not enabled", apperrors.Message(err))
		assert.Equal(t, otpsession.StatusFailed, selector.State(otpsession.OpDisable).Status)
	})
}
