package sentry

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"
	"go.uber.org/fx"
	"go.uber.org/zap"

	cfgpkg "github.com/fatflowers/lingobill/pkg/config"
)

const flushTimeout = 2 * time.Second

// Reporter forwards unexpected failures to error tracking.
type Reporter interface {
	CaptureError(ctx context.Context, err error, tags map[string]string)
	Enabled() bool
}

type hubReporter struct {
	enabled bool
}

// New initialises the global sentry client when a DSN is configured. Without a
// DSN the reporter is a no-op.
func New(lc fx.Lifecycle, l *zap.SugaredLogger, cfg *cfgpkg.Config) (Reporter, error) {
	if cfg.Sentry.DSN == "" {
		l.Infow("sentry dsn not configured, error reporting disabled")
		return &hubReporter{}, nil
	}
	env := cfg.Sentry.Environment
	if env == "" {
		env = string(cfg.Env)
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.Sentry.DSN,
		EnableTracing:    true,
		TracesSampleRate: 0.2,
		Environment:      env,
	}); err != nil {
		l.Errorw("sentry init failed", "err", err)
		return &hubReporter{}, nil
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			sentry.Flush(flushTimeout)
			return nil
		},
	})
	l.Infow("sentry initialised", "environment", env)
	return &hubReporter{enabled: true}, nil
}

func (r *hubReporter) Enabled() bool { return r.enabled }

func (r *hubReporter) CaptureError(ctx context.Context, err error, tags map[string]string) {
	if !r.enabled || err == nil {
		return
	}
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub().Clone()
	}
	hub.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		hub.CaptureException(err)
	})
}

// Nop returns a reporter that drops everything.
func Nop() Reporter { return &hubReporter{} }

var Module = fx.Options(fx.Provide(New))
