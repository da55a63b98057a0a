package app

import (
	"time"

	"go.uber.org/fx"

	"github.com/fatflowers/lingobill/internal/app/api/server"
	notificationlog "github.com/fatflowers/lingobill/internal/app/service/notification_log"
	"github.com/fatflowers/lingobill/internal/app/service/promo"
	"github.com/fatflowers/lingobill/internal/app/service/quota"
	"github.com/fatflowers/lingobill/internal/app/service/statistics"
	"github.com/fatflowers/lingobill/internal/app/service/subscription"
	"github.com/fatflowers/lingobill/internal/app/service/webhook"
	"github.com/fatflowers/lingobill/internal/platform/db"
	"github.com/fatflowers/lingobill/internal/platform/redis"
	"github.com/fatflowers/lingobill/internal/platform/sentry"
	"github.com/fatflowers/lingobill/internal/platform/stripe"
	"github.com/fatflowers/lingobill/pkg/clock"
	"github.com/fatflowers/lingobill/pkg/config"
	"github.com/fatflowers/lingobill/pkg/logger"
)

const (
	DefaultStartTimeout = 15 * time.Second
	DefaultStopTimeout  = 10 * time.Second
)

var Module = fx.Options(
	logger.Module,
	config.Module,
	fx.Provide(clock.System),
	db.Module,
	redis.Module,
	sentry.Module,
	stripe.Module,
	server.Module,
	subscription.Module,
	quota.Module,
	promo.Module,
	webhook.Module,
	statistics.Module,
	notificationlog.Module,
)
