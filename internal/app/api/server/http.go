package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/lingobill/docs"
	"github.com/fatflowers/lingobill/internal/app/api/handlers"
	mw "github.com/fatflowers/lingobill/internal/app/api/middleware"
	notificationlog "github.com/fatflowers/lingobill/internal/app/service/notification_log"
	"github.com/fatflowers/lingobill/internal/app/service/promo"
	"github.com/fatflowers/lingobill/internal/app/service/quota"
	"github.com/fatflowers/lingobill/internal/app/service/statistics"
	subsvc "github.com/fatflowers/lingobill/internal/app/service/subscription"
	"github.com/fatflowers/lingobill/internal/app/service/webhook"
	"github.com/fatflowers/lingobill/internal/platform/redis"
	"github.com/fatflowers/lingobill/internal/platform/sentry"
	stripeplatform "github.com/fatflowers/lingobill/internal/platform/stripe"
	cfgpkg "github.com/fatflowers/lingobill/pkg/config"
	metrics "github.com/fatflowers/lingobill/pkg/metrics"
)

const promoRedeemScope = "promo_redeem"

type routeParams struct {
	fx.In

	Log           *zap.SugaredLogger
	Cfg           *cfgpkg.Config
	DB            *gorm.DB
	Redis         goredis.UniversalClient `optional:"true"`
	Limiter       redis.Limiter
	Reporter      sentry.Reporter
	Subscriptions *subsvc.Service
	Quota         *quota.Service
	Promo         *promo.Service
	Webhook       *webhook.Reconciler
	Billing       stripeplatform.Client
	Statistics    *statistics.Service
	WebhookEvents *notificationlog.Service
}

func newEngine(reporter sentry.Reporter) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if reporter.Enabled() {
		// repanic so gin.Recovery still answers 500
		r.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}
	// request logger & access log are attached per group in registerRoutes
	r.Use(mw.TraceMiddleware())
	return r
}

func readinessChecks(p routeParams) []handlers.Check {
	checks := []handlers.Check{{
		Name: "database",
		Fn: func(ctx context.Context) error {
			sqlDB, err := p.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}}
	if p.Redis != nil {
		checks = append(checks, handlers.Check{Name: "redis", Fn: redis.Healthcheck(p.Redis)})
	}
	return checks
}

func registerRoutes(r *gin.Engine, p routeParams) {
	log, cfg := p.Log, p.Cfg

	// Prometheus metrics
	if cfg.MetricsAddr != "" {
		prom := metrics.NewPrometheus(metrics.NewPrometheusOptions{Logger: log})
		prom.SetListenAddress(cfg.MetricsAddr)
		prom.Use(r)
		log.Infow("metrics started", "addr", cfg.MetricsAddr)
	}

	// Public group: request logger + access log
	pub := r.Group("/")
	pub.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware(log))
	handlers.RegisterHealthRoutes(pub, readinessChecks(p)...)
	// Swagger UI
	docs.SwaggerInfo.BasePath = "/"
	pub.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	apiV1 := r.Group("/api/v1")
	apiV1.Use(
		mw.RequestLoggerMiddleware(log),
		mw.AuthMiddleware(mw.NewJWTVerifier(cfg), log),
		mw.AccessLogMiddleware(log),
		mw.ErrorReportMiddleware(p.Reporter),
	)

	user := apiV1.Group("", mw.RequireUser())
	handlers.RegisterSubscriptionRoutes(user, p.Subscriptions, p.Quota)
	handlers.RegisterQuotaRoutes(user, p.Quota)
	handlers.RegisterBillingRoutes(user, p.Subscriptions, p.Billing)

	// redeem answers 401 itself, so it only sits behind the rate limit
	redeem := apiV1.Group("", mw.RateLimitMiddleware(p.Limiter, promoRedeemScope,
		cfg.Promo.RedeemRateLimit, cfg.Promo.RedeemRateWindow, log, handlers.DenyRedeemRateLimited))
	handlers.RegisterPromoRoutes(redeem, p.Promo, log)

	admin := apiV1.Group("/admin", mw.AdminMiddleware(cfg, log))
	handlers.RegisterAdminRoutes(admin, handlers.AdminServices{
		Subscriptions: p.Subscriptions,
		Promo:         p.Promo,
		Statistics:    p.Statistics,
		WebhookEvents: p.WebhookEvents,
	})

	// Payment v2 APIs: provider callbacks, authenticated by signature
	apiV2Payment := r.Group("/api/v2/payment")
	apiV2Payment.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware(log))
	handlers.RegisterPaymentV2Routes(apiV2Payment, p.Webhook, log)
}

func runServer(lc fx.Lifecycle, log *zap.SugaredLogger, cfg *cfgpkg.Config, r *gin.Engine, shutdowner fx.Shutdowner) {
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("starting HTTP server", "addr", addr)
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Errorf("server error: %v", err)
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Infow("stopping HTTP server")
			shutdownCtx, cancel := context.WithTimeout(ctx, 120*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

var Module = fx.Options(
	fx.Provide(newEngine),
	fx.Invoke(registerRoutes),
	fx.Invoke(runServer),
)
