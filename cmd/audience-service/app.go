package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"golang.org/x/sync/errgroup"

	"audience/internal/audience"
	"audience/internal/config"
	"audience/internal/constants"
	"audience/internal/logger"
	"audience/pkg/bootstrap"
	"audience/pkg/health"
	"audience/pkg/metrics"
	"audience/pkg/middleware"
	"audience/pkg/ratelimit"
	"audience/pkg/tracing"
)

type App struct {
	*bootstrap.Base
	service        *audience.Service
	healthRegistry *health.CheckerRegistry
	rateLimits     *ratelimit.Store
	router         *gin.Engine
	server         *http.Server
	tracerProvider *tracing.TracerProvider
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName(constants.ServiceName)
	}
	return &App{
		Base:           bootstrap.NewBase(cfg, log),
		healthRegistry: health.NewCheckerRegistry(),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	tp, err := tracing.Init(a.Config.Tracing, constants.ServiceName)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	metrics.RegisterAudienceMetrics()

	if err := a.initService(ctx); err != nil {
		return fmt.Errorf("failed to initialize service: %w", err)
	}

	a.initRouter()

	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      a.router,
		ReadTimeout:  a.Config.Server.ReadTimeoutSeconds,
		WriteTimeout: a.Config.Server.WriteTimeoutSeconds,
	}

	return nil
}

func (a *App) initService(ctx context.Context) error {
	initCtx, cancel := context.WithTimeout(ctx, constants.StoreConnectTimeout)
	defer cancel()

	store, checker, err := a.Databases.InitStore(initCtx)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	a.healthRegistry.Register(checker)

	combiner, err := audience.NewCombiner(a.Config.Audience.CombinePolicy)
	if err != nil {
		return err
	}

	a.service = audience.NewService(
		audience.NewCircuitBreakerRepository(store, a.Config.CircuitBreaker),
		a.Logger,
		audience.WithCombiner(combiner),
		audience.WithCollection(a.Config.Audience.Collection),
		audience.WithQueryTimeout(a.Config.Audience.QueryTimeout),
	)

	a.Logger.InfowCtx(ctx, "Audience service initialized",
		"store", store.Name(),
		"collection", a.Config.Audience.Collection,
		"combine_policy", combiner.Policy(),
		"circuit_breaker", a.Config.CircuitBreaker.Enabled,
	)
	return nil
}

func (a *App) initRouter() {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	if a.Config.Tracing.Enabled {
		router.Use(tracing.GinMiddleware(constants.ServiceName))
	}

	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.RecoveryMiddleware(a.Logger))
	router.Use(middleware.LoggerMiddleware(a.Logger))
	router.Use(middleware.BodyLimitMiddleware(constants.MaxRequestBodyBytes))

	if a.Config.RateLimit.Enabled {
		rateLimitConfig := ratelimit.FromSettings(a.Config.RateLimit)
		a.rateLimits = ratelimit.NewStore(rateLimitConfig)
		router.Use(ratelimit.RateLimitMiddleware(a.rateLimits))
		a.Logger.InfowCtx(context.Background(), "Rate limiting enabled", "rps", rateLimitConfig.RPS, "burst", rateLimitConfig.Burst)
	}

	audience.NewHandler(a.service, a.Logger).RegisterRoutes(router)

	router.GET("/health", a.healthRegistry.Handler())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	a.router = router
}

func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.InfowCtx(ctx, "HTTP server starting", "port", a.Config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	if a.rateLimits != nil {
		g.Go(func() error {
			a.rateLimits.RunCleanup(gCtx)
			return nil
		})
	}

	g.Go(func() error {
		<-gCtx.Done()
		return a.Shutdown(context.Background())
	})

	return g.Wait()
}

func (a *App) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, constants.ShutdownTimeout)
	defer cancel()

	return a.Base.Shutdown(shutdownCtx, func(ctx context.Context) []error {
		var errs []error

		if a.server != nil {
			if err := a.server.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
			}
		}

		if a.tracerProvider != nil {
			if err := a.tracerProvider.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
			}
		}

		return errs
	})
}
