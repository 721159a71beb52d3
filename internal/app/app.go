// Package app wires configuration into a ready to serve HTTP handler.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"microspark/internal/cache"
	"microspark/internal/config"
	"microspark/internal/drive"
	"microspark/internal/handlers"
	"microspark/internal/middlewares"
	"microspark/internal/observability"
	"microspark/internal/router"
	"microspark/internal/server"
	"microspark/internal/static"
)

// Options overrides parts of the wiring
type Options struct {
	// Registerer and Gatherer back the metrics.
	// Default: the prometheus default registry
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer

	// DriveHTTPClient is used for token refreshes and Drive calls
	DriveHTTPClient *http.Client

	// DriveTokenURL and DriveFilesURL override the Google endpoints
	DriveTokenURL string
	DriveFilesURL string
}

// App is the assembled application
type App struct {
	Handler http.Handler
	Engine  *router.Engine
	Cache   *cache.FallbackCache

	resources []server.Resource
}

// Resources returns what must be closed on shutdown, in registration order
func (a *App) Resources() []server.Resource {
	return a.resources
}

// New builds the middleware chain, the routes and the outer wrappers. On
// error every resource opened so far is closed.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts *Options) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts == nil {
		opts = &Options{}
	}

	app := &App{}

	var redisCfg *cache.RedisConfig
	if cfg.Redis.Addr != "" {
		redisCfg = cache.DefaultRedisConfig()
		redisCfg.Addr = cfg.Redis.Addr
		redisCfg.Password = cfg.Redis.Password
		redisCfg.DB = cfg.Redis.DB
		redisCfg.Config.Prefix = cfg.Redis.Prefix
	}
	memCfg := cache.DefaultConfig()
	memCfg.Prefix = cfg.Redis.Prefix
	app.Cache = cache.NewFallbackCache(ctx, &cache.FallbackConfig{
		Redis:  redisCfg,
		Memory: memCfg,
		Logger: logger,
	})
	app.resources = append(app.resources, server.NewCloserResource("cache", app.Cache))

	engine, metrics, err := buildEngine(cfg, logger, opts, app.Cache)
	if err != nil {
		_ = app.Cache.Close()
		return nil, err
	}
	app.Engine = engine

	var handler http.Handler = engine
	if metrics != nil {
		handler = metrics.Middleware()(handler)
	}
	accessLog := middlewares.DefaultAccessLogConfig()
	accessLog.Logger = logger
	accessLog.SkipPaths = append(accessLog.SkipPaths, cfg.Metrics.Path)
	handler = middlewares.AccessLog(accessLog)(handler)
	handler = observability.RequestID(&observability.RequestIDConfig{Logger: logger})(handler)
	app.Handler = handler

	return app, nil
}

func buildEngine(cfg *config.Config, logger *slog.Logger, opts *Options, store cache.Cache) (*router.Engine, *observability.Metrics, error) {
	routerCfg := &router.Config{Logger: logger}

	var files *static.Server
	if cfg.Static.URLPrefix != "" {
		var err error
		files, err = static.New(&static.Config{
			Root:      cfg.Static.Dir,
			GzipLevel: cfg.Static.GzipLevel,
			Logger:    logger,
		})
		if err != nil {
			logger.Warn("static files disabled", "dir", cfg.Static.Dir, "error", err)
		} else {
			routerCfg.Files = files
		}
	}

	var index handlers.DriveIndex
	if cfg.Drive.Enabled() {
		client, err := drive.New(&drive.Config{
			RootID:       cfg.Drive.RootID,
			ClientID:     cfg.Drive.ClientID,
			ClientSecret: cfg.Drive.ClientSecret,
			RefreshToken: cfg.Drive.RefreshToken,
			TokenURL:     opts.DriveTokenURL,
			FilesURL:     opts.DriveFilesURL,
			HTTPClient:   opts.DriveHTTPClient,
			Cache:        store,
			CacheTTL:     cfg.Drive.CacheTTL,
			Logger:       logger,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("drive client: %w", err)
		}
		index = client
	}

	cors, err := middlewares.CORS(&middlewares.CORSConfig{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    cfg.CORS.ExposedHeaders,
		AllowCredentials: middlewares.Bool(cfg.CORS.AllowCredentials),
		MaxAge:           middlewares.Int(cfg.CORS.MaxAge),
		Logger:           logger,
	})
	if err != nil {
		return nil, nil, err
	}

	b := router.NewBuilder(routerCfg)
	b.Use(
		middlewares.ClientIP(&middlewares.ClientIPConfig{TrustedProxies: cfg.Server.TrustedProxies, Logger: logger}),
		middlewares.Protocol(),
		middlewares.Cookies(),
		middlewares.SecureHeaders(middlewares.DefaultSecurityConfig()),
		cors,
		middlewares.BodyParser(&middlewares.BodyParserConfig{MaxBytes: cfg.Body.MaxBytes}),
	)

	handlers.NewHandler(store, index, cfg.App.Version, logger).Register(b)

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metricsCfg := observability.DefaultMetricsConfig(cfg.Metrics.Namespace)
		metricsCfg.Logger = logger
		metricsCfg.Registerer = opts.Registerer
		metricsCfg.Gatherer = opts.Gatherer
		metricsCfg.SkipPaths = append(metricsCfg.SkipPaths, cfg.Metrics.Path)
		metrics = observability.NewMetrics(metricsCfg)

		expose := metrics.Handler()
		b.Get(cfg.Metrics.Path, func(c *router.Context) (any, error) {
			expose.ServeHTTP(c.Writer, c.Request)
			return nil, nil
		})
	}

	if routerCfg.Files != nil {
		b.Serve(cfg.Static.URLPrefix)
	}

	engine, err := b.Build()
	if err != nil {
		return nil, nil, err
	}
	return engine, metrics, nil
}
