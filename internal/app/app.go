package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/switchboard/internal/clash"
	"github.com/MrSnakeDoc/switchboard/internal/config"
	"github.com/MrSnakeDoc/switchboard/internal/domain"
	"github.com/MrSnakeDoc/switchboard/internal/httpserver"
	"github.com/MrSnakeDoc/switchboard/internal/httpserver/deps"
	"github.com/MrSnakeDoc/switchboard/internal/limiter"
	"github.com/MrSnakeDoc/switchboard/internal/logger"
	"github.com/MrSnakeDoc/switchboard/internal/metrics"
	"github.com/MrSnakeDoc/switchboard/internal/probe"
	"github.com/MrSnakeDoc/switchboard/internal/redis"
	"github.com/MrSnakeDoc/switchboard/internal/scheduler"
	"github.com/MrSnakeDoc/switchboard/internal/sources/sites"
	redisstore "github.com/MrSnakeDoc/switchboard/internal/store/redis"
	"github.com/MrSnakeDoc/switchboard/internal/telemetry"
	"github.com/MrSnakeDoc/switchboard/internal/topology"
	"github.com/MrSnakeDoc/switchboard/internal/utils"
	"github.com/MrSnakeDoc/switchboard/internal/version"
)

type App struct {
	cfg         *config.Config
	logger      logger.Logger
	server      *httpserver.Server
	redisClient *goredis.Client

	client     *clash.Client
	store      *topology.Store
	prober     *probe.Scheduler
	reconciler *scheduler.Reconciler
	logs       *telemetry.LogIngestor
	samples    *telemetry.MetricsIngestor

	traffic   *telemetry.Stream[clash.TrafficMessage]
	memory    *telemetry.Stream[clash.MemoryMessage]
	logStream *telemetry.Stream[clash.LogMessage]

	// base bounds every probe and stream; cancelled on shutdown.
	base   context.Context
	cancel context.CancelFunc
}

// New wires every component. Redis is only dialed when configured; a Redis
// that stays unreachable past its connect timeout is an error.
func New(cfg *config.Config, loggerClient logger.Logger) (*App, error) {
	base, cancel := context.WithCancel(context.Background())

	var redisClient *goredis.Client
	var snapshots scheduler.SnapshotCache
	var history telemetry.LogPersister
	if cfg.RedisEnabled() {
		loggerClient.Infof("Connecting to Redis at %s", cfg.RedisAddr)
		client, err := redis.Connect(base, redis.ConnectOptions{
			Addr:           cfg.RedisAddr,
			User:           cfg.RedisUser,
			Password:       cfg.RedisPassword,
			DB:             cfg.RedisDB,
			DialTimeout:    cfg.RedisDT,
			ReadTimeout:    cfg.RedisRT,
			WriteTimeout:   cfg.RedisWT,
			PoolSize:       cfg.RedisPoolSize,
			ConnectTimeout: cfg.RedisConnectTimeout,
			RetryInterval:  cfg.RedisRetryInterval,
			MaxWait:        cfg.RedisMaxWait,
			PingTimeout:    cfg.RedisPingTimeout,
			WarnThreshold:  cfg.RedisWarnThreshold,
		}, loggerClient.Named("redis"))
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		redisClient = client
		rs := redisstore.NewStore(client, loggerClient.Named("store"))
		snapshots, history = rs, rs
		loggerClient.Info("Redis initialized successfully")
	} else {
		loggerClient.Info("redis not configured, log history and topology cache are in-memory only")
	}

	siteList, err := sites.NewLoader(cfg.SitesFile).Load()
	if err != nil {
		cancel()
		if redisClient != nil {
			utils.CloseLogged(redisClient, "redis", loggerClient)
		}
		return nil, fmt.Errorf("failed to load sites: %w", err)
	}

	client := clash.NewClient(cfg.ControllerURL, cfg.Secret, cfg.RequestTimeout)
	store := topology.NewStore(loggerClient.Named("topology"))
	lim := limiter.New(cfg.ProbeConcurrency)
	m := metrics.New(lim)

	prober := probe.NewScheduler(base, store, client, lim, loggerClient.Named("probe"), cfg.ProbeURL, cfg.ProbeTimeout)
	prober.SetObserver(m)

	reconciler := scheduler.NewReconciler(client, store, snapshots, loggerClient.Named("reconcile"), cfg.PollInterval, make(chan struct{}, 1))
	reconciler.SetObserver(m)

	logs := telemetry.NewLogIngestor(cfg.LogCapacity, cfg.LogFlushInterval, history, loggerClient.Named("logs"))
	logs.SetDropObserver(m)

	samples := telemetry.NewMetricsIngestor(cfg.TrafficHistory)
	samples.SetObserver(m)

	streamLog := loggerClient.Named("stream")
	traffic := telemetry.NewStream[clash.TrafficMessage]("traffic", func(ctx context.Context) (telemetry.Conn, error) {
		conn, err := client.Dial(ctx, clash.PathTraffic, nil)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}, streamLog)
	memory := telemetry.NewStream[clash.MemoryMessage]("memory", func(ctx context.Context) (telemetry.Conn, error) {
		conn, err := client.Dial(ctx, clash.PathMemory, nil)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}, streamLog)
	logStream := telemetry.NewStream[clash.LogMessage]("logs", func(ctx context.Context) (telemetry.Conn, error) {
		conn, err := client.DialLogs(ctx, cfg.LogStreamLevel)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}, streamLog)
	traffic.SetDropObserver(m)
	memory.SetDropObserver(m)
	logStream.SetDropObserver(m)

	d := deps.Deps{
		Logger:          loggerClient.Named("http"),
		StartTime:       time.Now(),
		Version:         version.Version,
		Commit:          version.Commit,
		BuildDate:       version.BuildDate,
		GoVersion:       version.GoVersion,
		AllowedHosts:    cfg.AllowedHosts,
		AllowedCIDRS:    cfg.AllowedCIDRS,
		TrustProxy:      cfg.TrustProxy,
		ProbeRatePerMin: cfg.ProbeRatePerMin,
		ProbeBurst:      cfg.ProbeBurst,
		ProbeTimeout:    cfg.ProbeTimeout,
		Store:           store,
		Prober:          prober,
		Reconciler:      reconciler,
		Daemon:          client,
		Logs:            logs,
		Samples:         samples,
		Sites:           siteList,
		Metrics:         m.Handler(),
		RedisClient:     redisClient,
	}

	return &App{
		cfg:         cfg,
		logger:      loggerClient,
		server:      httpserver.New(cfg, loggerClient, d),
		redisClient: redisClient,
		client:      client,
		store:       store,
		prober:      prober,
		reconciler:  reconciler,
		logs:        logs,
		samples:     samples,
		traffic:     traffic,
		memory:      memory,
		logStream:   logStream,
		base:        base,
		cancel:      cancel,
	}, nil
}

// Store exposes the topology, for one-shot commands.
func (a *App) Store() *topology.Store { return a.store }

// Reconcile fetches the topology once.
func (a *App) Reconcile(ctx context.Context) error { return a.reconciler.Reconcile(ctx) }

// ProbeGroup probes every member of group once.
func (a *App) ProbeGroup(ctx context.Context, group string) ([]domain.ProbeResult, error) {
	return a.prober.ProbeGroup(ctx, group, probe.Request{})
}

// Run starts the background loops and the API, and blocks until SIGINT or
// SIGTERM. Everything it started is stopped before it returns.
func (a *App) Run() error {
	a.logger.Infof("🚀 Starting switchboard %s on %s", version.Version, a.cfg.ListenAddr)
	a.logger.Infof("switchboard %s (commit=%s, built=%s, go=%s)",
		version.Version, version.Commit, version.BuildDate, version.GoVersion)
	a.logger.Info("daemon controller", logger.String("url", a.cfg.ControllerURL))

	ctx, stop := signal.NotifyContext(a.base, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.logs.Restore(ctx); err != nil {
		a.logger.Warn("failed to restore log history", logger.Error(err))
	}

	a.reconciler.Start(ctx)
	a.logger.Info("reconciler started", logger.Duration("interval", a.cfg.PollInterval))

	var wg sync.WaitGroup
	background := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}
	background(func() { a.logs.Run(ctx) })
	background(func() { a.traffic.Follow(ctx, a.samples.IngestTraffic) })
	background(func() { a.memory.Follow(ctx, a.samples.IngestMemory) })
	background(func() { a.logStream.Follow(ctx, func(msg clash.LogMessage) { a.logs.Ingest(msg) }) })

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case runErr = <-errCh:
	}

	a.reconciler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("failed to stop server: %w", err)
	}

	// streams and in-flight probes end with base; the log flusher commits
	// what it holds before redis goes away
	a.cancel()
	wg.Wait()

	a.Close()
	if runErr == nil {
		a.logger.Info("✅ switchboard stopped cleanly")
	}
	return runErr
}

// Close releases what New acquired. Safe to call after Run.
func (a *App) Close() {
	a.cancel()
	if a.redisClient != nil {
		utils.CloseLogged(a.redisClient, "redis", a.logger)
		a.redisClient = nil
	}
}
