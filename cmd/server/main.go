package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"lmsgate/internal/authlog"
	authloghandler "lmsgate/internal/authlog/handler"
	authlogkafka "lmsgate/internal/authlog/store/kafka"
	authlogmemory "lmsgate/internal/authlog/store/memory"
	authlogpostgres "lmsgate/internal/authlog/store/postgres"
	"lmsgate/internal/discovery"
	discoveryhandler "lmsgate/internal/discovery/handler"
	"lmsgate/internal/gate"
	"lmsgate/internal/pages"
	"lmsgate/internal/platform/config"
	"lmsgate/internal/platform/httpserver"
	"lmsgate/internal/platform/kafka"
	"lmsgate/internal/platform/logger"
	"lmsgate/internal/platform/metrics"
	"lmsgate/internal/platform/postgres"
	"lmsgate/internal/platform/redis"
	"lmsgate/internal/platform/retry"
	ratelimitmw "lmsgate/internal/ratelimit/middleware"
	"lmsgate/internal/ratelimit/store/bucket"
	"lmsgate/internal/session"
	httptransport "lmsgate/internal/transport/http"
)

// bucketSweepInterval is how often idle in-process rate limit buckets are dropped.
const bucketSweepInterval = time.Minute

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Behaviour lives in the internal packages.
func main() {
	if err := run(); err != nil {
		slog.Error("lmsgate exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.FromEnv()
	log := logger.New(cfg.Env, cfg.LogLevel)
	slog.SetDefault(log)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)
	ready := map[string]httptransport.ReadyCheck{}
	var closers []func()
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}()

	redisClient, err := retry.Connect(ctx, log, "redis", retry.DefaultPolicy(), func(ctx context.Context) (*redis.Client, error) {
		return redis.New(ctx, cfg.Redis)
	})
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}

	var (
		revocations session.RevocationList
		buckets     ratelimitmw.BucketStore
		memBuckets  *bucket.InMemoryBucketStore
	)
	if redisClient != nil {
		closers = append(closers, func() { _ = redisClient.Close() })
		ready["redis"] = redisClient.Health
		revocations = session.NewRedisRevocationList(redisClient.Client)
		buckets = bucket.NewRedisBucketStore(redisClient.Client)
		log.Info("using redis for token revocation and rate limiting")
	} else {
		revocations = session.NewMemoryRevocationList()
		memBuckets = bucket.NewInMemoryBucketStore()
		buckets = memBuckets
		log.Info("REDIS_URL not set, using in-process revocation and rate limiting")
	}

	resolver := session.NewCredentialResolver(
		session.Extractor{CookieName: cfg.Session.CookieName},
		buildVerifier(cfg.Session),
		session.WithRevocationList(revocations),
		session.WithMetrics(m),
		session.WithLogger(log),
	)
	accessGate, err := gate.New(resolver,
		gate.WithLoginPath(cfg.Gate.LoginPath),
		gate.WithForbiddenPath(cfg.Gate.ForbiddenPath),
		gate.WithLogger(log),
		gate.WithMetrics(m),
	)
	if err != nil {
		return fmt.Errorf("create access gate: %w", err)
	}

	sink, err := buildSink(ctx, cfg.AuthLog, log, ready, &closers)
	if err != nil {
		return err
	}
	var forwarder *authlog.Forwarder
	if sink != nil {
		forwarder = authlog.NewForwarder(sink, log, m, authlog.WithBufferSize(cfg.AuthLog.Buffer))
	}

	ipapi, err := discovery.NewIPAPIClient(cfg.IPAPI.BaseURL, cfg.IPAPI.Timeout)
	if err != nil {
		return err
	}

	catalog := pages.Catalog()
	renderer, err := pages.NewRenderer(cfg.Theme, catalog, log)
	if err != nil {
		return err
	}

	router, err := httptransport.NewRouter(httptransport.Deps{
		Logger:    log,
		Guard:     accessGate,
		Renderer:  renderer,
		Pages:     catalog,
		AuthLog:   authloghandler.New(authlog.NewRecorder(log, m, forwarder), log),
		Discovery: discoveryhandler.New(ipapi, log),
		AuthLogLimiter: ratelimitmw.New(buckets, cfg.AuthLog.RateLimit, time.Minute, log,
			ratelimitmw.WithMetrics(m),
			ratelimitmw.WithRejectBody(authloghandler.Response{Success: false}),
		),
		Metrics:      promhttp.Handler(),
		MetricsToken: cfg.MetricsToken,
		ReadyChecks:  ready,
	})
	if err != nil {
		return fmt.Errorf("build router: %w", err)
	}

	srv := httpserver.New(cfg.Addr, router, log)
	log.InfoContext(ctx, "starting lmsgate",
		"addr", cfg.Addr,
		"env", cfg.Env,
		"session_mode", cfg.Session.Mode,
		"authlog_sink", cfg.AuthLog.Sink,
		"theme", renderer.Theme(),
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if forwarder != nil {
		g.Go(func() error {
			return forwarder.Run(gCtx)
		})
	}
	if memBuckets != nil {
		g.Go(func() error {
			return memBuckets.StartCleanup(gCtx, bucketSweepInterval)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("server exited properly")
	return nil
}

func buildVerifier(cfg config.Session) session.Verifier {
	var v session.Verifier
	switch cfg.Mode {
	case config.SessionModeKratos:
		v = session.NewKratosVerifier(cfg.KratosURL, cfg.CookieName, cfg.KratosTimeout)
	default:
		v = session.NewJWTVerifier(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience)
	}
	if cfg.CacheTTL > 0 {
		v = session.NewCachingVerifier(v, cfg.CacheTTL)
	}
	return v
}

// buildSink returns the configured auth-event sink, or nil when events are
// only written to the operational log.
func buildSink(ctx context.Context, cfg config.AuthLog, log *slog.Logger, ready map[string]httptransport.ReadyCheck, closers *[]func()) (authlog.Sink, error) {
	switch cfg.Sink {
	case config.SinkMemory:
		return authlogmemory.NewInMemoryStore(), nil

	case config.SinkPostgres:
		db, err := retry.Connect(ctx, log, "postgres", retry.DefaultPolicy(), func(ctx context.Context) (*sql.DB, error) {
			return postgres.Open(ctx, cfg.DatabaseURL)
		})
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		*closers = append(*closers, func() { _ = db.Close() })
		ready["postgres"] = db.PingContext

		store := authlogpostgres.New(db)
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ensure auth event schema: %w", err)
		}
		return store, nil

	case config.SinkKafka:
		client, err := kafka.NewClient(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return nil, err
		}
		*closers = append(*closers, client.Close)
		ready["kafka"] = client.Ping

		if _, err := retry.Connect(ctx, log, "kafka", retry.DefaultPolicy(), func(ctx context.Context) (struct{}, error) {
			return struct{}{}, kafka.EnsureTopic(ctx, client, cfg.KafkaTopic, 1, 1)
		}); err != nil {
			return nil, fmt.Errorf("ensure kafka topic: %w", err)
		}
		return authlogkafka.New(client, cfg.KafkaTopic), nil

	default:
		return nil, nil
	}
}
