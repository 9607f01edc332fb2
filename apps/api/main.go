package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	apikeysrepo "github.com/classbridge/ptohub/domains/apikeys/be/repo"
	apikeysservice "github.com/classbridge/ptohub/domains/apikeys/be/service"
	eventsrepo "github.com/classbridge/ptohub/domains/events/be/repo"
	eventsservice "github.com/classbridge/ptohub/domains/events/be/service"
	membersrepo "github.com/classbridge/ptohub/domains/members/be/repo"
	membersservice "github.com/classbridge/ptohub/domains/members/be/service"
	permissionsrepo "github.com/classbridge/ptohub/domains/permissions/be/repo"
	permissionsservice "github.com/classbridge/ptohub/domains/permissions/be/service"
	"github.com/classbridge/ptohub/platform/go/apierror"
	platformauth "github.com/classbridge/ptohub/platform/go/auth"
	"github.com/classbridge/ptohub/platform/go/gcp"
	platformlogging "github.com/classbridge/ptohub/platform/go/logging"
	"github.com/classbridge/ptohub/platform/go/obs"
	"github.com/classbridge/ptohub/platform/go/persistence"
	"github.com/classbridge/ptohub/platform/go/ratelimit"
	"github.com/classbridge/ptohub/platform/go/rbac"
	"github.com/classbridge/ptohub/platform/go/respcache"
	"github.com/classbridge/ptohub/platform/go/respond"
	"github.com/classbridge/ptohub/platform/go/tasks"
)

type config struct {
	Port            string        `env:"PORT" envDefault:"3000"`
	Environment     string        `env:"ENVIRONMENT" envDefault:"production"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"15s"`
	TaskTimeout     time.Duration `env:"TASK_TIMEOUT" envDefault:"5s"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	DatabaseURL     string        `env:"DATABASE_URL,required"`
	RedisURL        string        `env:"REDIS_URL"`
	BootstrapSchema bool          `env:"BOOTSTRAP_SCHEMA" envDefault:"false"`

	// AuthProvider picks the bearer-token backend: hs256 (shared secret)
	// or firebase.
	AuthProvider        string `env:"AUTH_PROVIDER" envDefault:"hs256"`
	FirebaseCredentials string `env:"FIREBASE_CREDENTIALS"`

	JWTSecret   string `env:"JWT_SECRET"`
	JWTIssuer   string `env:"JWT_ISSUER"`
	JWTAudience string `env:"JWT_AUDIENCE"`
}

func main() {
	ctx := context.Background()

	_ = godotenv.Load()

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := platformlogging.NewLogger(platformlogging.Config{
		Component:   "api-server",
		Level:       cfg.LogLevel,
		Environment: cfg.Environment,
	})
	if err != nil {
		log.Fatalf("init zap logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	respond.Debug = cfg.Environment != "production"
	obs.Init()

	pool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: cfg.DatabaseURL})
	if err != nil {
		logger.Fatal("init postgres pool", zap.Error(err))
	}
	defer persistence.ClosePool(pool)

	if cfg.BootstrapSchema {
		if err := persistence.Bootstrap(ctx, pool); err != nil {
			logger.Fatal("bootstrap schema", zap.Error(err))
		}
	}

	runner := tasks.NewRunner(logger, cfg.TaskTimeout)

	keyStore, err := persistence.NewAPIKeyStore(pool)
	if err != nil {
		logger.Fatal("init api key store", zap.Error(err))
	}
	profileStore, err := persistence.NewProfileStore(pool)
	if err != nil {
		logger.Fatal("init profile store", zap.Error(err))
	}
	overrideStore, err := persistence.NewOverrideStore(pool)
	if err != nil {
		logger.Fatal("init permission override store", zap.Error(err))
	}
	violationStore, err := persistence.NewViolationStore(pool)
	if err != nil {
		logger.Fatal("init violation store", zap.Error(err))
	}
	eventStore, err := persistence.NewEventStore(pool)
	if err != nil {
		logger.Fatal("init event store", zap.Error(err))
	}

	var verify platformauth.VerifyFunc
	switch cfg.AuthProvider {
	case "firebase":
		fbAuth, err := gcp.InitFirebaseAuth(ctx, cfg.FirebaseCredentials)
		if err != nil {
			logger.Fatal("init firebase auth", zap.Error(err))
		}
		verify = platformauth.FirebaseVerifier(fbAuth)
	case "hs256":
		if cfg.JWTSecret == "" {
			logger.Fatal("JWT_SECRET is required when AUTH_PROVIDER is hs256")
		}
		verify = platformauth.HS256Verifier(platformauth.HS256VerifierConfig{
			Secret:   cfg.JWTSecret,
			Issuer:   cfg.JWTIssuer,
			Audience: cfg.JWTAudience,
		})
	default:
		logger.Fatal("unknown auth provider", zap.String("provider", cfg.AuthProvider))
	}
	authn := platformauth.NewAuthenticator(verify, keyStore, keyStore, runner)

	eval := rbac.NewEvaluator(overrideStore, rbac.DefaultTemplate())

	// The shared Redis stores are optional; without them the rate
	// limiter and cache run on per-process memory, which is fine for a
	// single instance.
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal("parse redis url", zap.Error(err))
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable at startup, falling back to in-process stores", zap.Error(err))
		}
	}

	var counterStore ratelimit.CounterStore
	var cacheStore respcache.Store = respcache.NewMemoryStore(0)
	if redisClient != nil {
		counterStore = ratelimit.NewRedisCounter(redisClient, "")
		cacheStore = respcache.NewRedisStore(redisClient)
	}

	limiter := ratelimit.New(ratelimit.Config{
		Store:    counterStore,
		Fallback: ratelimit.NewMemoryCounter(0),
		Overrides: []ratelimit.EndpointOverride{
			// Key issuance is deliberately scarce.
			{PathPrefix: "/api/v1/apikeys", Limit: ratelimit.Limit{Requests: 5, Window: 15 * time.Minute}},
		},
		Violations: violationStore,
		Logger:     logger,
		Runner:     runner,
	})

	cache := respcache.New(respcache.Config{
		Store:  cacheStore,
		TTL:    respcache.DefaultTTLConfig(),
		Logger: logger,
		Runner: runner,
	})

	router := buildRouter(routerDeps{
		logger:      logger,
		authn:       authn,
		profiles:    profileStore,
		eval:        eval,
		limiter:     limiter,
		cache:       cache,
		events:      eventsservice.New(eventsrepo.NewPostgresRepository(eventStore)),
		members:     membersservice.New(membersrepo.NewPostgresRepository(profileStore)),
		apikeys:     apikeysservice.New(apikeysrepo.NewPostgresRepository(keyStore)),
		permissions: permissionsservice.New(permissionsrepo.NewPostgresRepository(overrideStore)),
		cacheInval:  respcache.NewInvalidator(cacheStore),
		runner:      runner,
		ready: func(ctx context.Context) error {
			if err := pool.Ping(ctx); err != nil {
				return apierror.New(apierror.CodeServiceUnavailable, "database unreachable").WithCause(err)
			}
			return nil
		},
		requestTimeout: cfg.RequestTimeout,
		metrics:        true,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	go func() {
		logger.Info("starting api server", zap.String("port", cfg.Port))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server listen failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}

	// Let in-flight best-effort writes (usage rows, cache stores) finish.
	runner.Wait()
}
