package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/edirooss/chansync/internal/app"
	"github.com/edirooss/chansync/internal/config"
	"github.com/edirooss/chansync/internal/http/handler"
	mw "github.com/edirooss/chansync/internal/http/middleware"
	"github.com/edirooss/chansync/internal/metrics"
	"github.com/edirooss/chansync/internal/repo"
	"github.com/edirooss/chansync/internal/service"
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/secure"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var configPath = flag.String("config", config.DefaultPath, "path to the YAML config")

func init() {
	// Handle version display
	handleVersion()
}

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	// Read env
	isDev := os.Getenv("ENV") == "dev"

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	cfg.ApplyEnv()

	// Create Zap logger
	log := buildLogger(isDev)
	defer log.Sync()
	log = log.Named("main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Storage
	rdb := buildRedisClient(cfg.RedisAddr, 0)
	defer rdb.Close()
	store := repo.NewRepository(log, rdb, repo.DefaultPrefix)
	store.History.SetSize(cfg.Sync.HistorySize)
	{
		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := store.Client().Ping(pctx)
		cancel()
		if err != nil {
			log.Fatal("redis unreachable", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
	}

	// Engine
	m := metrics.New()
	a, err := app.New(log, cfg, app.RedisStores(store), m)
	if err != nil {
		log.Fatal("engine creation failed", zap.Error(err))
	}

	// Seed file: applied on boot and on every change
	if cfg.SeedFile != "" {
		if err := service.StartSeedSync(ctx, log, a.Stores.SeedProps, a.Stores.SeedChannels, cfg.SeedFile, 0, a.Summary.Invalidate); err != nil {
			log.Fatal("seed sync failed", zap.Error(err))
		}
	}

	// Scheduled syncs
	sched, err := a.Scheduler()
	if err != nil {
		log.Fatal("scheduler creation failed", zap.Error(err))
	}
	sched.Start()

	// Create Gin router
	if !isDev {
		gin.SetMode(gin.ReleaseMode)
	}
	gin.DefaultWriter = zap.NewStdLog(log.Named("gin")).Writer() // Configure Gin's logger to use Zap
	r := gin.New()

	// Apply Gin middlewares
	{
		r.Use(gin.Recovery()) // Recovery first (outermost)
		r.Use(mw.RequestID()) // Attach request ID for tracing; early in the chain so it's available everywhere

		if isDev { // Enable CORS for a local admin UI
			r.Use(cors.New(cors.Config{
				AllowOrigins:     []string{"http://localhost:5173", "http://localhost:3000", "http://127.0.0.1:3000"},
				AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
				AllowHeaders:     []string{"X-Request-ID", "Content-Type"},
				ExposeHeaders:    []string{"X-Request-ID", "X-Total-Count", "X-Cache", "X-Summary-Generated-At", "Location"},
				AllowCredentials: false,
				MaxAge:           12 * time.Hour,
			}))
		} else { // Behind a TLS-terminating proxy
			r.SetTrustedProxies([]string{"127.0.0.1"})
			r.Use(secure.New(secure.Config{
				FrameDeny:          true,
				ContentTypeNosniff: true,
				SSLProxyHeaders: map[string]string{
					"X-Forwarded-Proto": "https",
				},
			}))
		}

		r.Use(mw.AccessLog(log.Named("access"))) // Observability (logger, tracing)
		r.Use(m.GinMiddleware())
		r.Use(mw.LimitConcurrentRequests(cfg.MaxConcurrent))
		r.Use(mw.MaxBodyBytes(10 << 20)) // hard 10MB cap against oversized or drip-fed bodies
	}

	// Register route handlers
	r.GET("/metrics", gin.WrapH(m.Handler()))
	handler.New(log, a.Orchestrator, a.Summary).Register(r)

	httpsrv := &http.Server{
		Addr:              cfg.ListenAddr + ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 2 * time.Second,  // kills header-drip Slowloris
		ReadTimeout:       10 * time.Second, // full request read (incl. body)
		WriteTimeout:      10 * time.Minute, // a sync request stays open for the whole fan-out
		IdleTimeout:       60 * time.Second, // keep-alive cap
		MaxHeaderBytes:    1 << 20,          // 1MB cap
	}

	go func() {
		log.Info("running HTTP server", zap.String("addr", httpsrv.Addr), zap.Strings("connectors", a.Registry.Types()))
		if err := httpsrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	sctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpsrv.Shutdown(sctx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	if err := sched.Stop(sctx); err != nil {
		log.Warn("scheduler shutdown", zap.Error(err))
	}
	log.Info("server closed")
}

// handleVersion prints build metadata and exits when -v/--version is provided.
func handleVersion() {
	v := flag.Bool("v", false, "print version and exit")
	flag.BoolVar(v, "version", false, "print version and exit")
	flag.Parse()

	if *v {
		fmt.Printf("chansync-server %s (commit %s, built %s)\n", config.Version, config.GitCommit, config.BuildDate)
		os.Exit(0)
	}
}

// helpers

func buildLogger(isDev bool) *zap.Logger {
	if !isDev {
		return zap.Must(zap.NewProduction())
	}
	logConfig := zap.NewDevelopmentConfig()
	logConfig.EncoderConfig.TimeKey = ""
	logConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	logConfig.DisableStacktrace = true
	logConfig.DisableCaller = true
	logConfig.Level.SetLevel(zap.DebugLevel)
	return zap.Must(logConfig.Build())
}

func buildRedisClient(addr string, db int) *redis.Client {
	opts := &redis.Options{
		Addr:         addr,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
		MaxRetries:   3,
	}

	return redis.NewClient(opts)
}
