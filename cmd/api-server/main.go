package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"animehub/internal/catalog"
	"animehub/internal/grpcserver"
	"animehub/internal/session"
	synchub "animehub/internal/sync"
	"animehub/internal/watchlist"
	"animehub/pkg/database"
	"animehub/pkg/utils"
)

func main() {
	configPath := flag.String("config", "", "path to animehub.yaml")
	flag.Parse()

	cfg, err := utils.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
	logger.Info("servers stopped")
}

func run(cfg utils.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cache := catalog.NewCache(cfg.Catalog.CacheTTL, logger.Named("catalog"))
	src := catalog.FileSource{Path: cfg.Catalog.Path, Cache: cache}

	// Fail fast on a missing or unusable catalog.
	entries, err := src.Catalog()
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	logger.Info("catalog ready", zap.String("path", cfg.Catalog.Path), zap.Int("rows", len(entries)))

	backend, db, err := openBackend(cfg, logger)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}
	stores := watchlist.NewRegistry(backend, cfg.Watchlist.MaxOpen, logger.Named("watchlist"))

	hub := synchub.NewHub(logger.Named("sync"))
	tcpSrv := synchub.NewServer(cfg.SyncAddr, hub, logger.Named("sync"))

	tokens := session.TokenService{
		Secret:   []byte(cfg.Session.Secret),
		Issuer:   cfg.Session.Issuer,
		Duration: cfg.Session.Duration,
	}

	router := newRouter(cfg, src, stores, hub, tokens, db, logger)
	httpSrv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return tcpSrv.Run(gctx)
	})

	g.Go(func() error {
		logger.Info("HTTP API server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if cfg.GRPCAddr != "" {
		svc := grpcserver.NewServer(src, stores, tokens, hub, logger.Named("grpc"))
		grpcSrv := grpcserver.NewGRPCServer(svc)
		g.Go(func() error {
			lis, err := net.Listen("tcp", cfg.GRPCAddr)
			if err != nil {
				return fmt.Errorf("grpc listen: %w", err)
			}
			logger.Info("gRPC server listening", zap.String("addr", cfg.GRPCAddr))
			if err := grpcSrv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			grpcSrv.GracefulStop()
			return nil
		})
	}

	if cfg.Catalog.Watch {
		g.Go(func() error {
			if err := cache.Watch(gctx, cfg.Catalog.Path); err != nil {
				// The cache still expires by TTL without the watcher.
				logger.Warn("catalog watcher disabled", zap.Error(err))
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down servers")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		hub.CloseAll()
		return httpSrv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func openBackend(cfg utils.Config, logger *zap.Logger) (watchlist.Backend, *sql.DB, error) {
	switch cfg.Watchlist.Backend {
	case "sqlite":
		db, err := database.Open(cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		if err := database.Migrate(db); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("db migrate: %w", err)
		}
		logger.Info("watchlist backend", zap.String("backend", "sqlite"), zap.String("db", cfg.Database.Path))
		return watchlist.NewSQLRepo(db), db, nil
	default:
		if err := os.MkdirAll(cfg.Watchlist.Dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create watchlist dir: %w", err)
		}
		logger.Info("watchlist backend", zap.String("backend", "csv"), zap.String("dir", cfg.Watchlist.Dir))
		return watchlist.CSVDir{Dir: cfg.Watchlist.Dir}, nil, nil
	}
}

func newRouter(
	cfg utils.Config,
	src catalog.Source,
	stores *watchlist.Registry,
	hub *synchub.Hub,
	tokens session.TokenService,
	db *sql.DB,
	logger *zap.Logger,
) *gin.Engine {
	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger.Named("http")))
	_ = router.SetTrustedProxies([]string{"127.0.0.1"})

	router.GET("/ws", synchub.WSHandler(hub))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "catalog": cfg.Catalog.Path})
	})

	router.GET("/ready", func(c *gin.Context) {
		stats := hub.Stats()
		rows, err := src.Catalog()
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "catalog_error": err.Error()})
			return
		}
		if db != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "db_error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"status":       "ready",
			"catalog_rows": len(rows),
			"tcp_clients":  stats.TCPClients,
			"ws_clients":   stats.WSClients,
		})
	})

	catalog.NewHandler(src, logger.Named("catalog")).RegisterRoutes(router.Group("/anime"))
	session.NewHandler(tokens).RegisterRoutes(router.Group("/session"))

	protected := router.Group("")
	protected.Use(session.Middleware(tokens))
	watchlist.NewHandler(stores, src, hub, logger.Named("watchlist")).RegisterRoutes(protected)

	return router
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
