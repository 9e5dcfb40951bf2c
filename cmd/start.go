package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"asset-sync/core/config"
	"asset-sync/core/database"
	"asset-sync/core/loader"
	"asset-sync/core/logger"
	"asset-sync/core/middleware/auth"
	"asset-sync/core/middleware/rayid"
	"asset-sync/core/reconcile"
	"asset-sync/core/storage"
	"asset-sync/feature/assetstore"
	"asset-sync/feature/sourcetree"
	syncfeature "asset-sync/feature/sync"

	_ "asset-sync/docs/swagger"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/swagger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// @title Asset Sync API
// @version 1.0
// @description API for synchronizing project trees with the asset database.
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the sync server",
	Long: `Starts the HTTP server and initializes all enabled features.
The project tree is read from SYNC_SOURCE_PATH and written back after every run.`,
	Run: func(cmd *cobra.Command, args []string) {
		// 1. Load Configuration
		cfg, err := config.LoadConfig(configDir)
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}

		// 2. Initialize Logger
		logg, err := logger.New(&cfg.Log)
		if err != nil {
			log.Fatalf("Failed to initialize logger: %v", err)
		}
		defer logg.Sync()
		zap.ReplaceGlobals(logg)

		// 3. Connect to the asset database (required)
		db, err := database.Connect(cfg.Database)
		if err != nil {
			logg.Fatal("Database connection failed", zap.Error(err))
		}
		store := assetstore.NewStore(db, logg)
		if err := checkSchema(store, logg, false); err != nil {
			logg.Fatal("Asset database not ready", zap.Error(err))
		}

		// 4. Open the project tree
		if cfg.Sync.SourcePath == "" {
			logg.Fatal("SYNC_SOURCE_PATH is required")
		}
		tree, err := sourcetree.Open(cfg.Sync.SourcePath, logg)
		if err != nil {
			logg.Fatal("Failed to open project tree", zap.Error(err))
		}

		opts, err := cfg.Sync.Options()
		if err != nil {
			logg.Fatal("Invalid sync configuration", zap.Error(err))
		}
		engine, err := reconcile.NewEngine(tree, store, logg, opts)
		if err != nil {
			logg.Fatal("Failed to create engine", zap.Error(err))
		}

		// 5. Initialize Storage (report archive is optional)
		var client storage.Client
		if c, err := storage.NewClient(cfg.Storage); err != nil {
			logg.Warn("Report archive disabled", zap.Error(err))
		} else if err := storage.EnsureBucket(context.Background(), c, cfg.Storage.Bucket, cfg.Storage.Region); err != nil {
			logg.Warn("Report archive disabled", zap.Error(err))
		} else {
			client = c
		}

		app := fiber.New(fiber.Config{
			DisableStartupMessage: true,
		})

		// 6. Initialize Feature Loader
		mgr := loader.NewManager(logg)
		mgr.Register(syncfeature.NewFeature(engine, store, client, syncfeature.Options{
			Bucket:    cfg.Storage.Bucket,
			Prefix:    cfg.Sync.ReportPrefix,
			Retention: cfg.Sync.ReportRetention,
		}, logg))

		// RayID must be first to trace everything
		app.Use(rayid.New())

		app.Use(func(c *fiber.Ctx) error {
			l := logger.WithRayID(logg, c)
			l.Info("Request started",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.String("ip", c.IP()),
			)
			err := c.Next()
			if err != nil {
				l.Error("Request error", zap.Error(err))
			}
			return err
		})

		// Routes registered before auth stay public.
		app.Get("/swagger/*", swagger.HandlerDefault)

		var public []string
		if cfg.Server.MetricsPath != "" {
			app.Get(cfg.Server.MetricsPath, adaptor.HTTPHandler(promhttp.Handler()))
			public = append(public, cfg.Server.MetricsPath)
		}

		app.Use(auth.New(auth.Config{ApiKey: cfg.Server.ApiKey, Skip: public}))

		if err := mgr.LoadAll(app); err != nil {
			logg.Fatal("Failed to load features", zap.Error(err))
		}

		go func() {
			logg.Info("Starting server", zap.String("addr", cfg.Server.Addr()))
			if err := app.Listen(cfg.Server.Addr()); err != nil {
				logg.Fatal("Server failed to start", zap.Error(err))
			}
		}()

		// Graceful Shutdown
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c
		logg.Info("Shutting down server...")
		_ = app.Shutdown()
	},
}

func init() {
	RootCmd.AddCommand(startCmd)
}
