package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"relation-manager/core/database"
	"relation-manager/core/loader"
	"relation-manager/core/logger"
	"relation-manager/core/middleware/auth"
	"relation-manager/core/middleware/rayid"
	"relation-manager/feature/relations"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the relation inspection server",
	Long:  `Starts the HTTP server and initializes all enabled features.`,
	Run: func(cmd *cobra.Command, args []string) {
		// 1. Configuration, logger, database and relation service
		env, err := bootstrap(false)
		if err != nil {
			log.Fatalf("Failed to initialize: %v", err)
		}
		logg := env.logger
		defer logg.Sync()
		zap.ReplaceGlobals(logg)

		// 2. Report mappings the schema does not satisfy
		for _, m := range env.mappings {
			missing, err := database.ValidateMapping(env.db, m)
			if err != nil {
				logg.Warn("Relation mapping check failed", zap.String("relation", m.Name), zap.Error(err))
			} else if len(missing) > 0 {
				logg.Warn("Relation mapping references missing columns", zap.String("relation", m.Name), zap.Strings("missing", missing))
			}
		}

		// 3. Snapshot bucket
		if env.store != nil {
			if err := env.store.EnsureBucket(context.Background()); err != nil {
				logg.Warn("Snapshot bucket unavailable", zap.Error(err))
			}
		}

		// 4. Initialize Fiber App
		app := fiber.New(fiber.Config{
			DisableStartupMessage: true, // We will log our own startup message
		})

		// 5. Initialize Feature Loader
		mgr := loader.NewManager()
		mgr.Register(relations.NewFeature(env.service))

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

		if !env.cfg.Server.IsProtected() {
			logg.Warn("Server API key is empty, requests are not authenticated")
		}
		app.Use(auth.New(auth.Config{ApiKey: env.cfg.Server.ApiKey}))

		// 6. Load Features
		if err := mgr.LoadAll(app); err != nil {
			logg.Fatal("Failed to load features", zap.Error(err))
		}

		// 7. Start Server
		go func() {
			logg.Info("Starting server", zap.String("port", env.cfg.Server.Port))
			if err := app.Listen(env.cfg.Server.Address()); err != nil {
				logg.Fatal("Server failed to start", zap.Error(err))
			}
		}()

		// 8. Graceful Shutdown
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c
		logg.Info("Shutting down server...")
		_ = app.Shutdown()
	},
}

func init() {
	RootCmd.AddCommand(serveCmd)
}
