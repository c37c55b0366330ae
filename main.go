package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"learningcenter_go/config"
	"learningcenter_go/controllers"
	"learningcenter_go/database"
	"learningcenter_go/database/seeders"
	"learningcenter_go/middleware"
	"learningcenter_go/models"
	"learningcenter_go/routes"
	"learningcenter_go/services"
	"learningcenter_go/services/importer"
	"learningcenter_go/services/timetable"
	"learningcenter_go/services/websocket"
	"learningcenter_go/storage"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	setupLogging(cfg)

	db, err := database.Connect(cfg)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}
	redisClient := database.ConnectRedis(cfg)

	if cfg.IsDevelopment() && os.Getenv("SEED") == "true" {
		seeders.SeedAll(db)
		var admin models.User
		if err := db.Where("username = ?", "admin").First(&admin).Error; err == nil {
			if token, err := middleware.GenerateToken(&admin, cfg.JWTSecret, 24*time.Hour); err == nil {
				logrus.WithField("token", token).Info("Development admin token")
			}
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	wsHub := websocket.NewHub()
	go wsHub.Run(ctx)

	uploads, err := storage.New(cfg)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialise upload storage")
	}

	timetableService := timetable.NewService(
		timetable.NewGormStore(db),
		database.NewRedisCache(redisClient),
		cfg.TimetableCacheTTL,
		wsHub,
	)
	importService := importer.NewService(importer.NewGormStore(db), uploads, cfg.MaxFileSize)

	logArchive := services.NewLogArchiveService(cfg, db, redisClient)
	scheduler, err := logArchive.StartLogMaintenance(cfg.LogArchiveCron, cfg.LogArchiveDays)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to start log maintenance")
	}

	// Create Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		// multipart overhead on top of the file itself
		BodyLimit: int(cfg.MaxFileSize) + 64*1024,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(helmet.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,HEAD,PUT,DELETE,PATCH,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization,X-Request-ID",
	}))
	app.Use(middleware.RequestID())
	app.Use(middleware.LoggerMiddleware())

	routes.SetupRoutes(app, routes.Dependencies{
		JWTSecret:  cfg.JWTSecret,
		Users:      database.NewUserStore(db),
		Activity:   middleware.NewActivityLogger(db, redisClient),
		Timetables: controllers.NewTimetableController(timetableService),
		Imports:    controllers.NewStudentImportController(importService),
		Health:     controllers.NewHealthController(services.NewHealthService(cfg, db, redisClient, wsHub)),
		WebSocket:  controllers.NewWebSocketController(wsHub),
	})

	// 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":  "Route not found",
			"path":   c.Path(),
			"method": c.Method(),
		})
	})

	go func() {
		logrus.WithFields(logrus.Fields{
			"port":        cfg.Port,
			"environment": cfg.AppEnv,
			"uploads":     uploads.Backend(),
		}).Info("Learning Center API starting")
		if err := app.Listen(":" + cfg.Port); err != nil {
			logrus.WithError(err).Error("Server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	logrus.Info("Shutting down")

	if err := app.ShutdownWithTimeout(15 * time.Second); err != nil {
		logrus.WithError(err).Warn("HTTP shutdown incomplete")
	}
	<-scheduler.Stop().Done()
	if redisClient != nil {
		redisClient.Close()
	}
	database.Close(db)
}

// setupLogging configures the logging system
func setupLogging(cfg *config.Config) {
	logrus.SetFormatter(&logrus.JSONFormatter{})

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	if cfg.IsDevelopment() {
		logrus.SetOutput(os.Stdout)
		return
	}

	// In production, log to file
	if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0755); err != nil {
		logrus.WithError(err).Warn("Could not create logs directory")
		return
	}
	file, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err == nil {
		logrus.SetOutput(file)
	}
}

// customErrorHandler handles application errors
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	// Check if it's a Fiber error
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	logrus.WithFields(logrus.Fields{
		"error":      err.Error(),
		"request_id": middleware.GetRequestID(c),
		"path":       c.Path(),
		"method":     c.Method(),
		"ip":         c.IP(),
		"status":     code,
	}).Error("Request error")

	return c.Status(code).JSON(fiber.Map{
		"error":  message,
		"code":   code,
		"path":   c.Path(),
		"method": c.Method(),
	})
}
