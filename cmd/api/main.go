package main

import (
	"log"
	"strconv"
	"time"

	config "github.com/anjiri1684/tutor_gateway/configs"
	"github.com/anjiri1684/tutor_gateway/database"
	"github.com/anjiri1684/tutor_gateway/handlers"
	"github.com/anjiri1684/tutor_gateway/jobs"
	"github.com/anjiri1684/tutor_gateway/repository"
	"github.com/anjiri1684/tutor_gateway/routes"
	"github.com/anjiri1684/tutor_gateway/services"
	"github.com/anjiri1684/tutor_gateway/storage"
	"github.com/anjiri1684/tutor_gateway/upstream"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

func main() {
	database.ConnectDB()
	database.Migrate()

	appLog := logrus.New()
	appLog.SetFormatter(&logrus.JSONFormatter{})

	redisDB, _ := strconv.Atoi(config.ConfigOr("REDIS_DB", "0"))
	redisClient := storage.NewRedisClient(
		config.ConfigOr("REDIS_ADDR", "localhost:6379"),
		config.Config("REDIS_PASSWORD"),
		redisDB,
	)
	cache := storage.NewCache(redisClient)

	api := upstream.NewClient(config.Config("MARKETPLACE_API_URL"), appLog)

	sessionRepo := repository.NewSessionRepository(database.DB)
	sessions := services.NewSessionService(sessionRepo, api, appLog)
	activation := services.NewActivationService(api, cache, appLog)
	bookings := services.NewBookingService(api, cache, appLog)

	authHandler := handlers.NewAuthHandler(sessions, activation, bookings, appLog)
	activationHandler := handlers.NewActivationHandler(activation, appLog)
	bookingHandler := handlers.NewBookingHandler(bookings, appLog)

	c := cron.New()
	c.AddFunc("*/15 * * * *", jobs.NewSessionSweeper(sessions, appLog).Run)
	go c.Start()
	log.Println("✅ Cron job for session sweeping scheduled successfully.")

	app := fiber.New(fiber.Config{
		Prefork:       false,
		AppName:       "Tutor Gateway",
		CaseSensitive: true,
		StrictRouting: true,
		ReadTimeout:   15 * time.Second,
		WriteTimeout:  15 * time.Second,
		IdleTimeout:   60 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}

			log.Printf("[ERROR] %v | Path: %s | Method: %s", err, c.Path(), c.Method())
			return c.Status(code).JSON(fiber.Map{
				"status":  "error",
				"code":    code,
				"message": err.Error(),
			})
		},
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins:  config.ConfigOr("CORS_ORIGINS", "*"),
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization",
		AllowMethods:  "GET, POST, PUT, PATCH, DELETE, OPTIONS",
		ExposeHeaders: "Content-Length, Authorization",
		MaxAge:        86400,
	}))

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		TimeFormat: "2006-01-02 15:04:05",
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	routes.AuthRoutes(app, authHandler, sessions)
	routes.ActivationRoutes(app, activationHandler, sessions, activation)
	routes.BookingRoutes(app, bookingHandler, sessions)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
		})
	})

	port := config.ConfigOr("PORT", "8080")
	log.Printf("✅ Gateway is running on port %s", port)
	if err := app.Listen(":" + port); err != nil {
		log.Fatalf("🔥 Server failed to start: %v", err)
	}
}
