// Package main is the entry point for the HTTP server. It initializes all
// dependencies, sets up routing, and starts the application.
package main

import (
	"log"
	"time"

	"kobopay/internal/config"
	"kobopay/internal/providers/paystack"
	"kobopay/internal/repositories"
	"kobopay/internal/repositories/cache"
	"kobopay/internal/routes"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/redis/go-redis/v9"
)

func main() {
	config.LoadEnv()

	db, err := repositories.Connect(repositories.DBConfigFromEnv())
	if err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				log.Printf("failed to close database connection: %v", err)
			}
		}
	}()
	log.Println("connected to database")

	var redisClient *redis.Client
	if config.GetEnv("REDIS_HOST", "") != "" {
		redisClient = cache.NewRedisClient(&cache.RedisConfig{
			Host:     config.GetEnv("REDIS_HOST", "localhost"),
			Port:     config.GetEnv("REDIS_PORT", "6379"),
			Password: config.GetEnv("REDIS_PASSWORD", ""),
			DB:       config.GetIntEnv("REDIS_DB", 0),
		})
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.Printf("failed to close redis connection: %v", err)
			}
		}()
	}

	provider := paystack.NewClient(paystack.Config{
		BaseURL:        config.GetEnv("PAYSTACK_BASE_URL", ""),
		SecretKey:      config.GetEnv("PAYSTACK_SECRET_KEY", ""),
		Timeout:        config.GetDurationEnv("PAYSTACK_TIMEOUT", 15*time.Second),
		PoolSize:       config.GetIntEnv("PAYSTACK_POOL_SIZE", 4),
		MinCallSpacing: config.GetDurationEnv("PAYSTACK_CALL_SPACING", 100*time.Millisecond),
	})

	app := fiber.New()

	app.Use(cors.New(cors.Config{
		AllowOrigins: config.GetEnv("CORS_ORIGINS", "http://localhost:5173"),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,HEAD,PUT,DELETE,PATCH",
	}))

	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	app.Use("/api/wallet/withdraw", limiter.New(limiter.Config{
		Max:        10,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(429).JSON(fiber.Map{
				"error": "Too many requests. Please try again later.",
			})
		},
	}))

	routes.SetupRoutes(app, db, redisClient, provider)

	log.Fatal(app.Listen(":" + config.GetEnv("PORT", "3000")))
}
