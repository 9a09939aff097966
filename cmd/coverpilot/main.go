package main

import (
	"fmt"
	"log"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/coverpilothq/coverpilot/app/repository"
	"github.com/coverpilothq/coverpilot/internal/pkg/cache"
	"github.com/coverpilothq/coverpilot/internal/pkg/database"
	"github.com/coverpilothq/coverpilot/internal/pkg/env"
	"github.com/coverpilothq/coverpilot/internal/pkg/metrics/counter"
	"github.com/coverpilothq/coverpilot/internal/pkg/router"
)

const counterFlushInterval = 60 * time.Second

func main() {
	app := NewApplication()

	go flushCounters()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()
	repository.InitializeFactory(database.GetDB())

	app := fiber.New(fiber.Config{
		BodyLimit: 1048576, // 1 MiB, webhook payloads and letter inputs are small
	})
	app.Use(recover.New(), logger.New())
	app.Get("/metrics", monitor.New())

	// SWAGGER / OPENAPI
	openAPICfg := swagger.Config{
		BasePath: "/docs/api/",
		FilePath: "./public/docs/v1/openapi.yml",
		Path:     "v1",
	}
	app.Use(swagger.New(openAPICfg))

	// ROUTER
	router.InstallRouter(app)

	return app
}

// flushCounters periodically drains buffered generation counters to MySQL.
func flushCounters() {
	ticker := time.NewTicker(counterFlushInterval)
	defer ticker.Stop()
	for range ticker.C {
		if err := counter.FlushAll(); err != nil {
			log.Printf("Counter flush error: %v", err)
		}
	}
}
