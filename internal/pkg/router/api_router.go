package router

import (
	"strconv"

	"github.com/coverpilothq/coverpilot/app/controllers"
	"github.com/coverpilothq/coverpilot/app/repository"
	"github.com/coverpilothq/coverpilot/internal/pkg/billing"
	"github.com/coverpilothq/coverpilot/internal/pkg/constants"
	"github.com/coverpilothq/coverpilot/internal/pkg/database"
	"github.com/coverpilothq/coverpilot/internal/pkg/env"
	"github.com/coverpilothq/coverpilot/internal/pkg/letters"
	"github.com/coverpilothq/coverpilot/internal/pkg/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	redisstorage "github.com/gofiber/storage/redis"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group(constants.APIRoute, limiter.New(limiter.Config{
		Storage: newLimiterStorage(),
	}))
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	billingSvc := billing.NewServiceFromDB(database.GetDB())
	letterRepo := repository.GetGlobalFactory().GetCoverLetterRepository()

	generator, err := letters.NewOpenAIGeneratorFromEnv()
	if err != nil {
		panic("letter generator is not configured: " + err.Error())
	}
	letterSvc := letters.NewService(letterRepo, billingSvc, generator)

	sc := controllers.NewSubscriptionController(billingSvc, letterRepo, billing.NewPolarClientFromEnv())
	lc := controllers.NewLetterController(letterSvc, letterRepo)

	v1 := api.Group(constants.APIV1Route, middleware.APIKeyAuthMiddleware())
	v1.Get("/subscription", sc.HandleGetStanding)
	v1.Post("/billing/checkout", sc.HandleCreateCheckout)
	v1.Post("/letters", lc.HandleGenerate)
	v1.Get("/letters", lc.HandleList)
	v1.Get("/letters/:uuid", lc.HandleGet)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}

// newLimiterStorage backs the API rate limiter with Redis so limits hold
// across instances.
func newLimiterStorage() *redisstorage.Storage {
	port, err := strconv.Atoi(env.GetEnv("CACHE_PORT", "6379"))
	if err != nil {
		port = 6379
	}
	return redisstorage.New(redisstorage.Config{
		Host: env.GetEnv("CACHE_HOST", "localhost"),
		Port: port,
	})
}
