package main

import (
	"fmt"
	"log"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/plexora/meterpay/app/controllers"
	"github.com/plexora/meterpay/app/repository"
	"github.com/plexora/meterpay/internal/pkg/cache"
	"github.com/plexora/meterpay/internal/pkg/chain"
	"github.com/plexora/meterpay/internal/pkg/database"
	"github.com/plexora/meterpay/internal/pkg/env"
	"github.com/plexora/meterpay/internal/pkg/router"
	"github.com/plexora/meterpay/internal/pkg/s3archive"
	"github.com/plexora/meterpay/internal/pkg/settlement"
	"github.com/plexora/meterpay/internal/pkg/stripe"
)

func main() {
	app := NewApplication()
	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	repository.InitializeFactory(database.GetDB())
	repos := repository.GetGlobalRepositories()

	provider := stripe.NewClientFromEnv()
	if !provider.Configured() {
		if !env.IsDev() {
			log.Fatal("STRIPE_SECRET_KEY is required outside development")
		}
		log.Println("STRIPE_SECRET_KEY not set; provider calls will fail until configured")
	}

	rail, err := chain.NewRailFromEnv()
	if err != nil {
		log.Fatalf("settlement rail setup failed: %v", err)
	}
	log.Printf("settlement rail running in %s mode", rail.Mode())

	svc := settlement.NewService(repos, provider, rail)
	if cfg := s3archive.LoadConfig(); cfg.IsEnabled() {
		archiver, err := s3archive.NewClient(cfg)
		if err != nil {
			log.Fatalf("payload archive setup failed: %v", err)
		}
		svc = svc.WithArchiver(archiver)
	}
	controllers.SetSettlementService(svc)

	// init fiber app
	app := fiber.New(fiber.Config{
		AppName: "meterpay",
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics
	app.Get("/metrics", basicauth.New(basicauth.Config{
		Users: map[string]string{
			"admin": env.GetEnv("METRICS_PASSWORD", "test"),
		},
	}), monitor.New())

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
