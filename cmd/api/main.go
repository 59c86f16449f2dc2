package main

import (
	"context"
	"fmt"
	"go-kpi/internal/cache"
	common_api "go-kpi/internal/common/api"
	"go-kpi/internal/common/apperr"
	"go-kpi/internal/config"
	"go-kpi/internal/database"
	"go-kpi/internal/features/access"
	"go-kpi/internal/features/audit"
	"go-kpi/internal/features/auth"
	"go-kpi/internal/features/dashboard"
	"go-kpi/internal/features/integration"
	"go-kpi/internal/features/kpi"
	"go-kpi/internal/features/sharing"
	"go-kpi/internal/features/system"
	"go-kpi/internal/features/user"
	"go-kpi/internal/logger"
	"go-kpi/internal/middleware"
	"log"
	"time"

	_ "go-kpi/docs" // Import swagger docs

	"github.com/gofiber/fiber/v2"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// NewFiberServer creates a new Fiber app instance
func NewFiberServer(cfg *config.Config, log *zap.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if _, ok := apperr.As(err); ok {
				return apperr.Respond(c, err)
			}
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(middleware.CORSMiddleware(cfg.CORSOrigins))
	app.Use(middleware.RequestLogger(log))

	return app
}

// AsRoute is a helper function to reduce boilerplate.
// It tags the constructor so Fx knows to add it to the "routes" group.
func AsRoute(f any) any {
	return fx.Annotate(
		f,
		fx.As(new(common_api.Route)),
		fx.ResultTags(`group:"routes"`),
	)
}

// RegisterAllRoutes calls Setup() on every member of the "routes" group
func RegisterAllRoutes(app *fiber.App, routes []common_api.Route) {
	log.Printf("Registering %d routes...\n", len(routes))
	for i, route := range routes {
		log.Printf("Setting up route %d: %T\n", i+1, route)
		route.Setup(app)
	}
	log.Println("All routes registered successfully")
}

// RegisterAllRoutesWithAnnotation wraps RegisterAllRoutes with fx annotations
var RegisterAllRoutesWithAnnotation = fx.Annotate(
	RegisterAllRoutes,
	fx.ParamTags(``, `group:"routes"`),
)

// StartServer starts Fiber in a goroutine and shuts it down when the app exits
func StartServer(lc fx.Lifecycle, app *fiber.App, cfg *config.Config) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				port := fmt.Sprintf(":%s", cfg.Port)
				if err := app.Listen(port); err != nil {
					log.Fatalf("Server failed to start: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return app.Shutdown()
		},
	})
}

type indexer interface {
	EnsureIndexes(ctx context.Context) error
}

type indexParams struct {
	fx.In

	Users        user.UserRepository
	Access       access.AccessRepository
	Integrations integration.IntegrationRepository
	Fields       integration.FieldRepository
	FieldValues  integration.ValueRepository
	Kpis         kpi.KpiRepository
	KpiValues    kpi.ValueRepository
	Dashboards   dashboard.DashboardRepository
	ShareLinks   sharing.ShareLinkRepository
}

// InitializeIndexes ensures that necessary database indexes are created
func InitializeIndexes(lc fx.Lifecycle, p indexParams, logger *zap.Logger) {
	repos := map[string]indexer{
		"users":        p.Users,
		"access":       p.Access,
		"integrations": p.Integrations,
		"data_fields":  p.Fields,
		"field_values": p.FieldValues,
		"kpis":         p.Kpis,
		"kpi_values":   p.KpiValues,
		"dashboards":   p.Dashboards,
		"share_links":  p.ShareLinks,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()

				for name, repo := range repos {
					if err := repo.EnsureIndexes(ctx); err != nil {
						logger.Error("Failed to ensure indexes", zap.String("collection", name), zap.Error(err))
					}
				}
			}()
			return nil
		},
	})
}

// StartSyncScheduler registers scheduled API syncs once the app is up
func StartSyncScheduler(lc fx.Lifecycle, scheduler *integration.SyncScheduler, integrationService integration.IntegrationService) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return scheduler.Start(ctx, integrationService)
		},
		OnStop: func(ctx context.Context) error {
			scheduler.Stop()
			return nil
		},
	})
}

func main() {
	app := fx.New(
		fx.Provide(
			// Load Config
			config.LoadConfig,

			// Initialize Logger
			logger.NewLogger,

			// Initialize Fiber Server
			NewFiberServer,

			// Initialize Database
			database.NewDatabase,
			cache.NewCache,

			// Initialize Repository
			audit.NewAuditRepository,
			user.NewUserRepository,
			access.NewAccessRepository,
			integration.NewIntegrationRepository,
			integration.NewFieldRepository,
			integration.NewValueRepository,
			kpi.NewKpiRepository,
			kpi.NewValueRepository,
			dashboard.NewDashboardRepository,
			sharing.NewShareLinkRepository,

			// Narrow interfaces between features
			func(r user.UserRepository) audit.UserFinder { return r },
			func(r user.UserRepository) access.UserFinder { return r },
			func(r sharing.ShareLinkRepository) access.LinkCleaner { return r },
			func(s kpi.KpiService) integration.KpiDependencies { return s },
			func(s kpi.KpiService) dashboard.KpiReader { return s },
			func(s kpi.KpiService) sharing.KpiSource { return s },
			func(s dashboard.DashboardService) sharing.DashboardSource { return s },

			// Initialize Service
			audit.NewAuditService,
			user.NewUserService,
			auth.NewAuthService,
			access.NewAccessService,
			integration.NewFetchers,
			integration.NewSyncScheduler,
			integration.NewIntegrationService,
			kpi.NewKpiService,
			dashboard.NewDashboardService,
			sharing.NewShareService,
			system.NewMongoPinger,

			// Initialize Controller
			audit.NewAuditController,
			user.NewUserController,
			auth.NewAuthController,
			integration.NewIntegrationController,
			kpi.NewKpiController,
			dashboard.NewDashboardController,
			sharing.NewShareController,
			system.NewHealthController,

			// Initialize Routes
			AsRoute(auth.NewAuthApi),
			AsRoute(user.NewUserApi),
			AsRoute(audit.NewAuditApi),
			AsRoute(integration.NewIntegrationApi),
			AsRoute(kpi.NewKpiApi),
			AsRoute(dashboard.NewDashboardApi),
			AsRoute(sharing.NewShareApi),
			AsRoute(system.NewHealthApi),
			AsRoute(system.NewMetricsApi),
			AsRoute(system.NewSwaggerApi),
		),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
		fx.Invoke(
			// Register Routes & Start
			RegisterAllRoutesWithAnnotation,
			StartServer,
			StartSyncScheduler,
			InitializeIndexes,
		),
	)

	app.Run()
}
