package main

import (
	"context"
	"os"
	"time"

	"go-kpi/internal/cache"
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
	"go-kpi/internal/features/user"
	"go-kpi/internal/features/widget"
	"go-kpi/internal/logger"
	"go-kpi/pkg/utils"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

type seedParams struct {
	fx.In

	Users        user.UserRepository
	Auth         auth.AuthService
	Integrations integration.IntegrationService
	Kpis         kpi.KpiService
	Dashboards   dashboard.DashboardService
	Logger       *zap.Logger
	Shutdowner   fx.Shutdowner
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Seed creates an admin user and a small demo workspace: one manual
// integration with a revenue field, thirty days of values, a KPI over it
// and a dashboard showing that KPI.
func Seed(lc fx.Lifecycle, p seedParams) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			go func() {
				defer func() {
					if err := p.Shutdowner.Shutdown(); err != nil {
						p.Logger.Error("Failed to shutdown", zap.Error(err))
					}
				}()

				ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
				defer cancel()

				if err := run(ctx, p); err != nil {
					p.Logger.Error("Seeding failed", zap.Error(err))
					return
				}
				p.Logger.Info("Seeding completed")
			}()
			return nil
		},
	})
}

func run(ctx context.Context, p seedParams) error {
	email := getEnv("SEED_ADMIN_EMAIL", "admin@example.com")
	password := getEnv("SEED_ADMIN_PASSWORD", "admin12345")

	if _, err := p.Users.FindByEmail(ctx, email); err == nil {
		p.Logger.Info("Admin exists, skipping", zap.String("email", email))
		return nil
	} else if !apperr.Is(err, apperr.KindNotFound) {
		return err
	}

	admin, err := p.Auth.Register(ctx, email, password, "Admin")
	if err != nil {
		return err
	}
	p.Logger.Info("Created user", zap.String("email", email), zap.String("role", string(admin.Role)))

	// Everything below runs as the new user
	ctx = utils.WithClaims(ctx, &utils.UserClaims{UserID: admin.ID.Hex(), Role: string(admin.Role)})

	src, err := p.Integrations.Create(ctx, integration.CreateIntegrationRequest{
		Name: "Sales spreadsheet",
		Type: integration.TypeManual,
	})
	if err != nil {
		return err
	}

	field, err := p.Integrations.CreateField(ctx, src.ID.Hex(), integration.CreateFieldRequest{
		SourceField: "revenue",
		TargetField: "revenue",
		FieldType:   integration.FieldNumber,
	})
	if err != nil {
		return err
	}

	now := time.Now().UTC().Truncate(time.Hour)
	values := make([]integration.ValueInput, 0, 30)
	for day := 29; day >= 0; day-- {
		ts := now.AddDate(0, 0, -day)
		values = append(values, integration.ValueInput{Timestamp: &ts, Value: 1000 + float64(29-day)*25})
	}
	recorded, err := p.Integrations.AddValues(ctx, src.ID.Hex(), field.ID.Hex(), values)
	if err != nil {
		return err
	}
	p.Logger.Info("Recorded values", zap.String("field", field.TargetField), zap.Int("count", recorded))

	name := "Daily revenue"
	formula := "revenue"
	unit := "USD"
	format := kpi.FormatCurrency
	target := 1500.0
	direction := kpi.DirectionIncrease
	sources := []kpi.KpiSource{{DataFieldID: field.ID, Alias: "revenue", Aggregation: integration.AggLast}}
	revenue, err := p.Kpis.Create(ctx, kpi.KpiRequest{
		Name:            &name,
		Formula:         &formula,
		Sources:         &sources,
		Unit:            &unit,
		Format:          &format,
		TargetValue:     &target,
		TargetDirection: &direction,
	})
	if err != nil {
		return err
	}

	dashName := "Sales overview"
	refresh := dashboard.Refresh1m
	board, err := p.Dashboards.CreateDashboard(ctx, dashboard.DashboardRequest{Name: &dashName, RefreshInterval: &refresh})
	if err != nil {
		return err
	}

	kpiID := revenue.ID.Hex()
	widgets := []struct {
		typ      widget.WidgetType
		title    string
		position widget.Position
	}{
		{widget.TypeStat, "Revenue", widget.Position{X: 0, Y: 0, W: 4, H: 3}},
		{widget.TypeGauge, "Revenue vs target", widget.Position{X: 4, Y: 0, W: 4, H: 3}},
		{widget.TypeLine, "Revenue trend", widget.Position{X: 0, Y: 3, W: 8, H: 4}},
	}
	for _, w := range widgets {
		typ, title, position := w.typ, w.title, w.position
		if _, err := p.Dashboards.AddWidget(ctx, board.ID.Hex(), widget.WidgetRequest{
			Type:     &typ,
			Title:    &title,
			KpiID:    &kpiID,
			Position: &position,
		}); err != nil {
			return err
		}
	}
	p.Logger.Info("Created dashboard", zap.String("dashboard", board.ID.Hex()))
	return nil
}

func main() {
	app := fx.New(
		fx.Provide(
			config.LoadConfig,
			logger.NewLogger,
			database.NewDatabase,
			cache.NewCache,

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

			func(r user.UserRepository) audit.UserFinder { return r },
			func(r user.UserRepository) access.UserFinder { return r },
			func(r sharing.ShareLinkRepository) access.LinkCleaner { return r },
			func(s kpi.KpiService) integration.KpiDependencies { return s },
			func(s kpi.KpiService) dashboard.KpiReader { return s },

			audit.NewAuditService,
			auth.NewAuthService,
			access.NewAccessService,
			integration.NewFetchers,
			integration.NewSyncScheduler,
			integration.NewIntegrationService,
			kpi.NewKpiService,
			dashboard.NewDashboardService,
		),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
		fx.Invoke(Seed),
	)

	app.Run()
}
