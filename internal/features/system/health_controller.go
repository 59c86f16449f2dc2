package system

import (
	"context"
	"time"

	"go-kpi/internal/database"

	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// Pinger checks a backing store
type Pinger interface {
	Ping(ctx context.Context) error
}

type mongoPinger struct {
	db *database.MongodbDB
}

func (p mongoPinger) Ping(ctx context.Context) error {
	return p.db.DB.Client().Ping(ctx, readpref.Primary())
}

func NewMongoPinger(db *database.MongodbDB) Pinger {
	return mongoPinger{db: db}
}

type HealthController struct {
	DB     Pinger
	Logger *zap.Logger

	started time.Time
}

func NewHealthController(db Pinger, logger *zap.Logger) *HealthController {
	return &HealthController{DB: db, Logger: logger, started: time.Now()}
}

// Health godoc
// @Summary      Service health
// @Description  Reports whether the database answers a ping
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      503  {object}  map[string]interface{}
// @Router       /api/health [get]
func (h *HealthController) Health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	status, dbState := "ok", "up"
	code := fiber.StatusOK
	if err := h.DB.Ping(ctx); err != nil {
		h.Logger.Warn("Health check failed", zap.Error(err))
		status, dbState = "degraded", "down"
		code = fiber.StatusServiceUnavailable
	}

	return c.Status(code).JSON(fiber.Map{
		"status":   status,
		"database": dbState,
		"uptime":   time.Since(h.started).Round(time.Second).String(),
	})
}
