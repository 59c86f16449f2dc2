package system

import (
	"go-kpi/internal/common/api"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type MetricsApi struct{}

func NewMetricsApi() api.Route {
	return &MetricsApi{}
}

// Setup exposes the Prometheus registry at /metrics
func (h *MetricsApi) Setup(app *fiber.App) {
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
}
