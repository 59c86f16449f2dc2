package audit

import (
	"strconv"

	"go-kpi/internal/common/apperr"
	common_models "go-kpi/internal/common/models"

	"github.com/gofiber/fiber/v2"
)

type AuditController struct {
	Service AuditService
}

func NewAuditController(service AuditService) *AuditController {
	return &AuditController{Service: service}
}

// ListLogs godoc
// @Summary List audit logs
// @Description List audit log entries, newest first
// @Tags audit
// @Produce json
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Param module query string false "Collection name"
// @Param record_id query string false "Record ID"
// @Success 200 {array} common_models.AuditLog
// @Failure 403 {object} map[string]interface{}
// @Router /api/audit [get]
func (ctrl *AuditController) ListLogs(c *fiber.Ctx) error {
	page, _ := strconv.ParseInt(c.Query("page", "1"), 10, 64)
	limit, _ := strconv.ParseInt(c.Query("limit", "20"), 10, 64)

	filter := AuditFilter{
		Module:   c.Query("module"),
		RecordID: c.Query("record_id"),
		ActorID:  c.Query("actor_id"),
		Action:   common_models.AuditAction(c.Query("action")),
	}

	logs, err := ctrl.Service.ListLogs(c.UserContext(), filter, page, limit)
	if err != nil {
		return apperr.Respond(c, err)
	}

	return c.JSON(logs)
}
