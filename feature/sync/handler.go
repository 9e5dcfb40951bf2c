package sync

import (
	"errors"

	"asset-sync/core/logger"
	"asset-sync/core/reconcile"
	"asset-sync/feature/assetstore"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for synchronizations.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the sync routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/sync")
	group.Post("/:project", h.HandleSync)
	group.Get("/:project/report", h.HandleLatestReport)
	group.Get("/:project/reports", h.HandleReportHistory)
	group.Get("/:project/records", h.HandleRecords)
	group.Post("/:project/records/:id/dependents", h.HandleAddDependent)
}

// runResponse is the body returned by HandleSync.
type runResponse struct {
	Report *reconcile.Report `json:"report"`
	Plan   []string          `json:"plan,omitempty"`
}

// HandleSync synchronizes one project.
// @Summary Synchronize Project
// @Description Reconciles the project tree with the destination store. With dry_run the plan is computed but nothing is written.
// @Tags sync
// @Produce json
// @Param project path string true "Project name"
// @Param dry_run query boolean false "Compute the plan only"
// @Success 200 {object} runResponse "Report"
// @Failure 409 {object} runResponse "Another run holds the project"
// @Failure 500 {object} runResponse "Run failed"
// @Router /sync/{project} [post]
func (h *Handler) HandleSync(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)
	project := c.Params("project")
	dryRun := c.QueryBool("dry_run", false)

	l.Info("Synchronization requested", zap.String("project", project), zap.Bool("dry_run", dryRun))
	plan, report := h.service.Run(c.Context(), project, dryRun)

	resp := runResponse{Report: report}
	if plan != nil {
		resp.Plan = plan.Describe()
	}

	switch {
	case report.Success, report.Message == reconcile.MsgProjectIgnored:
		return c.JSON(resp)
	case plan == nil:
		return c.Status(fiber.StatusConflict).JSON(resp)
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(resp)
	}
}

// HandleLatestReport returns the last archived report.
// @Summary Latest Report
// @Tags sync
// @Produce json
// @Param project path string true "Project name"
// @Success 200 {object} reconcile.Report
// @Failure 404 {object} map[string]string "No report"
// @Router /sync/{project}/report [get]
func (h *Handler) HandleLatestReport(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	report, err := h.service.LatestReport(c.Context(), c.Params("project"))
	if errors.Is(err, ErrNoReport) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	}
	if err != nil {
		l.Error("Failed to load report", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(report)
}

// HandleReportHistory lists the archived report keys, oldest first.
// @Summary Report History
// @Tags sync
// @Produce json
// @Param project path string true "Project name"
// @Success 200 {object} map[string]interface{}
// @Router /sync/{project}/reports [get]
func (h *Handler) HandleReportHistory(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	keys, err := h.service.History(c.Context(), c.Params("project"))
	if err != nil {
		l.Error("Failed to list reports", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if keys == nil {
		keys = []string{}
	}
	return c.JSON(fiber.Map{"reports": keys})
}

// HandleRecords lists destination records.
// @Summary List Records
// @Tags sync
// @Produce json
// @Param project path string true "Project name"
// @Param archived query boolean false "List archived records"
// @Success 200 {object} map[string]interface{}
// @Router /sync/{project}/records [get]
func (h *Handler) HandleRecords(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	records, err := h.service.Records(c.Context(), c.Params("project"), c.QueryBool("archived", false))
	if err != nil {
		l.Error("Failed to list records", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"count": len(records), "records": records})
}

// dependentRequest is the body of HandleAddDependent.
type dependentRequest struct {
	Kind string `json:"kind"`
	Name string `json:"name"`
}

// HandleAddDependent registers downstream data against a record. Records with
// dependents can no longer be renamed, moved or archived.
// @Summary Add Dependent
// @Tags sync
// @Accept json
// @Produce json
// @Param project path string true "Project name"
// @Param id path string true "Record id"
// @Success 201 {object} map[string]string
// @Failure 400 {object} map[string]string "Invalid body"
// @Failure 404 {object} map[string]string "Unknown record"
// @Router /sync/{project}/records/{id}/dependents [post]
func (h *Handler) HandleAddDependent(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	var req dependentRequest
	if err := c.BodyParser(&req); err != nil || req.Kind == "" || req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "kind and name are required"})
	}

	project, id := c.Params("project"), c.Params("id")
	err := h.service.AddDependent(c.Context(), project, id, req.Kind, req.Name)
	if errors.Is(err, assetstore.ErrRecordNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	}
	if err != nil {
		l.Error("Failed to add dependent", zap.String("id", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"status": "created", "id": id})
}
