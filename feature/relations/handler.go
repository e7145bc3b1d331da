package relations

import (
	"errors"
	"strings"

	"relation-manager/core/endpoint"
	"relation-manager/core/logger"
	"relation-manager/core/storage"
	"relation-manager/core/transaction"
	"relation-manager/core/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for relation inspection.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the relation routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/relations")
	group.Get("/", h.HandleListRelations)
	group.Delete("/:relation/snapshots", h.HandlePurgeSnapshots)
	group.Get("/:relation/:class/:id", h.HandleCheck)
	group.Post("/:relation/:class/:id/snapshot", h.HandleSnapshot)
	group.Get("/:relation/:class/:id/snapshot", h.HandleRestore)
	group.Delete("/:relation/:class/:id/snapshot", h.HandleDeleteSnapshot)
	group.Get("/:relation/:class/:id/drift", h.HandleDrift)
}

// HandleListRelations lists the configured relations.
// @Summary List Relations
// @Tags relations
// @Produce json
// @Success 200 {array} map[string]string "Relations"
// @Router /relations [get]
func (h *Handler) HandleListRelations(c *fiber.Ctx) error {
	out := make([]fiber.Map, 0, len(h.service.Relations()))
	for _, def := range h.service.Relations() {
		out = append(out, fiber.Map{
			"name":          def.Name,
			"real_class":    def.RealClass,
			"virtual_class": def.VirtualClass,
			"cardinality":   def.Cardinality.String(),
		})
	}
	return c.JSON(out)
}

// HandleCheck loads an end-point and reports its synchronization.
// @Summary Check Relation End-Point
// @Description Loads the virtual end-point of an object. Claimed items are registered as foreign keys before loading.
// @Tags relations
// @Produce json
// @Param claim query string false "Comma separated Class|uuid objects claimed to reference the owner"
// @Param synchronize query boolean false "Synchronize claimed items into the data"
// @Success 200 {object} Report
// @Failure 400 {object} map[string]string "Bad Request"
// @Failure 404 {object} map[string]string "Unknown relation"
// @Router /relations/{relation}/{class}/{id} [get]
func (h *Handler) HandleCheck(c *fiber.Ctx) error {
	owner, err := ownerFromParams(c)
	if err != nil {
		return h.fail(c, err)
	}
	claimed, err := parseClaims(c.Query("claim"))
	if err != nil {
		return h.fail(c, err)
	}

	report, err := h.service.Check(c.Context(), CheckRequest{
		Relation:    c.Params("relation"),
		Owner:       owner,
		Claimed:     claimed,
		Synchronize: utils.ToBool(c.Query("synchronize")),
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(report)
}

// HandleSnapshot stores the load state of an end-point.
// @Summary Snapshot Relation End-Point
// @Tags relations
// @Produce json
// @Success 201 {object} map[string]interface{} "Key and report"
// @Failure 503 {object} map[string]string "Snapshots disabled"
// @Router /relations/{relation}/{class}/{id}/snapshot [post]
func (h *Handler) HandleSnapshot(c *fiber.Ctx) error {
	owner, err := ownerFromParams(c)
	if err != nil {
		return h.fail(c, err)
	}
	report, key, err := h.service.Snapshot(c.Context(), c.Params("relation"), owner)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"key":    key,
		"report": report,
	})
}

// HandleRestore reports a stored snapshot.
// @Summary Restore Relation Snapshot
// @Tags relations
// @Produce json
// @Success 200 {object} Report
// @Failure 404 {object} map[string]string "Snapshot not found"
// @Router /relations/{relation}/{class}/{id}/snapshot [get]
func (h *Handler) HandleRestore(c *fiber.Ctx) error {
	owner, err := ownerFromParams(c)
	if err != nil {
		return h.fail(c, err)
	}
	report, err := h.service.Restore(c.Context(), c.Params("relation"), owner)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(report)
}

// HandleDeleteSnapshot removes a stored snapshot.
// @Summary Delete Relation Snapshot
// @Tags relations
// @Success 204
// @Router /relations/{relation}/{class}/{id}/snapshot [delete]
func (h *Handler) HandleDeleteSnapshot(c *fiber.Ctx) error {
	owner, err := ownerFromParams(c)
	if err != nil {
		return h.fail(c, err)
	}
	if err := h.service.DeleteSnapshot(c.Context(), c.Params("relation"), owner); err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// HandlePurgeSnapshots removes all stored snapshots of a relation.
// @Summary Purge Relation Snapshots
// @Tags relations
// @Produce json
// @Success 200 {object} map[string]interface{} "Removed count"
// @Router /relations/{relation}/snapshots [delete]
func (h *Handler) HandlePurgeSnapshots(c *fiber.Ctx) error {
	n, err := h.service.PurgeSnapshots(c.Context(), c.Params("relation"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"removed": n})
}

// HandleDrift compares a stored snapshot with the database.
// @Summary Relation Drift
// @Tags relations
// @Produce json
// @Success 200 {object} reconcile.ReconcileReport
// @Failure 404 {object} map[string]string "Snapshot not found"
// @Router /relations/{relation}/{class}/{id}/drift [get]
func (h *Handler) HandleDrift(c *fiber.Ctx) error {
	owner, err := ownerFromParams(c)
	if err != nil {
		return h.fail(c, err)
	}
	report, err := h.service.Drift(c.Context(), c.Params("relation"), owner)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(report)
}

func (h *Handler) fail(c *fiber.Ctx, err error) error {
	status := statusFor(err)
	if status >= fiber.StatusInternalServerError {
		logger.WithRayID(h.service.logger, c).Error("Relation request failed", zap.Error(err))
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, transaction.ErrUnknownRelation), errors.Is(err, storage.ErrSnapshotNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, endpoint.ErrInvalidArgument):
		return fiber.StatusBadRequest
	case errors.Is(err, endpoint.ErrInvalidOperation):
		return fiber.StatusConflict
	case errors.Is(err, ErrSnapshotsDisabled):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

func ownerFromParams(c *fiber.Ctx) (endpoint.ObjectID, error) {
	value, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return endpoint.NilObjectID, errors.Join(endpoint.ErrInvalidArgument, err)
	}
	return endpoint.NewObjectID(c.Params("class"), value)
}

func parseClaims(raw string) ([]endpoint.ObjectID, error) {
	if raw == "" {
		return nil, nil
	}
	var claimed []endpoint.ObjectID
	for _, part := range strings.Split(raw, ",") {
		id, err := endpoint.ParseObjectID(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		claimed = append(claimed, id)
	}
	return claimed, nil
}
