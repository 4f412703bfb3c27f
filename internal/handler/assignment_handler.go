package handler

import (
	"errors"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/classpulse/classpulse-api/internal/dto"
	"github.com/classpulse/classpulse-api/internal/service"
	"github.com/classpulse/classpulse-api/internal/utils"
)

// AssignmentHandler wires assignment HTTP routes.
type AssignmentHandler struct {
	service   service.AssignmentService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewAssignmentHandler constructs the handler.
func NewAssignmentHandler(service service.AssignmentService, validator *validator.Validate, logger zerolog.Logger) *AssignmentHandler {
	return &AssignmentHandler{
		service:   service,
		validator: validator,
		logger:    logger.With().Str("component", "assignment_handler").Logger(),
	}
}

// Register attaches assignment endpoints to the router group.
// Register attaches assignment routes. Mutations go through mutationGuard
// when one is provided; reads stay open to any authenticated user.
func (h *AssignmentHandler) Register(router fiber.Router, mutationGuard fiber.Handler) {
	if mutationGuard == nil {
		mutationGuard = func(c *fiber.Ctx) error { return c.Next() }
	}

	router.Get("", h.list)
	router.Get("/:id", h.get)
	router.Post("", mutationGuard, h.create)
	router.Patch("/:id", mutationGuard, h.update)
	router.Patch("/:id/status", mutationGuard, h.setStatus)
	router.Delete("/:id", mutationGuard, h.delete)
}

func (h *AssignmentHandler) list(c *fiber.Ctx) error {
	query := dto.AssignmentListQuery{}
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	assignments, pagination, err := h.service.List(c.Context(), query)
	if err != nil {
		if isValidationError(err) {
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		}
		return h.internalError(c, err)
	}

	return utils.SendSuccess(c, "assignments retrieved", fiber.Map{
		"items":      assignments,
		"pagination": pagination,
	})
}

func (h *AssignmentHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	assignment, err := h.service.Get(c.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrAssignmentNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "assignment not found")
		}
		return h.internalError(c, err)
	}

	return utils.SendSuccess(c, "assignment retrieved", assignment)
}

func (h *AssignmentHandler) create(c *fiber.Ctx) error {
	payload := dto.AssignmentCreateRequest{
		Title:       c.FormValue("title"),
		Description: c.FormValue("description"),
		Type:        c.FormValue("type"),
		DueDate:     c.FormValue("due_date"),
	}
	if classID, err := strconv.ParseUint(c.FormValue("class_id"), 10, 64); err == nil {
		payload.ClassID = uint(classID)
	}
	if categoryID, err := strconv.ParseUint(c.FormValue("category_id"), 10, 64); err == nil {
		payload.CategoryID = uint(categoryID)
	}
	if points, err := strconv.ParseFloat(c.FormValue("total_points"), 64); err == nil {
		payload.TotalPoints = points
	}
	if lateAllowed, err := strconv.ParseBool(c.FormValue("late_allowed")); err == nil {
		payload.LateAllowed = lateAllowed
	}
	if penalty, err := strconv.ParseFloat(c.FormValue("late_penalty_per_day"), 64); err == nil {
		payload.LatePenaltyPerDay = penalty
	}
	if publishAt := c.FormValue("publish_at"); publishAt != "" {
		payload.PublishAt = &publishAt
	}

	file, err := c.FormFile("file")
	if err != nil {
		file = nil
	}

	assignment, err := h.service.Create(c.Context(), payload, file, activityActorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "assignment created", assignment)
}

func (h *AssignmentHandler) update(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	payload := dto.AssignmentUpdateRequest{}
	if title := c.FormValue("title"); title != "" {
		payload.Title = &title
	}
	if description := c.FormValue("description"); description != "" {
		payload.Description = &description
	}
	if assignmentType := c.FormValue("type"); assignmentType != "" {
		payload.Type = &assignmentType
	}
	if due := c.FormValue("due_date"); due != "" {
		payload.DueDate = &due
	}
	if publishAt := c.FormValue("publish_at"); publishAt != "" {
		payload.PublishAt = &publishAt
	}
	if raw := c.FormValue("category_id"); raw != "" {
		if categoryID, err := strconv.ParseUint(raw, 10, 64); err == nil {
			id := uint(categoryID)
			payload.CategoryID = &id
		}
	}
	if raw := c.FormValue("total_points"); raw != "" {
		if points, err := strconv.ParseFloat(raw, 64); err == nil {
			payload.TotalPoints = &points
		}
	}
	if raw := c.FormValue("late_allowed"); raw != "" {
		if lateAllowed, err := strconv.ParseBool(raw); err == nil {
			payload.LateAllowed = &lateAllowed
		}
	}
	if raw := c.FormValue("late_penalty_per_day"); raw != "" {
		if penalty, err := strconv.ParseFloat(raw, 64); err == nil {
			payload.LatePenaltyPerDay = &penalty
		}
	}

	file, err := c.FormFile("file")
	if err != nil {
		file = nil
	}

	assignment, err := h.service.Update(c.Context(), id, payload, file, activityActorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "assignment updated", assignment)
}

func (h *AssignmentHandler) setStatus(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	payload := dto.AssignmentStatusRequest{}
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	assignment, err := h.service.SetStatus(c.Context(), id, payload, activityActorFromContext(c))
	if err != nil {
		if errors.Is(err, service.ErrInvalidStatusTransition) {
			return utils.SendError(c, fiber.StatusConflict, err.Error())
		}
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "assignment status updated", assignment)
}

func (h *AssignmentHandler) delete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.service.Delete(c.Context(), id, activityActorFromContext(c)); err != nil {
		if errors.Is(err, service.ErrAssignmentNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "assignment not found")
		}
		return h.internalError(c, err)
	}

	return utils.SendSuccess(c, "assignment deleted", fiber.Map{"id": id})
}

func (h *AssignmentHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrAssignmentNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "assignment not found")
	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	default:
		return h.internalError(c, err)
	}
}

func (h *AssignmentHandler) internalError(c *fiber.Ctx, err error) error {
	h.logger.Error().Err(err).Msg("internal server error")
	return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
}

func parseUintParam(c *fiber.Ctx, name string) (uint, error) {
	value := c.Params(name)
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, errors.New("invalid identifier")
	}
	return uint(parsed), nil
}
