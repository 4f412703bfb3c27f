package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/classpulse/classpulse-api/internal/dto"
	"github.com/classpulse/classpulse-api/internal/gradebook"
	"github.com/classpulse/classpulse-api/internal/service"
	"github.com/classpulse/classpulse-api/internal/utils"
)

// GradebookHandler serves computed standings and grading configuration.
type GradebookHandler struct {
	service   service.GradebookService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewGradebookHandler constructs the handler.
func NewGradebookHandler(service service.GradebookService, validator *validator.Validate, logger zerolog.Logger) *GradebookHandler {
	return &GradebookHandler{
		service:   service,
		validator: validator,
		logger:    logger.With().Str("component", "gradebook_handler").Logger(),
	}
}

// Register attaches gradebook endpoints to the router group.
func (h *GradebookHandler) Register(router fiber.Router) {
	router.Get("/classes/:classID/students/:studentID", h.classGrade)
	router.Get("/students/:studentID/gpa", h.gpa)
	router.Get("/classes/:classID/categories", h.listCategories)
	router.Post("/categories", h.createCategory)
	router.Patch("/categories/:id", h.updateCategory)
	router.Delete("/categories/:id", h.deleteCategory)
	router.Get("/classes/:classID/scale", h.getScale)
	router.Put("/scale", h.saveScale)
}

func (h *GradebookHandler) classGrade(c *fiber.Ctx) error {
	classID, err := parseUintParam(c, "classID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	studentID, err := parseUintParam(c, "studentID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	standing, err := h.service.ClassGrade(c.Context(), classID, studentID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "class grade computed", standing)
}

func (h *GradebookHandler) gpa(c *fiber.Ctx) error {
	studentID, err := parseUintParam(c, "studentID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	report, err := h.service.GPA(c.Context(), studentID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "gpa computed", report)
}

func (h *GradebookHandler) listCategories(c *fiber.Ctx) error {
	classID, err := parseUintParam(c, "classID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	categories, err := h.service.ListCategories(c.Context(), classID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "categories retrieved", categories)
}

func (h *GradebookHandler) createCategory(c *fiber.Ctx) error {
	payload := dto.CategoryCreateRequest{}
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	category, err := h.service.CreateCategory(c.Context(), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "category created", category)
}

func (h *GradebookHandler) updateCategory(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	payload := dto.CategoryUpdateRequest{}
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	category, err := h.service.UpdateCategory(c.Context(), id, payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "category updated", category)
}

func (h *GradebookHandler) deleteCategory(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.service.DeleteCategory(c.Context(), id); err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "category deleted", fiber.Map{"id": id})
}

func (h *GradebookHandler) getScale(c *fiber.Ctx) error {
	classID, err := parseUintParam(c, "classID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	scale, err := h.service.GetScale(c.Context(), classID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "grade scale retrieved", scale)
}

func (h *GradebookHandler) saveScale(c *fiber.Ctx) error {
	payload := dto.ScaleSaveRequest{}
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	scale, err := h.service.SaveScale(c.Context(), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "grade scale saved", scale)
}

func (h *GradebookHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrCategoryNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "category not found")
	case errors.Is(err, gradebook.ErrInvalidInput), errors.Is(err, gradebook.ErrNoMatchingRange):
		return utils.SendError(c, fiber.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	default:
		h.logger.Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
