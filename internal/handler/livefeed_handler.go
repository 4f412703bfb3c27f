package handler

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/classpulse/classpulse-api/internal/liveview"
	"github.com/classpulse/classpulse-api/internal/middleware"
	"github.com/classpulse/classpulse-api/internal/service"
	"github.com/classpulse/classpulse-api/internal/utils"
)

// LiveFeedHandler wires the live assignment feed: a websocket stream plus a
// one-shot HTTP snapshot.
type LiveFeedHandler struct {
	service service.LiveFeedService
	logger  zerolog.Logger
}

// NewLiveFeedHandler creates a live feed handler instance.
func NewLiveFeedHandler(service service.LiveFeedService, logger zerolog.Logger) *LiveFeedHandler {
	return &LiveFeedHandler{
		service: service,
		logger:  logger.With().Str("component", "livefeed_handler").Logger(),
	}
}

// Register binds feed routes under the provided router group.
func (h *LiveFeedHandler) Register(router fiber.Router) {
	router.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			ctx := c.UserContext()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx = middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
			c.Locals("request_ctx", ctx)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	router.Get("/ws", websocket.New(h.handleConnection))
	router.Get("/students/:studentID", h.view)
}

func (h *LiveFeedHandler) handleConnection(conn *websocket.Conn) {
	studentID := websocketStudentID(conn)
	if studentID == 0 {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(fiber.StatusUnauthorized, "student id missing"))
		_ = conn.Close()
		return
	}

	correlation := ""
	if v, ok := conn.Locals("correlation_id").(string); ok {
		correlation = v
	}
	baseCtx, _ := conn.Locals("request_ctx").(context.Context)

	opts := service.FeedConnectionOptions{
		StudentID:     studentID,
		SortOrder:     conn.Query("sort"),
		CorrelationID: correlation,
		Context:       baseCtx,
	}

	h.logger.Info().Uint("student_id", studentID).Msg("live feed websocket connected")
	h.service.ServeConnection(conn, opts)
	h.logger.Info().Uint("student_id", studentID).Msg("live feed websocket disconnected")
}

func (h *LiveFeedHandler) view(c *fiber.Ctx) error {
	studentID, err := parseUintParam(c, "studentID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	view, err := h.service.View(c.Context(), studentID, c.Query("sort"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrFeedTimeout):
			return utils.SendError(c, fiber.StatusGatewayTimeout, "live view timed out")
		case errors.Is(err, liveview.ErrSourceUnavailable):
			return utils.SendError(c, fiber.StatusServiceUnavailable, "live view source unavailable")
		default:
			h.logger.Error().Err(err).Msg("internal server error")
			return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
		}
	}

	return utils.SendSuccess(c, "live view snapshot", view)
}

// websocketStudentID resolves the student from either the authenticated
// session or, for teachers viewing as a student, the query string.
func websocketStudentID(conn *websocket.Conn) uint {
	if raw := conn.Query("student_id"); raw != "" {
		if id, err := parseUintString(raw); err == nil {
			return id
		}
	}

	switch v := conn.Locals("user_id").(type) {
	case uint:
		return v
	case int:
		if v > 0 {
			return uint(v)
		}
	case float64:
		if v > 0 {
			return uint(v)
		}
	}
	return 0
}
