package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/classpulse/classpulse-api/internal/config"
	"github.com/classpulse/classpulse-api/internal/handler"
	"github.com/classpulse/classpulse-api/internal/middleware"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	AssignmentHandler *handler.AssignmentHandler
	SubmissionHandler *handler.SubmissionHandler
	GradingHandler    *handler.GradingHandler
	GradebookHandler  *handler.GradebookHandler
	LiveFeedHandler   *handler.LiveFeedHandler
	ActivityHandler   *handler.ActivityHandler
	JWTMiddleware     fiber.Handler
	TeacherOnly       fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	// Common v1 group for health & headers
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))

	// Use provided middlewares, or no-ops if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}
	teacherOnly := deps.TeacherOnly
	if teacherOnly == nil {
		teacherOnly = func(c *fiber.Ctx) error { return c.Next() }
	}

	// Coursework (assignments & submissions)
	if deps.AssignmentHandler != nil {
		coursework := app.Group("/api/v1/coursework", jwtMiddleware)
		assignmentGroup := coursework.Group("/assignments")
		deps.AssignmentHandler.Register(assignmentGroup, teacherOnly)

		if deps.SubmissionHandler != nil {
			submissionGroup := coursework.Group("/submissions", middleware.RateLimit("submissions", 30, time.Minute))
			deps.SubmissionHandler.Register(submissionGroup)
		}
	}

	// Grading (teacher only)
	if deps.GradingHandler != nil {
		grades := app.Group("/api/v1/grades", jwtMiddleware, teacherOnly)
		deps.GradingHandler.Register(grades)
	}

	// Gradebook (computed standings & configuration)
	if deps.GradebookHandler != nil {
		gradebook := app.Group("/api/v1/gradebook", jwtMiddleware)
		deps.GradebookHandler.Register(gradebook)
	}

	// Live assignment feed
	if deps.LiveFeedHandler != nil {
		feed := app.Group("/api/v1/feed", jwtMiddleware)
		deps.LiveFeedHandler.Register(feed)
	}

	// Activity log (teacher only)
	if deps.ActivityHandler != nil {
		activity := app.Group("/api/v1/activity", jwtMiddleware, teacherOnly)
		deps.ActivityHandler.Register(activity)
	}
}
