package routes

import (
	"learningcenter_go/controllers"
	"learningcenter_go/middleware"

	"github.com/gofiber/fiber/v2"
)

// Dependencies carries the wired controllers and auth collaborators. Health,
// WebSocket and Activity are optional.
type Dependencies struct {
	JWTSecret string
	Users     middleware.UserFinder
	Activity  *middleware.ActivityLogger

	Timetables *controllers.TimetableController
	Imports    *controllers.StudentImportController
	Health     *controllers.HealthController
	WebSocket  *controllers.WebSocketController
}

// SetupRoutes configures all application routes
func SetupRoutes(app *fiber.App, deps Dependencies) {
	auth := middleware.JWTMiddleware(deps.JWTSecret, deps.Users)

	if deps.Health != nil {
		app.Get("/health", deps.Health.GetHealthStatus)
	}

	if deps.WebSocket != nil {
		app.Get("/ws", deps.WebSocket.RequireUpgrade, auth, deps.WebSocket.WebSocketHandler())
	}

	// API group
	api := app.Group("/api", auth)
	if deps.Activity != nil {
		api.Use(deps.Activity.Middleware())
	}

	staff := middleware.RequireStaff()
	managers := middleware.RequireManagerOrAdmin()

	// Student import
	imports := api.Group("/students/import", managers)
	imports.Post("/validate", deps.Imports.ValidateImport)
	imports.Post("/confirm", deps.Imports.ConfirmImport)
	imports.Get("/template", deps.Imports.DownloadTemplate)

	// Timetables
	timetables := api.Group("/timetables")
	timetables.Get("/school/:school_id/consolidated", staff, deps.Timetables.GetConsolidated)
	timetables.Get("/teacher/:teacher_id", staff, deps.Timetables.GetTeacherTimetable)
	timetables.Get("/class/:class_id", staff, deps.Timetables.GetClassTimetable)
	timetables.Get("/:id", staff, deps.Timetables.GetTimetable)
	timetables.Post("/", managers, deps.Timetables.CreateTimetable)
	timetables.Put("/:id/entries", managers, deps.Timetables.ReplaceEntries)
	timetables.Delete("/:id", managers, deps.Timetables.DeleteTimetable)
}
