package handler

import (
	"database/sql"

	"github.com/gofiber/fiber/v2"

	"droplink/internal/model"
	"droplink/internal/service"
)

// RegisterRoutes attaches HTTP routes to the provided Fiber app. db may be nil
// when the metadata store is in memory.
func RegisterRoutes(app *fiber.App, db *sql.DB, svc service.ArtifactService) {
	app.Get("/health", HealthCheck(db))
	app.Get("/healthz", LivenessProbe())

	files := app.Group("/files")

	// Static segments are registered before /:publicId routes.
	files.Post("/upload", UploadArtifact(svc))
	files.Get("/my-files/:owner", ListOwned(svc, model.StateActive))
	files.Get("/deleted/:owner", ListOwned(svc, model.StateSoftDeleted))
	files.Delete("/soft-delete/:publicId", SoftDelete(svc))
	files.Patch("/restore/:publicId", Restore(svc))
	files.Delete("/permanent/:publicId", PurgePermanently(svc))

	files.Get("/:publicId/info", GetInfo(svc))
	files.Get("/:publicId/view", ServeContent(svc, service.ModeView))
	files.Get("/:publicId/download", ServeContent(svc, service.ModeDownload))
}
