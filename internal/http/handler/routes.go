package handler

import (
	"context"
	"encoding/json"
	"mime"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"docviewer/internal/model"
	"docviewer/internal/service"
	"docviewer/internal/telegram"
)

const uploadPath = "/upload"

// RegisterHealthRoutes attaches /health and /healthz. probe checks the active backing store.
func RegisterHealthRoutes(app fiber.Router, probe func(context.Context) error) {
	app.Get("/health", HealthCheck(probe))
	app.Get("/healthz", LivenessProbe())
}

// RegisterLocalRoutes attaches the local disk and proxy-cache API.
func RegisterLocalRoutes(app fiber.Router, svc service.LocalService, log *zap.Logger) {
	app.Get("/api/list", ListDocuments(svc.List, model.LocalView, log))
	app.Get("/api/file/:id", StreamDocument(svc, log))
	app.Delete("/api/delete/:id", DeleteDocument(svc.Delete, log))
	app.Post(uploadPath, UploadDocument(svc, log))
	app.Post("/webhook", TelegramWebhook(svc, log))
}

// RegisterPresignRoutes attaches the presigned object store API.
func RegisterPresignRoutes(app fiber.Router, svc service.PresignService, log *zap.Logger) {
	app.Get("/api/list", ListDocuments(svc.List, model.ObjectView, log))
	app.Get("/api/file/:id", PresignedDocumentURL(svc, log))
	app.Delete("/api/delete/:id", DeleteDocument(svc.Delete, log))
	app.Post("/api/get-upload-url", CreateUploadURL(svc, log))
	app.Post("/api/register", RegisterDocument(svc, log))
}

// HealthCheck reports whether the backing store answers.
//
// @Summary Readiness probe
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 503 {object} errorPayload
// @Router /health [get]
func HealthCheck(probe func(context.Context) error) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := probe(ctx); err != nil {
			return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable")
		}
		return c.JSON(fiber.Map{"status": "healthy"})
	}
}

// LivenessProbe always answers 200 while the process is up.
//
// @Summary Liveness probe
// @Tags health
// @Success 200
// @Router /healthz [get]
func LivenessProbe() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}

// ListDocuments returns every record through the variant's public projection.
//
// @Summary List documents
// @Tags documents
// @Produce json
// @Success 200 {array} model.LocalListItem
// @Failure 500 {object} errorPayload
// @Router /api/list [get]
func ListDocuments[T any](list func(context.Context) ([]model.Document, error), view func(model.Document) T, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		docs, err := list(c.UserContext())
		if err != nil {
			return serviceError(c, log, err)
		}
		out := make([]T, 0, len(docs))
		for _, d := range docs {
			out = append(out, view(d))
		}
		return c.JSON(out)
	}
}

// DeleteDocument removes a record and, best effort, its bytes.
//
// @Summary Delete a document
// @Tags documents
// @Param id path string true "Document ID"
// @Produce json
// @Success 200 {object} map[string]bool
// @Failure 404 {object} errorPayload
// @Router /api/delete/{id} [delete]
func DeleteDocument(del func(context.Context, string) error, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := del(c.UserContext(), c.Params("id")); err != nil {
			return serviceError(c, log, err)
		}
		return c.JSON(fiber.Map{"ok": true})
	}
}

// StreamDocument streams the PDF bytes of a record.
//
// @Summary Stream a document
// @Tags documents
// @Param id path string true "Document ID"
// @Produce application/pdf
// @Success 200 {file} binary
// @Failure 404 {object} errorPayload
// @Failure 500 {object} errorPayload
// @Failure 501 {object} errorPayload
// @Failure 502 {object} errorPayload
// @Router /api/file/{id} [get]
func StreamDocument(svc service.LocalService, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		d, err := svc.Open(c.UserContext(), c.Params("id"))
		if err != nil {
			return serviceError(c, log, err)
		}
		c.Set(fiber.HeaderContentType, service.AcceptedContentType)
		c.Set(fiber.HeaderContentDisposition, inlineDisposition(d.Title))
		c.Set(fiber.HeaderCacheControl, "private, max-age=0")
		return c.SendStream(d.Body, int(d.Size))
	}
}

func inlineDisposition(title string) string {
	if v := mime.FormatMediaType("inline", map[string]string{"filename": title}); v != "" {
		return v
	}
	return "inline"
}

// UploadDocument accepts a multipart PDF in field "file" with optional title and category.
//
// @Summary Upload a PDF
// @Tags documents
// @Accept multipart/form-data
// @Param file formData file true "PDF file"
// @Param title formData string false "Display title"
// @Param category formData string false "Category"
// @Produce json
// @Success 201 {object} map[string]any
// @Failure 400 {object} errorPayload
// @Router /upload [post]
func UploadDocument(svc service.LocalService, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fh, err := c.FormFile("file")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
		}
		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer f.Close()

		doc, err := svc.Upload(c.UserContext(), service.UploadInput{
			Body:        f,
			Filename:    fh.Filename,
			ContentType: fh.Header.Get(fiber.HeaderContentType),
			Size:        fh.Size,
			Title:       c.FormValue("title"),
			Category:    c.FormValue("category"),
		})
		if err != nil {
			return serviceError(c, log, err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"ok": true, "id": doc.ID})
	}
}

// TelegramWebhook ingests documents posted to the bot.
//
// @Summary Bot platform webhook
// @Tags webhook
// @Accept json
// @Produce json
// @Success 200 {object} map[string]bool
// @Failure 400 {object} errorPayload
// @Router /webhook [post]
func TelegramWebhook(svc service.LocalService, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var upd telegram.Update
		if err := json.Unmarshal(c.Body(), &upd); err != nil {
			return writeError(c, fiber.StatusBadRequest, "BAD_REQUEST", "invalid update payload")
		}
		msg := upd.EffectiveMessage()
		if msg == nil {
			return c.SendString("no message")
		}
		doc, err := svc.IngestTelegram(c.UserContext(), msg)
		if err != nil {
			return serviceError(c, log, err)
		}
		if doc == nil {
			log.Debug("webhook update without document", zap.Int64("update_id", upd.UpdateID))
		}
		return c.JSON(fiber.Map{"ok": true})
	}
}

// CreateUploadURL issues a presigned write URL.
//
// @Summary Request an upload URL
// @Tags documents
// @Accept json
// @Produce json
// @Param body body service.UploadGrantRequest true "File to upload"
// @Success 200 {object} service.UploadGrant
// @Failure 400 {object} errorPayload
// @Failure 502 {object} errorPayload
// @Router /api/get-upload-url [post]
func CreateUploadURL(svc service.PresignService, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req service.UploadGrantRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "BAD_REQUEST", "invalid JSON body")
		}
		grant, err := svc.CreateUploadGrant(c.UserContext(), req)
		if err != nil {
			return serviceError(c, log, err)
		}
		return c.JSON(grant)
	}
}

// RegisterDocument records an uploaded object.
//
// @Summary Register an uploaded object
// @Tags documents
// @Accept json
// @Produce json
// @Param body body service.RegisterRequest true "Object metadata"
// @Success 200 {object} map[string]any
// @Failure 400 {object} errorPayload
// @Router /api/register [post]
func RegisterDocument(svc service.PresignService, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req service.RegisterRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "BAD_REQUEST", "invalid JSON body")
		}
		id, err := svc.Register(c.UserContext(), req)
		if err != nil {
			return serviceError(c, log, err)
		}
		return c.JSON(fiber.Map{"ok": true, "id": id})
	}
}

// PresignedDocumentURL returns a short-lived read URL instead of the bytes.
// It shares GET /api/file/{id} with StreamDocument, so the swagger document describes only the local variant there.
func PresignedDocumentURL(svc service.PresignService, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		signed, err := svc.ResolveURL(c.UserContext(), c.Params("id"))
		if err != nil {
			return serviceError(c, log, err)
		}
		return c.JSON(signed)
	}
}
