package handler

import (
	"context"
	"mime"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"droplink/internal/link"
	"droplink/internal/model"
	"droplink/internal/service"
)

// UploadResponse is returned by POST /files/upload.
type UploadResponse struct {
	PublicID     string     `json:"public_id"`
	OriginalName string     `json:"original_name"`
	SizeBytes    int64      `json:"size_bytes"`
	MimeType     string     `json:"mime_type"`
	ExpiresAt    time.Time  `json:"expires_at"`
	Links        link.Links `json:"links"`
	Message      string     `json:"message"`
}

// ListResponse wraps an owner listing.
type ListResponse struct {
	Owner string           `json:"owner"`
	State model.State      `json:"state"`
	Count int              `json:"count"`
	Items []model.Artifact `json:"data"`
}

// ArtifactResponse wraps a record returned by a lifecycle action.
type ArtifactResponse struct {
	Message string          `json:"message"`
	Data    *model.Artifact `json:"data"`
}

// UploadArtifact stores a multipart upload (field "file", optional
// "senderEmail" and "receiverEmail").
//
// @Summary  Upload a file
// @Tags     files
// @Accept   multipart/form-data
// @Produce  json
// @Param    file          formData file   true  "file to share"
// @Param    senderEmail   formData string false "owner identity, receives a confirmation"
// @Param    receiverEmail formData string false "recipient, receives the link"
// @Success  201 {object} UploadResponse
// @Failure  400 {object} errorPayload
// @Failure  413 {object} errorPayload
// @Failure  500 {object} errorPayload
// @Router   /files/upload [post]
func UploadArtifact(svc service.ArtifactService) fiber.Handler {
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

		res, err := svc.CreateArtifact(c.UserContext(), service.CreateInput{
			Body:         f,
			OriginalName: fh.Filename,
			MimeType:     fh.Header.Get("Content-Type"),
			SizeBytes:    fh.Size,
			Owner:        c.FormValue("senderEmail"),
			Recipient:    c.FormValue("receiverEmail"),
		})
		if err != nil {
			return writeServiceError(c, err)
		}

		a := res.Artifact
		return c.Status(fiber.StatusCreated).JSON(UploadResponse{
			PublicID:     a.PublicID,
			OriginalName: a.OriginalName,
			SizeBytes:    a.SizeBytes,
			MimeType:     a.MimeType,
			ExpiresAt:    a.ExpiresAt,
			Links:        res.Links,
			Message:      "File uploaded successfully",
		})
	}
}

// GetInfo returns the metadata view. It never purges.
//
// @Summary  File metadata
// @Tags     files
// @Produce  json
// @Param    publicId path string true "public id"
// @Success  200 {object} service.MetadataView
// @Failure  400 {object} errorPayload
// @Failure  404 {object} errorPayload
// @Router   /files/{publicId}/info [get]
func GetInfo(svc service.ArtifactService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := publicID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		view, err := svc.GetMetadata(c.UserContext(), id)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(view)
	}
}

// ServeContent streams the blob inline (view) or as an attachment (download).
//
// @Summary  View or download a file
// @Tags     files
// @Produce  octet-stream
// @Param    publicId path string true "public id"
// @Success  200 {file} file
// @Failure  404 {object} errorPayload
// @Failure  410 {object} errorPayload
// @Router   /files/{publicId}/view [get]
// @Router   /files/{publicId}/download [get]
func ServeContent(svc service.ArtifactService, mode service.Mode) fiber.Handler {
	disposition := "inline"
	if mode == service.ModeDownload {
		disposition = "attachment"
	}

	return func(c *fiber.Ctx) error {
		id, ok := publicID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		content, err := svc.AccessContent(c.UserContext(), id, mode)
		if err != nil {
			return writeServiceError(c, err)
		}

		c.Set(fiber.HeaderContentType, content.MimeType)
		c.Set(fiber.HeaderContentDisposition, contentDisposition(disposition, content.OriginalName))
		c.Set("X-Content-Type-Options", "nosniff")

		size := int(content.SizeBytes)
		if size <= 0 {
			size = -1
		}
		// fasthttp closes the stream once the response is written.
		return c.SendStream(content.Body, size)
	}
}

// ListOwned lists an owner's records in one lifecycle state.
//
// @Summary  List an owner's files
// @Tags     files
// @Produce  json
// @Param    owner path string true "owner identity"
// @Success  200 {object} ListResponse
// @Router   /files/my-files/{owner} [get]
// @Router   /files/deleted/{owner} [get]
func ListOwned(svc service.ArtifactService, state model.State) fiber.Handler {
	return func(c *fiber.Ctx) error {
		owner := pathParam(c, "owner")
		items, err := svc.ListByOwner(c.UserContext(), owner, state)
		if err != nil {
			return writeServiceError(c, err)
		}
		if items == nil {
			items = []model.Artifact{}
		}
		return c.JSON(ListResponse{Owner: owner, State: state, Count: len(items), Items: items})
	}
}

// SoftDelete moves an active file to the recycle bin.
//
// @Summary  Soft-delete a file
// @Tags     files
// @Produce  json
// @Param    publicId path string true "public id"
// @Success  200 {object} ArtifactResponse
// @Failure  404 {object} errorPayload
// @Router   /files/soft-delete/{publicId} [delete]
func SoftDelete(svc service.ArtifactService) fiber.Handler {
	return lifecycleAction(svc.SoftDelete, "File moved to trash")
}

// Restore brings a soft-deleted file back. Its expiry is unchanged.
//
// @Summary  Restore a file
// @Tags     files
// @Produce  json
// @Param    publicId path string true "public id"
// @Success  200 {object} ArtifactResponse
// @Failure  404 {object} errorPayload
// @Router   /files/restore/{publicId} [patch]
func Restore(svc service.ArtifactService) fiber.Handler {
	return lifecycleAction(svc.Restore, "File restored")
}

// PurgePermanently destroys a soft-deleted file.
//
// @Summary  Permanently delete a file
// @Tags     files
// @Produce  json
// @Param    publicId path string true "public id"
// @Success  200 {object} map[string]string
// @Failure  404 {object} errorPayload
// @Router   /files/permanent/{publicId} [delete]
func PurgePermanently(svc service.ArtifactService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := publicID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		if err := svc.PurgePermanently(c.UserContext(), id); err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(fiber.Map{"message": "File permanently deleted", "public_id": id})
	}
}

func lifecycleAction(action func(ctx context.Context, publicID string) (*model.Artifact, error), message string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := publicID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		a, err := action(c.UserContext(), id)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(ArtifactResponse{Message: message, Data: a})
	}
}

// publicID reads :publicId and checks it is a UUID.
func publicID(c *fiber.Ctx) (string, bool) {
	id := c.Params("publicId")
	if _, err := uuid.Parse(id); err != nil {
		return "", false
	}
	return id, true
}

func pathParam(c *fiber.Ctx, key string) string {
	v := c.Params(key)
	if u, err := url.PathUnescape(v); err == nil {
		v = u
	}
	return strings.TrimSpace(v)
}

// contentDisposition formats the header with an RFC 2231 filename when needed.
func contentDisposition(disposition, filename string) string {
	if v := mime.FormatMediaType(disposition, map[string]string{"filename": filename}); v != "" {
		return v
	}
	return disposition
}
