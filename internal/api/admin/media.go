package admin

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/communityhub/platform/internal/api/apierror"
	"github.com/communityhub/platform/internal/api/pagination"
	"github.com/communityhub/platform/internal/db/models"
	"github.com/communityhub/platform/internal/middleware"
	"github.com/communityhub/platform/internal/storage"
	"github.com/communityhub/platform/internal/telemetry"
)

// ListMediaHandler pages through the community's uploads. URLs are resolved
// against the storage backend on every call since signed URLs expire.
// GET /admin/media?page=1&limit=20
func (h *Handlers) ListMediaHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		page, err := pagination.Parse(c, 20, pagination.MaxLimit)
		if err != nil {
			apierror.Respond(c, err)
			return
		}

		assets, err := h.media.ListMedia(c.Request.Context(), middleware.CurrentTenant(c).ID, page.Limit, page.Offset)
		if err != nil {
			apierror.Respond(c, err)
			return
		}
		if h.store != nil {
			for i := range assets {
				h.fillURL(c, &assets[i])
			}
		}
		c.JSON(http.StatusOK, gin.H{"media": assets, "pagination": page})
	}
}

// UploadMediaHandler accepts a single image in the multipart field "file"
// POST /admin/media
func (h *Handlers) UploadMediaHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.store == nil {
			apierror.Respond(c, apierror.Unavailable("Media storage is not configured"))
			return
		}

		// Multipart overhead is small next to the file itself.
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload+64<<10)
		fh, err := c.FormFile("file")
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				apierror.Respond(c, apierror.Validation(map[string][]string{"file": {"is too large"}}))
				return
			}
			apierror.Respond(c, apierror.Validation(map[string][]string{"file": {"is required"}}))
			return
		}
		if fh.Size > h.maxUpload {
			apierror.Respond(c, apierror.Validation(map[string][]string{"file": {"is too large"}}))
			return
		}

		f, err := fh.Open()
		if err != nil {
			apierror.Respond(c, err)
			return
		}
		defer f.Close()

		data, checksum, err := storage.Digest(f)
		if err != nil {
			apierror.Respond(c, err)
			return
		}
		contentType := http.DetectContentType(data)
		if i := strings.IndexByte(contentType, ';'); i >= 0 {
			contentType = contentType[:i]
		}
		if !strings.HasPrefix(contentType, "image/") {
			apierror.Respond(c, apierror.Validation(map[string][]string{"file": {"must be an image"}}))
			return
		}

		ctx := c.Request.Context()
		tenant := middleware.CurrentTenant(c)
		key := storage.NewKey(tenant.ID, contentType)
		if _, err := h.store.Put(ctx, key, bytes.NewReader(data), contentType); err != nil {
			apierror.Respond(c, err)
			return
		}

		uploader := middleware.CurrentUserID(c)
		asset := &models.MediaAsset{
			TenantID:    tenant.ID,
			UploaderID:  &uploader,
			StoragePath: key,
			ContentType: contentType,
			SizeBytes:   int64(len(data)),
			Checksum:    checksum,
		}
		if err := h.media.CreateMedia(ctx, asset); err != nil {
			if delErr := h.store.Delete(ctx, key); delErr != nil {
				slog.Warn("failed to remove orphaned upload", "key", key, "error", delErr)
			}
			apierror.Respond(c, err)
			return
		}
		telemetry.MediaUploadBytes.Observe(float64(asset.SizeBytes))

		h.fillURL(c, asset)
		h.audit(c, "media_upload", "media", asset.ID, nil, map[string]interface{}{
			"content_type": contentType,
			"size_bytes":   asset.SizeBytes,
		})
		c.JSON(http.StatusCreated, gin.H{"media": asset})
	}
}

func (h *Handlers) fillURL(c *gin.Context, asset *models.MediaAsset) {
	url, err := h.store.URL(c.Request.Context(), asset.StoragePath)
	if err != nil {
		slog.Warn("failed to resolve media url", "key", asset.StoragePath, "error", err)
		return
	}
	asset.URL = url
}
