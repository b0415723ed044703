// Package uploads stores user-supplied images in object storage.
package uploads

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vrrprepo/rprepo/pkg/rprepo/api"
	"github.com/vrrprepo/rprepo/pkg/rprepo/auth"
	"github.com/vrrprepo/rprepo/pkg/rprepo/config"
	"github.com/vrrprepo/rprepo/pkg/rprepo/logger"
)

const (
	DefaultMaxBytes = 5 << 20
	formField       = "image"
	// room for multipart headers around the file part
	formOverhead = 64 << 10
)

// Handler handles image uploads
type Handler struct {
	storage  Storage
	baseURL  string
	maxBytes int64
}

func NewHandler(storage Storage, cfg config.UploadsConfig) *Handler {
	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Handler{
		storage:  storage,
		baseURL:  strings.TrimRight(cfg.PublicBaseURL, "/"),
		maxBytes: maxBytes,
	}
}

// RegisterRoutes registers upload routes on the given router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, mw *auth.Middleware) {
	rg.POST("", mw.RequireUser(), h.Upload)
}

// UploadResponse carries the public URL of a stored image
type UploadResponse struct {
	URL string `json:"url"`
}

// Upload stores the image field and returns its public URL.
// A replace field naming one of the caller's own objects is removed afterwards, at most once.
// @Summary Upload an image
// @Description Store an image and return its public URL
// @Tags uploads
// @Accept multipart/form-data
// @Produce json
// @Param image formData file true "Image file"
// @Param replace formData string false "URL of an earlier upload to remove"
// @Success 201 {object} api.Response{data=UploadResponse}
// @Failure 400 {object} api.Response "Validation error"
// @Failure 401 {object} api.Response "Authentication required"
// @Failure 413 {object} api.Response "Image too large"
// @Security BearerAuth
// @Router /uploads [post]
func (h *Handler) Upload(c *gin.Context) {
	user, _ := auth.CurrentUser(c)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes+formOverhead)

	header, err := c.FormFile(formField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			api.Fail(c, api.PayloadTooLargeError("image is too large"))
			return
		}
		api.Fail(c, api.ValidationError("missing %s file", formField))
		return
	}
	if header.Size > h.maxBytes {
		api.Fail(c, api.PayloadTooLargeError("image is too large"))
		return
	}

	file, err := header.Open()
	if err != nil {
		api.Fail(c, api.QueryError("open upload", err))
		return
	}
	defer file.Close()

	mtype, err := mimetype.DetectReader(file)
	if err != nil {
		api.Fail(c, api.QueryError("detect content type", err))
		return
	}
	if !strings.HasPrefix(mtype.String(), "image/") {
		api.Fail(c, api.ValidationError("file must be an image, got %s", mtype.String()))
		return
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		api.Fail(c, api.QueryError("rewind upload", err))
		return
	}

	prefix := ownerPrefix(user.ID)
	name := prefix + uuid.NewString() + mtype.Extension()
	ctx := c.Request.Context()
	if err := h.storage.Put(ctx, name, file, header.Size, mtype.String()); err != nil {
		api.Fail(c, api.QueryError("store upload", err))
		return
	}

	log := logger.FromContext(c)
	log.Info("image uploaded", zap.String("object", name), zap.Int64("size", header.Size))

	if old, ok := h.objectName(c.PostForm("replace")); ok && old != name && strings.HasPrefix(old, prefix) {
		if err := h.storage.Remove(ctx, old); err != nil {
			log.Warn("failed to remove replaced image", zap.String("object", old), zap.Error(err))
		}
	}

	api.Created(c, UploadResponse{URL: h.baseURL + "/" + name})
}

// ownerPrefix starts every object name the user uploads
func ownerPrefix(userID uint) string {
	return fmt.Sprintf("u%d-", userID)
}

// objectName returns the object behind a public URL, if the URL is ours
func (h *Handler) objectName(url string) (string, bool) {
	if h.baseURL == "" {
		return "", false
	}
	name, ok := strings.CutPrefix(url, h.baseURL+"/")
	if !ok || name == "" || strings.Contains(name, "/") {
		return "", false
	}
	return name, true
}
