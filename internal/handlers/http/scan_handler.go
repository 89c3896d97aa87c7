package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"lenslink/internal/core/domain"
	"lenslink/internal/core/ports"
	apperrors "lenslink/pkg/errors"
	"lenslink/pkg/logger"
	"lenslink/pkg/validation"
)

const maxPersonaLength = 4000

// ScanHandler accepts captured images from devices.
type ScanHandler struct {
	scans          ports.ScanService
	maxUploadBytes int64
}

func NewScanHandler(scans ports.ScanService, maxUploadBytes int64) *ScanHandler {
	return &ScanHandler{
		scans:          scans,
		maxUploadBytes: maxUploadBytes,
	}
}

func (h *ScanHandler) SetupRoutes(router gin.IRouter) {
	router.POST("/analyze", h.Analyze)
}

// Analyze runs the capture flow for a multipart upload. Results reach clients
// over the websocket; the response only says whether the flow succeeded.
func (h *ScanHandler) Analyze(c *gin.Context) {
	if h.maxUploadBytes > 0 {
		if c.Request.ContentLength > h.maxUploadBytes {
			c.Error(errUploadTooLarge())
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.Error(errUploadTooLarge())
			return
		}
		c.Error(apperrors.NewInvalidInputError("image file is required"))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.Error(apperrors.WrapError(err, apperrors.ErrCodeInternal, "failed to open upload", http.StatusInternalServerError))
		return
	}
	defer file.Close()

	image, err := io.ReadAll(file)
	if err != nil {
		c.Error(apperrors.WrapError(err, apperrors.ErrCodeInternal, "failed to read upload", http.StatusInternalServerError))
		return
	}

	origin := c.PostForm("connectionId")
	if origin != "" {
		if err := validation.ValidateConnectionID(origin); err != nil {
			c.Error(apperrors.NewInvalidInputError(err.Error()))
			return
		}
		c.Request = c.Request.WithContext(logger.WithConnectionID(c.Request.Context(), origin))
	}

	persona := c.PostForm("persona")
	if persona != "" {
		if err := validation.ValidateStringLength(persona, 1, maxPersonaLength, "persona"); err != nil {
			c.Error(apperrors.NewInvalidInputError(err.Error()))
			return
		}
	}

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(image)
	}

	_, err = h.scans.Capture(c.Request.Context(), domain.CaptureRequest{
		Origin:      domain.ConnectionID(origin),
		Image:       image,
		Filename:    fileHeader.Filename,
		ContentType: contentType,
		Provider:    c.PostForm("provider"),
		Model:       c.PostForm("model"),
		Persona:     persona,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func errUploadTooLarge() *apperrors.AppError {
	return apperrors.NewAppError(apperrors.ErrCodeInvalidInput, "image exceeds upload limit", http.StatusRequestEntityTooLarge)
}
