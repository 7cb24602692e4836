package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/humanmixer/api/internal/model"
	"github.com/humanmixer/api/internal/service"
	"github.com/humanmixer/api/pkg/response"
)

const maxUploadSize = 50 * 1024 * 1024 // 50MB

type SeparationHandler struct {
	service *service.SessionService
}

func NewSeparationHandler(svc *service.SessionService) *SeparationHandler {
	return &SeparationHandler{service: svc}
}

// Start handles POST /api/separation/start. It accepts one audio file,
// mints a session and queues the separation job; the response returns
// before any separation work happens.
func (h *SeparationHandler) Start(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return response.ValidationError(c, "File is required", nil)
	}

	if file.Size > maxUploadSize {
		return response.ValidationError(c, "File size exceeds 50MB limit", map[string]interface{}{
			"maxSize":  maxUploadSize,
			"fileSize": file.Size,
		})
	}

	contentType := file.Header.Get("Content-Type")
	validTypes := map[string]bool{
		"audio/wav":   true,
		"audio/x-wav": true,
		"audio/wave":  true,
		// Browsers are loose with WAV content types; the decode probe is
		// the real gate.
		"application/octet-stream": true,
		"": true,
	}
	if !validTypes[contentType] {
		return response.ValidationError(c, "Invalid file type. Supported: WAV", map[string]interface{}{
			"contentType": contentType,
		})
	}

	f, err := file.Open()
	if err != nil {
		return response.ServiceError(c, "Failed to open file")
	}
	defer f.Close()

	result, err := h.service.StartSeparation(c.Context(), f)
	if err != nil {
		if errors.Is(err, service.ErrInvalidInput) {
			return response.InvalidInput(c, err.Error())
		}
		return response.ServiceError(c, err.Error())
	}

	return response.Accepted(c, result)
}

// Progress handles GET /api/separation/progress/:sessionId. Unknown
// sessions report idle; failed sessions report their captured error
// indefinitely until cleaned up.
func (h *SeparationHandler) Progress(c *fiber.Ctx) error {
	sessionID := c.Params("sessionId")
	if sessionID == "" {
		return response.ValidationError(c, "Session ID is required", nil)
	}

	state, err := h.service.GetProgress(c.Context(), sessionID)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, model.ProgressResponse(state))
}

// Cancel handles POST /api/separation/cancel/:sessionId.
func (h *SeparationHandler) Cancel(c *fiber.Ctx) error {
	sessionID := c.Params("sessionId")
	if sessionID == "" {
		return response.ValidationError(c, "Session ID is required", nil)
	}

	result, err := h.service.Cancel(c.Context(), sessionID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return response.NotFound(c, "Session not found")
		}
		if errors.Is(err, service.ErrSessionFinished) {
			return response.ValidationError(c, "Session already finished", nil)
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}
