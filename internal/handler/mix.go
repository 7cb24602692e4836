package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/humanmixer/api/internal/model"
	"github.com/humanmixer/api/internal/service"
	"github.com/humanmixer/api/pkg/response"
)

type MixHandler struct {
	service   *service.MixService
	validator *validator.Validate
}

func NewMixHandler(svc *service.MixService, v *validator.Validate) *MixHandler {
	return &MixHandler{
		service:   svc,
		validator: v,
	}
}

// Mix handles POST /api/mix. Gains are decibel values, one per stem; 0 is
// a legitimate gain, so the fields are pointers and presence is validated.
func (h *MixHandler) Mix(c *fiber.Ctx) error {
	var req model.MixRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.Mix(c.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			return response.NotFound(c, "Session not found")
		case errors.Is(err, service.ErrStemsNotReady):
			return response.StemsNotReady(c, "Separation has not completed for this session")
		case errors.Is(err, service.ErrCorrupted):
			return response.CorruptedSession(c, err.Error())
		case errors.Is(err, service.ErrSilentMix):
			return response.SilentMix(c, "All stems are silent at the requested gains")
		default:
			return response.ServiceError(c, err.Error())
		}
	}

	return response.OK(c, result)
}
