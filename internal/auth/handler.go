package auth

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// Handler exposes the token endpoint.
type Handler struct {
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the auth HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service, validate: validator.New()}
}

type tokenRequest struct {
	Address   string `json:"address" validate:"required"`
	AccessKey string `json:"access_key" validate:"required"`
}

// IssueToken exchanges an address plus access key for a signed access token.
func (h *Handler) IssueToken(c *fiber.Ctx) error {
	var req tokenRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.validate.Struct(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	token, err := h.service.IssueToken(c.UserContext(), req.Address, req.AccessKey)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			return fiber.NewError(http.StatusUnauthorized, "invalid credentials")
		}
		return fiber.NewError(http.StatusInternalServerError, "token issuance failed")
	}
	return c.Status(http.StatusOK).JSON(token)
}
