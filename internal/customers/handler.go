package customers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/kyc-consortium/kyc_consortium/internal/consortium"
	"github.com/kyc-consortium/kyc_consortium/internal/middleware"
)

// Handler exposes customer registry endpoints.
type Handler struct {
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs a customer HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service, validate: validator.New()}
}

type addCustomerRequest struct {
	Username    string `json:"username" validate:"required"`
	Fingerprint string `json:"fingerprint" validate:"required"`
}

type modifyCustomerRequest struct {
	Fingerprint string `json:"fingerprint" validate:"required"`
}

type customerResponse struct {
	Username    string    `json:"username"`
	Fingerprint string    `json:"fingerprint"`
	InitiatedBy string    `json:"initiated_by"`
	Approved    bool      `json:"approved"`
	Upvotes     int       `json:"upvotes"`
	Downvotes   int       `json:"downvotes"`
	CreatedAt   time.Time `json:"created_at"`
}

func toCustomerResponse(customer consortium.Customer) customerResponse {
	return customerResponse{
		Username:    customer.Username,
		Fingerprint: customer.Fingerprint,
		InitiatedBy: customer.InitiatedBy,
		Approved:    customer.Approved,
		Upvotes:     customer.Upvotes,
		Downvotes:   customer.Downvotes,
		CreatedAt:   customer.CreatedAt,
	}
}

// Add registers a new customer.
func (h *Handler) Add(c *fiber.Ctx) error {
	var req addCustomerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.validate.Struct(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	customer, err := h.service.Add(c.UserContext(), middleware.Caller(c), req.Username, req.Fingerprint)
	if err != nil {
		return statusFor(err)
	}
	return c.Status(http.StatusCreated).JSON(toCustomerResponse(customer))
}

// View returns the customer record.
func (h *Handler) View(c *fiber.Ctx) error {
	customer, err := h.service.View(c.UserContext(), middleware.Caller(c), c.Params("username"))
	if err != nil {
		return statusFor(err)
	}
	return c.Status(http.StatusOK).JSON(toCustomerResponse(customer))
}

// Modify replaces the customer fingerprint and resets the voting cycle.
func (h *Handler) Modify(c *fiber.Ctx) error {
	var req modifyCustomerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.validate.Struct(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	customer, err := h.service.Modify(c.UserContext(), middleware.Caller(c), c.Params("username"), req.Fingerprint)
	if err != nil {
		return statusFor(err)
	}
	return c.Status(http.StatusOK).JSON(toCustomerResponse(customer))
}

func statusFor(err error) error {
	switch {
	case errors.Is(err, consortium.ErrBankNotFound), errors.Is(err, consortium.ErrCustomerNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, consortium.ErrBankNotEligible):
		return fiber.NewError(http.StatusForbidden, err.Error())
	case errors.Is(err, consortium.ErrCustomerExists):
		return fiber.NewError(http.StatusConflict, err.Error())
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}
