package membership

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/kyc-consortium/kyc_consortium/internal/consortium"
	"github.com/kyc-consortium/kyc_consortium/internal/middleware"
)

// Handler exposes bank membership endpoints.
type Handler struct {
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs a membership HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service, validate: validator.New()}
}

type addBankRequest struct {
	Address   string `json:"address" validate:"required"`
	Name      string `json:"name" validate:"required"`
	RegNumber string `json:"reg_number" validate:"required"`
	AccessKey string `json:"access_key" validate:"required,min=8"`
}

type eligibilityRequest struct {
	Eligible *bool `json:"eligible" validate:"required"`
}

type bankResponse struct {
	Address    string `json:"address"`
	Name       string `json:"name"`
	RegNumber  string `json:"reg_number"`
	Complaints int    `json:"complaints"`
	Requests   int    `json:"requests"`
	Eligible   bool   `json:"eligible"`
}

func toBankResponse(bank consortium.Bank) bankResponse {
	return bankResponse{
		Address:    bank.Address,
		Name:       bank.Name,
		RegNumber:  bank.RegNumber,
		Complaints: bank.Complaints,
		Requests:   bank.Requests,
		Eligible:   bank.Eligible,
	}
}

// AddBank registers a new member bank (admin only).
func (h *Handler) AddBank(c *fiber.Ctx) error {
	var req addBankRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.validate.Struct(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	bank, err := h.service.AddBank(c.UserContext(), middleware.Caller(c), AddBankInput{
		Address:   req.Address,
		Name:      req.Name,
		RegNumber: req.RegNumber,
		AccessKey: req.AccessKey,
	})
	if err != nil {
		return statusFor(err)
	}
	return c.Status(http.StatusCreated).JSON(toBankResponse(bank))
}

// RemoveBank deregisters a member bank (admin only).
func (h *Handler) RemoveBank(c *fiber.Ctx) error {
	if err := h.service.RemoveBank(c.UserContext(), middleware.Caller(c), c.Params("address")); err != nil {
		return statusFor(err)
	}
	return c.SendStatus(http.StatusNoContent)
}

// SetEligibility toggles a bank's voting rights (admin only).
func (h *Handler) SetEligibility(c *fiber.Ctx) error {
	var req eligibilityRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.validate.Struct(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	address := c.Params("address")
	if err := h.service.SetEligibility(c.UserContext(), middleware.Caller(c), address, *req.Eligible); err != nil {
		return statusFor(err)
	}
	bank, err := h.service.BankDetails(c.UserContext(), address)
	if err != nil {
		return statusFor(err)
	}
	return c.Status(http.StatusOK).JSON(toBankResponse(bank))
}

// BankDetails returns a bank record to any authenticated caller.
func (h *Handler) BankDetails(c *fiber.Ctx) error {
	bank, err := h.service.BankDetails(c.UserContext(), c.Params("address"))
	if err != nil {
		return statusFor(err)
	}
	return c.Status(http.StatusOK).JSON(toBankResponse(bank))
}

// ComplaintCount returns a bank's complaint tally to any authenticated caller.
func (h *Handler) ComplaintCount(c *fiber.Ctx) error {
	count, err := h.service.ComplaintCount(c.UserContext(), c.Params("address"))
	if err != nil {
		return statusFor(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"address":    c.Params("address"),
		"complaints": count,
	})
}

func statusFor(err error) error {
	switch {
	case errors.Is(err, consortium.ErrNotAdmin):
		return fiber.NewError(http.StatusForbidden, err.Error())
	case errors.Is(err, consortium.ErrBankNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, consortium.ErrBankExists):
		return fiber.NewError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrWeakAccessKey):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}
