package verification

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/kyc-consortium/kyc_consortium/internal/consortium"
	"github.com/kyc-consortium/kyc_consortium/internal/middleware"
)

// Handler exposes verification request and voting endpoints.
type Handler struct {
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs a verification HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service, validate: validator.New()}
}

type submitRequest struct {
	Username    string `json:"username" validate:"required"`
	Fingerprint string `json:"fingerprint" validate:"required"`
}

type requestResponse struct {
	Username    string    `json:"username"`
	Fingerprint string    `json:"fingerprint"`
	RequestedBy string    `json:"requested_by"`
	CreatedAt   time.Time `json:"created_at"`
}

type voteResponse struct {
	Username           string `json:"username"`
	Upvotes            int    `json:"upvotes"`
	Downvotes          int    `json:"downvotes"`
	Threshold          int    `json:"threshold"`
	Approved           bool   `json:"approved"`
	InitiatorSuspended bool   `json:"initiator_suspended"`
}

func toRequestResponse(req consortium.KYCRequest) requestResponse {
	return requestResponse{
		Username:    req.Username,
		Fingerprint: req.Fingerprint,
		RequestedBy: req.RequestedBy,
		CreatedAt:   req.CreatedAt,
	}
}

func toVoteResponse(result consortium.VoteResult) voteResponse {
	return voteResponse{
		Username:           result.Username,
		Upvotes:            result.Upvotes,
		Downvotes:          result.Downvotes,
		Threshold:          result.Threshold,
		Approved:           result.Approved,
		InitiatorSuspended: result.InitiatorSuspended,
	}
}

// SubmitRequest files a verification request.
func (h *Handler) SubmitRequest(c *fiber.Ctx) error {
	var req submitRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.validate.Struct(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	pending, err := h.service.SubmitRequest(c.UserContext(), middleware.Caller(c), req.Username, req.Fingerprint)
	if err != nil {
		return statusFor(err)
	}
	return c.Status(http.StatusCreated).JSON(toRequestResponse(pending))
}

// WithdrawRequest drops the pending request for the username.
func (h *Handler) WithdrawRequest(c *fiber.Ctx) error {
	if err := h.service.WithdrawRequest(c.UserContext(), middleware.Caller(c), c.Params("username")); err != nil {
		return statusFor(err)
	}
	return c.SendStatus(http.StatusNoContent)
}

// PendingRequest returns the live request for the username.
func (h *Handler) PendingRequest(c *fiber.Ctx) error {
	pending, err := h.service.PendingRequest(c.UserContext(), middleware.Caller(c), c.Params("username"))
	if err != nil {
		return statusFor(err)
	}
	return c.Status(http.StatusOK).JSON(toRequestResponse(pending))
}

// Upvote casts an approving vote.
func (h *Handler) Upvote(c *fiber.Ctx) error {
	result, err := h.service.Upvote(c.UserContext(), middleware.Caller(c), c.Params("username"))
	if err != nil {
		return statusFor(err)
	}
	return c.Status(http.StatusOK).JSON(toVoteResponse(result))
}

// Downvote casts a rejecting vote.
func (h *Handler) Downvote(c *fiber.Ctx) error {
	result, err := h.service.Downvote(c.UserContext(), middleware.Caller(c), c.Params("username"))
	if err != nil {
		return statusFor(err)
	}
	return c.Status(http.StatusOK).JSON(toVoteResponse(result))
}

func statusFor(err error) error {
	switch {
	case errors.Is(err, consortium.ErrBankNotFound),
		errors.Is(err, consortium.ErrCustomerNotFound),
		errors.Is(err, consortium.ErrRequestNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, consortium.ErrBankNotEligible):
		return fiber.NewError(http.StatusForbidden, err.Error())
	case errors.Is(err, consortium.ErrRequestExists),
		errors.Is(err, consortium.ErrAlreadyVoted),
		errors.Is(err, consortium.ErrNoActiveRequest):
		return fiber.NewError(http.StatusConflict, err.Error())
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}
