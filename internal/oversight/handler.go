package oversight

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/kyc-consortium/kyc_consortium/internal/consortium"
	"github.com/kyc-consortium/kyc_consortium/internal/middleware"
)

// Handler exposes the peer-reporting endpoint.
type Handler struct {
	service *Service
}

// NewHandler constructs an oversight HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type reportResponse struct {
	Target     string `json:"target"`
	Complaints int    `json:"complaints"`
	Threshold  int    `json:"threshold"`
	Eligible   bool   `json:"eligible"`
}

// Report files a complaint against the bank named in the path.
func (h *Handler) Report(c *fiber.Ctx) error {
	result, err := h.service.Report(c.UserContext(), middleware.Caller(c), c.Params("address"))
	if err != nil {
		return statusFor(err)
	}
	return c.Status(http.StatusCreated).JSON(reportResponse{
		Target:     result.Target,
		Complaints: result.Complaints,
		Threshold:  result.Threshold,
		Eligible:   result.Eligible,
	})
}

func statusFor(err error) error {
	switch {
	case errors.Is(err, consortium.ErrBankNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, consortium.ErrBankNotEligible):
		return fiber.NewError(http.StatusForbidden, err.Error())
	case errors.Is(err, consortium.ErrAlreadyReported):
		return fiber.NewError(http.StatusConflict, err.Error())
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}
