package handlers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/diogomassis/payfriend/internal/dto"
	"github.com/diogomassis/payfriend/internal/models"
	"github.com/diogomassis/payfriend/internal/services/gateway"
	"github.com/diogomassis/payfriend/internal/services/health"
	"github.com/diogomassis/payfriend/internal/services/onetouch"
)

const anonymousUser = "anonymous"

type ApprovalService interface {
	Create(ctx context.Context, userID string, payment *models.PaymentRequest) (*models.ApprovalRequest, error)
	Status(ctx context.Context, id string) (models.Outcome, error)
	Resolve(ctx context.Context, id string, status models.Outcome) (*models.ApprovalRequest, error)
	RequestSms(ctx context.Context, id string) error
	VerifyCode(ctx context.Context, id, code string) (*models.ApprovalRequest, error)
}

type LedgerReader interface {
	List(ctx context.Context, userID string, from, to time.Time) ([]models.CompletedPayment, error)
}

type HealthReporter interface {
	GetStatus() (map[string]health.Status, bool)
}

type PaymentHandlers struct {
	approvals ApprovalService
	ledger    LedgerReader
	health    HealthReporter
	logger    zerolog.Logger
}

func New(approvals ApprovalService, ledger LedgerReader, logger zerolog.Logger) *PaymentHandlers {
	return &PaymentHandlers{
		approvals: approvals,
		ledger:    ledger,
		logger:    logger.With().Str("component", "handlers").Logger(),
	}
}

func (h *PaymentHandlers) WithHealth(reporter HealthReporter) *PaymentHandlers {
	h.health = reporter
	return h
}

func (h *PaymentHandlers) Register(app *fiber.App) {
	if h.health != nil {
		app.Get("/health", h.HandleHealth)
	}
	app.Get(gateway.SendPath, h.HandleLanding)
	app.Post(gateway.SendPath, h.HandleSendPayment)
	app.Get(gateway.StatusPath, h.HandleStatus)
	app.Post("/payments/onetouch/callback", h.HandleOneTouchCallback)
	app.Post(gateway.SmsCodePath, h.HandleVerifySms)
	app.Post(gateway.SmsSendPath, h.HandleSendSms)
	app.Get(gateway.SuccessPath, h.HandleLanding)
	app.Post(gateway.SuccessPath, h.HandleLanding)
}

func userID(c *fiber.Ctx) string {
	if user := strings.TrimSpace(c.Get(gateway.UserHeader)); user != "" {
		return user
	}
	return anonymousUser
}

func flashMessage(c *fiber.Ctx) string {
	if msg := c.FormValue(gateway.FlashMessageField); msg != "" {
		return msg
	}
	return c.FormValue(gateway.RedirectMessageField)
}

// HandleSendPayment creates an approval request for the submitted payment.
// A post carrying only a flash message is an exit navigation back to the
// payment form and renders it.
func (h *PaymentHandlers) HandleSendPayment(c *fiber.Ctx) error {
	sendTo := strings.TrimSpace(c.FormValue("send_to"))
	rawAmount := strings.TrimSpace(c.FormValue("amount"))
	if sendTo == "" && rawAmount == "" && flashMessage(c) != "" {
		return h.HandleLanding(c)
	}

	amount, err := decimal.NewFromString(rawAmount)
	if err != nil {
		h.logger.Debug().Str("amount", rawAmount).Msg("[handlers] invalid amount")
		return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.SendPaymentResponse{Success: false})
	}

	approval, err := h.approvals.Create(c.UserContext(), userID(c), models.NewPaymentRequest(sendTo, amount))
	if errors.Is(err, onetouch.ErrInvalidPayment) {
		h.logger.Debug().Err(err).Msg("[handlers] payment rejected")
		return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.SendPaymentResponse{Success: false})
	}
	if err != nil {
		h.logger.Error().Err(err).Msg("[handlers] failed to create approval request")
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.SendPaymentResponse{Success: false})
	}
	return c.JSON(dto.SendPaymentResponse{Success: true, RequestID: approval.ID})
}

// HandleStatus answers with the bare decision token.
func (h *PaymentHandlers) HandleStatus(c *fiber.Ctx) error {
	id := c.Query("request_id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).Send(nil)
	}

	status, err := h.approvals.Status(c.UserContext(), id)
	if errors.Is(err, onetouch.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).Send(nil)
	}
	if err != nil {
		h.logger.Error().Err(err).Str("requestId", id).Msg("[handlers] failed to read approval status")
		return c.Status(fiber.StatusInternalServerError).Send(nil)
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return c.SendString(status.String())
}

func (h *PaymentHandlers) HandleOneTouchCallback(c *fiber.Ctx) error {
	id := c.FormValue("request_id")
	status, known := models.ParseOutcome([]byte(c.FormValue("status")))
	if id == "" || !known || !status.Terminal() {
		return c.Status(fiber.StatusBadRequest).JSON(dto.DecisionResponse{
			Success: false,
			Status:  models.OutcomePending.String(),
			Message: "request_id and a status of approved or denied are required",
		})
	}

	approval, err := h.approvals.Resolve(c.UserContext(), id, status)
	return h.decision(c, id, approval, err)
}

func (h *PaymentHandlers) HandleVerifySms(c *fiber.Ctx) error {
	id := c.FormValue("request_id")
	code := c.FormValue("code")
	if id == "" || code == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.DecisionResponse{
			Success: false,
			Status:  models.OutcomePending.String(),
			Message: "request_id and code are required",
		})
	}

	approval, err := h.approvals.VerifyCode(c.UserContext(), id, code)
	return h.decision(c, id, approval, err)
}

func (h *PaymentHandlers) HandleSendSms(c *fiber.Ctx) error {
	id := c.FormValue("request_id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).Send(nil)
	}

	err := h.approvals.RequestSms(c.UserContext(), id)
	switch {
	case err == nil:
		return c.SendStatus(fiber.StatusAccepted)
	case errors.Is(err, onetouch.ErrNotFound):
		return c.Status(fiber.StatusNotFound).Send(nil)
	case errors.Is(err, onetouch.ErrAlreadyResolved), errors.Is(err, onetouch.ErrExpired):
		return c.Status(fiber.StatusConflict).Send(nil)
	default:
		h.logger.Error().Err(err).Str("requestId", id).Msg("[handlers] failed to request sms code")
		return c.Status(fiber.StatusServiceUnavailable).Send(nil)
	}
}

func (h *PaymentHandlers) decision(c *fiber.Ctx, id string, approval *models.ApprovalRequest, err error) error {
	res := dto.DecisionResponse{Status: models.OutcomePending.String()}
	if approval != nil {
		res.Status = approval.Status.String()
	}
	if err == nil {
		res.Success = true
		return c.JSON(res)
	}

	res.Message = err.Error()
	switch {
	case errors.Is(err, onetouch.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(res)
	case errors.Is(err, onetouch.ErrAlreadyResolved), errors.Is(err, onetouch.ErrExpired):
		return c.Status(fiber.StatusConflict).JSON(res)
	case errors.Is(err, onetouch.ErrInvalidCode):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(res)
	default:
		h.logger.Error().Err(err).Str("requestId", id).Msg("[handlers] failed to resolve approval request")
		res.Message = "internal error"
		return c.Status(fiber.StatusInternalServerError).JSON(res)
	}
}

// HandleLanding renders the exit pages: the flash message carried by the
// navigation and the payments recorded for the user.
func (h *PaymentHandlers) HandleLanding(c *fiber.Ctx) error {
	payments, err := h.ledger.List(c.UserContext(), userID(c), time.Time{}, time.Time{})
	if err != nil {
		h.logger.Error().Err(err).Msg("[handlers] failed to list payments")
		return c.Status(fiber.StatusInternalServerError).Send(nil)
	}
	return c.JSON(dto.LandingResponse{
		Flash:    flashMessage(c),
		Payments: payments,
	})
}

func (h *PaymentHandlers) HandleHealth(c *fiber.Ctx) error {
	statuses, healthy := h.health.GetStatus()
	if !healthy {
		c.Status(fiber.StatusServiceUnavailable)
	}
	return c.JSON(statuses)
}
