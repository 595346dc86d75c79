package handler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sokocraft/escrow-service/internal/api/middleware"
	"github.com/sokocraft/escrow-service/internal/domain/order"
	"github.com/sokocraft/escrow-service/internal/domain/payment"
	"github.com/sokocraft/escrow-service/internal/escrow"
	"github.com/sokocraft/escrow-service/internal/gateway/daraja"
)

// EscrowService is the payment lifecycle surface the HTTP layer drives
type EscrowService interface {
	InitiateCollection(ctx context.Context, orderRef, actorID uuid.UUID, buyerPhone string, amount int64, description string) (*payment.Payment, error)
	ConfirmDeliveryAndRelease(ctx context.Context, orderRef, actorID uuid.UUID) (*payment.Payment, error)
	Refund(ctx context.Context, orderRef, actorID uuid.UUID, reason string) (*payment.Payment, error)
	GetByOrder(ctx context.Context, orderRef uuid.UUID) (*payment.Payment, error)
}

// PaymentHandler handles HTTP requests for the escrow payment lifecycle
type PaymentHandler struct {
	escrowService EscrowService
	logger        *slog.Logger
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(logger *slog.Logger, escrowService EscrowService) *PaymentHandler {
	return &PaymentHandler{
		escrowService: escrowService,
		logger:        logger,
	}
}

// Initiate starts collecting an order's payment from the buyer's phone
func (h *PaymentHandler) Initiate(c *gin.Context) {
	orderRef, ok := h.orderRef(c)
	if !ok {
		return
	}
	actorID, ok := h.actorID(c)
	if !ok {
		return
	}

	var req InitiatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	amount, err := payment.ParseAmount(req.Amount)
	if err != nil {
		h.logger.Error("Invalid amount", "amount", req.Amount, "error", err)
		RespondBadRequest(c, "Invalid amount: "+req.Amount)
		return
	}

	description := req.Description
	if description == "" {
		description = "Order payment"
	}

	p, err := h.escrowService.InitiateCollection(c.Request.Context(), orderRef, actorID, req.PhoneNumber, amount, description)
	if err != nil {
		h.respondError(c, err, "Failed to initiate payment collection")
		return
	}

	RespondAccepted(c, mapPaymentToResponse(p))
}

// GetByOrder returns the current ledger view for an order's payment
func (h *PaymentHandler) GetByOrder(c *gin.Context) {
	orderRef, ok := h.orderRef(c)
	if !ok {
		return
	}

	p, err := h.escrowService.GetByOrder(c.Request.Context(), orderRef)
	if err != nil {
		h.respondError(c, err, "Failed to get payment")
		return
	}

	RespondOK(c, mapPaymentToResponse(p))
}

// ConfirmDelivery marks the order delivered and releases the held funds
func (h *PaymentHandler) ConfirmDelivery(c *gin.Context) {
	orderRef, ok := h.orderRef(c)
	if !ok {
		return
	}
	actorID, ok := h.actorID(c)
	if !ok {
		return
	}

	p, err := h.escrowService.ConfirmDeliveryAndRelease(c.Request.Context(), orderRef, actorID)
	if err != nil {
		h.respondError(c, err, "Failed to confirm delivery")
		return
	}

	RespondOK(c, mapPaymentToResponse(p))
}

// Refund reverses a held payment with an operator-visible reason
func (h *PaymentHandler) Refund(c *gin.Context) {
	orderRef, ok := h.orderRef(c)
	if !ok {
		return
	}
	actorID, ok := h.actorID(c)
	if !ok {
		return
	}

	var req RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: a refund reason is required")
		return
	}

	p, err := h.escrowService.Refund(c.Request.Context(), orderRef, actorID, req.Reason)
	if err != nil {
		h.respondError(c, err, "Failed to refund payment")
		return
	}

	RespondOK(c, mapPaymentToResponse(p))
}

func (h *PaymentHandler) orderRef(c *gin.Context) (uuid.UUID, bool) {
	idParam := c.Param("id")
	id, err := uuid.Parse(idParam)
	if err != nil {
		h.logger.Error("Invalid order ID", "id", idParam, "error", err)
		RespondBadRequest(c, "Invalid order ID")
		return uuid.Nil, false
	}
	return id, true
}

func (h *PaymentHandler) actorID(c *gin.Context) (uuid.UUID, bool) {
	actorID, ok := middleware.GetActorID(c)
	if !ok {
		RespondUnauthorized(c, "")
		return uuid.Nil, false
	}
	return actorID, true
}

// respondError maps domain errors onto the HTTP error taxonomy
func (h *PaymentHandler) respondError(c *gin.Context, err error, logMessage string) {
	var gatewayErr daraja.GatewayError
	var authErr daraja.AuthError

	switch {
	case errors.Is(err, order.ErrOrderNotFound{}), errors.Is(err, payment.ErrEntryNotFound{}):
		RespondNotFound(c, err.Error())
	case errors.Is(err, escrow.ErrPermissionDenied):
		RespondForbidden(c, err.Error())
	case errors.Is(err, payment.ErrDuplicateEntry{}),
		errors.Is(err, escrow.ErrDeliveryAlreadyConfirmed),
		errors.Is(err, escrow.ErrInvalidState{}):
		RespondConflict(c, err.Error())
	case errors.Is(err, payment.ErrInvalidPhone),
		errors.Is(err, payment.ErrInvalidAmount),
		errors.Is(err, payment.ErrMissingRefundReason):
		RespondBadRequest(c, err.Error())
	case errors.As(err, &gatewayErr), errors.As(err, &authErr):
		h.logger.Error(logMessage, "error", err)
		RespondWithError(c, 502, "GATEWAY_ERROR", "The payment gateway rejected the request")
	default:
		h.logger.Error(logMessage, "error", err)
		RespondInternalError(c)
	}
}

// mapPaymentToResponse maps a ledger entry to its API representation
func mapPaymentToResponse(p *payment.Payment) PaymentResponse {
	response := PaymentResponse{
		ID:                p.ID.String(),
		OrderRef:          p.OrderRef.String(),
		Amount:            payment.FormatAmount(p.Amount),
		BuyerPhone:        p.BuyerPhone,
		ArtisanPhone:      p.ArtisanPhone,
		OutboundRef:       p.OutboundRef,
		GatewayReceiptRef: p.GatewayReceiptRef,
		State:             string(p.State),
		ResultDescription: p.ResultDescription,
		RefundReason:      p.RefundReason,
		InitiatedAt:       p.InitiatedAt.Format(time.RFC3339),
	}

	if p.HeldAt != nil {
		response.HeldAt = p.HeldAt.Format(time.RFC3339)
	}
	if p.ReleasedAt != nil {
		response.ReleasedAt = p.ReleasedAt.Format(time.RFC3339)
	}
	if p.RefundedAt != nil {
		response.RefundedAt = p.RefundedAt.Format(time.RFC3339)
	}

	return response
}
