// Package handlers - SePay payment webhook.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Haleralex/marketbridge/internal/adapters/http/common"
	"github.com/Haleralex/marketbridge/internal/application/dtos"
	"github.com/Haleralex/marketbridge/internal/application/ports"
)

// ReconcilePaymentUseCase - интерфейс для сверки входящего платежа.
type ReconcilePaymentUseCase interface {
	Execute(ctx context.Context, cmd dtos.ReconcilePaymentCommand) (*dtos.PaymentReconciliationDTO, error)
}

// transferTypeIn - входящий перевод. Исходящие уведомления игнорируются.
const transferTypeIn = "in"

var orderIDPattern = regexp.MustCompile(`(?i)[0-9a-f]{8}-?[0-9a-f]{4}-?[0-9a-f]{4}-?[0-9a-f]{4}-?[0-9a-f]{12}`)

// SePayWebhookHandler принимает уведомления SePay о банковских переводах.
//
// SePay доставляет уведомление at-least-once. Повторная доставка с тем же id
// отсекается guard'ом; при ошибке обработки отметка снимается, чтобы
// следующая доставка прошла заново.
type SePayWebhookHandler struct {
	reconcile ReconcilePaymentUseCase
	guard     ports.DeliveryGuard
	logger    *slog.Logger
}

// NewSePayWebhookHandler создаёт новый SePayWebhookHandler.
func NewSePayWebhookHandler(reconcile ReconcilePaymentUseCase, guard ports.DeliveryGuard, logger *slog.Logger) *SePayWebhookHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SePayWebhookHandler{
		reconcile: reconcile,
		guard:     guard,
		logger:    logger,
	}
}

// WebhookAckDTO - ответ на уведомление, которое не требует сверки.
type WebhookAckDTO struct {
	Ignored bool   `json:"ignored"`
	Reason  string `json:"reason,omitempty"`
}

// Handle обрабатывает уведомление SePay.
//
// @Summary SePay payment notification
// @Description Reconcile an incoming bank transfer against the order total
// @Tags Webhooks
// @Accept json
// @Produce json
// @Param Authorization header string true "Apikey <key>"
// @Param request body dtos.SePayWebhookPayload true "SePay notification"
// @Success 200 {object} common.APIResponse{data=dtos.PaymentReconciliationDTO}
// @Failure 400 {object} common.APIResponse
// @Failure 401 {object} common.APIResponse
// @Failure 404 {object} common.APIResponse "Order not found"
// @Failure 500 {object} common.APIResponse
// @Router /api/v1/webhooks/sepay [post]
func (h *SePayWebhookHandler) Handle(c *gin.Context) {
	ctx := c.Request.Context()

	var payload dtos.SePayWebhookPayload
	if !BindJSON(c, &payload) {
		return
	}

	if !strings.EqualFold(payload.TransferType, transferTypeIn) {
		common.Success(c, http.StatusOK, WebhookAckDTO{Ignored: true, Reason: "outgoing transfer"})
		return
	}
	if !payload.TransferAmount.IsPositive() {
		common.ValidationErrorResponse(c, []common.FieldError{
			{Field: "transferAmount", Message: "Transfer amount must be positive", Code: "min"},
		})
		return
	}

	orderID, ok := extractOrderID(payload)
	if !ok {
		h.logger.WarnContext(ctx, "sepay notification without order id",
			slog.Int64("sepay_id", payload.ID),
			slog.String("content", payload.Content),
		)
		common.ValidationErrorResponse(c, []common.FieldError{
			{Field: "code", Message: "Order id not found in payment code or content", Code: "uuid"},
		})
		return
	}

	deliveryKey := strconv.FormatInt(payload.ID, 10)
	alreadyProcessed, err := h.guard.CheckAndMark(ctx, deliveryKey)
	if err != nil {
		h.logger.ErrorContext(ctx, "delivery guard failed", slog.String("error", err.Error()))
		common.InternalErrorResponse(c, "An unexpected error occurred")
		return
	}
	if alreadyProcessed {
		h.logger.InfoContext(ctx, "duplicate sepay delivery skipped", slog.Int64("sepay_id", payload.ID))
		common.Success(c, http.StatusOK, dtos.PaymentReconciliationDTO{
			OrderID:          orderID,
			AlreadyProcessed: true,
		})
		return
	}

	result, err := h.reconcile.Execute(ctx, dtos.ReconcilePaymentCommand{
		OrderID:           orderID,
		TransferAmount:    payload.TransferAmount.String(),
		GatewayTransferID: deliveryKey,
	})
	if err != nil {
		if delErr := h.guard.Delete(ctx, deliveryKey); delErr != nil {
			h.logger.ErrorContext(ctx, "failed to release delivery key",
				slog.String("key", deliveryKey),
				slog.String("error", delErr.Error()),
			)
		}
		common.HandleDomainError(c, err)
		return
	}

	h.logger.InfoContext(ctx, "sepay payment reconciled",
		slog.Int64("sepay_id", payload.ID),
		slog.String("order_id", result.OrderID),
		slog.String("status", result.Status),
		slog.Bool("matched", result.Matched),
	)
	common.Success(c, http.StatusOK, result)
}

// extractOrderID берёт id заказа из Code, иначе ищет его в Content и Description.
// Банки часто вырезают дефисы из назначения платежа, поэтому id без дефисов тоже принимается.
func extractOrderID(p dtos.SePayWebhookPayload) (string, bool) {
	for _, candidate := range []string{p.Code, p.Content, p.Description} {
		match := orderIDPattern.FindString(candidate)
		if match == "" {
			continue
		}
		if id, err := uuid.Parse(match); err == nil {
			return id.String(), true
		}
	}
	return "", false
}

// RegisterRoutes регистрирует webhook. middlewares - авторизация и rate limit.
func (h *SePayWebhookHandler) RegisterRoutes(rg *gin.RouterGroup, middlewares ...gin.HandlerFunc) {
	handlers := append(middlewares, h.Handle)
	rg.POST("/webhooks/sepay", handlers...)
}
