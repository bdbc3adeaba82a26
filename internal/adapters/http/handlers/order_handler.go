// Package handlers - Order HTTP handlers.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Haleralex/marketbridge/internal/adapters/http/common"
	"github.com/Haleralex/marketbridge/internal/application/dtos"
)

// ============================================
// Use Case Interfaces
// ============================================

// CreateOrderUseCase - интерфейс для создания заказа.
type CreateOrderUseCase interface {
	Execute(ctx context.Context, cmd dtos.CreateOrderCommand) (*dtos.OrderDTO, error)
}

// CancelOrderUseCase - интерфейс для отмены заказа.
type CancelOrderUseCase interface {
	Execute(ctx context.Context, cmd dtos.CancelOrderCommand) (*dtos.OrderDTO, error)
}

// UpdateOrderStatusUseCase - интерфейс для ручной смены статуса.
type UpdateOrderStatusUseCase interface {
	Execute(ctx context.Context, cmd dtos.UpdateOrderStatusCommand) (*dtos.OrderDTO, error)
}

// GetOrderUseCase - интерфейс для получения заказа.
type GetOrderUseCase interface {
	Execute(ctx context.Context, query dtos.GetOrderQuery) (*dtos.OrderDTO, error)
}

// ListOrdersUseCase - интерфейс для списка заказов покупателя.
type ListOrdersUseCase interface {
	Execute(ctx context.Context, query dtos.ListOrdersQuery) (*dtos.OrderListDTO, error)
}

// GetOrderTransactionsUseCase - интерфейс для записей ledger'а по заказу.
type GetOrderTransactionsUseCase interface {
	Execute(ctx context.Context, query dtos.GetOrderTransactionsQuery) (*dtos.TransactionListDTO, error)
}

// ============================================
// Order Handler
// ============================================

// OrderHandler обрабатывает HTTP запросы для заказов.
type OrderHandler struct {
	createOrder       CreateOrderUseCase
	cancelOrder       CancelOrderUseCase
	updateStatus      UpdateOrderStatusUseCase
	getOrder          GetOrderUseCase
	listOrders        ListOrdersUseCase
	orderTransactions GetOrderTransactionsUseCase
}

// NewOrderHandler создаёт новый OrderHandler.
func NewOrderHandler(
	createOrder CreateOrderUseCase,
	cancelOrder CancelOrderUseCase,
	updateStatus UpdateOrderStatusUseCase,
	getOrder GetOrderUseCase,
	listOrders ListOrdersUseCase,
	orderTransactions GetOrderTransactionsUseCase,
) *OrderHandler {
	return &OrderHandler{
		createOrder:       createOrder,
		cancelOrder:       cancelOrder,
		updateStatus:      updateStatus,
		getOrder:          getOrder,
		listOrders:        listOrders,
		orderTransactions: orderTransactions,
	}
}

// ============================================
// Request DTOs
// ============================================

// OrderItemRequest - позиция заказа.
type OrderItemRequest struct {
	MatchID  string `json:"match_id" binding:"required,uuid"`
	Quantity int    `json:"quantity" binding:"required,min=1"`
	Price    string `json:"price,omitempty" binding:"omitempty,money_amount"`
}

// CreateOrderRequest - запрос на создание заказа.
//
// @Description Create order request body
type CreateOrderRequest struct {
	ShippingAddress string             `json:"shipping_address,omitempty" binding:"omitempty,max=500"`
	ShippingPhone   string             `json:"shipping_phone,omitempty" binding:"omitempty,max=32"`
	ShippingEmail   string             `json:"shipping_email,omitempty" binding:"omitempty,email"`
	PaymentMethod   string             `json:"payment_method" binding:"required,payment_method"`
	Note            string             `json:"note,omitempty" binding:"omitempty,max=1000"`
	Items           []OrderItemRequest `json:"items" binding:"required,min=1,dive"`
}

// CancelOrderRequest - причина отмены (тело необязательно).
type CancelOrderRequest struct {
	Reason string `json:"reason,omitempty" binding:"omitempty,max=500"`
}

// UpdateOrderStatusRequest - ручная смена статуса.
//
// @Description Update order status request body
type UpdateOrderStatusRequest struct {
	Status string `json:"status" binding:"required,order_status"`
	Note   string `json:"note,omitempty" binding:"omitempty,max=500"`
}

// ============================================
// HTTP Handlers
// ============================================

// CreateOrder создаёт заказ от имени текущего покупателя.
//
// @Summary Create an order
// @Description Reserve stock, price items from the catalogue and charge the wallet or await a bank transfer
// @Tags Orders
// @Accept json
// @Produce json
// @Param request body CreateOrderRequest true "Order data"
// @Success 201 {object} common.APIResponse{data=dtos.OrderDTO}
// @Failure 400 {object} common.APIResponse
// @Failure 404 {object} common.APIResponse "Product not found"
// @Failure 422 {object} common.APIResponse "Insufficient balance, out of stock or price mismatch"
// @Failure 500 {object} common.APIResponse
// @Router /api/v1/orders [post]
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	customerID, ok := requireCustomer(c)
	if !ok {
		return
	}

	var req CreateOrderRequest
	if !BindJSON(c, &req) {
		return
	}

	cmd := dtos.CreateOrderCommand{
		CustomerID:      customerID.String(),
		ShippingAddress: req.ShippingAddress,
		ShippingPhone:   req.ShippingPhone,
		ShippingEmail:   req.ShippingEmail,
		PaymentMethod:   req.PaymentMethod,
		Note:            req.Note,
		Items:           make([]dtos.OrderItemInput, 0, len(req.Items)),
	}
	for _, item := range req.Items {
		cmd.Items = append(cmd.Items, dtos.OrderItemInput{
			MatchID:  item.MatchID,
			Quantity: item.Quantity,
			Price:    item.Price,
		})
	}

	result, err := h.createOrder.Execute(c.Request.Context(), cmd)
	if err != nil {
		common.HandleDomainError(c, err)
		return
	}

	common.Success(c, http.StatusCreated, result)
}

// ListOrders возвращает заказы текущего покупателя.
//
// @Summary List my orders
// @Tags Orders
// @Produce json
// @Param limit query int false "Page size" default(20) maximum(100)
// @Param offset query int false "Offset" default(0)
// @Success 200 {object} common.APIResponse{data=dtos.OrderListDTO}
// @Failure 403 {object} common.APIResponse
// @Router /api/v1/orders [get]
func (h *OrderHandler) ListOrders(c *gin.Context) {
	customerID, ok := requireCustomer(c)
	if !ok {
		return
	}
	pagination := ParsePagination(c)

	result, err := h.listOrders.Execute(c.Request.Context(), dtos.ListOrdersQuery{
		CustomerID: customerID.String(),
		Offset:     pagination.Offset,
		Limit:      pagination.Limit,
	})
	if err != nil {
		common.HandleDomainError(c, err)
		return
	}

	common.SuccessWithMeta(c, http.StatusOK, result, BuildMeta(pagination, result.TotalCount))
}

// GetOrder возвращает заказ, если он виден текущему пользователю.
//
// @Summary Get order by ID
// @Tags Orders
// @Produce json
// @Param id path string true "Order ID" format(uuid)
// @Success 200 {object} common.APIResponse{data=dtos.OrderDTO}
// @Failure 403 {object} common.APIResponse
// @Failure 404 {object} common.APIResponse
// @Router /api/v1/orders/{id} [get]
func (h *OrderHandler) GetOrder(c *gin.Context) {
	claims, ok := requireUser(c)
	if !ok {
		return
	}
	var params IDParam
	if !BindURI(c, &params) {
		return
	}

	result, err := h.getOrder.Execute(c.Request.Context(), dtos.GetOrderQuery{
		OrderID:     params.ID,
		ActorUserID: claims.UserID.String(),
	})
	if err != nil {
		common.HandleDomainError(c, err)
		return
	}

	common.Success(c, http.StatusOK, result)
}

// CancelOrder отменяет заказ покупателя и возвращает средства продавцов.
//
// @Summary Cancel an order
// @Tags Orders
// @Accept json
// @Produce json
// @Param id path string true "Order ID" format(uuid)
// @Param request body CancelOrderRequest false "Cancellation reason"
// @Success 200 {object} common.APIResponse{data=dtos.OrderDTO}
// @Failure 403 {object} common.APIResponse "Not the buyer"
// @Failure 404 {object} common.APIResponse
// @Failure 409 {object} common.APIResponse "Order not cancellable"
// @Router /api/v1/orders/{id}/cancel [post]
func (h *OrderHandler) CancelOrder(c *gin.Context) {
	customerID, ok := requireCustomer(c)
	if !ok {
		return
	}
	var params IDParam
	if !BindURI(c, &params) {
		return
	}

	var req CancelOrderRequest
	if c.Request.ContentLength > 0 && !BindJSON(c, &req) {
		return
	}

	result, err := h.cancelOrder.Execute(c.Request.Context(), dtos.CancelOrderCommand{
		OrderID:    params.ID,
		CustomerID: customerID.String(),
		Reason:     req.Reason,
	})
	if err != nil {
		common.HandleDomainError(c, err)
		return
	}

	common.Success(c, http.StatusOK, result)
}

// UpdateStatus меняет статус заказа (продавец заказа или админ).
//
// @Summary Update order status
// @Tags Orders
// @Accept json
// @Produce json
// @Param id path string true "Order ID" format(uuid)
// @Param request body UpdateOrderStatusRequest true "Target status"
// @Success 200 {object} common.APIResponse{data=dtos.OrderDTO}
// @Failure 403 {object} common.APIResponse
// @Failure 409 {object} common.APIResponse "Transition not allowed"
// @Router /api/v1/orders/{id}/status [patch]
func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	claims, ok := requireUser(c)
	if !ok {
		return
	}
	var params IDParam
	if !BindURI(c, &params) {
		return
	}
	var req UpdateOrderStatusRequest
	if !BindJSON(c, &req) {
		return
	}

	result, err := h.updateStatus.Execute(c.Request.Context(), dtos.UpdateOrderStatusCommand{
		OrderID:     params.ID,
		ActorUserID: claims.UserID.String(),
		Status:      req.Status,
		Note:        req.Note,
	})
	if err != nil {
		common.HandleDomainError(c, err)
		return
	}

	common.Success(c, http.StatusOK, result)
}

// GetTransactions возвращает записи ledger'а, привязанные к заказу.
//
// @Summary List order transactions
// @Tags Orders
// @Produce json
// @Param id path string true "Order ID" format(uuid)
// @Success 200 {object} common.APIResponse{data=dtos.TransactionListDTO}
// @Failure 403 {object} common.APIResponse
// @Failure 404 {object} common.APIResponse
// @Router /api/v1/orders/{id}/transactions [get]
func (h *OrderHandler) GetTransactions(c *gin.Context) {
	claims, ok := requireUser(c)
	if !ok {
		return
	}
	var params IDParam
	if !BindURI(c, &params) {
		return
	}

	result, err := h.orderTransactions.Execute(c.Request.Context(), dtos.GetOrderTransactionsQuery{
		OrderID:     params.ID,
		ActorUserID: claims.UserID.String(),
	})
	if err != nil {
		common.HandleDomainError(c, err)
		return
	}

	common.Success(c, http.StatusOK, result)
}

// RegisterRoutes регистрирует маршруты заказов.
// writeLimit применяется только к созданию заказа.
func (h *OrderHandler) RegisterRoutes(rg *gin.RouterGroup, writeLimit gin.HandlerFunc) {
	orders := rg.Group("/orders")
	{
		if writeLimit != nil {
			orders.POST("", writeLimit, h.CreateOrder)
		} else {
			orders.POST("", h.CreateOrder)
		}
		orders.GET("", h.ListOrders)
		orders.GET("/:id", h.GetOrder)
		orders.POST("/:id/cancel", h.CancelOrder)
		orders.PATCH("/:id/status", h.UpdateStatus)
		orders.GET("/:id/transactions", h.GetTransactions)
	}
}
