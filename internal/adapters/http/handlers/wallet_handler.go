// Package handlers - Wallet HTTP handlers.
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

// GetBalanceUseCase - интерфейс для получения баланса.
type GetBalanceUseCase interface {
	Execute(ctx context.Context, query dtos.GetBalanceQuery) (*dtos.BalanceDTO, error)
}

// GetUserTransactionsUseCase - интерфейс для истории записей пользователя.
type GetUserTransactionsUseCase interface {
	Execute(ctx context.Context, query dtos.GetUserTransactionsQuery) (*dtos.TransactionListDTO, error)
}

// TransferFundsUseCase - интерфейс для перевода между пользователями.
type TransferFundsUseCase interface {
	Execute(ctx context.Context, cmd dtos.TransferFundsCommand) (*dtos.TransactionDTO, error)
}

// ============================================
// Wallet Handler
// ============================================

// WalletHandler обрабатывает запросы к кошельку текущего пользователя.
type WalletHandler struct {
	getBalance       GetBalanceUseCase
	userTransactions GetUserTransactionsUseCase
	transferFunds    TransferFundsUseCase
}

// NewWalletHandler создаёт новый WalletHandler.
func NewWalletHandler(
	getBalance GetBalanceUseCase,
	userTransactions GetUserTransactionsUseCase,
	transferFunds TransferFundsUseCase,
) *WalletHandler {
	return &WalletHandler{
		getBalance:       getBalance,
		userTransactions: userTransactions,
		transferFunds:    transferFunds,
	}
}

// TransferFundsRequest - запрос на перевод другому пользователю.
//
// @Description Transfer funds request body
type TransferFundsRequest struct {
	ReceiverID  string `json:"receiver_id" binding:"required,uuid"`
	Amount      string `json:"amount" binding:"required,money_amount"`
	Description string `json:"description" binding:"max=500"`
}

// ============================================
// HTTP Handlers
// ============================================

// GetBalance возвращает баланс текущего пользователя.
//
// @Summary Get my balance
// @Tags Wallet
// @Produce json
// @Success 200 {object} common.APIResponse{data=dtos.BalanceDTO}
// @Failure 401 {object} common.APIResponse
// @Failure 404 {object} common.APIResponse
// @Router /api/v1/wallet [get]
func (h *WalletHandler) GetBalance(c *gin.Context) {
	claims, ok := requireUser(c)
	if !ok {
		return
	}

	result, err := h.getBalance.Execute(c.Request.Context(), dtos.GetBalanceQuery{UserID: claims.UserID.String()})
	if err != nil {
		common.HandleDomainError(c, err)
		return
	}

	common.Success(c, http.StatusOK, result)
}

// GetTransactions возвращает записи, где пользователь отправитель или получатель.
//
// @Summary List my transactions
// @Tags Wallet
// @Produce json
// @Success 200 {object} common.APIResponse{data=dtos.TransactionListDTO}
// @Failure 401 {object} common.APIResponse
// @Router /api/v1/wallet/transactions [get]
func (h *WalletHandler) GetTransactions(c *gin.Context) {
	claims, ok := requireUser(c)
	if !ok {
		return
	}

	result, err := h.userTransactions.Execute(c.Request.Context(), dtos.GetUserTransactionsQuery{UserID: claims.UserID.String()})
	if err != nil {
		common.HandleDomainError(c, err)
		return
	}

	common.Success(c, http.StatusOK, result)
}

// Transfer переводит средства с кошелька текущего пользователя.
//
// @Summary Transfer funds
// @Tags Wallet
// @Accept json
// @Produce json
// @Param request body TransferFundsRequest true "Transfer data"
// @Success 201 {object} common.APIResponse{data=dtos.TransactionDTO}
// @Failure 400 {object} common.APIResponse
// @Failure 404 {object} common.APIResponse "Receiver not found"
// @Failure 422 {object} common.APIResponse "Insufficient balance"
// @Router /api/v1/wallet/transfers [post]
func (h *WalletHandler) Transfer(c *gin.Context) {
	claims, ok := requireUser(c)
	if !ok {
		return
	}
	var req TransferFundsRequest
	if !BindJSON(c, &req) {
		return
	}

	result, err := h.transferFunds.Execute(c.Request.Context(), dtos.TransferFundsCommand{
		SenderID:    claims.UserID.String(),
		ReceiverID:  req.ReceiverID,
		Amount:      req.Amount,
		Description: req.Description,
	})
	if err != nil {
		common.HandleDomainError(c, err)
		return
	}

	common.Success(c, http.StatusCreated, result)
}

// RegisterRoutes регистрирует маршруты кошелька.
func (h *WalletHandler) RegisterRoutes(rg *gin.RouterGroup) {
	wallet := rg.Group("/wallet")
	{
		wallet.GET("", h.GetBalance)
		wallet.GET("/transactions", h.GetTransactions)
		wallet.POST("/transfers", h.Transfer)
	}
}
