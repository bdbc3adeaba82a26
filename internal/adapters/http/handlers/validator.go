// Package handlers содержит HTTP handlers для REST API.
//
// Handler - это Adapter в терминах Clean Architecture:
// - Принимает HTTP запрос
// - Преобразует в Command/Query DTO
// - Вызывает Use Case
// - Преобразует результат в HTTP ответ
package handlers

import (
	"errors"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/Haleralex/marketbridge/internal/adapters/http/common"
	"github.com/Haleralex/marketbridge/internal/adapters/http/middleware"
	"github.com/Haleralex/marketbridge/internal/application/pipeline"
)

// ============================================
// Custom Validator Setup
// ============================================

var (
	setupOnce sync.Once
)

// SetupValidator настраивает кастомные валидаторы для Gin.
// Теги те же, что проверяет pipeline.Validated для команд.
func SetupValidator() {
	setupOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			// Используем json tag для имён полей в ошибках
			v.RegisterTagNameFunc(func(fld reflect.StructField) string {
				name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
				if name == "-" {
					return ""
				}
				return name
			})

			pipeline.RegisterValidations(v)
		}
	})
}

// ============================================
// Validation Error Handling
// ============================================

// HandleValidationErrors преобразует ошибки валидации в HTTP ответ.
func HandleValidationErrors(c *gin.Context, err error) {
	var fieldErrors []common.FieldError

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		for _, fieldErr := range validationErrors {
			fieldErrors = append(fieldErrors, common.FieldError{
				Field:   fieldErr.Field(),
				Message: getValidationMessage(fieldErr),
				Code:    fieldErr.Tag(),
			})
		}
	}

	if len(fieldErrors) == 0 {
		// Если не удалось распарсить - общая ошибка
		common.BadRequestResponse(c, "Invalid request body: "+err.Error())
		return
	}

	common.ValidationErrorResponse(c, fieldErrors)
}

// getValidationMessage возвращает человекочитаемое сообщение об ошибке.
func getValidationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Invalid email format"
	case "uuid":
		return "Invalid UUID format"
	case "min":
		return "Value is too small (minimum: " + fe.Param() + ")"
	case "max":
		return "Value is too large (maximum: " + fe.Param() + ")"
	case "oneof":
		return "Value must be one of: " + fe.Param()
	case "money_amount":
		return "Invalid amount format (use decimal like '100.50')"
	case "payment_method":
		return "Payment method must be WalletBalance or BankTransfer"
	case "order_status":
		return "Unknown order status"
	default:
		return "Invalid value"
	}
}

// ============================================
// Request Parsing Helpers
// ============================================

// BindJSON биндит JSON тело запроса и возвращает ошибку если что-то не так.
// Возвращает true если успешно, false если была ошибка (ответ уже отправлен).
func BindJSON[T any](c *gin.Context, req *T) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		HandleValidationErrors(c, err)
		return false
	}
	return true
}

// BindQuery биндит query параметры.
func BindQuery[T any](c *gin.Context, req *T) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		HandleValidationErrors(c, err)
		return false
	}
	return true
}

// BindURI биндит URI параметры.
func BindURI[T any](c *gin.Context, req *T) bool {
	if err := c.ShouldBindUri(req); err != nil {
		HandleValidationErrors(c, err)
		return false
	}
	return true
}

// IDParam - UUID из пути (/orders/:id).
type IDParam struct {
	ID string `uri:"id" binding:"required,uuid"`
}

// ============================================
// Identity Helpers
// ============================================

// requireUser возвращает пользователя из JWT. Без claims отвечает 401.
func requireUser(c *gin.Context) (*middleware.AuthClaims, bool) {
	claims := middleware.GetAuthClaims(c)
	if claims == nil {
		common.UnauthorizedResponse(c, "Authentication required")
		return nil, false
	}
	return claims, true
}

// requireCustomer возвращает профиль покупателя из JWT.
// Пользователь без профиля покупателя получает 403.
func requireCustomer(c *gin.Context) (uuid.UUID, bool) {
	claims, ok := requireUser(c)
	if !ok {
		return uuid.Nil, false
	}
	if claims.CustomerID == nil {
		common.ForbiddenResponse(c, "Customer profile required")
		return uuid.Nil, false
	}
	return *claims.CustomerID, true
}

// ============================================
// Pagination Helper
// ============================================

// PaginationParams - limit/offset из query string.
type PaginationParams struct {
	Offset int
	Limit  int
}

const (
	defaultLimit = 20
	maxLimit     = 100
)

// ParsePagination парсит limit и offset. Некорректные значения заменяются дефолтами.
func ParsePagination(c *gin.Context) PaginationParams {
	params := PaginationParams{Limit: defaultLimit}

	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			params.Limit = min(n, maxLimit)
		}
	}
	if raw := c.Query("offset"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			params.Offset = n
		}
	}

	return params
}

// BuildMeta создаёт мета-информацию для пагинированного ответа.
func BuildMeta(params PaginationParams, total int) *common.APIMeta {
	totalPages := total / params.Limit
	if total%params.Limit > 0 {
		totalPages++
	}

	return &common.APIMeta{
		Page:       params.Offset/params.Limit + 1,
		PerPage:    params.Limit,
		Total:      total,
		TotalPages: totalPages,
	}
}
