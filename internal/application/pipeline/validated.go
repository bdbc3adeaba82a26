package pipeline

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/Haleralex/marketbridge/internal/domain/entities"
	domainerrors "github.com/Haleralex/marketbridge/internal/domain/errors"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	RegisterValidations(v)
	return v
}

// moneyPattern - неотрицательная десятичная строка. Масштаб 2 применяет Money.
var moneyPattern = regexp.MustCompile(`^\d+(\.\d{1,8})?$`)

// RegisterValidations добавляет доменные теги: money_amount, payment_method, order_status.
// HTTP слой регистрирует их же в validator'е gin.
func RegisterValidations(v *validator.Validate) {
	_ = v.RegisterValidation("money_amount", func(fl validator.FieldLevel) bool {
		return moneyPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("payment_method", func(fl validator.FieldLevel) bool {
		return entities.PaymentMethod(fl.Field().String()).IsValid()
	})
	_ = v.RegisterValidation("order_status", func(fl validator.FieldLevel) bool {
		_, err := entities.ParseOrderStatus(fl.Field().String())
		return err == nil
	})
}

// Validated проверяет validate-теги команды до вызова handler'а.
// Нарушения возвращаются как domainerrors.ValidationErrors и не открывают транзакцию.
func Validated[C any, R any](next Handler[C, R]) Handler[C, R] {
	return HandlerFunc[C, R](func(ctx context.Context, cmd C) (R, error) {
		if !isStruct(cmd) {
			return next.Execute(ctx, cmd)
		}
		if err := validate.Struct(cmd); err != nil {
			var zero R
			return zero, toValidationErrors(err)
		}
		return next.Execute(ctx, cmd)
	})
}

func isStruct(v any) bool {
	t := reflect.TypeOf(v)
	if t == nil {
		return false
	}
	if t.Kind() == reflect.Pointer {
		if reflect.ValueOf(v).IsNil() {
			return false
		}
		t = t.Elem()
	}
	return t.Kind() == reflect.Struct
}

func toValidationErrors(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	var verrs domainerrors.ValidationErrors
	for _, fe := range fieldErrs {
		verrs.Add(fieldPath(fe), validationMessage(fe))
	}
	return verrs
}

// fieldPath убирает имя корневой структуры: "CreateOrderCommand.items[0].quantity" -> "items[0].quantity".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "email":
		return "must be a valid email"
	case "uuid":
		return "must be a valid UUID"
	case "money_amount":
		return "must be a decimal amount like 100.50"
	case "payment_method":
		return "must be WalletBalance or BankTransfer"
	case "order_status":
		return "unknown order status"
	}
	return "is invalid"
}
