// Package validation проверяет входные структуры по тегам `validate`
// и переводит нарушения в domain.ValidationError.
package validation

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

var (
	once     sync.Once
	instance *validator.Validate

	slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
)

func get() *validator.Validate {
	once.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return field.Name
			}
			return name
		})
		_ = v.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
			return slugPattern.MatchString(fl.Field().String())
		})
		_ = v.RegisterValidation("order_status", func(fl validator.FieldLevel) bool {
			return domain.OrderStatus(fl.Field().String()).IsAdminSettable()
		})
		_ = v.RegisterValidation("payment_method", func(fl validator.FieldLevel) bool {
			return domain.PaymentMethod(fl.Field().String()).Valid()
		})
		_ = v.RegisterValidation("product_status", func(fl validator.FieldLevel) bool {
			return domain.ProductStatus(fl.Field().String()).Valid()
		})
		instance = v
	})
	return instance
}

// Struct проверяет s; при нарушениях возвращает *domain.ValidationError.
func Struct(s any) error {
	err := get().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &domain.ValidationError{Fields: []domain.FieldError{{Field: "", Rule: err.Error()}}}
	}

	out := &domain.ValidationError{Fields: make([]domain.FieldError, 0, len(fieldErrs))}
	for _, fe := range fieldErrs {
		out.Fields = append(out.Fields, domain.FieldError{
			Field: trimRoot(fe.Namespace()),
			Rule:  fe.Tag(),
			Param: fe.Param(),
		})
	}
	return out
}

// trimRoot убирает имя корневой структуры: "CreateOrderInput.items[0].qty" -> "items[0].qty".
func trimRoot(namespace string) string {
	if i := strings.IndexByte(namespace, '.'); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}
