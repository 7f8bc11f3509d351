// Package validation содержит функции валидации входных данных.
package validation

import (
	"fmt"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/mmeshcher/staysync/internal/model"
)

// PINLength — длина PIN-кода сотрудника.
const PINLength = 4

// IsValidPIN проверяет, что PIN состоит ровно из четырёх цифр.
func IsValidPIN(pin string) bool {
	if len(pin) != PINLength {
		return false
	}

	for i := 0; i < len(pin); i++ {
		if !unicode.IsDigit(rune(pin[i])) {
			return false
		}
	}
	return true
}

// IsValidDate проверяет календарную дату в формате YYYY-MM-DD.
func IsValidDate(s string) bool {
	_, err := model.ParseDate(s)
	return err == nil
}

// IsValidDiscount проверяет скидку в процентах.
func IsValidDiscount(d float64) bool {
	return d >= 0 && d <= 100
}

// New возвращает валидатор структур с зарегистрированными правилами pin и date.
func New() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := Register(v); err != nil {
		panic(err)
	}
	return v
}

// Register добавляет к валидатору правила pin и date.
func Register(v *validator.Validate) error {
	if err := v.RegisterValidation("pin", func(fl validator.FieldLevel) bool {
		return IsValidPIN(fl.Field().String())
	}); err != nil {
		return fmt.Errorf("register pin rule: %w", err)
	}

	if err := v.RegisterValidation("date", func(fl validator.FieldLevel) bool {
		return IsValidDate(fl.Field().String())
	}); err != nil {
		return fmt.Errorf("register date rule: %w", err)
	}
	return nil
}

// Message превращает ошибку валидатора в короткое сообщение для клиента.
func Message(err error) string {
	errs, ok := err.(validator.ValidationErrors)
	if !ok || len(errs) == 0 {
		return err.Error()
	}

	fe := errs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "pin":
		return fmt.Sprintf("%s must be %d digits", fe.Field(), PINLength)
	case "date":
		return fmt.Sprintf("%s must be YYYY-MM-DD", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	case "gt", "gte", "lte", "min", "max":
		return fmt.Sprintf("%s is out of range", fe.Field())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
