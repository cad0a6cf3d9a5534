// Package validation содержит клиентские проверки форм панели.
// Бэкенд проверяет данные повторно, здесь отсекается только то,
// что можно показать пользователю рядом с полем формы.
package validation

import (
	"math"
	"sort"
	"strings"

	"github.com/savelevab/laundry-panel/internal/model"
)

// FieldErrors сопоставляет имя поля формы с текстом ошибки.
type FieldErrors map[string]string

// Error собирает сообщения полей в одну строку в стабильном порядке.
func (e FieldErrors) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(e))
	for _, f := range fields {
		parts = append(parts, f+": "+e[f])
	}
	return strings.Join(parts, "; ")
}

// ValidateOrderDraft проверяет черновик заказа и возвращает ошибки по полям.
func ValidateOrderDraft(d model.OrderDraft) error {
	errs := FieldErrors{}

	if strings.TrimSpace(d.CustomerName) == "" {
		errs["customer_name"] = "customer name is required"
	}
	if strings.TrimSpace(d.Phone) == "" {
		errs["phone"] = "phone number is required"
	}
	if !d.Category.Valid() {
		errs["category"] = "service category must be chosen"
	}
	if !d.Service.Valid() {
		errs["service"] = "service type must be chosen"
	}

	switch {
	case d.Quantity <= 0:
		errs["quantity"] = "quantity must be a number greater than zero"
	case d.Category == model.CategoryByItem && d.Quantity != math.Trunc(d.Quantity):
		errs["quantity"] = "quantity must be a whole number of items"
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

// ValidateUserDraft проверяет форму создания учётной записи.
func ValidateUserDraft(username, password string, role model.Role) error {
	errs := FieldErrors{}

	if strings.TrimSpace(username) == "" {
		errs["username"] = "username is required"
	}
	if password == "" {
		errs["password"] = "password is required"
	}
	if !role.Valid() {
		errs["role"] = "role must be admin or staff"
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}
