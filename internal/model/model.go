// Package model содержит доменные сущности панели прачечной.
package model

import (
	"encoding/json"
	"math"
	"time"
)

// Role определяет роль учётной записи панели.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleStaff Role = "staff"
)

// Valid сообщает, известна ли роль панели.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleStaff
}

// CanManageUsers сообщает, доступно ли роли администрирование учётных записей.
func (r Role) CanManageUsers() bool {
	return r == RoleAdmin
}

// OrderStatus описывает стадию жизненного цикла заказа.
type OrderStatus string

const (
	StatusProcessing OrderStatus = "processing"
	StatusReady      OrderStatus = "ready_for_pickup"
	StatusCompleted  OrderStatus = "completed"
)

// Valid сообщает, известен ли статус заказа.
func (s OrderStatus) Valid() bool {
	switch s {
	case StatusProcessing, StatusReady, StatusCompleted:
		return true
	}
	return false
}

// Label возвращает подпись статуса для таблиц и поиска.
func (s OrderStatus) Label() string {
	switch s {
	case StatusProcessing:
		return "In processing"
	case StatusReady:
		return "Ready for pickup"
	case StatusCompleted:
		return "Completed"
	}
	return string(s)
}

// ServiceCategory описывает способ тарификации заказа.
type ServiceCategory string

const (
	CategoryByWeight ServiceCategory = "by_weight"
	CategoryByItem   ServiceCategory = "by_item"
)

// Valid сообщает, известна ли категория услуги.
func (c ServiceCategory) Valid() bool {
	return c == CategoryByWeight || c == CategoryByItem
}

// Label возвращает подпись категории услуги.
func (c ServiceCategory) Label() string {
	switch c {
	case CategoryByWeight:
		return "By weight"
	case CategoryByItem:
		return "By item"
	}
	return string(c)
}

// ServiceType описывает вид услуги прачечной.
type ServiceType string

const (
	ServiceWashIron ServiceType = "wash_iron"
	ServiceWashOnly ServiceType = "wash_only"
	ServiceIronOnly ServiceType = "iron_only"
)

// Valid сообщает, известен ли вид услуги.
func (s ServiceType) Valid() bool {
	switch s {
	case ServiceWashIron, ServiceWashOnly, ServiceIronOnly:
		return true
	}
	return false
}

// Label возвращает подпись вида услуги.
func (s ServiceType) Label() string {
	switch s {
	case ServiceWashIron:
		return "Wash + Iron"
	case ServiceWashOnly:
		return "Wash only"
	case ServiceIronOnly:
		return "Iron only"
	}
	return string(s)
}

// Order описывает заказ прачечной. Дата выдачи заполнена только у заказов
// в статусе StatusCompleted.
type Order struct {
	ID             string          `json:"id"`
	CustomerName   string          `json:"customer_name"`
	Phone          string          `json:"phone"`
	Category       ServiceCategory `json:"category"`
	Service        ServiceType     `json:"service"`
	Quantity       float64         `json:"quantity"`
	Price          int             `json:"price"`
	Status         OrderStatus     `json:"status"`
	IntakeDate     time.Time       `json:"intake_date"`
	CompletionDate *time.Time      `json:"completion_date,omitempty"`
	Notes          string          `json:"notes,omitempty"`
}

// OrderDraft содержит поля формы создания заказа. Цену назначает бэкенд,
// клиент показывает только предварительную оценку.
type OrderDraft struct {
	CustomerName string          `json:"customer_name"`
	Phone        string          `json:"phone"`
	Category     ServiceCategory `json:"category"`
	Service      ServiceType     `json:"service"`
	Quantity     float64         `json:"quantity"`
	Notes        string          `json:"notes,omitempty"`
}

// OptionalTime различает отсутствующее в JSON поле, явный null и значение.
type OptionalTime struct {
	Set   bool
	Value *time.Time
}

// UnmarshalJSON помечает поле как присутствующее и разбирает значение либо null.
func (o *OptionalTime) UnmarshalJSON(b []byte) error {
	o.Set = true
	if string(b) == "null" {
		o.Value = nil
		return nil
	}
	var t time.Time
	if err := json.Unmarshal(b, &t); err != nil {
		return err
	}
	o.Value = &t
	return nil
}

// OrderPatch содержит поля заказа, возвращённые бэкендом после частичного
// обновления. Переносятся только присутствующие в ответе поля.
type OrderPatch struct {
	CustomerName   *string      `json:"customer_name"`
	Phone          *string      `json:"phone"`
	Quantity       *float64     `json:"quantity"`
	Price          *int         `json:"price"`
	Status         *OrderStatus `json:"status"`
	Notes          *string      `json:"notes"`
	CompletionDate OptionalTime `json:"completion_date"`
}

// Apply переносит присутствующие в патче поля в заказ.
func (p OrderPatch) Apply(o *Order) {
	if p.CustomerName != nil {
		o.CustomerName = *p.CustomerName
	}
	if p.Phone != nil {
		o.Phone = *p.Phone
	}
	if p.Quantity != nil {
		o.Quantity = *p.Quantity
	}
	if p.Price != nil {
		o.Price = *p.Price
	}
	if p.Status != nil {
		o.Status = *p.Status
	}
	if p.Notes != nil {
		o.Notes = *p.Notes
	}
	if p.CompletionDate.Set {
		o.CompletionDate = p.CompletionDate.Value
	}
}

// User описывает учётную запись панели. Хэш пароля бэкенд наружу не отдаёт.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

// UserPatch содержит поля учётной записи из ответа бэкенда на обновление.
type UserPatch struct {
	Username *string `json:"username"`
	Role     *Role   `json:"role"`
}

// Apply переносит присутствующие в патче поля в учётную запись.
func (p UserPatch) Apply(u *User) {
	if p.Username != nil {
		u.Username = *p.Username
	}
	if p.Role != nil {
		u.Role = *p.Role
	}
}

// Session описывает аутентифицированную личность текущей вкладки:
// логин, роль и непрозрачный токен бэкенда.
type Session struct {
	Username string `json:"username"`
	Role     Role   `json:"role"`
	Token    string `json:"token"`
}

// Statistics содержит производную сводку по статусам списка заказов.
type Statistics struct {
	ProcessingCount int
	ReadyCount      int
}

// Тарифы услуг в рупиях: за килограмм для весовой категории и за вещь для штучной.
var serviceRates = map[ServiceCategory]map[ServiceType]int{
	CategoryByWeight: {
		ServiceWashIron: 15000,
		ServiceWashOnly: 10000,
		ServiceIronOnly: 8000,
	},
	CategoryByItem: {
		ServiceWashIron: 12000,
		ServiceWashOnly: 8000,
		ServiceIronOnly: 5000,
	},
}

// EstimatePrice возвращает предварительную стоимость заказа по тарифной сетке.
// Для весовой категории количество округляется вверх до целого килограмма.
func EstimatePrice(category ServiceCategory, service ServiceType, quantity float64) int {
	rates, ok := serviceRates[category]
	if !ok {
		return 0
	}
	rate, ok := rates[service]
	if !ok {
		return 0
	}
	if quantity <= 0 {
		return 0
	}
	billed := quantity
	if category == CategoryByWeight {
		billed = math.Ceil(quantity)
	}
	return rate * int(billed)
}
