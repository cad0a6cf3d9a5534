// Package backend предоставляет клиент REST API внешнего сервиса прачечной.
// Вся бизнес-логика (цены, хранение, выпуск токенов) живёт на бэкенде,
// клиент только ходит по HTTP и терпимо разбирает ответы.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/savelevab/laundry-panel/internal/model"
)

// Сигнальные ошибки клиента бэкенда.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
)

// APIError содержит статус и сообщение об ошибке из тела ответа бэкенда.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend: %s (status %d)", e.Message, e.StatusCode)
}

// InvalidCredentialsError сохраняет дословный текст бэкенда об отказе во входе.
type InvalidCredentialsError struct {
	Message string
}

func (e *InvalidCredentialsError) Error() string {
	if e.Message == "" {
		return ErrInvalidCredentials.Error()
	}
	return e.Message
}

func (e *InvalidCredentialsError) Unwrap() error {
	return ErrInvalidCredentials
}

// UnauthorizedError сохраняет текст из тела 401-ответа.
// errors.Is(err, ErrUnauthorized) продолжает работать для всех вызывающих.
type UnauthorizedError struct {
	Message string
}

func (e *UnauthorizedError) Error() string {
	if e.Message == "" {
		return ErrUnauthorized.Error()
	}
	return e.Message
}

func (e *UnauthorizedError) Unwrap() error {
	return ErrUnauthorized
}

// Client инкапсулирует HTTP-взаимодействие с бэкендом прачечной.
// Идемпотентные запросы выполняются с небольшим бюджетом повторов,
// мутации отправляются ровно один раз.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	retryClient *http.Client
}

// NewClient создаёт клиент бэкенда по указанному адресу.
func NewClient(baseURL string) *Client {
	retry := retryablehttp.NewClient()
	retry.RetryMax = 2
	retry.RetryWaitMin = 100 * time.Millisecond
	retry.RetryWaitMax = time.Second
	retry.Logger = nil
	retry.HTTPClient.Timeout = 5 * time.Second

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
		retryClient: retry.StandardClient(),
	}
}

func (c *Client) url(path string) string {
	base := c.baseURL
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return base + path
}

// doJSON выполняет запрос и возвращает тело успешного ответа.
func (c *Client) doJSON(ctx context.Context, method, path, token string, payload any, idempotent bool) ([]byte, error) {
	if c == nil || c.baseURL == "" {
		return nil, fmt.Errorf("backend client not configured")
	}

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := c.httpClient
	if idempotent {
		client = c.retryClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, responseError(resp.StatusCode, raw)
	}

	return raw, nil
}

// responseError переводит не-2xx ответ в ошибку клиентской таксономии.
func responseError(statusCode int, body []byte) error {
	switch statusCode {
	case http.StatusUnauthorized:
		return &UnauthorizedError{Message: extractMessage(body)}
	case http.StatusForbidden:
		return ErrForbidden
	}

	msg := extractMessage(body)
	if msg == "" {
		msg = http.StatusText(statusCode)
	}
	return &APIError{StatusCode: statusCode, Message: msg}
}

// extractMessage достаёт человекочитаемый текст из тела ошибки бэкенда.
func extractMessage(body []byte) string {
	var envelope struct {
		Message string `json:"message"`
		Detail  string `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ""
	}
	if envelope.Message != "" {
		return envelope.Message
	}
	return envelope.Detail
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
	User  struct {
		Username string     `json:"username"`
		Role     model.Role `json:"role"`
	} `json:"user"`
}

// Login выполняет аутентификацию на бэкенде и возвращает сессию.
// На отказ 401 возвращается InvalidCredentialsError с дословным текстом бэкенда.
func (c *Client) Login(ctx context.Context, username, password string) (*model.Session, error) {
	raw, err := c.doJSON(ctx, http.MethodPost, "/login", "", loginRequest{Username: username, Password: password}, false)
	if err != nil {
		var authErr *UnauthorizedError
		if errors.As(err, &authErr) {
			return nil, &InvalidCredentialsError{Message: authErr.Message}
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusBadRequest {
			return nil, &InvalidCredentialsError{Message: apiErr.Message}
		}
		return nil, err
	}

	var resp loginResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if resp.Token == "" || resp.User.Username == "" {
		return nil, fmt.Errorf("backend returned incomplete login response")
	}

	return &model.Session{
		Username: resp.User.Username,
		Role:     resp.User.Role,
		Token:    resp.Token,
	}, nil
}

// ListOrders возвращает список заказов текущей сессии.
func (c *Client) ListOrders(ctx context.Context, token string) ([]model.Order, error) {
	raw, err := c.doJSON(ctx, http.MethodGet, "/orders", token, nil, true)
	if err != nil {
		return nil, err
	}
	return decodeOrderList(raw)
}

// PublicOrders возвращает публичный список заказов для страницы самопроверки.
func (c *Client) PublicOrders(ctx context.Context) ([]model.Order, error) {
	raw, err := c.doJSON(ctx, http.MethodGet, "/orders", "", nil, true)
	if err != nil {
		return nil, err
	}
	return decodeOrderList(raw)
}

// CreateOrder отправляет черновик заказа на бэкенд. Тело ответа на создание
// у бэкенда меняется от версии к версии, поэтому оно игнорируется:
// вызывающий перечитывает полный список.
func (c *Client) CreateOrder(ctx context.Context, token string, draft model.OrderDraft) error {
	_, err := c.doJSON(ctx, http.MethodPost, "/orders", token, draft, false)
	return err
}

// OrderUpdate описывает частичное обновление заказа, отправляемое бэкенду.
type OrderUpdate struct {
	Status *model.OrderStatus `json:"status,omitempty"`
	Notes  *string            `json:"notes,omitempty"`
}

// UpdateOrder передаёт частичное обновление заказа и возвращает поля,
// которые бэкенд вернул в ответе.
func (c *Client) UpdateOrder(ctx context.Context, token, id string, update OrderUpdate) (model.OrderPatch, error) {
	raw, err := c.doJSON(ctx, http.MethodPut, "/orders/"+id, token, update, false)
	if err != nil {
		return model.OrderPatch{}, err
	}
	return decodeOrderPatch(raw)
}

// DeleteOrder удаляет заказ на бэкенде.
func (c *Client) DeleteOrder(ctx context.Context, token, id string) error {
	_, err := c.doJSON(ctx, http.MethodDelete, "/orders/"+id, token, nil, false)
	return err
}

// PurgeCompleted просит бэкенд удалить давно выданные заказы
// и возвращает его отчётное сообщение.
func (c *Client) PurgeCompleted(ctx context.Context, token string) (string, error) {
	raw, err := c.doJSON(ctx, http.MethodPost, "/delete-old-completed-orders", token, nil, false)
	if err != nil {
		return "", err
	}
	return extractMessage(raw), nil
}

// ListUsers возвращает список учётных записей панели.
func (c *Client) ListUsers(ctx context.Context, token string) ([]model.User, error) {
	raw, err := c.doJSON(ctx, http.MethodGet, "/users", token, nil, true)
	if err != nil {
		return nil, err
	}
	return decodeUserList(raw)
}

// UserDraft содержит поля формы создания учётной записи.
type UserDraft struct {
	Username string     `json:"username"`
	Password string     `json:"password"`
	Role     model.Role `json:"role"`
}

// CreateUser создаёт учётную запись на бэкенде.
func (c *Client) CreateUser(ctx context.Context, token string, draft UserDraft) error {
	_, err := c.doJSON(ctx, http.MethodPost, "/users", token, draft, false)
	return err
}

// UserUpdate описывает частичное обновление учётной записи.
type UserUpdate struct {
	Username *string     `json:"username,omitempty"`
	Password *string     `json:"password,omitempty"`
	Role     *model.Role `json:"role,omitempty"`
}

// UpdateUser передаёт частичное обновление учётной записи и возвращает
// поля из ответа бэкенда.
func (c *Client) UpdateUser(ctx context.Context, token, id string, update UserUpdate) (model.UserPatch, error) {
	raw, err := c.doJSON(ctx, http.MethodPut, "/users/"+id, token, update, false)
	if err != nil {
		return model.UserPatch{}, err
	}
	return decodeUserPatch(raw)
}

// DeleteUser удаляет учётную запись на бэкенде.
func (c *Client) DeleteUser(ctx context.Context, token, id string) error {
	_, err := c.doJSON(ctx, http.MethodDelete, "/users/"+id, token, nil, false)
	return err
}

// decodeOrderList распаковывает список заказов из любого поддерживаемого
// конверта: голый массив, {"orders": [...]} или {"data": [...]}.
func decodeOrderList(body []byte) ([]model.Order, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var list []model.Order
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		return list, nil
	}

	var envelope struct {
		Orders []model.Order `json:"orders"`
		Data   []model.Order `json:"data"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if envelope.Orders != nil {
		return envelope.Orders, nil
	}
	return envelope.Data, nil
}

// decodeUserList распаковывает список учётных записей из поддерживаемых конвертов.
func decodeUserList(body []byte) ([]model.User, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var list []model.User
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		return list, nil
	}

	var envelope struct {
		Users []model.User `json:"users"`
		Data  []model.User `json:"data"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if envelope.Users != nil {
		return envelope.Users, nil
	}
	return envelope.Data, nil
}

// decodeOrderPatch распаковывает одиночный заказ из конвертов
// {"order": {...}}, {"data": {...}} либо голого объекта.
func decodeOrderPatch(body []byte) (model.OrderPatch, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		// Пустой ответ: бэкенду нечего сливать в локальную запись.
		return model.OrderPatch{}, nil
	}

	var envelope struct {
		Order *model.OrderPatch `json:"order"`
		Data  *model.OrderPatch `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		if envelope.Order != nil {
			return *envelope.Order, nil
		}
		if envelope.Data != nil {
			return *envelope.Data, nil
		}
	}

	var patch model.OrderPatch
	if err := json.Unmarshal(body, &patch); err != nil {
		return model.OrderPatch{}, fmt.Errorf("decode response: %w", err)
	}
	return patch, nil
}

// decodeUserPatch распаковывает одиночную учётную запись из тех же конвертов.
func decodeUserPatch(body []byte) (model.UserPatch, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return model.UserPatch{}, nil
	}

	var envelope struct {
		User *model.UserPatch `json:"user"`
		Data *model.UserPatch `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		if envelope.User != nil {
			return *envelope.User, nil
		}
		if envelope.Data != nil {
			return *envelope.Data, nil
		}
	}

	var patch model.UserPatch
	if err := json.Unmarshal(body, &patch); err != nil {
		return model.UserPatch{}, fmt.Errorf("decode response: %w", err)
	}
	return patch, nil
}
