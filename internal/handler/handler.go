// Package handler содержит HTTP-обработчики панели прачечной.
package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/savelevab/laundry-panel/internal/auth"
	"github.com/savelevab/laundry-panel/internal/backend"
	"github.com/savelevab/laundry-panel/internal/middleware"
	"github.com/savelevab/laundry-panel/internal/model"
	"github.com/savelevab/laundry-panel/internal/store"
	"github.com/savelevab/laundry-panel/internal/validation"
	"github.com/savelevab/laundry-panel/internal/view"
)

// PublicBackend описывает операции бэкенда, доступные без сессии.
type PublicBackend interface {
	PublicOrders(ctx context.Context) ([]model.Order, error)
	PurgeCompleted(ctx context.Context, token string) (string, error)
}

// Handler реализует HTTP-обработчики панели прачечной.
type Handler struct {
	orders        *store.Orders
	users         *store.Users
	authenticator auth.Authenticator
	public        PublicBackend
	sessions      *middleware.AuthMiddleware
	logger        *zap.Logger
	tmpl          templateSet
	pageSize      int
}

// NewHandler создаёт новый экземпляр обработчика панели.
func NewHandler(
	orders *store.Orders,
	users *store.Users,
	authenticator auth.Authenticator,
	public PublicBackend,
	sessions *middleware.AuthMiddleware,
	logger *zap.Logger,
	pageSize int,
) (*Handler, error) {
	tmpl, err := parseTemplates()
	if err != nil {
		return nil, err
	}
	if pageSize <= 0 {
		pageSize = 10
	}

	return &Handler{
		orders:        orders,
		users:         users,
		authenticator: authenticator,
		public:        public,
		sessions:      sessions,
		logger:        logger,
		tmpl:          tmpl,
		pageSize:      pageSize,
	}, nil
}

func (h *Handler) render(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := h.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		h.logger.Error("render template error", zap.String("template", name), zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// expireOn401 сбрасывает сессию, если бэкенд ответил 401: токен протух,
// пользователю предлагается войти заново. Баннер ошибки при этом не мелькает.
func (h *Handler) expireOn401(w http.ResponseWriter, r *http.Request, err error) bool {
	if !errors.Is(err, backend.ErrUnauthorized) {
		return false
	}
	h.sessions.ClearSessionCookie(w)
	http.Redirect(w, r, "/login", http.StatusFound)
	return true
}

type landingData struct {
	Term   string
	Orders []model.Order
	Error  string
}

// Landing отдаёт публичную страницу самопроверки статуса заказа.
func (h *Handler) Landing(w http.ResponseWriter, r *http.Request) {
	term := r.URL.Query().Get("q")

	data := landingData{Term: term}

	orders, err := h.public.PublicOrders(r.Context())
	if err != nil {
		h.logger.Error("public orders error", zap.Error(err))
		data.Error = "Order list is unavailable right now, try again later."
	} else {
		data.Orders = view.SortByIntakeDesc(view.Filter(orders, term))
	}

	h.render(w, http.StatusOK, "landing.html", data)
}

// PublicOrdersJSON отдаёт публичный список заказов для сторонних виджетов.
func (h *Handler) PublicOrdersJSON(w http.ResponseWriter, r *http.Request) {
	orders, err := h.public.PublicOrders(r.Context())
	if err != nil {
		h.logger.Error("public orders error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(orders); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
}

type loginData struct {
	Username string
	From     string
	Error    string
}

// LoginPage отдаёт форму входа; уже вошедших отправляет на панель.
func (h *Handler) LoginPage(w http.ResponseWriter, r *http.Request) {
	if h.sessions.SessionFromRequest(r) != nil {
		http.Redirect(w, r, "/dashboard", http.StatusFound)
		return
	}
	h.render(w, http.StatusOK, "login.html", loginData{From: r.URL.Query().Get("from")})
}

// LoginSubmit выполняет вход и устанавливает cookie сессии. Неудачный вход
// оставляет прежнее состояние нетронутым и показывает текст бэкенда дословно.
func (h *Handler) LoginSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	username := strings.TrimSpace(r.PostFormValue("username"))
	password := r.PostFormValue("password")
	from := r.PostFormValue("from")

	if username == "" || password == "" {
		h.render(w, http.StatusBadRequest, "login.html", loginData{
			Username: username,
			From:     from,
			Error:    "Username and password are required.",
		})
		return
	}

	sess, err := h.authenticator.Login(r.Context(), username, password)
	if err != nil {
		msg := "Login service is unavailable, try again later."
		if errors.Is(err, backend.ErrInvalidCredentials) {
			msg = err.Error()
		}
		h.render(w, http.StatusUnauthorized, "login.html", loginData{
			Username: username,
			From:     from,
			Error:    msg,
		})
		return
	}

	if err := h.sessions.SetSessionCookie(w, sess); err != nil {
		h.logger.Error("set session cookie error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, safeReturnPath(from), http.StatusFound)
}

// safeReturnPath пускает возврат после входа только на локальные пути панели.
func safeReturnPath(from string) string {
	if strings.HasPrefix(from, "/") && !strings.HasPrefix(from, "//") {
		return from
	}
	return "/dashboard"
}

// Logout сбрасывает cookie сессии и возвращает на публичную страницу.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.ClearSessionCookie(w)
	http.Redirect(w, r, "/", http.StatusFound)
}

type dashboardData struct {
	Session *model.Session
	Stats   model.Statistics
	Recent  []model.Order
	Error   string
	Notice  string
}

// Dashboard отдаёт сводку: карточки статистики и последние заказы.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.SessionFromContext(r.Context())

	orders, err := h.orders.List(r.Context(), sess)
	if err != nil {
		if h.expireOn401(w, r, err) {
			return
		}
		h.logger.Error("load orders error", zap.Error(err))
	}

	recent := view.SortByIntakeDesc(orders)
	if len(recent) > 5 {
		recent = recent[:5]
	}

	h.render(w, http.StatusOK, "dashboard.html", dashboardData{
		Session: sess,
		Stats:   h.orders.Statistics(),
		Recent:  recent,
		Error:   h.orders.Err(),
		Notice:  r.URL.Query().Get("msg"),
	})
}

type orderForm struct {
	CustomerName string
	Phone        string
	Category     string
	Service      string
	Quantity     string
	Notes        string
}

type ordersData struct {
	Session       *model.Session
	Orders        []model.Order
	Term          string
	FilteredCount int
	CurrentPage   int
	TotalPages    int
	Buttons       []view.PageButton
	Error         string

	Form       orderForm
	FormErrors validation.FieldErrors
	// Estimate — предварительная стоимость по заполненной форме; цену
	// назначает бэкенд, здесь только ориентир для приёмщика.
	Estimate int

	Statuses   []model.OrderStatus
	Categories []model.ServiceCategory
	Services   []model.ServiceType
}

func (h *Handler) renderOrdersPage(w http.ResponseWriter, r *http.Request, sess *model.Session, status int, form orderForm, formErrs validation.FieldErrors) {
	orders, err := h.orders.List(r.Context(), sess)
	if err != nil {
		if h.expireOn401(w, r, err) {
			return
		}
		h.logger.Error("load orders error", zap.Error(err))
	}

	st := view.NewTableState(h.pageSize)
	st.SetTerm(r.URL.Query().Get("q"))

	filtered := view.Filter(orders, st.Term)
	total := view.TotalPages(len(filtered), st.PageSize)
	if p, convErr := strconv.Atoi(r.URL.Query().Get("page")); convErr == nil {
		st.SetPage(p, total)
	}

	visible, total := st.Page(orders)

	h.render(w, status, "orders.html", ordersData{
		Session:       sess,
		Orders:        visible,
		Term:          st.Term,
		FilteredCount: len(filtered),
		CurrentPage:   st.CurrentPage,
		TotalPages:    total,
		Buttons:       view.PageNumbers(st.CurrentPage, total),
		Error:         h.orders.Err(),
		Form:          form,
		FormErrors:    formErrs,
		Estimate:      estimateForm(form),
		Statuses:      []model.OrderStatus{model.StatusProcessing, model.StatusReady, model.StatusCompleted},
		Categories:    []model.ServiceCategory{model.CategoryByWeight, model.CategoryByItem},
		Services:      []model.ServiceType{model.ServiceWashIron, model.ServiceWashOnly, model.ServiceIronOnly},
	})
}

// estimateForm считает предварительную стоимость по введённым полям формы.
func estimateForm(form orderForm) int {
	quantity, err := strconv.ParseFloat(form.Quantity, 64)
	if err != nil {
		return 0
	}
	return model.EstimatePrice(model.ServiceCategory(form.Category), model.ServiceType(form.Service), quantity)
}

// OrdersPage отдаёт таблицу заказов с поиском и пагинацией.
func (h *Handler) OrdersPage(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.SessionFromContext(r.Context())
	h.renderOrdersPage(w, r, sess, http.StatusOK, orderForm{}, nil)
}

// AddOrder принимает форму нового заказа. Ошибки валидации возвращаются
// к полям формы, успешное создание ведёт через redirect на свежий список.
func (h *Handler) AddOrder(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.SessionFromContext(r.Context())

	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	form := orderForm{
		CustomerName: strings.TrimSpace(r.PostFormValue("customer_name")),
		Phone:        strings.TrimSpace(r.PostFormValue("phone")),
		Category:     r.PostFormValue("category"),
		Service:      r.PostFormValue("service"),
		Quantity:     r.PostFormValue("quantity"),
		Notes:        strings.TrimSpace(r.PostFormValue("notes")),
	}

	quantity, _ := strconv.ParseFloat(form.Quantity, 64)
	draft := model.OrderDraft{
		CustomerName: form.CustomerName,
		Phone:        form.Phone,
		Category:     model.ServiceCategory(form.Category),
		Service:      model.ServiceType(form.Service),
		Quantity:     quantity,
		Notes:        form.Notes,
	}

	if err := h.orders.Add(r.Context(), sess, draft); err != nil {
		if h.expireOn401(w, r, err) {
			return
		}
		var fieldErrs validation.FieldErrors
		if errors.As(err, &fieldErrs) {
			h.renderOrdersPage(w, r, sess, http.StatusUnprocessableEntity, form, fieldErrs)
			return
		}
		h.logger.Error("add order error", zap.Error(err))
		// Сообщение уже лежит в Err() хранилища и попадёт в баннер.
		http.Redirect(w, r, "/orders", http.StatusFound)
		return
	}

	http.Redirect(w, r, "/orders", http.StatusFound)
}

// backToOrders собирает обратный адрес таблицы, сохраняя поиск и страницу.
func backToOrders(r *http.Request) string {
	q := url.Values{}
	if term := r.PostFormValue("q"); term != "" {
		q.Set("q", term)
	}
	if page := r.PostFormValue("page"); page != "" {
		q.Set("page", page)
	}
	if len(q) == 0 {
		return "/orders"
	}
	return "/orders?" + q.Encode()
}

// UpdateOrderStatus меняет статус заказа из строкового редактора таблицы.
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.SessionFromContext(r.Context())
	id := chi.URLParam(r, "orderID")

	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	status := model.OrderStatus(r.PostFormValue("status"))
	if !status.Valid() {
		http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
		return
	}

	if err := h.orders.UpdateStatus(r.Context(), sess, id, status); err != nil {
		if h.expireOn401(w, r, err) {
			return
		}
		h.logger.Error("update order status error", zap.Error(err), zap.String("order", id))
	}

	http.Redirect(w, r, backToOrders(r), http.StatusFound)
}

// UpdateOrderNotes меняет заметку заказа.
func (h *Handler) UpdateOrderNotes(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.SessionFromContext(r.Context())
	id := chi.URLParam(r, "orderID")

	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.orders.UpdateNotes(r.Context(), sess, id, strings.TrimSpace(r.PostFormValue("notes"))); err != nil {
		if h.expireOn401(w, r, err) {
			return
		}
		h.logger.Error("update order notes error", zap.Error(err), zap.String("order", id))
	}

	http.Redirect(w, r, backToOrders(r), http.StatusFound)
}

// DeleteOrder удаляет заказ после подтверждения в таблице.
func (h *Handler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.SessionFromContext(r.Context())
	id := chi.URLParam(r, "orderID")

	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.orders.Remove(r.Context(), sess, id); err != nil {
		if h.expireOn401(w, r, err) {
			return
		}
		h.logger.Error("delete order error", zap.Error(err), zap.String("order", id))
	}

	http.Redirect(w, r, backToOrders(r), http.StatusFound)
}

// PurgeOrders просит бэкенд удалить давно выданные заказы (только администратор).
func (h *Handler) PurgeOrders(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.SessionFromContext(r.Context())

	msg, err := h.public.PurgeCompleted(r.Context(), sess.Token)
	if err != nil {
		if h.expireOn401(w, r, err) {
			return
		}
		h.logger.Error("purge completed orders error", zap.Error(err))
		http.Redirect(w, r, "/dashboard", http.StatusFound)
		return
	}

	h.logger.Info("purged old completed orders", zap.String("message", msg))
	http.Redirect(w, r, "/dashboard?msg="+url.QueryEscape(msg), http.StatusFound)
}

type userForm struct {
	Username string
	Role     string
}

type usersData struct {
	Session *model.Session
	Users   []model.User
	Error   string

	Form       userForm
	FormErrors validation.FieldErrors

	Roles []model.Role
}

func (h *Handler) renderUsersPage(w http.ResponseWriter, r *http.Request, sess *model.Session, status int, form userForm, formErrs validation.FieldErrors) {
	users, err := h.users.List(r.Context(), sess)
	if err != nil {
		if h.expireOn401(w, r, err) {
			return
		}
		h.logger.Error("load users error", zap.Error(err))
	}

	h.render(w, status, "users.html", usersData{
		Session:    sess,
		Users:      users,
		Error:      h.users.Err(),
		Form:       form,
		FormErrors: formErrs,
		Roles:      []model.Role{model.RoleAdmin, model.RoleStaff},
	})
}

// UsersPage отдаёт раздел администрирования учётных записей.
func (h *Handler) UsersPage(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.SessionFromContext(r.Context())
	h.renderUsersPage(w, r, sess, http.StatusOK, userForm{}, nil)
}

// AddUser создаёт учётную запись панели.
func (h *Handler) AddUser(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.SessionFromContext(r.Context())

	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	form := userForm{
		Username: strings.TrimSpace(r.PostFormValue("username")),
		Role:     r.PostFormValue("role"),
	}
	draft := backend.UserDraft{
		Username: form.Username,
		Password: r.PostFormValue("password"),
		Role:     model.Role(form.Role),
	}

	if err := h.users.Add(r.Context(), sess, draft); err != nil {
		if h.expireOn401(w, r, err) {
			return
		}
		var fieldErrs validation.FieldErrors
		if errors.As(err, &fieldErrs) {
			h.renderUsersPage(w, r, sess, http.StatusUnprocessableEntity, form, fieldErrs)
			return
		}
		h.logger.Error("add user error", zap.Error(err))
		http.Redirect(w, r, "/users", http.StatusFound)
		return
	}

	http.Redirect(w, r, "/users", http.StatusFound)
}

// UpdateUser меняет роль и, при заполненном поле, пароль учётной записи.
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.SessionFromContext(r.Context())
	id := chi.URLParam(r, "userID")

	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	update := backend.UserUpdate{}
	if role := model.Role(r.PostFormValue("role")); role.Valid() {
		update.Role = &role
	}
	if password := r.PostFormValue("password"); password != "" {
		update.Password = &password
	}

	if err := h.users.Update(r.Context(), sess, id, update); err != nil {
		if h.expireOn401(w, r, err) {
			return
		}
		h.logger.Error("update user error", zap.Error(err), zap.String("user", id))
	}

	http.Redirect(w, r, "/users", http.StatusFound)
}

// DeleteUser удаляет учётную запись панели.
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.SessionFromContext(r.Context())
	id := chi.URLParam(r, "userID")

	if err := h.users.Remove(r.Context(), sess, id); err != nil {
		if h.expireOn401(w, r, err) {
			return
		}
		h.logger.Error("delete user error", zap.Error(err), zap.String("user", id))
	}

	http.Redirect(w, r, "/users", http.StatusFound)
}
