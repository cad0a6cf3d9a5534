package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	custommiddleware "github.com/savelevab/laundry-panel/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware панели прачечной.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.Compress(5))
	r.Use(custommiddleware.Logger(h.logger))

	r.Handle("/static/*", http.FileServer(http.FS(staticFS)))

	r.Get("/", h.Landing)

	r.Group(func(r chi.Router) {
		r.Use(custommiddleware.LoginRateLimiter(rate.Every(time.Second), 5))

		r.Get("/login", h.LoginPage)
		r.Post("/login", h.LoginSubmit)
	})

	r.Post("/logout", h.Logout)

	// Публичный JSON для сторонних виджетов самопроверки статуса.
	r.Route("/api/public", func(r chi.Router) {
		r.Use(cors.AllowAll().Handler)

		r.Get("/orders", h.PublicOrdersJSON)
	})

	r.Group(func(r chi.Router) {
		r.Use(h.sessions.RequireAuth)

		r.Get("/dashboard", h.Dashboard)

		r.Get("/orders", h.OrdersPage)
		r.Post("/orders", h.AddOrder)
		r.Post("/orders/{orderID}/status", h.UpdateOrderStatus)
		r.Post("/orders/{orderID}/notes", h.UpdateOrderNotes)
		r.Post("/orders/{orderID}/delete", h.DeleteOrder)

		r.Group(func(r chi.Router) {
			r.Use(h.sessions.RequireAdmin)

			r.Post("/orders/purge", h.PurgeOrders)

			r.Get("/users", h.UsersPage)
			r.Post("/users", h.AddUser)
			r.Post("/users/{userID}", h.UpdateUser)
			r.Post("/users/{userID}/delete", h.DeleteUser)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
