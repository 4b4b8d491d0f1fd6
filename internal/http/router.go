// Package http wires handlers into the API surface.
package http

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"billing-backend/internal/handlers"
	"billing-backend/internal/middleware"
	"billing-backend/internal/models"
)

type Handlers struct {
	Auth     *handlers.AuthHandler
	Business *handlers.BusinessHandler
	Customer *handlers.CustomerHandler
	Payment  *handlers.PaymentHandler
	Overview *handlers.OverviewHandler
	Health   *handlers.HealthHandler
}

// NewRouter builds the full route table. Everything under /api except auth
// requires a token; mutation endpoints require the admin role.
func NewRouter(h Handlers, authMW *middleware.AuthMiddleware) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", h.Health.BasicHealth).Methods("GET")
	r.HandleFunc("/health/ready", h.Health.ReadinessHealth).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	authRoutes := api.PathPrefix("/auth").Subrouter()
	authRoutes.HandleFunc("/register", h.Auth.Register).Methods("POST")
	authRoutes.HandleFunc("/login", h.Auth.Login).Methods("POST")
	authRoutes.HandleFunc("/customer-login", h.Auth.CustomerLogin).Methods("POST")

	admin := api.NewRoute().Subrouter()
	admin.Use(authMW.Authenticate)
	admin.Use(authMW.RequireRole(models.RoleAdmin))

	admin.HandleFunc("/users/admins", h.Auth.CreateAdmin).Methods("POST")

	admin.HandleFunc("/businesses", h.Business.Create).Methods("POST")
	admin.HandleFunc("/businesses", h.Business.List).Methods("GET")
	admin.HandleFunc("/businesses/{id}", h.Business.Get).Methods("GET")
	admin.HandleFunc("/businesses/{id}", h.Business.Update).Methods("PUT")
	admin.HandleFunc("/businesses/{id}", h.Business.Delete).Methods("DELETE")

	admin.HandleFunc("/customers", h.Customer.Subscribe).Methods("POST")
	admin.HandleFunc("/customers/{id}", h.Customer.Update).Methods("PUT")
	admin.HandleFunc("/customers/{id}", h.Customer.Details).Methods("GET")
	admin.HandleFunc("/customers/{id}/businesses/{businessId}", h.Customer.Unsubscribe).Methods("DELETE")
	admin.HandleFunc("/customers/businesses/{businessId}/batch-delete", h.Customer.UnsubscribeMany).Methods("POST")
	admin.HandleFunc("/customers/businesses/{businessId}", h.Customer.List).Methods("GET")
	admin.HandleFunc("/customers/businesses/{businessId}/search", h.Customer.Search).Methods("GET")
	admin.HandleFunc("/customers/businesses/{businessId}/payment-info", h.Customer.PaymentInfo).Methods("GET")
	admin.HandleFunc("/customers/businesses/{businessId}/due", h.Customer.DueList).Methods("GET")
	admin.HandleFunc("/customers/businesses/{businessId}/unpaid", h.Customer.UnpaidList).Methods("GET")

	admin.HandleFunc("/payments", h.Payment.Record).Methods("POST")
	admin.HandleFunc("/payments/due", h.Payment.DueByMonth).Methods("GET")
	admin.HandleFunc("/payments/batch-delete", h.Payment.DeleteMany).Methods("POST")
	admin.HandleFunc("/payments/{id}", h.Payment.Correct).Methods("PUT")
	admin.HandleFunc("/payments/{id}", h.Payment.Delete).Methods("DELETE")
	admin.HandleFunc("/payments/{id}", h.Payment.Details).Methods("GET")
	admin.HandleFunc("/payments/{id}/receipt", h.Payment.Receipt).Methods("GET")
	admin.HandleFunc("/payments/businesses/{businessId}", h.Payment.List).Methods("GET")
	admin.HandleFunc("/payments/businesses/{businessId}/search", h.Payment.SearchByCustomer).Methods("GET")

	admin.HandleFunc("/overview/businesses/{businessId}", h.Overview.BusinessOverview).Methods("GET")

	// Customer portal: a customer token reads its own record only, enforced
	// in the handler.
	portal := api.NewRoute().Subrouter()
	portal.Use(authMW.Authenticate)
	portal.Use(authMW.RequireRole(models.RoleAdmin, models.RoleCustomer))
	portal.HandleFunc("/portal/customers/{id}", h.Customer.Details).Methods("GET")

	return r
}

// Chain applies the outer middleware stack around the router.
func Chain(r *mux.Router, cors func(http.Handler) http.Handler) http.Handler {
	var handler http.Handler = r
	handler = middleware.MetricsMiddleware(handler)
	handler = cors(handler)
	handler = middleware.PanicRecovery(handler)
	return handler
}
