package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"billing-backend/internal/billing"
	"billing-backend/internal/middleware"
	"billing-backend/internal/models"
	"billing-backend/internal/services"
)

type CustomerHandler struct {
	Service *services.CustomerService
}

func NewCustomerHandler(s *services.CustomerService) *CustomerHandler {
	return &CustomerHandler{Service: s}
}

func queryInt(r *http.Request, name string, def int) int {
	if s := r.URL.Query().Get(name); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return def
}

func (h *CustomerHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req models.SubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, billing.InvalidArgumentf("invalid request body"))
		return
	}

	customer, err := h.Service.Subscribe(r.Context(), &req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, customer)
}

func (h *CustomerHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	customerID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	businessID, err := pathID(r, "businessId")
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.Service.Unsubscribe(r.Context(), customerID, businessID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "customer unsubscribed"})
}

func (h *CustomerHandler) UnsubscribeMany(w http.ResponseWriter, r *http.Request) {
	businessID, err := pathID(r, "businessId")
	if err != nil {
		writeError(w, err)
		return
	}

	var req struct {
		CustomerIDs []int64 `json:"customer_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, billing.InvalidArgumentf("invalid request body"))
		return
	}

	removed, err := h.Service.UnsubscribeMany(r.Context(), req.CustomerIDs, businessID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func (h *CustomerHandler) Update(w http.ResponseWriter, r *http.Request) {
	customerID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	var req models.UpdateCustomerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, billing.InvalidArgumentf("invalid request body"))
		return
	}

	customer, err := h.Service.UpdateContact(r.Context(), customerID, &req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, customer)
}

func (h *CustomerHandler) List(w http.ResponseWriter, r *http.Request) {
	businessID, err := pathID(r, "businessId")
	if err != nil {
		writeError(w, err)
		return
	}
	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", 10)
	q := r.URL.Query()

	list, err := h.Service.List(r.Context(), businessID,
		q.Get("search"), q.Get("sortField"), q.Get("sortOrder"), page, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *CustomerHandler) Search(w http.ResponseWriter, r *http.Request) {
	businessID, err := pathID(r, "businessId")
	if err != nil {
		writeError(w, err)
		return
	}

	customers, err := h.Service.Search(r.Context(), businessID, r.URL.Query().Get("term"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, customers)
}

// Details serves both the admin view and the customer portal. A
// customer-scoped token may only read its own record.
func (h *CustomerHandler) Details(w http.ResponseWriter, r *http.Request) {
	customerID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	role, _ := middleware.GetRoleFromContext(r.Context())
	if role == models.RoleCustomer {
		callerID, ok := middleware.GetCustomerIDFromContext(r.Context())
		if !ok || callerID != customerID {
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
			return
		}
	}

	details, err := h.Service.Details(r.Context(), customerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

func (h *CustomerHandler) PaymentInfo(w http.ResponseWriter, r *http.Request) {
	businessID, err := pathID(r, "businessId")
	if err != nil {
		writeError(w, err)
		return
	}
	uuid := r.URL.Query().Get("uuid")
	if uuid == "" {
		writeError(w, billing.InvalidArgumentf("uuid parameter is required"))
		return
	}

	info, err := h.Service.PaymentInfo(r.Context(), businessID, uuid, time.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *CustomerHandler) DueList(w http.ResponseWriter, r *http.Request) {
	businessID, err := pathID(r, "businessId")
	if err != nil {
		writeError(w, err)
		return
	}
	month := queryInt(r, "month", 0)
	year := queryInt(r, "year", time.Now().Year())

	due, err := h.Service.DueList(r.Context(), businessID, month, year)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, due)
}

func (h *CustomerHandler) UnpaidList(w http.ResponseWriter, r *http.Request) {
	businessID, err := pathID(r, "businessId")
	if err != nil {
		writeError(w, err)
		return
	}
	now := time.Now()
	month := queryInt(r, "month", int(now.Month()))
	year := queryInt(r, "year", now.Year())

	unpaid, err := h.Service.UnpaidList(r.Context(), businessID, month, year)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, unpaid)
}
