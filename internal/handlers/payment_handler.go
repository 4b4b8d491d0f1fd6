package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"billing-backend/internal/billing"
	"billing-backend/internal/models"
	"billing-backend/internal/services"
)

type PaymentHandler struct {
	Service  *services.PaymentService
	Receipts *services.ReceiptService
}

func NewPaymentHandler(s *services.PaymentService, receipts *services.ReceiptService) *PaymentHandler {
	return &PaymentHandler{Service: s, Receipts: receipts}
}

func (h *PaymentHandler) Record(w http.ResponseWriter, r *http.Request) {
	var req models.CreatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, billing.InvalidArgumentf("invalid request body"))
		return
	}

	result, err := h.Service.Record(r.Context(), &req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *PaymentHandler) Correct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	var req models.CorrectPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, billing.InvalidArgumentf("invalid request body"))
		return
	}

	payment, err := h.Service.Correct(r.Context(), id, &req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payment)
}

func (h *PaymentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.Service.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "payment deleted"})
}

func (h *PaymentHandler) DeleteMany(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PaymentIDs []int64 `json:"payment_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, billing.InvalidArgumentf("invalid request body"))
		return
	}

	deleted, err := h.Service.DeleteMany(r.Context(), req.PaymentIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted": deleted})
}

func (h *PaymentHandler) List(w http.ResponseWriter, r *http.Request) {
	businessID, err := pathID(r, "businessId")
	if err != nil {
		writeError(w, err)
		return
	}

	list, err := h.Service.List(r.Context(), businessID, paymentFilter(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func paymentFilter(r *http.Request) models.PaymentFilter {
	q := r.URL.Query()
	return models.PaymentFilter{
		Status:    q.Get("status"),
		Month:     queryInt(r, "month", 0),
		Year:      queryInt(r, "year", 0),
		SortField: q.Get("sortField"),
		SortOrder: q.Get("sortOrder"),
		Page:      queryInt(r, "page", 1),
		Limit:     queryInt(r, "limit", 10),
	}
}

// SearchByCustomer pages one customer's ledger within a business, resolved
// from a uuid or phone search term.
func (h *PaymentHandler) SearchByCustomer(w http.ResponseWriter, r *http.Request) {
	businessID, err := pathID(r, "businessId")
	if err != nil {
		writeError(w, err)
		return
	}

	list, err := h.Service.SearchByCustomer(r.Context(), businessID,
		r.URL.Query().Get("term"), paymentFilter(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// DueByMonth lists unsettled ledger entries of one calendar month across all
// businesses.
func (h *PaymentHandler) DueByMonth(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	month := queryInt(r, "month", int(now.Month()))
	year := queryInt(r, "year", now.Year())

	due, err := h.Service.DueByMonth(r.Context(), month, year)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, due)
}

func (h *PaymentHandler) Details(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	details, err := h.Service.Details(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

func (h *PaymentHandler) Receipt(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	pdf, err := h.Receipts.PaymentPDF(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="receipt-%d-%s.pdf"`, id, time.Now().Format("20060102")))
	w.Write(pdf)
}
