package handler

import (
	"encoding/json"
	"net/http"

	"turfbook/internal/bookings/service"
	apperrors "turfbook/pkg/errors"
	httputil "turfbook/pkg/http"
	"turfbook/pkg/logger"
	"turfbook/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type BookingHandler struct {
	service service.BookingService
	log     *logger.Logger
}

func NewBookingHandler(service service.BookingService, log *logger.Logger) *BookingHandler {
	return &BookingHandler{
		service: service,
		log:     log,
	}
}

type createBookingRequest struct {
	SlotID        string  `json:"slot_id"`
	ReservedBy    string  `json:"reserved_by"`
	CustomerID    string  `json:"customer_id"`
	CustomerName  string  `json:"customer_name"`
	CustomerPhone string  `json:"customer_phone"`
	Amount        float64 `json:"amount"`
	AdvanceAmount float64 `json:"advance_amount"`
	PaymentStatus string  `json:"payment_status"`
}

type createBookingResponse struct {
	BookingID string `json:"booking_id"`
}

type cancelBookingRequest struct {
	BookingID   string `json:"booking_id"`
	SlotID      string `json:"slot_id"`
	CancelledBy string `json:"cancelled_by"`
	Reason      string `json:"reason"`
}

type paymentStatusRequest struct {
	BookingID     string `json:"booking_id"`
	PaymentStatus string `json:"payment_status"`
}

// Create handles the atomic booking path: slot commit and ledger insert
// in one transaction.
func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeBadRequest(w, "Create")
		return
	}
	if req.SlotID == "" {
		h.writeError(w, "Create", apperrors.InvalidInput("slot_id is required"))
		return
	}

	booking := &model.Booking{
		SlotID:        req.SlotID,
		CustomerID:    req.CustomerID,
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		Amount:        req.Amount,
		AdvanceAmount: req.AdvanceAmount,
		PaymentStatus: model.PaymentStatus(req.PaymentStatus),
	}

	bookingID, err := h.service.Confirm(r.Context(), req.ReservedBy, booking)
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, createBookingResponse{BookingID: bookingID}); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req cancelBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeBadRequest(w, "Cancel")
		return
	}
	if req.BookingID == "" || req.SlotID == "" {
		h.writeError(w, "Cancel", apperrors.InvalidInput("booking_id and slot_id are required"))
		return
	}

	ok, err := h.service.Cancel(r.Context(), req.BookingID, req.SlotID, req.CancelledBy, req.Reason)
	if err != nil {
		h.writeError(w, "Cancel", err)
		return
	}

	reason := ""
	if !ok {
		reason = "Booking is already cancelled"
	}
	if err := httputil.WriteOutcome(w, ok, reason); err != nil {
		h.log.Error("failed to write outcome response", "handler", "Cancel", "operation", "WriteOutcome", "error", err)
	}
}

func (h *BookingHandler) UpdatePaymentStatus(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req paymentStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeBadRequest(w, "UpdatePaymentStatus")
		return
	}
	if req.BookingID == "" || req.PaymentStatus == "" {
		h.writeError(w, "UpdatePaymentStatus", apperrors.InvalidInput("booking_id and payment_status are required"))
		return
	}

	if err := h.service.UpdatePaymentStatus(r.Context(), req.BookingID, model.PaymentStatus(req.PaymentStatus)); err != nil {
		h.writeError(w, "UpdatePaymentStatus", err)
		return
	}

	if err := httputil.WriteOutcome(w, true, ""); err != nil {
		h.log.Error("failed to write outcome response", "handler", "UpdatePaymentStatus", "operation", "WriteOutcome", "error", err)
	}
}

func (h *BookingHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	booking, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, booking); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) GetByCustomer(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "GetByCustomer", err)
		return
	}

	customerID := r.URL.Query().Get("customer_id")
	bookings, total, err := h.service.GetByCustomer(r.Context(), customerID, limit, offset)
	if err != nil {
		h.writeError(w, "GetByCustomer", err)
		return
	}

	if err := httputil.WritePaginated(w, bookings, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "GetByCustomer", "operation", "WritePaginated", "error", err)
	}
}

func (h *BookingHandler) writeBadRequest(w http.ResponseWriter, handlerName string) {
	if err := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
		Error: "Invalid request body",
	}); err != nil {
		h.log.Error("failed to write JSON response", "handler", handlerName, "operation", "WriteJSON", "error", err)
	}
}

func (h *BookingHandler) writeError(w http.ResponseWriter, handlerName string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handlerName, "operation", "WriteError", "error", writeErr)
	}
}

func (h *BookingHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/bookings", h.Create)
	router.POST("/api/v1/bookings/cancel", h.Cancel)
	router.POST("/api/v1/bookings/payment-status", h.UpdatePaymentStatus)
	router.GET("/api/v1/bookings", h.GetByCustomer)
	router.GET("/api/v1/bookings/id/:id", h.GetByID)
}
