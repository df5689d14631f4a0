package handler

import (
	"encoding/json"
	"net/http"

	"turfbook/internal/slots/service"
	apperrors "turfbook/pkg/errors"
	httputil "turfbook/pkg/http"
	"turfbook/pkg/logger"
	"turfbook/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type SlotHandler struct {
	service service.SlotService
	log     *logger.Logger
}

func NewSlotHandler(service service.SlotService, log *logger.Logger) *SlotHandler {
	return &SlotHandler{
		service: service,
		log:     log,
	}
}

type reserveRequest struct {
	SlotID             string `json:"slot_id"`
	ReservedBy         string `json:"reserved_by"`
	ReservationMinutes int    `json:"reservation_minutes"`
}

type slotIDRequest struct {
	SlotID string `json:"slot_id"`
}

type blockRequest struct {
	SlotID    string `json:"slot_id"`
	BlockedBy string `json:"blocked_by"`
	Reason    string `json:"reason"`
}

func (h *SlotHandler) Reserve(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req reserveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeBadRequest(w, "Reserve")
		return
	}
	if req.SlotID == "" || req.ReservedBy == "" {
		h.writeError(w, "Reserve", apperrors.InvalidInput("slot_id and reserved_by are required"))
		return
	}

	ok, err := h.service.Reserve(r.Context(), req.SlotID, req.ReservedBy, req.ReservationMinutes)
	if err != nil {
		h.writeError(w, "Reserve", err)
		return
	}

	reason := ""
	if !ok {
		reason = "Slot is not available"
	}
	if err := httputil.WriteOutcome(w, ok, reason); err != nil {
		h.log.Error("failed to write outcome response", "handler", "Reserve", "operation", "WriteOutcome", "error", err)
	}
}

func (h *SlotHandler) Release(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req slotIDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeBadRequest(w, "Release")
		return
	}
	if req.SlotID == "" {
		h.writeError(w, "Release", apperrors.InvalidInput("slot_id is required"))
		return
	}

	if err := h.service.Release(r.Context(), req.SlotID); err != nil {
		h.writeError(w, "Release", err)
		return
	}

	if err := httputil.WriteOutcome(w, true, ""); err != nil {
		h.log.Error("failed to write outcome response", "handler", "Release", "operation", "WriteOutcome", "error", err)
	}
}

// Book handles the legacy direct available-to-booked transition.
func (h *SlotHandler) Book(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req slotIDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeBadRequest(w, "Book")
		return
	}
	if req.SlotID == "" {
		h.writeError(w, "Book", apperrors.InvalidInput("slot_id is required"))
		return
	}

	ok, err := h.service.Book(r.Context(), req.SlotID)
	if err != nil {
		h.writeError(w, "Book", err)
		return
	}

	reason := ""
	if !ok {
		reason = "Slot is not available"
	}
	if err := httputil.WriteOutcome(w, ok, reason); err != nil {
		h.log.Error("failed to write outcome response", "handler", "Book", "operation", "WriteOutcome", "error", err)
	}
}

func (h *SlotHandler) Block(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req blockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeBadRequest(w, "Block")
		return
	}
	if req.SlotID == "" || req.BlockedBy == "" {
		h.writeError(w, "Block", apperrors.InvalidInput("slot_id and blocked_by are required"))
		return
	}

	ok, err := h.service.Block(r.Context(), req.SlotID, req.BlockedBy, req.Reason)
	if err != nil {
		h.writeError(w, "Block", err)
		return
	}

	reason := ""
	if !ok {
		reason = "Slot cannot be blocked in its current state"
	}
	if err := httputil.WriteOutcome(w, ok, reason); err != nil {
		h.log.Error("failed to write outcome response", "handler", "Block", "operation", "WriteOutcome", "error", err)
	}
}

func (h *SlotHandler) Unblock(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req slotIDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeBadRequest(w, "Unblock")
		return
	}
	if req.SlotID == "" {
		h.writeError(w, "Unblock", apperrors.InvalidInput("slot_id is required"))
		return
	}

	ok, err := h.service.Unblock(r.Context(), req.SlotID)
	if err != nil {
		h.writeError(w, "Unblock", err)
		return
	}

	reason := ""
	if !ok {
		reason = "Slot is not blocked"
	}
	if err := httputil.WriteOutcome(w, ok, reason); err != nil {
		h.log.Error("failed to write outcome response", "handler", "Unblock", "operation", "WriteOutcome", "error", err)
	}
}

func (h *SlotHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	slot, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, slot); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *SlotHandler) Search(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	query := r.URL.Query()

	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "Search", err)
		return
	}

	slots, total, err := h.service.Search(
		r.Context(),
		query.Get("turf_id"),
		query.Get("date"),
		model.SlotStatus(query.Get("status")),
		limit,
		offset,
	)
	if err != nil {
		h.writeError(w, "Search", err)
		return
	}

	if err := httputil.WritePaginated(w, slots, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "Search", "operation", "WritePaginated", "error", err)
	}
}

func (h *SlotHandler) writeBadRequest(w http.ResponseWriter, handlerName string) {
	if err := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
		Error: "Invalid request body",
	}); err != nil {
		h.log.Error("failed to write JSON response", "handler", handlerName, "operation", "WriteJSON", "error", err)
	}
}

func (h *SlotHandler) writeError(w http.ResponseWriter, handlerName string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handlerName, "operation", "WriteError", "error", writeErr)
	}
}

func (h *SlotHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/slots/reserve", h.Reserve)
	router.POST("/api/v1/slots/release", h.Release)
	router.POST("/api/v1/slots/book", h.Book)
	router.POST("/api/v1/slots/block", h.Block)
	router.POST("/api/v1/slots/unblock", h.Unblock)
	router.GET("/api/v1/slots", h.Search)
	router.GET("/api/v1/slots/id/:id", h.GetByID)
}
