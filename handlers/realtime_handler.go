package handlers

import (
	"net/http"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"waitlist-system/services"
	"waitlist-system/utils"
)

// RealtimeHandler does room membership bookkeeping for live
// connections. A client announces itself after (re)connecting and gets
// back the room set to subscribe to; membership is rebuilt from scratch
// on every connect.
type RealtimeHandler struct {
	entries *services.EntryService
	router  *services.RoomRouter
}

func NewRealtimeHandler(entries *services.EntryService, router *services.RoomRouter) *RealtimeHandler {
	return &RealtimeHandler{entries: entries, router: router}
}

// Connect - join the rooms for an entry (customer) or a merchant
func (h *RealtimeHandler) Connect(e *core.RequestEvent) error {
	var req struct {
		ConnectionID string `json:"connection_id"`
		EntryID      string `json:"entry_id"`
		MerchantID   string `json:"merchant_id"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	if req.ConnectionID == "" {
		id, err := utils.GenerateCode(8)
		if err != nil {
			return apis.NewApiError(http.StatusInternalServerError, "Something went wrong", nil)
		}
		req.ConnectionID = id
	}

	var rooms []string
	switch {
	case req.EntryID != "":
		entry, err := h.entries.GetEntry(e.Request.Context(), req.EntryID)
		if err != nil {
			return apiError(err)
		}
		rooms = h.router.CustomerRooms(entry)
	case req.MerchantID != "":
		rooms = []string{services.MerchantRoom(req.MerchantID)}
	default:
		return apis.NewBadRequestError("entry_id or merchant_id required", nil)
	}

	if err := h.router.Connect(req.ConnectionID, rooms); err != nil {
		return apis.NewApiError(http.StatusInternalServerError, "Something went wrong", nil)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"connection_id": req.ConnectionID,
		"rooms":         rooms,
	})
}

// Disconnect - leave all rooms for a connection
func (h *RealtimeHandler) Disconnect(e *core.RequestEvent) error {
	var req struct {
		ConnectionID string `json:"connection_id"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.ConnectionID == "" {
		return apis.NewBadRequestError("connection_id required", nil)
	}

	if err := h.router.Disconnect(req.ConnectionID); err != nil {
		return apis.NewApiError(http.StatusInternalServerError, "Something went wrong", nil)
	}

	return e.JSON(http.StatusOK, map[string]any{"message": "disconnected"})
}
