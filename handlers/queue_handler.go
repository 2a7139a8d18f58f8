package handlers

import (
	"net/http"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"waitlist-system/models"
	"waitlist-system/services"
)

// QueueHandler serves the customer-facing endpoints.
type QueueHandler struct {
	entries *services.EntryService
	acks    *services.AckCoordinator
	tracker *services.PositionTracker
	router  *services.RoomRouter
}

func NewQueueHandler(entries *services.EntryService, acks *services.AckCoordinator, tracker *services.PositionTracker, router *services.RoomRouter) *QueueHandler {
	return &QueueHandler{
		entries: entries,
		acks:    acks,
		tracker: tracker,
		router:  router,
	}
}

// Join - customer joins the queue
func (h *QueueHandler) Join(e *core.RequestEvent) error {
	queueID := e.Request.PathValue("queueId")
	if queueID == "" {
		return apis.NewBadRequestError("Queue ID required", nil)
	}

	var req models.CustomerInfo
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.Name == "" {
		return apis.NewBadRequestError("Name is required", nil)
	}
	if req.PartySize < 1 {
		req.PartySize = 1
	}
	if req.Platform == "" {
		req.Platform = "web"
	}

	entry, err := h.entries.Join(e.Request.Context(), queueID, req)
	if err != nil {
		return apiError(err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"entry": entry,
		"rooms": h.router.CustomerRooms(entry),
	})
}

// GetEntry - entry status plus current position
func (h *QueueHandler) GetEntry(e *core.RequestEvent) error {
	entryID := e.Request.PathValue("entryId")

	entry, err := h.entries.GetEntry(e.Request.Context(), entryID)
	if err != nil {
		return apiError(err)
	}

	// Prefer the cached snapshot when present; the store value can lag a
	// reconciliation tick behind.
	if pos := h.tracker.SnapshotPosition(e.Request.Context(), entry.QueueID, entry.ID); pos > 0 {
		entry.Position = pos
	}

	return e.JSON(http.StatusOK, entry)
}

// Acknowledge - customer confirms a call, optionally with an ETA
func (h *QueueHandler) Acknowledge(e *core.RequestEvent) error {
	entryID := e.Request.PathValue("entryId")

	var req struct {
		EtaMinutes int    `json:"eta_minutes"`
		EtaNote    string `json:"eta_note"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	entry, err := h.acks.Acknowledge(e.Request.Context(), entryID, req.EtaMinutes, req.EtaNote)
	if err != nil {
		return apiError(err)
	}

	return e.JSON(http.StatusOK, entry)
}

// Withdraw - customer leaves after joining, allowed until seated
func (h *QueueHandler) Withdraw(e *core.RequestEvent) error {
	entry, err := h.entries.Withdraw(e.Request.Context(), e.Request.PathValue("entryId"))
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, entry)
}

// Cancel - customer cancels before being called
func (h *QueueHandler) Cancel(e *core.RequestEvent) error {
	entry, err := h.entries.Cancel(e.Request.Context(), e.Request.PathValue("entryId"))
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, entry)
}
