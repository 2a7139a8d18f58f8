package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/redis/go-redis/v9"

	"waitlist-system/services"
)

// MerchantHandler serves the merchant-side actions: calling, seating
// and the dashboard.
type MerchantHandler struct {
	entries *services.EntryService
	redis   *redis.Client
}

func NewMerchantHandler(entries *services.EntryService, redisClient *redis.Client) *MerchantHandler {
	return &MerchantHandler{entries: entries, redis: redisClient}
}

// CallNext - call the frontmost waiting customer
func (h *MerchantHandler) CallNext(e *core.RequestEvent) error {
	queueID := e.Request.PathValue("queueId")
	if queueID == "" {
		return apis.NewBadRequestError("Queue ID required", nil)
	}

	entry, err := h.entries.CallNext(e.Request.Context(), queueID)
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, entry)
}

// Call - call a specific customer
func (h *MerchantHandler) Call(e *core.RequestEvent) error {
	entry, err := h.entries.Call(e.Request.Context(), e.Request.PathValue("entryId"))
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, entry)
}

// Seat - mark a called/acknowledged customer as seated
func (h *MerchantHandler) Seat(e *core.RequestEvent) error {
	entry, err := h.entries.Seat(e.Request.Context(), e.Request.PathValue("entryId"))
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, entry)
}

// Complete - mark a called/acknowledged customer's service as done
func (h *MerchantHandler) Complete(e *core.RequestEvent) error {
	entry, err := h.entries.Complete(e.Request.Context(), e.Request.PathValue("entryId"))
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, entry)
}

// NoShow - mark a called/acknowledged customer as a no-show
func (h *MerchantHandler) NoShow(e *core.RequestEvent) error {
	entry, err := h.entries.NoShow(e.Request.Context(), e.Request.PathValue("entryId"))
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, entry)
}

// Dashboard - active entries plus queue metrics for the merchant view
func (h *MerchantHandler) Dashboard(e *core.RequestEvent) error {
	queueID := e.Request.PathValue("queueId")
	ctx := e.Request.Context()

	entries, err := h.entries.Dashboard(ctx, queueID)
	if err != nil {
		return apiError(err)
	}

	response := map[string]any{
		"entries":    entries,
		"fetched_at": time.Now(),
	}

	if h.redis != nil {
		metrics, err := h.redis.HGetAll(ctx, fmt.Sprintf("queue:metrics:%s", queueID)).Result()
		if err == nil && len(metrics) > 0 {
			response["metrics"] = metrics
		}
	}

	return e.JSON(http.StatusOK, response)
}
