package services

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"waitlist-system/models"
	"waitlist-system/realtime"
)

// AckCoordinator is the inbound face of the acknowledgment flow. REST
// handlers and the realtime listener both land here; the state machine
// does the actual transition, so every path shares the same guards.
type AckCoordinator struct {
	entries *EntryService
	logger  *zap.Logger
}

func NewAckCoordinator(entries *EntryService, logger *zap.Logger) *AckCoordinator {
	return &AckCoordinator{entries: entries, logger: logger}
}

// Acknowledge confirms a call with an optional ETA.
func (c *AckCoordinator) Acknowledge(ctx context.Context, entryID string, etaMinutes int, etaNote string) (*models.QueueEntry, error) {
	return c.entries.Acknowledge(ctx, entryID, etaMinutes, etaNote)
}

// AcknowledgeSeen is the no-payload "seen it" variant.
func (c *AckCoordinator) AcknowledgeSeen(ctx context.Context, entryID string) (*models.QueueEntry, error) {
	return c.entries.Acknowledge(ctx, entryID, 0, "")
}

// Bind registers the coordinator on the realtime listener's dispatch
// table so acknowledgments sent over the live channel are handled the
// same way as REST ones.
func (c *AckCoordinator) Bind(listener *realtime.Listener) {
	listener.Handle(models.EventAcknowledge, c.handleInbound)
}

func (c *AckCoordinator) handleInbound(ctx context.Context, data json.RawMessage) {
	var req models.AckRequest
	if err := json.Unmarshal(data, &req); err != nil {
		c.logger.Warn("malformed acknowledge payload", zap.Error(err))
		return
	}
	if req.EntryID == "" {
		c.logger.Warn("acknowledge payload missing entry_id")
		return
	}

	if _, err := c.entries.Acknowledge(ctx, req.EntryID, req.EtaMinutes, req.EtaNote); err != nil {
		c.logger.Warn("inbound acknowledge rejected",
			zap.String("entry_id", req.EntryID), zap.Error(err))
	}
}
