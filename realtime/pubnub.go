package realtime

import (
	"context"
	"fmt"

	pubnub "github.com/pubnub/go/v7"
	"go.uber.org/zap"

	"waitlist-system/internal/status"
)

// PubNubTransport broadcasts room events as PubNub channel publishes.
// Room membership is client-side with PubNub: a browser subscribes to
// its room channels directly, so Join/Leave here only log for tracing.
type PubNubTransport struct {
	pn     *pubnub.PubNub
	logger *zap.Logger
}

func NewPubNubTransport(pn *pubnub.PubNub, logger *zap.Logger) *PubNubTransport {
	return &PubNubTransport{pn: pn, logger: logger}
}

func (t *PubNubTransport) JoinRoom(connectionID, roomID string) error {
	t.logger.Debug("room join", zap.String("connection_id", connectionID), zap.String("room", roomID))
	return nil
}

func (t *PubNubTransport) LeaveRoom(connectionID, roomID string) error {
	t.logger.Debug("room leave", zap.String("connection_id", connectionID), zap.String("room", roomID))
	return nil
}

func (t *PubNubTransport) Broadcast(_ context.Context, roomID, eventName string, payload any) error {
	_, _, err := t.pn.Publish().
		Channel(roomID).
		Message(Envelope{Event: eventName, Data: payload}).
		Execute()
	if err != nil {
		return fmt.Errorf("%w: publish to %s: %v", status.ErrDeliveryFailure, roomID, err)
	}
	return nil
}
