package realtime

import (
	"context"
	"encoding/json"

	pubnub "github.com/pubnub/go/v7"
	"go.uber.org/zap"
)

// HandlerFunc consumes one inbound event's payload.
type HandlerFunc func(ctx context.Context, data json.RawMessage)

// Listener subscribes to the inbound client channel and routes each
// message by event name through an explicit dispatch table. Handlers
// are registered up front; an event with no handler is dropped with a
// warning instead of silently depending on registration order.
type Listener struct {
	pn       *pubnub.PubNub
	channel  string
	logger   *zap.Logger
	handlers map[string]HandlerFunc
}

func NewListener(pn *pubnub.PubNub, channel string, logger *zap.Logger) *Listener {
	return &Listener{
		pn:       pn,
		channel:  channel,
		logger:   logger,
		handlers: make(map[string]HandlerFunc),
	}
}

// Handle registers the handler for an inbound event name. Must be
// called before Start.
func (l *Listener) Handle(event string, fn HandlerFunc) {
	l.handlers[event] = fn
}

// Start subscribes and consumes messages until ctx is cancelled.
func (l *Listener) Start(ctx context.Context) {
	listener := pubnub.NewListener()
	l.pn.AddListener(listener)
	l.pn.Subscribe().Channels([]string{l.channel}).Execute()

	go l.consume(ctx, listener)
}

type inbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func (l *Listener) consume(ctx context.Context, listener *pubnub.Listener) {
	for {
		select {
		case st := <-listener.Status:
			switch st.Category {
			case pubnub.PNConnectedCategory:
				l.logger.Info("connected to pubnub", zap.String("channel", l.channel))
			case pubnub.PNReconnectedCategory:
				l.logger.Info("reconnected to pubnub", zap.String("channel", l.channel))
			case pubnub.PNDisconnectedCategory:
				l.logger.Warn("disconnected from pubnub", zap.String("channel", l.channel))
			case pubnub.PNTimeoutCategory:
				l.logger.Warn("pubnub timeout", zap.String("channel", l.channel))
			}

		case message := <-listener.Message:
			l.dispatch(ctx, message.Message)

		case <-ctx.Done():
			l.pn.Unsubscribe().Channels([]string{l.channel}).Execute()
			return
		}
	}
}

func (l *Listener) dispatch(ctx context.Context, raw any) {
	// PubNub hands JSON payloads back as decoded values; round-trip
	// through encoding/json to get at the envelope.
	data, err := json.Marshal(raw)
	if err != nil {
		l.logger.Warn("undecodable inbound message", zap.Error(err))
		return
	}

	var msg inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		l.logger.Warn("malformed inbound envelope", zap.Error(err))
		return
	}

	fn, ok := l.handlers[msg.Event]
	if !ok {
		l.logger.Warn("no handler for inbound event", zap.String("event", msg.Event))
		return
	}

	fn(ctx, msg.Data)
}
