package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"workx/internal/ports"
)

// EventStream forwards the service's websocket notifications into a publisher.
type EventStream struct {
	url            string
	publisher      ports.EventPublisher
	logger         *slog.Logger
	dialer         *websocket.Dialer
	reconnectDelay time.Duration
}

type eventMessage struct {
	Event   string `json:"event"`
	Payload []any  `json:"payload"`
}

// Events returns a stream for /api/events on the client's service.
func (c *Client) Events(publisher ports.EventPublisher, reconnectDelay time.Duration) *EventStream {
	if reconnectDelay <= 0 {
		reconnectDelay = 2 * time.Second
	}
	return &EventStream{
		url:            websocketURL(c.endpoint("/api/events", nil)),
		publisher:      publisher,
		logger:         c.logger,
		dialer:         websocket.DefaultDialer,
		reconnectDelay: reconnectDelay,
	}
}

// Run keeps the stream connected until ctx ends.
func (s *EventStream) Run(ctx context.Context) error {
	for {
		err := s.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		s.logger.Warn("event stream disconnected", "url", s.url, "error", err, "retry_in", s.reconnectDelay)

		timer := time.NewTimer(s.reconnectDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

func (s *EventStream) session(ctx context.Context) error {
	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("connect to event stream: %w", err)
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	s.logger.Info("event stream connected", "url", s.url)
	return s.readLoop(conn)
}

func (s *EventStream) readLoop(conn *websocket.Conn) error {
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return errors.New("service closed the event stream")
			}
			return fmt.Errorf("read event: %w", err)
		}

		message, err := decodeEventMessage(payload)
		if err != nil {
			s.logger.Debug("skipping malformed event frame", "error", err)
			continue
		}
		s.publisher.Publish(message.Event, message.Payload...)
	}
}

// decodeEventMessage keeps numbers as json.Number so counts and percentages survive untouched.
func decodeEventMessage(frame []byte) (eventMessage, error) {
	decoder := json.NewDecoder(bytes.NewReader(frame))
	decoder.UseNumber()

	var message eventMessage
	if err := decoder.Decode(&message); err != nil {
		return eventMessage{}, err
	}
	message.Event = strings.TrimSpace(message.Event)
	if message.Event == "" {
		return eventMessage{}, errors.New("event name is missing")
	}
	return message, nil
}

func websocketURL(httpURL string) string {
	switch {
	case strings.HasPrefix(httpURL, "https://"):
		return "wss://" + strings.TrimPrefix(httpURL, "https://")
	case strings.HasPrefix(httpURL, "http://"):
		return "ws://" + strings.TrimPrefix(httpURL, "http://")
	default:
		return httpURL
	}
}
