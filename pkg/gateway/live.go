package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/medscan-console/internal/domain"
	"github.com/sirupsen/logrus"
)

// LiveEvent is one frame of the consultation live feed
type LiveEvent struct {
	Type    string
	Message domain.ConsultationMessage
}

type wireLiveEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Watch subscribes to the live feed of a consultation. Events are delivered
// on the returned channel, which is closed when ctx is cancelled or the
// connection drops. Frames that cannot be decoded are skipped.
func (s *ConsultationService) Watch(ctx context.Context, id string) (<-chan LiveEvent, error) {
	c := s.client
	wsURL, err := c.websocketURL("/api/consultation/" + url.PathEscape(id) + "/ws")
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	if c.creds != nil {
		if token := c.creds.Token(); token != "" {
			header.Set("Authorization", "Bearer "+token)
		}
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			c.handleUnauthorized(ctx)
			return nil, &domain.APIError{StatusCode: resp.StatusCode, Method: http.MethodGet, Path: wsURL}
		}
		return nil, fmt.Errorf("failed to connect to live feed: %w", err)
	}

	events := make(chan LiveEvent, 16)
	logger := c.logger.WithFields(logrus.Fields{"consultation_id": id})

	done := make(chan struct{})
	go closeOnCancel(ctx, done, conn)

	go func() {
		defer close(done)
		defer close(events)
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil && websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					logger.WithError(err).Warn("Live feed closed unexpectedly")
				}
				return
			}

			event, err := decodeLiveEvent(data)
			if err != nil {
				logger.WithError(err).Debug("Skipping undecodable live frame")
				continue
			}

			select {
			case events <- event:
			case <-ctx.Done():
				return
			}
		}
	}()

	return events, nil
}

// closeOnCancel closes c when ctx ends, unblocking a pending read. It
// returns without closing once done is closed.
func closeOnCancel(ctx context.Context, done <-chan struct{}, c io.Closer) {
	select {
	case <-ctx.Done():
		c.Close()
	case <-done:
	}
}

func decodeLiveEvent(data []byte) (LiveEvent, error) {
	const endpoint = "consultation live feed"
	var frame wireLiveEvent
	if err := decodeObject(endpoint, data, &frame); err != nil {
		return LiveEvent{}, err
	}
	var w wireMessage
	if err := decodeObject(endpoint, frame.Data, &w); err != nil {
		return LiveEvent{}, err
	}
	msg, err := w.toConsultationMessage(endpoint)
	if err != nil {
		return LiveEvent{}, err
	}
	return LiveEvent{Type: frame.Type, Message: msg}, nil
}

func (c *Client) websocketURL(path string) (string, error) {
	u := *c.baseURL
	switch strings.ToLower(u.Scheme) {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("cannot derive websocket URL from scheme %q", u.Scheme)
	}
	u.Path = c.baseURL.Path + path
	return u.String(), nil
}
