package network

import (
	"context"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
)

// StatusEvent is one chain status update from the network.
type StatusEvent struct {
	BlockHeight   int64
	LatencyMillis int64
	TotalRequests int64
}

// statusRetryDelay is the pause before re-dialing a dropped stream.
const statusRetryDelay = 5 * time.Second

// StatusStream subscribes to chain status events over a websocket and feeds
// each event to a handler. It replaces periodic polling of the status
// endpoint with a push stream; Watch reconnects until ctx is done.
type StatusStream struct {
	baseURL string
	handler func(StatusEvent)
}

// NewStatusStream creates a stream against baseURL (http(s) or ws(s) form).
func NewStatusStream(baseURL string, handler func(StatusEvent)) *StatusStream {
	return &StatusStream{baseURL: baseURL, handler: handler}
}

// Watch consumes status events until ctx is cancelled. Connection drops are
// retried with a fixed delay; Watch only returns on cancellation.
func (s *StatusStream) Watch(ctx context.Context) {
	for {
		if err := s.consume(ctx); err != nil && ctx.Err() == nil {
			log.Debug().Err(err).Msg("status stream dropped, retrying")
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(statusRetryDelay):
		}
	}
}

func (s *StatusStream) consume(ctx context.Context) error {
	wsURL := toWebSocketURL(s.baseURL) + "/v1/status/stream"

	conn, resp, err := websocket.Dial(ctx, wsURL, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return err
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		s.handler(StatusEvent{
			BlockHeight:   gjson.GetBytes(data, "block_height").Int(),
			LatencyMillis: gjson.GetBytes(data, "latency_ms").Int(),
			TotalRequests: gjson.GetBytes(data, "total_requests").Int(),
		})
	}
}

// toWebSocketURL converts an HTTP(S) URL to a WS(S) URL.
func toWebSocketURL(httpURL string) string {
	if strings.HasPrefix(httpURL, "https://") {
		return "wss://" + strings.TrimPrefix(httpURL, "https://")
	}
	if strings.HasPrefix(httpURL, "http://") {
		return "ws://" + strings.TrimPrefix(httpURL, "http://")
	}
	return httpURL
}
