package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nao-namake/bitbank-decision-core/internal/logger"
)

// TickerUpdate is one public-channel price tick from Bitbank's streaming
// feed.
type TickerUpdate struct {
	Pair  string
	Last  float64
	Epoch time.Time
}

// OrderEvent is one private-channel execution/order-state event.
type OrderEvent struct {
	OrderID string
	Status  string
	Epoch   time.Time
}

// Stream wraps the public websocket leg of the exchange façade
// (WatchTicker). privateURL is stored, but no private-channel reader is
// implemented and no method produces OrderEvent values. A dropped
// connection reconnects with backoff; callers read off the returned
// channel for as long as ctx is alive.
type Stream struct {
	publicURL  string
	privateURL string
	log        *logger.Logger
}

// NewStream builds a Stream pointed at the given public/private URLs.
func NewStream(publicURL, privateURL string) *Stream {
	return &Stream{publicURL: publicURL, privateURL: privateURL, log: logger.Named("exchange.stream")}
}

// WatchTicker connects to the public ticker channel for pair and emits
// updates on the returned channel until ctx is cancelled.
func (s *Stream) WatchTicker(ctx context.Context, pair string) <-chan TickerUpdate {
	out := make(chan TickerUpdate, 16)
	go s.runWithReconnect(ctx, s.publicURL, func(conn *websocket.Conn) error {
		sub := fmt.Sprintf(`42["join-room","ticker_%s"]`, pair)
		if err := conn.WriteMessage(websocket.TextMessage, []byte(sub)); err != nil {
			return err
		}
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return err
			}
			if up, ok := parseTickerMessage(pair, raw); ok {
				select {
				case out <- up:
				case <-ctx.Done():
					return nil
				default:
				}
			}
		}
	})
	return out
}

func (s *Stream) runWithReconnect(ctx context.Context, url string, handle func(*websocket.Conn) error) {
	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
		if err != nil {
			s.log.Warnf("websocket dial failed: %v, retrying in %s", err, backoff)
			time.Sleep(backoff)
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second
		if err := handle(conn); err != nil {
			s.log.Warnf("websocket stream ended: %v", err)
		}
		conn.Close()
	}
}

func parseTickerMessage(pair string, raw []byte) (TickerUpdate, bool) {
	var payload struct {
		Last string `json:"last"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil || payload.Last == "" {
		return TickerUpdate{}, false
	}
	var last float64
	fmt.Sscanf(payload.Last, "%f", &last)
	return TickerUpdate{Pair: pair, Last: last, Epoch: time.Now()}, true
}
