package sensing

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-marionette/internal/log"
	"github.com/teslashibe/go-marionette/pkg/protocol"
)

// IngestSource receives observations pushed by an external process. Only
// the latest unread observation is kept; a slow reader sees the newest data.
type IngestSource struct {
	ch      chan Observation
	done    chan struct{}
	closed  atomic.Bool
	clients atomic.Int32
	logger  *slog.Logger
}

// NewIngestSource creates an ingest source.
func NewIngestSource() *IngestSource {
	return &IngestSource{
		ch:     make(chan Observation, 1),
		done:   make(chan struct{}),
		logger: log.Component("sensing").With("source", "ingest"),
	}
}

// Push offers an observation, replacing any unread one.
func (s *IngestSource) Push(obs Observation) {
	if s.closed.Load() {
		return
	}
	for {
		select {
		case s.ch <- obs:
			return
		default:
		}
		select {
		case <-s.ch:
		default:
		}
	}
}

// Next implements Source.
func (s *IngestSource) Next(ctx context.Context) (Observation, error) {
	select {
	case <-ctx.Done():
		return Observation{}, ctx.Err()
	case <-s.done:
		return Observation{}, ErrClosed
	case obs := <-s.ch:
		return obs, nil
	}
}

// Close implements Source.
func (s *IngestSource) Close() error {
	if s.closed.CompareAndSwap(false, true) {
		close(s.done)
	}
	return nil
}

// Clients returns the number of connected producers.
func (s *IngestSource) Clients() int {
	return int(s.clients.Load())
}

// Handler returns the WebSocket endpoint producers connect to. Mount it
// behind an upgrade check.
func (s *IngestSource) Handler() fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		s.clients.Add(1)
		defer s.clients.Add(-1)
		s.logger.Info("producer connected", "addr", c.RemoteAddr().String())

		for {
			_, data, err := c.ReadMessage()
			if err != nil {
				s.logger.Info("producer disconnected", "reason", err)
				return
			}
			msg, err := protocol.ParseMessage(data)
			if err != nil {
				s.logger.Debug("skipping malformed message", "error", err)
				continue
			}
			if msg.Type != protocol.TypeObservation {
				continue
			}
			obs, err := msg.GetObservationData()
			if err != nil {
				continue
			}
			s.Push(Observation{Detected: obs.Detected, X: obs.X, Waving: obs.Waving})
		}
	})
}
