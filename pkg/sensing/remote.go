package sensing

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-marionette/internal/log"
	"github.com/teslashibe/go-marionette/pkg/protocol"
)

// RemoteSource reads observations from an external pose service over a
// WebSocket. The connection is dialed lazily and redialed after a failure;
// the tracker's retry delay paces reconnects.
type RemoteSource struct {
	url    string
	dialer *websocket.Dialer
	header http.Header
	logger *slog.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

// NewRemoteSource creates a source for the pose service at url (ws:// or wss://).
func NewRemoteSource(url string) *RemoteSource {
	return &RemoteSource{
		url:    url,
		dialer: websocket.DefaultDialer,
		logger: log.Component("sensing").With("source", "remote"),
	}
}

// SetHeader sets headers sent with the handshake, such as authorization.
func (r *RemoteSource) SetHeader(h http.Header) {
	r.header = h
}

func (r *RemoteSource) connect(ctx context.Context) (*websocket.Conn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrClosed
	}
	if r.conn != nil {
		return r.conn, nil
	}

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	conn, _, err := r.dialer.DialContext(dialCtx, r.url, r.header)
	if err != nil {
		return nil, fmt.Errorf("failed to dial pose service: %w", err)
	}
	r.logger.Info("connected to pose service", "url", r.url)
	r.conn = conn
	return conn, nil
}

func (r *RemoteSource) drop(conn *websocket.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn == conn {
		r.conn.Close()
		r.conn = nil
	}
}

// Next implements Source. Messages other than observations are skipped;
// pings are answered.
func (r *RemoteSource) Next(ctx context.Context) (Observation, error) {
	conn, err := r.connect(ctx)
	if err != nil {
		return Observation{}, err
	}

	// unblock the read when ctx ends
	stop := context.AfterFunc(ctx, func() {
		conn.SetReadDeadline(time.Now())
	})
	defer stop()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			r.drop(conn)
			if ctx.Err() != nil {
				return Observation{}, ctx.Err()
			}
			return Observation{}, fmt.Errorf("pose service read: %w", err)
		}

		msg, err := protocol.ParseMessage(data)
		if err != nil {
			r.logger.Debug("skipping malformed message", "error", err)
			continue
		}

		switch msg.Type {
		case protocol.TypeObservation:
			obs, err := msg.GetObservationData()
			if err != nil {
				r.logger.Debug("skipping malformed observation", "error", err)
				continue
			}
			return Observation{Detected: obs.Detected, X: obs.X, Waving: obs.Waving}, nil
		case protocol.TypePing:
			r.pong(conn, msg)
		}
	}
}

func (r *RemoteSource) pong(conn *websocket.Conn, ping *protocol.Message) {
	data, err := ping.GetPingData()
	if err != nil {
		return
	}
	pong, err := protocol.NewPongMessage(data.ID, ping.Timestamp, time.Now().UnixMilli())
	if err != nil {
		return
	}
	b, err := pong.Bytes()
	if err != nil {
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		r.logger.Debug("pong failed", "error", err)
	}
}

// Close implements Source.
func (r *RemoteSource) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	if r.conn != nil {
		err := r.conn.Close()
		r.conn = nil
		return err
	}
	return nil
}
