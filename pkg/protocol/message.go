// Package protocol defines the WebSocket messages exchanged with the
// marionette: observations pushed in by pose services, and status pushed out
// to monitoring clients.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType identifies the type of WebSocket message
type MessageType string

const (
	// Pose service → marionette
	TypeObservation MessageType = "observation" // One sensing result

	// Marionette → monitor
	TypeStatus MessageType = "status" // Control loop status

	// Bidirectional
	TypePing MessageType = "ping" // Health check
	TypePong MessageType = "pong" // Health check response
)

// Message is the base wrapper for all WebSocket messages
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType MessageType, data interface{}) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// ParseData unmarshals the message data into the provided struct
func (m *Message) ParseData(v interface{}) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message from bytes
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	return &msg, nil
}

// =============================================================================
// Pose service → Marionette
// =============================================================================

// ObservationData is one sensing result
type ObservationData struct {
	Detected bool    `json:"detected"`         // Someone is in view
	X        float64 `json:"x,omitempty"`      // Horizontal position, 0 (left) to 1 (right), image coordinates
	Waving   bool    `json:"waving,omitempty"` // Wrist above shoulder
}

// =============================================================================
// Marionette → Monitor
// =============================================================================

// StatusData is a snapshot of the control loop
type StatusData struct {
	State       string             `json:"state"`
	TimeInState float64            `json:"time_in_state"` // Seconds
	Enabled     bool               `json:"enabled"`       // Enable gate after the dead-man timeout
	Library     string             `json:"library,omitempty"`
	Sensing     SensingData        `json:"sensing"`
	Servos      []ServoData        `json:"servos"`
	Strengths   map[string]float64 `json:"strengths,omitempty"` // Per animation
	Ticks       uint64             `json:"ticks"`
}

// SensingData mirrors the sensing snapshot
type SensingData struct {
	PresenceTime float64 `json:"presence_time"`
	WaveTime     float64 `json:"wave_time"`
	PoseX        float64 `json:"pose_x"`
	HasPose      bool    `json:"has_pose"`
}

// ServoData is one actuator
type ServoData struct {
	Name     string  `json:"name"`
	Position float64 `json:"position"`
	Target   float64 `json:"target"`
	Binary   bool    `json:"binary,omitempty"`
}

// =============================================================================
// Bidirectional Message Types
// =============================================================================

// PingData contains ping information
type PingData struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"ts"`
}

// PongData contains pong response
type PongData struct {
	ID        string `json:"id"`
	PingTS    int64  `json:"ping_ts"`
	PongTS    int64  `json:"pong_ts"`
	LatencyMs int64  `json:"latency_ms"`
}
