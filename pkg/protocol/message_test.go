package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMessage(t *testing.T) {
	tests := []struct {
		name    string
		msgType MessageType
		data    interface{}
		wantErr bool
	}{
		{
			name:    "observation message",
			msgType: TypeObservation,
			data:    ObservationData{Detected: true, X: 0.4},
		},
		{
			name:    "status message",
			msgType: TypeStatus,
			data:    StatusData{State: "observer", Enabled: true},
		},
		{
			name:    "nil data",
			msgType: TypePing,
			data:    nil,
		},
		{
			name:    "unmarshalable data",
			msgType: TypeStatus,
			data:    make(chan int),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := NewMessage(tt.msgType, tt.data)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.msgType, msg.Type)
			assert.NotZero(t, msg.Timestamp, "timestamp should be set")
		})
	}
}

func TestObservationFromWire(t *testing.T) {
	raw := []byte(`{"type":"observation","ts":1700000000000,"data":{"detected":true,"x":0.25,"waving":true}}`)

	msg, err := ParseMessage(raw)
	require.NoError(t, err)
	obs, err := msg.GetObservationData()
	require.NoError(t, err)
	assert.Equal(t, ObservationData{Detected: true, X: 0.25, Waving: true}, *obs)
}

func TestGetObservationData_WrongType(t *testing.T) {
	msg, err := NewPingMessage("abc")
	require.NoError(t, err)
	_, err = msg.GetObservationData()
	assert.Error(t, err, "ping carries no observation")
}

func TestStatusWireFormat(t *testing.T) {
	msg, err := NewStatusMessage(StatusData{
		State:  "start_animation",
		Servos: []ServoData{{Name: "K", Position: 90, Target: 120}},
	})
	require.NoError(t, err)
	b, err := msg.Bytes()
	require.NoError(t, err)

	var generic map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &generic))
	assert.Equal(t, "status", generic["type"])
	data := generic["data"].(map[string]interface{})
	assert.Equal(t, "start_animation", data["state"])
	assert.NotContains(t, data, "library", "empty library should be omitted")
}

func TestParseMessage_Invalid(t *testing.T) {
	_, err := ParseMessage([]byte("not json"))
	assert.Error(t, err)
}

func TestPong(t *testing.T) {
	msg, err := NewPongMessage("p1", 100, 142)
	require.NoError(t, err)
	pong, err := msg.GetPongData()
	require.NoError(t, err)
	assert.Equal(t, int64(42), pong.LatencyMs)
}
