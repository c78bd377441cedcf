// Package dispatch routes call jobs to voice workers. Workers register
// over WebSocket and report their capacity; jobs arrive over REST and are
// assigned to the least loaded worker. It is a development-grade router,
// enough to run worker mode end to end.
package dispatch

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType identifies a dispatch protocol message.
type MessageType string

const (
	// Worker → dispatch messages
	TypeRegister MessageType = "register" // announce capacity
	TypeStatus   MessageType = "status"   // report load

	// Dispatch → worker messages
	TypeRegistered MessageType = "registered" // assigned worker id
	TypeJob        MessageType = "job"        // call assignment

	// Bidirectional
	TypePing MessageType = "ping"
	TypePong MessageType = "pong"
)

// Message is the base wrapper for all dispatch messages.
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a message with the current timestamp.
func NewMessage(msgType MessageType, data interface{}) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("dispatch: marshal message data: %w", err)
		}
	}
	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// ParseData unmarshals the message data into the provided struct.
func (m *Message) ParseData(v interface{}) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message.
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message from bytes.
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("dispatch: parse message: %w", err)
	}
	return &msg, nil
}

// RegisterData announces a worker and its session capacity.
type RegisterData struct {
	Name     string `json:"name"`
	Capacity int    `json:"capacity"`
}

// RegisteredData carries the worker id the dispatcher assigned.
type RegisteredData struct {
	WorkerID string `json:"worker_id"`
}

// Job is one call assignment.
type Job struct {
	ID       string `json:"id"`
	RoomURL  string `json:"room_url"`
	RoomName string `json:"room_name"`
	Token    string `json:"token,omitempty"`
	Metadata string `json:"metadata,omitempty"`
}

// StatusData reports a worker's current load.
type StatusData struct {
	Active   int `json:"active"`
	Capacity int `json:"capacity"`
}

// PingData carries a health check.
type PingData struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"ts"`
}

// PongData answers a health check.
type PongData struct {
	ID     string `json:"id"`
	PingTS int64  `json:"ping_ts"`
	PongTS int64  `json:"pong_ts"`
}
