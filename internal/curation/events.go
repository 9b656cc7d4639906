package curation

import (
	"encoding/json"
	"fmt"
	"time"
)

type EventType string

const (
	EventStage         EventType = "stage"
	EventLog           EventType = "log"
	EventCandidates    EventType = "candidates"
	EventProfile       EventType = "profile"
	EventCandidatePool EventType = "candidate_pool"
	EventFeed          EventType = "feed"
	EventError         EventType = "error"
	EventComplete      EventType = "complete"
)

// Log levels carried on log events.
const (
	LevelInfo    = "info"
	LevelSuccess = "success"
	LevelWarning = "warning"
	LevelError   = "error"
)

// Event is one progress frame on a curation stream. Every stream ends with
// exactly one error or complete event.
type Event struct {
	Type    EventType       `json:"type"`
	State   string          `json:"state,omitempty"`
	Level   string          `json:"level,omitempty"`
	Message string          `json:"message,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	TS      time.Time       `json:"ts"`
}

// EmitFunc receives pipeline events; the caller owns delivery (SSE, stdout).
type EmitFunc func(Event)

func stageEvent(stage string) Event {
	return Event{Type: EventStage, State: stage, TS: time.Now()}
}

func logEvent(stage, level, format string, args ...interface{}) Event {
	return Event{Type: EventLog, State: stage, Level: level, Message: fmt.Sprintf(format, args...), TS: time.Now()}
}

func payloadEvent(typ EventType, stage string, v interface{}) Event {
	body, _ := json.Marshal(v)
	return Event{Type: typ, State: stage, Payload: body, TS: time.Now()}
}

func errorEvent(stage string, err error) Event {
	return Event{Type: EventError, State: stage, Level: LevelError, Message: err.Error(), TS: time.Now()}
}

func completeEvent(message string) Event {
	return Event{Type: EventComplete, Level: LevelSuccess, Message: message, TS: time.Now()}
}
