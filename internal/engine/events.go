package engine

import (
	"encoding/json"
	"io"
	"net/http"
)

// EventType names a streamed event.
type EventType string

// Event types, in the order a consumer typically sees them. Done is always last.
const (
	EventStatus   EventType = "status"
	EventProgress EventType = "progress"
	EventSuccess  EventType = "success"
	EventError    EventType = "error"
	EventDone     EventType = "done"
)

// Event is one streamed categorization event.
type Event interface {
	Kind() EventType
}

// StatusEvent is informational.
type StatusEvent struct {
	Type    EventType `json:"type"`
	Message string    `json:"message"`
}

// ProgressEvent reports how many transactions have been resolved.
type ProgressEvent struct {
	Type      EventType `json:"type"`
	Current   string    `json:"current,omitempty"`
	Completed int       `json:"completed"`
	Total     int       `json:"total"`
}

// SuccessEvent reports one categorized transaction.
type SuccessEvent struct {
	Type         EventType `json:"type"`
	ID           string    `json:"id"`
	Vendor       string    `json:"vendor"`
	Category     string    `json:"category"`
	Line         string    `json:"line"`
	Reasoning    string    `json:"reasoning,omitempty"`
	QuickLabels  []string  `json:"quickLabels"`
	Confidence   float64   `json:"confidence"`
	DeductionPct int       `json:"deductionPct"`
	IsMeal       bool      `json:"isMeal"`
	IsTravel     bool      `json:"isTravel"`
}

// ErrorEvent reports one transaction that could not be categorized or saved.
type ErrorEvent struct {
	Type    EventType `json:"type"`
	ID      string    `json:"id"`
	Vendor  string    `json:"vendor"`
	Message string    `json:"message"`
}

// DoneEvent carries the run totals.
type DoneEvent struct {
	Type              EventType `json:"type"`
	Successful        int       `json:"successful"`
	Failed            int       `json:"failed"`
	Total             int       `json:"total"`
	TotalInputTokens  int       `json:"totalInputTokens"`
	TotalOutputTokens int       `json:"totalOutputTokens"`
	CachedCount       int       `json:"cachedCount"`
}

func (StatusEvent) Kind() EventType   { return EventStatus }
func (ProgressEvent) Kind() EventType { return EventProgress }
func (SuccessEvent) Kind() EventType  { return EventSuccess }
func (ErrorEvent) Kind() EventType    { return EventError }
func (DoneEvent) Kind() EventType     { return EventDone }

// Sink receives events. Emit is never called concurrently by a Run.
type Sink interface {
	Emit(event Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event) error

// Emit implements Sink.
func (f SinkFunc) Emit(event Event) error { return f(event) }

// NDJSONSink writes each event as one JSON line and flushes the writer when
// it supports flushing.
type NDJSONSink struct {
	w   io.Writer
	enc *json.Encoder
}

// NewNDJSONSink creates a sink over w.
func NewNDJSONSink(w io.Writer) *NDJSONSink {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &NDJSONSink{w: w, enc: enc}
}

// Emit implements Sink.
func (s *NDJSONSink) Emit(event Event) error {
	if err := s.enc.Encode(event); err != nil {
		return err
	}
	switch f := s.w.(type) {
	case interface{ Flush() error }:
		return f.Flush()
	case http.Flusher:
		f.Flush()
	}
	return nil
}
