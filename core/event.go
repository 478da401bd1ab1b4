package core

import (
	"time"

	"github.com/google/uuid"
)

// Event is one entry of a run trace: a model turn, a batch of tool responses
// or an error. Events are recorded for inspection only and never replayed.
type Event struct {
	ID           string    `json:"id"`
	RunID        string    `json:"run_id"`
	Task         string    `json:"task,omitempty"`
	Author       string    `json:"author"`
	Timestamp    time.Time `json:"timestamp"`
	Content      *Content  `json:"content,omitempty"`
	ErrorMessage *string   `json:"error_message,omitempty"`
}

// NewEvent creates a bare event authored by author.
func NewEvent(author string) Event {
	return Event{
		ID:        NewID(),
		Author:    author,
		Timestamp: time.Now().UTC(),
	}
}

// NewContentEvent creates an event carrying a copy of content.
func NewContentEvent(author string, content Content) Event {
	e := NewEvent(author)
	e.Content = &content
	return e
}

// NewErrorEvent creates an event describing err.
func NewErrorEvent(author string, err error) Event {
	e := NewEvent(author)
	msg := err.Error()
	e.ErrorMessage = &msg
	return e
}

// NewID generates a new unique identifier.
func NewID() string { return uuid.NewString() }

// FunctionCalls returns the function calls contained in the event content.
func (e Event) FunctionCalls() []FunctionCall {
	if e.Content == nil {
		return nil
	}
	return e.Content.FunctionCalls()
}

// FunctionResponses returns the function responses contained in the event content.
func (e Event) FunctionResponses() []FunctionResponse {
	if e.Content == nil {
		return nil
	}
	return e.Content.FunctionResponses()
}

// IsError reports whether the event records a failure.
func (e Event) IsError() bool { return e.ErrorMessage != nil }
