package llm

import (
	"context"
	"time"
)

// LLMObserver receives notifications about LLM calls, successful or not.
// Implementations should not block.
type LLMObserver interface {
	OnLLMCall(ctx context.Context, event LLMCallEvent)
}

// LLMCallEvent contains all information about an LLM call.
type LLMCallEvent struct {
	Provider string
	Model    string

	// Response is nil if the call failed before getting a response.
	Response *Response
	Error    error

	Duration time.Duration

	// Attempt number within one extraction (1 = first try).
	Attempt int

	StartedAt time.Time

	// InputSize is the size in bytes of the section text sent.
	InputSize int
}

// Succeeded reports whether the call produced a response without error.
func (e LLMCallEvent) Succeeded() bool {
	return e.Error == nil && e.Response != nil
}

// ObserverFunc is a convenience type for using a function as an LLMObserver.
type ObserverFunc func(ctx context.Context, event LLMCallEvent)

// OnLLMCall implements LLMObserver.
func (f ObserverFunc) OnLLMCall(ctx context.Context, event LLMCallEvent) {
	f(ctx, event)
}

// MultiObserver dispatches each event to every registered observer.
type MultiObserver struct {
	observers []LLMObserver
}

// NewMultiObserver creates an observer that dispatches to multiple observers.
// Nil observers are ignored.
func NewMultiObserver(observers ...LLMObserver) *MultiObserver {
	m := &MultiObserver{}
	for _, o := range observers {
		m.Add(o)
	}
	return m
}

// OnLLMCall dispatches the event to all registered observers.
func (m *MultiObserver) OnLLMCall(ctx context.Context, event LLMCallEvent) {
	for _, obs := range m.observers {
		obs.OnLLMCall(ctx, event)
	}
}

// Add adds an observer to the multi-observer.
func (m *MultiObserver) Add(obs LLMObserver) {
	if obs == nil {
		return
	}
	m.observers = append(m.observers, obs)
}
