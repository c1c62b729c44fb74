package diagnostics

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"supportapp/internal/models"
)

// DefaultErrorCapacity is how many error events a capture retains
const DefaultErrorCapacity = 50

// ErrorCapture keeps the most recent runtime errors and unhandled rejections
// observed during a session. Eviction follows occurrence order.
type ErrorCapture struct {
	buf *RingBuffer[models.CapturedErrorEvent]
	now func() time.Time
}

// NewErrorCapture creates a capture holding DefaultErrorCapacity events
func NewErrorCapture() *ErrorCapture {
	return NewErrorCaptureWithCapacity(DefaultErrorCapacity)
}

// NewErrorCaptureWithCapacity creates a capture with a custom capacity
func NewErrorCaptureWithCapacity(capacity int) *ErrorCapture {
	return &ErrorCapture{
		buf: NewRingBuffer[models.CapturedErrorEvent](capacity),
		now: time.Now,
	}
}

// Record appends an event. A zero timestamp is filled with the current time.
func (c *ErrorCapture) Record(event models.CapturedErrorEvent) {
	if event.CapturedAt.IsZero() {
		event.CapturedAt = c.now()
	}
	c.buf.WriteOne(event)
}

// CapturedErrors returns a copy of the retained events, oldest first
func (c *ErrorCapture) CapturedErrors() []models.CapturedErrorEvent {
	return c.buf.ReadAll()
}

// Clear empties the capture. Call it only after a ticket was filed.
func (c *ErrorCapture) Clear() {
	c.buf.Clear()
}

// FormatErrors renders the retained events as a text block for a ticket
func (c *ErrorCapture) FormatErrors() string {
	return FormatErrors(c.CapturedErrors())
}

// FormatErrors renders events as a numbered text block. Empty input yields "".
func FormatErrors(events []models.CapturedErrorEvent) string {
	if len(events) == 0 {
		return ""
	}

	var b strings.Builder
	for i, ev := range events {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%d. [%s] %s %s", i+1, ev.CapturedAt.UTC().Format(time.RFC3339), ev.Kind, ev.Message)
		if ev.Source != "" {
			fmt.Fprintf(&b, "\n   at %s", ev.Source)
			if ev.Line > 0 {
				fmt.Fprintf(&b, ":%d", ev.Line)
				if ev.Column > 0 {
					fmt.Fprintf(&b, ":%d", ev.Column)
				}
			}
		}
		if ev.Stack != "" {
			for _, line := range strings.Split(strings.TrimRight(ev.Stack, "\n"), "\n") {
				b.WriteString("\n   ")
				b.WriteString(strings.TrimSpace(line))
			}
		}
	}
	return b.String()
}

// RuntimeErrorHandler receives uncaught runtime errors
type RuntimeErrorHandler func(message, source string, line, column int, stack string)

// RejectionHandler receives unhandled asynchronous rejections
type RejectionHandler func(reason any)

// ErrorSource is where runtime errors and unhandled rejections are observed.
// Each subscribe call returns a function that removes that subscription.
type ErrorSource interface {
	OnRuntimeError(h RuntimeErrorHandler) (unsubscribe func())
	OnUnhandledRejection(h RejectionHandler) (unsubscribe func())
}

// Install subscribes the capture to both hooks of source. The returned
// teardown removes both subscriptions and is safe to call more than once.
func (c *ErrorCapture) Install(source ErrorSource) (teardown func()) {
	offRuntime := source.OnRuntimeError(func(message, src string, line, column int, stack string) {
		c.Record(models.CapturedErrorEvent{
			Kind:    models.ErrorKindRuntime,
			Message: message,
			Source:  src,
			Line:    line,
			Column:  column,
			Stack:   stack,
		})
	})
	offRejection := source.OnUnhandledRejection(func(reason any) {
		ev := models.CapturedErrorEvent{Kind: models.ErrorKindUnhandledRejection}
		switch r := reason.(type) {
		case error:
			ev.Message = r.Error()
		case string:
			ev.Message = r
		case nil:
			ev.Message = "unknown rejection"
		default:
			ev.Message = fmt.Sprintf("%v", r)
		}
		c.Record(ev)
	})

	var once sync.Once
	return func() {
		once.Do(func() {
			offRuntime()
			offRejection()
		})
	}
}

// HookSource is an in-process ErrorSource. Producers call Emit* and every
// current subscriber receives the event.
type HookSource struct {
	mu         sync.RWMutex
	nextID     int
	runtime    map[int]RuntimeErrorHandler
	rejections map[int]RejectionHandler
}

// NewHookSource creates an empty hook registry
func NewHookSource() *HookSource {
	return &HookSource{
		runtime:    make(map[int]RuntimeErrorHandler),
		rejections: make(map[int]RejectionHandler),
	}
}

// OnRuntimeError subscribes h to runtime errors
func (s *HookSource) OnRuntimeError(h RuntimeErrorHandler) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.runtime[id] = h
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.runtime, id)
	}
}

// OnUnhandledRejection subscribes h to unhandled rejections
func (s *HookSource) OnUnhandledRejection(h RejectionHandler) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.rejections[id] = h
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.rejections, id)
	}
}

// EmitRuntimeError delivers a runtime error to every subscriber
func (s *HookSource) EmitRuntimeError(message, source string, line, column int, stack string) {
	s.mu.RLock()
	handlers := make([]RuntimeErrorHandler, 0, len(s.runtime))
	for _, h := range s.runtime {
		handlers = append(handlers, h)
	}
	s.mu.RUnlock()

	for _, h := range handlers {
		h(message, source, line, column, stack)
	}
}

// EmitUnhandledRejection delivers a rejection to every subscriber
func (s *HookSource) EmitUnhandledRejection(reason any) {
	s.mu.RLock()
	handlers := make([]RejectionHandler, 0, len(s.rejections))
	for _, h := range s.rejections {
		handlers = append(handlers, h)
	}
	s.mu.RUnlock()

	for _, h := range handlers {
		h(reason)
	}
}

// Subscribers returns the number of live subscriptions across both hooks
func (s *HookSource) Subscribers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.runtime) + len(s.rejections)
}
