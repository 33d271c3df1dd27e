package devserver

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

const (
	EventPortConflict = "devserver:portConflict"
	EventPortRequest  = "devserver:portRequest"
	EventStatus       = "devserver:status"
)

// EventPrompter bridges reconciliation prompts to the frontend. Each
// prompt is emitted as an event carrying a request id; the frontend
// answers through Submit. A prompt stays pending until answered or the
// surrounding operation's context is cancelled.
type EventPrompter struct {
	emit func(event string, payload any)

	mu      sync.Mutex
	pending map[string]chan Decision
}

func NewEventPrompter(emit func(event string, payload any)) *EventPrompter {
	if emit == nil {
		emit = func(string, any) {}
	}
	return &EventPrompter{emit: emit, pending: make(map[string]chan Decision)}
}

// The two prompt kinds get separate envelope types so their fields keep
// distinct JSON names on the wire.
type conflictEnvelope struct {
	RequestID string `json:"requestId"`
	ConflictPrompt
}

type portEnvelope struct {
	RequestID string `json:"requestId"`
	PortPrompt
}

func (p *EventPrompter) await(ctx context.Context, event string, envelope func(requestID string) any) (Decision, error) {
	id := uuid.NewString()
	ch := make(chan Decision, 1)
	p.mu.Lock()
	p.pending[id] = ch
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		delete(p.pending, id)
		p.mu.Unlock()
	}()

	p.emit(event, envelope(id))
	select {
	case <-ctx.Done():
		return Decision{}, ctx.Err()
	case d := <-ch:
		return d, nil
	}
}

func (p *EventPrompter) ResolveConflict(ctx context.Context, prompt ConflictPrompt) (Decision, error) {
	return p.await(ctx, EventPortConflict, func(id string) any {
		return conflictEnvelope{RequestID: id, ConflictPrompt: prompt}
	})
}

func (p *EventPrompter) RequestPort(ctx context.Context, prompt PortPrompt) (int, error) {
	d, err := p.await(ctx, EventPortRequest, func(id string) any {
		return portEnvelope{RequestID: id, PortPrompt: prompt}
	})
	if err != nil {
		return 0, err
	}
	if d.Action == ActionCancel {
		return 0, nil
	}
	return d.Port, nil
}

// Submit delivers the frontend's answer for a pending prompt. Answers for
// unknown or already-cancelled requests are dropped.
func (p *EventPrompter) Submit(requestID string, decision Decision) {
	p.mu.Lock()
	ch, ok := p.pending[requestID]
	p.mu.Unlock()
	if ok {
		select {
		case ch <- decision:
		default:
		}
	}
}
