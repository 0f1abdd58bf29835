// Package nlu implements the NLU collaborator on top of the slot collection:
// each turn is run through every top-level slot independently, and an
// expected slot (set by the policy after an elicitation prompt) gets a
// focused single-slot pass first.
package nlu

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"bankbot/internal/dialog"
	"bankbot/internal/slots"
)

// Model resolves slot values for each turn. Slot resolution is a pure read
// over immutable slots, so concurrent turns across users are safe; the
// expectation is the only mutable state and is guarded.
type Model struct {
	slots  []slots.Slot
	logger *slog.Logger

	mu          sync.Mutex
	expectation string
}

// NewModel builds the NLU model over a loaded schema.
func NewModel(loaded []slots.Slot, logger *slog.Logger) *Model {
	return &Model{
		slots:  loaded,
		logger: logger.With("component", "nlu"),
	}
}

// SetExpectation records which slot the next utterance is expected to fill.
// An empty id clears the expectation.
func (m *Model) SetExpectation(slotID string) {
	m.mu.Lock()
	m.expectation = slotID
	m.mu.Unlock()
}

// Forward parses one turn into an intent and filled slots. Geo turns carry
// their validated payload through as a structured geo slot value without
// touching the resolvers.
func (m *Model) Forward(ctx context.Context, input dialog.TurnInput) (*dialog.NLUResult, error) {
	result := &dialog.NLUResult{Slots: make(map[string]*slots.Value)}

	if input.Type == dialog.MessageGeo {
		payload, err := json.Marshal(input.Geo)
		if err != nil {
			return nil, err
		}
		result.Intent = "geo"
		result.Slots["geo"] = &slots.Value{Payload: payload}
		return result, nil
	}

	m.mu.Lock()
	expected := m.expectation
	m.mu.Unlock()

	if expected != "" {
		for _, s := range m.slots {
			if s.ID() != expected {
				continue
			}
			v, err := s.ResolveSingle(ctx, input.Tokens)
			if err != nil {
				return nil, err
			}
			if v != nil {
				result.Slots[s.ID()] = v
			}
			break
		}
	}

	for _, s := range m.slots {
		if _, done := result.Slots[s.ID()]; done {
			continue
		}
		v, err := s.ResolveCompositional(ctx, input.Tokens)
		if err != nil {
			return nil, err
		}
		if v != nil {
			result.Slots[s.ID()] = v
		}
	}

	if len(result.Slots) > 0 {
		result.Intent = "slot_filling"
	}
	m.logger.Debug("forward complete", "slots", len(result.Slots), "expected", expected)
	return result, nil
}
