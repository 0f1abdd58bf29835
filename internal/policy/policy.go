// Package policy is a minimal goal-oriented dialog policy: it tracks filled
// slots across turns and elicits the first still-missing required slot via
// its ask sentence.
package policy

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"bankbot/internal/dialog"
	"bankbot/internal/slots"
)

// Model accumulates slot values over a dialog and decides what to say next.
type Model struct {
	required []slots.Slot
	byID     map[string]slots.Slot
	logger   *slog.Logger

	filled map[string]*slots.Value
}

// NewModel builds a policy requiring the given slot ids, in elicitation
// order. Unknown ids are rejected so misconfigurations fail at startup.
func NewModel(loaded []slots.Slot, requiredIDs []string, logger *slog.Logger) (*Model, error) {
	byID := make(map[string]slots.Slot, len(loaded))
	for _, s := range loaded {
		byID[s.ID()] = s
	}
	required := make([]slots.Slot, 0, len(requiredIDs))
	for _, id := range requiredIDs {
		s, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("policy requires unknown slot %q", id)
		}
		required = append(required, s)
	}
	return &Model{
		required: required,
		byID:     byID,
		logger:   logger.With("component", "policy"),
		filled:   make(map[string]*slots.Value),
	}, nil
}

// Slots exposes the accumulated values, keyed by slot id.
func (m *Model) Slots() map[string]*slots.Value {
	return m.filled
}

// Forward merges the turn's parse into dialog state and either elicits the
// next missing slot or confirms completion.
func (m *Model) Forward(ctx context.Context, nluResult *dialog.NLUResult) (*dialog.PolicyResult, error) {
	for id, v := range nluResult.Slots {
		m.filled[id] = v
	}

	for _, s := range m.required {
		if _, ok := m.filled[s.ID()]; ok {
			continue
		}
		m.logger.Debug("eliciting slot", "slot", s.ID())
		return &dialog.PolicyResult{
			Responses:  []string{s.Ask()},
			ExpectSlot: s.ID(),
		}, nil
	}

	parts := make([]string, 0, len(m.required))
	for _, s := range m.required {
		parts = append(parts, fmt.Sprintf("%s=%s", s.ID(), m.filled[s.ID()].Canonical))
	}
	summary := "All set"
	if len(parts) > 0 {
		summary = "Got it: " + strings.Join(parts, ", ")
	}
	return &dialog.PolicyResult{Responses: []string{summary}}, nil
}
