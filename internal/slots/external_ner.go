package slots

import (
	"context"
	"encoding/json"

	"bankbot/internal/textproc"
)

// ExternalNERSlot delegates resolution to the external Tomita recognizer and
// returns its structured output. Each resolution is a blocking
// out-of-process call; callers needing throughput parallelize above us.
type ExternalNERSlot struct {
	*DictionarySlot

	tomita tomitaClient
}

// tomitaClient is the narrow text-in/JSON-out contract consumed here.
type tomitaClient interface {
	GetJSON(ctx context.Context, text string) (json.RawMessage, error)
}

func newTomitaSlot(def Definition, _ []Slot, deps Deps) (Slot, error) {
	if deps.Tomita == nil {
		return nil, configErrorf("slot %q requires the external recognizer, which is not configured", def.ID)
	}
	return &ExternalNERSlot{
		DictionarySlot: newDictionarySlot(def, deps),
		tomita:         deps.Tomita,
	}, nil
}

// ResolveCompositional joins the token surfaces into a probe string and asks
// the recognizer. A recognizer failure surfaces as an error, distinct from
// the recognizer finding nothing (nil, nil).
func (s *ExternalNERSlot) ResolveCompositional(ctx context.Context, tokens []textproc.Token) (*Value, error) {
	payload, err := s.tomita.GetJSON(ctx, textproc.JoinTokens(tokens))
	if err != nil {
		s.countResolution("error")
		return nil, err
	}
	if len(payload) == 0 {
		s.countResolution("no_match")
		return nil, nil
	}
	s.countResolution("match")
	return &Value{Payload: payload}, nil
}

// ResolveSingle behaves identically to the compositional path.
func (s *ExternalNERSlot) ResolveSingle(ctx context.Context, tokens []textproc.Token) (*Value, error) {
	return s.ResolveCompositional(ctx, tokens)
}
