// Package slots implements the slot-filling core of the dialog agent: a
// closed set of slot variants behind a common resolution interface, plus the
// tabular schema loader that wires them together.
package slots

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"

	"bankbot/internal/metrics"
	"bankbot/internal/textproc"
)

// DefaultThreshold is the minimum fuzzy partial-ratio score (of 100) a
// vocabulary key must reach against the probe string to count as a match.
const DefaultThreshold = 84

// FilterFunc is a named predicate over (candidate value, context argument),
// queried by downstream policy logic to validate a resolved value.
type FilterFunc func(value, arg string) bool

// Value is a resolved slot value. Dictionary-like slots fill Canonical; the
// external-NER slot returns the recognizer's structured output in Payload.
type Value struct {
	Canonical string
	Payload   json.RawMessage
}

// Slot is a named entity resolver over a vocabulary of candidate values.
// Resolution returns (nil, nil) on no match; errors are reserved for
// contract violations and external-tool failures.
type Slot interface {
	ID() string
	Type() string

	// Ask returns the elicitation prompt shown when the slot is unresolved.
	Ask() string

	// ResolveCompositional resolves the slot's value embedded in a
	// multi-slot utterance.
	ResolveCompositional(ctx context.Context, tokens []textproc.Token) (*Value, error)

	// ResolveSingle resolves the value when the slot is the sole focus of
	// the utterance.
	ResolveSingle(ctx context.Context, tokens []textproc.Token) (*Value, error)

	// Filter looks up a named predicate from the slot's filter registry.
	Filter(name string) (FilterFunc, bool)

	// Filters exposes the full predicate registry.
	Filters() map[string]FilterFunc
}

// DictionarySlot is the base variant: it fuzzy-matches the probe string
// against its vocabulary and maps the best surface form to its canonical
// value. Slots are immutable after load; resolution is a pure read.
type DictionarySlot struct {
	id          string
	slotType    string
	askSentence string

	genDict  map[string]string
	genOrder []string

	nongenDict  map[string]string
	nongenOrder []string

	valuesOrder []string
	threshold   int

	filters map[string]FilterFunc

	logger  *slog.Logger
	metrics *metrics.Metrics
}

func newDictionarySlot(def Definition, deps Deps) *DictionarySlot {
	s := &DictionarySlot{
		id:          def.ID,
		slotType:    def.Type,
		askSentence: def.AskSentence,
		genDict:     def.GenDict,
		genOrder:    def.GenOrder,
		nongenDict:  def.NongenDict,
		nongenOrder: def.NongenOrder,
		valuesOrder: def.ValuesOrder,
		threshold:   DefaultThreshold,
		logger:      deps.logger().With("component", "slot", "slot", def.ID),
		metrics:     deps.Metrics,
	}
	s.filters = map[string]FilterFunc{
		"any":    func(string, string) bool { return true },
		"eq":     func(v, arg string) bool { return v == arg },
		"not_eq": func(v, arg string) bool { return v != arg },
	}
	return s
}

func (s *DictionarySlot) ID() string   { return s.id }
func (s *DictionarySlot) Type() string { return s.slotType }
func (s *DictionarySlot) Ask() string  { return s.askSentence }

func (s *DictionarySlot) Filter(name string) (FilterFunc, bool) {
	f, ok := s.filters[name]
	return f, ok
}

func (s *DictionarySlot) Filters() map[string]FilterFunc {
	return s.filters
}

// ValuesOrder returns the canonical values in presentation order.
func (s *DictionarySlot) ValuesOrder() []string {
	return s.valuesOrder
}

// ResolveCompositional implements Slot.
func (s *DictionarySlot) ResolveCompositional(ctx context.Context, tokens []textproc.Token) (*Value, error) {
	return s.resolve(tokens)
}

// ResolveSingle implements Slot. The base variant makes no distinction
// between the two call sites; subclasses may.
func (s *DictionarySlot) ResolveSingle(ctx context.Context, tokens []textproc.Token) (*Value, error) {
	return s.resolve(tokens)
}

// resolve scans the whole vocabulary (generative keys in schema insertion
// order, then nongenerative keys), scoring each surface form against the
// space-joined probe string with a fuzzy partial ratio. The first key with
// the maximum score wins; below-threshold maxima resolve to no match.
func (s *DictionarySlot) resolve(tokens []textproc.Token) (*Value, error) {
	start := time.Now()
	probe := textproc.JoinTokens(tokens)

	bestScore := 0
	bestKey := ""
	for _, key := range s.genOrder {
		if score := fuzzy.PartialRatio(key, probe); score > bestScore {
			bestScore = score
			bestKey = key
		}
	}
	for _, key := range s.nongenOrder {
		if score := fuzzy.PartialRatio(key, probe); score > bestScore {
			bestScore = score
			bestKey = key
		}
	}

	s.observeLatency(start)
	if bestScore < s.threshold {
		s.countResolution("no_match")
		return nil, nil
	}

	s.countResolution("match")
	return &Value{Canonical: s.normalValue(bestKey)}, nil
}

// normalValue maps a matched surface form to its canonical value, consulting
// the generative dictionary before the nongenerative one.
func (s *DictionarySlot) normalValue(surface string) string {
	if v, ok := s.genDict[surface]; ok {
		return v
	}
	return s.nongenDict[surface]
}

func (s *DictionarySlot) countResolution(outcome string) {
	if s.metrics != nil {
		s.metrics.SlotResolutions.WithLabelValues(s.id, outcome).Inc()
	}
}

func (s *DictionarySlot) observeLatency(start time.Time) {
	if s.metrics != nil {
		s.metrics.ResolveLatency.WithLabelValues(s.id).Observe(time.Since(start).Seconds())
	}
}
