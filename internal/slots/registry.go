package slots

import (
	"log/slog"

	"bankbot/internal/metrics"
	"bankbot/internal/ner"
)

// Definition is the accumulated state of one schema block, handed to the
// variant constructor once the block is finalized.
type Definition struct {
	ID          string
	Type        string
	ExtraArgs   []string
	AskSentence string

	GenDict  map[string]string
	GenOrder []string

	NongenDict  map[string]string
	NongenOrder []string

	ValuesOrder []string
}

// Deps carries the collaborators slot variants may need at construction time.
type Deps struct {
	Tomita  *ner.Tomita
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

func (d Deps) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// Constructor builds a concrete slot variant from a finalized definition.
// prev holds the slots already constructed from earlier blocks, so composite
// variants can resolve child references by id.
type Constructor func(def Definition, prev []Slot, deps Deps) (Slot, error)

// constructors is the closed registry mapping schema type tokens to variant
// constructors. Replaces dynamic class lookup by name: an unknown token is a
// load-time configuration error, never a reflective fallback.
var constructors = map[string]Constructor{
	"DictionarySlot":    newDictionary,
	"CurrencySlot":      newCurrency,
	"ClassifierSlot":    newClassifier,
	"CompositionalSlot": newCompositional,
	"TomitaSlot":        newTomitaSlot,
	"GeoSlot":           newGeo,
}

func newDictionary(def Definition, _ []Slot, deps Deps) (Slot, error) {
	return newDictionarySlot(def, deps), nil
}

func newGeo(def Definition, _ []Slot, deps Deps) (Slot, error) {
	// Dictionary behavior; the distinct type tag lets downstream routing
	// treat geo payloads specially.
	return &GeoSlot{DictionarySlot: newDictionarySlot(def, deps)}, nil
}

// GeoSlot resolves like a dictionary slot and exists as its own variant only
// for type-based routing.
type GeoSlot struct {
	*DictionarySlot
}
