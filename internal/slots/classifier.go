package slots

import (
	"context"
	"fmt"

	"bankbot/internal/textclf"
	"bankbot/internal/textproc"
)

// ClassifierSlot resolves a binary slot with a trainable statistical model
// instead of dictionary matching. Decisions like "is this a repeat request?"
// are not well captured by surface similarity to a canonical label set.
//
// The model is attached exactly once, during the load phase, strictly before
// any resolve call; after that the slot is a pure concurrent-safe reader.
type ClassifierSlot struct {
	*DictionarySlot

	trueValue string
	model     *textclf.Model
}

func newClassifier(def Definition, _ []Slot, deps Deps) (Slot, error) {
	if len(def.ValuesOrder) == 0 {
		return nil, configErrorf("classifier slot %q declares no values; element 0 is the true label", def.ID)
	}
	s := &ClassifierSlot{
		DictionarySlot: newDictionarySlot(def, deps),
		trueValue:      def.ValuesOrder[0],
	}
	s.filters["true"] = func(v, _ string) bool { return v == s.trueValue }
	s.filters["false"] = func(v, _ string) bool { return v != s.trueValue }
	return s, nil
}

// TrueValue returns the distinguished canonical value for a positive label.
func (s *ClassifierSlot) TrueValue() string {
	return s.trueValue
}

// Train fits a fresh model on tokenized samples with binary labels and
// attaches it to the slot.
func (s *ClassifierSlot) Train(samples [][]textproc.Token, labels []bool, useChars bool) error {
	model := textclf.NewModel()
	raw := make([][]string, len(samples))
	for i, sample := range samples {
		raw[i] = textproc.Texts(sample)
	}
	if err := model.Train(raw, labels, useChars); err != nil {
		return fmt.Errorf("train slot %q: %w", s.id, err)
	}
	s.model = model
	return nil
}

// LoadModel attaches a persisted artifact. A missing path is a distinct
// error so schema loading can fail fast instead of deferring to first use.
func (s *ClassifierSlot) LoadModel(path string) error {
	model, err := textclf.LoadModel(path)
	if err != nil {
		return err
	}
	s.model = model
	return nil
}

// ResolveCompositional predicts the binary label for the utterance and maps
// a positive label to the distinguished true value.
func (s *ClassifierSlot) ResolveCompositional(ctx context.Context, tokens []textproc.Token) (*Value, error) {
	if s.model == nil {
		return nil, ErrModelNotReady
	}
	label, err := s.model.Predict(textproc.Texts(tokens))
	if err != nil {
		return nil, fmt.Errorf("predict slot %q: %w", s.id, err)
	}
	if !label {
		s.countResolution("no_match")
		return nil, nil
	}
	s.countResolution("match")
	return &Value{Canonical: s.trueValue}, nil
}

// ResolveSingle behaves identically to the compositional path.
func (s *ClassifierSlot) ResolveSingle(ctx context.Context, tokens []textproc.Token) (*Value, error) {
	return s.ResolveCompositional(ctx, tokens)
}

// ResolveBatch applies the attached model across many utterances without
// per-item overhead, returning labels in input order.
func (s *ClassifierSlot) ResolveBatch(ctx context.Context, batch [][]textproc.Token) ([]bool, error) {
	if s.model == nil {
		return nil, ErrModelNotReady
	}
	raw := make([][]string, len(batch))
	for i, tokens := range batch {
		raw[i] = textproc.Texts(tokens)
	}
	labels, err := s.model.PredictBatch(raw)
	if err != nil {
		return nil, fmt.Errorf("predict batch slot %q: %w", s.id, err)
	}
	return labels, nil
}
