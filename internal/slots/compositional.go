package slots

import (
	"context"

	"bankbot/internal/textproc"
)

// CompositionalSlot delegates resolution to an ordered list of child slots:
// an ordered disjunction over heterogeneous sub-resolvers with fixed
// precedence. Children are references into already-constructed sibling
// slots, resolved by id at load time — the schema must define every child
// before the composite.
//
// The variant inherits the base dictionaries but never populates them;
// resolution consults children only.
type CompositionalSlot struct {
	*DictionarySlot

	children []Slot
}

func newCompositional(def Definition, prev []Slot, deps Deps) (Slot, error) {
	byID := make(map[string]Slot, len(prev))
	for _, s := range prev {
		byID[s.ID()] = s
	}

	children := make([]Slot, 0, len(def.ExtraArgs))
	for _, childID := range def.ExtraArgs {
		child, ok := byID[childID]
		if !ok {
			return nil, configErrorf("compositional slot %q references child %q, which is not defined earlier in the schema", def.ID, childID)
		}
		children = append(children, child)
	}

	return &CompositionalSlot{
		DictionarySlot: newDictionarySlot(def, deps),
		children:       children,
	}, nil
}

// Children returns the child slots in precedence order.
func (s *CompositionalSlot) Children() []Slot {
	return s.children
}

// ResolveCompositional returns the first non-nil child resolution in
// configured order. A child error propagates immediately; nil only when
// every child returns nil.
func (s *CompositionalSlot) ResolveCompositional(ctx context.Context, tokens []textproc.Token) (*Value, error) {
	for _, child := range s.children {
		v, err := child.ResolveCompositional(ctx, tokens)
		if err != nil {
			return nil, err
		}
		if v != nil {
			s.countResolution("match")
			return v, nil
		}
	}
	s.countResolution("no_match")
	return nil, nil
}

// ResolveSingle mirrors the compositional path over the children's
// single-slot variants.
func (s *CompositionalSlot) ResolveSingle(ctx context.Context, tokens []textproc.Token) (*Value, error) {
	for _, child := range s.children {
		v, err := child.ResolveSingle(ctx, tokens)
		if err != nil {
			return nil, err
		}
		if v != nil {
			s.countResolution("match")
			return v, nil
		}
	}
	s.countResolution("no_match")
	return nil, nil
}
