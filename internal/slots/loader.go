package slots

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"bankbot/internal/textproc"
)

// DefaultDefinitionsFile is the schema filename used when no path is given.
const DefaultDefinitionsFile = "slots_definitions.tsv"

// Load parses a tab-separated schema definition into a fully-wired, ordered
// slot collection. The format groups rows into per-slot blocks separated by
// blank rows:
//
//	<id>.<Type>[.<extra>...]	<elicitation prompt>
//	<canonical>[	<generative synonyms>[	<nongenerative synonyms>]]
//	...
//	(blank row)
//
// Synonym cells are comma-separated; every synonym and canonical name is fed
// through the tokenizer so load-time keys match inference-time token text.
// Any validation failure aborts the whole load.
func Load(r io.Reader, pipe textproc.Pipeline, deps Deps) ([]Slot, error) {
	pipeText := func(raw string) string {
		return textproc.JoinTokens(pipe.Feed(raw))
	}

	var (
		result  []Slot
		current *Definition
		seenIDs = make(map[string]bool)
		lineNo  int
	)

	finalize := func() error {
		construct, ok := constructors[current.Type]
		if !ok {
			return configErrorf("slot %q: unknown slot type %q", current.ID, current.Type)
		}
		slot, err := construct(*current, result, deps)
		if err != nil {
			return err
		}
		result = append(result, slot)
		current = nil
		return nil
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()

		if strings.TrimSpace(line) == "" {
			if current != nil {
				if err := finalize(); err != nil {
					return nil, err
				}
			}
			continue
		}

		record, err := parseRow(line)
		if err != nil {
			return nil, &ConfigurationError{Msg: fmt.Sprintf("line %d: malformed row", lineNo), Err: err}
		}

		if current == nil {
			def, err := parseHeader(record, seenIDs)
			if err != nil {
				return nil, err
			}
			current = def
			continue
		}

		if err := addValueRow(current, record, pipeText, lineNo); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}

	// A trailing block without a final blank row is still finalized.
	if current != nil {
		if err := finalize(); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// LoadFile loads a schema from a file path, defaulting to
// slots_definitions.tsv when path is empty.
func LoadFile(path string, pipe textproc.Pipeline, deps Deps) ([]Slot, error) {
	if path == "" {
		path = DefaultDefinitionsFile
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open schema %q: %w", path, err)
	}
	defer f.Close()
	return Load(f, pipe, deps)
}

// LoadWithTrainedModels performs the same parse, then attaches a persisted
// model artifact to every classifier slot, located by convention at
// <modelsDir>/<slot_id>.model. A missing artifact fails the load; it is
// never deferred to first use.
func LoadWithTrainedModels(path string, pipe textproc.Pipeline, modelsDir string, deps Deps) ([]Slot, error) {
	loaded, err := LoadFile(path, pipe, deps)
	if err != nil {
		return nil, err
	}
	for _, s := range loaded {
		cs, ok := s.(*ClassifierSlot)
		if !ok {
			continue
		}
		artifact := filepath.Join(modelsDir, cs.ID()+".model")
		if err := cs.LoadModel(artifact); err != nil {
			return nil, &ConfigurationError{Msg: fmt.Sprintf("classifier slot %q", cs.ID()), Err: err}
		}
	}
	return loaded, nil
}

// parseRow parses a single TSV line, honoring double-quote quoting.
func parseRow(line string) ([]string, error) {
	reader := csv.NewReader(strings.NewReader(line))
	reader.Comma = '\t'
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	return reader.Read()
}

// parseHeader starts a new block from a header row whose first cell is the
// dot-joined "<id>.<Type>[.<extra>...]" token and whose second cell is the
// elicitation prompt.
func parseHeader(record []string, seenIDs map[string]bool) (*Definition, error) {
	token := strings.Fields(strings.TrimSpace(record[0]))
	if len(token) == 0 {
		return nil, configErrorf("empty slot header")
	}
	parts := strings.Split(token[0], ".")
	if len(parts) < 2 {
		return nil, configErrorf("slot header %q: want <id>.<Type>", token[0])
	}
	id, slotType := parts[0], parts[1]
	if seenIDs[id] {
		return nil, configErrorf("duplicate slot id %q", id)
	}
	if _, ok := constructors[slotType]; !ok {
		return nil, configErrorf("slot %q: unknown slot type %q", id, slotType)
	}
	if len(record) < 2 || strings.TrimSpace(record[1]) == "" {
		return nil, configErrorf("slot %q: header missing elicitation prompt", id)
	}
	seenIDs[id] = true

	return &Definition{
		ID:          id,
		Type:        slotType,
		ExtraArgs:   parts[2:],
		AskSentence: strings.TrimSpace(record[1]),
		GenDict:     make(map[string]string),
		NongenDict:  make(map[string]string),
	}, nil
}

// addValueRow folds one value row into the current block: canonical name,
// optional generative synonyms, optional nongenerative synonyms.
func addValueRow(def *Definition, record []string, pipeText func(string) string, lineNo int) error {
	var canonicalRaw, genCell, nongenCell string
	switch len(record) {
	case 1:
		canonicalRaw = record[0]
	case 2:
		canonicalRaw, genCell = record[0], record[1]
	case 3:
		canonicalRaw, genCell, nongenCell = record[0], record[1], record[2]
	default:
		return configErrorf("line %d: slot %q: value row has %d columns, want 1-3", lineNo, def.ID, len(record))
	}

	canonical := pipeText(canonicalRaw)
	def.ValuesOrder = append(def.ValuesOrder, canonical)

	genSyns := splitSynonyms(genCell)
	nongenSyns := splitSynonyms(nongenCell)

	if overlap := intersect(genSyns, nongenSyns); len(overlap) > 0 {
		return configErrorf("line %d: slot %q: synonyms %v assigned both generatively and nongeneratively", lineNo, def.ID, overlap)
	}

	insertGen := func(surface string) error {
		if _, clash := def.NongenDict[surface]; clash {
			return configErrorf("line %d: slot %q: surface form %q already assigned nongeneratively", lineNo, def.ID, surface)
		}
		if _, exists := def.GenDict[surface]; !exists {
			def.GenOrder = append(def.GenOrder, surface)
		}
		def.GenDict[surface] = canonical
		return nil
	}

	if err := insertGen(canonical); err != nil {
		return err
	}
	for _, syn := range genSyns {
		if err := insertGen(pipeText(syn)); err != nil {
			return err
		}
	}
	for _, syn := range nongenSyns {
		surface := pipeText(syn)
		if _, clash := def.GenDict[surface]; clash {
			return configErrorf("line %d: slot %q: surface form %q already assigned generatively", lineNo, def.ID, surface)
		}
		if _, exists := def.NongenDict[surface]; !exists {
			def.NongenOrder = append(def.NongenOrder, surface)
		}
		def.NongenDict[surface] = canonical
	}

	return nil
}

// splitSynonyms normalizes a comma-separated synonym cell: quoted commas are
// collapsed first, curly and straight quotes stripped, empties dropped.
func splitSynonyms(cell string) []string {
	cell = strings.ReplaceAll(cell, ", ", ",")
	for _, q := range []string{"“", "”", `"`} {
		cell = strings.ReplaceAll(cell, q, "")
	}
	if strings.TrimSpace(cell) == "" {
		return nil
	}
	parts := strings.Split(cell, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func intersect(a, b []string) []string {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}
	set := make(map[string]bool, len(a))
	for _, s := range a {
		set[s] = true
	}
	var common []string
	for _, s := range b {
		if set[s] {
			common = append(common, s)
		}
	}
	return common
}
