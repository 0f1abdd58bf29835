// Package textclf provides a small trainable binary text classifier used by
// classifier-backed slots. It is an opaque estimator: a feature-hashing
// extractor over word n-grams (optionally char trigrams) feeding an averaged
// perceptron, persisted as a single artifact file per slot.
package textclf

import (
	"encoding/gob"
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand"
	"os"
	"strings"
)

const (
	// featureSpace is the hashed feature dimensionality.
	featureSpace = 1 << 18

	trainEpochs = 8
	shuffleSeed = 17
)

var (
	// ErrNotTrained indicates Predict was called on an empty model.
	ErrNotTrained = errors.New("textclf: model not trained")
)

// Model is a binary classifier over tokenized text.
type Model struct {
	Weights  map[uint32]float64
	Bias     float64
	UseChars bool
}

// NewModel returns an untrained model.
func NewModel() *Model {
	return &Model{Weights: make(map[uint32]float64)}
}

// Train fits the model on tokenized samples with binary labels.
// Samples are ordered token surface strings; labels[i] is the target for
// samples[i]. useChars additionally hashes char trigrams, which helps on
// short or misspelled utterances.
func (m *Model) Train(samples [][]string, labels []bool, useChars bool) error {
	if len(samples) != len(labels) {
		return fmt.Errorf("textclf: %d samples vs %d labels", len(samples), len(labels))
	}
	if len(samples) == 0 {
		return errors.New("textclf: empty training set")
	}

	m.UseChars = useChars
	weights := make(map[uint32]float64)
	sums := make(map[uint32]float64)
	var bias, biasSum float64

	features := make([][]uint32, len(samples))
	for i, s := range samples {
		features[i] = hashFeatures(s, useChars)
	}

	order := make([]int, len(samples))
	for i := range order {
		order[i] = i
	}
	rng := rand.New(rand.NewSource(shuffleSeed))

	steps := 1.0
	for epoch := 0; epoch < trainEpochs; epoch++ {
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		for _, idx := range order {
			target := -1.0
			if labels[idx] {
				target = 1.0
			}
			score := bias
			for _, f := range features[idx] {
				score += weights[f]
			}
			if target*score <= 0 {
				for _, f := range features[idx] {
					weights[f] += target
					sums[f] += target * steps
				}
				bias += target
				biasSum += target * steps
			}
			steps++
		}
	}

	// Averaged weights reduce the variance of the final perceptron state.
	m.Weights = make(map[uint32]float64, len(weights))
	for f, w := range weights {
		m.Weights[f] = w - sums[f]/steps
	}
	m.Bias = bias - biasSum/steps
	return nil
}

// Predict returns the boolean label for a single tokenized sample.
func (m *Model) Predict(tokens []string) (bool, error) {
	if len(m.Weights) == 0 {
		return false, ErrNotTrained
	}
	score := m.Bias
	for _, f := range hashFeatures(tokens, m.UseChars) {
		score += m.Weights[f]
	}
	return score > 0, nil
}

// PredictBatch applies the model across many samples, preserving input order.
func (m *Model) PredictBatch(batch [][]string) ([]bool, error) {
	if len(m.Weights) == 0 {
		return nil, ErrNotTrained
	}
	out := make([]bool, len(batch))
	for i, tokens := range batch {
		label, err := m.Predict(tokens)
		if err != nil {
			return nil, err
		}
		out[i] = label
	}
	return out, nil
}

// Save persists the model artifact to path.
func (m *Model) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("textclf: create artifact: %w", err)
	}
	defer f.Close()
	if err := gob.NewEncoder(f).Encode(m); err != nil {
		return fmt.Errorf("textclf: encode artifact: %w", err)
	}
	return nil
}

// LoadModel restores a persisted artifact. A missing path is reported
// distinctly so callers can tell configuration errors from corrupt files.
func LoadModel(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("textclf: artifact %q does not exist: %w", path, err)
		}
		return nil, fmt.Errorf("textclf: open artifact: %w", err)
	}
	defer f.Close()

	m := NewModel()
	if err := gob.NewDecoder(f).Decode(m); err != nil {
		return nil, fmt.Errorf("textclf: decode artifact %q: %w", path, err)
	}
	return m, nil
}

// hashFeatures maps a token sequence to hashed feature ids: word unigrams,
// word bigrams, and optionally char trigrams of the joined sentence.
func hashFeatures(tokens []string, useChars bool) []uint32 {
	feats := make([]uint32, 0, len(tokens)*2)
	for i, tok := range tokens {
		feats = append(feats, hashFeature("w:"+tok))
		if i+1 < len(tokens) {
			feats = append(feats, hashFeature("b:"+tok+"_"+tokens[i+1]))
		}
	}
	if useChars {
		joined := strings.Join(tokens, " ")
		runes := []rune(joined)
		for i := 0; i+3 <= len(runes); i++ {
			feats = append(feats, hashFeature("c:"+string(runes[i:i+3])))
		}
	}
	return feats
}

func hashFeature(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32() % featureSpace
}
