// Command slottrain imports labeled utterances and trains classifier slot
// models. Samples live in Postgres alongside the dialog logs; trained
// artifacts are written as <slot_id>.model files for the runtime to load.
//
// Usage:
//
//	slottrain -slot has_credit -import samples.tsv
//	slottrain -slot has_credit -out models/
//
// The import file is tab-separated: label (true/false), then the utterance.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"bankbot/internal/repo"
	"bankbot/internal/textclf"
	"bankbot/internal/textproc"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		slotID     = flag.String("slot", "", "classifier slot id")
		importPath = flag.String("import", "", "TSV file of labeled samples to import")
		outDir     = flag.String("out", "models", "directory for trained model artifacts")
		useChars   = flag.Bool("chars", false, "include character trigram features")
	)
	flag.Parse()

	if *slotID == "" {
		return fmt.Errorf("-slot is required")
	}

	_ = godotenv.Load()
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil)).With("component", "slottrain", "slot", *slotID)

	databaseURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if databaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	ctx := context.Background()
	repository, err := repo.New(ctx, databaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer repository.Close()

	if *importPath != "" {
		n, err := importSamples(ctx, repository, *slotID, *importPath)
		if err != nil {
			return fmt.Errorf("import samples: %w", err)
		}
		logger.Info("samples imported", "count", n, "file", *importPath)
	}

	samples, err := repository.ListTrainingSamples(ctx, *slotID)
	if err != nil {
		return fmt.Errorf("list samples: %w", err)
	}
	if len(samples) == 0 {
		return fmt.Errorf("no training samples for slot %q", *slotID)
	}

	pipe := textproc.NewDefaultPipeline()
	tokenized := make([][]string, 0, len(samples))
	labels := make([]bool, 0, len(samples))
	for _, s := range samples {
		tokenized = append(tokenized, textproc.Texts(pipe.Feed(s.Text)))
		labels = append(labels, s.Label)
	}

	model := textclf.NewModel()
	if err := model.Train(tokenized, labels, *useChars); err != nil {
		return fmt.Errorf("train: %w", err)
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return fmt.Errorf("create models dir: %w", err)
	}
	path := filepath.Join(*outDir, *slotID+".model")
	if err := model.Save(path); err != nil {
		return fmt.Errorf("save model: %w", err)
	}
	logger.Info("model trained", "samples", len(samples), "artifact", path)
	return nil
}

func importSamples(ctx context.Context, r *repo.Repository, slotID, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	count := 0
	scanner := bufio.NewScanner(f)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		label, text, ok := strings.Cut(line, "\t")
		if !ok {
			return count, fmt.Errorf("line %d: expected label<TAB>text", lineNo)
		}
		b, err := strconv.ParseBool(strings.TrimSpace(label))
		if err != nil {
			return count, fmt.Errorf("line %d: bad label %q", lineNo, label)
		}
		sample := repo.TrainingSample{SlotID: slotID, Text: strings.TrimSpace(text), Label: b}
		if err := r.InsertTrainingSample(ctx, sample); err != nil {
			return count, err
		}
		count++
	}
	return count, scanner.Err()
}
