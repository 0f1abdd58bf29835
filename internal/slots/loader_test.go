package slots

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bankbot/internal/textclf"
	"bankbot/internal/textproc"
)

const testSchema = "currency.CurrencySlot\tWhich currency do you need?\n" +
	"usd\tdollars, bucks\tgreenbacks\n" +
	"eur\teuros\n" +
	"rub\trubles\n" +
	"\n" +
	"action.DictionarySlot\tWhat would you like to do?\n" +
	"exchange\tconvert\n" +
	"open account\topen an account\n" +
	"\n" +
	"repeat.ClassifierSlot\tShould I repeat that?\n" +
	"repeat\n" +
	"\n" +
	"request.CompositionalSlot.currency.action\tWhat exactly do you need?\n"

func loadTestSchema(t *testing.T) []Slot {
	t.Helper()
	loaded, err := Load(strings.NewReader(testSchema), textproc.NewDefaultPipeline(), Deps{})
	require.NoError(t, err)
	return loaded
}

func TestLoadSchema(t *testing.T) {
	loaded := loadTestSchema(t)
	require.Len(t, loaded, 4)

	assert.Equal(t, "currency", loaded[0].ID())
	assert.Equal(t, "CurrencySlot", loaded[0].Type())
	assert.Equal(t, "Which currency do you need?", loaded[0].Ask())

	assert.Equal(t, "action", loaded[1].ID())
	assert.Equal(t, "repeat", loaded[2].ID())
	assert.Equal(t, "request", loaded[3].ID())

	composite, ok := loaded[3].(*CompositionalSlot)
	require.True(t, ok)
	require.Len(t, composite.Children(), 2)
	assert.Equal(t, "currency", composite.Children()[0].ID())
	assert.Equal(t, "action", composite.Children()[1].ID())
}

func TestLoadSchemaValuesOrder(t *testing.T) {
	loaded := loadTestSchema(t)

	currency, ok := loaded[0].(*CurrencySlot)
	require.True(t, ok)
	assert.Equal(t, []string{"usd", "eur", "rub"}, currency.ValuesOrder())
}

func TestLoadedSlotsResolve(t *testing.T) {
	loaded := loadTestSchema(t)
	ctx := context.Background()

	v, err := loaded[0].ResolveSingle(ctx, testPipe.Feed("I'd like some dollars"))
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "usd", v.Canonical)

	// Nongenerative surface forms still map to the canonical value.
	v, err = loaded[0].ResolveSingle(ctx, testPipe.Feed("greenbacks please"))
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "usd", v.Canonical)

	// The composite delegates to its children in precedence order.
	v, err = loaded[3].ResolveCompositional(ctx, testPipe.Feed("convert to euros"))
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "eur", v.Canonical)
}

func TestLoadTrailingBlockWithoutBlankLine(t *testing.T) {
	schema := "currency.CurrencySlot\tWhich currency?\n" +
		"usd\tdollars\n"
	loaded, err := Load(strings.NewReader(schema), textproc.NewDefaultPipeline(), Deps{})
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "currency", loaded[0].ID())
}

func TestLoadRejectsDuplicateSlotID(t *testing.T) {
	schema := "a.DictionarySlot\tPrompt?\n" +
		"x\n" +
		"\n" +
		"a.DictionarySlot\tPrompt again?\n" +
		"y\n"
	_, err := Load(strings.NewReader(schema), textproc.NewDefaultPipeline(), Deps{})
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, err.Error(), "duplicate slot id")
}

func TestLoadRejectsUnknownSlotType(t *testing.T) {
	schema := "a.MagicSlot\tPrompt?\n" +
		"x\n"
	_, err := Load(strings.NewReader(schema), textproc.NewDefaultPipeline(), Deps{})
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, err.Error(), "unknown slot type")
}

func TestLoadRejectsMissingPrompt(t *testing.T) {
	schema := "a.DictionarySlot\n" +
		"x\n"
	_, err := Load(strings.NewReader(schema), textproc.NewDefaultPipeline(), Deps{})
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, err.Error(), "prompt")
}

func TestLoadRejectsBareHeaderToken(t *testing.T) {
	schema := "justanid\tPrompt?\n"
	_, err := Load(strings.NewReader(schema), textproc.NewDefaultPipeline(), Deps{})
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}

func TestLoadRejectsSurfaceFormInBothDictionaries(t *testing.T) {
	schema := "a.DictionarySlot\tPrompt?\n" +
		"x\tsame\tsame\n"
	_, err := Load(strings.NewReader(schema), textproc.NewDefaultPipeline(), Deps{})
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}

func TestLoadRejectsCrossRowSurfaceClash(t *testing.T) {
	schema := "a.DictionarySlot\tPrompt?\n" +
		"x\tshared\n" +
		"y\t\tshared\n"
	_, err := Load(strings.NewReader(schema), textproc.NewDefaultPipeline(), Deps{})
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, err.Error(), "shared")
}

func TestLoadRejectsWideValueRow(t *testing.T) {
	schema := "a.DictionarySlot\tPrompt?\n" +
		"x\ta\tb\tc\n"
	_, err := Load(strings.NewReader(schema), textproc.NewDefaultPipeline(), Deps{})
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}

func TestLoadRejectsForwardChildReference(t *testing.T) {
	schema := "combo.CompositionalSlot.later\tPrompt?\n" +
		"\n" +
		"later.DictionarySlot\tPrompt?\n" +
		"x\n"
	_, err := Load(strings.NewReader(schema), textproc.NewDefaultPipeline(), Deps{})
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, err.Error(), "later")
}

func TestLoadRejectsRecognizerSlotWithoutRecognizer(t *testing.T) {
	schema := "address.TomitaSlot\tWhich address?\n"
	_, err := Load(strings.NewReader(schema), textproc.NewDefaultPipeline(), Deps{})
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}

func TestLoadNormalizesSynonymsThroughPipeline(t *testing.T) {
	schema := "action.DictionarySlot\tWhat to do?\n" +
		"open account\t“Open an Account!”\n"
	loaded, err := Load(strings.NewReader(schema), textproc.NewDefaultPipeline(), Deps{})
	require.NoError(t, err)
	require.Len(t, loaded, 1)

	v, err := loaded[0].ResolveSingle(context.Background(), testPipe.Feed("OPEN AN ACCOUNT"))
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "open account", v.Canonical)
}

func writeSchemaFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "slots_definitions.tsv")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.tsv"), textproc.NewDefaultPipeline(), Deps{})
	require.Error(t, err)
}

func TestLoadWithTrainedModelsMissingArtifact(t *testing.T) {
	schemaPath := writeSchemaFile(t, "repeat.ClassifierSlot\tAgain?\nrepeat\n")

	_, err := LoadWithTrainedModels(schemaPath, textproc.NewDefaultPipeline(), t.TempDir(), Deps{})
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, err.Error(), "repeat")
}

func TestLoadWithTrainedModelsAttaches(t *testing.T) {
	schemaPath := writeSchemaFile(t, "repeat.ClassifierSlot\tAgain?\nrepeat\n")

	modelsDir := t.TempDir()
	model := textclf.NewModel()
	require.NoError(t, model.Train(
		[][]string{{"again", "please"}, {"say", "that", "again"}, {"open", "account"}, {"show", "balance"}},
		[]bool{true, true, false, false},
		false,
	))
	require.NoError(t, model.Save(filepath.Join(modelsDir, "repeat.model")))

	loaded, err := LoadWithTrainedModels(schemaPath, textproc.NewDefaultPipeline(), modelsDir, Deps{})
	require.NoError(t, err)
	require.Len(t, loaded, 1)

	v, err := loaded[0].ResolveSingle(context.Background(), testPipe.Feed("again please"))
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "repeat", v.Canonical)
}
