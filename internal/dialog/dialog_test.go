package dialog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bankbot/internal/slots"
	"bankbot/internal/textproc"
)

type fakeNLU struct {
	result      *NLUResult
	err         error
	lastInput   TurnInput
	expectation string
}

func (f *fakeNLU) Forward(_ context.Context, input TurnInput) (*NLUResult, error) {
	f.lastInput = input
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &NLUResult{}, nil
}

func (f *fakeNLU) SetExpectation(slotID string) { f.expectation = slotID }

type fakePolicy struct {
	result *PolicyResult
	err    error
	calls  int
}

func (f *fakePolicy) Forward(_ context.Context, _ *NLUResult) (*PolicyResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &PolicyResult{Responses: []string{"Which currency do you need?"}, ExpectSlot: "currency"}, nil
}

type fakeFAQ struct {
	answer string
	found  bool
	err    error
}

func (f *fakeFAQ) Lookup(context.Context, string) (string, bool, error) {
	return f.answer, f.found, f.err
}

type fakeChat struct {
	reply string
	err   error
}

func (f *fakeChat) Reply(context.Context, string) (string, error) {
	return f.reply, f.err
}

func newTestDialog(nlu *fakeNLU, policy *fakePolicy, faq *fakeFAQ, chat *fakeChat, cfg Config) *Dialog {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(textproc.NewDefaultPipeline(), nlu, policy, faq, chat, nil, nil, logger, cfg)
}

func TestGenerateResponseGoalOriented(t *testing.T) {
	nlu := &fakeNLU{result: &NLUResult{
		Intent: "slot_filling",
		Slots:  map[string]*slots.Value{"action": {Canonical: "exchange"}},
	}}
	policy := &fakePolicy{}
	d := newTestDialog(nlu, policy, &fakeFAQ{}, &fakeChat{reply: "hi"}, Config{})
	defer d.Close()

	responses, err := d.GenerateResponse(context.Background(), "I want to exchange money")
	require.NoError(t, err)
	require.Len(t, responses, 1)
	assert.True(t, strings.HasPrefix(responses[0], "GOAL-ORIENTED\n"))
	assert.Contains(t, responses[0], "Which currency do you need?")
	assert.Equal(t, "currency", nlu.expectation)
	assert.Equal(t, 1, policy.calls)
}

func TestGenerateResponseFAQWins(t *testing.T) {
	nlu := &fakeNLU{result: &NLUResult{
		Intent: "slot_filling",
		Slots:  map[string]*slots.Value{"action": {Canonical: "exchange"}},
	}}
	policy := &fakePolicy{}
	faq := &fakeFAQ{answer: "We are open 9 to 6.", found: true}
	d := newTestDialog(nlu, policy, faq, &fakeChat{reply: "hi"}, Config{})
	defer d.Close()

	responses, err := d.GenerateResponse(context.Background(), "what are your opening hours")
	require.NoError(t, err)
	require.Len(t, responses, 1)
	assert.Equal(t, "FAQ\n\nWe are open 9 to 6.", responses[0])
	assert.Zero(t, policy.calls)
}

func TestGenerateResponsePatienceRunsOut(t *testing.T) {
	nlu := &fakeNLU{result: &NLUResult{}}
	policy := &fakePolicy{}
	chat := &fakeChat{reply: "Nice weather today."}
	d := newTestDialog(nlu, policy, &fakeFAQ{}, chat, Config{Patience: 2})
	defer d.Close()

	// First contentless turn stays goal-oriented, second hands over.
	responses, err := d.GenerateResponse(context.Background(), "blah")
	require.NoError(t, err)
	require.Len(t, responses, 1)
	assert.True(t, strings.HasPrefix(responses[0], "GOAL-ORIENTED\n"))

	responses, err = d.GenerateResponse(context.Background(), "blah blah")
	require.NoError(t, err)
	require.Len(t, responses, 1)
	assert.Equal(t, "CHIT-CHAT\nNice weather today.", responses[0])
}

func TestGenerateResponseContentResetsImpatience(t *testing.T) {
	nlu := &fakeNLU{result: &NLUResult{}}
	policy := &fakePolicy{}
	d := newTestDialog(nlu, policy, &fakeFAQ{}, &fakeChat{reply: "hm"}, Config{Patience: 2})
	defer d.Close()

	_, err := d.GenerateResponse(context.Background(), "blah")
	require.NoError(t, err)

	// A turn that parses into slots resets the counter.
	nlu.result = &NLUResult{
		Intent: "slot_filling",
		Slots:  map[string]*slots.Value{"currency": {Canonical: "usd"}},
	}
	_, err = d.GenerateResponse(context.Background(), "dollars")
	require.NoError(t, err)

	nlu.result = &NLUResult{}
	responses, err := d.GenerateResponse(context.Background(), "blah")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(responses[0], "GOAL-ORIENTED\n"))
}

func TestGenerateResponseNLUErrorAborts(t *testing.T) {
	nluErr := errors.New("model exploded")
	d := newTestDialog(&fakeNLU{err: nluErr}, &fakePolicy{}, &fakeFAQ{}, &fakeChat{}, Config{})
	defer d.Close()

	_, err := d.GenerateResponse(context.Background(), "hello")
	assert.ErrorIs(t, err, nluErr)
}

func TestGenerateResponseFAQFailureFallsThrough(t *testing.T) {
	nlu := &fakeNLU{result: &NLUResult{Intent: "slot_filling", Slots: map[string]*slots.Value{"a": {Canonical: "x"}}}}
	faq := &fakeFAQ{err: errors.New("db locked")}
	d := newTestDialog(nlu, &fakePolicy{}, faq, &fakeChat{reply: "hi"}, Config{})
	defer d.Close()

	responses, err := d.GenerateResponse(context.Background(), "exchange")
	require.NoError(t, err)
	require.Len(t, responses, 1)
	assert.True(t, strings.HasPrefix(responses[0], "GOAL-ORIENTED\n"))
}

func TestGenerateResponseGeoTurn(t *testing.T) {
	nlu := &fakeNLU{result: &NLUResult{Intent: "geo", Slots: map[string]*slots.Value{"geo": {Canonical: "55.75,37.62"}}}}
	d := newTestDialog(nlu, &fakePolicy{}, &fakeFAQ{}, &fakeChat{}, Config{})
	defer d.Close()

	_, err := d.GenerateResponse(context.Background(), `__geo__ {"lat": 55.75, "lon": 37.62}`)
	require.NoError(t, err)
	assert.Equal(t, MessageGeo, nlu.lastInput.Type)
	require.NotNil(t, nlu.lastInput.Geo)
	assert.Equal(t, 55.75, nlu.lastInput.Geo.Lat)
}

func TestGenerateResponseBadGeoPayload(t *testing.T) {
	d := newTestDialog(&fakeNLU{}, &fakePolicy{}, &fakeFAQ{}, &fakeChat{}, Config{})
	defer d.Close()

	_, err := d.GenerateResponse(context.Background(), `__geo__ 1+2`)
	assert.Error(t, err)
}

func TestGenerateResponseDebugTrace(t *testing.T) {
	nlu := &fakeNLU{result: &NLUResult{Intent: "slot_filling", Slots: map[string]*slots.Value{"a": {Canonical: "x"}}}}
	d := newTestDialog(nlu, &fakePolicy{}, &fakeFAQ{}, &fakeChat{reply: "hi"}, Config{Debug: true})
	defer d.Close()

	responses, err := d.GenerateResponse(context.Background(), "exchange")
	require.NoError(t, err)
	require.Len(t, responses, 2)
	assert.True(t, strings.HasPrefix(responses[0], "DEBUG\n"))
}

func TestNLUResultEmpty(t *testing.T) {
	assert.True(t, (&NLUResult{}).Empty())
	assert.True(t, (&NLUResult{Intent: "no_intent"}).Empty())
	assert.False(t, (&NLUResult{Intent: "geo"}).Empty())
	assert.False(t, (&NLUResult{Slots: map[string]*slots.Value{"a": {}}}).Empty())
}
