// Package dialog orchestrates a single user's conversation: it fans FAQ and
// chit-chat lookups out to a fixed worker pool, runs the NLU and policy
// models, and falls back from goal-oriented answers to chit-chat when the
// user's utterances stop carrying intent.
package dialog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"bankbot/internal/metrics"
	"bankbot/internal/repo"
	"bankbot/internal/slots"
	"bankbot/internal/textproc"
)

// DefaultPatience is how many contentless turns are tolerated before the
// dialog hands over to chit-chat.
const DefaultPatience = 3

// MessageType distinguishes plain text turns from geo payload turns.
type MessageType string

const (
	MessageText MessageType = "text"
	MessageGeo  MessageType = "geo"
)

// TurnInput is what the NLU model receives for one turn.
type TurnInput struct {
	Type   MessageType
	Tokens []textproc.Token
	Geo    *GeoPoint
}

// NLUResult is the NLU model's parse of one turn.
type NLUResult struct {
	Intent string
	Slots  map[string]*slots.Value
}

// Empty reports whether the parse carries no slots and no usable intent.
func (r *NLUResult) Empty() bool {
	return len(r.Slots) == 0 && (r.Intent == "" || r.Intent == "no_intent")
}

// NLUModel is the opaque NLU collaborator.
type NLUModel interface {
	Forward(ctx context.Context, input TurnInput) (*NLUResult, error)
	SetExpectation(slotID string)
}

// PolicyResult is the policy model's decision for one turn.
type PolicyResult struct {
	Responses  []string
	ExpectSlot string
}

// PolicyModel is the opaque dialog-policy collaborator.
type PolicyModel interface {
	Forward(ctx context.Context, nlu *NLUResult) (*PolicyResult, error)
}

// FAQService answers frequently asked questions.
type FAQService interface {
	Lookup(ctx context.Context, utterance string) (answer string, found bool, err error)
}

// ChitChatService produces free-form conversational replies.
type ChitChatService interface {
	Reply(ctx context.Context, utterance string) (string, error)
}

// MessageLog persists the dialog turn log; satisfied by *repo.Repository.
type MessageLog interface {
	InsertMessage(ctx context.Context, rec repo.MessageRecord) error
}

// Config holds per-dialog settings.
type Config struct {
	UserID   string
	UserName string
	Patience int
	Debug    bool
}

// Dialog holds the state of one user's conversation. It is not safe for
// concurrent turns of the same user; distinct dialogs are independent.
type Dialog struct {
	id       string
	pipeline textproc.Pipeline
	nlu      NLUModel
	policy   PolicyModel
	faq      FAQService
	chat     ChitChatService
	log      MessageLog
	metrics  *metrics.Metrics
	logger   *slog.Logger
	pool     *workerPool

	userID   string
	debug    bool
	patience int

	impatience int
}

// New starts a dialog for one user.
func New(pipe textproc.Pipeline, nlu NLUModel, policy PolicyModel, faqSvc FAQService, chat ChitChatService, messageLog MessageLog, m *metrics.Metrics, logger *slog.Logger, cfg Config) *Dialog {
	patience := cfg.Patience
	if patience <= 0 {
		patience = DefaultPatience
	}
	id := uuid.NewString()
	d := &Dialog{
		id:       id,
		pipeline: pipe,
		nlu:      nlu,
		policy:   policy,
		faq:      faqSvc,
		chat:     chat,
		log:      messageLog,
		metrics:  m,
		logger:   logger.With("component", "dialog", "dialog_id", id, "user", cfg.UserID),
		pool:     newWorkerPool(2),
		userID:   cfg.UserID,
		debug:    cfg.Debug,
		patience: patience,
	}
	d.logger.Info("started new dialog", "user_name", cfg.UserName)
	return d
}

// Close releases the lookup workers.
func (d *Dialog) Close() {
	d.pool.close()
}

type faqResult struct {
	answer string
	found  bool
	err    error
}

type chatResult struct {
	reply string
	err   error
}

// GenerateResponse runs one turn: parse the utterance, race the FAQ and
// chit-chat lookups on the worker pool, then pick the response branch.
func (d *Dialog) GenerateResponse(ctx context.Context, utterance string) ([]string, error) {
	d.logger.Info("turn received", "utterance", utterance)
	d.logMessage(ctx, "incoming", "text", utterance)

	input, err := d.parseUtterance(utterance)
	if err != nil {
		return nil, err
	}

	faqCh := make(chan faqResult, 1)
	chatCh := make(chan chatResult, 1)
	d.pool.submit(func() {
		answer, found, err := d.faq.Lookup(ctx, utterance)
		faqCh <- faqResult{answer: answer, found: found, err: err}
	})
	d.pool.submit(func() {
		reply, err := d.chat.Reply(ctx, utterance)
		chatCh <- chatResult{reply: reply, err: err}
	})

	nluResult, err := d.nlu.Forward(ctx, input)
	if err != nil {
		d.countError("nlu")
		return nil, fmt.Errorf("nlu: %w", err)
	}
	d.logger.Debug("nlu parse", "intent", nluResult.Intent, "slots", len(nluResult.Slots))

	// Both lookups are awaited unconditionally; there is no fallback-level
	// timeout, matching the turn contract.
	faqRes := <-faqCh
	chatRes := <-chatCh
	if faqRes.err != nil {
		d.countError("faq")
		d.logger.Error("faq lookup failed", "error", faqRes.err)
		faqRes.found = false
	}
	if chatRes.err != nil {
		d.countError("chitchat")
		d.logger.Error("chitchat failed", "error", chatRes.err)
		chatRes.reply = ""
	}

	if nluResult.Empty() && !faqRes.found {
		d.impatience++
	} else {
		d.impatience = 0
	}

	var (
		responses []string
		expect    string
		branch    string
	)
	switch {
	case faqRes.found:
		branch = "faq"
		responses = []string{"FAQ\n\n" + faqRes.answer}
	case d.impatience < d.patience:
		branch = "goal"
		policyRes, err := d.policy.Forward(ctx, nluResult)
		if err != nil {
			d.countError("policy")
			return nil, fmt.Errorf("policy: %w", err)
		}
		responses = make([]string, len(policyRes.Responses))
		for i, r := range policyRes.Responses {
			responses[i] = "GOAL-ORIENTED\n" + r
		}
		expect = policyRes.ExpectSlot
		d.nlu.SetExpectation(expect)
	default:
		branch = "chitchat"
		responses = []string{"CHIT-CHAT\n" + chatRes.reply}
	}
	d.countTurn(branch)

	if d.debug {
		responses = append([]string{d.debugTrace(nluResult, faqRes, chatRes)}, responses...)
	}

	for _, msg := range responses {
		d.logger.Info("turn response", "response", msg)
		d.logMessage(ctx, "outgoing", branch, msg)
	}
	if expect != "" {
		d.logger.Debug("expecting slot", "slot", expect)
	}

	return responses, nil
}

// parseUtterance classifies the turn and tokenizes or validates its payload.
func (d *Dialog) parseUtterance(utterance string) (TurnInput, error) {
	if strings.HasPrefix(utterance, geoPrefix) {
		payload := strings.TrimSpace(strings.TrimPrefix(utterance, geoPrefix))
		point, err := ParseGeoPayload(payload)
		if err != nil {
			d.countError("geo_payload")
			return TurnInput{}, fmt.Errorf("geo payload: %w", err)
		}
		return TurnInput{Type: MessageGeo, Geo: point}, nil
	}
	return TurnInput{Type: MessageText, Tokens: d.pipeline.Feed(utterance)}, nil
}

func (d *Dialog) debugTrace(nluResult *NLUResult, faqRes faqResult, chatRes chatResult) string {
	var sb strings.Builder
	sb.WriteString("DEBUG\n")
	sb.WriteString(fmt.Sprintf("nlu: intent=%q slots=%d\n", nluResult.Intent, len(nluResult.Slots)))
	for name, v := range nluResult.Slots {
		sb.WriteString(fmt.Sprintf("  %s = %q\n", name, v.Canonical))
	}
	sb.WriteString(fmt.Sprintf("faq: found=%v answer=%q\n", faqRes.found, faqRes.answer))
	sb.WriteString(fmt.Sprintf("chit-chat: %q", chatRes.reply))
	return sb.String()
}

func (d *Dialog) logMessage(ctx context.Context, direction, msgType, content string) {
	if d.log == nil {
		return
	}
	if err := d.log.InsertMessage(ctx, repo.MessageRecord{
		UserID:    d.userID,
		Direction: direction,
		Type:      msgType,
		Content:   &content,
	}); err != nil {
		d.logger.Warn("failed logging message", "error", err)
	}
}

func (d *Dialog) countTurn(branch string) {
	if d.metrics != nil {
		d.metrics.DialogTurns.WithLabelValues(branch).Inc()
	}
}

func (d *Dialog) countError(component string) {
	if d.metrics != nil {
		d.metrics.Errors.WithLabelValues(component).Inc()
	}
}
