// Package contextual builds the per-turn dynamic context block: a short
// model-written summary of the user's recent history and stored facts,
// injected as an extra instruction layer.
package contextual

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/sync/errgroup"

	"github.com/claralabs/clara/internal/identity"
	"github.com/claralabs/clara/internal/llm"
	"github.com/claralabs/clara/internal/log"
	"github.com/claralabs/clara/internal/memory"
	"github.com/claralabs/clara/internal/message"
)

const summarizeInstruction = `Your task is to produce a SHORT plain-text context block that helps the
model understand the current situation. Invent nothing.

Instructions:
- Summarize ONLY what is relevant to the current question.
- Include brief references to stored facts when they add context.
- No irrelevant data, no mixed topics, no recommendations.
- Do not answer the user.
- At most 3-5 sentences.`

// HistoryStore provides recent conversation messages for a user.
type HistoryStore interface {
	Recent(ctx context.Context, userID uuid.UUID, limit int) ([]message.Message, error)
}

// FactStore provides all stored facts for a user.
type FactStore interface {
	All(ctx context.Context, userID uuid.UUID) ([]memory.Fact, error)
}

// Builder assembles the dynamic context layer for one turn.
type Builder struct {
	history HistoryStore
	facts   FactStore
	svc     llm.CompletionService
	model   string
	limit   int
	logger  log.Logger
}

// New creates a Builder. limit bounds how much history feeds the summary.
func New(history HistoryStore, facts FactStore, svc llm.CompletionService, model string, limit int, logger log.Logger) *Builder {
	return &Builder{history: history, facts: facts, svc: svc, model: model, limit: limit, logger: logger}
}

// Build returns the dynamic context block for the identity, or "" for
// anonymous callers. The turn must survive a context failure, so any
// error here degrades to an empty block.
func (b *Builder) Build(ctx context.Context, id *identity.Identity, query string) string {
	if id == nil {
		return ""
	}

	var (
		msgs  []message.Message
		facts []memory.Fact
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		msgs, err = b.history.Recent(gctx, id.ID, b.limit)
		return err
	})
	g.Go(func() error {
		var err error
		facts, err = b.facts.All(gctx, id.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		b.logger.Warn("dynamic context fetch failed", "user_id", id.ID, "error", err)
		return ""
	}

	resp, err := b.svc.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: b.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: summarizeInstruction},
			{Role: openai.ChatMessageRoleAssistant, Content: sourceText(facts, msgs)},
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf("Produce context for answering: %q", query)},
		},
	})
	if err != nil {
		b.logger.Warn("dynamic context summarization failed", "user_id", id.ID, "error", err)
		return ""
	}
	if len(resp.Choices) == 0 {
		return ""
	}

	summary := strings.TrimSpace(resp.Choices[0].Message.Content)
	if summary == "" {
		return ""
	}
	return "=== DYNAMIC CONTEXT ===\n" + summary + "\n======================="
}

func sourceText(facts []memory.Fact, msgs []message.Message) string {
	var sb strings.Builder

	sb.WriteString("USER FACTS:\n")
	if len(facts) == 0 {
		sb.WriteString("(no stored facts)\n")
	}
	for _, f := range facts {
		fmt.Fprintf(&sb, "%s: %s\n", f.Key, f.Value)
	}

	sb.WriteString("\nRECENT HISTORY:\n")
	if len(msgs) == 0 {
		sb.WriteString("(no prior history)\n")
	}
	for _, m := range msgs {
		fmt.Fprintf(&sb, "%s: %s\n", m.Role, m.Content)
	}

	return sb.String()
}
