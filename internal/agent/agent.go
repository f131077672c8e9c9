// Package agent sequences one conversation turn: resolve state and
// domain, compose the instruction text, run the first completion call
// with the tool catalogue, dispatch any requested tools, then stream the
// tool-informed second completion back to the caller.
package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/sync/errgroup"

	"github.com/claralabs/clara/internal/classify"
	"github.com/claralabs/clara/internal/identity"
	"github.com/claralabs/clara/internal/llm"
	"github.com/claralabs/clara/internal/log"
	"github.com/claralabs/clara/internal/message"
	"github.com/claralabs/clara/internal/prompt"
	"github.com/claralabs/clara/internal/state"
	"github.com/claralabs/clara/internal/tools"
)

// FileRef describes a file the caller uploaded before this turn.
type FileRef struct {
	Name       string `json:"fileName"`
	FileID     string `json:"openaiFileId"`
	DocumentID string `json:"documentId"`
}

// Request is one inbound turn.
type Request struct {
	Query string
	Files []FileRef
}

// Classifier labels a message with its domain.
type Classifier interface {
	Classify(ctx context.Context, text string) classify.Domain
}

// ContextBuilder produces the dynamic context block for a turn.
type ContextBuilder interface {
	Build(ctx context.Context, id *identity.Identity, query string) string
}

// Dispatcher executes one tool invocation.
type Dispatcher interface {
	Dispatch(ctx context.Context, turn *tools.Turn, call openai.ToolCall) tools.Result
}

// MessageStore persists and recalls conversation messages.
type MessageStore interface {
	Append(ctx context.Context, userID *uuid.UUID, role, content string) error
	Recent(ctx context.Context, userID uuid.UUID, limit int) ([]message.Message, error)
}

// Agent is the turn orchestrator.
type Agent struct {
	svc          llm.CompletionService
	classifier   Classifier
	builder      ContextBuilder
	dispatcher   Dispatcher
	messages     MessageStore
	model        string
	historyLimit int
	logger       log.Logger
}

// New wires the orchestrator to its collaborators.
func New(svc llm.CompletionService, classifier Classifier, builder ContextBuilder, dispatcher Dispatcher, messages MessageStore, model string, historyLimit int, logger log.Logger) *Agent {
	return &Agent{
		svc:          svc,
		classifier:   classifier,
		builder:      builder,
		dispatcher:   dispatcher,
		messages:     messages,
		model:        model,
		historyLimit: historyLimit,
		logger:       logger,
	}
}

// Run processes one turn, emitting the answer incrementally through emit.
// Tool side effects (session issuance, logout, memory writes) happen on
// the turn before the first emit call, so the transport can still set
// response headers.
func (a *Agent) Run(ctx context.Context, req Request, turn *tools.Turn, emit func(string) error) error {
	caller := turn.Caller()
	st := state.Next(caller != nil, req.Query)

	// Domain, dynamic context and the user-message append are mutually
	// independent. The append runs before the first completion call so a
	// mid-call crash cannot lose the user's turn; all three degrade soft.
	var (
		domain classify.Domain
		dynCtx string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		domain = a.classifier.Classify(gctx, req.Query)
		return nil
	})
	g.Go(func() error {
		dynCtx = a.builder.Build(gctx, caller, req.Query)
		return nil
	})
	g.Go(func() error {
		if err := a.messages.Append(gctx, callerID(caller), message.RoleUser, req.Query); err != nil {
			a.logger.Warn("user message append failed", "error", err)
		}
		return nil
	})
	_ = g.Wait()

	a.logger.Debug("turn resolved", "state", st, "domain", domain, "authenticated", caller != nil)

	instruction := prompt.Compose(st, domain, caller)

	first, err := a.svc.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:      a.model,
		Messages:   a.phase1Messages(ctx, instruction, dynCtx, caller, req),
		Tools:      tools.Catalogue(),
		ToolChoice: "auto",
	})
	if err != nil {
		return fmt.Errorf("phase 1 completion: %w", err)
	}
	if len(first.Choices) == 0 {
		return errors.New("phase 1 completion: empty response")
	}

	assistant := first.Choices[0].Message

	if len(assistant.ToolCalls) == 0 {
		if err := emit(assistant.Content); err != nil {
			return err
		}
		a.persistAssistant(ctx, caller, assistant.Content)
		return nil
	}

	results := a.dispatchAll(ctx, turn, assistant.ToolCalls)

	// A successful auth-family tool call upgrades the instruction text:
	// phase 2 must not run with the pre-authentication rules.
	if ja := turn.JustAuthenticated(); ja != nil {
		instruction = prompt.Compose(state.Authenticated, domain, ja)
	}

	full, err := a.streamPhase2(ctx, instruction, req.Query, assistant, results, emit)
	if err != nil {
		return err
	}

	a.persistAssistant(ctx, caller, full)
	return nil
}

// phase1Messages assembles the ordered message list for the first call:
// instruction, dynamic context, optional uploaded-files notice, sanitized
// recent history, then the new user message.
func (a *Agent) phase1Messages(ctx context.Context, instruction, dynCtx string, caller *identity.Identity, req Request) []openai.ChatCompletionMessage {
	msgs := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: instruction},
	}
	if dynCtx != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: dynCtx})
	}
	if notice := uploadedFilesNotice(req.Files); notice != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: notice})
	}
	msgs = append(msgs, a.history(ctx, caller)...)
	return append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Query})
}

// history returns the caller's recent messages reduced to plain
// user/assistant text. Failures degrade to no history.
func (a *Agent) history(ctx context.Context, caller *identity.Identity) []openai.ChatCompletionMessage {
	if caller == nil {
		return nil
	}
	recent, err := a.messages.Recent(ctx, caller.ID, a.historyLimit)
	if err != nil {
		a.logger.Warn("history fetch failed", "user_id", caller.ID, "error", err)
		return nil
	}

	out := make([]openai.ChatCompletionMessage, 0, len(recent))
	for _, m := range recent {
		switch m.Role {
		case message.RoleUser:
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: m.Content})
		case message.RoleAssistant:
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: m.Content})
		}
	}
	return out
}

// dispatchAll fans the invocations out concurrently and collects results
// in call order for replay into phase 2.
func (a *Agent) dispatchAll(ctx context.Context, turn *tools.Turn, calls []openai.ToolCall) []tools.Result {
	results := make([]tools.Result, len(calls))

	var g errgroup.Group
	for i, call := range calls {
		g.Go(func() error {
			results[i] = a.dispatcher.Dispatch(ctx, turn, call)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (a *Agent) streamPhase2(ctx context.Context, instruction, query string, assistant openai.ChatCompletionMessage, results []tools.Result, emit func(string) error) (string, error) {
	msgs := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: instruction},
		{Role: openai.ChatMessageRoleUser, Content: query},
		assistant,
	}
	for _, r := range results {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:       openai.ChatMessageRoleTool,
			Content:    r.Content,
			ToolCallID: r.CallID,
		})
	}

	stream, err := a.svc.StreamChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    a.model,
		Messages: msgs,
	})
	if err != nil {
		return "", fmt.Errorf("phase 2 completion: %w", err)
	}
	defer stream.Close()

	var full strings.Builder
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("phase 2 stream: %w", err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		full.WriteString(delta)
		if err := emit(delta); err != nil {
			return "", err
		}
	}
	return full.String(), nil
}

func (a *Agent) persistAssistant(ctx context.Context, caller *identity.Identity, content string) {
	if content == "" {
		return
	}
	if err := a.messages.Append(ctx, callerID(caller), message.RoleAssistant, content); err != nil {
		a.logger.Warn("assistant message append failed", "error", err)
	}
}

func callerID(caller *identity.Identity) *uuid.UUID {
	if caller == nil {
		return nil
	}
	return &caller.ID
}

func uploadedFilesNotice(files []FileRef) string {
	if len(files) == 0 {
		return ""
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "El usuario subió %d archivo(s) en esta interacción.\n", len(files))
	for i, f := range files {
		fmt.Fprintf(&sb, "(%d) %s — openaiFileId: %s — documentId: %s\n", i+1, f.Name, f.FileID, f.DocumentID)
	}
	sb.WriteString("Puedes utilizar una herramienta adecuada si es necesario para procesar estos documentos.")
	return sb.String()
}
