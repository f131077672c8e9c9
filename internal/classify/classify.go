// Package classify labels each authenticated turn with a domain so the
// prompt composer can pick the right behavioral layer.
package classify

import (
	"context"
	"regexp"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/claralabs/clara/internal/llm"
	"github.com/claralabs/clara/internal/log"
)

// Domain is a coarse label over the user's intent for this turn.
type Domain int

const (
	// Casual is the default label for general conversation.
	Casual Domain = iota
	// Memory marks turns asking to save or recall personal facts.
	Memory
	// Authentication marks turns about accounts and credentials.
	Authentication
)

func (d Domain) String() string {
	switch d {
	case Memory:
		return "memory"
	case Authentication:
		return "authentication"
	default:
		return "casual"
	}
}

// priorOutputPattern matches references to earlier assistant output
// ("give me the list again", "lo que me dijiste antes"). Those turns are
// conversational continuity, not memory operations, so they bypass the
// model entirely.
var priorOutputPattern = regexp.MustCompile(`(?i)dame|necesito|genera|me dijiste|dijiste|antes|reci[eé]n|hace un rato|la lista|que escribiste|que me diste|you said|you told me|earlier|again|that list|you wrote|you gave me`)

const instruction = `Classify the user message into exactly one of these labels:
memory - the user asks to save, update or recall a personal fact about themselves or their things
authentication - the user asks about accounts, registering, logging in or out, or credentials
casual - anything else

Reply with the single label word and nothing else.`

// Classifier assigns a Domain to a user message.
type Classifier struct {
	svc    llm.CompletionService
	model  string
	logger log.Logger
}

// New creates a Classifier backed by the given completion service.
func New(svc llm.CompletionService, model string, logger log.Logger) *Classifier {
	return &Classifier{svc: svc, model: model, logger: logger}
}

// Classify labels the message. Messages referring to prior assistant
// output short-circuit to Casual without a model call. Any model failure
// or unrecognized label also degrades to Casual; classification never
// fails a turn.
func (c *Classifier) Classify(ctx context.Context, text string) Domain {
	if priorOutputPattern.MatchString(text) {
		return Casual
	}

	resp, err := c.svc.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: instruction},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
	})
	if err != nil {
		c.logger.Warn("domain classification failed, defaulting to casual", "error", err)
		return Casual
	}
	if len(resp.Choices) == 0 {
		return Casual
	}

	switch strings.ToLower(strings.TrimSpace(resp.Choices[0].Message.Content)) {
	case "memory":
		return Memory
	case "authentication":
		return Authentication
	default:
		return Casual
	}
}
