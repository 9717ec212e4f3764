// Package prompt assembles generation requests from instructions, retrieved
// context, conversation history and the new question.
package prompt

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/fyrsmithlabs/pdfchat/internal/conversation"
	"github.com/fyrsmithlabs/pdfchat/internal/index"
	"github.com/fyrsmithlabs/pdfchat/internal/qaerr"
)

// ContextPlaceholder marks where the context block goes in the instructions.
const ContextPlaceholder = "{context}"

// DefaultInstructions is the system prompt used when none is configured.
const DefaultInstructions = "You are an expert in AI topics. You are provided multiple context items that are related to the prompt you have to answer. " +
	"Use the following pieces of context to answer the question at the end.\n\n" + ContextPlaceholder

// DefaultContextSeparator separates chunk texts in the context block.
const DefaultContextSeparator = "\n\n"

var (
	// ErrEmptyQuestion is returned for a blank question.
	ErrEmptyQuestion = errors.New("question is empty")
	// ErrInvalidQuestion is returned for a question that is not valid UTF-8.
	ErrInvalidQuestion = errors.New("question is not valid utf-8")
)

// Role identifies the author of a message.
type Role string

const (
	RoleSystem Role = "system"
	RoleHuman  Role = "human"
	RoleAI     Role = "ai"
)

// Message is one entry of a chat prompt.
type Message struct {
	Role    Role
	Content string
}

// Prompt is an ordered chat request: system, history pairs, question.
type Prompt struct {
	Messages []Message
}

// Render flattens the prompt into "Role: content" lines.
func (p *Prompt) Render() string {
	var sb strings.Builder
	for i, m := range p.Messages {
		if i > 0 {
			sb.WriteByte('\n')
		}
		switch m.Role {
		case RoleSystem:
			sb.WriteString("System: ")
		case RoleHuman:
			sb.WriteString("Human: ")
		case RoleAI:
			sb.WriteString("AI: ")
		}
		sb.WriteString(m.Content)
	}
	return sb.String()
}

// Config holds assembler settings.
type Config struct {
	// Instructions is the system prompt. ContextPlaceholder is replaced by the
	// context block; without it the block is appended after a blank line.
	Instructions     string
	ContextSeparator string
}

// Assembler builds prompts. It is stateless and safe for concurrent use.
type Assembler struct {
	instructions string
	separator    string
}

// NewAssembler applies defaults for empty fields.
func NewAssembler(cfg Config) *Assembler {
	a := &Assembler{instructions: cfg.Instructions, separator: cfg.ContextSeparator}
	if a.instructions == "" {
		a.instructions = DefaultInstructions
	}
	if a.separator == "" {
		a.separator = DefaultContextSeparator
	}
	return a
}

// Build composes the prompt. An empty chunk list yields an empty context
// block, not an error.
func (a *Assembler) Build(chunks []index.Match, history []conversation.Turn, question string) (*Prompt, error) {
	const op = "prompt.build"

	if strings.TrimSpace(question) == "" {
		return nil, qaerr.PromptAssembly(op, ErrEmptyQuestion)
	}
	if !utf8.ValidString(question) {
		return nil, qaerr.PromptAssembly(op, ErrInvalidQuestion)
	}

	msgs := make([]Message, 0, 2+2*len(history))
	msgs = append(msgs, Message{Role: RoleSystem, Content: a.system(a.contextBlock(chunks))})
	for _, t := range history {
		msgs = append(msgs,
			Message{Role: RoleHuman, Content: t.Question},
			Message{Role: RoleAI, Content: t.Answer},
		)
	}
	msgs = append(msgs, Message{Role: RoleHuman, Content: question})

	return &Prompt{Messages: msgs}, nil
}

func (a *Assembler) contextBlock(chunks []index.Match) string {
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = strings.ToValidUTF8(c.Chunk.Text, "�")
	}
	return strings.Join(parts, a.separator)
}

func (a *Assembler) system(contextBlock string) string {
	if strings.Contains(a.instructions, ContextPlaceholder) {
		return strings.ReplaceAll(a.instructions, ContextPlaceholder, contextBlock)
	}
	if contextBlock == "" {
		return a.instructions
	}
	return a.instructions + "\n\n" + contextBlock
}
