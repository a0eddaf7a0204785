// Package chat orchestrates a conversation turn: it loads the
// character documents, assembles the prompt sequence, expands macros,
// calls the model provider, and persists the exchange.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/quillchat/quill/internal/assembly"
	"github.com/quillchat/quill/internal/character"
	"github.com/quillchat/quill/internal/llm"
	"github.com/quillchat/quill/internal/macro"
	"github.com/quillchat/quill/internal/session"
	"github.com/quillchat/quill/internal/trigger"
)

// ErrInvalidRequest marks errors caused by the request itself rather
// than by the pipeline or the provider. Callers map it to a client
// error.
var ErrInvalidRequest = errors.New("invalid request")

// Status selects how a request treats the conversation's stored state.
type Status string

const (
	// StatusNew starts a fresh conversation: documents are saved,
	// any prior messages are discarded, and the card's greeting
	// seeds the history.
	StatusNew Status = "new"

	// StatusContinue resumes an existing conversation using its
	// stored documents.
	StatusContinue Status = "continue"

	// StatusUpdate replaces the stored documents but keeps the
	// message history.
	StatusUpdate Status = "update_persona"
)

// ParseStatus converts a wire status string to a Status.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusNew, StatusContinue, StatusUpdate:
		return Status(s), nil
	case "":
		return StatusContinue, nil
	default:
		return "", fmt.Errorf("unknown status %q (valid: new, continue, update_persona)", s)
	}
}

// SendRequest carries one conversation turn. The raw document fields
// are required for StatusNew and StatusUpdate; for StatusContinue the
// stored documents are used and the fields may be nil.
type SendRequest struct {
	ConversationID string
	UserMessage    string
	Status         Status

	Card   []byte
	Preset []byte
	Book   []byte
	Note   []byte
}

// Reply is the outcome of a successful turn.
type Reply struct {
	ConversationID string
	Message        string
	InputTokens    int
	OutputTokens   int
}

// Engine wires the assembly pipeline to a session store and a model
// provider.
type Engine struct {
	store  *session.Store
	client llm.Client
	window int
	logger *slog.Logger
}

// New creates an Engine. window is the history window in turns; zero
// means the assembly default.
func New(store *session.Store, client llm.Client, window int, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: store, client: client, window: window, logger: logger}
}

// Send runs one conversation turn and returns the model's reply.
func (e *Engine) Send(ctx context.Context, req SendRequest) (*Reply, error) {
	if req.ConversationID == "" {
		return nil, fmt.Errorf("%w: conversation id is required", ErrInvalidRequest)
	}
	if req.UserMessage == "" {
		return nil, fmt.Errorf("%w: user message is required", ErrInvalidRequest)
	}

	docs, err := e.prepare(req)
	if err != nil {
		return nil, err
	}

	history, err := e.store.History(req.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	framework := character.BuildFramework(docs)
	annotations := character.ExtractAnnotations(docs)

	// Trigger keys match against the sequence as it stands before
	// any annotation is injected.
	base, err := assembly.Assemble(assembly.Input{
		Framework:   framework,
		History:     history,
		UserMessage: req.UserMessage,
		Window:      e.window,
	})
	if err != nil {
		return nil, fmt.Errorf("assemble corpus: %w", err)
	}
	filtered := trigger.Filter(annotations, trigger.Corpus(base))

	seq, err := assembly.Assemble(assembly.Input{
		Framework:   framework,
		Annotations: filtered,
		History:     history,
		UserMessage: req.UserMessage,
		Window:      e.window,
	})
	if err != nil {
		return nil, fmt.Errorf("assemble: %w", err)
	}

	expander := macro.New(macroVars(docs, req.UserMessage), docs.Card.RegexScripts(), e.logger)
	seq = expander.ExpandSequence(seq)

	messages := llm.FromSequence(seq)
	e.logger.Debug("sending turn",
		"conversation", req.ConversationID,
		"annotations", len(filtered),
		"messages", len(messages),
	)

	resp, err := e.client.Chat(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("provider: %w", err)
	}

	userTurn := assembly.Turn{Role: assembly.RoleUser, Parts: []string{req.UserMessage}}
	if err := e.store.Append(req.ConversationID, userTurn); err != nil {
		return nil, fmt.Errorf("persist user turn: %w", err)
	}
	modelTurn := assembly.Turn{Role: assembly.RoleModel, Parts: []string{resp.Content}}
	if err := e.store.Append(req.ConversationID, modelTurn); err != nil {
		return nil, fmt.Errorf("persist model turn: %w", err)
	}

	return &Reply{
		ConversationID: req.ConversationID,
		Message:        resp.Content,
		InputTokens:    resp.InputTokens,
		OutputTokens:   resp.OutputTokens,
	}, nil
}

// prepare applies the request status to the store and returns the
// documents the turn runs with.
func (e *Engine) prepare(req SendRequest) (*character.Documents, error) {
	switch req.Status {
	case StatusNew:
		docs, err := character.DecodeDocuments(req.Card, req.Preset, req.Book, req.Note)
		if err != nil {
			return nil, fmt.Errorf("%w: decode documents: %v", ErrInvalidRequest, err)
		}
		created, err := e.store.Create(req.ConversationID)
		if err != nil {
			return nil, fmt.Errorf("create conversation: %w", err)
		}
		if !created {
			if err := e.store.Reset(req.ConversationID); err != nil {
				return nil, fmt.Errorf("reset conversation: %w", err)
			}
		}
		if err := e.saveDocuments(req); err != nil {
			return nil, err
		}
		if docs.Card.FirstMes != "" {
			greeting := assembly.Turn{
				Role:     assembly.RoleModel,
				Parts:    []string{docs.Card.FirstMes},
				Greeting: true,
			}
			if err := e.store.Append(req.ConversationID, greeting); err != nil {
				return nil, fmt.Errorf("seed greeting: %w", err)
			}
		}
		return docs, nil

	case StatusUpdate:
		docs, err := character.DecodeDocuments(req.Card, req.Preset, req.Book, req.Note)
		if err != nil {
			return nil, fmt.Errorf("%w: decode documents: %v", ErrInvalidRequest, err)
		}
		exists, err := e.store.Exists(req.ConversationID)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, fmt.Errorf("conversation %s: %w", req.ConversationID, session.ErrNotFound)
		}
		if err := e.saveDocuments(req); err != nil {
			return nil, err
		}
		return docs, nil

	case StatusContinue, "":
		return e.loadDocuments(req.ConversationID)

	default:
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidRequest, req.Status)
	}
}

func (e *Engine) saveDocuments(req SendRequest) error {
	saves := []struct {
		kind string
		body []byte
	}{
		{session.DocCard, req.Card},
		{session.DocPreset, req.Preset},
		{session.DocBook, req.Book},
		{session.DocNote, req.Note},
	}
	for _, s := range saves {
		if len(s.body) == 0 {
			continue
		}
		if err := e.store.SaveDocument(req.ConversationID, s.kind, s.body); err != nil {
			return fmt.Errorf("save %s: %w", s.kind, err)
		}
	}
	return nil
}

func (e *Engine) loadDocuments(id string) (*character.Documents, error) {
	exists, err := e.store.Exists(id)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("conversation %s: %w", id, session.ErrNotFound)
	}

	card, err := e.store.Document(id, session.DocCard)
	if err != nil {
		return nil, fmt.Errorf("load card: %w", err)
	}
	preset, err := e.store.Document(id, session.DocPreset)
	if err != nil {
		return nil, fmt.Errorf("load preset: %w", err)
	}
	book, err := e.store.Document(id, session.DocBook)
	if err != nil {
		return nil, fmt.Errorf("load book: %w", err)
	}
	note, err := e.store.Document(id, session.DocNote)
	if err != nil {
		return nil, fmt.Errorf("load note: %w", err)
	}

	docs, err := character.DecodeDocuments(card, preset, book, note)
	if err != nil {
		return nil, fmt.Errorf("decode stored documents: %w", err)
	}
	return docs, nil
}

func macroVars(docs *character.Documents, userMessage string) macro.Vars {
	vars := macro.Vars{Char: docs.Card.Name, LastMessage: userMessage}
	if docs.Note != nil {
		if docs.Note.CharName != "" {
			vars.Char = docs.Note.CharName
		}
		vars.User = docs.Note.UserName
	}
	return vars
}
