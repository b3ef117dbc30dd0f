package mcp

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Handler executes a tool call against the application backend.
type Handler func(ctx context.Context, args map[string]any) (*ToolResult, error)

// Registry holds the built-in Incrementum tools. It is thread-safe and
// implements Invoker.
type Registry struct {
	mu       sync.RWMutex
	defs     map[string]ToolDefinition
	handlers map[string]Handler
	logger   *zap.Logger
}

// NewRegistry creates a registry preloaded with the default tool set.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{
		defs:     make(map[string]ToolDefinition),
		handlers: make(map[string]Handler),
		logger:   logger,
	}
	r.registerDefaults()
	return r
}

// Register adds a tool definition with its handler. Registering an existing
// name replaces it.
func (r *Registry) Register(def ToolDefinition, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs[def.Name] = def
	r.handlers[def.Name] = h
	r.logger.Debug("registered tool", zap.String("name", def.Name))
}

// RegisterRemote exposes a remote server's tool through this registry,
// forwarding calls to the server's invoker.
func (r *Registry) RegisterRemote(def ToolDefinition, inv Invoker) {
	r.Register(def, func(ctx context.Context, args map[string]any) (*ToolResult, error) {
		return inv.CallTool(ctx, def.Name, args)
	})
}

// Tools returns the tool definitions sorted by name.
func (r *Registry) Tools() []ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]ToolDefinition, 0, len(r.defs))
	for _, d := range r.defs {
		defs = append(defs, d)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// CallTool invokes a registered tool by name.
func (r *Registry) CallTool(ctx context.Context, name string, args map[string]any) (*ToolResult, error) {
	r.mu.RLock()
	h, ok := r.handlers[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("tool %q not found", name)
	}
	return h(ctx, args)
}

// textResult builds a single-text-content result.
func textResult(format string, a ...any) *ToolResult {
	return &ToolResult{
		Content: []ToolContent{{Type: "text", Text: fmt.Sprintf(format, a...)}},
	}
}

func objectSchema(properties map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func prop(typ, description string) map[string]any {
	p := map[string]any{"type": typ}
	if description != "" {
		p["description"] = description
	}
	return p
}

// registerDefaults wires the application tool set. The handlers echo their
// arguments until the database layer is connected.
func (r *Registry) registerDefaults() {
	echo := func(verb string) Handler {
		return func(_ context.Context, args map[string]any) (*ToolResult, error) {
			return textResult("%s: %v", verb, args), nil
		}
	}

	// Document management.
	r.Register(ToolDefinition{
		Name:        "create_document",
		Description: "Create a new document in Incrementum",
		InputSchema: objectSchema(map[string]any{
			"title":     prop("string", "Document title"),
			"content":   prop("string", "Document content"),
			"file_type": prop("string", "File type (pdf, epub, md, etc.)"),
		}, "title", "content"),
	}, echo("Created document"))

	r.Register(ToolDefinition{
		Name:        "get_document",
		Description: "Retrieve details of a specific document",
		InputSchema: objectSchema(map[string]any{
			"document_id": prop("string", "Document ID"),
		}, "document_id"),
	}, echo("Retrieved document"))

	r.Register(ToolDefinition{
		Name:        "search_documents",
		Description: "Search documents by content or metadata",
		InputSchema: objectSchema(map[string]any{
			"query": prop("string", "Search query"),
			"limit": prop("number", "Maximum results (default: 10)"),
		}, "query"),
	}, echo("Search results for"))

	r.Register(ToolDefinition{
		Name:        "update_document",
		Description: "Update document metadata",
		InputSchema: objectSchema(map[string]any{
			"document_id": prop("string", ""),
			"title":       prop("string", ""),
			"tags":        map[string]any{"type": "array", "items": prop("string", "")},
		}, "document_id"),
	}, echo("Updated document"))

	r.Register(ToolDefinition{
		Name:        "delete_document",
		Description: "Delete a document",
		InputSchema: objectSchema(map[string]any{
			"document_id": prop("string", ""),
		}, "document_id"),
	}, echo("Deleted document"))

	// Learning items and cards.
	r.Register(ToolDefinition{
		Name:        "create_cloze_card",
		Description: "Create a cloze deletion flashcard",
		InputSchema: objectSchema(map[string]any{
			"text":        prop("string", "Text with cloze deletions"),
			"document_id": prop("string", "Associated document ID"),
		}, "text"),
	}, echo("Created cloze card"))

	r.Register(ToolDefinition{
		Name:        "create_qa_card",
		Description: "Create a question-answer flashcard",
		InputSchema: objectSchema(map[string]any{
			"question":    prop("string", ""),
			"answer":      prop("string", ""),
			"document_id": prop("string", ""),
		}, "question", "answer"),
	}, echo("Created Q&A card"))

	r.Register(ToolDefinition{
		Name:        "create_extract",
		Description: "Create an extract or note from content",
		InputSchema: objectSchema(map[string]any{
			"content":     prop("string", "Extract content"),
			"document_id": prop("string", "Source document ID"),
			"note":        prop("string", "Additional notes"),
			"tags":        map[string]any{"type": "array", "items": prop("string", "")},
			"color":       prop("string", "Highlight color"),
		}, "content"),
	}, echo("Created extract"))

	r.Register(ToolDefinition{
		Name:        "get_learning_items",
		Description: "Get learning items for a document",
		InputSchema: objectSchema(map[string]any{
			"document_id": prop("string", ""),
			"item_type":   prop("string", "Flashcard, Cloze, Qa or Basic"),
		}, "document_id"),
	}, echo("Learning items"))

	r.Register(ToolDefinition{
		Name:        "get_document_extracts",
		Description: "Get all extracts for a document",
		InputSchema: objectSchema(map[string]any{
			"document_id": prop("string", ""),
		}, "document_id"),
	}, echo("Document extracts"))

	// Review and learning.
	r.Register(ToolDefinition{
		Name:        "get_review_queue",
		Description: "Get items due for review",
		InputSchema: objectSchema(map[string]any{
			"limit": prop("number", "Maximum items to return"),
		}),
	}, func(_ context.Context, _ map[string]any) (*ToolResult, error) {
		return textResult("Review queue: 0 items due"), nil
	})

	r.Register(ToolDefinition{
		Name:        "submit_review",
		Description: "Submit a review result",
		InputSchema: objectSchema(map[string]any{
			"item_id": prop("string", ""),
			"rating":  prop("number", "Rating from 1 to 4"),
		}, "item_id", "rating"),
	}, echo("Submitted review"))

	r.Register(ToolDefinition{
		Name:        "get_statistics",
		Description: "Get learning statistics",
		InputSchema: objectSchema(map[string]any{}),
	}, func(_ context.Context, _ map[string]any) (*ToolResult, error) {
		return textResult("Statistics: 0 documents, 0 cards, 0 reviews"), nil
	})

	// PDF selections.
	r.Register(ToolDefinition{
		Name:        "add_pdf_selection",
		Description: "Create notes from PDF text selection",
		InputSchema: objectSchema(map[string]any{
			"document_id": prop("string", ""),
			"page_number": prop("number", ""),
			"selection":   prop("string", ""),
		}, "document_id", "page_number", "selection"),
	}, echo("Added PDF selection"))

	// Batch operations.
	r.Register(ToolDefinition{
		Name:        "batch_create_cards",
		Description: "Create multiple flashcards at once",
		InputSchema: objectSchema(map[string]any{
			"cards": map[string]any{
				"type": "array",
				"items": objectSchema(map[string]any{
					"question": prop("string", ""),
					"answer":   prop("string", ""),
					"type":     prop("string", ""),
				}),
			},
		}, "cards"),
	}, echo("Batch created cards"))

	r.Register(ToolDefinition{
		Name:        "get_queue_documents",
		Description: "Get next N documents from reading queue",
		InputSchema: objectSchema(map[string]any{
			"count": prop("number", "Number of documents to retrieve"),
		}, "count"),
	}, echo("Queue documents"))
}
