package assistant

import (
	"context"

	"go.uber.org/zap"

	"incrementum/internal/mcp"
)

// documentScopedTools accept a document_id parameter that defaults to
// the active document when the model omits it. Tools outside this set
// pass through unchanged.
var documentScopedTools = map[string]bool{
	"create_extract":        true,
	"create_cloze_card":     true,
	"create_qa_card":        true,
	"get_learning_items":    true,
	"get_document_extracts": true,
	"add_pdf_selection":     true,
}

// CallUpdate reports one tool call's resolution. Index is the call's
// position in the extracted batch. Params carries the normalized
// parameters the invocation actually used; the consumer applies them
// to its own state, so the executor never writes shared descriptors.
type CallUpdate struct {
	Index  int
	Status CallStatus
	Result string
	Params map[string]any
}

// Executor runs extracted tool calls against an mcp.Invoker, strictly
// in extraction order. It reports resolutions through an event func
// rather than touching shared state itself.
type Executor struct {
	invoker mcp.Invoker
	logger  *zap.Logger
}

// NewExecutor builds an executor over the given tool invoker.
func NewExecutor(invoker mcp.Invoker, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{invoker: invoker, logger: logger}
}

// Run executes the batch sequentially. Each call's parameters are
// normalized with the ambient document id, then the invoker is called;
// the resolution is emitted immediately so observers see incremental
// progress. A failed call never aborts the rest of the batch. No
// retries.
func (e *Executor) Run(ctx context.Context, calls []*ToolCall, documentID string, emit func(CallUpdate)) {
	for i, call := range calls {
		// Normalize a copy: the descriptors are shared with snapshot
		// readers, so this goroutine must not write them. The consumer
		// applies the normalized params via the update.
		params := NormalizeParams(call.Name, cloneParams(call.Params), documentID)

		e.logger.Debug("executing tool call",
			zap.Int("index", i),
			zap.String("tool", call.Name))

		result, err := e.invoker.CallTool(ctx, call.Name, params)
		update := CallUpdate{Index: i, Params: params}
		if err != nil {
			update.Status = CallError
			update.Result = err.Error()
			e.logger.Warn("tool call failed",
				zap.String("tool", call.Name),
				zap.Error(err))
		} else {
			update.Status = CallSuccess
			if result != nil {
				update.Result = result.Text()
			}
		}

		if emit != nil {
			emit(update)
		}
	}
}

func cloneParams(params map[string]any) map[string]any {
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = v
	}
	return out
}

// NormalizeParams injects the ambient document id for document-scoped
// tools when the key is absent. Idempotent: normalizing an already
// normalized mapping changes nothing.
func NormalizeParams(name string, params map[string]any, documentID string) map[string]any {
	if params == nil {
		params = map[string]any{}
	}
	if !documentScopedTools[name] || documentID == "" {
		return params
	}
	if _, ok := params["document_id"]; !ok {
		params["document_id"] = documentID
	}
	return params
}
