package assistant

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"incrementum/internal/llm"
	"incrementum/internal/markdown"
)

// ErrBusy is returned by Send while a completion for this conversation
// is still outstanding.
var ErrBusy = errors.New("assistant: completion already in flight")

// Controller owns the ordered message list for one conversation and
// orchestrates a full turn: send, complete, render, extract, execute.
// It is the single writer of the list; observers read snapshots.
type Controller struct {
	client   llm.Client
	executor *Executor
	logger   *zap.Logger

	mu          sync.Mutex
	messages    []*Message
	busy        bool
	documentID  string
	systemText  string
	subscribers []func()

	execWG sync.WaitGroup
}

// ControllerConfig wires the controller's collaborators.
type ControllerConfig struct {
	Client   llm.Client
	Executor *Executor
	Logger   *zap.Logger

	// SystemPrompt, when set, is prepended to every completion request.
	SystemPrompt string
}

// NewController builds a controller over the given completion client
// and executor.
func NewController(cfg ControllerConfig) *Controller {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		client:     cfg.Client,
		executor:   cfg.Executor,
		logger:     logger,
		systemText: cfg.SystemPrompt,
	}
}

// SetDocumentID sets the ambient document used for parameter
// normalization of document-scoped tool calls.
func (c *Controller) SetDocumentID(id string) {
	c.mu.Lock()
	c.documentID = id
	c.mu.Unlock()
}

// Busy reports whether a completion is outstanding.
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

// Subscribe registers a callback invoked after every mutation of the
// message list. Callbacks run outside the controller's lock.
func (c *Controller) Subscribe(fn func()) {
	c.mu.Lock()
	c.subscribers = append(c.subscribers, fn)
	c.mu.Unlock()
}

// Messages returns a snapshot of the conversation. Messages and their
// tool calls are copied so observers never alias controller state.
func (c *Controller) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Message, len(c.messages))
	for i, m := range c.messages {
		cp := *m
		if len(m.ToolCalls) > 0 {
			cp.ToolCalls = make([]*ToolCall, len(m.ToolCalls))
			for j, tc := range m.ToolCalls {
				tcCopy := *tc
				cp.ToolCalls[j] = &tcCopy
			}
		}
		out[i] = cp
	}
	return out
}

// Send runs one conversation turn. The user message is appended first;
// if a completion is already outstanding the send is refused with
// ErrBusy before any completion is issued. On success the assistant
// message is appended with rendered HTML and any extracted tool call
// descriptors, and the descriptors are handed to the executor
// asynchronously. A completion failure is surfaced as a system-role
// message; the existing list is never truncated.
func (c *Controller) Send(ctx context.Context, text string) error {
	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return ErrBusy
	}
	c.busy = true
	c.messages = append(c.messages, NewMessage(RoleUser, text))
	history := c.history()
	docID := c.documentID
	c.mu.Unlock()
	c.notify()

	resp, err := c.client.Complete(ctx, llm.ChatRequest{Messages: history})
	if err != nil {
		c.logger.Warn("completion failed", zap.Error(err))
		c.mu.Lock()
		c.busy = false
		c.messages = append(c.messages, NewMessage(RoleSystem, "Completion failed: "+err.Error()))
		c.mu.Unlock()
		c.notify()
		return nil
	}

	cleaned, calls := ExtractToolCalls(resp.Content, c.logger)

	msg := NewMessage(RoleAssistant, cleaned)
	msg.HTML = markdown.Render(cleaned)
	msg.ToolCalls = calls

	c.mu.Lock()
	c.busy = false
	c.messages = append(c.messages, msg)
	c.mu.Unlock()
	c.notify()

	if len(calls) > 0 && c.executor != nil {
		// Execution is deliberately fire-and-forget: the batch runs to
		// resolution even if the caller moves on.
		c.execWG.Add(1)
		go func() {
			defer c.execWG.Done()
			c.executor.Run(context.Background(), calls, docID, func(u CallUpdate) {
				c.applyCallUpdate(msg.ID, u)
			})
		}()
	}
	return nil
}

// Wait blocks until all in-flight tool call batches have resolved.
func (c *Controller) Wait() {
	c.execWG.Wait()
}

// history assembles the completion request messages under the lock.
func (c *Controller) history() []llm.ChatMessage {
	history := make([]llm.ChatMessage, 0, len(c.messages)+1)
	if c.systemText != "" {
		history = append(history, llm.ChatMessage{Role: llm.RoleSystem, Content: c.systemText})
	}
	for _, m := range c.messages {
		history = append(history, llm.ChatMessage{Role: llm.Role(m.Role), Content: m.Content})
	}
	return history
}

// applyCallUpdate records one executor resolution on the owning
// message. Status moves away from pending exactly once; a late or
// out-of-range update is dropped.
func (c *Controller) applyCallUpdate(messageID string, u CallUpdate) {
	c.mu.Lock()
	for _, m := range c.messages {
		if m.ID != messageID {
			continue
		}
		if u.Index < 0 || u.Index >= len(m.ToolCalls) {
			break
		}
		tc := m.ToolCalls[u.Index]
		if tc.Status != CallPending {
			break
		}
		tc.Status = u.Status
		tc.Result = u.Result
		if u.Params != nil {
			tc.Params = u.Params
		}
		break
	}
	c.mu.Unlock()
	c.notify()
}

// notify invokes subscribers outside the lock.
func (c *Controller) notify() {
	c.mu.Lock()
	subs := make([]func(), len(c.subscribers))
	copy(subs, c.subscribers)
	c.mu.Unlock()
	for _, fn := range subs {
		fn()
	}
}
