package assistant

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"incrementum/internal/llm"
	"incrementum/internal/mcp"
)

// stubClient returns canned content, optionally blocking until released.
type stubClient struct {
	content string
	err     error

	mu      sync.Mutex
	started chan struct{}
	release chan struct{}
	gotReqs []llm.ChatRequest
}

func (s *stubClient) Model() string { return "stub" }

func (s *stubClient) Complete(_ context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	s.mu.Lock()
	s.gotReqs = append(s.gotReqs, req)
	s.mu.Unlock()
	if s.started != nil {
		close(s.started)
		s.started = nil
	}
	if s.release != nil {
		<-s.release
	}
	if s.err != nil {
		return nil, s.err
	}
	return &llm.ChatResponse{Content: s.content}, nil
}

func (s *stubClient) requests() []llm.ChatRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gotReqs
}

func TestControllerSendAppendsUserAndAssistant(t *testing.T) {
	client := &stubClient{content: "**bold** reply"}
	c := NewController(ControllerConfig{Client: client})

	require.NoError(t, c.Send(context.Background(), "hello"))

	msgs := c.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, RoleUser, msgs[0].Role)
	assert.Equal(t, "hello", msgs[0].Content)
	assert.Equal(t, RoleAssistant, msgs[1].Role)
	assert.Equal(t, "**bold** reply", msgs[1].Content)
	assert.Equal(t, "<p><strong>bold</strong> reply</p>", msgs[1].HTML)
	assert.NotEmpty(t, msgs[0].ID)
	assert.NotEqual(t, msgs[0].ID, msgs[1].ID)
}

func TestControllerSystemPromptPrepended(t *testing.T) {
	client := &stubClient{content: "ok"}
	c := NewController(ControllerConfig{Client: client, SystemPrompt: "you are helpful"})

	require.NoError(t, c.Send(context.Background(), "hi"))

	reqs := client.requests()
	require.Len(t, reqs, 1)
	require.Len(t, reqs[0].Messages, 2)
	assert.Equal(t, llm.RoleSystem, reqs[0].Messages[0].Role)
	assert.Equal(t, "you are helpful", reqs[0].Messages[0].Content)
	assert.Equal(t, llm.RoleUser, reqs[0].Messages[1].Role)
}

func TestControllerRefusesConcurrentSend(t *testing.T) {
	client := &stubClient{
		content: "ok",
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	c := NewController(ControllerConfig{Client: client})

	done := make(chan error, 1)
	go func() {
		done <- c.Send(context.Background(), "first")
	}()

	<-client.started
	assert.True(t, c.Busy())
	assert.ErrorIs(t, c.Send(context.Background(), "second"), ErrBusy)

	close(client.release)
	require.NoError(t, <-done)
	assert.False(t, c.Busy())

	// The refused send appended nothing.
	msgs := c.Messages()
	require.Len(t, msgs, 2)
}

func TestControllerCompletionFailure(t *testing.T) {
	client := &stubClient{err: fmt.Errorf("backend down")}
	c := NewController(ControllerConfig{Client: client})

	require.NoError(t, c.Send(context.Background(), "hello"))

	msgs := c.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, RoleUser, msgs[0].Role)
	assert.Equal(t, RoleSystem, msgs[1].Role)
	assert.Contains(t, msgs[1].Content, "backend down")
	assert.False(t, c.Busy())

	// The list survives; a following send works.
	client.err = nil
	client.content = "recovered"
	require.NoError(t, c.Send(context.Background(), "again"))
	assert.Len(t, c.Messages(), 4)
}

func TestControllerExecutesExtractedCalls(t *testing.T) {
	reply := "Saving that.\n```tool_call\n" +
		`{"tool_calls":[{"name":"create_extract","arguments":{"content":"x"}}]}` +
		"\n```"
	client := &stubClient{content: reply}
	inv := &scriptedInvoker{}
	c := NewController(ControllerConfig{
		Client:   client,
		Executor: NewExecutor(inv, nil),
	})
	c.SetDocumentID("doc1")

	require.NoError(t, c.Send(context.Background(), "save this"))
	c.Wait()

	assert.Equal(t, []string{"create_extract"}, inv.calls)

	msgs := c.Messages()
	require.Len(t, msgs, 2)
	assistant := msgs[1]
	assert.NotContains(t, assistant.Content, "tool_call")
	require.Len(t, assistant.ToolCalls, 1)
	tc := assistant.ToolCalls[0]
	assert.Equal(t, "create_extract", tc.Name)
	assert.Equal(t, map[string]any{"content": "x", "document_id": "doc1"}, tc.Params)
	assert.Equal(t, CallSuccess, tc.Status)
	assert.Equal(t, "ok:create_extract", tc.Result)
}

func TestControllerFailedCallRecordedOnDescriptor(t *testing.T) {
	reply := "```tool_call\n" +
		`[{"name":"get_statistics"},{"name":"create_document","arguments":{"title":"t"}}]` +
		"\n```"
	client := &stubClient{content: reply}
	inv := &scriptedInvoker{failOn: map[string]bool{"get_statistics": true}}
	c := NewController(ControllerConfig{
		Client:   client,
		Executor: NewExecutor(inv, nil),
	})

	require.NoError(t, c.Send(context.Background(), "go"))
	c.Wait()

	msgs := c.Messages()
	calls := msgs[1].ToolCalls
	require.Len(t, calls, 2)
	assert.Equal(t, CallError, calls[0].Status)
	assert.Contains(t, calls[0].Result, "unavailable")
	assert.Equal(t, CallSuccess, calls[1].Status)
}

// slowInvoker delays each call so snapshot readers overlap execution.
type slowInvoker struct {
	scriptedInvoker
}

func (s *slowInvoker) CallTool(ctx context.Context, name string, args map[string]any) (*mcp.ToolResult, error) {
	time.Sleep(time.Millisecond)
	return s.scriptedInvoker.CallTool(ctx, name, args)
}

func TestControllerSnapshotsDuringExecution(t *testing.T) {
	reply := "```tool_call\n" +
		`[{"name":"create_extract","arguments":{"content":"a"}},` +
		`{"name":"create_cloze_card","arguments":{"text":"b"}},` +
		`{"name":"create_qa_card","arguments":{"question":"q","answer":"a"}},` +
		`{"name":"get_statistics"}]` +
		"\n```"
	client := &stubClient{content: reply}
	inv := &slowInvoker{}
	c := NewController(ControllerConfig{
		Client:   client,
		Executor: NewExecutor(inv, nil),
	})
	c.SetDocumentID("doc1")

	require.NoError(t, c.Send(context.Background(), "go"))

	// Read snapshots continuously while the batch resolves, the way the
	// UI does between updates.
	done := make(chan struct{})
	go func() {
		c.Wait()
		close(done)
	}()
	for {
		_ = c.Messages()
		select {
		case <-done:
		default:
			continue
		}
		break
	}

	calls := c.Messages()[1].ToolCalls
	require.Len(t, calls, 4)
	for _, tc := range calls {
		assert.Equal(t, CallSuccess, tc.Status)
	}
	assert.Equal(t, map[string]any{"content": "a", "document_id": "doc1"}, calls[0].Params)
	assert.Equal(t, map[string]any{}, calls[3].Params)
}

func TestControllerNotifiesSubscribers(t *testing.T) {
	client := &stubClient{content: "ok"}
	c := NewController(ControllerConfig{Client: client})

	var mu sync.Mutex
	count := 0
	c.Subscribe(func() {
		mu.Lock()
		count++
		mu.Unlock()
	})

	require.NoError(t, c.Send(context.Background(), "hi"))

	mu.Lock()
	defer mu.Unlock()
	// One notification for the user append, one for the assistant append.
	assert.Equal(t, 2, count)
}

func TestControllerSnapshotIsACopy(t *testing.T) {
	reply := "```tool_call\n" + `[{"name":"get_statistics"}]` + "\n```"
	client := &stubClient{content: reply}
	inv := &scriptedInvoker{}
	c := NewController(ControllerConfig{
		Client:   client,
		Executor: NewExecutor(inv, nil),
	})

	require.NoError(t, c.Send(context.Background(), "hi"))
	snap := c.Messages()
	c.Wait()

	// Mutating the snapshot must not leak into controller state.
	snap[0].Content = "tampered"
	snap[1].ToolCalls[0].Status = CallError

	fresh := c.Messages()
	assert.Equal(t, "hi", fresh[0].Content)
	assert.Equal(t, CallSuccess, fresh[1].ToolCalls[0].Status)
}

func TestControllerTimestampOrdering(t *testing.T) {
	client := &stubClient{content: "ok"}
	c := NewController(ControllerConfig{Client: client})

	require.NoError(t, c.Send(context.Background(), "hi"))

	msgs := c.Messages()
	assert.False(t, msgs[1].Timestamp.Before(msgs[0].Timestamp.Add(-time.Second)))
}
