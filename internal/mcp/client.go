package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"go.uber.org/zap"
)

const protocolVersion = "2025-06-18"

// Client connects to an external MCP server over stdio and exposes its
// tools through the Invoker interface. One JSON-RPC message per line in
// each direction.
type Client struct {
	mu sync.Mutex

	config ServerConfig
	logger *zap.Logger

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser

	connected  bool
	serverInfo *ServerInfo
	tools      []ToolDefinition

	pending map[int]chan *rpcResponse
	nextID  int

	wg sync.WaitGroup
}

// NewClient creates a client for the given server configuration. Call
// Start before using it.
func NewClient(cfg ServerConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		config:  cfg,
		logger:  logger,
		pending: make(map[int]chan *rpcResponse),
		nextID:  1,
	}
}

// Start spawns the server process, performs the initialize handshake and
// discovers the server's tools.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		return nil
	}
	if c.config.Command == "" {
		c.mu.Unlock()
		return fmt.Errorf("empty command for MCP server %q", c.config.Name)
	}

	cmd := exec.Command(c.config.Command, c.config.Args...)
	cmd.Env = os.Environ()
	for k, v := range c.config.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("failed to get stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("failed to get stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("failed to start MCP server %q: %w", c.config.Name, err)
	}

	c.cmd = cmd
	c.stdin = stdin
	c.stdout = stdout
	c.connected = true

	c.wg.Add(1)
	go c.readLoop()
	c.mu.Unlock()

	if err := c.initialize(ctx); err != nil {
		_ = c.Stop()
		return err
	}
	if err := c.discoverTools(ctx); err != nil {
		_ = c.Stop()
		return err
	}

	c.logger.Info("MCP server connected",
		zap.String("server", c.config.Name),
		zap.Int("tools", len(c.tools)))
	return nil
}

// Stop kills the server process and releases the reader.
func (c *Client) Stop() error {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return nil
	}
	c.connected = false

	if c.stdin != nil {
		_ = c.stdin.Close()
	}
	if c.cmd != nil && c.cmd.Process != nil {
		_ = c.cmd.Process.Kill()
	}
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		c.logger.Warn("timeout waiting for MCP reader to exit", zap.String("server", c.config.Name))
	}
	return nil
}

// Name returns the configured connection name.
func (c *Client) Name() string { return c.config.Name }

// ServerInfo returns the server identity from the initialize handshake.
func (c *Client) ServerInfo() *ServerInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.serverInfo
}

// Tools returns the definitions discovered at startup.
func (c *Client) Tools() []ToolDefinition {
	c.mu.Lock()
	defer c.mu.Unlock()
	defs := make([]ToolDefinition, len(c.tools))
	copy(defs, c.tools)
	return defs
}

// CallTool invokes a tool on the server.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (*ToolResult, error) {
	resp, err := c.call(ctx, "tools/call", map[string]any{
		"name":      name,
		"arguments": args,
	})
	if err != nil {
		return nil, err
	}

	var result ToolResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, fmt.Errorf("failed to parse tool call result: %w", err)
	}
	return &result, nil
}

func (c *Client) initialize(ctx context.Context) error {
	resp, err := c.call(ctx, "initialize", map[string]any{
		"protocolVersion": protocolVersion,
		"capabilities": map[string]any{
			"tools":     map[string]any{},
			"resources": map[string]any{},
			"prompts":   map[string]any{},
		},
		"clientInfo": map[string]string{
			"name":    "Incrementum",
			"version": "1.0.0",
		},
	})
	if err != nil {
		return fmt.Errorf("initialize failed: %w", err)
	}

	var result struct {
		ProtocolVersion string `json:"protocolVersion"`
		ServerInfo      struct {
			Name    string `json:"name"`
			Version string `json:"version"`
		} `json:"serverInfo"`
	}
	if err := json.Unmarshal(resp.Result, &result); err == nil {
		c.mu.Lock()
		c.serverInfo = &ServerInfo{
			Name:            result.ServerInfo.Name,
			Version:         result.ServerInfo.Version,
			ProtocolVersion: result.ProtocolVersion,
		}
		c.mu.Unlock()
	}

	// Notification, no response expected.
	return c.notify("notifications/initialized", nil)
}

func (c *Client) discoverTools(ctx context.Context) error {
	resp, err := c.call(ctx, "tools/list", nil)
	if err != nil {
		return fmt.Errorf("tools/list failed: %w", err)
	}

	var result struct {
		Tools []ToolDefinition `json:"tools"`
	}
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return fmt.Errorf("failed to parse tools/list response: %w", err)
	}

	c.mu.Lock()
	c.tools = result.Tools
	c.mu.Unlock()
	return nil
}

// call sends a request and waits for the matching response.
func (c *Client) call(ctx context.Context, method string, params any) (*rpcResponse, error) {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return nil, fmt.Errorf("not connected to MCP server %q", c.config.Name)
	}

	id := c.nextID
	c.nextID++
	ch := make(chan *rpcResponse, 1)
	c.pending[id] = ch

	data, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	if err != nil {
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	if _, err := c.stdin.Write(append(data, '\n')); err != nil {
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, fmt.Errorf("failed to write request: %w", err)
	}
	c.mu.Unlock()

	select {
	case resp, ok := <-ch:
		if !ok || resp == nil {
			return nil, fmt.Errorf("connection to %q closed", c.config.Name)
		}
		if resp.Error != nil {
			return nil, fmt.Errorf("MCP error %d: %s", resp.Error.Code, resp.Error.Message)
		}
		return resp, nil
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, ctx.Err()
	}
}

func (c *Client) notify(method string, params any) error {
	data, err := json.Marshal(rpcNotification{JSONRPC: "2.0", Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stdin == nil {
		return fmt.Errorf("not connected")
	}
	if _, err := c.stdin.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write notification: %w", err)
	}
	return nil
}

// readLoop dispatches one JSON-RPC message per stdout line to the pending
// request waiting on its id.
func (c *Client) readLoop() {
	defer c.wg.Done()
	scanner := bufio.NewScanner(c.stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		c.dispatch(line)
	}

	if err := scanner.Err(); err != nil {
		c.mu.Lock()
		connected := c.connected
		c.mu.Unlock()
		if connected {
			c.logger.Error("error reading MCP server stdout",
				zap.String("server", c.config.Name), zap.Error(err))
		}
	}
}

func (c *Client) dispatch(line []byte) {
	var resp rpcResponse
	if err := json.Unmarshal(line, &resp); err != nil {
		c.logger.Warn("failed to parse MCP message", zap.Error(err))
		return
	}
	if resp.ID == 0 {
		// Server-initiated notification; nothing to route. Request ids
		// start at 1, so a zero id never matches a pending call.
		c.logger.Debug("MCP notification", zap.ByteString("message", line))
		return
	}

	c.mu.Lock()
	ch, ok := c.pending[resp.ID]
	if ok {
		delete(c.pending, resp.ID)
	}
	c.mu.Unlock()

	if !ok {
		c.logger.Warn("response for unknown request id", zap.Int("id", resp.ID))
		return
	}
	ch <- &resp
}

var _ Invoker = (*Client)(nil)
var _ Invoker = (*Registry)(nil)
