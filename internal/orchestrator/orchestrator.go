// Package orchestrator mediates between the chat surfaces and the remote
// agent service. It owns the single shared agent definition, tracks
// conversation threads, and drives each user turn through the service's
// message → run → approval → reply cycle.
//
// The reasoning, tool execution and protocol handling all happen inside the
// service; this package only sequences requests and observes run status.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/docentlabs/docent/internal/agents"
	"github.com/docentlabs/docent/internal/chat"
	"github.com/docentlabs/docent/internal/config"
	"github.com/docentlabs/docent/internal/log"
)

const (
	agentName = "docent-docs-agent"

	agentInstructions = "You are Docent, a documentation assistant. " +
		"Always search the documentation using the tools available to you before answering. " +
		"Base every answer on what the search returns and cite the pages you used. " +
		"Format all replies in Markdown."

	// fallbackResponse is returned verbatim when a completed run leaves no
	// agent-authored message on the thread.
	fallbackResponse = "I apologize, but I couldn't generate a response. Please try again."

	unknownErrorText = "Unknown error"
)

// ThreadInfo is the locally cached view of a conversation thread.
type ThreadInfo struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// Orchestrator owns the process-wide agent and the thread cache. All methods
// are safe for concurrent use; sessions share one agent but nothing else.
type Orchestrator struct {
	api    agents.API
	cfg    *config.Config
	logger log.Logger
	tracer trace.Tracer

	// mu guards lazy agent creation so concurrent first calls cannot
	// create duplicates. Held only around creation and the nil check.
	mu    sync.Mutex
	agent *agents.Agent

	threadsMu sync.RWMutex
	threads   map[string]ThreadInfo
}

// New creates an orchestrator. The agent itself is created lazily on first
// use, not here, so construction never touches the network.
func New(api agents.API, cfg *config.Config, logger log.Logger) *Orchestrator {
	return &Orchestrator{
		api:     api,
		cfg:     cfg,
		logger:  logger.With("component", "orchestrator"),
		tracer:  otel.Tracer("github.com/docentlabs/docent/internal/orchestrator"),
		threads: make(map[string]ThreadInfo),
	}
}

// ensureAgent returns the shared agent, creating it on first call. Exactly
// one caller performs the remote creation; the rest block on the mutex and
// then observe the created instance. A creation failure propagates to the
// caller that triggered it and leaves the slot empty, so a later call tries
// again.
func (o *Orchestrator) ensureAgent(ctx context.Context) (*agents.Agent, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.agent != nil {
		return o.agent, nil
	}

	ctx, span := o.tracer.Start(ctx, "orchestrator.ensure_agent")
	defer span.End()

	tool := agents.NewMCPTool(o.cfg.ToolServer.Label, o.cfg.ToolServer.URL, o.cfg.ToolServer.AllowedTools)
	agent, err := o.api.CreateAgent(ctx, agents.CreateAgentRequest{
		Model:        o.cfg.ModelDeployment,
		Name:         agentName,
		Instructions: agentInstructions,
		Tools:        []agents.MCPToolDefinition{tool},
	})
	if err != nil {
		return nil, fmt.Errorf("creating agent: %w", err)
	}

	o.agent = agent
	o.logger.Info("agent created",
		"agent_id", agent.ID,
		"model", agent.Model,
		"tool_server", o.cfg.ToolServer.Label)
	return agent, nil
}

// Agent returns the shared agent, or nil when none has been created yet.
func (o *Orchestrator) Agent() *agents.Agent {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.agent
}

// CreateThread starts a new remote conversation thread and caches its handle.
// Tool resources are not attached here; the service scopes them to runs.
func (o *Orchestrator) CreateThread(ctx context.Context) (ThreadInfo, error) {
	thread, err := o.api.CreateThread(ctx)
	if err != nil {
		return ThreadInfo{}, fmt.Errorf("creating thread: %w", err)
	}

	info := o.rememberThread(thread)
	o.logger.Info("thread created", "thread_id", info.ID)
	return info, nil
}

// SendMessage appends a user message to the thread, runs the agent over it
// and returns the reply. The call is fully synchronous: it does not return
// until the run reaches a terminal status or the configured run timeout
// expires (ErrRunTimeout).
//
// A failed run is not an error: it is normalized into an assistant message
// carrying the remote failure text, so the UI renders it like any reply.
func (o *Orchestrator) SendMessage(ctx context.Context, threadID, text string) (chat.Message, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.send_message",
		trace.WithAttributes(attribute.String("thread.id", threadID)))
	defer span.End()

	agent, err := o.ensureAgent(ctx)
	if err != nil {
		return chat.Message{}, err
	}

	if _, err := o.api.CreateMessage(ctx, threadID, agents.CreateMessageRequest{
		Role:    agents.MessageRoleUser,
		Content: text,
	}); err != nil {
		return chat.Message{}, fmt.Errorf("appending message: %w", err)
	}

	resources := &agents.ToolResources{
		MCP: []agents.MCPToolResource{{
			ServerLabel:     o.cfg.ToolServer.Label,
			RequireApproval: agents.ApprovalSetting(o.cfg.ApprovalMode),
		}},
	}

	if err := o.resolveThread(ctx, threadID); err != nil {
		return chat.Message{}, err
	}

	run, err := o.api.CreateRun(ctx, threadID, agents.CreateRunRequest{
		AgentID:       agent.ID,
		ToolResources: resources,
	})
	if err != nil {
		return chat.Message{}, fmt.Errorf("starting run: %w", err)
	}

	final, toolsUsed, err := o.awaitRun(ctx, threadID, run)
	if err != nil {
		return chat.Message{}, err
	}

	if final.Status != agents.RunStatusCompleted {
		o.logger.Warn("run did not complete",
			"thread_id", threadID,
			"run_id", final.ID,
			"status", string(final.Status))
		return chat.NewAssistantMessage(failureContent(final), toolsUsed), nil
	}

	reply, err := o.latestReply(ctx, threadID, toolsUsed)
	if err != nil {
		return chat.Message{}, err
	}

	span.SetAttributes(attribute.Int("tools.approved", len(toolsUsed)))
	return reply, nil
}

// awaitRun polls the run at the configured interval until it reaches a
// terminal status, approving every tool call the service raises along the
// way. It returns the terminal run and the approved tool names in the order
// the service presented them.
func (o *Orchestrator) awaitRun(ctx context.Context, threadID string, run *agents.Run) (*agents.Run, []string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.Run.Timeout)
	defer cancel()

	var toolsUsed []string
	for {
		if run.Status == agents.RunStatusRequiresAction {
			updated, names, err := o.approveToolCalls(ctx, threadID, run)
			if err != nil {
				return nil, nil, err
			}
			toolsUsed = append(toolsUsed, names...)
			run = updated
		}

		if run.Status.Terminal() {
			return run, toolsUsed, nil
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, nil, fmt.Errorf("%w: run %s still %s after %s",
					ErrRunTimeout, run.ID, run.Status, o.cfg.Run.Timeout)
			}
			return nil, nil, fmt.Errorf("awaiting run %s: %w", run.ID, ctx.Err())
		case <-time.After(o.cfg.Run.PollInterval):
		}

		next, err := o.api.GetRun(ctx, threadID, run.ID)
		if err != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, nil, fmt.Errorf("%w: run %s still %s after %s",
					ErrRunTimeout, run.ID, run.Status, o.cfg.Run.Timeout)
			}
			return nil, nil, fmt.Errorf("polling run %s: %w", run.ID, err)
		}
		run = next
	}
}

// approveToolCalls approves every pending tool call on a requires_action run
// in one batch and returns the updated run plus the approved tool names in
// presentation order. When the action carries no calls, nothing is submitted.
func (o *Orchestrator) approveToolCalls(ctx context.Context, threadID string, run *agents.Run) (*agents.Run, []string, error) {
	action := run.RequiredAction
	if action == nil || action.Type != agents.ActionSubmitToolApproval || action.SubmitToolApproval == nil {
		return run, nil, nil
	}

	calls := action.SubmitToolApproval.ToolCalls
	if len(calls) == 0 {
		return run, nil, nil
	}

	approvals := make([]agents.ToolApproval, 0, len(calls))
	names := make([]string, 0, len(calls))
	for _, call := range calls {
		approvals = append(approvals, agents.ToolApproval{ToolCallID: call.ID, Approve: true})
		names = append(names, call.Name)
	}

	updated, err := o.api.SubmitToolApprovals(ctx, threadID, run.ID, agents.SubmitToolApprovalsRequest{
		ToolApprovals: approvals,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("approving tool calls: %w", err)
	}

	o.logger.Info("tool calls approved",
		"thread_id", threadID,
		"run_id", run.ID,
		"tools", names)
	return updated, names, nil
}

// latestReply fetches the most recent thread message and shapes it into the
// assistant's reply. A missing or non-agent message yields the fixed
// fallback instead of an error.
func (o *Orchestrator) latestReply(ctx context.Context, threadID string, toolsUsed []string) (chat.Message, error) {
	list, err := o.api.ListMessages(ctx, threadID, agents.ListMessagesOptions{Order: "desc", Limit: 1})
	if err != nil {
		return chat.Message{}, fmt.Errorf("fetching reply: %w", err)
	}

	content := fallbackResponse
	if len(list.Data) > 0 && list.Data[0].Role == agents.MessageRoleAssistant {
		content = list.Data[0].Text()
	}
	return chat.NewAssistantMessage(content, toolsUsed), nil
}

// failureContent shapes a non-completed terminal run into user-facing text.
func failureContent(run *agents.Run) string {
	reason := unknownErrorText
	if run.LastError != nil && strings.TrimSpace(run.LastError.Message) != "" {
		reason = run.LastError.Message
	}
	return "I apologize, but something went wrong: " + reason + ". Please try again."
}

// resolveThread makes sure threadID is in the local cache, re-fetching the
// remote handle on a miss (process restart, external eviction).
func (o *Orchestrator) resolveThread(ctx context.Context, threadID string) error {
	o.threadsMu.RLock()
	_, ok := o.threads[threadID]
	o.threadsMu.RUnlock()
	if ok {
		return nil
	}

	thread, err := o.api.GetThread(ctx, threadID)
	if err != nil {
		return fmt.Errorf("fetching thread %s: %w", threadID, err)
	}

	o.rememberThread(thread)
	o.logger.Debug("thread cache repopulated", "thread_id", threadID)
	return nil
}

// DeleteThread removes the thread from the local cache and best-effort
// deletes it remotely. Remote failures are logged and swallowed: the entry
// is gone locally either way and the caller has nothing to handle.
func (o *Orchestrator) DeleteThread(ctx context.Context, threadID string) {
	o.threadsMu.Lock()
	delete(o.threads, threadID)
	o.threadsMu.Unlock()

	if err := o.api.DeleteThread(ctx, threadID); err != nil {
		o.logger.Warn("remote thread deletion failed",
			"thread_id", threadID,
			"error", err)
		return
	}
	o.logger.Info("thread deleted", "thread_id", threadID)
}

// History reads the full thread transcript so a reloaded UI can restore the
// conversation.
func (o *Orchestrator) History(ctx context.Context, threadID string) ([]chat.Message, error) {
	list, err := o.api.ListMessages(ctx, threadID, agents.ListMessagesOptions{Order: "asc"})
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}

	msgs := make([]chat.Message, 0, len(list.Data))
	for _, m := range list.Data {
		role := chat.RoleAssistant
		if m.Role == agents.MessageRoleUser {
			role = chat.RoleUser
		}
		msgs = append(msgs, chat.Message{
			Role:      role,
			Content:   m.Text(),
			CreatedAt: time.Unix(m.CreatedAt, 0).UTC(),
		})
	}
	return msgs, nil
}

// Threads returns a snapshot of the locally known threads, newest first.
func (o *Orchestrator) Threads() []ThreadInfo {
	o.threadsMu.RLock()
	defer o.threadsMu.RUnlock()

	infos := make([]ThreadInfo, 0, len(o.threads))
	for _, info := range o.threads {
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool {
		if !infos[i].CreatedAt.Equal(infos[j].CreatedAt) {
			return infos[i].CreatedAt.After(infos[j].CreatedAt)
		}
		return infos[i].ID < infos[j].ID
	})
	return infos
}

// Close best-effort deletes the remote agent if one was created. Failures
// are logged and swallowed; shutdown never fails on cleanup.
func (o *Orchestrator) Close(ctx context.Context) {
	o.mu.Lock()
	agent := o.agent
	o.agent = nil
	o.mu.Unlock()

	if agent == nil {
		return
	}

	if err := o.api.DeleteAgent(ctx, agent.ID); err != nil {
		o.logger.Warn("remote agent deletion failed",
			"agent_id", agent.ID,
			"error", err)
		return
	}
	o.logger.Info("agent deleted", "agent_id", agent.ID)
}

func (o *Orchestrator) rememberThread(thread *agents.Thread) ThreadInfo {
	info := ThreadInfo{
		ID:        thread.ID,
		CreatedAt: time.Unix(thread.CreatedAt, 0).UTC(),
	}
	o.threadsMu.Lock()
	o.threads[thread.ID] = info
	o.threadsMu.Unlock()
	return info
}
