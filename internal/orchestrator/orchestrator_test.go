package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/docentlabs/docent/internal/agents"
	"github.com/docentlabs/docent/internal/chat"
	"github.com/docentlabs/docent/internal/config"
	"github.com/docentlabs/docent/internal/log"
)

// fakeAPI scripts the agent service. CreateRun hands out the first run in
// script; each GetRun advances one step and stays on the last entry.
// SubmitToolApprovals also advances, mirroring the service resuming the run.
type fakeAPI struct {
	mu sync.Mutex

	agentCreations int
	agentErr       error
	agentDelay     time.Duration

	threadSeq    int
	threadErr    error
	getThreadN   int
	getThreadErr error

	messageErr error
	messages   []agents.CreateMessageRequest

	script    []agents.Run
	scriptPos int
	runReqs   []agents.CreateRunRequest

	approvalReqs []agents.SubmitToolApprovalsRequest

	transcript agents.MessageList
	listOpts   []agents.ListMessagesOptions

	deleteThreadErr error
	deletedThreads  []string
	deleteAgentErr  error
	deletedAgents   []string
}

func (f *fakeAPI) CreateAgent(ctx context.Context, req agents.CreateAgentRequest) (*agents.Agent, error) {
	if f.agentDelay > 0 {
		time.Sleep(f.agentDelay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.agentCreations++
	if f.agentErr != nil {
		return nil, f.agentErr
	}
	return &agents.Agent{
		ID:    fmt.Sprintf("asst_%03d", f.agentCreations),
		Name:  req.Name,
		Model: req.Model,
		Tools: req.Tools,
	}, nil
}

func (f *fakeAPI) DeleteAgent(ctx context.Context, agentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletedAgents = append(f.deletedAgents, agentID)
	return f.deleteAgentErr
}

func (f *fakeAPI) CreateThread(ctx context.Context) (*agents.Thread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.threadErr != nil {
		return nil, f.threadErr
	}
	f.threadSeq++
	return &agents.Thread{
		ID:        fmt.Sprintf("thr_%03d", f.threadSeq),
		Object:    "thread",
		CreatedAt: time.Now().Unix() + int64(f.threadSeq),
	}, nil
}

func (f *fakeAPI) GetThread(ctx context.Context, threadID string) (*agents.Thread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getThreadN++
	if f.getThreadErr != nil {
		return nil, f.getThreadErr
	}
	return &agents.Thread{ID: threadID, Object: "thread"}, nil
}

func (f *fakeAPI) DeleteThread(ctx context.Context, threadID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletedThreads = append(f.deletedThreads, threadID)
	return f.deleteThreadErr
}

func (f *fakeAPI) CreateMessage(ctx context.Context, threadID string, req agents.CreateMessageRequest) (*agents.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.messageErr != nil {
		return nil, f.messageErr
	}
	f.messages = append(f.messages, req)
	return &agents.Message{ID: fmt.Sprintf("msg_%03d", len(f.messages)), ThreadID: threadID, Role: req.Role}, nil
}

func (f *fakeAPI) ListMessages(ctx context.Context, threadID string, opts agents.ListMessagesOptions) (*agents.MessageList, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listOpts = append(f.listOpts, opts)
	list := f.transcript
	return &list, nil
}

func (f *fakeAPI) CreateRun(ctx context.Context, threadID string, req agents.CreateRunRequest) (*agents.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runReqs = append(f.runReqs, req)
	f.scriptPos = 0
	if len(f.script) == 0 {
		return &agents.Run{ID: "run_001", ThreadID: threadID, Status: agents.RunStatusCompleted}, nil
	}
	run := f.script[0]
	return &run, nil
}

func (f *fakeAPI) GetRun(ctx context.Context, threadID, runID string) (*agents.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.scriptPos < len(f.script)-1 {
		f.scriptPos++
	}
	run := f.script[f.scriptPos]
	return &run, nil
}

func (f *fakeAPI) SubmitToolApprovals(ctx context.Context, threadID, runID string, req agents.SubmitToolApprovalsRequest) (*agents.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.approvalReqs = append(f.approvalReqs, req)
	if f.scriptPos < len(f.script)-1 {
		f.scriptPos++
	}
	run := f.script[f.scriptPos]
	return &run, nil
}

var _ agents.API = (*fakeAPI)(nil)

func testConfig() *config.Config {
	return &config.Config{
		Endpoint:        "https://agents.example.com/api",
		APIKey:          "test-key",
		ModelDeployment: "gpt-4o",
		ToolServer: config.ToolServer{
			URL:          "https://learn.microsoft.com/api/mcp",
			Label:        "mslearn",
			AllowedTools: []string{"microsoft_docs_search"},
		},
		ApprovalMode: config.ApprovalNever,
		Run: config.Run{
			PollInterval: 2 * time.Millisecond,
			Timeout:      2 * time.Second,
		},
	}
}

func newTestOrchestrator(fake *fakeAPI) *Orchestrator {
	return New(fake, testConfig(), log.NewNop())
}

// assistantTranscript scripts ListMessages to return a single agent-authored
// message with the given text parts.
func assistantTranscript(parts ...string) agents.MessageList {
	content := make([]agents.ContentPart, 0, len(parts))
	for _, p := range parts {
		content = append(content, agents.ContentPart{Type: "text", Text: &agents.TextContent{Value: p}})
	}
	return agents.MessageList{
		Object: "list",
		Data:   []agents.Message{{ID: "msg_reply", Role: agents.MessageRoleAssistant, Content: content}},
	}
}

func run(id string, status agents.RunStatus) agents.Run {
	return agents.Run{ID: id, Status: status}
}

func runWithCalls(id string, calls ...agents.ToolCall) agents.Run {
	return agents.Run{
		ID:     id,
		Status: agents.RunStatusRequiresAction,
		RequiredAction: &agents.RequiredAction{
			Type:               agents.ActionSubmitToolApproval,
			SubmitToolApproval: &agents.SubmitToolApprovalAction{ToolCalls: calls},
		},
	}
}

func TestEnsureAgentCreatesOnce(t *testing.T) {
	defer goleak.VerifyNone(t)

	fake := &fakeAPI{agentDelay: 10 * time.Millisecond}
	o := newTestOrchestrator(fake)

	const callers = 8
	ids := make([]string, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			agent, err := o.ensureAgent(context.Background())
			errs[i] = err
			if agent != nil {
				ids[i] = agent.ID
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, fake.agentCreations, "concurrent first calls must create exactly one agent")
	for i := range callers {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i], "all callers must observe the same agent")
	}
}

func TestEnsureAgentDefinition(t *testing.T) {
	fake := &fakeAPI{}
	o := newTestOrchestrator(fake)

	agent, err := o.ensureAgent(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o", agent.Model)
	require.Len(t, agent.Tools, 1)
	assert.Equal(t, "mcp", agent.Tools[0].Type)
	assert.Equal(t, "mslearn", agent.Tools[0].ServerLabel)
	assert.Equal(t, "https://learn.microsoft.com/api/mcp", agent.Tools[0].ServerURL)
	assert.Equal(t, []string{"microsoft_docs_search"}, agent.Tools[0].AllowedTools)
}

func TestEnsureAgentFailurePropagates(t *testing.T) {
	fake := &fakeAPI{agentErr: errors.New("quota exceeded")}
	o := newTestOrchestrator(fake)

	_, err := o.SendMessage(context.Background(), "thr_001", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
	assert.Nil(t, o.Agent(), "failed creation must leave the slot empty")

	// The next call retries the creation rather than caching the failure.
	fake.mu.Lock()
	fake.agentErr = nil
	fake.mu.Unlock()

	_, err = o.ensureAgent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, fake.agentCreations)
}

func TestCreateThreadCachesHandle(t *testing.T) {
	fake := &fakeAPI{}
	o := newTestOrchestrator(fake)

	info, err := o.CreateThread(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "thr_001", info.ID)
	assert.False(t, info.CreatedAt.IsZero())

	threads := o.Threads()
	require.Len(t, threads, 1)
	assert.Equal(t, "thr_001", threads[0].ID)
}

func TestSendMessageCacheHit(t *testing.T) {
	fake := &fakeAPI{transcript: assistantTranscript("cached")}
	o := newTestOrchestrator(fake)

	info, err := o.CreateThread(context.Background())
	require.NoError(t, err)

	_, err = o.SendMessage(context.Background(), info.ID, "hello")
	require.NoError(t, err)

	assert.Zero(t, fake.getThreadN, "a cached thread must not be re-fetched")
}

func TestSendMessageCacheMissRefetches(t *testing.T) {
	fake := &fakeAPI{transcript: assistantTranscript("hi")}

	// A fresh orchestrator over the same service simulates a restarted
	// process whose cache is empty.
	o := New(fake, testConfig(), log.NewNop())

	_, err := o.SendMessage(context.Background(), "thr_unseen", "hello")
	require.NoError(t, err)
	assert.Equal(t, 1, fake.getThreadN, "cache miss must fetch the remote handle")

	_, err = o.SendMessage(context.Background(), "thr_unseen", "again")
	require.NoError(t, err)
	assert.Equal(t, 1, fake.getThreadN, "the re-fetched handle must be cached")
}

func TestSendMessageAppendsUserMessage(t *testing.T) {
	fake := &fakeAPI{transcript: assistantTranscript("reply")}
	o := newTestOrchestrator(fake)

	_, err := o.SendMessage(context.Background(), "thr_001", "how do I enable autoscale?")
	require.NoError(t, err)

	require.Len(t, fake.messages, 1)
	assert.Equal(t, agents.MessageRoleUser, fake.messages[0].Role)
	assert.Equal(t, "how do I enable autoscale?", fake.messages[0].Content)
}

func TestSendMessageApprovesAllCallsInOneBatch(t *testing.T) {
	fake := &fakeAPI{
		script: []agents.Run{
			runWithCalls("run_001",
				agents.ToolCall{ID: "call_1", Name: "microsoft_docs_search"},
				agents.ToolCall{ID: "call_2", Name: "microsoft_docs_fetch"},
				agents.ToolCall{ID: "call_3", Name: "microsoft_docs_search"},
			),
			run("run_001", agents.RunStatusCompleted),
		},
		transcript: assistantTranscript("found it"),
	}
	o := newTestOrchestrator(fake)

	msg, err := o.SendMessage(context.Background(), "thr_001", "search the docs")
	require.NoError(t, err)

	require.Len(t, fake.approvalReqs, 1, "all pending calls must go out in a single batch")
	batch := fake.approvalReqs[0].ToolApprovals
	require.Len(t, batch, 3)
	for i, approval := range batch {
		assert.True(t, approval.Approve, "call %d must be approved", i)
	}
	assert.Equal(t, []string{"call_1", "call_2", "call_3"},
		[]string{batch[0].ToolCallID, batch[1].ToolCallID, batch[2].ToolCallID})

	assert.Equal(t,
		[]string{"microsoft_docs_search", "microsoft_docs_fetch", "microsoft_docs_search"},
		msg.ToolsUsed,
		"tool names must be recorded in presentation order")
}

func TestSendMessageSkipsEmptyApprovalBatch(t *testing.T) {
	fake := &fakeAPI{
		script: []agents.Run{
			runWithCalls("run_001"), // requires_action with zero pending calls
			run("run_001", agents.RunStatusCompleted),
		},
		transcript: assistantTranscript("done"),
	}
	o := newTestOrchestrator(fake)

	msg, err := o.SendMessage(context.Background(), "thr_001", "hello")
	require.NoError(t, err)

	assert.Empty(t, fake.approvalReqs, "an empty batch must not be submitted")
	assert.Empty(t, msg.ToolsUsed)
}

func TestSendMessageConvergesThroughStatuses(t *testing.T) {
	fake := &fakeAPI{
		script: []agents.Run{
			run("run_001", agents.RunStatusQueued),
			run("run_001", agents.RunStatusInProgress),
			runWithCalls("run_001", agents.ToolCall{ID: "call_1", Name: "microsoft_docs_search"}),
			run("run_001", agents.RunStatusCompleted),
		},
		transcript: assistantTranscript("Deployment slots are explained here."),
	}
	o := newTestOrchestrator(fake)

	msg, err := o.SendMessage(context.Background(), "thr_001", "what are deployment slots?")
	require.NoError(t, err)

	assert.True(t, msg.IsAssistant())
	assert.Equal(t, "Deployment slots are explained here.", msg.Content)
	assert.False(t, msg.Streaming)
	assert.Equal(t, []string{"microsoft_docs_search"}, msg.ToolsUsed)
}

func TestSendMessageJoinsTextParts(t *testing.T) {
	fake := &fakeAPI{transcript: assistantTranscript("First paragraph.", "Second paragraph.")}
	o := newTestOrchestrator(fake)

	msg, err := o.SendMessage(context.Background(), "thr_001", "hello")
	require.NoError(t, err)
	assert.Equal(t, "First paragraph.\nSecond paragraph.", msg.Content)
}

func TestSendMessageFetchesOnlyLatestMessage(t *testing.T) {
	fake := &fakeAPI{transcript: assistantTranscript("reply")}
	o := newTestOrchestrator(fake)

	_, err := o.SendMessage(context.Background(), "thr_001", "hello")
	require.NoError(t, err)

	require.Len(t, fake.listOpts, 1)
	assert.Equal(t, "desc", fake.listOpts[0].Order)
	assert.Equal(t, 1, fake.listOpts[0].Limit)
}

func TestSendMessageFailureMapping(t *testing.T) {
	fake := &fakeAPI{
		script: []agents.Run{
			run("run_001", agents.RunStatusInProgress),
			{ID: "run_001", Status: agents.RunStatusFailed, LastError: &agents.RunError{
				Code:    "rate_limit_exceeded",
				Message: "rate limited",
			}},
		},
	}
	o := newTestOrchestrator(fake)

	msg, err := o.SendMessage(context.Background(), "thr_001", "hello")
	require.NoError(t, err, "a failed run is normalized, never returned as an error")

	assert.Equal(t, chat.RoleAssistant, msg.Role)
	assert.Contains(t, msg.Content, "rate limited")
}

func TestSendMessageFailureWithoutDetail(t *testing.T) {
	fake := &fakeAPI{
		script: []agents.Run{run("run_001", agents.RunStatusFailed)},
	}
	o := newTestOrchestrator(fake)

	msg, err := o.SendMessage(context.Background(), "thr_001", "hello")
	require.NoError(t, err)
	assert.Contains(t, msg.Content, "Unknown error")
}

func TestSendMessageFailureKeepsApprovedTools(t *testing.T) {
	fake := &fakeAPI{
		script: []agents.Run{
			runWithCalls("run_001", agents.ToolCall{ID: "call_1", Name: "microsoft_docs_search"}),
			{ID: "run_001", Status: agents.RunStatusFailed, LastError: &agents.RunError{Message: "backend gone"}},
		},
	}
	o := newTestOrchestrator(fake)

	msg, err := o.SendMessage(context.Background(), "thr_001", "hello")
	require.NoError(t, err)
	assert.Equal(t, []string{"microsoft_docs_search"}, msg.ToolsUsed,
		"tools approved before the failure stay on the message")
}

func TestSendMessageFallbackOnUserAuthoredLast(t *testing.T) {
	fake := &fakeAPI{
		transcript: agents.MessageList{
			Object: "list",
			Data: []agents.Message{{
				ID:   "msg_user",
				Role: agents.MessageRoleUser,
				Content: []agents.ContentPart{
					{Type: "text", Text: &agents.TextContent{Value: "hello?"}},
				},
			}},
		},
	}
	o := newTestOrchestrator(fake)

	msg, err := o.SendMessage(context.Background(), "thr_001", "hello?")
	require.NoError(t, err)
	assert.Equal(t, fallbackResponse, msg.Content, "fallback text must be returned exactly")
	assert.True(t, msg.IsAssistant())
}

func TestSendMessageFallbackOnEmptyTranscript(t *testing.T) {
	fake := &fakeAPI{transcript: agents.MessageList{Object: "list"}}
	o := newTestOrchestrator(fake)

	msg, err := o.SendMessage(context.Background(), "thr_001", "hello")
	require.NoError(t, err)
	assert.Equal(t, fallbackResponse, msg.Content)
}

func TestSendMessageRunTimeout(t *testing.T) {
	defer goleak.VerifyNone(t)

	fake := &fakeAPI{
		script: []agents.Run{run("run_001", agents.RunStatusInProgress)}, // never advances
	}
	cfg := testConfig()
	cfg.Run.PollInterval = 2 * time.Millisecond
	cfg.Run.Timeout = 30 * time.Millisecond
	o := New(fake, cfg, log.NewNop())

	_, err := o.SendMessage(context.Background(), "thr_001", "hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRunTimeout)
}

func TestSendMessageCallerCancellation(t *testing.T) {
	defer goleak.VerifyNone(t)

	fake := &fakeAPI{
		script: []agents.Run{run("run_001", agents.RunStatusInProgress)},
	}
	o := newTestOrchestrator(fake)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := o.SendMessage(ctx, "thr_001", "hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrRunTimeout, "caller cancellation is not a run timeout")
}

func TestSendMessageForwardsApprovalMode(t *testing.T) {
	tests := []struct {
		name string
		mode string
		want string
	}{
		{"never", config.ApprovalNever, `"never"`},
		{"always", config.ApprovalAlways, `"always"`},
		{"raw JSON", `{"never":{"tool_names":["microsoft_docs_search"]}}`, `{"never":{"tool_names":["microsoft_docs_search"]}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeAPI{transcript: assistantTranscript("ok")}
			cfg := testConfig()
			cfg.ApprovalMode = tt.mode
			o := New(fake, cfg, log.NewNop())

			_, err := o.SendMessage(context.Background(), "thr_001", "hello")
			require.NoError(t, err)

			require.Len(t, fake.runReqs, 1)
			req := fake.runReqs[0]
			require.NotNil(t, req.ToolResources)
			require.Len(t, req.ToolResources.MCP, 1)
			assert.Equal(t, "mslearn", req.ToolResources.MCP[0].ServerLabel)
			assert.Equal(t, tt.want, string(req.ToolResources.MCP[0].RequireApproval))
		})
	}
}

func TestSendMessageAppendFailureBubblesUp(t *testing.T) {
	fake := &fakeAPI{messageErr: errors.New("connection reset")}
	o := newTestOrchestrator(fake)

	_, err := o.SendMessage(context.Background(), "thr_001", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestDeleteThreadNonPropagation(t *testing.T) {
	fake := &fakeAPI{deleteThreadErr: errors.New("remote unavailable")}
	o := newTestOrchestrator(fake)

	info, err := o.CreateThread(context.Background())
	require.NoError(t, err)
	require.Len(t, o.Threads(), 1)

	o.DeleteThread(context.Background(), info.ID)

	assert.Empty(t, o.Threads(), "the local entry is removed even when remote deletion fails")
	assert.Equal(t, []string{info.ID}, fake.deletedThreads, "remote deletion is still attempted")
}

func TestHistoryMapsRoles(t *testing.T) {
	fake := &fakeAPI{
		transcript: agents.MessageList{
			Object: "list",
			Data: []agents.Message{
				{Role: agents.MessageRoleUser, CreatedAt: 100, Content: []agents.ContentPart{
					{Type: "text", Text: &agents.TextContent{Value: "what is a slot?"}},
				}},
				{Role: agents.MessageRoleAssistant, CreatedAt: 105, Content: []agents.ContentPart{
					{Type: "text", Text: &agents.TextContent{Value: "A slot is a live app."}},
				}},
			},
		},
	}
	o := newTestOrchestrator(fake)

	msgs, err := o.History(context.Background(), "thr_001")
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	assert.True(t, msgs[0].IsUser())
	assert.Equal(t, "what is a slot?", msgs[0].Content)
	assert.True(t, msgs[1].IsAssistant())
	assert.Equal(t, time.Unix(105, 0).UTC(), msgs[1].CreatedAt)

	require.Len(t, fake.listOpts, 1)
	assert.Equal(t, "asc", fake.listOpts[0].Order)
}

func TestThreadsNewestFirst(t *testing.T) {
	fake := &fakeAPI{}
	o := newTestOrchestrator(fake)

	for range 3 {
		_, err := o.CreateThread(context.Background())
		require.NoError(t, err)
	}

	threads := o.Threads()
	require.Len(t, threads, 3)
	assert.Equal(t, "thr_003", threads[0].ID)
	assert.Equal(t, "thr_001", threads[2].ID)
}

func TestCloseDeletesAgentOnce(t *testing.T) {
	fake := &fakeAPI{}
	o := newTestOrchestrator(fake)

	_, err := o.ensureAgent(context.Background())
	require.NoError(t, err)

	o.Close(context.Background())
	o.Close(context.Background())

	assert.Equal(t, []string{"asst_001"}, fake.deletedAgents, "Close must delete the agent exactly once")
}

func TestCloseWithoutAgentIsNoop(t *testing.T) {
	fake := &fakeAPI{}
	o := newTestOrchestrator(fake)

	o.Close(context.Background())
	assert.Empty(t, fake.deletedAgents)
}

func TestCloseSwallowsDeletionFailure(t *testing.T) {
	fake := &fakeAPI{deleteAgentErr: errors.New("gone already")}
	o := newTestOrchestrator(fake)

	_, err := o.ensureAgent(context.Background())
	require.NoError(t, err)

	o.Close(context.Background()) // must not panic or surface the error
	assert.Len(t, fake.deletedAgents, 1)
}
