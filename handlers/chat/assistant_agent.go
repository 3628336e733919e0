package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"multimodalchat/core"
)

type LLMService interface {
	core.IService
	Complete(ctx context.Context, llmContext core.LLMContext) (core.LLMCompletion, error)
}

// AssistantAgent answers messages with an LLM. Capabilities contribute tools;
// send hooks run on every non-silent text message it sends.
type AssistantAgent struct {
	*core.BaseHandler[LLMService]
	config AssistantConfig
	logger *core.Logger

	mu           sync.Mutex
	history      core.LLMContext
	capabilities map[string]Capability
	toolOwners   map[string]Capability
	tools        []core.LLMTool
	hooks        []SendHook
}

// NewAssistantAgent creates an assistant around the primary LLM service.
// Chain WithBackupService to register fallbacks.
func NewAssistantAgent(service LLMService, config AssistantConfig, logger *core.Logger) *AssistantAgent {
	if logger == nil {
		logger = core.GetLogger()
	}
	if config.MaxToolRounds <= 0 {
		config.MaxToolRounds = DefaultAssistantConfig().MaxToolRounds
	}
	logger = logger.With(map[string]any{"component": "assistant"})
	a := &AssistantAgent{
		BaseHandler:  core.NewBaseHandler[LLMService](service, nil, logger),
		config:       config,
		logger:       logger,
		capabilities: make(map[string]Capability),
		toolOwners:   make(map[string]Capability),
	}
	if config.SystemMessage != "" {
		a.history.AddSystemMessage(config.SystemMessage)
	}
	return a
}

// WithBackupService registers an LLM used when the ones before it fail.
// Returns the agent to allow chaining.
func (a *AssistantAgent) WithBackupService(service LLMService) *AssistantAgent {
	a.BackupServices = append(a.BackupServices, service)
	return a
}

func (a *AssistantAgent) Name() string {
	return a.config.Name
}

// RegisterCapability adds the capability's tools. Tool ids must be unique
// across capabilities.
func (a *AssistantAgent) RegisterCapability(name string, capability Capability) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.capabilities[name]; ok {
		return fmt.Errorf("capability %q already registered", name)
	}
	tools := capability.Tools()
	for _, tool := range tools {
		if _, ok := a.toolOwners[tool.ToolId]; ok {
			return fmt.Errorf("capability %q: tool %q already registered", name, tool.ToolId)
		}
	}
	for _, tool := range tools {
		a.toolOwners[tool.ToolId] = capability
	}
	a.tools = append(a.tools, tools...)
	a.capabilities[name] = capability
	a.logger.Info("capability registered", "capability", name, "tools", len(tools))
	return nil
}

// RegisterSendHook appends a hook run by Send.
func (a *AssistantAgent) RegisterSendHook(hook SendHook) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.hooks = append(a.hooks, hook)
}

// Receive records a message from another agent in the assistant's history.
func (a *AssistantAgent) Receive(ctx context.Context, msg Message, sender Agent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history.AddUserMessage(sender.Name(), msg.Content)
	return nil
}

// Send runs every send hook on msg, then delivers it to recipient. Hooks run
// only when the send is not silent and msg carries text; they may annotate msg
// (the render hook records the written asset names). Hook errors are logged.
func (a *AssistantAgent) Send(ctx context.Context, msg *Message, recipient Agent, silent bool) error {
	if !silent && strings.TrimSpace(msg.Content) != "" {
		a.mu.Lock()
		hooks := append([]SendHook(nil), a.hooks...)
		a.mu.Unlock()

		for _, hook := range hooks {
			if err := hook(ctx, msg, recipient); err != nil {
				a.logger.Error("send hook failed", "message_id", msg.ID, "error", err)
			}
		}
	}

	if err := recipient.Receive(ctx, *msg, a); err != nil {
		return fmt.Errorf("assistant: deliver to %s: %w", recipient.Name(), err)
	}
	return nil
}

// GenerateReply answers the conversation so far. Tool calls are executed and
// fed back until the LLM answers with text or MaxToolRounds is reached; the
// last round is sent without tools so it has to answer.
func (a *AssistantAgent) GenerateReply(ctx context.Context) (Message, error) {
	if !a.Initialized() {
		return Message{}, errors.New("assistant: not initialized")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	var image string
	for round := 0; round < a.config.MaxToolRounds; round++ {
		llmContext := core.LLMContext{Messages: a.history.Messages}
		if round < a.config.MaxToolRounds-1 {
			llmContext.Tools = a.tools
		}

		completion, err := a.complete(ctx, llmContext)
		if err != nil {
			return Message{}, err
		}
		a.history.AddAssistantMessage(a.config.Name, completion.Text, completion.ToolCalls)

		if len(completion.ToolCalls) == 0 {
			reply := NewMessage(a.config.Name, completion.Text)
			reply.ImageB64 = image
			if strings.TrimSpace(reply.Content) == "" && image != "" {
				reply.Content = imageOnlyReply
			}
			return reply, nil
		}

		for _, call := range completion.ToolCalls {
			result := a.callTool(ctx, call)
			if result.ImageB64 != "" {
				image = result.ImageB64
			}
			a.history.AddToolResult(call.CallId, result.Text)
		}
	}
	return Message{}, fmt.Errorf("assistant: no answer after %d rounds", a.config.MaxToolRounds)
}

// complete tries each LLM service in order until one answers.
func (a *AssistantAgent) complete(ctx context.Context, llmContext core.LLMContext) (core.LLMCompletion, error) {
	var errs []error
	for _, svc := range a.Services() {
		completion, err := svc.Complete(ctx, llmContext)
		if err == nil {
			return completion, nil
		}
		a.logger.Warn("llm service failed", "service", fmt.Sprintf("%T", svc), "error", err)
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	return core.LLMCompletion{}, fmt.Errorf("assistant: completion failed: %w", errors.Join(errs...))
}

func (a *AssistantAgent) callTool(ctx context.Context, call core.LLMToolCall) ToolResult {
	capability, ok := a.toolOwners[call.ToolId]
	if !ok {
		a.logger.Warn("llm requested unknown tool", "tool", call.ToolId)
		return ToolResult{Text: fmt.Sprintf("Error: unknown tool %q", call.ToolId)}
	}
	result, err := capability.Call(ctx, call)
	if err != nil {
		a.logger.Error("tool call failed", "tool", call.ToolId, "error", err)
		return ToolResult{Text: "Error: " + err.Error()}
	}
	if result.Text == "" {
		result.Text = "done"
	}
	return result
}
