package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"multimodalchat/core"

	"github.com/bytedance/sonic"
	"github.com/sashabaranov/go-openai"
)

// OpenAILLMService implements the assistant's LLMService using OpenAI chat completions
type OpenAILLMService struct {
	client *openai.Client
	config Config
	logger *core.Logger

	isInitialized bool
	mu            sync.RWMutex
}

// Config holds the configuration for OpenAI service
type Config struct {
	APIKey      string  `json:"api_key"`
	BaseURL     string  `json:"base_url,omitempty"`
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float32 `json:"temperature"`
	// VerifyOnInit lists models during Init to fail fast on a bad key.
	VerifyOnInit bool `json:"verify_on_init,omitempty"`
}

// DefaultConfig returns gpt-4 at temperature 0.7
func DefaultConfig() Config {
	return Config{
		Model:       openai.GPT4,
		Temperature: 0.7,
	}
}

// NewOpenAILLMService creates a new instance of OpenAILLMService
func NewOpenAILLMService(config Config, logger *core.Logger) *OpenAILLMService {
	if config.Model == "" {
		config.Model = DefaultConfig().Model
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &OpenAILLMService{
		config: config,
		logger: logger.With(map[string]any{"service": "openai_llm"}),
	}
}

// Init initializes the OpenAI service
func (s *OpenAILLMService) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isInitialized {
		return nil
	}
	if s.config.APIKey == "" {
		return fmt.Errorf("OpenAI API key is required")
	}

	clientConfig := openai.DefaultConfig(s.config.APIKey)
	if s.config.BaseURL != "" {
		clientConfig.BaseURL = s.config.BaseURL
	}
	s.client = openai.NewClientWithConfig(clientConfig)

	if s.config.VerifyOnInit {
		if _, err := s.client.ListModels(ctx); err != nil {
			s.client = nil
			return fmt.Errorf("failed to connect to OpenAI: %w", err)
		}
	}

	s.isInitialized = true
	return nil
}

// Cleanup performs cleanup operations
func (s *OpenAILLMService) Cleanup() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.client = nil
	s.isInitialized = false
	return nil
}

// Complete runs one non-streaming completion round against OpenAI
func (s *OpenAILLMService) Complete(ctx context.Context, llmContext core.LLMContext) (core.LLMCompletion, error) {
	s.mu.RLock()
	client := s.client
	initialized := s.isInitialized
	s.mu.RUnlock()

	if !initialized {
		return core.LLMCompletion{}, errors.New("OpenAI service not initialized")
	}

	openAIMessages := s.convertMessages(llmContext.Messages)

	req := openai.ChatCompletionRequest{
		Model:       s.config.Model,
		Messages:    openAIMessages,
		MaxTokens:   s.config.MaxTokens,
		Temperature: s.config.Temperature,
	}

	if len(llmContext.Tools) > 0 {
		tools, err := s.convertTools(llmContext.Tools)
		if err != nil {
			return core.LLMCompletion{}, fmt.Errorf("failed to convert tools: %w", err)
		}
		req.Tools = tools
	}

	resp, err := client.CreateChatCompletion(ctx, req)
	if err != nil {
		return core.LLMCompletion{}, fmt.Errorf("failed to create completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return core.LLMCompletion{}, errors.New("completion returned no choices")
	}

	choice := resp.Choices[0]
	completion := core.LLMCompletion{Text: choice.Message.Content}
	for _, toolCall := range choice.Message.ToolCalls {
		completion.ToolCalls = append(completion.ToolCalls, s.convertToolCall(toolCall))
	}

	s.logger.Debug("completion finished",
		"finish_reason", string(choice.FinishReason),
		"tool_calls", len(completion.ToolCalls),
		"total_tokens", resp.Usage.TotalTokens,
	)
	return completion, nil
}

// convertMessages converts core messages to OpenAI messages
func (s *OpenAILLMService) convertMessages(messages []core.LLMMessage) []openai.ChatCompletionMessage {
	openAIMessages := make([]openai.ChatCompletionMessage, 0, len(messages))

	for _, msg := range messages {
		openAIMsg := openai.ChatCompletionMessage{
			Role:       s.convertRole(msg.Role),
			Content:    msg.Message,
			ToolCallID: msg.ToolCallId,
		}
		if msg.Role == core.LLMMessageRoleUser || msg.Role == core.LLMMessageRoleAssistant {
			openAIMsg.Name = msg.Name
		}

		for _, call := range msg.ToolCalls {
			args := "{}"
			if call.Parameters != nil {
				if b, err := sonic.Marshal(*call.Parameters); err == nil {
					args = string(b)
				}
			}
			openAIMsg.ToolCalls = append(openAIMsg.ToolCalls, openai.ToolCall{
				ID:   call.CallId,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      call.ToolId,
					Arguments: args,
				},
			})
		}

		openAIMessages = append(openAIMessages, openAIMsg)
	}

	return openAIMessages
}

// convertTools converts core tools to OpenAI tools
func (s *OpenAILLMService) convertTools(tools []core.LLMTool) ([]openai.Tool, error) {
	openAITools := make([]openai.Tool, 0, len(tools))

	for _, tool := range tools {
		parameters := make(map[string]interface{})
		properties := make(map[string]interface{})
		required := make([]string, 0)

		for _, param := range tool.Parameters {
			prop := map[string]interface{}{
				"type":        s.convertParameterType(param.Type),
				"description": param.Description,
			}

			if param.Example != "" {
				prop["example"] = param.Example
			}

			properties[param.Name] = prop

			if param.Required {
				required = append(required, param.Name)
			}
		}

		parameters["type"] = "object"
		parameters["properties"] = properties
		if len(required) > 0 {
			parameters["required"] = required
		}

		paramsJSON, err := sonic.Marshal(parameters)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal parameters: %w", err)
		}

		openAITools = append(openAITools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.ToolId,
				Description: tool.Description,
				Parameters:  json.RawMessage(paramsJSON),
			},
		})
	}

	return openAITools, nil
}

// convertRole converts core role to OpenAI role
func (s *OpenAILLMService) convertRole(role core.LLMMessageRole) string {
	switch role {
	case core.LLMMessageRoleUser:
		return openai.ChatMessageRoleUser
	case core.LLMMessageRoleAssistant:
		return openai.ChatMessageRoleAssistant
	case core.LLMMessageRoleSystem:
		return openai.ChatMessageRoleSystem
	case core.LLMMessageRoleTool:
		return openai.ChatMessageRoleTool
	default:
		return openai.ChatMessageRoleUser
	}
}

// convertParameterType converts core parameter type to JSON schema type
func (s *OpenAILLMService) convertParameterType(paramType core.LLMParamterType) string {
	switch paramType {
	case core.LLMParameterTypeString:
		return "string"
	case core.LLMParameterTypeInteger:
		return "integer"
	case core.LLMParameterTypeBoolean:
		return "boolean"
	case core.LLMParameterTypeObject:
		return "object"
	default:
		return "string"
	}
}

// convertToolCall converts OpenAI tool call to core tool call
func (s *OpenAILLMService) convertToolCall(toolCall openai.ToolCall) core.LLMToolCall {
	var parameters map[string]interface{}

	if toolCall.Function.Arguments != "" {
		err := sonic.Unmarshal([]byte(toolCall.Function.Arguments), &parameters)
		if err != nil {
			// keep the raw arguments so the tool can still report them
			parameters = map[string]interface{}{
				"raw_arguments": toolCall.Function.Arguments,
			}
		}
	}

	return core.LLMToolCall{
		CallId:     toolCall.ID,
		ToolId:     toolCall.Function.Name,
		Parameters: &parameters,
	}
}
