package core

type LLMMessageRole string

const (
	LLMMessageRoleUser      LLMMessageRole = "user"
	LLMMessageRoleAssistant LLMMessageRole = "assistant"
	LLMMessageRoleSystem    LLMMessageRole = "system"
	LLMMessageRoleTool      LLMMessageRole = "tool"
)

// LLMMessage represents a message exchanged with the LLM.
type LLMMessage struct {
	Role       LLMMessageRole `json:"role"`                   // Role of the message sender (e.g., user, assistant, system , tool).
	Name       string         `json:"name,omitempty"`         // Name of the agent that produced the message.
	Message    string         `json:"message"`                // Content of the message.
	ToolCalls  []LLMToolCall  `json:"tool_calls,omitempty"`   // Tool calls requested by the assistant in this message.
	ToolCallId string         `json:"tool_call_id,omitempty"` // Set on tool messages: the call this message answers.
}

type LLMParamterType string

const (
	LLMParameterTypeString  LLMParamterType = "string"
	LLMParameterTypeInteger LLMParamterType = "number"
	LLMParameterTypeBoolean LLMParamterType = "boolean"
	LLMParameterTypeObject  LLMParamterType = "object"
)

// Parameter represents a parameter for an LLM tool.
type Parameter struct {
	Name        string          `json:"name"`        // Name of the parameter.
	Description string          `json:"description"` // Description of the parameter.
	Required    bool            `json:"required"`    // Whether the parameter is required.
	Example     string          `json:"example"`     // Example value for the parameter.
	Type        LLMParamterType `json:"type"`        // Type of the parameter (e.g., string, integer).
}

// LLMTool represents a tool that can be used by the LLM.
type LLMTool struct {
	Name        string      `json:"name"`                 // Name of the tool.
	ToolId      string      `json:"tool_id"`              // Id of the tool.
	Description string      `json:"description"`          // Description of the tool's functionality.
	Parameters  []Parameter `json:"parameters,omitempty"` // Parameters required by the tool.
}

type LLMContext struct {
	Messages []LLMMessage
	Tools    []LLMTool
}

func (c *LLMContext) AddSystemMessage(text string) {
	c.Messages = append(c.Messages, LLMMessage{Role: LLMMessageRoleSystem, Message: text})
}

func (c *LLMContext) AddUserMessage(name, text string) {
	c.Messages = append(c.Messages, LLMMessage{Role: LLMMessageRoleUser, Name: name, Message: text})
}

func (c *LLMContext) AddAssistantMessage(name, text string, toolCalls []LLMToolCall) {
	c.Messages = append(c.Messages, LLMMessage{
		Role:      LLMMessageRoleAssistant,
		Name:      name,
		Message:   text,
		ToolCalls: toolCalls,
	})
}

func (c *LLMContext) AddToolResult(callID, result string) {
	c.Messages = append(c.Messages, LLMMessage{Role: LLMMessageRoleTool, Message: result, ToolCallId: callID})
}

// GetLastAssistantMessage returns the text of the most recent assistant message, or "".
func (c *LLMContext) GetLastAssistantMessage() string {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].Role == LLMMessageRoleAssistant {
			return c.Messages[i].Message
		}
	}
	return ""
}

// LLMToolCall represents a call to an LLM tool.
type LLMToolCall struct {
	CallId     string          `json:"call_id,omitempty"`    // Provider-assigned id of this call.
	ToolId     string          `json:"tool_id"`              // Id of the tool being called.
	Parameters *map[string]any `json:"parameters,omitempty"` // Parameters for the tool call.
}

// StringParam returns a string parameter of the call, or "" when absent.
func (c LLMToolCall) StringParam(name string) string {
	if c.Parameters == nil {
		return ""
	}
	if v, ok := (*c.Parameters)[name].(string); ok {
		return v
	}
	return ""
}

// LLMCompletion is the result of one non-streaming completion round.
type LLMCompletion struct {
	Text      string
	ToolCalls []LLMToolCall
}
