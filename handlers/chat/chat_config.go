package chat

const (
	DefaultSystemMessage = "You are a helpful assistant who can generate images and speak. " +
		"Your responses will be converted to speech automatically."
	DefaultGreeting = "Hello! I'm ready to help you. I can chat, generate images, " +
		"and my responses will be spoken. What would you like to do?"
	apologyMessage = "Sorry, I ran into a problem generating a response. Please try again."
	imageOnlyReply = "Here is the image I generated."
)

type AssistantConfig struct {
	Name          string `json:"name"`
	SystemMessage string `json:"system_message"`
	MaxToolRounds int    `json:"max_tool_rounds"` // Completion rounds allowed per reply; the last one is sent without tools.
}

// DefaultAssistantConfig returns an AssistantConfig with sensible defaults.
func DefaultAssistantConfig() AssistantConfig {
	return AssistantConfig{
		Name:          "assistant",
		SystemMessage: DefaultSystemMessage,
		MaxToolRounds: 5,
	}
}

type UserProxyConfig struct {
	Name      string   `json:"name"`
	Prompt    string   `json:"prompt"`
	ExitWords []string `json:"exit_words"` // Input lines that end the conversation. An empty line always does.
}

// DefaultUserProxyConfig returns a UserProxyConfig with sensible defaults.
func DefaultUserProxyConfig() UserProxyConfig {
	return UserProxyConfig{
		Name:      "user_proxy",
		Prompt:    "user_proxy> ",
		ExitWords: []string{"exit"},
	}
}
