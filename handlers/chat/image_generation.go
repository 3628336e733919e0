package chat

import (
	"context"
	"errors"
	"fmt"

	"multimodalchat/core"
)

const generateImageTool = "generate_image"

// ImageService produces an image from a text prompt.
type ImageService interface {
	Generate(ctx context.Context, prompt string) (core.GeneratedImage, error)
}

// ToolResult is what a capability hands back for one tool call. Text goes back
// to the LLM; ImageB64 is attached to the reply being built.
type ToolResult struct {
	Text     string
	ImageB64 string
}

// Capability adds tools to an AssistantAgent.
type Capability interface {
	Tools() []core.LLMTool
	Call(ctx context.Context, call core.LLMToolCall) (ToolResult, error)
}

// ImageGeneration lets the assistant draw pictures through generate_image.
type ImageGeneration struct {
	service ImageService
	logger  *core.Logger
}

func NewImageGeneration(service ImageService, logger *core.Logger) *ImageGeneration {
	if logger == nil {
		logger = core.GetLogger()
	}
	return &ImageGeneration{
		service: service,
		logger:  logger.With(map[string]any{"capability": "image_generation"}),
	}
}

func (g *ImageGeneration) Tools() []core.LLMTool {
	return []core.LLMTool{{
		Name:   generateImageTool,
		ToolId: generateImageTool,
		Description: "Generate an image from a detailed text description. " +
			"Use it whenever the user asks for a picture, drawing or image. " +
			"The image is shown to the user automatically.",
		Parameters: []core.Parameter{{
			Name:        "prompt",
			Description: "A detailed description of the image to generate",
			Required:    true,
			Example:     "a watercolor painting of a lighthouse at dawn",
			Type:        core.LLMParameterTypeString,
		}},
	}}
}

func (g *ImageGeneration) Call(ctx context.Context, call core.LLMToolCall) (ToolResult, error) {
	if call.ToolId != generateImageTool {
		return ToolResult{}, fmt.Errorf("image_generation: unknown tool %q", call.ToolId)
	}
	prompt := call.StringParam("prompt")
	if prompt == "" {
		return ToolResult{}, errors.New("image_generation: prompt is required")
	}

	g.logger.Info("generating image", "prompt", prompt)
	img, err := g.service.Generate(ctx, prompt)
	if err != nil {
		return ToolResult{}, fmt.Errorf("image_generation: %w", err)
	}

	text := "The image was generated and is being shown to the user."
	if img.RevisedPrompt != "" {
		text += " It depicts: " + img.RevisedPrompt
	}
	return ToolResult{Text: text, ImageB64: img.B64PNG}, nil
}
