package core

// GeneratedImage is a single image returned by an image-generation service.
type GeneratedImage struct {
	B64PNG        string // base64-encoded PNG
	RevisedPrompt string // prompt as rewritten by the model, if any
}
