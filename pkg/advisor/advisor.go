// Package advisor generates optional, human-readable care advice for a
// diagnosis by asking an Ollama vision model. It sits outside the analysis
// pipeline: diagnosis itself never depends on a network service, and callers
// that want a fully offline build simply do not construct a Client.
package advisor

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/leafwise/leaf-analyzer/pkg/types"
)

// promptTemplate keeps the model on topic: short, practical, no diagnosis
// second-guessing.
const promptTemplate = `You are a plant pathology assistant.

A leaf image was diagnosed as %q with confidence %.2f and %.0f%% of leaf
tissue affected. The attached photo is the analyzed leaf.

Give the grower 3-5 short, practical care recommendations for this condition.
Do not re-diagnose the image; trust the given diagnosis. Plain text only,
one recommendation per line, no markdown.`

// Client wraps the Ollama API client.
type Client struct {
	client *api.Client
	model  string
}

// NewClient creates an advisor talking to the given Ollama server.
func NewClient(serverURL, model string) (*Client, error) {
	parsed, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %v", err)
	}

	base := &url.URL{Scheme: parsed.Scheme, Host: parsed.Host}
	return &Client{
		client: api.NewClient(base, http.DefaultClient),
		model:  model,
	}, nil
}

// Advise asks the vision model for care recommendations. imageData is the
// original encoded image the diagnosis was made from.
func (c *Client) Advise(ctx context.Context, result types.DetectionResult, imageData []byte) (string, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 120*time.Second)
		defer cancel()
	}

	streamFalse := false
	req := &api.ChatRequest{
		Model: c.model,
		Messages: []api.Message{
			{
				Role:    "user",
				Content: BuildPrompt(result),
				Images:  []api.ImageData{api.ImageData(imageData)},
			},
		},
		Stream: &streamFalse,
	}

	var advice string
	err := c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		advice = resp.Message.Content
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama chat error: %v", err)
	}

	advice = strings.TrimSpace(advice)
	if advice == "" {
		return "", fmt.Errorf("empty response from ollama")
	}
	return advice, nil
}

// BuildPrompt renders the advice prompt for a diagnosis.
func BuildPrompt(result types.DetectionResult) string {
	return fmt.Sprintf(promptTemplate, result.Disease, result.Confidence, result.Severity)
}
