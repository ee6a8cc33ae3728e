package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/phrazzld/inkwell-api/internal/config"
	"github.com/phrazzld/inkwell-api/internal/generation"
)

// ProviderName is the registry name of the Ollama provider.
const ProviderName = "ollama"

// DefaultURL is used when no server URL is configured.
const DefaultURL = "http://localhost:11434"

// generateRequest is the body of POST /api/generate.
type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
	Format string `json:"format,omitempty"`
}

type generateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

// Client calls the Ollama generate endpoint.
type Client struct {
	logger     *slog.Logger
	baseURL    string
	model      string
	httpClient *http.Client
}

var _ generation.Completer = (*Client)(nil)

// NewClient creates an Ollama client from the LLM configuration.
func NewClient(logger *slog.Logger, cfg config.LLMConfig, httpClient *http.Client) (*Client, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.OllamaModel == "" {
		return nil, fmt.Errorf("%w: ollama model cannot be empty", generation.ErrInvalidConfig)
	}

	baseURL := cfg.OllamaURL
	if baseURL == "" {
		baseURL = DefaultURL
	}

	if httpClient == nil {
		timeout := time.Duration(cfg.RequestTimeoutSec) * time.Second
		if timeout <= 0 {
			timeout = 2 * time.Minute
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		logger:     logger.With("component", "ollama"),
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		model:      cfg.OllamaModel,
		httpClient: httpClient,
	}, nil
}

// Complete implements generation.Completer. The model is asked for JSON
// output so that the shared response decoding applies.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("%w: prompt cannot be empty", generation.ErrInvalidConfig)
	}

	body, err := json.Marshal(generateRequest{
		Model:  c.model,
		Prompt: prompt,
		Stream: false,
		Format: "json",
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", generation.ErrInvalidConfig, err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.DebugContext(ctx, "Calling Ollama", "model", c.model)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", generation.ErrTransientFailure, err)
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return "", fmt.Errorf("%w: failed to read response: %v", generation.ErrTransientFailure, err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", classifyStatus(resp.StatusCode, payload)
	}

	var out generateResponse
	if err := json.Unmarshal(payload, &out); err != nil {
		return "", fmt.Errorf("%w: %v", generation.ErrInvalidResponse, err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("%w: %s", generation.ErrGenerationFailed, out.Error)
	}
	if strings.TrimSpace(out.Response) == "" {
		return "", fmt.Errorf("%w: empty response", generation.ErrInvalidResponse)
	}

	return out.Response, nil
}

// classifyStatus maps an HTTP failure to a generation error. Server side
// and throttling failures are transient; everything else is a
// configuration problem such as an unknown model.
func classifyStatus(status int, payload []byte) error {
	msg := strings.TrimSpace(string(payload))
	var body generateResponse
	if json.Unmarshal(payload, &body) == nil && body.Error != "" {
		msg = body.Error
	}

	switch {
	case status == http.StatusTooManyRequests || status >= 500:
		return fmt.Errorf("%w: ollama returned %d: %s", generation.ErrTransientFailure, status, msg)
	case status == http.StatusNotFound:
		return fmt.Errorf("%w: ollama returned %d: %s", generation.ErrInvalidConfig, status, msg)
	default:
		return fmt.Errorf("%w: ollama returned %d: %s", generation.ErrGenerationFailed, status, msg)
	}
}
