package summarize

import (
	"bytes"
	"context"
	"net/http"
	"os"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

const (
	defaultOllamaBaseURL = "http://localhost:11434"
	defaultOllamaModel   = "qwen3:8b"
)

// OllamaSummarizer calls a local Ollama instance to collapse a run of
// events into a narrative paragraph. Every failure mode — connection
// refused, non-2xx, malformed body, context cancellation — falls back
// to FallbackSummarizer rather than propagating an error, matching the
// spec's "unreachable model degrades silently" requirement.
type OllamaSummarizer struct {
	baseURL  string
	model    string
	client   *http.Client
	fallback *FallbackSummarizer
}

// NewOllama builds an OllamaSummarizer pointed at the local daemon
// (overridable via OLLAMA_BASE_URL / OLLAMA_MODEL).
func NewOllama() *OllamaSummarizer {
	baseURL := os.Getenv("OLLAMA_BASE_URL")
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}
	model := os.Getenv("OLLAMA_MODEL")
	if model == "" {
		model = defaultOllamaModel
	}
	return &OllamaSummarizer{
		baseURL:  baseURL,
		model:    model,
		client:   &http.Client{Timeout: 20 * time.Second},
		fallback: NewFallback(),
	}
}

type ollamaGenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
}

// Summarize sends the event narrative as a prompt to Ollama; any
// failure degrades to the deterministic fallback.
func (o *OllamaSummarizer) Summarize(ctx context.Context, events []map[string]interface{}) (string, error) {
	prologue := BuildNarrative(events, o.fallback.capOrDefault())
	if strings.TrimSpace(prologue) == "" {
		return "", nil
	}

	result, err := o.generate(ctx, prologue)
	if err != nil {
		return prologue, nil
	}
	return result, nil
}

func (o *OllamaSummarizer) generate(ctx context.Context, narrative string) (string, error) {
	prompt := "Condense the following activity log into a compact, faithful paragraph per surface. " +
		"Do not invent details.\n\n" + narrative

	body, err := json.Marshal(ollamaGenerateRequest{Model: o.model, Prompt: prompt, Stream: false})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errStatus(resp.StatusCode)
	}

	var out ollamaGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.Response) == "" {
		return "", errEmptyResponse
	}
	return out.Response, nil
}
