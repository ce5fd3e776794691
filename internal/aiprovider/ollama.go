package aiprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/ashita-ai/akashi/internal/model"
)

// Ollama calls a local Ollama server's /api/chat endpoint for every contract
// method, formatting a task-specific prompt per call. This keeps the
// substrate's AI dependency entirely on-premises, the same trade-off the
// donor repo's embedding provider makes.
type Ollama struct {
	baseURL    string
	model      string
	httpClient *http.Client
	maxRetries uint64
}

// NewOllama constructs an Ollama-backed provider.
func NewOllama(baseURL, chatModel string) *Ollama {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &Ollama{
		baseURL:    baseURL,
		model:      chatModel,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		maxRetries: 3,
	}
}

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
	Options  map[string]any      `json:"options,omitempty"`
}

type ollamaChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatResponse struct {
	Message ollamaChatMessage `json:"message"`
}

// call performs a single chat completion, retrying transient network/5xx
// failures with exponential backoff via cenkalti/backoff.
func (o *Ollama) call(ctx context.Context, system, prompt string, temperature float64) (string, error) {
	messages := []ollamaChatMessage{}
	if system != "" {
		messages = append(messages, ollamaChatMessage{Role: "system", Content: system})
	}
	messages = append(messages, ollamaChatMessage{Role: "user", Content: prompt})

	body, err := json.Marshal(ollamaChatRequest{
		Model:    o.model,
		Messages: messages,
		Stream:   false,
		Options:  map[string]any{"temperature": temperature},
	})
	if err != nil {
		return "", fmt.Errorf("%w: marshal request: %v", ErrNoProvider, err)
	}

	var result string
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/chat", bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := o.httpClient.Do(req)
		if err != nil {
			return err // network error: retriable
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode >= 500 {
			return fmt.Errorf("ollama: server error %d: %s", resp.StatusCode, string(data))
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("ollama: status %d: %s", resp.StatusCode, string(data)))
		}

		var parsed ollamaChatResponse
		if err := json.Unmarshal(data, &parsed); err != nil {
			return backoff.Permanent(fmt.Errorf("ollama: unmarshal response: %w", err))
		}
		result = parsed.Message.Content
		return nil
	}

	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), o.maxRetries)
	if err := backoff.Retry(op, backoff.WithContext(policy, ctx)); err != nil {
		return "", fmt.Errorf("%w: ollama call: %v", ErrNoProvider, err)
	}
	return result, nil
}

func (o *Ollama) Summarize(ctx context.Context, content string, opts SummarizeOptions) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Summarize the following content to roughly %.0f%% of its original length.\n", opts.TargetCompression*100)
	b.WriteString("Preserve: intent")
	if opts.PreserveContradictions {
		b.WriteString(", contradictions")
	}
	if opts.PreserveRejected {
		b.WriteString(", rejected ideas")
	}
	if opts.PreserveDecisions {
		b.WriteString(", key decisions")
	}
	b.WriteString(".\n")
	if opts.DeltaMode && opts.PreviousSummary != "" {
		fmt.Fprintf(&b, "This is a delta summary: focus only on new evidence beyond this previous summary:\n%s\n\n", opts.PreviousSummary)
	}
	b.WriteString("Content:\n")
	b.WriteString(content)

	return o.call(ctx, "You are a precise, faithful summarizer.", b.String(), 0.2)
}

func (o *Ollama) ScoreEpistemicConfidence(ctx context.Context, claim string, claimCtx string) (model.Confidence, error) {
	prompt := fmt.Sprintf("Given the claim %q and context %q, respond with exactly three numbers between 0 and 1, space-separated, in the order min mean max, representing your confidence interval that the claim is true. No other text.", claim, claimCtx)
	out, err := o.call(ctx, "You are a calibrated confidence estimator.", prompt, 0.0)
	if err != nil {
		return model.Confidence{}, err
	}
	c, ok := parseConfidenceTriple(out)
	if !ok {
		return model.Confidence{}, fmt.Errorf("%w: unparseable confidence response %q", ErrNoProvider, out)
	}
	return c, nil
}

func (o *Ollama) DetectContradiction(ctx context.Context, a, b string) (*bool, error) {
	prompt := fmt.Sprintf("Claim A: %q\nClaim B: %q\nDo these two claims contradict each other? Respond with exactly one word: yes, no, or unsure.", a, b)
	out, err := o.call(ctx, "You are a precise logical contradiction detector.", prompt, 0.0)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(strings.TrimSpace(out)) {
	case "yes":
		v := true
		return &v, nil
	case "no":
		v := false
		return &v, nil
	default:
		return nil, nil
	}
}

func (o *Ollama) ExtractEntities(ctx context.Context, text string) ([]Entity, error) {
	prompt := fmt.Sprintf("Extract named entities from this text as a JSON array of objects with fields \"entity\" and \"type\". Respond with only the JSON array.\n\nText:\n%s", text)
	out, err := o.call(ctx, "You are a precise named-entity extractor.", prompt, 0.0)
	if err != nil {
		return nil, err
	}
	var entities []Entity
	if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &entities); err != nil {
		return nil, fmt.Errorf("%w: unparseable entity response: %v", ErrNoProvider, err)
	}
	return entities, nil
}

func (o *Ollama) Chat(ctx context.Context, messages []ChatMessage, opts ChatOptions) (string, error) {
	var b strings.Builder
	for _, m := range messages {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}
	return o.call(ctx, opts.System, b.String(), opts.Temperature)
}

// parseConfidenceTriple parses "min mean max" space-separated floats,
// failing safe (ok=false) on anything else so callers fall back deterministically.
func parseConfidenceTriple(s string) (model.Confidence, bool) {
	fields := strings.Fields(strings.TrimSpace(s))
	if len(fields) != 3 {
		return model.Confidence{}, false
	}
	vals := make([]float64, 3)
	for i, f := range fields {
		var v float64
		if _, err := fmt.Sscanf(f, "%f", &v); err != nil {
			return model.Confidence{}, false
		}
		vals[i] = v
	}
	min, mean, max := vals[0], vals[1], vals[2]
	if !(min >= 0 && min <= mean && mean <= max && max <= 1) {
		return model.Confidence{}, false
	}
	return model.Confidence{Min: min, Mean: mean, Max: max}, true
}
