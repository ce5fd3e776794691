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

// OpenAI calls the OpenAI chat completions API for every contract method.
// Structurally identical to Ollama (internal/aiprovider/ollama.go); kept as a
// separate type because the wire format and auth differ.
type OpenAI struct {
	apiKey     string
	chatModel  string
	httpClient *http.Client
	maxRetries uint64
}

// NewOpenAI constructs an OpenAI-backed provider.
func NewOpenAI(apiKey, chatModel string) *OpenAI {
	if chatModel == "" {
		chatModel = "gpt-4o-mini"
	}
	return &OpenAI{
		apiKey:     apiKey,
		chatModel:  chatModel,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		maxRetries: 3,
	}
}

type openAIChatRequest struct {
	Model       string              `json:"model"`
	Messages    []openAIChatMessage `json:"messages"`
	Temperature float64             `json:"temperature"`
}

type openAIChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message openAIChatMessage `json:"message"`
	} `json:"choices"`
}

func (o *OpenAI) call(ctx context.Context, system, prompt string, temperature float64) (string, error) {
	messages := []openAIChatMessage{}
	if system != "" {
		messages = append(messages, openAIChatMessage{Role: "system", Content: system})
	}
	messages = append(messages, openAIChatMessage{Role: "user", Content: prompt})

	body, err := json.Marshal(openAIChatRequest{Model: o.chatModel, Messages: messages, Temperature: temperature})
	if err != nil {
		return "", fmt.Errorf("%w: marshal request: %v", ErrNoProvider, err)
	}

	var result string
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.openai.com/v1/chat/completions", bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+o.apiKey)

		resp, err := o.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return fmt.Errorf("openai: retriable status %d: %s", resp.StatusCode, string(data))
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("openai: status %d: %s", resp.StatusCode, string(data)))
		}

		var parsed openAIChatResponse
		if err := json.Unmarshal(data, &parsed); err != nil {
			return backoff.Permanent(fmt.Errorf("openai: unmarshal response: %w", err))
		}
		if len(parsed.Choices) == 0 {
			return backoff.Permanent(fmt.Errorf("openai: empty choices"))
		}
		result = parsed.Choices[0].Message.Content
		return nil
	}

	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), o.maxRetries)
	if err := backoff.Retry(op, backoff.WithContext(policy, ctx)); err != nil {
		return "", fmt.Errorf("%w: openai call: %v", ErrNoProvider, err)
	}
	return result, nil
}

func (o *OpenAI) Summarize(ctx context.Context, content string, opts SummarizeOptions) (string, error) {
	prompt := fmt.Sprintf("Summarize to roughly %.0f%% of original length, preserving intent, contradictions, rejected ideas and key decisions.\n\n%s", opts.TargetCompression*100, content)
	return o.call(ctx, "You are a precise, faithful summarizer.", prompt, 0.2)
}

func (o *OpenAI) ScoreEpistemicConfidence(ctx context.Context, claim string, claimCtx string) (model.Confidence, error) {
	prompt := fmt.Sprintf("Given the claim %q and context %q, respond with exactly three numbers between 0 and 1, space-separated, in the order min mean max. No other text.", claim, claimCtx)
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

func (o *OpenAI) DetectContradiction(ctx context.Context, a, b string) (*bool, error) {
	prompt := fmt.Sprintf("Claim A: %q\nClaim B: %q\nDo these contradict? Respond with exactly one word: yes, no, or unsure.", a, b)
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

func (o *OpenAI) ExtractEntities(ctx context.Context, text string) ([]Entity, error) {
	prompt := fmt.Sprintf("Extract named entities as a JSON array of objects with fields \"entity\" and \"type\". Respond with only JSON.\n\n%s", text)
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

func (o *OpenAI) Chat(ctx context.Context, messages []ChatMessage, opts ChatOptions) (string, error) {
	var b strings.Builder
	for _, m := range messages {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}
	return o.call(ctx, opts.System, b.String(), opts.Temperature)
}
