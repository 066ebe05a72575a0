package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
)

type Adapter struct {
	key     string
	model   string
	baseURL string
	client  *http.Client
}

const (
	requestTimeout = 5 * time.Minute
	temperature    = 0.9
)

func New(apiKey, model, baseURL string) *Adapter {
	if model == "" {
		model = "anthropic/claude-3.5-sonnet"
	}
	baseURL = normalizeBaseURL(baseURL)
	return &Adapter{key: apiKey, model: model, baseURL: baseURL, client: &http.Client{Timeout: 10 * time.Minute}}
}

// Produce sends the storyboard prompt as a single chat message and returns the JSON object
// found in the reply.
func (a *Adapter) Produce(ctx context.Context, prompt string) ([]byte, error) {
	if a.key == "" {
		return nil, errors.New("openrouter: api key is required")
	}
	payload := map[string]any{
		"model":       a.model,
		"stream":      false,
		"temperature": temperature,
		"messages": []map[string]any{
			{"role": "user", "content": prompt},
		},
		"response_format": map[string]any{"type": "json_object"},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	url := a.baseURL + "/api/v1/chat/completions"

	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+a.key)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("openrouter timeout after %s (model=%s)", requestTimeout, a.model)
		}
		return nil, errors.New(redactSecrets(err.Error(), a.key))
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		rb, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return nil, fmt.Errorf("openrouter status %d and read body failed: %v", resp.StatusCode, readErr)
		}
		return nil, fmt.Errorf("openrouter status %d: %s", resp.StatusCode, truncate(redactSecrets(string(rb), a.key), 400))
	}

	var raw struct {
		Choices []struct {
			Message struct {
				Content any `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("openrouter: decode response: %w", err)
	}
	if len(raw.Choices) == 0 {
		return nil, errors.New("openrouter: no choices returned")
	}

	content, err := messageContentToString(raw.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	clean, err := extractJSONObject(content)
	if err != nil {
		return nil, err
	}
	return []byte(clean), nil
}

func messageContentToString(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case []any:
		// Some providers return an array of {type,text} parts.
		var b strings.Builder
		for _, it := range x {
			m, ok := it.(map[string]any)
			if !ok {
				continue
			}
			if t, ok := m["text"].(string); ok {
				b.WriteString(t)
			}
		}
		s := b.String()
		if strings.TrimSpace(s) == "" {
			return "", errors.New("openrouter: empty content")
		}
		return s, nil
	default:
		return "", fmt.Errorf("openrouter: unexpected content type %T", v)
	}
}

func extractJSONObject(s string) (string, error) {
	t := strings.TrimSpace(s)
	if t == "" {
		return "", errors.New("openrouter: empty content")
	}

	// Strip markdown code fences.
	if strings.HasPrefix(t, "```") {
		if i := strings.Index(t, "\n"); i >= 0 {
			t = t[i+1:]
		}
		if j := strings.LastIndex(t, "```"); j >= 0 {
			t = t[:j]
		}
		t = strings.TrimSpace(t)
	}

	// Best-effort: take the outermost JSON object.
	start := strings.Index(t, "{")
	end := strings.LastIndex(t, "}")
	if start >= 0 && end > start {
		return t[start : end+1], nil
	}

	return "", fmt.Errorf("openrouter: could not locate JSON object in: %q", truncate(t, 200))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

var (
	bearerTokenRE = regexp.MustCompile(`(?i)\bBearer\s+[A-Za-z0-9._-]+\b`)
	authHeaderRE  = regexp.MustCompile(`(?i)(authorization\s*[:=]\s*)([^\n\r,;]+)`)
	apiKeyFieldRE = regexp.MustCompile(`(?i)(api[_-]?key\s*[:=]\s*)([^\n\r,;]+)`)
)

func redactSecrets(s, apiKey string) string {
	if s == "" {
		return s
	}
	out := s
	if apiKey != "" {
		out = strings.ReplaceAll(out, apiKey, "[REDACTED]")
	}
	out = bearerTokenRE.ReplaceAllString(out, "Bearer [REDACTED]")
	out = authHeaderRE.ReplaceAllString(out, "${1}[REDACTED]")
	out = apiKeyFieldRE.ReplaceAllString(out, "${1}[REDACTED]")
	return out
}
