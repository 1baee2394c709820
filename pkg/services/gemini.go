package services

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/Devcavi19/adal-ui/pkg/config"
)

const geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// embeddingModel is the model behind the prebuilt index; query vectors
// must come from the same model or similarity scores are meaningless.
const embeddingModel = "embedding-001"

var ErrGeminiUnavailable = errors.New("gemini api key is not configured")

// Generator streams incremental text for an assembled prompt. Fragments
// reach onDelta in arrival order; the concatenated text is returned.
type Generator interface {
	Stream(ctx context.Context, prompt string, onDelta func(string)) (string, error)
}

// Embedder turns a query into a vector compatible with the index.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// GeminiService calls the Generative Language API directly over HTTP.
type GeminiService struct {
	apiKey string
	model  string
}

func NewGeminiService() *GeminiService {
	return &GeminiService{
		apiKey: config.GoogleAPIKey,
		model:  config.GeminiModel,
	}
}

// Stream generates a response for prompt, forwarding each text fragment
// to onDelta as it arrives. Retries once on quota/overload errors.
func (s *GeminiService) Stream(ctx context.Context, prompt string, onDelta func(string)) (string, error) {
	if strings.TrimSpace(s.apiKey) == "" {
		log.Printf("[gemini] GOOGLE_API_KEY is not set")
		return "", ErrGeminiUnavailable
	}

	body, _ := json.Marshal(map[string]any{
		"contents": []any{
			map[string]any{
				"role":  "user",
				"parts": []any{map[string]any{"text": prompt}},
			},
		},
		"generationConfig": map[string]any{
			"temperature":     0.3,
			"maxOutputTokens": 2048,
		},
	})

	text, err := s.callStreamGenerateContent(ctx, body, onDelta)
	if err != nil && isRetriable(err) && text == "" {
		sleepWithContext(ctx, 2*time.Second)
		text, err = s.callStreamGenerateContent(ctx, body, onDelta)
	}
	if err != nil {
		return text, err
	}
	return strings.TrimSpace(text), nil
}

// Embed requests an embedding vector for text from the embedding model.
func (s *GeminiService) Embed(ctx context.Context, text string) ([]float64, error) {
	if strings.TrimSpace(s.apiKey) == "" {
		return nil, ErrGeminiUnavailable
	}

	body, _ := json.Marshal(map[string]any{
		"model": "models/" + embeddingModel,
		"content": map[string]any{
			"parts": []any{map[string]any{"text": text}},
		},
		"taskType": "RETRIEVAL_QUERY",
	})

	url := fmt.Sprintf("%s/models/%s:embedContent?key=%s", geminiBaseURL, embeddingModel, s.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http error: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read error: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBytes)))
	}

	var parsed struct {
		Embedding struct {
			Values []float64 `json:"values"`
		} `json:"embedding"`
	}
	if err := json.Unmarshal(respBytes, &parsed); err != nil {
		return nil, fmt.Errorf("decode error: %w", err)
	}
	if len(parsed.Embedding.Values) == 0 {
		return nil, errors.New("empty embedding in response")
	}
	return parsed.Embedding.Values, nil
}

func (s *GeminiService) callStreamGenerateContent(ctx context.Context, body []byte, onDelta func(string)) (string, error) {
	url := fmt.Sprintf("%s/models/%s:streamGenerateContent?alt=sse&key=%s", geminiBaseURL, s.model, s.apiKey)
	log.Printf("[gemini] streaming model %s", s.model)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("http error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	full := strings.Builder{}
	scanner := bufio.NewScanner(resp.Body)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(strings.ToLower(line), "data:") {
			line = strings.TrimSpace(line[5:])
		}
		var obj map[string]any
		if err := json.Unmarshal([]byte(line), &obj); err != nil {
			continue
		}
		for _, txt := range candidateTexts(obj) {
			full.WriteString(txt)
			if onDelta != nil {
				onDelta(txt)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return full.String(), fmt.Errorf("stream read error: %w", err)
	}
	return full.String(), nil
}

// candidateTexts pulls the text parts out of one streamed response chunk.
func candidateTexts(obj map[string]any) []string {
	var out []string
	cands, ok := obj["candidates"].([]any)
	if !ok || len(cands) == 0 {
		return nil
	}
	first, ok := cands[0].(map[string]any)
	if !ok {
		return nil
	}
	content, ok := first["content"].(map[string]any)
	if !ok {
		return nil
	}
	parts, ok := content["parts"].([]any)
	if !ok {
		return nil
	}
	for _, p := range parts {
		if pm, ok := p.(map[string]any); ok {
			if txt, ok := pm["text"].(string); ok && txt != "" {
				out = append(out, txt)
			}
		}
	}
	return out
}

func isRetriable(err error) bool {
	if err == nil {
		return false
	}
	e := strings.ToLower(err.Error())
	if strings.Contains(e, "status 503") || strings.Contains(e, "unavailable") {
		return true
	}
	if strings.Contains(e, "status 429") || strings.Contains(e, "resource_exhausted") || strings.Contains(e, "quota") {
		return true
	}
	return false
}

func sleepWithContext(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
