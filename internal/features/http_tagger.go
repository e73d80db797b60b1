package features

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// HTTPTaggerConfig configures the remote tagger client.
type HTTPTaggerConfig struct {
	BaseURL string        // e.g. http://localhost:8090
	Model   string        // e.g. ko_core_news_sm
	Timeout time.Duration // Default: 5s
}

// HTTPTagger calls an external part-of-speech tagging service, typically a
// spaCy sidecar serving a Korean pipeline.
//
//	POST {BaseURL}/tag  {"text": "...", "model": "..."}
//	200  {"tokens": [{"text": "...", "pos": "NOUN"}, ...]}
type HTTPTagger struct {
	client *resty.Client
	model  string
}

type tagRequest struct {
	Text  string `json:"text"`
	Model string `json:"model,omitempty"`
}

type tagResponse struct {
	Tokens []Token `json:"tokens"`
	Error  string  `json:"error,omitempty"`
}

// NewHTTPTagger creates a remote tagger client.
func NewHTTPTagger(cfg HTTPTaggerConfig) (*HTTPTagger, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("tagger base URL is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")

	return &HTTPTagger{client: client, model: cfg.Model}, nil
}

// Tag sends text to the tagging service.
func (t *HTTPTagger) Tag(ctx context.Context, text string) ([]Token, error) {
	var out tagResponse
	resp, err := t.client.R().
		SetContext(ctx).
		SetBody(tagRequest{Text: text, Model: t.model}).
		SetResult(&out).
		SetError(&out).
		Post("/tag")
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrTaggerUnavailable, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: status %d: %s", ErrTaggerUnavailable, resp.StatusCode(), out.Error)
	}
	return out.Tokens, nil
}

var _ Tagger = (*HTTPTagger)(nil)
