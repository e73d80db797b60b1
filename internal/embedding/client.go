package embedding

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	DefaultModel     = "jhgan/ko-sroberta-multitask"
	DefaultDimension = 768

	defaultTimeout = 30 * time.Second
)

// Config points the client at an embedding server.
type Config struct {
	BaseURL   string // e.g. http://localhost:8080/v1
	APIKey    string // optional bearer token
	Model     string
	Dimension int
	Timeout   time.Duration
}

// Client talks to an OpenAI-compatible embeddings endpoint, typically a
// sentence-transformers server hosting a Korean model.
//
//	POST {BaseURL}/embeddings  {"input": [...], "model": "..."}
//	200  {"data": [{"index": 0, "embedding": [...]}, ...]}
type Client struct {
	http      *resty.Client
	model     string
	dimension int
}

type embedRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type embedDatum struct {
	Index     int       `json:"index"`
	Embedding []float32 `json:"embedding"`
}

type embedResponse struct {
	Data  []embedDatum `json:"data"`
	Error *apiError    `json:"error,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// NewClient fills in the default model, dimension and timeout.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("embedding base URL is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = DefaultDimension
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	rc := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json")
	if cfg.APIKey != "" {
		rc.SetAuthToken(cfg.APIKey)
	}

	return &Client{http: rc, model: cfg.Model, dimension: cfg.Dimension}, nil
}

// Embed sends all texts in one request and normalizes the returned vectors.
// Any malformed reply fails the whole batch with ErrEmbeddingUnavailable.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var out embedResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(embedRequest{Input: texts, Model: c.model}).
		SetResult(&out).
		SetError(&out).
		Post("/embeddings")
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}
	if resp.IsError() {
		if out.Error != nil {
			return nil, fmt.Errorf("%w: status %d: %s (%s)", ErrEmbeddingUnavailable, resp.StatusCode(), out.Error.Message, out.Error.Type)
		}
		return nil, fmt.Errorf("%w: status %d", ErrEmbeddingUnavailable, resp.StatusCode())
	}

	return c.collect(out.Data, len(texts))
}

// collect places vectors by their reported index and validates each slot.
func (c *Client) collect(data []embedDatum, n int) ([][]float32, error) {
	vecs := make([][]float32, n)
	for _, d := range data {
		if d.Index < 0 || d.Index >= n {
			return nil, fmt.Errorf("%w: index %d out of range", ErrEmbeddingUnavailable, d.Index)
		}
		vecs[d.Index] = d.Embedding
	}
	for i, v := range vecs {
		switch {
		case len(v) != c.dimension:
			return nil, fmt.Errorf("%w: input %d: dimension %d, want %d", ErrEmbeddingUnavailable, i, len(v), c.dimension)
		case !Normalize(v):
			return nil, fmt.Errorf("%w: input %d: zero vector", ErrEmbeddingUnavailable, i)
		}
	}
	return vecs, nil
}

func (c *Client) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (c *Client) Model() string  { return c.model }
func (c *Client) Dimension() int { return c.dimension }
