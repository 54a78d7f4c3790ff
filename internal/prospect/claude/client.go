// Package claude prospects leads through the Anthropic Messages API.
//
// The Messages API has no search grounding, so results never carry sources.
package claude

import (
	"context"
	"errors"
	"net"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/shpitdev/prospect-pipeline/internal/lead"
	"github.com/shpitdev/prospect-pipeline/internal/prospect/prompt"
	"github.com/shpitdev/prospect-pipeline/internal/redact"
)

const (
	DefaultModel     = "claude-sonnet-4-5-20250929"
	DefaultMaxTokens = 8192

	providerName = "anthropic"
)

const systemPrompt = "You are a B2B research assistant. You answer with a single JSON object and nothing else."

type Config struct {
	APIKey    string
	Model     string
	BaseURL   string
	MaxTokens int64
	Logger    *zap.Logger
}

// Client prospects leads with one Messages call per keyword.
type Client struct {
	client    sdk.Client
	model     string
	maxTokens int64
	log       *zap.Logger
}

func New(cfg Config) (*Client, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, eris.New("ANTHROPIC_API_KEY is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.L()
	}

	opts := []option.RequestOption{
		option.WithAPIKey(key),
		option.WithMaxRetries(0),
	}
	if u := strings.TrimSpace(cfg.BaseURL); u != "" {
		opts = append(opts, option.WithBaseURL(u))
	}

	return &Client{
		client:    sdk.NewClient(opts...),
		model:     model,
		maxTokens: maxTokens,
		log:       logger.With(zap.String("provider", providerName), zap.String("model", model)),
	}, nil
}

func (c *Client) Model() string {
	return c.model
}

// Prospect sends the prospecting prompt with the response shape spelled out in text.
func (c *Client) Prospect(ctx context.Context, keyword string) (lead.Result, error) {
	if strings.TrimSpace(keyword) == "" {
		return lead.Result{}, lead.ErrEmptyKeyword
	}

	msg, err := c.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(c.model),
		MaxTokens: c.maxTokens,
		System:    []sdk.TextBlockParam{{Text: systemPrompt}},
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(prompt.BuildWithSchema(keyword))),
		},
	})
	if err != nil {
		return lead.Result{}, classifyErr(err)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return c.parseText(b.String()), nil
}

func (c *Client) parseText(text string) lead.Result {
	raw := stripFences(text)

	leads, skipped, err := lead.DecodeLeads([]byte(raw))
	if err != nil {
		c.log.Warn("failed to parse model response",
			zap.Int("body_bytes", len(raw)),
			zap.String("error", redact.Error(err)),
		)
		return lead.Empty(eris.Wrapf(lead.ErrMalformedResponse, "anthropic: parse json: %v", err))
	}
	if skipped > 0 {
		c.log.Warn("skipped non-object lead entries", zap.Int("skipped", skipped))
	}
	return lead.Result{Leads: leads, Sources: []lead.Source{}}
}

// stripFences removes a surrounding ```json ... ``` block if present.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func classifyErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &lead.RequestError{Provider: providerName, Transient: errors.Is(err, context.DeadlineExceeded), Err: err}
	}
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		return &lead.RequestError{
			Provider:  providerName,
			Code:      apiErr.StatusCode,
			Status:    anthropicErrorType(apiErr),
			Transient: apiErr.StatusCode == 429 || apiErr.StatusCode == 529 || apiErr.StatusCode/100 == 5,
			Err:       err,
		}
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return &lead.RequestError{Provider: providerName, Transient: ne.Timeout(), Err: err}
	}
	return &lead.RequestError{Provider: providerName, Err: err}
}

// anthropicErrorType pulls error.type (e.g. "rate_limit_error") out of the raw body.
func anthropicErrorType(e *sdk.Error) string {
	var body struct {
		Error struct {
			Type string `json:"type"`
		} `json:"error"`
	}
	if err := json.Unmarshal([]byte(e.RawJSON()), &body); err != nil {
		return ""
	}
	return body.Error.Type
}
