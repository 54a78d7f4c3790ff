package gemini

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/shpitdev/prospect-pipeline/internal/lead"
	"github.com/shpitdev/prospect-pipeline/internal/prospect/prompt"
	"github.com/shpitdev/prospect-pipeline/internal/redact"
)

// DefaultModel is used when Config.Model is empty.
const DefaultModel = "gemini-3-flash-preview"

const providerName = "gemini"

type Config struct {
	APIKey string
	Model  string

	// BaseURL overrides the Gemini API base URL. Useful for proxies/testing.
	BaseURL string

	// EnableMaps adds the Google Maps grounding tool next to Google Search.
	EnableMaps bool

	Logger *zap.Logger
}

// generator is the slice of *genai.Models the client needs.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client prospects leads with a single grounded Gemini call.
type Client struct {
	models     generator
	model      string
	enableMaps bool
	log        *zap.Logger
}

func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, eris.New("GEMINI_API_KEY is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}

	cc := &genai.ClientConfig{
		APIKey:  strings.TrimSpace(cfg.APIKey),
		Backend: genai.BackendGeminiAPI,
	}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		cc.HTTPOptions.BaseURL = strings.TrimSpace(cfg.BaseURL)
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, eris.Wrap(err, "gemini: new client")
	}
	return newWithGenerator(client.Models, model, cfg.EnableMaps, cfg.Logger), nil
}

func newWithGenerator(g generator, model string, enableMaps bool, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.L()
	}
	return &Client{
		models:     g,
		model:      model,
		enableMaps: enableMaps,
		log:        logger.With(zap.String("provider", providerName), zap.String("model", model)),
	}
}

// Model reports the model id sent with every request.
func (c *Client) Model() string {
	return c.model
}

// Prospect issues one GenerateContent call for keyword.
//
// A body that is not valid JSON is not an error: the result is empty and carries
// lead.ErrMalformedResponse in Result.Malformed. Transport and API failures are
// returned as *lead.RequestError.
func (c *Client) Prospect(ctx context.Context, keyword string) (lead.Result, error) {
	if strings.TrimSpace(keyword) == "" {
		return lead.Result{}, lead.ErrEmptyKeyword
	}

	resp, err := c.models.GenerateContent(
		ctx,
		c.model,
		genai.Text(prompt.Build(keyword)),
		c.requestConfig(),
	)
	if err != nil {
		return lead.Result{}, classifyErr(err)
	}
	return c.parseResponse(resp), nil
}

func (c *Client) requestConfig() *genai.GenerateContentConfig {
	tools := []*genai.Tool{
		{GoogleSearch: &genai.GoogleSearch{}},
	}
	if c.enableMaps {
		tools = append(tools, &genai.Tool{GoogleMaps: &genai.GoogleMaps{}})
	}
	return &genai.GenerateContentConfig{
		Tools:            tools,
		CandidateCount:   1,
		ResponseMIMEType: "application/json",
		ResponseSchema:   responseSchema,
	}
}

func (c *Client) parseResponse(resp *genai.GenerateContentResponse) lead.Result {
	raw := ""
	if resp != nil {
		raw = resp.Text()
	}

	leads, skipped, err := lead.DecodeLeads([]byte(raw))
	if err != nil {
		malformed := eris.Wrapf(lead.ErrMalformedResponse, "gemini: parse structured json: %v", err)
		c.log.Warn("failed to parse model response",
			zap.Int("body_bytes", len(raw)),
			zap.String("error", redact.Error(err)),
		)
		return lead.Empty(malformed)
	}
	if skipped > 0 {
		c.log.Warn("skipped non-object lead entries", zap.Int("skipped", skipped))
	}
	return lead.Result{
		Leads:   leads,
		Sources: extractSources(resp),
	}
}

func classifyErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &lead.RequestError{Provider: providerName, Transient: errors.Is(err, context.DeadlineExceeded), Err: err}
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &lead.RequestError{
			Provider:  providerName,
			Code:      apiErr.Code,
			Status:    apiErr.Status,
			Transient: apiErr.Code == 429 || apiErr.Code/100 == 5,
			Err:       err,
		}
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return &lead.RequestError{Provider: providerName, Transient: ne.Timeout(), Err: err}
	}
	return &lead.RequestError{Provider: providerName, Err: err}
}

// extractSources reads grounding chunks from the first candidate. Chunks without a
// web or maps payload are skipped; order is preserved and nothing is deduplicated.
func extractSources(resp *genai.GenerateContentResponse) []lead.Source {
	out := []lead.Source{}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return out
	}
	gm := resp.Candidates[0].GroundingMetadata
	if gm == nil {
		return out
	}
	for _, chunk := range gm.GroundingChunks {
		if chunk == nil {
			continue
		}
		switch {
		case chunk.Web != nil:
			out = append(out, lead.Source{
				Kind:  lead.SourceWeb,
				Title: strings.TrimSpace(chunk.Web.Title),
				URI:   strings.TrimSpace(chunk.Web.URI),
			})
		case chunk.Maps != nil:
			out = append(out, lead.Source{
				Kind:  lead.SourceMaps,
				Title: strings.TrimSpace(chunk.Maps.Title),
				URI:   strings.TrimSpace(chunk.Maps.URI),
			})
		}
	}
	return out
}
