package gemini

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/shpitdev/prospect-pipeline/internal/lead"
)

type tempNetErr struct{}

func (tempNetErr) Error() string   { return "temp net err" }
func (tempNetErr) Timeout() bool   { return true }
func (tempNetErr) Temporary() bool { return true }

type fakeGenerator struct {
	resp *genai.GenerateContentResponse
	err  error

	model  string
	prompt string
	config *genai.GenerateContentConfig
}

func (f *fakeGenerator) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.config = config
	for _, c := range contents {
		for _, p := range c.Parts {
			f.prompt += p.Text
		}
	}
	return f.resp, f.err
}

func textResponse(text string, chunks ...*genai.GroundingChunk) *genai.GenerateContentResponse {
	cand := &genai.Candidate{
		Content: &genai.Content{Role: "model", Parts: []*genai.Part{{Text: text}}},
	}
	if len(chunks) > 0 {
		cand.GroundingMetadata = &genai.GroundingMetadata{GroundingChunks: chunks}
	}
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{cand}}
}

func TestProspect_SendsSchemaAndSearchTool(t *testing.T) {
	g := &fakeGenerator{resp: textResponse(`{"leads":[]}`)}
	c := newWithGenerator(g, "gemini-test", false, zap.NewNop())

	_, err := c.Prospect(context.Background(), "Marketing Agencies in London")
	require.NoError(t, err)

	assert.Equal(t, "gemini-test", g.model)
	assert.Contains(t, g.prompt, `"Marketing Agencies in London"`)
	require.NotNil(t, g.config)
	assert.Equal(t, "application/json", g.config.ResponseMIMEType)
	require.Len(t, g.config.Tools, 1)
	assert.NotNil(t, g.config.Tools[0].GoogleSearch)

	schema := g.config.ResponseSchema
	require.NotNil(t, schema)
	assert.Equal(t, []string{"leads"}, schema.Required)
	items := schema.Properties["leads"].Items
	require.NotNil(t, items)
	assert.ElementsMatch(t, []string{"businessName", "website", "phone", "email", "address"}, items.Required)
	assert.Len(t, items.Properties, 11)
	assert.Equal(t, genai.TypeBoolean, items.Properties["hasWhatsApp"].Type)
	assert.Equal(t, genai.TypeNumber, items.Properties["relevanceScore"].Type)
}

func TestProspect_MapsToolIsOptIn(t *testing.T) {
	g := &fakeGenerator{resp: textResponse(`{"leads":[]}`)}
	c := newWithGenerator(g, "gemini-test", true, zap.NewNop())

	_, err := c.Prospect(context.Background(), "dentists")
	require.NoError(t, err)
	require.Len(t, g.config.Tools, 2)
	assert.NotNil(t, g.config.Tools[1].GoogleMaps)
}

func TestProspect_EmptyKeyword(t *testing.T) {
	g := &fakeGenerator{}
	c := newWithGenerator(g, "gemini-test", false, zap.NewNop())

	_, err := c.Prospect(context.Background(), "   ")
	assert.ErrorIs(t, err, lead.ErrEmptyKeyword)
	assert.Empty(t, g.model, "no request should be sent")
}

func TestProspect_CopiesLeadsVerbatim(t *testing.T) {
	body := `{"leads":[
		{"id":"1","businessName":"Acme","email":"a@acme.test","phone":"+1 555","hasWhatsApp":true,"website":"acme.test","address":"1 Road","niche":"Ads","relevanceScore":1.7,"confidence":"Sure"},
		{"id":"1","businessName":"Acme","email":"a@acme.test","phone":"+1 555","website":"acme.test","address":"1 Road"}
	]}`
	g := &fakeGenerator{resp: textResponse(body,
		&genai.GroundingChunk{Web: &genai.GroundingChunkWeb{Title: "acme.test", URI: "https://vertexaisearch.test/1"}},
		&genai.GroundingChunk{},
		&genai.GroundingChunk{Maps: &genai.GroundingChunkMaps{Title: "Acme", URI: "https://maps.test/acme"}},
	)}
	c := newWithGenerator(g, "gemini-test", false, zap.NewNop())

	res, err := c.Prospect(context.Background(), "ads")
	require.NoError(t, err)
	assert.Nil(t, res.Malformed)

	// Duplicates and out-of-range values pass through untouched.
	require.Len(t, res.Leads, 2)
	assert.Equal(t, lead.Lead{
		ID: "1", BusinessName: "Acme", Email: "a@acme.test", Phone: "+1 555", HasWhatsApp: true,
		Website: "acme.test", Address: "1 Road", Niche: "Ads", RelevanceScore: 1.7, Confidence: "Sure",
	}, res.Leads[0])
	assert.Equal(t, "", res.Leads[1].LegalName)

	assert.Equal(t, []lead.Source{
		{Kind: lead.SourceWeb, Title: "acme.test", URI: "https://vertexaisearch.test/1"},
		{Kind: lead.SourceMaps, Title: "Acme", URI: "https://maps.test/acme"},
	}, res.Sources)
}

func TestParseResponse(t *testing.T) {
	c := newWithGenerator(&fakeGenerator{}, "gemini-test", false, zap.NewNop())

	tests := []struct {
		name          string
		resp          *genai.GenerateContentResponse
		wantLeads     int
		wantMalformed bool
	}{
		{name: "nil response", resp: nil, wantLeads: 0},
		{name: "no candidates", resp: &genai.GenerateContentResponse{}, wantLeads: 0},
		{name: "empty text", resp: textResponse(""), wantLeads: 0},
		{name: "object without leads", resp: textResponse(`{"other":1}`), wantLeads: 0},
		{name: "not json", resp: textResponse("Here are some leads: Acme"), wantMalformed: true},
		{name: "truncated json", resp: textResponse(`{"leads":[{"businessName":"A"`), wantMalformed: true},
		{name: "unparseable score", resp: textResponse(`{"leads":[{"businessName":"A","relevanceScore":"high"}]}`), wantLeads: 1},
		{name: "string score and whatsapp", resp: textResponse(`{"leads":[{"businessName":"A","relevanceScore":"0.8","hasWhatsApp":"yes"},{"businessName":"B"}]}`), wantLeads: 2},
		{name: "bare array", resp: textResponse(`[{"businessName":"A"}]`), wantLeads: 0},
		{name: "one lead", resp: textResponse(`{"leads":[{"businessName":"A"}]}`), wantLeads: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := c.parseResponse(tt.resp)
			assert.NotNil(t, res.Leads)
			assert.NotNil(t, res.Sources)
			assert.Len(t, res.Leads, tt.wantLeads)
			if tt.wantMalformed {
				assert.True(t, errors.Is(res.Malformed, lead.ErrMalformedResponse), "malformed=%v", res.Malformed)
				assert.Empty(t, res.Sources)
			} else {
				assert.Nil(t, res.Malformed)
			}
		})
	}
}

func TestParseResponse_MalformedDropsSources(t *testing.T) {
	c := newWithGenerator(&fakeGenerator{}, "gemini-test", false, zap.NewNop())
	res := c.parseResponse(textResponse("nope",
		&genai.GroundingChunk{Web: &genai.GroundingChunkWeb{Title: "t", URI: "u"}},
	))
	assert.Empty(t, res.Sources)
	assert.Error(t, res.Malformed)
}

func TestParseResponse_LooseFieldsKeepSetAndSources(t *testing.T) {
	c := newWithGenerator(&fakeGenerator{}, "gemini-test", false, zap.NewNop())
	res := c.parseResponse(textResponse(
		`{"leads":[{"businessName":"A","relevanceScore":"0.8","hasWhatsApp":"yes"},{"businessName":"B","relevanceScore":0.4}]}`,
		&genai.GroundingChunk{Web: &genai.GroundingChunkWeb{Title: "t", URI: "u"}},
	))
	require.Nil(t, res.Malformed)
	require.Len(t, res.Leads, 2)
	assert.Equal(t, 0.8, res.Leads[0].RelevanceScore)
	assert.True(t, res.Leads[0].HasWhatsApp)
	assert.Equal(t, "B", res.Leads[1].BusinessName)
	assert.Equal(t, []lead.Source{{Kind: lead.SourceWeb, Title: "t", URI: "u"}}, res.Sources)
}

func TestParseResponse_ArrayBodyKeepsSources(t *testing.T) {
	c := newWithGenerator(&fakeGenerator{}, "gemini-test", false, zap.NewNop())
	res := c.parseResponse(textResponse(`[{"businessName":"A"}]`,
		&genai.GroundingChunk{Web: &genai.GroundingChunkWeb{Title: "t", URI: "u"}},
	))
	assert.Nil(t, res.Malformed)
	assert.Empty(t, res.Leads)
	assert.Len(t, res.Sources, 1)
}

func TestProspect_RequestErrorPropagates(t *testing.T) {
	g := &fakeGenerator{err: genai.APIError{Code: 403, Status: "PERMISSION_DENIED", Message: "API key not valid"}}
	c := newWithGenerator(g, "gemini-test", false, zap.NewNop())

	res, err := c.Prospect(context.Background(), "dentists")
	require.Error(t, err)
	assert.Empty(t, res.Leads)

	var re *lead.RequestError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "gemini", re.Provider)
	assert.Equal(t, 403, re.Code)
	assert.Equal(t, "PERMISSION_DENIED", re.Status)
	assert.False(t, re.Transient)
}

func TestClassifyErr(t *testing.T) {
	tests := []struct {
		name          string
		in            error
		wantCode      int
		wantTransient bool
	}{
		{name: "api_429", in: genai.APIError{Code: 429}, wantCode: 429, wantTransient: true},
		{name: "api_500", in: genai.APIError{Code: 500}, wantCode: 500, wantTransient: true},
		{name: "api_401", in: genai.APIError{Code: 401}, wantCode: 401},
		{name: "net_timeout", in: tempNetErr{}, wantTransient: true},
		{name: "deadline", in: context.DeadlineExceeded, wantTransient: true},
		{name: "canceled", in: context.Canceled},
		{name: "plain", in: errors.New("boom")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyErr(tt.in)
			var re *lead.RequestError
			require.True(t, errors.As(got, &re), "got %T", got)
			assert.Equal(t, tt.wantCode, re.Code)
			assert.Equal(t, tt.wantTransient, re.Transient)
		})
	}
	assert.Nil(t, classifyErr(nil))
}
