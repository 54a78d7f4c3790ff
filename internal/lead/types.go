package lead

import (
	"context"
	"strings"
)

// Confidence is the model's own qualitative label for a lead.
type Confidence string

const (
	ConfidenceHigh   Confidence = "High"
	ConfidenceMedium Confidence = "Medium"
	ConfidenceLow    Confidence = "Low"
)

// Valid reports whether c is one of the labels the prompt asks for.
// Leads are never rejected on this basis; it is for display and logging.
func (c Confidence) Valid() bool {
	switch c {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
		return true
	default:
		return false
	}
}

// Lead is one discovered business as returned by the model.
//
// Field names match the response schema sent to the model and must not change.
type Lead struct {
	ID             string     `json:"id" yaml:"id"`
	BusinessName   string     `json:"businessName" yaml:"businessName"`
	LegalName      string     `json:"legalName,omitempty" yaml:"legalName,omitempty"`
	Email          string     `json:"email" yaml:"email"`
	Phone          string     `json:"phone" yaml:"phone"`
	HasWhatsApp    bool       `json:"hasWhatsApp" yaml:"hasWhatsApp"`
	Website        string     `json:"website" yaml:"website"`
	Address        string     `json:"address" yaml:"address"`
	Niche          string     `json:"niche" yaml:"niche"`
	RelevanceScore float64    `json:"relevanceScore" yaml:"relevanceScore"`
	Confidence     Confidence `json:"confidence" yaml:"confidence"`
}

// Missing returns the JSON names of required text fields that are blank.
// LegalName is optional and never reported.
func (l Lead) Missing() []string {
	var out []string
	check := func(name, v string) {
		if strings.TrimSpace(v) == "" {
			out = append(out, name)
		}
	}
	check("id", l.ID)
	check("businessName", l.BusinessName)
	check("email", l.Email)
	check("phone", l.Phone)
	check("website", l.Website)
	check("address", l.Address)
	check("niche", l.Niche)
	check("confidence", string(l.Confidence))
	return out
}

// Complete reports whether every required field is present.
func (l Lead) Complete() bool {
	return len(l.Missing()) == 0
}

// SourceKind says which grounding tool produced a citation.
type SourceKind string

const (
	SourceWeb  SourceKind = "web"
	SourceMaps SourceKind = "maps"
)

// Source is a grounding citation attached to a result set, not to any lead.
type Source struct {
	Kind  SourceKind `json:"kind" yaml:"kind"`
	Title string     `json:"title" yaml:"title"`
	URI   string     `json:"uri" yaml:"uri"`
}

// Result is the output of a single prospecting call.
type Result struct {
	Leads   []Lead
	Sources []Source

	// Malformed is set when the model answered but the body could not be parsed.
	// Leads and Sources are empty in that case. It is never returned as an error.
	Malformed error
}

// Empty returns the result used for the parse-failure path.
func Empty(malformed error) Result {
	return Result{
		Leads:     []Lead{},
		Sources:   []Source{},
		Malformed: malformed,
	}
}

// Prospector discovers leads for a keyword.
type Prospector interface {
	Prospect(ctx context.Context, keyword string) (Result, error)
}

// ProspectFunc adapts a function to the Prospector interface.
type ProspectFunc func(ctx context.Context, keyword string) (Result, error)

func (f ProspectFunc) Prospect(ctx context.Context, keyword string) (Result, error) {
	return f(ctx, keyword)
}
