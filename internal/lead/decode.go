package lead

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// DecodeLeads reads the model's JSON body. Only a syntax error is returned; any
// well-formed body yields a (possibly empty) lead list.
//
// An object body contributes its "leads" array. Any other shape gives no leads.
// Array elements that are not objects are skipped and counted in skipped.
// Fields with an unexpected JSON type are coerced instead of failing the element.
func DecodeLeads(raw []byte) (leads []Lead, skipped int, err error) {
	raw = bytes.TrimSpace(raw)
	leads = []Lead{}
	if len(raw) == 0 {
		return leads, 0, nil
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, 0, err
	}
	if raw[0] != '{' {
		return leads, 0, nil
	}

	var body struct {
		Leads json.RawMessage `json:"leads"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return leads, 0, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(body.Leads, &items); err != nil {
		return leads, 0, nil
	}
	for _, item := range items {
		var l Lead
		if err := json.Unmarshal(item, &l); err != nil {
			skipped++
			continue
		}
		leads = append(leads, l)
	}
	return leads, skipped, nil
}

type wireLead struct {
	ID             looseString `json:"id"`
	BusinessName   looseString `json:"businessName"`
	LegalName      looseString `json:"legalName"`
	Email          looseString `json:"email"`
	Phone          looseString `json:"phone"`
	HasWhatsApp    looseBool   `json:"hasWhatsApp"`
	Website        looseString `json:"website"`
	Address        looseString `json:"address"`
	Niche          looseString `json:"niche"`
	RelevanceScore looseFloat  `json:"relevanceScore"`
	Confidence     looseString `json:"confidence"`
}

// UnmarshalJSON accepts the schema types plus the loose shapes models tend to emit:
// numbers or booleans in text fields, numeric strings for relevanceScore, and
// "yes"/"true" style strings for hasWhatsApp.
func (l *Lead) UnmarshalJSON(b []byte) error {
	var w wireLead
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*l = Lead{
		ID:             string(w.ID),
		BusinessName:   string(w.BusinessName),
		LegalName:      string(w.LegalName),
		Email:          string(w.Email),
		Phone:          string(w.Phone),
		HasWhatsApp:    bool(w.HasWhatsApp),
		Website:        string(w.Website),
		Address:        string(w.Address),
		Niche:          string(w.Niche),
		RelevanceScore: float64(w.RelevanceScore),
		Confidence:     Confidence(w.Confidence),
	}
	return nil
}

type looseString string

func (s *looseString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*s = ""
	case len(b) > 0 && b[0] == '"':
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = looseString(v)
	default:
		*s = looseString(b)
	}
	return nil
}

type looseBool bool

func (v *looseBool) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("true")):
		*v = true
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "true", "yes", "y", "1":
			*v = true
		default:
			*v = false
		}
	default:
		f, err := strconv.ParseFloat(string(b), 64)
		*v = looseBool(err == nil && f != 0)
	}
	return nil
}

type looseFloat float64

func (v *looseFloat) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		b = []byte(strings.TrimSpace(s))
	}
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		f = 0
	}
	*v = looseFloat(f)
	return nil
}
