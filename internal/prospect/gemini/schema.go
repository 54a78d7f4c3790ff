package gemini

import "google.golang.org/genai"

// responseSchema is the structured output contract. Property names and the
// required set are shared with lead.Lead's JSON tags.
var responseSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"leads": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"id":             {Type: genai.TypeString},
					"businessName":   {Type: genai.TypeString},
					"legalName":      {Type: genai.TypeString},
					"email":          {Type: genai.TypeString},
					"phone":          {Type: genai.TypeString},
					"hasWhatsApp":    {Type: genai.TypeBoolean},
					"website":        {Type: genai.TypeString},
					"address":        {Type: genai.TypeString},
					"niche":          {Type: genai.TypeString},
					"relevanceScore": {Type: genai.TypeNumber},
					"confidence":     {Type: genai.TypeString},
				},
				Required: []string{"businessName", "website", "phone", "email", "address"},
			},
		},
	},
	Required: []string{"leads"},
}
