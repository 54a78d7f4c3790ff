// Package prompt holds the prospecting instruction shared by every provider.
package prompt

import "strings"

// Build returns the instruction for keyword. The keyword is embedded verbatim.
//
// Keep this prompt public-safe: it must never carry secrets.
func Build(keyword string) string {
	return strings.TrimSpace(`
Act as a senior B2B Data Engineer. Perform a deep discovery for businesses based on the keyword: "` + keyword + `".

TASKS:
1. Discovery: Find at least 10 real businesses matching this keyword.
2. Extraction: For each business, find their Business Name, Website, Phone, Address, and Email (if publicly available).
3. AI Validation: Verify if the business truly belongs to the requested niche.
4. Contact Formatting: Normalize phone numbers. Identify if they likely use WhatsApp.

Output the data strictly as a JSON array of objects.
`)
}

// BuildWithSchema appends a textual description of the response object for
// providers that cannot enforce a response schema natively.
func BuildWithSchema(keyword string) string {
	return Build(keyword) + "\n\n" + strings.TrimSpace(`
Return ONLY a single JSON object of the form {"leads": [...]} with no surrounding prose.
Each element of "leads" has these keys:
- id (string)
- businessName (string, required)
- legalName (string)
- email (string, required)
- phone (string, required)
- hasWhatsApp (boolean)
- website (string, required)
- address (string, required)
- niche (string)
- relevanceScore (number between 0 and 1)
- confidence (string; one of: High, Medium, Low)
`)
}
