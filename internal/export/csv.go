package export

import (
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/shpitdev/prospect-pipeline/internal/lead"
)

// bom is prepended so spreadsheet tools detect UTF-8.
const bom = "\ufeff"

// Header returns the fixed column names, in order.
func Header() []string {
	return []string{
		"Business Name",
		"Legal Name",
		"Email",
		"Phone",
		"Has WhatsApp",
		"Website",
		"Address",
		"Niche",
		"Relevance Score",
		"Confidence",
	}
}

// Row returns the cell values for one lead, aligned with Header.
func Row(l lead.Lead) []string {
	return []string{
		l.BusinessName,
		l.LegalName,
		l.Email,
		l.Phone,
		yesNo(l.HasWhatsApp),
		l.Website,
		l.Address,
		l.Niche,
		FormatScore(l.RelevanceScore),
		string(l.Confidence),
	}
}

// FormatScore renders a relevance score in its shortest decimal form (0.9, 1, 0.125).
func FormatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

// CSV writes a BOM-prefixed CSV document: the header line followed by one line per lead.
// Lines are separated by "\n" with no trailing newline. Every cell is quoted and embedded
// quotes are doubled, so commas, quotes and newlines in any field are safe.
func CSV(w io.Writer, leads []lead.Lead) error {
	var b strings.Builder
	b.WriteString(bom)
	writeRecord(&b, Header())
	for _, l := range leads {
		b.WriteByte('\n')
		writeRecord(&b, Row(l))
	}
	if _, err := io.WriteString(w, b.String()); err != nil {
		return eris.Wrap(err, "export: write csv")
	}
	return nil
}

func writeRecord(b *strings.Builder, cells []string) {
	for i, c := range cells {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(quote(c))
	}
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
