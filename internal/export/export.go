// Package export renders lead lists into downloadable files.
//
// All writers are pure with respect to their input: rows follow the input order
// and no lead is filtered, sorted, or rewritten.
package export

import (
	"io"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/shpitdev/prospect-pipeline/internal/lead"
)

// Format is an export file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ErrNothingToExport is returned when asked to export an empty lead list.
var ErrNothingToExport = eris.New("no leads to export")

// ParseFormat normalizes a user-supplied format name. Empty means CSV.
func ParseFormat(raw string) (Format, error) {
	switch strings.TrimSpace(strings.ToLower(raw)) {
	case "", "csv":
		return FormatCSV, nil
	case "xlsx", "excel":
		return FormatXLSX, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", eris.Errorf("unsupported export format %q", raw)
	}
}

// Ext is the file extension without the dot.
func (f Format) Ext() string {
	return string(f)
}

// ContentType is the MIME type served for downloads.
func (f Format) ContentType() string {
	switch f {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatJSON:
		return "application/json"
	case FormatYAML:
		return "application/yaml"
	default:
		return "text/csv; charset=utf-8"
	}
}

// whitespaceRun covers ASCII whitespace plus Unicode space separators (NBSP, ideographic
// space and friends) so stems are stable for non-ASCII keywords.
var whitespaceRun = regexp.MustCompile(`[\s\v\p{Zs}\x{2028}\x{2029}\x{FEFF}]+`)

// unsafeFilenameChar matches path separators and characters that Windows or common
// shells reject in file names, plus control characters.
var unsafeFilenameChar = regexp.MustCompile(`[/\\:*?"<>|\x00-\x1f\x7f]`)

var lower = cases.Lower(language.Und)

// FilenameStem derives the download name from a keyword: "prospects_" followed by the
// lowercased keyword with each whitespace run replaced by a single underscore.
// The keyword is not trimmed, so leading or trailing whitespace becomes "_".
// Path separators and other characters unsafe in file names each become "_", so the
// stem always names a file in the target directory.
func FilenameStem(keyword string) string {
	stem := whitespaceRun.ReplaceAllString(lower.String(keyword), "_")
	return "prospects_" + unsafeFilenameChar.ReplaceAllString(stem, "_")
}

// Filename is FilenameStem plus the format extension.
func Filename(keyword string, f Format) string {
	return FilenameStem(keyword) + "." + f.Ext()
}

// Write renders leads in the given format.
func Write(w io.Writer, f Format, leads []lead.Lead) error {
	if len(leads) == 0 {
		return ErrNothingToExport
	}
	switch f {
	case FormatCSV:
		return CSV(w, leads)
	case FormatXLSX:
		return XLSX(w, leads)
	case FormatJSON:
		return JSON(w, leads)
	case FormatYAML:
		return YAML(w, leads)
	default:
		return eris.Errorf("unsupported export format %q", string(f))
	}
}
