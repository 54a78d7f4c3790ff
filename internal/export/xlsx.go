package export

import (
	"io"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/shpitdev/prospect-pipeline/internal/lead"
)

// SheetName is the worksheet that holds exported leads.
const SheetName = "Leads"

// XLSX writes a single-sheet workbook with the same columns as CSV.
// Relevance scores are numeric cells; everything else is text.
func XLSX(w io.Writer, leads []lead.Lead) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(SheetName)
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, name := range Header() {
		header.AddCell().SetString(name)
	}

	for _, l := range leads {
		row := sheet.AddRow()
		row.AddCell().SetString(l.BusinessName)
		row.AddCell().SetString(l.LegalName)
		row.AddCell().SetString(l.Email)
		row.AddCell().SetString(l.Phone)
		row.AddCell().SetString(yesNo(l.HasWhatsApp))
		row.AddCell().SetString(l.Website)
		row.AddCell().SetString(l.Address)
		row.AddCell().SetString(l.Niche)
		row.AddCell().SetFloat(l.RelevanceScore)
		row.AddCell().SetString(string(l.Confidence))
	}

	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "export: write xlsx")
	}
	return nil
}
