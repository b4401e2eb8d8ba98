// Package certificate renders donation certificates as PDF documents.
package certificate

import (
	"bytes"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/go-pdf/fpdf"

	"naturelife-cert/internal/models"
)

// Options configure certificate rendering
type Options struct {
	Title        string
	Organization string
}

// Generator renders certificates. It has no side effects; spooling the
// result to disk is up to the caller.
type Generator struct {
	opts Options
	now  func() time.Time
}

func NewGenerator(opts Options) *Generator {
	if opts.Title == "" {
		opts.Title = "Certificate of Donation"
	}
	return &Generator{opts: opts, now: time.Now}
}

// Field is one labelled line of the certificate body
type Field struct {
	Label string
	Value string
}

// Fields returns the labelled values in the order they are printed
func Fields(rec *models.DonorRecord) []Field {
	return []Field{
		{"First name", rec.First},
		{"Last name", rec.Last},
		{"Country", rec.Country},
		{"Donation", rec.Amount.StringFixed(2)},
		{"Currency", rec.Currency},
	}
}

// Generate renders a single A4 landscape page for the donor
func (g *Generator) Generate(rec *models.DonorRecord) (*Artifact, error) {
	if rec == nil {
		return nil, fmt.Errorf("failed to generate certificate: no donor record")
	}

	issued := g.now()

	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetCompression(false)
	pdf.SetCatalogSort(true)
	pdf.SetCreationDate(issued)
	pdf.SetModificationDate(issued)
	pdf.SetTitle(g.opts.Title, true)
	pdf.SetAuthor(g.opts.Organization, true)
	pdf.SetMargins(25, 25, 25)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pageW, _ := pdf.GetPageSize()
	width := pageW - 50

	pdf.SetLineWidth(1.2)
	pdf.Rect(12, 12, pageW-24, 186, "D")

	pdf.SetFont("Helvetica", "B", 30)
	pdf.SetY(35)
	pdf.CellFormat(width, 14, tr(g.opts.Title), "", 1, "C", false, 0, "")

	if g.opts.Organization != "" {
		pdf.SetFont("Helvetica", "", 14)
		pdf.CellFormat(width, 10, tr(g.opts.Organization), "", 1, "C", false, 0, "")
	}

	pdf.Ln(14)
	for _, f := range Fields(rec) {
		pdf.SetX(70)
		pdf.SetFont("Helvetica", "B", 16)
		pdf.CellFormat(50, 11, tr(f.Label+":"), "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 16)
		pdf.CellFormat(110, 11, tr(f.Value), "", 1, "L", false, 0, "")
	}

	pdf.SetY(170)
	pdf.SetFont("Helvetica", "I", 11)
	pdf.CellFormat(width, 8, tr("Issued "+issued.Format("2 January 2006")), "", 1, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render certificate: %w", err)
	}

	return &Artifact{Data: buf.Bytes(), Name: fileName(rec)}, nil
}

func fileName(rec *models.DonorRecord) string {
	clean := func(s string) string {
		return strings.Map(func(r rune) rune {
			switch {
			case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
				return r
			case unicode.IsSpace(r) || r == '-':
				return '-'
			}
			return -1
		}, s)
	}

	name := strings.Trim(clean(rec.First)+"_"+clean(rec.Last), "_-")
	if name == "" {
		name = "donor"
	}
	return "certificate_" + name + ".pdf"
}
