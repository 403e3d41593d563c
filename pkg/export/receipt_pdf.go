package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// ReceiptData carries everything printed on a payment receipt.
type ReceiptData struct {
	ReceiptNumber   string
	StudentName     string
	WaveName        string
	PaymentDate     time.Time
	Amount          string
	Method          string
	Category        string
	Reference       string
	TotalDue        string
	AmountPaid      string
	AmountRemaining string
}

// ReceiptRenderer renders payment receipts as PDF documents.
type ReceiptRenderer struct {
	schoolName string
}

// NewReceiptRenderer constructs a receipt renderer.
func NewReceiptRenderer(schoolName string) *ReceiptRenderer {
	if schoolName == "" {
		schoolName = "Centre de Formation Professionnelle"
	}
	return &ReceiptRenderer{schoolName: schoolName}
}

// Render produces the PDF bytes for one receipt.
func (r *ReceiptRenderer) Render(data ReceiptData) ([]byte, error) {
	if data.ReceiptNumber == "" {
		return nil, fmt.Errorf("receipt number required")
	}

	pdf := gofpdf.New("P", "mm", "A5", "")
	pdf.SetMargins(12, 14, 12)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 8, r.schoolName, "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 6, "RECU DE PAIEMENT", "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("N° %s", data.ReceiptNumber), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	row := func(label, value string) {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(45, 7, label, "", 0, "L", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(0, 7, value, "", 1, "L", false, 0, "")
	}

	row("Etudiant", data.StudentName)
	row("Vague", data.WaveName)
	row("Date", data.PaymentDate.Format("02/01/2006"))
	row("Montant", data.Amount+" Ar")
	row("Mode", data.Method)
	row("Rubrique", data.Category)
	if data.Reference != "" {
		row("Reference", data.Reference)
	}
	pdf.Ln(4)

	pdf.SetDrawColor(120, 120, 120)
	pdf.Line(12, pdf.GetY(), 136, pdf.GetY())
	pdf.Ln(3)

	row("Total du", data.TotalDue+" Ar")
	row("Total paye", data.AmountPaid+" Ar")
	row("Reste a payer", data.AmountRemaining+" Ar")

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render receipt pdf: %w", err)
	}
	return buf.Bytes(), nil
}
