// Package document renders the PDF attachments the bot sends and e-mails:
// the order summary and the sales terms sheet.
package document

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"
)

// Kind selects a document template.
type Kind string

const (
	// KindOrderSummary is the per-order receipt attached to confirmations.
	KindOrderSummary Kind = "order_summary"
	// KindTerms is the static pricing and delivery terms sheet.
	KindTerms Kind = "terms"
)

// Data carries everything any template may need; unused fields are ignored.
type Data struct {
	FullName        string
	DNI             string
	Quantity        int
	FreeDeliveryMin int
	UnitPrice       float64
	Surcharge       float64
	Total           float64
	Address         string
	DeliveryDate    string
	ContactPhone    string
	ContactEmail    string
}

// Renderer produces a PDF document of the given kind.
type Renderer interface {
	Render(kind Kind, data Data) ([]byte, error)
}

type pdfRenderer struct{}

// NewPDFRenderer returns the fpdf-backed renderer.
func NewPDFRenderer() Renderer {
	return pdfRenderer{}
}

func (pdfRenderer) Render(kind Kind, data Data) ([]byte, error) {
	switch kind {
	case KindOrderSummary:
		return renderOrderSummary(data)
	case KindTerms:
		return renderTerms(data)
	default:
		return nil, fmt.Errorf("document: unknown kind %q", kind)
	}
}

func renderOrderSummary(data Data) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 12, tr("Resumen de pedido"))
	pdf.Ln(16)

	pdf.SetFont("Helvetica", "", 12)
	rows := [][2]string{
		{"Cliente", data.FullName},
		{"DNI", data.DNI},
		{"Cantidad", fmt.Sprintf("%d paquete(s)", data.Quantity)},
		{"Precio unitario", fmt.Sprintf("S/%.2f", data.UnitPrice)},
	}
	if data.Surcharge > 0 {
		rows = append(rows, [2]string{"Recargo por delivery", fmt.Sprintf("S/%.2f", data.Surcharge)})
	}
	rows = append(rows,
		[2]string{"Total", fmt.Sprintf("S/%.2f", data.Total)},
		[2]string{"Dirección de entrega", data.Address},
		[2]string{"Fecha de entrega", data.DeliveryDate},
	)
	for _, row := range rows {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.CellFormat(55, 8, tr(row[0]), "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 12)
		pdf.CellFormat(0, 8, tr(row[1]), "", 1, "L", false, 0, "")
	}

	pdf.Ln(6)
	pdf.SetFont("Helvetica", "I", 10)
	pdf.MultiCell(0, 6, tr("Gracias por tu compra. Ante cualquier consulta contáctanos por este mismo chat."), "", "L", false)

	return output(pdf)
}

func renderTerms(data Data) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 12, tr("Condiciones de venta"))
	pdf.Ln(16)

	pdf.SetFont("Helvetica", "", 12)
	lines := []string{
		fmt.Sprintf("Precio por paquete: S/%.2f.", data.UnitPrice),
		fmt.Sprintf("Pedidos menores a %d paquetes pagan un recargo de delivery de S/%.2f.", data.FreeDeliveryMin, data.Surcharge),
		"Las entregas se programan de lunes a viernes.",
		"Los pedidos recibidos en fin de semana se entregan el lunes siguiente.",
	}
	for _, line := range lines {
		pdf.MultiCell(0, 7, tr(line), "", "L", false)
		pdf.Ln(1)
	}

	if data.ContactPhone != "" || data.ContactEmail != "" {
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "B", 12)
		pdf.Cell(0, 8, tr("Contacto"))
		pdf.Ln(8)
		pdf.SetFont("Helvetica", "", 12)
		if data.ContactPhone != "" {
			pdf.Cell(0, 7, tr("Teléfono: "+data.ContactPhone))
			pdf.Ln(7)
		}
		if data.ContactEmail != "" {
			pdf.Cell(0, 7, tr("Correo: "+data.ContactEmail))
			pdf.Ln(7)
		}
	}

	return output(pdf)
}

func output(pdf *fpdf.Fpdf) ([]byte, error) {
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("document: render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
