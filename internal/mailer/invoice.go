package mailer

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/go-pdf/fpdf"

	"github.com/bizconnect/marketplace/internal/orders"
)

// InvoicePDF renders a one-page invoice for o.
func InvoicePDF(buyer Recipient, o orders.Order) ([]byte, error) {
	pdf := fpdf.New("P", "pt", "Letter", "")
	pdf.SetMargins(54, 54, 54)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 22)
	pdf.CellFormat(0, 28, "BIZCONNECT", "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 16, "Premium Philippine Marketplace", "", 1, "C", false, 0, "")
	pdf.Ln(16)

	pdf.SetFont("Helvetica", "B", 15)
	pdf.CellFormat(0, 20, tr(fmt.Sprintf("Invoice - Order %s", o.Number)), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	lines := []string{
		"Date: " + o.CreatedAt.Format("January 02, 2006"),
		"Buyer: " + buyer.Name,
		"Email: " + buyer.Email,
	}
	if o.ShippingAddress != "" {
		lines = append(lines, "Ship to: "+o.ShippingAddress)
	}
	for _, l := range lines {
		pdf.MultiCell(0, 15, tr(l), "", "L", false)
	}
	pdf.Ln(16)

	widths := []float64{240, 60, 110, 110}
	pdf.SetFont("Helvetica", "B", 11)
	pdf.SetFillColor(0x1C, 0x1C, 0x1E)
	pdf.SetTextColor(255, 255, 255)
	for i, h := range []string{"Product", "Qty", "Unit Price", "Subtotal"} {
		pdf.CellFormat(widths[i], 24, h, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 11)
	pdf.SetTextColor(0, 0, 0)
	for n, it := range o.Items {
		if n%2 == 1 {
			pdf.SetFillColor(0xFA, 0xF8, 0xF4)
		} else {
			pdf.SetFillColor(255, 255, 255)
		}
		pdf.CellFormat(widths[0], 22, tr(it.ProductName), "1", 0, "L", true, 0, "")
		pdf.CellFormat(widths[1], 22, strconv.Itoa(it.Quantity), "1", 0, "C", true, 0, "")
		pdf.CellFormat(widths[2], 22, Peso(it.UnitPrice), "1", 0, "C", true, 0, "")
		pdf.CellFormat(widths[3], 22, Peso(it.Subtotal()), "1", 0, "C", true, 0, "")
		pdf.Ln(-1)
	}
	pdf.SetFont("Helvetica", "B", 11)
	pdf.SetFillColor(0xF0, 0xED, 0xE6)
	pdf.CellFormat(widths[0]+widths[1], 22, "", "1", 0, "L", true, 0, "")
	pdf.CellFormat(widths[2], 22, "TOTAL", "1", 0, "C", true, 0, "")
	pdf.CellFormat(widths[3], 22, Peso(o.Total), "1", 1, "C", true, 0, "")
	pdf.Ln(20)

	pdf.SetFont("Helvetica", "", 11)
	pdf.MultiCell(0, 15, "Salamat sa iyong pagbili! Thank you for shopping with BizConnect.", "", "L", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render invoice %s: %w", o.Number, err)
	}
	return buf.Bytes(), nil
}
