package services

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf/v2"

	"billing-backend/internal/repositories"
)

// ReceiptService renders payment receipts as PDF.
type ReceiptService struct {
	payments *repositories.PaymentRepository
}

func NewReceiptService(payments *repositories.PaymentRepository) *ReceiptService {
	return &ReceiptService{payments: payments}
}

// PaymentPDF renders a single-payment receipt.
func (s *ReceiptService) PaymentPDF(ctx context.Context, paymentID int64) ([]byte, error) {
	d, err := s.payments.GetDetails(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.AddPage()

	// Header
	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(190, 10, "Payment Receipt", "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(190, 6, fmt.Sprintf("Generated: %s", time.Now().Format("02-Jan-2006 03:04 PM")), "", 1, "C", false, 0, "")
	pdf.CellFormat(190, 6, fmt.Sprintf("Receipt #%d", d.ID), "", 1, "C", false, 0, "")
	pdf.Ln(5)

	// Parties
	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(190, 8, "Customer", "1", 1, "L", true, 0, "")
	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(95, 7, fmt.Sprintf("Name: %s", d.CustomerName), "LB", 0, "L", false, 0, "")
	pdf.CellFormat(95, 7, fmt.Sprintf("Phone: %s", d.CustomerPhone), "RB", 1, "L", false, 0, "")
	pdf.CellFormat(190, 7, fmt.Sprintf("ID: %s", d.UUID), "LRB", 1, "L", false, 0, "")
	pdf.Ln(3)

	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(190, 8, "Business", "1", 1, "L", true, 0, "")
	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(190, 7, fmt.Sprintf("Name: %s", d.BusinessName), "LRB", 1, "L", false, 0, "")
	pdf.Ln(5)

	// Amounts
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(190, 8, "Payment", "1", 1, "L", true, 0, "")
	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(63, 8, fmt.Sprintf("Billed: Rs. %.2f", d.DueAmount), "1", 0, "C", false, 0, "")
	pdf.CellFormat(63, 8, fmt.Sprintf("Paid: Rs. %.2f", d.PaidAmount), "1", 0, "C", false, 0, "")
	pdf.CellFormat(64, 8, fmt.Sprintf("Remaining: Rs. %.2f", d.RemainingAmount), "1", 1, "C", false, 0, "")
	pdf.CellFormat(95, 8, fmt.Sprintf("Billing cycle: %s", d.DueDate.Format("Jan 2006")), "1", 0, "C", false, 0, "")
	pdf.CellFormat(95, 8, fmt.Sprintf("Recorded: %s", d.CreatedAt.Format("02-Jan-2006")), "1", 1, "C", false, 0, "")
	pdf.Ln(3)

	if d.RemainingAmount > 0 {
		pdf.SetFillColor(255, 200, 200)
	} else {
		pdf.SetFillColor(200, 255, 200)
	}
	pdf.SetFont("Arial", "B", 14)
	statusText := fmt.Sprintf("Balance Due: Rs. %.2f", d.RemainingAmount)
	if d.RemainingAmount <= 0 {
		statusText = "FULLY PAID"
	}
	pdf.CellFormat(190, 10, statusText, "1", 1, "C", true, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render receipt: %w", err)
	}
	return buf.Bytes(), nil
}
