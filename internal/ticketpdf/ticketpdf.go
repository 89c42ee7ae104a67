// Package ticketpdf renders one-page e-tickets.
package ticketpdf

import (
	"bytes"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/phpdave11/gofpdf"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Ticket is everything printed on an e-ticket.
type Ticket struct {
	BookingCode  string
	TicketID     int64
	Passenger    string
	Phone        string
	Route        string
	DepartureAt  time.Time
	Seats        []string
	BusName      string
	LicensePlate string
	Brand        string
	Dropoff      string
	Total        string
	Method       string
}

// The core PDF fonts only cover Latin-1, so Vietnamese text is printed
// without tone marks.
var fold = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

func ascii(s string) string {
	s = strings.NewReplacer("đ", "d", "Đ", "D").Replace(s)
	out, _, err := transform.String(fold, s)
	if err != nil {
		return s
	}
	return out
}

// Render builds the PDF; qrPNG may be empty for unpaid tickets.
func Render(t Ticket, loc *time.Location, qrPNG []byte) ([]byte, error) {
	if loc == nil {
		loc = time.UTC
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("E-Ticket "+t.BookingCode, false)
	pdf.AddPage()

	pdf.SetFillColor(255, 102, 0)
	pdf.Rect(0, 0, 210, 28, "F")
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Helvetica", "B", 20)
	pdf.SetXY(15, 9)
	pdf.Cell(0, 10, "VE XE DIEN TU")
	pdf.SetTextColor(0, 0, 0)

	pdf.SetXY(15, 36)
	pdf.SetFont("Helvetica", "B", 14)
	pdf.Cell(0, 8, "Ma dat ve: "+t.BookingCode)
	pdf.Ln(12)

	rows := [][2]string{
		{"Hanh khach", t.Passenger},
		{"So dien thoai", t.Phone},
		{"Tuyen", t.Route},
		{"Khoi hanh", t.DepartureAt.In(loc).Format("15:04 02/01/2006")},
		{"Ghe", strings.Join(t.Seats, ", ")},
		{"Xe", strings.TrimSpace(t.BusName + " " + t.LicensePlate)},
		{"Nha xe", t.Brand},
		{"Diem tra", t.Dropoff},
		{"Thanh toan", t.Method},
		{"Tong tien", t.Total},
	}
	for _, row := range rows {
		if row[1] == "" {
			continue
		}
		pdf.SetX(15)
		pdf.SetFont("Helvetica", "B", 12)
		pdf.CellFormat(45, 8, row[0]+":", "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 12)
		pdf.CellFormat(0, 8, ascii(row[1]), "", 1, "L", false, 0, "")
	}

	if len(qrPNG) > 0 {
		opts := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: false}
		pdf.RegisterImageOptionsReader("qr", opts, bytes.NewReader(qrPNG))
		pdf.ImageOptions("qr", 140, 40, 50, 50, false, opts, 0, "")
		pdf.SetXY(140, 92)
		pdf.SetFont("Helvetica", "I", 9)
		pdf.CellFormat(50, 5, "Quet ma khi len xe", "", 0, "C", false, 0, "")
	}

	pdf.SetXY(15, 150)
	pdf.SetFont("Helvetica", "I", 10)
	pdf.MultiCell(0, 6, "Vui long co mat tai ben truoc gio khoi hanh 30 phut va xuat trinh ve nay cho nhan vien nha xe.", "", "", false)

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("failed to render ticket %s: %w", t.BookingCode, err)
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	return buf.Bytes(), nil
}
