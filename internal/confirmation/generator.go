package confirmation

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log"
	"net/url"
	"os"
	"time"

	"github.com/otworld/assembly-bookings/internal/mailer"
	"github.com/otworld/assembly-bookings/internal/model"
	"github.com/otworld/assembly-bookings/internal/pdf"
	"github.com/otworld/assembly-bookings/internal/token"
)

// BookingSource provides the booking lookups and writes the generator needs.
type BookingSource interface {
	Find(ctx context.Context, id string) (model.Booking, error)
	Update(ctx context.Context, id string, fields map[string]any) (model.Booking, error)
	AttachConfirmationPDF(ctx context.Context, id, filename string, content []byte) error
}

// RegistrationSource resolves the attendee behind a booking.
type RegistrationSource interface {
	Find(ctx context.Context, id string) (model.Registration, error)
}

// LineItemSource lists the booked item snapshots for a booking.
type LineItemSource interface {
	ListByBooking(ctx context.Context, bookingID string) ([]model.BookedItem, error)
}

// OrgNameSource resolves a member organisation record to a display name.
type OrgNameSource interface {
	FindName(ctx context.Context, id string) string
}

// Generator produces confirmation PDFs, keeps the on-disk cache current and
// writes the signed confirmation URL back onto the booking record.
type Generator struct {
	bookings      BookingSource
	registrations RegistrationSource
	items         LineItemSource
	orgs          OrgNameSource
	renderer      pdf.Renderer
	mail          mailer.Mailer
	signer        *token.Signer
	cache         *Cache
	appURL        string
	currency      string
}

// NewGenerator wires a Generator from its collaborators.
func NewGenerator(bookings BookingSource, registrations RegistrationSource, items LineItemSource, orgs OrgNameSource, renderer pdf.Renderer, mail mailer.Mailer, signer *token.Signer, cache *Cache, appURL, currency string) *Generator {
	return &Generator{
		bookings:      bookings,
		registrations: registrations,
		items:         items,
		orgs:          orgs,
		renderer:      renderer,
		mail:          mail,
		signer:        signer,
		cache:         cache,
		appURL:        appURL,
		currency:      currency,
	}
}

// EnsureFresh returns the path of an up-to-date confirmation PDF for the
// booking, regenerating it when the cached copy is missing or stale. With
// force set the cache check is skipped and the document is always rebuilt.
func (g *Generator) EnsureFresh(ctx context.Context, bookingID string, force bool) (string, error) {
	booking, err := g.bookings.Find(ctx, bookingID)
	if err != nil {
		return "", err
	}

	latest := g.cache.ExtractLastModified(booking.Raw)
	pdfPath := g.cache.PDFPath(booking.ID)
	if !force && !g.cache.RequiresRefresh(g.cache.LoadMetadata(booking.ID), latest, pdfPath) {
		return pdfPath, nil
	}
	return g.Generate(ctx, booking, latest)
}

// Generate unconditionally renders the confirmation for a booking, stores
// the PDF and metadata, updates the booking record and emails the attendee.
// Email delivery is best effort. A send failure is logged and does not fail
// the generation.
func (g *Generator) Generate(ctx context.Context, booking model.Booking, lastModified string) (string, error) {
	if booking.RegistrationID == "" {
		return "", fmt.Errorf("confirmation: booking %s has no linked registration", booking.ID)
	}
	reg, err := g.registrations.Find(ctx, booking.RegistrationID)
	if err != nil {
		return "", fmt.Errorf("confirmation: resolve registration: %w", err)
	}
	items, err := g.items.ListByBooking(ctx, booking.ID)
	if err != nil {
		return "", fmt.Errorf("confirmation: list booked items: %w", err)
	}

	html, err := g.renderHTML(ctx, booking, reg, items)
	if err != nil {
		return "", err
	}
	doc, err := g.renderer.Render(ctx, []byte(html))
	if err != nil {
		return "", fmt.Errorf("confirmation: render pdf: %w", err)
	}

	path := g.cache.PDFPath(booking.ID)
	if err := os.MkdirAll(g.cache.dir, 0o775); err != nil {
		return "", fmt.Errorf("confirmation: create cache dir: %w", err)
	}
	if err := os.WriteFile(path, doc, 0o664); err != nil {
		return "", fmt.Errorf("confirmation: write pdf: %w", err)
	}
	if err := g.cache.StoreMetadata(booking.ID, lastModified); err != nil {
		return "", err
	}

	filename := "confirmation-" + SanitizeID(booking.ID) + ".pdf"
	if err := g.bookings.AttachConfirmationPDF(ctx, booking.ID, filename, doc); err != nil {
		log.Printf("[CONFIRMATION] attach pdf to booking %s: %v", booking.ID, err)
	}

	if confURL, err := g.confirmationURL(booking.ID); err != nil {
		log.Printf("[CONFIRMATION] sign url for booking %s: %v", booking.ID, err)
	} else if _, err := g.bookings.Update(ctx, booking.ID, map[string]any{"Confirmation": confURL}); err != nil {
		log.Printf("[CONFIRMATION] write url to booking %s: %v", booking.ID, err)
	}

	if g.mail != nil && reg.Email != "" {
		if err := g.mail.SendConfirmation(ctx, reg.Email, reg.Name(), doc, reg.MeetingID); err != nil {
			log.Printf("[CONFIRMATION] email to %s for booking %s: %v", reg.Email, booking.ID, err)
		}
	}
	return path, nil
}

// confirmationURL builds the signed public link stored on the booking.
func (g *Generator) confirmationURL(bookingID string) (string, error) {
	tok, err := g.signer.Generate(bookingID, token.AudienceConfirmation)
	if err != nil {
		return "", err
	}
	q := url.Values{}
	q.Set("booking", bookingID)
	q.Set("tok", tok)
	return g.appURL + "/v1/bookings/confirmation?" + q.Encode(), nil
}

func (g *Generator) renderHTML(ctx context.Context, booking model.Booking, reg model.Registration, items []model.BookedItem) (string, error) {
	qr, err := qrDataURI(booking.ID)
	if err != nil {
		return "", fmt.Errorf("confirmation: encode qr: %w", err)
	}

	org := ""
	if g.orgs != nil && len(reg.MemberOrgIDs) > 0 {
		org = g.orgs.FindName(ctx, reg.MemberOrgIDs[0])
	}

	data := templateData{
		AttendeeName: reg.Name(),
		Organisation: org,
		Role:         string(reg.Role),
		MeetingID:    reg.MeetingID,
		BookingID:    booking.ID,
		Subtotal:     g.money(booking.Subtotal),
		Discount:     g.money(booking.Discount),
		Total:        g.money(booking.Total),
		HasDiscount:  booking.Discount > 0,
		Dietary:      booking.DietaryRequirements,
		QRDataURI:    template.URL(qr),
		GeneratedAt:  time.Now().UTC().Format("2 Jan 2006 15:04 MST"),
	}
	for _, it := range items {
		data.Items = append(data.Items, templateItem{
			Name: it.Name,
			Type: it.Type,
			Cost: g.money(it.Cost),
		})
	}

	var buf bytes.Buffer
	if err := confirmationTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("confirmation: execute template: %w", err)
	}
	return buf.String(), nil
}

func (g *Generator) money(amount float64) string {
	return fmt.Sprintf("%.2f %s", amount, g.currency)
}
