package handler

import (
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/otworld/assembly-bookings/internal/booking"
	"github.com/otworld/assembly-bookings/internal/confirmation"
	"github.com/otworld/assembly-bookings/internal/model"
	"github.com/otworld/assembly-bookings/internal/payment"
	"github.com/otworld/assembly-bookings/internal/pdf"
	"github.com/otworld/assembly-bookings/internal/repository"
	"github.com/otworld/assembly-bookings/internal/token"
	"github.com/otworld/assembly-bookings/internal/webhook"
)

// BookingHandler serves the attendee-facing booking flow: loading the
// form payload, saving a selection, capturing online payments, receiving
// gateway webhooks and streaming the confirmation document.  Every
// endpoint takes a signed link token; there are no attendee accounts.
type BookingHandler struct {
	Registrations *repository.RegistrationRepo
	Bookings      *repository.BookingRepo
	Items         *repository.ItemRepo
	BookedItems   *repository.BookedItemRepo
	Service       *booking.Service
	Processor     *webhook.Processor
	Generator     *confirmation.Generator
	Signer        *token.Signer
}

// NewBookingHandler constructs a BookingHandler.  All dependencies must
// be non-nil.
func NewBookingHandler(regs *repository.RegistrationRepo, bookings *repository.BookingRepo, items *repository.ItemRepo, bookedItems *repository.BookedItemRepo, svc *booking.Service, proc *webhook.Processor, gen *confirmation.Generator, signer *token.Signer) *BookingHandler {
	if regs == nil || bookings == nil || items == nil || bookedItems == nil || svc == nil || proc == nil || signer == nil {
		panic("nil dependency passed to NewBookingHandler")
	}
	return &BookingHandler{
		Registrations: regs,
		Bookings:      bookings,
		Items:         items,
		BookedItems:   bookedItems,
		Service:       svc,
		Processor:     proc,
		Generator:     gen,
		Signer:        signer,
	}
}

// Form handles GET /v1/bookings/form.  The link carries either
// registration= or booking=, plus tok=; the token is checked before
// anything is looked up.  A registration link creates the booking
// lazily on first visit.  A Complete booking answers a summary view
// unless edit=true re-enters the form; regenerate=true forces the
// confirmation document to be rebuilt first.
func (h *BookingHandler) Form(c echo.Context) error {
	regID := c.QueryParam("registration")
	bookingID := c.QueryParam("booking")
	if regID == "" && bookingID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "registration or booking is required"})
	}
	subject := regID
	if subject == "" {
		subject = bookingID
	}
	if !h.Signer.Check(subject, token.AudienceBooking, c.QueryParam("tok")) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid link"})
	}
	ctx := c.Request().Context()

	var (
		reg model.Registration
		bkg model.Booking
		err error
	)
	if regID != "" {
		reg, err = h.Registrations.Find(ctx, regID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return c.JSON(http.StatusNotFound, echo.Map{"error": "registration not found"})
			}
			log.Printf("[HANDLER] form: find registration %s: %v", regID, err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "record store error"})
		}
		bkg, err = h.Bookings.FindByRegistration(ctx, reg.ID)
		if errors.Is(err, repository.ErrNotFound) {
			bkg, err = h.Bookings.CreateForRegistration(ctx, reg.ID)
		}
		if err != nil {
			log.Printf("[HANDLER] form: booking for registration %s: %v", reg.ID, err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "record store error"})
		}
	} else {
		bkg, err = h.Bookings.Find(ctx, bookingID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
			}
			log.Printf("[HANDLER] form: find booking %s: %v", bookingID, err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "record store error"})
		}
		reg, err = h.Registrations.Find(ctx, bkg.RegistrationID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return c.JSON(http.StatusNotFound, echo.Map{"error": "registration not found"})
			}
			log.Printf("[HANDLER] form: registration for booking %s: %v", bkg.ID, err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "record store error"})
		}
	}

	if c.QueryParam("regenerate") == "true" && h.Generator != nil {
		if _, err := h.Generator.EnsureFresh(ctx, bkg.ID, true); err != nil {
			log.Printf("[HANDLER] form: regenerate confirmation for %s: %v", bkg.ID, err)
		}
	}

	// Save and capture verify a booking-scoped token, so the form
	// payload mints one regardless of which link opened it.
	bookingTok, err := h.Signer.Generate(bkg.ID, token.AudienceBooking)
	if err != nil {
		log.Printf("[HANDLER] form: sign booking token for %s: %v", bkg.ID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not prepare form"})
	}

	if bkg.Status == model.StatusComplete && c.QueryParam("edit") != "true" {
		return c.JSON(http.StatusOK, echo.Map{
			"view":         "complete",
			"registration": registrationJSON(reg),
			"booking":      bookingJSON(bkg),
			"tok":          bookingTok,
		})
	}

	catalog, err := h.Items.ListForMeeting(ctx, reg.MeetingID, reg.Role)
	if err != nil {
		log.Printf("[HANDLER] form: list items for meeting %s: %v", reg.MeetingID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "record store error"})
	}
	selected, err := h.BookedItems.ListByBooking(ctx, bkg.ID)
	if err != nil {
		log.Printf("[HANDLER] form: list booked items for %s: %v", bkg.ID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "record store error"})
	}

	items := make([]echo.Map, 0, len(catalog))
	for _, it := range catalog {
		items = append(items, echo.Map{
			"id":   it.ID,
			"name": it.Name,
			"type": it.Type,
			"cost": it.Cost,
		})
	}
	selectedIDs := make([]string, 0, len(selected))
	for _, s := range selected {
		selectedIDs = append(selectedIDs, s.BookableItemID)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"view":         "form",
		"registration": registrationJSON(reg),
		"booking":      bookingJSON(bkg),
		"tok":          bookingTok,
		"items":        items,
		"selected":     selectedIDs,
	})
}

// Catalog handles GET /v1/bookings/items: the bookable catalog for one
// meeting and availability scope.  It carries no attendee data and no
// token, which is what lets the response cache sit in front of it.
func (h *BookingHandler) Catalog(c echo.Context) error {
	meetingID := c.QueryParam("meeting")
	if meetingID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "meeting is required"})
	}
	role := model.RoleDelegate
	if c.QueryParam("scope") == "Observer" {
		role = model.RoleObserver
	}

	catalog, err := h.Items.ListForMeeting(c.Request().Context(), meetingID, role)
	if err != nil {
		log.Printf("[HANDLER] items: list for meeting %s: %v", meetingID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "record store error"})
	}
	items := make([]echo.Map, 0, len(catalog))
	for _, it := range catalog {
		items = append(items, echo.Map{
			"id":   it.ID,
			"name": it.Name,
			"type": it.Type,
			"cost": it.Cost,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"meeting_id": meetingID, "scope": role.AvailabilityScope(), "items": items})
}

// Save handles POST /v1/bookings/save.  The body carries the full
// desired selection; the stored line items are replaced, not patched.
func (h *BookingHandler) Save(c echo.Context) error {
	var body struct {
		BookingID string   `json:"booking_id"`
		Items     []string `json:"item"`
		Diet      string   `json:"diet"`
		PayMethod string   `json:"paymethod"`
		Token     string   `json:"tok"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.BookingID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "booking_id is required"})
	}
	if !h.Signer.Check(body.BookingID, token.AudienceBooking, body.Token) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid link"})
	}

	res, err := h.Service.Save(c.Request().Context(), booking.SaveRequest{
		BookingID: body.BookingID,
		ItemIDs:   body.Items,
		Dietary:   body.Diet,
		Method:    model.PaymentMethod(body.PayMethod),
	})
	switch {
	case err == nil:
	case errors.Is(err, booking.ErrInvalidMethod), errors.Is(err, booking.ErrDietaryTooLong), errors.Is(err, booking.ErrNoGateway):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
	default:
		log.Printf("[HANDLER] save booking %s: %v", body.BookingID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not save booking"})
	}

	out := echo.Map{
		"payment":    res.Payment,
		"booking_id": res.BookingID,
		"total":      res.Total,
	}
	if res.OrderID != "" {
		out["order_id"] = res.OrderID
		out["client_token"] = res.ClientToken
	}
	return c.JSON(http.StatusOK, out)
}

// Capture handles POST /v1/bookings/{gateway}/capture-order.  The
// browser calls it after the payer approved the payment; the service
// captures at the gateway and records the outcome.  A duplicate capture
// of an already-paid booking still answers success.
func (h *BookingHandler) Capture(method model.PaymentMethod) echo.HandlerFunc {
	return func(c echo.Context) error {
		var body struct {
			BookingID string `json:"booking_id"`
			OrderID   string `json:"order_id"`
			Token     string `json:"tok"`
		}
		if err := c.Bind(&body); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
		}
		if body.BookingID == "" || body.OrderID == "" {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "booking_id and order_id are required"})
		}
		if !h.Signer.Check(body.BookingID, token.AudienceBooking, body.Token) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid link"})
		}

		already, err := h.Service.Capture(c.Request().Context(), method, body.BookingID, body.OrderID)
		if err != nil {
			log.Printf("[HANDLER] capture %s for booking %s: %v", method, body.BookingID, err)
			return c.JSON(http.StatusOK, echo.Map{"success": false, "error": "payment could not be completed"})
		}
		out := echo.Map{"success": true}
		if already {
			out["already_processed"] = true
		}
		return c.JSON(http.StatusOK, out)
	}
}

// Webhook handles POST /v1/bookings/{gateway}/webhook.  Signature
// failures answer 401 untouched; once authenticated every understood
// delivery answers 200 so the gateway stops retrying, and only
// infrastructure failures answer 500 to request a retry.
func (h *BookingHandler) Webhook(method model.PaymentMethod) echo.HandlerFunc {
	return func(c echo.Context) error {
		body, err := io.ReadAll(c.Request().Body)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "unreadable body"})
		}
		outcome, err := h.Processor.Process(c.Request().Context(), method, c.Request().Header, body)
		if err != nil {
			if errors.Is(err, payment.ErrVerificationFailed) {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid signature"})
			}
			log.Printf("[HANDLER] webhook %s: %v", method, err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "processing failed"})
		}
		return c.JSON(http.StatusOK, echo.Map{"status": outcome.Status, "message": outcome.Message})
	}
}

// Confirmation handles GET /v1/bookings/confirmation.  The signed link
// names the booking; the cache policy decides whether the stored PDF is
// still current before it is streamed inline.
func (h *BookingHandler) Confirmation(c echo.Context) error {
	bookingID := c.QueryParam("booking")
	if bookingID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "booking is required"})
	}
	if !h.Signer.Check(bookingID, token.AudienceConfirmation, c.QueryParam("tok")) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid link"})
	}
	if h.Generator == nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "confirmation documents are not enabled"})
	}

	path, err := h.Generator.EnsureFresh(c.Request().Context(), bookingID, false)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
		case errors.Is(err, pdf.ErrNotConfigured):
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "confirmation documents are not enabled"})
		}
		log.Printf("[HANDLER] confirmation for %s: %v", bookingID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not produce confirmation"})
	}
	return c.Inline(path, "confirmation-"+confirmation.SanitizeID(bookingID)+".pdf")
}

func registrationJSON(reg model.Registration) echo.Map {
	return echo.Map{
		"id":         reg.ID,
		"name":       reg.Name(),
		"email":      reg.Email,
		"role":       string(reg.Role),
		"meeting_id": reg.MeetingID,
		"scope":      reg.Role.AvailabilityScope(),
	}
}

func bookingJSON(bkg model.Booking) echo.Map {
	return echo.Map{
		"id":               bkg.ID,
		"status":           string(bkg.Status),
		"payment_status":   string(bkg.PaymentStatus),
		"payment_method":   string(bkg.PaymentMethod),
		"subtotal":         bkg.Subtotal,
		"discounts":        bkg.Discount,
		"total":            bkg.Total,
		"dietary":          bkg.DietaryRequirements,
		"confirmation_url": bkg.ConfirmationURL,
	}
}
