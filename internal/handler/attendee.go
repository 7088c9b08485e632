package handler

import (
	"errors"
	"log"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"

	"github.com/otworld/assembly-bookings/internal/model"
	"github.com/otworld/assembly-bookings/internal/repository"
	"github.com/otworld/assembly-bookings/internal/token"
)

// AttendeeHandler serves the staff API behind the static bearer token:
// attendee lookup from a scanned booking QR code, session check-ins,
// line-item redemption and booking-link generation.  Duplicate check-ins
// and redemptions are success-shaped so a double scan at a busy desk
// never reads as a failure.
type AttendeeHandler struct {
	Registrations *repository.RegistrationRepo
	Bookings      *repository.BookingRepo
	BookedItems   *repository.BookedItemRepo
	CheckIns      *repository.CheckInRepo
	MemberOrgs    *repository.MemberOrgRepo
	Signer        *token.Signer
	AppURL        string
}

// NewAttendeeHandler constructs an AttendeeHandler.
func NewAttendeeHandler(regs *repository.RegistrationRepo, bookings *repository.BookingRepo, bookedItems *repository.BookedItemRepo, checkIns *repository.CheckInRepo, orgs *repository.MemberOrgRepo, signer *token.Signer, appURL string) *AttendeeHandler {
	if regs == nil || bookings == nil || bookedItems == nil || checkIns == nil || signer == nil {
		panic("nil dependency passed to NewAttendeeHandler")
	}
	return &AttendeeHandler{
		Registrations: regs,
		Bookings:      bookings,
		BookedItems:   bookedItems,
		CheckIns:      checkIns,
		MemberOrgs:    orgs,
		Signer:        signer,
		AppURL:        appURL,
	}
}

// Ping handles GET /v1/api/attendee so staff devices can verify their
// token before the event starts.
func (h *AttendeeHandler) Ping(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "attendee api"})
}

// Action handles POST /v1/api/attendee.  The body names one of the
// actions getDetails, checkIn or redeemItem; the booking id comes from
// the scanned QR code.
func (h *AttendeeHandler) Action(c echo.Context) error {
	var body struct {
		Action    string `json:"action"`
		BookingID string `json:"bookingId"`
		ItemID    string `json:"itemId"`
		Session   string `json:"session"`
		User      string `json:"user"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "invalid request body"})
	}
	if body.BookingID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "bookingId is required"})
	}

	switch body.Action {
	case "getDetails":
		return h.getDetails(c, body.BookingID)
	case "checkIn":
		if body.Session == "" {
			return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "session is required"})
		}
		return h.checkIn(c, body.BookingID, body.Session, body.User)
	case "redeemItem":
		if body.ItemID == "" {
			return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "itemId is required"})
		}
		return h.redeemItem(c, body.BookingID, body.ItemID, body.User)
	}
	return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "unknown action"})
}

// getDetails aggregates the attendee profile staff see after a scan:
// registration, booking summary, line items and check-in history, with
// the observer's organisation resolved to its display name.
func (h *AttendeeHandler) getDetails(c echo.Context, bookingID string) error {
	ctx := c.Request().Context()

	bkg, err := h.Bookings.Find(ctx, bookingID)
	if err != nil {
		return h.lookupError(c, "booking", err)
	}
	reg, err := h.Registrations.Find(ctx, bkg.RegistrationID)
	if err != nil {
		return h.lookupError(c, "registration", err)
	}
	items, err := h.BookedItems.ListByBooking(ctx, bkg.ID)
	if err != nil {
		return h.lookupError(c, "booked items", err)
	}
	checkIns, err := h.CheckIns.ListForRegistration(ctx, reg.ID)
	if err != nil {
		return h.lookupError(c, "check-ins", err)
	}

	org := ""
	if h.MemberOrgs != nil && len(reg.MemberOrgIDs) > 0 {
		org = h.MemberOrgs.FindName(ctx, reg.MemberOrgIDs[0])
	}

	itemsOut := make([]echo.Map, 0, len(items))
	for _, it := range items {
		itemsOut = append(itemsOut, echo.Map{
			"id":          it.ID,
			"name":        it.Name,
			"type":        it.Type,
			"cost":        it.Cost,
			"redeemed":    it.Redeemed,
			"redeemed_by": it.RedeemedBy,
		})
	}
	checkInsOut := make([]echo.Map, 0, len(checkIns))
	for _, ci := range checkIns {
		checkInsOut = append(checkInsOut, echo.Map{
			"session":    ci.Session,
			"attendee":   ci.AttendeeName(),
			"checked_at": ci.CheckInDate,
			"checked_by": ci.CheckInBy,
		})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"attendee": echo.Map{
			"registration_id": reg.ID,
			"name":            reg.Name(),
			"email":           reg.Email,
			"role":            string(reg.Role),
			"organisation":    org,
			"photo_url":       reg.Raw.AttachmentURL("Photo", "large"),
			"booking":         bookingJSON(bkg),
			"items":           itemsOut,
			"check_ins":       checkInsOut,
		},
	})
}

// checkIn records attendance for one session.  A second scan for the
// same (session, registration) pair answers already_checked_in with the
// original timestamp instead of creating a duplicate row.
func (h *AttendeeHandler) checkIn(c echo.Context, bookingID, session, user string) error {
	ctx := c.Request().Context()

	bkg, err := h.Bookings.Find(ctx, bookingID)
	if err != nil {
		return h.lookupError(c, "booking", err)
	}

	existing, err := h.CheckIns.FindBySession(ctx, session, bkg.RegistrationID)
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, echo.Map{
			"success":    true,
			"status":     "already_checked_in",
			"checked_at": existing.CheckInDate,
			"checked_by": existing.CheckInBy,
		})
	case !errors.Is(err, repository.ErrNotFound):
		return h.lookupError(c, "check-in", err)
	}

	created, err := h.CheckIns.Create(ctx, session, bkg.RegistrationID, user)
	if err != nil {
		log.Printf("[HANDLER] check in %s to %s: %v", bkg.RegistrationID, session, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "error": "could not record check-in"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success":    true,
		"status":     "checked_in",
		"checked_at": created.CheckInDate,
	})
}

// redeemItem marks one line item as used.  The item is addressed by its
// catalog id because that is what staff scanners know; a second scan
// answers already_redeemed with who redeemed it first.
func (h *AttendeeHandler) redeemItem(c echo.Context, bookingID, itemID, user string) error {
	ctx := c.Request().Context()

	item, err := h.BookedItems.FindByBookingAndItem(ctx, bookingID, itemID)
	if err != nil {
		return h.lookupError(c, "booked item", err)
	}
	if item.Redeemed {
		return c.JSON(http.StatusOK, echo.Map{
			"success":     true,
			"status":      "already_redeemed",
			"redeemed_by": item.RedeemedBy,
		})
	}
	if err := h.BookedItems.MarkRedeemed(ctx, item.ID, user); err != nil {
		log.Printf("[HANDLER] redeem item %s on booking %s: %v", itemID, bookingID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "error": "could not redeem item"})
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "status": "redeemed"})
}

// BookingLink handles POST /v1/api/booking-links: signs a booking-form
// URL for a registration so organisers can resend lost links.  The
// registration is addressed by id, or by email when that is all the
// attendee can give over the phone.
func (h *AttendeeHandler) BookingLink(c echo.Context) error {
	var body struct {
		RegistrationID string `json:"registrationId"`
		Email          string `json:"email"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "invalid request body"})
	}
	if body.RegistrationID == "" && body.Email == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "registrationId or email is required"})
	}
	ctx := c.Request().Context()

	var (
		reg model.Registration
		err error
	)
	if body.RegistrationID != "" {
		reg, err = h.Registrations.Find(ctx, body.RegistrationID)
	} else {
		reg, err = h.Registrations.FindByEmail(ctx, body.Email)
	}
	if err != nil {
		return h.lookupError(c, "registration", err)
	}
	tok, err := h.Signer.Generate(reg.ID, token.AudienceBooking)
	if err != nil {
		log.Printf("[HANDLER] sign booking link for %s: %v", reg.ID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "error": "could not sign link"})
	}
	q := url.Values{}
	q.Set("registration", reg.ID)
	q.Set("tok", tok)
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"url":     h.AppURL + "/v1/bookings/form?" + q.Encode(),
	})
}

func (h *AttendeeHandler) lookupError(c echo.Context, what string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"success": false, "error": what + " not found"})
	}
	log.Printf("[HANDLER] lookup %s: %v", what, err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "error": "record store error"})
}
