package handler

import (
	"errors"
	"image/color"
	"log"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/otworld/assembly-bookings/internal/confirmation"
	"github.com/otworld/assembly-bookings/internal/repository"
)

// QR handles GET /v1/bookings/qr: a standalone registration QR image for
// badge printing.  fg= and bg= are required hex colours; only attending
// registrations get a code.
func (h *BookingHandler) QR(c echo.Context) error {
	regID := confirmation.SanitizeID(c.QueryParam("registrationId"))
	if regID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "registrationId is required"})
	}
	fg, okFg := parseHexColor(c.QueryParam("fg"))
	bg, okBg := parseHexColor(c.QueryParam("bg"))
	if !okFg || !okBg {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid fg or bg color"})
	}

	reg, err := h.Registrations.Find(c.Request().Context(), regID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "registration not found"})
		}
		log.Printf("[HANDLER] qr: find registration %s: %v", regID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "record store error"})
	}
	if !reg.Attending {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "registration not attending"})
	}

	png, err := confirmation.BadgePNG(reg.ID, fg, bg)
	if err != nil {
		log.Printf("[HANDLER] qr: render for registration %s: %v", reg.ID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not render code"})
	}
	return c.Blob(http.StatusOK, "image/png", png)
}

// parseHexColor accepts #rgb and #rrggbb, with or without the hash.
func parseHexColor(s string) (color.Color, bool) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return nil, false
	}
	var rgb [3]uint8
	for i := range rgb {
		hi, okHi := hexNibble(hex[2*i])
		lo, okLo := hexNibble(hex[2*i+1])
		if !okHi || !okLo {
			return nil, false
		}
		rgb[i] = hi<<4 | lo
	}
	return color.RGBA{R: rgb[0], G: rgb[1], B: rgb[2], A: 255}, true
}

func hexNibble(b byte) (uint8, bool) {
	switch {
	case b >= '0' && b <= '9':
		return b - '0', true
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10, true
	case b >= 'A' && b <= 'F':
		return b - 'A' + 10, true
	}
	return 0, false
}
