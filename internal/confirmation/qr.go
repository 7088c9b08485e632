package confirmation

import (
	"encoding/base64"
	"encoding/json"
	"image/color"

	qrcode "github.com/skip2/go-qrcode"
)

// qrDataURI encodes the booking id into a PNG QR code returned as a data
// URI for inline embedding in the confirmation document.  Staff scanning
// apps decode the JSON payload to drive check-in and redemption.
func qrDataURI(bookingID string) (string, error) {
	payload, err := json.Marshal(map[string]string{"bookingId": bookingID})
	if err != nil {
		return "", err
	}
	png, err := qrcode.Encode(string(payload), qrcode.High, 300)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}

// BadgePNG renders a standalone registration QR image in the requested
// colours, for printing on badges.  The payload shape matches what the
// staff scanning apps expect.
func BadgePNG(registrationID string, fg, bg color.Color) ([]byte, error) {
	payload, err := json.Marshal(map[string]string{"registrationId": registrationID})
	if err != nil {
		return nil, err
	}
	q, err := qrcode.New(string(payload), qrcode.High)
	if err != nil {
		return nil, err
	}
	q.ForegroundColor = fg
	q.BackgroundColor = bg
	return q.PNG(300)
}
