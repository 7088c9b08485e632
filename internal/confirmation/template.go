package confirmation

import "html/template"

// templateData feeds the confirmation document template.
type templateData struct {
	AttendeeName string
	Organisation string
	Role         string
	MeetingID    string
	BookingID    string
	Items        []templateItem
	Subtotal     string
	Discount     string
	Total        string
	HasDiscount  bool
	Dietary      string
	QRDataURI    template.URL
	GeneratedAt  string
}

type templateItem struct {
	Name string
	Type string
	Cost string
}

var confirmationTmpl = template.Must(template.New("confirmation").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<style>
  body { font-family: Helvetica, Arial, sans-serif; color: #1a1a1a; margin: 40px; }
  h1 { font-size: 22px; border-bottom: 2px solid #00467f; padding-bottom: 8px; }
  .meta { margin: 16px 0; font-size: 13px; color: #444; }
  table { width: 100%; border-collapse: collapse; margin-top: 20px; }
  th { text-align: left; font-size: 12px; text-transform: uppercase; color: #666; border-bottom: 1px solid #ccc; padding: 6px 4px; }
  td { padding: 8px 4px; border-bottom: 1px solid #eee; font-size: 14px; }
  td.cost { text-align: right; white-space: nowrap; }
  tr.total td { font-weight: bold; border-top: 2px solid #00467f; border-bottom: none; }
  .qr { margin-top: 32px; text-align: center; }
  .qr img { width: 180px; height: 180px; }
  .qr p { font-size: 11px; color: #888; }
  .dietary { margin-top: 20px; font-size: 13px; }
</style>
</head>
<body>
<h1>Booking Confirmation</h1>
<div class="meta">
  <div><strong>{{.AttendeeName}}</strong></div>
  {{if .Organisation}}<div>{{.Organisation}}</div>{{end}}
  {{if .Role}}<div>{{.Role}}</div>{{end}}
  <div>Meeting {{.MeetingID}} &middot; Booking {{.BookingID}}</div>
</div>
<table>
  <tr><th>Item</th><th>Type</th><th style="text-align:right">Cost</th></tr>
  {{range .Items}}
  <tr><td>{{.Name}}</td><td>{{.Type}}</td><td class="cost">{{.Cost}}</td></tr>
  {{end}}
  <tr><td colspan="2">Subtotal</td><td class="cost">{{.Subtotal}}</td></tr>
  {{if .HasDiscount}}
  <tr><td colspan="2">Discount</td><td class="cost">-{{.Discount}}</td></tr>
  {{end}}
  <tr class="total"><td colspan="2">Total</td><td class="cost">{{.Total}}</td></tr>
</table>
{{if .Dietary}}
<div class="dietary"><strong>Dietary requirements:</strong> {{.Dietary}}</div>
{{end}}
<div class="qr">
  <img src="{{.QRDataURI}}" alt="Booking QR code">
  <p>Present this code at registration. Generated {{.GeneratedAt}}.</p>
</div>
</body>
</html>
`))
