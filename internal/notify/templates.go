package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"net/url"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Имена шаблонов, используются как метка в метриках.
const (
	TemplateOrderCreated    = "order_created"
	TemplatePaymentReported = "payment_reported"
	TemplateStatusUpdated   = "status_updated"
)

var statusLabels = map[domain.OrderStatus]string{
	domain.OrderStatusScheduled:         "Reservado",
	domain.OrderStatusPendingValidation: "Pendiente de validacion",
	domain.OrderStatusPaymentSent:       "Pago reportado",
	domain.OrderStatusPaid:              "Pagado",
	domain.OrderStatusShipped:           "Enviado",
	domain.OrderStatusDelivered:         "Entregado",
	domain.OrderStatusCancelled:         "Cancelado",
	domain.OrderStatusCancelledExpired:  "Cancelado por vencimiento",
}

// StatusLabel возвращает подпись статуса для покупателя.
func StatusLabel(status domain.OrderStatus) string {
	if label, ok := statusLabels[status]; ok {
		return label
	}
	return string(status)
}

var limaLocation = func() *time.Location {
	loc, err := time.LoadLocation("America/Lima")
	if err != nil {
		return time.FixedZone("PET", -5*60*60)
	}
	return loc
}()

var orderHTML = template.Must(template.New("order").Parse(`<!doctype html>
<html lang="es">
<head><meta charset="UTF-8" /><title>{{.Title}}</title></head>
<body style="margin:0;background:#f4f6fb;font-family:Arial,Helvetica,sans-serif;">
<div style="max-width:640px;margin:0 auto;padding:24px;">
  <div style="padding:14px 0;font-weight:900;color:#0b0f19;">{{.StoreName}}</div>
  <div style="background:#fff;border:1px solid #e6e8ee;border-radius:18px;padding:18px;">
    <div style="font-size:18px;font-weight:900;">Pedido {{.PublicCode}}</div>
    <div style="color:#6b7280;font-size:13px;">Estado: <b>{{.StatusLabel}}</b></div>
    {{if .TrackingURL}}<p><a href="{{.TrackingURL}}">Ver seguimiento</a></p>{{end}}
    <table style="width:100%;border-collapse:collapse;">
    {{range .Items}}<tr><td>{{.Name}} ({{.Qty}} x S/ {{.UnitPrice}})</td><td style="text-align:right;">S/ {{.LineTotal}}</td></tr>
    {{end}}</table>
    <table style="width:100%;margin-top:12px;font-size:13px;">
      <tr><td>Subtotal</td><td style="text-align:right;">S/ {{.Subtotal}}</td></tr>
      <tr><td>Descuento</td><td style="text-align:right;">S/ {{.Discount}}</td></tr>
      <tr><td>Envio</td><td style="text-align:right;">S/ {{.Shipping}}</td></tr>
      <tr><td><b>Total</b></td><td style="text-align:right;"><b>S/ {{.Total}}</b></td></tr>
    </table>
    <div style="margin-top:18px;color:#6b7280;font-size:12px;">Cliente: {{.CustomerName}} - {{.CustomerEmail}} - {{.CustomerPhone}}</div>
  </div>
  <div style="margin-top:14px;color:#9aa1af;font-size:12px;text-align:center;">&copy; {{.Year}} {{.StoreName}}. Todos los derechos reservados.</div>
</div>
</body>
</html>`))

type htmlItem struct {
	Name      string
	Qty       int
	UnitPrice string
	LineTotal string
}

type htmlOrder struct {
	Title         string
	StoreName     string
	PublicCode    string
	StatusLabel   string
	TrackingURL   string
	Items         []htmlItem
	Subtotal      string
	Discount      string
	Shipping      string
	Total         string
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	Year          int
}

// Templates собирает письма покупателю.
type Templates struct {
	// PublicBaseURL используется в ссылке на отслеживание; пустой отключает ссылку.
	PublicBaseURL string
}

// TrackingURL возвращает ссылку на страницу отслеживания заказа.
func (t Templates) TrackingURL(publicCode, trackingToken string) string {
	if t.PublicBaseURL == "" {
		return ""
	}
	q := url.Values{}
	q.Set("publicCode", publicCode)
	q.Set("trackingToken", trackingToken)
	return strings.TrimRight(t.PublicBaseURL, "/") + "/track?" + q.Encode()
}

// OrderCreated собирает письмо о созданном заказе с ключом отслеживания.
func (t Templates) OrderCreated(storeName string, order domain.Order) (Message, error) {
	var text strings.Builder
	text.WriteString("Tu pedido fue creado.\n\n")
	fmt.Fprintf(&text, "Codigo: %s\n", order.PublicCode)
	fmt.Fprintf(&text, "Clave de seguimiento: %s\n", order.TrackingToken)
	fmt.Fprintf(&text, "Reserva valida hasta: %s\n", order.ReservedUntil.In(limaLocation).Format("02/01/2006 15:04"))
	fmt.Fprintf(&text, "Descuento: S/ %s\n", domain.FormatMinor(order.Totals.DiscountMinor))
	fmt.Fprintf(&text, "Costo de envio: S/ %s\n", domain.FormatMinor(order.Totals.ShippingMinor))
	fmt.Fprintf(&text, "Total a pagar: S/ %s\n\n", domain.FormatMinor(order.Totals.TotalMinor))
	text.WriteString("Puedes enviar tu pago desde la seccion Mis pedidos del sitio.")

	html, err := t.renderHTML(storeName, "Pedido creado", order)
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      order.Customer.Email,
		Subject: fmt.Sprintf("%s - Pedido %s", storeName, order.PublicCode),
		Text:    text.String(),
		HTML:    html,
	}, nil
}

// PaymentReported подтверждает, что заявка об оплате получена.
func (t Templates) PaymentReported(storeName string, order domain.Order) Message {
	var text strings.Builder
	text.WriteString("Recibimos tu reporte de pago.\n\n")
	fmt.Fprintf(&text, "Pedido: %s\n", order.PublicCode)
	fmt.Fprintf(&text, "Nombre: %s\n", orDash(order.Customer.Name))
	fmt.Fprintf(&text, "Telefono: %s\n", orDash(order.Customer.Phone))
	fmt.Fprintf(&text, "Operacion: %s\n", order.Payment.OperationCode)
	fmt.Fprintf(&text, "Metodo: %s\n\n", order.Payment.Method)
	text.WriteString("Estado actual: Pendiente de validacion de pago\n")
	text.WriteString("Te notificaremos cuando se confirme.")

	return Message{
		To:      order.Customer.Email,
		Subject: fmt.Sprintf("%s - Pago reportado (%s)", storeName, order.PublicCode),
		Text:    text.String(),
	}
}

// StatusUpdated собирает письмо о смене статуса. Второе значение false, если статус не требует уведомления.
func (t Templates) StatusUpdated(storeName string, order domain.Order, status domain.OrderStatus) (Message, bool) {
	var text string
	switch status {
	case domain.OrderStatusPaid:
		text = fmt.Sprintf("Tu pedido %s fue confirmado como PAGADO.", order.PublicCode)
	case domain.OrderStatusShipped:
		text = fmt.Sprintf("Tu pedido %s fue enviado.", order.PublicCode)
	default:
		return Message{}, false
	}
	return Message{
		To:      order.Customer.Email,
		Subject: fmt.Sprintf("%s - Actualizacion de pedido (%s)", storeName, order.PublicCode),
		Text:    text,
	}, true
}

func (t Templates) renderHTML(storeName, title string, order domain.Order) (string, error) {
	data := htmlOrder{
		Title:         title,
		StoreName:     storeName,
		PublicCode:    order.PublicCode,
		StatusLabel:   StatusLabel(order.Status),
		TrackingURL:   t.TrackingURL(order.PublicCode, order.TrackingToken),
		Subtotal:      domain.FormatMinor(order.Totals.SubtotalMinor),
		Discount:      domain.FormatMinor(order.Totals.DiscountMinor),
		Shipping:      domain.FormatMinor(order.Totals.ShippingMinor),
		Total:         domain.FormatMinor(order.Totals.TotalMinor),
		CustomerName:  order.Customer.Name,
		CustomerEmail: order.Customer.Email,
		CustomerPhone: order.Customer.Phone,
		Year:          order.CreatedAt.Year(),
	}
	for _, item := range order.Items {
		data.Items = append(data.Items, htmlItem{
			Name:      item.Name,
			Qty:       item.Qty,
			UnitPrice: domain.FormatMinor(item.UnitPriceMinor),
			LineTotal: domain.FormatMinor(item.LineTotalMinor()),
		})
	}

	var buf bytes.Buffer
	if err := orderHTML.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render order email: %w", err)
	}
	return buf.String(), nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
