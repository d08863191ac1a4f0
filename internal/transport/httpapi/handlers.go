package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/order"
)

type createOrderRequest struct {
	Items      []domain.OrderLine    `json:"items"`
	Customer   domain.Customer       `json:"customer"`
	Shipping   domain.ShippingRecord `json:"shipping"`
	CouponCode string                `json:"couponCode,omitempty"`
}

type createOrderResponse struct {
	OK            bool       `json:"ok"`
	OrderID       string     `json:"orderId"`
	PublicCode    string     `json:"publicCode"`
	TrackingToken string     `json:"trackingToken"`
	ReservedUntil time.Time  `json:"reservedUntil"`
	Totals        totalsView `json:"totals"`
	Idempotent    bool       `json:"idempotent,omitempty"`
}

func (a *api) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	shipping, err := req.Shipping.Shipping()
	if err != nil {
		writeError(w, err)
		return
	}

	res, err := a.svc.CreateOrder(r.Context(), actorFrom(r.Context()), order.CreateOrderInput{
		Items:          req.Items,
		Customer:       req.Customer,
		Shipping:       shipping,
		CouponCode:     strings.TrimSpace(req.CouponCode),
		IdempotencyKey: strings.TrimSpace(r.Header.Get(headerIdempotencyKey)),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	status := http.StatusCreated
	if res.Idempotent {
		status = http.StatusOK
	}
	writeJSON(w, status, createOrderResponse{
		OK:            true,
		OrderID:       res.OrderID,
		PublicCode:    res.PublicCode,
		TrackingToken: res.TrackingToken,
		ReservedUntil: res.ReservedUntil,
		Totals:        toTotalsView(res.Totals),
		Idempotent:    res.Idempotent,
	})
}

func (a *api) submitPayment(w http.ResponseWriter, r *http.Request) {
	var in order.SubmitPaymentInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}
	res, err := a.svc.SubmitPayment(r.Context(), actorFrom(r.Context()), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": res.OK, "idempotent": res.Idempotent})
}

func (a *api) trackOrder(w http.ResponseWriter, r *http.Request) {
	var in order.TrackOrderInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}
	found, err := a.svc.TrackOrder(r.Context(), actorFrom(r.Context()), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "order": toOrderView(found, false)})
}

func (a *api) listProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	products, err := a.svc.ListProducts(r.Context(), actorFrom(r.Context()), order.ListProductsInput{
		Search: q.Get("q"),
		Limit:  limit,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	views := make([]productView, 0, len(products))
	for _, p := range products {
		views = append(views, toProductView(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": views})
}

func (a *api) getProduct(w http.ResponseWriter, r *http.Request) {
	product, err := a.svc.GetProduct(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "slug"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductView(product))
}

// publicSettings отдаёт витрине контакты и реквизиты оплаты.
func (a *api) publicSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := a.svc.GetSettings(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

type updateStatusRequest struct {
	OrderID    string             `json:"orderId"`
	NextStatus domain.OrderStatus `json:"nextStatus"`
}

func (a *api) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := a.svc.UpdateOrderStatus(r.Context(), actorFrom(r.Context()), strings.TrimSpace(req.OrderID), req.NextStatus); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (a *api) listOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	orders, err := a.svc.ListOrders(r.Context(), actorFrom(r.Context()), domain.OrderQuery{
		Status: domain.OrderStatus(strings.ToUpper(q.Get("status"))),
		Limit:  limit,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	views := make([]orderView, 0, len(orders))
	for _, o := range orders {
		views = append(views, toOrderView(o, true))
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": views})
}

func (a *api) upsertProduct(w http.ResponseWriter, r *http.Request) {
	var in order.UpsertProductInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}
	product, err := a.svc.UpsertProduct(r.Context(), actorFrom(r.Context()), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "product": toProductView(product)})
}

func (a *api) getSettings(w http.ResponseWriter, r *http.Request) {
	a.publicSettings(w, r)
}

func (a *api) updateSettings(w http.ResponseWriter, r *http.Request) {
	var in domain.StoreSettings
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}
	saved, err := a.svc.UpdateSettings(r.Context(), actorFrom(r.Context()), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "settings": saved})
}

func (a *api) releaseExpired(w http.ResponseWriter, r *http.Request) {
	processed, err := a.svc.SweepExpiredReservations(r.Context(), a.clock.Now())
	if err != nil {
		a.logger.WithError(err).WithField("processed", processed).Error("release expired reservations failed")
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "processed": processed})
}
