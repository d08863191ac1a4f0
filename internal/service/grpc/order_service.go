// Package grpcsvc — gRPC-поверхность ядра заказов.
package grpcsvc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/vladislavdragonenkov/storefront/internal/auth"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/order"
)

// Core описывает операции ядра, которые публикует gRPC.
type Core interface {
	CreateOrder(ctx context.Context, actor domain.ActorContext, in order.CreateOrderInput) (order.CreateOrderResult, error)
	SubmitPayment(ctx context.Context, actor domain.ActorContext, in order.SubmitPaymentInput) (order.SubmitPaymentResult, error)
	TrackOrder(ctx context.Context, actor domain.ActorContext, in order.TrackOrderInput) (domain.Order, error)
	UpdateOrderStatus(ctx context.Context, actor domain.ActorContext, orderID string, next domain.OrderStatus) error
}

// AdminVerifier проверяет токен администратора из metadata authorization.
type AdminVerifier interface {
	AdminActor(raw, ip, userAgent string) (domain.ActorContext, error)
}

// OrderService реализует OrderServiceServer поверх ядра.
type OrderService struct {
	core   Core
	admin  AdminVerifier
	logger *log.Entry
}

const (
	idempotencyKeyHeader = "idempotency-key"
	forwardedForHeader   = "x-forwarded-for"
	userAgentHeader      = "user-agent"
	authorizationHeader  = "authorization"
)

// NewOrderService конструирует сервис; admin может быть nil, тогда UpdateOrderStatus недоступен.
func NewOrderService(core Core, admin AdminVerifier, logger *log.Entry) *OrderService {
	if logger == nil {
		logger = log.New().WithField("component", "order-grpc")
	}
	return &OrderService{core: core, admin: admin, logger: logger}
}

type createOrderRequest struct {
	Items      []domain.OrderLine    `json:"items"`
	Customer   domain.Customer       `json:"customer"`
	Shipping   domain.ShippingRecord `json:"shipping"`
	CouponCode string                `json:"couponCode"`
}

// CreateOrder резервирует товар. Ключ идемпотентности читается из metadata idempotency-key.
func (s *OrderService) CreateOrder(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in createOrderRequest
	if err := decodeStruct(req, &in); err != nil {
		return nil, err
	}
	shipping, err := in.Shipping.Shipping()
	if err != nil {
		return nil, toStatus(err)
	}

	res, err := s.core.CreateOrder(ctx, actorFromContext(ctx), order.CreateOrderInput{
		Items:          in.Items,
		Customer:       in.Customer,
		Shipping:       shipping,
		CouponCode:     strings.TrimSpace(in.CouponCode),
		IdempotencyKey: metadataValue(ctx, idempotencyKeyHeader),
	})
	if err != nil {
		s.logFailure(err, MethodCreateOrder)
		return nil, toStatus(err)
	}

	return encodeStruct(map[string]any{
		"orderId":       res.OrderID,
		"publicCode":    res.PublicCode,
		"trackingToken": res.TrackingToken,
		"reservedUntil": res.ReservedUntil.UTC().Format(time.RFC3339),
		"totals":        totalsMap(res.Totals),
		"idempotent":    res.Idempotent,
	})
}

// SubmitPayment принимает номер операции кошелька.
func (s *OrderService) SubmitPayment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in order.SubmitPaymentInput
	if err := decodeStruct(req, &in); err != nil {
		return nil, err
	}
	res, err := s.core.SubmitPayment(ctx, actorFromContext(ctx), in)
	if err != nil {
		s.logFailure(err, MethodSubmitPayment)
		return nil, toStatus(err)
	}
	return encodeStruct(map[string]any{"ok": res.OK, "idempotent": res.Idempotent})
}

// TrackOrder возвращает состояние заказа по публичному коду и токену.
func (s *OrderService) TrackOrder(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in order.TrackOrderInput
	if err := decodeStruct(req, &in); err != nil {
		return nil, err
	}
	found, err := s.core.TrackOrder(ctx, actorFromContext(ctx), in)
	if err != nil {
		return nil, toStatus(err)
	}
	return encodeStruct(orderMap(found))
}

type updateStatusRequest struct {
	OrderID string             `json:"orderId"`
	Status  domain.OrderStatus `json:"status"`
}

// UpdateOrderStatus меняет статус от имени администратора.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in updateStatusRequest
	if err := decodeStruct(req, &in); err != nil {
		return nil, err
	}
	actor, err := s.adminFromContext(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	if err := s.core.UpdateOrderStatus(ctx, actor, strings.TrimSpace(in.OrderID), in.Status); err != nil {
		s.logFailure(err, MethodUpdateOrderStatus)
		return nil, toStatus(err)
	}
	return encodeStruct(map[string]any{"ok": true})
}

func (s *OrderService) adminFromContext(ctx context.Context) (domain.ActorContext, error) {
	if s.admin == nil {
		return domain.ActorContext{}, domain.ErrUnauthenticated
	}
	raw, ok := auth.BearerToken(metadataValue(ctx, authorizationHeader))
	if !ok {
		return domain.ActorContext{}, domain.ErrUnauthenticated
	}
	public := actorFromContext(ctx)
	return s.admin.AdminActor(raw, public.IP, public.UserAgent)
}

func (s *OrderService) logFailure(err error, method string) {
	if domain.KindOf(err) != domain.KindInternal {
		return
	}
	s.logger.WithError(err).WithField("method", method).Error("order operation failed")
}

// actorFromContext строит контекст покупателя: IP из x-forwarded-for, иначе адрес peer.
func actorFromContext(ctx context.Context) domain.ActorContext {
	ip := domain.DefaultClientIP
	if fwd := metadataValue(ctx, forwardedForHeader); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if first = strings.TrimSpace(first); first != "" {
			ip = first
		}
	} else if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		if host, _, err := net.SplitHostPort(p.Addr.String()); err == nil && host != "" {
			ip = host
		}
	}
	return domain.PublicActor(ip, metadataValue(ctx, userAgentHeader))
}

func metadataValue(ctx context.Context, key string) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get(key)
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}

func decodeStruct(req *structpb.Struct, dst any) error {
	if req == nil {
		return status.Error(codes.InvalidArgument, "request is required")
	}
	data, err := protojson.Marshal(req)
	if err != nil {
		return status.Error(codes.InvalidArgument, "request is not valid JSON")
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return status.Error(codes.InvalidArgument, fmt.Sprintf("%s: %v", domain.ErrValidation.Code, err))
	}
	return nil
}

func encodeStruct(v map[string]any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to encode response")
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, status.Error(codes.Internal, "failed to encode response")
	}
	return out, nil
}

func totalsMap(t domain.Totals) map[string]any {
	return map[string]any{
		"currency": domain.Currency,
		"subtotal": domain.FormatMinor(t.SubtotalMinor),
		"discount": domain.FormatMinor(t.DiscountMinor),
		"shipping": domain.FormatMinor(t.ShippingMinor),
		"total":    domain.FormatMinor(t.TotalMinor),
	}
}

func orderMap(o domain.Order) map[string]any {
	items := make([]map[string]any, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, map[string]any{
			"productId": it.ProductID,
			"variantId": it.Variant.ID,
			"name":      it.Name,
			"qty":       it.Qty,
			"unitPrice": domain.FormatMinor(it.UnitPriceMinor),
		})
	}
	out := map[string]any{
		"publicCode": o.PublicCode,
		"status":     string(o.Status),
		"customer":   o.Customer,
		"shipping":   domain.RecordOf(o.Shipping),
		"items":      items,
		"totals":     totalsMap(o.Totals),
		"createdAt":  o.CreatedAt.UTC().Format(time.RFC3339),
	}
	if o.Status.IsExpirable() && !o.ReservedUntil.IsZero() {
		out["reservedUntil"] = o.ReservedUntil.UTC().Format(time.RFC3339)
	}
	if o.Payment.OperationCode != "" {
		out["payment"] = map[string]any{
			"method":        string(o.Payment.Method),
			"operationCode": o.Payment.OperationCode,
		}
	}
	return out
}

// toStatus переводит бизнес-ошибку в gRPC-статус; сообщение начинается с машинного кода.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return status.Error(codes.Canceled, err.Error())
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return status.Error(codes.DeadlineExceeded, err.Error())
	}

	code := domain.CodeOf(err)
	var grpcCode codes.Code
	switch {
	case domain.IsValidation(err):
		grpcCode = codes.InvalidArgument
	case errors.Is(err, domain.ErrOperationCodeAlreadyUsed), errors.Is(err, domain.ErrPaymentAlreadySent):
		grpcCode = codes.AlreadyExists
	default:
		switch domain.KindOf(err) {
		case domain.KindNotFound:
			grpcCode = codes.NotFound
		case domain.KindConflict, domain.KindExpired:
			grpcCode = codes.FailedPrecondition
		case domain.KindForbidden:
			grpcCode = codes.PermissionDenied
		case domain.KindUnauthorized:
			grpcCode = codes.Unauthenticated
		case domain.KindRateLimited:
			grpcCode = codes.ResourceExhausted
		default:
			return status.Error(codes.Internal, code)
		}
	}
	return status.Error(grpcCode, code+": "+err.Error())
}
