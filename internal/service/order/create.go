package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/notify"
	"github.com/vladislavdragonenkov/storefront/internal/validation"
)

// CreateOrderInput содержит корзину покупателя и данные доставки.
type CreateOrderInput struct {
	Items      []domain.OrderLine `json:"items" validate:"required,min=1,max=50,dive"`
	Customer   domain.Customer    `json:"customer"`
	Shipping   domain.Shipping    `json:"-" validate:"-"`
	CouponCode string             `json:"couponCode,omitempty" validate:"omitempty,min=3,max=40"`
	// IdempotencyKey ограничен адресом клиента: тот же ключ с другого IP создаст новый заказ.
	IdempotencyKey string `json:"-" validate:"omitempty,max=200"`
}

// CreateOrderResult возвращается покупателю после резервирования.
type CreateOrderResult struct {
	OrderID       string
	PublicCode    string
	TrackingToken string
	ReservedUntil time.Time
	Totals        domain.Totals
	// Idempotent: результат взят из записи идемпотентности, побочных эффектов не было.
	Idempotent bool
}

func resultFromRecord(rec domain.IdempotencyRecord) CreateOrderResult {
	return CreateOrderResult{
		OrderID:       rec.OrderID,
		PublicCode:    rec.PublicCode,
		TrackingToken: rec.TrackingToken,
		ReservedUntil: rec.ReservedUntil,
		Totals:        rec.Totals,
		Idempotent:    true,
	}
}

func validateCreateOrder(in CreateOrderInput) error {
	if err := validation.Struct(in); err != nil {
		return err
	}
	if in.Shipping == nil {
		return domain.NewValidationError("shipping", "required", "")
	}
	if err := validation.Struct(in.Shipping); err != nil {
		return prefixFields("shipping", err)
	}
	return nil
}

// prefixFields добавляет путь вложенного объекта к полям ошибки валидации.
func prefixFields(prefix string, err error) error {
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		return err
	}
	out := &domain.ValidationError{Fields: make([]domain.FieldError, 0, len(verr.Fields))}
	for _, f := range verr.Fields {
		f.Field = prefix + "." + f.Field
		out.Fields = append(out.Fields, f)
	}
	return out
}

// CreateOrder резервирует товар и создаёт заказ в статусе SCHEDULED.
//
// Проверка ключа идемпотентности, чтение остатков, выдача публичного кода и все записи
// выполняются в одной транзакции. Повтор с тем же ключом и адресом возвращает сохранённый
// результат без списания остатков.
func (s *Service) CreateOrder(ctx context.Context, actor domain.ActorContext, in CreateOrderInput) (CreateOrderResult, error) {
	started := time.Now()
	if err := validateCreateOrder(in); err != nil {
		s.observe(opCreateOrder, started, err)
		return CreateOrderResult{}, err
	}

	lines := domain.MergeLines(in.Items)
	ip := actor.ClientIP()
	now := s.now()

	var idemID string
	if key := strings.TrimSpace(in.IdempotencyKey); key != "" {
		idemID = domain.IdempotencyDocID(ip, key)
	}

	var (
		result  CreateOrderResult
		created domain.Order
		units   int
	)
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		// Транзакция может быть повторена хранилищем.
		result, created, units = CreateOrderResult{}, domain.Order{}, 0

		if idemID != "" {
			rec, err := tx.GetIdempotency(ctx, idemID)
			switch {
			case err == nil:
				result = resultFromRecord(rec)
				return nil
			case !errors.Is(err, domain.ErrIdempotencyKeyNotFound):
				return fmt.Errorf("read idempotency record: %w", err)
			}
		}

		products, order, err := loadCart(ctx, tx, lines)
		if err != nil {
			return err
		}

		items, subtotal, err := reserveLines(products, lines, now)
		if err != nil {
			return err
		}

		seq, err := tx.NextSequence(ctx, orderSequenceName)
		if err != nil {
			return fmt.Errorf("allocate public code: %w", err)
		}

		token, err := s.tokens.Token(domain.TrackingTokenBytes)
		if err != nil {
			return fmt.Errorf("generate tracking token: %w", err)
		}

		totals, coupon := domain.ComputeTotals(subtotal, in.CouponCode)
		created = domain.Order{
			ID:            uuid.NewString(),
			PublicCode:    fmt.Sprintf(publicCodeFormat, seq),
			TrackingToken: token,
			Status:        domain.OrderStatusScheduled,
			Customer:      in.Customer,
			Shipping:      in.Shipping,
			Items:         items,
			Totals:        totals,
			CouponCode:    coupon,
			ReservedUntil: now.Add(domain.ReservationTTL),
			CreatedAt:     now,
			UpdatedAt:     now,
		}

		// Записи начинаются здесь, после всех чтений.
		for _, productID := range order {
			if err := tx.PutProduct(ctx, products[productID]); err != nil {
				return fmt.Errorf("update stock of %s: %w", productID, err)
			}
		}
		for _, line := range lines {
			units += line.Qty
			if err := tx.AppendStockLog(ctx, domain.StockLogEntry{
				ProductID: line.ProductID,
				VariantID: line.VariantID,
				Delta:     -line.Qty,
				Reason:    domain.StockReasonReserve,
				OrderID:   created.ID,
				CreatedAt: now,
			}); err != nil {
				return fmt.Errorf("append stock log: %w", err)
			}
		}

		if err := tx.PutOrder(ctx, created); err != nil {
			return fmt.Errorf("save order: %w", err)
		}

		auditMeta := actor.Meta()
		auditMeta["shippingMethod"] = string(in.Shipping.Method())
		if err := tx.AppendAudit(ctx, domain.AuditEntry{
			Actor:     domain.Actor{UID: domain.PublicActorUID, Email: in.Customer.Email},
			Action:    domain.AuditOrderCreated,
			Target:    domain.AuditTarget{Type: domain.AuditTargetOrder, ID: created.ID, PublicCode: created.PublicCode},
			After:     map[string]any{"status": string(created.Status)},
			Meta:      auditMeta,
			CreatedAt: now,
		}); err != nil {
			return fmt.Errorf("append audit: %w", err)
		}

		if idemID != "" {
			if err := tx.PutIdempotency(ctx, domain.IdempotencyRecord{
				ID:            idemID,
				OrderID:       created.ID,
				PublicCode:    created.PublicCode,
				TrackingToken: created.TrackingToken,
				ReservedUntil: created.ReservedUntil,
				Totals:        created.Totals,
				IP:            ip,
				CreatedAt:     now,
			}); err != nil {
				return fmt.Errorf("save idempotency record: %w", err)
			}
		}

		msg, err := domain.NewOrderEventMessage(uuid.NewString(), domain.EventOrderCreated, domain.OrderEvent{
			OrderID:    created.ID,
			PublicCode: created.PublicCode,
			Status:     created.Status,
			ActorUID:   domain.PublicActorUID,
			OccurredAt: now,
			Metadata: map[string]any{
				"total_minor": created.Totals.TotalMinor,
				"currency":    domain.Currency,
				"units":       units,
			},
		})
		if err != nil {
			return err
		}
		if err := tx.EnqueueEvent(ctx, msg); err != nil {
			return fmt.Errorf("enqueue order created event: %w", err)
		}

		result = CreateOrderResult{
			OrderID:       created.ID,
			PublicCode:    created.PublicCode,
			TrackingToken: created.TrackingToken,
			ReservedUntil: created.ReservedUntil,
			Totals:        created.Totals,
		}
		return nil
	})
	s.observe(opCreateOrder, started, err)
	if err != nil {
		return CreateOrderResult{}, err
	}

	s.metrics.RecordOrderCreated(result.Idempotent, units)
	logger := s.logger.WithFields(log.Fields{
		"order_id":    result.OrderID,
		"public_code": result.PublicCode,
	})
	if result.Idempotent {
		logger.Info("create order replayed from idempotency record")
		return result, nil
	}
	logger.WithField("total_minor", result.Totals.TotalMinor).Info("order created")

	msg, err := s.templates.OrderCreated(s.storeName(ctx), created)
	if err != nil {
		logger.WithError(err).Error("render order created email failed")
		return result, nil
	}
	s.mailer.Dispatch(notify.TemplateOrderCreated, msg)
	return result, nil
}

// loadCart читает все товары корзины внутри транзакции. Возвращает товары и порядок их первого появления.
func loadCart(ctx context.Context, tx domain.Tx, lines []domain.OrderLine) (map[string]domain.Product, []string, error) {
	products := make(map[string]domain.Product, len(lines))
	order := make([]string, 0, len(lines))
	for _, line := range lines {
		if _, ok := products[line.ProductID]; ok {
			continue
		}
		p, err := tx.GetProduct(ctx, line.ProductID)
		if err != nil {
			if errors.Is(err, domain.ErrProductNotFound) {
				return nil, nil, fmt.Errorf("%w: %s", domain.ErrProductNotFound, line.ProductID)
			}
			return nil, nil, fmt.Errorf("read product %s: %w", line.ProductID, err)
		}
		if p.Status != domain.ProductStatusActive {
			return nil, nil, fmt.Errorf("%w: %s", domain.ErrProductInactive, line.ProductID)
		}
		products[line.ProductID] = p
		order = append(order, line.ProductID)
	}
	return products, order, nil
}

// reserveLines списывает остатки в загруженных товарах и строит снимки позиций.
func reserveLines(products map[string]domain.Product, lines []domain.OrderLine, now time.Time) ([]domain.OrderItem, int64, error) {
	items := make([]domain.OrderItem, 0, len(lines))
	var subtotal int64
	for _, line := range lines {
		p := products[line.ProductID]
		idx := p.VariantIndex(line.VariantID)
		if idx < 0 {
			return nil, 0, fmt.Errorf("%w: %s/%s", domain.ErrVariantNotFound, line.ProductID, line.VariantID)
		}
		variant := p.Variants[idx]
		if variant.Stock < line.Qty {
			return nil, 0, fmt.Errorf("%w: %s/%s requested %d, available %d",
				domain.ErrOutOfStock, line.ProductID, line.VariantID, line.Qty, variant.Stock)
		}
		p.Variants[idx].Stock -= line.Qty
		p.UpdatedAt = now
		products[line.ProductID] = p

		item := domain.OrderItem{
			ProductID:      p.ID,
			Name:           p.Name,
			ImageURL:       p.MainImageURL(),
			Variant:        domain.VariantSnapshot{ID: variant.ID, Size: variant.Size, Color: variant.Color},
			UnitPriceMinor: p.UnitPriceMinor(),
			Qty:            line.Qty,
		}
		subtotal += item.LineTotalMinor()
		items = append(items, item)
	}
	return items, subtotal, nil
}
