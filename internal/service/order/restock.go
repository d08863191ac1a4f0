package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// releasePlan готовит возврат остатков по снимку заказа до начала записей.
type releasePlan struct {
	products map[string]domain.Product
	touched  []string
	logs     []domain.StockLogEntry
	units    int
}

// planRelease читает товары позиций заказа и готовит возврат остатков.
// Удалённый товар пропускается без записи в журнал. Для удалённого варианта
// остаток не меняется, но запись RELEASE в журнал попадает.
func planRelease(ctx context.Context, tx domain.Tx, order domain.Order, now time.Time) (releasePlan, error) {
	plan := releasePlan{products: make(map[string]domain.Product, len(order.Items))}
	missing := make(map[string]struct{})

	for _, item := range order.Items {
		if item.ProductID == "" || item.Variant.ID == "" || item.Qty <= 0 {
			continue
		}
		if _, gone := missing[item.ProductID]; gone {
			continue
		}

		p, loaded := plan.products[item.ProductID]
		if !loaded {
			var err error
			p, err = tx.GetProduct(ctx, item.ProductID)
			if errors.Is(err, domain.ErrProductNotFound) {
				missing[item.ProductID] = struct{}{}
				continue
			}
			if err != nil {
				return releasePlan{}, fmt.Errorf("read product %s: %w", item.ProductID, err)
			}
			plan.products[item.ProductID] = p
		}

		if idx := p.VariantIndex(item.Variant.ID); idx >= 0 {
			p.Variants[idx].Stock += item.Qty
			p.UpdatedAt = now
			plan.products[item.ProductID] = p
			if !contains(plan.touched, item.ProductID) {
				plan.touched = append(plan.touched, item.ProductID)
			}
			plan.units += item.Qty
		}

		plan.logs = append(plan.logs, domain.StockLogEntry{
			ProductID: item.ProductID,
			VariantID: item.Variant.ID,
			Delta:     item.Qty,
			Reason:    domain.StockReasonRelease,
			OrderID:   order.ID,
			CreatedAt: now,
		})
	}
	return plan, nil
}

// apply записывает остатки и журнал движения.
func (p releasePlan) apply(ctx context.Context, tx domain.Tx) error {
	for _, productID := range p.touched {
		if err := tx.PutProduct(ctx, p.products[productID]); err != nil {
			return fmt.Errorf("restock %s: %w", productID, err)
		}
	}
	for _, entry := range p.logs {
		if err := tx.AppendStockLog(ctx, entry); err != nil {
			return fmt.Errorf("append stock log: %w", err)
		}
	}
	return nil
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
