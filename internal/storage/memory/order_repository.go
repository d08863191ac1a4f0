package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const defaultListLimit = 100

// ListExpired возвращает заказы в статусе status с резервом, истёкшим строго раньше before.
func (s *Store) ListExpired(_ context.Context, status domain.OrderStatus, before time.Time, limit int) ([]domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]domain.Order, 0)
	for _, o := range s.orders {
		if o.Status != status || !o.ReservedUntil.Before(before) {
			continue
		}
		result = append(result, o.Clone())
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].ReservedUntil.Equal(result[j].ReservedUntil) {
			return result[i].ReservedUntil.Before(result[j].ReservedUntil)
		}
		return result[i].ID < result[j].ID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// ListOrders возвращает последние заказы, опционально по статусу.
func (s *Store) ListOrders(_ context.Context, q domain.OrderQuery) ([]domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]domain.Order, 0, len(s.orders))
	for _, o := range s.orders {
		if q.Status != "" && o.Status != q.Status {
			continue
		}
		result = append(result, o.Clone())
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})

	limit := q.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// GetOrder читает заказ вне транзакции.
func (s *Store) GetOrder(_ context.Context, id string) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return o.Clone(), nil
}

// GetProduct читает товар вне транзакции.
func (s *Store) GetProduct(_ context.Context, id string) (domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return p.Clone(), nil
}

// ListProducts фильтрует каталог по статусу и поисковому токену.
func (s *Store) ListProducts(_ context.Context, q domain.ProductQuery) ([]domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if !q.IncludeArchived && p.Status != domain.ProductStatusActive {
			continue
		}
		if q.Token != "" && !hasToken(p.SearchTokens, q.Token) {
			continue
		}
		result = append(result, p.Clone())
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].UpdatedAt.Equal(result[j].UpdatedAt) {
			return result[i].UpdatedAt.After(result[j].UpdatedAt)
		}
		return strings.Compare(result[i].ID, result[j].ID) < 0
	})

	limit := q.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// GetSettings читает настройки магазина.
func (s *Store) GetSettings(context.Context) (domain.StoreSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.settings == nil {
		return domain.StoreSettings{}, domain.ErrSettingsNotFound
	}
	return *s.settings, nil
}

func hasToken(tokens []string, token string) bool {
	for _, t := range tokens {
		if t == token {
			return true
		}
	}
	return false
}
