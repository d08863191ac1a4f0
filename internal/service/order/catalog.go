package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/validation"
)

var maxPriceMajor = decimal.NewFromInt(1_000_000)

type ProductImageInput struct {
	URL    string `json:"url" validate:"required,url,max=500"`
	Alt    string `json:"alt,omitempty" validate:"max=200"`
	IsMain bool   `json:"isMain"`
	Order  int    `json:"order" validate:"min=0,max=999"`
}

type ProductVariantInput struct {
	ID    string `json:"id" validate:"required,min=1,max=80"`
	Size  string `json:"size,omitempty" validate:"max=40"`
	Color string `json:"color,omitempty" validate:"max=40"`
	SKU   string `json:"sku,omitempty" validate:"max=80"`
	Stock int    `json:"stock" validate:"min=0,max=100000"`
}

// UpsertProductInput приходит из бэк-офиса. Цены в основных единицах (соли).
type UpsertProductInput struct {
	Slug        string                `json:"slug" validate:"required,min=2,max=80,slug"`
	Status      domain.ProductStatus  `json:"status" validate:"required,product_status"`
	Name        string                `json:"name" validate:"required,min=2,max=150"`
	Description string                `json:"description" validate:"max=4000"`
	Brand       string                `json:"brand" validate:"max=80"`
	Category    string                `json:"category" validate:"max=80"`
	Price       decimal.Decimal       `json:"price" validate:"-"`
	SalePrice   *decimal.Decimal      `json:"salePrice,omitempty" validate:"-"`
	OnSale      bool                  `json:"onSale"`
	Images      []ProductImageInput   `json:"images" validate:"max=10,dive"`
	Variants    []ProductVariantInput `json:"variants" validate:"required,min=1,max=50,unique=ID,dive"`
}

func validatePrice(field string, price decimal.Decimal) error {
	if price.IsNegative() || price.GreaterThan(maxPriceMajor) {
		return domain.NewValidationError(field, "range", "0-1000000")
	}
	return nil
}

func (in UpsertProductInput) validate() error {
	if err := validation.Struct(in); err != nil {
		return err
	}
	if err := validatePrice("price", in.Price); err != nil {
		return err
	}
	if in.SalePrice != nil {
		return validatePrice("salePrice", *in.SalePrice)
	}
	return nil
}

// toProduct строит карточку; описание очищается от опасного HTML.
func (s *Service) toProduct(in UpsertProductInput) domain.Product {
	p := domain.Product{
		ID:          in.Slug,
		Status:      in.Status,
		Name:        strings.TrimSpace(in.Name),
		Description: s.sanitizer.Sanitize(in.Description),
		Brand:       strings.TrimSpace(in.Brand),
		Category:    strings.TrimSpace(in.Category),
		PriceMinor:  domain.DecimalToMinor(in.Price),
		OnSale:      in.OnSale,
	}
	if in.SalePrice != nil {
		sale := domain.DecimalToMinor(*in.SalePrice)
		p.SalePriceMinor = &sale
	}
	for _, img := range in.Images {
		p.Images = append(p.Images, domain.ProductImage{URL: img.URL, Alt: img.Alt, IsMain: img.IsMain, Order: img.Order})
	}
	for _, v := range in.Variants {
		p.Variants = append(p.Variants, domain.Variant{ID: v.ID, Size: v.Size, Color: v.Color, SKU: v.SKU, Stock: v.Stock})
	}
	p.SearchTokens = domain.ProductSearchTokens(p)
	return p
}

func productAuditView(p domain.Product) map[string]any {
	stock := 0
	for _, v := range p.Variants {
		stock += v.Stock
	}
	view := map[string]any{
		"name":       p.Name,
		"status":     string(p.Status),
		"price":      domain.FormatMinor(p.PriceMinor),
		"onSale":     p.OnSale,
		"variants":   len(p.Variants),
		"totalStock": stock,
	}
	if p.SalePriceMinor != nil {
		view["salePrice"] = domain.FormatMinor(*p.SalePriceMinor)
	}
	return view
}

// UpsertProduct создаёт или перезаписывает карточку товара. Остатки вариантов задаются как есть.
func (s *Service) UpsertProduct(ctx context.Context, actor domain.ActorContext, in UpsertProductInput) (domain.Product, error) {
	started := time.Now()
	product, err := s.upsertProduct(ctx, actor, in)
	s.observe(opUpsertProduct, started, err)
	return product, err
}

func (s *Service) upsertProduct(ctx context.Context, actor domain.ActorContext, in UpsertProductInput) (domain.Product, error) {
	if err := requireAdmin(actor); err != nil {
		return domain.Product{}, err
	}
	if err := in.validate(); err != nil {
		return domain.Product{}, err
	}

	now := s.now()
	var (
		saved   domain.Product
		created bool
	)
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		product := s.toProduct(in)
		product.CreatedAt, product.UpdatedAt = now, now

		existing, err := tx.GetProduct(ctx, product.ID)
		switch {
		case errors.Is(err, domain.ErrProductNotFound):
			created = true
		case err != nil:
			return fmt.Errorf("read product %s: %w", product.ID, err)
		default:
			created = false
			product.CreatedAt = existing.CreatedAt
		}

		if err := tx.PutProduct(ctx, product); err != nil {
			return fmt.Errorf("save product: %w", err)
		}

		entry := domain.AuditEntry{
			Actor:     actor.Actor,
			Action:    domain.AuditProductUpdated,
			Target:    domain.AuditTarget{Type: domain.AuditTargetProduct, ID: product.ID},
			After:     productAuditView(product),
			Meta:      actor.Meta(),
			CreatedAt: now,
		}
		if created {
			entry.Action = domain.AuditProductCreated
		} else {
			entry.Before = productAuditView(existing)
		}
		if err := tx.AppendAudit(ctx, entry); err != nil {
			return fmt.Errorf("append audit: %w", err)
		}

		msg, err := domain.NewProductEventMessage(uuid.NewString(), domain.ProductEvent{
			ProductID:  product.ID,
			Status:     product.Status,
			Created:    created,
			ActorUID:   actor.Actor.UID,
			OccurredAt: now,
		})
		if err != nil {
			return err
		}
		if err := tx.EnqueueEvent(ctx, msg); err != nil {
			return fmt.Errorf("enqueue product event: %w", err)
		}

		saved = product
		return nil
	})
	if err != nil {
		return domain.Product{}, err
	}

	s.logger.WithFields(log.Fields{
		"product_id": saved.ID,
		"created":    created,
		"admin":      actor.Actor.Email,
	}).Info("product upserted")
	return saved, nil
}

type ListProductsInput struct {
	Search string
	// IncludeArchived учитывается только для администратора.
	IncludeArchived bool
	Limit           int
}

const (
	defaultProductsLimit = 60
	maxProductsLimit     = 200
)

// ListProducts возвращает витрину; поиск идёт по первому нормализованному токену запроса.
func (s *Service) ListProducts(ctx context.Context, actor domain.ActorContext, in ListProductsInput) ([]domain.Product, error) {
	q := domain.ProductQuery{
		IncludeArchived: in.IncludeArchived && actor.IsAdmin,
		Limit:           in.Limit,
	}
	if tokens := domain.SearchTokens(in.Search); len(tokens) > 0 {
		q.Token = tokens[0]
	}
	switch {
	case q.Limit <= 0:
		q.Limit = defaultProductsLimit
	case q.Limit > maxProductsLimit:
		q.Limit = maxProductsLimit
	}
	return s.store.ListProducts(ctx, q)
}

// GetProduct возвращает карточку; архивные товары видит только администратор.
func (s *Service) GetProduct(ctx context.Context, actor domain.ActorContext, slug string) (domain.Product, error) {
	product, err := s.store.GetProduct(ctx, strings.TrimSpace(slug))
	if err != nil {
		return domain.Product{}, err
	}
	if product.Status != domain.ProductStatusActive && !actor.IsAdmin {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return product, nil
}
