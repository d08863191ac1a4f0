package domain

import "time"

// ProductStatus определяет видимость товара в каталоге.
type ProductStatus string

const (
	ProductStatusActive   ProductStatus = "active"
	ProductStatusArchived ProductStatus = "archived"
)

// Valid сообщает, является ли статус товара известным.
func (s ProductStatus) Valid() bool {
	return s == ProductStatusActive || s == ProductStatusArchived
}

// ProductImage ссылается на изображение во внешнем хостинге.
type ProductImage struct {
	URL    string
	Alt    string
	IsMain bool
	Order  int
}

// Variant описывает размер/цвет товара со своим остатком.
type Variant struct {
	ID    string
	Size  string
	Color string
	SKU   string
	Stock int
}

// Product описывает карточку товара. ID совпадает со slug и не меняется.
type Product struct {
	ID             string
	Status         ProductStatus
	Name           string
	Description    string
	Brand          string
	Category       string
	PriceMinor     int64
	SalePriceMinor *int64
	OnSale         bool
	Images         []ProductImage
	Variants       []Variant
	SearchTokens   []string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// UnitPriceMinor возвращает действующую цену: акционную, если она задана и акция включена.
func (p *Product) UnitPriceMinor() int64 {
	if p.OnSale && p.SalePriceMinor != nil {
		return *p.SalePriceMinor
	}
	return p.PriceMinor
}

// MainImageURL возвращает главное изображение, иначе первое, иначе пустую строку.
func (p *Product) MainImageURL() string {
	for _, img := range p.Images {
		if img.IsMain {
			return img.URL
		}
	}
	if len(p.Images) > 0 {
		return p.Images[0].URL
	}
	return ""
}

// VariantIndex ищет вариант по идентификатору; -1, если его нет.
func (p *Product) VariantIndex(variantID string) int {
	for i := range p.Variants {
		if p.Variants[i].ID == variantID {
			return i
		}
	}
	return -1
}

// Clone возвращает глубокую копию товара.
func (p Product) Clone() Product {
	out := p
	if p.SalePriceMinor != nil {
		v := *p.SalePriceMinor
		out.SalePriceMinor = &v
	}
	out.Images = append([]ProductImage(nil), p.Images...)
	out.Variants = append([]Variant(nil), p.Variants...)
	out.SearchTokens = append([]string(nil), p.SearchTokens...)
	return out
}

// ValidateInvariants проверяет остатки и уникальность вариантов.
func (p *Product) ValidateInvariants() []error {
	var errs []error
	seen := make(map[string]struct{}, len(p.Variants))
	for _, v := range p.Variants {
		if v.Stock < 0 {
			errs = append(errs, ErrNegativeStock)
		}
		if _, dup := seen[v.ID]; dup {
			errs = append(errs, ErrDuplicateVariant)
		}
		seen[v.ID] = struct{}{}
	}
	return errs
}
