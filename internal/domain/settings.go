package domain

import "time"

// DefaultStoreName подставляется в письма, если настройки магазина не заданы.
const DefaultStoreName = "ODERA 05 STORE"

type SocialLinks struct {
	Instagram string `json:"instagram,omitempty" validate:"omitempty,url,max=300"`
	TikTok    string `json:"tiktok,omitempty" validate:"omitempty,url,max=300"`
	Facebook  string `json:"facebook,omitempty" validate:"omitempty,url,max=300"`
	WhatsApp  string `json:"whatsapp,omitempty" validate:"omitempty,url,max=300"`
}

// PaymentInstructions содержит реквизиты для оплаты через кошельки.
type PaymentInstructions struct {
	YapeName   string `json:"yapeName,omitempty" validate:"max=120"`
	YapeNumber string `json:"yapeNumber,omitempty" validate:"max=40"`
	PlinName   string `json:"plinName,omitempty" validate:"max=120"`
	PlinNumber string `json:"plinNumber,omitempty" validate:"max=40"`
}

// StoreSettings хранится единственным документом.
type StoreSettings struct {
	StoreName           string              `json:"storeName" validate:"required,min=2,max=80"`
	PublicContactEmail  string              `json:"publicContactEmail" validate:"omitempty,email,max=200"`
	PublicWhatsapp      string              `json:"publicWhatsapp" validate:"omitempty,min=3,max=40"`
	SocialLinks         SocialLinks         `json:"socialLinks"`
	PaymentInstructions PaymentInstructions `json:"paymentInstructions"`
	UpdatedAt           time.Time           `json:"updatedAt"`
}

// DisplayName возвращает название магазина для писем.
func (s StoreSettings) DisplayName() string {
	if s.StoreName == "" {
		return DefaultStoreName
	}
	return s.StoreName
}
