package domain

// ShippingMethod различает способы доставки.
type ShippingMethod string

const (
	// Курьер по Лиме.
	ShippingLimaDelivery ShippingMethod = "LIMA_DELIVERY"
	// Транспортное агентство в провинции.
	ShippingProvinceAgency ShippingMethod = "AGENCIA_PROVINCIA"
)

// Shipping закрыт для реализаций вне пакета: это сумма вариантов доставки. Реализации есть только в этом пакете.
type Shipping interface {
	Method() ShippingMethod
	Receiver() Receiver
	isShipping()
}

type Receiver struct {
	Name  string
	DNI   string
	Phone string
}

// LimaDelivery описывает доставку курьером по адресу в Лиме.
type LimaDelivery struct {
	ReceiverName  string `json:"receiverName" validate:"required,min=2,max=120"`
	ReceiverDNI   string `json:"receiverDni" validate:"required,min=8,max=20"`
	ReceiverPhone string `json:"receiverPhone" validate:"required,min=6,max=40"`
	District      string `json:"district" validate:"required,min=2,max=120"`
	AddressLine1  string `json:"addressLine1" validate:"required,min=5,max=200"`
	Reference     string `json:"reference,omitempty" validate:"max=200"`
}

func (LimaDelivery) Method() ShippingMethod { return ShippingLimaDelivery }

func (d LimaDelivery) Receiver() Receiver {
	return Receiver{Name: d.ReceiverName, DNI: d.ReceiverDNI, Phone: d.ReceiverPhone}
}

func (LimaDelivery) isShipping() {}

// ProvinceAgency описывает отправку через агентство с выдачей в пункте.
type ProvinceAgency struct {
	ReceiverName  string `json:"receiverName" validate:"required,min=2,max=120"`
	ReceiverDNI   string `json:"receiverDni" validate:"required,min=8,max=20"`
	ReceiverPhone string `json:"receiverPhone" validate:"required,min=6,max=40"`
	Department    string `json:"department" validate:"required,min=2,max=120"`
	Province      string `json:"province" validate:"required,min=2,max=120"`
	AgencyName    string `json:"agencyName" validate:"required,min=2,max=120"`
	AgencyAddress string `json:"agencyAddress" validate:"required,min=5,max=200"`
	Reference     string `json:"reference,omitempty" validate:"max=200"`
}

func (ProvinceAgency) Method() ShippingMethod { return ShippingProvinceAgency }

func (a ProvinceAgency) Receiver() Receiver {
	return Receiver{Name: a.ReceiverName, DNI: a.ReceiverDNI, Phone: a.ReceiverPhone}
}

func (ProvinceAgency) isShipping() {}

// ShippingRecord хранит доставку в плоском виде для хранилищ и транспорта.
type ShippingRecord struct {
	Method        ShippingMethod `json:"method" firestore:"method"`
	ReceiverName  string         `json:"receiverName" firestore:"receiverName"`
	ReceiverDNI   string         `json:"receiverDni" firestore:"receiverDni"`
	ReceiverPhone string         `json:"receiverPhone" firestore:"receiverPhone"`
	District      string         `json:"district,omitempty" firestore:"district,omitempty"`
	AddressLine1  string         `json:"addressLine1,omitempty" firestore:"addressLine1,omitempty"`
	Department    string         `json:"department,omitempty" firestore:"department,omitempty"`
	Province      string         `json:"province,omitempty" firestore:"province,omitempty"`
	AgencyName    string         `json:"agencyName,omitempty" firestore:"agencyName,omitempty"`
	AgencyAddress string         `json:"agencyAddress,omitempty" firestore:"agencyAddress,omitempty"`
	Reference     string         `json:"reference,omitempty" firestore:"reference,omitempty"`
}

// Shipping восстанавливает вариант доставки по дискриминатору.
func (r ShippingRecord) Shipping() (Shipping, error) {
	switch r.Method {
	case ShippingLimaDelivery:
		return LimaDelivery{
			ReceiverName:  r.ReceiverName,
			ReceiverDNI:   r.ReceiverDNI,
			ReceiverPhone: r.ReceiverPhone,
			District:      r.District,
			AddressLine1:  r.AddressLine1,
			Reference:     r.Reference,
		}, nil
	case ShippingProvinceAgency:
		return ProvinceAgency{
			ReceiverName:  r.ReceiverName,
			ReceiverDNI:   r.ReceiverDNI,
			ReceiverPhone: r.ReceiverPhone,
			Department:    r.Department,
			Province:      r.Province,
			AgencyName:    r.AgencyName,
			AgencyAddress: r.AgencyAddress,
			Reference:     r.Reference,
		}, nil
	default:
		return nil, NewValidationError("shipping.method", "oneof", string(ShippingLimaDelivery)+" "+string(ShippingProvinceAgency))
	}
}

// RecordOf переводит вариант доставки в плоскую форму.
func RecordOf(s Shipping) ShippingRecord {
	switch v := s.(type) {
	case LimaDelivery:
		return ShippingRecord{
			Method:        ShippingLimaDelivery,
			ReceiverName:  v.ReceiverName,
			ReceiverDNI:   v.ReceiverDNI,
			ReceiverPhone: v.ReceiverPhone,
			District:      v.District,
			AddressLine1:  v.AddressLine1,
			Reference:     v.Reference,
		}
	case ProvinceAgency:
		return ShippingRecord{
			Method:        ShippingProvinceAgency,
			ReceiverName:  v.ReceiverName,
			ReceiverDNI:   v.ReceiverDNI,
			ReceiverPhone: v.ReceiverPhone,
			Department:    v.Department,
			Province:      v.Province,
			AgencyName:    v.AgencyName,
			AgencyAddress: v.AgencyAddress,
			Reference:     v.Reference,
		}
	default:
		return ShippingRecord{}
	}
}
