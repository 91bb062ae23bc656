package model

import (
	"time"

	"github.com/Victor-armando18/service-vat/internal/domain/money"
	"gorm.io/datatypes"
)

type Address struct {
	Country  string `json:"country_iso"`
	Postcode string `json:"postcode,omitempty"`
}

// User is the read-only projection of the customer supplied by collaborators.
type User struct {
	ID      *string  `json:"id"`
	Address *Address `json:"address"`
}

type CartItem struct {
	ItemID        string         `json:"item_id"`
	ProductID     *string        `json:"product_id"`
	ProductCode   *string        `json:"product_code"`
	VariationName *string        `json:"variation_name"`
	Metadata      map[string]any `json:"metadata"`
	Quantity      int64          `json:"quantity"`
	ActualPrice   *money.Money   `json:"actual_price"`
}

// CartSnapshot is the cart as seen by the VAT core; it is never read from a live cart table.
type CartSnapshot struct {
	ID      string     `json:"id"`
	OrderID *string    `json:"order_id,omitempty"`
	Items   []CartItem `json:"items"`
}

// CartVATState stores the latest calculation on the cart for idempotent re-reads.
type CartVATState struct {
	CartID                     string         `gorm:"type:varchar(64);primaryKey" json:"cart_id"`
	VATResult                  datatypes.JSON `gorm:"type:jsonb" json:"vat_result"`
	VATLastCalculatedAt        *time.Time     `json:"vat_last_calculated_at"`
	VATCalculationError        bool           `gorm:"not null;default:false" json:"vat_calculation_error"`
	VATCalculationErrorMessage string         `gorm:"type:text" json:"vat_calculation_error_message"`
}

func (CartVATState) TableName() string { return "cart_vat_states" }
