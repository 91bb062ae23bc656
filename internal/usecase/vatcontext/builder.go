package vatcontext

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Victor-armando18/service-vat/internal/domain"
	"github.com/Victor-armando18/service-vat/internal/domain/classify"
	"github.com/Victor-armando18/service-vat/internal/domain/model"
	"github.com/Victor-armando18/service-vat/internal/domain/money"
	"github.com/Victor-armando18/service-vat/internal/domain/region"
)

// CustomerConsumer is the only customer classification the VAT core handles.
const CustomerConsumer = "b2c"

type Address struct {
	Country  string `json:"country"`
	Postcode string `json:"postcode,omitempty"`
}

type User struct {
	ID             *string  `json:"id"`
	Region         string   `json:"region"`
	Address        *Address `json:"address"`
	Classification string   `json:"classification"`
}

type Item struct {
	ItemID         string                  `json:"item_id"`
	ProductID      *string                 `json:"product_id"`
	ProductCode    *string                 `json:"product_code"`
	NetAmount      money.Money             `json:"net_amount"`
	Quantity       int64                   `json:"quantity"`
	Classification classify.Classification `json:"classification"`
}

type Cart struct {
	ID       string      `json:"id"`
	Items    []Item      `json:"items"`
	TotalNet money.Money `json:"total_net"`
}

type Settings struct {
	EffectiveDate  string `json:"effective_date"`
	ContextVersion string `json:"context_version"`
}

// Context is the evaluation context of one calculation. It is a value: callers
// get fresh maps from ToMap and ItemContext, so rule execution never reaches it.
type Context struct {
	User     User     `json:"user"`
	Cart     Cart     `json:"cart"`
	Settings Settings `json:"settings"`
}

// Build assembles the context for user and cart. Regions are resolved against
// snap on date; a nil user or a user without address resolves to ROW.
func Build(user *model.User, cart model.CartSnapshot, snap *region.Snapshot, date time.Time) (Context, error) {
	c := Context{
		User: User{Region: region.ROW, Classification: CustomerConsumer},
		Cart: Cart{ID: cart.ID, Items: make([]Item, 0, len(cart.Items)), TotalNet: money.Zero},
		Settings: Settings{
			EffectiveDate:  region.FormatDate(date),
			ContextVersion: domain.ContextVersion,
		},
	}

	if user != nil {
		c.User.ID = user.ID
		if user.Address != nil {
			country := strings.ToUpper(strings.TrimSpace(user.Address.Country))
			if country == "" {
				return Context{}, missing("user.address.country")
			}
			c.User.Address = &Address{Country: country, Postcode: user.Address.Postcode}
			c.User.Region = snap.Lookup(country, date)
		}
	}

	for i, it := range cart.Items {
		item, err := buildItem(i, it)
		if err != nil {
			return Context{}, err
		}
		c.Cart.Items = append(c.Cart.Items, item)
		c.Cart.TotalNet = c.Cart.TotalNet.Add(item.NetAmount)
	}
	return c, nil
}

func buildItem(i int, it model.CartItem) (Item, error) {
	if strings.TrimSpace(it.ItemID) == "" {
		return Item{}, missing(fmt.Sprintf("cart.items[%d].item_id", i))
	}
	if it.ActualPrice == nil {
		return Item{}, missing(fmt.Sprintf("cart.items[%d].actual_price", i))
	}
	if !it.ActualPrice.IsPositive() {
		return Item{}, fmt.Errorf("%w: cart.items[%d].actual_price must be positive", domain.ErrInputMissing, i)
	}
	if it.Quantity <= 0 {
		return Item{}, fmt.Errorf("%w: cart.items[%d].quantity must be positive", domain.ErrInputMissing, i)
	}
	return Item{
		ItemID:         it.ItemID,
		ProductID:      it.ProductID,
		ProductCode:    it.ProductCode,
		NetAmount:      it.ActualPrice.MulInt(it.Quantity),
		Quantity:       it.Quantity,
		Classification: classify.Classify(it.ProductCode, it.VariationName, it.Metadata),
	}, nil
}

func missing(field string) error {
	return fmt.Errorf("%w: %s", domain.ErrInputMissing, field)
}

// ToMap renders the full context, with an empty vat object, as plain JSON values.
func (c Context) ToMap() (map[string]any, error) {
	m, err := toMap(c)
	if err != nil {
		return nil, err
	}
	m["vat"] = map[string]any{}
	return m, nil
}

// ItemContext returns the per-item execution context {user, item, vat, settings}.
func (c Context) ItemContext(i int) (map[string]any, error) {
	if i < 0 || i >= len(c.Cart.Items) {
		return nil, fmt.Errorf("item index %d out of range", i)
	}
	user, err := toMap(c.User)
	if err != nil {
		return nil, err
	}
	item, err := toMap(c.Cart.Items[i])
	if err != nil {
		return nil, err
	}
	settings, err := toMap(c.Settings)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"user":     user,
		"item":     item,
		"vat":      map[string]any{},
		"settings": settings,
	}, nil
}

func toMap(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode context: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode context: %w", err)
	}
	return out, nil
}
