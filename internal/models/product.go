package models

import "github.com/shopspring/decimal"

const DefaultRulePriority = 100

type Product struct {
	ProductID   int64   `json:"productId"`
	SKU         string  `json:"sku"`
	Title       string  `json:"title"`
	ImageURL    *string `json:"imageUrl,omitempty"`
	Category    *string `json:"category,omitempty"`
	Subcategory *string `json:"subcategory,omitempty"`
	IsAccessory bool    `json:"isAccessory"`
	Active      bool    `json:"active"`
}

func (p *Product) Validate() error {
	if err := requireText("sku", p.SKU); err != nil {
		return err
	}
	if err := requireText("title", p.Title); err != nil {
		return err
	}
	if err := optionalText("category", p.Category); err != nil {
		return err
	}
	return optionalText("subcategory", p.Subcategory)
}

type ProductVariant struct {
	VariantID int64           `json:"variantId"`
	ProductID int64           `json:"productId"`
	SKU       string          `json:"sku"`
	ColorCode *string         `json:"colorCode,omitempty"`
	ColorName *string         `json:"colorName,omitempty"`
	Size      *string         `json:"size,omitempty"`
	Price     decimal.Decimal `json:"price"`
	Active    bool            `json:"active"`
}

func (v *ProductVariant) Validate() error {
	if err := positiveID("productId", v.ProductID); err != nil {
		return err
	}
	if err := requireText("sku", v.SKU); err != nil {
		return err
	}
	if v.Price.IsNegative() {
		return invalidf("price must not be negative, got %s", v.Price)
	}
	return nil
}

// AccessoryRule is a directed suggestion edge from a base product to a
// compatible accessory.
type AccessoryRule struct {
	BaseProductID      int64  `json:"baseProductId"`
	AccessoryProductID int64  `json:"accessoryProductId"`
	RuleType           string `json:"ruleType"`
	Priority           int    `json:"priority"`
}

func (r *AccessoryRule) Validate() error {
	if err := positiveID("baseProductId", r.BaseProductID); err != nil {
		return err
	}
	if err := positiveID("accessoryProductId", r.AccessoryProductID); err != nil {
		return err
	}
	return requireText("ruleType", r.RuleType)
}

// ColorMatchRule is a directed suggestion edge from a base product to a
// color-coordinated alternative.
type ColorMatchRule struct {
	BaseProductID  int64   `json:"baseProductId"`
	MatchProductID int64   `json:"matchProductId"`
	BaseColorCode  *string `json:"baseColorCode,omitempty"`
	MatchColorCode *string `json:"matchColorCode,omitempty"`
	Priority       int     `json:"priority"`
}

func (r *ColorMatchRule) Validate() error {
	if err := positiveID("baseProductId", r.BaseProductID); err != nil {
		return err
	}
	if err := positiveID("matchProductId", r.MatchProductID); err != nil {
		return err
	}
	if err := optionalText("baseColorCode", r.BaseColorCode); err != nil {
		return err
	}
	return optionalText("matchColorCode", r.MatchColorCode)
}
