package domain

import "time"

// Product is the catalog aggregate: a product owns color variants, a
// variant owns size options. Stock lives on the size option and is the
// only contended mutable field in the hierarchy.
type Product struct {
	ID          string         `bson:"_id,omitempty" json:"id"`
	Name        string         `bson:"name" json:"name"`
	Description string         `bson:"description" json:"description"`
	Category    string         `bson:"category" json:"category"`
	Variants    []ColorVariant `bson:"variants" json:"variants"`
	CreatedAt   time.Time      `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `bson:"updated_at" json:"updated_at"`
}

type ColorVariant struct {
	ID       string       `bson:"variant_id" json:"variant_id"`
	Color    string       `bson:"color" json:"color"`
	ImageURL string       `bson:"image_url" json:"image_url"`
	Sizes    []SizeOption `bson:"sizes" json:"sizes"`
}

type SizeOption struct {
	ID        string `bson:"size_id" json:"size_id"`
	Size      string `bson:"size" json:"size"`
	Stock     int    `bson:"stock" json:"stock"`
	Price     int64  `bson:"price" json:"price"`
	SalePrice int64  `bson:"sale_price" json:"sale_price"`
}

// EffectivePrice is the price charged at checkout time.
func (s SizeOption) EffectivePrice() int64 {
	if s.SalePrice > 0 {
		return s.SalePrice
	}
	return s.Price
}

// Variant returns the color variant with the given id.
func (p *Product) Variant(variantID string) (*ColorVariant, bool) {
	for i := range p.Variants {
		if p.Variants[i].ID == variantID {
			return &p.Variants[i], true
		}
	}
	return nil, false
}

// Size returns the size option with the given id.
func (v *ColorVariant) Size(sizeID string) (*SizeOption, bool) {
	for i := range v.Sizes {
		if v.Sizes[i].ID == sizeID {
			return &v.Sizes[i], true
		}
	}
	return nil, false
}

// StockLine addresses one size option in a bulk stock operation.
type StockLine struct {
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id"`
	SizeID    string `json:"size_id"`
	Quantity  int    `json:"quantity"`
}

// VariantInfo is the flattened view the checkout path reads: current
// stock and authoritative price for one size of one color variant.
type VariantInfo struct {
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id"`
	SizeID    string `json:"size_id"`
	Name      string `json:"name"`
	Color     string `json:"color"`
	Size      string `json:"size"`
	Stock     int    `json:"stock"`
	Price     int64  `json:"price"`
	SalePrice int64  `json:"sale_price"`
}

type AdjustDirection string

const (
	AdjustIncrease AdjustDirection = "increase"
	AdjustDecrease AdjustDirection = "decrease"
)
