// Package model defines the shared product data model: the upstream
// (Shopify) representation consumed by the normalizer and the UCP/Schema.org
// listing it produces.
package model

import "time"

// DefaultVariantTitle is the title Shopify assigns to the single variant of a
// product that has no real options.
const DefaultVariantTitle = "Default Title"

// Money is an exact decimal amount with its ISO 4217 currency code.
type Money struct {
	Amount       string
	CurrencyCode string
}

// Image is a product image as reported upstream.
type Image struct {
	ID      string
	URL     string
	AltText string
	Width   *int
	Height  *int
}

// Inventory is the optional inventory record of a variant.
type Inventory struct {
	Available bool

	// Quantity is nil when the upstream only reports the boolean flag.
	Quantity *int
}

// UpstreamVariant is one purchasable configuration of an upstream product.
type UpstreamVariant struct {
	ID      string
	Title   string
	SKU     string
	Barcode string
	Price   Money

	// Inventory takes precedence over Available when present.
	Inventory *Inventory
	Available bool

	SelectedOptions map[string]string
}

// IsDefault reports whether the variant carries the "no variation" sentinel
// title.
func (v UpstreamVariant) IsDefault() bool {
	return v.Title == DefaultVariantTitle
}

// UpstreamProduct is a product as fetched from the commerce platform. It is
// treated as immutable once decoded.
type UpstreamProduct struct {
	ID              string
	Title           string
	Description     string
	DescriptionHTML string
	BodyHTML        string
	Vendor          string
	ProductType     string
	Handle          string
	Tags            []string
	Images          []Image
	Variants        []UpstreamVariant
	OnlineStoreURL  string

	CreatedAt   *time.Time
	UpdatedAt   *time.Time
	PublishedAt *time.Time
}

// Variant returns the variant with the given id.
func (p *UpstreamProduct) Variant(id string) (UpstreamVariant, bool) {
	for _, v := range p.Variants {
		if v.ID == id {
			return v, true
		}
	}
	return UpstreamVariant{}, false
}
