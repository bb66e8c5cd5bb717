package model

import (
	"encoding/json"
	"time"
)

// Availability is the Schema.org ItemAvailability of an offer.
type Availability string

const (
	AvailabilityInStock      Availability = "InStock"
	AvailabilityOutOfStock   Availability = "OutOfStock"
	AvailabilityPreOrder     Availability = "PreOrder"
	AvailabilityDiscontinued Availability = "Discontinued"
)

// ConditionNew is the only item condition the adapter emits.
const ConditionNew = "NewCondition"

// Organization is a Schema.org Organization (brand or seller).
type Organization struct {
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

// MarshalJSON adds the Schema.org type annotation.
func (o Organization) MarshalJSON() ([]byte, error) {
	type plain Organization
	return json.Marshal(struct {
		Type string `json:"@type"`
		plain
	}{"Organization", plain(o)})
}

// ImageObject is a Schema.org ImageObject.
type ImageObject struct {
	URL    string `json:"url"`
	Name   string `json:"name,omitempty"`
	Width  *int   `json:"width,omitempty"`
	Height *int   `json:"height,omitempty"`
}

// MarshalJSON adds the Schema.org type annotation.
func (i ImageObject) MarshalJSON() ([]byte, error) {
	type plain ImageObject
	return json.Marshal(struct {
		Type string `json:"@type"`
		plain
	}{"ImageObject", plain(i)})
}

// PriceSpecification is a Schema.org PriceSpecification.
type PriceSpecification struct {
	// Price is a decimal string with two fraction digits.
	Price                 string `json:"price"`
	PriceCurrency         string `json:"priceCurrency"`
	ValueAddedTaxIncluded bool   `json:"valueAddedTaxIncluded"`
}

// MarshalJSON adds the Schema.org type annotation.
func (p PriceSpecification) MarshalJSON() ([]byte, error) {
	type plain PriceSpecification
	return json.Marshal(struct {
		Type string `json:"@type"`
		plain
	}{"PriceSpecification", plain(p)})
}

// Offer is one purchasable variant configuration of a listing.
type Offer struct {
	URL                string             `json:"url,omitempty"`
	PriceSpecification PriceSpecification `json:"priceSpecification"`
	ItemCondition      string             `json:"itemCondition"`
	Availability       Availability       `json:"availability"`
	Seller             Organization       `json:"seller"`
	SKU                string             `json:"sku,omitempty"`
	GTIN               string             `json:"gtin,omitempty"`

	// MPN has no upstream source and stays empty.
	MPN string `json:"mpn,omitempty"`

	// Name is nil for the single default variant.
	Name *string `json:"name,omitempty"`

	// VariantID is the upstream variant the offer was built from.
	VariantID string `json:"-"`
}

// MarshalJSON adds the Schema.org type annotation.
func (o Offer) MarshalJSON() ([]byte, error) {
	type plain Offer
	return json.Marshal(struct {
		Type string `json:"@type"`
		plain
	}{"Offer", plain(o)})
}

// Listing is a normalized catalog product in UCP/Schema.org shape.
type Listing struct {
	ProductID     string        `json:"productID"`
	Name          string        `json:"name"`
	Description   string        `json:"description,omitempty"`
	Image         []ImageObject `json:"image"`
	Brand         *Organization `json:"brand,omitempty"`
	Category      string        `json:"category,omitempty"`
	Keywords      []string      `json:"keywords,omitempty"`
	Offers        []Offer       `json:"offers"`
	URL           string        `json:"url,omitempty"`
	DatePublished *time.Time    `json:"datePublished,omitempty"`
	DateModified  *time.Time    `json:"dateModified,omitempty"`
}

// MarshalJSON emits the listing as a JSON-LD Product node.
func (l Listing) MarshalJSON() ([]byte, error) {
	type plain Listing
	return json.Marshal(struct {
		Context string `json:"@context"`
		Type    string `json:"@type"`
		plain
	}{"https://schema.org", "Product", plain(l)})
}
