package model

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestListing_MarshalJSON(t *testing.T) {
	name := "Red / Small"
	listing := Listing{
		ProductID: "gid://shopify/Product/1",
		Name:      "T-Shirt",
		Brand:     &Organization{Name: "BrandX"},
		Image:     []ImageObject{{URL: "https://example.com/a.jpg"}},
		Offers: []Offer{{
			PriceSpecification: PriceSpecification{Price: "29.99", PriceCurrency: "USD"},
			ItemCondition:      ConditionNew,
			Availability:       AvailabilityInStock,
			Seller:             Organization{Name: "My Store"},
			Name:               &name,
			VariantID:          "gid://shopify/ProductVariant/1",
		}},
	}

	data, err := json.Marshal(listing)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	out := string(data)

	for _, want := range []string{
		`"@context":"https://schema.org"`,
		`"@type":"Product"`,
		`"@type":"Offer"`,
		`"@type":"PriceSpecification"`,
		`"@type":"Organization"`,
		`"@type":"ImageObject"`,
		`"productID":"gid://shopify/Product/1"`,
		`"name":"Red / Small"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %s: %s", want, out)
		}
	}
	if strings.Contains(out, "ProductVariant") {
		t.Errorf("variant id should not be serialized: %s", out)
	}
}

func TestUpstreamVariant_IsDefault(t *testing.T) {
	if !(UpstreamVariant{Title: DefaultVariantTitle}).IsDefault() {
		t.Error("sentinel title should be the default variant")
	}
	if (UpstreamVariant{Title: "Blue"}).IsDefault() {
		t.Error("Blue should not be the default variant")
	}
}

func TestUpstreamProduct_Variant(t *testing.T) {
	p := &UpstreamProduct{Variants: []UpstreamVariant{{ID: "1"}, {ID: "2", SKU: "B"}}}

	v, ok := p.Variant("2")
	if !ok || v.SKU != "B" {
		t.Errorf("Variant(2) = %+v, %v", v, ok)
	}
	if _, ok := p.Variant("3"); ok {
		t.Error("Variant(3) should not be found")
	}
}
