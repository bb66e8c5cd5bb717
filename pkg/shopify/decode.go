// Package shopify maps commerce API product payloads onto the upstream
// model. Both the REST (snake_case) and the GraphQL (camelCase) shapes are
// accepted.
package shopify

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/ucp-catalog-adapter/pkg/model"
)

// ErrInvalidPayload is returned when a payload lacks a required field or is
// not valid JSON.
var ErrInvalidPayload = errors.New("invalid product payload")

// DecodeProduct decodes a single product, either wrapped as
// {"product": {...}} or bare.
func DecodeProduct(data []byte) (*model.UpstreamProduct, error) {
	var envelope struct {
		Product json.RawMessage `json:"product"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	raw := json.RawMessage(data)
	if len(envelope.Product) > 0 && !bytes.Equal(envelope.Product, []byte("null")) {
		raw = envelope.Product
	}

	var w wireProduct
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return w.toModel()
}

// DecodeProducts decodes a product list, either wrapped as
// {"products": [...]} or a bare array.
func DecodeProducts(data []byte) ([]model.UpstreamProduct, error) {
	var items []wireProduct

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
	} else {
		var envelope struct {
			Products []wireProduct `json:"products"`
		}
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		items = envelope.Products
	}

	products := make([]model.UpstreamProduct, 0, len(items))
	for i, w := range items {
		p, err := w.toModel()
		if err != nil {
			return nil, fmt.Errorf("product %d: %w", i, err)
		}
		products = append(products, *p)
	}
	return products, nil
}

type wireProduct struct {
	ID                   flexString    `json:"id"`
	Title                string        `json:"title"`
	Description          string        `json:"description"`
	DescriptionHTML      string        `json:"descriptionHtml"`
	DescriptionHTMLSnake string        `json:"description_html"`
	BodyHTML             string        `json:"body_html"`
	Vendor               string        `json:"vendor"`
	ProductType          string        `json:"productType"`
	ProductTypeSnake     string        `json:"product_type"`
	Handle               string        `json:"handle"`
	Tags                 flexTags      `json:"tags"`
	Images               []wireImage   `json:"images"`
	Variants             []wireVariant `json:"variants"`
	OnlineStoreURL       string        `json:"onlineStoreUrl"`
	OnlineStoreURLSnake  string        `json:"online_store_url"`
	CreatedAt            flexTime      `json:"createdAt"`
	CreatedAtSnake       flexTime      `json:"created_at"`
	UpdatedAt            flexTime      `json:"updatedAt"`
	UpdatedAtSnake       flexTime      `json:"updated_at"`
	PublishedAt          flexTime      `json:"publishedAt"`
	PublishedAtSnake     flexTime      `json:"published_at"`
}

func (w wireProduct) toModel() (*model.UpstreamProduct, error) {
	if w.ID == "" {
		return nil, fmt.Errorf("%w: product id missing", ErrInvalidPayload)
	}
	if w.Title == "" {
		return nil, fmt.Errorf("%w: product %s: title missing", ErrInvalidPayload, w.ID)
	}

	p := &model.UpstreamProduct{
		ID:              string(w.ID),
		Title:           w.Title,
		Description:     w.Description,
		DescriptionHTML: firstNonEmpty(w.DescriptionHTML, w.DescriptionHTMLSnake),
		BodyHTML:        w.BodyHTML,
		Vendor:          w.Vendor,
		ProductType:     firstNonEmpty(w.ProductType, w.ProductTypeSnake),
		Handle:          w.Handle,
		Tags:            []string(w.Tags),
		OnlineStoreURL:  firstNonEmpty(w.OnlineStoreURL, w.OnlineStoreURLSnake),
		CreatedAt:       firstTime(w.CreatedAt, w.CreatedAtSnake),
		UpdatedAt:       firstTime(w.UpdatedAt, w.UpdatedAtSnake),
		PublishedAt:     firstTime(w.PublishedAt, w.PublishedAtSnake),
	}

	for _, img := range w.Images {
		url := firstNonEmpty(img.URL, img.Src)
		if url == "" {
			continue
		}
		p.Images = append(p.Images, model.Image{
			ID:      string(img.ID),
			URL:     url,
			AltText: firstNonEmpty(img.AltText, img.AltTextSnake, img.Alt),
			Width:   img.Width,
			Height:  img.Height,
		})
	}

	for _, wv := range w.Variants {
		v, err := wv.toModel()
		if err != nil {
			return nil, fmt.Errorf("product %s: %w", p.ID, err)
		}
		p.Variants = append(p.Variants, v)
	}

	return p, nil
}

type wireImage struct {
	ID           flexString `json:"id"`
	URL          string     `json:"url"`
	Src          string     `json:"src"`
	AltText      string     `json:"altText"`
	AltTextSnake string     `json:"alt_text"`
	Alt          string     `json:"alt"`
	Width        *int       `json:"width"`
	Height       *int       `json:"height"`
}

type wireVariant struct {
	ID                   flexString       `json:"id"`
	Title                string           `json:"title"`
	SKU                  string           `json:"sku"`
	Barcode              string           `json:"barcode"`
	Price                *flexPrice       `json:"price"`
	Inventory            *wireInventory   `json:"inventory"`
	InventoryQuantity    *int             `json:"inventory_quantity"`
	Available            *bool            `json:"available"`
	AvailableForSale     *bool            `json:"availableForSale"`
	SelectedOptions      []selectedOption `json:"selectedOptions"`
	SelectedOptionsSnake []selectedOption `json:"selected_options"`
}

type wireInventory struct {
	Available bool `json:"available"`
	Quantity  *int `json:"quantity"`
}

type selectedOption struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

func (w wireVariant) toModel() (model.UpstreamVariant, error) {
	if w.ID == "" {
		return model.UpstreamVariant{}, fmt.Errorf("%w: variant id missing", ErrInvalidPayload)
	}
	if w.Price == nil || w.Price.Amount == "" {
		return model.UpstreamVariant{}, fmt.Errorf("%w: variant %s: price missing", ErrInvalidPayload, w.ID)
	}

	v := model.UpstreamVariant{
		ID:        string(w.ID),
		Title:     w.Title,
		SKU:       w.SKU,
		Barcode:   w.Barcode,
		Price:     model.Money{Amount: w.Price.Amount, CurrencyCode: w.Price.CurrencyCode},
		Available: true,
	}

	switch {
	case w.Available != nil:
		v.Available = *w.Available
	case w.AvailableForSale != nil:
		v.Available = *w.AvailableForSale
	}

	switch {
	case w.Inventory != nil:
		v.Inventory = &model.Inventory{Available: w.Inventory.Available, Quantity: w.Inventory.Quantity}
	case w.InventoryQuantity != nil:
		qty := *w.InventoryQuantity
		v.Inventory = &model.Inventory{Available: qty > 0, Quantity: &qty}
	}

	options := w.SelectedOptions
	if len(options) == 0 {
		options = w.SelectedOptionsSnake
	}
	if len(options) > 0 {
		v.SelectedOptions = make(map[string]string, len(options))
		for _, o := range options {
			v.SelectedOptions[o.Name] = o.Value
		}
	}

	return v, nil
}

// flexString accepts a JSON string or number.
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = flexString(str)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", data)
	}
	*s = flexString(n.String())
	return nil
}

// flexTags accepts a JSON array of strings or a comma separated string.
type flexTags []string

func (t *flexTags) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}

	if len(data) > 0 && data[0] == '[' {
		var tags []string
		if err := json.Unmarshal(data, &tags); err != nil {
			return err
		}
		*t = tags
		return nil
	}

	var joined string
	if err := json.Unmarshal(data, &joined); err != nil {
		return fmt.Errorf("tags: %w", err)
	}

	var tags []string
	for _, tag := range strings.Split(joined, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	*t = tags
	return nil
}

// flexPrice accepts {"amount": ..., "currencyCode": ...} or a bare amount.
type flexPrice struct {
	Amount       string
	CurrencyCode string
}

func (p *flexPrice) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '{' {
		var obj struct {
			Amount            flexString `json:"amount"`
			CurrencyCode      string     `json:"currencyCode"`
			CurrencyCodeSnake string     `json:"currency_code"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		p.Amount = string(obj.Amount)
		p.CurrencyCode = firstNonEmpty(obj.CurrencyCode, obj.CurrencyCodeSnake)
		return nil
	}

	var amount flexString
	if err := amount.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("price: %w", err)
	}
	p.Amount = string(amount)
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstTime(values ...flexTime) *time.Time {
	for _, v := range values {
		if v.t != nil {
			return v.t
		}
	}
	return nil
}

// flexTime accepts an RFC 3339 timestamp, null or an empty string.
type flexTime struct {
	t *time.Time
}

func (ft *flexTime) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}

	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	if str = strings.TrimSpace(str); str == "" {
		return nil
	}

	t, err := time.Parse(time.RFC3339, str)
	if err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	ft.t = &t
	return nil
}

// ProductEndpoint returns the REST path of a single product.
func ProductEndpoint(apiVersion, productID string) string {
	return "/admin/api/" + apiVersion + "/products/" + productID + ".json"
}

// ProductsEndpoint returns the REST path of the product list.
func ProductsEndpoint(apiVersion string) string {
	return "/admin/api/" + apiVersion + "/products.json"
}

// LimitQuery returns the list query for up to limit products.
func LimitQuery(limit int) map[string][]string {
	return map[string][]string{"limit": {strconv.Itoa(limit)}}
}
