package testutil

// APIVersion is the upstream API version used by fixtures.
const APIVersion = "2024-01"

// ProductJSON is a REST product with two sized variants.
const ProductJSON = `{
  "product": {
    "id": 1001,
    "title": "Trail Runner",
    "body_html": "<p>Lightweight <strong>trail</strong> shoe &amp; more.</p>",
    "vendor": "Acme Outdoor",
    "product_type": "Shoes",
    "handle": "trail-runner",
    "tags": "running, trail, running",
    "created_at": "2024-01-02T10:00:00Z",
    "updated_at": "2024-02-03T11:00:00Z",
    "published_at": "2024-01-05T09:00:00Z",
    "images": [
      {"id": 501, "src": "https://cdn.example.com/trail.jpg", "alt": "Trail Runner", "width": 800, "height": 600}
    ],
    "variants": [
      {"id": 2001, "title": "Small", "sku": "TR-S", "barcode": "0001112223334", "price": "100.00", "inventory_quantity": 5},
      {"id": 2002, "title": "Large", "sku": "TR-L", "price": "120.00", "inventory_quantity": 0}
    ]
  }
}`

// DefaultVariantProductJSON is a GraphQL-shaped product with a single
// "Default Title" variant.
const DefaultVariantProductJSON = `{
  "id": "gid://shopify/Product/42",
  "title": "Gift Card",
  "description": "A plain gift card.",
  "descriptionHtml": "",
  "vendor": "Acme",
  "productType": "Gift Cards",
  "handle": "gift-card",
  "tags": ["gift", "card"],
  "onlineStoreUrl": "https://shop.example.com/products/gift-card",
  "variants": [
    {
      "id": "gid://shopify/ProductVariant/4201",
      "title": "Default Title",
      "price": {"amount": "25.00", "currencyCode": "EUR"},
      "inventory": {"available": true}
    }
  ]
}`

// ProductsJSON is a REST product list with two products.
const ProductsJSON = `{"products": [` + productBody + `]}`

const productBody = `{
  "id": 1001,
  "title": "Trail Runner",
  "handle": "trail-runner",
  "variants": [{"id": 2001, "title": "Small", "price": "100.00", "inventory_quantity": 5}]
}, {
  "id": 1002,
  "title": "Road Runner",
  "handle": "road-runner",
  "variants": [{"id": 3001, "title": "Default Title", "price": "80.00"}]
}`
