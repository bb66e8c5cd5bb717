package catalog

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalidProductURL is returned when a URL holds no product handle.
var ErrInvalidProductURL = errors.New("not a product url")

// HandleFromURL extracts the product handle from a storefront URL such as
// https://shop.example.com/collections/sale/products/trail-runner?variant=1.
func HandleFromURL(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidProductURL, err)
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i < len(segments)-1; i++ {
		if segments[i] == "products" && segments[i+1] != "" {
			return strings.TrimSuffix(segments[i+1], ".json"), nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrInvalidProductURL, rawURL)
}
