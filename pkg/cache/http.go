package cache

import (
	"net/http"
)

// HeaderIfNoneMatch is the conditional request header carrying a validator.
const HeaderIfNoneMatch = "If-None-Match"

// AddConditionalHeaders sets If-None-Match when a validator is known.
func AddConditionalHeaders(header http.Header, etag string) {
	if header == nil || etag == "" {
		return
	}
	header.Set(HeaderIfNoneMatch, etag)
}

// ETagFromHeaders returns the validator of a response, if any.
func ETagFromHeaders(header http.Header) string {
	if header == nil {
		return ""
	}
	return header.Get("ETag")
}
