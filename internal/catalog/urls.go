package catalog

import (
	"net/url"
	"strings"
)

// TokenParam is the storefront query parameter carrying an affiliate token.
const TokenParam = "affiliate_token"

// ProductURL builds the public product URL with the affiliate token appended.
func ProductURL(baseURL, slug, token string) string {
	base := strings.TrimRight(baseURL, "/")
	u := base + "/products/" + url.PathEscape(slug)
	if token == "" {
		return u
	}
	return u + "?" + url.Values{TokenParam: []string{token}}.Encode()
}
