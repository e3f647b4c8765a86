package utils

import (
	"html"

	"github.com/microcosm-cc/bluemonday"
)

var (
	sanitizer = bluemonday.UGCPolicy()
	stripper  = bluemonday.StrictPolicy()
)

// Sanitize cleans HTML content to prevent XSS attacks.
func Sanitize(input string) string {
	return sanitizer.Sanitize(input)
}

// StripTags removes all markup, for single-line fields like titles. Entities
// are decoded before stripping so encoded tags are removed too, and the
// result stays HTML-escaped.
func StripTags(input string) string {
	return stripper.Sanitize(html.UnescapeString(input))
}
