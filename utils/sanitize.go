package utils

import "github.com/microcosm-cc/bluemonday"

var (
	richText  = bluemonday.UGCPolicy()
	plainText = bluemonday.StrictPolicy()
)

// Sanitize cleans rich-text HTML to prevent XSS attacks while keeping the
// user-generated-content subset produced by the editor widget.
func Sanitize(input string) string {
	return richText.Sanitize(input)
}

// StripTags removes all markup; used for fields that must stay plain text
// such as titles and comment bodies.
func StripTags(input string) string {
	return plainText.Sanitize(input)
}
