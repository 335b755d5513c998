package graph

import (
	_ "embed"
	"encoding/base64"
)

//go:embed placeholder.svg
var placeholderSVG []byte

var placeholderPhoto = "data:image/svg+xml;base64," + base64.StdEncoding.EncodeToString(placeholderSVG)

// PlaceholderPhoto is shown for users without a photo: a grey avatar
// silhouette. Every call returns the same data URI.
func PlaceholderPhoto() string {
	return placeholderPhoto
}
