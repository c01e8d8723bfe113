package bookmarkdp

import (
	_ "embed"
	"fmt"
)

var (
	// readyJS is a javascript snippet that returns true once the bookmarks
	// timeline rendered either its first article or its empty placeholder.
	//go:embed js/ready.js
	readyJS string

	// expandJS is a javascript snippet that clicks every "show more" control
	// visible in the viewport, returning the number of clicks.
	//go:embed js/expand.js
	expandJS string

	// scrollJS is a javascript function that scrolls the window forward by
	// its argument times the viewport height.
	//go:embed js/scroll.js
	scrollJS string

	// extractJS is a javascript snippet that returns the rendered bookmarks
	// as a list of objects with the fields decoded by decodeRecord.
	//go:embed js/extract.js
	extractJS string
)

// scrollExpression returns the expression scrolling by factor viewports.
func scrollExpression(factor float64) string {
	return fmt.Sprintf("(%s)(%g)", scrollJS, factor)
}
