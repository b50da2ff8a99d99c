// Package sanitizer strips markup from user-supplied text before it is
// persisted or echoed back (item names, record notes).
package sanitizer

import (
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	strictPolicy *bluemonday.Policy
	initOnce     sync.Once
)

// Text strips all HTML from the input and trims surrounding whitespace,
// returning plain text. Food names and notes never legitimately contain
// markup, so anything that looks like it is treated as hostile.
func Text(s string) string {
	initOnce.Do(func() {
		strictPolicy = bluemonday.StrictPolicy()
	})
	return strings.TrimSpace(strictPolicy.Sanitize(s))
}
