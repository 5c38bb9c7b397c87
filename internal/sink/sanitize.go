// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sink

import "regexp"

var (
	nonASCIIRun = regexp.MustCompile(`[^\x00-\x7F]+`)
	controlRun  = regexp.MustCompile(`[\x00-\x1F\x7F-\x9F]+`)
)

// Sanitize makes book text safe for a single tab-delimited field: each run
// of non-ASCII characters becomes one space, and control characters,
// including tabs and line breaks, are removed.
func Sanitize(text string) string {
	text = nonASCIIRun.ReplaceAllString(text, " ")
	return controlRun.ReplaceAllString(text, "")
}
