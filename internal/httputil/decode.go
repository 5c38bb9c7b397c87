// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"mime"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/charmap"
)

// Decode turns a response body into text. A declared non-UTF-8 charset is
// honored; otherwise valid UTF-8 is returned as is and anything else is
// read as ISO-8859-1, which maps every byte.
func Decode(body []byte, contentType string) string {
	if _, params, err := mime.ParseMediaType(contentType); err == nil {
		if label := params["charset"]; label != "" {
			if enc, name := charset.Lookup(label); enc != nil && name != "utf-8" {
				if out, err := enc.NewDecoder().Bytes(body); err == nil {
					return string(out)
				}
			}
		}
	}
	if utf8.Valid(body) {
		return string(body)
	}
	out, _ := charmap.ISO8859_1.NewDecoder().Bytes(body)
	return string(out)
}
