// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name        string
		body        []byte
		contentType string
		want        string
	}{
		{"utf8 no charset", []byte("naïve"), "text/plain", "naïve"},
		{"utf8 declared", []byte("naïve"), "text/plain; charset=utf-8", "naïve"},
		{"invalid utf8 falls back", []byte{0x4e, 0x61, 0xef, 0x76, 0x65}, "text/plain; charset=utf-8", "Naïve"},
		{"declared latin1", []byte{0xe9, 't', 0xe9}, "text/html; charset=ISO-8859-1", "été"},
		{"empty content type", []byte("plain"), "", "plain"},
		{"empty body", nil, "text/plain", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decode(tt.body, tt.contentType))
		})
	}
}
