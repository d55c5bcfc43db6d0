// File: protocol/selector.go
// Package protocol
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package protocol

import (
	"net/http"
	"strings"
)

// Request headers that drive revision selection.
const (
	HeaderSecWebSocketVersion = "Sec-WebSocket-Version"
	HeaderSecWebSocketKey     = "Sec-WebSocket-Key"
	HeaderSecWebSocketKey1    = "Sec-WebSocket-Key1"
	HeaderSecWebSocketKey2    = "Sec-WebSocket-Key2"
	HeaderSecWebSocketProto   = "Sec-WebSocket-Protocol"
	HeaderOrigin              = "Origin"
)

// Select classifies a handshake by its headers alone: a version header means
// hybi, both hixie-76 key headers mean the challenge-response revision, and
// anything else is hixie-75. It has no side effects.
func Select(h http.Header) Variant {
	if headerValue(h, HeaderSecWebSocketVersion) != "" {
		return VariantModern
	}
	if headerValue(h, HeaderSecWebSocketKey1) != "" && headerValue(h, HeaderSecWebSocketKey2) != "" {
		return VariantChallengeLegacy
	}
	return VariantPlainLegacy
}

// headerValue looks name up case-insensitively, including in maps whose keys
// were never canonicalized.
func headerValue(h http.Header, name string) string {
	if v := h.Get(name); v != "" {
		return v
	}
	for k, vs := range h {
		if len(vs) > 0 && strings.EqualFold(k, name) {
			return vs[0]
		}
	}
	return ""
}
