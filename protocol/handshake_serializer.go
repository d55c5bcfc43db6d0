// File: protocol/handshake_serializer.go
// Package protocol
// Author: momentics <momentics@gmail.com>
//
// Serialization of handshake responses. Header order is preserved because
// hixie-era clients compare response lines literally.

package protocol

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
)

type headerField struct {
	name, value string
}

// Response is an upgrade response: status line, ordered headers and an
// optional body.
type Response struct {
	Status string // e.g. "101 Switching Protocols"
	fields []headerField
	Body   []byte
}

func newResponse(status string) *Response {
	return &Response{Status: status}
}

// Add appends a header line.
func (r *Response) Add(name, value string) {
	r.fields = append(r.fields, headerField{name, value})
}

// Header returns the response headers as an http.Header.
func (r *Response) Header() http.Header {
	h := make(http.Header, len(r.fields))
	for _, f := range r.fields {
		h.Add(f.name, f.value)
	}
	return h
}

// WriteTo writes the status line, headers, blank line and body to w.
func (r *Response) WriteTo(w io.Writer) (int64, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "HTTP/1.1 %s\r\n", r.Status)
	for _, f := range r.fields {
		fmt.Fprintf(&buf, "%s: %s\r\n", f.name, f.value)
	}
	buf.WriteString("\r\n")
	buf.Write(r.Body)
	return buf.WriteTo(w)
}

// Bytes returns the serialized response.
func (r *Response) Bytes() []byte {
	var buf bytes.Buffer
	r.WriteTo(&buf)
	return buf.Bytes()
}
