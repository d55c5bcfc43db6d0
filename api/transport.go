// File: api/transport.go
// Author: momentics <momentics@gmail.com>
//
// Defines the duplex byte stream a connection runs on once the HTTP
// upgrade has handed the socket over.

package api

// Transport abstracts a reliable, ordered, full-duplex byte stream.
type Transport interface {
	// Read reads into a preallocated buffer, blocking until data or error.
	Read(p []byte) (n int, err error)

	// Write writes buffer contents into the stream.
	Write(p []byte) (n int, err error)

	// Close shuts down the stream.
	Close() error
}
