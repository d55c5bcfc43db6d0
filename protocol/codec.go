// File: protocol/codec.go
// Package protocol
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Codec is the per-connection framing engine. Exactly one is bound to a
// connection for its whole lifetime; which one is decided by Select.

package protocol

import "github.com/momentics/wsgate/api"

// Variant tags the protocol revision a client speaks.
type Variant int

const (
	// VariantPlainLegacy is draft-hixie-thewebsocketprotocol-75.
	VariantPlainLegacy Variant = iota
	// VariantChallengeLegacy is draft-hixie-thewebsocketprotocol-76.
	VariantChallengeLegacy
	// VariantModern is the hybi drafts and RFC 6455.
	VariantModern
)

func (v Variant) String() string {
	switch v {
	case VariantPlainLegacy:
		return "hixie-75"
	case VariantChallengeLegacy:
		return "hixie-76"
	case VariantModern:
		return "hybi"
	default:
		return "unknown"
	}
}

// DecodedType classifies an item produced by Codec.Parse.
type DecodedType int

const (
	DecodedMessage DecodedType = iota + 1
	DecodedPing
	DecodedPong
	DecodedClose
)

// Decoded is one unit surfaced by a Parse call, in wire order.
type Decoded struct {
	Type    DecodedType
	Kind    api.MessageKind // DecodedMessage only
	Payload []byte
	Code    int    // DecodedClose only
	Reason  string // DecodedClose only
}

// Codec encodes and decodes the frames of one protocol revision.
type Codec interface {
	// Variant reports the revision this codec speaks.
	Variant() Variant

	// Version is a human readable revision label such as "hybi-13".
	Version() string

	// IsOpen reports whether the opening handshake is complete.
	IsOpen() bool

	// Parse consumes the bytes of one transport read. reply, when non-nil,
	// must be written to the peer before anything else. Items decoded before
	// a violation are returned alongside the error.
	Parse(data []byte) (reply []byte, out []Decoded, err error)

	// Frame encodes one outbound application message.
	Frame(kind api.MessageKind, payload []byte) ([]byte, error)

	// Ping encodes a ping; api.ErrNotSupported where the revision has none.
	Ping(payload []byte) ([]byte, error)

	// Pong encodes a pong; api.ErrNotSupported where the revision has none.
	Pong(payload []byte) ([]byte, error)

	// CloseFrame encodes a close notification, or returns nil when the
	// revision has no closing handshake.
	CloseFrame(code int, reason string) []byte
}

// Options tunes codec limits and negotiation.
type Options struct {
	Protocols      []string // supported subprotocols, in no particular order
	MaxFrameSize   int64    // 0 uses DefaultMaxFrameSize
	MaxMessageSize int64    // 0 uses DefaultMaxMessageSize
	FragmentSize   int      // outbound fragment payload size, 0 disables
}

func (o Options) maxFrameSize() int64 {
	if o.MaxFrameSize > 0 {
		return o.MaxFrameSize
	}
	return DefaultMaxFrameSize
}

func (o Options) maxMessageSize() int64 {
	if o.MaxMessageSize > 0 {
		return o.MaxMessageSize
	}
	return DefaultMaxMessageSize
}
