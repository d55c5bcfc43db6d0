// File: protocol/hybi.go
// Package protocol
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// hybiCodec is the RFC 6455 framing engine: incremental frame decoding,
// fragment assembly, control frame surfacing and unmasked server encoding.

package protocol

import (
	"encoding/binary"
	"unicode/utf8"

	"github.com/momentics/wsgate/api"
)

type hybiCodec struct {
	version string
	opts    Options

	buf []byte // bytes of an incomplete frame
	msg *assembly
}

// assembly accumulates the fragments of one message.
type assembly struct {
	opcode byte
	data   []byte
}

func newHybiCodec(version string, opts Options) *hybiCodec {
	return &hybiCodec{version: version, opts: opts}
}

func (h *hybiCodec) Variant() Variant { return VariantModern }
func (h *hybiCodec) Version() string  { return h.version }
func (h *hybiCodec) IsOpen() bool     { return true }

func (h *hybiCodec) Parse(data []byte) ([]byte, []Decoded, error) {
	h.buf = append(h.buf, data...)

	var out []Decoded
	for len(h.buf) > 0 {
		f, n, err := decodeFrame(h.buf, h.opts.maxFrameSize())
		if err != nil {
			h.reset()
			return nil, out, err
		}
		if f == nil {
			break
		}
		h.buf = h.buf[n:]

		d, err := h.handle(f)
		if err != nil {
			h.reset()
			return nil, out, err
		}
		if d == nil {
			continue
		}
		out = append(out, *d)
		if d.Type == DecodedClose {
			// nothing after a close frame is meaningful
			h.reset()
			break
		}
	}
	if len(h.buf) == 0 {
		h.buf = nil
	}
	return nil, out, nil
}

func (h *hybiCodec) reset() {
	h.buf = nil
	h.msg = nil
}

// handle applies fragmentation and control semantics to one decoded frame.
func (h *hybiCodec) handle(f *Frame) (*Decoded, error) {
	switch f.Opcode {
	case OpcodeText, OpcodeBinary:
		if h.msg != nil {
			return nil, protocolError(CloseProtocolError, "data frame interleaved with fragmented message")
		}
		if err := h.checkMessageSize(len(f.Payload)); err != nil {
			return nil, err
		}
		if f.Fin {
			return h.message(f.Opcode, f.Payload)
		}
		h.msg = &assembly{opcode: f.Opcode, data: f.Payload}
		return nil, nil

	case OpcodeContinuation:
		if h.msg == nil {
			return nil, protocolError(CloseProtocolError, "continuation frame without a started message")
		}
		if err := h.checkMessageSize(len(h.msg.data) + len(f.Payload)); err != nil {
			return nil, err
		}
		h.msg.data = append(h.msg.data, f.Payload...)
		if !f.Fin {
			return nil, nil
		}
		msg := h.msg
		h.msg = nil
		return h.message(msg.opcode, msg.data)

	case OpcodePing:
		return &Decoded{Type: DecodedPing, Payload: f.Payload}, nil

	case OpcodePong:
		return &Decoded{Type: DecodedPong, Payload: f.Payload}, nil

	case OpcodeClose:
		return parseClose(f.Payload)
	}
	return nil, protocolError(CloseProtocolError, "reserved opcode %#x", f.Opcode)
}

func (h *hybiCodec) checkMessageSize(n int) error {
	if limit := h.opts.maxMessageSize(); int64(n) > limit {
		return protocolError(CloseMessageTooBig, "message of %d bytes exceeds limit %d", n, limit)
	}
	return nil
}

func (h *hybiCodec) message(opcode byte, data []byte) (*Decoded, error) {
	kind := api.Binary
	if opcode == OpcodeText {
		if !utf8.Valid(data) {
			return nil, protocolError(CloseUnsupportedData, "invalid UTF-8 in text message")
		}
		kind = api.Text
	}
	return &Decoded{Type: DecodedMessage, Kind: kind, Payload: data}, nil
}

// parseClose reads the optional status code and UTF-8 reason of a close frame.
func parseClose(payload []byte) (*Decoded, error) {
	switch len(payload) {
	case 0:
		return &Decoded{Type: DecodedClose, Code: CloseNormalClosure}, nil
	case 1:
		return nil, protocolError(CloseProtocolError, "close frame with 1-byte payload")
	}
	code := int(binary.BigEndian.Uint16(payload))
	if !ValidCloseCode(code) {
		return nil, protocolError(CloseProtocolError, "invalid close code %d", code)
	}
	reason := payload[2:]
	if !utf8.Valid(reason) {
		return nil, protocolError(CloseProtocolError, "invalid UTF-8 in close reason")
	}
	return &Decoded{Type: DecodedClose, Code: code, Reason: string(reason)}, nil
}

func (h *hybiCodec) Frame(kind api.MessageKind, payload []byte) ([]byte, error) {
	var opcode byte
	switch kind {
	case api.Text:
		if !utf8.Valid(payload) {
			return nil, api.ErrInvalidArgument
		}
		opcode = OpcodeText
	case api.Binary:
		opcode = OpcodeBinary
	default:
		return nil, api.ErrInvalidArgument
	}

	size := h.opts.FragmentSize
	if size <= 0 || len(payload) <= size {
		return AppendFrame(make([]byte, 0, len(payload)+MaxFrameHeaderLen), &Frame{Fin: true, Opcode: opcode, Payload: payload})
	}

	dst := make([]byte, 0, len(payload)+(len(payload)/size+1)*MaxFrameHeaderLen)
	for off := 0; off < len(payload); off += size {
		end := min(off+size, len(payload))
		f := &Frame{Fin: end == len(payload), Opcode: OpcodeContinuation, Payload: payload[off:end]}
		if off == 0 {
			f.Opcode = opcode
		}
		var err error
		if dst, err = AppendFrame(dst, f); err != nil {
			return nil, err
		}
	}
	return dst, nil
}

func (h *hybiCodec) Ping(payload []byte) ([]byte, error) {
	return AppendFrame(nil, &Frame{Fin: true, Opcode: OpcodePing, Payload: payload})
}

func (h *hybiCodec) Pong(payload []byte) ([]byte, error) {
	return AppendFrame(nil, &Frame{Fin: true, Opcode: OpcodePong, Payload: payload})
}

func (h *hybiCodec) CloseFrame(code int, reason string) []byte {
	if code == 0 {
		f, _ := AppendFrame(nil, &Frame{Fin: true, Opcode: OpcodeClose})
		return f
	}
	if len(reason) > MaxControlPayloadLen-2 {
		reason = truncateUTF8(reason, MaxControlPayloadLen-2)
	}
	payload := make([]byte, 2, 2+len(reason))
	binary.BigEndian.PutUint16(payload, uint16(code))
	payload = append(payload, reason...)
	f, _ := AppendFrame(nil, &Frame{Fin: true, Opcode: OpcodeClose, Payload: payload})
	return f
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
