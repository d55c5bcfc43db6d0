// Package protocol
// Author: momentics <momentics@gmail.com>
//
// RFC 6455 frame encoding/decoding and masking logic.
//
// The decoder works on an accumulated byte slice and reports how many bytes
// a complete frame consumed, so callers can feed it whatever a single
// transport read delivered and keep the remainder for the next one.

package protocol

import (
	"encoding/binary"
	"fmt"

	"github.com/momentics/wsgate/api"
)

// Frame represents a single hybi frame.
type Frame struct {
	Fin     bool    // FIN bit
	Opcode  byte    // Operation code
	Masked  bool    // Whether the frame is masked on the wire
	MaskKey [4]byte // Valid only when Masked
	Payload []byte  // Unmasked payload
}

// AppendFrame serializes f onto dst and returns the extended slice.
// When f.Masked is set the payload is XORed with f.MaskKey on the wire;
// f.Payload itself is left untouched.
func AppendFrame(dst []byte, f *Frame) ([]byte, error) {
	if !isKnownOpcode(f.Opcode) {
		return dst, fmt.Errorf("protocol: invalid opcode %#x", f.Opcode)
	}
	if isControl(f.Opcode) && (len(f.Payload) > MaxControlPayloadLen || !f.Fin) {
		return dst, api.ErrInvalidArgument
	}

	var b0 byte
	if f.Fin {
		b0 = FinBit
	}
	b0 |= f.Opcode

	var maskBit byte
	if f.Masked {
		maskBit = MaskBit
	}

	plen := len(f.Payload)
	var hdr [MaxFrameHeaderLen]byte
	hdr[0] = b0
	n := 2
	switch {
	case plen <= 125:
		hdr[1] = byte(plen) | maskBit
	case plen <= 0xFFFF:
		hdr[1] = 126 | maskBit
		binary.BigEndian.PutUint16(hdr[2:], uint16(plen))
		n += 2
	default:
		hdr[1] = 127 | maskBit
		binary.BigEndian.PutUint64(hdr[2:], uint64(plen))
		n += 8
	}
	if f.Masked {
		copy(hdr[n:], f.MaskKey[:])
		n += 4
	}

	dst = append(dst, hdr[:n]...)
	start := len(dst)
	dst = append(dst, f.Payload...)
	if f.Masked {
		maskBytes(dst[start:], f.MaskKey)
	}
	return dst, nil
}

// maskBytes applies XOR on buf using key, cycling per byte index.
func maskBytes(buf []byte, key [4]byte) {
	for i := range buf {
		buf[i] ^= key[i&3]
	}
}

// decodeFrame parses one client frame from raw, enforcing maxSize.
// Returns frame, consumed bytes, and error.
// If the frame is incomplete, returns (nil, 0, nil).
func decodeFrame(raw []byte, maxSize int64) (*Frame, int, error) {
	if len(raw) < 2 {
		return nil, 0, nil
	}
	b0, b1 := raw[0], raw[1]
	fin := b0&FinBit != 0
	opcode := b0 & 0x0F
	masked := b1&MaskBit != 0
	length := int64(b1 & 0x7F)
	offset := 2

	if b0&RsvBits != 0 {
		return nil, 0, protocolError(CloseProtocolError, "reserved bits set")
	}
	if !isKnownOpcode(opcode) {
		return nil, 0, protocolError(CloseProtocolError, "reserved opcode %#x", opcode)
	}
	if !masked {
		return nil, 0, protocolError(CloseProtocolError, "unmasked client frame")
	}
	if isControl(opcode) {
		if !fin {
			return nil, 0, protocolError(CloseProtocolError, "fragmented control frame")
		}
		if length > MaxControlPayloadLen {
			return nil, 0, protocolError(CloseProtocolError, "control frame payload too long")
		}
	}

	switch length {
	case 126:
		if len(raw) < offset+2 {
			return nil, 0, nil
		}
		length = int64(binary.BigEndian.Uint16(raw[offset:]))
		offset += 2
		if length < 126 {
			return nil, 0, protocolError(CloseProtocolError, "non-minimal 16-bit length %d", length)
		}
	case 127:
		if len(raw) < offset+8 {
			return nil, 0, nil
		}
		ext := binary.BigEndian.Uint64(raw[offset:])
		offset += 8
		if ext>>63 != 0 {
			return nil, 0, protocolError(CloseProtocolError, "64-bit length has most significant bit set")
		}
		length = int64(ext)
		if length <= 0xFFFF {
			return nil, 0, protocolError(CloseProtocolError, "non-minimal 64-bit length %d", length)
		}
	}

	if maxSize > 0 && length > maxSize {
		return nil, 0, protocolError(CloseMessageTooBig, "frame payload of %d bytes exceeds limit %d", length, maxSize)
	}

	var maskKey [4]byte
	if len(raw) < offset+4 {
		return nil, 0, nil
	}
	copy(maskKey[:], raw[offset:offset+4])
	offset += 4

	total := offset + int(length)
	if len(raw) < total {
		return nil, 0, nil
	}

	payload := make([]byte, length)
	copy(payload, raw[offset:total])
	maskBytes(payload, maskKey)

	return &Frame{
		Fin:     fin,
		Opcode:  opcode,
		Masked:  true,
		MaskKey: maskKey,
		Payload: payload,
	}, total, nil
}

func protocolError(closeCode int, format string, args ...any) *api.Error {
	return api.NewError(api.ErrCodeProtocol, fmt.Sprintf(format, args...)).WithCloseCode(closeCode)
}
