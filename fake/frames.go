// Package fake
// Author: momentics <momentics@gmail.com>
//
// Client-side frame helpers for driving the server codec in tests.

package fake

import (
	"encoding/binary"
	"fmt"

	"github.com/momentics/wsgate/protocol"
)

// MaskKey is the fixed key ClientFrame masks with.
var MaskKey = [4]byte{0x12, 0x34, 0x56, 0x78}

// ClientFrame encodes a masked frame the way a browser would send it.
func ClientFrame(fin bool, opcode byte, payload []byte) []byte {
	b, err := protocol.AppendFrame(nil, &protocol.Frame{
		Fin:     fin,
		Opcode:  opcode,
		Masked:  true,
		MaskKey: MaskKey,
		Payload: payload,
	})
	if err != nil {
		panic(err)
	}
	return b
}

// ClientClose encodes a masked close frame carrying code and reason.
func ClientClose(code int, reason string) []byte {
	payload := make([]byte, 2, 2+len(reason))
	binary.BigEndian.PutUint16(payload, uint16(code))
	return ClientFrame(true, protocol.OpcodeClose, append(payload, reason...))
}

// DecodeFrames splits raw server output into unmasked frames.
func DecodeFrames(raw []byte) ([]protocol.Frame, error) {
	var frames []protocol.Frame
	for len(raw) > 0 {
		if len(raw) < 2 {
			return frames, fmt.Errorf("fake: truncated frame header")
		}
		if raw[1]&protocol.MaskBit != 0 {
			return frames, fmt.Errorf("fake: server frame is masked")
		}
		n, off := uint64(raw[1]&0x7F), 2
		switch n {
		case 126:
			if len(raw) < 4 {
				return frames, fmt.Errorf("fake: truncated 16-bit length")
			}
			n, off = uint64(binary.BigEndian.Uint16(raw[2:])), 4
		case 127:
			if len(raw) < 10 {
				return frames, fmt.Errorf("fake: truncated 64-bit length")
			}
			n, off = binary.BigEndian.Uint64(raw[2:]), 10
		}
		if uint64(len(raw)-off) < n {
			return frames, fmt.Errorf("fake: truncated payload")
		}
		end := off + int(n)
		frames = append(frames, protocol.Frame{
			Fin:     raw[0]&protocol.FinBit != 0,
			Opcode:  raw[0] & 0x0F,
			Payload: append([]byte(nil), raw[off:end]...),
		})
		raw = raw[end:]
	}
	return frames, nil
}
