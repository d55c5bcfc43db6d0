// File: protocol/legacy.go
// Package protocol
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// legacyCodec implements hixie-75 and hixie-76 framing. Text messages are
// enveloped in 0x00 ... 0xFF; a leading byte with the high bit set starts a
// length-prefixed frame, and 0xFF 0x00 closes the connection. The two
// revisions differ only in the opening handshake: hixie-76 expects 8 key
// bytes after the request head and answers them with an MD5 digest.

package protocol

import (
	"unicode/utf8"

	"github.com/momentics/wsgate/api"
)

type legacyStage int

const (
	stageLeading legacyStage = iota
	stageLength
	stageText
	stageSkip
)

// challenge holds the hixie-76 key numbers until key3 arrives.
type challenge struct {
	n1, n2 uint32
	key3   []byte
}

type legacyCodec struct {
	opts      Options
	challenge *challenge // nil for hixie-75
	open      bool

	stage   legacyStage
	leading byte
	length  int64
	text    []byte
}

func newLegacyCodec(opts Options, c *challenge) *legacyCodec {
	return &legacyCodec{opts: opts, challenge: c, open: c == nil}
}

func (l *legacyCodec) Variant() Variant {
	if l.challenge != nil {
		return VariantChallengeLegacy
	}
	return VariantPlainLegacy
}

func (l *legacyCodec) Version() string { return l.Variant().String() }
func (l *legacyCodec) IsOpen() bool    { return l.open }

func (l *legacyCodec) Parse(data []byte) ([]byte, []Decoded, error) {
	var reply []byte
	if !l.open {
		c := l.challenge
		need := 8 - len(c.key3)
		if len(data) < need {
			c.key3 = append(c.key3, data...)
			return nil, nil, nil
		}
		c.key3 = append(c.key3, data[:need]...)
		data = data[need:]
		sum := challengeDigest(c.n1, c.n2, c.key3)
		reply = sum[:]
		l.open = true
	}

	var out []Decoded
	for i := 0; i < len(data); i++ {
		b := data[i]
		switch l.stage {
		case stageLeading:
			l.leading = b
			if b&0x80 != 0 {
				l.length = 0
				l.stage = stageLength
			} else {
				l.text = l.text[:0]
				l.stage = stageText
			}

		case stageLength:
			l.length = l.length*128 + int64(b&0x7F)
			if l.length > l.opts.maxMessageSize() {
				return reply, out, protocolError(CloseMessageTooBig, "legacy frame length exceeds limit")
			}
			if b&0x80 != 0 {
				continue
			}
			switch {
			case l.length == 0 && l.leading == legacyFrameEnd:
				out = append(out, Decoded{Type: DecodedClose, Code: CloseNormalClosure})
				l.stage = stageLeading
				return reply, out, nil
			case l.length == 0:
				l.stage = stageLeading
			default:
				l.stage = stageSkip
			}

		case stageSkip:
			// length-prefixed frames carry no text and are discarded
			skip := min(int64(len(data)-i), l.length)
			l.length -= skip
			i += int(skip) - 1
			if l.length == 0 {
				l.stage = stageLeading
			}

		case stageText:
			if b != legacyFrameEnd {
				l.text = append(l.text, b)
				if int64(len(l.text)) > l.opts.maxMessageSize() {
					return reply, out, protocolError(CloseMessageTooBig, "legacy message exceeds limit")
				}
				continue
			}
			if !utf8.Valid(l.text) {
				return reply, out, protocolError(CloseUnsupportedData, "invalid UTF-8 in text message")
			}
			msg := make([]byte, len(l.text))
			copy(msg, l.text)
			out = append(out, Decoded{Type: DecodedMessage, Kind: api.Text, Payload: msg})
			l.stage = stageLeading
		}
	}
	return reply, out, nil
}

func (l *legacyCodec) Frame(kind api.MessageKind, payload []byte) ([]byte, error) {
	if kind != api.Text {
		return nil, api.ErrNotSupported
	}
	if !utf8.Valid(payload) {
		return nil, api.ErrInvalidArgument
	}
	frame := make([]byte, 0, len(payload)+2)
	frame = append(frame, legacyTextStart)
	frame = append(frame, payload...)
	return append(frame, legacyFrameEnd), nil
}

func (l *legacyCodec) Ping([]byte) ([]byte, error) { return nil, api.ErrNotSupported }
func (l *legacyCodec) Pong([]byte) ([]byte, error) { return nil, api.ErrNotSupported }

func (l *legacyCodec) CloseFrame(int, string) []byte {
	if l.challenge == nil {
		return nil
	}
	return []byte{legacyFrameEnd, 0x00}
}
