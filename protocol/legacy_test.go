package protocol_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"

	"github.com/momentics/wsgate/api"
	"github.com/momentics/wsgate/protocol"
)

func newPlain(t *testing.T) protocol.Codec {
	t.Helper()
	hs, err := protocol.Negotiate(&protocol.HandshakeContext{Header: http.Header{"Upgrade": {"WebSocket"}}}, protocol.Options{})
	require.NoError(t, err)
	return hs.Codec
}

func newChallenge(t *testing.T) protocol.Codec {
	t.Helper()
	h := http.Header{}
	h.Set("Sec-WebSocket-Key1", "4 @1  46546xW%0l 1 5")
	h.Set("Sec-WebSocket-Key2", "12998 5 Y3 1  .P00")
	hs, err := protocol.Negotiate(&protocol.HandshakeContext{Header: h}, protocol.Options{})
	require.NoError(t, err)
	return hs.Codec
}

func TestLegacyEnvelopeProperty(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("encode wraps text in 0x00/0xFF and decode restores it", prop.ForAll(
		func(text string) bool {
			c := newPlain(t)
			frame, err := c.Frame(api.Text, []byte(text))
			if err != nil || frame[0] != 0x00 || frame[len(frame)-1] != 0xFF {
				return false
			}
			_, out, err := c.Parse(frame)
			return err == nil && len(out) == 1 && out[0].Kind == api.Text && string(out[0].Payload) == text
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}

func TestLegacyMessageBufferedAcrossReads(t *testing.T) {
	c := newPlain(t)

	_, out, err := c.Parse([]byte{0x00, 'H', 'e'})
	require.NoError(t, err)
	require.Empty(t, out)

	_, out, err = c.Parse([]byte{'l', 'l', 'o', 0xFF, 0x00, 'x', 0xFF})
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, "Hello", string(out[0].Payload))
	require.Equal(t, "x", string(out[1].Payload))
}

func TestLegacyClose(t *testing.T) {
	c := newPlain(t)
	_, out, err := c.Parse([]byte{0x00, 'a', 0xFF, 0xFF, 0x00, 0x00, 'b', 0xFF})
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, protocol.DecodedMessage, out[0].Type)
	require.Equal(t, protocol.DecodedClose, out[1].Type)
}

func TestLegacySkipsLengthPrefixedFrames(t *testing.T) {
	c := newPlain(t)
	// 0x80 leading byte, length 130 = 0x81 0x02
	wire := append([]byte{0x80, 0x81, 0x02}, make([]byte, 130)...)
	wire = append(wire, 0x00, 'o', 'k', 0xFF)

	_, out, err := c.Parse(wire[:50])
	require.NoError(t, err)
	require.Empty(t, out)
	_, out, err = c.Parse(wire[50:])
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "ok", string(out[0].Payload))
}

func TestLegacyInvalidUTF8Terminates(t *testing.T) {
	c := newPlain(t)
	_, out, err := c.Parse([]byte{0x00, 0xC3, 0x28, 0xFF})
	require.Error(t, err)
	require.Empty(t, out)
	require.True(t, api.IsProtocolError(err))
}

func TestLegacyHasNoBinaryOrPing(t *testing.T) {
	c := newPlain(t)
	_, err := c.Frame(api.Binary, []byte{1})
	require.True(t, errors.Is(err, api.ErrNotSupported))
	_, err = c.Ping(nil)
	require.True(t, errors.Is(err, api.ErrNotSupported))
	_, err = c.Pong(nil)
	require.True(t, errors.Is(err, api.ErrNotSupported))
	require.Nil(t, c.CloseFrame(protocol.CloseNormalClosure, ""))
}

func TestChallengeRepliesOnFirstBytes(t *testing.T) {
	c := newChallenge(t)
	require.False(t, c.IsOpen())

	reply, out, err := c.Parse([]byte("^n:d"))
	require.NoError(t, err)
	require.Nil(t, reply)
	require.Empty(t, out)
	require.False(t, c.IsOpen())

	reply, out, err = c.Parse(append([]byte("s[4U"), 0x00, 'h', 'i', 0xFF))
	require.NoError(t, err)
	require.Equal(t, []byte("8jKS'y:G*Co,Wxa-"), reply)
	require.True(t, c.IsOpen())
	require.Len(t, out, 1)
	require.Equal(t, "hi", string(out[0].Payload))

	reply, _, err = c.Parse([]byte{0x00, 0xFF})
	require.NoError(t, err)
	require.Nil(t, reply, "digest is written once")

	require.Equal(t, []byte{0xFF, 0x00}, c.CloseFrame(0, ""))
}
