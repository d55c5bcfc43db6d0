package protocol_test

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/momentics/wsgate/api"
	"github.com/momentics/wsgate/protocol"
)

func modernHeaders() http.Header {
	return http.Header{
		"sec-websocket-version": {"13"},
		"sec-websocket-key":     {"dGhlIHNhbXBsZSBub25jZQ=="},
	}
}

func TestAcceptKey(t *testing.T) {
	require.Equal(t, "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=", protocol.AcceptKey("dGhlIHNhbXBsZSBub25jZQ=="))
}

func TestNegotiateModern(t *testing.T) {
	hs, err := protocol.Negotiate(&protocol.HandshakeContext{Header: modernHeaders(), URL: "ws://example.com/chat"}, protocol.Options{})
	require.NoError(t, err)
	require.Equal(t, protocol.VariantModern, hs.Variant)
	require.Equal(t, "hybi-13", hs.Version)
	require.True(t, hs.Codec.IsOpen())

	raw := string(hs.Response.Bytes())
	require.True(t, strings.HasPrefix(raw, "HTTP/1.1 101 Switching Protocols\r\n"))
	require.Equal(t, "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=", hs.Response.Header().Get("Sec-WebSocket-Accept"))
	require.Empty(t, hs.Response.Header().Get("Sec-WebSocket-Protocol"))
	require.True(t, strings.HasSuffix(raw, "\r\n\r\n"), "modern response has no body")
}

func TestNegotiateSubprotocolFirstMatch(t *testing.T) {
	h := modernHeaders()
	h.Add("Sec-WebSocket-Protocol", "xmpp, chat")
	h.Add("Sec-WebSocket-Protocol", "superchat")

	hs, err := protocol.Negotiate(&protocol.HandshakeContext{Header: h}, protocol.Options{
		Protocols: []string{"superchat", "chat"},
	})
	require.NoError(t, err)
	require.Equal(t, "chat", hs.Protocol)
	require.Equal(t, "chat", hs.Response.Header().Get("Sec-WebSocket-Protocol"))
}

func TestSelectProtocolNoMatch(t *testing.T) {
	require.Equal(t, "", protocol.SelectProtocol([]string{"a, b"}, []string{"c"}))
	require.Equal(t, "", protocol.SelectProtocol([]string{"a"}, nil))
}

func TestNegotiateModernFailures(t *testing.T) {
	cases := []struct {
		name  string
		edit  func(http.Header)
		cause error
	}{
		{"unsupported version", func(h http.Header) { h["sec-websocket-version"] = []string{"99"} }, protocol.ErrUnsupportedVersion},
		{"missing key", func(h http.Header) { delete(h, "sec-websocket-key") }, protocol.ErrMissingWebSocketKey},
		{"malformed key", func(h http.Header) { h["sec-websocket-key"] = []string{"not-base64!"} }, protocol.ErrMalformedWebSocketKey},
		{"short nonce", func(h http.Header) { h["sec-websocket-key"] = []string{"c2hvcnQ="} }, protocol.ErrMalformedWebSocketKey},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := modernHeaders()
			tc.edit(h)
			_, err := protocol.Negotiate(&protocol.HandshakeContext{Header: h}, protocol.Options{})
			require.Error(t, err)
			require.True(t, api.IsHandshakeError(err))
			require.True(t, errors.Is(err, tc.cause))
		})
	}
}

func TestNegotiateWithoutHeaders(t *testing.T) {
	_, err := protocol.Negotiate(&protocol.HandshakeContext{}, protocol.Options{})
	require.True(t, errors.Is(err, protocol.ErrMissingHeaders))
}

func TestChallengeResponseKnownVectors(t *testing.T) {
	sum, err := protocol.ChallengeResponse("4 @1  46546xW%0l 1 5", "12998 5 Y3 1  .P00", []byte("^n:ds[4U"))
	require.NoError(t, err)
	require.Equal(t, []byte("8jKS'y:G*Co,Wxa-"), sum)

	sum, err = protocol.ChallengeResponse("18x 6]8vM;54 *(5:  {   U1]8  z [  8", "1_ tx7X d  <  nw  334J702) 7]o}` 0", []byte("Tm[K T2u"))
	require.NoError(t, err)
	require.Equal(t, []byte("fQJ,fN/4F4!~K~MH"), sum)
}

func TestChallengeResponseRejectsBadKeys(t *testing.T) {
	cases := map[string]string{
		"no spaces":       "12345",
		"inexact":         "1 2 3",
		"no digits":       "a b c",
		"quotient too big": "99999999999 ",
	}
	for name, key := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := protocol.ChallengeResponse(key, "1 0", []byte("12345678"))
			require.True(t, errors.Is(err, protocol.ErrMalformedChallengeKey))
		})
	}

	_, err := protocol.ChallengeResponse("1 0", "1 0", []byte("short"))
	require.True(t, errors.Is(err, protocol.ErrShortChallengeResponse))
}

func TestNegotiateChallengeLegacy(t *testing.T) {
	h := http.Header{}
	h.Set("Sec-WebSocket-Key1", "4 @1  46546xW%0l 1 5")
	h.Set("Sec-WebSocket-Key2", "12998 5 Y3 1  .P00")
	h.Set("Origin", "http://example.com")

	hs, err := protocol.Negotiate(&protocol.HandshakeContext{Header: h, URL: "ws://example.com/demo"}, protocol.Options{})
	require.NoError(t, err)
	require.Equal(t, protocol.VariantChallengeLegacy, hs.Variant)
	require.Equal(t, "hixie-76", hs.Version)
	require.False(t, hs.Codec.IsOpen())

	require.Equal(t,
		"HTTP/1.1 101 WebSocket Protocol Handshake\r\n"+
			"Upgrade: WebSocket\r\n"+
			"Connection: Upgrade\r\n"+
			"Sec-WebSocket-Origin: http://example.com\r\n"+
			"Sec-WebSocket-Location: ws://example.com/demo\r\n\r\n",
		string(hs.Response.Bytes()))
}

func TestNegotiateChallengeLegacyMalformed(t *testing.T) {
	h := http.Header{}
	h.Set("Sec-WebSocket-Key1", "12345")
	h.Set("Sec-WebSocket-Key2", "12998 5 Y3 1  .P00")
	_, err := protocol.Negotiate(&protocol.HandshakeContext{Header: h}, protocol.Options{})
	require.True(t, api.IsHandshakeError(err))
}

func TestNegotiatePlainLegacy(t *testing.T) {
	h := http.Header{}
	h.Set("Upgrade", "WebSocket")
	h.Set("Connection", "Upgrade")
	h.Set("Origin", "http://example.com")

	hs, err := protocol.Negotiate(&protocol.HandshakeContext{Header: h, URL: "wss://example.com/"}, protocol.Options{})
	require.NoError(t, err)
	require.Equal(t, protocol.VariantPlainLegacy, hs.Variant)
	require.True(t, hs.Codec.IsOpen())
	require.Equal(t,
		"HTTP/1.1 101 Web Socket Protocol Handshake\r\n"+
			"Upgrade: WebSocket\r\n"+
			"Connection: Upgrade\r\n"+
			"WebSocket-Origin: http://example.com\r\n"+
			"WebSocket-Location: wss://example.com/\r\n\r\n",
		string(hs.Response.Bytes()))
}

func TestFailureResponse(t *testing.T) {
	h := modernHeaders()
	h["sec-websocket-version"] = []string{"5"}
	_, err := protocol.Negotiate(&protocol.HandshakeContext{Header: h}, protocol.Options{})

	raw := string(protocol.FailureResponse(err))
	require.True(t, strings.HasPrefix(raw, "HTTP/1.1 400 Bad Request\r\n"))
	require.Contains(t, raw, "Sec-WebSocket-Version: 13\r\n")

	raw = string(protocol.FailureResponse(errors.New("nope")))
	require.NotContains(t, raw, "Sec-WebSocket-Version")
	require.True(t, strings.HasSuffix(raw, "\r\n\r\nnope"))
}
