// File: protocol/handshake.go
// Package protocol
// Author: momentics <momentics@gmail.com>
//
// Opening handshake for all three revisions: validates the negotiation
// headers, computes the revision-specific proof (Sec-WebSocket-Accept or
// the hixie-76 MD5 challenge) and builds the upgrade response together with
// the codec that will serve the connection.

package protocol

import (
	"crypto/md5"
	"crypto/sha1"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/momentics/wsgate/api"
)

// Handshake validation failures, wrapped in an *api.Error with
// api.ErrCodeHandshake.
var (
	ErrMissingHeaders         = errors.New("missing request headers")
	ErrUnsupportedVersion     = errors.New("unsupported Sec-WebSocket-Version")
	ErrMissingWebSocketKey    = errors.New("missing Sec-WebSocket-Key header")
	ErrMalformedWebSocketKey  = errors.New("malformed Sec-WebSocket-Key header")
	ErrMalformedChallengeKey  = errors.New("malformed Sec-WebSocket-Key1/Key2 header")
	ErrShortChallengeResponse = errors.New("challenge requires 8 key bytes")
)

// supportedVersions lists the hybi revisions this server accepts.
var supportedVersions = map[string]bool{"7": true, "8": true, "13": true}

// HandshakeContext is everything the handshake needs from the upgrade
// request. It lives only for the duration of the upgrade.
type HandshakeContext struct {
	Header http.Header // request headers, case-insensitive
	URL    string      // ws: or wss: URL of the request
	Head   []byte      // bytes already read past the request head
}

// Handshake is the outcome of a successful negotiation.
type Handshake struct {
	Variant  Variant
	Version  string
	Protocol string
	Response *Response
	Codec    Codec
}

// Negotiate selects the revision for hc and builds its response and codec.
// The response must be written before any frame data is parsed.
func Negotiate(hc *HandshakeContext, opts Options) (*Handshake, error) {
	if hc == nil || len(hc.Header) == 0 {
		return nil, handshakeError(ErrMissingHeaders, "")
	}
	switch Select(hc.Header) {
	case VariantModern:
		return negotiateHybi(hc, opts)
	case VariantChallengeLegacy:
		return negotiateChallenge(hc, opts)
	default:
		return negotiatePlain(hc, opts)
	}
}

func negotiateHybi(hc *HandshakeContext, opts Options) (*Handshake, error) {
	version := strings.TrimSpace(headerValue(hc.Header, HeaderSecWebSocketVersion))
	if !supportedVersions[version] {
		return nil, handshakeError(ErrUnsupportedVersion, version)
	}
	key := strings.TrimSpace(headerValue(hc.Header, HeaderSecWebSocketKey))
	if key == "" {
		return nil, handshakeError(ErrMissingWebSocketKey, "")
	}
	if nonce, err := base64.StdEncoding.DecodeString(key); err != nil || len(nonce) != 16 {
		return nil, handshakeError(ErrMalformedWebSocketKey, key)
	}

	proto := SelectProtocol(headerValues(hc.Header, HeaderSecWebSocketProto), opts.Protocols)

	resp := newResponse("101 Switching Protocols")
	resp.Add("Upgrade", "websocket")
	resp.Add("Connection", "Upgrade")
	resp.Add("Sec-WebSocket-Accept", AcceptKey(key))
	if proto != "" {
		resp.Add(HeaderSecWebSocketProto, proto)
	}

	return &Handshake{
		Variant:  VariantModern,
		Version:  "hybi-" + version,
		Protocol: proto,
		Response: resp,
		Codec:    newHybiCodec("hybi-"+version, opts),
	}, nil
}

func negotiateChallenge(hc *HandshakeContext, opts Options) (*Handshake, error) {
	n1, err := challengeKeyNumber(headerValue(hc.Header, HeaderSecWebSocketKey1))
	if err != nil {
		return nil, handshakeError(ErrMalformedChallengeKey, err.Error())
	}
	n2, err := challengeKeyNumber(headerValue(hc.Header, HeaderSecWebSocketKey2))
	if err != nil {
		return nil, handshakeError(ErrMalformedChallengeKey, err.Error())
	}

	resp := newResponse("101 WebSocket Protocol Handshake")
	resp.Add("Upgrade", "WebSocket")
	resp.Add("Connection", "Upgrade")
	resp.Add("Sec-WebSocket-Origin", headerValue(hc.Header, HeaderOrigin))
	resp.Add("Sec-WebSocket-Location", hc.URL)

	return &Handshake{
		Variant:  VariantChallengeLegacy,
		Version:  VariantChallengeLegacy.String(),
		Response: resp,
		Codec:    newLegacyCodec(opts, &challenge{n1: n1, n2: n2}),
	}, nil
}

func negotiatePlain(hc *HandshakeContext, opts Options) (*Handshake, error) {
	resp := newResponse("101 Web Socket Protocol Handshake")
	resp.Add("Upgrade", "WebSocket")
	resp.Add("Connection", "Upgrade")
	resp.Add("WebSocket-Origin", headerValue(hc.Header, HeaderOrigin))
	resp.Add("WebSocket-Location", hc.URL)

	return &Handshake{
		Variant:  VariantPlainLegacy,
		Version:  VariantPlainLegacy.String(),
		Response: resp,
		Codec:    newLegacyCodec(opts, nil),
	}, nil
}

// AcceptKey computes the Sec-WebSocket-Accept value from the client's key.
func AcceptKey(clientKey string) string {
	hash := sha1.Sum([]byte(clientKey + WebSocketGUID))
	return base64.StdEncoding.EncodeToString(hash[:])
}

// SelectProtocol returns the first client-offered subprotocol the server
// supports, or "". offered entries may themselves be comma-separated lists.
func SelectProtocol(offered, supported []string) string {
	if len(supported) == 0 {
		return ""
	}
	for _, line := range offered {
		for _, p := range strings.Split(line, ",") {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			for _, s := range supported {
				if p == s {
					return p
				}
			}
		}
	}
	return ""
}

// ChallengeResponse computes the hixie-76 handshake body: the MD5 digest of
// the two key numbers (big-endian 32-bit) followed by the 8 key bytes.
func ChallengeResponse(key1, key2 string, key3 []byte) ([]byte, error) {
	n1, err := challengeKeyNumber(key1)
	if err != nil {
		return nil, handshakeError(ErrMalformedChallengeKey, err.Error())
	}
	n2, err := challengeKeyNumber(key2)
	if err != nil {
		return nil, handshakeError(ErrMalformedChallengeKey, err.Error())
	}
	if len(key3) != 8 {
		return nil, handshakeError(ErrShortChallengeResponse, strconv.Itoa(len(key3)))
	}
	sum := challengeDigest(n1, n2, key3)
	return sum[:], nil
}

func challengeDigest(n1, n2 uint32, key3 []byte) [md5.Size]byte {
	var buf [16]byte
	binary.BigEndian.PutUint32(buf[0:], n1)
	binary.BigEndian.PutUint32(buf[4:], n2)
	copy(buf[8:], key3)
	return md5.Sum(buf[:])
}

// challengeKeyNumber extracts the digits of a hixie-76 key and divides the
// resulting number by the count of spaces in the key.
func challengeKeyNumber(key string) (uint32, error) {
	var number, spaces uint64
	digits := 0
	for i := 0; i < len(key); i++ {
		switch c := key[i]; {
		case c >= '0' && c <= '9':
			if number > (math.MaxUint64-9)/10 {
				return 0, fmt.Errorf("key number overflows")
			}
			number = number*10 + uint64(c-'0')
			digits++
		case c == ' ':
			spaces++
		}
	}
	if digits == 0 {
		return 0, fmt.Errorf("key has no digits")
	}
	if spaces == 0 {
		return 0, fmt.Errorf("key has no spaces")
	}
	if number%spaces != 0 {
		return 0, fmt.Errorf("key number %d is not a multiple of %d", number, spaces)
	}
	q := number / spaces
	if q > math.MaxUint32 {
		return 0, fmt.Errorf("key number %d out of range", q)
	}
	return uint32(q), nil
}

// FailureResponse renders the 400 reply written before a rejected upgrade
// is torn down.
func FailureResponse(err error) []byte {
	msg := "bad websocket handshake"
	if err != nil {
		msg = err.Error()
	}
	resp := newResponse("400 Bad Request")
	resp.Add("Content-Type", "text/plain; charset=utf-8")
	resp.Add("Content-Length", strconv.Itoa(len(msg)))
	resp.Add("Connection", "close")
	if errors.Is(err, ErrUnsupportedVersion) {
		resp.Add(HeaderSecWebSocketVersion, "13")
	}
	resp.Body = []byte(msg)
	return resp.Bytes()
}

func handshakeError(cause error, detail string) *api.Error {
	e := api.NewError(api.ErrCodeHandshake, "websocket handshake failed").WithCause(cause)
	if detail != "" {
		e.WithContext("detail", detail)
	}
	return e
}

// headerValues collects every value of name, case-insensitively.
func headerValues(h http.Header, name string) []string {
	if vs := h.Values(name); len(vs) > 0 {
		return vs
	}
	for k, vs := range h {
		if strings.EqualFold(k, name) {
			return vs
		}
	}
	return nil
}
