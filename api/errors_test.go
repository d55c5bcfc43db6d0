package api_test

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/momentics/wsgate/api"
)

func TestErrorFormatting(t *testing.T) {
	e := api.NewError(api.ErrCodeProtocol, "bad frame")
	require.Equal(t, "bad frame", e.Error())

	e.WithCause(io.ErrUnexpectedEOF)
	require.Equal(t, "bad frame: unexpected EOF", e.Error())

	e.WithContext("opcode", 3)
	require.Contains(t, e.Error(), "opcode:3")
}

func TestErrorClassification(t *testing.T) {
	e := api.NewError(api.ErrCodeHandshake, "handshake failed").WithCause(io.EOF)
	wrapped := fmt.Errorf("upgrade: %w", e)

	require.True(t, api.IsHandshakeError(wrapped))
	require.False(t, api.IsProtocolError(wrapped))
	require.ErrorIs(t, wrapped, io.EOF)
	require.Equal(t, api.ErrCodeHandshake, api.CodeOf(wrapped))

	require.Equal(t, api.ErrCodeOK, api.CodeOf(nil))
	require.Equal(t, api.ErrCodeInternal, api.CodeOf(errors.New("plain")))
}

func TestCloseCodeOf(t *testing.T) {
	e := api.NewError(api.ErrCodeProtocol, "too big").WithCloseCode(1009)
	require.Equal(t, 1009, api.CloseCodeOf(fmt.Errorf("read: %w", e)))
	require.Zero(t, api.CloseCodeOf(io.EOF))
}

func TestStrings(t *testing.T) {
	require.Equal(t, "connecting", api.Connecting.String())
	require.Equal(t, "open", api.Open.String())
	require.Equal(t, "closing", api.Closing.String())
	require.Equal(t, "closed", api.Closed.String())
	require.Equal(t, "text", api.Text.String())
	require.Equal(t, "binary", api.Binary.String())
	require.Equal(t, "protocol", api.ErrCodeProtocol.String())
}

func TestEventTypes(t *testing.T) {
	events := []api.Event{
		api.OpenEvent{},
		api.MessageEvent{Kind: api.Text, Data: []byte("hi")},
		api.ErrorEvent{Err: io.EOF},
		api.CloseEvent{Code: 1000, WasClean: true},
	}
	var kinds []string
	for _, ev := range events {
		switch e := ev.(type) {
		case api.OpenEvent:
			kinds = append(kinds, "open")
		case api.MessageEvent:
			kinds = append(kinds, "message:"+e.Text())
		case api.ErrorEvent:
			kinds = append(kinds, "error")
		case api.CloseEvent:
			kinds = append(kinds, fmt.Sprintf("close:%d", e.Code))
		}
	}
	require.Equal(t, []string{"open", "message:hi", "error", "close:1000"}, kinds)
}
