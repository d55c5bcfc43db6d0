// Package protocol
// Author: momentics <momentics@gmail.com>
//
// Protocol core of wsgate: revision selection, opening handshakes and the
// framing engines for hixie-75, hixie-76 and hybi/RFC 6455. Nothing in this
// package performs I/O; callers feed it bytes and write what it returns.

package protocol
