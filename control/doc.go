// Package control
// Author: momentics <momentics@gmail.com>
//
// Configuration, logging and runtime metrics for binaries that embed wsgate.
//
// Provides:
//   - Config loading from a JSON file or WSGATE_* environment variables
//   - Conversion of Config into server options
//   - zap logger construction
//   - Connection and message counters fed from connection events
package control
