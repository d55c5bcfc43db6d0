// Package pool
// Author: momentics <momentics@gmail.com>
//
// Reusable read buffers. Connections borrow one buffer for the lifetime of
// their read loop; buffers of the same size are shared process-wide.
package pool
