// Package transport provides the client-side connection abstraction.
// The interactive client dials through a Dialer so tests can substitute
// an in-memory pipe for a real socket.
package transport

import (
	"context"
	"net"
)

// Dialer opens outbound connections to a bank server.
type Dialer interface {
	// Dial establishes a connection to the given network address.
	Dial(ctx context.Context, network, address string) (net.Conn, error)

	// Close releases any long-lived resources held by the dialer.
	// Stateless dialers return nil.
	Close() error
}
