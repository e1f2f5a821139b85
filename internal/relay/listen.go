package relay

import (
	"context"
	"net"
)

// listen binds a TCP listener with SO_REUSEADDR set explicitly, so a
// rapid stop/start cycle on the same port does not fail on lingering
// TIME_WAIT sockets.
func listen(ctx context.Context, addr string) (net.Listener, error) {
	lc := net.ListenConfig{Control: controlReuseAddr}
	return lc.Listen(ctx, "tcp", addr)
}
