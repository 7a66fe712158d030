package agent

import "context"

// libraryTransport dispatches a turn to a Go closure registered by the
// embedding program instead of a subprocess.
type libraryTransport struct {
	fn LibraryFunc
}

func (l *libraryTransport) Run(ctx context.Context, req Request) (*Result, error) {
	return l.fn(ctx, req)
}
