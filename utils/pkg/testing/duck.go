package evtesting

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cascadelabs/evlake/pkg/duck"
)

// NewClient opens a fresh in-memory DuckDB session scoped to the test.
func NewClient(t *testing.T) duck.Client {
	t.Helper()

	client, err := duck.NewClient(t.Context(), duck.Config{
		Logger: NewLogger(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return client
}

// NewConn opens a fresh in-memory session and returns its connection.
func NewConn(t *testing.T) duck.Connection {
	t.Helper()

	conn, err := NewClient(t).Conn(t.Context())
	require.NoError(t, err)
	return conn
}
