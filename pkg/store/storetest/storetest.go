// Package storetest provides an in-memory store for use in package tests
// elsewhere in the module.
package storetest

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/bbangert/zilch/pkg/store"
)

// SqliteURI returns a fresh, uniquely-named in-memory SQLite DSN so parallel
// tests never share state.
func SqliteURI() string {
	return fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", uuid.New().String())
}

// New opens a Store against a fresh in-memory SQLite database, registering
// cleanup with t.
func New(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(context.Background(), "sqlite3", SqliteURI())
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, s.Close())
	})
	return s
}
