package main

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRootCommandTree(t *testing.T) {
	root := newRootCmd()

	for _, name := range []string{"serve", "indexes", "seed-clients", "create-user"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err)
		require.Equal(t, name, cmd.Name())
	}

	require.NotNil(t, root.PersistentFlags().Lookup("mongo-uri"))

	seed, _, err := root.Find([]string{"seed-clients"})
	require.NoError(t, err)
	require.Equal(t, "clients.yaml", seed.Flags().Lookup("file").DefValue)
}

func TestCreateUserRequiresFlags(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"create-user", "--username", "alice"})
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)

	err := root.Execute()
	require.ErrorContains(t, err, `"email" not set`)
}
