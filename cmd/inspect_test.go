package cmd

import (
	"testing"

	"relation-manager/core/endpoint"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseObjectIDs(t *testing.T) {
	value := uuid.New()

	ids, err := parseObjectIDs([]string{" Order|" + value.String() + " "})
	require.NoError(t, err)
	assert.Equal(t, []endpoint.ObjectID{{ClassID: "Order", Value: value}}, ids)

	_, err = parseObjectIDs([]string{"Order"})
	assert.ErrorIs(t, err, endpoint.ErrInvalidArgument)

	ids, err = parseObjectIDs(nil)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range RootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "inspect", "snapshot", "schema"} {
		assert.True(t, names[want], want)
	}
}
