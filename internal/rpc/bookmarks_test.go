package rpc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONArg(t *testing.T) {
	s, err := jsonArg(nil)
	require.NoError(t, err)
	assert.Equal(t, "{}", s)

	s, err = jsonArg(map[string]any{"saved_collection_names": []string{"Tech"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"saved_collection_names":["Tech"]}`, s)

	_, err = jsonArg(map[string]any{"bad": make(chan int)})
	assert.Error(t, err)
}
