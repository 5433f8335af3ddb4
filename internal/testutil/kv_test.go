package testutil

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryKV_SaveLoad(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()

	_, ok, err := kv.Load(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, kv.Save(ctx, "k", "v"))
	v, ok, err := kv.Load(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)
	assert.Equal(t, 1, kv.Saves())
}

func TestMemoryKV_InjectedErrors(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	boom := errors.New("disk gone")

	kv.SaveErr = boom
	assert.ErrorIs(t, kv.Save(ctx, "k", "v"), boom)
	assert.Equal(t, 0, kv.Saves())

	kv.Put("k", "seeded")
	kv.LoadErr = boom
	_, _, err := kv.Load(ctx, "k")
	assert.ErrorIs(t, err, boom)
}
