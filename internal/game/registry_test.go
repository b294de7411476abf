package game_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coinflip-settlement/internal/game"
	"coinflip-settlement/internal/game/coinflip"
)

func TestRegistry(t *testing.T) {
	r := game.NewRegistry()
	assert.Equal(t, 0, r.Count())

	require.NoError(t, r.Register(coinflip.New()))
	assert.ErrorIs(t, r.Register(coinflip.New()), game.ErrDuplicateGame)
	assert.Error(t, r.Register(nil))

	g, ok := r.Get(coinflip.GameType)
	require.True(t, ok)
	assert.Equal(t, coinflip.GameType, g.Type())

	_, ok = r.Get("dice")
	assert.False(t, ok)

	assert.Equal(t, []string{coinflip.GameType}, r.Types())
	assert.Equal(t, 1, r.Count())
}
