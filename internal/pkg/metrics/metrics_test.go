package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestInitTwice(t *testing.T) {
	assert.NotPanics(t, func() {
		Init()
		Init()
	})
}

func TestGamesSettledLabels(t *testing.T) {
	GamesSettled.Reset()
	GamesSettled.WithLabelValues("coin_flip", Result(true)).Inc()
	GamesSettled.WithLabelValues("coin_flip", Result(false)).Add(2)

	assert.Equal(t, 1.0, testutil.ToFloat64(GamesSettled.WithLabelValues("coin_flip", "won")))
	assert.Equal(t, 2.0, testutil.ToFloat64(GamesSettled.WithLabelValues("coin_flip", "lost")))
}
