package commands

import (
	"context"
	"testing"

	"github.com/fortytw2/leaktest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cfg "github.com/celestiaorg/headerbft/config"
)

func TestSimulationAdvancesFinality(t *testing.T) {
	conf := cfg.TestConfig().SetRoot(t.TempDir())

	manager, stop, err := newManager(conf)
	require.NoError(t, err)
	defer stop()

	sim := &simulation{manager: manager, proposers: proposerSet(4), gap: 4}
	for height := int64(0); height < 100; height++ {
		require.NoError(t, sim.next(height), "height %d", height)
	}

	status := manager.Status()
	assert.EqualValues(t, 99, status.MaxStoredHeight)
	assert.EqualValues(t, 99, status.StoreHeight)
	assert.Greater(t, status.HeightFinalized, int64(0))
	assert.LessOrEqual(t, status.HeightFinalized, status.HeightPrevoted)

	require.NoError(t, sim.switchBranch(97, 3))
	assert.EqualValues(t, 97, manager.Status().MaxStoredHeight)
	for height := int64(98); height < 120; height++ {
		require.NoError(t, sim.next(height), "height %d", height)
	}
	assert.EqualValues(t, 119, manager.Status().StoreHeight)
}

func TestSimulationRunWithReorg(t *testing.T) {
	defer leaktest.Check(t)()

	conf := cfg.TestConfig().SetRoot(t.TempDir())
	manager, stop, err := newManager(conf)
	require.NoError(t, err)
	defer stop()

	sim := &simulation{manager: manager, proposers: proposerSet(4), gap: 4}
	require.NoError(t, sim.run(context.Background(), 200, 150, 2, 3))

	status := manager.Status()
	assert.EqualValues(t, 199, status.MaxStoredHeight)
	assert.EqualValues(t, 199, status.StoreHeight)
	assert.EqualValues(t, 3, sim.gap)
	assert.Zero(t, status.PendingEvidence)
}

func TestSimulationRunStopsOnCancel(t *testing.T) {
	conf := cfg.TestConfig().SetRoot(t.TempDir())
	manager, stop, err := newManager(conf)
	require.NoError(t, err)
	defer stop()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sim := &simulation{manager: manager, proposers: proposerSet(4), gap: 4}
	require.NoError(t, sim.run(ctx, 100, 0, 0, 4))
	assert.EqualValues(t, -1, manager.Status().MaxStoredHeight)
}
