package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	assert := assert.New(t)

	// set up some defaults
	cfg := DefaultConfig()
	assert.NotNil(cfg.BFT)
	assert.NotNil(cfg.Store)
	assert.NotNil(cfg.Evidence)
	assert.NotNil(cfg.Instrumentation)

	// check the root dir stuff...
	cfg.SetRoot("/foo")
	cfg.DBPath = "/opt/data"

	assert.Equal("/opt/data", cfg.DBDir())

	cfg.DBPath = "data"
	assert.Equal(filepath.Join("/foo", "data"), cfg.DBDir())
}

func TestConfigValidateBasic(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.ValidateBasic())
	assert.NoError(t, TestConfig().ValidateBasic())

	// tamper with vote offset
	cfg.BFT.VoteOffset = cfg.BFT.MaxStoredHeaders
	err := cfg.ValidateBasic()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[bft]")

	cfg = DefaultConfig()
	cfg.Store.RetainHeaders = cfg.BFT.MaxStoredHeaders - 1
	err = cfg.ValidateBasic()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[store]")

	cfg = DefaultConfig()
	cfg.LogFormat = "yaml"
	assert.Error(t, cfg.ValidateBasic())
}

func TestDefaultBFTConfig(t *testing.T) {
	cfg := DefaultBFTConfig()
	assert.EqualValues(t, 505, cfg.MaxStoredHeaders)
	assert.EqualValues(t, 302, cfg.VoteOffset)
	assert.EqualValues(t, 68, cfg.PrevoteThreshold)
	assert.EqualValues(t, 68, cfg.PrecommitThreshold)
	assert.EqualValues(t, 202, cfg.MaxRevertDepth())
}

func TestThresholdForActiveSet(t *testing.T) {
	testCases := []struct {
		n, threshold int64
	}{
		{1, 1},
		{3, 3},
		{4, 3},
		{100, 67},
		{101, 68},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.threshold, ThresholdForActiveSet(tc.n), "n=%d", tc.n)
	}
}

func TestBFTConfigValidateBasic(t *testing.T) {
	testCases := []struct {
		name     string
		malleate func(*BFTConfig)
		expErr   bool
	}{
		{"default", func(*BFTConfig) {}, false},
		{"zero window", func(c *BFTConfig) { c.MaxStoredHeaders = 0 }, true},
		{"zero offset", func(c *BFTConfig) { c.VoteOffset = 0 }, true},
		{"offset fills window", func(c *BFTConfig) { c.VoteOffset = c.MaxStoredHeaders }, true},
		{"offset just below window", func(c *BFTConfig) { c.VoteOffset = c.MaxStoredHeaders - 1 }, false},
		{"zero prevote threshold", func(c *BFTConfig) { c.PrevoteThreshold = 0 }, true},
		{"negative precommit threshold", func(c *BFTConfig) { c.PrecommitThreshold = -1 }, true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultBFTConfig()
			tc.malleate(cfg)
			if tc.expErr {
				assert.Error(t, cfg.ValidateBasic())
			} else {
				assert.NoError(t, cfg.ValidateBasic())
			}
		})
	}
}

func TestEvidenceConfigValidateBasic(t *testing.T) {
	cfg := TestEvidenceConfig()
	assert.NoError(t, cfg.ValidateBasic())

	fieldsToTest := []func(*EvidenceConfig){
		func(c *EvidenceConfig) { c.MaxPending = 0 },
		func(c *EvidenceConfig) { c.SeenCacheSize = -1 },
		func(c *EvidenceConfig) { c.MaxAgeHeights = 0 },
	}
	for _, malleate := range fieldsToTest {
		cfg := TestEvidenceConfig()
		malleate(cfg)
		assert.Error(t, cfg.ValidateBasic())
	}
}

func TestInstrumentationConfigValidateBasic(t *testing.T) {
	cfg := TestInstrumentationConfig()
	cfg.Prometheus = true
	assert.NoError(t, cfg.ValidateBasic())

	cfg.PrometheusListenAddr = ""
	assert.Error(t, cfg.ValidateBasic())
}
