package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	assert := assert.New(t)

	// set up some defaults
	cfg := DefaultConfig()
	assert.NotNil(cfg.RPC)
	assert.NotNil(cfg.Light)
	assert.NotNil(cfg.Instrumentation)

	// check the root dir stuff...
	cfg.SetRoot("/foo")
	assert.Equal("/foo/data", cfg.DBDir())
	cfg.DBPath = "/opt/data"
	assert.Equal("/opt/data", cfg.DBDir())
}

func TestConfigValidateBasic(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.ValidateBasic())

	// tamper with update-period
	cfg.Light.UpdatePeriod = -10 * time.Second
	assert.Error(t, cfg.ValidateBasic())
}

func TestBaseConfigValidateBasic(t *testing.T) {
	cfg := TestBaseConfig()
	assert.NoError(t, cfg.ValidateBasic())

	// tamper with log format
	cfg.LogFormat = "invalid"
	assert.Error(t, cfg.ValidateBasic())

	cfg = TestBaseConfig()
	cfg.DBBackend = ""
	assert.Error(t, cfg.ValidateBasic())
}

func TestRPCConfigValidateBasic(t *testing.T) {
	testCases := []struct {
		name    string
		modify  func(*RPCConfig)
		wantErr bool
	}{
		{"default", func(*RPCConfig) {}, false},
		{"https", func(c *RPCConfig) { c.Remote = "https://node.example.com:443/v1" }, false},
		{"no scheme", func(c *RPCConfig) { c.Remote = "127.0.0.1:8080" }, true},
		{"tcp", func(c *RPCConfig) { c.Remote = "tcp://127.0.0.1:8080" }, true},
		{"negative timeout", func(c *RPCConfig) { c.Timeout = -1 }, true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			cfg := TestRPCConfig()
			tc.modify(cfg)
			if tc.wantErr {
				assert.Error(t, cfg.ValidateBasic())
			} else {
				assert.NoError(t, cfg.ValidateBasic())
			}
		})
	}
}

func TestLightConfigValidateBasic(t *testing.T) {
	const waypoint = "12:3:00112233445566778899aabbccddeeff00112233445566778899aabbccddeeff"

	testCases := []struct {
		name    string
		modify  func(*LightConfig)
		wantErr bool
	}{
		{"default", func(*LightConfig) {}, false},
		{"waypoint", func(c *LightConfig) { c.Waypoint = waypoint }, false},
		{"bad waypoint", func(c *LightConfig) { c.Waypoint = "12:00112233" }, true},
		{"negative workers", func(c *LightConfig) { c.ParallelVerification = -1 }, true},
		{"zero update period", func(c *LightConfig) { c.UpdatePeriod = 0 }, true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			cfg := TestLightConfig()
			tc.modify(cfg)
			if tc.wantErr {
				assert.Error(t, cfg.ValidateBasic())
			} else {
				assert.NoError(t, cfg.ValidateBasic())
			}
		})
	}

	cfg := TestLightConfig()
	cfg.Waypoint = waypoint
	w, err := cfg.ParseWaypoint()
	assert.NoError(t, err)
	assert.EqualValues(t, 12, w.Version)
	assert.EqualValues(t, 3, w.Epoch)
}

func TestInstrumentationConfigValidateBasic(t *testing.T) {
	cfg := TestInstrumentationConfig()
	assert.NoError(t, cfg.ValidateBasic())

	// tamper with maximum open connections
	cfg.MaxOpenConnections = -1
	assert.Error(t, cfg.ValidateBasic())
}
