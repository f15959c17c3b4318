package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/acudp/acudp"
	"github.com/temoto/acudp/log2"
)

func TestReadConfig(t *testing.T) {
	t.Parallel()

	type Case struct {
		name      string
		input     string
		check     func(testing.TB, *Config)
		expectErr string
	}
	cases := []Case{
		{"empty", "", func(t testing.TB, c *Config) {
			assert.Equal(t, DefaultHost, c.Server.Host)
			assert.Equal(t, acudp.ModeCarInfo, c.ServerMode())
			assert.Equal(t, acudp.DefaultNetworkTimeout, c.NetworkTimeout())
			assert.False(t, c.Tele.Enabled)
			assert.Equal(t, DefaultClientID, c.Tele.ClientID)
			assert.Equal(t, DefaultTopicPrefix, c.Tele.TopicPrefix)
			assert.Equal(t, DefaultMetricsListen, c.Metrics.Listen)
		}, ""},

		{"server",
			`server { host = "10.0.0.5" mode = "lap" network_timeout_sec = 7 log_debug = true }`,
			func(t testing.TB, c *Config) {
				assert.Equal(t, "10.0.0.5", c.Server.Host)
				assert.Equal(t, acudp.ModeLapTime, c.ServerMode())
				assert.Equal(t, 7*time.Second, c.NetworkTimeout())
				assert.True(t, c.Server.LogDebug)
			},
			"",
		},

		{"tele", `
tele {
	enable = true
	mqtt_broker = "tcp://broker:1883"
	client_id = "rig1"
	topic_prefix = "track/rig1"
	keepalive_sec = 15
	persist_path = "/tmp/outbox"
}
metrics { enable = true listen = "127.0.0.1:9200" }`,
			func(t testing.TB, c *Config) {
				assert.True(t, c.Tele.Enabled)
				assert.Equal(t, "tcp://broker:1883", c.Tele.MqttBroker)
				assert.Equal(t, "rig1", c.Tele.ClientID)
				assert.Equal(t, "track/rig1", c.Tele.TopicPrefix)
				assert.Equal(t, 15, c.Tele.KeepaliveSec)
				assert.Equal(t, "/tmp/outbox", c.Tele.PersistPath)
				assert.True(t, c.Metrics.Enabled)
				assert.Equal(t, "127.0.0.1:9200", c.Metrics.Listen)
			},
			"",
		},

		{"include-normalize", `
server { host = "a" }
include "./empty" {}`,
			nil, ""},

		{"include-optional", `
include "lap-mode" {}
include "non-exist" { optional = true }`,
			func(t testing.TB, c *Config) {
				assert.Equal(t, acudp.ModeLapTime, c.ServerMode())
			}, ""},

		{"include-overwrites", `
server { mode = "car" }
include "lap-mode" {}`,
			func(t testing.TB, c *Config) {
				assert.Equal(t, acudp.ModeLapTime, c.ServerMode())
			}, ""},

		{"error-syntax", `hello`, nil, "key 'hello' expected start of object"},
		{"error-include-loop", `include "include-loop" {}`, nil, "config include loop: from=include-loop include=include-loop"},
		{"error-include-required", `include "non-exist" {}`, nil, "config required name=non-exist"},
		{"error-mode", `server { mode = "telemetry" }`, nil, `connection type="telemetry" not valid`},
		{"error-tele-broker", `tele { enable = true }`, nil, "tele.mqtt_broker empty"},
	}
	mkCheck := func(c Case) func(*testing.T) {
		return func(t *testing.T) {
			log := log2.NewTest(t, log2.LDebug)
			fs := NewMockFullReader(map[string]string{
				"test-inline":  c.input,
				"empty":        "",
				"lap-mode":     `server{mode="lap"}`,
				"include-loop": `include "include-loop" {}`,
			})
			cfg, err := ReadConfig(log, fs, "test-inline")
			if c.expectErr == "" {
				if err != nil {
					t.Fatalf("error expected=nil actual='%v'", errors.ErrorStack(err))
				}
				if c.check != nil {
					c.check(t, cfg)
				}
			} else {
				require.Error(t, err)
				if !strings.Contains(err.Error(), c.expectErr) {
					t.Fatalf("error expected='%s' actual='%v'", c.expectErr, err)
				}
			}
		}
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, mkCheck(c))
	}
}

func TestReadConfigOs(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.hcl"), []byte(`
server { host = "sim.local" }
include "local.hcl" { optional = true }
include "metrics.hcl" {}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "metrics.hcl"), []byte(`metrics { enable = true }`), 0o644))

	fs, err := NewOsFullReader(".")
	require.NoError(t, err)
	cfg, err := ReadConfig(log2.NewTest(t, log2.LDebug), fs, filepath.Join(dir, "main.hcl"))
	require.NoError(t, err)
	assert.Equal(t, "sim.local", cfg.Server.Host)
	assert.True(t, cfg.Metrics.Enabled)
}
