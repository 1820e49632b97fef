package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfigDefaults(t *testing.T) {
	c, err := ParseConfig([]byte("remote:\n  user-id: user-1\n  base-url: https://notes.example.com\n"))
	require.NoError(t, err)

	assert.Equal(t, RemoteTypeHTTP, c.Remote.Type)
	assert.Equal(t, "user-1", c.Remote.UserID)
	assert.Equal(t, "sqlite", c.Database.Type)

	tc := c.GetTaskConfig()
	assert.Equal(t, 30*time.Second, tc.SyncInterval)
	assert.Equal(t, 2*time.Second, tc.StartupDelay)
	assert.Equal(t, "@every 10m", tc.PurgeSchedule)

	sc := c.GetSyncServiceConfig()
	assert.Equal(t, 3, sc.RetryAttempts)
	assert.Equal(t, time.Second, sc.RetryInitialDelay)
	assert.Equal(t, 2.0, sc.RetryMultiplier)
	assert.Equal(t, 30*24*time.Hour, sc.Retention)

	nc := c.GetNetstatusConfig()
	assert.Equal(t, time.Second, nc.SettleDelay)
	assert.Equal(t, 10*time.Second, nc.Interval)

	hc := c.GetHTTPRemoteConfig("device-1")
	assert.Equal(t, "device-1", hc.DeviceID)
	assert.Equal(t, 15*time.Second, hc.Timeout)
}

func TestParseConfigOverrides(t *testing.T) {
	c, err := ParseConfig([]byte(`
sync:
  interval: "0"
  retention: 7d
  retry-attempts: 5
  purge-schedule: "0 3 * * *"
realtime:
  url: wss://notes.example.com/ws
remote:
  token: secret
`))
	require.NoError(t, err)

	assert.Zero(t, c.GetTaskConfig().SyncInterval, "0 disables the periodic sync")
	assert.Equal(t, 7*24*time.Hour, c.GetSyncServiceConfig().Retention)
	assert.Equal(t, 5, c.GetSyncServiceConfig().RetryAttempts)

	rc := c.GetRealtimeConfig()
	assert.Equal(t, "wss://notes.example.com/ws", rc.URL)
	assert.Equal(t, "secret", rc.Token)
	assert.Equal(t, time.Minute, rc.ReconnectMax)
}

func TestParseConfigRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"remote type":    "remote:\n  type: carrier-pigeon\n",
		"duration":       "sync:\n  interval: soon\n",
		"cron":           "sync:\n  purge-schedule: whenever\n",
		"shared sqlite":  "remote:\n  type: db\n",
		"bad yaml":       "sync: [",
		"retry attempts": "sync:\n  retry-attempts: -1\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseConfig([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigAndSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  lang: zh_cn\n"), 0o644))

	c, realpath, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, path, realpath)
	assert.Equal(t, "zh_cn", c.Server.Lang)

	c.Remote.UserID = "user-9"
	require.NoError(t, c.Save())

	again, _, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "user-9", again.Remote.UserID)
	assert.Equal(t, "zh_cn", again.Server.Lang)

	_, _, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
