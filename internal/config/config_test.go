package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Valid(t *testing.T) {
	cfg := NewConfig()
	require.NoError(t, Validate(cfg))
	assert.Regexp(t, regexp.MustCompile(`^lanpeer-[0-9a-f]{8}$`), cfg.InstanceName)
	assert.NotEqual(t, cfg.InstanceName, NewConfig().InstanceName)
}

func TestValidate_CollectsErrors(t *testing.T) {
	cfg := NewConfig()
	cfg.ListenPort = 70000
	cfg.DuplicateMethod = "flock"
	cfg.Discovery.PeerTTL = cfg.Discovery.QueryInterval
	cfg.Broadcast.Concurrency = 0

	err := Validate(cfg)
	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs))

	fields := make([]string, 0, len(verrs))
	for _, e := range verrs {
		fields = append(fields, e.Field)
	}
	assert.ElementsMatch(t, []string{"listenPort", "duplicateMethod", "discovery.peerTTL", "broadcast.concurrency"}, fields)
	assert.Contains(t, err.Error(), "listenPort")
}

func TestValidate_SpecificPort(t *testing.T) {
	tests := []struct {
		name         string
		method       string
		prevent      bool
		listenPort   int
		specificPort int
		wantErr      bool
	}{
		{"port 方式且未指定端口", "port", true, 0, 0, true},
		{"port 方式指定 specificPort", "port", true, 0, 4300, false},
		{"port 方式使用固定 listenPort", "port", true, 4300, 0, false},
		{"两个端口一致", "port", true, 4300, 4300, false},
		{"两个端口不一致", "port", true, 4300, 4301, true},
		{"未启用保护时不检查", "port", false, 0, 0, false},
		{"lockfile 不需要端口", "lockfile", true, 0, 0, false},
		{"超出范围", "lockfile", false, 0, 70000, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			cfg.DuplicateMethod = tt.method
			cfg.PreventDuplicates = tt.prevent
			cfg.ListenPort = tt.listenPort
			cfg.SpecificPort = tt.specificPort

			err := Validate(cfg)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var verrs ValidationErrors
			require.True(t, errors.As(err, &verrs))
			require.Len(t, verrs, 1)
			assert.Equal(t, "specificPort", verrs[0].Field)
		})
	}
}

func TestDuration_JSON(t *testing.T) {
	var d Duration
	require.NoError(t, json.Unmarshal([]byte(`"1m30s"`), &d))
	assert.Equal(t, 90*time.Second, d.Duration())

	require.NoError(t, json.Unmarshal([]byte(`1000`), &d))
	assert.Equal(t, time.Microsecond, d.Duration())

	assert.Error(t, json.Unmarshal([]byte(`"soon"`), &d))
	assert.Error(t, json.Unmarshal([]byte(`true`), &d))

	out, err := json.Marshal(Duration(2 * time.Second))
	require.NoError(t, err)
	assert.Equal(t, `"2s"`, string(out))
}

func TestLoad(t *testing.T) {
	t.Run("空路径返回默认值", func(t *testing.T) {
		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, DefaultAppName, cfg.AppName)
	})

	t.Run("文件覆盖部分字段", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "lanpeer.json")
		require.NoError(t, os.WriteFile(path, []byte(`{
			"instanceName": "kitchen",
			"listenPort": 4100,
			"discovery": {"queryInterval": "2s", "peerTTL": "9s"}
		}`), 0o600))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "kitchen", cfg.InstanceName)
		assert.Equal(t, 4100, cfg.ListenPort)
		assert.Equal(t, 2*time.Second, cfg.Discovery.QueryInterval.Duration())
		assert.Equal(t, DefaultServiceType, cfg.Discovery.ServiceType)
		assert.Equal(t, DefaultTransportConfig(), cfg.Transport)
	})

	t.Run("文件不存在", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("无效 JSON", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.json")
		require.NoError(t, os.WriteFile(path, []byte(`{`), 0o600))
		_, err := Load(path)
		assert.Error(t, err)
	})
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("LANPEER_INSTANCE_NAME", "den")
	t.Setenv("LANPEER_LISTEN_PORT", "4200")
	t.Setenv("LANPEER_PREVENT_DUPLICATES", "true")
	t.Setenv("LANPEER_DUPLICATE_METHOD", "pidfile")
	t.Setenv("LANPEER_SERVICE_TYPE", "_timers._tcp")
	t.Setenv("LANPEER_SPECIFIC_PORT", "4300")

	cfg := NewConfig()
	require.NoError(t, ApplyEnv(cfg))
	assert.Equal(t, "den", cfg.InstanceName)
	assert.Equal(t, 4200, cfg.ListenPort)
	assert.True(t, cfg.PreventDuplicates)
	assert.Equal(t, "pidfile", cfg.DuplicateMethod)
	assert.Equal(t, "_timers._tcp", cfg.Discovery.ServiceType)
	assert.Equal(t, 4300, cfg.SpecificPort)

	t.Setenv("LANPEER_LISTEN_PORT", "many")
	t.Setenv("LANPEER_PREVENT_DUPLICATES", "maybe")
	cfg = NewConfig()
	err := ApplyEnv(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LANPEER_LISTEN_PORT")
	assert.Contains(t, err.Error(), "LANPEER_PREVENT_DUPLICATES")
	assert.Equal(t, 0, cfg.ListenPort)
}
