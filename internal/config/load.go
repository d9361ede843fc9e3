package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"go.uber.org/multierr"
)

// Load 在默认配置之上叠加 JSON 文件，path 为空时只返回默认配置
func Load(path string) (*Config, error) {
	cfg := NewConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path) //nolint:gosec // G304: 用户指定的配置文件路径是预期行为
	if err != nil {
		return nil, fmt.Errorf("读取配置文件: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件 %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv 应用 LANPEER_ 环境变量覆盖
//
// 支持的环境变量：
//   - LANPEER_APP_NAME
//   - LANPEER_INSTANCE_NAME
//   - LANPEER_LISTEN_PORT
//   - LANPEER_HTTP_ADDR
//   - LANPEER_PREVENT_DUPLICATES
//   - LANPEER_DUPLICATE_METHOD
//   - LANPEER_SERVICE_TYPE
//   - LANPEER_INTERFACE
//
// 无法解析的值被忽略并汇总在返回的错误中。
func ApplyEnv(cfg *Config) error {
	var errs error

	if v := lookup(EnvAppName); v != "" {
		cfg.AppName = v
	}
	if v := lookup(EnvInstanceName); v != "" {
		cfg.InstanceName = v
	}
	if v := lookup(EnvListenPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, EnvListenPort, err))
		} else {
			cfg.ListenPort = port
		}
	}
	if v := lookup(EnvHTTPAddr); v != "" {
		cfg.HTTPAddr = v
	}
	if v := lookup(EnvPreventDuplicates); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, EnvPreventDuplicates, err))
		} else {
			cfg.PreventDuplicates = b
		}
	}
	if v := lookup(EnvDuplicateMethod); v != "" {
		cfg.DuplicateMethod = v
	}
	if v := lookup(EnvSpecificPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, EnvSpecificPort, err))
		} else {
			cfg.SpecificPort = port
		}
	}
	if v := lookup(EnvServiceType); v != "" {
		cfg.Discovery.ServiceType = v
	}
	if v := lookup(EnvInterface); v != "" {
		cfg.Discovery.Interface = v
	}

	return errs
}

func lookup(name string) string {
	return os.Getenv(EnvPrefix + name)
}
