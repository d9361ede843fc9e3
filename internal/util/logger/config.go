package logger

import (
	"log/slog"
	"os"
	"strings"
	"sync"
)

// 环境变量名
const (
	// EnvLevel 日志级别，格式: 子系统=级别,子系统=级别,默认级别
	EnvLevel = "LANPEER_LOG_LEVEL"

	// EnvFormat 输出格式: text 或 json
	EnvFormat = "LANPEER_LOG_FORMAT"

	// EnvAddSource 是否附带源码位置
	EnvAddSource = "LANPEER_LOG_ADD_SOURCE"
)

// Format 日志输出格式
type Format int

const (
	// FormatText 文本格式（默认）
	FormatText Format = iota
	// FormatJSON JSON 格式
	FormatJSON
)

// Config 日志配置
type Config struct {
	// DefaultLevel 未单独配置的子系统使用的级别
	DefaultLevel slog.Level

	// Subsystems 各子系统的级别
	Subsystems map[string]slog.Level

	Format    Format
	AddSource bool
}

// LevelFor 返回子系统的日志级别
func (c *Config) LevelFor(subsystem string) slog.Level {
	if lvl, ok := c.Subsystems[subsystem]; ok {
		return lvl
	}
	return c.DefaultLevel
}

var (
	envConfig     *Config
	envConfigOnce sync.Once
)

// ConfigFromEnv 解析环境变量，结果只计算一次
func ConfigFromEnv() *Config {
	envConfigOnce.Do(func() {
		envConfig = ParseConfig(os.Getenv(EnvLevel), os.Getenv(EnvFormat), os.Getenv(EnvAddSource))
	})
	return envConfig
}

// ParseConfig 从原始字符串构造配置
//
// 示例: ParseConfig("discovery=debug,connmgr=warn,info", "json", "")
func ParseConfig(levels, format, addSource string) *Config {
	cfg := &Config{
		DefaultLevel: slog.LevelInfo,
		Subsystems:   make(map[string]slog.Level),
		Format:       FormatText,
	}

	for _, part := range strings.Split(levels, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, lvlName, scoped := strings.Cut(part, "=")
		if !scoped {
			if lvl, ok := ParseLevel(name); ok {
				cfg.DefaultLevel = lvl
			}
			continue
		}
		if lvl, ok := ParseLevel(lvlName); ok {
			cfg.Subsystems[strings.TrimSpace(name)] = lvl
		}
	}

	if strings.EqualFold(strings.TrimSpace(format), "json") {
		cfg.Format = FormatJSON
	}

	switch strings.ToLower(strings.TrimSpace(addSource)) {
	case "1", "true", "yes", "on":
		cfg.AddSource = true
	}

	return cfg
}

// ParseLevel 解析级别名称
func ParseLevel(name string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

// resetEnvConfig 仅用于测试
func resetEnvConfig() {
	envConfigOnce = sync.Once{}
	envConfig = nil
}
