package config

import (
	"fmt"
	"net"
	"strings"
)

// ValidationError 配置校验错误
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("配置错误 [%s]: %s", e.Field, e.Message)
}

// ValidationErrors 多个配置校验错误
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}

	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// HasErrors 是否有错误
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator 配置校验器
type Validator struct {
	errors ValidationErrors
}

// NewValidator 创建校验器
func NewValidator() *Validator {
	return &Validator{errors: make(ValidationErrors, 0)}
}

func (v *Validator) addError(field, message string) {
	v.errors = append(v.errors, ValidationError{Field: field, Message: message})
}

// Errors 返回所有错误
func (v *Validator) Errors() ValidationErrors {
	return v.errors
}

// Validate 校验配置，返回 ValidationErrors 或 nil
func Validate(cfg *Config) error {
	if cfg == nil {
		return ValidationErrors{{Field: "config", Message: "nil"}}
	}

	v := NewValidator()

	if cfg.AppName == "" {
		v.addError("appName", "不能为空")
	}
	if cfg.InstanceName == "" {
		v.addError("instanceName", "不能为空")
	}
	if cfg.ListenPort < 0 || cfg.ListenPort > 65535 {
		v.addError("listenPort", fmt.Sprintf("超出范围: %d", cfg.ListenPort))
	}
	if cfg.HTTPAddr != "" {
		if _, _, err := net.SplitHostPort(cfg.HTTPAddr); err != nil {
			v.addError("httpAddr", err.Error())
		}
	}
	switch cfg.DuplicateMethod {
	case "lockfile", "pidfile", "port":
	default:
		v.addError("duplicateMethod", fmt.Sprintf("未知检测方式 %q", cfg.DuplicateMethod))
	}
	v.validateSpecificPort(cfg)

	v.validateDiscovery(&cfg.Discovery)
	v.validateTransport(&cfg.Transport)

	if cfg.Broadcast.Concurrency <= 0 {
		v.addError("broadcast.concurrency", "必须为正数")
	}

	if v.errors.HasErrors() {
		return v.errors
	}
	return nil
}

func (v *Validator) validateSpecificPort(cfg *Config) {
	if cfg.SpecificPort < 0 || cfg.SpecificPort > 65535 {
		v.addError("specificPort", fmt.Sprintf("超出范围: %d", cfg.SpecificPort))
		return
	}
	if !cfg.PreventDuplicates || cfg.DuplicateMethod != "port" {
		return
	}
	switch {
	case cfg.SpecificPort == 0 && cfg.ListenPort == 0:
		v.addError("specificPort", "port 检测方式需要 specificPort 或固定的 listenPort")
	case cfg.SpecificPort != 0 && cfg.ListenPort != 0 && cfg.SpecificPort != cfg.ListenPort:
		v.addError("specificPort", fmt.Sprintf("与 listenPort 不一致: %d != %d", cfg.SpecificPort, cfg.ListenPort))
	}
}

func (v *Validator) validateDiscovery(d *DiscoveryConfig) {
	if !strings.HasPrefix(d.ServiceType, "_") || !strings.Contains(d.ServiceType, "._") {
		v.addError("discovery.serviceType", fmt.Sprintf("格式应为 _name._tcp: %q", d.ServiceType))
	}
	if d.Domain == "" {
		v.addError("discovery.domain", "不能为空")
	}
	if d.QueryInterval <= 0 {
		v.addError("discovery.queryInterval", "必须为正数")
	}
	if d.QueryTimeout <= 0 {
		v.addError("discovery.queryTimeout", "必须为正数")
	}
	if d.PeerTTL <= d.QueryInterval {
		v.addError("discovery.peerTTL", "必须大于 queryInterval")
	}
}

func (v *Validator) validateTransport(t *TransportConfig) {
	if t.DialTimeout <= 0 {
		v.addError("transport.dialTimeout", "必须为正数")
	}
	if t.WriteTimeout < 0 {
		v.addError("transport.writeTimeout", "不能为负数")
	}
	if t.MaxMessageSize < 0 {
		v.addError("transport.maxMessageSize", "不能为负数")
	}
}
