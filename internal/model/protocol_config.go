package model

import (
	"encoding/json"
)

// ProtocolConfig 按协议区分的已知字段 + 开放的残余字段
// 已知字段保证类型安全，未知字段原样保留并透传到生成的档案条目中
type ProtocolConfig struct {
	// shadowsocks
	Cipher string `json:"cipher,omitempty"`

	// vmess
	AlterID int    `json:"alterId,omitempty"`
	Network string `json:"network,omitempty"`

	// trojan / hysteria2 / vless 共用
	SNI            string `json:"sni,omitempty"`
	SkipCertVerify bool   `json:"skip-cert-verify,omitempty"`

	// vless
	Flow string `json:"flow,omitempty"`

	// hysteria2
	Obfs         string `json:"obfs,omitempty"`
	ObfsPassword string `json:"obfs-password,omitempty"`

	// 未识别的字段
	Extra map[string]interface{} `json:"-"`
}

// knownConfigKeys 已建模的字段名集合
var knownConfigKeys = map[string]bool{
	"cipher":           true,
	"alterId":          true,
	"network":          true,
	"sni":              true,
	"skip-cert-verify": true,
	"flow":             true,
	"obfs":             true,
	"obfs-password":    true,
}

// ParseProtocolConfig 解析存储的 JSON 配置
// 空字符串视为空配置
func ParseProtocolConfig(raw string) (*ProtocolConfig, error) {
	cfg := &ProtocolConfig{}
	if raw == "" {
		return cfg, nil
	}

	if err := json.Unmarshal([]byte(raw), cfg); err != nil {
		return nil, err
	}

	// 二次解析，收集未建模的字段
	var all map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &all); err != nil {
		return nil, err
	}
	for k, v := range all {
		if !knownConfigKeys[k] {
			if cfg.Extra == nil {
				cfg.Extra = make(map[string]interface{})
			}
			cfg.Extra[k] = v
		}
	}

	return cfg, nil
}

// Flatten 展开为单层键值表，已知字段在前，残余字段覆盖不了已知字段
func (c *ProtocolConfig) Flatten() map[string]interface{} {
	out := make(map[string]interface{})

	for k, v := range c.Extra {
		out[k] = v
	}

	if c.Cipher != "" {
		out["cipher"] = c.Cipher
	}
	if c.AlterID != 0 {
		out["alterId"] = c.AlterID
	}
	if c.Network != "" {
		out["network"] = c.Network
	}
	if c.SNI != "" {
		out["sni"] = c.SNI
	}
	if c.SkipCertVerify {
		out["skip-cert-verify"] = true
	}
	if c.Flow != "" {
		out["flow"] = c.Flow
	}
	if c.Obfs != "" {
		out["obfs"] = c.Obfs
	}
	if c.ObfsPassword != "" {
		out["obfs-password"] = c.ObfsPassword
	}

	return out
}
