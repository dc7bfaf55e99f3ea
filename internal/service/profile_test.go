package service

import (
	"strings"
	"testing"
	"time"

	"github.com/cod3vil/niuss-sub001/db"
	dbinit "github.com/cod3vil/niuss-sub001/db/init"

	"gopkg.in/yaml.v3"
)

func TestBuildProxyEntry(t *testing.T) {
	tests := []struct {
		name   string
		node   *dbinit.Node
		verify func(t *testing.T, entry map[string]interface{})
	}{
		{
			name: "shadowsocks密钥映射到password",
			node: &dbinit.Node{
				Name:           "hk-01",
				Host:           "hk1.example.com",
				Port:           8388,
				Protocol:       "shadowsocks",
				Secret:         "s3cret",
				ProtocolConfig: `{"cipher":"aes-256-gcm"}`,
			},
			verify: func(t *testing.T, entry map[string]interface{}) {
				if entry["type"] != "ss" {
					t.Errorf("type = %v, want ss", entry["type"])
				}
				if entry["password"] != "s3cret" {
					t.Errorf("password = %v", entry["password"])
				}
				if entry["server"] != "hk1.example.com" {
					t.Errorf("server = %v", entry["server"])
				}
				if entry["cipher"] != "aes-256-gcm" {
					t.Errorf("cipher = %v", entry["cipher"])
				}
			},
		},
		{
			name: "vmess密钥映射到uuid",
			node: &dbinit.Node{
				Name:     "jp-01",
				Host:     "jp1.example.com",
				Port:     443,
				Protocol: "vmess",
				Secret:   "aaaa-bbbb",
			},
			verify: func(t *testing.T, entry map[string]interface{}) {
				if entry["type"] != "vmess" {
					t.Errorf("type = %v", entry["type"])
				}
				if entry["uuid"] != "aaaa-bbbb" {
					t.Errorf("uuid = %v", entry["uuid"])
				}
				if _, ok := entry["password"]; ok {
					t.Error("vmess entry should not carry password")
				}
			},
		},
		{
			name: "配置里的同名密钥被注册表覆盖",
			node: &dbinit.Node{
				Name:           "sg-01",
				Host:           "sg1.example.com",
				Port:           443,
				Protocol:       "trojan",
				Secret:         "registry-secret",
				ProtocolConfig: `{"password":"operator-typo","sni":"sg1.example.com"}`,
			},
			verify: func(t *testing.T, entry map[string]interface{}) {
				if entry["password"] != "registry-secret" {
					t.Errorf("password = %v, want registry-secret", entry["password"])
				}
				if entry["sni"] != "sg1.example.com" {
					t.Errorf("sni = %v", entry["sni"])
				}
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			entry, err := buildProxyEntry(tt.node)
			if err != nil {
				t.Fatalf("buildProxyEntry: %v", err)
			}
			tt.verify(t, entry)
		})
	}
}

func TestBuildProxyEntryUnsupportedProtocol(t *testing.T) {
	node := &dbinit.Node{
		Name:     "bad-01",
		Host:     "bad.example.com",
		Port:     1080,
		Protocol: "socks5",
		Secret:   "x",
	}
	if _, err := buildProxyEntry(node); err == nil {
		t.Error("expected error for unsupported protocol")
	}
}

func TestBuildProxyGroups(t *testing.T) {
	allNames := []string{"hk-01", "jp-01"}
	groups := []*dbinit.ProxyGroup{
		{Name: "PROXY", Type: "select", Proxies: ""},
		{Name: "JP", Type: "url-test", Proxies: `["jp-01"]`},
	}

	out := buildProxyGroups(groups, allNames)
	if len(out) != 2 {
		t.Fatalf("groups = %d, want 2", len(out))
	}

	// 空成员列表展开为全部代理
	proxy := out[0]["proxies"].([]string)
	if len(proxy) != 2 || proxy[0] != "hk-01" || proxy[1] != "jp-01" {
		t.Errorf("PROXY members = %v", proxy)
	}

	jp := out[1]["proxies"].([]string)
	if len(jp) != 1 || jp[0] != "jp-01" {
		t.Errorf("JP members = %v", jp)
	}
}

// 空节点集的档案仍然包含三个顶级段，proxies 是空数组不是缺键
func TestEmptyDocumentShape(t *testing.T) {
	doc := &clashDocument{
		Proxies:     make([]map[string]interface{}, 0),
		ProxyGroups: make([]map[string]interface{}, 0),
		Rules:       make([]string, 0),
	}

	out, err := yaml.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	text := string(out)
	for _, key := range []string{"proxies: []", "proxy-groups: []", "rules: []"} {
		if !strings.Contains(text, key) {
			t.Errorf("document missing %q:\n%s", key, text)
		}
	}
}

// 相同输入渲染出完全相同的文档
func TestDocumentDeterministic(t *testing.T) {
	node := &dbinit.Node{
		Name:           "hk-01",
		Host:           "hk1.example.com",
		Port:           8388,
		Protocol:       "shadowsocks",
		Secret:         "s3cret",
		ProtocolConfig: `{"cipher":"aes-256-gcm","udp":true}`,
	}

	render := func() string {
		entry, err := buildProxyEntry(node)
		if err != nil {
			t.Fatalf("buildProxyEntry: %v", err)
		}
		doc := &clashDocument{
			Proxies:     []map[string]interface{}{entry},
			ProxyGroups: make([]map[string]interface{}, 0),
			Rules:       []string{"MATCH,PROXY"},
		}
		out, err := yaml.Marshal(doc)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		return string(out)
	}

	first := render()
	for i := 0; i < 10; i++ {
		if got := render(); got != first {
			t.Fatalf("render %d differs:\n%s\nvs\n%s", i, got, first)
		}
	}
}

func seedProfileNode(t *testing.T, manager *db.Manager, name string) *dbinit.Node {
	t.Helper()
	node := &dbinit.Node{
		Name:           name,
		Host:           name + ".example.com",
		Port:           8388,
		Protocol:       "shadowsocks",
		Secret:         "s3cret",
		ProtocolConfig: `{"cipher":"aes-256-gcm"}`,
		Status:         "online",
		IncludeInClash: true,
	}
	if err := manager.DB.SQLite.CreateNode(node); err != nil {
		t.Fatalf("CreateNode: %v", err)
	}
	return node
}

// 管理端变更节点后清空缓存，下一次请求立即拿到新文档而不等 TTL
func TestInvalidateAllRefreshesDocument(t *testing.T) {
	manager := newTestManager(t)
	svc := NewProfileService(manager, time.Hour)

	seedProfileNode(t, manager, "hk-01")
	quota := seedQuota(t, manager, 9, 1<<30)

	first, err := svc.GetProfile(quota.Token)
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if !strings.Contains(string(first), "hk-01") {
		t.Fatalf("document missing hk-01:\n%s", first)
	}

	seedProfileNode(t, manager, "jp-01")

	// TTL 未到，仍然命中旧文档
	cached, err := svc.GetProfile(quota.Token)
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if strings.Contains(string(cached), "jp-01") {
		t.Fatal("cached document should not see jp-01 yet")
	}

	svc.InvalidateAll()

	fresh, err := svc.GetProfile(quota.Token)
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if !strings.Contains(string(fresh), "jp-01") {
		t.Fatalf("document missing jp-01 after invalidation:\n%s", fresh)
	}
}
