package sqlite

import (
	"path/filepath"
	"testing"
	"time"

	dbinit "github.com/cod3vil/niuss-sub001/db/init"
)

func newTestDB(t *testing.T) *SQLiteDB {
	t.Helper()
	db, err := NewSQLiteDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestNode(t *testing.T, db *SQLiteDB, name string) *dbinit.Node {
	t.Helper()
	node := &dbinit.Node{
		Name:           name,
		Host:           name + ".example.com",
		Port:           8388,
		Protocol:       "shadowsocks",
		Secret:         "secret-" + name,
		ProtocolConfig: `{"cipher":"aes-256-gcm"}`,
		Status:         "offline",
		IncludeInClash: true,
	}
	if err := db.CreateNode(node); err != nil {
		t.Fatalf("CreateNode: %v", err)
	}
	return node
}

func TestNodeCRUD(t *testing.T) {
	db := newTestDB(t)

	node := createTestNode(t, db, "hk-01")
	if node.ID == 0 {
		t.Fatal("CreateNode did not set ID")
	}

	got, err := db.GetNode(node.ID)
	if err != nil {
		t.Fatalf("GetNode: %v", err)
	}
	if got == nil {
		t.Fatal("GetNode returned nil")
	}
	if got.Name != "hk-01" || got.Secret != "secret-hk-01" {
		t.Errorf("got %+v", got)
	}
	if got.ConfigVersion != 1 {
		t.Errorf("initial config_version = %d, want 1", got.ConfigVersion)
	}

	missing, err := db.GetNode(9999)
	if err != nil {
		t.Fatalf("GetNode missing: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for missing node")
	}

	if err := db.DeleteNode(node.ID); err != nil {
		t.Fatalf("DeleteNode: %v", err)
	}
	if err := db.DeleteNode(node.ID); err == nil {
		t.Error("expected error deleting missing node")
	}
}

func TestUpdateNodeVersionBump(t *testing.T) {
	db := newTestDB(t)
	node := createTestNode(t, db, "hk-01")

	// 档案侧元数据变化不递增版本
	node.SortOrder = 5
	if err := db.UpdateNode(node, false); err != nil {
		t.Fatalf("UpdateNode: %v", err)
	}
	got, _ := db.GetNode(node.ID)
	if got.ConfigVersion != 1 {
		t.Errorf("config_version = %d, want 1", got.ConfigVersion)
	}

	// Agent相关字段变化递增版本
	node.Port = 9000
	if err := db.UpdateNode(node, true); err != nil {
		t.Fatalf("UpdateNode bump: %v", err)
	}
	got, _ = db.GetNode(node.ID)
	if got.ConfigVersion != 2 {
		t.Errorf("config_version = %d, want 2", got.ConfigVersion)
	}
	if got.Port != 9000 {
		t.Errorf("port = %d", got.Port)
	}

	// 密钥轮换必须随版本递增一并落盘
	node.Secret = "rotated-secret"
	if err := db.UpdateNode(node, true); err != nil {
		t.Fatalf("UpdateNode rotate: %v", err)
	}
	got, _ = db.GetNode(node.ID)
	if got.Secret != "rotated-secret" {
		t.Errorf("secret = %q, want rotated-secret", got.Secret)
	}
	if got.ConfigVersion != 3 {
		t.Errorf("config_version after rotation = %d, want 3", got.ConfigVersion)
	}
}

func TestHeartbeatLifecycle(t *testing.T) {
	db := newTestDB(t)
	node := createTestNode(t, db, "hk-01")

	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	// t=0 心跳，节点上线
	if err := db.TouchNodeHeartbeat(node.ID, base, 12); err != nil {
		t.Fatalf("TouchNodeHeartbeat: %v", err)
	}
	got, _ := db.GetNode(node.ID)
	if got.Status != "online" {
		t.Fatalf("status = %q, want online", got.Status)
	}
	if got.CurrentUsers != 12 {
		t.Errorf("current_users = %d", got.CurrentUsers)
	}

	// t=200 扫描，阈值180秒，没有新心跳则离线
	cutoff := base.Add(200 * time.Second).Add(-180 * time.Second)
	affected, err := db.MarkStaleNodesOffline(cutoff)
	if err != nil {
		t.Fatalf("MarkStaleNodesOffline: %v", err)
	}
	if affected != 1 {
		t.Fatalf("affected = %d, want 1", affected)
	}
	got, _ = db.GetNode(node.ID)
	if got.Status != "offline" {
		t.Fatalf("status = %q, want offline", got.Status)
	}

	// t=210 心跳恢复在线
	if err := db.TouchNodeHeartbeat(node.ID, base.Add(210*time.Second), 3); err != nil {
		t.Fatalf("TouchNodeHeartbeat: %v", err)
	}
	got, _ = db.GetNode(node.ID)
	if got.Status != "online" {
		t.Fatalf("status = %q, want online after recovery", got.Status)
	}

	// 再次扫描不影响刚恢复的节点
	affected, err = db.MarkStaleNodesOffline(cutoff)
	if err != nil {
		t.Fatalf("MarkStaleNodesOffline: %v", err)
	}
	if affected != 0 {
		t.Errorf("affected = %d, want 0", affected)
	}
}

func TestHeartbeatKeepsMaintenance(t *testing.T) {
	db := newTestDB(t)
	node := createTestNode(t, db, "hk-01")

	if err := db.SetNodeStatus(node.ID, "maintenance"); err != nil {
		t.Fatalf("SetNodeStatus: %v", err)
	}

	// 维护中的节点收到心跳不会被改回在线
	if err := db.TouchNodeHeartbeat(node.ID, time.Now(), 1); err != nil {
		t.Fatalf("TouchNodeHeartbeat: %v", err)
	}
	got, _ := db.GetNode(node.ID)
	if got.Status != "maintenance" {
		t.Errorf("status = %q, want maintenance", got.Status)
	}

	// 扫描也不影响维护状态
	if _, err := db.MarkStaleNodesOffline(time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("MarkStaleNodesOffline: %v", err)
	}
	got, _ = db.GetNode(node.ID)
	if got.Status != "maintenance" {
		t.Errorf("status after sweep = %q, want maintenance", got.Status)
	}
}

func TestNodeTrafficMonotonic(t *testing.T) {
	db := newTestDB(t)
	node := createTestNode(t, db, "hk-01")

	if err := db.AddNodeTraffic(node.ID, 1000, 2000); err != nil {
		t.Fatalf("AddNodeTraffic: %v", err)
	}
	if err := db.AddNodeTraffic(node.ID, 500, 0); err != nil {
		t.Fatalf("AddNodeTraffic: %v", err)
	}

	got, _ := db.GetNode(node.ID)
	if got.TotalUpload != 1500 || got.TotalDownload != 2000 {
		t.Errorf("traffic = %d/%d, want 1500/2000", got.TotalUpload, got.TotalDownload)
	}

	// 触发器拒绝回退写入
	if _, err := db.Get().Exec(`UPDATE nodes SET total_upload = 1 WHERE id = ?`, node.ID); err == nil {
		t.Error("expected trigger to reject counter decrease")
	}
	got, _ = db.GetNode(node.ID)
	if got.TotalUpload != 1500 {
		t.Errorf("total_upload after rejected write = %d, want 1500", got.TotalUpload)
	}
}

func TestApplyUsageDelta(t *testing.T) {
	db := newTestDB(t)
	node := createTestNode(t, db, "hk-01")

	quota := &dbinit.SubscriberQuota{
		SubscriberID: 42,
		PackageID:    1,
		Token:        "tok-a",
		TrafficQuota: 1_000_000,
		ExpiresAt:    time.Now().Add(24 * time.Hour),
		Status:       "active",
	}
	if err := db.CreateQuota(quota); err != nil {
		t.Fatalf("CreateQuota: %v", err)
	}

	if err := db.ApplyUsageDelta(node.ID, quota.ID, 1000, 2000); err != nil {
		t.Fatalf("ApplyUsageDelta: %v", err)
	}
	gotNode, _ := db.GetNode(node.ID)
	if gotNode.TotalUpload != 1000 || gotNode.TotalDownload != 2000 {
		t.Errorf("node traffic = %d/%d, want 1000/2000", gotNode.TotalUpload, gotNode.TotalDownload)
	}
	gotQuota, _ := db.GetQuota(quota.ID)
	if gotQuota.TrafficUsed != 3000 {
		t.Errorf("traffic_used = %d, want 3000", gotQuota.TrafficUsed)
	}

	// 配额侧失败时节点侧增量一并回滚，重传不会产生重复计数
	if err := db.ApplyUsageDelta(node.ID, 9999, 500, 500); err == nil {
		t.Fatal("expected error for missing quota")
	}
	gotNode, _ = db.GetNode(node.ID)
	if gotNode.TotalUpload != 1000 || gotNode.TotalDownload != 2000 {
		t.Errorf("node traffic after rollback = %d/%d, want 1000/2000",
			gotNode.TotalUpload, gotNode.TotalDownload)
	}
}

func TestListProfileNodesOrdering(t *testing.T) {
	db := newTestDB(t)

	a := createTestNode(t, db, "b-node")
	b := createTestNode(t, db, "a-node")
	c := createTestNode(t, db, "c-node")

	// c 排最前，a/b 同序靠名称排序
	c.SortOrder = -1
	if err := db.UpdateNode(c, false); err != nil {
		t.Fatalf("UpdateNode: %v", err)
	}

	// 排除出档案的节点不出现
	hidden := createTestNode(t, db, "hidden")
	hidden.IncludeInClash = false
	if err := db.UpdateNode(hidden, false); err != nil {
		t.Fatalf("UpdateNode: %v", err)
	}

	nodes, err := db.ListProfileNodes()
	if err != nil {
		t.Fatalf("ListProfileNodes: %v", err)
	}
	if len(nodes) != 3 {
		t.Fatalf("len = %d, want 3", len(nodes))
	}
	want := []string{"c-node", "a-node", "b-node"}
	for i, name := range want {
		if nodes[i].Name != name {
			t.Errorf("nodes[%d] = %q, want %q", i, nodes[i].Name, name)
		}
	}
	_ = a
	_ = b
}

func TestQuotaStore(t *testing.T) {
	db := newTestDB(t)

	quota := &dbinit.SubscriberQuota{
		SubscriberID: 42,
		PackageID:    1,
		Token:        "tok-abc",
		TrafficQuota: 1_000_000,
		ExpiresAt:    time.Now().Add(24 * time.Hour),
		Status:       "active",
	}
	if err := db.CreateQuota(quota); err != nil {
		t.Fatalf("CreateQuota: %v", err)
	}

	got, err := db.GetQuotaByToken("tok-abc")
	if err != nil {
		t.Fatalf("GetQuotaByToken: %v", err)
	}
	if got == nil || got.SubscriberID != 42 {
		t.Fatalf("got %+v", got)
	}

	missing, err := db.GetQuotaByToken("nope")
	if err != nil {
		t.Fatalf("GetQuotaByToken missing: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for unknown token")
	}

	if err := db.AddQuotaUsage(quota.ID, 400_000); err != nil {
		t.Fatalf("AddQuotaUsage: %v", err)
	}
	if err := db.AddQuotaUsage(quota.ID, 700_000); err != nil {
		t.Fatalf("AddQuotaUsage: %v", err)
	}

	got, _ = db.GetQuota(quota.ID)
	if got.TrafficUsed != 1_100_000 {
		t.Errorf("traffic_used = %d, want 1100000", got.TrafficUsed)
	}

	// 触发器拒绝已用流量回退
	if _, err := db.Get().Exec(`UPDATE subscriber_quotas SET traffic_used = 0 WHERE id = ?`, quota.ID); err == nil {
		t.Error("expected trigger to reject traffic_used decrease")
	}
}
