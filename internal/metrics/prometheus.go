package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// 节点指标
	NodesOnline = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "niuss_nodes_online",
			Help: "在线节点数量",
		},
	)

	// 心跳指标
	HeartbeatsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "niuss_heartbeats_total",
			Help: "心跳处理总数",
		},
		[]string{"result"},
	)

	// 流量指标
	TrafficBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "niuss_traffic_bytes_total",
			Help: "聚合流量（字节）",
		},
		[]string{"direction"},
	)

	// 上报指标
	UsageReportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "niuss_usage_reports_total",
			Help: "流量上报处理总数",
		},
		[]string{"result"},
	)

	// 配额耗尽指标
	QuotasExhausted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "niuss_quotas_exhausted_total",
			Help: "配额耗尽事件总数",
		},
	)

	// 档案生成指标
	ProfileGenerations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "niuss_profile_generations_total",
			Help: "订阅档案生成总数",
		},
		[]string{"cache"},
	)

	// WebSocket连接数
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "niuss_websocket_connections",
			Help: "Agent WebSocket连接数",
		},
	)
)
