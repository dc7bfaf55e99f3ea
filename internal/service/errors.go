package service

import (
	"errors"
)

// 服务层错误分类
// 认证失败与节点不存在必须是可区分的两种错误，便于运维定位是配置错误还是节点已下线
var (
	// ErrUnauthorized 密钥错误或缺失，不应自动重试
	ErrUnauthorized = errors.New("unauthorized: invalid node secret")

	// ErrNotFound 节点或订阅者不存在
	ErrNotFound = errors.New("not found")

	// ErrTransient 存储暂时不可用，由上报方负责下个周期重试
	ErrTransient = errors.New("transient storage error")

	// ErrNonMonotonic 计数器回退写入，来自异常或时钟漂移的 Agent
	ErrNonMonotonic = errors.New("non-monotonic counter update rejected")
)
