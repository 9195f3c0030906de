// Package travel 提供员工出行时间估算
//
// 所有实现遵循同一约定：结果为 [1, 180] 分钟，同一地址为 0；
// 外部服务失败时降级为启发式估算，不会让排班失败。
// 只有 ctx 被取消时才返回错误。
package travel

import (
	"context"

	"github.com/0pancd04/rota-ai-desertation/pkg/model"
)

// 出行时间范围（分钟）
const (
	MinMinutes = 1
	MaxMinutes = model.MaxTravelMinutes
)

// 查询来源，用于指标统计
const (
	SourceMemo      = "memo"
	SourceRedis     = "redis"
	SourceAPI       = "api"
	SourceHeuristic = "heuristic"
	SourceTable     = "table"
)

// Provider 出行时间提供者
type Provider interface {
	TravelTime(ctx context.Context, origin, destination string, mode model.TransportMode) (int, error)
}

// ProviderFunc 函数适配器
type ProviderFunc func(ctx context.Context, origin, destination string, mode model.TransportMode) (int, error)

// TravelTime 实现 Provider
func (f ProviderFunc) TravelTime(ctx context.Context, origin, destination string, mode model.TransportMode) (int, error) {
	return f(ctx, origin, destination, mode)
}

// LookupRecorder 记录每次查询的来源
type LookupRecorder func(source string)

// Clamp 将分钟数限制在 [1, 180]
func Clamp(minutes int) int {
	if minutes < MinMinutes {
		return MinMinutes
	}
	if minutes > MaxMinutes {
		return MaxMinutes
	}
	return minutes
}

// cacheKey 缓存键：起点|终点|出行方式
func cacheKey(origin, destination string, mode model.TransportMode) string {
	return origin + "|" + destination + "|" + string(mode)
}
