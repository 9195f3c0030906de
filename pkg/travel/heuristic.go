package travel

import (
	"context"
	"math"

	"github.com/0pancd04/rota-ai-desertation/pkg/model"
)

// HeuristicProvider 启发式出行时间估算
//
// 地址为 "lat,lng" 坐标时按直线距离与出行速度估算，
// 否则使用出行方式的默认值。
type HeuristicProvider struct {
	defaults map[model.TransportMode]int     // 无坐标时的默认分钟数
	speeds   map[model.TransportMode]float64 // 公里/小时
	recorder LookupRecorder
}

// NewHeuristicProvider 创建启发式估算器
func NewHeuristicProvider() *HeuristicProvider {
	return &HeuristicProvider{
		defaults: map[model.TransportMode]int{
			model.TransportCar:           15,
			model.TransportPublicTransit: 25,
			model.TransportBicycle:       20,
			model.TransportWalking:       30,
		},
		speeds: map[model.TransportMode]float64{
			model.TransportCar:           30,
			model.TransportPublicTransit: 18,
			model.TransportBicycle:       14,
			model.TransportWalking:       4.8,
		},
	}
}

// WithRecorder 设置查询记录器
func (h *HeuristicProvider) WithRecorder(r LookupRecorder) *HeuristicProvider {
	h.recorder = r
	return h
}

// TravelTime 估算出行时间
func (h *HeuristicProvider) TravelTime(ctx context.Context, origin, destination string, mode model.TransportMode) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if model.SameAddress(origin, destination) {
		return 0, nil
	}
	if h.recorder != nil {
		h.recorder(SourceHeuristic)
	}
	return h.Estimate(origin, destination, mode), nil
}

// Estimate 同步估算（不含同地址判断）
func (h *HeuristicProvider) Estimate(origin, destination string, mode model.TransportMode) int {
	from, okFrom := model.ParseLocation(origin)
	to, okTo := model.ParseLocation(destination)
	if okFrom && okTo {
		speed, ok := h.speeds[mode]
		if !ok {
			speed = h.speeds[model.TransportCar]
		}
		minutes := int(math.Ceil(from.Distance(to) / speed * 60))
		return Clamp(minutes)
	}

	if d, ok := h.defaults[mode]; ok {
		return d
	}
	return h.defaults[model.TransportCar]
}
