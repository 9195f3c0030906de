// Package careplan 估算服务对象每日护理需求
package careplan

import (
	"sync"

	"github.com/0pancd04/rota-ai-desertation/pkg/model"
)

// 需求估算常量（分钟）
const (
	MinDailyMinutes     = 15 // 按周时长折算时的每日下限
	DefaultDailyMinutes = 60 // 按服务项目估算时的每日下限
)

// Estimator 护理需求估算器
type Estimator struct {
	// 服务类别对应的单次上门默认时长（分钟）
	durations map[model.ServiceType]int
}

// NewEstimator 创建需求估算器
func NewEstimator() *Estimator {
	return &Estimator{
		durations: map[model.ServiceType]int{
			model.ServiceMedicine:      30,
			model.ServicePersonalCare:  45,
			model.ServiceExercise:      30,
			model.ServiceCompanionship: 60,
		},
	}
}

// WithDuration 覆盖某服务类别的默认时长
func (e *Estimator) WithDuration(service model.ServiceType, minutes int) *Estimator {
	if minutes > 0 {
		e.durations[service] = minutes
	}
	return e
}

// DefaultDuration 返回服务类别的单次默认时长
func (e *Estimator) DefaultDuration(service model.ServiceType) int {
	if d, ok := e.durations[service]; ok {
		return d
	}
	return e.durations[model.ServicePersonalCare]
}

// DailyMinutes 估算服务对象每日需要的护理分钟数
//
// 提供周时长时按 周时长*60/7 折算（整除），下限 15 分钟；
// 否则累加各服务项目默认时长，下限 60 分钟，未列出项目时为 60 分钟。
func (e *Estimator) DailyMinutes(p *model.Patient) int {
	if p.WeeklyHours > 0 {
		return max(MinDailyMinutes, p.WeeklyHours*60/7)
	}

	services := p.Services()
	if len(services) == 0 {
		return DefaultDailyMinutes
	}

	total := 0
	for _, s := range services {
		total += e.DefaultDuration(s)
	}
	return max(DefaultDailyMinutes, total)
}

// WeeklyMinutes 估算每周护理分钟数
func (e *Estimator) WeeklyMinutes(p *model.Patient) int {
	return e.DailyMinutes(p) * 7
}

// VisitMinutes 单次上门时长：主服务默认时长与剩余需求取小
func (e *Estimator) VisitMinutes(p *model.Patient, remaining int) int {
	return min(e.DefaultDuration(p.PrimaryService()), remaining)
}

// NewDayPool 创建当日需求池
func (e *Estimator) NewDayPool(patients []*model.Patient) *DemandPool {
	pool := &DemandPool{remaining: make(map[string]int, len(patients))}
	for _, p := range patients {
		pool.remaining[p.ID] = e.DailyMinutes(p)
	}
	return pool
}

// DemandPool 当日剩余需求（分钟），每日重置，日内只减不增
type DemandPool struct {
	remaining map[string]int
	mu        sync.RWMutex
}

// Remaining 返回服务对象的剩余需求
func (d *DemandPool) Remaining(patientID string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.remaining[patientID]
}

// Consume 扣减需求，最低为 0，返回扣减后的剩余值
func (d *DemandPool) Consume(patientID string, minutes int) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	left := max(0, d.remaining[patientID]-max(0, minutes))
	d.remaining[patientID] = left
	return left
}

// Total 返回全部剩余需求
func (d *DemandPool) Total() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	total := 0
	for _, v := range d.remaining {
		total += v
	}
	return total
}

// Unmet 返回仍有剩余需求的服务对象及其剩余分钟
func (d *DemandPool) Unmet() map[string]int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string]int)
	for id, v := range d.remaining {
		if v > 0 {
			out[id] = v
		}
	}
	return out
}
