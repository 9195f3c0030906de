// Package stats 提供排班统计分析功能
package stats

import (
	"sort"
	"strings"
	"time"

	"github.com/0pancd04/rota-ai-desertation/pkg/careplan"
	"github.com/0pancd04/rota-ai-desertation/pkg/model"
)

const (
	// BaselineTravelMinutes 未优化时每次上门的假定路程
	BaselineTravelMinutes = 20
	// FutureMinutesPerPatient 未安排的服务对象预计还需的分钟数
	FutureMinutesPerPatient = 60
)

// Summary 排班统计结果
type Summary struct {
	TotalAssignments int `json:"total_assignments"`
	TotalEmployees   int `json:"total_employees"`
	TotalPatients    int `json:"total_patients"`

	TotalServiceMinutes int     `json:"total_service_minutes"`
	TotalTravelMinutes  int     `json:"total_travel_minutes"`
	AvgServiceMinutes   float64 `json:"avg_service_minutes"`
	AvgTravelMinutes    float64 `json:"avg_travel_minutes"`
	// 相对每次 20 分钟路程的节省，不小于 0
	TravelSavedMinutes int `json:"travel_saved_minutes"`

	UnassignedPatients    []string `json:"unassigned_patients"`
	FutureRequiredMinutes int      `json:"future_required_minutes"`

	// 需求满足度 (%)：每日按需求封顶后的上门分钟数 / 每日需求
	DemandSatisfaction float64 `json:"demand_satisfaction"`

	DailyCoverage   []DayCoverage             `json:"daily_coverage"`
	ServiceCoverage map[model.ServiceType]int `json:"service_coverage"` // 按服务类别的上门次数
	HourlyCoverage  map[int]int               `json:"hourly_coverage"`  // 按开始小时的上门次数 (0-23)

	Fairness *FairnessMetrics `json:"fairness"`
}

// DayCoverage 每日覆盖情况
type DayCoverage struct {
	Date           string  `json:"date"`
	Visits         int     `json:"visits"`
	StaffCount     int     `json:"staff_count"`
	PatientCount   int     `json:"patient_count"`
	ServiceMinutes int     `json:"service_minutes"`
	TravelMinutes  int     `json:"travel_minutes"`
	DemandMinutes  int     `json:"demand_minutes"`
	CoveredMinutes int     `json:"covered_minutes"`
	CoverageRate   float64 `json:"coverage_rate"`
}

// Filter 统计范围，零值表示不限
type Filter struct {
	From     time.Time      // 含当天
	To       time.Time      // 含当天
	Weekdays []time.Weekday // 仅统计这些星期
}

// ParseWeekday 解析星期名称，接受全称或不少于 3 个字母的前缀，不区分大小写
func ParseWeekday(name string) (time.Weekday, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for d := time.Sunday; d <= time.Saturday; d++ {
		full := strings.ToLower(d.String())
		if name == full || (len(name) >= 3 && strings.HasPrefix(full, name)) {
			return d, true
		}
	}
	return 0, false
}

// IsZero 是否不做任何过滤
func (f Filter) IsZero() bool {
	return f.From.IsZero() && f.To.IsZero() && len(f.Weekdays) == 0
}

// Match 检查记录是否在范围内
func (f Filter) Match(a *model.Assignment) bool {
	day := model.DayStart(a.StartTime)
	if !f.From.IsZero() && day.Before(model.DayStart(f.From)) {
		return false
	}
	if !f.To.IsZero() && day.After(model.DayStart(f.To)) {
		return false
	}
	if len(f.Weekdays) > 0 {
		for _, wd := range f.Weekdays {
			if a.StartTime.Weekday() == wd {
				return true
			}
		}
		return false
	}
	return true
}

// Apply 返回范围内的记录
func (f Filter) Apply(assignments []*model.Assignment) []*model.Assignment {
	if f.IsZero() {
		return assignments
	}
	result := make([]*model.Assignment, 0, len(assignments))
	for _, a := range assignments {
		if f.Match(a) {
			result = append(result, a)
		}
	}
	return result
}

// Calculator 统计计算器
type Calculator struct {
	estimator *careplan.Estimator
	fairness  *FairnessAnalyzer
}

// NewCalculator 创建统计计算器，estimator 为 nil 时使用默认服务时长
func NewCalculator(estimator *careplan.Estimator) *Calculator {
	if estimator == nil {
		estimator = careplan.NewEstimator()
	}
	return &Calculator{
		estimator: estimator,
		fairness:  NewFairnessAnalyzer(),
	}
}

// Compute 使用默认配置计算统计
func Compute(assignments []*model.Assignment, roster *model.Roster) *Summary {
	return NewCalculator(nil).Compute(assignments, roster, Filter{})
}

// Compute 计算排班统计
func (c *Calculator) Compute(assignments []*model.Assignment, roster *model.Roster, filter Filter) *Summary {
	if roster == nil {
		roster = &model.Roster{}
	}
	assignments = filter.Apply(assignments)

	s := &Summary{
		TotalAssignments:   len(assignments),
		TotalEmployees:     len(roster.Employees),
		TotalPatients:      len(roster.Patients),
		UnassignedPatients: []string{},
		ServiceCoverage:    make(map[model.ServiceType]int),
		HourlyCoverage:     make(map[int]int),
	}

	served := make(map[string]bool)
	for _, a := range assignments {
		s.TotalServiceMinutes += a.DurationMinutes
		s.TotalTravelMinutes += a.TravelMinutes
		served[a.PatientID] = true
		if a.ServiceType != "" {
			s.ServiceCoverage[a.ServiceType]++
		}
		s.HourlyCoverage[a.StartTime.Hour()]++
	}

	if n := len(assignments); n > 0 {
		s.AvgServiceMinutes = round2(float64(s.TotalServiceMinutes) / float64(n))
		s.AvgTravelMinutes = round2(float64(s.TotalTravelMinutes) / float64(n))
	}
	if saved := BaselineTravelMinutes*len(assignments) - s.TotalTravelMinutes; saved > 0 {
		s.TravelSavedMinutes = saved
	}

	for _, p := range roster.Patients {
		if !served[p.ID] {
			s.UnassignedPatients = append(s.UnassignedPatients, p.ID)
		}
	}
	s.FutureRequiredMinutes = len(s.UnassignedPatients) * FutureMinutesPerPatient

	s.DailyCoverage = c.dailyCoverage(assignments, roster.Patients)
	demand, covered := 0, 0
	for _, d := range s.DailyCoverage {
		demand += d.DemandMinutes
		covered += d.CoveredMinutes
	}
	if demand > 0 {
		s.DemandSatisfaction = round2(float64(covered) / float64(demand) * 100)
	}

	s.Fairness = c.fairness.Analyze(assignments, roster.Employees)
	return s
}

// dailyCoverage 按日期汇总，每名服务对象的上门分钟数以当日需求封顶
func (c *Calculator) dailyCoverage(assignments []*model.Assignment, patients []*model.Patient) []DayCoverage {
	type dayAcc struct {
		cov       DayCoverage
		staff     map[string]bool
		byPatient map[string]int
	}
	days := make(map[string]*dayAcc)

	for _, a := range assignments {
		date := a.Date()
		acc, ok := days[date]
		if !ok {
			acc = &dayAcc{
				cov:       DayCoverage{Date: date},
				staff:     make(map[string]bool),
				byPatient: make(map[string]int),
			}
			days[date] = acc
		}
		acc.cov.Visits++
		acc.cov.ServiceMinutes += a.DurationMinutes
		acc.cov.TravelMinutes += a.TravelMinutes
		acc.staff[a.EmployeeID] = true
		acc.byPatient[a.PatientID] += a.DurationMinutes
	}

	demand := make(map[string]int, len(patients))
	dailyDemand := 0
	for _, p := range patients {
		demand[p.ID] = c.estimator.DailyMinutes(p)
		dailyDemand += demand[p.ID]
	}

	result := make([]DayCoverage, 0, len(days))
	for _, acc := range days {
		cov := acc.cov
		cov.StaffCount = len(acc.staff)
		cov.PatientCount = len(acc.byPatient)
		cov.DemandMinutes = dailyDemand
		for id, minutes := range acc.byPatient {
			need, known := demand[id]
			if !known {
				continue
			}
			cov.CoveredMinutes += min(minutes, need)
		}
		if cov.DemandMinutes > 0 {
			cov.CoverageRate = round2(float64(cov.CoveredMinutes) / float64(cov.DemandMinutes) * 100)
		}
		result = append(result, cov)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Date < result[j].Date
	})
	return result
}
