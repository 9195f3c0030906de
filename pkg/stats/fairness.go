package stats

import (
	"math"
	"sort"

	"github.com/0pancd04/rota-ai-desertation/pkg/model"
)

// StandardDayMinutes 利用率的分母：8 小时工作日
const StandardDayMinutes = 8 * 60

// FairnessMetrics 员工工作量公平性指标
type FairnessMetrics struct {
	// 上门分钟数的基尼系数 (0=完全平均, 1=完全不均)
	VisitMinutesGini float64 `json:"visit_minutes_gini"`

	AvgVisitMinutes float64 `json:"avg_visit_minutes"`
	StdDevMinutes   float64 `json:"stddev_minutes"`
	MaxVisitMinutes int     `json:"max_visit_minutes"`
	MinVisitMinutes int     `json:"min_visit_minutes"`

	// 综合公平性评分 (0-100)
	OverallFairnessScore float64 `json:"overall_fairness_score"`

	Workloads []EmployeeWorkload `json:"workloads"`
}

// EmployeeWorkload 员工工作量
type EmployeeWorkload struct {
	EmployeeID    string  `json:"employee_id"`
	EmployeeName  string  `json:"employee_name"`
	Visits        int     `json:"visits"`
	VisitMinutes  int     `json:"visit_minutes"`
	TravelMinutes int     `json:"travel_minutes"`
	Hours         float64 `json:"hours"`
	DaysWorked    int     `json:"days_worked"`
	Utilization   float64 `json:"utilization"` // 上门时长占工作日 8 小时的百分比
}

// FairnessAnalyzer 公平性分析器
type FairnessAnalyzer struct {
	dayMinutes int
}

// NewFairnessAnalyzer 创建公平性分析器
func NewFairnessAnalyzer() *FairnessAnalyzer {
	return &FairnessAnalyzer{dayMinutes: StandardDayMinutes}
}

// Analyze 统计每名员工的工作量
// 名册中没有任何安排的员工也计入，工作量为 0
func (f *FairnessAnalyzer) Analyze(assignments []*model.Assignment, employees []*model.Employee) *FairnessMetrics {
	metrics := &FairnessMetrics{}

	workloads := f.collectWorkloads(assignments, employees)
	if len(workloads) == 0 {
		metrics.OverallFairnessScore = 100
		metrics.Workloads = []EmployeeWorkload{}
		return metrics
	}

	minutes := make([]float64, len(workloads))
	metrics.MinVisitMinutes = workloads[0].VisitMinutes
	for i, w := range workloads {
		minutes[i] = float64(w.VisitMinutes)
		if w.VisitMinutes > metrics.MaxVisitMinutes {
			metrics.MaxVisitMinutes = w.VisitMinutes
		}
		if w.VisitMinutes < metrics.MinVisitMinutes {
			metrics.MinVisitMinutes = w.VisitMinutes
		}
	}

	metrics.AvgVisitMinutes = mean(minutes)
	metrics.StdDevMinutes = stdDev(minutes, metrics.AvgVisitMinutes)
	metrics.VisitMinutesGini = calculateGini(minutes)
	metrics.OverallFairnessScore = overallScore(metrics.VisitMinutesGini, metrics.StdDevMinutes, metrics.AvgVisitMinutes)
	metrics.Workloads = workloads

	return metrics
}

func (f *FairnessAnalyzer) collectWorkloads(assignments []*model.Assignment, employees []*model.Employee) []EmployeeWorkload {
	byID := make(map[string]*EmployeeWorkload)
	order := make([]string, 0, len(employees))
	days := make(map[string]map[string]bool)

	touch := func(id, name string) *EmployeeWorkload {
		w, ok := byID[id]
		if !ok {
			w = &EmployeeWorkload{EmployeeID: id, EmployeeName: name}
			byID[id] = w
			order = append(order, id)
			days[id] = make(map[string]bool)
		}
		if w.EmployeeName == "" {
			w.EmployeeName = name
		}
		return w
	}

	for _, e := range employees {
		if e != nil {
			touch(e.ID, e.Name)
		}
	}
	for _, a := range assignments {
		w := touch(a.EmployeeID, a.EmployeeName)
		w.Visits++
		w.VisitMinutes += a.DurationMinutes
		w.TravelMinutes += a.TravelMinutes
		days[a.EmployeeID][a.Date()] = true
	}

	result := make([]EmployeeWorkload, 0, len(order))
	for _, id := range order {
		w := byID[id]
		w.DaysWorked = len(days[id])
		w.Hours = round2(float64(w.VisitMinutes) / 60)
		if w.DaysWorked > 0 && f.dayMinutes > 0 {
			w.Utilization = round2(float64(w.VisitMinutes) / float64(w.DaysWorked*f.dayMinutes) * 100)
		}
		result = append(result, *w)
	}

	// 按工作量排序，相同时保持名册顺序
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].VisitMinutes > result[j].VisitMinutes
	})
	return result
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stdDev(values []float64, avg float64) float64 {
	if len(values) == 0 {
		return 0
	}
	variance := 0.0
	for _, v := range values {
		variance += (v - avg) * (v - avg)
	}
	return math.Sqrt(variance / float64(len(values)))
}

// calculateGini 计算基尼系数
func calculateGini(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	sum := 0.0
	for _, v := range sorted {
		sum += v
	}
	if sum == 0 {
		return 0
	}

	gini := 0.0
	for i, v := range sorted {
		gini += (2*float64(i+1) - float64(n) - 1) * v
	}

	gini = gini / (float64(n) * sum)
	return math.Max(0, math.Min(1, gini))
}

// overallScore 综合公平性评分，基尼系数占 80%，变异系数占 20%
func overallScore(gini, sd, avg float64) float64 {
	giniScore := (1 - gini) * 100

	cvScore := 100.0
	if avg > 0 {
		cvScore = math.Max(0, 100-sd/avg*200)
	}

	score := 0.8*giniScore + 0.2*cvScore
	return round2(math.Max(0, math.Min(100, score)))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
