package validator

import (
	"fmt"
	"sort"

	"github.com/0pancd04/rota-ai-desertation/pkg/dispatcher/constraint"
	"github.com/0pancd04/rota-ai-desertation/pkg/model"
)

// ConflictType 冲突类型
type ConflictType string

const (
	ConflictOverlap          ConflictType = "overlap"           // 时间重叠
	ConflictRepeatVisit      ConflictType = "repeat_visit"      // 同日重复上门
	ConflictEligibility      ConflictType = "eligibility"       // 资质或语言不符
	ConflictVisitCap         ConflictType = "visit_cap"         // 超过每日上门上限
	ConflictShortVisit       ConflictType = "short_visit"       // 截断后时长不足
	ConflictOutsideShift     ConflictType = "outside_shift"     // 超出班次
	ConflictTravelRange      ConflictType = "travel_range"      // 路程时间越界
	ConflictMissingReference ConflictType = "missing_reference" // 名册中不存在
)

// Conflict 冲突信息
type Conflict struct {
	Type        ConflictType `json:"type"`
	Severity    string       `json:"severity"` // error/warning
	EmployeeID  string       `json:"employee_id"`
	PatientID   string       `json:"patient_id,omitempty"`
	Date        string       `json:"date"`
	Message     string       `json:"message"`
	Assignments []int64      `json:"assignments,omitempty"` // 相关的分配ID
}

// ConflictDetector 排班表冲突检测器
type ConflictDetector struct {
	config *DetectorConfig
	filter *constraint.Filter
}

// DetectorConfig 检测器配置
type DetectorConfig struct {
	MinVisitMinutes int  // 截断上门的最短时长
	CheckShift      bool // 是否检查班次范围（重新分配的兜底候选可能超出班次）
}

// DefaultDetectorConfig 返回默认配置
func DefaultDetectorConfig() *DetectorConfig {
	return &DetectorConfig{
		MinVisitMinutes: model.MinVisitMinutes,
		CheckShift:      true,
	}
}

// NewConflictDetector 创建冲突检测器
func NewConflictDetector(config *DetectorConfig, filter *constraint.Filter) *ConflictDetector {
	if config == nil {
		config = DefaultDetectorConfig()
	}
	if filter == nil {
		filter = constraint.NewFilter()
	}
	return &ConflictDetector{config: config, filter: filter}
}

// DetectAll 检测所有冲突
func (d *ConflictDetector) DetectAll(assignments []*model.Assignment, roster *model.Roster) []Conflict {
	var conflicts []Conflict

	for _, a := range assignments {
		conflicts = append(conflicts, d.detectRecord(a, roster)...)
	}

	byEmployee := groupByEmployee(assignments)
	empIDs := make([]string, 0, len(byEmployee))
	for id := range byEmployee {
		empIDs = append(empIDs, id)
	}
	sort.Strings(empIDs)

	for _, empID := range empIDs {
		empAssignments := byEmployee[empID]
		emp := roster.Employee(empID)
		conflicts = append(conflicts, d.detectOverlaps(empID, empAssignments)...)
		conflicts = append(conflicts, d.detectRepeatVisits(empID, empAssignments)...)
		if emp != nil {
			conflicts = append(conflicts, d.detectVisitCap(emp, empAssignments)...)
		}
	}

	return conflicts
}

// HasErrors 是否存在 error 级别冲突
func HasErrors(conflicts []Conflict) bool {
	for _, c := range conflicts {
		if c.Severity == "error" {
			return true
		}
	}
	return false
}

// detectRecord 单条记录的检查
func (d *ConflictDetector) detectRecord(a *model.Assignment, roster *model.Roster) []Conflict {
	var conflicts []Conflict
	base := Conflict{
		EmployeeID:  a.EmployeeID,
		PatientID:   a.PatientID,
		Date:        a.Date(),
		Assignments: []int64{a.ID},
	}

	if a.TravelMinutes < 0 || a.TravelMinutes > model.MaxTravelMinutes {
		c := base
		c.Type, c.Severity = ConflictTravelRange, "error"
		c.Message = fmt.Sprintf("路程时间 %d 分钟超出 0-%d 范围", a.TravelMinutes, model.MaxTravelMinutes)
		conflicts = append(conflicts, c)
	}

	emp := roster.Employee(a.EmployeeID)
	patient := roster.Patient(a.PatientID)
	if emp == nil || patient == nil {
		c := base
		c.Type, c.Severity = ConflictMissingReference, "warning"
		c.Message = "员工或服务对象不在名册中"
		return append(conflicts, c)
	}

	for _, v := range d.filter.Explain(emp, patient) {
		c := base
		c.Type, c.Severity = ConflictEligibility, "error"
		c.Message = fmt.Sprintf("%s: %s", v.Constraint, v.Reason)
		conflicts = append(conflicts, c)
	}

	shift := emp.Shift().On(a.StartTime)
	if d.config.CheckShift && !shift.Covers(a.Interval()) {
		c := base
		c.Type, c.Severity = ConflictOutsideShift, "warning"
		c.Message = fmt.Sprintf("上门时间超出班次 %s", emp.Shift())
		conflicts = append(conflicts, c)
	}

	// 截断上门：结束于班次结束时刻且短于最短时长
	if a.EndTime.Equal(shift.End) && a.DurationMinutes < d.config.MinVisitMinutes {
		c := base
		c.Type, c.Severity = ConflictShortVisit, "warning"
		c.Message = fmt.Sprintf("截断后的上门仅 %d 分钟，少于 %d 分钟", a.DurationMinutes, d.config.MinVisitMinutes)
		conflicts = append(conflicts, c)
	}

	return conflicts
}

// detectOverlaps 检测时间重叠
func (d *ConflictDetector) detectOverlaps(empID string, assignments []*model.Assignment) []Conflict {
	var conflicts []Conflict

	// 按时间排序
	sorted := sortedByStart(assignments)

	if len(sorted) == 0 {
		return conflicts
	}

	// 与此前结束最晚的记录比较，覆盖非相邻重叠
	latest := sorted[0]
	for _, current := range sorted[1:] {
		if latest.Interval().Overlaps(current.Interval()) {
			conflicts = append(conflicts, Conflict{
				Type:        ConflictOverlap,
				Severity:    "error",
				EmployeeID:  empID,
				Date:        current.Date(),
				Message:     fmt.Sprintf("员工 %s 在 %s 存在时间重叠的上门", empID, current.Date()),
				Assignments: []int64{latest.ID, current.ID},
			})
		}
		if current.EndTime.After(latest.EndTime) {
			latest = current
		}
	}

	return conflicts
}

// detectRepeatVisits 检测同日重复上门
func (d *ConflictDetector) detectRepeatVisits(empID string, assignments []*model.Assignment) []Conflict {
	var conflicts []Conflict
	first := make(map[string]*model.Assignment)

	for _, a := range sortedByStart(assignments) {
		key := a.Date() + "|" + a.PatientID
		prev, ok := first[key]
		if !ok {
			first[key] = a
			continue
		}
		conflicts = append(conflicts, Conflict{
			Type:        ConflictRepeatVisit,
			Severity:    "error",
			EmployeeID:  empID,
			PatientID:   a.PatientID,
			Date:        a.Date(),
			Message:     fmt.Sprintf("员工 %s 在 %s 多次上门服务对象 %s", empID, a.Date(), a.PatientID),
			Assignments: []int64{prev.ID, a.ID},
		})
	}

	return conflicts
}

// detectVisitCap 检测每日上门次数
func (d *ConflictDetector) detectVisitCap(emp *model.Employee, assignments []*model.Assignment) []Conflict {
	var conflicts []Conflict

	byDate := make(map[string][]int64)
	var dates []string
	for _, a := range sortedByStart(assignments) {
		date := a.Date()
		if _, ok := byDate[date]; !ok {
			dates = append(dates, date)
		}
		byDate[date] = append(byDate[date], a.ID)
	}

	for _, date := range dates {
		ids := byDate[date]
		if len(ids) > emp.VisitCap() {
			conflicts = append(conflicts, Conflict{
				Type:        ConflictVisitCap,
				Severity:    "error",
				EmployeeID:  emp.ID,
				Date:        date,
				Message:     fmt.Sprintf("当日上门 %d 次，超过上限 %d 次", len(ids), emp.VisitCap()),
				Assignments: ids,
			})
		}
	}

	return conflicts
}

// groupByEmployee 按员工分组
func groupByEmployee(assignments []*model.Assignment) map[string][]*model.Assignment {
	result := make(map[string][]*model.Assignment)
	for _, a := range assignments {
		result[a.EmployeeID] = append(result[a.EmployeeID], a)
	}
	return result
}

func sortedByStart(assignments []*model.Assignment) []*model.Assignment {
	sorted := make([]*model.Assignment, len(assignments))
	copy(sorted, assignments)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].StartTime.Before(sorted[j].StartTime)
	})
	return sorted
}
