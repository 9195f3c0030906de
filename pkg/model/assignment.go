package model

import (
	"strconv"
	"time"

	apperrors "github.com/0pancd04/rota-ai-desertation/pkg/errors"
)

// 分配记录默认值
const (
	DefaultPriorityScore = 5.0
	ReasonScheduled      = "Scheduled by core engine"
	ReasonReassigned     = "Reanalyzed and reassigned to nearer available employee"

	// MinVisitMinutes 被班次截断后允许的最短上门时长
	MinVisitMinutes = 15
	// MaxTravelMinutes 单段路程上限
	MaxTravelMinutes = 180
)

// Assignment 上门服务分配记录
type Assignment struct {
	ID              int64       `json:"id"`
	EmployeeID      string      `json:"employee_id"`
	EmployeeName    string      `json:"employee_name"`
	PatientID       string      `json:"patient_id"`
	PatientName     string      `json:"patient_name"`
	ServiceType     ServiceType `json:"service_type"`
	StartTime       time.Time   `json:"start_time"`
	EndTime         time.Time   `json:"end_time"`
	DurationMinutes int         `json:"duration_minutes"`
	TravelMinutes   int         `json:"travel_minutes"`
	PriorityScore   float64     `json:"priority_score"`
	Reason          string      `json:"reason,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// Interval 返回服务时间范围
func (a *Assignment) Interval() TimeRange {
	return TimeRange{Start: a.StartTime, End: a.EndTime}
}

// Date 返回服务日期 (YYYY-MM-DD)
func (a *Assignment) Date() string {
	return a.StartTime.Format(DateLayout)
}

// IsOnDate 检查是否在指定日期开始
func (a *Assignment) IsOnDate(day time.Time) bool {
	return SameDay(a.StartTime, day)
}

// WorkingHours 返回服务时长（小时）
func (a *Assignment) WorkingHours() float64 {
	return a.EndTime.Sub(a.StartTime).Hours()
}

// Validate 校验记录是否满足入库条件
func (a *Assignment) Validate() error {
	ve := &apperrors.ValidationErrors{}
	if a.EmployeeID == "" {
		ve.Add("employee_id", "不能为空")
	}
	if a.PatientID == "" {
		ve.Add("patient_id", "不能为空")
	}
	if a.StartTime.IsZero() || a.EndTime.IsZero() {
		ve.Add("start_time", "起止时间不能为空")
	} else if !a.EndTime.After(a.StartTime) {
		ve.Add("end_time", "结束时间必须晚于开始时间")
	} else if a.DurationMinutes != int(a.EndTime.Sub(a.StartTime)/time.Minute) {
		ve.Add("duration_minutes", "与起止时间不一致")
	}
	if a.ServiceType != "" && !a.ServiceType.IsValid() {
		ve.Add("service_type", "未知服务类别")
	}
	if a.TravelMinutes < 0 || a.TravelMinutes > MaxTravelMinutes {
		ve.Add("travel_minutes", "超出 0-180 分钟范围")
	}
	if ve.HasErrors() {
		return ve.ToAppError()
	}
	return nil
}

// Clone 返回副本
func (a *Assignment) Clone() *Assignment {
	c := *a
	return &c
}

// AssignmentUpdate 分配记录的部分更新，nil 字段保持不变
type AssignmentUpdate struct {
	EmployeeID    *string      `json:"employee_id,omitempty"`
	EmployeeName  *string      `json:"employee_name,omitempty"`
	ServiceType   *ServiceType `json:"service_type,omitempty"`
	StartTime     *time.Time   `json:"start_time,omitempty"`
	EndTime       *time.Time   `json:"end_time,omitempty"`
	TravelMinutes *int         `json:"travel_minutes,omitempty"`
	PriorityScore *float64     `json:"priority_score,omitempty"`
	Reason        *string      `json:"reason,omitempty"`
}

// IsEmpty 是否没有任何字段需要更新
func (u AssignmentUpdate) IsEmpty() bool {
	return u.EmployeeID == nil && u.EmployeeName == nil && u.ServiceType == nil &&
		u.StartTime == nil && u.EndTime == nil && u.TravelMinutes == nil &&
		u.PriorityScore == nil && u.Reason == nil
}

// ApplyTo 将更新应用到记录上，起止时间变化时同步时长
func (u AssignmentUpdate) ApplyTo(a *Assignment) {
	if u.EmployeeID != nil {
		a.EmployeeID = *u.EmployeeID
	}
	if u.EmployeeName != nil {
		a.EmployeeName = *u.EmployeeName
	}
	if u.ServiceType != nil {
		a.ServiceType = *u.ServiceType
	}
	if u.StartTime != nil {
		a.StartTime = *u.StartTime
	}
	if u.EndTime != nil {
		a.EndTime = *u.EndTime
	}
	if u.StartTime != nil || u.EndTime != nil {
		a.DurationMinutes = int(a.EndTime.Sub(a.StartTime) / time.Minute)
	}
	if u.TravelMinutes != nil {
		a.TravelMinutes = *u.TravelMinutes
	}
	if u.PriorityScore != nil {
		a.PriorityScore = *u.PriorityScore
	}
	if u.Reason != nil {
		a.Reason = *u.Reason
	}
}

// Roster 员工与服务对象名册
type Roster struct {
	Employees []*Employee `json:"employees"`
	Patients  []*Patient  `json:"patients"`
}

// Employee 按 ID 查找员工
func (r *Roster) Employee(id string) *Employee {
	for _, e := range r.Employees {
		if e.ID == id {
			return e
		}
	}
	return nil
}

// Patient 按 ID 查找服务对象
func (r *Roster) Patient(id string) *Patient {
	for _, p := range r.Patients {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// Validate 校验名册（ID 非空且唯一）
func (r *Roster) Validate() error {
	ve := &apperrors.ValidationErrors{}
	seen := make(map[string]bool)
	for i, e := range r.Employees {
		if e == nil || e.ID == "" {
			ve.Add("employees", "第 "+strconv.Itoa(i+1)+" 名员工缺少 ID")
			continue
		}
		if seen["e:"+e.ID] {
			ve.Add("employees", "员工 ID 重复: "+e.ID)
		}
		seen["e:"+e.ID] = true
	}
	for i, p := range r.Patients {
		if p == nil || p.ID == "" {
			ve.Add("patients", "第 "+strconv.Itoa(i+1)+" 名服务对象缺少 ID")
			continue
		}
		if seen["p:"+p.ID] {
			ve.Add("patients", "服务对象 ID 重复: "+p.ID)
		}
		seen["p:"+p.ID] = true
	}
	if ve.HasErrors() {
		return ve.ToAppError()
	}
	return nil
}
