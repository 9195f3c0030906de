package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// 默认班次 09:00-17:00，班次字符串无法解析时使用
const (
	DefaultShiftStart = 9 * 60
	DefaultShiftEnd   = 17 * 60
)

// ShiftWindow 员工每日班次窗口（自零点起的分钟数）
type ShiftWindow struct {
	StartMinute int `json:"start_minute"`
	EndMinute   int `json:"end_minute"`
}

// DefaultShiftWindow 返回默认班次
func DefaultShiftWindow() ShiftWindow {
	return ShiftWindow{StartMinute: DefaultShiftStart, EndMinute: DefaultShiftEnd}
}

// ParseClock 解析 "HH:MM" 或 "HH:MM:SS"，返回自零点起的分钟数
func ParseClock(s string) (int, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("时间格式无效: %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("小时无效: %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("分钟无效: %q", s)
	}
	return h*60 + m, nil
}

// FormatClock 将分钟数格式化为 "HH:MM"
func FormatClock(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}

// ParseShiftWindow 解析班次起止时间
// 任一端无法解析时整体回退到 09:00-17:00
func ParseShiftWindow(start, end string) (ShiftWindow, bool) {
	s, err := ParseClock(start)
	if err != nil {
		return DefaultShiftWindow(), false
	}
	e, err := ParseClock(end)
	if err != nil {
		return DefaultShiftWindow(), false
	}
	return ShiftWindow{StartMinute: s, EndMinute: e}, true
}

// Minutes 返回班次时长（分钟）
func (w ShiftWindow) Minutes() int {
	if w.EndMinute <= w.StartMinute {
		return 0
	}
	return w.EndMinute - w.StartMinute
}

// IsEmpty 班次是否为空（结束不晚于开始）
func (w ShiftWindow) IsEmpty() bool {
	return w.EndMinute <= w.StartMinute
}

// On 将班次落到具体日期上
func (w ShiftWindow) On(day time.Time) TimeRange {
	base := DayStart(day)
	return TimeRange{
		Start: base.Add(time.Duration(w.StartMinute) * time.Minute),
		End:   base.Add(time.Duration(w.EndMinute) * time.Minute),
	}
}

// String 返回 "HH:MM-HH:MM"
func (w ShiftWindow) String() string {
	return FormatClock(w.StartMinute) + "-" + FormatClock(w.EndMinute)
}
