// Package roster 导入员工与服务对象名册
package roster

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	apperrors "github.com/0pancd04/rota-ai-desertation/pkg/errors"
	"github.com/0pancd04/rota-ai-desertation/pkg/logger"
	"github.com/0pancd04/rota-ai-desertation/pkg/model"
)

// 工作表名称
const (
	EmployeeSheet = "EmployeeDetails"
	PatientSheet  = "PatientDetails"
)

// EmployeeHeader 员工表头
var EmployeeHeader = []string{
	"EmployeeID",
	"Name",
	"Address",
	"VehicleAvailable",
	"Qualification",
	"LanguageSpoken",
	"EarliestStart",
	"LatestEnd",
}

// PatientHeader 服务对象表头
var PatientHeader = []string{
	"PatientID",
	"PatientName",
	"Address",
	"RequiredSupport",
	"RequiredHoursOfSupport",
	"PreferredLanguage",
}

// SkippedRow 导入时跳过的行
type SkippedRow struct {
	Sheet  string `json:"sheet"`
	Row    int    `json:"row"` // Excel 行号（从1开始，含表头）
	Reason string `json:"reason"`
}

// ImportReport 导入结果
type ImportReport struct {
	Employees int          `json:"employees"`
	Patients  int          `json:"patients"`
	Skipped   []SkippedRow `json:"skipped,omitempty"`
}

// ImportExcel 从工作簿的 EmployeeDetails 与 PatientDetails 表读取名册
// 列按表头名称定位，顺序不限；缺少 ID 或 ID 重复的行被跳过
func ImportExcel(r io.Reader) (*model.Roster, *ImportReport, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, apperrors.Wrap(err, apperrors.CodeImportFailed, "无法读取 Excel 文件")
	}
	defer f.Close()

	report := &ImportReport{}
	roster := &model.Roster{}

	empRows, err := f.GetRows(EmployeeSheet)
	if err != nil {
		return nil, nil, apperrors.Wrap(err, apperrors.CodeImportFailed, "缺少工作表 "+EmployeeSheet)
	}
	patRows, err := f.GetRows(PatientSheet)
	if err != nil {
		return nil, nil, apperrors.Wrap(err, apperrors.CodeImportFailed, "缺少工作表 "+PatientSheet)
	}

	seen := make(map[string]bool)
	forEachRecord(empRows, func(rowNum int, rec record) {
		emp := employeeFromRecord(rec)
		if reason := checkID(emp.ID, seen); reason != "" {
			report.Skipped = append(report.Skipped, SkippedRow{Sheet: EmployeeSheet, Row: rowNum, Reason: reason})
			return
		}
		roster.Employees = append(roster.Employees, emp)
	})

	seen = make(map[string]bool)
	forEachRecord(patRows, func(rowNum int, rec record) {
		p := patientFromRecord(rec)
		if reason := checkID(p.ID, seen); reason != "" {
			report.Skipped = append(report.Skipped, SkippedRow{Sheet: PatientSheet, Row: rowNum, Reason: reason})
			return
		}
		roster.Patients = append(roster.Patients, p)
	})

	report.Employees = len(roster.Employees)
	report.Patients = len(roster.Patients)

	for _, s := range report.Skipped {
		logger.Warn().Str("sheet", s.Sheet).Int("row", s.Row).Str("reason", s.Reason).Msg("跳过名册行")
	}
	logger.Info().
		Int("employees", report.Employees).
		Int("patients", report.Patients).
		Int("skipped", len(report.Skipped)).
		Msg("名册导入完成")

	return roster, report, nil
}

// record 按表头名称访问的一行数据
type record map[string]string

func (r record) get(name string) string {
	return strings.TrimSpace(r[strings.ToLower(name)])
}

// forEachRecord 遍历表头之后的非空行
func forEachRecord(rows [][]string, fn func(rowNum int, rec record)) {
	if len(rows) == 0 {
		return
	}
	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.ToLower(strings.TrimSpace(h))
	}

	for i, row := range rows[1:] {
		rec := make(record, len(header))
		empty := true
		for col, name := range header {
			if col < len(row) && name != "" {
				rec[name] = row[col]
				if strings.TrimSpace(row[col]) != "" {
					empty = false
				}
			}
		}
		if empty {
			continue
		}
		fn(i+2, rec)
	}
}

func checkID(id string, seen map[string]bool) string {
	if id == "" {
		return "缺少 ID"
	}
	if seen[id] {
		return "ID 重复: " + id
	}
	seen[id] = true
	return ""
}

func employeeFromRecord(rec record) *model.Employee {
	return &model.Employee{
		ID:            rec.get("EmployeeID"),
		Name:          rec.get("Name"),
		Address:       rec.get("Address"),
		Qualification: model.ParseQualification(rec.get("Qualification")),
		Languages:     model.SplitLanguages(rec.get("LanguageSpoken")),
		Transport:     ParseVehicle(rec.get("VehicleAvailable")),
		ShiftStart:    NormalizeClock(rec.get("EarliestStart"), model.DefaultShiftStart),
		ShiftEnd:      NormalizeClock(rec.get("LatestEnd"), model.DefaultShiftEnd),
	}
}

func patientFromRecord(rec record) *model.Patient {
	lang := rec.get("PreferredLanguage")
	if lang == "" {
		lang = "English"
	}
	return &model.Patient{
		ID:                rec.get("PatientID"),
		Name:              rec.get("PatientName"),
		Address:           rec.get("Address"),
		RequiredSupport:   model.ParseServices(rec.get("RequiredSupport")),
		WeeklyHours:       parseHours(rec.get("RequiredHoursOfSupport")),
		PreferredLanguage: lang,
	}
}

// ParseVehicle 将 VehicleAvailable 列映射为出行方式
// 没有车辆时视为公共交通
func ParseVehicle(text string) model.TransportMode {
	t := strings.ToLower(strings.TrimSpace(text))
	switch {
	case t == "", t == "no", t == "none", t == "n":
		return model.TransportPublicTransit
	case strings.Contains(t, "car"), t == "yes", t == "y":
		return model.TransportCar
	default:
		return model.ParseTransportMode(t)
	}
}

// NormalizeClock 将 "9"、"9:00"、"09:00:00" 规范为 "HH:MM"，无法解析时使用默认值
func NormalizeClock(text string, fallback int) string {
	text = strings.TrimSpace(text)
	if h, err := strconv.Atoi(text); err == nil && h >= 0 && h <= 23 {
		return model.FormatClock(h * 60)
	}
	if m, err := model.ParseClock(text); err == nil {
		return model.FormatClock(m)
	}
	return model.FormatClock(fallback)
}

// parseHours 解析每周时长，接受 "7" 与 "7.0"；无效时为 0
func parseHours(text string) int {
	if text == "" {
		return 0
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil || v < 0 {
		return 0
	}
	return int(v)
}

// Workbook 将名册写成可再次导入的工作簿
func Workbook(r *model.Roster) ([]byte, error) {
	f := excelize.NewFile()

	if _, err := f.NewSheet(EmployeeSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("创建工作表失败: %w", err)
	}
	if _, err := f.NewSheet(PatientSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("创建工作表失败: %w", err)
	}
	f.DeleteSheet("Sheet1")

	empRows := make([][]any, 0, len(r.Employees))
	for _, e := range r.Employees {
		empRows = append(empRows, []any{
			e.ID, e.Name, e.Address, string(e.Transport), string(e.Qualification),
			strings.Join(e.Languages, ", "), e.ShiftStart, e.ShiftEnd,
		})
	}
	if err := writeSheet(f, EmployeeSheet, EmployeeHeader, empRows); err != nil {
		f.Close()
		return nil, err
	}

	patRows := make([][]any, 0, len(r.Patients))
	for _, p := range r.Patients {
		services := make([]string, 0, len(p.RequiredSupport))
		for _, s := range p.RequiredSupport {
			services = append(services, string(s))
		}
		hours := ""
		if p.WeeklyHours > 0 {
			hours = strconv.Itoa(p.WeeklyHours)
		}
		patRows = append(patRows, []any{
			p.ID, p.Name, p.Address, strings.Join(services, ", "), hours, p.PreferredLanguage,
		})
	}
	if err := writeSheet(f, PatientSheet, PatientHeader, patRows); err != nil {
		f.Close()
		return nil, err
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("写入工作簿失败: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("关闭工作簿失败: %w", err)
	}
	return buf.Bytes(), nil
}

// writeSheet 写入表头与数据行
func writeSheet(f *excelize.File, sheet string, header []string, rows [][]any) error {
	headerRow := make([]any, len(header))
	for i, h := range header {
		headerRow[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &headerRow); err != nil {
		return fmt.Errorf("写入表头失败: %w", err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("写入第 %d 行失败: %w", i+2, err)
		}
	}
	return nil
}
