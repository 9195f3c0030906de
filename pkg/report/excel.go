// Package report 导出排班结果
package report

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/0pancd04/rota-ai-desertation/pkg/model"
	"github.com/0pancd04/rota-ai-desertation/pkg/stats"
)

// 工作表名称
const (
	RotaSheet     = "Rota"
	WorkloadSheet = "Workload"
	SummarySheet  = "Summary"
)

// RotaHeader 排班表表头
var RotaHeader = []string{
	"Assignment ID",
	"Date",
	"Employee ID",
	"Employee Name",
	"Patient ID",
	"Patient Name",
	"Service Type",
	"Start",
	"End",
	"Duration (mins)",
	"Travel (mins)",
	"Priority Score",
	"Reason",
}

// WorkloadHeader 工作量表表头
var WorkloadHeader = []string{
	"Employee ID",
	"Employee Name",
	"Visits",
	"Visit Minutes",
	"Travel Minutes",
	"Hours",
	"Days Worked",
	"Utilisation (%)",
}

var rotaColumnWidths = []float64{14, 12, 12, 20, 12, 20, 16, 8, 8, 15, 13, 13, 50}

// ExportRota 生成排班工作簿：Rota 明细、Workload 员工工作量、Summary 汇总
// 明细按开始时间、员工排序；被重新分配的记录高亮显示
func ExportRota(assignments []*model.Assignment, summary *stats.Summary) ([]byte, error) {
	if summary == nil {
		summary = stats.Compute(assignments, nil)
	}

	f := excelize.NewFile()
	// WriteTo 之前文件必须保持打开

	index, err := f.NewSheet(RotaSheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("创建工作表失败: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	styles, err := newStyles(f)
	if err != nil {
		f.Close()
		return nil, err
	}

	if err := writeRota(f, styles, assignments); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeWorkload(f, styles, summary); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeSummary(f, styles, summary); err != nil {
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

type sheetStyles struct {
	header     int
	reassigned int
	label      int
}

func newStyles(f *excelize.File) (*sheetStyles, error) {
	border := []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
	}

	header, err := f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill:   excelize.Fill{Type: "pattern", Color: []string{"#366092"}, Pattern: 1},
		Border: border,
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("创建表头样式失败: %w", err)
	}

	reassigned, err := f.NewStyle(&excelize.Style{
		Fill:   excelize.Fill{Type: "pattern", Color: []string{"#FFF3E0"}, Pattern: 1},
		Border: border,
	})
	if err != nil {
		return nil, fmt.Errorf("创建高亮样式失败: %w", err)
	}

	label, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("创建标签样式失败: %w", err)
	}

	return &sheetStyles{header: header, reassigned: reassigned, label: label}, nil
}

// writeHeader 写入表头并冻结首行
func writeHeader(f *excelize.File, sheet string, style int, headers []string) error {
	row := make([]any, len(headers))
	for i, h := range headers {
		row[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &row); err != nil {
		return fmt.Errorf("写入表头失败: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(len(headers), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
		return fmt.Errorf("设置表头样式失败: %w", err)
	}
	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("冻结表头失败: %w", err)
	}
	return nil
}

func writeRota(f *excelize.File, styles *sheetStyles, assignments []*model.Assignment) error {
	if err := writeHeader(f, RotaSheet, styles.header, RotaHeader); err != nil {
		return err
	}
	for i, w := range rotaColumnWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(RotaSheet, col, col, w); err != nil {
			return fmt.Errorf("设置列宽失败: %w", err)
		}
	}

	sorted := make([]*model.Assignment, len(assignments))
	copy(sorted, assignments)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].StartTime.Equal(sorted[j].StartTime) {
			return sorted[i].StartTime.Before(sorted[j].StartTime)
		}
		return sorted[i].EmployeeID < sorted[j].EmployeeID
	})

	for i, a := range sorted {
		rowNum := i + 2
		row := []any{
			a.ID,
			a.Date(),
			a.EmployeeID,
			a.EmployeeName,
			a.PatientID,
			a.PatientName,
			string(a.ServiceType),
			a.StartTime.Format("15:04"),
			a.EndTime.Format("15:04"),
			a.DurationMinutes,
			a.TravelMinutes,
			a.PriorityScore,
			a.Reason,
		}
		cell, err := excelize.CoordinatesToCellName(1, rowNum)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(RotaSheet, cell, &row); err != nil {
			return fmt.Errorf("写入第 %d 行失败: %w", rowNum, err)
		}
		if a.Reason == model.ReasonReassigned {
			last, _ := excelize.CoordinatesToCellName(len(RotaHeader), rowNum)
			if err := f.SetCellStyle(RotaSheet, cell, last, styles.reassigned); err != nil {
				return fmt.Errorf("设置高亮失败: %w", err)
			}
		}
	}
	return nil
}

func writeWorkload(f *excelize.File, styles *sheetStyles, summary *stats.Summary) error {
	if _, err := f.NewSheet(WorkloadSheet); err != nil {
		return fmt.Errorf("创建工作表失败: %w", err)
	}
	if err := writeHeader(f, WorkloadSheet, styles.header, WorkloadHeader); err != nil {
		return err
	}
	if summary.Fairness == nil {
		return nil
	}
	for i, w := range summary.Fairness.Workloads {
		row := []any{
			w.EmployeeID, w.EmployeeName, w.Visits, w.VisitMinutes,
			w.TravelMinutes, w.Hours, w.DaysWorked, w.Utilization,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(WorkloadSheet, cell, &row); err != nil {
			return fmt.Errorf("写入第 %d 行失败: %w", i+2, err)
		}
	}
	return nil
}

func writeSummary(f *excelize.File, styles *sheetStyles, summary *stats.Summary) error {
	if _, err := f.NewSheet(SummarySheet); err != nil {
		return fmt.Errorf("创建工作表失败: %w", err)
	}

	gini := 0.0
	if summary.Fairness != nil {
		gini = summary.Fairness.VisitMinutesGini
	}
	rows := [][]any{
		{"Total Assignments", summary.TotalAssignments},
		{"Employees", summary.TotalEmployees},
		{"Patients", summary.TotalPatients},
		{"Unassigned Patients", len(summary.UnassignedPatients)},
		{"Total Service Minutes", summary.TotalServiceMinutes},
		{"Total Travel Minutes", summary.TotalTravelMinutes},
		{"Average Travel Minutes", summary.AvgTravelMinutes},
		{"Travel Saved Minutes", summary.TravelSavedMinutes},
		{"Future Required Minutes", summary.FutureRequiredMinutes},
		{"Demand Satisfaction (%)", summary.DemandSatisfaction},
		{"Visit Minutes Gini", gini},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SummarySheet, cell, &row); err != nil {
			return fmt.Errorf("写入汇总失败: %w", err)
		}
		if err := f.SetCellStyle(SummarySheet, cell, cell, styles.label); err != nil {
			return fmt.Errorf("设置汇总样式失败: %w", err)
		}
	}
	return f.SetColWidth(SummarySheet, "A", "A", 28)
}
