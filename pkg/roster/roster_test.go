package roster

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	apperrors "github.com/0pancd04/rota-ai-desertation/pkg/errors"
	"github.com/0pancd04/rota-ai-desertation/pkg/model"
)

func TestWorkbookRoundTrip(t *testing.T) {
	in := &model.Roster{
		Employees: []*model.Employee{
			{
				ID: "E1", Name: "Alice", Address: "1 High St",
				Qualification: model.QualificationNurse, Transport: model.TransportCar,
				Languages: []string{"English", "Polish"}, ShiftStart: "08:00", ShiftEnd: "16:30",
			},
			{
				ID: "E2", Name: "Bob", Address: "2 Low Rd",
				Qualification: model.QualificationSeniorCareWorker, Transport: model.TransportBicycle,
				ShiftStart: "09:00", ShiftEnd: "17:00",
			},
		},
		Patients: []*model.Patient{
			{
				ID: "P1", Name: "Carol", Address: "3 Mill Ln",
				RequiredSupport:   []model.ServiceType{model.ServiceMedicine, model.ServicePersonalCare},
				WeeklyHours:       7,
				PreferredLanguage: "Polish",
			},
			{
				ID: "P2", Name: "Dan", Address: "4 Oak Ave",
				RequiredSupport:   []model.ServiceType{model.ServiceExercise, model.ServiceCompanionship},
				PreferredLanguage: "English",
			},
		},
	}

	data, err := Workbook(in)
	require.NoError(t, err)

	out, report, err := ImportExcel(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 2, report.Employees)
	assert.Equal(t, 2, report.Patients)
	assert.Empty(t, report.Skipped)
	assert.Equal(t, in, out)
}

func TestImportExcel_HeaderAddressedColumns(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	_, err := f.NewSheet(EmployeeSheet)
	require.NoError(t, err)
	_, err = f.NewSheet(PatientSheet)
	require.NoError(t, err)

	// 列顺序与模板不同，并带有额外列
	empRows := [][]any{
		{"Name", "EmployeeID", "Notes", "EarliestStart", "LatestEnd", "VehicleAvailable", "Qualification", "LanguageSpoken", "Address"},
		{"Alice", "E1", "x", "9", "17:00:00", "Yes", "Registered Nurse", "english, Urdu", "1 High St"},
		{"NoID", "", "", "", "", "", "", "", ""},
		{"Dup", "E1", "", "", "", "", "", "", ""},
		{"Eve", "E2", "", "bad", "", "none", "Care Worker", "", "5 Elm"},
	}
	for i, row := range empRows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, f.SetSheetRow(EmployeeSheet, cell, &row))
	}

	patRows := [][]any{
		{"PatientID", "PatientName", "Address", "RequiredSupport", "RequiredHoursOfSupport"},
		{"P1", "Carol", "3 Mill Ln", "Medication and mobility exercise", "10.0"},
		{"P2", "Dan", "4 Oak Ave", "", ""},
	}
	for i, row := range patRows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, f.SetSheetRow(PatientSheet, cell, &row))
	}

	var buf bytes.Buffer
	_, err = f.WriteTo(&buf)
	require.NoError(t, err)

	roster, report, err := ImportExcel(&buf)
	require.NoError(t, err)
	require.Len(t, roster.Employees, 2)
	require.Len(t, report.Skipped, 2)
	assert.Equal(t, 3, report.Skipped[0].Row)
	assert.Equal(t, 4, report.Skipped[1].Row)

	alice := roster.Employees[0]
	assert.Equal(t, "E1", alice.ID)
	assert.Equal(t, "1 High St", alice.Address)
	assert.Equal(t, model.QualificationNurse, alice.Qualification)
	assert.Equal(t, model.TransportCar, alice.Transport)
	assert.Equal(t, []string{"english", "Urdu"}, alice.Languages)
	assert.Equal(t, "09:00", alice.ShiftStart)
	assert.Equal(t, "17:00", alice.ShiftEnd)

	eve := roster.Employees[1]
	assert.Equal(t, model.QualificationCareWorker, eve.Qualification)
	assert.Equal(t, model.TransportPublicTransit, eve.Transport)
	assert.Equal(t, "09:00", eve.ShiftStart, "无法解析的时间回退到默认值")

	require.Len(t, roster.Patients, 2)
	carol := roster.Patients[0]
	assert.Equal(t, []model.ServiceType{model.ServiceMedicine, model.ServiceExercise}, carol.RequiredSupport)
	assert.Equal(t, 10, carol.WeeklyHours)
	assert.Equal(t, "English", carol.PreferredLanguage)
	assert.Empty(t, roster.Patients[1].RequiredSupport)
}

func TestImportExcel_Errors(t *testing.T) {
	_, _, err := ImportExcel(strings.NewReader("not a workbook"))
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeImportFailed))

	f := excelize.NewFile()
	defer f.Close()
	_, err = f.NewSheet(EmployeeSheet)
	require.NoError(t, err)
	var buf bytes.Buffer
	_, err = f.WriteTo(&buf)
	require.NoError(t, err)

	_, _, err = ImportExcel(&buf)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeImportFailed))
}

func TestImportJSON(t *testing.T) {
	doc := `{
		"employees": [{"id": "E1", "name": "Alice", "address": "A", "shift_start": "8"}],
		"patients": [{"id": "P1", "address": "B", "required_support": ["medicine"], "weekly_hours": 7}]
	}`
	roster, err := ImportJSON(strings.NewReader(doc))
	require.NoError(t, err)

	emp := roster.Employees[0]
	assert.Equal(t, "08:00", emp.ShiftStart)
	assert.Equal(t, "17:00", emp.ShiftEnd)
	assert.Equal(t, model.QualificationCareWorker, emp.Qualification)
	assert.Equal(t, model.TransportCar, emp.Transport)
	assert.Equal(t, "English", roster.Patients[0].PreferredLanguage)

	_, err = ImportJSON(strings.NewReader(`{"employees": [{"id": "E1"}, {"id": "E1"}]}`))
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeValidationFail))

	_, err = ImportJSON(strings.NewReader(`{`))
	assert.True(t, apperrors.Is(err, apperrors.CodeImportFailed))
}

func TestParseVehicle(t *testing.T) {
	tests := map[string]model.TransportMode{
		"":        model.TransportPublicTransit,
		"None":    model.TransportPublicTransit,
		"Yes":     model.TransportCar,
		"Own car": model.TransportCar,
		"Bike":    model.TransportBicycle,
		"walking": model.TransportWalking,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseVehicle(in), in)
	}
}
