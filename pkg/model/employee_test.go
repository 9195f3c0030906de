package model

import (
	"reflect"
	"testing"
)

func TestParseQualification(t *testing.T) {
	tests := map[string]Qualification{
		"Registered Nurse":   QualificationNurse,
		"clinical lead":      QualificationNurse,
		"Senior Care Worker": QualificationSeniorCareWorker,
		"Care Worker":        QualificationCareWorker,
		"":                   QualificationCareWorker,
	}
	for in, expected := range tests {
		if got := ParseQualification(in); got != expected {
			t.Errorf("ParseQualification(%q) = %v, expected %v", in, got, expected)
		}
	}
	if !QualificationNurse.IsClinical() || QualificationSeniorCareWorker.IsClinical() {
		t.Error("只有护士具备临床资质")
	}
}

func TestParseTransportMode(t *testing.T) {
	tests := map[string]TransportMode{
		"Car":              TransportCar,
		"Public Transport": TransportPublicTransit,
		"bus":              TransportPublicTransit,
		"Bicycle":          TransportBicycle,
		"walking":          TransportWalking,
		"":                 TransportCar,
		"scooter":          TransportCar,
	}
	for in, expected := range tests {
		if got := ParseTransportMode(in); got != expected {
			t.Errorf("ParseTransportMode(%q) = %v, expected %v", in, got, expected)
		}
	}
}

func TestEmployee_Languages(t *testing.T) {
	e := &Employee{Languages: []string{" English", "Polish ", ""}}

	if got := e.LanguageList(); got != "english, polish" {
		t.Errorf("LanguageList() = %q", got)
	}
	if !e.SpeaksLanguage("POLISH") {
		t.Error("语言匹配应不区分大小写")
	}
	if !e.SpeaksLanguage("") {
		t.Error("未指定语言时视为匹配")
	}
	if e.SpeaksLanguage("Urdu") {
		t.Error("不会的语言")
	}
	if got := SplitLanguages("English, Punjabi,,"); !reflect.DeepEqual(got, []string{"English", "Punjabi"}) {
		t.Errorf("SplitLanguages() = %v", got)
	}
}

func TestEmployee_VisitCapAndShift(t *testing.T) {
	e := &Employee{ShiftStart: "08:30", ShiftEnd: "bad"}
	if e.VisitCap() != DefaultMaxVisitsPerDay {
		t.Errorf("VisitCap() = %d", e.VisitCap())
	}
	e.MaxVisitsPerDay = 3
	if e.VisitCap() != 3 {
		t.Errorf("VisitCap() = %d", e.VisitCap())
	}
	if e.Shift() != DefaultShiftWindow() {
		t.Errorf("班次无法解析时应回退为 09:00-17:00，得到 %v", e.Shift())
	}
}

func TestParseServices(t *testing.T) {
	tests := []struct {
		text     string
		expected []ServiceType
	}{
		{"Medication, Personal Care", []ServiceType{ServiceMedicine, ServicePersonalCare}},
		{"mobility exercises", []ServiceType{ServiceExercise}},
		{"Companionship", []ServiceType{ServiceCompanionship}},
		{"", nil},
	}
	for _, tt := range tests {
		if got := ParseServices(tt.text); !reflect.DeepEqual(got, tt.expected) {
			t.Errorf("ParseServices(%q) = %v, expected %v", tt.text, got, tt.expected)
		}
	}
}

func TestPatient_PrimaryService(t *testing.T) {
	tests := []struct {
		name     string
		support  []ServiceType
		expected ServiceType
	}{
		{"用药优先", []ServiceType{ServicePersonalCare, ServiceMedicine}, ServiceMedicine},
		{"锻炼优先于陪伴", []ServiceType{ServiceCompanionship, ServiceExercise}, ServiceExercise},
		{"陪伴优先于个人护理", []ServiceType{ServicePersonalCare, ServiceCompanionship}, ServiceCompanionship},
		{"未列出", nil, ServicePersonalCare},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Patient{RequiredSupport: tt.support}
			if got := p.PrimaryService(); got != tt.expected {
				t.Errorf("PrimaryService() = %v, expected %v", got, tt.expected)
			}
		})
	}
}

func TestPatient_Services(t *testing.T) {
	p := &Patient{RequiredSupport: []ServiceType{ServiceMedicine, ServiceExercise, ServiceMedicine}}
	if got := p.Services(); !reflect.DeepEqual(got, []ServiceType{ServiceMedicine, ServiceExercise}) {
		t.Errorf("Services() = %v", got)
	}
	if !(&Patient{PreferredLanguage: "Polish"}).NeedsInterpreter() {
		t.Error("非英语偏好需要语言匹配")
	}
	if (&Patient{PreferredLanguage: " English "}).NeedsInterpreter() {
		t.Error("英语不需要语言匹配")
	}
}
