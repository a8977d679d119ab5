package stats

import (
	"reflect"
	"testing"
	"time"

	"credential-service/internal/models"
)

var anchor = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func record(recType models.RecordType, subjectType models.SubjectType, status models.RecordStatus, confidence *int, age time.Duration) models.AuditRecord {
	return models.AuditRecord{
		Type:        recType,
		SubjectType: subjectType,
		Status:      status,
		Timestamp:   anchor.Add(-age),
		Metadata:    models.AuditMetadata{Confidence: confidence},
	}
}

func intp(v int) *int { return &v }

func TestComputeEmptyInputs(t *testing.T) {
	got := Compute(nil, nil, Options{Now: anchor})
	want := Stats{}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want zero stats", got)
	}
}

func TestComputeSuccessRate(t *testing.T) {
	records := []models.AuditRecord{
		record(models.RecordVerification, models.SubjectStudent, models.StatusSuccess, nil, time.Minute),
		record(models.RecordVerification, models.SubjectStudent, models.StatusSuccess, nil, time.Minute),
		record(models.RecordVerification, models.SubjectStaff, models.StatusFailed, nil, time.Minute),
	}

	got := Compute(records, nil, Options{Now: anchor})
	if got.TotalAttempts != 3 {
		t.Errorf("attempts = %d, want 3", got.TotalAttempts)
	}
	if got.SuccessRate != 66.67 {
		t.Errorf("success rate = %v, want 66.67", got.SuccessRate)
	}
	if got.ByUserType.Students != 2 || got.ByUserType.Staff != 1 {
		t.Errorf("breakdown = %+v", got.ByUserType)
	}
}

func TestComputeExcludesSecurityAlerts(t *testing.T) {
	records := []models.AuditRecord{
		record(models.RecordVerification, models.SubjectStudent, models.StatusSuccess, nil, time.Minute),
		record(models.RecordSecurityAlert, models.SubjectStudent, models.StatusWarning, nil, time.Minute),
	}

	got := Compute(records, nil, Options{Now: anchor})
	if got.TotalAttempts != 1 {
		t.Errorf("attempts = %d, want 1 (alerts excluded)", got.TotalAttempts)
	}
	if got.SuccessRate != 100 {
		t.Errorf("success rate = %v, want 100", got.SuccessRate)
	}
}

func TestComputeAverageConfidenceIgnoresUnscored(t *testing.T) {
	records := []models.AuditRecord{
		record(models.RecordVerification, models.SubjectStudent, models.StatusSuccess, intp(100), time.Minute),
		record(models.RecordVerification, models.SubjectStudent, models.StatusSuccess, intp(95), time.Minute),
		record(models.RecordVerification, models.SubjectStudent, models.StatusFailed, nil, time.Minute),
	}

	got := Compute(records, nil, Options{Now: anchor})
	if got.AverageConfidence != 97.5 {
		t.Errorf("average confidence = %v, want 97.5", got.AverageConfidence)
	}
}

func TestComputeRecentWindow(t *testing.T) {
	records := []models.AuditRecord{
		record(models.RecordVerification, models.SubjectStudent, models.StatusSuccess, nil, time.Minute),
		record(models.RecordVerification, models.SubjectStudent, models.StatusSuccess, nil, 2*time.Hour),
		record(models.RecordVerification, models.SubjectStudent, models.StatusSuccess, nil, 30*time.Hour),
	}

	got := Compute(records, nil, Options{Now: anchor})
	if got.RecentActivityCount != 2 {
		t.Errorf("recent (24h default) = %d, want 2", got.RecentActivityCount)
	}

	got = Compute(records, nil, Options{Now: anchor, RecentWindow: time.Hour})
	if got.RecentActivityCount != 1 {
		t.Errorf("recent (1h) = %d, want 1", got.RecentActivityCount)
	}
}

func TestComputeDevicesOnline(t *testing.T) {
	devices := []models.DeviceRecord{
		{ID: "d1", Status: models.DeviceOnline},
		{ID: "d2", Status: models.DeviceOffline},
		{ID: "d3", Status: models.DeviceMaintenance},
		{ID: "d4", Status: models.DeviceOnline},
	}

	got := Compute(nil, devices, Options{Now: anchor})
	if got.DevicesOnline != 2 {
		t.Errorf("devices online = %d, want 2", got.DevicesOnline)
	}
}

func TestComputeIsDeterministic(t *testing.T) {
	records := []models.AuditRecord{
		record(models.RecordVerification, models.SubjectStudent, models.StatusSuccess, intp(95), time.Minute),
		record(models.RecordEnrollment, models.SubjectStaff, models.StatusFailed, nil, time.Hour),
	}
	devices := []models.DeviceRecord{{ID: "d1", Status: models.DeviceOnline}}
	opts := Options{Now: anchor, RecentWindow: 24 * time.Hour}

	first := Compute(records, devices, opts)
	second := Compute(records, devices, opts)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("same inputs produced different stats:\n%+v\n%+v", first, second)
	}
}
