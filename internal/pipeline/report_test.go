package pipeline

import (
	"encoding/json"
	"testing"
	"time"

	"modelmarket/internal/domain"
)

func TestDecideStatus(t *testing.T) {
	safe := domain.SecurityResult{Safe: true}
	unsafe := domain.SecurityResult{Safe: false}
	cases := []struct {
		sec   domain.SecurityResult
		score int
		want  domain.ReportStatus
	}{
		{safe, 61, domain.ReportVerified},
		{safe, 60, domain.ReportVerified},
		{safe, 59, domain.ReportWarning},
		{unsafe, 61, domain.ReportWarning},
		{unsafe, 100, domain.ReportWarning},
	}
	for _, tc := range cases {
		if got := DecideStatus(tc.sec, tc.score); got != tc.want {
			t.Errorf("safe=%v score=%d: got %s, want %s", tc.sec.Safe, tc.score, got, tc.want)
		}
	}
}

func TestAggregate(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	f := Findings{
		FileInfo: domain.FileInfo{Name: "model.onnx"},
		Security: domain.SecurityResult{Safe: true},
		Quality:  domain.Quality{Overall: 61, Grade: "C"},
	}
	r := Aggregate(f, now)
	if r.Status != domain.ReportVerified || r.Score != 61 || r.Grade != "C" {
		t.Errorf("unexpected report head: %+v", r)
	}
	if r.VerificationID != "VER-1700000000123" {
		t.Errorf("VerificationID = %q", r.VerificationID)
	}

	f.Quality.Overall = 59
	if got := Aggregate(f, now).Status; got != domain.ReportWarning {
		t.Errorf("score 59 status = %s, want warning", got)
	}
}

func TestReportFilename(t *testing.T) {
	if got := ReportFilename("VER-42"); got != "verification-report-VER-42.json" {
		t.Errorf("ReportFilename = %q", got)
	}
}

func TestExportJSON(t *testing.T) {
	r := Aggregate(Findings{Security: domain.SecurityResult{Safe: true}, Quality: domain.Quality{Overall: 90, Grade: "A+"}}, time.UnixMilli(5))
	raw, err := ExportJSON(r)
	if err != nil {
		t.Fatal(err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"status", "score", "grade", "fileInfo", "securityResult", "mlAnalysis", "performance",
		"compatibility", "quality", "compressionAnalysis", "timestamp", "verificationId"} {
		if _, ok := doc[key]; !ok {
			t.Errorf("exported report missing %q", key)
		}
	}
}
