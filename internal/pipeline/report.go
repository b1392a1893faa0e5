package pipeline

import (
	"encoding/json"
	"strconv"
	"time"

	"modelmarket/internal/domain"
)

// PassingScore is the lowest overall score a verified report may carry.
const PassingScore = 60

// Findings collects the analyzer outputs of one run.
type Findings struct {
	FileInfo      domain.FileInfo
	Security      domain.SecurityResult
	ML            domain.MLAnalysis
	Performance   domain.Performance
	Compatibility domain.Compatibility
	Quality       domain.Quality
	Compression   domain.CompressionAnalysis
}

// DecideStatus is verified iff the security scan passed and score >= PassingScore.
func DecideStatus(sec domain.SecurityResult, score int) domain.ReportStatus {
	if sec.Safe && score >= PassingScore {
		return domain.ReportVerified
	}
	return domain.ReportWarning
}

// VerificationID is "VER-" followed by epoch milliseconds.
func VerificationID(t time.Time) string {
	return "VER-" + strconv.FormatInt(t.UnixMilli(), 10)
}

// ReportFilename is the download name of an exported report.
func ReportFilename(verificationID string) string {
	return "verification-report-" + verificationID + ".json"
}

// Aggregate merges the findings into an immutable report.
func Aggregate(f Findings, now time.Time) domain.FinalReport {
	return domain.FinalReport{
		Status:              DecideStatus(f.Security, f.Quality.Overall),
		Score:               f.Quality.Overall,
		Grade:               f.Quality.Grade,
		FileInfo:            f.FileInfo,
		SecurityResult:      f.Security,
		MLAnalysis:          f.ML,
		Performance:         f.Performance,
		Compatibility:       f.Compatibility,
		Quality:             f.Quality,
		CompressionAnalysis: f.Compression,
		Timestamp:           now,
		VerificationID:      VerificationID(now),
	}
}

// ExportJSON renders the report as the downloadable JSON document.
func ExportJSON(r domain.FinalReport) ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}
