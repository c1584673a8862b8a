package progress_test

import (
	"math"
	"testing"
	"time"

	"grimoire/internal/progress"
)

func TestPercentageAccumulatesPassWeights(t *testing.T) {
	job := progress.NewJobProgress("job-1", "/tmp/source.md", "test")
	if pct := job.Percentage(); pct != 0 {
		t.Fatalf("expected 0%% before any pass, got %v", pct)
	}

	expected := []float64{10, 25, 55, 80, 95, 100}
	for i, passType := range progress.AllPasses() {
		pass := progress.NewPassProgress(passType)
		job.Passes[passType] = pass
		pass.Complete(nil)
		if pct := job.Percentage(); math.Abs(pct-expected[i]) > 1e-9 {
			t.Fatalf("after completing %s: expected %v%%, got %v%%", passType, expected[i], pct)
		}
	}
}

func TestPercentageCountsRunningPassAsHalf(t *testing.T) {
	job := progress.NewJobProgress("job-2", "/tmp/source.md", "test")
	pass := progress.NewPassProgress(progress.PassTOCParse)
	job.Passes[progress.PassTOCParse] = pass

	if pct := job.Percentage(); pct != 5 {
		t.Fatalf("starting pass should contribute half its weight, got %v", pct)
	}
	pass.Begin()
	if pct := job.Percentage(); pct != 5 {
		t.Fatalf("in-progress pass should contribute half its weight, got %v", pct)
	}
	pass.Fail("boom", "test")
	if pct := job.Percentage(); pct != 0 {
		t.Fatalf("failed pass should contribute nothing, got %v", pct)
	}
}

func TestEstimatedCompletion(t *testing.T) {
	job := progress.NewJobProgress("job-3", "/tmp/source.md", "test")
	job.StartTime = time.Now().UTC().Add(-time.Minute)

	if _, ok := job.EstimatedCompletion(time.Now().UTC()); ok {
		t.Fatal("expected no estimate at 0%")
	}

	for _, passType := range []progress.PassType{progress.PassTOCParse, progress.PassLogicalSplit, progress.PassExtraction} {
		pass := progress.NewPassProgress(passType)
		job.Passes[passType] = pass
		pass.Complete(nil)
	}

	// 55% done after one minute: roughly 49 seconds remain.
	remaining, ok := job.EstimatedCompletion(job.StartTime.Add(time.Minute))
	if !ok {
		t.Fatal("expected an estimate at 55%")
	}
	elapsed := float64(time.Minute)
	want := time.Duration(elapsed/0.55) - time.Minute
	if diff := remaining - want; diff < -time.Second || diff > time.Second {
		t.Fatalf("expected ~%v remaining, got %v", want, remaining)
	}
}

func TestCloneSharesNoMutableState(t *testing.T) {
	job := progress.NewJobProgress("job-1", "/srv/sources/bestiary.pdf", "test")
	pass := progress.NewPassProgress(progress.PassTOCParse)
	job.Passes[progress.PassTOCParse] = pass
	pass.Complete(map[string]any{"source_kind": "pdf"})

	snapshot := job.Clone()

	pass.Fail("tampered", "late")
	pass.Metadata["source_kind"] = "tampered"
	job.Passes[progress.PassExtraction] = progress.NewPassProgress(progress.PassExtraction)
	job.OverallStatus = progress.JobFailed

	if snapshot.OverallStatus == progress.JobFailed {
		t.Fatal("clone must not see later job mutations")
	}
	if len(snapshot.Passes) != 1 {
		t.Fatalf("clone pass map must be independent, got %d passes", len(snapshot.Passes))
	}
	cloned := snapshot.Pass(progress.PassTOCParse)
	if cloned.Status != progress.PassCompleted || cloned.ErrorMessage != "" {
		t.Fatalf("clone must keep its snapshot state: %+v", cloned)
	}
	if cloned.Metadata["source_kind"] != "pdf" {
		t.Fatalf("clone metadata must be independent: %v", cloned.Metadata)
	}
	if cloned.EndTime == pass.EndTime {
		t.Fatal("clone must not share the end time pointer")
	}
}

func TestCompleteRoutesMetrics(t *testing.T) {
	pass := progress.NewPassProgress(progress.PassExtraction)
	pass.Complete(map[string]any{
		progress.MetricChunksProcessed: 42,
		progress.MetricVectorsCreated:  7,
		"bypassed":                     true,
	})

	if pass.Status != progress.PassCompleted {
		t.Fatalf("expected completed status, got %s", pass.Status)
	}
	if pass.ChunksProcessed != 42 || pass.VectorsCreated != 7 {
		t.Fatalf("counters not routed: %+v", pass)
	}
	if got, ok := pass.Metadata["bypassed"]; !ok || got != true {
		t.Fatalf("unrecognized metric should land in metadata, got %#v", pass.Metadata)
	}
	if pass.EndTime == nil || pass.DurationMillis == nil {
		t.Fatal("terminal pass must carry end time and duration")
	}
}

func TestFailStampsTerminalFields(t *testing.T) {
	pass := progress.NewPassProgress(progress.PassGraphBuild)
	pass.Begin()
	pass.Fail("graph backend unreachable", "backend")

	if pass.Status != progress.PassFailed {
		t.Fatalf("expected failed status, got %s", pass.Status)
	}
	if pass.ErrorMessage != "graph backend unreachable" || pass.ErrorType != "backend" {
		t.Fatalf("error fields not recorded: %+v", pass)
	}
	if pass.EndTime == nil || pass.DurationMillis == nil {
		t.Fatal("terminal pass must carry end time and duration")
	}
	if !pass.Status.IsTerminal() {
		t.Fatal("failed must be terminal")
	}
}

func TestWeightsSumToOneHundred(t *testing.T) {
	total := 0
	for _, passType := range progress.AllPasses() {
		total += passType.Weight()
	}
	if total != 100 {
		t.Fatalf("pass weights must sum to 100, got %d", total)
	}
}
