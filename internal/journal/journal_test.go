package journal

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"squeeze/internal/codec"
	"squeeze/internal/processor"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(context.Background(), filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestRecordAndLookup(t *testing.T) {
	ctx := context.Background()
	j := openTestJournal(t)

	runID, err := j.BeginRun(ctx, processor.OpPicture, "quality/jpeg", 1024)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	converted := processor.JobResult{
		Job:         processor.Job{Name: "a.png"},
		Status:      processor.StatusConverted,
		Output:      "/out/a.jpeg",
		Size:        900,
		Target:      1024,
		Encoded:     true,
		Config:      codec.EncodeConfig{Scale: 1, Quality: 80, Format: codec.FormatJPEG},
		Fingerprint: "abc",
	}
	failed := processor.JobResult{
		Job:    processor.Job{Name: "b.jpg"},
		Status: processor.StatusError,
		Err:    errors.New("cannot decode"),
	}
	for _, res := range []processor.JobResult{converted, failed} {
		if err := j.Record(ctx, runID, "quality/jpeg", res); err != nil {
			t.Fatalf("record %s: %v", res.Job.Name, err)
		}
	}

	entry, ok, err := j.Lookup(ctx, "abc", 1024, "quality/jpeg")
	if err != nil || !ok {
		t.Fatalf("lookup: ok=%v err=%v", ok, err)
	}
	if entry.Output != "/out/a.jpeg" || entry.Size != 900 {
		t.Fatalf("entry = %+v", entry)
	}

	for _, miss := range []struct {
		target  int64
		variant string
	}{{2048, "quality/jpeg"}, {1024, "downscale/jpeg"}} {
		if _, ok, err := j.Lookup(ctx, "abc", miss.target, miss.variant); err != nil || ok {
			t.Fatalf("lookup %+v: ok=%v err=%v", miss, ok, err)
		}
	}

	entries, err := j.Results(ctx, runID)
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	if len(entries) != 2 || entries[0].Config == "" || entries[1].Error != "cannot decode" {
		t.Fatalf("entries = %+v", entries)
	}

	if err := j.FinishRun(ctx, runID, processor.Summary{Total: 2, Converted: 1, Errors: 1}); err != nil {
		t.Fatalf("finish: %v", err)
	}

	runs, err := j.Runs(ctx, 10)
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != runID || runs[0].Operation != processor.OpPicture {
		t.Fatalf("runs = %+v", runs)
	}
	if runs[0].Summary.Converted != 1 || runs[0].Summary.Errors != 1 || runs[0].Finished.IsZero() {
		t.Fatalf("run summary = %+v", runs[0])
	}
}

func TestRecordReplacesConversion(t *testing.T) {
	ctx := context.Background()
	j := openTestJournal(t)

	for i, size := range []int64{800, 700} {
		runID, err := j.BeginRun(ctx, processor.OpPicture, "v", 1024)
		if err != nil {
			t.Fatalf("begin %d: %v", i, err)
		}
		res := processor.JobResult{
			Job:         processor.Job{Name: "a.png"},
			Status:      processor.StatusConverted,
			Output:      "/out/a.jpeg",
			Size:        size,
			Target:      1024,
			Fingerprint: "same",
		}
		if err := j.Record(ctx, runID, "v", res); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}

	entry, ok, err := j.Lookup(ctx, "same", 1024, "v")
	if err != nil || !ok || entry.Size != 700 {
		t.Fatalf("entry=%+v ok=%v err=%v", entry, ok, err)
	}
}

func TestWarningsAreNotReused(t *testing.T) {
	ctx := context.Background()
	j := openTestJournal(t)
	runID, _ := j.BeginRun(ctx, processor.OpPicture, "v", 10)

	res := processor.JobResult{
		Job:         processor.Job{Name: "big.png"},
		Status:      processor.StatusWarning,
		Output:      "/out/big.jpeg",
		Size:        4096,
		Target:      10,
		Fingerprint: "big",
	}
	if err := j.Record(ctx, runID, "v", res); err != nil {
		t.Fatalf("record: %v", err)
	}
	if _, ok, _ := j.Lookup(ctx, "big", 10, "v"); ok {
		t.Fatal("over-budget outputs must not be reused")
	}
}
