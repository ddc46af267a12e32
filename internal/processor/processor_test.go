package processor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"squeeze/internal/codec"
	"squeeze/internal/search"
)

func TestDiscoverEligibility(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.jpg", "b.JPG", "c.png", "d.jpeg", "e.PNG", Sentinel, "notes.txt"} {
		writeBytes(t, filepath.Join(dir, name), []byte("x"))
	}
	if err := os.Mkdir(filepath.Join(dir, "nested.jpg"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	jobs, err := Discover(OpPicture, dir)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	var names []string
	for _, job := range jobs {
		names = append(names, job.Name)
		if job.Conflict != "" {
			t.Fatalf("unexpected conflict on %s", job.Name)
		}
	}
	want := []string{"a.jpg", "b.JPG", "c.png", "d.jpeg", "e.PNG"}
	if len(names) != len(want) {
		t.Fatalf("got %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("got %v, want %v", names, want)
		}
	}
}

func TestEligibleByOperation(t *testing.T) {
	cases := []struct {
		op   Operation
		name string
		want bool
	}{
		{OpPicture, "photo.WEBP", true},
		{OpPicture, "clip.mp4", false},
		{OpVideo, "clip.MKV", true},
		{OpVideo, "song.mp3", false},
		{OpAudio, "song.flac", true},
		{OpAudio, "clip.mp4", true},
		{OpCut, "clip.webm", true},
		{OpMux, "clip.webm", false},
		{OpAudio, Sentinel, false},
	}
	for _, tc := range cases {
		if got := tc.op.Eligible(tc.name); got != tc.want {
			t.Errorf("%s.Eligible(%q) = %v, want %v", tc.op, tc.name, got, tc.want)
		}
	}
}

func TestParseOperation(t *testing.T) {
	for in, want := range map[string]Operation{"pp": OpPicture, "vv": OpVideo, "ava": OpAudio, "ava_cut": OpCut, "Mux": OpMux} {
		got, err := ParseOperation(in)
		if err != nil || got != want {
			t.Errorf("ParseOperation(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseOperation("shrink"); err == nil {
		t.Fatal("expected error for unknown operation")
	}
}

func TestRunCopiesFilesWithinBudget(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	names := []string{"a.jpg", "b.png", "c.PNG", "d.jpeg", "e.png"}
	for i, name := range names {
		writeNoisePNG(t, filepath.Join(in, name), 16, 16, int64(i))
	}
	writeBytes(t, filepath.Join(in, Sentinel), nil)
	writeBytes(t, filepath.Join(in, "readme.txt"), []byte("not a picture"))

	updates := make(chan ProgressUpdate, 32)
	summary, results, err := Run(context.Background(), pictureOptions(in, out, 1024*1024), updates)
	close(updates)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(results) != 5 || summary.Total != 5 || summary.Copied != 5 {
		t.Fatalf("results=%d summary=%+v", len(results), summary)
	}
	for _, res := range results {
		if res.Status != StatusCopied {
			t.Fatalf("%s: status %s (%v)", res.Job.Name, res.Status, res.Err)
		}
		original, _ := os.ReadFile(res.Job.Path)
		copied, err := os.ReadFile(filepath.Join(out, res.Job.Name))
		if err != nil {
			t.Fatalf("read copy: %v", err)
		}
		if !bytes.Equal(original, copied) {
			t.Fatalf("%s: copy is not byte-identical", res.Job.Name)
		}
	}
	for _, name := range []string{Sentinel, "readme.txt"} {
		if _, err := os.Stat(filepath.Join(out, name)); !os.IsNotExist(err) {
			t.Fatalf("%s should not be touched", name)
		}
	}

	total, finished := 0, 0
	for u := range updates {
		total += u.TotalDelta
		if u.Result != nil {
			finished++
		}
	}
	if total != 5 || finished != 5 {
		t.Fatalf("updates total=%d finished=%d", total, finished)
	}
}

func TestRunConvertsUnderBudget(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	writeTexturePNG(t, filepath.Join(in, "big.png"), 300, 200, 1, 24)

	target := int64(20 * 1024)
	for _, strategy := range []search.Strategy{search.StrategyDownscale, search.StrategyQuality} {
		opts := pictureOptions(in, out, target)
		opts.Search = search.DefaultParams(strategy, codec.FormatJPEG)

		_, results, err := Run(context.Background(), opts, nil)
		if err != nil {
			t.Fatalf("%s: run: %v", strategy, err)
		}
		res := results[0]
		if res.Status == StatusWarning {
			continue
		}
		if res.Status != StatusConverted {
			t.Fatalf("%s: status %s (%v)", strategy, res.Status, res.Err)
		}
		if res.Output != filepath.Join(out, "big.jpeg") {
			t.Fatalf("%s: output %s", strategy, res.Output)
		}
		info, err := os.Stat(res.Output)
		if err != nil {
			t.Fatalf("%s: stat: %v", strategy, err)
		}
		if info.Size() > target || info.Size() != res.Size {
			t.Fatalf("%s: size %d (reported %d) over target %d", strategy, info.Size(), res.Size, target)
		}
		if res.Iterations < 1 || res.Iterations > opts.Search.MaxIterations {
			t.Fatalf("%s: iterations %d", strategy, res.Iterations)
		}
	}
}

func TestRunIsIdempotent(t *testing.T) {
	in := t.TempDir()
	writeNoisePNG(t, filepath.Join(in, "one.png"), 200, 150, 2)
	writeNoisePNG(t, filepath.Join(in, "two.png"), 120, 90, 3)

	sizes := func() map[string]int64 {
		out := t.TempDir()
		_, results, err := Run(context.Background(), pictureOptions(in, out, 16*1024), nil)
		if err != nil {
			t.Fatalf("run: %v", err)
		}
		m := make(map[string]int64)
		for _, res := range results {
			m[res.Job.Name] = res.Size
		}
		return m
	}

	first, second := sizes(), sizes()
	for name, size := range first {
		if second[name] != size {
			t.Fatalf("%s: %d then %d", name, size, second[name])
		}
	}
}

func TestRunTwoWorkersIndependentOutputs(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	writeTexturePNG(t, filepath.Join(in, "large.png"), 320, 240, 4, 24)
	writeNoisePNG(t, filepath.Join(in, "small.png"), 64, 48, 5)

	opts := pictureOptions(in, out, 12*1024)
	opts.Workers = 2
	opts.Search = search.DefaultParams(search.StrategyDownscale, codec.FormatJPEG)

	_, results, err := Run(context.Background(), opts, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results", len(results))
	}
	for _, res := range results {
		if res.Status != StatusConverted && res.Status != StatusCopied {
			t.Fatalf("%s: status %s (%v)", res.Job.Name, res.Status, res.Err)
		}
		info, err := os.Stat(res.Output)
		if err != nil {
			t.Fatalf("%s: %v", res.Job.Name, err)
		}
		if info.Size() > opts.Target {
			t.Fatalf("%s: %d over target", res.Job.Name, info.Size())
		}
	}
}

func TestRunOverBudgetPolicy(t *testing.T) {
	in := t.TempDir()
	writeNoisePNG(t, filepath.Join(in, "stubborn.png"), 300, 200, 6)
	target := int64(200)

	rejectOut := t.TempDir()
	opts := pictureOptions(in, rejectOut, target)
	opts.Search = search.DefaultParams(search.StrategyDownscale, codec.FormatJPEG)
	_, results, err := Run(context.Background(), opts, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	res := results[0]
	if res.Status != StatusWarning || !errors.Is(res.Err, search.ErrBudgetUnreachable) {
		t.Fatalf("expected budget warning, got %s (%v)", res.Status, res.Err)
	}
	if res.Output != "" {
		t.Fatalf("reject policy wrote %s", res.Output)
	}
	if entries, _ := os.ReadDir(rejectOut); len(entries) != 0 {
		t.Fatalf("reject policy left %d files", len(entries))
	}

	bestOut := t.TempDir()
	opts.OutputDir = bestOut
	opts.Policy = PolicyBestEffort
	opts.Search = search.DefaultParams(search.StrategyQuality, codec.FormatJPEG)
	_, results, err = Run(context.Background(), opts, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	res = results[0]
	if res.Status != StatusWarning || res.SearchStatus != search.StatusFallback {
		t.Fatalf("expected fallback warning, got %s/%s", res.Status, res.SearchStatus)
	}
	info, err := os.Stat(res.Output)
	if err != nil {
		t.Fatalf("best effort output missing: %v", err)
	}
	if info.Size() <= target {
		t.Fatalf("expected over-budget artifact, got %d bytes", info.Size())
	}
}

func TestRunIsolatesFailures(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	writeBytes(t, filepath.Join(in, "broken.jpg"), bytes.Repeat([]byte("garbage!"), 200))
	writeNoisePNG(t, filepath.Join(in, "fine.png"), 8, 8, 7)
	writeNoisePNG(t, filepath.Join(in, "fine.jpg"), 8, 8, 8)

	_, results, err := Run(context.Background(), pictureOptions(in, out, 1000), nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	byName := map[string]JobResult{}
	for _, res := range results {
		byName[res.Job.Name] = res
	}

	broken := byName["broken.jpg"]
	if broken.Status != StatusError || !IsDecodeError(broken) {
		t.Fatalf("broken.jpg: %s (%v)", broken.Status, broken.Err)
	}
	if _, err := os.Stat(filepath.Join(out, "broken.jpeg")); !os.IsNotExist(err) {
		t.Fatal("no output expected for an undecodable file")
	}
	for _, name := range []string{"fine.jpg", "fine.png"} {
		if byName[name].Status != StatusCopied {
			t.Fatalf("%s: %s (%v)", name, byName[name].Status, byName[name].Err)
		}
	}
}

func TestRunCopiesFilesSharingStem(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	writeBytes(t, filepath.Join(in, "a.jpg"), []byte("jpg!"))
	writeBytes(t, filepath.Join(in, "a.png"), []byte("png!"))

	summary, results, err := Run(context.Background(), pictureOptions(in, out, 1000), nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Copied != 2 || summary.Errors != 0 {
		t.Fatalf("summary = %+v", summary)
	}
	for _, res := range results {
		if res.Status != StatusCopied {
			t.Fatalf("%s: %s (%v)", res.Job.Name, res.Status, res.Err)
		}
		got, err := os.ReadFile(filepath.Join(out, res.Job.Name))
		if err != nil {
			t.Fatalf("read %s: %v", res.Job.Name, err)
		}
		if string(got) != res.Job.Name[2:]+"!" {
			t.Fatalf("%s holds %q", res.Job.Name, got)
		}
	}
}

func TestRunConflictOnSharedDestination(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	// a.png is over budget and encodes to a.jpeg, which a.jpeg itself
	// already takes by being copied.
	writeBytes(t, filepath.Join(in, "a.jpeg"), []byte("small"))
	writeNoisePNG(t, filepath.Join(in, "a.png"), 40, 40, 3)

	_, results, err := Run(context.Background(), pictureOptions(in, out, 1000), nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	byName := map[string]JobResult{}
	for _, res := range results {
		byName[res.Job.Name] = res
	}
	if byName["a.jpeg"].Status != StatusCopied {
		t.Fatalf("a.jpeg: %s (%v)", byName["a.jpeg"].Status, byName["a.jpeg"].Err)
	}
	if res := byName["a.png"]; res.Status != StatusError || !errors.Is(res.Err, ErrConflict) {
		t.Fatalf("a.png should lose a.jpeg to the copy, got %s (%v)", res.Status, res.Err)
	}
	got, err := os.ReadFile(filepath.Join(out, "a.jpeg"))
	if err != nil || string(got) != "small" {
		t.Fatalf("a.jpeg overwritten: %q %v", got, err)
	}
}

func TestRunPreconditions(t *testing.T) {
	out := t.TempDir()

	_, _, err := Run(context.Background(), pictureOptions(filepath.Join(out, "missing"), out, 1024), nil)
	if !errors.Is(err, ErrConfig) {
		t.Fatalf("missing input: expected ErrConfig, got %v", err)
	}

	_, _, err = Run(context.Background(), pictureOptions(t.TempDir(), out, 0), nil)
	if !errors.Is(err, ErrConfig) {
		t.Fatalf("zero target: expected ErrConfig, got %v", err)
	}

	opts := Options{Operation: OpCut, InputDir: t.TempDir(), OutputDir: out, Runner: &fakeRunner{}}
	if _, _, err := Run(context.Background(), opts, nil); !errors.Is(err, ErrConfig) {
		t.Fatalf("cut without range: expected ErrConfig, got %v", err)
	}
}

func TestRunCreatesOutputDir(t *testing.T) {
	in := t.TempDir()
	out := filepath.Join(t.TempDir(), "converted", "nested")
	writeNoisePNG(t, filepath.Join(in, "a.png"), 4, 4, 9)

	if _, _, err := Run(context.Background(), pictureOptions(in, out, 1024*1024), nil); err != nil {
		t.Fatalf("run: %v", err)
	}
	if _, err := os.Stat(filepath.Join(out, "a.png")); err != nil {
		t.Fatalf("expected copy in new output dir: %v", err)
	}
}

func TestRunResumeSkipsUnchanged(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	writeTexturePNG(t, filepath.Join(in, "again.png"), 200, 150, 10, 24)

	journal := newMemoryJournal()
	opts := pictureOptions(in, out, 16*1024)
	opts.Search = search.DefaultParams(search.StrategyDownscale, codec.FormatJPEG)
	opts.Journal = journal
	opts.Variant = "quality/jpeg"

	_, first, err := Run(context.Background(), opts, nil)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if first[0].Status != StatusConverted || first[0].Fingerprint == "" {
		t.Fatalf("first run: %s fingerprint=%q (%v)", first[0].Status, first[0].Fingerprint, first[0].Err)
	}

	opts.Resume = true
	_, second, err := Run(context.Background(), opts, nil)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second[0].Status != StatusSkipped || second[0].Size != first[0].Size {
		t.Fatalf("second run: %s size %d", second[0].Status, second[0].Size)
	}

	opts.Target = 15 * 1024
	_, third, err := Run(context.Background(), opts, nil)
	if err != nil {
		t.Fatalf("third run: %v", err)
	}
	if third[0].Status == StatusSkipped {
		t.Fatal("a different target must not reuse the previous output")
	}
}

func TestRunExternalOperations(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	for _, name := range []string{"clip.mp4", "clip.m4a", "talk.webm", "talk.m4a", Sentinel} {
		writeBytes(t, filepath.Join(in, name), []byte("media"))
	}

	runner := &fakeRunner{}
	opts := Options{Operation: OpMux, InputDir: in, OutputDir: out, Runner: runner, Workers: 2}
	_, results, err := Run(context.Background(), opts, nil)
	if err != nil {
		t.Fatalf("mux: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("mux results = %d", len(results))
	}
	for _, res := range results {
		if res.Status != StatusConverted || filepath.Ext(res.Output) != ".mkv" {
			t.Fatalf("%s: %s %s (%v)", res.Job.Name, res.Status, res.Output, res.Err)
		}
	}

	if len(runner.calls) != 2 || runner.calls[0][0] != "ffmpeg" {
		t.Fatalf("unexpected calls %v", runner.calls)
	}

	audioIn := t.TempDir()
	for _, name := range []string{"a.mp4", "b.flac", "c.webm"} {
		writeBytes(t, filepath.Join(audioIn, name), []byte("media"))
	}
	opts = Options{Operation: OpAudio, InputDir: audioIn, OutputDir: t.TempDir(), Workers: 2, Runner: &fakeRunner{fail: "c.webm"}}
	_, results, err = Run(context.Background(), opts, nil)
	if err != nil {
		t.Fatalf("audio: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("audio results = %d", len(results))
	}
	for _, res := range results {
		failed := res.Job.Name == "c.webm"
		if failed != (res.Status == StatusError) {
			t.Fatalf("%s: status %s (%v)", res.Job.Name, res.Status, res.Err)
		}
		if !failed && filepath.Ext(res.Output) != ".mp3" {
			t.Fatalf("%s: output %s", res.Job.Name, res.Output)
		}
	}
	if _, err := os.Stat(filepath.Join(opts.OutputDir, "c.mp3")); !os.IsNotExist(err) {
		t.Fatal("failed job left a partial output")
	}
}

func TestRunMuxRejectsUnpaired(t *testing.T) {
	in := t.TempDir()
	writeBytes(t, filepath.Join(in, "lonely.webm"), []byte("v"))

	opts := Options{Operation: OpMux, InputDir: in, OutputDir: t.TempDir(), Runner: &fakeRunner{}}
	if _, _, err := Run(context.Background(), opts, nil); !errors.Is(err, ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
}

func pictureOptions(in, out string, target int64) Options {
	return Options{
		Operation: OpPicture,
		InputDir:  in,
		OutputDir: out,
		Workers:   2,
		Target:    target,
		Search:    search.DefaultParams(search.StrategyQuality, codec.FormatJPEG),
		Prober:    codec.ImagingProber{MinDimension: 1},
	}
}

func writeBytes(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func writeNoisePNG(t *testing.T, path string, w, h int, seed int64) {
	t.Helper()
	writeTexturePNG(t, path, w, h, seed, 128)
}

// writeTexturePNG draws a diagonal gradient with +/-amp of noise per channel.
func writeTexturePNG(t *testing.T, path string, w, h int, seed int64, amp int) {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			base := (x + y) * 255 / (w + h)
			i := img.PixOffset(x, y)
			for c := 0; c < 3; c++ {
				v := base + rng.Intn(2*amp+1) - amp
				if v < 0 {
					v = 0
				} else if v > 255 {
					v = 255
				}
				img.Pix[i+c] = uint8(v)
			}
			img.Pix[i+3] = 0xff
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	writeBytes(t, path, buf.Bytes())
}

// fakeRunner writes a placeholder to the last argument, which is the
// output path for every command builder.
type fakeRunner struct {
	mu    sync.Mutex
	calls [][]string
	fail  string
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) error {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string{name}, args...))
	f.mu.Unlock()

	for _, arg := range args {
		if f.fail != "" && filepath.Base(arg) == f.fail {
			return errors.New("transcoder failed")
		}
	}
	return os.WriteFile(args[len(args)-1], []byte("out"), 0o644)
}

type memoryJournal struct {
	mu      sync.Mutex
	entries map[string]JournalEntry
}

func newMemoryJournal() *memoryJournal {
	return &memoryJournal{entries: map[string]JournalEntry{}}
}

func journalKey(fingerprint string, target int64, variant string) string {
	return fmt.Sprintf("%s|%s|%d", fingerprint, variant, target)
}

func (m *memoryJournal) Lookup(ctx context.Context, fingerprint string, target int64, variant string) (JournalEntry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[journalKey(fingerprint, target, variant)]
	return entry, ok, nil
}

func (m *memoryJournal) Record(ctx context.Context, runID, variant string, res JobResult) error {
	if res.Status != StatusConverted || res.Fingerprint == "" {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[journalKey(res.Fingerprint, res.Target, variant)] = JournalEntry{Output: res.Output, Size: res.Size}
	return nil
}
