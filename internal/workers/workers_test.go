package workers

import (
	"runtime"
	"testing"
)

func TestCountRequestedWins(t *testing.T) {
	t.Setenv(EnvOverride, "7")
	if got := Count(3, 1); got != 3 {
		t.Fatalf("Count(3) = %d, want 3", got)
	}
}

func TestCountEnvOverride(t *testing.T) {
	t.Setenv(EnvOverride, "5")
	if got := ForEncode(0); got != 5 {
		t.Fatalf("ForEncode = %d, want 5", got)
	}
}

func TestCountIgnoresInvalidEnv(t *testing.T) {
	t.Setenv(EnvOverride, "zero")
	want := runtime.GOMAXPROCS(0) - 1
	if want < 1 {
		want = 1
	}
	if got := ForEncode(0); got != want {
		t.Fatalf("ForEncode = %d, want %d", got, want)
	}
}

func TestCountFloor(t *testing.T) {
	t.Setenv(EnvOverride, "")
	if got := Count(0, 1<<20); got != 1 {
		t.Fatalf("Count with huge reserve = %d, want 1", got)
	}
	if got := ForExternal(0); got < 1 {
		t.Fatalf("ForExternal = %d, want >= 1", got)
	}
}
