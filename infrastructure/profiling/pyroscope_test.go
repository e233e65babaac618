package profiling_test

import (
	"testing"

	"github.com/jonesrussell/finblog/infrastructure/profiling"
)

func TestStart_Disabled(t *testing.T) {
	t.Parallel()

	p, err := profiling.Start(profiling.Config{}, "api", "dev")
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if p != nil {
		t.Fatal("Start() returned a profiler while disabled")
	}
	if err = p.Stop(); err != nil {
		t.Errorf("Stop() on nil profiler error = %v", err)
	}
}
