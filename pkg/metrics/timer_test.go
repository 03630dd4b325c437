package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestTimerDuration(t *testing.T) {
	timer := NewTimer()
	time.Sleep(20 * time.Millisecond)

	if d := timer.Duration(); d < 20*time.Millisecond {
		t.Errorf("Duration() = %v, want >= 20ms", d)
	}
}

func TestObserveOperation(t *testing.T) {
	timer := NewTimer()
	timer.ObserveOperation("start_cluster")
	timer.ObserveOperation("start_cluster")

	path := filepath.Join(t.TempDir(), "ops.prom")
	if err := WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	want := `exadt_operation_duration_seconds_count{op="start_cluster"} 2`
	if !strings.Contains(string(data), want) {
		t.Errorf("metrics file does not contain %q", want)
	}
}
