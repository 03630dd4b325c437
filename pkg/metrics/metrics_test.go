package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRecordContainerOp(t *testing.T) {
	RecordContainerOp("stop", errors.New("boom"))
	RecordContainerOp("stop", nil)

	path := filepath.Join(t.TempDir(), "ops.prom")
	if err := WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	for _, want := range []string{
		`exadt_container_operations_total{op="stop",status="error"}`,
		`exadt_container_operations_total{op="stop",status="success"}`,
	} {
		if !strings.Contains(string(data), want) {
			t.Errorf("metrics file does not contain %q", want)
		}
	}
}

func TestWriteTextfile(t *testing.T) {
	ExaconfCommits.Inc()
	ExaconfRevision.WithLabelValues("test").Set(3)

	path := filepath.Join(t.TempDir(), "exadt.prom")
	if err := WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	for _, want := range []string{
		"exadt_exaconf_commits_total",
		`exadt_exaconf_revision{cluster="test"} 3`,
	} {
		if !strings.Contains(string(data), want) {
			t.Errorf("metrics file does not contain %q", want)
		}
	}
}

func TestWriteTextfileBadPath(t *testing.T) {
	if err := WriteTextfile(filepath.Join(t.TempDir(), "missing", "exadt.prom")); err == nil {
		t.Error("WriteTextfile() into missing directory succeeded")
	}
}
