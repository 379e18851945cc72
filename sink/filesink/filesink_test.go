package filesink

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSendAppendsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	s, err := New(path)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	if ok, err := s.Send([]any{map[string]string{"a": "1"}}); err != nil || !ok {
		t.Fatalf("send failed: ok=%v err=%v", ok, err)
	}
	if ok, err := s.Send([]any{map[string]string{"b": "2"}}); err != nil || !ok {
		t.Fatalf("send failed: ok=%v err=%v", ok, err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading file: %v", err)
	}
	if !strings.Contains(string(data), `"a":"1"`) || !strings.Contains(string(data), `"b":"2"`) {
		t.Fatalf("expected both records appended, got %q", string(data))
	}
}

func TestNewDefaultsPath(t *testing.T) {
	cwd, _ := os.Getwd()
	t.Chdir(t.TempDir())
	defer t.Chdir(cwd)

	s, err := New("")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer s.Close()
	if _, err := os.Stat("alerts.log"); err != nil {
		t.Fatalf("expected default alerts.log to be created: %v", err)
	}
}
