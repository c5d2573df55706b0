package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultDataDirOverrides(t *testing.T) {
	tests := []struct {
		name     string
		env      map[string]string
		expected string
	}{
		{
			name:     "explicit data dir",
			env:      map[string]string{"XWORK_DATA_DIR": "/srv/xwork", "XDG_DATA_HOME": "/custom/data"},
			expected: "/srv/xwork",
		},
		{
			name:     "XDG_DATA_HOME",
			env:      map[string]string{"XDG_DATA_HOME": "/custom/data"},
			expected: "/custom/data/xwork",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("XWORK_DATA_DIR", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if got := DefaultDataDir(); got != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestDefaultDataDirNoHome(t *testing.T) {
	t.Setenv("XWORK_DATA_DIR", "")
	t.Setenv("HOME", "")
	if got := DefaultDataDir(); got != "./data" {
		t.Errorf("expected fallback to './data', got %s", got)
	}
}

func TestDefaultDataDirShape(t *testing.T) {
	t.Setenv("XWORK_DATA_DIR", "")
	result := DefaultDataDir()
	if !filepath.IsAbs(result) && !strings.HasPrefix(result, "./") {
		t.Errorf("expected absolute path or ./ prefix, got %s", result)
	}
	if result != "./data" && !strings.HasSuffix(strings.ToLower(result), "xwork") {
		t.Errorf("expected xwork in the path, got %s", result)
	}
	if DefaultDataDir() != result {
		t.Errorf("DefaultDataDir should be stable")
	}
}

func TestIsDir(t *testing.T) {
	if !isDir(".") {
		t.Fatalf("cwd should be a dir")
	}
	if isDir("/non/existent/path/that/does/not/exist") {
		t.Fatalf("missing path is not a dir")
	}
	if isDir(os.Args[0]) {
		t.Fatalf("test binary is not a dir")
	}
}
