package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"filechain/internal/api"
	"filechain/internal/format"
	"filechain/internal/models"
)

func captureStdout(t *testing.T) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	prev := stdout
	stdout = buf
	t.Cleanup(func() { stdout = prev })
	return buf
}

func TestFormatSize(t *testing.T) {
	tests := map[int64]string{
		0:           "0 B",
		1023:        "1023 B",
		1024:        "1.0 KiB",
		1536:        "1.5 KiB",
		5 * 1 << 20: "5.0 MiB",
	}
	for in, want := range tests {
		if got := formatSize(in); got != want {
			t.Fatalf("formatSize(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestWriteFileList(t *testing.T) {
	buf := captureStdout(t)
	files := []api.FileRecord{{
		ContentHash: strings.Repeat("ab", 32),
		Filename:    "report.pdf",
		SizeBytes:   1024,
		Version:     1,
		Status:      models.FileStatusVerified,
		CreatedAt:   time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}}
	if err := writeFileList(files); err != nil {
		t.Fatalf("write list: %v", err)
	}
	want := "abababababab v1 [verified] report.pdf (1.0 KiB, 2025-03-01T12:00:00Z)\n"
	if buf.String() != want {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestWriteJSONUsesFormatter(t *testing.T) {
	buf := captureStdout(t)
	prev := outputFormatter
	outputFormatter = format.YAMLFormatter{}
	t.Cleanup(func() { outputFormatter = prev })

	if err := writeJSON(api.FileRecord{Filename: "report.pdf", Version: 1}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !strings.Contains(buf.String(), "filename: report.pdf") {
		t.Fatalf("expected yaml output, got %q", buf.String())
	}
}
