package main

import (
	"context"
	"fmt"
	"net"
	"testing"

	"filechain/internal/api"
)

func TestFormatCLIError_NetworkGuidance(t *testing.T) {
	err := &net.DNSError{Err: "dial tcp: connection refused", Name: "127.0.0.1", IsTemporary: true}
	lines := formatCLIError(err)
	if !containsLine(lines, "hint: ensure a filechain server is running at FILECHAIN_API_URL.") {
		t.Fatalf("expected connectivity guidance, got %v", lines)
	}
	if !containsLine(lines, "hint: start local server manually with: filechain srv") {
		t.Fatalf("expected manual-start guidance, got %v", lines)
	}
}

func TestFormatCLIError_APIUnknownServiceGuidance(t *testing.T) {
	err := &api.APIError{Status: 404, Message: "api error: 404 Not Found"}
	lines := formatCLIError(err)
	if !containsLine(lines, "hint: verify FILECHAIN_API_URL points to a filechain server.") {
		t.Fatalf("expected api-url guidance, got %v", lines)
	}
}

func TestFormatCLIError_APIForbiddenGuidance(t *testing.T) {
	err := &api.APIError{Status: 403, Code: "forbidden", Message: "admin token required"}
	lines := formatCLIError(err)
	if !containsLine(lines, "hint: admin commands need FILECHAIN_ADMIN_TOKEN to match the server.") {
		t.Fatalf("expected admin token guidance, got %v", lines)
	}
}

func TestFormatCLIError_APINotFoundGuidance(t *testing.T) {
	err := &api.APIError{Status: 404, Code: "not_found", Message: "File not found"}
	lines := formatCLIError(err)
	if lines[0] != "not_found: File not found" {
		t.Fatalf("expected error first, got %v", lines)
	}
	if !containsLine(lines, "hint: list known hashes with: filechain files --user <id>") {
		t.Fatalf("expected listing guidance, got %v", lines)
	}
}

func TestFormatCLIError_APIInternalGuidance(t *testing.T) {
	err := &api.APIError{Status: 500, Code: "internal", Message: "upload failed"}
	lines := formatCLIError(err)
	if !containsLine(lines, "hint: server returned an internal error; check server logs for details.") {
		t.Fatalf("expected internal-error guidance, got %v", lines)
	}
}

func TestFormatCLIError_TimeoutGuidance(t *testing.T) {
	lines := formatCLIError(fmt.Errorf("upload: %w", context.DeadlineExceeded))
	if !containsLine(lines, "hint: request timed out; check server health or increase FILECHAIN_HTTP_TIMEOUT.") {
		t.Fatalf("expected timeout guidance, got %v", lines)
	}
}

func containsLine(lines []string, expected string) bool {
	for _, line := range lines {
		if line == expected {
			return true
		}
	}
	return false
}
