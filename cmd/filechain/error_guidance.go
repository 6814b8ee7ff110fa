package main

import (
	"context"
	"errors"
	"net"

	"filechain/internal/api"
)

func formatCLIError(err error) []string {
	if err == nil {
		return nil
	}

	lines := []string{err.Error()}

	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case "forbidden":
			lines = append(lines, "hint: admin commands need FILECHAIN_ADMIN_TOKEN to match the server.")
		case "resource_exhausted":
			lines = append(lines, "hint: retry shortly; admin sweeps and exports run one at a time.")
		case "not_found":
			lines = append(lines, "hint: list known hashes with: filechain files --user <id>")
		}
		if apiErr.Code == "" {
			lines = append(lines, "hint: verify FILECHAIN_API_URL points to a filechain server.")
		}
		if apiErr.Status >= 500 {
			lines = append(lines, "hint: server returned an internal error; check server logs for details.")
		}
		return uniqueLines(lines)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		lines = append(lines, "hint: request timed out; check server health or increase FILECHAIN_HTTP_TIMEOUT.")
		return uniqueLines(lines)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		lines = append(lines,
			"hint: ensure a filechain server is running at FILECHAIN_API_URL.",
			"hint: start local server manually with: filechain srv",
			"hint: you can increase FILECHAIN_HTTP_TIMEOUT for slower environments.",
		)
		return uniqueLines(lines)
	}

	return uniqueLines(lines)
}

func uniqueLines(lines []string) []string {
	seen := make(map[string]struct{}, len(lines))
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line == "" {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	return out
}
