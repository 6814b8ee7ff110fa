package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"filechain/internal/api"
	"filechain/internal/format"
)

var outputFormatter format.Formatter = format.JSONFormatter{}

var stdout io.Writer = os.Stdout

func writeJSON(payload any) error {
	return outputFormatter.Write(stdout, payload)
}

func writePlain(format string, args ...any) error {
	_, err := fmt.Fprintf(stdout, format, args...)
	return err
}

func writeFileList(files []api.FileRecord) error {
	for _, file := range files {
		if err := writePlain("%s\n", formatFileLine(file)); err != nil {
			return err
		}
	}
	return nil
}

func writeTransactionList(txs []api.TransactionRecord) error {
	for _, tx := range txs {
		if err := writePlain("%s\n", formatTransactionLine(tx)); err != nil {
			return err
		}
	}
	return nil
}

func writeFileDetail(file api.FileRecord) error {
	lines := []string{
		fmt.Sprintf("hash: %s", file.ContentHash),
		fmt.Sprintf("id: %s", file.ID),
		fmt.Sprintf("filename: %s", file.Filename),
		fmt.Sprintf("size: %d", file.SizeBytes),
		fmt.Sprintf("type: %s", file.MediaType),
		fmt.Sprintf("version: %d", file.Version),
		fmt.Sprintf("status: %s", file.Status),
		fmt.Sprintf("user_id: %s", file.OwnerID),
		fmt.Sprintf("upload_date: %s", formatTime(file.CreatedAt)),
	}
	if file.TransactionHash != "" {
		lines = append(lines, fmt.Sprintf("tx_hash: %s", file.TransactionHash))
	}
	return writePlain("%s\n", strings.Join(lines, "\n"))
}

func writeTransactionDetail(tx api.TransactionRecord) error {
	lines := []string{
		fmt.Sprintf("tx_hash: %s", tx.TransactionHash),
		fmt.Sprintf("file_id: %s", tx.FileID),
		fmt.Sprintf("hash: %s", tx.ContentHash),
		fmt.Sprintf("filename: %s", tx.Filename),
		fmt.Sprintf("size: %d", tx.SizeBytes),
		fmt.Sprintf("version: %d", tx.Version),
		fmt.Sprintf("user_id: %s", tx.OwnerID),
		fmt.Sprintf("timestamp: %s", formatTime(tx.CreatedAt)),
	}
	return writePlain("%s\n", strings.Join(lines, "\n"))
}

func formatFileLine(file api.FileRecord) string {
	return fmt.Sprintf("%s v%d [%s] %s (%s, %s)", shortHash(file.ContentHash), file.Version, file.Status, file.Filename, formatSize(file.SizeBytes), formatTime(file.CreatedAt))
}

func formatTransactionLine(tx api.TransactionRecord) string {
	return fmt.Sprintf("%s %s v%d %s (%s)", shortHash(tx.TransactionHash), shortHash(tx.ContentHash), tx.Version, tx.Filename, formatTime(tx.CreatedAt))
}

func shortHash(hash string) string {
	if len(hash) <= 12 {
		return hash
	}
	return hash[:12]
}

func formatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
