package audit

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ExportFormat selects the serialization of Export.
type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatJSON ExportFormat = "json"
)

// Export serializes the currently retained records. An unknown format
// is a caller programming error and returns an error rather than a
// best-effort guess.
func (l *Log) Export(format ExportFormat) (string, error) {
	records := l.Snapshot()

	switch format {
	case FormatJSON:
		raw, err := json.MarshalIndent(records, "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to marshal audit records: %w", err)
		}
		return string(raw), nil

	case FormatCSV:
		var sb strings.Builder
		w := csv.NewWriter(&sb)
		if err := w.Write([]string{"id", "timestamp", "type", "subject_id", "subject_type", "status", "message", "confidence", "context", "location"}); err != nil {
			return "", fmt.Errorf("failed to write csv header: %w", err)
		}
		for _, rec := range records {
			confidence := ""
			if v, ok := rec.ConfidenceValue(); ok {
				confidence = strconv.Itoa(v)
			}
			row := []string{
				rec.ID,
				rec.Timestamp.Format(time.RFC3339),
				string(rec.Type),
				rec.SubjectID,
				string(rec.SubjectType),
				string(rec.Status),
				rec.Message,
				confidence,
				rec.Metadata.Context,
				rec.Metadata.Location,
			}
			if err := w.Write(row); err != nil {
				return "", fmt.Errorf("failed to write csv row: %w", err)
			}
		}
		w.Flush()
		if err := w.Error(); err != nil {
			return "", fmt.Errorf("failed to flush csv: %w", err)
		}
		return sb.String(), nil

	default:
		return "", fmt.Errorf("unsupported export format %q", format)
	}
}
