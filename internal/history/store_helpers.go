package history

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(scanner rowScanner) (*Run, error) {
	var (
		run        Run
		dialog     sql.NullString
		rigPath    sql.NullString
		recognizer sql.NullString
		unmapped   sql.NullString
		errText    sql.NullString
		startedAt  string
		finishedAt sql.NullString
	)
	if err := scanner.Scan(
		&run.ID,
		&run.RunID,
		&run.Mode,
		&run.AudioFile,
		&dialog,
		&rigPath,
		&recognizer,
		&run.Status,
		&run.CueCount,
		&run.KeyCount,
		&run.HoldCount,
		&run.FirstFrame,
		&run.LastFrame,
		&unmapped,
		&errText,
		&startedAt,
		&finishedAt,
	); err != nil {
		return nil, err
	}
	run.DialogFile = dialog.String
	run.RigPath = rigPath.String
	run.Recognizer = recognizer.String
	run.ErrorText = errText.String
	if unmapped.Valid && unmapped.String != "" {
		if err := json.Unmarshal([]byte(unmapped.String), &run.Unmapped); err != nil {
			return nil, fmt.Errorf("decode unmapped labels for %s: %w", run.RunID, err)
		}
	}
	run.StartedAt = parseTimestamp(startedAt)
	if finishedAt.Valid {
		run.FinishedAt = parseTimestamp(finishedAt.String)
	}
	return &run, nil
}

func parseTimestamp(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	ts, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return ts
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}

// timestampLayout is fixed width so stored timestamps compare lexically.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"
