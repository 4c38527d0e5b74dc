package history

import (
	"database/sql"
	"fmt"
	"time"
)

const runColumns = "id, run_id, task, source_url, title, backend, started_at, finished_at, cover_path, download_mode, attempts, segments, bytes_captured, outcome, error_message"

func scanRun(scanner interface{ Scan(dest ...any) error }) (*Run, error) {
	var (
		run          Run
		title        sql.NullString
		backend      sql.NullString
		startedRaw   string
		finishedRaw  string
		coverPath    sql.NullString
		downloadMode int64
		outcome      string
		errorMessage sql.NullString
	)
	if err := scanner.Scan(
		&run.ID,
		&run.RunID,
		&run.Task,
		&run.SourceURL,
		&title,
		&backend,
		&startedRaw,
		&finishedRaw,
		&coverPath,
		&downloadMode,
		&run.Attempts,
		&run.Segments,
		&run.BytesCaptured,
		&outcome,
		&errorMessage,
	); err != nil {
		return nil, err
	}
	var err error
	if run.StartedAt, err = time.Parse(time.RFC3339Nano, startedRaw); err != nil {
		return nil, fmt.Errorf("parse started_at: %w", err)
	}
	if run.FinishedAt, err = time.Parse(time.RFC3339Nano, finishedRaw); err != nil {
		return nil, fmt.Errorf("parse finished_at: %w", err)
	}
	run.Title = title.String
	run.Backend = backend.String
	run.CoverPath = coverPath.String
	run.DownloadMode = downloadMode != 0
	run.Outcome = Outcome(outcome)
	run.ErrorMessage = errorMessage.String
	return &run, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
