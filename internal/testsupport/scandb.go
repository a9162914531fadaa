package testsupport

import (
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"
)

// ScanRow is one row of the library scanner's sources table.
type ScanRow struct {
	Path       string
	Name       string
	SizeBytes  int64
	Codec      string
	Resolution string
	PMVList    string
	Comments   string
}

// WriteScanDB creates a scanner database at path holding rows.
func WriteScanDB(t testing.TB, path string, rows []ScanRow) {
	t.Helper()

	db, err := sql.Open("sqlite", "file:"+path)
	if err != nil {
		t.Fatalf("open scan db: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(`CREATE TABLE sources (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		video_path TEXT NOT NULL,
		video_name TEXT,
		size_bytes INTEGER,
		codec TEXT,
		resolution TEXT,
		pmv_list TEXT,
		comments TEXT
	)`); err != nil {
		t.Fatalf("create sources table: %v", err)
	}
	for _, row := range rows {
		if _, err := db.Exec(
			"INSERT INTO sources (video_path, video_name, size_bytes, codec, resolution, pmv_list, comments) VALUES (?, ?, ?, ?, ?, ?, ?)",
			row.Path, row.Name, row.SizeBytes, row.Codec, row.Resolution, row.PMVList, row.Comments,
		); err != nil {
			t.Fatalf("insert scan row: %v", err)
		}
	}
}
