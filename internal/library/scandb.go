package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	_ "modernc.org/sqlite"

	"beatcut/internal/services"
)

const scanQuery = `SELECT id, video_path, video_name, size_bytes, codec, resolution, pmv_list, comments
FROM sources ORDER BY id`

// LoadScanDB reads clip rows from the SQLite database maintained by the
// external library scanner. The database is opened read-only.
func LoadScanDB(ctx context.Context, path string) ([]Clip, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, services.Wrap(services.ErrLibrary, "library", "open scan db", "Scan database missing", err)
	}
	if info.IsDir() {
		return nil, services.Wrap(services.ErrLibrary, "library", "open scan db",
			fmt.Sprintf("%s is a directory", path), nil)
	}

	dsn := "file:" + path + "?mode=ro&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, services.Wrap(services.ErrLibrary, "library", "open scan db", "Scan database unreadable", err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, scanQuery)
	if err != nil {
		return nil, services.Wrap(services.ErrLibrary, "library", "query scan db", "Scan database is corrupt or has no sources table", err)
	}
	defer rows.Close()

	var clips []Clip
	for rows.Next() {
		var (
			id                            int64
			videoPath                     string
			name, codec, resolution, pmvs sql.NullString
			comments                      sql.NullString
			size                          sql.NullInt64
		)
		if err := rows.Scan(&id, &videoPath, &name, &size, &codec, &resolution, &pmvs, &comments); err != nil {
			return nil, services.Wrap(services.ErrLibrary, "library", "scan row", "Scan database row is corrupt", err)
		}
		videoPath = strings.TrimSpace(videoPath)
		if videoPath == "" {
			continue
		}
		width, height := parseResolution(resolution.String)
		clip := Clip{
			ID:        fmt.Sprintf("src-%d", id),
			Path:      videoPath,
			Name:      strings.TrimSpace(name.String),
			Width:     width,
			Height:    height,
			Codec:     strings.ToLower(strings.TrimSpace(codec.String)),
			SizeBytes: size.Int64,
		}
		if clip.Name == "" {
			clip.Name = filepath.Base(videoPath)
		}
		clip.Tags = scanTags(comments.String, clip.Codec, height)
		clips = append(clips, clip)
	}
	if err := rows.Err(); err != nil {
		return nil, services.Wrap(services.ErrLibrary, "library", "scan rows", "Scan database is corrupt", err)
	}
	if len(clips) == 0 {
		return nil, services.Wrap(services.ErrLibrary, "library", "query scan db", "Scan database lists no clips", errors.New("sources table is empty"))
	}
	return clips, nil
}

// parseResolution accepts "1920x1080" style values.
func parseResolution(value string) (int, int) {
	value = strings.ToLower(strings.TrimSpace(value))
	w, h, ok := strings.Cut(value, "x")
	if !ok {
		return 0, 0
	}
	width, err := strconv.Atoi(strings.TrimSpace(w))
	if err != nil {
		return 0, 0
	}
	height, err := strconv.Atoi(strings.TrimSpace(h))
	if err != nil {
		return 0, 0
	}
	return width, height
}

// scanTags derives tags from free-form scanner comments plus codec and
// resolution class.
func scanTags(comments, codec string, height int) []string {
	tokens := strings.FieldsFunc(comments, func(r rune) bool {
		return unicode.IsSpace(r) || r == ',' || r == ';' || r == '#'
	})
	if codec != "" {
		tokens = append(tokens, codec)
	}
	if tag := heightTag(height); tag != "" {
		tokens = append(tokens, tag)
	}
	return normalizeTags(tokens)
}
