package project

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
)

var musicExtensions = []string{".mp3", ".wav", ".flac", ".m4a"}

// MusicFile is an audio file found in the music directory.
type MusicFile struct {
	Name      string
	Path      string
	SizeBytes int64
}

// ListMusic returns the audio files directly inside dir, sorted by name. A
// missing directory yields an empty list.
func ListMusic(dir string) ([]MusicFile, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list music directory: %w", err)
	}
	var files []MusicFile
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !slices.Contains(musicExtensions, strings.ToLower(filepath.Ext(entry.Name()))) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, MusicFile{Name: entry.Name(), Path: filepath.Join(dir, entry.Name()), SizeBytes: info.Size()})
	}
	slices.SortFunc(files, func(a, b MusicFile) int { return strings.Compare(a.Name, b.Name) })
	return files, nil
}

// ResolveAudio maps ref to an audio path. An existing file wins; otherwise
// ref is tried as a file name inside musicDir, then as a 1-based number
// from ListMusic.
func ResolveAudio(musicDir, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", errors.New("audio file is required")
	}
	if info, err := os.Stat(ref); err == nil && !info.IsDir() {
		return ref, nil
	}
	if musicDir != "" && !strings.ContainsRune(ref, filepath.Separator) {
		candidate := filepath.Join(musicDir, ref)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
		if n, err := strconv.Atoi(ref); err == nil {
			files, err := ListMusic(musicDir)
			if err != nil {
				return "", err
			}
			if n < 1 || n > len(files) {
				return "", fmt.Errorf("track number %d out of range (music directory has %d tracks)", n, len(files))
			}
			return files[n-1].Path, nil
		}
	}
	return ref, nil
}
