package library

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"beatcut/internal/config"
	"beatcut/internal/services"
)

type catalogFile struct {
	Clips []catalogEntry `yaml:"clips"`
}

type catalogEntry struct {
	ID       string   `yaml:"id"`
	Path     string   `yaml:"path"`
	Name     string   `yaml:"name"`
	Duration float64  `yaml:"duration"`
	Width    int      `yaml:"width"`
	Height   int      `yaml:"height"`
	FPS      float64  `yaml:"fps"`
	Codec    string   `yaml:"codec"`
	Tags     []string `yaml:"tags"`
}

// LoadCatalog reads a YAML or JSON clip catalog. The document is either a
// mapping with a "clips" list or a bare list. Relative clip paths resolve
// against the catalog's directory.
func LoadCatalog(path string) ([]Clip, error) {
	expanded, err := config.ExpandPath(path)
	if err != nil {
		return nil, services.Wrap(services.ErrLibrary, "library", "load catalog", "Invalid catalog path", err)
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		return nil, services.Wrap(services.ErrLibrary, "library", "load catalog", "Catalog unreadable", err)
	}
	entries, err := decodeCatalog(data)
	if err != nil {
		return nil, services.Wrap(services.ErrLibrary, "library", "load catalog", "Catalog is corrupt", err)
	}
	if len(entries) == 0 {
		return nil, services.Wrap(services.ErrLibrary, "library", "load catalog", "Catalog lists no clips", nil)
	}

	base := filepath.Dir(expanded)
	seen := make(map[string]struct{}, len(entries))
	clips := make([]Clip, 0, len(entries))
	for i, entry := range entries {
		clipPath := strings.TrimSpace(entry.Path)
		if clipPath == "" {
			return nil, services.Wrap(services.ErrLibrary, "library", "load catalog",
				fmt.Sprintf("Catalog entry %d has no path", i+1), nil)
		}
		if strings.HasPrefix(clipPath, "~") {
			if clipPath, err = config.ExpandPath(clipPath); err != nil {
				return nil, services.Wrap(services.ErrLibrary, "library", "load catalog", "Invalid clip path", err)
			}
		} else if !filepath.IsAbs(clipPath) {
			clipPath = filepath.Join(base, clipPath)
		}

		id := strings.TrimSpace(entry.ID)
		if id == "" {
			id = clipIDFromPath(clipPath)
		}
		if _, dup := seen[id]; dup {
			return nil, services.Wrap(services.ErrLibrary, "library", "load catalog",
				fmt.Sprintf("Duplicate clip id %q", id), nil)
		}
		seen[id] = struct{}{}

		name := strings.TrimSpace(entry.Name)
		if name == "" {
			name = filepath.Base(clipPath)
		}
		clips = append(clips, Clip{
			ID:       id,
			Path:     clipPath,
			Name:     name,
			Duration: entry.Duration,
			Width:    entry.Width,
			Height:   entry.Height,
			FPS:      entry.FPS,
			Codec:    strings.ToLower(strings.TrimSpace(entry.Codec)),
			Tags:     normalizeTags(entry.Tags),
		})
	}
	return clips, nil
}

func decodeCatalog(data []byte) ([]catalogEntry, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}
	var node yaml.Node
	if err := yaml.Unmarshal(trimmed, &node); err != nil {
		return nil, err
	}
	if len(node.Content) == 0 {
		return nil, nil
	}
	root := node.Content[0]
	switch root.Kind {
	case yaml.SequenceNode:
		var entries []catalogEntry
		if err := root.Decode(&entries); err != nil {
			return nil, err
		}
		return entries, nil
	case yaml.MappingNode:
		var file catalogFile
		if err := root.Decode(&file); err != nil {
			return nil, err
		}
		return file.Clips, nil
	default:
		return nil, fmt.Errorf("unexpected catalog document of kind %d", root.Kind)
	}
}

func clipIDFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
