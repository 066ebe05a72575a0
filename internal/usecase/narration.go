package usecase

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/forPelevin/recapcut/internal/domain/storyboard"
)

// NarrationExts are tried in order when looking up a segment's narration file.
var NarrationExts = []string{".wav", ".mp3", ".m4a", ".aac"}

var errNoNarration = errors.New("narration not found")

// FindNarration locates <dir>/<label>.<ext>. The label matches case-insensitively, and its
// slug form is accepted too.
func FindNarration(dir, label string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read narration dir: %w", err)
	}
	want := strings.ToLower(strings.TrimSpace(label))
	slug := storyboard.Slug(label)
	for _, ext := range NarrationExts {
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			name := e.Name()
			if !strings.EqualFold(filepath.Ext(name), ext) {
				continue
			}
			base := strings.ToLower(strings.TrimSuffix(name, filepath.Ext(name)))
			if base == want || (slug != "" && base == slug) {
				return filepath.Join(dir, name), nil
			}
		}
	}
	return "", fmt.Errorf("%w for %q in %s (want %s.{wav,mp3,m4a,aac})", errNoNarration, label, dir, label)
}
