package prompt

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

//go:embed templates/*.txt
var defaultTemplates embed.FS

// Template names shipped with the binary
const (
	TemplatePlanning   = "planning"
	TemplateIntent     = "intent"
	TemplateReflection = "reflection"
)

// ErrTemplateNotFound is returned when no source holds the requested template.
var ErrTemplateNotFound = errors.New("template not found")

// Loader looks templates up cache-first: CacheDir, then Dir, then the embedded
// defaults. Either directory may be empty.
type Loader struct {
	Dir      string
	CacheDir string
}

// NewLoader creates a Loader over the given template and cache directories
func NewLoader(dir, cacheDir string) *Loader {
	return &Loader{Dir: dir, CacheDir: cacheDir}
}

// Load returns the raw text of the named template (without the .txt extension)
func (l *Loader) Load(name string) (string, error) {
	file := name + ".txt"

	if l != nil {
		for _, dir := range []string{l.CacheDir, l.Dir} {
			if dir == "" {
				continue
			}
			data, err := os.ReadFile(filepath.Join(dir, file))
			if err == nil {
				return string(data), nil
			}
			if !errors.Is(err, fs.ErrNotExist) {
				return "", fmt.Errorf("read template %s: %w", name, err)
			}
		}
	}

	data, err := defaultTemplates.ReadFile("templates/" + file)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}
	return string(data), nil
}

// Render loads the named template and resolves it against values
func (l *Loader) Render(name string, values map[string]interface{}) (string, error) {
	tpl, err := l.Load(name)
	if err != nil {
		return "", err
	}
	return Resolve(tpl, values), nil
}
