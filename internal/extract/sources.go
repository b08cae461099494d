package extract

import (
	"fmt"
	"os"
	"path/filepath"

	"paperpal/internal/domain"
)

// ReadSources expands glob patterns and reads each matching file. A pattern
// without matches is read as a literal path so missing files are reported.
func ReadSources(patterns []string) ([]domain.Source, error) {
	var srcs []domain.Source
	for _, p := range patterns {
		matches, _ := filepath.Glob(p)
		if matches == nil {
			matches = []string{p}
		}
		for _, m := range matches {
			info, err := os.Stat(m)
			if err != nil {
				return nil, err
			}
			if info.IsDir() {
				return nil, fmt.Errorf("%s is a directory", m)
			}
			data, err := os.ReadFile(m)
			if err != nil {
				return nil, err
			}
			srcs = append(srcs, domain.Source{Name: filepath.Base(m), Data: data})
		}
	}
	return srcs, nil
}
