package keywords

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/haukened/hostguard/internal/guard/domain"
)

// ExportYAML writes the current keywords as a YAML mapping of category to list.
func (s *Store) ExportYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s.Snapshot()); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return enc.Close()
}

// ImportYAML merges a YAML mapping of category to list into the store.
func (s *Store) ImportYAML(r io.Reader) (int, error) {
	var k domain.Keywords
	if err := yaml.NewDecoder(r).Decode(&k); err != nil {
		if err == io.EOF {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: decode yaml: %v", domain.ErrInvalidKeyword, err)
	}
	return s.Merge(k)
}
