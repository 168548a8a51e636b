package serialization

import (
	"github.com/born-ml/ngraph/internal/tensor"
)

// Extension is appended to a Saver's name to form its file path.
const Extension = ".safetensors"

// Saver stores a set of named values under one file name.
type Saver struct {
	Name string
}

// NewSaver creates a saver writing to name + Extension. An empty name
// defaults to "weights".
func NewSaver(name string) *Saver {
	if name == "" {
		name = "weights"
	}
	return &Saver{Name: name}
}

// Path returns the file the saver reads and writes.
func (s *Saver) Path() string {
	return s.Name + Extension
}

// WriteValues replaces the saved values.
func (s *Saver) WriteValues(values map[string]*tensor.Value) error {
	return WriteFile(s.Path(), values, nil)
}

// ReadValues loads every saved value.
func (s *Saver) ReadValues() (map[string]*tensor.Value, error) {
	values, _, err := ReadFile(s.Path())
	return values, err
}
