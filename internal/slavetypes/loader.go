package slavetypes

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type descriptorFile struct {
	Name        string `yaml:"name"`
	VID         uint32 `yaml:"vid"`
	PID         uint32 `yaml:"pid"`
	Description string `yaml:"description"`
	ModParams   []struct {
		Name string `yaml:"name"`
		ID   int32  `yaml:"id"`
		Type string `yaml:"type"`
	} `yaml:"modparams"`
}

// Loader reads slave type descriptors (*.yaml, *.yml) from search paths.
type Loader struct {
	validator   *Validator
	searchPaths []string
	logger      *zap.Logger
}

func NewLoader(searchPaths []string, logger *zap.Logger) (*Loader, error) {
	validator, err := NewValidator()
	if err != nil {
		return nil, fmt.Errorf("failed to create validator: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Loader{
		validator:   validator,
		searchPaths: searchPaths,
		logger:      logger,
	}, nil
}

// LoadInto registers every descriptor found in the search paths. Missing
// directories are skipped; any invalid descriptor fails the whole load.
func (l *Loader) LoadInto(reg *Registry) (int, error) {
	loaded := 0

	for _, searchPath := range l.searchPaths {
		files, err := descriptorFiles(searchPath)
		if err != nil {
			return loaded, err
		}

		for _, path := range files {
			t, err := l.LoadFile(path)
			if err != nil {
				return loaded, err
			}
			if err := reg.Register(t); err != nil {
				return loaded, fmt.Errorf("%s: %w", path, err)
			}

			l.logger.Debug("Slave type loaded",
				zap.String("type", t.Name),
				zap.String("path", path),
				zap.Int("modparams", len(t.ModParams)))
			loaded++
		}
	}

	return loaded, nil
}

// LoadFile parses and validates a single descriptor.
func (l *Loader) LoadFile(path string) (*Type, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read descriptor: %w", err)
	}

	if err := l.validator.ValidateDescriptor(data); err != nil {
		return nil, fmt.Errorf("validation failed for %s: %w", path, err)
	}

	var desc descriptorFile
	if err := yaml.Unmarshal(data, &desc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal descriptor %s: %w", path, err)
	}

	t := &Type{
		Name:        desc.Name,
		VID:         desc.VID,
		PID:         desc.PID,
		Description: desc.Description,
	}
	for _, p := range desc.ModParams {
		typ, err := ParseModParamType(p.Type)
		if err != nil {
			return nil, fmt.Errorf("%s: modparam %s: %w", path, p.Name, err)
		}
		t.ModParams = append(t.ModParams, ModParamDesc{Name: p.Name, ID: p.ID, Type: typ})
	}

	return t, nil
}

func descriptorFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".yaml", ".yml":
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}
