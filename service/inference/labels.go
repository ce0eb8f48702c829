package inference

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/khaledhikmat/fsd-go/model"
	"golang.org/x/xerrors"
	"gopkg.in/yaml.v3"
)

// LoadLabels reads the class label table. YAML files follow the dataset
// layout produced by training (`names:` as a list or an id->name map); any
// other file is read as one name per line.
func LoadLabels(path string) (model.Labels, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, xerrors.Errorf("%s: %v: %w", path, err, ErrLabels)
	}

	var labels model.Labels
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		labels, err = parseYAMLLabels(data)
		if err != nil {
			return nil, xerrors.Errorf("%s: %v: %w", path, err, ErrLabels)
		}
	default:
		for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
			if name := strings.TrimSpace(line); name != "" {
				labels = append(labels, name)
			}
		}
	}

	if len(labels) == 0 {
		return nil, xerrors.Errorf("%s: no class names: %w", path, ErrLabels)
	}

	return labels, nil
}

func parseYAMLLabels(data []byte) (model.Labels, error) {
	var doc struct {
		Names yaml.Node `yaml:"names"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	switch doc.Names.Kind {
	case yaml.SequenceNode:
		var names []string
		if err := doc.Names.Decode(&names); err != nil {
			return nil, err
		}
		return names, nil

	case yaml.MappingNode:
		var byID map[int]string
		if err := doc.Names.Decode(&byID); err != nil {
			return nil, err
		}
		ids := make([]int, 0, len(byID))
		for id := range byID {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		// ids must be dense so that class ids index the table directly
		for i, id := range ids {
			if i != id {
				return nil, xerrors.Errorf("class id %d missing", i)
			}
		}
		names := make(model.Labels, len(ids))
		for _, id := range ids {
			names[id] = byID[id]
		}
		return names, nil
	}

	return nil, xerrors.New("names must be a list or a map")
}
