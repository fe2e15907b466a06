package importer

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// yamlFile is the document shape:
//
//	sources:
//	  - name: Open Biology
//	    url: https://example.edu/biology
//	    auto_crawl: true
type yamlFile struct {
	Sources []yaml.Node `yaml:"sources"`
}

// ParseYAML reads sources from a YAML document. Row numbers are the line of
// each entry in the file.
func ParseYAML(r io.Reader) ([]SourceRow, error) {
	var doc yamlFile
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return []SourceRow{}, nil
		}
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	rows := make([]SourceRow, 0, len(doc.Sources))
	for _, node := range doc.Sources {
		row := SourceRow{Row: node.Line}
		if err := node.Decode(&row); err != nil {
			row.problem = err.Error()
		}
		row.Row = node.Line
		rows = append(rows, row)
	}
	return rows, nil
}
