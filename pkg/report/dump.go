package report

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/sprintstats/pkg/analyzer"
)

const yamlIndent = 2

// YAML dumps the whole report.
func YAML(report analyzer.Report) ([]byte, error) {
	var buf bytes.Buffer

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(yamlIndent)

	err := enc.Encode(report)
	if err != nil {
		return nil, fmt.Errorf("marshal yaml report: %w", err)
	}

	err = enc.Close()
	if err != nil {
		return nil, fmt.Errorf("marshal yaml report: %w", err)
	}

	return buf.Bytes(), nil
}

// JSON dumps the whole report, indented.
func JSON(report analyzer.Report) ([]byte, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal json report: %w", err)
	}

	return append(data, '\n'), nil
}
