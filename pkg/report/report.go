// Package report renders the sprint aggregation into team documents.
package report

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Sumatoshi-tech/sprintstats/pkg/analyzer"
)

// Format selects the document kind.
type Format string

// Supported formats.
const (
	FormatMarkdown Format = "markdown"
	FormatText     Format = "text"
	FormatYAML     Format = "yaml"
	FormatJSON     Format = "json"
	FormatHTML     Format = "html"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// Report errors.
var (
	ErrUnknownFormat = errors.New("unknown report format")
	ErrUnsafeName    = errors.New("report name is not a plain file name")
)

// Formats lists the supported formats.
func Formats() []Format {
	return []Format{FormatMarkdown, FormatText, FormatYAML, FormatJSON, FormatHTML}
}

// ParseFormat returns the format named s.
func ParseFormat(s string) (Format, error) {
	for _, f := range Formats() {
		if strings.EqualFold(s, string(f)) {
			return f, nil
		}
	}

	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// File is one rendered document.
type File struct {
	Name    string
	Content []byte
}

// Render renders report in format. Markdown and HTML produce one file per
// team; YAML and JSON produce a single dump of the whole report. Text is
// written to a terminal with WriteText instead.
func Render(report analyzer.Report, teams []string, format Format) ([]File, error) {
	switch format {
	case FormatMarkdown:
		return perTeam(report, teams, ".md", func(r analyzer.Report) ([]byte, error) {
			return []byte(Markdown(r)), nil
		})
	case FormatHTML:
		return perTeam(report, teams, ".html", HTML)
	case FormatYAML:
		data, err := YAML(report)
		if err != nil {
			return nil, err
		}

		return []File{{Name: "sprints.yaml", Content: data}}, nil
	case FormatJSON:
		data, err := JSON(report)
		if err != nil {
			return nil, err
		}

		return []File{{Name: "sprints.json", Content: data}}, nil
	case FormatText:
		return nil, fmt.Errorf("%w: %s is written to the terminal", ErrUnknownFormat, format)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

func perTeam(
	report analyzer.Report, teams []string, ext string, render func(analyzer.Report) ([]byte, error),
) ([]File, error) {
	files := make([]File, 0, len(teams))

	for _, team := range teams {
		content, err := render(report.ForTeam(team))
		if err != nil {
			return nil, fmt.Errorf("render team %s: %w", team, err)
		}

		files = append(files, File{Name: team + ext, Content: content})
	}

	return files, nil
}

// WriteFiles writes files into dir, creating it when missing. Every name must
// be a plain file name; nothing is written when one is not.
func WriteFiles(dir string, files []File) ([]string, error) {
	for _, f := range files {
		if f.Name == "" || f.Name == "." || f.Name == ".." || f.Name != filepath.Base(f.Name) {
			return nil, fmt.Errorf("%w: %q", ErrUnsafeName, f.Name)
		}
	}

	err := os.MkdirAll(dir, dirPerm)
	if err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	paths := make([]string, 0, len(files))

	for _, f := range files {
		path := filepath.Join(dir, f.Name)

		err = os.WriteFile(path, f.Content, filePerm)
		if err != nil {
			return paths, fmt.Errorf("write report %s: %w", path, err)
		}

		paths = append(paths, path)
	}

	return paths, nil
}
