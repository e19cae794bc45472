package importer

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/scrypster/osintgraph/pkg/types"
)

// ErrUnsupportedFormat is returned for files whose format cannot be detected.
var ErrUnsupportedFormat = errors.New("unsupported findings format")

// Format is the encoding of a findings document.
type Format string

// Supported formats
const (
	FormatJSON  Format = "json"
	FormatJSONL Format = "jsonl"
	FormatYAML  Format = "yaml"
)

// maxLineSize bounds one JSON Lines record.
const maxLineSize = 4 * 1024 * 1024

// FormatFromPath detects the format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".jsonl", ".ndjson":
		return FormatJSONL, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
}

// ParseFormat parses a format name such as "json" or "yml".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "jsonl", "ndjson":
		return FormatJSONL, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// findingsDocument is the wrapped form {"findings": [...]} accepted by the
// JSON and YAML parsers alongside a bare list.
type findingsDocument struct {
	Findings []types.Finding `json:"findings" yaml:"findings"`
}

// ParseFindings decodes a findings document. Records that omit a status are
// treated as found; probes commonly report only their hits.
func ParseFindings(data []byte, format Format) ([]types.Finding, error) {
	var (
		findings []types.Finding
		err      error
	)
	switch format {
	case FormatJSON:
		findings, err = parseJSON(data)
	case FormatJSONL:
		findings, err = parseJSONLines(data)
	case FormatYAML:
		findings, err = parseYAML(data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, err
	}
	return normalize(findings)
}

func parseJSON(data []byte) ([]types.Finding, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return []types.Finding{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	if trimmed[0] == '[' {
		var findings []types.Finding
		if err := dec.Decode(&findings); err != nil {
			return nil, fmt.Errorf("json: %w", err)
		}
		return findings, nil
	}

	var doc findingsDocument
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("json: %w", err)
	}
	return doc.Findings, nil
}

func parseJSONLines(data []byte) ([]types.Finding, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	findings := []types.Finding{}
	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 || text[0] == '#' {
			continue
		}
		dec := json.NewDecoder(bytes.NewReader(text))
		dec.UseNumber()
		var f types.Finding
		if err := dec.Decode(&f); err != nil {
			return nil, fmt.Errorf("jsonl: line %d: %w", line, err)
		}
		findings = append(findings, f)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("jsonl: %w", err)
	}
	return findings, nil
}

func parseYAML(data []byte) ([]types.Finding, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("yaml: %w", err)
	}
	if len(root.Content) == 0 {
		return []types.Finding{}, nil
	}

	doc := root.Content[0]
	if doc.Kind == yaml.SequenceNode {
		var findings []types.Finding
		if err := doc.Decode(&findings); err != nil {
			return nil, fmt.Errorf("yaml: %w", err)
		}
		return findings, nil
	}

	var wrapped findingsDocument
	if err := doc.Decode(&wrapped); err != nil {
		return nil, fmt.Errorf("yaml: %w", err)
	}
	return wrapped.Findings, nil
}

// normalize defaults missing statuses and rejects records no probe could
// have produced.
func normalize(findings []types.Finding) ([]types.Finding, error) {
	if findings == nil {
		return []types.Finding{}, nil
	}
	for i := range findings {
		f := &findings[i]
		f.Username = strings.TrimSpace(f.Username)
		f.PlatformName = strings.TrimSpace(f.PlatformName)
		if f.Status == "" {
			f.Status = types.FindingFound
		}
		if f.Username == "" {
			return nil, fmt.Errorf("finding %d: username is required", i+1)
		}
		if f.PlatformName == "" {
			return nil, fmt.Errorf("finding %d (%s): platform_name is required", i+1, f.Username)
		}
	}
	return findings, nil
}

// ReadFindings reads and parses a findings stream.
func ReadFindings(r io.Reader, format Format) ([]types.Finding, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read findings: %w", err)
	}
	return ParseFindings(data, format)
}
