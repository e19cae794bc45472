// Package importer loads probe findings from JSON, JSON Lines and YAML
// documents, either one file at a time or by walking a directory of probe
// output.
package importer

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/scrypster/osintgraph/pkg/types"
)

// ImportResult is the summary of a directory import.
type ImportResult struct {
	FilesFound     int           `json:"files_found"`
	FilesProcessed int           `json:"files_processed"`
	FilesSkipped   int           `json:"files_skipped"`
	FilesFailed    int           `json:"files_failed"`
	Findings       int           `json:"findings"`
	FoundFindings  int           `json:"found_findings"`
	Errors         []string      `json:"errors,omitempty"`
	Duration       time.Duration `json:"duration_ms"`
}

// LoadFile reads one findings file, detecting its format from the
// extension.
func LoadFile(path string) ([]types.Finding, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	return LoadFileAs(path, format)
}

// LoadFileAs reads one findings file in the given format.
func LoadFileAs(path string, format Format) ([]types.Finding, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %q: %w", path, err)
	}
	findings, err := ParseFindings(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return findings, nil
}

// LoadPaths loads every path in order. Directories are walked; files are
// parsed by extension. The first failing file aborts the load.
func LoadPaths(ctx context.Context, paths []string) ([]types.Finding, error) {
	var all []types.Finding
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("cannot access %q: %w", path, err)
		}
		if !info.IsDir() {
			findings, err := LoadFile(path)
			if err != nil {
				return nil, err
			}
			all = append(all, findings...)
			continue
		}

		findings, result, err := LoadDir(ctx, path)
		if err != nil {
			return nil, err
		}
		if result.FilesFailed > 0 {
			return nil, fmt.Errorf("%s: %d files failed: %s", path, result.FilesFailed, strings.Join(result.Errors, "; "))
		}
		all = append(all, findings...)
	}
	if all == nil {
		all = []types.Finding{}
	}
	return all, nil
}

// LoadDir walks dir and parses every findings file found. Files that fail
// to read or parse are recorded in the result and skipped; the walk itself
// failing, or ctx being cancelled, is an error. Files are visited in lexical
// order so the findings order is reproducible.
func LoadDir(ctx context.Context, dir string) ([]types.Finding, *ImportResult, error) {
	start := time.Now()
	result := &ImportResult{}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot access directory %q: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, nil, fmt.Errorf("%q is not a directory", dir)
	}

	files, err := collectFindingFiles(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("walk %q: %w", dir, err)
	}
	result.FilesFound = len(files)

	findings := []types.Finding{}
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		rel, _ := filepath.Rel(dir, path)

		data, err := os.ReadFile(path)
		if err != nil {
			log.Printf("import: skip %s: read error: %v", rel, err)
			result.FilesFailed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: read error: %v", rel, err))
			continue
		}
		if len(strings.TrimSpace(string(data))) == 0 {
			result.FilesSkipped++
			continue
		}

		format, _ := FormatFromPath(path)
		parsed, err := ParseFindings(data, format)
		if err != nil {
			log.Printf("import: skip %s: parse error: %v", rel, err)
			result.FilesFailed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: parse error: %v", rel, err))
			continue
		}

		for _, f := range parsed {
			if f.IsFound() {
				result.FoundFindings++
			}
		}
		result.Findings += len(parsed)
		result.FilesProcessed++
		findings = append(findings, parsed...)
	}

	result.Duration = time.Since(start)
	log.Printf("import: loaded %d findings (%d found) from %d files in %s",
		result.Findings, result.FoundFindings, result.FilesProcessed, dir)
	return findings, result, nil
}

// collectFindingFiles returns the findings files under dir in lexical order.
// Hidden directories (.git and the like) are skipped.
func collectFindingFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		if _, err := FormatFromPath(path); err == nil {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}
