package fs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/refman/pkg/core"
)

// Format selects the encoding of an export.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts "json", "yaml" or "yml" in any case.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: unknown export format %q", core.ErrInvalidArgument, s)
	}
}

// FormatFromPath guesses the format from the file extension, defaulting to JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// ExportRecord is one projected reference with its relations.
type ExportRecord = core.Record

// Records projects every reference of the log, in first-seen order.
// Histories without a Create or Snapshot are left out.
func (s *Store) Records(ctx context.Context) ([]ExportRecord, error) {
	events, err := s.ListEvents(ctx, "")
	if err != nil {
		return nil, err
	}
	records := []ExportRecord{}
	for _, p := range core.ProjectAll(events) {
		if p.Ref == nil {
			continue
		}
		records = append(records, ExportRecord{Reference: *p.Ref, Relations: p.Relations})
	}
	return records, nil
}

// Export writes every projected reference to w.
func (s *Store) Export(ctx context.Context, w io.Writer, format Format) error {
	records, err := s.Records(ctx)
	if err != nil {
		return err
	}

	switch format {
	case FormatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(records); err != nil {
			return fmt.Errorf("failed to encode export: %w", err)
		}
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(records); err != nil {
			return fmt.Errorf("failed to encode export: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("failed to encode export: %w", err)
		}
	default:
		return fmt.Errorf("%w: unknown export format %q", core.ErrInvalidArgument, format)
	}

	s.logger.Debug("export written", "format", format, "refs", len(records))
	return nil
}

// DecodeRecords reads records written by Export.
func DecodeRecords(r io.Reader, format Format) ([]ExportRecord, error) {
	records := []ExportRecord{}
	switch format {
	case FormatJSON, "":
		if err := json.NewDecoder(r).Decode(&records); err != nil {
			return nil, fmt.Errorf("%w: invalid JSON import: %v", core.ErrInvalidArgument, err)
		}
	case FormatYAML:
		if err := yaml.NewDecoder(r).Decode(&records); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: invalid YAML import: %v", core.ErrInvalidArgument, err)
		}
	default:
		return nil, fmt.Errorf("%w: unknown import format %q", core.ErrInvalidArgument, format)
	}
	if records == nil {
		records = []ExportRecord{}
	}
	return records, nil
}

// ReadRecordsFile decodes an export file.
func ReadRecordsFile(path string, format Format) ([]ExportRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open import file: %w", err)
	}
	defer f.Close()
	return DecodeRecords(f, format)
}

// ExportFile writes the export to path, replacing any previous file atomically.
func (s *Store) ExportFile(ctx context.Context, path string, format Format) error {
	var buf bytes.Buffer
	if err := s.Export(ctx, &buf, format); err != nil {
		return err
	}
	return writeFileAtomic(path, buf.Bytes(), 0644)
}
