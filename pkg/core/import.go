package core

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

// Record is a projected reference together with its relations, the unit of
// export and import.
type Record struct {
	Reference `yaml:",inline"`
	Relations []RelationEntry `json:"relations" yaml:"relations"`
}

// ImportResult counts what Import did with each record.
type ImportResult struct {
	Added    int `json:"added" yaml:"added"`
	Replaced int `json:"replaced" yaml:"replaced"`
	Skipped  int `json:"skipped" yaml:"skipped"`
}

// Import appends a Snapshot event for every record whose id is not yet in the
// library, followed by one Relate event per relation. Records whose id already
// projects to a reference are skipped, unless overwrite is set: then they are
// snapshotted too and only their missing relations are added.
//
// The log has no delete event, so references absent from records are kept.
// Every record is validated before anything is appended.
func (s *Service) Import(ctx context.Context, records []Record, overwrite bool) (ImportResult, error) {
	var res ImportResult

	cleaned := make([]Record, 0, len(records))
	seen := make(map[string]bool, len(records))
	for i, rec := range records {
		c, err := cleanRecord(rec)
		if err != nil {
			return res, fmt.Errorf("record %d: %w", i+1, err)
		}
		if seen[c.ID] {
			return res, fmt.Errorf("%w: record %d: duplicate id %s", ErrInvalidArgument, i+1, c.ID)
		}
		seen[c.ID] = true
		cleaned = append(cleaned, c)
	}

	events, err := s.store.ListEvents(ctx, "")
	if err != nil {
		return res, err
	}
	current := make(map[string]ProjectionState)
	for _, p := range ProjectAll(events) {
		current[p.RefID] = p.ProjectionState
	}

	for _, rec := range cleaned {
		existing, ok := current[rec.ID]
		exists := ok && existing.Ref != nil
		if exists && !overwrite {
			res.Skipped++
			continue
		}

		ev := s.factory.Snapshot(rec.Reference)
		if rec.CreatedAt == "" {
			ref := rec.Reference.Clone()
			ref.CreatedAt = ev.Timestamp
			ev.Payload = SnapshotPayload{Snapshot: ref}
		}
		if err := s.store.Append(ctx, ev); err != nil {
			return res, err
		}

		for _, rel := range rec.Relations {
			if slices.Contains(existing.Relations, rel) {
				continue
			}
			if err := s.store.Append(ctx, s.factory.Relate(rec.ID, rel.TargetID, rel.Relation)); err != nil {
				return res, err
			}
		}

		if exists {
			res.Replaced++
		} else {
			res.Added++
		}
	}

	s.logger.Debug("import finished", "added", res.Added, "replaced", res.Replaced, "skipped", res.Skipped)
	return res, nil
}

// cleanRecord validates rec and normalizes it the way Create would.
func cleanRecord(rec Record) (Record, error) {
	ref := rec.Reference.Clone()
	ref.ID = strings.TrimSpace(ref.ID)
	if ref.ID == "" {
		return Record{}, fmt.Errorf("%w: reference ID cannot be empty", ErrInvalidArgument)
	}
	if ref.Title == "" {
		return Record{}, fmt.Errorf("%w: reference %s has no title", ErrInvalidArgument, ref.ID)
	}

	if ref.Type == "" {
		ref.Type = TypeOther
	} else {
		t, err := ParseRefType(string(ref.Type))
		if err != nil {
			return Record{}, err
		}
		ref.Type = t
	}
	if ref.Authors == nil {
		ref.Authors = []string{}
	}

	tags := []string{}
	for _, t := range normalizeTags(ref.Tags) {
		if t != "" && !slices.Contains(tags, t) {
			tags = append(tags, t)
		}
	}
	ref.Tags = tags

	relations := []RelationEntry{}
	for _, rel := range rec.Relations {
		if rel.TargetID == "" {
			return Record{}, fmt.Errorf("%w: reference %s has a relation without target", ErrInvalidArgument, ref.ID)
		}
		r, err := ParseRelation(string(rel.Relation))
		if err != nil {
			return Record{}, err
		}
		entry := RelationEntry{TargetID: rel.TargetID, Relation: r}
		if !slices.Contains(relations, entry) {
			relations = append(relations, entry)
		}
	}

	return Record{Reference: ref, Relations: relations}, nil
}
