// Reference is the central entity of the domain.
package core

import (
	"fmt"
	"slices"
	"strings"
)

// RefType classifies a Reference.
type RefType string

const (
	TypeURL     RefType = "url"
	TypeBook    RefType = "book"
	TypeArticle RefType = "article"
	TypeWeb     RefType = "web"
	TypeReport  RefType = "report"
	TypePaper   RefType = "paper"
	TypeDataset RefType = "dataset"
	TypeOther   RefType = "other"
)

var refTypes = []RefType{TypeURL, TypeBook, TypeArticle, TypeWeb, TypeReport, TypePaper, TypeDataset, TypeOther}

// RefTypes returns every known reference type.
func RefTypes() []RefType {
	return slices.Clone(refTypes)
}

// ParseRefType validates s against the known reference types.
func ParseRefType(s string) (RefType, error) {
	t := RefType(strings.ToLower(strings.TrimSpace(s)))
	if slices.Contains(refTypes, t) {
		return t, nil
	}
	return "", fmt.Errorf("%w: unknown reference type %q", ErrInvalidArgument, s)
}

// Relation is the kind of link recorded by a Relate event.
type Relation string

const (
	RelationCites      Relation = "cites"
	RelationExtends    Relation = "extends"
	RelationDuplicates Relation = "duplicates"
	RelationReferences Relation = "references"
	RelationRelated    Relation = "related"
)

var relations = []Relation{RelationCites, RelationExtends, RelationDuplicates, RelationReferences, RelationRelated}

// ParseRelation validates s against the known relation kinds.
func ParseRelation(s string) (Relation, error) {
	r := Relation(strings.ToLower(strings.TrimSpace(s)))
	if slices.Contains(relations, r) {
		return r, nil
	}
	return "", fmt.Errorf("%w: unknown relation %q", ErrInvalidArgument, s)
}

// Reference is a bibliographic reference as materialized by replaying its events.
// It has no persisted identity of its own beyond its event history.
type Reference struct {
	ID        string   `json:"id" yaml:"id"`
	Title     string   `json:"title" yaml:"title"`
	Authors   []string `json:"authors" yaml:"authors"`
	Type      RefType  `json:"type" yaml:"type"`
	Source    string   `json:"source" yaml:"source"`
	Tags      []string `json:"tags" yaml:"tags"`
	CreatedAt string   `json:"createdAt" yaml:"createdAt"`
}

// Clone returns a deep copy of the reference.
func (r Reference) Clone() Reference {
	c := r
	c.Authors = cloneStrings(r.Authors)
	c.Tags = cloneStrings(r.Tags)
	return c
}

// HasTag reports whether the normalized form of tag is present.
func (r Reference) HasTag(tag string) bool {
	return slices.Contains(r.Tags, NormalizeTag(tag))
}

// NormalizeTag trims surrounding whitespace and lower-cases the tag.
func NormalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		out = append(out, NormalizeTag(t))
	}
	return out
}

// cloneStrings copies s, keeping an empty non-nil slice distinct from nil.
func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append(make([]string, 0, len(s)), s...)
}

// RelationEntry is one accumulated Relate event.
type RelationEntry struct {
	TargetID string   `json:"targetId" yaml:"targetId"`
	Relation Relation `json:"relation" yaml:"relation"`
}

// ProjectionState is the replay result for one reference.
type ProjectionState struct {
	// Ref is nil when no Create or Snapshot event was replayed.
	Ref       *Reference      `json:"ref,omitempty" yaml:"ref,omitempty"`
	Relations []RelationEntry `json:"relations" yaml:"relations"`
	// Orphans counts tag and metadata events absorbed because Ref was still nil.
	Orphans int `json:"-" yaml:"-"`
}

// Found reports whether the replay produced a reference.
func (p ProjectionState) Found() bool {
	return p.Ref != nil
}
