// SPDX-License-Identifier: MIT

// Package content provides read access to chapters and lessons: the
// document-store-backed curriculum data that names which models a chapter
// requires. The full course/lesson/badge/auth/search surface built on top
// of this data is out of scope; this package exposes only the lookups the
// fleet controller needs to resolve a chapter into model-ids.
package content

import (
	"context"
	"errors"
)

// ErrChapterNotFound is returned when no chapter exists for a given id.
var ErrChapterNotFound = errors.New("chapter not found")

// Lesson is a single unit of content bound to one label and, usually, one
// model. LessonHasNoModel conditions are represented by an empty ModelID,
// not an error, since a chapter is otherwise still servable.
type Lesson struct {
	LessonID string `json:"lesson_id"`
	Label    string `json:"label"`
	ModelID  string `json:"model_id"`
}

// Chapter is a named bundle of lessons associated with one or more models.
type Chapter struct {
	ChapterID string   `json:"chapter_id"`
	Title     string   `json:"title"`
	Lessons   []Lesson `json:"lessons"`
}

// Store resolves chapters by id. Chapter/lesson authoring happens out of
// band (the document-store-backed course editor); this interface is
// read-only.
type Store interface {
	// Chapter returns the chapter and its lessons for chapterID.
	// Returns ErrChapterNotFound if no such chapter exists.
	Chapter(ctx context.Context, chapterID string) (Chapter, error)

	// Ping verifies connectivity to the backing store, for the
	// content_store health checker.
	Ping(ctx context.Context) error
}

// DistinctModelIDs returns the set of non-empty, deduplicated model-ids
// referenced by c's lessons, in first-seen order.
func DistinctModelIDs(c Chapter) []string {
	seen := make(map[string]struct{}, len(c.Lessons))
	var ids []string
	for _, lesson := range c.Lessons {
		if lesson.ModelID == "" {
			continue
		}
		if _, ok := seen[lesson.ModelID]; ok {
			continue
		}
		seen[lesson.ModelID] = struct{}{}
		ids = append(ids, lesson.ModelID)
	}
	return ids
}
