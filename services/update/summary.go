package update

import (
	"fmt"

	"github.com/castsync/castsync/pkg/model"
)

type Outcome string

const (
	Downloaded          = Outcome("downloaded")
	SkippedExisting     = Outcome("skipped_existing")
	SkippedUnauthorized = Outcome("skipped_unauthorized")
	SkippedFiltered     = Outcome("skipped_filtered")
	Failed              = Outcome("failed")
)

// KindCatalog marks failures to resolve media through the catalog
const KindCatalog = "catalog_failure"

// Item is the outcome for one episode
type Item struct {
	Episode *model.Episode
	Outcome Outcome
	Kind    string
	Path    string
	Size    int64
	Err     error
}

// Summary reports a download run. Items are in feed order (newest first).
type Summary struct {
	Program *model.Program
	Items   []*Item
	// Err is set when the episode listing stopped early
	Err error
}

func (s *Summary) Count(outcome Outcome) int {
	count := 0
	for _, item := range s.Items {
		if item.Outcome == outcome {
			count++
		}
	}
	return count
}

func (s *Summary) Failures() []*Item {
	var failures []*Item
	for _, item := range s.Items {
		if item.Outcome == Failed {
			failures = append(failures, item)
		}
	}
	return failures
}

// OK reports whether every episode was either fetched or deliberately skipped.
func (s *Summary) OK() bool {
	return s.Err == nil && len(s.Failures()) == 0
}

func (s *Summary) String() string {
	return fmt.Sprintf("downloaded: %d, skipped (existing): %d, skipped (unauthorized): %d, failed: %d",
		s.Count(Downloaded), s.Count(SkippedExisting), s.Count(SkippedUnauthorized), s.Count(Failed))
}

// FeedResult describes a written feed document.
type FeedResult struct {
	Program *model.Program
	Title   string
	Path    string
	URL     string
	Items   int
}
