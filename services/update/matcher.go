package update

import (
	"regexp"

	log "github.com/sirupsen/logrus"

	"github.com/castsync/castsync/pkg/model"
)

// Filters narrow down which episodes are downloaded. Empty patterns match anything.
type Filters struct {
	Title          string `toml:"title"`
	NotTitle       string `toml:"not_title"`
	Description    string `toml:"description"`
	NotDescription string `toml:"not_description"`
	// MinDuration in seconds, 0 disables the check
	MinDuration int64 `toml:"min_duration"`
}

func matchRegexpFilter(pattern, str string, negative bool, logger log.FieldLogger) bool {
	if pattern == "" {
		return true
	}

	matched, err := regexp.MatchString(pattern, str)
	if err != nil {
		logger.WithError(err).Warnf("pattern %q is not valid", pattern)
		return true
	}

	if matched == negative {
		logger.Info("skipping due to mismatch")
		return false
	}

	return true
}

func matchFilters(episode *model.Episode, filters Filters) bool {
	logger := log.WithFields(log.Fields{"episode_id": episode.ID})

	if !matchRegexpFilter(filters.Title, episode.Title, false, logger.WithField("filter", "title")) {
		return false
	}

	if !matchRegexpFilter(filters.NotTitle, episode.Title, true, logger.WithField("filter", "not_title")) {
		return false
	}

	if !matchRegexpFilter(filters.Description, episode.Description, false, logger.WithField("filter", "description")) {
		return false
	}

	if !matchRegexpFilter(filters.NotDescription, episode.Description, true, logger.WithField("filter", "not_description")) {
		return false
	}

	if filters.MinDuration > 0 && episode.Duration > 0 && episode.Duration < filters.MinDuration {
		logger.WithField("filter", "min_duration").Info("skipping due to duration")
		return false
	}

	return true
}
