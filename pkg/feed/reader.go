package feed

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/castsync/castsync/pkg/model"
)

// ReadFeed loads a previously generated feed document and returns its playable episodes.
func ReadFeed(path string) (*model.Program, []*model.Episode, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrapf(model.ErrIO, "open feed %s: %v", path, err)
	}
	defer file.Close()

	parsed, err := gofeed.NewParser().Parse(file)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to parse feed %s", path)
	}

	program := &model.Program{
		ID:          programIDFromPath(path),
		Title:       parsed.Title,
		Description: parsed.Description,
		Link:        parsed.Link,
	}
	if parsed.Image != nil {
		program.ArtworkURL = parsed.Image.URL
	}

	episodes := make([]*model.Episode, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		ep := convertItem(item)
		if ep == nil {
			log.WithField("guid", item.GUID).Warn("skipping feed item without enclosure")
			continue
		}
		ep.ProgramID = program.ID
		if ep.ArtworkURL == "" {
			ep.ArtworkURL = program.ArtworkURL
		}
		episodes = append(episodes, ep)
	}

	return program, episodes, nil
}

func convertItem(item *gofeed.Item) *model.Episode {
	if len(item.Enclosures) == 0 || item.Enclosures[0].URL == "" {
		return nil
	}

	enclosure := item.Enclosures[0]
	length, _ := strconv.ParseInt(enclosure.Length, 10, 64)

	ep := &model.Episode{
		ID:          itemID(item),
		Title:       item.Title,
		Description: item.Description,
		Link:        item.Link,
		Tier:        model.TierFree,
		Media:       model.NewMediaRef(enclosure.URL),
		Categories:  item.Categories,
		Enclosure: &model.Enclosure{
			URL:    enclosure.URL,
			Type:   enclosure.Type,
			Length: length,
		},
	}

	if item.PublishedParsed != nil {
		ep.PublishedAt = item.PublishedParsed.UTC()
	} else {
		ep.PublishedAt = time.Unix(0, 0).UTC()
	}

	if item.Image != nil {
		ep.ArtworkURL = item.Image.URL
	}

	if ext := item.ITunesExt; ext != nil {
		ep.Subtitle = ext.Subtitle
		ep.Duration = parseDuration(ext.Duration)
		if ext.Image != "" && ep.ArtworkURL == "" {
			ep.ArtworkURL = ext.Image
		}
	}

	return ep
}

// itemID recovers the episode id from guids shaped like "{prefix}-{program}-{episode}".
func itemID(item *gofeed.Item) string {
	guid := item.GUID
	if guid == "" {
		guid = item.Enclosures[0].URL
	}

	if idx := strings.LastIndex(guid, "-"); idx >= 0 && idx < len(guid)-1 {
		return guid[idx+1:]
	}
	return guid
}

func programIDFromPath(path string) string {
	base := path
	if idx := strings.LastIndexAny(base, `/\`); idx >= 0 {
		base = base[idx+1:]
	}
	return strings.TrimSuffix(base, ".xml")
}

// parseDuration accepts seconds, "M:SS" or "H:MM:SS".
func parseDuration(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}

	var total int64
	for _, part := range strings.Split(s, ":") {
		n, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return 0
		}
		total = total*60 + n
	}
	return total
}
