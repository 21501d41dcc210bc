package feed

import (
	"bytes"
	"fmt"
	"html"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	itunes "github.com/eduncan911/podcast"
	"github.com/microcosm-cc/bluemonday"
	"github.com/pkg/errors"

	"github.com/castsync/castsync/pkg/model"
)

const Generator = "castsync (https://github.com/castsync/castsync)"

// sort.Interface implementation
type timeSlice []*model.Episode

func (p timeSlice) Len() int {
	return len(p)
}

// In descending order
func (p timeSlice) Less(i, j int) bool {
	return p[i].PublishedAt.After(p[j].PublishedAt)
}

func (p timeSlice) Swap(i, j int) {
	p[i], p[j] = p[j], p[i]
}

// Policy decides which episodes make it into a feed.
type Policy struct {
	// MaxEpisodes caps the number of items, 0 means unbounded
	MaxEpisodes int
	// IncludePatron keeps patron-only episodes
	IncludePatron bool
}

// Select filters by tier, sorts newest first and truncates. The input slice is left untouched.
func Select(episodes []*model.Episode, policy Policy) []*model.Episode {
	selected := make([]*model.Episode, 0, len(episodes))
	for _, ep := range episodes {
		if ep.Tier == model.TierPatron && !policy.IncludePatron {
			continue
		}
		selected = append(selected, ep)
	}

	sort.Stable(timeSlice(selected))

	if policy.MaxEpisodes > 0 && len(selected) > policy.MaxEpisodes {
		selected = selected[:policy.MaxEpisodes]
	}

	return selected
}

// Channel is the feed level metadata.
type Channel struct {
	Title       string
	Link        string
	Description string
	ArtworkURL  string
	OwnerName   string
	OwnerEmail  string
}

// ProgramChannel describes a single program feed.
func ProgramChannel(program *model.Program) Channel {
	return Channel{
		Title:       program.Title,
		Link:        program.Link,
		Description: program.Description,
		ArtworkURL:  program.ArtworkURL,
		OwnerName:   program.AuthorName,
		OwnerEmail:  program.AuthorEmail,
	}
}

type Options struct {
	// Now is written to lastBuildDate
	Now           time.Time
	Language      string
	Category      string
	Subcategories []string
	Explicit      bool
	// Author is the itunes:author of the channel
	Author    string
	Generator string
	// GUID builds item guids, by default "{prefix}-{program}-{episode}"
	GUID       func(ep *model.Episode) string
	GUIDPrefix string
	// Programs maps program ids to titles for feeds spanning several programs.
	// When set, item titles are prefixed with the program title.
	Programs map[string]string
}

func (o Options) guid(ep *model.Episode) string {
	if o.GUID != nil {
		return o.GUID(ep)
	}
	prefix := o.GUIDPrefix
	if prefix == "" {
		prefix = "castsync"
	}
	return fmt.Sprintf("%s-%s-%s", prefix, ep.ProgramID, ep.ID)
}

func (o Options) yesNo() string {
	if o.Explicit {
		return "yes"
	}
	return "no"
}

// Build renders episodes into an iTunes compatible podcast document.
// Episodes without an enclosure are left out.
func Build(channel Channel, episodes []*model.Episode, policy Policy, opts Options) (*itunes.Podcast, error) {
	if channel.Title == "" {
		return nil, errors.New("channel title is required")
	}

	var (
		now         = opts.Now.UTC()
		description = channel.Description
		language    = opts.Language
		category    = opts.Category
		generator   = opts.Generator
		selected    = Select(episodes, policy)
	)

	if description == "" {
		description = channel.Title
	}
	if language == "" {
		language = model.DefaultLanguage
	}
	if category == "" {
		category = model.DefaultCategory
	}
	if generator == "" {
		generator = Generator
	}

	// Channel pubDate is the newest item date
	pubDate := &now
	for _, ep := range selected {
		if ep.Enclosure != nil {
			date := ep.PublishedAt.UTC()
			pubDate = &date
			break
		}
	}

	p := itunes.New(channel.Title, channel.Link, description, pubDate, &now)
	p.Generator = generator
	p.Language = language
	p.AddSummary(description)
	p.AddCategory(category, opts.Subcategories)
	p.IExplicit = opts.yesNo()

	if opts.Author != "" {
		p.IAuthor = opts.Author
	} else if channel.OwnerName != "" {
		p.IAuthor = channel.OwnerName
	}

	if channel.OwnerName != "" && channel.OwnerEmail != "" {
		p.IOwner = &itunes.Author{
			Name:  channel.OwnerName,
			Email: channel.OwnerEmail,
		}
	}

	if channel.ArtworkURL != "" {
		p.AddImage(channel.ArtworkURL)
	}

	order := 0
	for _, episode := range selected {
		if episode.Enclosure == nil || episode.Enclosure.URL == "" {
			// Nothing playable to point at
			continue
		}

		order++
		item, err := buildItem(episode, channel, opts, order)
		if err != nil {
			return nil, err
		}

		if _, err := p.AddItem(*item); err != nil {
			return nil, errors.Wrapf(err, "failed to add item to podcast (id %q)", episode.ID)
		}
	}

	return &p, nil
}

func buildItem(episode *model.Episode, channel Channel, opts Options, order int) (*itunes.Item, error) {
	title := episode.Title
	programTitle := channel.Title

	if opts.Programs != nil {
		if name, ok := opts.Programs[episode.ProgramID]; ok && name != "" {
			programTitle = name
			title = fmt.Sprintf("[%s] %s", name, title)
		}
		if episode.Subtitle != "" {
			title = fmt.Sprintf("%s - %s", title, episode.Subtitle)
		}
	}

	description := episode.Description
	if strings.TrimSpace(description) == "" {
		description = episode.Title
	}

	item := itunes.Item{
		GUID:        opts.guid(episode),
		Link:        episode.Link,
		Title:       title,
		Description: description,
		ISubtitle:   Subtitle(episode),
		IExplicit:   opts.yesNo(),
		IOrder:      strconv.Itoa(order),
	}

	categories := append([]string{programTitle}, episode.Categories...)
	item.Category = strings.Join(compact(categories), ", ")

	if len(episode.Authors) > 0 {
		first := episode.Authors[0]
		if first.Email != "" {
			item.Author = &itunes.Author{Name: first.Name, Email: first.Email}
		}

		names := make([]string, 0, len(episode.Authors))
		for _, person := range episode.Authors {
			if person.Name != "" {
				names = append(names, person.Name)
			}
		}
		item.IAuthor = strings.Join(names, ", ")
	}

	pubDate := episode.PublishedAt.UTC()
	item.AddPubDate(&pubDate)
	item.AddSummary(description)

	if episode.Duration > 0 {
		item.AddDuration(episode.Duration)
	}

	image := episode.ArtworkURL
	if image == "" {
		image = channel.ArtworkURL
	}
	if image != "" {
		item.AddImage(image)
	}

	enclosureType, err := enclosureTypeOf(episode.Enclosure.Type)
	if err != nil {
		return nil, errors.Wrapf(err, "episode %s", episode.ID)
	}
	item.AddEnclosure(episode.Enclosure.URL, enclosureType, episode.Enclosure.Length)

	return &item, nil
}

var strictPolicy = bluemonday.StrictPolicy()

// Subtitle returns the episode subtitle, deriving a plain text one from the description when missing.
func Subtitle(episode *model.Episode) string {
	if episode.Subtitle != "" {
		return episode.Subtitle
	}

	text := html.UnescapeString(strictPolicy.Sanitize(episode.Description))
	text = strings.Join(strings.Fields(text), " ")

	if utf8.RuneCountInString(text) <= model.DefaultSubtitleRunes {
		return text
	}

	runes := []rune(text)
	return strings.TrimSpace(string(runes[:model.DefaultSubtitleRunes-1])) + "…"
}

// MimeType maps a file extension to the enclosure content type.
func MimeType(ext string) string {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "m4a", "aac":
		return "audio/x-m4a"
	case "mp4":
		return "video/mp4"
	default:
		return "audio/mpeg"
	}
}

func enclosureTypeOf(mime string) (itunes.EnclosureType, error) {
	switch mime {
	case "", "audio/mpeg", "audio/mp3":
		return itunes.MP3, nil
	case "audio/x-m4a", "audio/mp4", "audio/aac":
		return itunes.M4A, nil
	case "video/mp4":
		return itunes.MP4, nil
	default:
		return 0, errors.Errorf("unsupported enclosure type %q", mime)
	}
}

func compact(values []string) []string {
	out := values[:0]
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}

// Encode serializes a podcast document.
func Encode(p *itunes.Podcast) ([]byte, error) {
	var buf bytes.Buffer
	if err := p.Encode(&buf); err != nil {
		return nil, errors.Wrap(err, "failed to encode feed")
	}
	return buf.Bytes(), nil
}
