package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/castsync/castsync/pkg/access"
	"github.com/castsync/castsync/pkg/model"
)

// flexString accepts both JSON strings and numbers.
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*s = ""
		return nil
	}

	if len(b) > 0 && b[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*s = flexString(strings.TrimSpace(str))
		return nil
	}

	var num json.Number
	if err := json.Unmarshal(b, &num); err != nil {
		return err
	}
	*s = flexString(num.String())
	return nil
}

// flexInt accepts numbers, numeric strings and "HH:MM:SS" durations.
// Anything else is logged and read as 0, it never rejects the record.
type flexInt int64

func (n *flexInt) UnmarshalJSON(b []byte) error {
	v, err := parseFlexInt(b)
	if err != nil {
		log.WithError(err).Warn("ignoring malformed numeric field")
		v = 0
	}
	*n = flexInt(v)
	return nil
}

func parseFlexInt(b []byte) (int64, error) {
	var s flexString
	if err := s.UnmarshalJSON(b); err != nil {
		return 0, errors.Wrap(err, "invalid number")
	}

	str := string(s)
	if str == "" {
		return 0, nil
	}

	if strings.Contains(str, ":") {
		var total int64
		for _, part := range strings.Split(str, ":") {
			v, err := strconv.ParseInt(part, 10, 64)
			if err != nil {
				return 0, errors.Wrapf(err, "invalid duration %q", str)
			}
			total = total*60 + v
		}
		return total, nil
	}

	v, err := strconv.ParseFloat(str, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid number %q", str)
	}
	return int64(v), nil
}

type rawPerson struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type rawCategory struct {
	Name string `json:"name"`
}

type rawProgram struct {
	ID          flexString  `json:"id"`
	Name        string      `json:"name"`
	Title       string      `json:"title"`
	Desc        string      `json:"desc"`
	Description string      `json:"description"`
	Image       string      `json:"image"`
	Team        []rawPerson `json:"team"`
}

type rawEpisode struct {
	ID              flexString      `json:"id"`
	Title           string          `json:"title"`
	SubTitle        string          `json:"subTitle"`
	Subtitle        string          `json:"subtitle"`
	DescriptionRich string          `json:"descriptionRich"`
	Description     string          `json:"description"`
	Desc            string          `json:"desc"`
	PublishedAt     model.Timestamp `json:"publishedAt"`
	IsFree          *bool           `json:"isFree"`
	Exclusive       *bool           `json:"exclusive"`
	Tier            string          `json:"tier"`
	Duration        flexInt         `json:"duration"`
	Image           string          `json:"image"`
	Team            []rawPerson     `json:"team"`
	Categories      []rawCategory   `json:"categories"`
}

type programsPage struct {
	Embedded *struct {
		Programs []json.RawMessage `json:"programs"`
	} `json:"_embedded"`
	Total *int `json:"total"`
}

type episodesPage struct {
	Embedded *struct {
		Podcasts []json.RawMessage `json:"podcasts"`
	} `json:"_embedded"`
	Total *int `json:"total"`
}

func (c *Client) normalizeProgram(raw *rawProgram) (*model.Program, error) {
	id := string(raw.ID)
	if id == "" {
		return nil, errors.New("program has no id")
	}

	title := firstNonEmpty(raw.Name, raw.Title)
	if title == "" {
		title = fmt.Sprintf("Program %s", id)
	}

	p := &model.Program{
		ID:          id,
		Title:       title,
		Description: firstNonEmpty(raw.Desc, raw.Description),
		ArtworkURL:  raw.Image,
		Link:        c.programLink(),
	}

	for _, member := range raw.Team {
		if member.Name != "" {
			p.AuthorName = strings.TrimSpace(member.Name)
			p.AuthorEmail = strings.TrimSpace(member.Email)
			break
		}
	}

	return p, nil
}

// normalizeEpisode validates a raw record. Missing id, title or publish date rejects it,
// missing optional fields fall back to the program.
func (c *Client) normalizeEpisode(program *model.Program, raw *rawEpisode) (*model.Episode, error) {
	id := string(raw.ID)
	switch {
	case id == "":
		return nil, errors.New("missing id")
	case strings.TrimSpace(raw.Title) == "":
		return nil, errors.Errorf("episode %s: missing title", id)
	case raw.PublishedAt.IsZero():
		return nil, errors.Errorf("episode %s: missing publish date", id)
	}

	ep := &model.Episode{
		ID:          id,
		ProgramID:   program.ID,
		Title:       strings.TrimSpace(raw.Title),
		Subtitle:    strings.TrimSpace(firstNonEmpty(raw.SubTitle, raw.Subtitle)),
		Description: firstNonEmpty(raw.DescriptionRich, raw.Description, raw.Desc, program.Description),
		PublishedAt: raw.PublishedAt.Time().UTC(),
		Duration:    int64(raw.Duration),
		Tier:        access.TierOf(access.Marker{IsFree: raw.IsFree, Exclusive: raw.Exclusive, Tier: raw.Tier}),
		ArtworkURL:  firstNonEmpty(raw.Image, program.ArtworkURL),
		Link:        c.episodeLink(id),
	}

	for _, member := range raw.Team {
		name, email := strings.TrimSpace(member.Name), strings.TrimSpace(member.Email)
		if name == "" && email == "" {
			continue
		}
		ep.Authors = append(ep.Authors, model.Person{Name: name, Email: email})
	}

	if len(ep.Authors) == 0 && program.AuthorName != "" {
		ep.Authors = []model.Person{{Name: program.AuthorName, Email: program.AuthorEmail}}
	}

	for _, category := range raw.Categories {
		if name := strings.TrimSpace(category.Name); name != "" {
			ep.Categories = append(ep.Categories, name)
		}
	}

	return ep, nil
}

func (c *Client) programLink() string {
	if c.cfg.SiteURL == "" {
		return ""
	}
	return fmt.Sprintf("%s/podcasty/audycje/", c.cfg.SiteURL)
}

func (c *Client) episodeLink(id string) string {
	if c.cfg.SiteURL == "" {
		return ""
	}
	return fmt.Sprintf("%s/podcasty/audycje/odcinek/%s/", c.cfg.SiteURL, id)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
