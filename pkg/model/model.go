package model

import (
	"net/url"
	"path"
	"strings"
	"time"
)

// Tier is the access tier of an episode
type Tier string

const (
	TierFree   = Tier("free")
	TierPatron = Tier("patron")
)

// MediaKind tells how an episode's audio is delivered
type MediaKind string

const (
	MediaDirect    = MediaKind("direct")
	MediaSegmented = MediaKind("segmented")
)

// MediaRef is a resolved reference to episode audio.
type MediaRef struct {
	URL  string
	Kind MediaKind
}

// NewMediaRef classifies a media URL. HLS manifests are segmented, everything else is a direct file.
func NewMediaRef(link string) MediaRef {
	ref := MediaRef{URL: link, Kind: MediaDirect}

	lower := strings.ToLower(link)
	if parsed, err := url.Parse(lower); err == nil {
		if path.Ext(parsed.Path) == ".m3u8" || strings.Contains(parsed.RawQuery, "m3u8") {
			ref.Kind = MediaSegmented
		}
	} else if strings.Contains(lower, ".m3u8") {
		ref.Kind = MediaSegmented
	}

	return ref
}

// IsZero reports whether the reference is unresolved.
func (m MediaRef) IsZero() bool {
	return m.URL == ""
}

// Extension returns the file extension of a direct media URL, or an empty string.
func (m MediaRef) Extension() string {
	parsed, err := url.Parse(m.URL)
	if err != nil {
		return ""
	}

	ext := strings.TrimPrefix(strings.ToLower(path.Ext(parsed.Path)), ".")
	switch ext {
	case "mp3", "m4a", "aac", "ogg", "opus", "mp4", "wav", "flac":
		return ext
	default:
		return ""
	}
}

type Person struct {
	Name  string
	Email string
}

type Program struct {
	ID          string
	Title       string
	AuthorName  string
	AuthorEmail string
	Description string
	ArtworkURL  string
	Link        string
}

type Episode struct {
	ID          string
	ProgramID   string
	Title       string
	Subtitle    string
	Description string // May contain HTML
	PublishedAt time.Time
	Duration    int64 // Seconds
	Tier        Tier
	Media       MediaRef
	ArtworkURL  string
	Link        string
	Authors     []Person
	Categories  []string
	Enclosure   *Enclosure
}

// Enclosure is the playable media location emitted into a feed.
type Enclosure struct {
	URL    string
	Type   string
	Length int64
}
