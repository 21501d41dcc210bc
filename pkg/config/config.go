package config

import (
	"fmt"
	"io/ioutil"
	"net/url"
	"path/filepath"
	"regexp"
	"time"
	_ "time/tzdata"

	"github.com/hashicorp/go-multierror"
	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/castsync/castsync/pkg/creds"
	"github.com/castsync/castsync/pkg/feed"
	"github.com/castsync/castsync/pkg/model"
	"github.com/castsync/castsync/pkg/remux"
)

const (
	DefaultContentURL = "https://static.radio357.pl/api/content/v1"
	DefaultGatewayURL = "https://gateway.r357.eu/api"
	DefaultAuthURL    = "https://auth.r357.eu/api"
	DefaultSiteURL    = "https://radio357.pl"
	DefaultAuthor     = "Radio 357"
	DefaultGUIDPrefix = "radio357"
)

type Server struct {
	// Hostname to use for download links
	Hostname string `toml:"hostname"`
	// Port is a server port to listen to
	Port int `toml:"port"`
	// BindAddress restricts the listener, "*" or empty means all interfaces
	BindAddress string `toml:"bind_address"`
	// Path is the URL prefix files are served under
	Path string `toml:"path"`
	// DataDir keeps feeds and downloaded episodes
	DataDir string `toml:"data_dir"`
}

type Auth struct {
	// TokenFile is where the credential is persisted
	TokenFile string `toml:"token_file"`
	// Email and Password are used for non interactive login
	Email    string `toml:"email"`
	Password string `toml:"password"`
	// Margin is how long before expiry a token is refreshed
	Margin Duration `toml:"margin"`
	// TTL is assumed when the auth service does not report an expiry
	TTL Duration `toml:"ttl"`
}

type API struct {
	ContentURL string `toml:"content_url"`
	GatewayURL string `toml:"gateway_url"`
	AuthURL    string `toml:"auth_url"`
	SiteURL    string `toml:"site_url"`
	PageSize   int    `toml:"page_size"`
	// RequestRate is the number of catalog requests per second, 0 disables pacing
	RequestRate float64  `toml:"request_rate"`
	Timeout     Duration `toml:"timeout"`
	MaxRetries  int      `toml:"max_retries"`
}

type Download struct {
	Concurrency int `toml:"concurrency"`
	// MaxEpisodes is how many of the newest episodes to fetch, 0 means all
	MaxEpisodes int `toml:"max_episodes"`
	// FreeOnly skips login and patron episodes
	FreeOnly bool `toml:"free_only"`
	// Timezone of dates in file names
	Timezone string `toml:"timezone"`
}

type Remux struct {
	FFmpegPath string   `toml:"ffmpeg_path"`
	Format     string   `toml:"format"`
	Bitrate    string   `toml:"bitrate"`
	Timeout    Duration `toml:"timeout"`
	Args       []string `toml:"args"`
}

// Remuxer converts the section into the ffmpeg wrapper configuration
func (r Remux) Remuxer() remux.Config {
	return remux.Config{
		Path:    r.FFmpegPath,
		Format:  r.Format,
		Bitrate: r.Bitrate,
		Timeout: r.Timeout.Duration,
		Args:    r.Args,
	}
}

type Feed struct {
	MaxEpisodes   int      `toml:"max_episodes"`
	IncludePatron bool     `toml:"include_patron"`
	Language      string   `toml:"lang"`
	Category      string   `toml:"category"`
	Subcategories []string `toml:"subcategories"`
	Explicit      bool     `toml:"explicit"`
	Author        string   `toml:"author"`
	GUIDPrefix    string   `toml:"guid_prefix"`
	// OPML writes an index of generated feeds on batch runs
	OPML bool `toml:"opml"`
}

// Filters narrow down downloaded episodes, empty patterns match anything
type Filters struct {
	Title          string `toml:"title"`
	NotTitle       string `toml:"not_title"`
	Description    string `toml:"description"`
	NotDescription string `toml:"not_description"`
	MinDuration    int64  `toml:"min_duration"` // Seconds
}

type Log struct {
	// Filename to write the log to (in addition to stderr)
	Filename string `toml:"filename"`
	// MaxSize is the size in MB at which the log file is rotated on startup
	MaxSize int  `toml:"max_size"`
	Debug   bool `toml:"debug"`
}

type Schedule struct {
	// Cron expression for batch runs in serve mode
	Cron string `toml:"cron_schedule"`
	// UpdatePeriod is used when no cron expression is given
	UpdatePeriod Duration `toml:"update_period"`
}

type Config struct {
	Server   Server   `toml:"server"`
	Auth     Auth     `toml:"auth"`
	API      API      `toml:"api"`
	Download Download `toml:"download"`
	Remux    Remux    `toml:"remux"`
	Feed     Feed     `toml:"feed"`
	Filters  Filters  `toml:"filters"`
	Log      Log      `toml:"log"`
	Schedule Schedule `toml:"schedule"`
	// Programs lists program ids to process in batch runs
	Programs StringSlice `toml:"programs"`
	// ProgramsFile is a file with one program id per line
	ProgramsFile string `toml:"programs_file"`
	// Hooks run after each downloaded episode
	Hooks []*feed.ExecHook `toml:"hooks"`
}

// LoadConfig loads TOML configuration from a file path
func LoadConfig(path string) (*Config, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read config file: %s", path)
	}

	config, err := Parse(data)
	if err != nil {
		return nil, err
	}

	if config.ProgramsFile != "" && !filepath.IsAbs(config.ProgramsFile) {
		config.ProgramsFile = filepath.Join(filepath.Dir(path), config.ProgramsFile)
	}

	return config, nil
}

// Parse decodes a TOML document, applies defaults and validates the result
func Parse(data []byte) (*Config, error) {
	config := Config{}
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal toml")
	}

	config.applyDefaults()

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Default returns a configuration suitable for running without a config file
func Default() *Config {
	config := Config{}
	config.applyDefaults()
	return &config
}

func (c *Config) validate() error {
	var result *multierror.Error

	if c.Server.DataDir == "" {
		result = multierror.Append(result, errors.New("data directory is required"))
	}

	for name, value := range map[string]string{
		"content_url": c.API.ContentURL,
		"gateway_url": c.API.GatewayURL,
		"auth_url":    c.API.AuthURL,
		"site_url":    c.API.SiteURL,
		"hostname":    c.Server.Hostname,
	} {
		if u, err := url.Parse(value); err != nil || u.Scheme == "" || u.Host == "" {
			result = multierror.Append(result, errors.Errorf("%s must be an absolute URL (got %q)", name, value))
		}
	}

	if c.API.PageSize < 0 {
		result = multierror.Append(result, errors.New("page_size can't be negative"))
	}

	if c.API.RequestRate < 0 {
		result = multierror.Append(result, errors.New("request_rate can't be negative"))
	}

	if c.Download.Concurrency < 1 {
		result = multierror.Append(result, errors.New("download concurrency must be at least 1"))
	}

	if c.Download.MaxEpisodes < 0 || c.Feed.MaxEpisodes < 0 {
		result = multierror.Append(result, errors.New("max_episodes can't be negative"))
	}

	if _, err := time.LoadLocation(c.Download.Timezone); err != nil {
		result = multierror.Append(result, errors.Wrapf(err, "invalid timezone %q", c.Download.Timezone))
	}

	switch c.Remux.Format {
	case remux.FormatMP3, remux.FormatM4A:
	default:
		result = multierror.Append(result, errors.Errorf("unsupported remux format %q", c.Remux.Format))
	}

	if c.Schedule.Cron != "" {
		if _, err := cron.ParseStandard(c.Schedule.Cron); err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "invalid cron schedule %q", c.Schedule.Cron))
		}
	}

	for name, pattern := range map[string]string{
		"title":           c.Filters.Title,
		"not_title":       c.Filters.NotTitle,
		"description":     c.Filters.Description,
		"not_description": c.Filters.NotDescription,
	} {
		if _, err := regexp.Compile(pattern); err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "invalid %s filter", name))
		}
	}

	for i, hook := range c.Hooks {
		if hook == nil || len(hook.Command) == 0 {
			result = multierror.Append(result, errors.Errorf("hook #%d has no command", i+1))
		}
	}

	return result.ErrorOrNil()
}

func (c *Config) applyDefaults() {
	if c.Server.Hostname == "" {
		if c.Server.Port != 0 && c.Server.Port != 80 {
			c.Server.Hostname = fmt.Sprintf("http://localhost:%d", c.Server.Port)
		} else {
			c.Server.Hostname = "http://localhost"
		}
	}

	if c.Server.DataDir == "" {
		c.Server.DataDir = "data"
	}

	if c.Auth.TokenFile == "" {
		c.Auth.TokenFile = creds.DefaultPath
	}
	if c.Auth.Margin.Duration == 0 {
		c.Auth.Margin.Duration = model.DefaultExpiryMargin
	}
	if c.Auth.TTL.Duration == 0 {
		c.Auth.TTL.Duration = model.DefaultTokenTTL
	}

	if c.API.ContentURL == "" {
		c.API.ContentURL = DefaultContentURL
	}
	if c.API.GatewayURL == "" {
		c.API.GatewayURL = DefaultGatewayURL
	}
	if c.API.AuthURL == "" {
		c.API.AuthURL = DefaultAuthURL
	}
	if c.API.SiteURL == "" {
		c.API.SiteURL = DefaultSiteURL
	}
	if c.API.PageSize == 0 {
		c.API.PageSize = model.DefaultPageSize
	}
	if c.API.RequestRate == 0 {
		c.API.RequestRate = model.DefaultRequestRate
	}
	if c.API.Timeout.Duration == 0 {
		c.API.Timeout.Duration = model.DefaultHTTPTimeout
	}

	if c.Download.Concurrency == 0 {
		c.Download.Concurrency = model.DefaultConcurrency
	}
	if c.Download.Timezone == "" {
		c.Download.Timezone = "Europe/Warsaw"
	}

	if c.Remux.Format == "" {
		c.Remux.Format = remux.FormatMP3
	}
	if c.Remux.Timeout.Duration == 0 {
		c.Remux.Timeout.Duration = model.DefaultRemuxTimeout
	}

	if c.Feed.MaxEpisodes == 0 {
		c.Feed.MaxEpisodes = model.DefaultMaxEpisodes
	}
	if c.Feed.Language == "" {
		c.Feed.Language = model.DefaultLanguage
	}
	if c.Feed.Category == "" {
		c.Feed.Category = model.DefaultCategory
	}
	if c.Feed.Author == "" {
		c.Feed.Author = DefaultAuthor
	}
	if c.Feed.GUIDPrefix == "" {
		c.Feed.GUIDPrefix = DefaultGUIDPrefix
	}

	if c.Log.Filename != "" && c.Log.MaxSize == 0 {
		c.Log.MaxSize = model.DefaultLogMaxSize
	}

	if c.Schedule.UpdatePeriod.Duration == 0 {
		c.Schedule.UpdatePeriod.Duration = model.DefaultUpdatePeriod
	}
}

// Location returns the time zone used for file names
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Download.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// CronSchedule returns the batch schedule in a form accepted by cron
func (c *Config) CronSchedule() string {
	if c.Schedule.Cron != "" {
		return c.Schedule.Cron
	}
	return fmt.Sprintf("@every %s", c.Schedule.UpdatePeriod.String())
}
