package model

import (
	"time"
)

const (
	DefaultPageSize      = 250
	DefaultProgramsPage  = 250
	DefaultExpiryMargin  = 60 * time.Second
	DefaultTokenTTL      = 15 * time.Minute
	DefaultConcurrency   = 2
	DefaultMaxEpisodes   = 50
	DefaultExtension     = "mp3"
	DefaultLanguage      = "pl-PL"
	DefaultCategory      = "Arts"
	DefaultRequestRate   = 3.0
	DefaultHTTPTimeout   = 10 * time.Second
	DefaultRemuxTimeout  = 30 * time.Minute
	DefaultLogMaxSize    = 50 // megabytes
	DefaultUpdatePeriod  = 6 * time.Hour
	DefaultSubtitleRunes = 250
)

// UserAgent is sent with every upstream request
const UserAgent = "castsync/1.0 (+https://github.com/castsync/castsync)"
