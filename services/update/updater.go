package update

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/castsync/castsync/pkg/access"
	"github.com/castsync/castsync/pkg/catalog"
	"github.com/castsync/castsync/pkg/download"
	"github.com/castsync/castsync/pkg/feed"
	"github.com/castsync/castsync/pkg/fs"
	"github.com/castsync/castsync/pkg/model"
	"github.com/castsync/castsync/pkg/naming"
)

const (
	// OPMLName is the file name of the feed index written by batch runs
	OPMLName = "castsync.opml"
	// ClaimsName keeps the owners of episode file names in each program directory
	ClaimsName = ".castsync-names.json"
)

type FeedOptions struct {
	Policy        feed.Policy
	Language      string
	Category      string
	Subcategories []string
	Explicit      bool
	Author        string
	GUIDPrefix    string
	OPML          bool
}

type Options struct {
	Concurrency int
	// MaxEpisodes limits download runs to the newest episodes, 0 means all
	MaxEpisodes int
	// FreeOnly never logs in
	FreeOnly bool
	// RemuxExtension is the extension of files assembled from segmented streams
	RemuxExtension string
	Filters        Filters
	Feed           FeedOptions
	Hooks          []*feed.ExecHook
	Now            func() time.Time
}

type Manager struct {
	catalog    Catalog
	auth       Authenticator
	classifier *access.Classifier
	downloader Downloader
	storage    fs.Storage
	namer      *naming.Namer
	opts       Options
}

func NewUpdater(
	catalog Catalog,
	auth Authenticator,
	downloader Downloader,
	storage fs.Storage,
	namer *naming.Namer,
	opts Options,
) (*Manager, error) {
	if catalog == nil || downloader == nil || storage == nil {
		return nil, errors.New("catalog, downloader and storage are required")
	}

	if opts.Concurrency < 1 {
		opts.Concurrency = model.DefaultConcurrency
	}
	if opts.RemuxExtension == "" {
		opts.RemuxExtension = model.DefaultExtension
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if namer == nil {
		namer = naming.New(nil)
	}

	return &Manager{
		catalog:    catalog,
		auth:       auth,
		classifier: access.NewClassifier(catalog),
		downloader: downloader,
		storage:    storage,
		namer:      namer,
		opts:       opts,
	}, nil
}

// credential returns the session token. Authentication problems only restrict the run to free episodes.
func (u *Manager) credential(ctx context.Context, wantPatron bool) *model.Credential {
	if !wantPatron || u.opts.FreeOnly || u.auth == nil {
		return model.Anonymous
	}

	cred, err := u.auth.EnsureValid(ctx, true)
	if err != nil {
		log.WithError(err).Warn("authentication failed, continuing with free episodes only")
		return model.Anonymous
	}

	return cred
}

func (u *Manager) extension(ep *model.Episode) string {
	if ep.Media.Kind == model.MediaSegmented {
		return u.opts.RemuxExtension
	}
	if ext := ep.Media.Extension(); ext != "" {
		return ext
	}
	return model.DefaultExtension
}

// Download fetches the newest episodes of a program into its directory.
// The returned summary lists one item per listed episode in feed order.
func (u *Manager) Download(ctx context.Context, programID string) (*Summary, error) {
	started := time.Now()

	program, err := u.catalog.GetProgram(ctx, programID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get program %s", programID)
	}

	logger := log.WithFields(log.Fields{"program_id": program.ID, "title": program.Title})
	logger.Info("-> downloading episodes")

	summary := &Summary{Program: program}

	cred := u.credential(ctx, true)
	episodes, cred, err := u.catalog.ListEpisodes(ctx, program, cred, u.opts.MaxEpisodes)
	if err != nil {
		if len(episodes) == 0 {
			return summary, errors.Wrapf(err, "failed to list episodes of %s", program.ID)
		}
		logger.WithError(err).Warnf("episode listing stopped early, continuing with %d episode(s)", len(episodes))
		summary.Err = err
	}

	dir := u.namer.ProgramDir(program)
	summary.Items = u.fetch(ctx, cred, episodes, func(*model.Episode) (*model.Program, string) {
		return program, dir
	})

	logger.WithField("elapsed", time.Since(started).Round(time.Millisecond)).Infof("done: %s", summary)
	return summary, nil
}

// FromFeed downloads the enclosures of a previously generated feed document.
func (u *Manager) FromFeed(ctx context.Context, path string) (*Summary, error) {
	program, episodes, err := feed.ReadFeed(path)
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{"feed": path, "title": program.Title}).Infof("-> downloading %d enclosure(s)", len(episodes))

	if u.opts.MaxEpisodes > 0 && len(episodes) > u.opts.MaxEpisodes {
		episodes = feed.Select(episodes, feed.Policy{MaxEpisodes: u.opts.MaxEpisodes, IncludePatron: true})
	}

	dir := u.namer.ProgramDir(program)
	summary := &Summary{Program: program}
	summary.Items = u.fetch(ctx, model.Anonymous, episodes, func(*model.Episode) (*model.Program, string) {
		return program, dir
	})

	return summary, nil
}

// resolve classifies episodes concurrently. Episodes that can't be fetched get an item, the rest stay nil.
func (u *Manager) resolve(ctx context.Context, cred *model.Credential, episodes []*model.Episode) []*Item {
	items := make([]*Item, len(episodes))

	group := errgroup.Group{}
	group.SetLimit(u.opts.Concurrency)

	for i, ep := range episodes {
		i, ep := i, ep
		group.Go(func() error {
			decision, _, err := u.classifier.Resolve(ctx, cred, ep)
			switch {
			case err != nil:
				log.WithError(err).WithField("episode_id", ep.ID).Error("failed to resolve media")
				items[i] = &Item{Episode: ep, Outcome: Failed, Kind: KindCatalog, Err: err}
			case decision == access.Unauthorized:
				items[i] = &Item{Episode: ep, Outcome: SkippedUnauthorized}
			}
			return nil
		})
	}

	_ = group.Wait()
	return items
}

func (u *Manager) fetch(
	ctx context.Context,
	cred *model.Credential,
	episodes []*model.Episode,
	locate func(ep *model.Episode) (*model.Program, string),
) []*Item {
	items := make([]*Item, len(episodes))

	var pending []int
	for i, ep := range episodes {
		if !matchFilters(ep, u.opts.Filters) {
			items[i] = &Item{Episode: ep, Outcome: SkippedFiltered}
			continue
		}
		pending = append(pending, i)
	}

	candidates := make([]*model.Episode, len(pending))
	for j, i := range pending {
		candidates[j] = episodes[i]
	}

	for j, item := range u.resolve(ctx, cred, candidates) {
		items[pending[j]] = item
	}

	names := u.assign(ctx, episodes, func(ep *model.Episode) string {
		_, dir := locate(ep)
		return dir
	})

	// Per-episode failures never cancel the rest of the run
	group := errgroup.Group{}
	group.SetLimit(u.opts.Concurrency)

	for i, ep := range episodes {
		if items[i] != nil {
			continue
		}

		i, ep := i, ep
		group.Go(func() error {
			program, dir := locate(ep)
			task := download.Plan(ep, ep.Media, u.storage.Path(dir, ""), names[ep.ID])
			result := u.downloader.Execute(ctx, task)

			item := &Item{Episode: ep, Path: task.TargetPath, Size: result.Size, Err: result.Err}
			switch result.Status {
			case download.Downloaded:
				item.Outcome = Downloaded
				u.runHooks(ctx, task.TargetPath, ep, program)
			case download.SkippedExisting:
				item.Outcome = SkippedExisting
			default:
				item.Outcome = Failed
				item.Kind = string(result.Kind)
			}

			items[i] = item
			return nil
		})
	}

	_ = group.Wait()
	return items
}

func (u *Manager) runHooks(ctx context.Context, path string, ep *model.Episode, program *model.Program) {
	if len(u.opts.Hooks) == 0 {
		return
	}

	env := feed.HookEnv(path, ep, program)
	for i, hook := range u.opts.Hooks {
		if err := hook.Invoke(ctx, env); err != nil {
			log.WithError(err).WithFields(log.Fields{
				"episode_id": ep.ID,
				"hook":       i + 1,
			}).Error("post download hook failed")
		}
	}
}

func (u *Manager) feedOptions() feed.Options {
	return feed.Options{
		Now:           u.opts.Now(),
		Language:      u.opts.Feed.Language,
		Category:      u.opts.Feed.Category,
		Subcategories: u.opts.Feed.Subcategories,
		Explicit:      u.opts.Feed.Explicit,
		Author:        u.opts.Feed.Author,
		GUIDPrefix:    u.opts.Feed.GUIDPrefix,
	}
}

// enclose points selected episodes at playable media. Direct media is linked upstream,
// segmented media only once a remuxed local copy exists.
func (u *Manager) enclose(ctx context.Context, cred *model.Credential, episodes []*model.Episode, dirOf func(ep *model.Episode) string) {
	items := u.resolve(ctx, cred, episodes)
	names := u.assign(ctx, episodes, dirOf)

	for i, ep := range episodes {
		ep.Enclosure = nil
		if items[i] != nil {
			continue
		}

		var (
			dir  = dirOf(ep)
			name = names[ep.ID]
			ext  = u.extension(ep)
		)

		size, err := u.storage.Size(ctx, dir, name)
		local := err == nil && size > 0
		if !local {
			size = 0
		}

		switch {
		case ep.Media.Kind == model.MediaDirect:
			ep.Enclosure = &model.Enclosure{URL: ep.Media.URL, Type: feed.MimeType(ext), Length: size}
		case local:
			ep.Enclosure = &model.Enclosure{URL: u.storage.Link(dir, name), Type: feed.MimeType(ext), Length: size}
		default:
			log.WithField("episode_id", ep.ID).Debug("segmented episode not downloaded yet, leaving it out of the feed")
		}
	}
}

// assign names episodes against the claims saved in their directories, recording new owners.
// Download and feed runs share it so a file name never changes hands between them.
func (u *Manager) assign(ctx context.Context, episodes []*model.Episode, dirOf func(ep *model.Episode) string) map[string]string {
	var (
		byDir = make(map[string][]*model.Episode)
		names = make(map[string]string, len(episodes))
	)

	for _, ep := range episodes {
		dir := dirOf(ep)
		byDir[dir] = append(byDir[dir], ep)
	}

	for dir, group := range byDir {
		claims := u.loadClaims(dir)
		known := len(claims)

		for id, name := range u.namer.Assign(group, u.extension, claims) {
			names[id] = name
		}

		if len(claims) == known {
			continue
		}

		if err := u.saveClaims(ctx, dir, claims); err != nil {
			log.WithError(err).WithField("dir", dir).Warn("failed to save file name owners")
		}
	}

	return names
}

func (u *Manager) loadClaims(dir string) naming.Claims {
	data, err := os.ReadFile(u.storage.Path(dir, ClaimsName))
	if err != nil && !os.IsNotExist(err) {
		log.WithError(err).WithField("dir", dir).Warn("failed to read file name owners")
	}

	claims, err := naming.ParseClaims(data)
	if err != nil {
		log.WithError(err).WithField("dir", dir).Warn("ignoring damaged file name owners")
		return naming.Claims{}
	}

	return claims
}

func (u *Manager) saveClaims(ctx context.Context, dir string, claims naming.Claims) error {
	data, err := claims.Encode()
	if err != nil {
		return err
	}

	_, err = u.storage.Create(ctx, dir, ClaimsName, bytes.NewReader(data))
	return err
}

// publish writes a generated document to the storage root.
func (u *Manager) publish(ctx context.Context, fileName string, data []byte) (string, error) {
	if _, err := u.storage.Create(ctx, "", fileName, bytes.NewReader(data)); err != nil {
		return "", errors.Wrapf(err, "failed to write %s", fileName)
	}
	return u.storage.Path("", fileName), nil
}

// episodeLimit is how many episodes to list for a feed. Without patron episodes the free ones
// may be spread over any number of pages.
func (u *Manager) episodeLimit() int {
	if u.opts.Feed.Policy.IncludePatron {
		return u.opts.Feed.Policy.MaxEpisodes
	}
	return 0
}

// Feed regenerates the feed document of a program.
func (u *Manager) Feed(ctx context.Context, programID string) (*FeedResult, error) {
	program, err := u.catalog.GetProgram(ctx, programID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get program %s", programID)
	}

	logger := log.WithFields(log.Fields{"program_id": program.ID, "title": program.Title})
	logger.Info("-> building feed")

	policy := u.opts.Feed.Policy
	cred := u.credential(ctx, policy.IncludePatron)

	episodes, cred, err := u.catalog.ListEpisodes(ctx, program, cred, u.episodeLimit())
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list episodes of %s", program.ID)
	}

	selected := feed.Select(episodes, policy)

	dir := u.namer.ProgramDir(program)
	u.enclose(ctx, cred, selected, func(*model.Episode) string { return dir })

	podcast, err := feed.Build(feed.ProgramChannel(program), selected, policy, u.feedOptions())
	if err != nil {
		return nil, errors.Wrapf(err, "failed to build feed of %s", program.ID)
	}

	data, err := feed.Encode(podcast)
	if err != nil {
		return nil, err
	}

	fileName := dir + ".xml"
	path, err := u.publish(ctx, fileName, data)
	if err != nil {
		return nil, err
	}

	logger.Infof("wrote %d item(s) to %s", len(podcast.Items), path)

	return &FeedResult{
		Program: program,
		Title:   program.Title,
		Path:    path,
		URL:     u.storage.Link("", fileName),
		Items:   len(podcast.Items),
	}, nil
}

// Feeds builds one feed per program. A failing program does not stop the others.
func (u *Manager) Feeds(ctx context.Context, programIDs []string) ([]*FeedResult, error) {
	var (
		results []*FeedResult
		errs    *multierror.Error
	)

	for _, id := range programIDs {
		if err := ctx.Err(); err != nil {
			errs = multierror.Append(errs, err)
			break
		}

		result, err := u.Feed(ctx, id)
		if err != nil {
			log.WithError(err).WithField("program_id", id).Error("feed failed")
			errs = multierror.Append(errs, err)
			continue
		}

		results = append(results, result)
	}

	if u.opts.Feed.OPML && len(results) > 0 {
		if err := u.writeOPML(ctx, results); err != nil {
			errs = multierror.Append(errs, err)
		}
	}

	return results, errs.ErrorOrNil()
}

func (u *Manager) writeOPML(ctx context.Context, results []*FeedResult) error {
	entries := make([]feed.OPMLEntry, 0, len(results))
	for _, result := range results {
		entry := feed.OPMLEntry{Title: result.Title, URL: result.URL}
		if result.Program != nil {
			entry.Description = result.Program.Description
		}
		entries = append(entries, entry)
	}

	doc, err := feed.BuildOPML("castsync feeds", entries)
	if err != nil {
		return err
	}

	path, err := u.publish(ctx, OPMLName, []byte(doc))
	if err != nil {
		return err
	}

	log.Infof("wrote OPML index with %d feed(s) to %s", len(entries), path)
	return nil
}

// collect lists episodes of several programs. Failing programs are logged and skipped.
func (u *Manager) collect(ctx context.Context, cred *model.Credential, programIDs []string, limit int) (map[string]*model.Program, []*model.Episode, *model.Credential, error) {
	var (
		programs = make(map[string]*model.Program)
		all      []*model.Episode
		errs     *multierror.Error
	)

	for _, id := range programIDs {
		program, err := u.catalog.GetProgram(ctx, id)
		if err != nil {
			errs = multierror.Append(errs, errors.Wrapf(err, "failed to get program %s", id))
			continue
		}

		episodes, next, err := u.catalog.ListEpisodes(ctx, program, cred, limit)
		if next != nil {
			cred = next
		}
		if err != nil {
			errs = multierror.Append(errs, errors.Wrapf(err, "failed to list episodes of %s", id))
			var catalogErr *catalog.Error
			if !errors.As(err, &catalogErr) || len(episodes) == 0 {
				continue
			}
		}

		programs[program.ID] = program
		all = append(all, episodes...)
	}

	if len(programs) == 0 && errs != nil {
		return nil, nil, cred, errs.ErrorOrNil()
	}

	if errs != nil {
		log.WithError(errs).Warn("some programs could not be listed")
	}

	return programs, all, cred, nil
}

// Authors aggregates team members across programs.
func (u *Manager) Authors(ctx context.Context, programIDs []string) ([]*catalog.Author, error) {
	programs, episodes, _, err := u.collect(ctx, model.Anonymous, programIDs, 0)
	if err != nil {
		return nil, err
	}

	return catalog.Authors(episodes, programTitles(programs)), nil
}

// AuthorFeed builds one feed out of every episode a team member appears in.
func (u *Manager) AuthorFeed(ctx context.Context, email string, programIDs []string) (*FeedResult, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, errors.New("author email is required")
	}

	logger := log.WithField("author", email)
	logger.Info("-> building author feed")

	policy := u.opts.Feed.Policy
	cred := u.credential(ctx, policy.IncludePatron)

	programs, episodes, cred, err := u.collect(ctx, cred, programIDs, u.episodeLimit())
	if err != nil {
		return nil, err
	}

	authored := catalog.ByAuthor(episodes, email)
	if len(authored) == 0 {
		return nil, errors.Wrapf(model.ErrNotFound, "no episodes by %s", email)
	}

	name := email
	for _, person := range authored[0].Authors {
		if strings.EqualFold(person.Email, email) && person.Name != "" {
			name = person.Name
			break
		}
	}

	selected := feed.Select(authored, policy)

	dirs := make(map[string]string, len(programs))
	for id, program := range programs {
		dirs[id] = u.namer.ProgramDir(program)
	}
	u.enclose(ctx, cred, selected, func(ep *model.Episode) string { return dirs[ep.ProgramID] })

	var (
		titles = programTitles(programs)
		opts   = u.feedOptions()
		prefix = fmt.Sprintf("%s-author-%s", opts.GUIDPrefix, strings.ToLower(email))
	)

	if opts.GUIDPrefix == "" {
		prefix = "castsync-author-" + strings.ToLower(email)
	}

	opts.Programs = titles
	opts.GUID = func(ep *model.Episode) string {
		return fmt.Sprintf("%s-%s", prefix, ep.ID)
	}

	channel := feed.Channel{
		Title:       name,
		Description: fmt.Sprintf("%s: %s", name, strings.Join(authorPrograms(authored, titles), ", ")),
		OwnerName:   name,
		OwnerEmail:  email,
	}
	for _, ep := range authored {
		if program, ok := programs[ep.ProgramID]; ok {
			channel.Link = program.Link
			channel.ArtworkURL = program.ArtworkURL
			break
		}
	}

	podcast, err := feed.Build(channel, selected, policy, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to build author feed of %s", email)
	}

	data, err := feed.Encode(podcast)
	if err != nil {
		return nil, err
	}

	fileName := fmt.Sprintf("author_%s.xml", naming.Slug(email))
	path, err := u.publish(ctx, fileName, data)
	if err != nil {
		return nil, err
	}

	logger.Infof("wrote %d item(s) to %s", len(podcast.Items), path)

	return &FeedResult{
		Title: name,
		Path:  path,
		URL:   u.storage.Link("", fileName),
		Items: len(podcast.Items),
	}, nil
}

func programTitles(programs map[string]*model.Program) map[string]string {
	titles := make(map[string]string, len(programs))
	for id, program := range programs {
		titles[id] = program.Title
	}
	return titles
}

// authorPrograms lists program titles in order of first appearance.
func authorPrograms(episodes []*model.Episode, titles map[string]string) []string {
	var (
		out  []string
		seen = make(map[string]struct{})
	)

	for _, ep := range episodes {
		title, ok := titles[ep.ProgramID]
		if !ok {
			continue
		}
		if _, dup := seen[title]; dup {
			continue
		}
		seen[title] = struct{}{}
		out = append(out, title)
	}

	return out
}
