package update

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castsync/castsync/pkg/catalog"
	"github.com/castsync/castsync/pkg/download"
	"github.com/castsync/castsync/pkg/feed"
	"github.com/castsync/castsync/pkg/fs"
	"github.com/castsync/castsync/pkg/model"
	"github.com/castsync/castsync/pkg/naming"
)

var (
	testCtx   = context.Background()
	testNow   = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	poranek   = &model.Program{ID: "12", Title: "Poranek Radia", Link: "https://radio357.pl/program/12"}
	wieczor   = &model.Program{ID: "14", Title: "Wieczór", Link: "https://radio357.pl/program/14"}
	anna      = model.Person{Name: "Anna Nowak", Email: "anna@radio357.pl"}
	piotr     = model.Person{Name: "Piotr Kowalski", Email: "piotr@radio357.pl"}
	published = func(day int) time.Time {
		return time.Date(2024, 5, day, 8, 0, 0, 0, time.UTC)
	}
)

func newStorage(t *testing.T) *fs.Local {
	t.Helper()
	storage, err := fs.NewLocal(t.TempDir(), "localhost")
	require.NoError(t, err)
	return storage
}

func newManager(t *testing.T, cat Catalog, auth Authenticator, dl Downloader, storage fs.Storage, opts Options) *Manager {
	t.Helper()
	if opts.Now == nil {
		opts.Now = func() time.Time { return testNow }
	}
	manager, err := NewUpdater(cat, auth, dl, storage, naming.New(time.UTC), opts)
	require.NoError(t, err)
	return manager
}

func downloaded(_ context.Context, task *download.Task) download.Result {
	return download.Result{Task: task, Status: download.Downloaded, Size: 5}
}

func TestNewUpdater_RequiresDeps(t *testing.T) {
	_, err := NewUpdater(nil, nil, nil, nil, nil, Options{})
	assert.Error(t, err)
}

func TestDownload(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	var (
		direct  = &model.Episode{ID: "1", ProgramID: "12", Title: "Wywiad", PublishedAt: published(2), Tier: model.TierFree, Media: model.NewMediaRef("https://cdn.example.com/1.mp3")}
		patron  = &model.Episode{ID: "2", ProgramID: "12", Title: "Tylko dla patronów", PublishedAt: published(2), Tier: model.TierPatron}
		stream  = &model.Episode{ID: "3", ProgramID: "12", Title: "Koncert", PublishedAt: published(1), Tier: model.TierFree}
		storage = newStorage(t)
	)

	cat := NewMockCatalog(ctrl)
	cat.EXPECT().GetProgram(gomock.Any(), "12").Return(poranek, nil)
	cat.EXPECT().ListEpisodes(gomock.Any(), poranek, model.Anonymous, 50).Return([]*model.Episode{direct, patron, stream}, model.Anonymous, nil)
	cat.EXPECT().ResolveMedia(gomock.Any(), model.Anonymous, stream).Return(model.NewMediaRef("https://cdn.example.com/3/index.m3u8"), nil)

	dl := NewMockDownloader(ctrl)
	dl.EXPECT().Execute(gomock.Any(), gomock.Any()).Times(2).DoAndReturn(downloaded)

	manager := newManager(t, cat, nil, dl, storage, Options{FreeOnly: true, MaxEpisodes: 50, RemuxExtension: "m4a"})

	summary, err := manager.Download(testCtx, "12")
	require.NoError(t, err)
	require.Len(t, summary.Items, 3)

	assert.Equal(t, Downloaded, summary.Items[0].Outcome)
	assert.Equal(t, filepath.Join(storage.Root(), "poranek_radia", "2024-05-02_wywiad.mp3"), summary.Items[0].Path)

	assert.Equal(t, SkippedUnauthorized, summary.Items[1].Outcome)
	assert.Empty(t, summary.Items[1].Path)

	assert.Equal(t, Downloaded, summary.Items[2].Outcome)
	assert.Equal(t, filepath.Join(storage.Root(), "poranek_radia", "2024-05-01_koncert.m4a"), summary.Items[2].Path)
	assert.Equal(t, model.MediaSegmented, stream.Media.Kind)

	assert.True(t, summary.OK())
	assert.Equal(t, 2, summary.Count(Downloaded))
	assert.Equal(t, "downloaded: 2, skipped (existing): 0, skipped (unauthorized): 1, failed: 0", summary.String())
}

func TestDownload_PassesTaskToDownloader(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ep := &model.Episode{ID: "1", ProgramID: "12", Title: "Wywiad", PublishedAt: published(2), Media: model.NewMediaRef("https://cdn.example.com/1.mp3")}
	storage := newStorage(t)

	cat := NewMockCatalog(ctrl)
	cat.EXPECT().GetProgram(gomock.Any(), "12").Return(poranek, nil)
	cat.EXPECT().ListEpisodes(gomock.Any(), poranek, gomock.Any(), 0).Return([]*model.Episode{ep}, model.Anonymous, nil)

	dl := NewMockDownloader(ctrl)
	dl.EXPECT().Execute(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, task *download.Task) download.Result {
		assert.Equal(t, ep, task.Episode)
		assert.Equal(t, model.MediaDirect, task.Strategy)
		assert.Equal(t, "https://cdn.example.com/1.mp3", task.Media.URL)
		return download.Result{Task: task, Status: download.SkippedExisting}
	})

	manager := newManager(t, cat, nil, dl, storage, Options{FreeOnly: true})

	summary, err := manager.Download(testCtx, "12")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Count(SkippedExisting))
}

func TestDownload_PartialListing(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ep := &model.Episode{ID: "1", ProgramID: "12", Title: "Wywiad", PublishedAt: published(2), Media: model.NewMediaRef("https://cdn.example.com/1.mp3")}
	listErr := &catalog.Error{Op: "list episodes of 12 (page 1)", Status: 500, Err: errors.New("server error"), Partial: []*model.Episode{ep}}

	cat := NewMockCatalog(ctrl)
	cat.EXPECT().GetProgram(gomock.Any(), "12").Return(poranek, nil)
	cat.EXPECT().ListEpisodes(gomock.Any(), poranek, gomock.Any(), gomock.Any()).Return([]*model.Episode{ep}, model.Anonymous, listErr)

	dl := NewMockDownloader(ctrl)
	dl.EXPECT().Execute(gomock.Any(), gomock.Any()).DoAndReturn(downloaded)

	manager := newManager(t, cat, nil, dl, newStorage(t), Options{FreeOnly: true})

	summary, err := manager.Download(testCtx, "12")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Count(Downloaded))
	assert.Equal(t, listErr, summary.Err)
	assert.False(t, summary.OK())
}

func TestDownload_ListingFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	cat := NewMockCatalog(ctrl)
	cat.EXPECT().GetProgram(gomock.Any(), "12").Return(poranek, nil)
	cat.EXPECT().ListEpisodes(gomock.Any(), poranek, gomock.Any(), gomock.Any()).Return(nil, model.Anonymous, &catalog.Error{Op: "list", Err: errors.New("down")})

	manager := newManager(t, cat, nil, NewMockDownloader(ctrl), newStorage(t), Options{FreeOnly: true})

	_, err := manager.Download(testCtx, "12")
	assert.Error(t, err)
}

func TestDownload_UnknownProgram(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	cat := NewMockCatalog(ctrl)
	cat.EXPECT().GetProgram(gomock.Any(), "99").Return(nil, errors.Wrap(model.ErrNotFound, "program 99"))

	manager := newManager(t, cat, nil, NewMockDownloader(ctrl), newStorage(t), Options{})

	_, err := manager.Download(testCtx, "99")
	assert.True(t, errors.Is(err, model.ErrNotFound))
}

func TestDownload_AuthFailureFallsBackToFree(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	auth := NewMockAuthenticator(ctrl)
	auth.EXPECT().EnsureValid(gomock.Any(), true).Return(nil, model.ErrLoginFailed)

	cat := NewMockCatalog(ctrl)
	cat.EXPECT().GetProgram(gomock.Any(), "12").Return(poranek, nil)
	cat.EXPECT().ListEpisodes(gomock.Any(), poranek, model.Anonymous, 0).Return(nil, model.Anonymous, nil)

	manager := newManager(t, cat, auth, NewMockDownloader(ctrl), newStorage(t), Options{})

	summary, err := manager.Download(testCtx, "12")
	require.NoError(t, err)
	assert.Empty(t, summary.Items)
}

func TestDownload_UsesSessionCredential(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	var (
		cred   = &model.Credential{AccessToken: "token", ExpiresAt: testNow.Add(time.Hour)}
		patron = &model.Episode{ID: "2", ProgramID: "12", Title: "Dla patronów", PublishedAt: published(3), Tier: model.TierPatron}
	)

	auth := NewMockAuthenticator(ctrl)
	auth.EXPECT().EnsureValid(gomock.Any(), true).Return(cred, nil)

	cat := NewMockCatalog(ctrl)
	cat.EXPECT().GetProgram(gomock.Any(), "12").Return(poranek, nil)
	cat.EXPECT().ListEpisodes(gomock.Any(), poranek, cred, 0).Return([]*model.Episode{patron}, cred, nil)
	cat.EXPECT().ResolveMedia(gomock.Any(), cred, patron).Return(model.NewMediaRef("https://cdn.example.com/2.mp3"), nil)

	dl := NewMockDownloader(ctrl)
	dl.EXPECT().Execute(gomock.Any(), gomock.Any()).DoAndReturn(downloaded)

	manager := newManager(t, cat, auth, dl, newStorage(t), Options{})

	summary, err := manager.Download(testCtx, "12")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Count(Downloaded))
}

func TestDownload_FiltersAndFailures(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	var (
		rerun   = &model.Episode{ID: "1", ProgramID: "12", Title: "Powtórka: Wywiad", PublishedAt: published(4), Media: model.NewMediaRef("https://cdn.example.com/1.mp3")}
		broken  = &model.Episode{ID: "2", ProgramID: "12", Title: "Wywiad", PublishedAt: published(3), Media: model.NewMediaRef("https://cdn.example.com/2.mp3")}
		missing = &model.Episode{ID: "3", ProgramID: "12", Title: "Koncert", PublishedAt: published(2)}
	)

	cat := NewMockCatalog(ctrl)
	cat.EXPECT().GetProgram(gomock.Any(), "12").Return(poranek, nil)
	cat.EXPECT().ListEpisodes(gomock.Any(), poranek, gomock.Any(), gomock.Any()).Return([]*model.Episode{rerun, broken, missing}, model.Anonymous, nil)
	cat.EXPECT().ResolveMedia(gomock.Any(), gomock.Any(), missing).Return(model.MediaRef{}, errors.New("gateway down"))

	dl := NewMockDownloader(ctrl)
	dl.EXPECT().Execute(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, task *download.Task) download.Result {
		return download.Result{Task: task, Status: download.Failed, Kind: download.TransferFailed, Err: model.ErrTransferFailed}
	})

	manager := newManager(t, cat, nil, dl, newStorage(t), Options{
		FreeOnly: true,
		Filters:  Filters{NotTitle: "^Powtórka"},
	})

	summary, err := manager.Download(testCtx, "12")
	require.NoError(t, err)
	require.Len(t, summary.Items, 3)

	assert.Equal(t, SkippedFiltered, summary.Items[0].Outcome)

	assert.Equal(t, Failed, summary.Items[1].Outcome)
	assert.Equal(t, "transfer_failed", summary.Items[1].Kind)
	assert.True(t, errors.Is(summary.Items[1].Err, model.ErrTransferFailed))

	assert.Equal(t, Failed, summary.Items[2].Outcome)
	assert.Equal(t, KindCatalog, summary.Items[2].Kind)

	assert.Len(t, summary.Failures(), 2)
	assert.False(t, summary.OK())
}

func TestDownload_RunsHooks(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ep := &model.Episode{ID: "1", ProgramID: "12", Title: "Wywiad", PublishedAt: published(2), Media: model.NewMediaRef("https://cdn.example.com/1.mp3")}
	out := filepath.Join(t.TempDir(), "hook.txt")

	cat := NewMockCatalog(ctrl)
	cat.EXPECT().GetProgram(gomock.Any(), "12").Return(poranek, nil)
	cat.EXPECT().ListEpisodes(gomock.Any(), poranek, gomock.Any(), gomock.Any()).Return([]*model.Episode{ep}, model.Anonymous, nil)

	dl := NewMockDownloader(ctrl)
	dl.EXPECT().Execute(gomock.Any(), gomock.Any()).DoAndReturn(downloaded)

	manager := newManager(t, cat, nil, dl, newStorage(t), Options{
		FreeOnly: true,
		Hooks:    []*feed.ExecHook{{Command: []string{`printf '%s:%s' "$EPISODE_ID" "$PROGRAM_TITLE" > ` + out}}},
	})

	_, err := manager.Download(testCtx, "12")
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "1:Poranek Radia", string(data))
}

func TestFeed(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	var (
		direct    = &model.Episode{ID: "1", ProgramID: "12", Title: "Wywiad", PublishedAt: published(4), Media: model.NewMediaRef("https://cdn.example.com/1.mp3")}
		local     = &model.Episode{ID: "2", ProgramID: "12", Title: "Drugi", PublishedAt: published(3), Media: model.NewMediaRef("https://cdn.example.com/2/index.m3u8")}
		notLocal  = &model.Episode{ID: "3", ProgramID: "12", Title: "Trzeci", PublishedAt: published(2), Media: model.NewMediaRef("https://cdn.example.com/3/index.m3u8")}
		patronEp  = &model.Episode{ID: "4", ProgramID: "12", Title: "Ukryty", PublishedAt: published(5), Tier: model.TierPatron}
		storage   = newStorage(t)
		localPath = storage.Path("poranek_radia", "2024-05-03_drugi.m4a")
	)

	require.NoError(t, os.MkdirAll(filepath.Dir(localPath), 0755))
	require.NoError(t, os.WriteFile(localPath, []byte("audio"), 0644))

	cat := NewMockCatalog(ctrl)
	cat.EXPECT().GetProgram(gomock.Any(), "12").Return(poranek, nil)
	cat.EXPECT().ListEpisodes(gomock.Any(), poranek, model.Anonymous, 0).Return([]*model.Episode{patronEp, direct, local, notLocal}, model.Anonymous, nil)

	manager := newManager(t, cat, nil, NewMockDownloader(ctrl), storage, Options{
		RemuxExtension: "m4a",
		Feed: FeedOptions{
			Policy:     feed.Policy{MaxEpisodes: 10},
			GUIDPrefix: "radio357",
		},
	})

	result, err := manager.Feed(testCtx, "12")
	require.NoError(t, err)

	assert.Equal(t, storage.Path("", "poranek_radia.xml"), result.Path)
	assert.Equal(t, "http://localhost/poranek_radia.xml", result.URL)
	assert.Equal(t, 2, result.Items)

	data, err := os.ReadFile(result.Path)
	require.NoError(t, err)
	doc := string(data)

	assert.Contains(t, doc, `url="https://cdn.example.com/1.mp3"`)
	assert.Contains(t, doc, `url="http://localhost/poranek_radia/2024-05-03_drugi.m4a"`)
	assert.Contains(t, doc, `length="5"`)
	assert.Contains(t, doc, "radio357-12-1")
	assert.NotContains(t, doc, "Trzeci")
	assert.NotContains(t, doc, "Ukryty")
}

func TestFeed_KeepsNamesOfDownloadedEpisodes(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	var (
		cred    = &model.Credential{AccessToken: "token", ExpiresAt: testNow.Add(time.Hour)}
		day     = time.Date(2024, 5, 3, 8, 0, 0, 0, time.UTC)
		patron  = &model.Episode{ID: "10", ProgramID: "12", Title: "Koncert", PublishedAt: day, Tier: model.TierPatron, Media: model.NewMediaRef("https://cdn.example.com/10/index.m3u8")}
		free    = &model.Episode{ID: "11", ProgramID: "12", Title: "Koncert", PublishedAt: day, Tier: model.TierFree, Media: model.NewMediaRef("https://cdn.example.com/11/index.m3u8")}
		storage = newStorage(t)
		opts    = Options{
			RemuxExtension: "m4a",
			Feed:           FeedOptions{GUIDPrefix: "castsync"},
		}
	)

	auth := NewMockAuthenticator(ctrl)
	auth.EXPECT().EnsureValid(gomock.Any(), true).Return(cred, nil)

	cat := NewMockCatalog(ctrl)
	cat.EXPECT().GetProgram(gomock.Any(), "12").Return(poranek, nil).Times(3)
	cat.EXPECT().ListEpisodes(gomock.Any(), poranek, cred, 0).Return([]*model.Episode{patron, free}, cred, nil)
	cat.EXPECT().ListEpisodes(gomock.Any(), poranek, model.Anonymous, 0).Return([]*model.Episode{patron, free}, model.Anonymous, nil)
	cat.EXPECT().ListEpisodes(gomock.Any(), poranek, model.Anonymous, 1).Return([]*model.Episode{free}, model.Anonymous, nil)

	var targets []string
	dl := NewMockDownloader(ctrl)
	dl.EXPECT().Execute(gomock.Any(), gomock.Any()).Times(2).DoAndReturn(func(_ context.Context, task *download.Task) download.Result {
		require.NoError(t, os.MkdirAll(filepath.Dir(task.TargetPath), 0755))
		require.NoError(t, os.WriteFile(task.TargetPath, []byte(task.Episode.ID+"-audio"), 0644))
		return download.Result{Task: task, Status: download.Downloaded, Size: 8}
	})
	dl.EXPECT().Execute(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, task *download.Task) download.Result {
		targets = append(targets, task.TargetPath)
		return download.Result{Task: task, Status: download.SkippedExisting}
	})

	summary, err := newManager(t, cat, auth, dl, storage, opts).Download(testCtx, "12")
	require.NoError(t, err)
	require.Equal(t, 2, summary.Count(Downloaded))
	assert.Equal(t, storage.Path("poranek_radia", "2024-05-03_koncert.m4a"), summary.Items[0].Path)
	assert.Equal(t, storage.Path("poranek_radia", "2024-05-03_koncert_11.m4a"), summary.Items[1].Path)

	// Free feed without the patron episode
	result, err := newManager(t, cat, nil, dl, storage, opts).Feed(testCtx, "12")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Items)

	data, err := os.ReadFile(result.Path)
	require.NoError(t, err)
	doc := string(data)

	assert.Contains(t, doc, "castsync-12-11")
	assert.Contains(t, doc, `url="http://localhost/poranek_radia/2024-05-03_koncert_11.m4a"`)
	assert.Contains(t, doc, `length="8"`)
	assert.NotContains(t, doc, `2024-05-03_koncert.m4a"`)

	// A smaller free download run keeps the same file
	opts.FreeOnly = true
	opts.MaxEpisodes = 1
	summary, err = newManager(t, cat, nil, dl, storage, opts).Download(testCtx, "12")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Count(SkippedExisting))
	assert.Equal(t, []string{storage.Path("poranek_radia", "2024-05-03_koncert_11.m4a")}, targets)
}

func TestFeeds_WritesOPML(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ep := &model.Episode{ID: "1", ProgramID: "12", Title: "Wywiad", PublishedAt: published(4), Media: model.NewMediaRef("https://cdn.example.com/1.mp3")}
	storage := newStorage(t)

	cat := NewMockCatalog(ctrl)
	cat.EXPECT().GetProgram(gomock.Any(), "12").Return(poranek, nil)
	cat.EXPECT().GetProgram(gomock.Any(), "99").Return(nil, model.ErrNotFound)
	cat.EXPECT().ListEpisodes(gomock.Any(), poranek, gomock.Any(), gomock.Any()).Return([]*model.Episode{ep}, model.Anonymous, nil)

	manager := newManager(t, cat, nil, NewMockDownloader(ctrl), storage, Options{
		Feed: FeedOptions{OPML: true},
	})

	results, err := manager.Feeds(testCtx, []string{"12", "99"})
	assert.Error(t, err)
	require.Len(t, results, 1)

	data, err := os.ReadFile(storage.Path("", OPMLName))
	require.NoError(t, err)
	assert.Contains(t, string(data), `xmlUrl="http://localhost/poranek_radia.xml"`)
	assert.Contains(t, string(data), `text="Poranek Radia"`)
}

func authoredEpisodes() []*model.Episode {
	return []*model.Episode{
		{ID: "11", ProgramID: "12", Title: "Wywiad", PublishedAt: published(4), Authors: []model.Person{anna}, Media: model.NewMediaRef("https://cdn.example.com/11.mp3")},
		{ID: "12", ProgramID: "12", Title: "Muzyka", PublishedAt: published(3), Authors: []model.Person{piotr}, Media: model.NewMediaRef("https://cdn.example.com/12.mp3")},
		{ID: "21", ProgramID: "14", Title: "Nocą", PublishedAt: published(5), Authors: []model.Person{anna, piotr}, Media: model.NewMediaRef("https://cdn.example.com/21.mp3")},
	}
}

func expectPrograms(cat *MockCatalog, episodes []*model.Episode) {
	cat.EXPECT().GetProgram(gomock.Any(), "12").Return(poranek, nil)
	cat.EXPECT().GetProgram(gomock.Any(), "14").Return(wieczor, nil)
	cat.EXPECT().ListEpisodes(gomock.Any(), poranek, gomock.Any(), gomock.Any()).Return(episodes[:2], model.Anonymous, nil)
	cat.EXPECT().ListEpisodes(gomock.Any(), wieczor, gomock.Any(), gomock.Any()).Return(episodes[2:], model.Anonymous, nil)
}

func TestAuthors(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	cat := NewMockCatalog(ctrl)
	expectPrograms(cat, authoredEpisodes())

	manager := newManager(t, cat, nil, NewMockDownloader(ctrl), newStorage(t), Options{})

	authors, err := manager.Authors(testCtx, []string{"12", "14"})
	require.NoError(t, err)
	require.Len(t, authors, 2)

	emails := []string{authors[0].Email, authors[1].Email}
	assert.ElementsMatch(t, []string{"anna@radio357.pl", "piotr@radio357.pl"}, emails)
	for _, author := range authors {
		assert.Equal(t, 2, author.Episodes)
		assert.ElementsMatch(t, []string{"Poranek Radia", "Wieczór"}, author.Programs)
	}
}

func TestAuthorFeed(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	storage := newStorage(t)

	cat := NewMockCatalog(ctrl)
	expectPrograms(cat, authoredEpisodes())

	manager := newManager(t, cat, nil, NewMockDownloader(ctrl), storage, Options{
		Feed: FeedOptions{GUIDPrefix: "radio357"},
	})

	result, err := manager.AuthorFeed(testCtx, "Anna@radio357.pl", []string{"12", "14"})
	require.NoError(t, err)

	assert.Equal(t, "Anna Nowak", result.Title)
	assert.Equal(t, 2, result.Items)
	assert.Equal(t, storage.Path("", "author_anna_radio357_pl.xml"), result.Path)

	data, err := os.ReadFile(result.Path)
	require.NoError(t, err)
	doc := string(data)

	assert.Contains(t, doc, "radio357-author-anna@radio357.pl-11")
	assert.Contains(t, doc, "radio357-author-anna@radio357.pl-21")
	assert.Contains(t, doc, "[Poranek Radia] Wywiad")
	assert.Contains(t, doc, "[Wieczór] Nocą")
	assert.NotContains(t, doc, "Muzyka")
}

func TestAuthorFeed_NoEpisodes(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	cat := NewMockCatalog(ctrl)
	expectPrograms(cat, authoredEpisodes())

	manager := newManager(t, cat, nil, NewMockDownloader(ctrl), newStorage(t), Options{})

	_, err := manager.AuthorFeed(testCtx, "nobody@radio357.pl", []string{"12", "14"})
	assert.True(t, errors.Is(err, model.ErrNotFound))
}

func TestAuthorFeed_RequiresEmail(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	manager := newManager(t, NewMockCatalog(ctrl), nil, NewMockDownloader(ctrl), newStorage(t), Options{})

	_, err := manager.AuthorFeed(testCtx, " ", nil)
	assert.Error(t, err)
}

func TestFromFeed(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	var (
		storage = newStorage(t)
		path    = filepath.Join(t.TempDir(), "poranek_radia.xml")
		ep      = &model.Episode{
			ID:          "1",
			ProgramID:   "12",
			Title:       "Wywiad",
			PublishedAt: published(4),
			Enclosure:   &model.Enclosure{URL: "https://cdn.example.com/1.mp3", Type: "audio/mpeg", Length: 10},
		}
	)

	podcast, err := feed.Build(feed.ProgramChannel(poranek), []*model.Episode{ep}, feed.Policy{}, feed.Options{Now: testNow, GUIDPrefix: "radio357"})
	require.NoError(t, err)
	data, err := feed.Encode(podcast)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0644))

	dl := NewMockDownloader(ctrl)
	dl.EXPECT().Execute(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, task *download.Task) download.Result {
		assert.Equal(t, "https://cdn.example.com/1.mp3", task.Media.URL)
		assert.Equal(t, filepath.Join(storage.Root(), "poranek_radia", "2024-05-04_wywiad.mp3"), task.TargetPath)
		return download.Result{Task: task, Status: download.Downloaded, Size: 10}
	})

	manager := newManager(t, NewMockCatalog(ctrl), nil, dl, storage, Options{})

	summary, err := manager.FromFeed(testCtx, path)
	require.NoError(t, err)
	assert.Equal(t, "Poranek Radia", summary.Program.Title)
	assert.Equal(t, 1, summary.Count(Downloaded))
}
