//go:generate mockgen -source=deps.go -destination=deps_mock_test.go -package=update

package update

import (
	"context"

	"github.com/castsync/castsync/pkg/download"
	"github.com/castsync/castsync/pkg/model"
)

// Catalog is the platform catalog
type Catalog interface {
	ListPrograms(ctx context.Context) ([]*model.Program, error)
	GetProgram(ctx context.Context, id string) (*model.Program, error)
	ListEpisodes(ctx context.Context, program *model.Program, cred *model.Credential, limit int) ([]*model.Episode, *model.Credential, error)
	ResolveMedia(ctx context.Context, cred *model.Credential, ep *model.Episode) (model.MediaRef, error)
}

// Authenticator hands out the session credential
type Authenticator interface {
	EnsureValid(ctx context.Context, allowLogin bool) (*model.Credential, error)
}

// Downloader acquires planned files
type Downloader interface {
	Execute(ctx context.Context, task *download.Task) download.Result
}
