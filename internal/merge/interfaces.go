package merge

import (
	"context"

	"github.com/ytget/psn-updater/internal/model"
)

// Merger defines the interface for the merge service.
type Merger interface {
	SetUpdateCallback(func(Task))
	Merge(ctx context.Context, parts []model.DownloadTask) (*Task, error)
}
