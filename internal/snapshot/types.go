package snapshot

import (
	"errors"
	"time"

	"github.com/danielpatrickdp/ecc-analyzer/internal/block"
)

// ErrNotFound is returned when a version or an active pointer does not exist.
var ErrNotFound = errors.New("snapshot not found")

// #region record
// Record is one committed layout version. It holds the declarative tree and
// its metadata only; rates and verdicts are never stored.
type Record struct {
	VersionID  string
	ParentID   string // previously active version of the same system, if any
	System     string
	Config     block.Config
	LayoutHash string
	Note       string
	CreatedAt  time.Time
}

// Block rebuilds the stored tree.
func (r Record) Block() (block.Block, error) {
	return block.FromConfig(r.Config)
}

// #endregion record
