package snapshot

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/ecc-analyzer/internal/block"
	"github.com/danielpatrickdp/ecc-analyzer/internal/fault"
)

// #region helpers
func tempStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "snapshots.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sourceTree(t *testing.T, rate float64) block.Block {
	t.Helper()
	src, err := block.NewSource(fault.SBE, rate)
	require.NoError(t, err)
	cov, err := block.NewCoverageSplit(fault.SBE, 0.9)
	require.NoError(t, err)
	return block.NewSequence("tree", src, cov)
}

// rawDB opens a second handle on the store's file for corrupting rows.
func rawDB(t *testing.T) (*Store, *sql.DB) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "raw.db")
	s, err := NewStore(path)
	require.NoError(t, err)
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	t.Cleanup(func() {
		db.Close()
		s.Close()
	})
	return s, db
}

// #endregion helpers

// #region commit-tests
func TestCommitAndCurrent(t *testing.T) {
	s := tempStore(t)
	tree := sourceTree(t, 100)

	rec, err := s.Commit("lpddr4", tree, "initial")
	require.NoError(t, err)
	assert.NotEmpty(t, rec.VersionID)
	assert.Empty(t, rec.ParentID)
	assert.Len(t, rec.LayoutHash, 64)

	cur, err := s.Current("lpddr4")
	require.NoError(t, err)
	assert.Equal(t, rec.VersionID, cur.VersionID)
	assert.Equal(t, "initial", cur.Note)
	assert.Equal(t, tree.Config(), cur.Config)
	assert.WithinDuration(t, rec.CreatedAt, cur.CreatedAt, time.Millisecond)

	rebuilt, err := cur.Block()
	require.NoError(t, err)
	wantR, wantL := tree.ComputeFIT(nil, nil)
	gotR, gotL := rebuilt.ComputeFIT(nil, nil)
	assert.Equal(t, wantR, gotR)
	assert.Equal(t, wantL, gotL)
}

func TestCommitChainsParents(t *testing.T) {
	s := tempStore(t)
	v1, err := s.Commit("sys", sourceTree(t, 1), "")
	require.NoError(t, err)
	v2, err := s.Commit("sys", sourceTree(t, 2), "")
	require.NoError(t, err)
	other, err := s.Commit("other", sourceTree(t, 3), "")
	require.NoError(t, err)

	assert.Equal(t, v1.VersionID, v2.ParentID)
	assert.Empty(t, other.ParentID)
	assert.NotEqual(t, v1.LayoutHash, v2.LayoutHash)

	cur, err := s.Current("sys")
	require.NoError(t, err)
	assert.Equal(t, v2.VersionID, cur.VersionID)
	assert.Empty(t, cur.Note)
}

func TestSameLayoutSameHash(t *testing.T) {
	s := tempStore(t)
	a, err := s.Commit("sys", sourceTree(t, 5), "")
	require.NoError(t, err)
	b, err := s.Commit("sys", sourceTree(t, 5), "again")
	require.NoError(t, err)
	assert.Equal(t, a.LayoutHash, b.LayoutHash)
	assert.NotEqual(t, a.VersionID, b.VersionID)
}

// #endregion commit-tests

// #region rollback-tests
func TestRollback(t *testing.T) {
	s := tempStore(t)
	v1, err := s.Commit("sys", sourceTree(t, 1), "")
	require.NoError(t, err)
	_, err = s.Commit("sys", sourceTree(t, 2), "")
	require.NoError(t, err)

	require.NoError(t, s.Rollback("sys", v1.VersionID))
	cur, err := s.Current("sys")
	require.NoError(t, err)
	assert.Equal(t, v1.VersionID, cur.VersionID)

	v3, err := s.Commit("sys", sourceTree(t, 3), "")
	require.NoError(t, err)
	assert.Equal(t, v1.VersionID, v3.ParentID)
}

func TestRollbackUnknownOrForeignVersion(t *testing.T) {
	s := tempStore(t)
	foreign, err := s.Commit("other", sourceTree(t, 1), "")
	require.NoError(t, err)

	assert.ErrorIs(t, s.Rollback("sys", "nonexistent"), ErrNotFound)
	assert.ErrorIs(t, s.Rollback("sys", foreign.VersionID), ErrNotFound)
}

// #endregion rollback-tests

// #region list-tests
func TestList(t *testing.T) {
	s := tempStore(t)
	var ids []string
	for i := 1; i <= 4; i++ {
		rec, err := s.Commit("sys", sourceTree(t, float64(i)), "")
		require.NoError(t, err)
		ids = append(ids, rec.VersionID)
	}
	_, err := s.Commit("other", sourceTree(t, 9), "")
	require.NoError(t, err)

	recs, err := s.List("sys", 3)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, ids[3], recs[0].VersionID)
	assert.Equal(t, ids[1], recs[2].VersionID)
	for _, r := range recs {
		assert.Equal(t, "sys", r.System)
	}

	none, err := s.List("missing", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

// #endregion list-tests

// #region error-tests
func TestVersionNotFound(t *testing.T) {
	s := tempStore(t)
	_, err := s.Version("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCurrentNoActiveVersion(t *testing.T) {
	s := tempStore(t)
	_, err := s.Current("sys")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOperationsOnClosedDB(t *testing.T) {
	s, err := NewStore(filepath.Join(t.TempDir(), "closed.db"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = s.Commit("sys", sourceTree(t, 1), "")
	assert.Error(t, err)
	_, err = s.Current("sys")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Error(t, s.Rollback("sys", "v"))
	_, err = s.List("sys", 1)
	assert.Error(t, err)
}

func TestBadConfigJSON(t *testing.T) {
	s, db := rawDB(t)
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := db.Exec(
		`INSERT INTO layout_versions (version_id, parent_id, system, config_json, layout_hash, created_at)
		 VALUES (?, NULL, ?, ?, ?, ?)`, "bad-json", "sys", "not-json", "h", now,
	)
	require.NoError(t, err)

	_, err = s.Version("bad-json")
	assert.Error(t, err)
	_, err = s.List("sys", 10)
	assert.Error(t, err)
}

func TestNewStoreCorruptDB(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "corrupt.db")
	require.NoError(t, os.WriteFile(path, []byte("not a sqlite database"), 0o644))

	_, err := NewStore(path)
	assert.Error(t, err)
}

// #endregion error-tests
