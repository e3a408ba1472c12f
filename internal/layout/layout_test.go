package layout

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/ecc-analyzer/internal/block"
	"github.com/danielpatrickdp/ecc-analyzer/internal/fault"
)

const dramYAML = `type: Sequence
name: DRAM
children:
  - type: Aggregate
    name: sources
    children:
      - type: Source
        fault: SBE
        rate: 1610
      - type: Source
        fault: DBE
        rate: 172.04
  - type: CoverageSplit
    name: SEC
    target: SBE
    residual_coverage: 1.0
    latent_coverage: 0.0
`

func sampleTree(t *testing.T) block.Block {
	t.Helper()
	root, err := Parse(bytes.NewBufferString(dramYAML), FormatYAML)
	require.NoError(t, err)
	return root
}

func TestFormatFor(t *testing.T) {
	cases := map[string]Format{
		"a.json":          FormatJSON,
		"b.yaml":          FormatYAML,
		"c.yml":           FormatYAML,
		"UPPER.JSON":      FormatJSON,
		"dir.d/Mixed.YmL": FormatYAML,
	}
	for path, want := range cases {
		got, err := FormatFor(path)
		require.NoError(t, err, path)
		assert.Equal(t, want, got, path)
	}

	for _, bad := range []string{"a.toml", "noext", "a.json.bak"} {
		_, err := FormatFor(bad)
		assert.ErrorIs(t, err, ErrUnsupportedFormat, bad)
	}
}

func TestParseYAML(t *testing.T) {
	root := sampleTree(t)
	assert.Equal(t, block.KindSequence, root.Kind())
	assert.Equal(t, "DRAM", root.Name())

	r, l := root.ComputeFIT(fault.RateMap{}, fault.RateMap{})
	assert.True(t, fault.RateMap{fault.DBE: 172.04}.Equal(r, 1e-9))
	assert.True(t, fault.RateMap{fault.SBE: 1610}.Equal(l, 1e-9))
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	_, err := Decode(bytes.NewBufferString(`{"type":"Source","fault":"SBE","rate":1,"colour":"red"}`), FormatJSON)
	assert.Error(t, err)

	_, err = Decode(bytes.NewBufferString("type: Source\nfault: SBE\nrate: 1\ncolour: red\n"), FormatYAML)
	assert.Error(t, err)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	root := sampleTree(t)
	dir := t.TempDir()

	for _, name := range []string{"tree.json", "tree.yaml", "tree.YML"} {
		path := filepath.Join(dir, name)
		require.NoError(t, Save(path, root), name)

		loaded, err := Load(path)
		require.NoError(t, err, name)
		assert.Equal(t, root.Config(), loaded.Config(), name)

		wantR, wantL := root.ComputeFIT(nil, nil)
		gotR, gotL := loaded.ComputeFIT(nil, nil)
		assert.Equal(t, wantR, gotR, name)
		assert.Equal(t, wantL, gotL, name)
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 3, "temporary files left behind")
}

func TestSaveUnsupportedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tree.toml")
	err := Save(path, sampleTree(t))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	_, statErr := os.Stat(path)
	assert.True(t, errors.Is(statErr, os.ErrNotExist))
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = Load(filepath.Join(dir, "tree.ini"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"type":"Source","fault":"ZZZ","rate":1}`), 0o644))
	_, err = Load(bad)
	assert.ErrorIs(t, err, fault.ErrUnknownFault)
	var ce *block.ConstructionError
	assert.True(t, errors.As(err, &ce))

	garbage := filepath.Join(dir, "garbage.yaml")
	require.NoError(t, os.WriteFile(garbage, []byte("type: [unclosed"), 0o644))
	_, err = Load(garbage)
	assert.Error(t, err)
}

func TestStructRoundTrip(t *testing.T) {
	root := sampleTree(t)
	s, err := ToStruct(root.Config())
	require.NoError(t, err)
	assert.Equal(t, "Sequence", s.GetFields()["type"].GetStringValue())

	cfg, err := FromStruct(s)
	require.NoError(t, err)
	assert.Equal(t, root.Config(), cfg)

	_, err = FromStruct(nil)
	assert.ErrorIs(t, err, block.ErrMissingField)
}
