package layout

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"google.golang.org/protobuf/types/known/structpb"
	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/ecc-analyzer/internal/block"
)

// ErrUnsupportedFormat is returned for file extensions other than .json,
// .yaml and .yml.
var ErrUnsupportedFormat = errors.New("unsupported layout format")

// #region format
// Format is a serialization of the declarative block tree.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFor selects the format from a file extension, case-insensitively.
func FormatFor(path string) (Format, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %q (want .json, .yaml or .yml)", ErrUnsupportedFormat, ext)
	}
}

// #endregion format

// #region codec
// Encode writes cfg to w in the given format.
func Encode(w io.Writer, f Format, cfg block.Config) error {
	return encode(w, f, cfg)
}

func encode(w io.Writer, f Format, v any) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		return nil
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, f)
	}
}

// Decode reads one declarative tree from r. Unknown fields are rejected.
func Decode(r io.Reader, f Format) (block.Config, error) {
	var cfg block.Config
	switch f {
	case FormatJSON:
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return block.Config{}, fmt.Errorf("decode json: %w", err)
		}
	case FormatYAML:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return block.Config{}, fmt.Errorf("decode yaml: %w", err)
		}
	default:
		return block.Config{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, f)
	}
	return cfg, nil
}

// Parse decodes and builds a block tree in one step.
func Parse(r io.Reader, f Format) (block.Block, error) {
	cfg, err := Decode(r, f)
	if err != nil {
		return nil, err
	}
	return block.FromConfig(cfg)
}

// #endregion codec

// #region files
// Save writes the declarative form of root to path, choosing the format by
// extension. The file is replaced atomically.
func Save(path string, root block.Block) error {
	if err := WriteFile(path, root.Config()); err != nil {
		return fmt.Errorf("save layout: %w", err)
	}
	return nil
}

// WriteFile atomically replaces path with v encoded in the format its
// extension names. v must carry json and yaml tags.
func WriteFile(path string, v any) error {
	f, err := FormatFor(path)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".ecc-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := encode(tmp, f, v); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// LoadConfig reads the declarative tree at path without building it.
func LoadConfig(path string) (block.Config, error) {
	f, err := FormatFor(path)
	if err != nil {
		return block.Config{}, err
	}
	file, err := os.Open(path)
	if err != nil {
		return block.Config{}, fmt.Errorf("load layout: %w", err)
	}
	defer file.Close()

	cfg, err := Decode(file, f)
	if err != nil {
		return block.Config{}, fmt.Errorf("load layout %s: %w", path, err)
	}
	return cfg, nil
}

// Load reads and builds the block tree stored at path.
func Load(path string) (block.Block, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	root, err := block.FromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("load layout %s: %w", path, err)
	}
	return root, nil
}

// #endregion files

// #region wire
// ToStruct converts a declarative tree to a protobuf Struct for transport.
func ToStruct(cfg block.Config) (*structpb.Struct, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("layout to struct: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("layout to struct: %w", err)
	}
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("layout to struct: %w", err)
	}
	return s, nil
}

// FromStruct is the inverse of ToStruct.
func FromStruct(s *structpb.Struct) (block.Config, error) {
	if s == nil {
		return block.Config{}, fmt.Errorf("layout from struct: %w: layout", block.ErrMissingField)
	}
	data, err := json.Marshal(s.AsMap())
	if err != nil {
		return block.Config{}, fmt.Errorf("layout from struct: %w", err)
	}
	var cfg block.Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return block.Config{}, fmt.Errorf("layout from struct: %w", err)
	}
	return cfg, nil
}

// #endregion wire
