package scenario

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/ecc-analyzer/internal/asil"
	"github.com/danielpatrickdp/ecc-analyzer/internal/block"
	"github.com/danielpatrickdp/ecc-analyzer/internal/layout"
)

var fixtureValidate = validator.New()

// #region fixture-loader

// LoadFixture reads and validates a JSON or YAML fixture file. Relative
// layout_file entries are resolved against the fixture's directory.
func LoadFixture(path string) (*Fixture, error) {
	f, err := layout.FormatFor(path)
	if err != nil {
		return nil, fmt.Errorf("load fixture %s: %w", path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}

	var fx Fixture
	switch f {
	case layout.FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&fx)
	case layout.FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		err = dec.Decode(&fx)
	}
	if err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}

	if err := fx.Validate(); err != nil {
		return nil, fmt.Errorf("fixture %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	for i := range fx.Scenarios {
		lf := fx.Scenarios[i].LayoutFile
		if lf != "" && !filepath.IsAbs(lf) {
			fx.Scenarios[i].LayoutFile = filepath.Join(dir, lf)
		}
	}
	return &fx, nil
}

// Validate checks field ranges and that every scenario names exactly one
// layout source.
func (fx *Fixture) Validate() error {
	if err := fixtureValidate.Struct(fx); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: %s failed %q", ErrInvalidScenario, verrs[0].Namespace(), verrs[0].Tag())
		}
		return fmt.Errorf("%w: %v", ErrInvalidScenario, err)
	}
	for _, s := range fx.Scenarios {
		if (s.Layout == nil) == (s.LayoutFile == "") {
			return fmt.Errorf("%w: %s needs exactly one of layout and layout_file", ErrInvalidScenario, s.Name)
		}
	}
	return nil
}

// SaveFixture validates fx and writes it to path as JSON or YAML by
// extension.
func SaveFixture(path string, fx *Fixture) error {
	if err := fx.Validate(); err != nil {
		return fmt.Errorf("save fixture %s: %w", path, err)
	}
	if err := layout.WriteFile(path, fx); err != nil {
		return fmt.Errorf("save fixture %s: %w", path, err)
	}
	return nil
}

// #endregion fixture-loader

// #region baseline

// Baseline freezes an analysis into a scenario that expects exactly the
// same verdict and metrics again.
func Baseline(name string, totalFIT float64, cfg block.Config, m asil.Metrics) Scenario {
	spfm, lfm, rf := m.SPFM, m.LFM, m.ResidualFIT
	return Scenario{
		Name:     name,
		TotalFIT: totalFIT,
		Layout:   &cfg,
		Expected: Expected{
			Verdict:     m.Verdict,
			SPFM:        &spfm,
			LFM:         &lfm,
			ResidualFIT: &rf,
		},
	}
}

// #endregion baseline
