package block

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/danielpatrickdp/ecc-analyzer/internal/fault"
)

// #region validator
// configValidate checks field shapes and ranges of a single Config node.
// Children are validated as they are built, so each error carries its own
// node path.
var configValidate *validator.Validate

func init() {
	configValidate = validator.New()
	configValidate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	_ = configValidate.RegisterValidation("faultname", validateFaultName)
	_ = configValidate.RegisterValidation("blockkind", validateBlockKind)
}

func validateFaultName(fl validator.FieldLevel) bool {
	_, err := fault.Parse(fl.Field().String())
	return err == nil
}

func validateBlockKind(fl validator.FieldLevel) bool {
	k := Kind(fl.Field().String())
	for _, known := range Kinds() {
		if k == known {
			return true
		}
	}
	return false
}

// validationError converts the first validator failure into the package's
// sentinel errors.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	field := fe.Field()

	var sentinel error
	switch {
	case fe.Tag() == "required":
		sentinel = ErrMissingField
	case fe.Tag() == "blockkind":
		sentinel = ErrUnknownKind
	case fe.Tag() == "faultname":
		sentinel = fault.ErrUnknownFault
	case fe.Tag() == "oneof":
		sentinel = ErrInvalidPath
	case strings.HasSuffix(field, "_coverage"):
		sentinel = ErrCoverageRange
	default:
		sentinel = ErrNegativeValue
	}
	return fmt.Errorf("%w: %s=%v", sentinel, field, fe.Value())
}

// #endregion validator

// #region factory
// FromConfig builds a block tree from its declarative description. Children
// are built before their parent; the first failing node is reported as a
// *ConstructionError.
func FromConfig(cfg Config) (Block, error) {
	return build(cfg, "root")
}

func build(cfg Config, at string) (Block, error) {
	fail := func(err error) error {
		return &ConstructionError{Path: at, Kind: cfg.Type, Name: cfg.Name, Err: err}
	}

	if err := configValidate.Struct(cfg); err != nil {
		return nil, fail(validationError(err))
	}
	if err := checkFields(cfg); err != nil {
		return nil, fail(err)
	}

	switch cfg.Type {
	case KindSequence, KindAggregate:
		children := make([]Block, 0, len(cfg.Children))
		for i, c := range cfg.Children {
			child, err := build(c, fmt.Sprintf("%s/%d", at, i))
			if err != nil {
				return nil, err
			}
			children = append(children, child)
		}
		if cfg.Type == KindSequence {
			return NewSequence(cfg.Name, children...), nil
		}
		return NewAggregate(cfg.Name, children...), nil
	}

	b, err := buildStage(cfg)
	if err != nil {
		return nil, fail(err)
	}
	return b, nil
}

func buildStage(cfg Config) (Block, error) {
	opts := []Option{WithName(cfg.Name)}
	if cfg.Path != "" {
		opts = append(opts, OnPath(cfg.Path))
	}

	switch cfg.Type {
	case KindSource:
		ft, err := requireFault("fault", cfg.Fault)
		if err != nil {
			return nil, err
		}
		if cfg.Rate == nil {
			return nil, fmt.Errorf("%w: rate", ErrMissingField)
		}
		return NewSource(ft, *cfg.Rate, opts...)

	case KindCoverageSplit:
		target, err := requireFault("target", cfg.Target)
		if err != nil {
			return nil, err
		}
		if cfg.ResidualCoverage == nil {
			return nil, fmt.Errorf("%w: residual_coverage", ErrMissingField)
		}
		if cfg.LatentCoverage != nil {
			opts = append(opts, WithLatentCoverage(*cfg.LatentCoverage))
		}
		return NewCoverageSplit(target, *cfg.ResidualCoverage, opts...)

	case KindRedistribute:
		source, err := requireFault("source", cfg.Source)
		if err != nil {
			return nil, err
		}
		dist := make(fault.RateMap, len(cfg.Distribution))
		for _, name := range sortedNames(cfg.Distribution) {
			ft, err := fault.Parse(name)
			if err != nil {
				return nil, err
			}
			dist[ft] = cfg.Distribution[name]
		}
		return NewRedistribute(source, dist, opts...)

	case KindTransfer:
		source, err := requireFault("source", cfg.Source)
		if err != nil {
			return nil, err
		}
		target, err := requireFault("target", cfg.Target)
		if err != nil {
			return nil, err
		}
		if cfg.Factor == nil {
			return nil, fmt.Errorf("%w: factor", ErrMissingField)
		}
		return NewTransfer(source, target, *cfg.Factor, opts...)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, cfg.Type)
}

// kindFields lists the optional fields each kind reads besides type and name.
var kindFields = map[Kind][]string{
	KindSource:        {"fault", "rate", "path"},
	KindCoverageSplit: {"target", "residual_coverage", "latent_coverage", "path"},
	KindRedistribute:  {"source", "distribution", "path"},
	KindTransfer:      {"source", "target", "factor"},
	KindSequence:      {"children"},
	KindAggregate:     {"children"},
}

// checkFields rejects set fields that cfg.Type does not read, so that the
// built block's Config reproduces its input.
func checkFields(cfg Config) error {
	set := map[string]bool{
		"children":          len(cfg.Children) > 0,
		"fault":             cfg.Fault != "",
		"rate":              cfg.Rate != nil,
		"path":              cfg.Path != "",
		"target":            cfg.Target != "",
		"residual_coverage": cfg.ResidualCoverage != nil,
		"latent_coverage":   cfg.LatentCoverage != nil,
		"source":            cfg.Source != "",
		"distribution":      len(cfg.Distribution) > 0,
		"factor":            cfg.Factor != nil,
	}
	for _, f := range kindFields[cfg.Type] {
		delete(set, f)
	}
	var extra []string
	for f, ok := range set {
		if ok {
			extra = append(extra, f)
		}
	}
	if len(extra) == 0 {
		return nil
	}
	sort.Strings(extra)
	return fmt.Errorf("%w: %s", ErrUnexpectedField, strings.Join(extra, ","))
}

func requireFault(field, name string) (fault.Type, error) {
	if name == "" {
		return 0, fmt.Errorf("%w: %s", ErrMissingField, field)
	}
	return fault.Parse(name)
}

// #endregion factory
