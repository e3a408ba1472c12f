package block

import (
	"errors"
	"fmt"

	"github.com/danielpatrickdp/ecc-analyzer/internal/fault"
)

// #region errors
var (
	ErrUnknownKind     = errors.New("unknown block type")
	ErrCoverageRange   = errors.New("coverage outside [0,1]")
	ErrDistributionSum = errors.New("distribution sums above 1")
	ErrNegativeValue   = errors.New("negative value")
	ErrMissingField    = errors.New("missing required field")
	ErrInvalidPath     = errors.New("invalid path")
	ErrUnexpectedField = errors.New("field not used by block type")
)

// ConstructionError reports a node that could not be built from its
// declarative description. Path is the node's position in the tree
// ("root", "root/1/0").
type ConstructionError struct {
	Path string
	Kind Kind
	Name string
	Err  error
}

func (e *ConstructionError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("build %s (%s %q): %v", e.Path, e.Kind, e.Name, e.Err)
	}
	return fmt.Sprintf("build %s (%s): %v", e.Path, e.Kind, e.Err)
}

func (e *ConstructionError) Unwrap() error { return e.Err }

// #endregion errors

// #region kind
// Kind is the declarative discriminator of a node.
type Kind string

const (
	KindSource        Kind = "Source"
	KindCoverageSplit Kind = "CoverageSplit"
	KindRedistribute  Kind = "Redistribute"
	KindTransfer      Kind = "Transfer"
	KindSequence      Kind = "Sequence"
	KindAggregate     Kind = "Aggregate"
)

// Kinds lists every node kind, leaves first.
func Kinds() []Kind {
	return []Kind{KindSource, KindCoverageSplit, KindRedistribute, KindTransfer, KindSequence, KindAggregate}
}

// Path selects which of the two rate maps a stage operates on.
type Path string

const (
	PathResidual Path = "residual"
	PathLatent   Path = "latent"
)

// ParsePath resolves a declarative path. The empty string means residual.
func ParsePath(s string) (Path, error) {
	switch Path(s) {
	case "", PathResidual:
		return PathResidual, nil
	case PathLatent:
		return PathLatent, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, s)
	}
}

// #endregion kind

// #region block
// Block transforms a (residual, latent) pair of rate maps. ComputeFIT is pure:
// it never mutates its arguments and returns fresh maps. The set of
// implementations is closed to the six kinds in this package.
type Block interface {
	Kind() Kind
	Name() string
	ComputeFIT(residual, latent fault.RateMap) (fault.RateMap, fault.RateMap)
	// Config returns the declarative description that FromConfig turns back
	// into an equivalent block.
	Config() Config
	sealed()
}

// #endregion block

// #region config
// Config is the declarative form of a block tree node. JSON and YAML share
// field names. Numeric fields are pointers so that an omitted value can be
// told apart from an explicit zero.
type Config struct {
	Type             Kind               `json:"type" yaml:"type" validate:"required,blockkind"`
	Name             string             `json:"name,omitempty" yaml:"name,omitempty"`
	Children         []Config           `json:"children,omitempty" yaml:"children,omitempty" validate:"-"`
	Fault            string             `json:"fault,omitempty" yaml:"fault,omitempty" validate:"omitempty,faultname"`
	Rate             *float64           `json:"rate,omitempty" yaml:"rate,omitempty" validate:"omitempty,gte=0"`
	Path             Path               `json:"path,omitempty" yaml:"path,omitempty" validate:"omitempty,oneof=residual latent"`
	Target           string             `json:"target,omitempty" yaml:"target,omitempty" validate:"omitempty,faultname"`
	ResidualCoverage *float64           `json:"residual_coverage,omitempty" yaml:"residual_coverage,omitempty" validate:"omitempty,gte=0,lte=1"`
	LatentCoverage   *float64           `json:"latent_coverage,omitempty" yaml:"latent_coverage,omitempty" validate:"omitempty,gte=0,lte=1"`
	Source           string             `json:"source,omitempty" yaml:"source,omitempty" validate:"omitempty,faultname"`
	Distribution     map[string]float64 `json:"distribution,omitempty" yaml:"distribution,omitempty" validate:"omitempty,dive,keys,faultname,endkeys,gte=0"`
	Factor           *float64           `json:"factor,omitempty" yaml:"factor,omitempty" validate:"omitempty,gte=0"`
}

// Float returns a pointer to v, for building Configs in code.
func Float(v float64) *float64 { return &v }

// #endregion config
