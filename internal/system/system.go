package system

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/danielpatrickdp/ecc-analyzer/internal/asil"
	"github.com/danielpatrickdp/ecc-analyzer/internal/block"
	"github.com/danielpatrickdp/ecc-analyzer/internal/fault"
	"github.com/danielpatrickdp/ecc-analyzer/internal/layout"
	"github.com/danielpatrickdp/ecc-analyzer/internal/logging"
)

// ErrNotConfigured is returned by analysis entry points before a layout has
// been installed.
var ErrNotConfigured = errors.New("system has no layout")

// #region report
// Report is the full outcome of one analysis run.
type Report struct {
	System   string
	TotalFIT float64
	Residual fault.RateMap
	Latent   fault.RateMap
	Metrics  asil.Metrics
}

// #endregion report

// #region system
// System owns a layout (the root block), the total system FIT rate and the
// evaluator that turns final rate maps into a verdict. The layout can be
// swapped at any time; analyses always see one complete tree.
type System struct {
	name      string
	totalFIT  float64
	evaluator *asil.Evaluator
	log       *slog.Logger

	mu   sync.RWMutex
	root block.Block
}

// Option customizes a System.
type Option func(*System)

// WithLogger sets the logger for configuration events. Nil keeps the
// discarding default.
func WithLogger(l *slog.Logger) Option {
	return func(s *System) {
		if l != nil {
			s.log = l
		}
	}
}

// WithEvaluator replaces the default ISO 26262 evaluator. A nil evaluator
// keeps the default.
func WithEvaluator(e *asil.Evaluator) Option {
	return func(s *System) {
		if e != nil {
			s.evaluator = e
		}
	}
}

// New creates an unconfigured system.
func New(name string, totalFIT float64, opts ...Option) *System {
	s := &System{
		name:      name,
		totalFIT:  totalFIT,
		evaluator: asil.NewEvaluator(name),
		log:       logging.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("system", name)
	return s
}

// FromFile creates a system whose layout is read from a JSON or YAML file.
func FromFile(name string, totalFIT float64, path string, opts ...Option) (*System, error) {
	s := New(name, totalFIT, opts...)
	if err := s.Load(path); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *System) Name() string     { return s.name }
func (s *System) TotalFIT() float64 { return s.totalFIT }

// Layout returns the installed root block, or nil.
func (s *System) Layout() block.Block {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.root
}

// Configure installs root as the system's layout.
func (s *System) Configure(root block.Block) error {
	if root == nil {
		return fmt.Errorf("configure %s: %w: layout", s.name, block.ErrMissingField)
	}
	s.mu.Lock()
	s.root = root
	s.mu.Unlock()
	s.log.Info("layout configured", "root_kind", root.Kind(), "root_name", root.Name())
	return nil
}

// #endregion system

// #region analysis
// Analyze evaluates the layout from empty rate maps and reduces the result.
// It performs no I/O.
func (s *System) Analyze() (Report, error) {
	return s.Trace(nil)
}

// RunAnalysis returns just the metrics of Analyze.
func (s *System) RunAnalysis() (asil.Metrics, error) {
	rep, err := s.Analyze()
	if err != nil {
		return asil.Metrics{}, err
	}
	return rep.Metrics, nil
}

// Trace is Analyze with obs notified for every node of the layout.
func (s *System) Trace(obs block.Observer) (Report, error) {
	root := s.Layout()
	if root == nil {
		return Report{}, fmt.Errorf("analyze %s: %w", s.name, ErrNotConfigured)
	}

	var residual, latent fault.RateMap
	if obs == nil {
		residual, latent = root.ComputeFIT(fault.RateMap{}, fault.RateMap{})
	} else {
		residual, latent = block.Evaluate(root, fault.RateMap{}, fault.RateMap{}, obs)
	}
	return Report{
		System:   s.name,
		TotalFIT: s.totalFIT,
		Residual: residual,
		Latent:   latent,
		Metrics:  s.evaluator.ComputeMetrics(s.totalFIT, residual, latent),
	}, nil
}

// #endregion analysis

// #region persistence
// Save writes the layout to path, format chosen by extension.
func (s *System) Save(path string) error {
	root := s.Layout()
	if root == nil {
		return fmt.Errorf("save %s: %w", s.name, ErrNotConfigured)
	}
	if err := layout.Save(path, root); err != nil {
		return err
	}
	s.log.Info("layout saved", "path", path)
	return nil
}

// Load replaces the layout with the one stored at path. On any error the
// previous layout stays installed.
func (s *System) Load(path string) error {
	root, err := layout.Load(path)
	if err != nil {
		s.log.Warn("layout load failed", "path", path, "error", err)
		return err
	}
	s.mu.Lock()
	s.root = root
	s.mu.Unlock()
	s.log.Info("layout loaded", "path", path, "root_kind", root.Kind())
	return nil
}

// #endregion persistence
