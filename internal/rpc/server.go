package rpc

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/ecc-analyzer/internal/asil"
	"github.com/danielpatrickdp/ecc-analyzer/internal/block"
	"github.com/danielpatrickdp/ecc-analyzer/internal/fault"
	"github.com/danielpatrickdp/ecc-analyzer/internal/layout"
	"github.com/danielpatrickdp/ecc-analyzer/internal/logging"
	"github.com/danielpatrickdp/ecc-analyzer/internal/system"
)

// DefaultSystemName is used when a request does not name its system.
const DefaultSystemName = "rpc"

// Request and response field names.
const (
	FieldSystem         = "system"
	FieldTotalFIT       = "total_fit"
	FieldLayout         = "layout"
	FieldSPFM           = "spfm"
	FieldLFM            = "lfm"
	FieldResidualFIT    = "residual_fit"
	FieldLatentFIT      = "latent_fit"
	FieldSafeAndCovered = "safe_and_covered"
	FieldVerdict        = "verdict"
	FieldLayoutHash     = "layout_hash"
	FieldResidual       = "residual"
	FieldLatent         = "latent"
)

// #region server
// Server answers Analyze calls by building the submitted layout and running
// one analysis on it. Each call gets its own System, so calls never share
// state.
type Server struct {
	log       *slog.Logger
	metrics   *Metrics
	evaluator *asil.Evaluator
}

// NewServer returns a Server. A nil metrics disables instrumentation.
func NewServer(log *slog.Logger, metrics *Metrics) *Server {
	if log == nil {
		log = logging.Discard()
	}
	return &Server{log: log, metrics: metrics, evaluator: asil.NewEvaluator("rpc")}
}

// Analyze implements AnalyzerServer.
func (s *Server) Analyze(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	start := time.Now()
	fields := req.GetFields()

	name := fields[FieldSystem].GetStringValue()
	if name == "" {
		name = DefaultSystemName
	}

	totalVal, ok := fields[FieldTotalFIT]
	if !ok {
		return nil, s.reject("missing_total", codes.InvalidArgument, "total_fit is required")
	}
	if _, isNum := totalVal.GetKind().(*structpb.Value_NumberValue); !isNum {
		return nil, s.reject("bad_total", codes.InvalidArgument, "total_fit must be a number")
	}
	total := totalVal.GetNumberValue()
	if math.IsNaN(total) || math.IsInf(total, 0) || total < 0 {
		return nil, s.reject("bad_total", codes.InvalidArgument, "total_fit must be finite and non-negative")
	}

	cfg, err := layout.FromStruct(fields[FieldLayout].GetStructValue())
	if err != nil {
		return nil, s.reject("bad_layout", codes.InvalidArgument, "layout: %v", err)
	}
	root, err := block.FromConfig(cfg)
	if err != nil {
		return nil, s.reject("bad_layout", codes.InvalidArgument, "layout: %v", err)
	}
	hash, err := logging.HashLayout(root.Config())
	if err != nil {
		return nil, s.reject("internal", codes.Internal, "%v", err)
	}

	sys := system.New(name, total, system.WithLogger(s.log), system.WithEvaluator(s.evaluator))
	if err := sys.Configure(root); err != nil {
		return nil, s.reject("internal", codes.Internal, "%v", err)
	}
	rep, err := sys.Analyze()
	if err != nil {
		return nil, s.reject("internal", codes.Internal, "%v", err)
	}

	if s.metrics != nil {
		s.metrics.observe(rep.Metrics.Verdict, time.Since(start).Seconds())
	}
	logging.LogDecision(ctx, s.log, logging.ProvenanceEntry{
		System:      name,
		LayoutHash:  hash,
		TriggerType: "rpc",
		SPFM:        rep.Metrics.SPFM,
		LFM:         rep.Metrics.LFM,
		ResidualFIT: rep.Metrics.ResidualFIT,
		LatentFIT:   rep.Metrics.LatentFIT,
		Verdict:     rep.Metrics.Verdict,
	})

	out, err := reportStruct(rep, hash)
	if err != nil {
		return nil, s.reject("internal", codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

func (s *Server) reject(reason string, code codes.Code, format string, args ...any) error {
	if s.metrics != nil {
		s.metrics.fail(reason)
	}
	err := status.Errorf(code, format, args...)
	s.log.Warn("analysis rejected", "reason", reason, "error", err)
	return err
}

// #endregion server

// #region encoding
func reportStruct(rep system.Report, hash string) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		FieldSystem:         rep.System,
		FieldTotalFIT:       rep.TotalFIT,
		FieldSPFM:           rep.Metrics.SPFM,
		FieldLFM:            rep.Metrics.LFM,
		FieldResidualFIT:    rep.Metrics.ResidualFIT,
		FieldLatentFIT:      rep.Metrics.LatentFIT,
		FieldSafeAndCovered: rep.Metrics.SafeAndCovered,
		FieldVerdict:        rep.Metrics.Verdict,
		FieldLayoutHash:     hash,
		FieldResidual:       rateValues(rep.Residual),
		FieldLatent:         rateValues(rep.Latent),
	})
}

// rateValues widens a rate map for structpb, which has no float64 map case.
func rateValues(m fault.RateMap) map[string]any {
	out := make(map[string]any, len(m))
	for name, v := range m.Names() {
		out[name] = v
	}
	return out
}

func rateMap(s *structpb.Struct) (fault.RateMap, error) {
	names := make(map[string]float64, len(s.GetFields()))
	for k, v := range s.GetFields() {
		n, ok := v.GetKind().(*structpb.Value_NumberValue)
		if !ok {
			return nil, fmt.Errorf("rate %s is not a number", k)
		}
		names[k] = n.NumberValue
	}
	return fault.FromNames(names)
}

// #endregion encoding
