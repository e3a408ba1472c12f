package rpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/ecc-analyzer/internal/asil"
	"github.com/danielpatrickdp/ecc-analyzer/internal/block"
	"github.com/danielpatrickdp/ecc-analyzer/internal/fault"
	"github.com/danielpatrickdp/ecc-analyzer/internal/layout"
)

// Result is a decoded Analyze response.
type Result struct {
	System     string
	TotalFIT   float64
	LayoutHash string
	Residual   fault.RateMap
	Latent     fault.RateMap
	Metrics    asil.Metrics
}

// #region client
// Client wraps the gRPC connection to a remote analyzer.
type Client struct {
	conn    *grpc.ClientConn
	service AnalyzerService
}

// NewClient dials the analyzer at addr.
func NewClient(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial analyzer at %s: %w", addr, err)
	}
	return &Client{conn: conn, service: NewAnalyzerService(conn)}, nil
}

// NewClientWithService creates a Client with an injected service (for testing).
func NewClientWithService(svc AnalyzerService) *Client {
	return &Client{service: svc}
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Analyze sends root for analysis under name with the given total FIT.
func (c *Client) Analyze(ctx context.Context, name string, totalFIT float64, root block.Block) (Result, error) {
	lay, err := layout.ToStruct(root.Config())
	if err != nil {
		return Result{}, fmt.Errorf("encode layout: %w", err)
	}
	req := &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldSystem:   structpb.NewStringValue(name),
		FieldTotalFIT: structpb.NewNumberValue(totalFIT),
		FieldLayout:   structpb.NewStructValue(lay),
	}}

	resp, err := c.service.Analyze(ctx, req)
	if err != nil {
		return Result{}, fmt.Errorf("analyze rpc: %w", err)
	}
	return decodeResult(resp)
}

// #endregion client

func decodeResult(resp *structpb.Struct) (Result, error) {
	f := resp.GetFields()
	residual, err := rateMap(f[FieldResidual].GetStructValue())
	if err != nil {
		return Result{}, fmt.Errorf("decode residual: %w", err)
	}
	latent, err := rateMap(f[FieldLatent].GetStructValue())
	if err != nil {
		return Result{}, fmt.Errorf("decode latent: %w", err)
	}
	return Result{
		System:     f[FieldSystem].GetStringValue(),
		TotalFIT:   f[FieldTotalFIT].GetNumberValue(),
		LayoutHash: f[FieldLayoutHash].GetStringValue(),
		Residual:   residual,
		Latent:     latent,
		Metrics: asil.Metrics{
			SPFM:           f[FieldSPFM].GetNumberValue(),
			LFM:            f[FieldLFM].GetNumberValue(),
			ResidualFIT:    f[FieldResidualFIT].GetNumberValue(),
			LatentFIT:      f[FieldLatentFIT].GetNumberValue(),
			SafeAndCovered: f[FieldSafeAndCovered].GetNumberValue(),
			Verdict:        f[FieldVerdict].GetStringValue(),
		},
	}, nil
}
