package rpc

import (
	"bytes"
	"context"
	"math"
	"net"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/ecc-analyzer/internal/block"
	"github.com/danielpatrickdp/ecc-analyzer/internal/fault"
	"github.com/danielpatrickdp/ecc-analyzer/internal/logging"
)

// #region helpers
type harness struct {
	client  *Client
	metrics *Metrics
	logs    *bytes.Buffer
}

func startServer(t *testing.T) harness {
	t.Helper()
	var logs bytes.Buffer
	log, err := logging.New(logging.Config{Level: "info", Format: "text"}, &logs)
	require.NoError(t, err)
	metrics := NewMetrics(prometheus.NewRegistry())

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterAnalyzerServer(srv, NewServer(log, metrics))
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	c := &Client{conn: conn, service: NewAnalyzerService(conn)}
	t.Cleanup(func() { c.Close() })
	return harness{client: c, metrics: metrics, logs: &logs}
}

// metricLayout leaves 50 FIT residual and nothing latent.
func metricLayout(t *testing.T) block.Block {
	t.Helper()
	a, err := block.NewSource(fault.SBE, 30)
	require.NoError(t, err)
	b, err := block.NewSource(fault.DBE, 20)
	require.NoError(t, err)
	return block.NewAggregate("residual", a, b)
}

type mockService struct {
	AnalyzerService
	resp *structpb.Struct
	err  error
	got  *structpb.Struct
}

func (m *mockService) Analyze(_ context.Context, in *structpb.Struct, _ ...grpc.CallOption) (*structpb.Struct, error) {
	m.got = in
	return m.resp, m.err
}

// #endregion helpers

// #region end-to-end-tests
func TestAnalyze_EndToEnd(t *testing.T) {
	h := startServer(t)

	res, err := h.client.Analyze(context.Background(), "lpddr4", 1000, metricLayout(t))
	require.NoError(t, err)
	assert.Equal(t, "lpddr4", res.System)
	assert.Equal(t, 1000.0, res.TotalFIT)
	assert.Equal(t, "ASIL B", res.Metrics.Verdict)
	assert.InDelta(t, 0.95, res.Metrics.SPFM, 1e-12)
	assert.InDelta(t, 1.0, res.Metrics.LFM, 1e-12)
	assert.InDelta(t, 50.0, res.Metrics.ResidualFIT, 1e-12)
	assert.True(t, fault.RateMap{fault.SBE: 30, fault.DBE: 20}.Equal(res.Residual, 1e-12))
	assert.Empty(t, res.Latent)
	assert.Len(t, res.LayoutHash, 64)

	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.analyses.WithLabelValues("ASIL B")))
	assert.Equal(t, 1, testutil.CollectAndCount(h.metrics.duration))
	assert.Contains(t, h.logs.String(), "analysis complete")
	assert.Contains(t, h.logs.String(), "trigger=rpc")
}

func TestAnalyze_InvalidRequests(t *testing.T) {
	h := startServer(t)
	svc := h.client.service
	lay, err := structpb.NewStruct(map[string]any{
		"type": "Redistribute", "source": "DBE",
		"distribution": map[string]any{"TBE": 0.7, "MBE": 0.7},
	})
	require.NoError(t, err)
	good, err := structpb.NewStruct(map[string]any{"type": "Source", "fault": "SBE", "rate": 1.0})
	require.NoError(t, err)

	cases := []struct {
		name   string
		fields map[string]*structpb.Value
		reason string
	}{
		{"missing total", map[string]*structpb.Value{FieldLayout: structpb.NewStructValue(good)}, "missing_total"},
		{"string total", map[string]*structpb.Value{
			FieldTotalFIT: structpb.NewStringValue("1000"),
			FieldLayout:   structpb.NewStructValue(good),
		}, "bad_total"},
		{"negative total", map[string]*structpb.Value{
			FieldTotalFIT: structpb.NewNumberValue(-1),
			FieldLayout:   structpb.NewStructValue(good),
		}, "bad_total"},
		{"nan total", map[string]*structpb.Value{
			FieldTotalFIT: structpb.NewNumberValue(math.NaN()),
			FieldLayout:   structpb.NewStructValue(good),
		}, "bad_total"},
		{"infinite total", map[string]*structpb.Value{
			FieldTotalFIT: structpb.NewNumberValue(math.Inf(1)),
			FieldLayout:   structpb.NewStructValue(good),
		}, "bad_total"},
		{"negative infinite total", map[string]*structpb.Value{
			FieldTotalFIT: structpb.NewNumberValue(math.Inf(-1)),
			FieldLayout:   structpb.NewStructValue(good),
		}, "bad_total"},
		{"missing layout", map[string]*structpb.Value{FieldTotalFIT: structpb.NewNumberValue(10)}, "bad_layout"},
		{"bad distribution", map[string]*structpb.Value{
			FieldTotalFIT: structpb.NewNumberValue(10),
			FieldLayout:   structpb.NewStructValue(lay),
		}, "bad_layout"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			before := testutil.ToFloat64(h.metrics.errors.WithLabelValues(tc.reason))
			_, err := svc.Analyze(context.Background(), &structpb.Struct{Fields: tc.fields})
			require.Error(t, err)
			assert.Equal(t, codes.InvalidArgument, status.Code(err))
			assert.Equal(t, before+1, testutil.ToFloat64(h.metrics.errors.WithLabelValues(tc.reason)))
		})
	}
}

func TestAnalyze_DefaultSystemName(t *testing.T) {
	h := startServer(t)
	res, err := h.client.Analyze(context.Background(), "", 100, metricLayout(t))
	require.NoError(t, err)
	assert.Equal(t, DefaultSystemName, res.System)
}

// #endregion end-to-end-tests

// #region client-tests
func TestClient_WrapsServiceError(t *testing.T) {
	mock := &mockService{err: status.Error(codes.Unavailable, "down")}
	c := NewClientWithService(mock)
	defer c.Close()

	_, err := c.Analyze(context.Background(), "sys", 10, metricLayout(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "analyze rpc")
	assert.Equal(t, codes.Unavailable, status.Code(err))

	f := mock.got.GetFields()
	assert.Equal(t, "sys", f[FieldSystem].GetStringValue())
	assert.Equal(t, 10.0, f[FieldTotalFIT].GetNumberValue())
	assert.Equal(t, "Aggregate", f[FieldLayout].GetStructValue().GetFields()["type"].GetStringValue())
}

func TestClient_RejectsBadRates(t *testing.T) {
	resp, err := structpb.NewStruct(map[string]any{
		FieldVerdict:  "ASIL A",
		FieldResidual: map[string]any{"XYZ": 1.0},
		FieldLatent:   map[string]any{},
	})
	require.NoError(t, err)
	c := NewClientWithService(&mockService{resp: resp})

	_, err = c.Analyze(context.Background(), "sys", 10, metricLayout(t))
	assert.ErrorIs(t, err, fault.ErrUnknownFault)
}

// #endregion client-tests
