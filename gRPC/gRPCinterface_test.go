package proto

import (
	"context"
	"net"
	"sync"
	"testing"

	"BlurServer/backend/native"
	"BlurServer/delivery"
	"BlurServer/engine"
	"BlurServer/ndarray"
	iface "BlurServer/interface"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

type requestCount struct {
	mu sync.Mutex
	n  map[string]int
}

func (r *requestCount) Request(transport string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.n[transport]++
}

func TestParamService(t *testing.T) {
	e := engine.New(native.New(), engine.WithLogger(zap.NewNop()))
	d := delivery.NewDriver(e, delivery.Options{QueueSize: 2, BlockingCallbacks: true}, nil)
	rc := &requestCount{n: map[string]int{}}
	srv := NewServer(e, d, rc)

	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer()
	RegisterParamServiceServer(s, srv)
	go func() { _ = s.Serve(lis) }()
	defer s.Stop()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()
	client := NewParamServiceClient(conn)
	ctx := context.Background()

	t.Run("Test GetParams", func(t *testing.T) {
		resp, err := client.GetParams(ctx, &emptypb.Empty{})
		require.NoError(t, err)
		m := resp.AsMap()
		assert.Equal(t, 3.0, m["kernelWidth"])
		assert.Equal(t, "None", m["blurType"])
		assert.Equal(t, "Auto", m["dataType"])
	})

	t.Run("Test SetParams", func(t *testing.T) {
		req, err := structpb.NewStruct(map[string]any{"kernelWidth": 4, "blurType": "Median", "dataType": "Float32"})
		require.NoError(t, err)
		resp, err := client.SetParams(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, "Median", resp.AsMap()["blurType"])
		assert.Equal(t, 4, e.Params().KernelWidth())
		assert.Equal(t, 3, e.Params().KernelHeight(), "untouched fields keep their value")
		assert.Equal(t, iface.Median, e.Params().Mode())
		assert.Equal(t, ndarray.Float32, e.Params().OutputType())
	})

	t.Run("Test SetParams invalid", func(t *testing.T) {
		req, err := structpb.NewStruct(map[string]any{"dataType": "Complex128"})
		require.NoError(t, err)
		_, err = client.SetParams(ctx, req)
		assert.Equal(t, codes.InvalidArgument, status.Code(err))
		assert.Equal(t, ndarray.Float32, e.Params().OutputType())
	})

	t.Run("Test SetParams numeric", func(t *testing.T) {
		req, err := structpb.NewStruct(map[string]any{"blurType": 2, "dataType": 7})
		require.NoError(t, err)
		resp, err := client.SetParams(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, "Gaussian", resp.AsMap()["blurType"])
		assert.Equal(t, "Float64", resp.AsMap()["dataType"])
		assert.Equal(t, iface.Gaussian, e.Params().Mode())
		assert.Equal(t, ndarray.Float64, e.Params().OutputType())

		req, err = structpb.NewStruct(map[string]any{"blurType": 3, "dataType": 6})
		require.NoError(t, err)
		_, err = client.SetParams(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, iface.Median, e.Params().Mode())
		assert.Equal(t, ndarray.Float32, e.Params().OutputType())
	})

	t.Run("Test Stats", func(t *testing.T) {
		f, err := ndarray.FromValues([]int{3, 3}, ndarray.UInt8, make([]float64, 9))
		require.NoError(t, err)
		require.NoError(t, d.Submit(f))

		resp, err := client.Stats(ctx, &emptypb.Empty{})
		require.NoError(t, err)
		m := resp.AsMap()
		assert.Equal(t, 1.0, m["cycles"])
		assert.Equal(t, "success", m["lastStatus"])
		assert.Equal(t, engine.PluginType, m["pluginType"])
		assert.Equal(t, 5, e.Params().KernelWidth(), "normalized on the cycle")
	})

	t.Run("Test Shutdown", func(t *testing.T) {
		_, err := client.Shutdown(ctx, &emptypb.Empty{})
		require.NoError(t, err)
		_, err = client.Shutdown(ctx, &emptypb.Empty{})
		require.NoError(t, err)
		<-srv.CloseChannel
	})

	assert.Equal(t, 8, rc.n["grpc"])
}
