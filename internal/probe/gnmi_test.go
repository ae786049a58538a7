package probe

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/openconfig/gnmi/proto/gnmi"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

type capServer struct {
	gnmi.UnimplementedGNMIServer
	auth chan string
}

func (s *capServer) Capabilities(ctx context.Context, _ *gnmi.CapabilityRequest) (*gnmi.CapabilityResponse, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	auth := ""
	if v := md.Get("authorization"); len(v) > 0 {
		auth = v[0]
	}
	select {
	case s.auth <- auth:
	default:
	}
	return &gnmi.CapabilityResponse{
		GNMIVersion:     "0.10.0",
		SupportedModels: []*gnmi.ModelData{{Name: "openconfig-interfaces"}, {Name: "openconfig-system"}},
	}, nil
}

func startServer(t *testing.T) (string, *capServer) {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := grpc.NewServer()
	cs := &capServer{auth: make(chan string, 1)}
	gnmi.RegisterGNMIServer(srv, cs)
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)
	return lis.Addr().String(), cs
}

func TestProbeReportsCapabilities(t *testing.T) {
	addr, cs := startServer(t)
	p := New(Config{Username: "admin", Password: "secret", DialTimeout: 2 * time.Second}, zerolog.Nop())

	res, err := p.Probe(context.Background(), addr)
	require.NoError(t, err)
	assert.Equal(t, "0.10.0", res.GNMIVersion)
	assert.Equal(t, 2, res.Models)
	assert.Greater(t, res.Latency, time.Duration(0))
	assert.Equal(t, "Basic YWRtaW46c2VjcmV0", <-cs.auth)
}

func TestProbeUnreachable(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := lis.Addr().String()
	require.NoError(t, lis.Close())

	p := New(Config{DialTimeout: 200 * time.Millisecond}, zerolog.Nop())
	_, err = p.Probe(context.Background(), addr)
	require.Error(t, err)
}

func TestTargetAddsPort(t *testing.T) {
	p := New(Config{Port: 6030}, zerolog.Nop())
	assert.Equal(t, "10.0.0.5:6030", p.Target("10.0.0.5"))
	assert.Equal(t, "10.0.0.5:57400", p.Target("10.0.0.5:57400"))
	assert.Equal(t, "cam-1.campus:6030", p.Target("cam-1.campus"))

	d := New(Config{}, zerolog.Nop())
	assert.Equal(t, "reader:57400", d.Target("reader"))
}

func TestLatencyMs(t *testing.T) {
	assert.Equal(t, 12, Result{Latency: 12400 * time.Microsecond}.LatencyMs())
	assert.Equal(t, 13, Result{Latency: 12600 * time.Microsecond}.LatencyMs())
}

func TestBasicAuthEmpty(t *testing.T) {
	md, err := (&basicAuth{}).GetRequestMetadata(context.Background())
	require.NoError(t, err)
	assert.Nil(t, md)
}
