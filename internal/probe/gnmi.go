// Package probe measures device reachability with a gNMI Capabilities call.
package probe

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/openconfig/gnmi/proto/gnmi"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	defaultPort        = 57400
	defaultDialTimeout = 5 * time.Second
)

// TLSConfig holds TLS configuration
type TLSConfig struct {
	Enabled            bool
	InsecureSkipVerify bool
	ServerName         string
	CAFile             string
	CertFile           string
	KeyFile            string
}

// Config describes how devices are reached.
type Config struct {
	Port        int
	Username    string
	Password    string
	DialTimeout time.Duration
	TLS         *TLSConfig
}

// Result is the outcome of a successful probe.
type Result struct {
	Latency     time.Duration
	GNMIVersion string
	Models      int
}

// LatencyMs is the round trip rounded to whole milliseconds.
func (r Result) LatencyMs() int {
	return int(r.Latency.Round(time.Millisecond) / time.Millisecond)
}

// Prober dials devices on demand. A fresh connection is used for every
// probe so a ping reflects current reachability.
type Prober struct {
	cfg    Config
	logger zerolog.Logger
}

// New creates a Prober.
func New(cfg Config, logger zerolog.Logger) *Prober {
	if cfg.Port <= 0 {
		cfg.Port = defaultPort
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	return &Prober{
		cfg:    cfg,
		logger: logger.With().Str("component", "probe").Logger(),
	}
}

// Target returns the dial target for address, adding the configured port
// when address has none.
func (p *Prober) Target(address string) string {
	if _, _, err := net.SplitHostPort(address); err == nil {
		return address
	}
	return net.JoinHostPort(address, strconv.Itoa(p.cfg.Port))
}

// Probe connects to address and asks for its capabilities. Latency covers
// the dial and the RPC.
func (p *Prober) Probe(ctx context.Context, address string) (Result, error) {
	target := p.Target(address)

	opts, err := p.dialOptions()
	if err != nil {
		return Result{}, fmt.Errorf("dial options: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.DialTimeout)
	defer cancel()

	start := time.Now()
	// WithBlock makes an unreachable device fail here instead of on the RPC.
	conn, err := grpc.DialContext(ctx, target, append(opts, grpc.WithBlock())...)
	if err != nil {
		return Result{}, fmt.Errorf("failed to dial gNMI server %s: %w", target, err)
	}
	defer conn.Close()

	resp, err := gnmi.NewGNMIClient(conn).Capabilities(ctx, &gnmi.CapabilityRequest{})
	if err != nil {
		return Result{}, fmt.Errorf("capabilities %s: %w", target, err)
	}

	res := Result{
		Latency:     time.Since(start),
		GNMIVersion: resp.GetGNMIVersion(),
		Models:      len(resp.GetSupportedModels()),
	}
	p.logger.Debug().
		Str("target", target).
		Dur("latency", res.Latency).
		Str("gnmi_version", res.GNMIVersion).
		Msg("Device answered probe")
	return res, nil
}

func (p *Prober) dialOptions() ([]grpc.DialOption, error) {
	creds, err := transportCredentials(p.cfg.TLS)
	if err != nil {
		return nil, err
	}
	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(creds),
	}
	if p.cfg.Username != "" || p.cfg.Password != "" {
		opts = append(opts, grpc.WithPerRPCCredentials(&basicAuth{username: p.cfg.Username, password: p.cfg.Password}))
	}
	return opts, nil
}

func transportCredentials(cfg *TLSConfig) (credentials.TransportCredentials, error) {
	if cfg == nil || !cfg.Enabled {
		return insecure.NewCredentials(), nil
	}

	certPool, err := loadCertPool(cfg.CAFile)
	if err != nil {
		return nil, err
	}
	certs, err := loadClientCert(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, err
	}
	return credentials.NewTLS(&tls.Config{
		RootCAs:            certPool,
		Certificates:       certs,
		ServerName:         cfg.ServerName,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	}), nil
}

// loadCertPool returns the system pool when no CA file is given.
func loadCertPool(caFile string) (*x509.CertPool, error) {
	if caFile == "" {
		return x509.SystemCertPool()
	}
	data, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("read ca file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(data) {
		return nil, fmt.Errorf("invalid ca certs")
	}
	return pool, nil
}

func loadClientCert(certFile, keyFile string) ([]tls.Certificate, error) {
	if certFile == "" && keyFile == "" {
		return nil, nil
	}
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("load client cert: %w", err)
	}
	return []tls.Certificate{cert}, nil
}

// basicAuth sends "Basic <base64(user:pass)>" on every RPC, as gnmic does.
type basicAuth struct {
	username string
	password string
}

func (b *basicAuth) GetRequestMetadata(_ context.Context, _ ...string) (map[string]string, error) {
	if b.username == "" && b.password == "" {
		return nil, nil
	}
	encoded := base64.StdEncoding.EncodeToString([]byte(b.username + ":" + b.password))
	return map[string]string{"authorization": "Basic " + encoded}, nil
}

func (b *basicAuth) RequireTransportSecurity() bool {
	return false
}
