// Package connector opens connections to data nodes by URI. The default
// source dials gRPC; tests plug their own Source.
package connector

import (
	"context"
	"math"
	"net/url"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"

	"github.com/hivedb/hive/errors"
	"github.com/hivedb/hive/metrics"
	"github.com/hivedb/hive/proto"
	"github.com/hivedb/hive/util/limiter"
)

// Conn is one caller-owned connection to a data node. The caller is
// responsible for closing it on every exit path.
type Conn struct {
	id       string
	nodeID   proto.NodeID
	target   string
	readOnly bool

	cc      *grpc.ClientConn
	release func()
}

func (c *Conn) ID() string { return c.id }

func (c *Conn) NodeID() proto.NodeID { return c.nodeID }

func (c *Conn) Target() string { return c.target }

// ReadOnly reports whether the connection was opened with read intent.
func (c *Conn) ReadOnly() bool { return c.readOnly }

// ClientConn exposes the underlying gRPC connection for the caller's stubs.
func (c *Conn) ClientConn() *grpc.ClientConn { return c.cc }

func (c *Conn) Close() error {
	if c.release != nil {
		c.release()
		c.release = nil
	}
	if c.cc != nil {
		return c.cc.Close()
	}
	return nil
}

// Source opens a connection to a node. readOnly marks the connection for
// read intent.
type Source interface {
	Open(ctx context.Context, node *proto.Node, readOnly bool) (*Conn, error)
}

type Config struct {
	DialTimeoutMS int `json:"dial_timeout_ms"`

	// Limit caps concurrent acquisitions per intent; zero disables the cap.
	Limit limiter.LimitConfig `json:"limit"`
}

type grpcSource struct {
	cfg *Config
	lim limiter.Limiter
}

func NewGRPCSource(cfg *Config) Source {
	if cfg == nil {
		cfg = &Config{}
	}
	return &grpcSource{
		cfg: cfg,
		lim: limiter.NewLimiter(cfg.Limit),
	}
}

func (s *grpcSource) Open(ctx context.Context, node *proto.Node, readOnly bool) (*Conn, error) {
	acquire, release := s.lim.AcquireWrite, s.lim.ReleaseWrite
	if readOnly {
		acquire, release = s.lim.AcquireRead, s.lim.ReleaseRead
	}
	if err := acquire(); err != nil {
		return nil, err
	}

	target, err := dialTarget(node.URI)
	if err != nil {
		release()
		return nil, err
	}

	dialOpts := []grpc.DialOption{
		grpc.WithDefaultCallOptions(
			grpc.MaxCallSendMsgSize(math.MaxInt32),
			grpc.MaxCallRecvMsgSize(math.MaxInt32),
		),
		grpc.WithKeepaliveParams(
			keepalive.ClientParameters{
				Time:                1 * time.Second,
				Timeout:             5 * time.Second,
				PermitWithoutStream: true,
			},
		),
		grpc.WithUnaryInterceptor(metrics.GRPCClientMetrics.UnaryClientInterceptor()),
		grpc.WithStreamInterceptor(metrics.GRPCClientMetrics.StreamClientInterceptor()),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}

	if s.cfg.DialTimeoutMS > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(s.cfg.DialTimeoutMS)*time.Millisecond)
		defer cancel()
	}

	cc, err := grpc.DialContext(ctx, target, dialOpts...)
	if err != nil {
		release()
		return nil, errors.Persistence(err)
	}

	return &Conn{
		id:       uuid.NewString(),
		nodeID:   node.ID,
		target:   target,
		readOnly: readOnly,
		cc:       cc,
		release:  release,
	}, nil
}

func dialTarget(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", errors.Persistence(err)
	}
	if u.Host != "" {
		return u.Host + u.Path, nil
	}
	return uri, nil
}
