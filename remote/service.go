package remote

import (
	"context"
	"net"
	"time"

	"github.com/lililuanluan/weazer/interp"
	"github.com/lililuanluan/weazer/verifier"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

const exploreMethod = "/weazer.Worker/Explore"

// Implemented by Server. Used by grpc to check the registered service.
type worker interface {
	explore(ctx context.Context, req *exploreRequest) (*exploreResponse, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: "weazer.Worker",
	HandlerType: (*worker)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Explore", Handler: exploreHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "weazer/remote",
}

func exploreHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(exploreRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	run := func(ctx context.Context, req any) (any, error) {
		return srv.(worker).explore(ctx, req.(*exploreRequest))
	}
	if interceptor == nil {
		return run(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: exploreMethod}
	return interceptor(ctx, in, info, run)
}

// A Server explores the states sent to it. Every request gets a new
// driver, so requests may be served concurrently.
type Server struct {
	prog *interp.Program
	conf verifier.Config
	srv  *grpc.Server
}

// Create a server exploring p. The predicates of p are checked along with
// the configured ones.
func NewServer(p *interp.Program, conf verifier.Config) (*Server, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	conf.Predicates = append(slices.Clone(conf.Predicates), p.Predicates...)
	s := &Server{prog: p, conf: conf}
	s.srv = grpc.NewServer(
		grpc.ForceServerCodec(codec{}),
		grpc.UnaryInterceptor(logServerCalls),
	)
	s.srv.RegisterService(&serviceDesc, s)
	return s, nil
}

// Serve requests on lis until Stop is called
func (s *Server) Serve(lis net.Listener) error {
	log.WithField("addr", lis.Addr()).Info("worker listening")
	return s.srv.Serve(lis)
}

// Wait for pending requests and stop serving
func (s *Server) Stop() {
	s.srv.GracefulStop()
}

func (s *Server) explore(ctx context.Context, req *exploreRequest) (*exploreResponse, error) {
	if req.program != s.prog.Name {
		return nil, status.Errorf(codes.FailedPrecondition, "worker runs %q, not %q", s.prog.Name, req.program)
	}
	d, err := verifier.New(s.conf, interp.New(s.prog))
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	res := d.Explore(ctx, req.state)
	if err := ctx.Err(); err != nil {
		return nil, status.FromContextError(err).Err()
	}
	return &exploreResponse{res: res}, nil
}

func logServerCalls(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	entry := log.WithFields(log.Fields{"method": info.FullMethod, "took": time.Since(start)})
	if err != nil {
		entry.WithError(err).Warn("request failed")
	} else {
		entry.Debug("request served")
	}
	return resp, err
}

// A Client forwards states to a remote worker. It can be handed to a pool
// as one of its workers.
type Client struct {
	conn    *grpc.ClientConn
	program string
}

// Connect to the worker at addr, which must run the named program. Extra
// dial options are applied after the defaults.
func Dial(ctx context.Context, addr, program string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(codec{})),
		grpc.WithUnaryInterceptor(logClientCalls),
	}, opts...)
	conn, err := grpc.DialContext(ctx, addr, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "remote: dialing %v", addr)
	}
	return &Client{conn: conn, program: program}, nil
}

func (c *Client) Explore(ctx context.Context, st *verifier.State) (*verifier.Result, error) {
	out := new(exploreResponse)
	if err := c.conn.Invoke(ctx, exploreMethod, &exploreRequest{program: c.program, state: st}, out); err != nil {
		return nil, errors.Wrapf(err, "remote: %v", c.conn.Target())
	}
	if out.res == nil {
		return verifier.NewResult(), nil
	}
	return out.res, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func logClientCalls(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
	start := time.Now()
	err := invoker(ctx, method, req, reply, cc, opts...)
	log.WithFields(log.Fields{
		"target": cc.Target(),
		"method": method,
		"took":   time.Since(start),
	}).Debug("branch forwarded")
	return err
}
