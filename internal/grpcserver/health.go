// Package grpcserver exposes the gateway's readiness over the standard gRPC
// health protocol.
package grpcserver

import (
	"context"
	"net"

	gp "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	healthv1 "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// SessionService is the health service name that tracks login state.
const SessionService = "myxl.session"

type SessionChecker interface {
	SessionReady(ctx context.Context) (bool, error)
}

type HealthServer struct {
	healthv1.UnimplementedHealthServer
	Session SessionChecker
	Log     *logrus.Entry
}

func (s *HealthServer) Check(ctx context.Context, in *healthv1.HealthCheckRequest) (*healthv1.HealthCheckResponse, error) {
	switch in.GetService() {
	case "":
		return serving(true), nil
	case SessionService:
		ok, err := s.Session.SessionReady(ctx)
		if err != nil {
			if s.Log != nil {
				s.Log.WithError(err).Warn("session health check")
			}
			return serving(false), nil
		}
		return serving(ok), nil
	default:
		return nil, status.Errorf(codes.NotFound, "unknown service %q", in.GetService())
	}
}

func serving(ok bool) *healthv1.HealthCheckResponse {
	if ok {
		return &healthv1.HealthCheckResponse{Status: healthv1.HealthCheckResponse_SERVING}
	}
	return &healthv1.HealthCheckResponse{Status: healthv1.HealthCheckResponse_NOT_SERVING}
}

// New builds a gRPC server with Prometheus interceptors and the health
// service registered.
func New(session SessionChecker, log *logrus.Entry) *grpc.Server {
	srv := grpc.NewServer(
		grpc.UnaryInterceptor(gp.UnaryServerInterceptor),
		grpc.StreamInterceptor(gp.StreamServerInterceptor),
	)
	healthv1.RegisterHealthServer(srv, &HealthServer{Session: session, Log: log})
	gp.Register(srv) // default gRPC metrics
	return srv
}

// Serve listens on addr until srv is stopped.
func Serve(srv *grpc.Server, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return srv.Serve(lis)
}
