package server

import "google.golang.org/grpc"

// Registrar adds extra services to the ops gRPC server.
type Registrar interface {
	Register(s *grpc.Server)
}

// RegistrarFunc adapts a function to Registrar.
type RegistrarFunc func(s *grpc.Server)

func (f RegistrarFunc) Register(s *grpc.Server) { f(s) }
