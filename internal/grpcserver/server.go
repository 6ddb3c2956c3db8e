// Package grpcserver implements the ListingService gRPC server used by the
// gateway.
//
// It delegates all business logic to listing.Service and catalog.Catalog and
// handles only the transport concerns: metadata extraction, error mapping,
// and conversion between the domain model and well-known proto types. The
// service descriptor is written by hand over structpb/wrapperspb, so no
// generated code is needed.
package grpcserver

import (
	"context"
	"encoding/json"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"isilanlarim/internal/catalog"
	"isilanlarim/internal/listing"
	"isilanlarim/internal/model"
	"isilanlarim/internal/search"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "isilanlarim.ListingService"

// Server implements ListingService.
type Server struct {
	svc     *listing.Service
	catalog *catalog.Catalog
}

// NewServer constructs a gRPC Server.
func NewServer(svc *listing.Service, cat *catalog.Catalog) *Server {
	return &Server{svc: svc, catalog: cat}
}

// Register adds the service to gs.
func Register(gs *grpc.Server, s *Server) {
	gs.RegisterService(&serviceDesc, s)
}

// ─── RPC implementations ──────────────────────────────────────────────────────

// GetListing returns one active listing by id.
func (s *Server) GetListing(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	if req.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}
	l, err := s.svc.Get(ctx, req.GetValue())
	if err != nil {
		return nil, toGRPCError(err)
	}
	return toStruct(l)
}

// SearchListings filters and paginates the active listings. The request
// carries the criteria fields plus optional "page" and "pageSize"; a page
// outside the result set leaves the first page in place.
func (s *Server) SearchListings(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var q struct {
		model.Criteria
		Page     int `json:"page"`
		PageSize int `json:"pageSize"`
	}
	if err := fromStruct(req, &q); err != nil {
		return nil, status.Error(codes.InvalidArgument, "malformed search request")
	}
	q.SortBy = search.ParseSortBy(string(q.SortBy))

	page := s.catalog.Navigate(catalog.Query{Criteria: q.Criteria, Page: 1, Size: q.PageSize}, q.Page)
	return toStruct(page)
}

// CreateListing creates a listing owned by the caller.
func (s *Server) CreateListing(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := userIDFromCtx(ctx)
	if err != nil {
		return nil, err
	}
	var d listing.Draft
	if err := fromStruct(req, &d); err != nil {
		return nil, status.Error(codes.InvalidArgument, "malformed listing")
	}
	l, err := s.svc.Create(ctx, userID, d)
	if err != nil {
		return nil, toGRPCError(err)
	}
	return toStruct(l)
}

// MyListings returns every listing owned by the caller.
func (s *Server) MyListings(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	userID, err := userIDFromCtx(ctx)
	if err != nil {
		return nil, err
	}
	ls, err := s.svc.Mine(ctx, userID)
	if err != nil {
		return nil, toGRPCError(err)
	}
	return toStruct(map[string]any{"items": ls})
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// userIDFromCtx extracts the x-user-id value forwarded by the gateway via
// gRPC metadata.
func userIDFromCtx(ctx context.Context) (string, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", status.Error(codes.Unauthenticated, "missing metadata")
	}
	vals := md.Get("x-user-id")
	if len(vals) == 0 || vals[0] == "" {
		return "", status.Error(codes.Unauthenticated, "missing x-user-id metadata")
	}
	return vals[0], nil
}

// toGRPCError maps domain errors to gRPC status errors.
func toGRPCError(err error) error {
	var ve *listing.ValidationError
	switch {
	case errors.As(err, &ve):
		return status.Error(codes.InvalidArgument, ve.Msg)
	case errors.Is(err, listing.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, listing.ErrDuplicateTitle):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, listing.ErrForbidden):
		return status.Error(codes.PermissionDenied, err.Error())
	}
	return status.Error(codes.Internal, "internal server error")
}

// toStruct converts any JSON-serialisable value to a Struct, keeping the
// field names the REST API uses.
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	st, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	return st, nil
}

func fromStruct(st *structpb.Struct, out any) error {
	raw, err := json.Marshal(st.AsMap())
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

// ─── Service descriptor ──────────────────────────────────────────────────────

type listingServiceServer interface {
	GetListing(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	SearchListings(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CreateListing(context.Context, *structpb.Struct) (*structpb.Struct, error)
	MyListings(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*listingServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetListing", Handler: unary("GetListing", func(s listingServiceServer, ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
			return s.GetListing(ctx, in)
		})},
		{MethodName: "SearchListings", Handler: unary("SearchListings", func(s listingServiceServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
			return s.SearchListings(ctx, in)
		})},
		{MethodName: "CreateListing", Handler: unary("CreateListing", func(s listingServiceServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
			return s.CreateListing(ctx, in)
		})},
		{MethodName: "MyListings", Handler: unary("MyListings", func(s listingServiceServer, ctx context.Context, in *emptypb.Empty) (*structpb.Struct, error) {
			return s.MyListings(ctx, in)
		})},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "isilanlarim/listing.proto",
}

// unary adapts a typed method to grpc.MethodHandler, running interceptors
// the same way generated code does.
func unary[In any, PIn interface {
	*In
}, Out any](method string, call func(listingServiceServer, context.Context, PIn) (Out, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := PIn(new(In))
		if err := dec(in); err != nil {
			return nil, err
		}
		s := srv.(listingServiceServer)
		if interceptor == nil {
			return call(s, ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + method}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return call(s, ctx, req.(PIn))
		})
	}
}
