package handlers

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// ServiceName is the fully qualified gRPC service name
const ServiceName = "kanmon.v1.PermissionService"

func init() {
	encoding.RegisterCodec(JSONCodec{})
}

// JSONCodec encodes messages as JSON (content-type application/grpc+json).
// Protobuf messages use protojson, everything else encoding/json.
type JSONCodec struct{}

func (JSONCodec) Marshal(v any) ([]byte, error) {
	if m, ok := v.(proto.Message); ok {
		return protojson.Marshal(m)
	}
	return json.Marshal(v)
}

func (JSONCodec) Unmarshal(data []byte, v any) error {
	if m, ok := v.(proto.Message); ok {
		return protojson.Unmarshal(data, m)
	}
	return json.Unmarshal(data, v)
}

func (JSONCodec) Name() string { return "json" }

// PermissionServiceServer is the server API of kanmon.v1.PermissionService
type PermissionServiceServer interface {
	Check(ctx context.Context, req *CheckRequest) (*CheckResponse, error)
	PermittedFields(ctx context.Context, req *PermittedFieldsRequest) (*PermittedFieldsResponse, error)
	Query(ctx context.Context, req *QueryRequest) (*QueryResponse, error)
	SanitizeOutput(ctx context.Context, req *SanitizeRequest) (*SanitizeResponse, error)
	SanitizeInput(ctx context.Context, req *SanitizeRequest) (*SanitizeResponse, error)
	WritePermissions(ctx context.Context, req *WritePermissionsRequest) (*PermissionsResponse, error)
	ReadPermissions(ctx context.Context, req *ReadPermissionsRequest) (*PermissionsResponse, error)
	CleanPermissions(ctx context.Context, req *CleanPermissionsRequest) (*CleanPermissionsResponse, error)
}

// RegisterPermissionServiceServer registers srv on s
func RegisterPermissionServiceServer(s grpc.ServiceRegistrar, srv PermissionServiceServer) {
	s.RegisterService(&permissionServiceDesc, srv)
}

var permissionServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PermissionServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Check", Handler: unaryHandler("Check", PermissionServiceServer.Check)},
		{MethodName: "PermittedFields", Handler: unaryHandler("PermittedFields", PermissionServiceServer.PermittedFields)},
		{MethodName: "Query", Handler: unaryHandler("Query", PermissionServiceServer.Query)},
		{MethodName: "SanitizeOutput", Handler: unaryHandler("SanitizeOutput", PermissionServiceServer.SanitizeOutput)},
		{MethodName: "SanitizeInput", Handler: unaryHandler("SanitizeInput", PermissionServiceServer.SanitizeInput)},
		{MethodName: "WritePermissions", Handler: unaryHandler("WritePermissions", PermissionServiceServer.WritePermissions)},
		{MethodName: "ReadPermissions", Handler: unaryHandler("ReadPermissions", PermissionServiceServer.ReadPermissions)},
		{MethodName: "CleanPermissions", Handler: unaryHandler("CleanPermissions", PermissionServiceServer.CleanPermissions)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "kanmon/v1/permission.proto",
}

func fullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// unaryHandler adapts a typed server method to a grpc.MethodHandler
func unaryHandler[Req, Resp any](method string, call func(PermissionServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		req := new(Req)
		if err := dec(req); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(PermissionServiceServer), ctx, req)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod(method),
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(PermissionServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, req, info, handler)
	}
}

// PermissionServiceClient is the client API of kanmon.v1.PermissionService
type PermissionServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewPermissionServiceClient creates a client. Calls use the JSON codec.
func NewPermissionServiceClient(cc grpc.ClientConnInterface) *PermissionServiceClient {
	return &PermissionServiceClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, req any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(JSONCodec{}.Name())}, opts...)
	if err := cc.Invoke(ctx, fullMethod(method), req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *PermissionServiceClient) Check(ctx context.Context, req *CheckRequest, opts ...grpc.CallOption) (*CheckResponse, error) {
	return invoke[CheckResponse](ctx, c.cc, "Check", req, opts)
}

func (c *PermissionServiceClient) PermittedFields(ctx context.Context, req *PermittedFieldsRequest, opts ...grpc.CallOption) (*PermittedFieldsResponse, error) {
	return invoke[PermittedFieldsResponse](ctx, c.cc, "PermittedFields", req, opts)
}

func (c *PermissionServiceClient) Query(ctx context.Context, req *QueryRequest, opts ...grpc.CallOption) (*QueryResponse, error) {
	return invoke[QueryResponse](ctx, c.cc, "Query", req, opts)
}

func (c *PermissionServiceClient) SanitizeOutput(ctx context.Context, req *SanitizeRequest, opts ...grpc.CallOption) (*SanitizeResponse, error) {
	return invoke[SanitizeResponse](ctx, c.cc, "SanitizeOutput", req, opts)
}

func (c *PermissionServiceClient) SanitizeInput(ctx context.Context, req *SanitizeRequest, opts ...grpc.CallOption) (*SanitizeResponse, error) {
	return invoke[SanitizeResponse](ctx, c.cc, "SanitizeInput", req, opts)
}

func (c *PermissionServiceClient) WritePermissions(ctx context.Context, req *WritePermissionsRequest, opts ...grpc.CallOption) (*PermissionsResponse, error) {
	return invoke[PermissionsResponse](ctx, c.cc, "WritePermissions", req, opts)
}

func (c *PermissionServiceClient) ReadPermissions(ctx context.Context, req *ReadPermissionsRequest, opts ...grpc.CallOption) (*PermissionsResponse, error) {
	return invoke[PermissionsResponse](ctx, c.cc, "ReadPermissions", req, opts)
}

func (c *PermissionServiceClient) CleanPermissions(ctx context.Context, req *CleanPermissionsRequest, opts ...grpc.CallOption) (*CleanPermissionsResponse, error) {
	return invoke[CleanPermissionsResponse](ctx, c.cc, "CleanPermissions", req, opts)
}
