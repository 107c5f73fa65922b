package proto

import (
	"context"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	serviceName = "recipebook.Recipes"

	getShortLinkMethod     = "/" + serviceName + "/GetShortLink"
	resolveShortLinkMethod = "/" + serviceName + "/ResolveShortLink"
	shoppingListMethod     = "/" + serviceName + "/ShoppingList"

	// TokenMetadataKey carries the user token on authenticated calls.
	TokenMetadataKey = "x-token"
)

// RecipesServer is the server API of the recipebook.Recipes service. Only
// well-known protobuf types cross the wire.
type RecipesServer interface {
	GetShortLink(context.Context, *wrapperspb.UInt64Value) (*wrapperspb.StringValue, error)
	ResolveShortLink(context.Context, *wrapperspb.StringValue) (*wrapperspb.StringValue, error)
	ShoppingList(*emptypb.Empty, ShoppingListStream) error
}

type ShoppingListStream interface {
	Send(*wrapperspb.StringValue) error
	grpc.ServerStream
}

type shoppingListStream struct {
	grpc.ServerStream
}

func (s *shoppingListStream) Send(m *wrapperspb.StringValue) error {
	return s.ServerStream.SendMsg(m)
}

var RecipesServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*RecipesServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetShortLink",
			Handler:    getShortLinkHandler,
		},
		{
			MethodName: "ResolveShortLink",
			Handler:    resolveShortLinkHandler,
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "ShoppingList",
			Handler:       shoppingListHandler,
			ServerStreams: true,
		},
	},
	Metadata: "recipebook/recipes.proto",
}

func RegisterRecipesServer(s grpc.ServiceRegistrar, srv RecipesServer) {
	s.RegisterService(&RecipesServiceDesc, srv)
}

func getShortLinkHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.UInt64Value)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RecipesServer).GetShortLink(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: getShortLinkMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RecipesServer).GetShortLink(ctx, req.(*wrapperspb.UInt64Value))
	}
	return interceptor(ctx, in, info, handler)
}

func resolveShortLinkHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RecipesServer).ResolveShortLink(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: resolveShortLinkMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RecipesServer).ResolveShortLink(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func shoppingListHandler(srv interface{}, stream grpc.ServerStream) error {
	m := new(emptypb.Empty)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(RecipesServer).ShoppingList(m, &shoppingListStream{stream})
}

// RecipesClient calls the recipebook.Recipes service.
type RecipesClient struct {
	cc grpc.ClientConnInterface
}

func NewRecipesClient(cc grpc.ClientConnInterface) *RecipesClient {
	return &RecipesClient{cc: cc}
}

func (c *RecipesClient) GetShortLink(ctx context.Context, recipeID uint64, opts ...grpc.CallOption) (string, error) {
	out := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(ctx, getShortLinkMethod, wrapperspb.UInt64(recipeID), out, opts...); err != nil {
		return "", err
	}
	return out.GetValue(), nil
}

func (c *RecipesClient) ResolveShortLink(ctx context.Context, code string, opts ...grpc.CallOption) (string, error) {
	out := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(ctx, resolveShortLinkMethod, wrapperspb.String(code), out, opts...); err != nil {
		return "", err
	}
	return out.GetValue(), nil
}

// ShoppingList reads the whole streamed shopping list.
func (c *RecipesClient) ShoppingList(ctx context.Context, opts ...grpc.CallOption) ([]string, error) {
	stream, err := c.cc.NewStream(ctx, &RecipesServiceDesc.Streams[0], shoppingListMethod, opts...)
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(&emptypb.Empty{}); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}

	lines := make([]string, 0)
	for {
		line := new(wrapperspb.StringValue)
		err := stream.RecvMsg(line)
		if err == io.EOF {
			return lines, nil
		}
		if err != nil {
			return nil, err
		}
		lines = append(lines, line.GetValue())
	}
}
