package grpcsvc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName содержит полное имя gRPC-сервиса. Сообщения передаются как google.protobuf.Struct.
const ServiceName = "storefront.v1.OrderService"

const (
	MethodCreateOrder       = "/" + ServiceName + "/CreateOrder"
	MethodSubmitPayment     = "/" + ServiceName + "/SubmitPayment"
	MethodTrackOrder        = "/" + ServiceName + "/TrackOrder"
	MethodUpdateOrderStatus = "/" + ServiceName + "/UpdateOrderStatus"
)

// OrderServiceServer реализует серверную сторону storefront.v1.OrderService.
type OrderServiceServer interface {
	CreateOrder(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	SubmitPayment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	TrackOrder(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	UpdateOrderStatus(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(OrderServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call unaryMethod) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(OrderServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(OrderServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// OrderServiceDesc описывает сервис для grpc.Server.RegisterService.
var OrderServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*OrderServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateOrder", Handler: unaryHandler(MethodCreateOrder, OrderServiceServer.CreateOrder)},
		{MethodName: "SubmitPayment", Handler: unaryHandler(MethodSubmitPayment, OrderServiceServer.SubmitPayment)},
		{MethodName: "TrackOrder", Handler: unaryHandler(MethodTrackOrder, OrderServiceServer.TrackOrder)},
		{MethodName: "UpdateOrderStatus", Handler: unaryHandler(MethodUpdateOrderStatus, OrderServiceServer.UpdateOrderStatus)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "storefront/v1/order_service.proto",
}

// RegisterOrderServiceServer регистрирует реализацию на сервере.
func RegisterOrderServiceServer(s grpc.ServiceRegistrar, srv OrderServiceServer) {
	s.RegisterService(&OrderServiceDesc, srv)
}

// OrderServiceClient вызывает storefront.v1.OrderService.
type OrderServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewOrderServiceClient создаёт клиента поверх соединения.
func NewOrderServiceClient(cc grpc.ClientConnInterface) *OrderServiceClient {
	return &OrderServiceClient{cc: cc}
}

func (c *OrderServiceClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *OrderServiceClient) CreateOrder(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodCreateOrder, in, opts...)
}

func (c *OrderServiceClient) SubmitPayment(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodSubmitPayment, in, opts...)
}

func (c *OrderServiceClient) TrackOrder(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodTrackOrder, in, opts...)
}

func (c *OrderServiceClient) UpdateOrderStatus(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodUpdateOrderStatus, in, opts...)
}
