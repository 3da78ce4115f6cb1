package handler

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/yuandi/fulfillment/internal/core/domain"
	"github.com/yuandi/fulfillment/internal/core/service"
)

const (
	FulfillmentServiceName = "yuandi.erp.v1.Fulfillment"
	JSONCodecName          = "json"
	idempotencyMetadataKey = "idempotency-key"
)

// jsonCodec carries the HTTP DTOs over gRPC; clients select it with
// grpc.CallContentSubtype(JSONCodecName).
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return JSONCodecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type OrderIDRequest struct {
	OrderID string `json:"order_id" binding:"required,uuid"`
}

type ShipmentRPCRequest struct {
	OrderID string `json:"order_id" binding:"required,uuid"`
	ShipOrderRequest
}

type RefundRPCRequest struct {
	OrderID string `json:"order_id" binding:"required,uuid"`
	RefundOrderRequest
}

type IntegrityRequest struct{}

type FulfillmentServer interface {
	CreateOrder(ctx context.Context, req *CreateOrderRequest) (*OrderResponse, error)
	CreateShipment(ctx context.Context, req *ShipmentRPCRequest) (*ShipmentResponse, error)
	CompleteOrder(ctx context.Context, req *OrderIDRequest) (*OrderResponse, error)
	ProcessRefund(ctx context.Context, req *RefundRPCRequest) (*RefundResponse, error)
	ValidateIntegrity(ctx context.Context, req *IntegrityRequest) (*domain.IntegrityReport, error)
}

var FulfillmentServiceDesc = grpc.ServiceDesc{
	ServiceName: FulfillmentServiceName,
	HandlerType: (*FulfillmentServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("CreateOrder", FulfillmentServer.CreateOrder),
		unary("CreateShipment", FulfillmentServer.CreateShipment),
		unary("CompleteOrder", FulfillmentServer.CompleteOrder),
		unary("ProcessRefund", FulfillmentServer.ProcessRefund),
		unary("ValidateIntegrity", FulfillmentServer.ValidateIntegrity),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "fulfillment",
}

func unary[Req, Resp any](name string, call func(FulfillmentServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + FulfillmentServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			invoke := func(ctx context.Context, req any) (any, error) {
				return call(srv.(FulfillmentServer), ctx, req.(*Req))
			}
			if interceptor == nil {
				return invoke(ctx, in)
			}
			return interceptor(ctx, in, &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}, invoke)
		},
	}
}

func RegisterFulfillmentServer(s grpc.ServiceRegistrar, srv FulfillmentServer) {
	s.RegisterService(&FulfillmentServiceDesc, srv)
}

type GRPCHandler struct {
	orders    *service.OrderService
	integrity *service.IntegrityValidator
}

func NewGRPCHandler(orders *service.OrderService, integrity *service.IntegrityValidator) *GRPCHandler {
	return &GRPCHandler{orders: orders, integrity: integrity}
}

func (h *GRPCHandler) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*OrderResponse, error) {
	if err := binding.Validator.ValidateStruct(req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	items := make([]domain.OrderItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, domain.OrderItem{
			ProductID: uuid.MustParse(it.ProductID),
			Quantity:  it.Quantity,
			Price:     it.Price,
		})
	}

	var key string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if v := md.Get(idempotencyMetadataKey); len(v) > 0 {
			key = v[0]
		}
	}

	o, err := h.orders.CreateOrder(ctx, service.CreateOrderRequest{
		CustomerName:    req.CustomerName,
		CustomerPhone:   req.CustomerPhone,
		PCCC:            req.PCCC,
		ShippingAddress: req.ShippingAddress,
		Items:           items,
		TotalAmount:     req.TotalAmount,
		ShippingFee:     req.ShippingFee,
		IdempotencyKey:  key,
	})
	if err != nil {
		return nil, grpcError(err)
	}
	resp := toOrderResponse(o)
	return &resp, nil
}

func (h *GRPCHandler) CreateShipment(ctx context.Context, req *ShipmentRPCRequest) (*ShipmentResponse, error) {
	if err := binding.Validator.ValidateStruct(req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	s, err := h.orders.CreateShipment(ctx, service.ShipmentRequest{
		OrderID:        uuid.MustParse(req.OrderID),
		CourierCompany: req.CourierCompany,
		TrackingNumber: req.TrackingNumber,
		ShippingFee:    req.ShippingFee,
		ShippingDate:   req.ShippingDate,
	})
	if err != nil {
		return nil, grpcError(err)
	}
	resp := toShipmentResponse(s)
	return &resp, nil
}

func (h *GRPCHandler) CompleteOrder(ctx context.Context, req *OrderIDRequest) (*OrderResponse, error) {
	if err := binding.Validator.ValidateStruct(req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	o, err := h.orders.CompleteOrder(ctx, uuid.MustParse(req.OrderID))
	if err != nil {
		return nil, grpcError(err)
	}
	resp := toOrderResponse(o)
	return &resp, nil
}

func (h *GRPCHandler) ProcessRefund(ctx context.Context, req *RefundRPCRequest) (*RefundResponse, error) {
	if err := binding.Validator.ValidateStruct(req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	r, err := h.orders.ProcessRefund(ctx, service.RefundRequest{
		OrderID:        uuid.MustParse(req.OrderID),
		Reason:         req.Reason,
		RefundAmount:   req.RefundAmount,
		RefundFee:      req.RefundFee,
		ShippingRefund: req.ShippingRefund,
	})
	if err != nil {
		return nil, grpcError(err)
	}
	resp := toRefundResponse(r)
	return &resp, nil
}

func (h *GRPCHandler) ValidateIntegrity(ctx context.Context, _ *IntegrityRequest) (*domain.IntegrityReport, error) {
	report, err := h.integrity.ValidateSystemIntegrity(ctx)
	if err != nil {
		return nil, grpcError(err)
	}
	return &report, nil
}

var grpcCodeByDomain = map[string]codes.Code{
	domain.CodeNotFound:          codes.NotFound,
	domain.CodeInvalidInput:      codes.InvalidArgument,
	domain.CodeInvalidState:      codes.FailedPrecondition,
	domain.CodeProductInactive:   codes.FailedPrecondition,
	domain.CodeInsufficientStock: codes.ResourceExhausted,
	domain.CodeDuplicateRequest:  codes.Aborted,
	domain.CodeAlreadyExists:     codes.AlreadyExists,
}

func grpcError(err error) error {
	var de *domain.DomainError
	if errors.As(err, &de) {
		code, ok := grpcCodeByDomain[de.Code]
		if !ok {
			code = codes.Unknown
		}
		return status.Error(code, de.Message)
	}
	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	return status.Error(codes.Internal, "internal server error")
}

// UnaryLogging logs one line per call, at warn for client errors and error
// for server faults.
func UnaryLogging(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		code := status.Code(err)
		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.String("code", code.String()),
			zap.Duration("latency", time.Since(start)),
		}
		switch code {
		case codes.OK:
			logger.Info("grpc request", fields...)
		case codes.Internal, codes.Unknown, codes.DataLoss, codes.Unavailable:
			logger.Error("grpc request", append(fields, zap.Error(err))...)
		default:
			logger.Warn("grpc request", append(fields, zap.Error(err))...)
		}
		return resp, err
	}
}

// FulfillmentClient calls the Fulfillment service with the JSON codec.
type FulfillmentClient struct {
	cc grpc.ClientConnInterface
}

func NewFulfillmentClient(cc grpc.ClientConnInterface) *FulfillmentClient {
	return &FulfillmentClient{cc: cc}
}

func (c *FulfillmentClient) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(JSONCodecName)}, opts...)
	return c.cc.Invoke(ctx, "/"+FulfillmentServiceName+"/"+method, in, out, opts...)
}

// WithIdempotencyKey attaches key to an outgoing CreateOrder call.
func WithIdempotencyKey(ctx context.Context, key string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, idempotencyMetadataKey, key)
}

func (c *FulfillmentClient) CreateOrder(ctx context.Context, in *CreateOrderRequest, opts ...grpc.CallOption) (*OrderResponse, error) {
	out := new(OrderResponse)
	if err := c.invoke(ctx, "CreateOrder", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *FulfillmentClient) CreateShipment(ctx context.Context, in *ShipmentRPCRequest, opts ...grpc.CallOption) (*ShipmentResponse, error) {
	out := new(ShipmentResponse)
	if err := c.invoke(ctx, "CreateShipment", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *FulfillmentClient) CompleteOrder(ctx context.Context, in *OrderIDRequest, opts ...grpc.CallOption) (*OrderResponse, error) {
	out := new(OrderResponse)
	if err := c.invoke(ctx, "CompleteOrder", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *FulfillmentClient) ProcessRefund(ctx context.Context, in *RefundRPCRequest, opts ...grpc.CallOption) (*RefundResponse, error) {
	out := new(RefundResponse)
	if err := c.invoke(ctx, "ProcessRefund", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *FulfillmentClient) ValidateIntegrity(ctx context.Context, opts ...grpc.CallOption) (*domain.IntegrityReport, error) {
	out := new(domain.IntegrityReport)
	if err := c.invoke(ctx, "ValidateIntegrity", &IntegrityRequest{}, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}
