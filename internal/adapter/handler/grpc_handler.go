package handler

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/core/service"
)

const (
	serviceName = "storefront.v1.Storefront"

	sessionMetadataKey = "x-session-id"
	tokenMetadataKey   = "x-session-token"
)

type ListProductsRequest struct{}

type ListProductsResponse struct {
	Products []domain.Product `json:"products"`
}

type AddItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int32  `json:"quantity"`
}

type UpdateQuantityRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int32  `json:"quantity"`
}

type RemoveItemRequest struct {
	ProductID string `json:"product_id"`
}

type GetCartRequest struct{}

type CartReply struct {
	Success    bool         `json:"success"`
	Message    string       `json:"message"`
	Advisories []string     `json:"advisories,omitempty"`
	Cart       CartResponse `json:"cart"`
}

type PlaceOrderRequest struct{}

type WatchSessionRequest struct{}

// SessionEvent carries the session's principal after a change. Principal
// is nil once the user has logged out.
type SessionEvent struct {
	Principal *domain.Principal `json:"principal"`
	Token     string            `json:"token,omitempty"`
}

type PlaceOrderResponse struct {
	Success    bool          `json:"success"`
	Message    string        `json:"message"`
	Advisories []string      `json:"advisories,omitempty"`
	Order      *domain.Order `json:"order,omitempty"`
}

// StorefrontServer is the server API of the storefront.v1.Storefront service.
type StorefrontServer interface {
	ListProducts(context.Context, *ListProductsRequest) (*ListProductsResponse, error)
	AddItem(context.Context, *AddItemRequest) (*CartReply, error)
	UpdateQuantity(context.Context, *UpdateQuantityRequest) (*CartReply, error)
	RemoveItem(context.Context, *RemoveItemRequest) (*CartReply, error)
	GetCart(context.Context, *GetCartRequest) (*CartReply, error)
	PlaceOrder(context.Context, *PlaceOrderRequest) (*PlaceOrderResponse, error)
	WatchSession(*WatchSessionRequest, grpc.ServerStreamingServer[SessionEvent]) error
}

func RegisterStorefrontServer(s grpc.ServiceRegistrar, srv StorefrontServer) {
	s.RegisterService(&storefrontServiceDesc, srv)
}

var storefrontServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*StorefrontServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListProducts", Handler: unaryHandler("ListProducts", StorefrontServer.ListProducts)},
		{MethodName: "AddItem", Handler: unaryHandler("AddItem", StorefrontServer.AddItem)},
		{MethodName: "UpdateQuantity", Handler: unaryHandler("UpdateQuantity", StorefrontServer.UpdateQuantity)},
		{MethodName: "RemoveItem", Handler: unaryHandler("RemoveItem", StorefrontServer.RemoveItem)},
		{MethodName: "GetCart", Handler: unaryHandler("GetCart", StorefrontServer.GetCart)},
		{MethodName: "PlaceOrder", Handler: unaryHandler("PlaceOrder", StorefrontServer.PlaceOrder)},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "WatchSession", Handler: watchSessionHandler, ServerStreams: true},
	},
	Metadata: "storefront/v1/storefront.proto",
}

func unaryHandler[Req, Resp any](method string, call func(StorefrontServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(StorefrontServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/" + serviceName + "/" + method,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(StorefrontServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func watchSessionHandler(srv any, stream grpc.ServerStream) error {
	in := new(WatchSessionRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(StorefrontServer).WatchSession(in, &grpc.GenericServerStream[WatchSessionRequest, SessionEvent]{ServerStream: stream})
}

type GRPCHandler struct {
	sessions *Sessions
}

func NewGRPCHandler(sessions *Sessions) *GRPCHandler {
	return &GRPCHandler{sessions: sessions}
}

func (h *GRPCHandler) ListProducts(ctx context.Context, req *ListProductsRequest) (*ListProductsResponse, error) {
	sess := h.session(ctx)
	return &ListProductsResponse{Products: sess.Storefront.Catalog.Products()}, nil
}

func (h *GRPCHandler) AddItem(ctx context.Context, req *AddItemRequest) (*CartReply, error) {
	sess := h.session(ctx)
	if err := sess.Storefront.AddToCart(req.ProductID, int(req.Quantity)); err != nil {
		return cartReply(sess, err), nil
	}
	return cartReply(sess, nil), nil
}

func (h *GRPCHandler) UpdateQuantity(ctx context.Context, req *UpdateQuantityRequest) (*CartReply, error) {
	sess := h.session(ctx)
	sess.Storefront.Cart.UpdateQuantity(req.ProductID, int(req.Quantity))
	return cartReply(sess, nil), nil
}

func (h *GRPCHandler) RemoveItem(ctx context.Context, req *RemoveItemRequest) (*CartReply, error) {
	sess := h.session(ctx)
	sess.Storefront.Cart.RemoveItem(req.ProductID)
	return cartReply(sess, nil), nil
}

func (h *GRPCHandler) GetCart(ctx context.Context, req *GetCartRequest) (*CartReply, error) {
	return cartReply(h.session(ctx), nil), nil
}

func (h *GRPCHandler) PlaceOrder(ctx context.Context, req *PlaceOrderRequest) (*PlaceOrderResponse, error) {
	sess := h.session(ctx)
	order, err := sess.Storefront.PlaceOrder(ctx)
	if err != nil {
		message := "internal error"
		if errors.Is(err, service.ErrEmptyCart) {
			message = "cart is empty"
		} else if errors.Is(err, service.ErrNotSignedIn) {
			message = "not signed in"
		}
		return &PlaceOrderResponse{
			Success:    false,
			Message:    message,
			Advisories: sess.view.drain(),
		}, nil
	}

	return &PlaceOrderResponse{
		Success:    true,
		Message:    "order placed successfully",
		Advisories: sess.view.drain(),
		Order:      order,
	}, nil
}

// WatchSession streams the session's principal, first the current one and
// then every change, until the client goes away.
func (h *GRPCHandler) WatchSession(req *WatchSessionRequest, stream grpc.ServerStreamingServer[SessionEvent]) error {
	ctx := stream.Context()
	sess := h.resolve(ctx)
	if err := stream.SetHeader(metadata.Pairs(sessionMetadataKey, sess.ID)); err != nil {
		return err
	}

	changes, cancel := sess.Storefront.Session.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case p, ok := <-changes:
			if !ok {
				return nil
			}
			ev := &SessionEvent{Principal: p}
			if p != nil {
				ev.Token = p.Token
			}
			if err := stream.Send(ev); err != nil {
				return err
			}
		}
	}
}

// session resolves the caller's session and echoes its id back in the
// response header.
func (h *GRPCHandler) session(ctx context.Context) *Session {
	sess := h.resolve(ctx)
	_ = grpc.SetHeader(ctx, metadata.Pairs(sessionMetadataKey, sess.ID))
	return sess
}

func (h *GRPCHandler) resolve(ctx context.Context) *Session {
	var id, token string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		id = first(md.Get(sessionMetadataKey))
		token = first(md.Get(tokenMetadataKey))
	}
	return h.sessions.Resolve(ctx, id, token)
}

func cartReply(sess *Session, err error) *CartReply {
	reply := &CartReply{
		Success:    err == nil,
		Message:    "ok",
		Advisories: sess.view.drain(),
		Cart:       cartResponse(sess.Storefront.Cart.Cart()),
	}
	if err != nil {
		reply.Message = err.Error()
	}
	return reply
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
