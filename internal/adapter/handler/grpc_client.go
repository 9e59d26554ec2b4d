package handler

import (
	"context"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// StorefrontClient calls the storefront.v1.Storefront service and keeps the
// session id the server issued on the first call.
type StorefrontClient struct {
	cc grpc.ClientConnInterface

	mu        sync.Mutex
	sessionID string
}

func NewStorefrontClient(cc grpc.ClientConnInterface) *StorefrontClient {
	return &StorefrontClient{cc: cc}
}

func (c *StorefrontClient) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

func (c *StorefrontClient) ListProducts(ctx context.Context) (*ListProductsResponse, error) {
	out := new(ListProductsResponse)
	return out, c.invoke(ctx, "ListProducts", &ListProductsRequest{}, out)
}

func (c *StorefrontClient) AddItem(ctx context.Context, productID string, quantity int32) (*CartReply, error) {
	out := new(CartReply)
	return out, c.invoke(ctx, "AddItem", &AddItemRequest{ProductID: productID, Quantity: quantity}, out)
}

func (c *StorefrontClient) UpdateQuantity(ctx context.Context, productID string, quantity int32) (*CartReply, error) {
	out := new(CartReply)
	return out, c.invoke(ctx, "UpdateQuantity", &UpdateQuantityRequest{ProductID: productID, Quantity: quantity}, out)
}

func (c *StorefrontClient) RemoveItem(ctx context.Context, productID string) (*CartReply, error) {
	out := new(CartReply)
	return out, c.invoke(ctx, "RemoveItem", &RemoveItemRequest{ProductID: productID}, out)
}

func (c *StorefrontClient) GetCart(ctx context.Context) (*CartReply, error) {
	out := new(CartReply)
	return out, c.invoke(ctx, "GetCart", &GetCartRequest{}, out)
}

func (c *StorefrontClient) PlaceOrder(ctx context.Context) (*PlaceOrderResponse, error) {
	out := new(PlaceOrderResponse)
	return out, c.invoke(ctx, "PlaceOrder", &PlaceOrderRequest{}, out)
}

// WatchSession opens a stream of principal changes for the client's
// session. Call it after the session id is known.
func (c *StorefrontClient) WatchSession(ctx context.Context) (grpc.ServerStreamingClient[SessionEvent], error) {
	stream, err := c.cc.NewStream(c.withSession(ctx), &storefrontServiceDesc.Streams[0], "/"+serviceName+"/WatchSession",
		grpc.CallContentSubtype(CodecName),
	)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[WatchSessionRequest, SessionEvent]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(&WatchSessionRequest{}); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

func (c *StorefrontClient) withSession(ctx context.Context) context.Context {
	if id := c.SessionID(); id != "" {
		return metadata.AppendToOutgoingContext(ctx, sessionMetadataKey, id)
	}
	return ctx
}

func (c *StorefrontClient) invoke(ctx context.Context, method string, in, out any) error {
	ctx = c.withSession(ctx)

	var header metadata.MD
	err := c.cc.Invoke(ctx, "/"+serviceName+"/"+method, in, out,
		grpc.CallContentSubtype(CodecName),
		grpc.Header(&header),
	)
	if id := first(header.Get(sessionMetadataKey)); id != "" {
		c.mu.Lock()
		c.sessionID = id
		c.mu.Unlock()
	}
	return err
}
