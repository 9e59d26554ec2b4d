package handler

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
)

func newGRPCClient(t *testing.T, ts *testServer) *StorefrontClient {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterStorefrontServer(srv, NewGRPCHandler(ts.sessions))
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return NewStorefrontClient(conn)
}

func TestGRPC_ListProducts(t *testing.T) {
	ts := newTestServer(t)
	client := newGRPCClient(t, ts)

	resp, err := client.ListProducts(context.Background())
	require.NoError(t, err)

	assert.Len(t, resp.Products, 5)
	assert.NotEmpty(t, client.SessionID())
}

func TestGRPC_CartAndCheckout(t *testing.T) {
	ts := newTestServer(t)
	client := newGRPCClient(t, ts)
	ctx := context.Background()
	p := ts.products[4]

	reply, err := client.AddItem(ctx, p.ID, 2)
	require.NoError(t, err)
	assert.True(t, reply.Success)
	assert.Equal(t, []string{p.Name + " added to cart!"}, reply.Advisories)
	require.Len(t, reply.Cart.Lines, 1)

	reply, err = client.UpdateQuantity(ctx, p.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, reply.Cart.Lines[0].Quantity)

	// state is kept across calls through the issued session id
	reply, err = client.GetCart(ctx)
	require.NoError(t, err)
	assert.Equal(t, p.Price.StringFixed(2), reply.Cart.Lines[0].Price)
	assert.Equal(t, p.Price.Mul(decimal.NewFromInt(3)).StringFixed(2), reply.Cart.Total)

	order, err := client.PlaceOrder(ctx)
	require.NoError(t, err)
	require.True(t, order.Success, order.Message)
	require.NotNil(t, order.Order)
	assert.Equal(t, []string{"Order placed successfully! Order ID: " + order.Order.ID}, order.Advisories)

	stored, err := ts.store.GetOrder(ctx, order.Order.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Lines, 1)
	assert.Equal(t, 3, stored.Lines[0].Quantity)

	reply, err = client.GetCart(ctx)
	require.NoError(t, err)
	assert.Empty(t, reply.Cart.Lines)
}

func TestGRPC_BusinessFailures(t *testing.T) {
	ts := newTestServer(t)
	client := newGRPCClient(t, ts)
	ctx := context.Background()

	order, err := client.PlaceOrder(ctx)
	require.NoError(t, err)
	assert.False(t, order.Success)
	assert.Equal(t, "cart is empty", order.Message)
	assert.Equal(t, []string{"Your cart is empty!"}, order.Advisories)

	reply, err := client.AddItem(ctx, "missing", 1)
	require.NoError(t, err)
	assert.False(t, reply.Success)
	assert.Equal(t, "product not found", reply.Message)

	reply, err = client.AddItem(ctx, ts.products[0].ID, 0)
	require.NoError(t, err)
	assert.False(t, reply.Success)

	reply, err = client.RemoveItem(ctx, ts.products[0].ID)
	require.NoError(t, err)
	assert.Empty(t, reply.Cart.Lines)
}

func TestGRPC_WatchSessionStreamsPrincipalChanges(t *testing.T) {
	ts := newTestServer(t)
	client := newGRPCClient(t, ts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := client.GetCart(ctx)
	require.NoError(t, err)

	stream, err := client.WatchSession(ctx)
	require.NoError(t, err)

	ev, err := stream.Recv()
	require.NoError(t, err)
	require.NotNil(t, ev.Principal)
	assert.True(t, ev.Principal.IsAnonymous())
	assert.NotEmpty(t, ev.Token)

	sess := ts.sessions.Resolve(ctx, client.SessionID(), "")
	_, err = sess.Storefront.Session.Register(ctx, "watcher@example.com", "secret1")
	require.NoError(t, err)

	ev, err = stream.Recv()
	require.NoError(t, err)
	require.NotNil(t, ev.Principal)
	assert.True(t, ev.Principal.IsCredentialed())
	assert.Equal(t, "watcher@example.com", ev.Principal.Email)

	require.NoError(t, sess.Storefront.Session.Logout(ctx))

	ev, err = stream.Recv()
	require.NoError(t, err)
	assert.Nil(t, ev.Principal)
}
