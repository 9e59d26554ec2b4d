package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rl1809/storefront/internal/adapter/handler"
	"github.com/rl1809/storefront/internal/core/domain"
)

type options struct {
	baseURL      string
	sessions     int
	concurrency  int
	itemsPerCart int
}

type counters struct {
	placed    atomic.Int32
	rejected  atomic.Int32
	transport atomic.Int32
}

func main() {
	opts := &options{}

	cmd := &cobra.Command{
		Use:          "loadgen",
		Short:        "Drive concurrent shopping sessions against a storefront server",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.baseURL, "url", "http://localhost:8080", "storefront base URL")
	cmd.Flags().IntVar(&opts.sessions, "sessions", 50, "number of shopping sessions")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 10, "sessions running at once")
	cmd.Flags().IntVar(&opts.itemsPerCart, "items", 2, "cart lines per session")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, opts *options) error {
	client := &http.Client{Timeout: 10 * time.Second}

	var products []domain.Product
	if _, err := call(ctx, client, opts.baseURL, "", http.MethodGet, "/api/products", nil, &products); err != nil {
		return fmt.Errorf("failed to list products: %w", err)
	}
	if len(products) == 0 {
		return errors.New("catalog is empty")
	}

	var c counters
	var mu sync.Mutex
	orderIDs := make(map[string]struct{})

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.concurrency)
	start := time.Now()

	for i := 0; i < opts.sessions; i++ {
		g.Go(func() error {
			id, err := shop(gctx, client, opts, products, i)
			switch {
			case err != nil:
				c.transport.Add(1)
			case id == "":
				c.rejected.Add(1)
			default:
				c.placed.Add(1)
				mu.Lock()
				orderIDs[id] = struct{}{}
				mu.Unlock()
			}
			return nil
		})
	}
	g.Wait()
	elapsed := time.Since(start)

	fmt.Println("========== LOAD TEST RESULTS ==========")
	fmt.Printf("Sessions:         %d\n", opts.sessions)
	fmt.Printf("Orders placed:    %d\n", c.placed.Load())
	fmt.Printf("Rejected:         %d\n", c.rejected.Load())
	fmt.Printf("Transport errors: %d\n", c.transport.Load())
	fmt.Printf("Distinct IDs:     %d\n", len(orderIDs))
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("========================================")

	if int(c.placed.Load()) == opts.sessions && len(orderIDs) == opts.sessions {
		fmt.Println("PASS: every session placed exactly one order")
		return nil
	}
	return fmt.Errorf("FAIL: expected %d orders, got %d (%d distinct)", opts.sessions, c.placed.Load(), len(orderIDs))
}

// shop fills one session's cart and checks out. It returns the order id, or
// "" when the server refused the order.
func shop(ctx context.Context, client *http.Client, opts *options, products []domain.Product, n int) (string, error) {
	sid, err := call(ctx, client, opts.baseURL, "", http.MethodGet, "/api/session", nil, nil)
	if err != nil {
		return "", err
	}

	for j := 0; j < opts.itemsPerCart; j++ {
		p := products[(n+j)%len(products)]
		req := handler.AddItemHTTPRequest{ProductID: p.ID, Quantity: 1 + j}
		if _, err := call(ctx, client, opts.baseURL, sid, http.MethodPost, "/api/cart/items", req, nil); err != nil {
			return "", err
		}
	}

	var order domain.Order
	if _, err := call(ctx, client, opts.baseURL, sid, http.MethodPost, "/api/checkout", nil, &order); err != nil {
		var se *statusError
		if errors.As(err, &se) {
			return "", nil
		}
		return "", err
	}
	return order.ID, nil
}

type statusError struct {
	status  int
	message string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.status, e.message)
}

// call sends one API request and returns the session id the server answered
// with. data receives the envelope's data field.
func call(ctx context.Context, client *http.Client, baseURL, sessionID, method, path string, body, data any) (string, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return "", err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, baseURL+path, &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if sessionID != "" {
		req.Header.Set(handler.SessionHeader, sessionID)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var env struct {
		Error string          `json:"error"`
		Data  json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return "", err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return "", &statusError{status: resp.StatusCode, message: env.Error}
	}
	if data != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, data); err != nil {
			return "", err
		}
	}
	return resp.Header.Get(handler.SessionHeader), nil
}
