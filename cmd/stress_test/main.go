package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type product struct {
	ID     string `json:"id"`
	OnHand int    `json:"on_hand"`
}

type integrityReport struct {
	Overall bool     `json:"overall"`
	Issues  []string `json:"issues"`
}

func main() {
	var (
		baseURL       string
		initialStock  int
		totalRequests int
		rps           float64
	)
	flag.StringVar(&baseURL, "url", "http://localhost:8080", "server base URL")
	flag.IntVar(&initialStock, "stock", 20, "initial stock of the test product")
	flag.IntVar(&totalRequests, "requests", 50, "concurrent order requests")
	flag.Float64Var(&rps, "rps", 0, "client side request rate, 0 for unlimited")
	flag.Parse()

	ctx := context.Background()
	client := &http.Client{Timeout: 10 * time.Second}
	faker := gofakeit.New(0)

	sku := "STRESS-" + faker.LetterN(8)
	var p product
	status, err := call(ctx, client, http.MethodPost, baseURL+"/api/v1/products", map[string]any{
		"sku":                 sku,
		"name":                faker.ProductName(),
		"initial_stock":       initialStock,
		"low_stock_threshold": 0,
	}, &p)
	if err != nil || status != http.StatusCreated {
		fmt.Fprintf(os.Stderr, "failed to register product: status=%d err=%v\n", status, err)
		os.Exit(1)
	}

	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	limiter := rate.NewLimiter(limit, 1)

	var successCount, shortCount, otherCount atomic.Int32
	var g errgroup.Group
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		customer := faker.Name()
		phone := faker.Phone()
		address := faker.Address().Address
		g.Go(func() error {
			if err := limiter.Wait(ctx); err != nil {
				return err
			}
			status, err := call(ctx, client, http.MethodPost, baseURL+"/api/v1/orders", map[string]any{
				"customer_name":    customer,
				"customer_phone":   phone,
				"shipping_address": address,
				"items":            []map[string]any{{"product_id": p.ID, "quantity": 1, "price": 10000}},
			}, nil)
			switch {
			case err != nil && status == 0:
				return err
			case status == http.StatusCreated:
				successCount.Add(1)
			case status == http.StatusConflict:
				shortCount.Add(1)
			default:
				otherCount.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		fmt.Fprintf(os.Stderr, "request failed: %v\n", err)
		os.Exit(1)
	}
	elapsed := time.Since(start)

	success := int(successCount.Load())
	short := int(shortCount.Load())

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Product SKU:      %s\n", sku)
	fmt.Printf("Initial Stock:    %d\n", initialStock)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Out of stock:     %d\n", short)
	fmt.Printf("Other failures:   %d\n", otherCount.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	failed := false
	expectSuccess := min(initialStock, totalRequests)
	if success == expectSuccess && short == totalRequests-expectSuccess {
		fmt.Printf("PASS: %d orders succeeded, %d rejected\n", success, short)
	} else {
		fmt.Printf("FAIL: expected %d success/%d rejected, got %d/%d\n",
			expectSuccess, totalRequests-expectSuccess, success, short)
		failed = true
	}

	var after product
	if _, err := call(ctx, client, http.MethodGet, baseURL+"/api/v1/products/"+p.ID, nil, &after); err != nil {
		fmt.Printf("FAIL: could not read product: %v\n", err)
		failed = true
	} else if after.OnHand != initialStock-success || after.OnHand < 0 {
		fmt.Printf("FAIL: expected on_hand %d, got %d\n", initialStock-success, after.OnHand)
		failed = true
	} else {
		fmt.Printf("PASS: on_hand is %d\n", after.OnHand)
	}

	var report integrityReport
	if _, err := call(ctx, client, http.MethodGet, baseURL+"/api/v1/integrity", nil, &report); err != nil {
		fmt.Printf("FAIL: integrity check: %v\n", err)
		failed = true
	} else if !report.Overall {
		fmt.Printf("FAIL: integrity issues: %v\n", report.Issues)
		failed = true
	} else {
		fmt.Println("PASS: integrity check")
	}

	if failed {
		os.Exit(1)
	}
}

// call sends body as JSON and decodes the envelope data into out when set.
func call(ctx context.Context, client *http.Client, method, url string, body, out any) (int, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return 0, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	if !env.Success {
		if env.Error != nil {
			return resp.StatusCode, fmt.Errorf("%s: %s", env.Error.Code, env.Error.Message)
		}
		return resp.StatusCode, fmt.Errorf("request failed with status %d", resp.StatusCode)
	}
	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode data: %w", err)
		}
	}
	return resp.StatusCode, nil
}
