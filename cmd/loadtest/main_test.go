package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/ratelimit"
	"github.com/vladislavdragonenkov/storefront/internal/service/order"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
	"github.com/vladislavdragonenkov/storefront/internal/transport/httpapi"
)

type allowAll struct{}

func (allowAll) Allow(context.Context, ratelimit.Rule, string) (ratelimit.Decision, error) {
	return ratelimit.Decision{Allowed: true}, nil
}

func newStorefront(t *testing.T, stock int) (*httptest.Server, *memory.Store) {
	t.Helper()

	store := memory.NewStore()
	store.SeedProduct(domain.Product{
		ID:         "polo",
		Status:     domain.ProductStatusActive,
		Name:       "Polo Básico",
		PriceMinor: 50_00,
		Variants:   []domain.Variant{{ID: "m", Size: "M", Stock: stock}},
	})
	handler := httpapi.NewRouter(httpapi.Config{
		Service: order.NewService(store),
		Limiter: allowAll{},
	})
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, store
}

func baseConfig(url string) config {
	return config{
		baseURL:     url,
		total:       12,
		concurrency: 6,
		timeout:     5 * time.Second,
		mode:        modeCreate,
		productID:   "polo",
		variantID:   "m",
		qty:         1,
	}
}

func TestRunLoad_ConcurrentCreatesNeverOversell(t *testing.T) {
	srv, store := newStorefront(t, 5)
	cfg := baseConfig(srv.URL)
	cfg.stock = 5

	result := runLoad(context.Background(), cfg, srv.Client())

	assert.Equal(t, int64(12), result.TotalScenarios)
	assert.Equal(t, int64(5), result.SuccessScenarios)
	assert.Equal(t, int64(7), result.RejectedScenarios)
	assert.Zero(t, result.FailedScenarios)
	assert.Equal(t, int64(5), result.CreatedOrders)
	assert.Equal(t, int64(5), result.ReservedUnits)
	assert.False(t, result.Oversold)
	assert.Equal(t, int64(7), result.Methods["CreateOrder"].Codes["OUT_OF_STOCK"])
	assert.Equal(t, int64(5), result.Methods["CreateOrder"].Codes["201"])

	product, err := store.GetProduct(context.Background(), "polo")
	require.NoError(t, err)
	assert.Zero(t, product.Variants[0].Stock)
}

func TestRunLoad_CreatePayAndTrack(t *testing.T) {
	for _, mode := range []loadMode{modeCreatePay, modeCreateTrack} {
		t.Run(string(mode), func(t *testing.T) {
			srv, _ := newStorefront(t, 50)
			cfg := baseConfig(srv.URL)
			cfg.mode = mode
			cfg.total = 4
			cfg.concurrency = 2

			result := runLoad(context.Background(), cfg, srv.Client())

			assert.Equal(t, int64(4), result.SuccessScenarios)
			assert.Zero(t, result.FailedScenarios)
			assert.Len(t, result.Methods, 3)
		})
	}
}

func TestRunLoad_TransportErrorsAreFailures(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	cfg := baseConfig(url)
	cfg.total = 2
	cfg.concurrency = 1
	cfg.timeout = time.Second

	result := runLoad(context.Background(), cfg, &http.Client{Timeout: time.Second})
	assert.Equal(t, int64(2), result.FailedScenarios)
	assert.Equal(t, int64(2), result.Methods["CreateOrder"].Codes[codeTransportError])
}

func TestRunLoad_UnexpectedServerErrorIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"INTERNAL_ERROR"}`))
	}))
	t.Cleanup(srv.Close)

	cfg := baseConfig(srv.URL)
	cfg.total = 3
	result := runLoad(context.Background(), cfg, srv.Client())
	assert.Equal(t, int64(3), result.FailedScenarios)
	assert.Equal(t, int64(3), result.Methods["CreateOrder"].Codes["INTERNAL_ERROR"])
}

func TestRunLoad_OversellDetection(t *testing.T) {
	srv, _ := newStorefront(t, 10)
	cfg := baseConfig(srv.URL)
	cfg.total = 4
	cfg.stock = 3

	result := runLoad(context.Background(), cfg, srv.Client())
	assert.Equal(t, int64(4), result.ReservedUnits)
	assert.True(t, result.Oversold)
}

func TestParseConfig(t *testing.T) {
	cfg, err := parseConfig([]string{
		"-base-url", "http://shop.local/ ",
		"-product", "polo", "-variant", "m",
		"-mode", "create-pay", "-qty", "2", "-stock", "40", "-duration", "30s",
	}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "http://shop.local", cfg.baseURL)
	assert.Equal(t, modeCreatePay, cfg.mode)
	assert.Equal(t, 2, cfg.qty)
	assert.Equal(t, 40, cfg.stock)
	assert.Equal(t, 30*time.Second, cfg.duration)
	assert.False(t, cfg.totalSet)

	cfg, err = parseConfig([]string{"-product", "polo", "-variant", "m", "-total", "7"}, io.Discard)
	require.NoError(t, err)
	assert.True(t, cfg.totalSet)
	assert.Equal(t, modeCreate, cfg.mode)
}

func TestParseConfig_ValidationErrors(t *testing.T) {
	base := []string{"-product", "polo", "-variant", "m"}
	cases := map[string][]string{
		"unknown mode":     append([]string{"-mode", "burst"}, base...),
		"no product":       {"-variant", "m"},
		"zero total":       append([]string{"-total", "0"}, base...),
		"negative dur":     append([]string{"-duration", "-1s"}, base...),
		"zero concurrency": append([]string{"-concurrency", "0"}, base...),
		"zero timeout":     append([]string{"-timeout", "0s"}, base...),
		"qty too large":    append([]string{"-qty", "51"}, base...),
		"negative stock":   append([]string{"-stock", "-1"}, base...),
		"empty base url":   append([]string{"-base-url", " "}, base...),
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := parseConfig(args, io.Discard)
			assert.Error(t, err)
		})
	}
}

func TestDispatchJobs(t *testing.T) {
	collect := func(ctx context.Context, cfg config) []int {
		jobs := make(chan int, 100)
		dispatchJobs(ctx, jobs, cfg)
		var got []int
		for id := range jobs {
			got = append(got, id)
		}
		return got
	}

	assert.Equal(t, []int{0, 1, 2}, collect(context.Background(), config{total: 3}))
	assert.Len(t, collect(context.Background(), config{total: 5, totalSet: true, duration: time.Minute}), 5)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Empty(t, collect(ctx, config{duration: time.Minute}))
}

func TestClassify(t *testing.T) {
	assert.Equal(t, outcomeSuccess, classify(http.StatusCreated, "201"))
	assert.Equal(t, outcomeRejected, classify(http.StatusConflict, "OUT_OF_STOCK"))
	assert.Equal(t, outcomeRejected, classify(http.StatusGone, "ORDER_EXPIRED"))
	assert.Equal(t, outcomeRejected, classify(http.StatusTooManyRequests, "RATE_LIMIT"))
	assert.Equal(t, outcomeFailed, classify(http.StatusBadRequest, "VALIDATION_ERROR"))
	assert.Equal(t, outcomeFailed, classify(0, codeTransportError))
}

func TestLatencySummaryAndPercentile(t *testing.T) {
	assert.Equal(t, latencySummary{}, buildLatencySummary(nil))

	summary := buildLatencySummary([]float64{4, 1, 3, 2})
	assert.Equal(t, 1.0, summary.Min)
	assert.Equal(t, 4.0, summary.Max)
	assert.Equal(t, 2.5, summary.Avg)
	assert.Equal(t, 2.5, summary.P50)
	assert.InDelta(t, 3.85, summary.P95, 1e-9)

	assert.Equal(t, 7.0, percentile([]float64{7}, 99))
	assert.Zero(t, ratio(1, 0))
}

func TestWriteJSONReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, writeJSONReport(path, report{TotalScenarios: 3, Oversold: true}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded report
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, int64(3), decoded.TotalScenarios)
	assert.True(t, decoded.Oversold)

	assert.Error(t, writeJSONReport(".", report{}))
	assert.Error(t, writeJSONReport("../escape.json", report{}))
}

func TestPrintReport(t *testing.T) {
	var buf bytes.Buffer
	cfg := config{mode: modeCreate, total: 2, stock: 1}
	printReport(&buf, report{
		TotalScenarios: 2,
		CreatedOrders:  1,
		ReservedUnits:  1,
		Methods: map[string]methodReport{
			"scenario":    {Calls: 2},
			"CreateOrder": {Calls: 2, Success: 1, Rejected: 1, Codes: map[string]int64{"OUT_OF_STOCK": 1}},
		},
	}, cfg)

	out := buf.String()
	assert.Contains(t, out, "mode=create run=count:2")
	assert.Contains(t, out, "stock=1 oversold=false")
	assert.Contains(t, out, "CreateOrder: calls=2 success=1 rejected=1")
	assert.NotContains(t, out, "scenario:")
}
