package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

const (
	headerIdempotencyKey = "X-Idempotency-Key"
	codeTransportError   = "TRANSPORT_ERROR"
)

type runner struct {
	cfg    config
	client *http.Client
	col    *collector
	runID  string
}

type createOrderResponse struct {
	OrderID       string `json:"orderId"`
	PublicCode    string `json:"publicCode"`
	TrackingToken string `json:"trackingToken"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// callResult хранит статус одного HTTP-вызова и машинный код ошибки из тела.
type callResult struct {
	status int
	code   string
	body   []byte
}

func (c callResult) outcome() outcome {
	return classify(c.status, c.code)
}

func (r *runner) runScenario(ctx context.Context, index int) {
	start := time.Now()
	res := r.scenario(ctx, index)
	r.col.record("scenario", time.Since(start), res)
}

// scenario возвращает результат первого неуспешного шага либо последнего шага.
func (r *runner) scenario(ctx context.Context, index int) callResult {
	created, res := r.createOrder(ctx, index)
	if res.outcome() != outcomeSuccess {
		return res
	}
	r.col.orderCreated()

	switch r.cfg.mode {
	case modeCreateTrack:
		return r.call(ctx, "Track", http.MethodPost, "/api/track", map[string]string{
			"publicCode":    created.PublicCode,
			"trackingToken": created.TrackingToken,
		}, nil)
	case modeCreatePay:
		return r.call(ctx, "SubmitPayment", http.MethodPost, "/api/submit-payment", map[string]string{
			"publicCode":    created.PublicCode,
			"trackingToken": created.TrackingToken,
			"operationCode": fmt.Sprintf("LT%s%06d", r.runID, index),
			"method":        "YAPE",
		}, nil)
	default:
		return res
	}
}

func (r *runner) createOrder(ctx context.Context, index int) (createOrderResponse, callResult) {
	body := map[string]any{
		"items": []map[string]any{{
			"productId": r.cfg.productID,
			"variantId": r.cfg.variantID,
			"qty":       r.cfg.qty,
		}},
		"customer": map[string]string{
			"name":  fmt.Sprintf("Load Tester %d", index),
			"email": fmt.Sprintf("load+%s-%d@example.com", r.runID, index),
			"phone": "999888777",
		},
		"shipping": map[string]string{
			"method":        "LIMA_DELIVERY",
			"receiverName":  "Load Tester",
			"receiverDni":   "12345678",
			"receiverPhone": "999888777",
			"district":      "Miraflores",
			"addressLine1":  "Av. Larco 123",
		},
	}
	headers := map[string]string{headerIdempotencyKey: fmt.Sprintf("lt-%s-%d", r.runID, index)}

	res := r.call(ctx, "CreateOrder", http.MethodPost, "/api/create-order", body, headers)
	var created createOrderResponse
	if res.outcome() == outcomeSuccess {
		if err := json.Unmarshal(res.body, &created); err != nil || created.PublicCode == "" {
			res.status = http.StatusBadGateway
			res.code = "BAD_RESPONSE"
		}
	}
	return created, res
}

func (r *runner) call(ctx context.Context, method, httpMethod, path string, body any, headers map[string]string) callResult {
	start := time.Now()
	res := r.do(ctx, httpMethod, path, body, headers)
	r.col.record(method, time.Since(start), res)
	return res
}

func (r *runner) do(ctx context.Context, httpMethod, path string, body any, headers map[string]string) callResult {
	payload, err := json.Marshal(body)
	if err != nil {
		return callResult{code: codeTransportError}
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, httpMethod, r.cfg.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return callResult{code: codeTransportError}
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return callResult{code: codeTransportError}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return callResult{status: resp.StatusCode, code: codeTransportError}
	}

	res := callResult{status: resp.StatusCode, body: raw, code: strconv.Itoa(resp.StatusCode)}
	if resp.StatusCode >= http.StatusBadRequest {
		var e errorResponse
		if json.Unmarshal(raw, &e) == nil && e.Error != "" {
			res.code = e.Error
		}
	}
	return res
}
