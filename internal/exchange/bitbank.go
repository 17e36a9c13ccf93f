package exchange

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nao-namake/bitbank-decision-core/internal/bar"
	"github.com/nao-namake/bitbank-decision-core/internal/errs"
	"github.com/nao-namake/bitbank-decision-core/internal/logger"
	"github.com/nao-namake/bitbank-decision-core/internal/security"
)

// BitbankClient implements Facade against Bitbank's public and private
// REST APIs, signing private requests with the ACCESS-SIGN/ACCESS-NONCE
// HMAC-SHA256 scheme Bitbank requires.
type BitbankClient struct {
	baseURL    string
	apiKey     string
	apiSecret  string
	httpClient *http.Client
	log        *logger.Logger
}

// NewBitbankClient builds a BitbankClient. apiKey/apiSecret may be empty;
// public endpoints are never signed, while every private call (balances,
// positions, orders) is signed with whatever key/secret the client holds,
// in every mode.
func NewBitbankClient(baseURL, apiKey, apiSecret string, timeout time.Duration) *BitbankClient {
	return &BitbankClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		httpClient: security.SafeHTTPClient(timeout),
		log:        logger.Named("exchange.bitbank"),
	}
}

type bitbankEnvelope struct {
	Success int             `json:"success"`
	Data    json.RawMessage `json:"data"`
}

func (c *BitbankClient) sign(nonce, body string) string {
	mac := hmac.New(sha256.New, []byte(c.apiSecret))
	mac.Write([]byte(nonce + body))
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *BitbankClient) doPrivate(ctx context.Context, method, path string, payload interface{}) (json.RawMessage, error) {
	var body []byte
	var err error
	if payload != nil {
		body, err = json.Marshal(payload)
		if err != nil {
			return nil, errs.New(errs.KindExchangeAPI, "bitbank", err)
		}
	} else {
		body = []byte{}
	}
	nonce := strconv.FormatInt(time.Now().UnixMilli(), 10)

	var signBody string
	if method == http.MethodGet {
		signBody = path
	} else {
		signBody = string(body)
	}
	sig := c.sign(nonce, signBody)

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, errs.New(errs.KindExchangeAPI, "bitbank", err)
	}
	req.Header.Set("ACCESS-KEY", c.apiKey)
	req.Header.Set("ACCESS-NONCE", nonce)
	req.Header.Set("ACCESS-SIGNATURE", sig)
	req.Header.Set("Content-Type", "application/json")

	return c.execute(req)
}

func (c *BitbankClient) doPublic(ctx context.Context, path string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, errs.New(errs.KindDataFetch, "bitbank", err)
	}
	return c.execute(req)
}

func (c *BitbankClient) execute(req *http.Request) (json.RawMessage, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errs.New(errs.KindExchangeAPI, "bitbank", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.New(errs.KindExchangeAPI, "bitbank", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, errs.New(errs.KindExchangeRateLimit, "bitbank", fmt.Errorf("rate limited"))
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, errs.New(errs.KindExchangeAuth, "bitbank", fmt.Errorf("status %d: %s", resp.StatusCode, raw))
	}
	if resp.StatusCode >= 400 {
		return nil, errs.New(errs.KindExchangeAPI, "bitbank", fmt.Errorf("status %d: %s", resp.StatusCode, raw))
	}

	var env bitbankEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, errs.New(errs.KindExchangeAPI, "bitbank", fmt.Errorf("decode envelope: %w", err))
	}
	if env.Success != 1 {
		return nil, errs.New(errs.KindExchangeAPI, "bitbank", fmt.Errorf("exchange reported failure: %s", env.Data))
	}
	return env.Data, nil
}

type candleResponse struct {
	Candlestick []struct {
		Type string     `json:"type"`
		Ohlcv [][]string `json:"ohlcv"`
	} `json:"candlestick"`
}

// GetOHLCV fetches historical candles. Bitbank's public candlestick API
// is organized by calendar year; only the current UTC year is fetched, so
// bars from earlier years are never returned and the result can hold
// fewer than limit bars.
func (c *BitbankClient) GetOHLCV(ctx context.Context, pair string, period time.Duration, limit int) (bar.Series, error) {
	candleType := candleTypeFor(period)
	year := time.Now().UTC().Format("2006")
	path := fmt.Sprintf("/%s/candlestick/%s/%s", pair, candleType, year)
	data, err := c.doPublic(ctx, path)
	if err != nil {
		return nil, err
	}
	var resp candleResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, errs.New(errs.KindDataFetch, "bitbank", fmt.Errorf("decode candles: %w", err))
	}
	if len(resp.Candlestick) == 0 {
		return nil, errs.New(errs.KindDataFetch, "bitbank", fmt.Errorf("no candlestick data for %s", candleType))
	}
	var series bar.Series
	for _, row := range resp.Candlestick[0].Ohlcv {
		if len(row) < 6 {
			continue
		}
		b, err := parseCandleRow(row)
		if err != nil {
			continue
		}
		series = append(series, b)
	}
	if limit > 0 && len(series) > limit {
		series = series[len(series)-limit:]
	}
	return series, nil
}

func parseCandleRow(row []string) (bar.Bar, error) {
	parse := func(s string) float64 {
		v, _ := decimal.NewFromString(s)
		f, _ := v.Float64()
		return f
	}
	ts, err := strconv.ParseInt(row[5], 10, 64)
	if err != nil {
		return bar.Bar{}, err
	}
	return bar.Bar{
		Open:      parse(row[0]),
		High:      parse(row[1]),
		Low:       parse(row[2]),
		Close:     parse(row[3]),
		Volume:    parse(row[4]),
		Timestamp: time.UnixMilli(ts).UTC(),
	}, nil
}

func candleTypeFor(period time.Duration) string {
	switch {
	case period <= time.Minute:
		return "1min"
	case period <= 5*time.Minute:
		return "5min"
	case period <= 15*time.Minute:
		return "15min"
	case period <= time.Hour:
		return "1hour"
	default:
		return "1day"
	}
}

type tickerResponse struct {
	Last string `json:"last"`
}

// GetTicker returns the current last-trade price.
func (c *BitbankClient) GetTicker(ctx context.Context, pair string) (decimal.Decimal, error) {
	data, err := c.doPublic(ctx, fmt.Sprintf("/%s/ticker", pair))
	if err != nil {
		return decimal.Zero, err
	}
	var t tickerResponse
	if err := json.Unmarshal(data, &t); err != nil {
		return decimal.Zero, errs.New(errs.KindDataFetch, "bitbank", err)
	}
	return decimal.NewFromString(t.Last)
}

type assetsResponse struct {
	Assets []struct {
		Asset      string `json:"asset"`
		FreeAmount string `json:"free_amount"`
		LockedAmount string `json:"locked_amount"`
	} `json:"assets"`
}

// GetBalances returns account balances via the private assets endpoint.
func (c *BitbankClient) GetBalances(ctx context.Context) ([]Balance, error) {
	data, err := c.doPrivate(ctx, http.MethodGet, "/v1/user/assets", nil)
	if err != nil {
		return nil, err
	}
	var resp assetsResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, errs.New(errs.KindExchangeAPI, "bitbank", err)
	}
	out := make([]Balance, 0, len(resp.Assets))
	for _, a := range resp.Assets {
		free, _ := decimal.NewFromString(a.FreeAmount)
		locked, _ := decimal.NewFromString(a.LockedAmount)
		out = append(out, Balance{Currency: a.Asset, Free: free, Locked: locked})
	}
	return out, nil
}

// GetOpenOrders returns currently open orders for pair.
func (c *BitbankClient) GetOpenOrders(ctx context.Context, pair string) ([]Order, error) {
	data, err := c.doPrivate(ctx, http.MethodGet, fmt.Sprintf("/v1/user/spot/active_orders?pair=%s", pair), nil)
	if err != nil {
		return nil, err
	}
	var resp struct {
		Orders []struct {
			OrderID string `json:"order_id"`
			Pair    string `json:"pair"`
			Side    string `json:"side"`
			Type    string `json:"type"`
			Price   string `json:"price"`
			RemainingAmount string `json:"remaining_amount"`
			Status  string `json:"status"`
		} `json:"orders"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, errs.New(errs.KindExchangeAPI, "bitbank", err)
	}
	out := make([]Order, 0, len(resp.Orders))
	for _, o := range resp.Orders {
		price, _ := decimal.NewFromString(o.Price)
		size, _ := decimal.NewFromString(o.RemainingAmount)
		out = append(out, Order{
			OrderID: o.OrderID, Pair: o.Pair, Side: Side(o.Side), Type: OrderType(o.Type),
			Price: price, Size: size, Status: o.Status,
		})
	}
	return out, nil
}

// GetOpenPositions returns open margin positions for pair.
func (c *BitbankClient) GetOpenPositions(ctx context.Context, pair string) ([]Position, error) {
	data, err := c.doPrivate(ctx, http.MethodGet, fmt.Sprintf("/v1/user/margin/positions?pair=%s", pair), nil)
	if err != nil {
		return nil, err
	}
	var resp struct {
		Positions []struct {
			PositionID string `json:"position_id"`
			Pair       string `json:"pair"`
			Side       string `json:"side"`
			OpenAmount string `json:"open_amount"`
			AveragePrice string `json:"average_price"`
		} `json:"positions"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, errs.New(errs.KindExchangeAPI, "bitbank", err)
	}
	out := make([]Position, 0, len(resp.Positions))
	for _, p := range resp.Positions {
		size, _ := decimal.NewFromString(p.OpenAmount)
		price, _ := decimal.NewFromString(p.AveragePrice)
		out = append(out, Position{PositionID: p.PositionID, Pair: p.Pair, Side: Side(p.Side), Size: size, EntryPrice: price})
	}
	return out, nil
}

// CreateOrder places an order via the private margin order endpoint.
func (c *BitbankClient) CreateOrder(ctx context.Context, req OrderRequest) (Order, error) {
	payload := map[string]interface{}{
		"pair":          req.Pair,
		"amount":        req.Size.String(),
		"side":          string(req.Side),
		"type":          string(req.Type),
		"position_side": "",
	}
	if req.Type == OrderTypeLimit {
		payload["price"] = req.Price.String()
	}
	if req.Type == OrderTypeStop {
		payload["trigger_price"] = req.TriggerPrice.String()
	}
	if req.PostOnly {
		payload["post_only"] = true
	}
	data, err := c.doPrivate(ctx, http.MethodPost, "/v1/user/margin/order", payload)
	if err != nil {
		return Order{}, err
	}
	var resp struct {
		OrderID int64  `json:"order_id"`
		Status  string `json:"status"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return Order{}, errs.New(errs.KindExchangeAPI, "bitbank", err)
	}
	return Order{
		OrderID:       strconv.FormatInt(resp.OrderID, 10),
		ClientOrderID: req.ClientOrderID,
		Pair:          req.Pair,
		Side:          req.Side,
		Type:          req.Type,
		Size:          req.Size,
		Price:         req.Price,
		Status:        resp.Status,
		ExecutedAt:    time.Now(),
	}, nil
}

// GetOrder fetches a single order's current status — used by
// ExecutionService's post-fill verification probe and by the
// Maker-to-taker downgrade path to check whether a post-only limit
// order has filled before its expiry.
func (c *BitbankClient) GetOrder(ctx context.Context, pair, orderID string) (Order, error) {
	data, err := c.doPrivate(ctx, http.MethodGet, fmt.Sprintf("/v1/user/spot/order?pair=%s&order_id=%s", pair, orderID), nil)
	if err != nil {
		return Order{}, err
	}
	var resp struct {
		OrderID         int64  `json:"order_id"`
		Pair            string `json:"pair"`
		Side            string `json:"side"`
		Type            string `json:"type"`
		Price           string `json:"price"`
		RemainingAmount string `json:"remaining_amount"`
		Status          string `json:"status"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return Order{}, errs.New(errs.KindExchangeAPI, "bitbank", err)
	}
	price, _ := decimal.NewFromString(resp.Price)
	remaining, _ := decimal.NewFromString(resp.RemainingAmount)
	return Order{
		OrderID: strconv.FormatInt(resp.OrderID, 10), Pair: resp.Pair, Side: Side(resp.Side),
		Type: OrderType(resp.Type), Price: price, Size: remaining, Status: resp.Status,
	}, nil
}

// CancelOrder cancels an open order.
func (c *BitbankClient) CancelOrder(ctx context.Context, pair, orderID string) error {
	payload := map[string]interface{}{"pair": pair, "order_id": orderID}
	_, err := c.doPrivate(ctx, http.MethodPost, "/v1/user/spot/cancel_order", payload)
	return err
}
