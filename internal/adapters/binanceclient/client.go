package binanceclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"wyckoffEngine/internal/domain"
	"wyckoffEngine/internal/ports"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
)

const (
	// Base URLs
	baseURLProduction = "https://fapi.binance.com"
	baseURLTestnet    = "https://testnet.binancefuture.com"

	// Binance caps one klines request at 1500 rows.
	maxKlinesPerRequest = 1500
)

// Client implements the ports.BarProvider interface using the go-binance
// library's futures REST API.
type Client struct {
	futuresClient *futures.Client
	logger        ports.Logger
}

// Config holds configuration specific to the Binance adapter. API keys are
// optional: klines are a public endpoint.
type Config struct {
	APIKey     string
	SecretKey  string
	UseTestnet bool
	Logger     ports.Logger
}

// New creates a new Binance bar provider.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Binance client")
	}

	client := futures.NewClient(cfg.APIKey, cfg.SecretKey)
	if cfg.UseTestnet {
		client.BaseURL = baseURLTestnet
	} else {
		client.BaseURL = baseURLProduction
	}
	cfg.Logger.Info(context.Background(), "Binance client configured", map[string]interface{}{
		"baseURL": client.BaseURL,
	})
	return &Client{futuresClient: client, logger: cfg.Logger}, nil
}

// Ping checks connectivity to the exchange API.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.futuresClient.NewPingService().Do(ctx); err != nil {
		return c.handleError(ctx, err, "Ping")
	}
	return nil
}

// GetBars fetches chronologically ordered bars. Start and end are Unix
// milliseconds; zero means unbounded on that side. A zero limit requests as
// much as the range needs, paging through the API cap.
func (c *Client) GetBars(ctx context.Context, symbol string, timeframe domain.Timeframe, start, end int64, limit int) ([]*domain.Bar, error) {
	op := "GetBars"

	if start == 0 && end == 0 {
		if limit <= 0 || limit > maxKlinesPerRequest {
			limit = maxKlinesPerRequest
		}
		klines, err := c.futuresClient.NewKlinesService().
			Symbol(symbol).Interval(string(timeframe)).Limit(limit).Do(ctx)
		if err != nil {
			return nil, c.handleError(ctx, err, op)
		}
		return c.translateAll(ctx, klines, symbol, timeframe, op)
	}

	var bars []*domain.Bar
	from := start
	for {
		svc := c.futuresClient.NewKlinesService().
			Symbol(symbol).Interval(string(timeframe)).Limit(maxKlinesPerRequest)
		if from > 0 {
			svc = svc.StartTime(from)
		}
		if end > 0 {
			svc = svc.EndTime(end)
		}
		klines, err := svc.Do(ctx)
		if err != nil {
			return nil, c.handleError(ctx, err, op)
		}
		if len(klines) == 0 {
			break
		}
		page, err := c.translateAll(ctx, klines, symbol, timeframe, op)
		if err != nil {
			return nil, err
		}
		bars = append(bars, page...)
		if limit > 0 && len(bars) >= limit {
			return bars[:limit], nil
		}
		last := klines[len(klines)-1]
		from = last.CloseTime
		if (end > 0 && from >= end) || len(klines) < maxKlinesPerRequest {
			break
		}
	}
	return bars, nil
}

func (c *Client) translateAll(ctx context.Context, klines []*futures.Kline, symbol string, timeframe domain.Timeframe, op string) ([]*domain.Bar, error) {
	bars := make([]*domain.Bar, 0, len(klines))
	for _, k := range klines {
		bar, err := translateKline(k, symbol, timeframe)
		if err != nil {
			return nil, c.handleError(ctx, fmt.Errorf("failed to translate kline: %w", err), op)
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

// translateKline converts one exchange kline to a domain bar. Prices come
// over the wire as strings and parse losslessly into decimals; volume is
// truncated to whole units.
func translateKline(k *futures.Kline, symbol string, timeframe domain.Timeframe) (*domain.Bar, error) {
	open, err := decimal.NewFromString(k.Open)
	if err != nil {
		return nil, fmt.Errorf("could not parse open '%s': %w", k.Open, err)
	}
	high, err := decimal.NewFromString(k.High)
	if err != nil {
		return nil, fmt.Errorf("could not parse high '%s': %w", k.High, err)
	}
	low, err := decimal.NewFromString(k.Low)
	if err != nil {
		return nil, fmt.Errorf("could not parse low '%s': %w", k.Low, err)
	}
	closePx, err := decimal.NewFromString(k.Close)
	if err != nil {
		return nil, fmt.Errorf("could not parse close '%s': %w", k.Close, err)
	}
	volume, err := decimal.NewFromString(k.Volume)
	if err != nil {
		return nil, fmt.Errorf("could not parse volume '%s': %w", k.Volume, err)
	}

	return &domain.Bar{
		Symbol:    symbol,
		Timeframe: timeframe,
		Timestamp: time.UnixMilli(k.OpenTime).UTC(),
		Open:      open,
		High:      high,
		Low:       low,
		Close:     closePx,
		Volume:    volume.IntPart(),
	}, nil
}

// handleError translates common Binance API errors into standardized ports
// errors.
func (c *Client) handleError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}

	fields := map[string]interface{}{"operation": operation, "originalError": err.Error()}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		fields["apiErrorCode"] = apiErr.Code
		fields["apiErrorMessage"] = apiErr.Message

		var mappedErr error
		switch apiErr.Code {
		case -1003: // Too many requests
			mappedErr = ports.ErrRateLimited
		case -1021: // Timestamp outside of the recvWindow
			mappedErr = ports.ErrTimeout
		case -1022: // Invalid signature
			mappedErr = ports.ErrAuthenticationFailed
		case -1100, -1101, -1102, -1103, -1104, -1105, -1106, -1120, -1121: // Parameter/request format errors
			mappedErr = ports.ErrInvalidRequest
		case -2014, -2015: // API-key format invalid / bad key, IP or permissions
			mappedErr = ports.ErrInvalidAPIKeys
		default:
			mappedErr = ports.ErrUnknown
		}
		finalErr := fmt.Errorf("%s failed: %w: %w", operation, mappedErr, err)
		c.logger.Error(ctx, err, fmt.Sprintf("%s failed with API error", operation), fields)
		return finalErr
	}

	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s failed: %w: %w", operation, ports.ErrContextCanceled, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s failed: %w: %w", operation, ports.ErrTimeout, err)
	}

	c.logger.Error(ctx, err, fmt.Sprintf("%s failed", operation), fields)
	return fmt.Errorf("%s failed: %w: %w", operation, ports.ErrProviderUnavailable, err)
}
