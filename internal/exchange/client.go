// Package exchange reads active Kalshi markets over the public REST API.
package exchange

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/cypherlabdev/kalshi-best-bets/internal/models"
)

// SourceName identifies Kalshi in fetch errors and metrics
const SourceName = "kalshi"

// maxPages bounds cursor pagination in case the API keeps returning a cursor
const maxPages = 500

// ClientConfig holds exchange client configuration
type ClientConfig struct {
	BaseURL          string        // e.g., "https://api.elections.kalshi.com/trade-api/v2"
	Timeout          time.Duration // Per request
	RateLimit        float64       // Requests per second, 0 = unlimited
	MaxRetries       int           // Retries on 429 and 5xx
	RetryWait        time.Duration // Initial backoff
	PageLimit        int           // Markets per page (API max 200)
	TournamentSeries string
	GameSeries       string
	KeyID            string
	PrivateKeyPath   string
}

// Client fetches markets with pacing, retries and optional request signing
type Client struct {
	http             *resty.Client
	limiter          *rate.Limiter
	signer           *Signer
	basePath         string
	pageLimit        int
	tournamentSeries string
	gameSeries       string
	logger           zerolog.Logger
}

type apiMarket struct {
	Ticker      string `json:"ticker"`
	EventTicker string `json:"event_ticker"`
	Title       string `json:"title"`
	Subtitle    string `json:"subtitle"`
	YesSubTitle string `json:"yes_sub_title"`
	Status      string `json:"status"`
	YesBid      int64  `json:"yes_bid"` // Cents
	YesAsk      int64  `json:"yes_ask"`
	NoBid       int64  `json:"no_bid"`
	NoAsk       int64  `json:"no_ask"`
	LastPrice   int64  `json:"last_price"`
	Volume      int64  `json:"volume"`
}

type marketsResponse struct {
	Markets []apiMarket `json:"markets"`
	Cursor  string      `json:"cursor"`
}

// NewClient creates an exchange client. The private key is loaded when configured.
func NewClient(config ClientConfig, logger zerolog.Logger) (*Client, error) {
	base := strings.TrimRight(config.BaseURL, "/")
	parsed, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}

	retryWait := config.RetryWait
	if retryWait <= 0 {
		retryWait = time.Second
	}

	httpClient := resty.New().
		SetBaseURL(base).
		SetTimeout(config.Timeout).
		SetHeader("Accept", "application/json").
		SetRetryCount(config.MaxRetries).
		SetRetryWaitTime(retryWait).
		SetRetryMaxWaitTime(8 * retryWait).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return resp.StatusCode() == http.StatusTooManyRequests || resp.StatusCode() >= http.StatusInternalServerError
		}).
		SetRetryAfter(func(_ *resty.Client, resp *resty.Response) (time.Duration, error) {
			// Honor Retry-After on 429, otherwise fall back to exponential backoff
			if resp != nil && resp.StatusCode() == http.StatusTooManyRequests {
				if s, err := strconv.Atoi(resp.Header().Get("Retry-After")); err == nil && s >= 0 {
					return time.Duration(s) * time.Second, nil
				}
			}
			return 0, nil
		})

	limit := rate.Inf
	if config.RateLimit > 0 {
		limit = rate.Limit(config.RateLimit)
	}

	pageLimit := config.PageLimit
	if pageLimit <= 0 {
		pageLimit = 200
	}

	c := &Client{
		http:             httpClient,
		limiter:          rate.NewLimiter(limit, 1),
		basePath:         parsed.Path,
		pageLimit:        pageLimit,
		tournamentSeries: config.TournamentSeries,
		gameSeries:       config.GameSeries,
		logger:           logger.With().Str("component", "exchange_client").Logger(),
	}

	if config.KeyID != "" && config.PrivateKeyPath != "" {
		signer, err := LoadSigner(config.KeyID, config.PrivateKeyPath)
		if err != nil {
			return nil, err
		}
		c.signer = signer
		c.logger.Info().Str("key_id", config.KeyID).Msg("request signing enabled")
	}

	return c, nil
}

// WithSigner sets the request signer
func (c *Client) WithSigner(s *Signer) *Client {
	c.signer = s
	return c
}

// Preflight checks that the API answers with at least one open market
func (c *Client) Preflight(ctx context.Context) error {
	var resp marketsResponse
	if err := c.get(ctx, "/markets", map[string]string{"limit": "1", "status": "open"}, &resp); err != nil {
		return models.NewFetchError(SourceName, "preflight", err)
	}
	if len(resp.Markets) == 0 {
		return models.NewFetchError(SourceName, "preflight", errors.New("no open markets returned"))
	}

	c.logger.Info().Int("markets", len(resp.Markets)).Msg("preflight passed")
	return nil
}

// FetchMarkets returns open tournament, conference and game markets.
// conferenceSeries maps conference name to series ticker.
func (c *Client) FetchMarkets(ctx context.Context, conferenceSeries map[string]string) (*models.MarketSet, error) {
	set := &models.MarketSet{Conferences: make(map[string][]models.MarketRecord)}

	var err error
	if c.tournamentSeries != "" {
		set.Tournament, err = c.SeriesMarkets(ctx, c.tournamentSeries, models.MarketTournament, "")
		if err != nil {
			return nil, err
		}
	}

	names := make([]string, 0, len(conferenceSeries))
	for name := range conferenceSeries {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		markets, err := c.SeriesMarkets(ctx, conferenceSeries[name], models.MarketConferenceChampion, name)
		if err != nil {
			return nil, err
		}
		if len(markets) > 0 {
			set.Conferences[name] = markets
		}
	}

	if c.gameSeries != "" {
		set.Games, err = c.SeriesMarkets(ctx, c.gameSeries, models.MarketGame, "")
		if err != nil {
			return nil, err
		}
	}

	c.logger.Info().
		Int("tournament", len(set.Tournament)).
		Int("conference_series", len(set.Conferences)).
		Int("games", len(set.Games)).
		Msg("fetched markets")

	return set, nil
}

// SeriesMarkets returns every open market of a series, converted to records
func (c *Client) SeriesMarkets(ctx context.Context, series string, marketType models.MarketType, conference string) ([]models.MarketRecord, error) {
	raw, err := c.listMarkets(ctx, map[string]string{"series_ticker": series, "status": "open"})
	if err != nil {
		return nil, models.NewFetchError(SourceName, "markets "+series, err)
	}

	records := make([]models.MarketRecord, 0, len(raw))
	for _, m := range raw {
		rec, ok := toRecord(m, marketType, conference)
		if !ok {
			c.logger.Debug().Str("ticker", m.Ticker).Msg("skipping market without team name")
			continue
		}
		records = append(records, rec)
	}

	c.logger.Debug().
		Str("series", series).
		Int("raw", len(raw)).
		Int("parsed", len(records)).
		Msg("fetched series")

	return records, nil
}

// listMarkets follows the cursor until the API stops returning one
func (c *Client) listMarkets(ctx context.Context, params map[string]string) ([]apiMarket, error) {
	var all []apiMarket
	cursor := ""

	for page := 0; page < maxPages; page++ {
		query := make(map[string]string, len(params)+2)
		for k, v := range params {
			query[k] = v
		}
		query["limit"] = strconv.Itoa(c.pageLimit)
		if cursor != "" {
			query["cursor"] = cursor
		}

		var resp marketsResponse
		if err := c.get(ctx, "/markets", query, &resp); err != nil {
			return nil, err
		}
		all = append(all, resp.Markets...)

		cursor = resp.Cursor
		if cursor == "" || len(resp.Markets) == 0 {
			return all, nil
		}
	}

	c.logger.Warn().Int("pages", maxPages).Msg("pagination limit reached")
	return all, nil
}

func (c *Client) get(ctx context.Context, endpoint string, query map[string]string, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	req := c.http.R().
		SetContext(ctx).
		SetQueryParams(query).
		SetResult(out)

	if c.signer != nil {
		headers, err := c.signer.Headers(http.MethodGet, c.basePath+endpoint)
		if err != nil {
			return err
		}
		req.SetHeaders(headers)
	}

	resp, err := req.Get(endpoint)
	if err != nil {
		return fmt.Errorf("GET %s: %w", endpoint, err)
	}
	if resp.IsError() {
		return fmt.Errorf("GET %s: status %d: %s", endpoint, resp.StatusCode(), strings.TrimSpace(resp.String()))
	}

	return nil
}

// toRecord converts an API market. The team is the yes subtitle, else the ticker suffix.
func toRecord(m apiMarket, marketType models.MarketType, conference string) (models.MarketRecord, bool) {
	team := strings.TrimSpace(m.YesSubTitle)
	if team == "" {
		team = tickerSuffix(m.Ticker)
	}
	if team == "" {
		return models.MarketRecord{}, false
	}

	yesAsk, noAsk, last := askPrice(m.YesAsk), askPrice(m.NoAsk), cents(m.LastPrice)

	// Buy prices: the ask when quoted, else the last trade
	yesPrice := yesAsk
	if !yesPrice.IsPositive() {
		yesPrice = last
	}
	noPrice := noAsk
	if !noPrice.IsPositive() && last.IsPositive() {
		noPrice = decimal.NewFromInt(1).Sub(last)
	}

	return models.MarketRecord{
		Ticker:      m.Ticker,
		EventTicker: m.EventTicker,
		Title:       m.Title,
		Subtitle:    team,
		Type:        marketType,
		Conference:  conference,
		YesPrice:    yesPrice,
		NoPrice:     noPrice,
		YesBid:      cents(m.YesBid),
		NoBid:       cents(m.NoBid),
		YesAsk:      yesAsk,
		NoAsk:       noAsk,
		LastPrice:   last,
		Volume:      m.Volume,
		Status:      m.Status,
	}, true
}

func cents(v int64) decimal.Decimal {
	return decimal.New(v, -2)
}

// askPrice converts an ask in cents. An empty book is reported as 100 and is
// treated like no ask at all.
func askPrice(v int64) decimal.Decimal {
	if v <= 0 || v >= 100 {
		return decimal.Zero
	}
	return cents(v)
}

func tickerSuffix(ticker string) string {
	i := strings.LastIndexByte(ticker, '-')
	if i < 0 || i == len(ticker)-1 {
		return ""
	}
	return ticker[i+1:]
}
