package ev

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/cypherlabdev/kalshi-best-bets/internal/models"
)

// ErrNoQuote is returned when a market has no yes buy price and quotes are required
var ErrNoQuote = errors.New("market has no yes quote")

var one = decimal.NewFromInt(1)

// BinaryEV returns probability - price for a contract paying 1 on YES
func BinaryEV(probability float64, price decimal.Decimal) (decimal.Decimal, error) {
	if err := checkUnit("probability", probability); err != nil {
		return decimal.Zero, err
	}
	if err := checkPrice(price); err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromFloat(probability).Sub(price), nil
}

// SharedEV prices a conference title that pays 1 outright and shareFactor when shared.
// It returns the expected payout and the EV against price.
func SharedEV(sole, share, shareFactor float64, price decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	if err := checkUnit("sole_probability", sole); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	if err := checkUnit("share_probability", share); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	if err := checkUnit("share_factor", shareFactor); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	if err := checkPrice(price); err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	// Expected payout = p_sole * 1.0 + p_share * share_factor
	payout := decimal.NewFromFloat(sole).Mul(one).
		Add(decimal.NewFromFloat(share).Mul(decimal.NewFromFloat(shareFactor)))

	return payout, payout.Sub(price), nil
}

func checkUnit(field string, v float64) error {
	// NaN fails both comparisons
	if !(v >= 0 && v <= 1) {
		return &models.InvalidInputError{Field: field, Value: v}
	}
	return nil
}

func checkPrice(price decimal.Decimal) error {
	if price.LessThan(decimal.Zero) || price.GreaterThan(one) {
		return &models.InvalidInputError{Field: "price", Value: price.InexactFloat64()}
	}
	return nil
}

// Input is one matched forecast ready for pricing
type Input struct {
	Match       models.MatchResult
	Team        string
	Conference  string
	Opponent    string
	Probability float64 // Binary markets
	Sole        float64 // Conference markets
	Share       float64 // Conference markets
}

// Calculator turns matched forecasts into bet opportunities
type Calculator struct {
	params models.EVParams
	logger zerolog.Logger
}

// NewCalculator creates a new EV calculator
func NewCalculator(params models.EVParams, logger zerolog.Logger) *Calculator {
	return &Calculator{
		params: params,
		logger: logger.With().Str("component", "ev_calculator").Logger(),
	}
}

// Calculate prices a single matched market according to its payout model
func (c *Calculator) Calculate(in Input) (*models.BetOpportunity, error) {
	market := in.Match.Market
	if market == nil {
		return nil, fmt.Errorf("no market for %s", in.Team)
	}
	if c.params.RequireQuote && !market.HasQuote() {
		return nil, fmt.Errorf("%s: %w", market.Ticker, ErrNoQuote)
	}

	bet := &models.BetOpportunity{
		MarketType:  market.Type,
		Team:        in.Team,
		Conference:  in.Conference,
		Ticker:      market.Ticker,
		Side:        models.SideYes,
		MarketPrice: market.YesPrice.InexactFloat64(),
		MatchMethod: in.Match.Method,
		MatchScore:  in.Match.Score,
	}

	switch market.Type {
	case models.MarketConferenceChampion:
		payout, value, err := SharedEV(in.Sole, in.Share, c.params.ShareFactor, market.YesPrice)
		if err != nil {
			return nil, err
		}
		bet.ModelValue = payout.InexactFloat64()
		bet.EV = value.InexactFloat64()
		bet.Description = fmt.Sprintf("%s to Win %s", in.Team, in.Conference)

	case models.MarketTournament, models.MarketGame:
		value, err := BinaryEV(in.Probability, market.YesPrice)
		if err != nil {
			return nil, err
		}
		bet.ModelValue = in.Probability
		bet.EV = value.InexactFloat64()

		if c.params.EvaluateNoSide && market.NoPrice.GreaterThan(decimal.Zero) {
			noValue, err := BinaryEV(1-in.Probability, market.NoPrice)
			if err != nil {
				return nil, err
			}
			if noValue.GreaterThan(value) {
				bet.Side = models.SideNo
				bet.ModelValue = 1 - in.Probability
				bet.MarketPrice = market.NoPrice.InexactFloat64()
				bet.EV = noValue.InexactFloat64()
			}
		}

		if market.Type == models.MarketGame {
			bet.Description = fmt.Sprintf("%s vs %s", in.Team, in.Opponent)
		} else {
			bet.Description = fmt.Sprintf("%s to Make Tournament", in.Team)
		}

	default:
		return nil, fmt.Errorf("unknown market type: %s", market.Type)
	}

	return bet, nil
}

// BatchCalculate prices every input, skipping records that fail. It returns the
// opportunities in input order and the number of inputs rejected as invalid.
func (c *Calculator) BatchCalculate(inputs []Input) ([]models.BetOpportunity, int) {
	bets := make([]models.BetOpportunity, 0, len(inputs))
	invalid := 0

	for _, in := range inputs {
		bet, err := c.Calculate(in)
		if err != nil {
			if errors.Is(err, models.ErrInvalidInput) {
				invalid++
				c.logger.Warn().
					Err(err).
					Str("team", in.Team).
					Msg("invalid input, excluded from report")
			} else {
				c.logger.Debug().
					Err(err).
					Str("team", in.Team).
					Msg("skipped market")
			}
			continue
		}
		bets = append(bets, *bet)
	}

	c.logger.Info().
		Int("input_count", len(inputs)).
		Int("output_count", len(bets)).
		Int("invalid_count", invalid).
		Msg("ev calculation complete")

	return bets, invalid
}
