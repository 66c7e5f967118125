// Package domain holds the core trading entities shared across the
// scheduler, market-data fabric, signal engine, sizer, trailing engine and
// order executor. Prices and money amounts are stored as Micros, integers
// scaled by 1e6, and share quantities as whole-share ints, rather than
// floats.
package domain

import "time"

// Micros is a fixed-point decimal scaled by 1e6, used for stored prices
// and money amounts. Sizing and trailing arithmetic converts through
// Float and FromFloat, so intermediate results are float64.
type Micros int64

const microsScale = 1_000_000

// FromFloat converts a float64 dollar amount into Micros, truncating
// toward zero below one micro.
func FromFloat(f float64) Micros {
	return Micros(f * microsScale)
}

// Float returns the float64 dollar value, for display and JSON encoding.
func (m Micros) Float() float64 {
	return float64(m) / microsScale
}

// Symbol identifies a tradeable equity or ETF.
type Symbol struct {
	Ticker      string `json:"ticker"`
	Exchange    string `json:"exchange"`
	Tradable    bool   `json:"tradable"`
	Sentiment   string `json:"sentiment"` // "bull" or "bear", from the universe mapping file
	LotSize     int    `json:"lotSize"`
	TickSize    Micros `json:"tickSize"`
	MinPosValue Micros `json:"minPositionValue"`
}

// Quote is a single top-of-book snapshot for a symbol.
type Quote struct {
	Symbol    string    `json:"symbol"`
	Bid       Micros    `json:"bid"`
	Ask       Micros    `json:"ask"`
	Last      Micros    `json:"last"`
	Volume    int64     `json:"volume"`
	Provider  string    `json:"provider"`
	Timestamp time.Time `json:"timestamp"`
}

// Mid returns the midpoint of bid/ask, falling back to Last if either side
// of the book is zero (a thin or halted symbol).
func (q Quote) Mid() Micros {
	if q.Bid == 0 || q.Ask == 0 {
		return q.Last
	}
	return (q.Bid + q.Ask) / 2
}

// Bar is one OHLCV candle at a given timeframe.
type Bar struct {
	Symbol    string    `json:"symbol"`
	Timeframe string    `json:"timeframe"` // "1m", "5m", "1d", ...
	Open      Micros    `json:"open"`
	High      Micros    `json:"high"`
	Low       Micros    `json:"low"`
	Close     Micros    `json:"close"`
	Volume    int64     `json:"volume"`
	Start     time.Time `json:"start"`
}

// DataQuality flags how trustworthy a computed indicator set is, based on
// how much history backed the computation.
type DataQuality string

const (
	QualityExcellent DataQuality = "excellent"
	QualityGood      DataQuality = "good"
	QualityLimited   DataQuality = "limited"
	QualityMinimal   DataQuality = "minimal"
)

// IndicatorSet bundles the technical indicators computed for one symbol at
// one timeframe and point in time.
type IndicatorSet struct {
	Symbol          string      `json:"symbol"`
	Timeframe       string      `json:"timeframe"`
	AsOf            time.Time   `json:"asOf"`
	SMA             Micros      `json:"sma"`
	EMA             Micros      `json:"ema"`
	RSI             float64     `json:"rsi"`
	MACD            float64     `json:"macd"`
	MACDSignal      float64     `json:"macdSignal"`
	MACDHistogram   float64     `json:"macdHistogram"`
	ATR             Micros      `json:"atr"`
	BollingerUpper  Micros      `json:"bollingerUpper"`
	BollingerLower  Micros      `json:"bollingerLower"`
	BollingerMiddle Micros      `json:"bollingerMiddle"`
	OBV             int64       `json:"obv"`
	OpeningRangeHi  Micros      `json:"openingRangeHigh"`
	OpeningRangeLo  Micros      `json:"openingRangeLow"`
	Quality         DataQuality `json:"quality"`
	BarsUsed        int         `json:"barsUsed"`
}

// Polarity is the sentiment filter's bull/bear orientation for a symbol.
type Polarity string

const (
	PolarityBull Polarity = "bull"
	PolarityBear Polarity = "bear"
)

// SentimentDecision is the filter's verdict for a candidate trade.
type SentimentDecision string

const (
	SentimentBoost   SentimentDecision = "boost"
	SentimentNeutral SentimentDecision = "neutral"
	SentimentBlock   SentimentDecision = "block"
)

// SentimentSnapshot is the result of scoring news/social sources for one
// symbol at one point in time.
type SentimentSnapshot struct {
	Symbol     string            `json:"symbol"`
	Polarity   Polarity          `json:"polarity"`
	Score      float64           `json:"score"` // -1.0 (max bearish) .. +1.0 (max bullish)
	SourceHits int               `json:"sourceHits"`
	Decision   SentimentDecision `json:"decision"`
	AsOf       time.Time         `json:"asOf"`
}

// Direction is the held or proposed trade direction for a position or an
// accepted composite signal. This system is long-only: Flat is the only
// non-Long state a position or accepted signal can carry.
type Direction string

const (
	DirectionLong Direction = "long"
	DirectionFlat Direction = "flat"
)

// Action is one strategy's per-tick verdict on a symbol: enter a new
// long, exit an existing one (a veto, regardless of other strategies'
// agreement), or skip (abstain, e.g. on insufficient data or timeout).
type Action string

const (
	ActionEnter Action = "enter"
	ActionExit  Action = "exit"
	ActionSkip  Action = "skip"
)

// AgreementLevel buckets how many strategies agreed to enter.
type AgreementLevel string

const (
	AgreementNone    AgreementLevel = "none"
	AgreementLow     AgreementLevel = "low"
	AgreementMedium  AgreementLevel = "medium"
	AgreementHigh    AgreementLevel = "high"
	AgreementMaximum AgreementLevel = "maximum"
)

// StrategyVerdict is one strategy's opinion on one symbol for one tick.
type StrategyVerdict struct {
	Strategy   string    `json:"strategy"`
	Symbol     string    `json:"symbol"`
	Action     Action    `json:"action"`
	Confidence float64   `json:"confidence"` // 0..1
	Reasoning  string    `json:"reasoning"`
	AsOf       time.Time `json:"asOf"`
}

// CompositeSignal is the signal engine's aggregated output for one symbol.
type CompositeSignal struct {
	Symbol            string            `json:"symbol"`
	Direction         Direction         `json:"direction"`
	AgreeingCount     int               `json:"agreeingCount"`
	TotalVoters       int               `json:"totalVoters"`
	AgreementLevel    AgreementLevel    `json:"agreementLevel"`
	CompositeConf     float64           `json:"compositeConfidence"`
	SentimentScore    float64           `json:"sentimentScore"`
	VolumeRatio       float64           `json:"volumeRatio"`
	Verdicts          []StrategyVerdict `json:"verdicts"`
	SentimentDecision SentimentDecision `json:"sentimentDecision"`
	Accepted          bool              `json:"accepted"`
	RejectReason      string            `json:"rejectReason,omitempty"`
	AsOf              time.Time         `json:"asOf"`
}

// TrailState is the stealth trailing engine's state machine position for
// an open trade.
type TrailState string

const (
	TrailInactive  TrailState = "inactive"
	TrailBreakeven TrailState = "breakeven"
	TrailTrailing  TrailState = "trailing"
	TrailExplosive TrailState = "explosive"
	TrailMoon      TrailState = "moon"
)

// OrderStatus is the lifecycle state of a broker order.
type OrderStatus string

const (
	OrderPreviewed       OrderStatus = "previewed"
	OrderPending         OrderStatus = "pending"
	OrderOpen            OrderStatus = "open"
	OrderPartiallyFilled OrderStatus = "partially_filled"
	OrderFilled          OrderStatus = "filled"
	OrderCancelled       OrderStatus = "cancelled"
	OrderRejected        OrderStatus = "rejected"
)

// OrderSide is buy or sell. The system is long-only: Sell only ever closes
// an existing long position, it never opens a short.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

const ownerTag = "EES"

// OwnerTag returns the tag this system stamps on every order it places,
// used during reconciliation to distinguish its own orders from anything
// placed through the broker by another channel.
func OwnerTag() string { return ownerTag }

// Order represents one order this system has placed or is about to place.
type Order struct {
	ID              string      `json:"id"` // internal idempotency token (uuid)
	BrokerOrderID   string      `json:"brokerOrderId,omitempty"`
	Symbol          string      `json:"symbol"`
	Side            OrderSide   `json:"side"`
	Quantity        int         `json:"quantity"`
	LimitPrice      Micros      `json:"limitPrice,omitempty"`
	Status          OrderStatus `json:"status"`
	FilledQuantity  int         `json:"filledQuantity"`
	AvgFillPrice    Micros      `json:"avgFillPrice,omitempty"`
	OwnerTag        string      `json:"ownerTag"`
	CreatedAt       time.Time   `json:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt"`
	FilledAt        *time.Time  `json:"filledAt,omitempty"`
	RejectReason    string      `json:"rejectReason,omitempty"`
	PositionID      string      `json:"positionId,omitempty"`
}

// Position is an open or closed long position in one symbol.
type Position struct {
	ID               string     `json:"id"`
	Symbol           string     `json:"symbol"`
	Quantity         int        `json:"quantity"`
	EntryPrice       Micros     `json:"entryPrice"`
	StopPrice        Micros     `json:"stopPrice"`
	TrailState       TrailState `json:"trailState"`
	HighWaterMark    Micros     `json:"highWaterMark"`
	OpenedAt         time.Time  `json:"openedAt"`
	ClosedAt         *time.Time `json:"closedAt,omitempty"`
	RealizedPnL      Micros     `json:"realizedPnL"`
	UnrealizedPnL    Micros     `json:"unrealizedPnL"`
	EntryOrderID     string     `json:"entryOrderId"`
	ExitOrderID      string     `json:"exitOrderId,omitempty"`
	SessionID        string     `json:"sessionId"`
}

// StopRatchet returns true if newStop is a legal update of the position's
// current stop: stops only ever move up (for a long position), never down.
func (p Position) StopRatchet(newStop Micros) bool {
	return newStop > p.StopPrice
}

// AccountSnapshot is a point-in-time view of broker buying power and
// aggregate exposure, used by the position sizer's utilization tiers.
type AccountSnapshot struct {
	Equity          Micros    `json:"equity"`
	BuyingPower     Micros    `json:"buyingPower"`
	CashAvailable   Micros    `json:"cashAvailable"` // cash available for new investment
	OpenPositions   int       `json:"openPositions"`
	GrossExposure   Micros    `json:"grossExposure"`
	AsOf            time.Time `json:"asOf"`
}

// OrderIntent is the position sizer's output: a proposed entry order
// before it has been previewed or placed with the broker.
type OrderIntent struct {
	Symbol   string    `json:"symbol"`
	Side     OrderSide `json:"side"`
	Quantity int       `json:"quantity"`
	MaxPrice Micros    `json:"maxPrice"`
	AsOf     time.Time `json:"asOf"`
}

// ExitReason is why the trailing engine emitted an exit for a position.
type ExitReason string

const (
	ExitStopHit        ExitReason = "stop_hit"
	ExitTakeProfit     ExitReason = "take_profit"
	ExitMomentumExit   ExitReason = "momentum_exit"
	ExitTimeExit       ExitReason = "time_exit"
	ExitDivergenceExit ExitReason = "divergence_exit"
)

// ExitIntent is the trailing engine's output: a request to liquidate a
// position in full.
type ExitIntent struct {
	PositionID string     `json:"positionId"`
	Symbol     string     `json:"symbol"`
	Quantity   int        `json:"quantity"`
	Reason     ExitReason `json:"reason"`
	AsOf       time.Time  `json:"asOf"`
}

// SessionPhase is the scheduler's trading-day phase.
type SessionPhase string

const (
	PhaseDark     SessionPhase = "dark"
	PhasePrep     SessionPhase = "prep"
	PhaseOpen     SessionPhase = "open"
	PhaseCooldown SessionPhase = "cooldown"
)

// SessionState is the scheduler's full persisted state for the current
// trading day.
type SessionState struct {
	TradingDate    string       `json:"tradingDate"` // YYYY-MM-DD in exchange timezone
	Phase          SessionPhase `json:"phase"`
	PhaseEnteredAt time.Time    `json:"phaseEnteredAt"`
	OpenPositions  []Position   `json:"openPositions"`
	OpenOrders     []Order      `json:"openOrders"`
	LastScanTick   time.Time    `json:"lastScanTick"`
	LastPosTick    time.Time    `json:"lastPositionTick"`
}

// ScanTickResult is the outcome of one pass of the scheduler's scan
// cadence across the tradable universe.
type ScanTickResult struct {
	TickID          string        `json:"tickId"`
	StartedAt       time.Time     `json:"startedAt"`
	Duration        time.Duration `json:"duration"`
	SymbolsScanned  int           `json:"symbolsScanned"`
	SignalsAccepted int           `json:"signalsAccepted"`
	SignalsRejected int           `json:"signalsRejected"`
	Errors          []string      `json:"errors,omitempty"`
}

// EndOfDaySummary is emitted once, at COOLDOWN entry.
type EndOfDaySummary struct {
	TradingDate  string  `json:"tradingDate"`
	TradesOpened int     `json:"tradesOpened"`
	TradesClosed int     `json:"tradesClosed"`
	RealizedPnL  Micros  `json:"realizedPnL"`
	UnrealizedPnL Micros `json:"unrealizedPnL"`
	WinRate      float64 `json:"winRate"`
	LargestWin   Micros  `json:"largestWin"`
	LargestLoss  Micros  `json:"largestLoss"`
}
