package execution

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ajitpratap0/ees/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExchange struct {
	previewErr   error
	placeErr     error
	pollSequence []domain.Order
	pollIndex    int
}

func (f *fakeExchange) PreviewOrder(ctx context.Context, ord domain.Order) (domain.Order, error) {
	if f.previewErr != nil {
		return domain.Order{}, f.previewErr
	}
	ord.Status = domain.OrderPreviewed
	return ord, nil
}

func (f *fakeExchange) PlaceOrder(ctx context.Context, ord domain.Order) (domain.Order, error) {
	if f.placeErr != nil {
		return domain.Order{}, f.placeErr
	}
	ord.BrokerOrderID = "broker-1"
	ord.Status = domain.OrderPending
	return ord, nil
}

func (f *fakeExchange) GetOrder(ctx context.Context, brokerOrderID string) (domain.Order, error) {
	if f.pollIndex >= len(f.pollSequence) {
		return f.pollSequence[len(f.pollSequence)-1], nil
	}
	o := f.pollSequence[f.pollIndex]
	f.pollIndex++
	return o, nil
}

func (f *fakeExchange) CancelOrder(ctx context.Context, brokerOrderID string) error { return nil }
func (f *fakeExchange) GetAccount(ctx context.Context) (domain.AccountSnapshot, error) {
	return domain.AccountSnapshot{}, nil
}

type fakeTrailingRegistrar struct {
	registered   []domain.Position
	unregistered []string
	open         []domain.Position
}

func (f *fakeTrailingRegistrar) Register(pos domain.Position) { f.registered = append(f.registered, pos) }
func (f *fakeTrailingRegistrar) Unregister(positionID string) {
	f.unregistered = append(f.unregistered, positionID)
}
func (f *fakeTrailingRegistrar) Positions() []domain.Position { return f.open }

func TestEnterPosition_RegistersOnFill(t *testing.T) {
	ex := &fakeExchange{pollSequence: []domain.Order{
		{Status: domain.OrderFilled, FilledQuantity: 10, AvgFillPrice: domain.FromFloat(150)},
	}}
	reg := &fakeTrailingRegistrar{}
	e := NewExecutor(ex, reg, nil, Config{PollInterval: time.Millisecond, PollTimeout: time.Second}, zerolog.Nop())

	pos, err := e.EnterPosition(context.Background(), domain.OrderIntent{Symbol: "AAPL", Quantity: 10, MaxPrice: domain.FromFloat(151)}, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, 10, pos.Quantity)
	require.Len(t, reg.registered, 1)
	assert.Equal(t, "AAPL", reg.registered[0].Symbol)
}

func TestEnterPosition_PreviewErrorAborts(t *testing.T) {
	ex := &fakeExchange{previewErr: errors.New("insufficient buying power")}
	reg := &fakeTrailingRegistrar{}
	e := NewExecutor(ex, reg, nil, DefaultConfig(), zerolog.Nop())

	_, err := e.EnterPosition(context.Background(), domain.OrderIntent{Symbol: "AAPL", Quantity: 10}, "sess-1")
	require.Error(t, err)
	assert.Empty(t, reg.registered)
}

func TestEnterPosition_RejectedOrderReturnsError(t *testing.T) {
	ex := &fakeExchange{pollSequence: []domain.Order{
		{Status: domain.OrderRejected, RejectReason: "insufficient funds"},
	}}
	reg := &fakeTrailingRegistrar{}
	e := NewExecutor(ex, reg, nil, Config{PollInterval: time.Millisecond, PollTimeout: time.Second}, zerolog.Nop())

	_, err := e.EnterPosition(context.Background(), domain.OrderIntent{Symbol: "AAPL", Quantity: 10}, "sess-1")
	require.Error(t, err)
	assert.Empty(t, reg.registered)
}

func TestEnterPosition_RejectsDuplicateSymbol(t *testing.T) {
	ex := &fakeExchange{pollSequence: []domain.Order{
		{Status: domain.OrderFilled, FilledQuantity: 10, AvgFillPrice: domain.FromFloat(150)},
	}}
	reg := &fakeTrailingRegistrar{open: []domain.Position{{Symbol: "AAPL"}}}
	e := NewExecutor(ex, reg, nil, DefaultConfig(), zerolog.Nop())

	_, err := e.EnterPosition(context.Background(), domain.OrderIntent{Symbol: "AAPL", Quantity: 10}, "sess-1")
	require.Error(t, err)
	assert.Empty(t, reg.registered)
}

func TestEnterPosition_RejectsAtMaxConcurrentPositions(t *testing.T) {
	ex := &fakeExchange{pollSequence: []domain.Order{
		{Status: domain.OrderFilled, FilledQuantity: 10, AvgFillPrice: domain.FromFloat(150)},
	}}
	reg := &fakeTrailingRegistrar{open: []domain.Position{{Symbol: "AAPL"}, {Symbol: "MSFT"}}}
	cfg := DefaultConfig()
	cfg.MaxPositions = 2
	e := NewExecutor(ex, reg, nil, cfg, zerolog.Nop())

	_, err := e.EnterPosition(context.Background(), domain.OrderIntent{Symbol: "GOOG", Quantity: 10}, "sess-1")
	require.Error(t, err)
	assert.Empty(t, reg.registered)
}

func TestExitPosition_DedupsInFlightSell(t *testing.T) {
	ex := &fakeExchange{pollSequence: []domain.Order{
		{Status: domain.OrderPending},
	}}
	reg := &fakeTrailingRegistrar{}
	e := NewExecutor(ex, reg, nil, Config{PollInterval: 5 * time.Millisecond, PollTimeout: 50 * time.Millisecond}, zerolog.Nop())

	e.mu.Lock()
	e.inFlightSells["pos-1"] = true
	e.mu.Unlock()

	_, err := e.ExitPosition(context.Background(), domain.ExitIntent{PositionID: "pos-1", Symbol: "AAPL", Quantity: 5, Reason: domain.ExitStopHit})
	assert.Error(t, err)
}
