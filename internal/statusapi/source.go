package statusapi

import (
	"context"
	"fmt"

	"github.com/ajitpratap0/ees/internal/db"
	"github.com/ajitpratap0/ees/internal/domain"
	"github.com/ajitpratap0/ees/internal/market"
	"github.com/ajitpratap0/ees/internal/session"
	"github.com/ajitpratap0/ees/internal/trailing"
)

// Source is the read-only view statusapi serves. Two implementations
// below cover the two deployment shapes this system supports: embedded
// in the same process as the scheduler (LiveSource), or standalone
// against the durable archival store (ArchiveSource) for a deployment
// that runs the status surface out-of-process from the trader.
type Source interface {
	SessionState(ctx context.Context) (domain.SessionState, bool, error)
	OpenPositions(ctx context.Context) ([]domain.Position, error)
	ProviderStatus(ctx context.Context) ([]market.ProviderHealth, error)
}

// LiveSource reads directly from the in-process components. This is the
// default wiring: cmd/trader constructs one of these and hands it to
// statusapi.NewServer alongside its own scheduler/trailing engine/fabric.
type LiveSource struct {
	Scheduler *session.Scheduler
	Trail     *trailing.Engine
	Fabric    *market.Fabric
}

func (s LiveSource) SessionState(ctx context.Context) (domain.SessionState, bool, error) {
	if s.Scheduler == nil {
		return domain.SessionState{}, false, nil
	}
	return s.Scheduler.State(), true, nil
}

func (s LiveSource) OpenPositions(ctx context.Context) ([]domain.Position, error) {
	if s.Trail == nil {
		return nil, fmt.Errorf("trailing engine not available")
	}
	return s.Trail.Positions(), nil
}

func (s LiveSource) ProviderStatus(ctx context.Context) ([]market.ProviderHealth, error) {
	if s.Fabric == nil {
		return nil, fmt.Errorf("market fabric not available")
	}
	return s.Fabric.ProviderStatus(), nil
}

// ArchiveSource reads from the Postgres archival store instead of any
// live component, for a status API deployed as its own process against
// a shared database. Provider health has no durable record — it's a
// property of a running fabric's breaker state, not a row to archive —
// so ProviderStatus always errors here.
type ArchiveSource struct {
	Sessions session.StateStore
	DB       *db.DB
}

func (s ArchiveSource) SessionState(ctx context.Context) (domain.SessionState, bool, error) {
	if s.Sessions == nil {
		return domain.SessionState{}, false, fmt.Errorf("session store not available")
	}
	return s.Sessions.Load(ctx)
}

func (s ArchiveSource) OpenPositions(ctx context.Context) ([]domain.Position, error) {
	if s.DB == nil {
		return nil, fmt.Errorf("archival store not available")
	}
	state, ok, err := s.SessionState(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	rows, err := s.DB.ListOpenArchivedPositions(ctx, state.TradingDate)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Position, 0, len(rows))
	for _, r := range rows {
		pos := domain.Position{
			ID:           r.ID,
			SessionID:    r.SessionID,
			Symbol:       r.Symbol,
			Quantity:     r.Quantity,
			EntryPrice:   domain.Micros(r.EntryPrice),
			TrailState:   domain.TrailState(r.TrailState),
			OpenedAt:     r.OpenedAt,
			EntryOrderID: r.EntryOrderID,
		}
		if r.StopPrice != nil {
			pos.StopPrice = domain.Micros(*r.StopPrice)
		}
		if r.UnrealizedPnL != nil {
			pos.UnrealizedPnL = domain.Micros(*r.UnrealizedPnL)
		}
		out = append(out, pos)
	}
	return out, nil
}

func (s ArchiveSource) ProviderStatus(ctx context.Context) ([]market.ProviderHealth, error) {
	return nil, fmt.Errorf("provider health is not available from the archival store")
}
