package realtime

import (
	"fmt"

	"go.uber.org/zap"
)

// PositionRelay forwards location updates to the audience matching the
// sender: an aggregated squad broadcasts one marker keyed by squad id, an
// individual one marker keyed by connection id.
type PositionRelay struct {
	g   *Gateway
	log *zap.Logger
}

func (p *PositionRelay) PatrolPosition(s *session, coords []float64) error {
	ctx := s.ctx
	if ctx.Aggregate() && ctx.SquadID != "" {
		payload := map[string][]float64{ctx.SquadID: coords}
		p.g.groups.Publish(OperationsGroup(), EventPatrolPosition, payload, s.conn.ID())
		return nil
	}

	payload := map[string][]float64{s.conn.ID(): coords}
	p.g.groups.Publish(OperationsGroup(), EventPatrolPosition, payload, s.conn.ID())
	if ctx.SquadID != "" {
		p.g.groups.Publish(SquadGroup(ctx.SquadID), EventPatrolPosition, payload, s.conn.ID())
	}
	return nil
}

// OccurrencePosition persists one point of the chase log and relays it to
// the occurrence group.
func (p *PositionRelay) OccurrencePosition(s *session, coords []float64) error {
	ctx := s.ctx
	occurrenceID := ctx.Occurrence()
	if occurrenceID == "" {
		return fmt.Errorf("%w: no active occurrence", ErrInvalidState)
	}

	if err := p.g.repo.AppendOccurrenceCoordinate(occurrenceID, coords[0], coords[1]); err != nil {
		return fmt.Errorf("logging occurrence position: %w", err)
	}

	payload := map[string][]float64{p.senderKey(s): coords}
	p.g.groups.Publish(OccurrenceGroup(occurrenceID), EventChaserPosition, payload, s.conn.ID())
	return nil
}

// SupportPosition relays a supporting party's position to the occurrence
// group. The sender's own squad is excluded: supporters already see each
// other through the squad group.
func (p *PositionRelay) SupportPosition(s *session, coords []float64) error {
	ctx := s.ctx
	occurrenceID := ctx.Occurrence()
	if occurrenceID == "" {
		return fmt.Errorf("%w: no active occurrence", ErrInvalidState)
	}

	except := append(ctx.OnlinePeers(), s.conn.ID())
	payload := map[string][]float64{p.senderKey(s): coords}
	p.g.groups.Publish(OccurrenceGroup(occurrenceID), EventSupporterPosition, payload, except...)
	return nil
}

// ToggleSquadCoords flips whether the squad broadcasts one aggregated
// marker or one marker per member, and tells Operations to drop the stale
// markers of the previous mode.
func (p *PositionRelay) ToggleSquadCoords(s *session, aggregate bool) error {
	ctx := s.ctx
	if ctx.SquadID == "" {
		return fmt.Errorf("%w: not a squad member", ErrInvalidState)
	}

	p.propagateAggregate(ctx, aggregate)
	p.g.groups.Publish(SquadGroup(ctx.SquadID), EventSquadToggledCoords, aggregate)

	if aggregate {
		for _, connID := range append(ctx.OnlinePeers(), s.conn.ID()) {
			p.g.groups.Publish(OperationsGroup(), EventPoliceCleanUp, connID, s.conn.ID())
		}
	} else {
		p.g.groups.Publish(OperationsGroup(), EventPoliceCleanUp, ctx.SquadID, s.conn.ID())
	}
	p.log.Info("squad toggled aggregated coords",
		zap.String("squad", ctx.SquadID), zap.Bool("aggregate", aggregate))
	return nil
}

// ToggleOccurrenceCoords is the same flip scoped to an occurrence the
// squad is part of.
func (p *PositionRelay) ToggleOccurrenceCoords(s *session, aggregate bool) error {
	ctx := s.ctx
	if ctx.SquadID == "" {
		return fmt.Errorf("%w: not a squad member", ErrInvalidState)
	}
	occurrenceID := ctx.Occurrence()
	if occurrenceID == "" {
		return fmt.Errorf("%w: no active occurrence", ErrInvalidState)
	}

	p.propagateAggregate(ctx, aggregate)
	p.g.groups.Publish(SquadGroup(ctx.SquadID), EventOccToggledCoords, aggregate, s.conn.ID())

	group := OccurrenceGroup(occurrenceID)
	if aggregate {
		for _, connID := range append(ctx.OnlinePeers(), s.conn.ID()) {
			p.g.groups.Publish(group, EventSupportCleanUp, connID, s.conn.ID())
		}
	} else {
		p.g.groups.Publish(group, EventSupportCleanUp, ctx.SquadID, s.conn.ID())
	}
	return nil
}

func (p *PositionRelay) propagateAggregate(ctx *ConnectionContext, aggregate bool) {
	ctx.SetAggregate(aggregate)
	for _, connID := range ctx.OnlinePeers() {
		if peer := p.g.session(connID); peer != nil {
			peer.ctx.SetAggregate(aggregate)
		}
	}
}

func (p *PositionRelay) senderKey(s *session) string {
	if s.ctx.Aggregate() && s.ctx.SquadID != "" {
		return s.ctx.SquadID
	}
	return s.conn.ID()
}
