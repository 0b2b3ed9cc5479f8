package realtime

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rmacedo/patrol-ops/models"
)

// OccurrenceManager drives the chase/support lifecycle: creation, operator
// and backup registration, and termination with group cleanup.
type OccurrenceManager struct {
	g   *Gateway
	log *zap.Logger
}

// StartChase opens a chase occurrence bound to the caller's work session
// and pulls the whole squad (or the lone caller) into the occurrence group.
func (m *OccurrenceManager) StartChase(s *session) error {
	ctx := s.ctx
	workID := ctx.Work()
	if workID == "" {
		return fmt.Errorf("%w: no active work session", ErrInvalidState)
	}

	occurrence := &models.Occurrence{
		ID:            uuid.NewString(),
		Type:          models.OccurrenceChase,
		ParentWorkRef: workID,
		Status:        models.WorkInProgress,
		StartedAt:     m.g.now().UTC(),
	}
	if err := m.g.repo.CreateOccurrence(occurrence); err != nil {
		return err
	}
	if err := m.g.repo.AppendWorkOccurrence(workID, occurrence.ID); err != nil {
		return err
	}

	alert := chaseAlertPayload{OccurrenceID: occurrence.ID, Requester: s.conn.ID()}

	if ctx.SquadID == "" {
		if err := m.g.repo.AppendUserReference(ctx.SubjectID, "occurrences", occurrence.ID); err != nil {
			return err
		}
		m.joinOccurrence(s.conn, ctx, occurrence.ID)
		m.g.groups.Publish(OperationsGroup(), EventChaseAlert, alert, s.conn.ID())
		m.log.Info("solo police started a chase",
			zap.String("conn", s.conn.ID()), zap.String("occurrence", occurrence.ID))
		return nil
	}

	squad, err := m.g.repo.GetSquad(ctx.SquadID)
	if err != nil {
		return fmt.Errorf("starting chase: %w", err)
	}
	for _, member := range squad.Members {
		if err := m.g.repo.AppendUserReference(member, "occurrences", occurrence.ID); err != nil {
			return err
		}
	}

	online := ctx.OnlinePeers()
	for _, connID := range online {
		peer := m.g.session(connID)
		if peer == nil {
			continue
		}
		m.joinOccurrence(peer.conn, peer.ctx, occurrence.ID)
		peer.conn.Send(EventSquadStartChase, nil)
	}
	m.joinOccurrence(s.conn, ctx, occurrence.ID)

	alert.SquadID = ctx.SquadID
	alert.SquadMembers = online
	m.g.groups.Publish(OperationsGroup(), EventChaseAlert, alert, s.conn.ID())
	m.log.Info("squad started a chase",
		zap.String("squad", ctx.SquadID), zap.String("occurrence", occurrence.ID))
	return nil
}

// FinishChase terminates the occurrence and moves everyone in its group
// back to the pool matching their role.
func (m *OccurrenceManager) FinishChase(s *session) error {
	ctx := s.ctx
	occurrenceID := ctx.Occurrence()
	if occurrenceID == "" {
		return fmt.Errorf("%w: no active occurrence", ErrInvalidState)
	}

	err := m.g.repo.FinishOccurrence(occurrenceID, m.g.now().UTC())
	if notFound(err) {
		return fmt.Errorf("%w: occurrence %s is not in progress", ErrInvalidState, occurrenceID)
	}
	if err != nil {
		return err
	}

	group := OccurrenceGroup(occurrenceID)
	m.g.groups.Publish(group, EventSquadFinishChase, nil, s.conn.ID())
	m.g.groups.Publish(group, EventSupportFinishChase, finishChasePayload{
		SquadID:      ctx.SquadID,
		SquadMembers: ctx.OnlinePeers(),
		Requester:    s.conn.ID(),
	}, s.conn.ID())

	for _, conn := range m.g.groups.Members(group) {
		agent := m.g.session(conn.ID())
		if agent == nil {
			continue
		}
		agent.ctx.SetOccurrence("")
		m.g.groups.Leave(group, conn)
		if agent.ctx.WorkKind == models.WorkPatrolling {
			m.g.groups.Join(PatrolGroup(), conn)
		} else {
			m.g.groups.Join(OperationsGroup(), conn)
		}
	}

	m.log.Info("chase finished", zap.String("occurrence", occurrenceID))
	return nil
}

// AcceptChase binds an operator's work session to a running occurrence and
// moves the operator from the operations pool into the occurrence group.
// Idempotent per operator.
func (m *OccurrenceManager) AcceptChase(s *session, occurrenceID string) error {
	ctx := s.ctx
	if ctx.WorkKind != models.WorkOperations {
		return fmt.Errorf("%w: only operators accept chases", ErrInvalidState)
	}
	workID := ctx.Work()
	if workID == "" {
		return fmt.Errorf("%w: no active work session", ErrInvalidState)
	}

	if err := m.g.repo.SetOccurrenceOperator(occurrenceID, workID); err != nil {
		return fmt.Errorf("accepting chase: %w", err)
	}
	if err := m.g.repo.AppendWorkOccurrence(workID, occurrenceID); err != nil {
		return err
	}
	if err := m.g.repo.AppendUserReference(ctx.SubjectID, "occurrences", occurrenceID); err != nil {
		return err
	}

	m.g.groups.Leave(OperationsGroup(), s.conn)
	m.joinOccurrence(s.conn, ctx, occurrenceID)
	m.log.Info("operator is supporting the chase",
		zap.String("conn", s.conn.ID()), zap.String("occurrence", occurrenceID))
	return nil
}

// SupportRequest asks one member of every other squad, and every solo
// patrol, for backup on the caller's occurrence.
func (m *OccurrenceManager) SupportRequest(s *session) error {
	ctx := s.ctx
	occurrenceID := ctx.Occurrence()
	if occurrenceID == "" {
		return fmt.Errorf("%w: no active occurrence", ErrInvalidState)
	}

	for _, key := range m.g.groups.Keys(GroupSquad) {
		if key.ID == ctx.SquadID {
			continue
		}
		if members := m.g.groups.Members(key); len(members) > 0 {
			members[0].Send(EventPolicesSupportReq, occurrenceID)
		}
	}
	m.g.groups.Publish(SoloPatrolGroup(), EventPolicesSupportReq, occurrenceID, s.conn.ID())

	m.log.Info("backup requested", zap.String("conn", s.conn.ID()), zap.String("occurrence", occurrenceID))
	return nil
}

// AcceptSupport registers the caller's squad (or the lone caller) on the
// occurrence backup set and joins them to the occurrence group. Duplicate
// registration is a no-op.
func (m *OccurrenceManager) AcceptSupport(s *session, occurrenceID string) error {
	ctx := s.ctx

	if ctx.SquadID == "" {
		if err := m.g.repo.AddOccurrenceBackup(occurrenceID, ctx.SubjectID); err != nil {
			return fmt.Errorf("accepting support: %w", err)
		}
		if err := m.g.repo.AppendUserReference(ctx.SubjectID, "supported", occurrenceID); err != nil {
			return err
		}
		m.joinOccurrence(s.conn, ctx, occurrenceID)
		m.log.Info("solo police is supporting the chase",
			zap.String("conn", s.conn.ID()), zap.String("occurrence", occurrenceID))
		return nil
	}

	if err := m.g.repo.AddOccurrenceBackup(occurrenceID, ctx.SquadID); err != nil {
		return fmt.Errorf("accepting support: %w", err)
	}
	squad, err := m.g.repo.GetSquad(ctx.SquadID)
	if err != nil {
		return fmt.Errorf("accepting support: %w", err)
	}
	for _, member := range squad.Members {
		if err := m.g.repo.AppendUserReference(member, "supported", occurrenceID); err != nil {
			return err
		}
	}

	m.g.groups.Publish(SquadGroup(ctx.SquadID), EventCalledToSupport, nil)
	for _, connID := range ctx.OnlinePeers() {
		if peer := m.g.session(connID); peer != nil {
			m.joinOccurrence(peer.conn, peer.ctx, occurrenceID)
		}
	}
	m.joinOccurrence(s.conn, ctx, occurrenceID)
	m.log.Info("squad is supporting the chase",
		zap.String("squad", ctx.SquadID), zap.String("occurrence", occurrenceID))
	return nil
}

// LeaveSupport withdraws the caller's squad from an occurrence it was
// backing up and tells the occurrence group to drop their markers.
func (m *OccurrenceManager) LeaveSupport(s *session) error {
	ctx := s.ctx
	occurrenceID := ctx.Occurrence()
	if occurrenceID == "" {
		return fmt.Errorf("%w: no active occurrence", ErrInvalidState)
	}
	group := OccurrenceGroup(occurrenceID)

	if ctx.SquadID != "" {
		m.g.groups.Publish(SquadGroup(ctx.SquadID), EventSquadLeaveSupport, nil, s.conn.ID())
	}

	if ctx.Aggregate() {
		m.g.groups.Publish(group, EventSupportCleanUp, ctx.SquadID, s.conn.ID())
	} else {
		m.g.groups.Publish(group, EventSupportCleanUp, s.conn.ID(), s.conn.ID())
		for _, connID := range ctx.OnlinePeers() {
			m.g.groups.Publish(group, EventSupportCleanUp, connID, s.conn.ID())
		}
	}

	for _, connID := range ctx.OnlinePeers() {
		if peer := m.g.session(connID); peer != nil {
			peer.ctx.SetOccurrence("")
			m.g.groups.Leave(group, peer.conn)
		}
	}
	ctx.SetOccurrence("")
	m.g.groups.Leave(group, s.conn)

	m.log.Info("squad left the occurrence",
		zap.String("squad", ctx.SquadID), zap.String("occurrence", occurrenceID))
	return nil
}

func (m *OccurrenceManager) joinOccurrence(conn Conn, ctx *ConnectionContext, occurrenceID string) {
	m.g.groups.Join(OccurrenceGroup(occurrenceID), conn)
	ctx.SetOccurrence(occurrenceID)
}
