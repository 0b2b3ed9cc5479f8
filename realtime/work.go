package realtime

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rmacedo/patrol-ops/models"
)

// WorkManager drives the work session lifecycle: solo and operator starts,
// the quorum-gated squad start/finish flows and the call-for-service queue
// for offline squad members.
type WorkManager struct {
	g   *Gateway
	log *zap.Logger
}

func (m *WorkManager) StartWork(s *session) error {
	ctx := s.ctx
	if workID := ctx.Work(); workID != "" {
		return fmt.Errorf("%w: work %s already in progress", ErrInvalidState, workID)
	}

	if ctx.WorkKind != models.WorkPatrolling {
		return m.startOperator(s)
	}
	if ctx.SquadID == "" {
		return m.startSolo(s)
	}
	return m.requestSquadStart(s)
}

func (m *WorkManager) startOperator(s *session) error {
	if err := m.requireIdle(s.ctx.SubjectID); err != nil {
		return err
	}
	work, err := m.createWork(s.ctx.SubjectID, models.WorkOperations)
	if err != nil {
		return err
	}
	if err := m.g.repo.AppendUserReference(s.ctx.SubjectID, "work", work.ID); err != nil {
		return err
	}
	s.ctx.SetWork(work.ID)
	m.log.Info("operator started to work", zap.String("conn", s.conn.ID()), zap.String("work", work.ID))
	return nil
}

func (m *WorkManager) startSolo(s *session) error {
	if err := m.requireIdle(s.ctx.SubjectID); err != nil {
		return err
	}
	s.conn.Send(EventStartAlone, nil)
	work, err := m.createWork(s.ctx.SubjectID, models.WorkPatrolling)
	if err != nil {
		return err
	}
	if err := m.g.repo.AppendUserReference(s.ctx.SubjectID, "work", work.ID); err != nil {
		return err
	}
	s.ctx.SetWork(work.ID)
	m.log.Info("solo police started to work", zap.String("conn", s.conn.ID()), zap.String("work", work.ID))
	return nil
}

// requestSquadStart opens a quorum sized to the online member count and,
// when members are offline, records a call-for-service entry so they can
// resume the flow on reconnect.
func (m *WorkManager) requestSquadStart(s *session) error {
	ctx := s.ctx
	if err := m.requireIdle(ctx.SquadID); err != nil {
		return err
	}

	online := 1 + len(ctx.OnlinePeers())
	if err := m.g.consensus.Open(ctx.SquadID, online); err != nil {
		return err
	}

	s.conn.Send(EventWaitForSquad, nil)
	m.g.groups.Publish(SquadGroup(ctx.SquadID), EventSquadStartWork, nil, s.conn.ID())

	if offline := ctx.OfflinePeers(); len(offline) > 0 {
		cfs := &models.CallForService{
			SquadID:        ctx.SquadID,
			RequesterID:    ctx.SubjectID,
			OfflineMembers: offline,
		}
		if err := m.g.repo.CreateCallForService(cfs); err != nil {
			return err
		}
	}

	m.log.Info("squad member requested to start work",
		zap.String("conn", s.conn.ID()),
		zap.String("squad", ctx.SquadID),
		zap.Int("quorum", online))
	return nil
}

// reopenSquadQuorum restarts the quorum for a pending call-for-service
// whose counter no longer exists (the counter is ephemeral, the queue
// entry durable). The resuming connection was already prompted.
func (m *WorkManager) reopenSquadQuorum(conn Conn, ctx *ConnectionContext) {
	online := 1 + len(ctx.OnlinePeers())
	if err := m.g.consensus.Open(ctx.SquadID, online); err != nil {
		return
	}
	m.g.groups.Publish(SquadGroup(ctx.SquadID), EventSquadStartWork, nil, conn.ID())
}

func (m *WorkManager) AcceptStartWork(s *session) error {
	ctx := s.ctx
	if ctx.SquadID == "" {
		return fmt.Errorf("%w: not a squad member", ErrInvalidState)
	}

	satisfied, err := m.g.consensus.Ack(ctx.SquadID)
	if err != nil {
		return fmt.Errorf("%w: no pending squad start", ErrInvalidState)
	}
	if !satisfied {
		return nil
	}

	work, err := m.createWork(ctx.SquadID, models.WorkPatrolling)
	if err != nil {
		return err
	}

	squad, err := m.g.repo.GetSquad(ctx.SquadID)
	if err != nil {
		return fmt.Errorf("starting squad work: %w", err)
	}
	for _, member := range squad.Members {
		if err := m.g.repo.AppendUserReference(member, "work", work.ID); err != nil {
			return err
		}
	}

	// The start is no longer blocked on anyone.
	m.g.repo.DeleteCallForService(ctx.SquadID)

	m.propagateWork(ctx, work.ID)
	m.g.groups.Publish(SquadGroup(ctx.SquadID), EventReadyForWork, nil)
	m.log.Info("squad started their work", zap.String("squad", ctx.SquadID), zap.String("work", work.ID))
	return nil
}

func (m *WorkManager) FinishWork(s *session) error {
	ctx := s.ctx
	workID := ctx.Work()
	if workID == "" {
		m.log.Warn("no work to finish", zap.String("conn", s.conn.ID()))
		if ctx.SquadID != "" {
			m.g.groups.Publish(SquadGroup(ctx.SquadID), EventReadyForFinishWork, nil)
		} else {
			s.conn.Send(EventReadyForFinishWork, nil)
		}
		return fmt.Errorf("%w: no active work session", ErrInvalidState)
	}

	if ctx.WorkKind != models.WorkPatrolling {
		if err := m.finishSession(workID); err != nil {
			return err
		}
		ctx.SetWork("")
		m.g.groups.Publish(OperationsGroup(), EventPoliceFinishedWork,
			finishedWorkPayload{Requester: s.conn.ID()}, s.conn.ID())
		m.log.Info("operator finished work", zap.String("conn", s.conn.ID()), zap.String("work", workID))
		return nil
	}

	if ctx.SquadID == "" {
		if err := m.finishSession(workID); err != nil {
			return err
		}
		ctx.SetWork("")
		s.conn.Send(EventReadyForFinishWork, nil)
		m.g.groups.Publish(OperationsGroup(), EventPoliceFinishedWork,
			finishedWorkPayload{Requester: s.conn.ID()}, s.conn.ID())
		m.log.Info("solo police finished work", zap.String("conn", s.conn.ID()), zap.String("work", workID))
		return nil
	}

	othersOnline := len(ctx.OnlinePeers())
	if othersOnline == 0 {
		// Last member standing finishes for the whole squad.
		if err := m.finishSession(workID); err != nil {
			return err
		}
		ctx.SetWork("")
		m.g.groups.Publish(SquadGroup(ctx.SquadID), EventReadyForFinishWork, nil)
		m.g.groups.Publish(OperationsGroup(), EventPoliceFinishedWork,
			finishedWorkPayload{SquadID: ctx.SquadID, Requester: s.conn.ID()}, s.conn.ID())
		m.log.Info("squad work finished by last online member",
			zap.String("squad", ctx.SquadID), zap.String("work", workID))
		return nil
	}

	if err := m.g.consensus.Open(ctx.SquadID, othersOnline+1); err != nil {
		return err
	}
	m.g.groups.Publish(SquadGroup(ctx.SquadID), EventSquadFinishWork, nil, s.conn.ID())
	m.log.Info("squad member requested to finish work",
		zap.String("conn", s.conn.ID()), zap.String("squad", ctx.SquadID))
	return nil
}

func (m *WorkManager) AcceptFinishWork(s *session) error {
	ctx := s.ctx
	if ctx.SquadID == "" {
		return fmt.Errorf("%w: not a squad member", ErrInvalidState)
	}

	satisfied, err := m.g.consensus.Ack(ctx.SquadID)
	if err != nil {
		return fmt.Errorf("%w: no pending squad finish", ErrInvalidState)
	}
	if !satisfied {
		return nil
	}

	workID := ctx.Work()
	if err := m.finishSession(workID); err != nil {
		return err
	}
	m.propagateWork(ctx, "")
	m.g.groups.Publish(SquadGroup(ctx.SquadID), EventReadyForFinishWork, nil)

	// Operations drops every marker of the squad's members.
	for _, connID := range m.g.groups.MemberIDs(SquadGroup(ctx.SquadID)) {
		m.g.groups.Publish(OperationsGroup(), EventPoliceFinishedWork,
			finishedWorkPayload{SquadID: ctx.SquadID, Requester: connID})
	}
	m.log.Info("squad finished their work", zap.String("squad", ctx.SquadID), zap.String("work", workID))
	return nil
}

func (m *WorkManager) createWork(ownerRef string, kind models.WorkKind) (*models.WorkSession, error) {
	work := &models.WorkSession{
		ID:        uuid.NewString(),
		OwnerRef:  ownerRef,
		Kind:      kind,
		Status:    models.WorkInProgress,
		StartedAt: m.g.now().UTC(),
	}
	if err := m.g.repo.CreateWorkSession(work); err != nil {
		return nil, err
	}
	return work, nil
}

func (m *WorkManager) finishSession(workID string) error {
	err := m.g.repo.FinishWorkSession(workID, m.g.now().UTC())
	if notFound(err) {
		return fmt.Errorf("%w: work %s is not in progress", ErrInvalidState, workID)
	}
	return err
}

// requireIdle enforces at most one in-progress session per owner.
func (m *WorkManager) requireIdle(ownerRef string) error {
	work, err := m.g.repo.FindActiveWork(ownerRef)
	if err != nil {
		if notFound(err) {
			return nil
		}
		return err
	}
	return fmt.Errorf("%w: owner %s already has work %s in progress", ErrInvalidState, ownerRef, work.ID)
}

// propagateWork sets (or clears) the active work id on the caller and on
// every online squad peer.
func (m *WorkManager) propagateWork(ctx *ConnectionContext, workID string) {
	ctx.SetWork(workID)
	for _, connID := range ctx.OnlinePeers() {
		if peer := m.g.session(connID); peer != nil {
			peer.ctx.SetWork(workID)
		}
	}
}
