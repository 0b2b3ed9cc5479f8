package realtime

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/rmacedo/patrol-ops/models"
)

// Connect verifies the credential, binds the connection context, joins the
// role-appropriate groups and wires squad presence. A nil/invalid
// credential returns ErrUnauthorized and no session is created.
func (g *Gateway) Connect(conn Conn, token string) (*ConnectionContext, error) {
	claims := g.verifier.Verify(token)
	if claims == nil {
		return nil, ErrUnauthorized
	}

	ctx := &ConnectionContext{SubjectID: claims.SubjectID, Role: claims.Role}

	if claims.Role == models.TypeOperator {
		ctx.WorkKind = models.WorkOperations
		g.addSession(conn, ctx)
		g.registry.Bind(ctx.SubjectID, conn.ID())
		g.groups.Join(OperationsGroup(), conn)
		g.log.Info("operator connected",
			zap.String("conn", conn.ID()),
			zap.String("subject", ctx.SubjectID))
		return ctx, nil
	}

	ctx.WorkKind = models.WorkPatrolling
	if err := g.bindPolice(conn, ctx); err != nil {
		return nil, err
	}
	return ctx, nil
}

func (g *Gateway) bindPolice(conn Conn, ctx *ConnectionContext) error {
	user, err := g.repo.GetUser(ctx.SubjectID)
	if err != nil {
		return fmt.Errorf("binding police %s: %w", ctx.SubjectID, err)
	}

	g.addSession(conn, ctx)
	g.registry.Bind(ctx.SubjectID, conn.ID())
	g.groups.Join(PatrolGroup(), conn)

	if user.SquadID == "" {
		g.groups.Join(SoloPatrolGroup(), conn)
		g.log.Info("solo police connected",
			zap.String("conn", conn.ID()),
			zap.String("subject", ctx.SubjectID))
		return nil
	}

	squad, err := g.repo.GetSquad(user.SquadID)
	if err != nil {
		g.dropSession(conn, ctx)
		return fmt.Errorf("binding squad %s: %w", user.SquadID, err)
	}

	ctx.SquadID = squad.ID
	ctx.SetAggregate(true)
	ctx.initPeers(squad.Members)
	g.groups.Join(SquadGroup(squad.ID), conn)
	g.bindPeers(conn, ctx)

	g.log.Info("police connected",
		zap.String("conn", conn.ID()),
		zap.String("subject", ctx.SubjectID),
		zap.String("squad", ctx.SquadID))

	g.resumeCallForService(conn, ctx)
	return nil
}

// bindPeers fills the connection's peer map from the presence registry and
// symmetrically records this connection on every online peer.
func (g *Gateway) bindPeers(conn Conn, ctx *ConnectionContext) {
	for subjectID := range ctx.Peers() {
		peer := g.sessionForSubject(subjectID)
		if peer == nil {
			continue
		}
		ctx.setPeer(subjectID, peer.conn.ID())
		peer.ctx.setPeer(ctx.SubjectID, conn.ID())
	}
}

// resumeCallForService handles a reconnect into a pending squad start
// request: the subject leaves the offline list, is prompted to resume the
// flow, and the open quorum grows so their ack is still required. When no
// quorum is open anymore the squad-start path is re-invoked for the
// members currently online.
func (g *Gateway) resumeCallForService(conn Conn, ctx *ConnectionContext) {
	cfs, err := g.repo.FindCallForService(ctx.SquadID)
	if err != nil {
		if !notFound(err) {
			g.log.Error("call-for-service lookup failed", zap.String("squad", ctx.SquadID), zap.Error(err))
		}
		return
	}

	remaining := cfs.OfflineMembers[:0:0]
	listed := false
	for _, id := range cfs.OfflineMembers {
		if id == ctx.SubjectID {
			listed = true
			continue
		}
		remaining = append(remaining, id)
	}
	if !listed {
		return
	}

	cfs.OfflineMembers = remaining
	if len(remaining) == 0 {
		err = g.repo.DeleteCallForService(ctx.SquadID)
	} else {
		err = g.repo.UpdateCallForService(cfs)
	}
	if err != nil {
		g.log.Error("call-for-service update failed", zap.String("squad", ctx.SquadID), zap.Error(err))
		return
	}

	conn.Send(EventSquadStartWork, nil)
	if !g.consensus.Grow(ctx.SquadID) {
		// The counter is ephemeral; reopen the quorum among whoever is
		// online now so the pending start can still complete.
		g.work.reopenSquadQuorum(conn, ctx)
	}
	g.log.Info("resumed pending squad start",
		zap.String("subject", ctx.SubjectID),
		zap.String("squad", ctx.SquadID),
		zap.Int("still_offline", len(remaining)))
}

// Disconnect tears down a connection: Operations is told the member left,
// the presence entry is removed and every peer map forgets the connection.
// An open quorum is left as-is.
func (g *Gateway) Disconnect(conn Conn) {
	s := g.session(conn.ID())
	if s == nil {
		return
	}

	payload := finishedWorkPayload{SquadID: s.ctx.SquadID, Requester: conn.ID()}
	g.groups.Publish(OperationsGroup(), EventPoliceFinishedWork, payload, conn.ID())

	for subjectID := range s.ctx.Peers() {
		if peer := g.sessionForSubject(subjectID); peer != nil {
			peer.ctx.setPeer(s.ctx.SubjectID, "")
		}
	}

	// When the last online member leaves, nobody can ack an open quorum
	// anymore; drop it. A reconnect reopens it through the
	// call-for-service path.
	if s.ctx.SquadID != "" && len(s.ctx.OnlinePeers()) == 0 {
		g.consensus.Abandon(s.ctx.SquadID)
	}

	g.dropSession(conn, s.ctx)
	g.log.Info("client left",
		zap.String("conn", conn.ID()),
		zap.String("subject", s.ctx.SubjectID))
}

func (g *Gateway) dropSession(conn Conn, ctx *ConnectionContext) {
	g.registry.Unbind(ctx.SubjectID, conn.ID())
	g.groups.LeaveAll(conn)
	g.removeSession(conn.ID())
}
