package realtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmacedo/patrol-ops/models"
)

func TestOperatorStartAndFinishWork(t *testing.T) {
	g, repo, v := newTestGateway(t)
	fixed := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return fixed }
	repo.addOperator("op-1")
	repo.addOperator("op-2")

	conn := connect(t, g, v, "op-1", models.TypeOperator)
	watcher := connect(t, g, v, "op-2", models.TypeOperator)

	g.Dispatch(conn, EventStartWork, nil)

	work := repo.workByOwner("op-1")
	require.NotNil(t, work)
	assert.Equal(t, models.WorkOperations, work.Kind)
	assert.Equal(t, models.WorkInProgress, work.Status)
	assert.Equal(t, fixed, work.StartedAt)
	assert.Equal(t, []string{work.ID}, repo.userRefs("op-1", "work"))

	s := g.session(conn.ID())
	require.NotNil(t, s)
	assert.Equal(t, work.ID, s.ctx.Work())

	g.Dispatch(conn, EventFinishWork, nil)

	finished, err := repo.GetWorkSession(work.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkFinished, finished.Status)
	require.NotNil(t, finished.EndedAt)
	assert.Equal(t, fixed, *finished.EndedAt)
	assert.Empty(t, s.ctx.Work())
	assert.True(t, watcher.has(EventPoliceFinishedWork))
}

func TestSoloPoliceStartWork(t *testing.T) {
	g, repo, v := newTestGateway(t)
	repo.addPolice("lone-1", "")

	conn := connect(t, g, v, "lone-1", models.TypePolice)
	g.Dispatch(conn, EventStartWork, nil)

	assert.True(t, conn.has(EventStartAlone))
	work := repo.workByOwner("lone-1")
	require.NotNil(t, work)
	assert.Equal(t, models.WorkPatrolling, work.Kind)
}

func TestStartWorkTwiceRejected(t *testing.T) {
	g, repo, v := newTestGateway(t)
	repo.addPolice("lone-1", "")

	conn := connect(t, g, v, "lone-1", models.TypePolice)
	g.Dispatch(conn, EventStartWork, nil)
	require.NotNil(t, repo.workByOwner("lone-1"))

	conn.reset()
	g.Dispatch(conn, EventStartWork, nil)
	assert.True(t, conn.has(EventError))
}

func TestStartWorkRejectedWithDanglingSession(t *testing.T) {
	g, repo, v := newTestGateway(t)
	repo.addPolice("lone-1", "")

	// A session from a previous connection is still in progress.
	require.NoError(t, repo.CreateWorkSession(&models.WorkSession{
		ID:       "w-old",
		OwnerRef: "lone-1",
		Kind:     models.WorkPatrolling,
		Status:   models.WorkInProgress,
	}))

	conn := connect(t, g, v, "lone-1", models.TypePolice)
	g.Dispatch(conn, EventStartWork, nil)

	assert.True(t, conn.has(EventError))
	assert.False(t, conn.has(EventStartAlone))
}

func TestSquadStartWorkQuorum(t *testing.T) {
	g, repo, v := newTestGateway(t)
	repo.addPolice("alice", "squad-1")
	repo.addPolice("bob", "squad-1")
	repo.addPolice("carol", "squad-1")

	aliceConn := connect(t, g, v, "alice", models.TypePolice)
	bobConn := connect(t, g, v, "bob", models.TypePolice)
	carolConn := connect(t, g, v, "carol", models.TypePolice)

	g.Dispatch(aliceConn, EventStartWork, nil)

	assert.True(t, aliceConn.has(EventWaitForSquad))
	assert.True(t, bobConn.has(EventSquadStartWork))
	assert.True(t, carolConn.has(EventSquadStartWork))
	assert.False(t, aliceConn.has(EventSquadStartWork), "requester is not prompted")

	// Everyone online, nobody offline: no call-for-service entry.
	_, err := repo.FindCallForService("squad-1")
	assert.True(t, notFound(err))

	g.Dispatch(aliceConn, EventAcceptStartWork, nil)
	g.Dispatch(bobConn, EventAcceptStartWork, nil)
	assert.Nil(t, repo.workByOwner("squad-1"), "two of three acks is not enough")

	g.Dispatch(carolConn, EventAcceptStartWork, nil)

	work := repo.workByOwner("squad-1")
	require.NotNil(t, work)
	assert.Equal(t, models.WorkPatrolling, work.Kind)

	// Every member gets the work reference, online or not.
	for _, member := range []string{"alice", "bob", "carol"} {
		assert.Equal(t, []string{work.ID}, repo.userRefs(member, "work"))
	}

	// The whole squad group hears the confirmation and shares the work id.
	for _, conn := range []*fakeConn{aliceConn, bobConn, carolConn} {
		assert.True(t, conn.has(EventReadyForWork))
		s := g.session(conn.ID())
		require.NotNil(t, s)
		assert.Equal(t, work.ID, s.ctx.Work())
	}
}

func TestSquadStartWorkSecondRequestRejected(t *testing.T) {
	g, repo, v := newTestGateway(t)
	repo.addPolice("alice", "squad-1")
	repo.addPolice("bob", "squad-1")

	aliceConn := connect(t, g, v, "alice", models.TypePolice)
	bobConn := connect(t, g, v, "bob", models.TypePolice)

	g.Dispatch(aliceConn, EventStartWork, nil)
	g.Dispatch(bobConn, EventStartWork, nil)

	assert.True(t, bobConn.has(EventError))
	left, open := g.consensus.Pending("squad-1")
	require.True(t, open)
	assert.Equal(t, 2, left, "first quorum untouched")
}

func TestAcceptStartWorkWithoutPending(t *testing.T) {
	g, repo, v := newTestGateway(t)
	repo.addPolice("alice", "squad-1")
	repo.addPolice("lone-1", "")

	aliceConn := connect(t, g, v, "alice", models.TypePolice)
	loneConn := connect(t, g, v, "lone-1", models.TypePolice)

	g.Dispatch(aliceConn, EventAcceptStartWork, nil)
	assert.True(t, aliceConn.has(EventError))

	g.Dispatch(loneConn, EventAcceptStartWork, nil)
	assert.True(t, loneConn.has(EventError), "solo police cannot ack squad starts")
}

func TestSquadFinishWorkQuorum(t *testing.T) {
	g, repo, v := newTestGateway(t)
	repo.addOperator("op-1")
	repo.addPolice("alice", "squad-1")
	repo.addPolice("bob", "squad-1")

	opConn := connect(t, g, v, "op-1", models.TypeOperator)
	aliceConn := connect(t, g, v, "alice", models.TypePolice)
	bobConn := connect(t, g, v, "bob", models.TypePolice)

	startSquadWork(t, g, aliceConn, bobConn)
	work := repo.workByOwner("squad-1")
	require.NotNil(t, work)
	opConn.reset()

	g.Dispatch(aliceConn, EventFinishWork, nil)
	assert.True(t, bobConn.has(EventSquadFinishWork))
	require.NotNil(t, repo.workByOwner("squad-1"), "still in progress pending acks")

	g.Dispatch(aliceConn, EventAcceptFinishWork, nil)
	g.Dispatch(bobConn, EventAcceptFinishWork, nil)

	assert.Nil(t, repo.workByOwner("squad-1"))
	finished, err := repo.GetWorkSession(work.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkFinished, finished.Status)

	for _, conn := range []*fakeConn{aliceConn, bobConn} {
		assert.True(t, conn.has(EventReadyForFinishWork))
		s := g.session(conn.ID())
		require.NotNil(t, s)
		assert.Empty(t, s.ctx.Work())
	}

	// One marker per squad connection is dropped from the operations view.
	assert.Len(t, opConn.received(EventPoliceFinishedWork), 2)
}

func TestLastOnlineMemberFinishesImmediately(t *testing.T) {
	g, repo, v := newTestGateway(t)
	repo.addPolice("alice", "squad-1")
	repo.addPolice("bob", "squad-1")

	aliceConn := connect(t, g, v, "alice", models.TypePolice)
	bobConn := connect(t, g, v, "bob", models.TypePolice)

	startSquadWork(t, g, aliceConn, bobConn)
	work := repo.workByOwner("squad-1")
	require.NotNil(t, work)

	g.Disconnect(bobConn)

	// No quorum needed: alice is the only member left online.
	g.Dispatch(aliceConn, EventFinishWork, nil)

	assert.Nil(t, repo.workByOwner("squad-1"))
	assert.True(t, aliceConn.has(EventReadyForFinishWork))
	_, open := g.consensus.Pending("squad-1")
	assert.False(t, open)
}

func TestFinishWorkTwiceRejected(t *testing.T) {
	g, repo, v := newTestGateway(t)
	repo.addPolice("lone-1", "")

	conn := connect(t, g, v, "lone-1", models.TypePolice)
	g.Dispatch(conn, EventStartWork, nil)
	g.Dispatch(conn, EventFinishWork, nil)
	require.Nil(t, repo.workByOwner("lone-1"))

	conn.reset()
	g.Dispatch(conn, EventFinishWork, nil)

	events := conn.received(EventError)
	require.Len(t, events, 1)
	assert.Equal(t, EventFinishWork, events[0].Payload.(errorPayload).Event)
}

// startSquadWork runs the full quorum start flow for a two-member squad.
func startSquadWork(t *testing.T, g *Gateway, first, second *fakeConn) {
	t.Helper()
	g.Dispatch(first, EventStartWork, nil)
	g.Dispatch(first, EventAcceptStartWork, nil)
	g.Dispatch(second, EventAcceptStartWork, nil)
	s := g.session(first.ID())
	require.NotNil(t, s)
	require.NotEmpty(t, s.ctx.Work(), "squad work should have started")
}
