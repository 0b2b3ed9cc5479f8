package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rmacedo/patrol-ops/auth"
	"github.com/rmacedo/patrol-ops/db"
	"github.com/rmacedo/patrol-ops/models"
)

// Conn is a live bidirectional connection. The websocket adapter in this
// package implements it; tests use in-memory fakes.
type Conn interface {
	ID() string
	Send(event string, payload interface{}) error
	Close() error
}

// Repository is the persistence surface the gateway consumes. *db.Store
// satisfies it.
type Repository interface {
	GetUser(id string) (*models.User, error)
	GetSquad(id string) (*models.Squad, error)
	AppendUserReference(userID, field, refID string) error

	CreateWorkSession(work *models.WorkSession) error
	GetWorkSession(id string) (*models.WorkSession, error)
	FinishWorkSession(id string, endedAt time.Time) error
	FindActiveWork(ownerRef string) (*models.WorkSession, error)
	AppendWorkOccurrence(workID, occurrenceID string) error

	CreateOccurrence(occurrence *models.Occurrence) error
	GetOccurrence(id string) (*models.Occurrence, error)
	SetOccurrenceOperator(id, operatorWorkRef string) error
	AddOccurrenceBackup(id, backupRef string) error
	AppendOccurrenceCoordinate(id string, latitude, longitude float64) error
	FinishOccurrence(id string, endedAt time.Time) error

	CreateCallForService(cfs *models.CallForService) error
	FindCallForService(squadID string) (*models.CallForService, error)
	UpdateCallForService(cfs *models.CallForService) error
	DeleteCallForService(squadID string) error
}

// Verifier checks a connection credential. A nil result means the
// credential is missing, malformed or expired.
type Verifier interface {
	Verify(token string) *auth.Claims
}

type session struct {
	conn Conn
	ctx  *ConnectionContext
}

// Gateway owns the realtime coordination state: connected sessions, the
// presence registry, broadcast groups and quorum counters. All inbound
// events flow through Dispatch.
type Gateway struct {
	repo      Repository
	verifier  Verifier
	log       *zap.Logger
	registry  *PresenceRegistry
	groups    *GroupRouter
	consensus *ConsensusCoordinator
	now       func() time.Time

	mu       sync.Mutex
	sessions map[string]*session

	work        *WorkManager
	occurrences *OccurrenceManager
	positions   *PositionRelay
}

func NewGateway(repo Repository, verifier Verifier, logger *zap.Logger) *Gateway {
	g := &Gateway{
		repo:      repo,
		verifier:  verifier,
		log:       logger.Named("realtime"),
		registry:  NewPresenceRegistry(),
		groups:    NewGroupRouter(),
		consensus: NewConsensusCoordinator(),
		now:       time.Now,
		sessions:  make(map[string]*session),
	}
	g.work = &WorkManager{g: g, log: g.log.Named("work")}
	g.occurrences = &OccurrenceManager{g: g, log: g.log.Named("occurrence")}
	g.positions = &PositionRelay{g: g, log: g.log.Named("position")}
	return g
}

func (g *Gateway) addSession(conn Conn, ctx *ConnectionContext) *session {
	s := &session{conn: conn, ctx: ctx}
	g.mu.Lock()
	g.sessions[conn.ID()] = s
	g.mu.Unlock()
	return s
}

func (g *Gateway) session(connID string) *session {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sessions[connID]
}

func (g *Gateway) removeSession(connID string) {
	g.mu.Lock()
	delete(g.sessions, connID)
	g.mu.Unlock()
}

// sessionForSubject resolves a subject id to its live session, if online.
func (g *Gateway) sessionForSubject(subjectID string) *session {
	connID, ok := g.registry.Lookup(subjectID)
	if !ok {
		return nil
	}
	return g.session(connID)
}

// Dispatch routes one inbound event from a connection to its handler.
// Domain errors are converted into a caller-visible error event; they are
// never fatal to the connection.
func (g *Gateway) Dispatch(conn Conn, event string, data json.RawMessage) {
	s := g.session(conn.ID())
	if s == nil {
		g.log.Warn("event from unbound connection", zap.String("conn", conn.ID()), zap.String("event", event))
		return
	}

	var err error
	switch event {
	case EventStartWork:
		err = g.work.StartWork(s)
	case EventAcceptStartWork:
		err = g.work.AcceptStartWork(s)
	case EventFinishWork:
		err = g.work.FinishWork(s)
	case EventAcceptFinishWork:
		err = g.work.AcceptFinishWork(s)
	case EventPolicePosition:
		var coords []float64
		if err = decodeCoords(data, &coords); err == nil {
			err = g.positions.PatrolPosition(s, coords)
		}
	case EventOccurrencePosition:
		var coords []float64
		if err = decodeCoords(data, &coords); err == nil {
			err = g.positions.OccurrencePosition(s, coords)
		}
	case EventSupportPosition:
		var coords []float64
		if err = decodeCoords(data, &coords); err == nil {
			err = g.positions.SupportPosition(s, coords)
		}
	case EventStartChase:
		err = g.occurrences.StartChase(s)
	case EventFinishChase:
		err = g.occurrences.FinishChase(s)
	case EventAcceptChase:
		var occurrenceID string
		if err = json.Unmarshal(data, &occurrenceID); err == nil {
			err = g.occurrences.AcceptChase(s, occurrenceID)
		}
	case EventSupportRequest:
		err = g.occurrences.SupportRequest(s)
	case EventAcceptSupport:
		var occurrenceID string
		if err = json.Unmarshal(data, &occurrenceID); err == nil {
			err = g.occurrences.AcceptSupport(s, occurrenceID)
		}
	case EventLeaveSupport:
		err = g.occurrences.LeaveSupport(s)
	case EventSquadToggleCoords:
		var aggregate bool
		if err = json.Unmarshal(data, &aggregate); err == nil {
			err = g.positions.ToggleSquadCoords(s, aggregate)
		}
	case EventOccToggleCoords:
		var aggregate bool
		if err = json.Unmarshal(data, &aggregate); err == nil {
			err = g.positions.ToggleOccurrenceCoords(s, aggregate)
		}
	default:
		g.log.Warn("unknown event", zap.String("conn", conn.ID()), zap.String("event", event))
		return
	}

	if err != nil {
		g.reportError(s, event, err)
	}
}

func (g *Gateway) reportError(s *session, event string, err error) {
	g.log.Warn("event failed",
		zap.String("conn", s.conn.ID()),
		zap.String("event", event),
		zap.Error(err))
	s.conn.Send(EventError, errorPayload{Event: event, Reason: err.Error()})
}

func decodeCoords(data json.RawMessage, coords *[]float64) error {
	if err := json.Unmarshal(data, coords); err != nil {
		return err
	}
	if len(*coords) != 2 {
		return fmt.Errorf("%w: expected [lat, lon]", ErrInvalidState)
	}
	return nil
}

// notFound reports whether an error is the repository's missing-entity
// error; callers abort the current operation on it.
func notFound(err error) bool {
	return errors.Is(err, db.ErrNotFound)
}
