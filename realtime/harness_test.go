package realtime

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rmacedo/patrol-ops/auth"
	"github.com/rmacedo/patrol-ops/db"
	"github.com/rmacedo/patrol-ops/models"
)

type sentEvent struct {
	Event   string
	Payload interface{}
}

type fakeConn struct {
	id string

	mu     sync.Mutex
	events []sentEvent
	closed bool
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(event string, payload interface{}) error {
	c.mu.Lock()
	c.events = append(c.events, sentEvent{Event: event, Payload: payload})
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) received(event string) []sentEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	var matched []sentEvent
	for _, e := range c.events {
		if e.Event == event {
			matched = append(matched, e)
		}
	}
	return matched
}

func (c *fakeConn) has(event string) bool { return len(c.received(event)) > 0 }

func (c *fakeConn) reset() {
	c.mu.Lock()
	c.events = nil
	c.mu.Unlock()
}

// memRepo is an in-memory Repository for gateway tests.
type memRepo struct {
	mu          sync.Mutex
	users       map[string]*models.User
	squads      map[string]*models.Squad
	works       map[string]*models.WorkSession
	occurrences map[string]*models.Occurrence
	cfs         map[string]*models.CallForService
	refs        map[string]map[string][]string
}

func newMemRepo() *memRepo {
	return &memRepo{
		users:       make(map[string]*models.User),
		squads:      make(map[string]*models.Squad),
		works:       make(map[string]*models.WorkSession),
		occurrences: make(map[string]*models.Occurrence),
		cfs:         make(map[string]*models.CallForService),
		refs:        make(map[string]map[string][]string),
	}
}

func (r *memRepo) GetUser(id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (r *memRepo) GetSquad(id string) (*models.Squad, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	squad, ok := r.squads[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	copied := *squad
	copied.Members = append([]string(nil), squad.Members...)
	return &copied, nil
}

func (r *memRepo) AppendUserReference(userID, field, refID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	fields, ok := r.refs[userID]
	if !ok {
		fields = make(map[string][]string)
		r.refs[userID] = fields
	}
	for _, existing := range fields[field] {
		if existing == refID {
			return nil
		}
	}
	fields[field] = append(fields[field], refID)
	return nil
}

func (r *memRepo) CreateWorkSession(work *models.WorkSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *work
	r.works[work.ID] = &copied
	return nil
}

func (r *memRepo) GetWorkSession(id string) (*models.WorkSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	work, ok := r.works[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	copied := *work
	return &copied, nil
}

func (r *memRepo) FinishWorkSession(id string, endedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	work, ok := r.works[id]
	if !ok || work.Status != models.WorkInProgress {
		return db.ErrNotFound
	}
	work.Status = models.WorkFinished
	work.EndedAt = &endedAt
	return nil
}

func (r *memRepo) FindActiveWork(ownerRef string) (*models.WorkSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, work := range r.works {
		if work.OwnerRef == ownerRef && work.Status == models.WorkInProgress {
			copied := *work
			return &copied, nil
		}
	}
	return nil, db.ErrNotFound
}

func (r *memRepo) AppendWorkOccurrence(workID, occurrenceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	work, ok := r.works[workID]
	if !ok {
		return db.ErrNotFound
	}
	work.Occurrences = append(work.Occurrences, occurrenceID)
	return nil
}

func (r *memRepo) CreateOccurrence(occurrence *models.Occurrence) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *occurrence
	r.occurrences[occurrence.ID] = &copied
	return nil
}

func (r *memRepo) GetOccurrence(id string) (*models.Occurrence, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	occurrence, ok := r.occurrences[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	copied := *occurrence
	copied.BackupRefs = append([]string(nil), occurrence.BackupRefs...)
	copied.Coordinates = append([]models.Coordinate(nil), occurrence.Coordinates...)
	return &copied, nil
}

func (r *memRepo) SetOccurrenceOperator(id, operatorWorkRef string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	occurrence, ok := r.occurrences[id]
	if !ok {
		return db.ErrNotFound
	}
	occurrence.OperatorWorkRef = operatorWorkRef
	return nil
}

func (r *memRepo) AddOccurrenceBackup(id, backupRef string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	occurrence, ok := r.occurrences[id]
	if !ok {
		return db.ErrNotFound
	}
	for _, ref := range occurrence.BackupRefs {
		if ref == backupRef {
			return nil
		}
	}
	occurrence.BackupRefs = append(occurrence.BackupRefs, backupRef)
	return nil
}

func (r *memRepo) AppendOccurrenceCoordinate(id string, latitude, longitude float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	occurrence, ok := r.occurrences[id]
	if !ok {
		return db.ErrNotFound
	}
	occurrence.Coordinates = append(occurrence.Coordinates, models.Coordinate{Latitude: latitude, Longitude: longitude})
	return nil
}

func (r *memRepo) FinishOccurrence(id string, endedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	occurrence, ok := r.occurrences[id]
	if !ok || occurrence.Status != models.WorkInProgress {
		return db.ErrNotFound
	}
	occurrence.Status = models.WorkFinished
	occurrence.EndedAt = &endedAt
	return nil
}

func (r *memRepo) CreateCallForService(cfs *models.CallForService) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.cfs[cfs.SquadID]; ok {
		return nil
	}
	copied := *cfs
	copied.OfflineMembers = append([]string(nil), cfs.OfflineMembers...)
	r.cfs[cfs.SquadID] = &copied
	return nil
}

func (r *memRepo) FindCallForService(squadID string) (*models.CallForService, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cfs, ok := r.cfs[squadID]
	if !ok {
		return nil, db.ErrNotFound
	}
	copied := *cfs
	copied.OfflineMembers = append([]string(nil), cfs.OfflineMembers...)
	return &copied, nil
}

func (r *memRepo) UpdateCallForService(cfs *models.CallForService) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.cfs[cfs.SquadID]; !ok {
		return db.ErrNotFound
	}
	copied := *cfs
	copied.OfflineMembers = append([]string(nil), cfs.OfflineMembers...)
	r.cfs[cfs.SquadID] = &copied
	return nil
}

func (r *memRepo) DeleteCallForService(squadID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cfs, squadID)
	return nil
}

func (r *memRepo) addPolice(id, squadID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[id] = &models.User{ID: id, Type: models.TypePolice, SquadID: squadID}
	if squadID != "" {
		squad, ok := r.squads[squadID]
		if !ok {
			squad = &models.Squad{ID: squadID, Name: "squad-" + squadID}
			r.squads[squadID] = squad
		}
		squad.Members = append(squad.Members, id)
	}
}

func (r *memRepo) addOperator(id string) {
	r.mu.Lock()
	r.users[id] = &models.User{ID: id, Type: models.TypeOperator}
	r.mu.Unlock()
}

func (r *memRepo) userRefs(userID, field string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.refs[userID][field]...)
}

func (r *memRepo) workByOwner(ownerRef string) *models.WorkSession {
	work, err := r.FindActiveWork(ownerRef)
	if err != nil {
		return nil
	}
	return work
}

type fakeVerifier struct {
	mu     sync.Mutex
	tokens map[string]*auth.Claims
}

func newFakeVerifier() *fakeVerifier {
	return &fakeVerifier{tokens: make(map[string]*auth.Claims)}
}

func (v *fakeVerifier) allow(token, subjectID string, role models.UserType) {
	v.mu.Lock()
	v.tokens[token] = &auth.Claims{SubjectID: subjectID, Role: role}
	v.mu.Unlock()
}

func (v *fakeVerifier) Verify(token string) *auth.Claims {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.tokens[token]
}

func newTestGateway(t *testing.T) (*Gateway, *memRepo, *fakeVerifier) {
	t.Helper()
	repo := newMemRepo()
	verifier := newFakeVerifier()
	return NewGateway(repo, verifier, zap.NewNop()), repo, verifier
}

// connect binds a fake connection for a subject already present in the repo.
func connect(t *testing.T, g *Gateway, v *fakeVerifier, subjectID string, role models.UserType) *fakeConn {
	t.Helper()
	token := "token-" + subjectID
	v.allow(token, subjectID, role)
	conn := &fakeConn{id: "conn-" + subjectID}
	_, err := g.Connect(conn, token)
	require.NoError(t, err)
	return conn
}
