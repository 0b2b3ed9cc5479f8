package realtime

import (
	"sort"
	"sync"
)

type GroupKind string

const (
	GroupOperations GroupKind = "operations"
	GroupPatrol     GroupKind = "patrolling"
	GroupSoloPatrol GroupKind = "soloPatrol"
	GroupSquad      GroupKind = "squad"
	GroupOccurrence GroupKind = "occurrence"
)

// GroupKey identifies a broadcast group. Pool groups (operations, patrol,
// solo patrol) have an empty ID; squad and occurrence groups are keyed by
// entity id. Replaces stringly-typed room names.
type GroupKey struct {
	Kind GroupKind
	ID   string
}

func OperationsGroup() GroupKey         { return GroupKey{Kind: GroupOperations} }
func PatrolGroup() GroupKey             { return GroupKey{Kind: GroupPatrol} }
func SoloPatrolGroup() GroupKey         { return GroupKey{Kind: GroupSoloPatrol} }
func SquadGroup(id string) GroupKey     { return GroupKey{Kind: GroupSquad, ID: id} }
func OccurrenceGroup(id string) GroupKey { return GroupKey{Kind: GroupOccurrence, ID: id} }

// GroupRouter keeps named broadcast groups of live connections. Publishing
// snapshots the membership at call time and delivers best-effort: a member
// leaving mid-publish may or may not receive the message.
type GroupRouter struct {
	mu     sync.RWMutex
	groups map[GroupKey]map[string]Conn
}

func NewGroupRouter() *GroupRouter {
	return &GroupRouter{groups: make(map[GroupKey]map[string]Conn)}
}

func (r *GroupRouter) Join(key GroupKey, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	members, ok := r.groups[key]
	if !ok {
		members = make(map[string]Conn)
		r.groups[key] = members
	}
	members[conn.ID()] = conn
}

func (r *GroupRouter) Leave(key GroupKey, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(key, conn.ID())
}

// LeaveAll removes the connection from every group it joined.
func (r *GroupRouter) LeaveAll(conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key := range r.groups {
		r.removeLocked(key, conn.ID())
	}
}

func (r *GroupRouter) removeLocked(key GroupKey, connID string) {
	members, ok := r.groups[key]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(r.groups, key)
	}
}

// Publish sends an event to every current member of the group except the
// listed connection ids.
func (r *GroupRouter) Publish(key GroupKey, event string, payload interface{}, except ...string) {
	for _, conn := range r.Members(key) {
		if contains(except, conn.ID()) {
			continue
		}
		conn.Send(event, payload)
	}
}

// Members returns a snapshot of the group's connections, ordered by
// connection id.
func (r *GroupRouter) Members(key GroupKey) []Conn {
	r.mu.RLock()
	members := make([]Conn, 0, len(r.groups[key]))
	for _, conn := range r.groups[key] {
		members = append(members, conn)
	}
	r.mu.RUnlock()
	sort.Slice(members, func(i, j int) bool { return members[i].ID() < members[j].ID() })
	return members
}

// MemberIDs returns the connection ids of the group's current members.
func (r *GroupRouter) MemberIDs(key GroupKey) []string {
	members := r.Members(key)
	ids := make([]string, len(members))
	for i, conn := range members {
		ids[i] = conn.ID()
	}
	return ids
}

// Keys lists the groups of a kind that currently have members.
func (r *GroupRouter) Keys(kind GroupKind) []GroupKey {
	r.mu.RLock()
	var keys []GroupKey
	for key := range r.groups {
		if key.Kind == kind {
			keys = append(keys, key)
		}
	}
	r.mu.RUnlock()
	sort.Slice(keys, func(i, j int) bool { return keys[i].ID < keys[j].ID })
	return keys
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
