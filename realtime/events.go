package realtime

import "encoding/json"

// Inbound events (client -> server).
const (
	EventStartWork          = "agent:startWork"
	EventAcceptStartWork    = "squad:acceptStartWork"
	EventFinishWork         = "agent:finishWork"
	EventAcceptFinishWork   = "squad:acceptFinishWork"
	EventPolicePosition     = "police:position"
	EventOccurrencePosition = "occurrence:position"
	EventSupportPosition    = "support:occurrence:position"
	EventStartChase         = "police:startChase"
	EventFinishChase        = "police:finishChase"
	EventAcceptChase        = "operations:acceptChase"
	EventSupportRequest     = "squad:supportRequest"
	EventAcceptSupport      = "police:acceptSupport"
	EventLeaveSupport       = "occurrence:leaveSupport"
	EventSquadToggleCoords  = "squad:sendSquadPosition"
	EventOccToggleCoords    = "occurrence:sendSquadPosition"
)

// Outbound events (server -> client).
const (
	EventStartAlone          = "startAlone"
	EventWaitForSquad        = "waitForSquad"
	EventSquadStartWork      = "squad:startWork"
	EventReadyForWork        = "squad:readyForWork"
	EventSquadFinishWork     = "squad:finishWork"
	EventReadyForFinishWork  = "squad:readyForFinishWork"
	EventPatrolPosition      = "patrol:position"
	EventChaserPosition      = "support:chaserPosition"
	EventSupporterPosition   = "support:position"
	EventSquadStartChase     = "squad:startChase"
	EventChaseAlert          = "operations:chaseAlert"
	EventSquadFinishChase    = "squad:finishChase"
	EventSupportFinishChase  = "support:finishChase"
	EventPolicesSupportReq   = "polices:supportRequest"
	EventCalledToSupport     = "squad:calledToSupport"
	EventSquadLeaveSupport   = "squad:leaveSupport"
	EventSupportCleanUp      = "support:cleanUp"
	EventPoliceCleanUp       = "police:cleanUp"
	EventSquadToggledCoords  = "squad:toggleSquadCoords"
	EventOccToggledCoords    = "occurrence:toggleSquadCoords"
	EventPoliceFinishedWork  = "police:finishedWork"
	EventError               = "error"
)

// Envelope is the wire frame for every message in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type errorPayload struct {
	Event  string `json:"event"`
	Reason string `json:"reason"`
}

type finishedWorkPayload struct {
	SquadID   string `json:"squadId,omitempty"`
	Requester string `json:"requester"`
}

type chaseAlertPayload struct {
	OccurrenceID string   `json:"occurrenceId"`
	SquadID      string   `json:"squadId,omitempty"`
	SquadMembers []string `json:"squadMembers,omitempty"`
	Requester    string   `json:"requester"`
}

type finishChasePayload struct {
	SquadID      string   `json:"squadId,omitempty"`
	SquadMembers []string `json:"squadMembers,omitempty"`
	Requester    string   `json:"requester"`
}
