package models

// CallForService records a squad start-work request that could not reach
// every member: the listed members were offline when the request was made.
// One active record exists per squad; the record is deleted once the list
// empties.
type CallForService struct {
	SquadID        string   `json:"squad_id"`
	RequesterID    string   `json:"requester_id"`
	OfflineMembers []string `json:"offline_members"`
}
