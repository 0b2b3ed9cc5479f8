package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/rmacedo/patrol-ops/auth"
	"github.com/rmacedo/patrol-ops/models"
)

// Store is the persistence surface the handlers consume. *db.Store
// satisfies it.
type Store interface {
	CreateUser(u *models.User) error
	GetUser(id string) (*models.User, error)
	GetUserByEmail(email string) (*models.User, error)
	GetUserByRefreshToken(token string) (*models.User, error)
	ListUsers() ([]models.User, error)
	ListFreeUsers() ([]models.User, error)
	UpdateUser(u *models.User) error
	DeleteUser(id string) error
	CountUserReferences(userID string) (map[string]int, error)

	CreateSquad(squad *models.Squad) error
	GetSquad(id string) (*models.Squad, error)
	ListSquads() ([]models.Squad, error)
	RenameSquad(id, name string) error
	DeleteSquad(id string) error
	InsertSquadMember(squadID, userID string) error
	RemoveSquadMember(squadID, userID string) error
}

// Tokens is the token service surface the handlers consume.
type Tokens interface {
	GenerateTokens(userID string, role models.UserType) (auth.TokenPair, error)
	Verify(token string) *auth.Claims
	VerifyRefresh(token string) (*auth.Claims, error)
}

type Handlers struct {
	store  Store
	tokens Tokens
	log    *zap.Logger
}

func NewHandlers(store Store, tokens Tokens, logger *zap.Logger) *Handlers {
	return &Handlers{store: store, tokens: tokens, log: logger.Named("api")}
}

// NewRouter wires the REST surface and mounts the realtime endpoint.
func NewRouter(h *Handlers, realtime http.Handler) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/auth/signin", h.SignIn).Methods("POST")
	r.HandleFunc("/auth/refresh", h.Refresh).Methods("POST")
	r.Handle("/ws", realtime)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(h.Authenticate)

	api.HandleFunc("/users", h.CreateUser).Methods("POST")
	api.HandleFunc("/users", h.ListUsers).Methods("GET")
	api.HandleFunc("/users/free", h.ListFreeUsers).Methods("GET")
	api.HandleFunc("/users/{id}", h.GetUser).Methods("GET")
	api.HandleFunc("/users/{id}", h.UpdateUser).Methods("PATCH")
	api.HandleFunc("/users/{id}", h.DeleteUser).Methods("DELETE")
	api.HandleFunc("/users/{id}/stats", h.GetUserStats).Methods("GET")

	api.HandleFunc("/squads", h.CreateSquad).Methods("POST")
	api.HandleFunc("/squads", h.ListSquads).Methods("GET")
	api.HandleFunc("/squads/{id}", h.GetSquad).Methods("GET")
	api.HandleFunc("/squads/{id}", h.RenameSquad).Methods("PATCH")
	api.HandleFunc("/squads/{id}", h.DeleteSquad).Methods("DELETE")
	api.HandleFunc("/squads/{id}/members", h.InsertSquadMember).Methods("PUT")
	api.HandleFunc("/squads/{id}/members", h.RemoveSquadMember).Methods("DELETE")

	return r
}
