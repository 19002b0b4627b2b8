package game

import (
	"context"
	"time"
)

// Game is one stored session belonging to a user.
type Game struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	State     State     `json:"state"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store persists games. UpdateGame runs fn against the locked row after
// claiming idemKey for the user; fn's error aborts the update.
type Store interface {
	InsertGame(ctx context.Context, idemKey string, g Game) error
	GetGame(ctx context.Context, userID, gameID string) (Game, error)
	ListGames(ctx context.Context, userID string) ([]Game, error)
	UpdateGame(ctx context.Context, userID, gameID, idemKey, action string, fn func(*Game) error) (Game, error)
}

type NarrativeMode string

const (
	ModeNormal   NarrativeMode = "normal"
	ModeSurvival NarrativeMode = "survival"
	ModeCrisis   NarrativeMode = "crisis"
)

// Snapshot is the slice of the ledger shared with a narrator.
type Snapshot struct {
	Name          string  `json:"name"`
	Age           int     `json:"age"`
	Stage         Stage   `json:"stage"`
	Career        string  `json:"career"`
	Income        float64 `json:"income"`
	NetWorth      float64 `json:"net_worth"`
	EmergencyFund float64 `json:"emergency_fund"`
	Crisis        *Crisis `json:"crisis,omitempty"`
}

func SnapshotOf(l *Ledger) Snapshot {
	return Snapshot{
		Name:          l.Name,
		Age:           l.Age,
		Stage:         l.Stage,
		Career:        l.Career.Name,
		Income:        l.Financials.Income,
		NetWorth:      l.NetWorth(),
		EmergencyFund: l.EmergencyFund,
		Crisis:        l.Crisis.Clone(),
	}
}

type Narrator interface {
	LifeEvent(ctx context.Context, snap Snapshot, mode NarrativeMode) (LifeEvent, error)
}

type GameView struct {
	ID            string          `json:"id"`
	Phase         Phase           `json:"phase"`
	Ledger        *Ledger         `json:"ledger"`
	Event         *LifeEvent      `json:"event,omitempty"`
	NetWorth      float64         `json:"net_worth"`
	RiskExposure  int             `json:"risk_exposure"`
	RollbackDepth int             `json:"rollback_depth"`
	Skills        []SkillView     `json:"skills"`
	Version       int64           `json:"version"`
	UpdatedAt     time.Time       `json:"updated_at"`
	Crisis        *CrisisProgress `json:"crisis_progress,omitempty"`
}

type SkillView struct {
	Skill
	Status SkillStatus `json:"status"`
}

type CrisisProgress struct {
	Name      string  `json:"name"`
	Month     int     `json:"month"`
	Duration  int     `json:"duration"`
	Remaining int     `json:"remaining"`
	Threshold float64 `json:"survival_threshold"`
}

type GameSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Age       int       `json:"age"`
	Stage     Stage     `json:"stage"`
	Phase     Phase     `json:"phase"`
	NetWorth  float64   `json:"net_worth"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CreateGameInput struct {
	UserID         string
	Profile        Profile
	IdempotencyKey string
}

type DispatchInput struct {
	UserID string
	GameID string
	Intent Intent
}

type ImportInput struct {
	UserID         string
	GameID         string
	Data           []byte
	IdempotencyKey string
}

type TaxResult struct {
	Filing TaxFiling `json:"filing"`
	Game   GameView  `json:"game"`
}

type SyncCommand struct {
	GameID string `json:"game_id"`
	Intent Intent `json:"intent"`
}

const (
	SyncApplied   = "applied"
	SyncDuplicate = "duplicate"
	SyncRejected  = "rejected"
	// SyncError marks a transient failure; the intent should be resent.
	SyncError = "error"
	// SyncSkipped marks an intent held back because an earlier intent for
	// the same game did not apply.
	SyncSkipped = "skipped"
)

type SyncResult struct {
	GameID         string `json:"game_id"`
	Kind           string `json:"kind"`
	IdempotencyKey string `json:"idempotency_key"`
	Status         string `json:"status"`
	Error          string `json:"error,omitempty"`
	Phase          Phase  `json:"phase,omitempty"`
}

// Settled reports whether the client can forget the intent.
func (r SyncResult) Settled() bool {
	switch r.Status {
	case SyncApplied, SyncDuplicate, SyncRejected:
		return true
	}
	return false
}
