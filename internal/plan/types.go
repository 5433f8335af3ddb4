package plan

import (
	"fmt"
	"strings"
)

// StarsPerSun is the number of stars converted into one sun.
const StarsPerSun = 5

// DefaultTargetSuns is the shared monthly sun target both users work towards.
const DefaultTargetSuns = 3

// Default user names for a fresh install.
const (
	DefaultUser1Name = "于子润"
	DefaultUser2Name = "梁美姿"
)

// PlanItem is a single short-term or long-term task.
type PlanItem struct {
	ID        string `json:"id"`
	Content   string `json:"content"`
	Completed bool   `json:"completed"`
	CreatedAt string `json:"createdAt"`
}

// MonthlyAchievement is the archived tally of one finished month.
type MonthlyAchievement struct {
	Month string `json:"month"` // YYYY-MM
	Stars int    `json:"stars"`
	Suns  int    `json:"suns"`
}

// UserData is everything tracked for one user.
type UserData struct {
	Name                string               `json:"name"`
	ShortTermPlans      []PlanItem           `json:"shortTermPlans"`
	LongTermPlans       []PlanItem           `json:"longTermPlans"`
	Stars               int                  `json:"stars"`
	Suns                int                  `json:"suns"`
	LastStarAdded       string               `json:"lastStarAdded"`
	LastResetMonth      string               `json:"lastResetMonth"`
	MonthlyAchievements []MonthlyAchievement `json:"monthlyAchievements"`
}

// SharedState is the complete two-user state. Version is the only
// conflict-resolution signal: higher wins.
type SharedState struct {
	User1   UserData `json:"user1"`
	User2   UserData `json:"user2"`
	Version int64    `json:"version"`
}

// UserID selects one of the two users.
type UserID int

const (
	User1 UserID = iota + 1
	User2
)

// String returns the wire name ("user1" or "user2").
func (u UserID) String() string {
	switch u {
	case User1:
		return "user1"
	case User2:
		return "user2"
	default:
		return fmt.Sprintf("user(%d)", int(u))
	}
}

// Valid reports whether u names one of the two users.
func (u UserID) Valid() bool {
	return u == User1 || u == User2
}

// ListKind selects a plan list.
type ListKind int

const (
	ShortTerm ListKind = iota + 1
	LongTerm
)

// String returns the wire name ("shortTerm" or "longTerm").
func (k ListKind) String() string {
	switch k {
	case ShortTerm:
		return "shortTerm"
	case LongTerm:
		return "longTerm"
	default:
		return fmt.Sprintf("list(%d)", int(k))
	}
}

// Valid reports whether k names a plan list.
func (k ListKind) Valid() bool {
	return k == ShortTerm || k == LongTerm
}

// ParseListKind accepts the wire names plus the short aliases used on the
// command line ("short", "long", "st", "lt").
func ParseListKind(s string) (ListKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "shortterm", "short", "st":
		return ShortTerm, nil
	case "longterm", "long", "lt":
		return LongTerm, nil
	default:
		return 0, fmt.Errorf("unknown plan list %q: must be short or long", s)
	}
}

// NewUserData returns an empty user whose cycle starts in month.
func NewUserData(name, month string) UserData {
	return UserData{
		Name:                name,
		ShortTermPlans:      []PlanItem{},
		LongTermPlans:       []PlanItem{},
		LastResetMonth:      month,
		MonthlyAchievements: []MonthlyAchievement{},
	}
}

// NewSharedState returns the default state for a fresh install.
func NewSharedState(user1Name, user2Name, month string) SharedState {
	return SharedState{
		User1: NewUserData(user1Name, month),
		User2: NewUserData(user2Name, month),
	}
}

// User returns a pointer to the selected user, or nil for an invalid id.
func (s *SharedState) User(id UserID) *UserData {
	switch id {
	case User1:
		return &s.User1
	case User2:
		return &s.User2
	default:
		return nil
	}
}

// TotalSuns is the sum of both users' suns.
func (s *SharedState) TotalSuns() int {
	return s.User1.Suns + s.User2.Suns
}

// List returns a pointer to the selected plan list, or nil for an invalid kind.
func (u *UserData) List(kind ListKind) *[]PlanItem {
	switch kind {
	case ShortTerm:
		return &u.ShortTermPlans
	case LongTerm:
		return &u.LongTermPlans
	default:
		return nil
	}
}

// Clone returns a deep copy. Nil slices become empty slices so the copy
// always serializes lists as [].
func (u UserData) Clone() UserData {
	c := u
	c.ShortTermPlans = clonePlans(u.ShortTermPlans)
	c.LongTermPlans = clonePlans(u.LongTermPlans)
	c.MonthlyAchievements = append([]MonthlyAchievement{}, u.MonthlyAchievements...)
	return c
}

// Clone returns a deep copy of the state.
func (s SharedState) Clone() SharedState {
	return SharedState{
		User1:   s.User1.Clone(),
		User2:   s.User2.Clone(),
		Version: s.Version,
	}
}

func clonePlans(items []PlanItem) []PlanItem {
	return append([]PlanItem{}, items...)
}
