package plan

import (
	"slices"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/duoplan/internal/clock"
)

// Rollover moves the user into month. When month differs from
// LastResetMonth the finished month's tally is prepended to the history
// and stars and suns restart at zero. One record is written per call even
// if several months were skipped.
//
// A user without LastResetMonth (records written before monthly history
// existed) simply starts its cycle in month.
//
// Returns true if the user changed.
func (u *UserData) Rollover(month string) bool {
	if u.LastResetMonth == month {
		return false
	}
	if u.LastResetMonth == "" {
		u.LastResetMonth = month
		if u.MonthlyAchievements == nil {
			u.MonthlyAchievements = []MonthlyAchievement{}
		}
		return true
	}

	record := MonthlyAchievement{
		Month: u.LastResetMonth,
		Stars: u.Stars,
		Suns:  u.Suns,
	}
	u.MonthlyAchievements = append([]MonthlyAchievement{record}, u.MonthlyAchievements...)
	u.Stars = 0
	u.Suns = 0
	u.LastResetMonth = month
	return true
}

// CanAddStar reports whether no star was added on now's calendar day.
func (u *UserData) CanAddStar(now time.Time) bool {
	return !clock.SameDay(u.LastStarAdded, now)
}

// AddStar credits one star for now's calendar day. Every StarsPerSun
// stars are converted into a sun in the same step.
//
// Returns false without mutating when a star was already added today.
func (u *UserData) AddStar(now time.Time) bool {
	if !u.CanAddStar(now) {
		return false
	}
	u.Stars++
	u.LastStarAdded = clock.FormatTimestamp(now)
	u.convertStars()
	return true
}

func (u *UserData) convertStars() {
	if u.Stars >= StarsPerSun {
		u.Suns += u.Stars / StarsPerSun
		u.Stars %= StarsPerSun
	}
}

// AppendItem adds item to the end of the selected list.
func (u *UserData) AppendItem(kind ListKind, item PlanItem) bool {
	list := u.List(kind)
	if list == nil {
		return false
	}
	*list = append(*list, item)
	return true
}

// ToggleItem flips the completion flag of the item with id.
// Returns false if no such item exists.
func (u *UserData) ToggleItem(kind ListKind, id string) bool {
	list := u.List(kind)
	if list == nil {
		return false
	}
	for i := range *list {
		if (*list)[i].ID == id {
			(*list)[i].Completed = !(*list)[i].Completed
			return true
		}
	}
	return false
}

// DeleteItem removes the item with id. Returns false if no such item exists.
func (u *UserData) DeleteItem(kind ListKind, id string) bool {
	list := u.List(kind)
	if list == nil {
		return false
	}
	idx := slices.IndexFunc(*list, func(p PlanItem) bool { return p.ID == id })
	if idx < 0 {
		return false
	}
	*list = slices.Delete(*list, idx, idx+1)
	return true
}

// FindItem returns the item with id from the selected list.
func (u *UserData) FindItem(kind ListKind, id string) (PlanItem, bool) {
	list := u.List(kind)
	if list == nil {
		return PlanItem{}, false
	}
	for _, p := range *list {
		if p.ID == id {
			return p, true
		}
	}
	return PlanItem{}, false
}

// NormalizeContent trims surrounding whitespace and applies Unicode NFC so
// the same text typed on different devices compares equal.
// Returns false if nothing remains.
func NormalizeContent(s string) (string, bool) {
	s = norm.NFC.String(strings.TrimSpace(s))
	return s, s != ""
}

// Normalize repairs a user received from outside (storage or a token):
// nil lists become empty, negative counts become zero, surplus stars are
// converted, and a missing or malformed cycle month becomes month.
func (u *UserData) Normalize(month string) {
	if u.ShortTermPlans == nil {
		u.ShortTermPlans = []PlanItem{}
	}
	if u.LongTermPlans == nil {
		u.LongTermPlans = []PlanItem{}
	}
	if u.MonthlyAchievements == nil {
		u.MonthlyAchievements = []MonthlyAchievement{}
	}
	if u.Stars < 0 {
		u.Stars = 0
	}
	if u.Suns < 0 {
		u.Suns = 0
	}
	u.convertStars()
	if !clock.ValidMonth(u.LastResetMonth) {
		u.LastResetMonth = month
	}
}

// Normalize applies UserData.Normalize to both users.
func (s *SharedState) Normalize(month string) {
	s.User1.Normalize(month)
	s.User2.Normalize(month)
	if s.Version < 0 {
		s.Version = 0
	}
}

// Rollover applies UserData.Rollover to both users.
func (s *SharedState) Rollover(month string) bool {
	a := s.User1.Rollover(month)
	b := s.User2.Rollover(month)
	return a || b
}

// Motivation is one user's progress towards the shared monthly sun target.
type Motivation struct {
	Suns     int     `json:"suns"`
	Target   int     `json:"target"`
	Percent  float64 `json:"percent"`
	Achieved bool    `json:"achieved"`
}

// Progress computes progress towards target, capped at 100 percent.
func Progress(suns, target int) Motivation {
	m := Motivation{Suns: suns, Target: target}
	if target <= 0 {
		m.Percent = 100
		m.Achieved = true
		return m
	}
	m.Percent = min(float64(suns)/float64(target)*100, 100)
	m.Achieved = suns >= target
	return m
}
