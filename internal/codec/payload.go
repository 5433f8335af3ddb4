package codec

import "github.com/roach88/duoplan/internal/plan"

// compactPayload is the current wire layout. Field order is the key order
// on the wire.
type compactPayload struct {
	V  int64       `json:"v"`
	T  int64       `json:"t"`
	U1 compactUser `json:"u1"`
	U2 compactUser `json:"u2"`
}

type compactUser struct {
	N   string                    `json:"n"`
	ST  []compactItem             `json:"st"`
	LT  []compactItem             `json:"lt"`
	S   int                       `json:"s"`
	SU  int                       `json:"su"`
	LSA string                    `json:"lsa"`
	LRM string                    `json:"lrm"`
	MA  []plan.MonthlyAchievement `json:"ma"`
}

type compactItem struct {
	I  string `json:"i"`
	C  string `json:"c"`
	CO bool   `json:"co"`
}

// legacyPayload is the layout of tokens from builds before the compact
// format. Users carry full field names and their plan timestamps.
type legacyPayload struct {
	User1   plan.UserData `json:"user1"`
	User2   plan.UserData `json:"user2"`
	Version int64         `json:"version"`
}

func toCompact(s plan.SharedState, exportedAt int64) compactPayload {
	return compactPayload{
		V:  s.Version,
		T:  exportedAt,
		U1: toCompactUser(s.User1),
		U2: toCompactUser(s.User2),
	}
}

func toCompactUser(u plan.UserData) compactUser {
	return compactUser{
		N:   u.Name,
		ST:  toCompactItems(u.ShortTermPlans),
		LT:  toCompactItems(u.LongTermPlans),
		S:   u.Stars,
		SU:  u.Suns,
		LSA: u.LastStarAdded,
		LRM: u.LastResetMonth,
		MA:  append([]plan.MonthlyAchievement{}, u.MonthlyAchievements...),
	}
}

func toCompactItems(items []plan.PlanItem) []compactItem {
	out := make([]compactItem, len(items))
	for i, p := range items {
		out[i] = compactItem{I: p.ID, C: p.Content, CO: p.Completed}
	}
	return out
}

// truncate keeps the first st short-term and lt long-term items of each user.
func (p *compactPayload) truncate(st, lt int) {
	for _, u := range []*compactUser{&p.U1, &p.U2} {
		u.ST = u.ST[:min(len(u.ST), st)]
		u.LT = u.LT[:min(len(u.LT), lt)]
	}
}

func (p compactPayload) toState(createdAt string) plan.SharedState {
	return plan.SharedState{
		User1:   p.U1.toUser(createdAt),
		User2:   p.U2.toUser(createdAt),
		Version: p.V,
	}
}

func (u compactUser) toUser(createdAt string) plan.UserData {
	return plan.UserData{
		Name:                u.N,
		ShortTermPlans:      fromCompactItems(u.ST, createdAt),
		LongTermPlans:       fromCompactItems(u.LT, createdAt),
		Stars:               u.S,
		Suns:                u.SU,
		LastStarAdded:       u.LSA,
		LastResetMonth:      u.LRM,
		MonthlyAchievements: append([]plan.MonthlyAchievement{}, u.MA...),
	}
}

func fromCompactItems(items []compactItem, createdAt string) []plan.PlanItem {
	out := make([]plan.PlanItem, len(items))
	for i, c := range items {
		out[i] = plan.PlanItem{ID: c.I, Content: c.C, Completed: c.CO, CreatedAt: createdAt}
	}
	return out
}

func (p legacyPayload) toState(createdAt string) plan.SharedState {
	s := plan.SharedState{
		User1:   p.User1.Clone(),
		User2:   p.User2.Clone(),
		Version: p.Version,
	}
	for _, u := range []*plan.UserData{&s.User1, &s.User2} {
		stampMissing(u.ShortTermPlans, createdAt)
		stampMissing(u.LongTermPlans, createdAt)
	}
	return s
}

func stampMissing(items []plan.PlanItem, createdAt string) {
	for i := range items {
		if items[i].CreatedAt == "" {
			items[i].CreatedAt = createdAt
		}
	}
}
