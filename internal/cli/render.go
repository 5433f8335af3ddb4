package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/roach88/duoplan/internal/engine"
	"github.com/roach88/duoplan/internal/plan"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	accentStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Faint(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	doneStyle    = lipgloss.NewStyle().Faint(true).Strikethrough(true)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("8")).
			Padding(0, 1)

	boxChecked   = "☑"
	boxUnchecked = "☐"
)

// shortIDLen is how much of an item id the text view shows. UUIDv7 ids
// share their leading timestamp bits, so the tail is shown.
const shortIDLen = 8

// statusView is the JSON shape of the status command.
type statusView struct {
	engine.Status
	CanStarToday map[string]bool            `json:"canStarToday"`
	Motivation   map[string]plan.Motivation `json:"motivation"`

	// LastMonth holds the most recent archived month per user, if any.
	LastMonth map[string]plan.MonthlyAchievement `json:"lastMonth,omitempty"`
}

func newStatusView(eng *engine.Engine) statusView {
	v := statusView{
		Status:       eng.Status(),
		CanStarToday: make(map[string]bool, 2),
		Motivation:   make(map[string]plan.Motivation, 2),
		LastMonth:    make(map[string]plan.MonthlyAchievement, 2),
	}
	for _, id := range []plan.UserID{plan.User1, plan.User2} {
		v.CanStarToday[id.String()] = eng.CanAddStarToday(id)
		m, _ := eng.Motivation(id)
		v.Motivation[id.String()] = m
		if last, ok := eng.LastMonth(id); ok {
			v.LastMonth[id.String()] = last
		}
	}
	return v
}

// renderStatus draws both users as panels under a header line.
func renderStatus(v statusView) string {
	var b strings.Builder

	header := titleStyle.Render("duoplan") + mutedStyle.Render(fmt.Sprintf("  version %d", v.Version))
	if v.DocumentID != "" {
		header += mutedStyle.Render("  doc " + shortID(v.DocumentID))
	}
	if !v.LastSync.IsZero() {
		header += mutedStyle.Render("  synced " + v.LastSync.Format(time.TimeOnly))
	}
	b.WriteString(header)
	b.WriteString("\n")

	for _, id := range []plan.UserID{plan.User1, plan.User2} {
		u := v.User1
		if id == plan.User2 {
			u = v.User2
		}
		last, ok := v.LastMonth[id.String()]
		b.WriteString(renderUser(id, u, v.CanStarToday[id.String()], v.Motivation[id.String()], last, ok))
		b.WriteString("\n")
	}

	b.WriteString(fmt.Sprintf("Together: %s", successStyle.Render(fmt.Sprintf("☀ %d", v.TotalSuns))))
	return b.String()
}

func renderUser(id plan.UserID, u plan.UserData, canStar bool, m plan.Motivation, last plan.MonthlyAchievement, hasLast bool) string {
	lines := []string{
		accentStyle.Render(u.Name) + mutedStyle.Render(" ("+id.String()+")"),
		renderStars(u.Stars, canStar) + "  " + renderSuns(m),
	}
	if hasLast {
		lines = append(lines, mutedStyle.Render(fmt.Sprintf("last month %s: %d stars, %d suns", last.Month, last.Stars, last.Suns)))
	}

	lines = append(lines, "", titleStyle.Render("Short-term"))
	lines = append(lines, renderItems(u.ShortTermPlans)...)
	lines = append(lines, "", titleStyle.Render("Long-term"))
	lines = append(lines, renderItems(u.LongTermPlans)...)

	return panelStyle.Render(strings.Join(lines, "\n"))
}

func renderStars(stars int, canStar bool) string {
	filled := min(max(stars, 0), plan.StarsPerSun)
	s := pendingStyle.Render(strings.Repeat("★", filled)) +
		mutedStyle.Render(strings.Repeat("☆", plan.StarsPerSun-filled))
	if canStar {
		s += mutedStyle.Render(" star available")
	}
	return s
}

func renderSuns(m plan.Motivation) string {
	bar := progressBar(m.Suns, m.Target, 12)
	if m.Achieved {
		return successStyle.Render("☀ " + bar + " goal reached")
	}
	return "☀ " + bar
}

func renderItems(items []plan.PlanItem) []string {
	if len(items) == 0 {
		return []string{mutedStyle.Render("  nothing yet")}
	}
	lines := make([]string, 0, len(items))
	for _, it := range items {
		box, content := boxUnchecked, it.Content
		if it.Completed {
			box, content = boxChecked, doneStyle.Render(it.Content)
		}
		lines = append(lines, fmt.Sprintf("%s %s %s", box, content, mutedStyle.Render(shortID(it.ID))))
	}
	return lines
}

func progressBar(done, total, width int) string {
	if total <= 0 {
		total = 1
	}
	if width <= 0 {
		width = 28
	}
	filled := min(max(int(float64(done)/float64(total)*float64(width)), 0), width)
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", width-filled) + fmt.Sprintf("] %d/%d", done, total)
}

func renderNotice(n engine.Notice) string {
	switch n.Level {
	case engine.LevelError:
		return errorStyle.Render("✖ " + n.Message)
	case engine.LevelWarn:
		return pendingStyle.Render("! " + n.Message)
	default:
		return successStyle.Render("✔ " + n.Message)
	}
}

func shortID(id string) string {
	if len(id) <= shortIDLen {
		return id
	}
	return id[len(id)-shortIDLen:]
}
