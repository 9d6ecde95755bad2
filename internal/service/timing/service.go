package timing

import (
	"fmt"
	"strings"
	"time"

	"matka-service/internal/config"
	appErr "matka-service/pkg/errors"
)

// Window is one concrete occurrence of a game's open->close(->result)
// interval. Result is nil for simple games, which settle on demand.
type Window struct {
	Open   time.Time
	Close  time.Time
	Result *time.Time
}

func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Open) && t.Before(w.Close)
}

// End is the last instant the window covers: the result instant when
// present, otherwise the close instant.
func (w Window) End() time.Time {
	if w.Result != nil {
		return *w.Result
	}
	return w.Close
}

type GameStatus struct {
	Game         string     `json:"game"`
	IsLocked     bool       `json:"isLocked"`
	Status       string     `json:"status"` // open/locked
	NextOpenTime *time.Time `json:"nextOpenTime,omitempty"`
}

type minuteOfDay int

type simpleGame struct {
	name  string
	open  minuteOfDay
	close minuteOfDay
}

type session struct {
	open   minuteOfDay
	close  minuteOfDay
	result minuteOfDay
}

type recurringGame struct {
	name       string
	lockBefore time.Duration
	openAfter  time.Duration
	sessions   []session
}

// Service resolves betting windows and lock state from the configured
// timetable. It is pure: every query takes an explicit `now` and never
// reads the ambient clock, so settlement stays deterministic under test.
type Service struct {
	loc       *time.Location
	order     []string
	simple    map[string]simpleGame
	recurring map[string]recurringGame
}

func NewService(cfg config.GamesConfig) (*Service, error) {
	tz := cfg.Timezone
	if tz == "" {
		tz = "Asia/Kolkata"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", tz, err)
	}

	s := &Service{
		loc:       loc,
		simple:    make(map[string]simpleGame),
		recurring: make(map[string]recurringGame),
	}

	for _, g := range cfg.Simple {
		name := normalize(g.Name)
		open, err := parseClock(g.Open)
		if err != nil {
			return nil, fmt.Errorf("game %s open: %w", name, err)
		}
		closeAt, err := parseClock(g.Close)
		if err != nil {
			return nil, fmt.Errorf("game %s close: %w", name, err)
		}
		s.simple[name] = simpleGame{name: name, open: open, close: closeAt}
		s.order = append(s.order, name)
	}

	for _, g := range cfg.Recurring {
		name := normalize(g.Name)
		rg := recurringGame{
			name:       name,
			lockBefore: time.Duration(g.LockBeforeMinutes) * time.Minute,
			openAfter:  time.Duration(g.OpenAfterMinutes) * time.Minute,
		}
		prevOpen := minuteOfDay(-1)
		for _, sess := range g.Sessions {
			open, err := parseClock(sess.Open)
			if err != nil {
				return nil, fmt.Errorf("game %s session open: %w", name, err)
			}
			closeAt, err := parseClock(sess.Close)
			if err != nil {
				return nil, fmt.Errorf("game %s session close: %w", name, err)
			}
			result, err := parseClock(sess.Result)
			if err != nil {
				return nil, fmt.Errorf("game %s session result: %w", name, err)
			}
			if open <= prevOpen {
				return nil, fmt.Errorf("game %s: sessions must be ordered by open time", name)
			}
			prevOpen = open
			rg.sessions = append(rg.sessions, session{open: open, close: closeAt, result: result})
		}
		if len(rg.sessions) == 0 {
			return nil, fmt.Errorf("game %s: recurring game needs at least one session", name)
		}
		s.recurring[name] = rg
		s.order = append(s.order, name)
	}

	return s, nil
}

func (s *Service) Location() *time.Location { return s.loc }

func (s *Service) Games() []string { return append([]string(nil), s.order...) }

func (s *Service) Exists(game string) bool {
	name := normalize(game)
	_, simple := s.simple[name]
	_, recurring := s.recurring[name]
	return simple || recurring
}

func (s *Service) IsRecurring(game string) bool {
	_, ok := s.recurring[normalize(game)]
	return ok
}

// ResolveWindow maps (game, now) to the window that occurrence of the
// game owns at `now`. Simple games roll over midnight when close <= open;
// the occurrence containing `now` wins. For recurring games the first
// session whose [open, result] contains `now` wins; when none does
// (late admin actions in the gap) it falls back to the latest session
// already opened today, else the day's first session. Callers must not
// use the fallback to approve new bets; IsLocked guards that.
func (s *Service) ResolveWindow(game string, now time.Time) (Window, error) {
	name := normalize(game)
	now = now.In(s.loc)

	if g, ok := s.simple[name]; ok {
		return s.resolveSimple(g, now), nil
	}
	if g, ok := s.recurring[name]; ok {
		return s.resolveRecurring(g, now), nil
	}
	return Window{}, appErr.ErrInvalidGame
}

func (s *Service) resolveSimple(g simpleGame, now time.Time) Window {
	day := midnight(now)
	open := day.Add(g.open.duration())
	closeAt := day.Add(g.close.duration())

	if g.close <= g.open {
		// Overnight window: either it opened today and closes tomorrow,
		// or it opened yesterday and closes today.
		if clockOf(now) >= g.open {
			closeAt = closeAt.AddDate(0, 0, 1)
		} else {
			open = open.AddDate(0, 0, -1)
		}
	}
	return Window{Open: open, Close: closeAt}
}

func (s *Service) resolveRecurring(g recurringGame, now time.Time) Window {
	day := midnight(now)

	for _, sess := range g.sessions {
		w := sess.window(day)
		if !now.Before(w.Open) && !now.After(*w.Result) {
			return w
		}
	}

	// Gap between sessions or outside the daily span: latest session
	// whose open has passed, else the first session of the day.
	for i := len(g.sessions) - 1; i >= 0; i-- {
		w := g.sessions[i].window(day)
		if !now.Before(w.Open) {
			return w
		}
	}
	return g.sessions[0].window(day)
}

func (sess session) window(day time.Time) Window {
	open := day.Add(sess.open.duration())
	closeAt := day.Add(sess.close.duration())
	result := day.Add(sess.result.duration())
	if sess.close < sess.open {
		closeAt = closeAt.AddDate(0, 0, 1)
		result = result.AddDate(0, 0, 1)
	}
	return Window{Open: open, Close: closeAt, Result: &result}
}

// IsLocked reports whether new bets for the game are rejected at `now`.
// Consistency contract: whenever IsLocked is false, ResolveWindow yields
// an open/close pair containing `now`.
func (s *Service) IsLocked(game string, now time.Time) (bool, error) {
	name := normalize(game)
	now = now.In(s.loc)

	if g, ok := s.simple[name]; ok {
		w := s.resolveSimple(g, now)
		return !w.Contains(now), nil
	}
	if g, ok := s.recurring[name]; ok {
		return s.recurringLocked(g, now), nil
	}
	return true, appErr.ErrInvalidGame
}

func (s *Service) recurringLocked(g recurringGame, now time.Time) bool {
	day := midnight(now)
	for _, sess := range g.sessions {
		w := sess.window(day)
		if !w.Contains(now) {
			continue
		}
		if now.Before(w.Open.Add(g.openAfter)) {
			return true // cooldown after the session boundary
		}
		if !now.Before(w.Close.Add(-g.lockBefore)) {
			return true // approaching lock
		}
		return false
	}
	return true // between sessions or outside the daily span
}

// NextOpenTime returns the next instant the game accepts bets at or
// after `now`.
func (s *Service) NextOpenTime(game string, now time.Time) (time.Time, error) {
	name := normalize(game)
	now = now.In(s.loc)

	if g, ok := s.simple[name]; ok {
		w := s.resolveSimple(g, now)
		if w.Contains(now) {
			return w.Open, nil
		}
		open := midnight(now).Add(g.open.duration())
		if !open.After(now) {
			open = open.AddDate(0, 0, 1)
		}
		return open, nil
	}
	if g, ok := s.recurring[name]; ok {
		day := midnight(now)
		for d := 0; d < 2; d++ {
			for _, sess := range g.sessions {
				opens := day.AddDate(0, 0, d).Add(sess.open.duration()).Add(g.openAfter)
				if opens.After(now) {
					return opens, nil
				}
			}
		}
		return time.Time{}, appErr.ErrInvalidGame
	}
	return time.Time{}, appErr.ErrInvalidGame
}

func (s *Service) Status(game string, now time.Time) (GameStatus, error) {
	locked, err := s.IsLocked(game, now)
	if err != nil {
		return GameStatus{}, err
	}
	st := GameStatus{Game: normalize(game), IsLocked: locked, Status: "open"}
	if locked {
		st.Status = "locked"
		if next, err := s.NextOpenTime(game, now); err == nil {
			st.NextOpenTime = &next
		}
	}
	return st, nil
}

func (s *Service) AllStatuses(now time.Time) []GameStatus {
	statuses := make([]GameStatus, 0, len(s.order))
	for _, name := range s.order {
		if st, err := s.Status(name, now); err == nil {
			statuses = append(statuses, st)
		}
	}
	return statuses
}

func normalize(game string) string {
	return strings.ToUpper(strings.TrimSpace(game))
}

func parseClock(v string) (minuteOfDay, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q", v)
	}
	return minuteOfDay(t.Hour()*60 + t.Minute()), nil
}

func (m minuteOfDay) duration() time.Duration {
	return time.Duration(m) * time.Minute
}

func clockOf(t time.Time) minuteOfDay {
	return minuteOfDay(t.Hour()*60 + t.Minute())
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
