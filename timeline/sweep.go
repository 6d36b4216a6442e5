package timeline

import (
	"sort"
	"time"
)

const (
	// TotalLabel names the series counting sessions across all environments.
	TotalLabel = "Total"

	// DefaultOffenderThreshold is the number of simultaneous sessions a user
	// may hold before being flagged.
	DefaultOffenderThreshold = 3
)

// SweepOptions configures Sweep.
type SweepOptions struct {
	// Environments lists environments that always get a series, in display
	// order. Environments seen in the data but not listed are appended sorted.
	Environments []string
	// OffenderThreshold flags users holding more than this many sessions at
	// once. Zero means DefaultOffenderThreshold.
	OffenderThreshold int
}

// Analysis holds the concurrency series produced by one sweep. All series
// share the same time axis: the first event time with value 0, followed by
// one sample per event.
type Analysis struct {
	Times []time.Time
	// Sessions holds one series per environment followed by TotalLabel.
	Sessions []Series
	// Users counts distinct users with at least one active session.
	Users Series
	// PerUser holds one series per user, ordered by user name.
	PerUser []Series
	// Average is the mean number of sessions per active user.
	Average Series
	// Offenders are users whose session count exceeded the threshold, sorted.
	Offenders []string
}

// SessionSeries returns the series labelled label.
func (a *Analysis) SessionSeries(label string) (Series, bool) {
	for _, s := range a.Sessions {
		if s.Label == label {
			return s, true
		}
	}
	return Series{}, false
}

// UserSeries returns the per-user series for user.
func (a *Analysis) UserSeries(user string) (Series, bool) {
	i := sort.Search(len(a.PerUser), func(i int) bool { return a.PerUser[i].Label >= user })
	if i < len(a.PerUser) && a.PerUser[i].Label == user {
		return a.PerUser[i], true
	}
	return Series{}, false
}

// Sweep sorts the start and end events of spans and walks them once,
// maintaining running counters per environment, in total and per user.
func Sweep(spans []Span, opts SweepOptions) (*Analysis, error) {
	if len(spans) == 0 {
		return nil, ErrEmptyInput
	}
	threshold := opts.OffenderThreshold
	if threshold == 0 {
		threshold = DefaultOffenderThreshold
	}

	envs := environments(spans, opts.Environments)
	envIndex := make(map[string]int, len(envs))
	for i, env := range envs {
		envIndex[env] = i
	}
	total := len(envs)

	users := userNames(spans)
	userIndex := make(map[string]int, len(users))
	for i, u := range users {
		userIndex[u] = i
	}

	events := sortedEvents(spans)

	first := earliestStart(spans)
	if len(events) > 0 {
		first = events[0].Time
	}
	n := len(events) + 1

	a := &Analysis{Times: make([]time.Time, 0, n)}
	sessionValues := make([][]float64, total+1)
	for i := range sessionValues {
		sessionValues[i] = make([]float64, 0, n)
	}
	userValues := make([][]float64, len(users))
	for i := range userValues {
		userValues[i] = make([]float64, 0, n)
	}
	activeValues := make([]float64, 0, n)
	averageValues := make([]float64, 0, n)

	sessionCounts := make([]int, total+1)
	userCounts := make([]int, len(users))
	offenders := make(map[string]bool)

	emit := func(t time.Time) {
		a.Times = append(a.Times, t)
		for i, c := range sessionCounts {
			sessionValues[i] = append(sessionValues[i], float64(c))
		}
		active, sum := 0, 0
		for i, c := range userCounts {
			userValues[i] = append(userValues[i], float64(c))
			if c > 0 {
				active++
			}
			sum += c
		}
		activeValues = append(activeValues, float64(active))
		avg := 0.0
		if active > 0 {
			avg = float64(sum) / float64(active)
		}
		averageValues = append(averageValues, avg)
	}

	emit(first)
	for _, ev := range events {
		delta := 1
		if ev.Kind == End {
			delta = -1
		}
		key := ev.Span.Key
		sessionCounts[envIndex[key.Environment]] += delta
		sessionCounts[total] += delta

		u := userIndex[key.User]
		userCounts[u] += delta
		if userCounts[u] > threshold {
			offenders[key.User] = true
		}
		emit(ev.Time)
	}

	for i, env := range envs {
		a.Sessions = append(a.Sessions, Series{Label: env, Times: a.Times, Values: sessionValues[i]})
	}
	a.Sessions = append(a.Sessions, Series{Label: TotalLabel, Times: a.Times, Values: sessionValues[total]})
	for i, u := range users {
		a.PerUser = append(a.PerUser, Series{Label: u, Times: a.Times, Values: userValues[i]})
	}
	a.Users = Series{Label: "Users", Times: a.Times, Values: activeValues}
	a.Average = Series{Label: "Average", Times: a.Times, Values: averageValues}

	for u := range offenders {
		a.Offenders = append(a.Offenders, u)
	}
	sort.Strings(a.Offenders)
	return a, nil
}

func environments(spans []Span, configured []string) []string {
	seen := make(map[string]bool, len(configured))
	envs := make([]string, 0, len(configured))
	for _, env := range configured {
		if !seen[env] {
			seen[env] = true
			envs = append(envs, env)
		}
	}
	var extra []string
	for _, s := range spans {
		if !seen[s.Key.Environment] {
			seen[s.Key.Environment] = true
			extra = append(extra, s.Key.Environment)
		}
	}
	sort.Strings(extra)
	return append(envs, extra...)
}

func userNames(spans []Span) []string {
	seen := make(map[string]bool)
	var users []string
	for _, s := range spans {
		if !seen[s.Key.User] {
			seen[s.Key.User] = true
			users = append(users, s.Key.User)
		}
	}
	sort.Strings(users)
	return users
}

func earliestStart(spans []Span) time.Time {
	first := spans[0].Start()
	for _, s := range spans[1:] {
		if s.Start().Before(first) {
			first = s.Start()
		}
	}
	return first
}
