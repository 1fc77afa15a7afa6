package ingestion

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	pkgerrors "github.com/fairwaygames/clubhouse-backend/pkg/errors"
	"github.com/fairwaygames/clubhouse-backend/pkg/provider"
)

// ContestConfig carries the contest-side inputs to event selection, derived
// from the instance and its template.
type ContestConfig struct {
	SeasonYear      int
	ProviderEventID *string
	StartDate       *time.Time
	EndDate         *time.Time
	Name            string
}

// selectionState is threaded through the strategy chain. A strategy either
// resolves a selection, narrows the candidate set, or fails hard.
type selectionState struct {
	config     ContestConfig
	candidates []provider.CalendarEvent
	selected   *provider.CalendarEvent
}

// selectionStrategy is one named tier of the selection chain.
type selectionStrategy struct {
	name  string
	apply func(state *selectionState) error
}

// selectionChain is the fixed, ordered tier list. Order matters: every tier
// assumes the narrowing done by the tiers before it.
var selectionChain = []selectionStrategy{
	{name: "year-filter", apply: filterBySeasonYear},
	{name: "config-override", apply: applyConfigOverride},
	{name: "date-window-overlap", apply: filterByDateOverlap},
	{name: "exact-name-match", apply: matchExactName},
	{name: "substring-name-match", apply: matchSubstringName},
	{name: "deterministic-tie-break", apply: breakTies},
}

// SelectEvent resolves the provider calendar event a contest should score
// against. A nil event with nil error means no candidate survived; the caller
// skips the cycle. Errors are hard failures (empty season, missing override).
func SelectEvent(calendar *provider.Calendar, config ContestConfig) (*provider.CalendarEvent, error) {
	if calendar == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "provider calendar required")
	}

	state := &selectionState{
		config:     config,
		candidates: append([]provider.CalendarEvent(nil), calendar.Events...),
	}
	for _, strategy := range selectionChain {
		if err := strategy.apply(state); err != nil {
			return nil, err
		}
		if state.selected != nil {
			return state.selected, nil
		}
		if len(state.candidates) == 0 {
			return nil, nil
		}
	}
	return nil, nil
}

func filterBySeasonYear(state *selectionState) error {
	var kept []provider.CalendarEvent
	for _, event := range state.candidates {
		if event.StartDate.Year() == state.config.SeasonYear {
			kept = append(kept, event)
		}
	}
	if len(kept) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("no calendar events for season year %d", state.config.SeasonYear))
	}
	state.candidates = kept
	return nil
}

// applyConfigOverride resolves an explicit provider event id. An override
// that is not in the year-filtered set is a hard failure: silently falling
// back could score the wrong event.
func applyConfigOverride(state *selectionState) error {
	if state.config.ProviderEventID == nil || *state.config.ProviderEventID == "" {
		return nil
	}
	override := *state.config.ProviderEventID
	for i := range state.candidates {
		if state.candidates[i].ID == override {
			state.selected = &state.candidates[i]
			return nil
		}
	}
	return pkgerrors.New(pkgerrors.CodeValidation,
		fmt.Sprintf("configured provider event id %s not present in season calendar", override))
}

func filterByDateOverlap(state *selectionState) error {
	if state.config.StartDate == nil || state.config.EndDate == nil {
		return nil
	}
	var kept []provider.CalendarEvent
	for _, event := range state.candidates {
		if intervalsOverlap(event.StartDate, event.EndDate, *state.config.StartDate, *state.config.EndDate) {
			kept = append(kept, event)
		}
	}
	state.candidates = kept
	if len(kept) == 1 {
		state.selected = &state.candidates[0]
	}
	return nil
}

func intervalsOverlap(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !aStart.After(bEnd) && !bStart.After(aEnd)
}

func matchExactName(state *selectionState) error {
	target := normalizeName(state.config.Name)
	if target == "" {
		return nil
	}
	var matches []provider.CalendarEvent
	for _, event := range state.candidates {
		if normalizeName(event.Label) == target {
			matches = append(matches, event)
		}
	}
	if len(matches) == 1 {
		state.selected = &matches[0]
		return nil
	}
	if len(matches) > 1 {
		// Multiple exact matches go straight to the tie-break.
		state.candidates = matches
	}
	return nil
}

func matchSubstringName(state *selectionState) error {
	target := normalizeName(state.config.Name)
	if target == "" {
		state.candidates = nil
		return nil
	}
	var matches []provider.CalendarEvent
	for _, event := range state.candidates {
		normalized := normalizeName(event.Label)
		if strings.Contains(normalized, target) || strings.Contains(target, normalized) {
			matches = append(matches, event)
		}
	}
	if len(matches) == 1 {
		state.selected = &matches[0]
		return nil
	}
	state.candidates = matches
	return nil
}

// breakTies orders the surviving candidates by (a) distance from the
// configured start date, (b) earlier start date, (c) lowest numeric event id,
// and picks the first. The ordering is total, so the result is stable under
// input permutation.
func breakTies(state *selectionState) error {
	if len(state.candidates) == 0 {
		return nil
	}
	candidates := append([]provider.CalendarEvent(nil), state.candidates...)
	sort.SliceStable(candidates, func(i, j int) bool {
		if state.config.StartDate != nil {
			di := absDuration(candidates[i].StartDate.Sub(*state.config.StartDate))
			dj := absDuration(candidates[j].StartDate.Sub(*state.config.StartDate))
			if di != dj {
				return di < dj
			}
		}
		if !candidates[i].StartDate.Equal(candidates[j].StartDate) {
			return candidates[i].StartDate.Before(candidates[j].StartDate)
		}
		ni, nj := numericID(candidates[i].ID), numericID(candidates[j].ID)
		if ni != nj {
			return ni < nj
		}
		return candidates[i].ID < candidates[j].ID
	})
	state.selected = &candidates[0]
	return nil
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

// numericID parses the event id for ordering; non-numeric ids sort last,
// among themselves by raw string via a stable fallback.
func numericID(id string) int64 {
	parsed, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
	if err != nil {
		return int64(^uint64(0) >> 1)
	}
	return parsed
}

// normalizeName case-folds and strips every non-alphanumeric rune.
func normalizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
