// internal/services/recurrence_service.go
package services

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"todohub/internal/models"
)

// Recurrence rule syntax (RRULE subset):
//
//	FREQ=DAILY|WEEKLY|MONTHLY|YEARLY
//	INTERVAL=n            every n periods, default 1
//	BYDAY=MO,TU,...       weekday set, weekly rules only
//	BYMONTHDAY=d          day of month, monthly rules only
//	UNTIL=20250101T000000Z  inclusive end boundary
//	COUNT=n               total number of occurrences
//
// Monthly and yearly occurrences landing on day 29-31 are clamped to 28.
// Clamping always applies, so an occurrence never drifts between months
// across leap years. This is a deliberate simplification, not full
// calendrical correctness.

var (
	// ErrMalformedRule means the rule text cannot be parsed or violates the
	// subset above. User input error, never retried.
	ErrMalformedRule = errors.New("malformed recurrence rule")

	// ErrNoFutureOccurrence means a syntactically valid rule yields no
	// instant strictly after the anchor.
	ErrNoFutureOccurrence = errors.New("recurrence rule has no future occurrence")
)

// RuleParams is the structured form accepted by BuildRule, for callers that
// do not want to hand-write rule syntax.
type RuleParams struct {
	Frequency  string
	Interval   int
	ByDay      []string
	ByMonthDay int
	Until      *time.Time
	Count      int
}

// RecurrenceOption is a preset rule template offered to UI/agent callers.
type RecurrenceOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
	Rule  string `json:"rrule"`
}

// RecurrenceOptions mirrors the presets the frontend renders.
var RecurrenceOptions = []RecurrenceOption{
	{Value: "", Label: "Does not repeat", Rule: ""},
	{Value: "daily", Label: "Daily", Rule: "FREQ=DAILY"},
	{Value: "weekly", Label: "Weekly", Rule: "FREQ=WEEKLY"},
	{Value: "weekdays", Label: "Weekdays (Mon-Fri)", Rule: "FREQ=WEEKLY;BYDAY=MO,TU,WE,TH,FR"},
	{Value: "monthly", Label: "Monthly", Rule: "FREQ=MONTHLY"},
}

// RecurrenceService validates recurrence rules and computes occurrences.
// Pure computation, no I/O.
type RecurrenceService interface {
	Validate(rule string, anchor time.Time) error
	NextOccurrence(rule string, anchor time.Time) (time.Time, bool, error)
	BuildRule(params RuleParams) (string, error)
	Describe(rule string) string
	NextInstance(task *models.Task) (*models.Task, bool)
}

type recurrenceService struct{}

func NewRecurrenceService() RecurrenceService {
	return &recurrenceService{}
}

// Validate reports ErrMalformedRule for syntax violations and
// ErrNoFutureOccurrence when the rule is exhausted as seen from anchor.
// An empty rule is valid: it means "no recurrence".
func (s *recurrenceService) Validate(rule string, anchor time.Time) error {
	if rule == "" {
		return nil
	}
	parsed, err := parseRule(rule)
	if err != nil {
		return err
	}
	if _, ok := parsed.nextAfter(anchor); !ok {
		return ErrNoFutureOccurrence
	}
	return nil
}

// NextOccurrence returns the earliest instant strictly after anchor, or
// ok=false when the until/count boundary has passed. A series that has
// ended is not an error; callers treat it as "series ended".
func (s *recurrenceService) NextOccurrence(rule string, anchor time.Time) (time.Time, bool, error) {
	if rule == "" {
		return time.Time{}, false, nil
	}
	parsed, err := parseRule(rule)
	if err != nil {
		return time.Time{}, false, err
	}
	next, ok := parsed.nextAfter(anchor)
	return next, ok, nil
}

// BuildRule renders params into rule text and checks the result parses.
func (s *recurrenceService) BuildRule(params RuleParams) (string, error) {
	interval := params.Interval
	if interval == 0 {
		interval = 1
	}
	parts := []string{
		"FREQ=" + strings.ToUpper(params.Frequency),
		"INTERVAL=" + strconv.Itoa(interval),
	}
	if len(params.ByDay) > 0 {
		days := make([]string, len(params.ByDay))
		for i, d := range params.ByDay {
			days[i] = strings.ToUpper(d)
		}
		parts = append(parts, "BYDAY="+strings.Join(days, ","))
	}
	if params.ByMonthDay != 0 {
		parts = append(parts, "BYMONTHDAY="+strconv.Itoa(params.ByMonthDay))
	}
	if params.Until != nil {
		parts = append(parts, "UNTIL="+params.Until.UTC().Format(untilLayout))
	}
	if params.Count != 0 {
		parts = append(parts, "COUNT="+strconv.Itoa(params.Count))
	}
	rule := strings.Join(parts, ";")
	if _, err := parseRule(rule); err != nil {
		return "", err
	}
	return rule, nil
}

// Describe renders a short human sentence for the rule. Advisory output
// only: any parse inconsistency falls back to a generic string instead of
// propagating an error.
func (s *recurrenceService) Describe(rule string) string {
	if rule == "" {
		return "Does not repeat"
	}
	parsed, err := parseRule(rule)
	if err != nil {
		return "Custom recurrence"
	}
	unit := map[frequency]string{
		freqDaily:   "day",
		freqWeekly:  "week",
		freqMonthly: "month",
		freqYearly:  "year",
	}[parsed.freq]
	if parsed.interval == 1 {
		return fmt.Sprintf("This task repeats every %s", unit)
	}
	return fmt.Sprintf("This task repeats every %d %ss", parsed.interval, unit)
}

// NextInstance builds the next task of a recurring series from a completed
// instance. The new task inherits title, description, priority, tags and
// the rule verbatim; the due date is recomputed, the reminder is cleared
// (a copied reminder offset is meaningless against a new due date) and
// ParentTaskID points at the task that spawned it. Returns ok=false when
// the task is not recurring, the rule is unparseable, or the series ended.
func (s *recurrenceService) NextInstance(task *models.Task) (*models.Task, bool) {
	if task.RecurrenceRule == "" {
		return nil, false
	}
	anchor := task.CreatedAt
	if task.DueDate != nil {
		anchor = *task.DueDate
	}
	next, ok, err := s.NextOccurrence(task.RecurrenceRule, anchor)
	if err != nil || !ok {
		return nil, false
	}
	parentID := task.ID
	return &models.Task{
		UserID:         task.UserID,
		Title:          task.Title,
		Description:    task.Description,
		Completed:      false,
		Priority:       task.Priority,
		DueDate:        &next,
		ReminderAt:     nil,
		Tags:           task.Tags,
		RecurrenceRule: task.RecurrenceRule,
		ParentTaskID:   &parentID,
	}, true
}

// --- rule parsing and occurrence math ---

type frequency int

const (
	freqDaily frequency = iota
	freqWeekly
	freqMonthly
	freqYearly
)

const untilLayout = "20060102T150405Z"

var weekdayNames = map[string]time.Weekday{
	"MO": time.Monday,
	"TU": time.Tuesday,
	"WE": time.Wednesday,
	"TH": time.Thursday,
	"FR": time.Friday,
	"SA": time.Saturday,
	"SU": time.Sunday,
}

type parsedRule struct {
	freq       frequency
	interval   int
	byDay      []time.Weekday
	byMonthDay int
	until      *time.Time
	count      int
}

func parseRule(rule string) (parsedRule, error) {
	r := parsedRule{interval: 1}
	seenFreq := false
	for _, part := range strings.Split(rule, ";") {
		key, value, found := strings.Cut(part, "=")
		if !found || value == "" {
			return r, fmt.Errorf("%w: bad component %q", ErrMalformedRule, part)
		}
		switch key {
		case "FREQ":
			switch value {
			case "DAILY":
				r.freq = freqDaily
			case "WEEKLY":
				r.freq = freqWeekly
			case "MONTHLY":
				r.freq = freqMonthly
			case "YEARLY":
				r.freq = freqYearly
			default:
				return r, fmt.Errorf("%w: unknown frequency %q", ErrMalformedRule, value)
			}
			seenFreq = true
		case "INTERVAL":
			n, err := strconv.Atoi(value)
			if err != nil || n <= 0 {
				return r, fmt.Errorf("%w: interval must be a positive integer, got %q", ErrMalformedRule, value)
			}
			r.interval = n
		case "BYDAY":
			for _, name := range strings.Split(value, ",") {
				wd, ok := weekdayNames[name]
				if !ok {
					return r, fmt.Errorf("%w: unknown weekday %q", ErrMalformedRule, name)
				}
				r.byDay = append(r.byDay, wd)
			}
		case "BYMONTHDAY":
			n, err := strconv.Atoi(value)
			if err != nil || n < 1 || n > 31 {
				return r, fmt.Errorf("%w: month day must be 1-31, got %q", ErrMalformedRule, value)
			}
			r.byMonthDay = n
		case "UNTIL":
			t, err := time.Parse(untilLayout, value)
			if err != nil {
				return r, fmt.Errorf("%w: bad UNTIL %q", ErrMalformedRule, value)
			}
			r.until = &t
		case "COUNT":
			n, err := strconv.Atoi(value)
			if err != nil || n <= 0 {
				return r, fmt.Errorf("%w: count must be a positive integer, got %q", ErrMalformedRule, value)
			}
			r.count = n
		default:
			return r, fmt.Errorf("%w: unsupported component %q", ErrMalformedRule, key)
		}
	}
	if !seenFreq {
		return r, fmt.Errorf("%w: missing FREQ", ErrMalformedRule)
	}
	if len(r.byDay) > 0 && r.freq != freqWeekly {
		return r, fmt.Errorf("%w: BYDAY is only valid with FREQ=WEEKLY", ErrMalformedRule)
	}
	if r.byMonthDay != 0 && r.freq != freqMonthly {
		return r, fmt.Errorf("%w: BYMONTHDAY is only valid with FREQ=MONTHLY", ErrMalformedRule)
	}
	return r, nil
}

// nextAfter returns the earliest occurrence strictly after anchor. The
// anchor acts as the series start: occurrence zero is the anchor itself
// (or, for weekday-set rules, the first matching day at or after it), and
// COUNT bounds the total number of occurrences from there.
func (r parsedRule) nextAfter(anchor time.Time) (time.Time, bool) {
	if r.until != nil && !r.until.After(anchor) {
		return time.Time{}, false
	}

	var next time.Time
	switch {
	case r.freq == freqWeekly && len(r.byDay) > 0:
		var ok bool
		next, ok = r.nextWeekdaySet(anchor)
		if !ok {
			return time.Time{}, false
		}
	case r.freq == freqMonthly && r.byMonthDay != 0:
		var ok bool
		next, ok = r.nextMonthDay(anchor)
		if !ok {
			return time.Time{}, false
		}
	default:
		// Occurrence zero is the anchor, so a bounded series needs at
		// least two occurrences to have a future one.
		if r.count == 1 {
			return time.Time{}, false
		}
		switch r.freq {
		case freqDaily:
			next = anchor.AddDate(0, 0, r.interval)
		case freqWeekly:
			next = anchor.AddDate(0, 0, 7*r.interval)
		case freqMonthly:
			next = r.addMonthsClamped(anchor, r.interval)
		case freqYearly:
			next = addYearsClamped(anchor, r.interval)
		}
	}

	if r.until != nil && next.After(*r.until) {
		return time.Time{}, false
	}
	return next, true
}

// nextMonthDay scans months at interval steps from the anchor's month for
// the first BYMONTHDAY hit strictly after the anchor. The anchor month
// itself can hold occurrence zero when the month day is still ahead.
func (r parsedRule) nextMonthDay(anchor time.Time) (time.Time, bool) {
	occurrences := 0
	for k := 0; k <= 2; k++ {
		occ := r.addMonthsClamped(anchor, k*r.interval)
		if occ.Before(anchor) {
			continue
		}
		if r.count > 0 && occurrences >= r.count {
			return time.Time{}, false
		}
		if occ.After(anchor) {
			return occ, true
		}
		occurrences++
	}
	return time.Time{}, false
}

// nextWeekdaySet scans forward through the weeks active under the interval
// (week zero is the anchor's ISO week) for the first BYDAY match strictly
// after the anchor, counting matches at or after the anchor against COUNT.
func (r parsedRule) nextWeekdaySet(anchor time.Time) (time.Time, bool) {
	days := append([]time.Weekday(nil), r.byDay...)
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })

	weekStart := startOfISOWeek(anchor)
	occurrences := 0
	// Two full interval cycles is always enough to reach the next match.
	for day := 0; day <= 14*r.interval+7; day++ {
		d := weekStart.AddDate(0, 0, day)
		if (day/7)%r.interval != 0 {
			continue
		}
		if !containsWeekday(days, d.Weekday()) {
			continue
		}
		occ := time.Date(d.Year(), d.Month(), d.Day(),
			anchor.Hour(), anchor.Minute(), anchor.Second(), anchor.Nanosecond(), anchor.Location())
		if occ.Before(anchor) {
			continue
		}
		if r.count > 0 && occurrences >= r.count {
			return time.Time{}, false
		}
		if occ.After(anchor) {
			return occ, true
		}
		occurrences++
	}
	return time.Time{}, false
}

// addMonthsClamped advances by whole months keeping the anchor's day,
// clamped to 28 so the result is valid in every month.
func (r parsedRule) addMonthsClamped(anchor time.Time, months int) time.Time {
	day := anchor.Day()
	if r.byMonthDay != 0 {
		day = r.byMonthDay
	}
	if day > 28 {
		day = 28
	}
	y, m := anchor.Year(), int(anchor.Month())+months
	return time.Date(y, time.Month(m), day,
		anchor.Hour(), anchor.Minute(), anchor.Second(), anchor.Nanosecond(), anchor.Location())
}

func addYearsClamped(anchor time.Time, years int) time.Time {
	day := anchor.Day()
	if day > 28 {
		day = 28
	}
	return time.Date(anchor.Year()+years, anchor.Month(), day,
		anchor.Hour(), anchor.Minute(), anchor.Second(), anchor.Nanosecond(), anchor.Location())
}

func startOfISOWeek(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7 // Monday = 0
	d := t.AddDate(0, 0, -offset)
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, t.Location())
}

func containsWeekday(days []time.Weekday, wd time.Weekday) bool {
	for _, d := range days {
		if d == wd {
			return true
		}
	}
	return false
}
