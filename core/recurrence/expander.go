package recurrence

import (
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/kilianp07/errandplan/core/logger"
	"github.com/kilianp07/errandplan/core/model"
)

// lazyYieldsPerDay caps how many candidates an interval-driven series may
// produce per horizon day. Guards against degenerate strides.
const lazyYieldsPerDay = 24

var rruleWeekdays = map[time.Weekday]rrule.Weekday{
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
	time.Sunday:    rrule.SU,
}

// Expander turns errand definitions into candidate-date series bounded by a
// planning horizon. Day-pattern rules are expanded eagerly; interval-driven
// rules stay lazy so later candidates depend on where the previous
// occurrence actually landed.
type Expander struct {
	log logger.Logger
}

// NewExpander builds an expander. A nil logger falls back to a no-op one.
func NewExpander(log logger.Logger) *Expander {
	if log == nil {
		log = logger.Nop{}
	}
	return &Expander{log: log}
}

// Series builds the candidate-date series for one definition. It returns an
// *InvalidRecurrenceError when the repeat rule is contradictory; callers
// skip that definition and continue.
func (e *Expander) Series(def *model.ErrandDefinition, h model.Horizon) (*Series, error) {
	if err := h.Validate(); err != nil {
		return nil, err
	}
	r := def.Repeat
	if r.Recurs() && def.Interval.MinGap > 0 {
		if def.Interval.MinGap >= h.End().Sub(h.Start) {
			return nil, invalid(def.ID, "minimum gap %s exceeds the %d-day horizon", def.Interval.MinGap, h.Days)
		}
	}

	switch r.Kind {
	case model.RepeatNone:
		return &Series{defID: def.ID, horizon: h, eager: []time.Time{h.Start}}, nil
	case model.RepeatEveryNDays:
		return e.lazySeries(def, h)
	case model.RepeatDaily, model.RepeatWeekly, model.RepeatWeeklyOnDays,
		model.RepeatBiweeklyOnDays, model.RepeatMonthly, model.RepeatMonthlyOnDays,
		model.RepeatYearly, model.RepeatYearlyOnDays:
		dates, err := e.eagerDates(def, h)
		if err != nil {
			return nil, err
		}
		return &Series{defID: def.ID, horizon: h, eager: dates}, nil
	default:
		return nil, invalid(def.ID, "unknown repeat kind %d", int(r.Kind))
	}
}

func (e *Expander) lazySeries(def *model.ErrandDefinition, h model.Horizon) (*Series, error) {
	stride := time.Duration(def.Repeat.EveryN) * 24 * time.Hour
	if stride <= 0 {
		stride = def.Interval.Target
	}
	if stride <= 0 {
		return nil, invalid(def.ID, "interval rule without a stride: set every-n days or a target spacing")
	}
	if stride < time.Hour {
		return nil, invalid(def.ID, "stride %s below one hour", stride)
	}
	if def.Interval.MinGap > stride+def.Interval.Tolerance {
		return nil, invalid(def.ID, "minimum gap %s can never be met with stride %s", def.Interval.MinGap, stride)
	}
	return &Series{
		defID:     def.ID,
		horizon:   h,
		lazy:      true,
		stride:    stride,
		maxYields: h.Days * lazyYieldsPerDay,
	}, nil
}

// eagerDates expands the day-pattern kinds through rrule, merged and sorted.
func (e *Expander) eagerDates(def *model.ErrandDefinition, h model.Horizon) ([]time.Time, error) {
	rules, err := buildRules(def, h)
	if err != nil {
		return nil, err
	}

	// Between is inclusive on both ends; the horizon end is exclusive.
	last := h.End().Add(-time.Second)
	seen := make(map[time.Time]struct{})
	var dates []time.Time
	for _, r := range rules {
		for _, occ := range r.Between(h.Start, last, true) {
			day := time.Date(occ.Year(), occ.Month(), occ.Day(), 0, 0, 0, 0, h.Start.Location())
			if _, dup := seen[day]; dup {
				continue
			}
			seen[day] = struct{}{}
			dates = append(dates, day)
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	e.log.Debugf("expanded %s: %d candidate dates over %d days", def.ID, len(dates), h.Days)
	return dates, nil
}

func buildRules(def *model.ErrandDefinition, h model.Horizon) ([]*rrule.RRule, error) {
	r := def.Repeat
	opt := rrule.ROption{Dtstart: h.Start}

	switch r.Kind {
	case model.RepeatDaily:
		opt.Freq = rrule.DAILY
	case model.RepeatWeekly:
		opt.Freq = rrule.WEEKLY
	case model.RepeatWeeklyOnDays:
		days, err := toRRuleDays(def.ID, r.Weekdays)
		if err != nil {
			return nil, err
		}
		opt.Freq = rrule.WEEKLY
		opt.Byweekday = days
	case model.RepeatBiweeklyOnDays:
		return biweeklyRules(def, h)
	case model.RepeatMonthly:
		opt.Freq = rrule.MONTHLY
	case model.RepeatMonthlyOnDays:
		if len(r.MonthDays) == 0 {
			return nil, invalid(def.ID, "monthly-on-days rule with an empty day set")
		}
		for _, d := range r.MonthDays {
			if d < 1 || d > 31 {
				return nil, invalid(def.ID, "day of month %d out of range", d)
			}
		}
		opt.Freq = rrule.MONTHLY
		opt.Bymonthday = r.MonthDays
	case model.RepeatYearly:
		opt.Freq = rrule.YEARLY
	case model.RepeatYearlyOnDays:
		return yearlyRules(def, h)
	}

	rule, err := rrule.NewRRule(opt)
	if err != nil {
		return nil, invalid(def.ID, "cannot build rule: %v", err)
	}
	return []*rrule.RRule{rule}, nil
}

// biweeklyRules builds the alternating-week pair: one interval-2 weekly rule
// per weekday set, phase-shifted by the anchor Monday.
func biweeklyRules(def *model.ErrandDefinition, h model.Horizon) ([]*rrule.RRule, error) {
	r := def.Repeat
	if len(r.Weekdays) == 0 && len(r.WeekdaysAlt) == 0 {
		return nil, invalid(def.ID, "biweekly rule with both weekday sets empty")
	}
	if r.AnchorMonday.IsZero() {
		return nil, invalid(def.ID, "biweekly rule without an anchor Monday")
	}
	if r.AnchorMonday.Weekday() != time.Monday {
		return nil, invalid(def.ID, "biweekly anchor %s is not a Monday", r.AnchorMonday.Format("2006-01-02"))
	}

	var rules []*rrule.RRule
	sets := []struct {
		days  []time.Weekday
		start time.Time
	}{
		{r.Weekdays, r.AnchorMonday},
		{r.WeekdaysAlt, r.AnchorMonday.AddDate(0, 0, 7)},
	}
	for _, s := range sets {
		if len(s.days) == 0 {
			continue
		}
		days, err := toRRuleDays(def.ID, s.days)
		if err != nil {
			return nil, err
		}
		rule, err := rrule.NewRRule(rrule.ROption{
			Freq:      rrule.WEEKLY,
			Interval:  2,
			Byweekday: days,
			Dtstart:   s.start,
			Wkst:      rrule.MO,
		})
		if err != nil {
			return nil, invalid(def.ID, "cannot build biweekly rule: %v", err)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func yearlyRules(def *model.ErrandDefinition, h model.Horizon) ([]*rrule.RRule, error) {
	r := def.Repeat
	if len(r.YearDays) == 0 {
		return nil, invalid(def.ID, "yearly-on-days rule with an empty day set")
	}
	var rules []*rrule.RRule
	for _, md := range r.YearDays {
		if md.Month < time.January || md.Month > time.December || md.Day < 1 || md.Day > 31 {
			return nil, invalid(def.ID, "invalid month/day pair %d/%d", md.Month, md.Day)
		}
		rule, err := rrule.NewRRule(rrule.ROption{
			Freq:       rrule.YEARLY,
			Bymonth:    []int{int(md.Month)},
			Bymonthday: []int{md.Day},
			Dtstart:    h.Start,
		})
		if err != nil {
			return nil, invalid(def.ID, "cannot build yearly rule: %v", err)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func toRRuleDays(defID string, days []time.Weekday) ([]rrule.Weekday, error) {
	if len(days) == 0 {
		return nil, invalid(defID, "on-days rule with an empty weekday set")
	}
	out := make([]rrule.Weekday, 0, len(days))
	for _, d := range days {
		wd, ok := rruleWeekdays[d]
		if !ok {
			return nil, invalid(defID, "unknown weekday %d", int(d))
		}
		out = append(out, wd)
	}
	return out, nil
}
