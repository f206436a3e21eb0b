package aggregate

import (
	"fmt"
	"sort"
	"time"

	"github.com/rcabrera/citewatch/internal/logger"
	"github.com/rcabrera/citewatch/internal/models"
	"github.com/rcabrera/citewatch/internal/temporal"
)

// Bounded list sizes on the dashboard and daily views.
const (
	DashboardRecentSize   = 10
	DashboardTopEnforcers = 10
	DailyRecentSize       = 20
	TrendMonths           = 6
)

// TrendPoint is one month of the trailing dashboard series.
type TrendPoint struct {
	Month          string  `json:"month"` // YYYY-MM
	ViolationCount int     `json:"violationCount"`
	TotalFines     float64 `json:"totalFines"`
	CollectedFines float64 `json:"collectedFines"`
	PaidCount      int     `json:"paidCount"`
}

// TopEnforcer is one entry of the dashboard leaderboard.
type TopEnforcer struct {
	EnforcerID     string `json:"enforcerId"`
	Name           string `json:"name"`
	BadgeNumber    string `json:"badgeNumber,omitempty"`
	ViolationCount int    `json:"violationCount"`
}

// DashboardSnapshot is the admin console landing view.
type DashboardSnapshot struct {
	TotalViolations  int                        `json:"totalViolations"`
	TotalFines       float64                    `json:"totalFines"`
	CollectedFines   float64                    `json:"collectedFines"`
	StatusCounts     map[models.Status]int      `json:"statusCounts"` // non-zero statuses only
	MonthlyTrend     []TrendPoint               `json:"monthlyTrend"` // trailing 6 months, oldest first
	RecentViolations []models.EnrichedViolation `json:"recentViolations"`
	TopEnforcers     []TopEnforcer              `json:"topEnforcers"`
}

// TypeBreakdown aggregates one violation type within a day.
type TypeBreakdown struct {
	Count       int     `json:"count"`
	TotalFines  float64 `json:"totalFines"`
	AverageFine float64 `json:"averageFine"`
}

// EnforcerActivity is one enforcer's share of a daily summary. Active
// enforcers with no activity appear with zero values.
type EnforcerActivity struct {
	EnforcerID     string  `json:"enforcerId"`
	Name           string  `json:"name"`
	BadgeNumber    string  `json:"badgeNumber,omitempty"`
	ViolationCount int     `json:"violationCount"`
	TotalFines     float64 `json:"totalFines"`
	PaidCount      int     `json:"paidCount"`
	PendingCount   int     `json:"pendingCount"`
	PaidFines      float64 `json:"paidFines"`
	PendingFines   float64 `json:"pendingFines"`
}

// RecentEntry is a display-ready line of the daily recent-violations list.
type RecentEntry struct {
	ViolationNumber string        `json:"violationNumber"`
	Name            string        `json:"name"`
	Plate           string        `json:"plate,omitempty"`
	Type            string        `json:"type"`
	Status          models.Status `json:"status"`
	Time            string        `json:"time"`   // HH:MM in the fixed zone
	Amount          string        `json:"amount"` // formatted fine
}

// DailySummary is the rollup for one calendar day in the fixed zone.
type DailySummary struct {
	Date            string                   `json:"date"` // YYYY-MM-DD
	TotalViolations int                      `json:"totalViolations"`
	TotalFines      float64                  `json:"totalFines"`
	CollectedFines  float64                  `json:"collectedFines"`
	StatusCounts    map[models.Status]int    `json:"statusCounts"`
	ByType          map[string]TypeBreakdown `json:"byType"`
	Enforcers       []EnforcerActivity       `json:"enforcers"`
	Recent          []RecentEntry            `json:"recent"`
}

// DayCount is one day of a monthly breakdown.
type DayCount struct {
	Date  string `json:"date"` // YYYY-MM-DD
	Count int    `json:"count"`
}

// MonthlyReport is the rollup for one calendar month. DailyBreakdown covers
// every day of the month; days without violations appear with count zero.
type MonthlyReport struct {
	Month           string                `json:"month"` // YYYY-MM
	TotalViolations int                   `json:"totalViolations"`
	TotalFines      float64               `json:"totalFines"`
	CollectedFines  float64               `json:"collectedFines"`
	StatusCounts    map[models.Status]int `json:"statusCounts"`
	DailyBreakdown  []DayCount            `json:"dailyBreakdown"`
}

// EnforcerPerformance is the per-enforcer performance view.
type EnforcerPerformance struct {
	EnforcerID     string  `json:"enforcerId"`
	Name           string  `json:"name"`
	BadgeNumber    string  `json:"badgeNumber,omitempty"`
	ViolationCount int     `json:"violationCount"`
	TotalFines     float64 `json:"totalFines"`
	CollectedFines float64 `json:"collectedFines"`
	PendingFines   float64 `json:"pendingFines"`
	PaidCount      int     `json:"paidCount"`
	PendingCount   int     `json:"pendingCount"`
	TodayCount     int     `json:"todayCount"`
	MonthCount     int     `json:"monthCount"`
	CollectionRate float64 `json:"collectionRate"` // collected/total*100, 0 when total is 0
	AvgFineAmount  float64 `json:"avgFineAmount"`  // total/count, 0 when count is 0
}

// Rollup buckets violations by calendar period and enforcer. All methods are
// pure over the snapshot they are handed; records whose event time cannot be
// resolved are excluded from time buckets rather than corrupting totals, and
// the exclusion count is logged.
type Rollup struct {
	tz  *temporal.Normalizer
	log *logger.Logger
}

// NewRollup creates a Rollup bucketing in tz's fixed zone.
func NewRollup(tz *temporal.Normalizer, log *logger.Logger) *Rollup {
	return &Rollup{tz: tz, log: log.WithComponent("rollup")}
}

// Dashboard computes the landing snapshot as of now. RecentViolations carry
// placeholder actor values; the caller runs the Enrichment Joiner over them.
func (r *Rollup) Dashboard(records []models.Violation, users []models.User, now time.Time) *DashboardSnapshot {
	now = now.In(r.tz.Location())
	snap := &DashboardSnapshot{
		StatusCounts: make(map[models.Status]int),
	}

	names := userIndex(users)
	byEnforcer := make(map[string]int)
	trend := make(map[string]*TrendPoint)

	// Seed the trailing window so months without violations still appear.
	months := make([]string, 0, TrendMonths)
	cursor := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, r.tz.Location())
	cursor = cursor.AddDate(0, -(TrendMonths - 1), 0)
	for i := 0; i < TrendMonths; i++ {
		key := r.tz.MonthKey(cursor)
		months = append(months, key)
		trend[key] = &TrendPoint{Month: key}
		cursor = cursor.AddDate(0, 1, 0)
	}

	unbucketed := 0
	withTime := make([]violationAt, 0, len(records))

	for i := range records {
		v := &records[i]
		snap.TotalViolations++
		snap.TotalFines += v.FineAmount
		snap.StatusCounts[v.Status]++
		if v.Status == models.StatusPaid {
			snap.CollectedFines += v.FineAmount
		}
		if v.EnforcerID != nil && *v.EnforcerID != "" {
			byEnforcer[*v.EnforcerID]++
		}

		at, ok := r.tz.EventTime(v)
		if !ok {
			unbucketed++
			continue
		}
		withTime = append(withTime, violationAt{v: *v, at: at})

		if point, ok := trend[r.tz.MonthKey(at)]; ok {
			point.ViolationCount++
			point.TotalFines += v.FineAmount
			if v.Status == models.StatusPaid {
				point.CollectedFines += v.FineAmount
				point.PaidCount++
			}
		}
	}

	r.logUnbucketed(unbucketed, "dashboard")

	for _, key := range months {
		snap.MonthlyTrend = append(snap.MonthlyTrend, *trend[key])
	}

	sortByTimeDesc(withTime)
	for i := 0; i < len(withTime) && i < DashboardRecentSize; i++ {
		snap.RecentViolations = append(snap.RecentViolations, models.NewEnrichedViolation(withTime[i].v))
	}

	snap.TopEnforcers = topEnforcers(byEnforcer, names)

	return snap
}

// Daily computes the summary for date's calendar day. Every active enforcer
// appears in the breakdown, including those with no activity that day.
func (r *Rollup) Daily(records []models.Violation, users []models.User, date time.Time) *DailySummary {
	dayStart := r.tz.StartOfDay(date)
	dayEnd := r.tz.EndOfDay(date)

	summary := &DailySummary{
		Date:         r.tz.DayKey(date),
		StatusCounts: make(map[models.Status]int),
		ByType:       make(map[string]TypeBreakdown),
	}

	activity := make(map[string]*EnforcerActivity)
	for _, u := range users {
		if !u.IsActive || u.Role != models.RoleEnforcer {
			continue
		}
		activity[u.ID] = &EnforcerActivity{
			EnforcerID:  u.ID,
			Name:        u.FullName,
			BadgeNumber: u.BadgeNumber,
		}
	}

	unbucketed := 0
	dayRecords := make([]violationAt, 0)

	for i := range records {
		v := &records[i]
		at, ok := r.tz.EventTime(v)
		if !ok {
			unbucketed++
			continue
		}
		if at.Before(dayStart) || at.After(dayEnd) {
			continue
		}
		dayRecords = append(dayRecords, violationAt{v: *v, at: at})

		summary.TotalViolations++
		summary.TotalFines += v.FineAmount
		summary.StatusCounts[v.Status]++
		if v.Status == models.StatusPaid {
			summary.CollectedFines += v.FineAmount
		}

		bt := summary.ByType[v.Type]
		bt.Count++
		bt.TotalFines += v.FineAmount
		bt.AverageFine = bt.TotalFines / float64(bt.Count)
		summary.ByType[v.Type] = bt

		if v.EnforcerID != nil {
			if ea, ok := activity[*v.EnforcerID]; ok {
				ea.ViolationCount++
				ea.TotalFines += v.FineAmount
				switch v.Status {
				case models.StatusPaid:
					ea.PaidCount++
					ea.PaidFines += v.FineAmount
				case models.StatusPending, models.StatusIssued:
					ea.PendingCount++
					ea.PendingFines += v.FineAmount
				}
			}
		}
	}

	r.logUnbucketed(unbucketed, "daily")

	summary.Enforcers = make([]EnforcerActivity, 0, len(activity))
	for _, ea := range activity {
		summary.Enforcers = append(summary.Enforcers, *ea)
	}
	sort.Slice(summary.Enforcers, func(i, j int) bool {
		if summary.Enforcers[i].ViolationCount != summary.Enforcers[j].ViolationCount {
			return summary.Enforcers[i].ViolationCount > summary.Enforcers[j].ViolationCount
		}
		return summary.Enforcers[i].Name < summary.Enforcers[j].Name
	})

	sortByTimeDesc(dayRecords)
	for i := 0; i < len(dayRecords) && i < DailyRecentSize; i++ {
		v := dayRecords[i].v
		summary.Recent = append(summary.Recent, RecentEntry{
			ViolationNumber: v.ViolationNumber,
			Name:            v.Name,
			Plate:           v.Plate,
			Type:            v.Type,
			Status:          v.Status,
			Time:            dayRecords[i].at.Format("15:04"),
			Amount:          FormatAmount(v.FineAmount),
		})
	}

	return summary
}

// Monthly computes the report for one calendar month, with a complete
// day-by-day series.
func (r *Rollup) Monthly(records []models.Violation, year int, month time.Month) *MonthlyReport {
	monthStart := time.Date(year, month, 1, 0, 0, 0, 0, r.tz.Location())
	monthEnd := monthStart.AddDate(0, 1, 0)
	daysInMonth := monthEnd.AddDate(0, 0, -1).Day()

	report := &MonthlyReport{
		Month:        r.tz.MonthKey(monthStart),
		StatusCounts: make(map[models.Status]int),
	}

	counts := make([]int, daysInMonth+1)
	unbucketed := 0

	for i := range records {
		v := &records[i]
		at, ok := r.tz.EventTime(v)
		if !ok {
			unbucketed++
			continue
		}
		if at.Before(monthStart) || !at.Before(monthEnd) {
			continue
		}

		report.TotalViolations++
		report.TotalFines += v.FineAmount
		report.StatusCounts[v.Status]++
		if v.Status == models.StatusPaid {
			report.CollectedFines += v.FineAmount
		}
		counts[at.Day()]++
	}

	r.logUnbucketed(unbucketed, "monthly")

	report.DailyBreakdown = make([]DayCount, 0, daysInMonth)
	for d := 1; d <= daysInMonth; d++ {
		report.DailyBreakdown = append(report.DailyBreakdown, DayCount{
			Date:  time.Date(year, month, d, 0, 0, 0, 0, r.tz.Location()).Format("2006-01-02"),
			Count: counts[d],
		})
	}

	return report
}

// EnforcerReport computes per-enforcer performance for every active enforcer
// as of now.
func (r *Rollup) EnforcerReport(records []models.Violation, users []models.User, now time.Time) []EnforcerPerformance {
	todayStart := r.tz.StartOfDay(now)
	todayEnd := r.tz.EndOfDay(now)
	monthKey := r.tz.MonthKey(now)

	perf := make(map[string]*EnforcerPerformance)
	order := make([]string, 0, len(users))
	for _, u := range users {
		if !u.IsActive || u.Role != models.RoleEnforcer {
			continue
		}
		perf[u.ID] = &EnforcerPerformance{
			EnforcerID:  u.ID,
			Name:        u.FullName,
			BadgeNumber: u.BadgeNumber,
		}
		order = append(order, u.ID)
	}

	unbucketed := 0
	for i := range records {
		v := &records[i]
		if v.EnforcerID == nil {
			continue
		}
		p, ok := perf[*v.EnforcerID]
		if !ok {
			continue
		}

		p.ViolationCount++
		p.TotalFines += v.FineAmount
		switch v.Status {
		case models.StatusPaid:
			p.PaidCount++
			p.CollectedFines += v.FineAmount
		case models.StatusPending, models.StatusIssued:
			p.PendingCount++
			p.PendingFines += v.FineAmount
		}

		at, timeOK := r.tz.EventTime(v)
		if !timeOK {
			unbucketed++
			continue
		}
		if !at.Before(todayStart) && !at.After(todayEnd) {
			p.TodayCount++
		}
		if r.tz.MonthKey(at) == monthKey {
			p.MonthCount++
		}
	}

	r.logUnbucketed(unbucketed, "enforcer performance")

	result := make([]EnforcerPerformance, 0, len(order))
	for _, id := range order {
		p := perf[id]
		if p.TotalFines > 0 {
			p.CollectionRate = p.CollectedFines / p.TotalFines * 100
		}
		if p.ViolationCount > 0 {
			p.AvgFineAmount = p.TotalFines / float64(p.ViolationCount)
		}
		result = append(result, *p)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].ViolationCount != result[j].ViolationCount {
			return result[i].ViolationCount > result[j].ViolationCount
		}
		return result[i].Name < result[j].Name
	})

	return result
}

// FormatAmount renders a fine for display lists.
func FormatAmount(amount float64) string {
	return fmt.Sprintf("₱%.2f", amount)
}

type violationAt struct {
	v  models.Violation
	at time.Time
}

func sortByTimeDesc(items []violationAt) {
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].at.Equal(items[j].at) {
			return items[i].at.After(items[j].at)
		}
		return items[i].v.ID > items[j].v.ID
	})
}

func userIndex(users []models.User) map[string]models.User {
	index := make(map[string]models.User, len(users))
	for _, u := range users {
		index[u.ID] = u
	}
	return index
}

func topEnforcers(counts map[string]int, names map[string]models.User) []TopEnforcer {
	top := make([]TopEnforcer, 0, len(counts))
	for id, count := range counts {
		entry := TopEnforcer{EnforcerID: id, ViolationCount: count}
		if u, ok := names[id]; ok {
			entry.Name = u.FullName
			entry.BadgeNumber = u.BadgeNumber
		} else {
			entry.Name = models.UnknownActor
		}
		top = append(top, entry)
	}

	sort.Slice(top, func(i, j int) bool {
		if top[i].ViolationCount != top[j].ViolationCount {
			return top[i].ViolationCount > top[j].ViolationCount
		}
		return top[i].EnforcerID < top[j].EnforcerID
	})

	if len(top) > DashboardTopEnforcers {
		top = top[:DashboardTopEnforcers]
	}
	return top
}

func (r *Rollup) logUnbucketed(count int, view string) {
	if count == 0 {
		return
	}
	r.log.Warn("Records excluded from time buckets", logger.Fields{
		"excluded": count,
		"view":     view,
		"reason":   "unresolvable event time",
	})
}
