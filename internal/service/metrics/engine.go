// internal/service/metrics/engine.go
package metrics

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"fedportal-service/internal/domain/identity"
	"fedportal-service/internal/domain/metrics"
)

const (
	dailySeriesDays  = 7
	typeBreakdownMax = 6
)

// DoceaseStore reads the document-generation log.
type DoceaseStore interface {
	CountSince(ctx context.Context, since time.Time, scope metrics.Scope) (int, error)
	TypeCounts(ctx context.Context, since time.Time, scope metrics.Scope) ([]metrics.TypeStat, error)
	UserIDsSince(ctx context.Context, since time.Time, scope metrics.Scope) ([]string, error)
	ListSince(ctx context.Context, since time.Time, scope metrics.Scope) ([]metrics.DoceaseEvent, error)
}

// SigneaseStore reads the signature-tool activity log.
type SigneaseStore interface {
	CountSince(ctx context.Context, since time.Time, scope metrics.Scope) (int, error)
	EmailsSince(ctx context.Context, since time.Time, scope metrics.Scope) ([]string, error)
	ListSince(ctx context.Context, since time.Time, scope metrics.Scope) ([]metrics.SigneaseEvent, error)
}

// SignatureStore reads the legacy signature log.
type SignatureStore interface {
	CountSince(ctx context.Context, since time.Time, scope metrics.Scope) (int, error)
	UserIDsSince(ctx context.Context, since time.Time, scope metrics.Scope) ([]string, error)
	ListSince(ctx context.Context, since time.Time, scope metrics.Scope) ([]metrics.SignatureEvent, error)
}

// SessionStore reads presence-derived activity.
type SessionStore interface {
	CountSince(ctx context.Context, since time.Time, ownerID string) (int, error)
	EmailsSince(ctx context.Context, since time.Time) ([]string, error)
}

// Directory resolves user ids to principals for email merging.
type Directory interface {
	Directory(ctx context.Context) ([]identity.Principal, error)
}

// Engine computes metrics snapshots. Stateless; every snapshot is a fresh
// read of the event stores.
type Engine struct {
	docease    DoceaseStore
	signease   SigneaseStore
	signatures SignatureStore
	sessions   SessionStore
	users      Directory
	logger     *zap.Logger
	now        func() time.Time
}

func NewEngine(docease DoceaseStore, signease SigneaseStore, signatures SignatureStore, sessions SessionStore, users Directory, logger *zap.Logger) *Engine {
	return &Engine{
		docease:    docease,
		signease:   signease,
		signatures: signatures,
		sessions:   sessions,
		users:      users,
		logger:     logger,
		now:        time.Now,
	}
}

// ScopeFor derives the data-visibility scope of an identity. During
// impersonation the target's scope applies, never the operator's.
func ScopeFor(eff *identity.EffectiveIdentity) metrics.Scope {
	if !eff.IsRestrictedScope() {
		return metrics.Scope{}
	}
	return metrics.Scope{
		Restricted: true,
		OwnerID:    eff.ActingAs.ID,
		OwnerEmail: eff.ActingAs.Email,
	}
}

// categoryResult holds whatever one event source contributed before the
// merge. Categories run and fail independently.
type categoryResult struct {
	count     int
	emails    []string
	userIDs   []string
	typeStats []metrics.TypeStat
	daily     []dailyPoint
	err       error
}

type dailyPoint struct {
	at       time.Time
	docease  bool
	signease bool
}

// ComputeSnapshot aggregates all four event sources for the query. The
// sources are queried concurrently and a failing source degrades to zero
// values rather than failing the snapshot; degraded sources are listed on
// the result. ComputeSnapshot itself errors only when the context dies.
func (e *Engine) ComputeSnapshot(ctx context.Context, q metrics.Query) (*metrics.Snapshot, error) {
	now := e.now()
	periodStart := q.TimeRange.PeriodStart(now)
	seriesStart := metrics.RangeWeek.PeriodStart(now)

	results := make(map[metrics.Category]*categoryResult, 4)
	for _, cat := range metrics.Categories() {
		results[cat] = &categoryResult{}
	}

	// Deliberately not an errgroup: one source failing must not cancel the
	// siblings' queries.
	var wg sync.WaitGroup
	wg.Add(4)

	go func() {
		defer wg.Done()
		results[metrics.CategoryDocease].collectDocease(ctx, e.docease, q.Scope, periodStart, seriesStart)
	}()
	go func() {
		defer wg.Done()
		results[metrics.CategorySignease].collectSignease(ctx, e.signease, q.Scope, periodStart, seriesStart)
	}()
	go func() {
		defer wg.Done()
		results[metrics.CategorySignatures].collectSignatures(ctx, e.signatures, q.Scope, periodStart)
	}()
	go func() {
		defer wg.Done()
		results[metrics.CategorySessions].collectSessions(ctx, e.sessions, q.Scope, periodStart)
	}()

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	snap := &metrics.Snapshot{
		Query:       q,
		PeriodLabel: q.TimeRange.Label(),
		Counts:      make(map[metrics.Category]int, 4),
		ComputedAt:  now,
	}

	for _, cat := range metrics.Categories() {
		res := results[cat]
		if res.err != nil {
			e.logger.Warn("metrics source failed, zeroing category",
				zap.String("category", string(cat)),
				zap.Error(res.err))
			snap.Counts[cat] = 0
			snap.DegradedCategories = append(snap.DegradedCategories, cat)
			continue
		}
		snap.Counts[cat] = res.count
	}

	snap.TypeBreakdown = withPercentages(results[metrics.CategoryDocease].typeStats)
	snap.DailySeries = buildDailySeries(now,
		results[metrics.CategoryDocease].daily,
		results[metrics.CategorySignease].daily)
	snap.ActivePrincipalCount = e.activePrincipals(ctx, q.Scope, results)

	return snap, nil
}

func (r *categoryResult) collectDocease(ctx context.Context, store DoceaseStore, scope metrics.Scope, periodStart, seriesStart time.Time) {
	count, err := store.CountSince(ctx, periodStart, scope)
	if err != nil {
		r.err = err
		return
	}
	r.count = count

	if r.typeStats, r.err = store.TypeCounts(ctx, periodStart, scope); r.err != nil {
		return
	}
	if r.userIDs, r.err = store.UserIDsSince(ctx, periodStart, scope); r.err != nil {
		return
	}

	events, err := store.ListSince(ctx, seriesStart, scope)
	if err != nil {
		r.err = err
		return
	}
	for _, ev := range events {
		r.daily = append(r.daily, dailyPoint{at: ev.CreatedAt, docease: true})
	}
}

func (r *categoryResult) collectSignease(ctx context.Context, store SigneaseStore, scope metrics.Scope, periodStart, seriesStart time.Time) {
	count, err := store.CountSince(ctx, periodStart, scope)
	if err != nil {
		r.err = err
		return
	}
	r.count = count

	if r.emails, r.err = store.EmailsSince(ctx, periodStart, scope); r.err != nil {
		return
	}

	events, err := store.ListSince(ctx, seriesStart, scope)
	if err != nil {
		r.err = err
		return
	}
	for _, ev := range events {
		r.daily = append(r.daily, dailyPoint{at: ev.CreatedAt, signease: true})
	}
}

func (r *categoryResult) collectSignatures(ctx context.Context, store SignatureStore, scope metrics.Scope, periodStart time.Time) {
	count, err := store.CountSince(ctx, periodStart, scope)
	if err != nil {
		r.err = err
		return
	}
	r.count = count
	r.userIDs, r.err = store.UserIDsSince(ctx, periodStart, scope)
}

func (r *categoryResult) collectSessions(ctx context.Context, store SessionStore, scope metrics.Scope, periodStart time.Time) {
	owner := ""
	if scope.Restricted {
		owner = scope.OwnerID
	}
	count, err := store.CountSince(ctx, periodStart, owner)
	if err != nil {
		r.err = err
		return
	}
	r.count = count

	if !scope.Restricted {
		r.emails, r.err = store.EmailsSince(ctx, periodStart)
	}
}

// activePrincipals counts distinct emails across every source. Sources that
// key by user id are resolved through the directory; a failed resolution
// falls back to ids as opaque keys. Restricted scopes always report one.
func (e *Engine) activePrincipals(ctx context.Context, scope metrics.Scope, results map[metrics.Category]*categoryResult) int {
	if scope.Restricted {
		return 1
	}

	seen := make(map[string]struct{})
	add := func(key string) {
		key = strings.ToLower(strings.TrimSpace(key))
		if key == "" {
			return
		}
		seen[key] = struct{}{}
	}

	var ids []string
	for _, res := range results {
		if res.err != nil {
			continue
		}
		for _, email := range res.emails {
			add(email)
		}
		ids = append(ids, res.userIDs...)
	}

	if len(ids) > 0 {
		emailByID := make(map[string]string)
		if principals, err := e.users.Directory(ctx); err == nil {
			for _, p := range principals {
				emailByID[p.ID] = p.Email
			}
		} else {
			e.logger.Warn("failed to resolve directory for principal count", zap.Error(err))
		}
		for _, id := range ids {
			if email, ok := emailByID[id]; ok {
				add(email)
			} else {
				add(id)
			}
		}
	}

	return len(seen)
}

// withPercentages fills in each slice's share of the whole and keeps the
// top entries. The divisor is floored at one so an empty breakdown yields
// zero percentages, never a division by zero. Input arrives count-descending
// from the store.
func withPercentages(stats []metrics.TypeStat) []metrics.TypeStat {
	total := 0
	for _, s := range stats {
		total += s.Count
	}
	if total < 1 {
		total = 1
	}
	if len(stats) > typeBreakdownMax {
		stats = stats[:typeBreakdownMax]
	}
	out := make([]metrics.TypeStat, len(stats))
	for i, s := range stats {
		s.Percentage = int(float64(s.Count)*100/float64(total) + 0.5)
		out[i] = s
	}
	return out
}

// buildDailySeries buckets events into the trailing seven days, oldest
// first. The series always spans seven days no matter the selected range.
func buildDailySeries(now time.Time, sources ...[]dailyPoint) []metrics.DayStat {
	type bucket struct {
		docease  int
		signease int
	}

	dayKey := func(t time.Time) string {
		return t.Format("2006-01-02")
	}

	buckets := make(map[string]*bucket, dailySeriesDays)
	series := make([]metrics.DayStat, 0, dailySeriesDays)
	keys := make([]string, 0, dailySeriesDays)

	for i := dailySeriesDays - 1; i >= 0; i-- {
		day := now.AddDate(0, 0, -i)
		key := dayKey(day)
		buckets[key] = &bucket{}
		keys = append(keys, key)
		series = append(series, metrics.DayStat{DayLabel: day.Format("Mon")})
	}

	for _, points := range sources {
		for _, p := range points {
			b, ok := buckets[dayKey(p.at)]
			if !ok {
				continue
			}
			if p.docease {
				b.docease++
			}
			if p.signease {
				b.signease++
			}
		}
	}

	for i, key := range keys {
		series[i].Docease = buckets[key].docease
		series[i].Signease = buckets[key].signease
	}
	return series
}
