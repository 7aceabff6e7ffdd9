// internal/service/metrics/activity.go
package metrics

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"fedportal-service/internal/domain/identity"
	"fedportal-service/internal/domain/metrics"
)

// activityWindowDays bounds how far back the merged feed reaches.
const activityWindowDays = 30

// ActivityFeed merges the three document logs into one chronological feed
// with per-user rollups. A failing source is skipped and the feed is marked
// partial.
func (e *Engine) ActivityFeed(ctx context.Context, scope metrics.Scope, filter metrics.ActivityFilter) (*metrics.ActivityFeed, error) {
	since := e.now().AddDate(0, 0, -activityWindowDays)

	principals := e.directoryIndex(ctx)

	feed := &metrics.ActivityFeed{Events: []metrics.ActivityEvent{}, Users: []metrics.UserRollup{}}

	if filter.Source == "" || filter.Source == metrics.CategoryDocease {
		events, err := e.docease.ListSince(ctx, since, scope)
		if err != nil {
			e.logger.Warn("activity feed: docease source failed", zap.Error(err))
			feed.Partial = true
		}
		for _, ev := range events {
			feed.Events = append(feed.Events, doceaseToActivity(ev, principals))
		}
	}

	if filter.Source == "" || filter.Source == metrics.CategorySignease {
		events, err := e.signease.ListSince(ctx, since, scope)
		if err != nil {
			e.logger.Warn("activity feed: signease source failed", zap.Error(err))
			feed.Partial = true
		}
		for _, ev := range events {
			feed.Events = append(feed.Events, signeaseToActivity(ev))
		}
	}

	if filter.Source == "" || filter.Source == metrics.CategorySignatures {
		events, err := e.signatures.ListSince(ctx, since, scope)
		if err != nil {
			e.logger.Warn("activity feed: signatures source failed", zap.Error(err))
			feed.Partial = true
		}
		for _, ev := range events {
			feed.Events = append(feed.Events, signatureToActivity(ev, principals))
		}
	}

	feed.Events = applyActivityFilter(feed.Events, filter)

	sort.SliceStable(feed.Events, func(i, j int) bool {
		return feed.Events[i].OccurredAt.After(feed.Events[j].OccurredAt)
	})

	feed.Total = len(feed.Events)
	feed.Users = rollupUsers(feed.Events)
	return feed, nil
}

// directoryIndex loads the user directory keyed by id. A failed load yields
// an empty index; events then carry ids without enrichment.
func (e *Engine) directoryIndex(ctx context.Context) map[string]identity.Principal {
	index := make(map[string]identity.Principal)
	principals, err := e.users.Directory(ctx)
	if err != nil {
		e.logger.Warn("activity feed: directory unavailable", zap.Error(err))
		return index
	}
	for _, p := range principals {
		index[p.ID] = p
	}
	return index
}

func doceaseToActivity(ev metrics.DoceaseEvent, principals map[string]identity.Principal) metrics.ActivityEvent {
	out := metrics.ActivityEvent{
		ID:           fmt.Sprintf("docease-%d", ev.ID),
		Source:       metrics.CategoryDocease,
		Title:        ev.Title,
		DocumentType: ev.DocumentType,
		UserID:       ev.UserID,
		OccurredAt:   ev.CreatedAt,
		Metadata:     ev.Metadata,
	}
	if p, ok := principals[ev.UserID]; ok {
		out.UserEmail = p.Email
		out.UserName = p.DisplayName
		out.AvatarURL = p.AvatarURL
	}
	return out
}

func signeaseToActivity(ev metrics.SigneaseEvent) metrics.ActivityEvent {
	title := ev.DocumentName
	if title == "" {
		title = metrics.ActionLabel(ev.ActionType)
	}
	return metrics.ActivityEvent{
		ID:           fmt.Sprintf("signease-%d", ev.ID),
		Source:       metrics.CategorySignease,
		Title:        title,
		DocumentType: metrics.ActionLabel(ev.ActionType),
		UserEmail:    ev.UserEmail,
		UserName:     ev.UserName,
		OccurredAt:   ev.CreatedAt,
		Metadata:     ev.Metadata,
	}
}

func signatureToActivity(ev metrics.SignatureEvent, principals map[string]identity.Principal) metrics.ActivityEvent {
	out := metrics.ActivityEvent{
		ID:           fmt.Sprintf("signature-%d", ev.ID),
		Source:       metrics.CategorySignatures,
		Title:        fmt.Sprintf("Signed document #%d", ev.DocumentID),
		DocumentType: "Signature",
		UserID:       ev.UserID,
		OccurredAt:   ev.SignedAt,
	}
	if p, ok := principals[ev.UserID]; ok {
		out.UserEmail = p.Email
		out.UserName = p.DisplayName
		out.AvatarURL = p.AvatarURL
	}
	return out
}

func applyActivityFilter(events []metrics.ActivityEvent, filter metrics.ActivityFilter) []metrics.ActivityEvent {
	email := strings.ToLower(strings.TrimSpace(filter.UserEmail))
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	if email == "" && search == "" {
		return events
	}

	out := events[:0]
	for _, ev := range events {
		if email != "" && strings.ToLower(ev.UserEmail) != email {
			continue
		}
		if search != "" && !matchesSearch(ev, search) {
			continue
		}
		out = append(out, ev)
	}
	return out
}

func matchesSearch(ev metrics.ActivityEvent, search string) bool {
	for _, field := range []string{ev.Title, ev.DocumentType, ev.UserEmail, ev.UserName} {
		if strings.Contains(strings.ToLower(field), search) {
			return true
		}
	}
	return false
}

// rollupUsers aggregates the filtered feed per user email, most recently
// active first. Events with no resolvable email are left out of the rollup
// but stay in the feed.
func rollupUsers(events []metrics.ActivityEvent) []metrics.UserRollup {
	byEmail := make(map[string]*metrics.UserRollup)
	for _, ev := range events {
		email := strings.ToLower(strings.TrimSpace(ev.UserEmail))
		if email == "" {
			continue
		}
		r, ok := byEmail[email]
		if !ok {
			r = &metrics.UserRollup{Email: email}
			byEmail[email] = r
		}
		if r.Name == "" {
			r.Name = ev.UserName
		}
		if r.AvatarURL == "" {
			r.AvatarURL = ev.AvatarURL
		}
		switch ev.Source {
		case metrics.CategoryDocease:
			r.DoceaseCount++
		default:
			r.SignatureCount++
		}
		if ev.OccurredAt.After(r.LastActivityAt) {
			r.LastActivityAt = ev.OccurredAt
		}
	}

	out := make([]metrics.UserRollup, 0, len(byEmail))
	for _, r := range byEmail {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastActivityAt.After(out[j].LastActivityAt)
	})
	return out
}
