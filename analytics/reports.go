package analytics

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

const dayLayout = "2006-01-02"

type DayVisits struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

type ItemVisits struct {
	ContentItemID string `json:"content_item_id"`
	Title         string `json:"title"`
	Count         int64  `json:"count"`
}

func (a *AnalyticsModule) ItemVisitCount(ctx context.Context, itemID string) (int64, error) {
	if a == nil {
		return 0, nil
	}
	var n int64
	err := a.db.WithContext(ctx).Model(&Visit{}).Where("content_item_id = ?", itemID).Count(&n).Error
	return n, errors.Wrap(err, "counting item visits")
}

// VisitsByDay returns one entry per day for the last days days, oldest
// first, including days without visits.
func (a *AnalyticsModule) VisitsByDay(ctx context.Context, days int) ([]DayVisits, error) {
	if a == nil || days <= 0 {
		return []DayVisits{}, nil
	}
	now := a.now().UTC()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -(days - 1))

	var rows []DayVisits
	err := a.db.WithContext(ctx).Model(&Visit{}).
		Select("DATE(created_at) AS date, COUNT(*) AS count").
		Where("created_at >= ?", start).
		Group("DATE(created_at)").
		Scan(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "grouping visits by day")
	}
	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		// postgres hands DATE back as a timestamp
		if len(r.Date) > len(dayLayout) {
			r.Date = r.Date[:len(dayLayout)]
		}
		counts[r.Date] += r.Count
	}

	out := make([]DayVisits, days)
	for i := range out {
		d := start.AddDate(0, 0, i).Format(dayLayout)
		out[i] = DayVisits{Date: d, Count: counts[d]}
	}
	return out, nil
}

// TopItems returns the most visited content items of the last days days.
func (a *AnalyticsModule) TopItems(ctx context.Context, days, limit int) ([]ItemVisits, error) {
	if a == nil {
		return []ItemVisits{}, nil
	}
	since := a.now().UTC().AddDate(0, 0, -days)
	rows := []ItemVisits{}
	err := a.db.WithContext(ctx).Table("visits").
		Select("visits.content_item_id AS content_item_id, content_items.title AS title, COUNT(*) AS count").
		Joins("INNER JOIN content_items ON content_items.id = visits.content_item_id").
		Where("visits.created_at >= ?", since).
		Group("visits.content_item_id, content_items.title").
		Order("count DESC").
		Limit(limit).
		Scan(&rows).Error
	return rows, errors.Wrap(err, "listing top items")
}
