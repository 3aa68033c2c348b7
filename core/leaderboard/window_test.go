package leaderboard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWindowFor(t *testing.T) {
	// Thursday
	now := time.Date(2024, time.February, 15, 13, 45, 0, 0, time.UTC)

	tests := []struct {
		name     string
		period   Period
		now      time.Time
		wantFrom time.Time
	}{
		{name: "all time", period: PeriodAllTime, now: now},
		{name: "daily", period: PeriodDaily, now: now, wantFrom: time.Date(2024, time.February, 15, 0, 0, 0, 0, time.UTC)},
		{name: "weekly", period: PeriodWeekly, now: now, wantFrom: time.Date(2024, time.February, 12, 0, 0, 0, 0, time.UTC)},
		{
			name:     "weekly on a monday",
			period:   PeriodWeekly,
			now:      time.Date(2024, time.February, 12, 0, 0, 1, 0, time.UTC),
			wantFrom: time.Date(2024, time.February, 12, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "weekly on a sunday",
			period:   PeriodWeekly,
			now:      time.Date(2024, time.February, 18, 23, 59, 0, 0, time.UTC),
			wantFrom: time.Date(2024, time.February, 12, 0, 0, 0, 0, time.UTC),
		},
		{name: "monthly", period: PeriodMonthly, now: now, wantFrom: time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC)},
		{
			name:     "non UTC clock",
			period:   PeriodDaily,
			now:      time.Date(2024, time.February, 16, 1, 0, 0, 0, time.FixedZone("UTC+3", 3*3600)),
			wantFrom: time.Date(2024, time.February, 15, 0, 0, 0, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := WindowFor(tt.period, tt.now)
			assert.True(t, w.From.Equal(tt.wantFrom), "From = %v, want %v", w.From, tt.wantFrom)
			assert.True(t, w.To.Equal(tt.now), "To = %v, want %v", w.To, tt.now)
		})
	}
}

func TestWindow_Contains(t *testing.T) {
	from := time.Date(2024, time.February, 12, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)
	w := Window{From: from, To: to}

	assert.True(t, w.Contains(from))
	assert.True(t, w.Contains(to.Add(-time.Nanosecond)))
	assert.False(t, w.Contains(to))
	assert.False(t, w.Contains(from.Add(-time.Nanosecond)))
	assert.True(t, Window{To: to}.Contains(time.Time{}.Add(time.Hour)))
}

func TestLeaderboard_Validate(t *testing.T) {
	tests := []struct {
		name    string
		lb      Leaderboard
		wantErr bool
	}{
		{name: "site", lb: Leaderboard{Name: "Global", Scope: ScopeSite, Period: PeriodAllTime}},
		{name: "course", lb: Leaderboard{Name: "Go 101", Scope: ScopeCourse, ScopeID: "go-101", Period: PeriodWeekly}},
		{name: "normalised", lb: Leaderboard{Name: " Daily ", Scope: " SITE ", Period: "Daily"}},
		{name: "course without id", lb: Leaderboard{Name: "Go 101", Scope: ScopeCourse, Period: PeriodWeekly}, wantErr: true},
		{name: "category without id", lb: Leaderboard{Name: "Quiz", Scope: ScopeCategory, Period: PeriodDaily}, wantErr: true},
		{name: "unknown scope", lb: Leaderboard{Name: "X", Scope: "school", Period: PeriodDaily}, wantErr: true},
		{name: "unknown period", lb: Leaderboard{Name: "X", Scope: ScopeSite, Period: "yearly"}, wantErr: true},
		{name: "blank name", lb: Leaderboard{Name: "  ", Scope: ScopeSite, Period: PeriodDaily}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.lb.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLeaderboard_Matches(t *testing.T) {
	ev := PointEvent{UserID: "u1", Points: 5, Category: "quiz"}
	ev.CourseID.SetValid("go-101")

	assert.True(t, Leaderboard{Scope: ScopeSite}.Matches(ev))
	assert.True(t, Leaderboard{Scope: ScopeCourse, ScopeID: "go-101"}.Matches(ev))
	assert.False(t, Leaderboard{Scope: ScopeCourse, ScopeID: "rust-101"}.Matches(ev))
	assert.True(t, Leaderboard{Scope: ScopeCategory, ScopeID: "quiz"}.Matches(ev))
	assert.False(t, Leaderboard{Scope: ScopeCategory, ScopeID: "forum"}.Matches(ev))
	assert.False(t, Leaderboard{Scope: "school"}.Matches(ev))
}
