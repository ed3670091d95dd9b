package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vnkhanh/aetherstudy-backend/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const DefaultFreeWindow = 7 * 24 * time.Hour

// CanUse reports whether a free-tier feature last used at lastUsed may run at now.
func CanUse(lastUsed *time.Time, now time.Time, window time.Duration) bool {
	if lastUsed == nil {
		return true
	}
	return now.Sub(*lastUsed) >= window
}

// TimeUntilReset is nil when the feature is available.
func TimeUntilReset(lastUsed *time.Time, now time.Time, window time.Duration) *time.Duration {
	if CanUse(lastUsed, now, window) {
		return nil
	}
	remaining := lastUsed.Add(window).Sub(now)
	return &remaining
}

// FormatRemaining renders a duration as "N days M hours" style text.
func FormatRemaining(d time.Duration) string {
	days := int(d / (24 * time.Hour))
	hours := int((d % (24 * time.Hour)) / time.Hour)
	if days > 0 {
		return fmt.Sprintf("%s %s", plural(days, "day"), plural(hours, "hour"))
	}
	return plural(hours, "hour")
}

// plural only adds the suffix above one, so zero reads "0 hour".
func plural(n int, unit string) string {
	if n <= 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// UsageLimitError is returned when a free-tier user hits the window.
type UsageLimitError struct {
	Feature   models.AIFeature
	Remaining time.Duration
}

func (e *UsageLimitError) Error() string {
	return fmt.Sprintf("You have already used free %s generation. Try again in %s or upgrade to Pro.",
		e.Feature, FormatRemaining(e.Remaining))
}

type FeatureUsage struct {
	CanUse     bool       `json:"can_use"`
	ResetIn    *string    `json:"reset_in"`
	LastUsedAt *time.Time `json:"last_used_at"`
}

// UsageService keeps the one-use-per-window state of gated AI features.
type UsageService struct {
	db     *gorm.DB
	window time.Duration
	now    func() time.Time
}

func NewUsageService(db *gorm.DB, window time.Duration) *UsageService {
	if window <= 0 {
		window = DefaultFreeWindow
	}
	return &UsageService{db: db, window: window, now: time.Now}
}

func (s *UsageService) Window() time.Duration { return s.window }

func (s *UsageService) lastUsed(ctx context.Context, userID uuid.UUID, feature models.AIFeature) (*time.Time, error) {
	var usage models.AIUsage
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND feature = ?", userID, feature).
		First(&usage).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &usage.LastUsedAt, nil
}

// Check returns a *UsageLimitError when the user may not run the feature.
// Pro users are never limited.
func (s *UsageService) Check(ctx context.Context, userID uuid.UUID, feature models.AIFeature, isPro bool) error {
	if isPro {
		return nil
	}
	last, err := s.lastUsed(ctx, userID, feature)
	if err != nil {
		return err
	}
	if remaining := TimeUntilReset(last, s.now(), s.window); remaining != nil {
		return &UsageLimitError{Feature: feature, Remaining: *remaining}
	}
	return nil
}

// Record stamps a successful generation.
func (s *UsageService) Record(ctx context.Context, userID uuid.UUID, feature models.AIFeature) error {
	now := s.now()
	usage := models.AIUsage{UserID: userID, Feature: feature, LastUsedAt: now}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "feature"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"last_used_at": now, "updated_at": now}),
	}).Create(&usage).Error
}

func (s *UsageService) Summary(ctx context.Context, userID uuid.UUID, isPro bool) (map[models.AIFeature]FeatureUsage, error) {
	var rows []models.AIUsage
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&rows).Error; err != nil {
		return nil, err
	}
	byFeature := make(map[models.AIFeature]time.Time, len(rows))
	for _, r := range rows {
		byFeature[r.Feature] = r.LastUsedAt
	}

	now := s.now()
	out := make(map[models.AIFeature]FeatureUsage, 2)
	for _, f := range []models.AIFeature{models.FeatureFlashcards, models.FeatureQuiz} {
		entry := FeatureUsage{CanUse: true}
		if t, ok := byFeature[f]; ok {
			last := t
			entry.LastUsedAt = &last
			if !isPro {
				if remaining := TimeUntilReset(&last, now, s.window); remaining != nil {
					text := FormatRemaining(*remaining)
					entry.CanUse = false
					entry.ResetIn = &text
				}
			}
		}
		out[f] = entry
	}
	return out, nil
}

// RetryAfterSeconds rounds up for the Retry-After header.
func RetryAfterSeconds(d time.Duration) int {
	secs := int(d / time.Second)
	if d%time.Second != 0 {
		secs++
	}
	return secs
}
