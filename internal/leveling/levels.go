// Package leveling maps loyalty points to named tiers and holds the point
// reward tables.
package leveling

import (
	"encoding/json"
	"fmt"
	"math"
)

// Level is a named points band. MaxPoints is math.MaxInt for the top tier
// and encodes as null.
type Level struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	MinPoints   int    `json:"min_points"`
	MaxPoints   int    `json:"max_points"`
	Icon        string `json:"icon"`
	Color       string `json:"color"`
	Description string `json:"description"`
}

func (l Level) IsTop() bool { return l.MaxPoints == math.MaxInt }

func (l Level) MarshalJSON() ([]byte, error) {
	type plain Level
	out := struct {
		plain
		MaxPoints *int `json:"max_points"`
	}{plain: plain(l)}
	if !l.IsTop() {
		out.MaxPoints = &l.MaxPoints
	}
	return json.Marshal(out)
}

var Levels = []Level{
	{
		ID:          "explorer",
		Name:        "Explorer",
		MinPoints:   0,
		MaxPoints:   499,
		Icon:        "search",
		Color:       "#3B82F6",
		Description: "Entry level - Just starting your bourbon journey",
	},
	{
		ID:          "enthusiast",
		Name:        "Enthusiast",
		MinPoints:   500,
		MaxPoints:   1999,
		Icon:        "wine",
		Color:       "#8B5CF6",
		Description: "Developing your palate - Access to bonus drops",
	},
	{
		ID:          "connoisseur",
		Name:        "Connoisseur",
		MinPoints:   2000,
		MaxPoints:   4999,
		Icon:        "glass-water",
		Color:       "#F59E0B",
		Description: "A true bourbon aficionado - Early alerts",
	},
	{
		ID:          "master",
		Name:        "Master",
		MinPoints:   5000,
		MaxPoints:   math.MaxInt,
		Icon:        "crown",
		Color:       "#EF4444",
		Description: "Elite bourbon hunter - Exclusive rewards",
	},
}

// Fixed rewards for content contributions.
const (
	RewardAddFind               = 50
	RewardAddStore              = 20
	RewardAddSpeakeasy          = 30
	RewardShareFind             = 10
	RewardFriendRequestAccepted = 5
)

// Activity is an action whose reward depends on the user's current level.
type Activity string

const (
	ActivityCheckIn         Activity = "check_in"
	ActivityQRScan          Activity = "qr_scan"
	ActivityBottleFindShare Activity = "bottle_find_share"
	ActivityPhotoUpload     Activity = "photo_upload"
	ActivityReviewComment   Activity = "review_comment"
)

var activityRewards = map[string]map[Activity]int{
	"explorer": {
		ActivityCheckIn:         10,
		ActivityQRScan:          5,
		ActivityBottleFindShare: 25,
		ActivityPhotoUpload:     10,
		ActivityReviewComment:   5,
	},
	"enthusiast": {
		ActivityCheckIn:         15,
		ActivityQRScan:          10,
		ActivityBottleFindShare: 40,
		ActivityPhotoUpload:     15,
		ActivityReviewComment:   10,
	},
	"connoisseur": {
		ActivityCheckIn:         20,
		ActivityQRScan:          15,
		ActivityBottleFindShare: 60,
		ActivityPhotoUpload:     25,
		ActivityReviewComment:   15,
	},
	"master": {
		ActivityCheckIn:         25,
		ActivityQRScan:          20,
		ActivityBottleFindShare: 100,
		ActivityPhotoUpload:     40,
		ActivityReviewComment:   25,
	},
}

// LevelFor returns the tier containing points. Negative balances fall back
// to the first tier.
func LevelFor(points int) Level {
	for _, l := range Levels {
		if points >= l.MinPoints && points <= l.MaxPoints {
			return l
		}
	}
	return Levels[0]
}

// Progress returns how far through the current tier points are, in percent.
func Progress(points int) float64 {
	l := LevelFor(points)
	if l.IsTop() {
		return 100
	}
	span := float64(l.MaxPoints - l.MinPoints + 1)
	in := float64(points - l.MinPoints)
	return math.Min(in/span*100, 100)
}

// PointsToNextLevel is zero at the top tier.
func PointsToNextLevel(points int) int {
	l := LevelFor(points)
	if l.IsTop() {
		return 0
	}
	return l.MaxPoints - points + 1
}

// ActivityReward returns the points an activity earns at the given balance.
func ActivityReward(points int, a Activity) (int, error) {
	r, ok := activityRewards[LevelFor(points).ID][a]
	if !ok {
		return 0, fmt.Errorf("unknown activity %q", a)
	}
	return r, nil
}

// Summary is the leveling view of a balance.
type Summary struct {
	Points            int     `json:"points"`
	Level             Level   `json:"level"`
	Progress          float64 `json:"progress"`
	PointsToNextLevel int     `json:"points_to_next_level"`
}

func Summarize(points int) Summary {
	return Summary{
		Points:            points,
		Level:             LevelFor(points),
		Progress:          Progress(points),
		PointsToNextLevel: PointsToNextLevel(points),
	}
}
