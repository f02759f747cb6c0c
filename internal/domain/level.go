package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// LevelType classifies a detected zone.
type LevelType string

const (
	LevelSwingHigh  LevelType = "swing_high"
	LevelSwingLow   LevelType = "swing_low"
	LevelPivot      LevelType = "pivot"
	LevelResistance LevelType = "resistance"
	LevelSupport    LevelType = "support"
	LevelDailyHigh  LevelType = "daily_high"
	LevelDailyLow   LevelType = "daily_low"
)

// Strength grades how significant a zone is.
type Strength string

const (
	StrengthWeak     Strength = "weak"
	StrengthModerate Strength = "moderate"
	StrengthStrong   Strength = "strong"
)

// DetectionMethod names the detector that produced a zone.
type DetectionMethod string

const (
	MethodSwing   DetectionMethod = "swing"
	MethodPivot   DetectionMethod = "pivot"
	MethodCluster DetectionMethod = "cluster"
)

// levelNamespace seeds the name-based UUIDs used as level identities.
var levelNamespace = uuid.MustParse("8f4d3b8e-6a0c-4c55-9e1f-2f6f8b0c7d21")

// Level is a support/resistance zone. PriceLow <= PriceHigh always holds.
type Level struct {
	ID         string          `json:"id" yaml:"id"`
	Type       LevelType       `json:"level_type" yaml:"level_type"`
	PriceLow   float64         `json:"price_low" yaml:"price_low"`
	PriceHigh  float64         `json:"price_high" yaml:"price_high"`
	Strength   Strength        `json:"strength" yaml:"strength"`
	Method     DetectionMethod `json:"detection_method" yaml:"detection_method"`
	Timeframe  string          `json:"timeframe" yaml:"timeframe"`
	Touches    int             `json:"touches,omitempty" yaml:"touches,omitempty"`
	Label      string          `json:"label,omitempty" yaml:"label,omitempty"`
	FirstTouch time.Time       `json:"first_touch,omitempty" yaml:"first_touch,omitempty"`
}

// Mid returns the center of the zone.
func (l Level) Mid() float64 {
	return (l.PriceLow + l.PriceHigh) / 2
}

// Width returns PriceHigh - PriceLow.
func (l Level) Width() float64 {
	return l.PriceHigh - l.PriceLow
}

// Contains reports whether price lies inside the zone (edges included).
func (l Level) Contains(price float64) bool {
	return price >= l.PriceLow && price <= l.PriceHigh
}

// LevelID derives a stable identity from anchor price, type and timeframe so
// that repeated detection runs over the same bars yield the same IDs.
func LevelID(price float64, t LevelType, timeframe string) string {
	name := fmt.Sprintf("%s|%s|%.8f", timeframe, t, price)
	return uuid.NewSHA1(levelNamespace, []byte(name)).String()
}
