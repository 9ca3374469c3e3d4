// Package settings stores per-user preferences. A user who has never
// written settings reads the package defaults; the row is created on first
// update.
package settings

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Defaults for users without a settings row. These mirror the column
// defaults in the user_settings migration.
const (
	DefaultTimezone     = "UTC"
	DefaultLocale       = "en"
	DefaultUnitSystem   = "metric"
	DefaultReminderHour = 9
)

// maxPersonaLen bounds the free-text assistant persona.
const maxPersonaLen = 2000

// ErrInvalidSetting is returned when a patch carries an out-of-range value.
var ErrInvalidSetting = errors.New("invalid setting")

// Settings is a user's preference row.
type Settings struct {
	UserID              uuid.UUID `json:"userId"`
	Timezone            string    `json:"timezone"`
	Locale              string    `json:"locale"`
	UnitSystem          string    `json:"unitSystem"`
	ReminderHour        int       `json:"reminderHour"`
	ShareAnonymizedData bool      `json:"shareAnonymizedData"`
	AIPersona           string    `json:"aiPersona"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

// Defaults returns the settings a user has before their first write.
func Defaults(userID uuid.UUID) *Settings {
	return &Settings{
		UserID:       userID,
		Timezone:     DefaultTimezone,
		Locale:       DefaultLocale,
		UnitSystem:   DefaultUnitSystem,
		ReminderHour: DefaultReminderHour,
	}
}

// Patch carries a partial update; nil fields keep their current value.
type Patch struct {
	Timezone            *string `json:"timezone"`
	Locale              *string `json:"locale"`
	UnitSystem          *string `json:"unitSystem"`
	ReminderHour        *int    `json:"reminderHour"`
	ShareAnonymizedData *bool   `json:"shareAnonymizedData"`
	AIPersona           *string `json:"aiPersona"`
}

// Validate checks every field the patch sets.
func (p Patch) Validate() error {
	if p.Timezone != nil {
		if *p.Timezone == "" {
			return fmt.Errorf("%w: timezone is required", ErrInvalidSetting)
		}
		if _, err := time.LoadLocation(*p.Timezone); err != nil {
			return fmt.Errorf("%w: unknown timezone %q", ErrInvalidSetting, *p.Timezone)
		}
	}
	if p.Locale != nil && *p.Locale != "en" && *p.Locale != "zh" {
		return fmt.Errorf("%w: locale %q (want en or zh)", ErrInvalidSetting, *p.Locale)
	}
	if p.UnitSystem != nil && *p.UnitSystem != "metric" && *p.UnitSystem != "imperial" {
		return fmt.Errorf("%w: unit system %q (want metric or imperial)", ErrInvalidSetting, *p.UnitSystem)
	}
	if p.ReminderHour != nil && (*p.ReminderHour < 0 || *p.ReminderHour > 23) {
		return fmt.Errorf("%w: reminder hour %d", ErrInvalidSetting, *p.ReminderHour)
	}
	if p.AIPersona != nil && len(*p.AIPersona) > maxPersonaLen {
		return fmt.Errorf("%w: persona length %d exceeds maximum %d", ErrInvalidSetting, len(*p.AIPersona), maxPersonaLen)
	}
	return nil
}
