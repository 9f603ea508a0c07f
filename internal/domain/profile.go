package domain

import (
	"errors"
	"fmt"
)

// Gender used by the metabolic rate formula.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// ActivityLevel scales the base metabolic rate.
type ActivityLevel string

const (
	ActivitySedentary  ActivityLevel = "sedentary"
	ActivityLight      ActivityLevel = "light"
	ActivityModerate   ActivityLevel = "moderate"
	ActivityActive     ActivityLevel = "active"
	ActivityVeryActive ActivityLevel = "very_active"
)

// Goal adjusts the daily calorie target.
type Goal string

const (
	GoalLoseWeight Goal = "lose_weight"
	GoalMaintain   Goal = "maintain"
	GoalGainMuscle Goal = "gain_muscle"
)

// Accepted ranges for anthropometric input.
const (
	MinWeightKg = 30.0
	MaxWeightKg = 300.0
	MinHeightCm = 100.0
	MaxHeightCm = 250.0
	MinAge      = 10
	MaxAge      = 100
)

// ErrOutOfRange is returned when a profile setter receives a value outside its range.
var ErrOutOfRange = errors.New("value out of range")

// Profile holds raw intake answers. Zero values mean "unset".
type Profile struct {
	Gender        Gender        `json:"gender,omitempty"`
	WeightKg      float64       `json:"weight_kg,omitempty"`
	HeightCm      float64       `json:"height_cm,omitempty"`
	Age           int           `json:"age,omitempty"`
	ActivityLevel ActivityLevel `json:"activity_level,omitempty"`
	Goal          Goal          `json:"goal,omitempty"`
}

// SetWeight stores a weight in kilograms.
func (p *Profile) SetWeight(kg float64) error {
	if kg < MinWeightKg || kg > MaxWeightKg {
		return fmt.Errorf("%w: weight %.1f", ErrOutOfRange, kg)
	}
	p.WeightKg = kg
	return nil
}

// SetHeight stores a height in centimetres.
func (p *Profile) SetHeight(cm float64) error {
	if cm < MinHeightCm || cm > MaxHeightCm {
		return fmt.Errorf("%w: height %.1f", ErrOutOfRange, cm)
	}
	p.HeightCm = cm
	return nil
}

// SetAge stores an age in years.
func (p *Profile) SetAge(years int) error {
	if years < MinAge || years > MaxAge {
		return fmt.Errorf("%w: age %d", ErrOutOfRange, years)
	}
	p.Age = years
	return nil
}

// Valid reports whether g is a known gender.
func (g Gender) Valid() bool {
	return g == GenderMale || g == GenderFemale
}

// Valid reports whether a is a known activity level.
func (a ActivityLevel) Valid() bool {
	_, ok := activityFactors[a]
	return ok
}

// Valid reports whether g is a known goal.
func (g Goal) Valid() bool {
	switch g {
	case GoalLoseWeight, GoalMaintain, GoalGainMuscle:
		return true
	}
	return false
}
