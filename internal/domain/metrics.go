package domain

import "math"

// DefaultDailyCalories is returned when the profile lacks inputs for the formula.
const DefaultDailyCalories = 2000

const defaultActivityFactor = 1.55

var activityFactors = map[ActivityLevel]float64{
	ActivitySedentary:  1.2,
	ActivityLight:      1.375,
	ActivityModerate:   1.55,
	ActivityActive:     1.725,
	ActivityVeryActive: 1.9,
}

var goalAdjustments = map[Goal]float64{
	GoalLoseWeight: -500,
	GoalGainMuscle: 300,
}

// BMI returns weight / height(m)^2 rounded to two decimals, or 0 if either is unset.
func BMI(p *Profile) float64 {
	if p == nil || p.WeightKg <= 0 || p.HeightCm <= 0 {
		return 0
	}
	m := p.HeightCm / 100
	return math.Round(p.WeightKg/(m*m)*100) / 100
}

// BMICategory buckets a BMI value. Returns "" for 0.
func BMICategory(bmi float64) string {
	switch {
	case bmi <= 0:
		return ""
	case bmi < 18.5:
		return "underweight"
	case bmi < 25:
		return "normal"
	case bmi < 30:
		return "overweight"
	default:
		return "obese"
	}
}

// DailyCalories estimates the daily calorie target using Mifflin-St Jeor.
// It returns DefaultDailyCalories if gender, weight, height or age is unset.
func DailyCalories(p *Profile) int {
	if p == nil || !p.Gender.Valid() || p.WeightKg <= 0 || p.HeightCm <= 0 || p.Age <= 0 {
		return DefaultDailyCalories
	}

	bmr := 10*p.WeightKg + 6.25*p.HeightCm - 5*float64(p.Age)
	if p.Gender == GenderMale {
		bmr += 5
	} else {
		bmr -= 161
	}

	factor, ok := activityFactors[p.ActivityLevel]
	if !ok {
		factor = defaultActivityFactor
	}

	return int(math.Trunc(bmr*factor + goalAdjustments[p.Goal]))
}
