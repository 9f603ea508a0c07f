package domain

import "errors"

// Stage is a position in the guided conversation.
type Stage string

// Conversation stages.
const (
	StageMainMenu        Stage = "MAIN_MENU"
	StageProfileGender   Stage = "PROFILE_GENDER"
	StageProfileWeight   Stage = "PROFILE_WEIGHT"
	StageProfileHeight   Stage = "PROFILE_HEIGHT"
	StageProfileAge      Stage = "PROFILE_AGE"
	StageProfileActivity Stage = "PROFILE_ACTIVITY"
	StageProfileGoal     Stage = "PROFILE_GOAL"
	StageTaskInput       Stage = "TASK_INPUT"
	StageStressInput     Stage = "STRESS_INPUT"
)

var (
	// ErrInvalidTransition is returned when a stage change is not in the graph.
	ErrInvalidTransition = errors.New("invalid stage transition")
	// ErrTaskNotFound is returned for an out-of-range task index.
	ErrTaskNotFound = errors.New("task not found")
)

// transitions lists forward edges. Staying put and returning to the main menu
// are always allowed and are not listed.
var transitions = map[Stage][]Stage{
	StageMainMenu:        {StageProfileGender, StageTaskInput, StageStressInput},
	StageProfileGender:   {StageProfileWeight},
	StageProfileWeight:   {StageProfileHeight},
	StageProfileHeight:   {StageProfileAge},
	StageProfileAge:      {StageProfileActivity},
	StageProfileActivity: {StageProfileGoal},
	StageProfileGoal:     {},
	StageTaskInput:       {},
	StageStressInput:     {},
}

// AllStages returns every stage in declaration order.
func AllStages() []Stage {
	return []Stage{
		StageMainMenu,
		StageProfileGender,
		StageProfileWeight,
		StageProfileHeight,
		StageProfileAge,
		StageProfileActivity,
		StageProfileGoal,
		StageTaskInput,
		StageStressInput,
	}
}

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// CanTransition reports whether from -> to is reachable in one step.
func CanTransition(from, to Stage) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	if from == to || to == StageMainMenu {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
