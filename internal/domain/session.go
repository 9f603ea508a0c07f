// Package domain contains core domain types for the companion bot.
package domain

import (
	"fmt"
	"time"
)

// Mode selects where free text goes when no label or stage claims it.
type Mode string

const (
	// ModeAIChat forwards free text to the AI gateway.
	ModeAIChat Mode = "AI_CHAT"
	// ModeTranslate forwards free text to the translator.
	ModeTranslate Mode = "TRANSLATE"
)

// DefaultTargetLanguage is the translation target for new sessions.
const DefaultTargetLanguage = "en"

// Session holds the conversation state for a single user.
type Session struct {
	UserID         string          `json:"user_id"`
	Mode           Mode            `json:"mode"`
	Stage          Stage           `json:"stage"`
	TargetLanguage string          `json:"target_language"`
	Profile        *Profile        `json:"profile,omitempty"`
	DailyTasks     []string        `json:"daily_tasks,omitempty"`
	CompletedTasks map[string]bool `json:"completed_tasks,omitempty"`
	StressSamples  []float64       `json:"stress_samples,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// NewSession returns a session with default mode, stage and language.
func NewSession(userID string, now time.Time) *Session {
	return &Session{
		UserID:         userID,
		Mode:           ModeTranslate,
		Stage:          StageMainMenu,
		TargetLanguage: DefaultTargetLanguage,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Clone returns a deep copy so callers can mutate without affecting the original.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	if s.Profile != nil {
		p := *s.Profile
		c.Profile = &p
	}
	if s.DailyTasks != nil {
		c.DailyTasks = append([]string(nil), s.DailyTasks...)
	}
	if s.CompletedTasks != nil {
		c.CompletedTasks = make(map[string]bool, len(s.CompletedTasks))
		for k, v := range s.CompletedTasks {
			c.CompletedTasks[k] = v
		}
	}
	if s.StressSamples != nil {
		c.StressSamples = append([]float64(nil), s.StressSamples...)
	}
	return &c
}

// MoveTo transitions the session to next if the stage graph allows it.
func (s *Session) MoveTo(next Stage) error {
	if !CanTransition(s.Stage, next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.Stage, next)
	}
	s.Stage = next
	return nil
}

// ResetStage returns to the main menu. Profile, tasks and samples are kept.
func (s *Session) ResetStage() {
	s.Stage = StageMainMenu
}

// EnsureProfile returns the session profile, creating an empty one on first use.
func (s *Session) EnsureProfile() *Profile {
	if s.Profile == nil {
		s.Profile = &Profile{}
	}
	return s.Profile
}

// AddTask appends a task description. Duplicates are allowed.
func (s *Session) AddTask(task string) {
	s.DailyTasks = append(s.DailyTasks, task)
}

// CompleteTask marks the task at index as done. Completion is tracked by
// description, so every task sharing that text reads as completed.
func (s *Session) CompleteTask(index int) (string, error) {
	if index < 0 || index >= len(s.DailyTasks) {
		return "", fmt.Errorf("%w: %d", ErrTaskNotFound, index)
	}
	task := s.DailyTasks[index]
	if s.CompletedTasks == nil {
		s.CompletedTasks = make(map[string]bool)
	}
	s.CompletedTasks[task] = true
	return task, nil
}

// IsTaskCompleted reports whether a task description has been marked done.
func (s *Session) IsTaskCompleted(task string) bool {
	return s.CompletedTasks[task]
}

// AddStressSample appends an averaged stress score.
func (s *Session) AddStressSample(avg float64) {
	s.StressSamples = append(s.StressSamples, avg)
}
