package bot

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ashureev/companion/internal/domain"
	"github.com/ashureev/companion/internal/locale"
)

// Commands.
const (
	CommandStart  = "/start"
	CommandHelp   = "/help"
	CommandMenu   = "/menu"
	CommandCancel = "/cancel"
)

// Menu labels. A text event equal to one of these is handled as a button
// press before stage input or mode routing.
const (
	LabelAIChat         = "🤖 AI Chat"
	LabelTranslate      = "🌍 Translate"
	LabelVoiceTranslate = "🎤 Voice Translate"
	LabelLocation       = "📍 Location"
	LabelSettings       = "⚙️ Settings"
	LabelHelp           = "ℹ️ Help"
	LabelMainMenu       = "🏠 Main menu"
	LabelProfileSetup   = "👤 Profile setup"
	LabelAddTask        = "📝 Add task"
	LabelCheckStress    = "😰 Check stress"
	LabelMyTasks        = "📋 My tasks"
	LabelMyProfile      = "📊 My profile"
	LabelHealthAdvice   = "💡 Health advice"
	LabelSendLocation   = "📍 Send my location"
)

// Callback data prefixes.
const (
	callbackLang     = "lang:"
	callbackGender   = "gender:"
	callbackActivity = "activity:"
	callbackGoal     = "goal:"
	callbackTaskDone = "task:done:"
)

// stageEntryLabels start a guided flow and are only honored on the main menu.
var stageEntryLabels = map[string]domain.Stage{
	LabelProfileSetup: domain.StageProfileGender,
	LabelAddTask:      domain.StageTaskInput,
	LabelCheckStress:  domain.StageStressInput,
}

func mainKeyboard() *Keyboard {
	return &Keyboard{
		Kind: KeyboardReply,
		Rows: [][]Button{
			{{Text: LabelAIChat}, {Text: LabelTranslate}},
			{{Text: LabelVoiceTranslate}, {Text: LabelLocation}},
			{{Text: LabelProfileSetup}, {Text: LabelMyProfile}},
			{{Text: LabelAddTask}, {Text: LabelMyTasks}},
			{{Text: LabelCheckStress}, {Text: LabelHealthAdvice}},
			{{Text: LabelSettings}, {Text: LabelHelp}},
		},
	}
}

func locationKeyboard() *Keyboard {
	return &Keyboard{
		Kind: KeyboardReply,
		Rows: [][]Button{
			{{Text: LabelSendLocation, RequestLocation: true}},
			{{Text: LabelMainMenu}},
		},
	}
}

func removeKeyboard() *Keyboard {
	return &Keyboard{Kind: KeyboardRemove}
}

func languageKeyboard() *Keyboard {
	kb := &Keyboard{Kind: KeyboardInline}
	var row []Button
	for _, code := range locale.Supported {
		row = append(row, Button{Text: locale.Label(code), Data: callbackLang + code})
		if len(row) == 2 {
			kb.Rows = append(kb.Rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		kb.Rows = append(kb.Rows, row)
	}
	return kb
}

func genderKeyboard() *Keyboard {
	return &Keyboard{
		Kind: KeyboardInline,
		Rows: [][]Button{{
			{Text: "👨 Male", Data: callbackGender + string(domain.GenderMale)},
			{Text: "👩 Female", Data: callbackGender + string(domain.GenderFemale)},
		}},
	}
}

func activityKeyboard() *Keyboard {
	return &Keyboard{
		Kind: KeyboardInline,
		Rows: [][]Button{
			{{Text: "🛋 Sedentary", Data: callbackActivity + string(domain.ActivitySedentary)}},
			{{Text: "🚶 Light (1-3 days/week)", Data: callbackActivity + string(domain.ActivityLight)}},
			{{Text: "🏃 Moderate (3-5 days/week)", Data: callbackActivity + string(domain.ActivityModerate)}},
			{{Text: "🏋️ Active (6-7 days/week)", Data: callbackActivity + string(domain.ActivityActive)}},
			{{Text: "🔥 Very active (physical job)", Data: callbackActivity + string(domain.ActivityVeryActive)}},
		},
	}
}

func goalKeyboard() *Keyboard {
	return &Keyboard{
		Kind: KeyboardInline,
		Rows: [][]Button{
			{{Text: "⬇️ Lose weight", Data: callbackGoal + string(domain.GoalLoseWeight)}},
			{{Text: "⚖️ Maintain", Data: callbackGoal + string(domain.GoalMaintain)}},
			{{Text: "💪 Gain muscle", Data: callbackGoal + string(domain.GoalGainMuscle)}},
		},
	}
}

// tasksKeyboard offers a "done" button for each open task. It returns nil
// when every task is completed.
func tasksKeyboard(sess *domain.Session) *Keyboard {
	kb := &Keyboard{Kind: KeyboardInline}
	for i, task := range sess.DailyTasks {
		if sess.IsTaskCompleted(task) {
			continue
		}
		kb.Rows = append(kb.Rows, []Button{{
			Text: "✅ " + truncate(task, 40),
			Data: callbackTaskDone + strconv.Itoa(i),
		}})
	}
	if len(kb.Rows) == 0 {
		return nil
	}
	return kb
}

// parseCallback splits callback data into its prefix and value.
func parseCallback(data string) (prefix, value string) {
	for _, p := range []string{callbackLang, callbackGender, callbackActivity, callbackGoal, callbackTaskDone} {
		if strings.HasPrefix(data, p) {
			return p, strings.TrimPrefix(data, p)
		}
	}
	return "", data
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func formatStressSamples(samples []float64) string {
	parts := make([]string, len(samples))
	for i, v := range samples {
		parts[i] = fmt.Sprintf("%.1f", v)
	}
	return strings.Join(parts, ", ")
}
