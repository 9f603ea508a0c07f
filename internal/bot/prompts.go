package bot

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ashureev/companion/internal/domain"
	"github.com/ashureev/companion/internal/locale"
	"github.com/ashureev/companion/internal/validate"
)

// persona is the fixed preamble sent ahead of every AI request.
const persona = "You are Companion, a friendly personal assistant for health, habits and everyday questions. " +
	"Keep answers short, practical and encouraging. You are not a doctor: for anything that sounds like a " +
	"medical problem, suggest seeing a professional."

const (
	msgApology      = "😔 Sorry, something went wrong on my side. Please try again in a moment."
	msgAIApology    = "😔 Sorry, I couldn't reach the assistant right now. Please try again later."
	msgNoSpeech     = "🎤 I couldn't make out any speech in that voice message. Please try again, a bit closer to the microphone."
	msgVoiceOff     = "🎤 Voice messages are not available right now."
	msgExpired      = "⌛ That button has expired. Use the menu below."
	msgFinishFirst  = "Please finish the current step first, or tap 🏠 Main menu to cancel it."
	msgMainMenu     = "🏠 Main menu. What would you like to do?"
	msgGenderPrompt = "👤 Let's set up your profile.\n\nWhat is your gender?"
	msgWeightPrompt = "⚖️ What is your weight in kilograms? (30-300)"
	msgHeightPrompt = "📏 What is your height in centimetres? (100-250)"
	msgAgePrompt    = "🎂 How old are you? (10-100)"
	msgActivity     = "🏃 How active are you?"
	msgGoalPrompt   = "🎯 What is your goal?"
	msgTaskPrompt   = "📝 Send me the task you want to add for today."
	msgStressPrompt = "😰 Rate each from 1 to 10, separated by commas:\n" +
		"work or study pressure, sleep problems, anxiety.\n\nExample: 5,7,6"
	msgStressFormat = "Please send exactly three whole numbers from 1 to 10, separated by commas. Example: 5,7,6"
	msgUseButtons   = "Please choose one of the buttons above."
	msgNoTasks      = "📋 You have no tasks yet. Tap 📝 Add task to create one."
	msgAdviceAsk    = "Based on what you know about me, give me three short, practical health tips for today."
	msgStressAsk    = "Briefly assess my current stress level and suggest two concrete ways to manage it today."
	msgHelp         = "ℹ️ Here is what I can do:\n\n" +
		"🤖 AI Chat: ask me anything.\n" +
		"🌍 Translate: send text and I translate it into your target language.\n" +
		"🎤 Voice Translate: send a voice message to have it transcribed and translated.\n" +
		"📍 Location: share your location to pick a translation language automatically.\n" +
		"⚙️ Settings: choose the translation language.\n" +
		"👤 Profile setup: get your BMI and daily calorie target.\n" +
		"📝 Add task / 📋 My tasks: keep a daily task list.\n" +
		"😰 Check stress: a quick stress check-in with advice.\n" +
		"💡 Health advice: personalised tips.\n\n" +
		"Commands: /start, /menu, /cancel, /help"
)

func welcome() string {
	return "👋 Hi! I'm your companion bot.\n\n" +
		"I can chat, translate text and voice, and help you track your health, tasks and stress.\n" +
		"Choose an option below."
}

// validationMessage explains a rejected answer and repeats the question.
func validationMessage(err error, prompt string) string {
	var ve *validate.ValidationError
	if !errors.As(err, &ve) {
		return prompt
	}
	switch ve.Kind {
	case validate.KindEmpty:
		return "I didn't get an answer. " + prompt
	case validate.KindNotANumber:
		return fmt.Sprintf("%q is not a number. %s", ve.Input, prompt)
	case validate.KindNotAnInteger:
		return fmt.Sprintf("Please use a whole number. %s", prompt)
	case validate.KindOutOfRange:
		return fmt.Sprintf("That value must be between %g and %g. %s", ve.Min, ve.Max, prompt)
	default:
		return prompt
	}
}

// profileContext describes the profile for the AI context block.
func profileContext(p *domain.Profile) string {
	if p == nil {
		return ""
	}
	var parts []string
	if p.Gender != "" {
		parts = append(parts, "gender "+string(p.Gender))
	}
	if p.Age > 0 {
		parts = append(parts, fmt.Sprintf("age %d", p.Age))
	}
	if p.WeightKg > 0 {
		parts = append(parts, fmt.Sprintf("weight %g kg", p.WeightKg))
	}
	if p.HeightCm > 0 {
		parts = append(parts, fmt.Sprintf("height %g cm", p.HeightCm))
	}
	if bmi := domain.BMI(p); bmi > 0 {
		parts = append(parts, fmt.Sprintf("BMI %.2f (%s)", bmi, domain.BMICategory(bmi)))
	}
	if p.ActivityLevel != "" {
		parts = append(parts, "activity "+string(p.ActivityLevel))
	}
	if p.Goal != "" {
		parts = append(parts, "goal "+string(p.Goal))
	}
	if len(parts) == 0 {
		return ""
	}
	return "Profile: " + strings.Join(parts, ", ") + "."
}

// sessionContext builds the context block from profile, tasks and stress history.
func sessionContext(sess *domain.Session) string {
	var lines []string
	if pc := profileContext(sess.Profile); pc != "" {
		lines = append(lines, pc)
	}
	if len(sess.DailyTasks) > 0 {
		var open, done []string
		for _, t := range sess.DailyTasks {
			if sess.IsTaskCompleted(t) {
				done = append(done, t)
			} else {
				open = append(open, t)
			}
		}
		if len(open) > 0 {
			lines = append(lines, "Open tasks today: "+strings.Join(open, "; ")+".")
		}
		if len(done) > 0 {
			lines = append(lines, "Completed tasks: "+strings.Join(done, "; ")+".")
		}
	}
	if len(sess.StressSamples) > 0 {
		lines = append(lines, "Stress check-in averages (1-10, oldest first): "+formatStressSamples(sess.StressSamples)+".")
	}
	return strings.Join(lines, "\n")
}

func stressContext(scores []int, avg float64, history []float64) string {
	s := fmt.Sprintf("Stress check-in (1-10): work or study pressure %d, sleep problems %d, anxiety %d. Average %.1f.",
		scores[0], scores[1], scores[2], avg)
	if len(history) > 1 {
		s += " Earlier averages: " + formatStressSamples(history[:len(history)-1]) + "."
	}
	return s
}

// promptContext joins the persona preamble with an optional context block.
func promptContext(block string) string {
	if block == "" {
		return persona
	}
	return persona + "\n\n" + block
}

func profileSummary(p *domain.Profile) string {
	if p == nil {
		return "📊 You have no profile yet. Tap 👤 Profile setup to create one."
	}
	var sb strings.Builder
	sb.WriteString("📊 Your profile\n\n")
	writeField := func(name, value string) {
		if value == "" {
			value = "not set"
		}
		fmt.Fprintf(&sb, "%s: %s\n", name, value)
	}
	writeField("Gender", string(p.Gender))
	writeField("Weight", formatIfSet(p.WeightKg, "%g kg"))
	writeField("Height", formatIfSet(p.HeightCm, "%g cm"))
	writeField("Age", formatIfSet(float64(p.Age), "%g"))
	writeField("Activity", strings.ReplaceAll(string(p.ActivityLevel), "_", " "))
	writeField("Goal", strings.ReplaceAll(string(p.Goal), "_", " "))

	sb.WriteString("\n")
	if bmi := domain.BMI(p); bmi > 0 {
		fmt.Fprintf(&sb, "BMI: %.2f (%s)\n", bmi, domain.BMICategory(bmi))
	} else {
		sb.WriteString("BMI: not enough data\n")
	}
	fmt.Fprintf(&sb, "Daily calories: %d kcal", domain.DailyCalories(p))
	return sb.String()
}

func formatIfSet(v float64, format string) string {
	if v <= 0 {
		return ""
	}
	return fmt.Sprintf(format, v)
}

func taskList(sess *domain.Session) string {
	var sb strings.Builder
	sb.WriteString("📋 Your tasks for today:\n")
	for i, t := range sess.DailyTasks {
		mark := "⬜"
		if sess.IsTaskCompleted(t) {
			mark = "✅"
		}
		fmt.Fprintf(&sb, "\n%d. %s %s", i+1, mark, t)
	}
	return sb.String()
}

func targetLanguageLine(code string) string {
	return fmt.Sprintf("Target language: %s", locale.Label(code))
}
