// Package bot implements the conversation controller: the per-user state
// machine that routes every inbound event and returns a Reply for the
// transport to render.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/ashureev/companion/internal/agent"
	"github.com/ashureev/companion/internal/convlog"
	"github.com/ashureev/companion/internal/domain"
	"github.com/ashureev/companion/internal/geo"
	"github.com/ashureev/companion/internal/metrics"
	"github.com/ashureev/companion/internal/speech"
	"github.com/ashureev/companion/internal/store"
	"github.com/ashureev/companion/internal/transcode"
	"github.com/ashureev/companion/internal/translate"
	"github.com/ashureev/companion/internal/validate"
)

// Event kinds, used for metrics and transcripts.
const (
	EventText     = "text"
	EventCallback = "callback"
	EventVoice    = "voice"
	EventLocation = "location"
)

// Deps are the controller's collaborators. Store is required; a nil
// collaborator makes the features that need it reply with an apology.
type Deps struct {
	Store      store.Store
	AI         agent.Gateway
	Translator translate.Translator
	Transcoder transcode.Transcoder
	Recognizer speech.Recognizer
	Geocoder   geo.Geocoder
	Metrics    *metrics.Metrics
	Transcript *convlog.Logger
	Logger     *slog.Logger
}

// Controller handles inbound events. It is safe for concurrent use: events
// for one user are serialized by the store, events for different users run
// in parallel.
type Controller struct {
	store      store.Store
	ai         agent.Gateway
	translator translate.Translator
	transcoder transcode.Transcoder
	recognizer speech.Recognizer
	geocoder   geo.Geocoder
	metrics    *metrics.Metrics
	transcript *convlog.Logger
	log        *slog.Logger
}

// New creates a controller.
func New(d Deps) *Controller {
	log := d.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Controller{
		store:      d.Store,
		ai:         d.AI,
		translator: d.Translator,
		transcoder: d.Transcoder,
		recognizer: d.Recognizer,
		geocoder:   d.Geocoder,
		metrics:    d.Metrics,
		transcript: d.Transcript,
		log:        log,
	}
}

// HandleText handles a typed message, a command or a reply-keyboard label.
func (c *Controller) HandleText(ctx context.Context, userID, text string) Reply {
	return c.handle(ctx, EventText, userID, text, func(ctx context.Context, sess *domain.Session) (Reply, error) {
		return c.onText(ctx, sess, strings.TrimSpace(text))
	})
}

// HandleCallback handles an inline button press carrying data.
func (c *Controller) HandleCallback(ctx context.Context, userID, data string) Reply {
	return c.handle(ctx, EventCallback, userID, data, func(_ context.Context, sess *domain.Session) (Reply, error) {
		return c.onCallback(sess, data)
	})
}

// HandleVoice transcribes a voice note and translates it into the user's
// target language. It never changes the stage.
func (c *Controller) HandleVoice(ctx context.Context, userID string, audio []byte) Reply {
	return c.handle(ctx, EventVoice, userID, fmt.Sprintf("<voice %d bytes>", len(audio)), func(ctx context.Context, sess *domain.Session) (Reply, error) {
		return c.onVoice(ctx, sess, audio), nil
	})
}

// HandleLocation sets the target language from the country at lat, lon.
func (c *Controller) HandleLocation(ctx context.Context, userID string, lat, lon float64) Reply {
	return c.handle(ctx, EventLocation, userID, fmt.Sprintf("<location %.4f,%.4f>", lat, lon), func(ctx context.Context, sess *domain.Session) (Reply, error) {
		return c.onLocation(ctx, sess, lat, lon), nil
	})
}

type handlerFunc func(ctx context.Context, sess *domain.Session) (Reply, error)

// handle runs fn inside the user's critical section. An error from fn or a
// panic discards every change fn made to the session.
func (c *Controller) handle(ctx context.Context, kind, userID, input string, fn handlerFunc) (reply Reply) {
	start := time.Now()
	var from, to domain.Stage
	var mode domain.Mode

	c.transcript.Log(convlog.Event{UserID: userID, Direction: convlog.Inbound, Kind: kind, ContentRaw: input})

	defer func() {
		if r := recover(); r != nil {
			c.log.Error("Panic while handling event",
				"user_id", userID,
				"event", kind,
				"panic", r,
				"stack", string(debug.Stack()))
			reply = plain(msgApology)
		}
		c.metrics.Event(kind, time.Since(start))
		c.transcript.Log(convlog.Event{
			UserID:     userID,
			Direction:  convlog.Outbound,
			Kind:       kind,
			Stage:      string(to),
			Mode:       string(mode),
			ContentRaw: reply.Text,
		})
	}()

	err := c.store.Update(ctx, userID, func(sess *domain.Session) error {
		from = sess.Stage
		r, err := fn(ctx, sess)
		if err != nil {
			return err
		}
		reply = r
		to, mode = sess.Stage, sess.Mode
		return nil
	})
	if err != nil {
		c.log.Error("Event handling failed",
			"user_id", userID,
			"event", kind,
			"stage", from,
			"error", err)
		return plain(msgApology)
	}

	c.metrics.Transition(string(from), string(to))
	c.log.Debug("Event handled",
		"user_id", userID,
		"event", kind,
		"stage", to,
		"mode", mode,
		"duration", time.Since(start))
	return reply
}

// onText applies commands, then labels, then the stage machine, then mode
// routing, in that order.
func (c *Controller) onText(ctx context.Context, sess *domain.Session, text string) (Reply, error) {
	if r, ok := c.onCommand(sess, text); ok {
		return r, nil
	}
	if r, ok, err := c.onLabel(ctx, sess, text); ok || err != nil {
		return r, err
	}

	switch sess.Stage {
	case domain.StageMainMenu:
		return c.routeByMode(ctx, sess, text), nil
	case domain.StageProfileGender:
		return withKeyboard(msgUseButtons+"\n\n"+msgGenderPrompt, genderKeyboard()), nil
	case domain.StageProfileWeight:
		return c.onWeight(sess, text)
	case domain.StageProfileHeight:
		return c.onHeight(sess, text)
	case domain.StageProfileAge:
		return c.onAge(sess, text)
	case domain.StageProfileActivity:
		return withKeyboard(msgUseButtons+"\n\n"+msgActivity, activityKeyboard()), nil
	case domain.StageProfileGoal:
		return withKeyboard(msgUseButtons+"\n\n"+msgGoalPrompt, goalKeyboard()), nil
	case domain.StageTaskInput:
		return c.onTask(sess, text)
	case domain.StageStressInput:
		return c.onStress(ctx, sess, text)
	}
	return Reply{}, fmt.Errorf("%w: unknown stage %q", domain.ErrInvalidTransition, sess.Stage)
}

func (c *Controller) onCommand(sess *domain.Session, text string) (Reply, bool) {
	if !strings.HasPrefix(text, "/") {
		return Reply{}, false
	}
	cmd := strings.Fields(text)[0]
	// Group chats address commands as /start@botname.
	if i := strings.IndexByte(cmd, '@'); i > 0 {
		cmd = cmd[:i]
	}
	switch strings.ToLower(cmd) {
	case CommandStart:
		sess.ResetStage()
		return withKeyboard(welcome(), mainKeyboard()), true
	case CommandHelp:
		return withKeyboard(msgHelp, mainKeyboard()), true
	case CommandMenu, CommandCancel:
		sess.ResetStage()
		return withKeyboard(msgMainMenu, mainKeyboard()), true
	}
	return Reply{}, false
}

// onLabel handles menu labels. ok is false when text is not a label.
func (c *Controller) onLabel(ctx context.Context, sess *domain.Session, text string) (r Reply, ok bool, err error) {
	if next, isEntry := stageEntryLabels[text]; isEntry {
		r, err = c.enterStage(sess, next)
		return r, true, err
	}

	switch text {
	case LabelMainMenu:
		sess.ResetStage()
		return withKeyboard(msgMainMenu, mainKeyboard()), true, nil
	case LabelAIChat:
		sess.Mode = domain.ModeAIChat
		return plain("🤖 AI chat mode is on. Ask me anything."), true, nil
	case LabelTranslate:
		sess.Mode = domain.ModeTranslate
		return plain("🌍 Translate mode is on. Send me text and I'll translate it.\n" + targetLanguageLine(sess.TargetLanguage)), true, nil
	case LabelVoiceTranslate:
		return plain("🎤 Send me a voice message and I'll translate it.\n" + targetLanguageLine(sess.TargetLanguage)), true, nil
	case LabelLocation:
		return withKeyboard("📍 Share your location and I'll pick a translation language for your country.", locationKeyboard()), true, nil
	case LabelSettings:
		return withKeyboard("⚙️ Choose the language to translate into.\n"+targetLanguageLine(sess.TargetLanguage), languageKeyboard()), true, nil
	case LabelHelp:
		return withKeyboard(msgHelp, mainKeyboard()), true, nil
	case LabelMyTasks:
		if len(sess.DailyTasks) == 0 {
			return plain(msgNoTasks), true, nil
		}
		return withKeyboard(taskList(sess), tasksKeyboard(sess)), true, nil
	case LabelMyProfile:
		return plain(profileSummary(sess.Profile)), true, nil
	case LabelHealthAdvice:
		answer, err := c.complete(ctx, sess, msgAdviceAsk, sessionContext(sess))
		if err != nil {
			return plain(msgAIApology), true, nil
		}
		return plain("💡 " + answer), true, nil
	}
	return Reply{}, false, nil
}

// enterStage starts a guided flow. Flows only start from the main menu.
func (c *Controller) enterStage(sess *domain.Session, next domain.Stage) (Reply, error) {
	if sess.Stage != domain.StageMainMenu {
		if sess.Stage == next {
			return stagePrompt(next), nil
		}
		return plain(msgFinishFirst), nil
	}
	if next == domain.StageProfileGender {
		sess.EnsureProfile()
	}
	if err := sess.MoveTo(next); err != nil {
		return Reply{}, err
	}
	return stagePrompt(next), nil
}

func stagePrompt(s domain.Stage) Reply {
	switch s {
	case domain.StageProfileGender:
		return withKeyboard(msgGenderPrompt, genderKeyboard())
	case domain.StageProfileWeight:
		return plain(msgWeightPrompt)
	case domain.StageProfileHeight:
		return plain(msgHeightPrompt)
	case domain.StageProfileAge:
		return plain(msgAgePrompt)
	case domain.StageProfileActivity:
		return withKeyboard(msgActivity, activityKeyboard())
	case domain.StageProfileGoal:
		return withKeyboard(msgGoalPrompt, goalKeyboard())
	case domain.StageTaskInput:
		return plain(msgTaskPrompt)
	case domain.StageStressInput:
		return plain(msgStressPrompt)
	default:
		return withKeyboard(msgMainMenu, mainKeyboard())
	}
}

func (c *Controller) routeByMode(ctx context.Context, sess *domain.Session, text string) Reply {
	if text == "" {
		return withKeyboard(msgMainMenu, mainKeyboard())
	}
	switch sess.Mode {
	case domain.ModeAIChat:
		answer, err := c.complete(ctx, sess, text, "")
		if err != nil {
			return plain(msgAIApology)
		}
		return plain(answer)
	default:
		translated, err := c.translateText(ctx, sess, text)
		if err != nil {
			return plain(msgApology)
		}
		return plain(fmt.Sprintf("🌍 Translation (%s):\n\n%s", sess.TargetLanguage, translated))
	}
}

func (c *Controller) onWeight(sess *domain.Session, text string) (Reply, error) {
	kg, err := validate.Weight(text)
	if err != nil {
		return plain(validationMessage(err, msgWeightPrompt)), nil
	}
	if err := sess.EnsureProfile().SetWeight(kg); err != nil {
		return Reply{}, err
	}
	if err := sess.MoveTo(domain.StageProfileHeight); err != nil {
		return Reply{}, err
	}
	return plain(msgHeightPrompt), nil
}

func (c *Controller) onHeight(sess *domain.Session, text string) (Reply, error) {
	cm, err := validate.Height(text)
	if err != nil {
		return plain(validationMessage(err, msgHeightPrompt)), nil
	}
	if err := sess.EnsureProfile().SetHeight(cm); err != nil {
		return Reply{}, err
	}
	if err := sess.MoveTo(domain.StageProfileAge); err != nil {
		return Reply{}, err
	}
	return plain(msgAgePrompt), nil
}

func (c *Controller) onAge(sess *domain.Session, text string) (Reply, error) {
	years, err := validate.Age(text)
	if err != nil {
		return plain(validationMessage(err, msgAgePrompt)), nil
	}
	if err := sess.EnsureProfile().SetAge(years); err != nil {
		return Reply{}, err
	}
	if err := sess.MoveTo(domain.StageProfileActivity); err != nil {
		return Reply{}, err
	}
	return withKeyboard(msgActivity, activityKeyboard()), nil
}

func (c *Controller) onTask(sess *domain.Session, text string) (Reply, error) {
	task, err := validate.Task(text)
	if err != nil {
		return plain(validationMessage(err, msgTaskPrompt)), nil
	}
	sess.AddTask(task)
	if err := sess.MoveTo(domain.StageMainMenu); err != nil {
		return Reply{}, err
	}
	return withKeyboard(fmt.Sprintf("✅ Task added: %s\nYou have %d task(s) today.", task, len(sess.DailyTasks)), mainKeyboard()), nil
}

// onStress records a valid check-in and returns to the menu before asking
// the AI for analysis, so a failed AI call cannot undo the sample.
func (c *Controller) onStress(ctx context.Context, sess *domain.Session, text string) (Reply, error) {
	scores, err := validate.StressScores(text)
	if err != nil {
		return plain(msgStressFormat), nil
	}
	avg := validate.Average(scores)
	sess.AddStressSample(avg)
	if err := sess.MoveTo(domain.StageMainMenu); err != nil {
		return Reply{}, err
	}

	header := fmt.Sprintf("😰 Stress level: %.1f/10 (%s)", avg, stressBand(avg))
	block := stressContext(scores, avg, sess.StressSamples)
	if pc := profileContext(sess.Profile); pc != "" {
		block += "\n" + pc
	}
	analysis, err := c.complete(ctx, sess, msgStressAsk, block)
	if err != nil {
		return withKeyboard(header+"\n\n"+msgAIApology, mainKeyboard()), nil
	}
	return withKeyboard(header+"\n\n"+analysis, mainKeyboard()), nil
}

func stressBand(avg float64) string {
	switch {
	case avg < 4:
		return "low"
	case avg < 7:
		return "moderate"
	default:
		return "high"
	}
}

// complete sends question to the AI with the persona and an optional
// context block. Failures are logged and returned for the caller to apologize.
func (c *Controller) complete(ctx context.Context, sess *domain.Session, question, block string) (string, error) {
	if c.ai == nil {
		return "", c.collaboratorFailed(sess, "ai", errUnavailable)
	}
	answer, err := c.ai.Complete(ctx, question, promptContext(block))
	if err != nil {
		return "", c.collaboratorFailed(sess, "ai", err)
	}
	return answer, nil
}

func (c *Controller) translateText(ctx context.Context, sess *domain.Session, text string) (string, error) {
	if c.translator == nil {
		return "", c.collaboratorFailed(sess, "translate", errUnavailable)
	}
	out, err := c.translator.Translate(ctx, text, sess.TargetLanguage)
	c.metrics.Collaborator("translate", err)
	if err != nil {
		return "", c.collaboratorFailed(sess, "translate", err)
	}
	return out, nil
}

var errUnavailable = errors.New("collaborator not configured")

func (c *Controller) collaboratorFailed(sess *domain.Session, name string, err error) error {
	c.log.Warn("Collaborator call failed",
		"user_id", sess.UserID,
		"stage", sess.Stage,
		"mode", sess.Mode,
		"collaborator", name,
		"error", err)
	return err
}
