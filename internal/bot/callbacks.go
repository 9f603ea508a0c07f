package bot

import (
	"fmt"
	"strconv"

	"github.com/ashureev/companion/internal/domain"
	"github.com/ashureev/companion/internal/locale"
)

// onCallback handles inline button data. Selection buttons only count in the
// stage that rendered them; anything else is reported as expired.
func (c *Controller) onCallback(sess *domain.Session, data string) (Reply, error) {
	prefix, value := parseCallback(data)
	switch prefix {
	case callbackLang:
		if !locale.IsSupported(value) {
			return plain(msgExpired), nil
		}
		sess.TargetLanguage = value
		return plain("✅ Translation language set.\n" + targetLanguageLine(value)), nil

	case callbackGender:
		g := domain.Gender(value)
		if sess.Stage != domain.StageProfileGender || !g.Valid() {
			return plain(msgExpired), nil
		}
		sess.EnsureProfile().Gender = g
		if err := sess.MoveTo(domain.StageProfileWeight); err != nil {
			return Reply{}, err
		}
		return plain(msgWeightPrompt), nil

	case callbackActivity:
		a := domain.ActivityLevel(value)
		if sess.Stage != domain.StageProfileActivity || !a.Valid() {
			return plain(msgExpired), nil
		}
		sess.EnsureProfile().ActivityLevel = a
		if err := sess.MoveTo(domain.StageProfileGoal); err != nil {
			return Reply{}, err
		}
		return withKeyboard(msgGoalPrompt, goalKeyboard()), nil

	case callbackGoal:
		g := domain.Goal(value)
		if sess.Stage != domain.StageProfileGoal || !g.Valid() {
			return plain(msgExpired), nil
		}
		p := sess.EnsureProfile()
		p.Goal = g
		if err := sess.MoveTo(domain.StageMainMenu); err != nil {
			return Reply{}, err
		}
		return withKeyboard("✅ Profile saved!\n\n"+profileSummary(p), mainKeyboard()), nil

	case callbackTaskDone:
		i, err := strconv.Atoi(value)
		if err != nil {
			return plain(msgExpired), nil
		}
		task, err := sess.CompleteTask(i)
		if err != nil {
			return plain("That task no longer exists."), nil
		}
		return withKeyboard(fmt.Sprintf("✅ Done: %s\n\n%s", task, taskList(sess)), tasksKeyboard(sess)), nil
	}
	return plain(msgExpired), nil
}
