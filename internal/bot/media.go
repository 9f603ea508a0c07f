package bot

import (
	"context"
	"errors"
	"fmt"

	"github.com/ashureev/companion/internal/domain"
	"github.com/ashureev/companion/internal/locale"
	"github.com/ashureev/companion/internal/speech"
)

func (c *Controller) onVoice(ctx context.Context, sess *domain.Session, audio []byte) Reply {
	if c.transcoder == nil || c.recognizer == nil {
		return plain(msgVoiceOff)
	}

	wav, err := c.transcoder.Transcode(ctx, audio)
	c.metrics.Collaborator("transcode", err)
	if err != nil {
		c.collaboratorFailed(sess, "transcode", err)
		return plain(msgApology)
	}

	transcript, err := c.recognizer.Recognize(ctx, wav)
	c.metrics.Collaborator("speech", err)
	if errors.Is(err, speech.ErrNoSpeech) {
		return plain(msgNoSpeech)
	}
	if err != nil {
		c.collaboratorFailed(sess, "speech", err)
		return plain(msgApology)
	}

	translated, err := c.translateText(ctx, sess, transcript)
	if err != nil {
		return plain(fmt.Sprintf("🎤 Heard:\n%s\n\n%s", transcript, msgApology))
	}
	return plain(fmt.Sprintf("🎤 Heard:\n%s\n\n🌍 Translation (%s):\n%s", transcript, sess.TargetLanguage, translated))
}

func (c *Controller) onLocation(ctx context.Context, sess *domain.Session, lat, lon float64) Reply {
	if c.geocoder == nil {
		c.collaboratorFailed(sess, "geocode", errUnavailable)
		return withKeyboard(msgApology, mainKeyboard())
	}

	place, err := c.geocoder.Reverse(ctx, lat, lon)
	c.metrics.Collaborator("geocode", err)
	if err != nil {
		c.collaboratorFailed(sess, "geocode", err)
		return withKeyboard(msgApology, mainKeyboard())
	}

	sess.TargetLanguage = locale.ForCountry(place.CountryCode)
	country := place.Country
	if country == "" {
		country = "Unknown"
	}
	return withKeyboard(fmt.Sprintf("📍 Location: %s\n🌍 Translation language set to: %s",
		country, locale.Label(sess.TargetLanguage)), mainKeyboard())
}
