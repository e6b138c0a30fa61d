// Package sound plays the short audible cue attached to notifications.
// Playback is strictly best-effort: a missing audio device must never affect
// the notification's visual display.
package sound

// Player plays the notification cue. Implementations swallow all errors.
type Player interface {
	Play()
}

// Muted is a Player that does nothing. Used when sound is disabled in the
// config and in tests.
type Muted struct{}

func (Muted) Play() {}

var _ Player = Muted{}
