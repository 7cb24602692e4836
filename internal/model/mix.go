package model

// MixRequest asks for a remix of a completed session's stems. Gains are in
// decibels; pointers distinguish "not sent" from a legitimate 0 dB.
type MixRequest struct {
	SessionID string   `json:"sessionId" validate:"required,uuid"`
	Gains     MixGains `json:"gains" validate:"required"`
}

// MixGains carries one gain per stem. Exactly four named entries; the
// boundary rejects requests that omit any of them.
type MixGains struct {
	Vocals *float64 `json:"vocals" validate:"required"`
	Drums  *float64 `json:"drums" validate:"required"`
	Bass   *float64 `json:"bass" validate:"required"`
	Other  *float64 `json:"other" validate:"required"`
}

// Gain returns the dB gain for a stem name.
func (g MixGains) Gain(stem string) float64 {
	switch stem {
	case StemVocals:
		return *g.Vocals
	case StemDrums:
		return *g.Drums
	case StemBass:
		return *g.Bass
	default:
		return *g.Other
	}
}

// MixResponse references the freshly written, normalized mix file.
type MixResponse struct {
	Path string `json:"path"`
}
