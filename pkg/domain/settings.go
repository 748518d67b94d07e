package domain

import "time"

// SpeechSettings is forwarded to the speech provider at session start.
// The controller never reads it.
type SpeechSettings struct {
	Region          string        `json:"region" yaml:"region" mapstructure:"region"`
	Endpoint        string        `json:"endpoint,omitempty" yaml:"endpoint,omitempty" mapstructure:"endpoint"`
	Key             string        `json:"-" yaml:"-" mapstructure:"key"`
	Locale          string        `json:"locale" yaml:"locale" mapstructure:"locale"`
	Voice           string        `json:"voice" yaml:"voice" mapstructure:"voice"`
	NoInputTimeout  time.Duration `json:"no_input_timeout" yaml:"no_input_timeout" mapstructure:"no_input_timeout"`
	CompleteTimeout time.Duration `json:"complete_timeout" yaml:"complete_timeout" mapstructure:"complete_timeout"`
}

// DefaultSpeechSettings mirrors the settings the dialogue was designed with.
func DefaultSpeechSettings() SpeechSettings {
	return SpeechSettings{
		Region:          "northeurope",
		Locale:          "en-US",
		Voice:           "en-US-DavisNeural",
		NoInputTimeout:  5 * time.Second,
		CompleteTimeout: 0,
	}
}
