package domain

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Length is the requested article length tier.
type Length string

// Supported length tiers
const (
	LengthShort  Length = "short"
	LengthMedium Length = "medium"
	LengthLong   Length = "long"
)

// Upper bounds for the optional features of a configuration.
const (
	MaxImages       = 5
	MaxKeyTakeaways = 10
	MaxFAQs         = 10
)

var configValidator = validator.New()

// GenerationConfig carries the parameters for generating one article.
// The pipeline only interprets Model (backend selection) and the cost
// relevant fields; everything else is passed through to the provider.
type GenerationConfig struct {
	Model        string   `json:"model,omitempty"         validate:"omitempty,max=64"`
	Length       Length   `json:"length"                  validate:"required,oneof=short medium long"`
	Tone         string   `json:"tone,omitempty"          validate:"omitempty,max=64"`
	Language     string   `json:"language,omitempty"      validate:"omitempty,max=32"`
	Keywords     []string `json:"keywords,omitempty"      validate:"omitempty,max=20,dive,required,max=100"`
	Images       int      `json:"images,omitempty"        validate:"gte=0,lte=5"`
	KeyTakeaways int      `json:"key_takeaways,omitempty" validate:"gte=0,lte=10"`
	FAQs         int      `json:"faqs,omitempty"          validate:"gte=0,lte=10"`
}

// Validate checks the configuration. Every failure wraps ErrInvalidConfiguration.
func (c GenerationConfig) Validate() error {
	if err := configValidator.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}
	return nil
}

// WithDefaults returns a copy with empty presentation fields filled in.
func (c GenerationConfig) WithDefaults() GenerationConfig {
	if c.Tone == "" {
		c.Tone = "informative"
	}
	if c.Language == "" {
		c.Language = "English"
	}
	c.Model = strings.TrimSpace(c.Model)
	return c
}
