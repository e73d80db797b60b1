// Package inquiry defines the customer inquiry record consumed by the analysis pipeline.
package inquiry

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// BrandChannel is the brand/tenant tag that scopes all retrieval.
type BrandChannel string

const (
	BrandKeychron BrandChannel = "KEYCHRON"
	BrandGTGear   BrandChannel = "GTGEAR"
	BrandAiper    BrandChannel = "AIPER"
)

// CategoryOther is the upstream catch-all category. It carries no signal and
// is never used as a retrieval filter.
const CategoryOther = "기타"

// ErrInvalidRecord indicates a record that cannot be analyzed at all.
var ErrInvalidRecord = errors.New("invalid inquiry record")

// Record is a single customer inquiry as handed over by the upstream system.
// It is treated as immutable for the duration of an analysis.
type Record struct {
	InquiryID     string            `json:"inquiry_id" validate:"required"`
	BrandChannel  BrandChannel      `json:"brand_channel" validate:"required,brand"`
	Category      string            `json:"category"`
	Title         string            `json:"title"`
	Content       string            `json:"content"`
	ProductName   string            `json:"product_name,omitempty"`
	ProductOption string            `json:"product_option,omitempty"`
	Extra         map[string]string `json:"extra,omitempty"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("brand", func(fl validator.FieldLevel) bool {
		return BrandChannel(fl.Field().String()).Known()
	})
	return v
}

// Known reports whether b is one of the supported brand channels.
func (b BrandChannel) Known() bool {
	switch b {
	case BrandKeychron, BrandGTGear, BrandAiper:
		return true
	}
	return false
}

// Validate checks the fields without which no analysis is possible.
// Empty title or content is allowed; it yields a zero-signal result downstream.
func (r Record) Validate() error {
	err := validate.Struct(r)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fmt.Sprintf("%s(%s)", fe.Field(), fe.Tag()))
		}
		return fmt.Errorf("%w: %s", ErrInvalidRecord, strings.Join(fields, ", "))
	}
	return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
}

// HasContent reports whether the primary text signal is present.
func (r Record) HasContent() bool {
	return strings.TrimSpace(r.Content) != ""
}

// CategoryFilter returns the category to restrict retrieval to, or "" when
// the category is absent or the catch-all.
func (r Record) CategoryFilter() string {
	c := strings.TrimSpace(r.Category)
	if c == CategoryOther {
		return ""
	}
	return c
}
