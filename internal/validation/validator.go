// Package validation wraps a go-playground/validator singleton and turns its
// field errors into one client-facing sentence.
package validation

import (
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/ayush/estate-marketplace/internal/models"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validator returns the shared validator instance.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return f.Name
			}
			return name
		})
		validate.RegisterStructValidation(listingOffer, models.ListingInput{})
	})
	return validate
}

// listingOffer requires a discount below the regular price on offers.
func listingOffer(sl validator.StructLevel) {
	in := sl.Current().Interface().(models.ListingInput)
	if in.Offer && in.DiscountedPrice >= in.RegularPrice {
		sl.ReportError(in.DiscountedPrice, "discountedPrice", "DiscountedPrice", "ltprice", "")
	}
}

// Struct validates s and returns nil or an error whose message is safe to
// show to the client.
func Struct(s any) error {
	err := Validator().Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, translate(fe))
	}
	return errors.New(strings.Join(msgs, "; "))
}

var messages = map[string]string{
	"required": "%s is required",
	"email":    "%s must be a valid email address",
	"url":      "%s must be a valid URL",
	"ltprice":  "%s must be lower than regularPrice when offer is set",
}

var messagesWithParam = map[string]string{
	"oneof": "%s must be one of: %s",
	"gte":   "%s must be greater than or equal to %s",
	"lte":   "%s must be less than or equal to %s",
}

func translate(fe validator.FieldError) string {
	field := fe.Field()
	if tmpl, ok := messages[fe.Tag()]; ok {
		return fmt.Sprintf(tmpl, field)
	}
	if tmpl, ok := messagesWithParam[fe.Tag()]; ok {
		return fmt.Sprintf(tmpl, field, fe.Param())
	}
	isString := fe.Kind().String() == "string"
	isSlice := fe.Kind().String() == "slice"
	switch fe.Tag() {
	case "min":
		switch {
		case isString:
			return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		case isSlice:
			return fmt.Sprintf("%s must contain at least %s items", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		switch {
		case isString:
			return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		case isSlice:
			return fmt.Sprintf("%s must contain at most %s items", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	}
	return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
}

// ErrInvalidBody is returned when a request body is not valid JSON.
var ErrInvalidBody = errors.New("invalid request body")

// Decode reads a JSON body into dst and validates it.
func Decode(r io.Reader, dst any) error {
	if err := json.NewDecoder(r).Decode(dst); err != nil {
		return ErrInvalidBody
	}
	return Struct(dst)
}
