package weather

import (
	"errors"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/i474232898/openweathermap-agent/internal/common"
)

var validate = newOptionValidator()

// ValidationError is one field-level problem found when options are saved.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return e.Message
}

// ValidationErrors collects every violated rule; validation never stops at
// the first failure.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	msgs := make([]string, 0, len(v))
	for _, e := range v {
		msgs = append(msgs, e.Message)
	}
	return strings.Join(msgs, "; ")
}

// Has reports whether any error concerns field.
func (v ValidationErrors) Has(field string) bool {
	for _, e := range v {
		if e.Field == field {
			return true
		}
	}
	return false
}

var optionMessages = map[string]string{
	OptionType:                        "type has invalid value: should be 'current_weather'",
	OptionLon:                         "lon must be provided",
	OptionLat:                         "lat must be provided",
	OptionToken:                       "token is a required field",
	OptionEmitEvents:                  "if provided, emit_events must be true or false",
	OptionDebug:                       "if provided, debug must be true or false",
	OptionExpectedReceivePeriodInDays: "Please provide 'expected_receive_period_in_days' to indicate how many days can pass before this Agent is considered to be not working",
}

// optionFields is the shape handed to the validator. Field order is the
// order errors are reported in.
type optionFields struct {
	Type       string  `option:"type" validate:"omitempty,oneof=current_weather"`
	Lon        string  `option:"lon" validate:"required_if=Type current_weather"`
	Lat        string  `option:"lat" validate:"required_if=Type current_weather"`
	Token      string  `option:"token" validate:"required"`
	EmitEvents *string `option:"emit_events" validate:"omitnil,boolean_option"`
	Debug      *string `option:"debug" validate:"omitnil,boolean_option"`
	Period     string  `option:"expected_receive_period_in_days" validate:"positive_days"`
}

func newOptionValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("option")
	})
	// Registration only fails on an empty tag or nil func.
	_ = v.RegisterValidation("boolean_option", func(fl validator.FieldLevel) bool {
		_, ok := common.Boolify(fl.Field().String())
		return ok
	})
	_ = v.RegisterValidation("positive_days", func(fl validator.FieldLevel) bool {
		n, err := strconv.Atoi(strings.TrimSpace(fl.Field().String()))
		return err == nil && n > 0
	})
	return v
}

// ValidateOptions checks opts the way the host does at save time. type, lat
// and lon are judged after interpolation with an empty context; everything
// else on the raw values. It returns nil when opts are usable.
func ValidateOptions(opts Options) ValidationErrors {
	var errs ValidationErrors

	interpolated, err := Interpolate(opts, nil)
	if err != nil {
		errs = append(errs, ValidationError{Field: "options", Message: err.Error()})
		interpolated = opts
	}

	fields := optionFields{
		Type:   interpolated.String(OptionType),
		Lon:    strings.TrimSpace(interpolated.String(OptionLon)),
		Lat:    strings.TrimSpace(interpolated.String(OptionLat)),
		Token:  strings.TrimSpace(opts.String(OptionToken)),
		Period: opts.String(OptionExpectedReceivePeriodInDays),
	}
	if !common.Present(fields.Type) {
		fields.Type = ""
	}
	if opts.Has(OptionEmitEvents) {
		v := opts.String(OptionEmitEvents)
		fields.EmitEvents = &v
	}
	if opts.Has(OptionDebug) {
		v := opts.String(OptionDebug)
		fields.Debug = &v
	}

	if err := validate.Struct(fields); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return append(errs, ValidationError{Field: "options", Message: err.Error()})
		}
		for _, fe := range verrs {
			msg, ok := optionMessages[fe.Field()]
			if !ok {
				msg = fe.Error()
			}
			errs = append(errs, ValidationError{Field: fe.Field(), Message: msg})
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

// ParseOptions validates opts and, when they are usable, returns the typed
// configuration.
func ParseOptions(opts Options) (Config, ValidationErrors) {
	if errs := ValidateOptions(opts); errs != nil {
		return Config{}, errs
	}
	return decodeConfig(opts), nil
}

// decodeConfig converts already-validated (and possibly interpolated)
// options. Values are kept verbatim. debug and emit_events are on only when
// they are exactly "true"; case-insensitive spellings pass validation but do
// not switch anything on.
func decodeConfig(opts Options) Config {
	period, err := strconv.Atoi(strings.TrimSpace(opts.String(OptionExpectedReceivePeriodInDays)))
	if err != nil {
		period = 0
	}

	return Config{
		Type:       ActionType(opts.String(OptionType)),
		Token:      opts.String(OptionToken),
		Lat:        opts.String(OptionLat),
		Lon:        opts.String(OptionLon),
		Limit:      opts.String(OptionLimit),
		Debug:      flagOn(opts, OptionDebug),
		EmitEvents: flagOn(opts, OptionEmitEvents),

		ExpectedReceivePeriodInDays: period,
	}
}

func flagOn(opts Options, key string) bool {
	return opts.String(key) == "true"
}
