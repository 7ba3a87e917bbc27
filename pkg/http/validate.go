package http

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(fieldName)
	return v
}

// fieldName reports fields by their wire name so errors match what the client sent.
func fieldName(f reflect.StructField) string {
	for _, tag := range []string{"json", "query", "param"} {
		name, _, _ := strings.Cut(f.Tag.Get(tag), ",")
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return f.Name
}

// ReadAndValidateRequest binds path, query and body into req, applies
// `default` tags and validates. It returns nil or a []ValidationError.
func ReadAndValidateRequest(c echo.Context, req interface{}) interface{} {
	if err := c.Bind(req); err != nil {
		return toValidationErrors(err)
	}
	if err := defaults.Set(req); err != nil {
		return toValidationErrors(err)
	}
	if err := validate.StructCtx(c.Request().Context(), req); err != nil {
		return toValidationErrors(err)
	}
	return nil
}

func toValidationErrors(err error) []ValidationError {
	var fes validator.ValidationErrors
	if errors.As(err, &fes) {
		out := make([]ValidationError, 0, len(fes))
		for _, fe := range fes {
			out = append(out, describe(fe))
		}
		return out
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return []ValidationError{{Code: "ERR_BIND", Message: fmt.Sprint(he.Message)}}
	}
	return []ValidationError{{Code: "ERR_UNKNOWN", Message: err.Error()}}
}

// rule renders one validator tag. param names the Params key the tag's
// argument is reported under, if any.
type rule struct {
	format string // %[1]s field, %[2]s tag argument
	param  string
}

var rules = map[string]rule{
	"required": {format: "%[1]s is required"},
	"boolean":  {format: "%[1]s must be true or false"},
	"alpha":    {format: "%[1]s must contain letters only"},
	"min":      {format: "%[1]s must be at least %[2]s", param: "min"},
	"max":      {format: "%[1]s must be at most %[2]s", param: "max"},
	"gt":       {format: "%[1]s must be greater than %[2]s", param: "value"},
	"gte":      {format: "%[1]s must be greater than or equal to %[2]s", param: "min"},
	"lt":       {format: "%[1]s must be less than %[2]s", param: "value"},
	"lte":      {format: "%[1]s must be less than or equal to %[2]s", param: "max"},
	"oneof":    {format: "%[1]s must be one of: %[2]s", param: "options"},
}

func describe(fe validator.FieldError) ValidationError {
	out := ValidationError{
		Code:   "ERR_" + strings.ToUpper(fe.Tag()),
		Field:  fe.Field(),
		Params: map[string]interface{}{},
	}
	r, ok := rules[fe.Tag()]
	if !ok {
		out.Message = fmt.Sprintf("%s failed validation: %s", fe.Field(), fe.Tag())
		return out
	}

	arg := fe.Param()
	switch fe.Tag() {
	case "oneof":
		out.Params[r.param] = strings.Fields(arg)
		arg = strings.Join(strings.Fields(arg), ", ")
	case "min", "max":
		if fe.Kind() == reflect.String {
			arg += " characters"
		}
		out.Params[r.param] = fe.Param()
	default:
		if r.param != "" {
			out.Params[r.param] = fe.Param()
		}
	}
	out.Message = fmt.Sprintf(r.format, fe.Field(), arg)
	return out
}
