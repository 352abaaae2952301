package http

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// FieldError describes one rejected request field.
type FieldError struct {
	Code    string                 `json:"code"`
	Field   string                 `json:"field,omitempty"`
	Message string                 `json:"message"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

const codeMalformed = "ERR_UNKNOWN"

var validate = newValidator()

// newValidator reports json names so errors match the wire fields.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// ReadAndValidateRequest binds path, query and body into req, fills defaults
// and validates. It returns nil when req is usable.
func ReadAndValidateRequest(c echo.Context, req interface{}) []FieldError {
	if err := c.Bind(req); err != nil {
		return fieldErrors(err)
	}
	if err := defaults.Set(req); err != nil {
		return fieldErrors(err)
	}
	return ValidateStruct(c.Request().Context(), req)
}

// ValidateStruct runs the validate tags of req.
func ValidateStruct(ctx context.Context, req interface{}) []FieldError {
	if err := validate.StructCtx(ctx, req); err != nil {
		return fieldErrors(err)
	}
	return nil
}

func fieldErrors(err error) []FieldError {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		out := make([]FieldError, 0, len(verrs))
		for _, fe := range verrs {
			out = append(out, describe(fe))
		}
		return out
	}
	msg := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg = fmt.Sprint(he.Message)
	}
	return []FieldError{{Code: codeMalformed, Message: msg}}
}

// rule renders one validator tag; param is the key its parameter is reported under.
type rule struct {
	text  string
	param string
}

var rules = map[string]rule{
	"required": {text: "is required"},
	"gt":       {text: "must be greater than %s", param: "value"},
	"gte":      {text: "must be greater than or equal to %s", param: "min"},
	"lt":       {text: "must be less than %s", param: "value"},
	"lte":      {text: "must be less than or equal to %s", param: "max"},
	"min":      {text: "must be at least %s", param: "min"},
	"max":      {text: "must be at most %s", param: "max"},
	"oneof":    {text: "must be one of: %s", param: "options"},
	"dive":     {text: "has an invalid element"},
}

func describe(fe validator.FieldError) FieldError {
	out := FieldError{Code: "ERR_" + strings.ToUpper(fe.Tag()), Field: fe.Field()}
	r, ok := rules[fe.Tag()]
	if !ok {
		out.Message = fmt.Sprintf("%s failed validation: %s", fe.Field(), fe.Tag())
		return out
	}

	param := fe.Param()
	text := r.text
	switch fe.Tag() {
	case "oneof":
		param = strings.ReplaceAll(param, " ", ", ")
	case "min", "max":
		if fe.Kind() == reflect.String {
			text += " characters"
		} else if fe.Kind() == reflect.Slice {
			text += " items"
		}
	}
	if strings.Contains(text, "%s") {
		text = fmt.Sprintf(text, param)
	}
	out.Message = fe.Field() + " " + text

	if r.param != "" {
		if fe.Tag() == "oneof" {
			out.Params = map[string]interface{}{r.param: strings.Fields(fe.Param())}
		} else {
			out.Params = map[string]interface{}{r.param: fe.Param()}
		}
	}
	return out
}
