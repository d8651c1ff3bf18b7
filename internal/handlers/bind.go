package handlers

import (
	"errors"
	"mime"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// maxFormMemory is how much of a multipart body is kept in memory.
const maxFormMemory = 1 << 20

// bind copies url.Values into the *string fields of dst tagged `form`, then
// validates dst. loc is "body" or "query".
func bind(values url.Values, dst any, loc string) []FieldError {
	v := reflect.ValueOf(dst).Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		name := t.Field(i).Tag.Get("form")
		if name == "" {
			continue
		}
		if vals, ok := values[name]; ok && len(vals) > 0 {
			s := vals[0]
			v.Field(i).Set(reflect.ValueOf(&s))
		}
	}

	err := validate.Struct(dst)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []FieldError{{Loc: []string{loc}, Msg: err.Error(), Type: "value_error"}}
	}
	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		f, _ := t.FieldByName(fe.StructField())
		field := f.Tag.Get("form")
		switch fe.Tag() {
		case "required":
			out = append(out, FieldError{Loc: []string{loc, field}, Msg: "field required", Type: "value_error.missing"})
		default:
			out = append(out, FieldError{Loc: []string{loc, field}, Msg: fe.Error(), Type: "value_error"})
		}
	}
	return out
}

// bindForm accepts urlencoded and multipart bodies; both end up in PostForm.
func bindForm(r *http.Request, dst any) []FieldError {
	parse := r.ParseForm
	if ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); ct == "multipart/form-data" {
		parse = func() error { return r.ParseMultipartForm(maxFormMemory) }
	}
	if err := parse(); err != nil {
		return []FieldError{{Loc: []string{"body"}, Msg: err.Error(), Type: "value_error"}}
	}
	return bind(r.PostForm, dst, "body")
}

func bindQuery(r *http.Request, dst any) []FieldError {
	return bind(r.URL.Query(), dst, "query")
}

// parsePrice takes an optionally signed integer, surrounding blanks allowed.
func parsePrice(field string, s string) (int64, []FieldError) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, []FieldError{{Loc: []string{"body", field}, Msg: "value is not a valid integer", Type: "type_error.integer"}}
	}
	return n, nil
}
