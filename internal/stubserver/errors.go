package stubserver

import (
	"errors"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// fieldError mirrors one entry of a FastAPI validation error list
type fieldError struct {
	Loc  []any  `json:"loc"`
	Msg  string `json:"msg"`
	Type string `json:"type"`
}

func abortDetail(c *gin.Context, status int, detail string) {
	c.AbortWithStatusJSON(status, gin.H{"detail": detail})
}

var tagNameOnce sync.Once

// useJSONFieldNames makes validation errors report json names, e.g. full_name
func useJSONFieldNames() {
	tagNameOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	})
}

// bindJSON decodes the body, answering 422 with a field list on failure
func bindJSON(c *gin.Context, v any) bool {
	err := c.ShouldBindJSON(v)
	if err == nil {
		return true
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]fieldError, 0, len(verrs))
		for _, fe := range verrs {
			msg, typ := describe(fe)
			fields = append(fields, fieldError{Loc: []any{"body", fe.Field()}, Msg: msg, Type: typ})
		}
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"detail": fields})
		return false
	}

	c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"detail": []fieldError{{
		Loc:  []any{"body"},
		Msg:  "Invalid JSON body",
		Type: "json_invalid",
	}}})
	return false
}

func describe(fe validator.FieldError) (string, string) {
	switch fe.Tag() {
	case "required":
		return "Field required", "missing"
	case "email":
		return "value is not a valid email address", "value_error"
	case "min":
		return "String should have at least " + fe.Param() + " characters", "string_too_short"
	default:
		return "Invalid value", "value_error"
	}
}
