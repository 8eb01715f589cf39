package common

import (
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// Password length bounds in bytes. bcrypt ignores anything past 72.
const (
	MinPasswordLength = 8
	MaxPasswordLength = 72
)

var registerOnce sync.Once

// RegisterValidators installs the custom rules on gin's validator engine and
// makes validation errors report JSON field names. Safe to call more than once.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(jsonFieldName)
		_ = v.RegisterValidation("password", validatePassword)
		_ = v.RegisterValidation("maxbytes", validateMaxBytes)
	})
}

func jsonFieldName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" || name == "" {
		return fld.Name
	}
	return name
}

func validatePassword(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	return len(s) >= MinPasswordLength && len(s) <= MaxPasswordLength && strings.TrimSpace(s) != ""
}

// validateMaxBytes bounds the encoded length of a string; "max" counts runes.
func validateMaxBytes(fl validator.FieldLevel) bool {
	limit, err := strconv.Atoi(fl.Param())
	if err != nil {
		return false
	}
	return len(fl.Field().String()) <= limit
}
