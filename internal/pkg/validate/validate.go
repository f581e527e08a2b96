// Package validate wraps go-playground/validator with readable messages and
// the custom tags orderbell needs.
package validate

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	v     = validator.New()
	money = regexp.MustCompile(`^\d{1,9}(\.\d{1,2})?$`)
)

func init() {
	// money: non-negative decimal string with at most two fraction digits
	_ = v.RegisterValidation("money", func(fl validator.FieldLevel) bool {
		return money.MatchString(fl.Field().String())
	})
}

// Struct validates s using its validate tags and flattens field errors into a
// single message.
func Struct(s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}
	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		msgs = append(msgs, fmt.Sprintf("field '%s' failed '%s'", fe.Namespace(), fe.Tag()))
	}
	return errors.New(strings.Join(msgs, "; "))
}
