package controllers

import (
	"regexp"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	slugPattern        = regexp.MustCompile(`^[a-zA-Z0-9]+(-[a-zA-Z0-9]+)*$`)
	voucherCodePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

func init() {
	RegisterValidators()
}

// RegisterValidators adds the storefront's custom tags to gin's binding
// validator. Safe to call more than once.
func RegisterValidators() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	_ = v.RegisterValidation("slug", matches(slugPattern))
	_ = v.RegisterValidation("vouchercode", matches(voucherCodePattern))
}

func matches(re *regexp.Regexp) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return re.MatchString(fl.Field().String())
	}
}
