package handlers

import (
	"errors"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerOnce sync.Once

// registerValidators adds the "digits" tag: the value is made of ASCII digits only.
func registerValidators() {
	registerOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			_ = v.RegisterValidation("digits", func(fl validator.FieldLevel) bool {
				s := fl.Field().String()
				for i := 0; i < len(s); i++ {
					if s[i] < '0' || s[i] > '9' {
						return false
					}
				}
				return s != ""
			})
		}
	})
}

const passwordTooLongMessage = "Password must be at most 72 bytes"

// fieldMessages is keyed by field, or by field and tag when one field has
// several rules.
var fieldMessages = map[string]string{
	"CIN":          "Please enter a valid 8-digit CIN",
	"PhoneNumber":  "Please enter a valid 8-digit phone number",
	"Email":        "Please enter a valid email address",
	"FirstName":    "First name is required",
	"LastName":     "Last name is required",
	"Password":     "Password is required",
	"Password.max": passwordTooLongMessage,
}

// validationMessage turns a binding error into the message shown to users.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		if msg, ok := fieldMessages[fe.Field()+"."+fe.Tag()]; ok {
			return msg
		}
		if msg, ok := fieldMessages[fe.Field()]; ok {
			return msg
		}
		return strings.ToLower(verrs[0].Field()) + " is invalid"
	}
	return "Invalid request body"
}
