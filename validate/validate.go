package validate

import (
	"errors"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/google/uuid"
)

// CountryCode prefixes every accepted mobile number.
const CountryCode = "254"

const msisdnLen = 12

var validate *validator.Validate

var translator ut.Translator

func init() {

	validate = validator.New()

	translator, _ = ut.New(en.New(), en.New()).GetTranslator("en")
	en_translations.RegisterDefaultTranslations(validate, translator)

	validate.RegisterValidation("msisdn", func(fl validator.FieldLevel) bool {
		return IsMSISDN(fl.Field().String())
	})
	validate.RegisterTranslation("msisdn", translator,
		func(ut ut.Translator) error {
			return ut.Add("msisdn", "{0} must be a 12 digit phone number starting with "+CountryCode, true)
		},
		func(ut ut.Translator, fe validator.FieldError) string {
			t, _ := ut.T("msisdn", fe.Field())
			return t
		},
	)
}

func Check(val any) error {
	if err := validate.Struct(val); err != nil {

		verrors, ok := err.(validator.ValidationErrors)
		if !ok {
			return err
		}

		if len(verrors) < 1 {
			return nil
		}

		return errors.New(verrors[0].Translate(translator))
	}

	return nil
}

// IsMSISDN reports whether s is a mobile number the payment gateway accepts.
func IsMSISDN(s string) bool {
	if len(s) != msisdnLen || !strings.HasPrefix(s, CountryCode) {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func GenerateID() string {
	return uuid.NewString()
}
