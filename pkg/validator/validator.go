// Package validator wraps go-playground/validator with json-tag field
// names, English and Chinese messages and the rules used by mhire
// request types.
package validator

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	zh_translations "github.com/go-playground/validator/v10/translations/zh"
)

const (
	LangEN = "en"
	LangZH = "zh"
)

// Custom tags.
const (
	// TagIdentifier accepts session and user ids: 1-128 chars of
	// letters, digits and "-_.:@".
	TagIdentifier = "identifier"
	// TagNotBlank rejects strings that are empty after trimming.
	TagNotBlank = "notblank"
)

var identifierRegex = regexp.MustCompile(`^[A-Za-z0-9_.:@-]{1,128}$`)

// Validator wraps validator.Validate with translators.
type Validator struct {
	validate *validator.Validate
	trans    map[string]ut.Translator
	mu       sync.RWMutex
}

var (
	globalValidator *Validator
	once            sync.Once
)

// Global returns the process-wide validator.
func Global() *Validator {
	once.Do(func() {
		globalValidator = New()
	})
	return globalValidator
}

// New creates a Validator with the custom rules registered.
func New() *Validator {
	v := &Validator{
		validate: validator.New(validator.WithRequiredStructEnabled()),
		trans:    make(map[string]ut.Translator),
	}

	// 错误字段名使用 json / form 标签
	v.validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			name = strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		}
		if name == "" {
			return fld.Name
		}
		return name
	})

	enLocale := en.New()
	uni := ut.New(enLocale, enLocale, zh.New())

	enTrans, _ := uni.GetTranslator(LangEN)
	_ = en_translations.RegisterDefaultTranslations(v.validate, enTrans)
	v.trans[LangEN] = enTrans

	zhTrans, _ := uni.GetTranslator(LangZH)
	_ = zh_translations.RegisterDefaultTranslations(v.validate, zhTrans)
	v.trans[LangZH] = zhTrans

	v.mustRegister(TagIdentifier, func(fl validator.FieldLevel) bool {
		return identifierRegex.MatchString(fl.Field().String())
	}, map[string]string{
		LangEN: "{0} may only contain letters, digits and -_.:@ (max 128)",
		LangZH: "{0}只能包含字母、数字和 -_.:@，最长128个字符",
	})
	v.mustRegister(TagNotBlank, func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	}, map[string]string{
		LangEN: "{0} must not be blank",
		LangZH: "{0}不能为空",
	})
	return v
}

func (v *Validator) mustRegister(tag string, fn validator.Func, messages map[string]string) {
	if err := v.validate.RegisterValidation(tag, fn); err != nil {
		panic(err)
	}
	for lang, msg := range messages {
		trans, ok := v.trans[lang]
		if !ok {
			continue
		}
		_ = v.validate.RegisterTranslation(tag, trans,
			func(t ut.Translator) error { return t.Add(tag, msg, true) },
			func(t ut.Translator, fe validator.FieldError) string {
				s, _ := t.T(tag, fe.Field())
				return s
			},
		)
	}
}

// Validate validates a struct and returns *ValidationErrors with English
// messages, or nil.
func (v *Validator) Validate(s any) error {
	if verr := v.ValidateWithLang(s, LangEN); verr != nil {
		return verr
	}
	return nil
}

// ValidateWithLang validates a struct and translates the messages.
func (v *Validator) ValidateWithLang(s any, lang string) *ValidationErrors {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return NewValidationError("unknown", "unknown", err.Error())
	}
	return v.translate(verrs, v.translator(lang))
}

// Var validates a single value against tag.
func (v *Validator) Var(field any, tag string) error {
	err := v.validate.Var(field, tag)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	return v.translate(verrs, v.translator(LangEN))
}

func (v *Validator) translator(lang string) ut.Translator {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if t, ok := v.trans[lang]; ok {
		return t
	}
	return v.trans[LangEN]
}

func (v *Validator) translate(errs validator.ValidationErrors, trans ut.Translator) *ValidationErrors {
	out := &ValidationErrors{Errors: make([]FieldError, 0, len(errs))}
	for _, fe := range errs {
		out.Errors = append(out.Errors, FieldError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Param:   fe.Param(),
			Message: fe.Translate(trans),
		})
	}
	return out
}

// Struct validates s with the global validator.
func Struct(s any) error {
	return Global().Validate(s)
}
