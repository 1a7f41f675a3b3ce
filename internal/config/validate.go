package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

func newValidator() *validator.Validate {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return validate
}

type section struct {
	key   string
	value any
}

// Validate checks everything the live monitor needs.
func (c *Config) Validate() error {
	return validateSections(section{value: c})
}

// ValidateAnalysis checks the settings used by one-off analysis.
func (c *Config) ValidateAnalysis() error {
	return validateSections(section{"analysis.", &c.Analysis}, section{"log.", &c.Log})
}

// ValidateState checks the settings used to inspect the ledger.
func (c *Config) ValidateState() error {
	return validateSections(section{"state.", &c.State}, section{"log.", &c.Log})
}

func validateSections(sections ...section) error {
	validate := newValidator()
	var errs []error
	for _, s := range sections {
		err := validate.Struct(s.value)
		if err == nil {
			continue
		}
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			errs = append(errs, err)
			continue
		}
		for _, e := range fieldErrs {
			errs = append(errs, fmt.Errorf(`key="%s", value="%v", failed "%s" validation`, s.key+keyOf(e.Namespace()), e.Value(), e.ActualTag()))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

// keyOf strips the Go type name that prefixes validator namespaces.
func keyOf(namespace string) string {
	if i := strings.Index(namespace, "."); i >= 0 {
		namespace = namespace[i+1:]
	}
	return namespace
}
