/*
 * Copyright 2025 Olake By Datazip
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package utils

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/datazip-inc/airlake/constants"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/hashicorp/go-multierror"
)

// use a single instance, it caches struct info
var (
	validate *validator.Validate
	trans    ut.Translator
)

// Validate checks the `validate` tags of a connector config. Every violated
// rule is reported, each wrapped under constants.ErrInvalidConfig.
func Validate[T any](structure T) error {
	err := validate.Struct(structure)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return fmt.Errorf("%w: %s", constants.ErrInvalidConfig, err)
	}

	var result *multierror.Error
	for _, fieldErr := range validationErrs {
		result = multierror.Append(result, fmt.Errorf("%w: %s", constants.ErrInvalidConfig, fieldErr.Translate(trans)))
	}
	result.ErrorFormat = func(errs []error) string {
		messages := make([]string, 0, len(errs))
		for _, err := range errs {
			messages = append(messages, strings.TrimPrefix(err.Error(), constants.ErrInvalidConfig.Error()+": "))
		}
		return constants.ErrInvalidConfig.Error() + ": " + strings.Join(messages, "; ")
	}

	return result.ErrorOrNil()
}

func init() {
	english := en.New()
	uni := ut.New(english, english)
	trans, _ = uni.GetTranslator("en")

	validate = validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" {
			name = strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		}

		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	if err := en_translations.RegisterDefaultTranslations(validate, trans); err != nil {
		panic(err)
	}
}
