package query

import "github.com/goliatone/go-credvault/core"

const errorScope = "query"

func missingDependency(name string) error {
	return core.MissingDependencyError(errorScope, name)
}

func requiredField(field string, message string) error {
	return core.RequiredFieldError(errorScope, field, message)
}

func invalidInput(message string) error {
	return core.InvalidInputError(errorScope, message)
}

func wrapInvalidInput(err error, message string) error {
	return core.WrapInvalidInput(err, errorScope, message)
}
