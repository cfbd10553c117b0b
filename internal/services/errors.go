package services

import (
	"fmt"

	"devmind/datacollector/internal/constants"
)

// ServiceError carries an error code the HTTP layer maps to a status
type ServiceError struct {
	Code    string
	Message string
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func newServiceError(code string, err error) *ServiceError {
	return &ServiceError{
		Code:    code,
		Message: constants.GetErrorMessage(code),
		Err:     err,
	}
}

func malformed(message string) *ServiceError {
	return &ServiceError{Code: constants.ErrCodeConfigMalformed, Message: message}
}
