package reservation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"slothold/internal/models"
)

// ReserveRequest asks for a new hold on (Datetime, ServiceType).
type ReserveRequest struct {
	Datetime          string             `json:"datetime" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	ServiceType       models.ServiceType `json:"serviceType" validate:"required,servicetype"`
	CustomerEmail     string             `json:"customerEmail" validate:"required,email"`
	UserID            string             `json:"userId,omitempty" validate:"omitempty,max=128"`
	EstimatedDuration int                `json:"estimatedDuration" validate:"gt=0"`
	Metadata          map[string]any     `json:"metadata,omitempty"`
}

// ExtendRequest asks for the single permitted extension of a reservation.
type ExtendRequest struct {
	ReservationID string `json:"reservationId" validate:"required"`
	CustomerEmail string `json:"customerEmail" validate:"required,email"`
	Reason        string `json:"reason,omitempty" validate:"max=200"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

// ValidationErrors is returned as an error, before any store access, for malformed requests.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

// IsValidationError reports whether err is a request validation failure.
func IsValidationError(err error) bool {
	var v ValidationErrors
	return errors.As(err, &v)
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	// Registration only fails for an empty tag or nil func.
	_ = v.RegisterValidation("servicetype", func(fl validator.FieldLevel) bool {
		return models.ServiceType(fl.Field().String()).Valid()
	})
	return v
}

func (e *Engine) validateStruct(req any) error {
	if err := e.validate.Struct(req); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return translateValidationErrors(validationErrs)
		}
		return err
	}
	return nil
}

func translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var out ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "email":
			message = fmt.Sprintf("%s must be a valid email address", err.Field())
		case "datetime":
			message = fmt.Sprintf("%s must be an ISO-8601 instant (e.g. 2025-03-01T14:00:00Z)", err.Field())
		case "servicetype":
			message = fmt.Sprintf("%s must be one of: %s", err.Field(), serviceTypeList())
		case "gt":
			message = fmt.Sprintf("%s must be greater than %s", err.Field(), err.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s characters", err.Field(), err.Param())
		}

		out = append(out, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return out
}

func serviceTypeList() string {
	names := make([]string, 0, len(models.ServiceTypes))
	for _, st := range models.ServiceTypes {
		names = append(names, string(st))
	}
	return strings.Join(names, " ")
}
