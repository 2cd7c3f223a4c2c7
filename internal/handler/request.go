package handler

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/newsletter-dispatch/internal/domain"
	"github.com/kursadbilgin/newsletter-dispatch/internal/transport"
)

const (
	defaultPage     = 1
	defaultPageSize = 20
	maxPageSize     = 100
)

var validate = newValidator()

// newValidator reports fields by their json or query tag name.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		for _, tag := range []string{"json", "query"} {
			name, _, _ := strings.Cut(field.Tag.Get(tag), ",")
			if name != "" && name != "-" {
				return name
			}
		}
		return field.Name
	})
	return v
}

type listQuery struct {
	Page     int `query:"page" validate:"gte=0"`
	PageSize int `query:"pageSize" validate:"gte=0,lte=100"`
}

type listMeta struct {
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
	Total    int64 `json:"total"`
	HasNext  bool  `json:"hasNext"`
}

func parseListQuery(c *fiber.Ctx) (listQuery, error) {
	var q listQuery
	if err := c.QueryParser(&q); err != nil {
		return listQuery{}, fmt.Errorf("%w: invalid query parameters", domain.ErrValidation)
	}
	if err := validateStruct(q); err != nil {
		return listQuery{}, err
	}
	if q.Page == 0 {
		q.Page = defaultPage
	}
	if q.PageSize == 0 {
		q.PageSize = defaultPageSize
	}
	return q, nil
}

func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	return validateStruct(out)
}

// validateStruct reports the first failing field as a ValidationError.
func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return domain.NewValidationError(fe.Field(), validationMessage(fe))
	}
	return fmt.Errorf("%w: %v", domain.ErrValidation, err)
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "email":
		return "enter a valid email address"
	case "max", "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "min", "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}

func toHTTPError(err error) error {
	if err == nil {
		return nil
	}
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return err
	}

	code, message := transport.Classify(err)
	if code == fiber.StatusInternalServerError && message != err.Error() {
		return err
	}
	return fiber.NewError(code, message)
}
