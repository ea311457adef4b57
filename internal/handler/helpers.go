package handler

import (
	"errors"
	"net/http"
	"reflect"

	"tillpos/internal/apierror"
	"tillpos/internal/model"
	"tillpos/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

func init() {
	// Register decimal.Decimal as a numeric type so that validator tags like
	// min=0, gt=0, required work without panicking ("Bad field type decimal.Decimal").
	validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if v, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := v.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
}

// bindAndValidate binds JSON body and runs go-playground/validator tags.
// Returns false and writes the error response if validation fails —
// the caller should return immediately without writing another response.
func bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid JSON: "+err.Error()))
		return false
	}
	if err := validate.Struct(req); err != nil {
		fields := make(map[string]string)
		for _, fe := range err.(validator.ValidationErrors) {
			fields[fe.Field()] = fe.Tag()
		}
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(fields))
		return false
	}
	return true
}

// writeError maps domain errors onto HTTP status codes.
func writeError(c *gin.Context, err error) {
	var transition *model.InvalidTransitionError
	switch {
	case errors.Is(err, model.ErrNotFound):
		c.JSON(http.StatusNotFound, apierror.New("not found"))
	case errors.As(err, &transition):
		c.JSON(http.StatusConflict, apierror.New(err.Error()))
	case errors.Is(err, repository.ErrVersionConflict):
		c.JSON(http.StatusConflict, apierror.New(err.Error()))
	case errors.Is(err, model.ErrTicketImmutable):
		c.JSON(http.StatusConflict, apierror.New(err.Error()))
	case errors.Is(err, model.ErrInvalidAmount), errors.Is(err, model.ErrInsufficientBalance):
		c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
	default:
		c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
	}
}
