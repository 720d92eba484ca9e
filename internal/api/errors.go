package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"beacon-network-backend/internal/apperr"
	"beacon-network-backend/internal/mw"
)

const codeBadRequest = "BAD_REQUEST"

// errorResponse is the body of every non-2xx response.
type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
	Field  string `json:"field,omitempty"`
	ID     string `json:"id,omitempty"`
}

func init() {
	// Report validation failures by their JSON/query names.
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			for _, tag := range []string{"json", "form"} {
				name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
				if name != "" && name != "-" {
					return name
				}
			}
			return f.Name
		})
	}
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindInvalidInput, apperr.KindDecryption:
		return http.StatusUnprocessableEntity
	case apperr.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps err onto the error taxonomy. Unclassified errors are
// logged and reported without internal detail.
func (h *Handler) writeError(c *gin.Context, err error) {
	e, ok := apperr.As(err)
	if !ok || e.Kind == apperr.KindInternal {
		h.log.Error("request failed",
			zap.String("request_id", mw.GetRequestID(c)),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		_ = c.Error(err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse{
			Error:  "INTERNAL_ERROR",
			Detail: "an unexpected error occurred",
		})
		return
	}

	detail := e.Message
	if e.Kind == apperr.KindDecryption {
		detail = "message could not be decrypted"
	}
	c.AbortWithStatusJSON(statusFor(e.Kind), errorResponse{
		Error:  e.Code,
		Detail: detail,
		Field:  e.Field,
		ID:     e.ID,
	})
}

// writeBindError distinguishes unreadable bodies (400) from well-formed
// input that fails validation (422).
func (h *Handler) writeBindError(c *gin.Context, err error) {
	var (
		verrs   validator.ValidationErrors
		typeErr *json.UnmarshalTypeError
		numErr  *strconv.NumError
	)
	switch {
	case errors.As(err, &verrs) && len(verrs) > 0:
		fe := verrs[0]
		h.writeError(c, apperr.Invalid(fe.Field(), validationMessage(fe)))
	case errors.As(err, &typeErr):
		h.writeError(c, apperr.Invalid(typeErr.Field, typeErr.Field+" must be a "+typeErr.Type.String()))
	case errors.As(err, &numErr):
		h.writeError(c, apperr.Invalid("query", "query parameter "+strconv.Quote(numErr.Num)+" is not a number"))
	default:
		c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{
			Error:  codeBadRequest,
			Detail: "malformed request body",
		})
	}
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "min", "gte":
		return fe.Field() + " must be at least " + fe.Param()
	case "max", "lte":
		return fe.Field() + " must be at most " + fe.Param()
	case "gt":
		return fe.Field() + " must be greater than " + fe.Param()
	default:
		return fe.Field() + " is invalid"
	}
}
