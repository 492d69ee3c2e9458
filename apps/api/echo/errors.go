package echoapi

import (
	"fmt"
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/jifunze/core"
	"github.com/trezcool/jifunze/core/user"
)

var (
	errUnauthorized      = unauthorized("user not authenticated")
	errJWTMissing        = unauthorized("missing or malformed jwt")
	errJWTInvalid        = unauthorized("invalid or expired jwt")
	errUserGone          = unauthorized("user no longer exists")
	errHttpForbidden     = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errInvalidBody       = echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	errTooManyAttempts   = echo.NewHTTPError(http.StatusTooManyRequests, "too many attempts, please try again later")
	errAuthNotConfigured = core.NewUnavailableError("authentication is not configured")

	errInvalidInput = "invalid input"
)

var kindCodes = map[core.Kind]int{
	core.KindUnauthorized: http.StatusUnauthorized,
	core.KindForbidden:    http.StatusForbidden,
	core.KindNotFound:     http.StatusNotFound,
	core.KindConflict:     http.StatusConflict,
	core.KindUnavailable:  http.StatusServiceUnavailable,
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		if ctx.Response().Committed {
			return
		}

		var code int
		var message interface{}

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case *echo.BindingError:
			code = http.StatusBadRequest
			message = errInvalidBody.Message
		case validator.ValidationErrors:
			fields := make([]core.FieldError, 0, len(origErr))
			for _, vErr := range origErr {
				fields = append(fields, core.FieldError{Field: vErr.Field(), Error: vErr.Translate(translator)})
			}
			code = http.StatusBadRequest
			message = validationBody(fields)
		case *core.ValidationError:
			if len(origErr.Fields) > 0 {
				message = validationBody(origErr.Fields)
			} else {
				message = origErr.Error()
			}
			code = http.StatusBadRequest
		case *core.Error:
			code = kindCodes[origErr.Kind]
			message = origErr.Msg
		default: // any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg

			args := []interface{}{errors.Wrap(err, msg)}
			if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
				args = append(args, usr)
			}
			logger.Error(fmt.Sprintf("%s %s: %v", ctx.Request().Method, ctx.Request().URL.Path, err), args...)

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if code == 0 {
			code = http.StatusInternalServerError
		}
		switch m := message.(type) {
		case string:
			message = echo.Map{"error": m}
		case error:
			message = echo.Map{"error": m.Error()}
		case validationErrorBody:
		default:
			message = echo.Map{"error": fmt.Sprint(m)}
		}

		// Send response
		if ctx.Request().Method == http.MethodHead { // Issue #608
			err = ctx.NoContent(code)
		} else {
			err = ctx.JSON(code, message)
		}
		if err != nil {
			ctx.Echo().Logger.Error(err)
		}
	}
}

// validationErrorBody keeps the `error` key of every error response and details the invalid fields.
type validationErrorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields"`
}

// validationBody uses the message of a lone invalid field as the error, and a summary otherwise.
func validationBody(fields []core.FieldError) validationErrorBody {
	body := validationErrorBody{Fields: make(map[string]string, len(fields))}
	for _, fErr := range fields {
		if _, ok := body.Fields[fErr.Field]; !ok { // keep the first error of each field
			body.Fields[fErr.Field] = fErr.Error
		}
	}
	if len(body.Fields) == 1 {
		body.Error = fields[0].Error
	} else {
		body.Error = errInvalidInput
	}
	return body
}
