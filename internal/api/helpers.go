package api

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v5"
	"github.com/vmihailenco/msgpack/v5"
)

const mimeMsgpack = "application/msgpack"

func isMsgpack(c *echo.Context) bool {
	ct := c.Request().Header.Get(echo.HeaderContentType)
	return strings.HasPrefix(ct, mimeMsgpack) || strings.HasPrefix(ct, "application/x-msgpack")
}

// decodeBody reads a JSON or MessagePack body. An empty body decodes to the
// zero value when allowEmpty is set.
func decodeBody[T any](c *echo.Context, allowEmpty bool) (T, error) {
	var out T
	body := c.Request().Body
	if body == nil {
		if allowEmpty {
			return out, nil
		}
		return out, newInvalidRequest("request body is required")
	}
	var err error
	if isMsgpack(c) {
		err = msgpack.NewDecoder(body).Decode(&out)
	} else {
		out, err = decodeJSON[T](body)
	}
	if errors.Is(err, io.EOF) && allowEmpty {
		return out, nil
	}
	if err != nil {
		return out, newInvalidRequest("decode body: %v", err)
	}
	return out, nil
}

func decodeJSON[T any](r io.Reader) (T, error) {
	var out T
	dec := json.NewDecoder(r)
	if err := dec.Decode(&out); err != nil {
		return out, err
	}
	return out, nil
}

// write answers in the encoding the request used.
func write(c *echo.Context, status int, v any) error {
	if !isMsgpack(c) {
		return c.JSON(status, v)
	}
	b, err := msgpack.Marshal(v)
	if err != nil {
		return err
	}
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, mimeMsgpack)
	res.WriteHeader(status)
	_, err = res.Write(b)
	return err
}

func writeBadRequest(c *echo.Context, msg string) error {
	return writeError(c, http.StatusBadRequest, "invalid_request_error", msg, "")
}

func writeNotFound(c *echo.Context, msg string) error {
	return writeError(c, http.StatusNotFound, "not_found_error", msg, "")
}

func writeError(c *echo.Context, status int, errType, msg, code string) error {
	return write(c, status, errorEnvelope{Error: ResponseError{
		Message: msg,
		Type:    errType,
		Code:    code,
	}})
}
