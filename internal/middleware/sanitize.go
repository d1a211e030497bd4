package middleware

import (
	"bytes"
	"encoding/json"
	"html"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/microcosm-cc/bluemonday"
)

// SanitizeJSON strips markup from every top-level string field of a JSON
// request body.
func SanitizeJSON() echo.MiddlewareFunc {
	policy := bluemonday.StrictPolicy()

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if req.Method != http.MethodPost &&
				req.Method != http.MethodPut &&
				req.Method != http.MethodPatch {
				return next(c)
			}

			buf, err := io.ReadAll(req.Body)
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
			}
			if len(bytes.TrimSpace(buf)) == 0 {
				req.Body = io.NopCloser(bytes.NewReader(buf))
				return next(c)
			}

			var body map[string]interface{}
			dec := json.NewDecoder(bytes.NewReader(buf))
			dec.UseNumber()
			if err := dec.Decode(&body); err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "malformed JSON")
			}

			for k, v := range body {
				if str, ok := v.(string); ok {
					body[k] = stripMarkup(policy, str)
				}
			}

			newBody, err := json.Marshal(body)
			if err != nil {
				return err
			}
			req.Body = io.NopCloser(bytes.NewReader(newBody))
			req.ContentLength = int64(len(newBody))

			return next(c)
		}
	}
}

// stripMarkup removes tags but keeps plain text as typed: the policy escapes
// entities ("A&B" becomes "A&amp;B"), so its output is unescaped again. Text
// that unescapes into new markup goes through another round.
func stripMarkup(policy *bluemonday.Policy, s string) string {
	for i := 0; i < 4; i++ {
		out := html.UnescapeString(policy.Sanitize(s))
		if out == s {
			break
		}
		s = out
	}
	return s
}
