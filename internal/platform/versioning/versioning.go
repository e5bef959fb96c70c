// Package versioning maps record version ids onto HTTP ETag and If-Match
// headers for optimistic concurrency.
package versioning

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

// SetHeaders writes ETag and, when updatedAt is set, Last-Modified.
func SetHeaders(c echo.Context, versionID int64, updatedAt time.Time) {
	c.Response().Header().Set("ETag", FormatETag(versionID))
	if !updatedAt.IsZero() {
		c.Response().Header().Set("Last-Modified", updatedAt.UTC().Format(http.TimeFormat))
	}
}

// ExpectedVersion reads If-Match. It returns nil when the header is absent
// or "*", meaning the caller accepts whatever version is current.
func ExpectedVersion(c echo.Context) (*int64, error) {
	ifMatch := strings.TrimSpace(c.Request().Header.Get("If-Match"))
	if ifMatch == "" || ifMatch == "*" {
		return nil, nil
	}
	v, err := ParseETag(ifMatch)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid If-Match header: "+err.Error())
	}
	return &v, nil
}

// ParseETag accepts both weak (W/"3") and strong ("3") forms.
func ParseETag(etag string) (int64, error) {
	etag = strings.TrimSpace(etag)
	etag = strings.TrimPrefix(etag, "W/")
	etag = strings.Trim(etag, `"`)

	v, err := strconv.ParseInt(etag, 10, 64)
	if err != nil || v < 1 {
		return 0, fmt.Errorf("ETag must contain a positive numeric version: %s", etag)
	}
	return v, nil
}

func FormatETag(versionID int64) string {
	return fmt.Sprintf(`W/"%d"`, versionID)
}
