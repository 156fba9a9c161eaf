package authz

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/shiftdesk/shiftdesk/internal/platform/httpx"
)

// Default parameter names used by the guards.
const (
	DefaultVenueParam = "venueId"
	DefaultUserParam  = "userId"
)

const maxLookupBody = 1 << 20

// LookupParam finds an integer identifier named name on the request. Sources
// are consulted in order: route path parameters, query string, body. The body
// is restored after reading so handlers can decode it again.
//
// It returns ok=false when no source carries the name. A value that is present
// but not an integer is reported as httpx.ErrValidation.
func LookupParam(r *http.Request, name string) (int64, bool, error) {
	if raw := chi.URLParam(r, name); raw != "" {
		return parseID(name, raw)
	}
	if values := r.URL.Query(); values.Has(name) {
		return parseID(name, values.Get(name))
	}
	raw, ok, err := bodyValue(r, name)
	if err != nil || !ok {
		return 0, false, err
	}
	return parseID(name, raw)
}

func parseID(name, raw string) (int64, bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("%w: %s must be an integer", httpx.ErrValidation, name)
	}
	return id, true, nil
}

func bodyValue(r *http.Request, name string) (string, bool, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return "", false, nil
	}
	data, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, maxLookupBody))
	_ = r.Body.Close()
	if err != nil {
		r.Body = http.NoBody
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return "", false, fmt.Errorf("%w: limit is %d bytes", httpx.ErrTooLarge, maxLookupBody)
		}
		return "", false, fmt.Errorf("read body: %w", err)
	}
	r.Body = io.NopCloser(bytes.NewReader(data))
	if len(bytes.TrimSpace(data)) == 0 {
		return "", false, nil
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded":
		values, err := url.ParseQuery(string(data))
		if err != nil || !values.Has(name) {
			return "", false, nil
		}
		return values.Get(name), true, nil
	default:
		return jsonValue(data, name)
	}
}

func jsonValue(data []byte, name string) (string, bool, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		// Not a JSON object: nothing to extract. The handler reports malformed bodies.
		return "", false, nil
	}
	v, ok := fields[name]
	if !ok || v == nil {
		return "", false, nil
	}
	switch val := v.(type) {
	case json.Number:
		return val.String(), true, nil
	case string:
		return val, true, nil
	default:
		return "", false, fmt.Errorf("%w: %s must be an integer", httpx.ErrValidation, name)
	}
}
