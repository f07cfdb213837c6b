package httputil

import (
	"fmt"
	"net/http"
	"strconv"
)

// QueryBool reads a boolean query parameter. An absent parameter yields
// defaultValue; a malformed one is an error.
func QueryBool(r *http.Request, name string, defaultValue bool) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s must be true or false", name)
	}
	return v, nil
}
