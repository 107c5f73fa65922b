package transport

import "encoding/json"

const censored = "$censored"

var sensitiveFields = []string{"password", "current_password", "new_password", "token"}

// censorBody masks secrets in a JSON request body before it is logged.
// Bodies that are not JSON objects are returned untouched.
func censorBody(body []byte) []byte {
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return body
	}

	changed := false
	for _, name := range sensitiveFields {
		if _, ok := fields[name]; ok {
			fields[name] = json.RawMessage(`"` + censored + `"`)
			changed = true
		}
	}
	if !changed {
		return body
	}

	out, err := json.Marshal(fields)
	if err != nil {
		return body
	}
	return out
}
