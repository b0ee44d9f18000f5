package sandbox

import "encoding/json"

func decodeJSON(raw string, out any) error {
	return json.Unmarshal([]byte(raw), out)
}

func encodeJSON(v any) ([]byte, error) {
	return json.Marshal(v)
}
