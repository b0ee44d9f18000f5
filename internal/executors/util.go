package executors

import (
	"encoding/json"
	"fmt"
)

// jsonString renders v as compact JSON, or its %v form if marshaling fails.
func jsonString(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
