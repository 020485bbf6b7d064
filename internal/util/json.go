package util

import "encoding/json"

// ConvertStructToJson marshals v to a JSON string, returning "{}" on failure.
// Used for queue payloads and audit messages where a marshal error should
// degrade to an empty object rather than abort the operation.
func ConvertStructToJson(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(data)
}
