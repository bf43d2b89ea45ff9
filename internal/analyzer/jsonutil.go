package analyzer

import "encoding/json"

func jsonUnmarshal(raw string, out *any) error {
	return json.Unmarshal([]byte(raw), out)
}
