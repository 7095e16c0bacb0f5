package supernode

import "encoding/json"

// structToMap round-trips msg through JSON to produce a plain map, so it
// can be merged with the challenge-auth fields before being re-encoded as
// the final request body. Panics only on inputs that cannot marshal to
// JSON at all, which would indicate a caller bug in a protocol struct.
func structToMap(msg interface{}) map[string]interface{} {
	raw, err := json.Marshal(msg)
	if err != nil {
		panic("supernode: message does not marshal to JSON: " + err.Error())
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		panic("supernode: marshaled message is not a JSON object: " + err.Error())
	}
	return m
}
