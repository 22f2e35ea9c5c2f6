package event

// Raw event-type sniffing. Each connector family nests its native type
// string differently; we probe the known shapes in order and stop at
// the first hit. Absence is not an error, the column is just left empty.

type rawTypeProbe struct {
	name    string
	extract func(raw map[string]interface{}) (string, bool)
}

func stringField(raw map[string]interface{}, key string) (string, bool) {
	v, ok := raw[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

var rawTypeProbes = []rawTypeProbe{
	// YoLink MQTT: {"event": "DoorSensor.Alert", ...}
	{"yolink", func(raw map[string]interface{}) (string, bool) {
		return stringField(raw, "event")
	}},
	// Piko analytics: {"eventParams": {"eventType": "analyticsSdkObjectDetected", ...}}
	{"piko", func(raw map[string]interface{}) (string, bool) {
		params, ok := raw["eventParams"].(map[string]interface{})
		if !ok {
			return "", false
		}
		return stringField(params, "eventType")
	}},
	// NetBox activity log: {"activityid": "...", "descname": "Access Denied", ...}
	{"netbox", func(raw map[string]interface{}) (string, bool) {
		if _, ok := raw["activityid"]; !ok {
			return "", false
		}
		return stringField(raw, "descname")
	}},
	// Genea webhook: {"action": "door.forced_open", ...} or {"event_type": ...}
	{"genea", func(raw map[string]interface{}) (string, bool) {
		if s, ok := stringField(raw, "action"); ok {
			return s, true
		}
		return stringField(raw, "event_type")
	}},
	// Generic fallback shape some drivers use.
	{"generic", func(raw map[string]interface{}) (string, bool) {
		return stringField(raw, "eventType")
	}},
}

// DeriveRawType extracts the vendor-native event type string from an
// opaque raw payload. Returns "" when no known shape matches.
func DeriveRawType(raw map[string]interface{}) string {
	if raw == nil {
		return ""
	}
	for _, p := range rawTypeProbes {
		if s, ok := p.extract(raw); ok {
			return s
		}
	}
	return ""
}
