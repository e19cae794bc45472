package types

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// AttrType tags the shape of an AttrValue.
type AttrType string

// Attribute value shapes
const (
	AttrString AttrType = "string"
	AttrTime   AttrType = "time"
	AttrTimes  AttrType = "times"
	AttrFloat  AttrType = "float"
	AttrBool   AttrType = "bool"
)

// Well-known attribute keys read by the correlation algorithms.
const (
	AttrKeyEmail         = "email"
	AttrKeyPhone         = "phone"
	AttrKeyIPAddress     = "ip_address"
	AttrKeyWebsite       = "website"
	AttrKeyBio           = "bio"
	AttrKeyLocation      = "location"
	AttrKeyDisplayName   = "display_name"
	AttrKeyCreatedDate   = "created_date"
	AttrKeyActivityTimes = "activity_times"
	AttrKeyPlatform      = "platform"
	AttrKeyProfileURL    = "profile_url"
)

// timeLayouts are the layouts accepted when a timestamp arrives as a string.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// AttrValue is a tagged union holding one attribute value. Exactly one of the
// payload fields is meaningful, selected by Type. The zero value is an empty
// string attribute.
type AttrValue struct {
	typ   AttrType
	str   string
	when  time.Time
	times []time.Time
	num   float64
	flag  bool
}

// StringValue wraps a string attribute.
func StringValue(s string) AttrValue { return AttrValue{typ: AttrString, str: s} }

// TimeValue wraps a timestamp attribute.
func TimeValue(t time.Time) AttrValue { return AttrValue{typ: AttrTime, when: t} }

// TimesValue wraps a list of timestamps. The slice is copied.
func TimesValue(ts []time.Time) AttrValue {
	return AttrValue{typ: AttrTimes, times: append([]time.Time(nil), ts...)}
}

// FloatValue wraps a numeric attribute.
func FloatValue(f float64) AttrValue { return AttrValue{typ: AttrFloat, num: f} }

// BoolValue wraps a boolean attribute.
func BoolValue(b bool) AttrValue { return AttrValue{typ: AttrBool, flag: b} }

// Type returns the shape tag of the value.
func (v AttrValue) Type() AttrType {
	if v.typ == "" {
		return AttrString
	}
	return v.typ
}

// AsString returns the string payload. Only string values match.
func (v AttrValue) AsString() (string, bool) {
	if v.Type() != AttrString {
		return "", false
	}
	return v.str, true
}

// AsTime returns the timestamp payload. String values that parse as a
// timestamp are accepted too, since probes frequently report dates as text.
func (v AttrValue) AsTime() (time.Time, bool) {
	switch v.Type() {
	case AttrTime:
		return v.when, !v.when.IsZero()
	case AttrString:
		return parseTime(v.str)
	}
	return time.Time{}, false
}

// AsTimes returns the timestamp list payload. A single timestamp is
// promoted to a one-element list.
func (v AttrValue) AsTimes() ([]time.Time, bool) {
	switch v.Type() {
	case AttrTimes:
		if len(v.times) == 0 {
			return nil, false
		}
		return append([]time.Time(nil), v.times...), true
	case AttrTime, AttrString:
		if t, ok := v.AsTime(); ok {
			return []time.Time{t}, true
		}
	}
	return nil, false
}

// AsFloat returns the numeric payload.
func (v AttrValue) AsFloat() (float64, bool) {
	if v.Type() != AttrFloat {
		return 0, false
	}
	return v.num, true
}

// AsBool returns the boolean payload.
func (v AttrValue) AsBool() (bool, bool) {
	if v.Type() != AttrBool {
		return false, false
	}
	return v.flag, true
}

// String renders the value for evidence strings and logs.
func (v AttrValue) String() string {
	switch v.Type() {
	case AttrTime:
		return v.when.UTC().Format(time.RFC3339)
	case AttrTimes:
		parts := make([]string, len(v.times))
		for i, t := range v.times {
			parts[i] = t.UTC().Format(time.RFC3339)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case AttrFloat:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case AttrBool:
		return strconv.FormatBool(v.flag)
	default:
		return v.str
	}
}

// Equal reports whether two values have the same shape and payload.
func (v AttrValue) Equal(other AttrValue) bool {
	if v.Type() != other.Type() {
		return false
	}
	switch v.Type() {
	case AttrTime:
		return v.when.Equal(other.when)
	case AttrTimes:
		if len(v.times) != len(other.times) {
			return false
		}
		for i := range v.times {
			if !v.times[i].Equal(other.times[i]) {
				return false
			}
		}
		return true
	case AttrFloat:
		return v.num == other.num
	case AttrBool:
		return v.flag == other.flag
	default:
		return v.str == other.str
	}
}

// attrWire is the persisted form of an AttrValue.
type attrWire struct {
	Type  AttrType        `json:"type"`
	Value json.RawMessage `json:"value"`
}

// MarshalJSON encodes the value as {"type": ..., "value": ...}.
func (v AttrValue) MarshalJSON() ([]byte, error) {
	var payload interface{}
	switch v.Type() {
	case AttrTime:
		payload = v.when
	case AttrTimes:
		payload = v.times
	case AttrFloat:
		payload = v.num
	case AttrBool:
		payload = v.flag
	default:
		payload = v.str
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(attrWire{Type: v.Type(), Value: raw})
}

// UnmarshalJSON decodes the tagged form. Unknown tags are rejected so that a
// corrupt document is never silently accepted.
func (v *AttrValue) UnmarshalJSON(data []byte) error {
	var wire attrWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("attribute: %w", err)
	}
	var out AttrValue
	out.typ = wire.Type
	var err error
	switch wire.Type {
	case AttrString:
		err = json.Unmarshal(wire.Value, &out.str)
	case AttrTime:
		err = json.Unmarshal(wire.Value, &out.when)
	case AttrTimes:
		err = json.Unmarshal(wire.Value, &out.times)
	case AttrFloat:
		err = json.Unmarshal(wire.Value, &out.num)
	case AttrBool:
		err = json.Unmarshal(wire.Value, &out.flag)
	default:
		return fmt.Errorf("attribute: unknown value type %q", wire.Type)
	}
	if err != nil {
		return fmt.Errorf("attribute %s: %w", wire.Type, err)
	}
	*v = out
	return nil
}

// ValueFromAny converts a loosely typed value (as decoded from JSON or YAML
// finding metadata) into an AttrValue. A list of strings becomes a times
// value when every item is a timestamp and a comma-joined string otherwise.
// Empty lists, mixed lists, maps and nil report false.
func ValueFromAny(raw interface{}) (AttrValue, bool) {
	switch val := raw.(type) {
	case nil:
		return AttrValue{}, false
	case AttrValue:
		return val, true
	case string:
		return StringValue(val), true
	case time.Time:
		return TimeValue(val), true
	case []time.Time:
		return TimesValue(val), true
	case bool:
		return BoolValue(val), true
	case float64:
		return FloatValue(val), true
	case float32:
		return FloatValue(float64(val)), true
	case int:
		return FloatValue(float64(val)), true
	case int64:
		return FloatValue(float64(val)), true
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return StringValue(val.String()), true
		}
		return FloatValue(f), true
	case []string:
		return stringList(val)
	case []interface{}:
		strs := make([]string, 0, len(val))
		var times []time.Time
		for _, item := range val {
			switch it := item.(type) {
			case string:
				strs = append(strs, it)
			case time.Time:
				times = append(times, it)
			default:
				return AttrValue{}, false
			}
		}
		if len(strs) == 0 {
			if len(times) == 0 {
				return AttrValue{}, false
			}
			return TimesValue(times), true
		}
		if len(times) > 0 {
			return AttrValue{}, false
		}
		return stringList(strs)
	}
	return AttrValue{}, false
}

// stringList keeps a textual list as timestamps when it is one, and as a
// joined string otherwise.
func stringList(strs []string) (AttrValue, bool) {
	if len(strs) == 0 {
		return AttrValue{}, false
	}
	if v, ok := timesFromStrings(strs); ok {
		return v, true
	}
	return StringValue(strings.Join(strs, ", ")), true
}

// timesFromStrings converts a list of textual timestamps. Lists that are not
// entirely timestamps are not representable and report false.
func timesFromStrings(strs []string) (AttrValue, bool) {
	times := make([]time.Time, 0, len(strs))
	for _, s := range strs {
		t, ok := parseTime(s)
		if !ok {
			return AttrValue{}, false
		}
		times = append(times, t)
	}
	if len(times) == 0 {
		return AttrValue{}, false
	}
	return TimesValue(times), true
}

func parseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Attributes maps attribute keys to typed values.
type Attributes map[string]AttrValue

// String returns the trimmed string attribute for key. Empty strings and
// non-string values report false.
func (a Attributes) String(key string) (string, bool) {
	v, ok := a[key]
	if !ok {
		return "", false
	}
	s, ok := v.AsString()
	s = strings.TrimSpace(s)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// Time returns the timestamp attribute for key.
func (a Attributes) Time(key string) (time.Time, bool) {
	v, ok := a[key]
	if !ok {
		return time.Time{}, false
	}
	return v.AsTime()
}

// Times returns the timestamp-list attribute for key.
func (a Attributes) Times(key string) ([]time.Time, bool) {
	v, ok := a[key]
	if !ok {
		return nil, false
	}
	return v.AsTimes()
}

// Keys returns the attribute keys in sorted order.
func (a Attributes) Keys() []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a shallow copy of the map. Values are immutable.
func (a Attributes) Clone() Attributes {
	if a == nil {
		return nil
	}
	out := make(Attributes, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}
