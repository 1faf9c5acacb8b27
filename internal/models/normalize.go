package models

// EnvelopeListKeys are the mapping keys that may hold the message list, in priority order.
var EnvelopeListKeys = []string{"messages", "data", "results", "items"}

// SingleMessageKeys mark a mapping that is itself one message.
var SingleMessageKeys = []string{"from", "to", "message", "text", "body", "timestamp", "created_at"}

// Normalize extracts a flat list of records from whatever shape the gateway
// returned. Unrecognized shapes yield an empty list, never an error.
func Normalize(payload any) []Record {
	if list, ok := asList(payload); ok {
		return filterRecords(list)
	}

	m, ok := asMap(payload)
	if !ok {
		return []Record{}
	}
	for _, key := range EnvelopeListKeys {
		if list, ok := asList(m[key]); ok {
			return filterRecords(list)
		}
	}
	for _, key := range SingleMessageKeys {
		if _, present := m[key]; present {
			return []Record{m}
		}
	}
	return []Record{}
}

func filterRecords(list []any) []Record {
	records := make([]Record, 0, len(list))
	for _, item := range list {
		if m, ok := asMap(item); ok {
			records = append(records, m)
		}
	}
	return records
}

func asList(v any) ([]any, bool) {
	switch list := v.(type) {
	case []any:
		return list, true
	case []Record:
		out := make([]any, len(list))
		for i, r := range list {
			out[i] = r
		}
		return out, true
	case []map[string]any:
		out := make([]any, len(list))
		for i, m := range list {
			out[i] = m
		}
		return out, true
	}
	return nil, false
}

func asMap(v any) (Record, bool) {
	switch m := v.(type) {
	case Record:
		return m, m != nil
	case map[string]any:
		return Record(m), m != nil
	}
	return nil, false
}
