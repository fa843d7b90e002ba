package logger

import (
	"net/http"
	"strings"
)

// maskRules maps a lower-cased field or header name fragment to its masker.
// The first matching fragment wins, so more specific names come first.
var maskRules = []struct {
	fragment string
	mask     func(string) string
}{
	{"authorization", MaskAuthorization},
	{"operator_token", maskLast4},
	{"national_id", MaskIdentifier},
	{"email", MaskEmail},
	{"phone", MaskPhone},
	{"password", maskLast4},
	{"secret", maskLast4},
	{"token", maskLast4},
	{"api_key", maskLast4},
}

// MaskAuthorization masks bearer tokens, preserving the scheme.
func MaskAuthorization(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	scheme, credential, ok := strings.Cut(value, " ")
	if ok && strings.EqualFold(scheme, "Bearer") {
		return "Bearer " + maskLast4(credential)
	}
	return maskLast4(value)
}

// MaskIdentifier keeps only the last 4 characters of a personal identifier.
func MaskIdentifier(value string) string {
	return maskLast4(value)
}

// MaskEmail keeps the first character of the local part and the domain.
func MaskEmail(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	at := strings.LastIndex(value, "@")
	if at <= 0 {
		return maskLast4(value)
	}
	return value[:1] + "***" + value[at:]
}

// MaskPhone keeps a leading "+" and the last 4 digits.
func MaskPhone(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, value)
	masked := maskLast4(digits)
	if strings.HasPrefix(value, "+") {
		return "+" + masked
	}
	return masked
}

// MaskHeaders flattens headers and masks credentials.
func MaskHeaders(headers http.Header) map[string]string {
	masked := make(map[string]string, len(headers))
	for key, values := range headers {
		joined := strings.Join(values, ",")
		if mask := maskerFor(strings.ReplaceAll(key, "-", "_")); mask != nil {
			joined = mask(joined)
		}
		masked[key] = joined
	}
	return masked
}

// MaskJSON returns a deep copy of input with PII and credentials masked.
func MaskJSON(input map[string]any) map[string]any {
	if input == nil {
		return nil
	}
	out := make(map[string]any, len(input))
	for key, value := range input {
		if mask := maskerFor(key); mask != nil {
			out[key] = maskValue(value, mask)
			continue
		}
		out[key] = maskNested(value)
	}
	return out
}

func maskNested(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return MaskJSON(typed)
	case []any:
		items := make([]any, len(typed))
		for i, entry := range typed {
			items[i] = maskNested(entry)
		}
		return items
	default:
		return value
	}
}

func maskValue(value any, mask func(string) string) any {
	switch typed := value.(type) {
	case string:
		return mask(typed)
	case []byte:
		return mask(string(typed))
	case nil:
		return nil
	default:
		return "****"
	}
}

func maskerFor(key string) func(string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	for _, rule := range maskRules {
		if strings.Contains(key, rule.fragment) {
			return rule.mask
		}
	}
	return nil
}

func maskLast4(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if len(value) <= 4 {
		return "****" + value
	}
	return "****" + value[len(value)-4:]
}
