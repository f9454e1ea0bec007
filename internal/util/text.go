package util

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// NormalizeKey is the join key form of a company name.
func NormalizeKey(input string) string {
	return strings.ToUpper(strings.TrimSpace(input))
}

// TitleWords capitalizes each whitespace-separated word and lowercases the
// rest of it, then joins the words with single spaces.
func TitleWords(input string) string {
	words := strings.Fields(input)
	for i, w := range words {
		words[i] = capitalize(w)
	}
	return strings.Join(words, " ")
}

func capitalize(word string) string {
	r, size := utf8.DecodeRuneInString(word)
	if r == utf8.RuneError && size <= 1 {
		return strings.ToLower(word)
	}
	return string(unicode.ToTitle(r)) + strings.ToLower(word[size:])
}

// StringValue renders a decoded JSON value as text. ok is false for absent or
// null values.
func StringValue(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case bool:
		return strconv.FormatBool(t), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	default:
		blob, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t), true
		}
		return string(blob), true
	}
}

func StringPtr(v string) *string { return &v }

func Int64Ptr(v int64) *int64 { return &v }

func Deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
