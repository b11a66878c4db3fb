// Package callbacks encodes and decodes inline button data.
package callbacks

import (
	"errors"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"
)

// ChoiceSep separates category and value in raw button data.
const ChoiceSep = ":"

// ErrMalformed reports callback data that is not "<category>:<value>".
var ErrMalformed = errors.New("callbacks: malformed payload")

// Choice is a button press carrying a category and a value.
type Choice struct {
	Category string
	Value    string
}

// EncodeChoice renders the wire form of a choice.
func EncodeChoice(category, value string) string {
	return category + ChoiceSep + value
}

// ParseChoice parses "<category>:<value>". Both parts must be non-empty.
func ParseChoice(data string) (Choice, error) {
	category, value, ok := strings.Cut(data, ChoiceSep)
	category = strings.TrimSpace(category)
	value = strings.TrimSpace(value)
	if !ok || category == "" || value == "" {
		return Choice{}, ErrMalformed
	}
	return Choice{Category: category, Value: value}, nil
}

// Int64 parses the value as a decimal integer.
func (ch Choice) Int64() (int64, error) {
	return strconv.ParseInt(ch.Value, 10, 64)
}

// ParseCallbackData returns the routing key and payload of a callback. Buttons
// made with a telebot unique arrive as "\f<unique>|<payload>", raw ones as a
// Choice. Anything else is all key.
func ParseCallbackData(cb *tele.Callback) (key, payload string) {
	if cb == nil {
		return "", ""
	}
	if rest, ok := strings.CutPrefix(cb.Data, "\f"); ok {
		key, payload, _ = strings.Cut(rest, "|")
		return strings.TrimSpace(key), payload
	}
	raw := strings.TrimSpace(cb.Data)
	if ch, err := ParseChoice(raw); err == nil {
		return ch.Category, ch.Value
	}
	return raw, ""
}
