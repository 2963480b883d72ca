package models

import (
	"fmt"
	"strings"
)

// LocatorStrategy selects how a Locator value is interpreted
type LocatorStrategy string

const (
	ByID        LocatorStrategy = "id"
	ByAttribute LocatorStrategy = "attr"
	ByCSS       LocatorStrategy = "css"
)

// Locator is a query resolved against the active browsing context.
// The same locator may match in one context and not in another.
type Locator struct {
	By    LocatorStrategy `json:"by" toml:"by"`
	Value string          `json:"value" toml:"value"`
}

// ID returns a locator matching the element with the given id
func ID(id string) Locator {
	return Locator{By: ByID, Value: id}
}

// Attr returns a locator matching elements whose attribute name equals value
func Attr(name, value string) Locator {
	return Locator{By: ByAttribute, Value: name + "=" + value}
}

// CSS returns a locator for a CSS selector
func CSS(selector string) Locator {
	return Locator{By: ByCSS, Value: selector}
}

// ParseLocator accepts "id:x", "attr:name=value", "css:selector" or a bare CSS selector
func ParseLocator(raw string) (Locator, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Locator{}, fmt.Errorf("empty locator")
	}

	prefix, rest, found := strings.Cut(raw, ":")
	if found {
		switch LocatorStrategy(prefix) {
		case ByID:
			if rest == "" {
				return Locator{}, fmt.Errorf("locator %q: empty id", raw)
			}
			return ID(rest), nil
		case ByAttribute:
			name, value, ok := strings.Cut(rest, "=")
			if !ok || name == "" {
				return Locator{}, fmt.Errorf("locator %q: expected attr:name=value", raw)
			}
			return Attr(name, value), nil
		case ByCSS:
			if rest == "" {
				return Locator{}, fmt.Errorf("locator %q: empty selector", raw)
			}
			return CSS(rest), nil
		}
	}

	// Pseudo-classes like "input:enabled" land here too
	return CSS(raw), nil
}

// Selector renders the locator as a CSS selector understood by every provider
func (l Locator) Selector() string {
	switch l.By {
	case ByID:
		return "[id=" + cssString(l.Value) + "]"
	case ByAttribute:
		name, value, _ := strings.Cut(l.Value, "=")
		return "[" + name + "=" + cssString(value) + "]"
	default:
		return l.Value
	}
}

// String returns the parseable form of the locator
func (l Locator) String() string {
	if l.By == "" {
		return l.Value
	}
	return string(l.By) + ":" + l.Value
}

// cssString quotes v as a CSS string: quote and backslash are backslash-escaped,
// control characters become hex escapes terminated by a space
func cssString(v string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range v {
		switch {
		case r == '"' || r == '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		case r < 0x20 || r == 0x7f:
			fmt.Fprintf(&b, "\\%x ", r)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}
