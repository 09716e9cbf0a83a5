package arweave

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// DecodeString decodes Arweave base64url text. Padding is tolerated.
func DecodeString(s string) (string, error) {
	b, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// EncodeString encodes s the way the gateway serves tags and data.
func EncodeString(s string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}

// NewTag builds a Tag from plain-text name and value.
func NewTag(name, value string) Tag {
	return Tag{Name: EncodeString(name), Value: EncodeString(value)}
}

// Decode returns the plain-text name and value of the tag.
func (t Tag) Decode() (name, value string, err error) {
	name, err = DecodeString(t.Name)
	if err != nil {
		return "", "", fmt.Errorf("decode tag name %q: %w", t.Name, err)
	}
	value, err = DecodeString(t.Value)
	if err != nil {
		return "", "", fmt.Errorf("decode tag %q value: %w", name, err)
	}
	return name, value, nil
}

// DecodeTags converts gateway tags into a name → value map.
// When a name occurs more than once the last value wins.
// The returned map is never nil.
func DecodeTags(tags []Tag) (map[string]string, error) {
	out := make(map[string]string, len(tags))
	for _, tag := range tags {
		name, value, err := tag.Decode()
		if err != nil {
			return nil, err
		}
		out[name] = value
	}
	return out, nil
}
