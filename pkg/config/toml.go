package config

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
)

type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	res, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}

	*d = Duration{res}
	return nil
}

// StringSlice is a toml extension that lets you to specify either a string
// value (a slice with just one element) or a string slice.
// Numbers are accepted too, so program ids may be written unquoted.
type StringSlice []string

func (s *StringSlice) UnmarshalTOML(v interface{}) error {
	switch value := v.(type) {
	case string:
		*s = []string{value}
		return nil
	case int64:
		*s = []string{fmt.Sprint(value)}
		return nil
	case []interface{}:
		out := make([]string, 0, len(value))
		for _, item := range value {
			switch item := item.(type) {
			case string:
				out = append(out, item)
			case int64:
				out = append(out, fmt.Sprint(item))
			default:
				return errors.Errorf("unexpected %T in string slice", item)
			}
		}
		*s = out
		return nil
	}

	return errors.New("failed to decode string slice field")
}
