package config

import (
	"fmt"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Millis is a virtual-time amount in milliseconds. In YAML it is either an
// integer number of milliseconds or a Go duration string such as "1.5s".
type Millis int64

// Int64 returns m as a plain millisecond count.
func (m Millis) Int64() int64 {
	return int64(m)
}

// Duration returns m as a time.Duration.
func (m Millis) Duration() time.Duration {
	return time.Duration(m) * time.Millisecond
}

// UnmarshalYAML implements custom YAML unmarshaling for Millis.
func (m *Millis) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: milliseconds must be a scalar", node.Line)
	}
	if node.Value == "" {
		*m = 0
		return nil
	}
	if n, err := strconv.ParseInt(node.Value, 10, 64); err == nil {
		*m = Millis(n)
		return nil
	}
	dur, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: invalid milliseconds %q: want an integer or a duration", node.Line, node.Value)
	}
	*m = Millis(dur.Milliseconds())
	return nil
}

// MarshalYAML implements custom YAML marshaling for Millis.
func (m Millis) MarshalYAML() (interface{}, error) {
	return int64(m), nil
}
