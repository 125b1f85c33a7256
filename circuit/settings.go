package circuit

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Type defines the type of the used breaker: consecutive, rate or
// disabled.
type Type int

const (
	TypeNone Type = iota
	ConsecutiveFailures
	FailureRate
	Disabled
)

// ParseType accepts the values: consecutive, rate, disabled and the
// empty string.
func ParseType(s string) (Type, error) {
	switch s {
	case "":
		return TypeNone, nil
	case "consecutive":
		return ConsecutiveFailures, nil
	case "rate":
		return FailureRate, nil
	case "disabled":
		return Disabled, nil
	default:
		return TypeNone, fmt.Errorf("invalid breaker type %v (allowed values are: consecutive, rate or disabled)", s)
	}
}

func (t Type) String() string {
	switch t {
	case ConsecutiveFailures:
		return "consecutive"
	case FailureRate:
		return "rate"
	case Disabled:
		return "disabled"
	default:
		return "none"
	}
}

func (t *Type) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var value string
	if err := unmarshal(&value); err != nil {
		return err
	}

	v, err := ParseType(value)
	if err != nil {
		return err
	}

	*t = v
	return nil
}

// Settings contains the settings of the breakers of a backend host.
// Settings with an empty host serve as the defaults.
//
// Failures is the number of consecutive failures for the consecutive
// breaker, and the number of failures within the last Window requests
// for the rate breaker. Timeout is how long an open breaker rejects
// the requests before letting HalfOpenRequests through to probe the
// backend. Breakers not used for IdleTTL are released.
type Settings struct {
	Type             Type          `yaml:"type"`
	Host             string        `yaml:"host"`
	Window           int           `yaml:"window"`
	Failures         int           `yaml:"failures"`
	Timeout          time.Duration `yaml:"timeout"`
	HalfOpenRequests int           `yaml:"half-open-requests"`
	IdleTTL          time.Duration `yaml:"idle-ttl"`
}

// merge fills the unset fields of s from the defaults
func (s Settings) merge(defaults Settings) Settings {
	if s.Type == TypeNone {
		s.Type = defaults.Type
		s.Window = defaults.Window
		s.Failures = defaults.Failures
	}

	if s.Timeout == 0 {
		s.Timeout = defaults.Timeout
	}

	if s.HalfOpenRequests == 0 {
		s.HalfOpenRequests = defaults.HalfOpenRequests
	}

	if s.IdleTTL == 0 {
		s.IdleTTL = defaults.IdleTTL
	}

	return s
}

func (s Settings) String() string {
	switch s.Type {
	case ConsecutiveFailures, FailureRate:
	default:
		return s.Type.String()
	}

	ss := []string{"type=" + s.Type.String()}
	if s.Host != "" {
		ss = append(ss, "host="+s.Host)
	}

	if s.Type == FailureRate && s.Window > 0 {
		ss = append(ss, "window="+strconv.Itoa(s.Window))
	}

	if s.Failures > 0 {
		ss = append(ss, "failures="+strconv.Itoa(s.Failures))
	}

	if s.Timeout > 0 {
		ss = append(ss, "timeout="+s.Timeout.String())
	}

	if s.HalfOpenRequests > 0 {
		ss = append(ss, "half-open-requests="+strconv.Itoa(s.HalfOpenRequests))
	}

	if s.IdleTTL > 0 {
		ss = append(ss, "idle-ttl="+s.IdleTTL.String())
	}

	return strings.Join(ss, ",")
}
