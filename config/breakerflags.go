package config

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/edgezuul/zuul/circuit"
)

const breakerUsage = `set global or host specific circuit breakers, e.g. -breaker type=rate,host=www.example.org,window=300,failures=30
	possible breaker properties:
	type: consecutive/rate/disabled (defaults to consecutive)
	host: a host name that overrides the global for a host
	window: the size of the sliding window for the rate breaker
	failures: the number of failures for consecutive or rate breakers
	timeout: duration string or milliseconds while the breaker stays open
	half-open-requests: the number of requests in half open state to succeed before getting closed again
	idle-ttl: duration string or milliseconds after the breaker is considered idle and reset
	(see also: https://pkg.go.dev/github.com/edgezuul/zuul/circuit)`

type breakerFlags []circuit.Settings

var errInvalidBreakerConfig = errors.New("invalid breaker config (allowed values are: consecutive, rate or disabled)")

func (b breakerFlags) String() string {
	s := make([]string, len(b))
	for i, bi := range b {
		s[i] = bi.String()
	}

	return strings.Join(s, "\n")
}

func parseDurationOrMillis(v string) (time.Duration, error) {
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}

	return time.ParseDuration(v)
}

func (b *breakerFlags) Set(value string) error {
	var s circuit.Settings

	vs := strings.Split(value, ",")
	for _, vi := range vs {
		k, v, found := strings.Cut(vi, "=")
		if !found {
			return errInvalidBreakerConfig
		}

		switch k {
		case "type":
			t, err := circuit.ParseType(v)
			if err != nil || t == circuit.TypeNone {
				return errInvalidBreakerConfig
			}

			s.Type = t
		case "host":
			s.Host = v
		case "window":
			i, err := strconv.Atoi(v)
			if err != nil {
				return err
			}

			s.Window = i
		case "failures":
			i, err := strconv.Atoi(v)
			if err != nil {
				return err
			}

			s.Failures = i
		case "timeout":
			d, err := parseDurationOrMillis(v)
			if err != nil {
				return err
			}

			s.Timeout = d
		case "half-open-requests":
			i, err := strconv.Atoi(v)
			if err != nil {
				return err
			}

			s.HalfOpenRequests = i
		case "idle-ttl":
			d, err := parseDurationOrMillis(v)
			if err != nil {
				return err
			}

			s.IdleTTL = d
		default:
			return errInvalidBreakerConfig
		}
	}

	if s.Type == circuit.TypeNone {
		s.Type = circuit.ConsecutiveFailures
	}

	*b = append(*b, s)
	return nil
}

func (b *breakerFlags) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var settings []circuit.Settings
	if err := unmarshal(&settings); err != nil {
		return err
	}

	*b = append(*b, settings...)
	return nil
}
