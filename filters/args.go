package filters

import (
	"fmt"
	"strings"
	"time"
)

func StringArg(x interface{}) (string, error) {
	if s, ok := x.(string); ok {
		return s, nil
	}
	return "", fmt.Errorf("%v is not a string", x)
}

// Float64Arg accepts the number types produced by the YAML decoder.
func Float64Arg(x interface{}) (float64, error) {
	switch f := x.(type) {
	case float64:
		return f, nil
	case int:
		return float64(f), nil
	case int64:
		return float64(f), nil
	}
	return 0, fmt.Errorf("%v is not a number", x)
}

func IntArg(x interface{}) (int, error) {
	switch i := x.(type) {
	case int:
		return i, nil
	case int64:
		return int(i), nil
	case float64:
		ii := int(i)
		if float64(ii) == i {
			return ii, nil
		}
	}
	return 0, fmt.Errorf("%v is not an integer", x)
}

// DurationArg accepts time.Duration values and strings parsed with
// time.ParseDuration. Negative durations are rejected.
func DurationArg(x interface{}) (time.Duration, error) {
	var d time.Duration
	switch t := x.(type) {
	case time.Duration:
		d = t
	case string:
		var err error
		d, err = time.ParseDuration(t)
		if err != nil {
			return 0, err
		}
	default:
		return 0, fmt.Errorf("%v is not a duration", x)
	}
	if d < 0 {
		return 0, fmt.Errorf("duration %v is negative", x)
	}
	return d, nil
}

// FilterArgs provides sequential access to filter arguments. Every
// call of a non-optional accessor increases the expected argument
// count. Err reports a mismatch between the expected and the actual
// number of arguments, and the conversion errors.
//
// Example usage:
//
//	a := Args(args)
//	key, value := a.String(), a.String()
//	if err := a.Err(); err != nil {
//		return nil, err
//	}
type FilterArgs struct {
	args []interface{}
	pos  int
	errs []string
}

func Args(args []interface{}) *FilterArgs {
	return &FilterArgs{args: args}
}

func (a *FilterArgs) String() (s string) {
	if x, ok := a.next(); ok {
		var err error
		if s, err = StringArg(x); err != nil {
			a.error(err)
		}
	}
	return
}

func (a *FilterArgs) OptionalString(defaultValue string) string {
	if a.pos >= len(a.args) {
		return defaultValue
	}
	return a.String()
}

func (a *FilterArgs) Float64() (f float64) {
	if x, ok := a.next(); ok {
		var err error
		if f, err = Float64Arg(x); err != nil {
			a.error(err)
		}
	}
	return
}

func (a *FilterArgs) Int() (i int) {
	if x, ok := a.next(); ok {
		var err error
		if i, err = IntArg(x); err != nil {
			a.error(err)
		}
	}
	return
}

func (a *FilterArgs) OptionalInt(defaultValue int) int {
	if a.pos >= len(a.args) {
		return defaultValue
	}
	return a.Int()
}

func (a *FilterArgs) OptionalDuration(defaultValue time.Duration) time.Duration {
	if a.pos >= len(a.args) {
		return defaultValue
	}

	x, _ := a.next()
	d, err := DurationArg(x)
	if err != nil {
		a.error(err)
	}
	return d
}

// Err returns an error wrapping ErrInvalidFilterParameters, or nil.
func (a *FilterArgs) Err() error {
	errs := a.errs
	if a.pos != len(a.args) {
		if a.pos == 1 {
			errs = append([]string{"expects 1 argument"}, errs...)
		} else {
			errs = append([]string{fmt.Sprintf("expects %d arguments", a.pos)}, errs...)
		}
	}

	if len(errs) == 0 {
		return nil
	}

	return fmt.Errorf("%w: %s", ErrInvalidFilterParameters, strings.Join(errs, ", "))
}

func (a *FilterArgs) next() (x interface{}, ok bool) {
	if a.pos < len(a.args) {
		x, ok = a.args[a.pos], true
	}
	a.pos++
	return
}

func (a *FilterArgs) error(err error) {
	a.errs = append(a.errs, err.Error())
}
