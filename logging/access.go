package logging

import (
	"fmt"
	"net"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	dateFormat      = "02/Jan/2006:15:04:05 -0700"
	commonLogFormat = `%s - - [%s] "%s %s %s" %d %d`
	// format:
	// remote_host - - [date] "method uri protocol" status response_size "referer" "user_agent"
	combinedLogFormat = commonLogFormat + ` "%s" "%s"`
	// We add the duration in ms, the requested host and the request id
	accessLogFormat = combinedLogFormat + " %d %s %s\n"
)

type accessLogFormatter struct {
	format string
}

// AccessEntry contains the data of an access log entry.
type AccessEntry struct {
	Method        string
	URI           string
	Proto         string
	RequestedHost string
	RemoteAddr    string
	Referer       string
	UserAgent     string

	// The X-Forwarded-For header, preferred over RemoteAddr when
	// set.
	ForwardedFor string

	// The status code of the response.
	StatusCode int

	// The size of the response in bytes.
	ResponseSize int64

	// The time spent processing the request.
	Duration time.Duration

	// The time that the request was received.
	RequestTime time.Time

	// The id of the session context of the request.
	RequestID string
}

var accessLog *logrus.Logger

// strip port from addresses with hostname, ipv4 or ipv6
func stripPort(address string) string {
	if h, _, err := net.SplitHostPort(address); err == nil {
		return h
	}

	return address
}

func remoteHost(e *AccessEntry) string {
	a := e.ForwardedFor
	if a == "" {
		a = e.RemoteAddr
	}

	if h := stripPort(a); h != "" {
		return h
	}

	return "-"
}

func dash(s string) string {
	if s == "" {
		return "-"
	}

	return s
}

func (f *accessLogFormatter) Format(e *logrus.Entry) ([]byte, error) {
	keys := []string{
		"host", "timestamp", "method", "uri", "proto",
		"status", "response-size", "referer", "user-agent",
		"duration", "requested-host", "request-id"}

	values := make([]interface{}, len(keys))
	for i, key := range keys {
		values[i] = e.Data[key]
	}

	return []byte(fmt.Sprintf(f.format, values...)), nil
}

// LogAccess logs an access event in Apache combined log format, extended
// with the duration, the requested host and the request id.
func LogAccess(entry *AccessEntry) {
	if accessLog == nil || entry == nil {
		return
	}

	accessLog.WithFields(logrus.Fields{
		"timestamp":      entry.RequestTime.Format(dateFormat),
		"host":           remoteHost(entry),
		"method":         entry.Method,
		"uri":            entry.URI,
		"proto":          entry.Proto,
		"referer":        entry.Referer,
		"user-agent":     entry.UserAgent,
		"status":         entry.StatusCode,
		"response-size":  entry.ResponseSize,
		"requested-host": dash(entry.RequestedHost),
		"duration":       int64(entry.Duration / time.Millisecond),
		"request-id":     dash(entry.RequestID),
	}).Infoln()
}
