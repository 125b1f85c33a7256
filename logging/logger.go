package logging

import "github.com/sirupsen/logrus"

// Logger instances provide custom logging.
type Logger interface {

	// Log with level ERROR
	Error(...interface{})

	// Log formatted messages with level ERROR
	Errorf(string, ...interface{})

	// Log with level WARN
	Warn(...interface{})

	// Log formatted messages with level WARN
	Warnf(string, ...interface{})

	// Log with level INFO
	Info(...interface{})

	// Log formatted messages with level INFO
	Infof(string, ...interface{})

	// Log with level DEBUG
	Debug(...interface{})

	// Log formatted messages with level DEBUG
	Debugf(string, ...interface{})
}

// DefaultLog provides a default implementation of the Logger interface,
// writing to the logrus standard logger. The zero value is ready to
// use.
type DefaultLog struct {
	entry *logrus.Entry
}

var _ Logger = &DefaultLog{}

func (dl *DefaultLog) log() *logrus.Entry {
	if dl.entry == nil {
		return logrus.NewEntry(logrus.StandardLogger())
	}

	return dl.entry
}

// WithFields returns a logger that adds the fields to every entry.
func (dl *DefaultLog) WithFields(fields map[string]interface{}) *DefaultLog {
	return &DefaultLog{entry: dl.log().WithFields(fields)}
}

func (dl *DefaultLog) Error(a ...interface{})            { dl.log().Error(a...) }
func (dl *DefaultLog) Errorf(f string, a ...interface{}) { dl.log().Errorf(f, a...) }
func (dl *DefaultLog) Warn(a ...interface{})             { dl.log().Warn(a...) }
func (dl *DefaultLog) Warnf(f string, a ...interface{})  { dl.log().Warnf(f, a...) }
func (dl *DefaultLog) Info(a ...interface{})             { dl.log().Info(a...) }
func (dl *DefaultLog) Infof(f string, a ...interface{})  { dl.log().Infof(f, a...) }
func (dl *DefaultLog) Debug(a ...interface{})            { dl.log().Debug(a...) }
func (dl *DefaultLog) Debugf(f string, a ...interface{}) { dl.log().Debugf(f, a...) }
