package diskvideo

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// ErrorLine is added to the status line number to mark the message as an error.
const ErrorLine = 100

// Reporter receives progress messages of the session.
type Reporter interface {
	Status(line int, msg string)
}

// ReporterFunc adapts function to Reporter.
type ReporterFunc func(line int, msg string)

// Status calls f.
func (f ReporterFunc) Status(line int, msg string) {
	f(line, msg)
}

// NopReporter discards all the messages.
var NopReporter = ReporterFunc(func(int, string) {})

// NewLogReporter returns reporter writing messages to the logger.
func NewLogReporter(log *logrus.Logger) Reporter {
	return ReporterFunc(func(line int, msg string) {
		msg = strings.TrimSpace(msg)
		if msg == "" {
			return
		}
		if line >= ErrorLine {
			log.WithField("line", line-ErrorLine).Error(msg)
			return
		}
		log.WithField("line", line).Debug(msg)
	})
}

// progress reports the row being accessed, but not more often than once per interval.
func (s *Session) progress(verb string, y int64) {
	now := s.now()
	if now.Sub(s.lastStatus) < s.interval {
		return
	}
	s.lastStatus = now

	if s.mode == ModePotential && y >= s.height {
		y -= s.height
	}
	s.reporter.Status(0, fmt.Sprintf(" %s line %4d", verb, y))
}
