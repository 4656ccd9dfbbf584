package log

import (
	"strings"

	"github.com/sirupsen/logrus"
)

// BadgerLogrusAdapter bridges badger.Logger onto a logrus entry. Badger
// terminates its messages with newlines; those are stripped so the entries
// format like the rest of the log stream.
type BadgerLogrusAdapter struct {
	entry *logrus.Entry
}

// NewBadgerLogrusAdapter creates a new adapter
func NewBadgerLogrusAdapter(entry *logrus.Entry) *BadgerLogrusAdapter {
	return &BadgerLogrusAdapter{entry: entry}
}

func (l *BadgerLogrusAdapter) Errorf(f string, v ...interface{}) {
	l.entry.Errorf(strings.TrimRight(f, "\n"), v...)
}

func (l *BadgerLogrusAdapter) Warningf(f string, v ...interface{}) {
	l.entry.Warningf(strings.TrimRight(f, "\n"), v...)
}

func (l *BadgerLogrusAdapter) Infof(f string, v ...interface{}) {
	l.entry.Infof(strings.TrimRight(f, "\n"), v...)
}

func (l *BadgerLogrusAdapter) Debugf(f string, v ...interface{}) {
	l.entry.Debugf(strings.TrimRight(f, "\n"), v...)
}
