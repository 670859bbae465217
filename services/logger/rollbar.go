package logsvc

import (
	"log"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/user"
)

// RollbarLogger reports to Rollbar (when enabled) and prints to std.
type RollbarLogger struct {
	std *log.Logger
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	rollbar.SetEnabled(conf.RollbarToken != "" && !conf.TestMode)
	return &RollbarLogger{std: std}
}

func (l *RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// Close waits for the pending reports to be sent.
func (l *RollbarLogger) Close() {
	rollbar.Close()
}

// prepare turns args into rollbar args: the first error, a map of extras & the message.
// A user.User (or *user.User) arg is reported as the person & its role added to the extras.
func (l *RollbarLogger) prepare(msg string, args []interface{}) []interface{} {
	var person *user.User
	extras := make(map[string]interface{})
	rArgs := make([]interface{}, 0, len(args)+2)
	rArgs = append(rArgs, msg)
	for _, arg := range args {
		switch a := arg.(type) {
		case user.User:
			if person == nil { // only set one User
				person = &a
			}
		case *user.User:
			if person == nil && a != nil {
				person = a
			}
		case map[string]interface{}:
			for k, v := range a {
				extras[k] = v
			}
		default:
			rArgs = append(rArgs, arg)
		}
	}
	if person != nil {
		rollbar.SetPerson(person.ID, person.Username, person.Email)
		extras["role"] = person.Role
	} else {
		rollbar.ClearPerson()
	}
	if len(extras) > 0 {
		rArgs = append(rArgs, extras)
	}
	return rArgs
}

func (l *RollbarLogger) print(level, msg string, args []interface{}) {
	l.std.Println(level + ": " + msg)
	for _, arg := range args {
		if usr, ok := arg.(user.User); ok {
			l.std.Printf("user: %s (%s)\n", usr.ID, usr.Role)
			continue
		}
		l.std.Printf("%+v\n", arg)
	}
}

func (l *RollbarLogger) Debug(msg string, args ...interface{}) {
	rollbar.Debug(l.prepare(msg, args)...)
	l.print("DEBUG", msg, args)
}

func (l *RollbarLogger) Info(msg string, args ...interface{}) {
	rollbar.Info(l.prepare(msg, args)...)
	l.print("INFO", msg, args)
}

func (l *RollbarLogger) Warn(msg string, args ...interface{}) {
	rollbar.Warning(l.prepare(msg, args)...)
	l.print("WARN", msg, args)
}

func (l *RollbarLogger) Error(msg string, args ...interface{}) {
	rollbar.Error(l.prepare(msg, args)...)
	l.print("ERROR", msg, args)
}

func (l *RollbarLogger) Fatal(msg string, args ...interface{}) {
	rollbar.Critical(l.prepare(msg, args)...)
	l.print("FATAL", msg, args)
	rollbar.Close()
	l.std.Fatal(msg)
}
