package core

// Logger is any service that can log messages & errors.
// Extra args can be errors, maps of extra data or the user.User the log relates to.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
