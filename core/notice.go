package core

type NoticeLevel string

const (
	NoticeInfo  NoticeLevel = "info"
	NoticeError NoticeLevel = "error"
)

// Notice is a short, user-visible message. Notices never carry internal
// error details; those go to the log.
type Notice struct {
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
}

// Notifier surfaces notices to whoever renders the session.
type Notifier interface {
	Notify(n Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(n Notice)

func (f NotifierFunc) Notify(n Notice) { f(n) }

// NopNotifier drops every notice.
var NopNotifier Notifier = NotifierFunc(func(Notice) {})
