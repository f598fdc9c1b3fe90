package logger

import "sync"

var components sync.Map

// Get returns the global logger tagged with component name. Loggers are
// cached per name, so call Init before the first Get.
func Get(name string) *Logger {
	if l, ok := components.Load(name); ok {
		return l.(*Logger)
	}
	l, _ := components.LoadOrStore(name, GetGlobalLogger().WithComponent(name))
	return l.(*Logger)
}
