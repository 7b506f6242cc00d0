package logging

// Convenience wrappers so call sites stay short.

func Boot(format string, args ...interface{})  { Get(CategoryBoot).Info(format, args...) }
func BootError(format string, args ...interface{}) {
	Get(CategoryBoot).Error(format, args...)
}

func API(format string, args ...interface{})      { Get(CategoryAPI).Info(format, args...) }
func APIDebug(format string, args ...interface{}) { Get(CategoryAPI).Debug(format, args...) }
func APIWarn(format string, args ...interface{})  { Get(CategoryAPI).Warn(format, args...) }
func APIError(format string, args ...interface{}) { Get(CategoryAPI).Error(format, args...) }

func Router(format string, args ...interface{})      { Get(CategoryRouter).Info(format, args...) }
func RouterDebug(format string, args ...interface{}) { Get(CategoryRouter).Debug(format, args...) }
func RouterError(format string, args ...interface{}) { Get(CategoryRouter).Error(format, args...) }

func Coder(format string, args ...interface{})      { Get(CategoryCoder).Info(format, args...) }
func CoderDebug(format string, args ...interface{}) { Get(CategoryCoder).Debug(format, args...) }
func CoderWarn(format string, args ...interface{})  { Get(CategoryCoder).Warn(format, args...) }
func CoderError(format string, args ...interface{}) { Get(CategoryCoder).Error(format, args...) }

func Researcher(format string, args ...interface{}) { Get(CategoryResearcher).Info(format, args...) }
func ResearcherDebug(format string, args ...interface{}) {
	Get(CategoryResearcher).Debug(format, args...)
}

func Editor(format string, args ...interface{})     { Get(CategoryEditor).Info(format, args...) }
func EditorWarn(format string, args ...interface{}) { Get(CategoryEditor).Warn(format, args...) }
func EditorError(format string, args ...interface{}) {
	Get(CategoryEditor).Error(format, args...)
}

func Threads(format string, args ...interface{}) { Get(CategoryThreads).Info(format, args...) }

func Context(format string, args ...interface{})     { Get(CategoryContext).Info(format, args...) }
func ContextWarn(format string, args ...interface{}) { Get(CategoryContext).Warn(format, args...) }

func Tasks(format string, args ...interface{})      { Get(CategoryTasks).Info(format, args...) }
func TasksDebug(format string, args ...interface{}) { Get(CategoryTasks).Debug(format, args...) }

func Commands(format string, args ...interface{}) { Get(CategoryCommands).Info(format, args...) }
