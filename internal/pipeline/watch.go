package pipeline

import (
	"time"

	"github.com/fsnotify/fsnotify"
)

// waitForChangeOrTimeout blocks until a filesystem event fires in any of
// dirs or the timer elapses, whichever comes first (spec 4.2.1 step 6:
// "wait on a filesystem-watch event or a timer"). Watcher setup failures
// degrade to a pure timer wait rather than erroring the whole loop, since an
// idle-wake optimization is not worth crashing the pipeline over.
func waitForChangeOrTimeout(dirs []string, timeout time.Duration) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		time.Sleep(timeout)
		return
	}
	defer watcher.Close()

	for _, d := range dirs {
		_ = watcher.Add(d)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-watcher.Events:
	case <-watcher.Errors:
	case <-timer.C:
	}
}
