package logger

import "sync"

// Entry is one recorded log call.
type Entry struct {
	Level     string
	Component string
	Message   string
	Err       error
	Fields    map[string]interface{}
}

// Recorder captures log calls for assertions in tests.
type Recorder struct {
	mu      sync.Mutex
	Entries []Entry
}

func (r *Recorder) record(level, component, message string, err error, fields map[string]interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Entries = append(r.Entries, Entry{Level: level, Component: component, Message: message, Err: err, Fields: fields})
}

func (r *Recorder) Debug(component, message string, fields map[string]interface{}) {
	r.record("debug", component, message, nil, fields)
}

func (r *Recorder) Info(component, message string, fields map[string]interface{}) {
	r.record("info", component, message, nil, fields)
}

func (r *Recorder) Warning(component, message string, fields map[string]interface{}) {
	r.record("warning", component, message, nil, fields)
}

func (r *Recorder) Error(component string, err error, fields map[string]interface{}) {
	r.record("error", component, "", err, fields)
}

// CountLevel returns the number of entries recorded at the given level.
func (r *Recorder) CountLevel(level string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.Entries {
		if e.Level == level {
			n++
		}
	}
	return n
}
