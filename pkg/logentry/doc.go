// Package logentry defines the record stored by the log store and its archive.
//
// An Entry carries an id from pkg/id, and its Timestamp is the millisecond
// embedded in that id, so ordering by id and by time agree. Level is one of
// info, success, warning, error or debug; ParseLevel rejects anything else
// with ErrInvalidLevel.
//
// Usage
//
//	e := logentry.New(gen.Next(), logentry.LevelError, "auth", "login denied",
//	    map[string]any{"user": "bob"})
//	b, _ := json.Marshal(e) // {"id":"...","timestamp":"...","level":"error",...}
package logentry
