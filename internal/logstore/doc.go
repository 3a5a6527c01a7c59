// Package logstore is the in-process log store: a bounded in-memory window
// over the most recent entries plus an asynchronous writer that forwards
// every entry to a day-partitioned archive.
//
// Ingestion never waits on storage. Log appends to the ring under one lock,
// hands the entry to the archive writer's queue and wakes any tail waiters.
// The writer drains the queue on a single goroutine so entries reach each
// partition in submission order. A full queue drops the entry from the
// archive path only; it stays in memory and the drop is counted.
//
// Reads of past days go straight to the archive:
//
//	dates, _ := store.GetAvailableDates(ctx)
//	entries, _ := store.ReadLogsFromFile(ctx, dates[0])
package logstore
