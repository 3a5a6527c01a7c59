// Package runtime wires configuration, the archive driver and the log store
// for a single logvault node.
//
// Example:
//
//	rt, err := runtime.Open(runtime.Options{Config: cfg, Logger: logger})
//	if err != nil {
//	    return err
//	}
//	defer rt.Close(context.Background())
//	rt.Store().Log(logentry.LevelInfo, "boot", "ready", nil)
package runtime
