// Package config loads logvault configuration. Default() is the baseline;
// Load overlays a JSON or YAML file and FromEnv overlays LOGVAULT_*
// variables.
//
// Example:
//
//	cfg, err := config.Load("/etc/logvault.yaml")
//	if err != nil {
//	    return err
//	}
//	config.FromEnv(&cfg)
//	if err := cfg.Validate(); err != nil {
//	    return err
//	}
package config
