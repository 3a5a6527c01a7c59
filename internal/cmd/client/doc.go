// Package client provides the `logvault logs` command-line client.
//
// The CLI talks to the logvault HTTP API to read, write and follow log
// entries from a terminal.
//
// # Address configuration
//
// The HTTP base URL is discovered by the application that embeds the
// commands via a BaseURLFunc. The standalone binary reads LOGVAULT_HTTP
// and defaults to http://127.0.0.1:8080.
//
// Usage
//
//	logvault logs emit --level error --category auth --message denied \
//	    --data '{"user":"bob"}'
//
//	logvault logs get --level error --search bob
//	logvault logs get --filter 'category == "db" && data.rows > 100' --limit 20
//	logvault logs get --date 2024-01-15 --json
//
//	logvault logs dates
//	logvault logs categories
//	logvault logs stats
//
//	# Follow new entries; --backlog first replays what is in memory
//	logvault logs tail --backlog --category auth
//
//	# Deletes touch memory only; archived days are never modified
//	logvault logs delete --category auth
//	logvault logs delete --level debug
//	logvault logs delete --all
package client
