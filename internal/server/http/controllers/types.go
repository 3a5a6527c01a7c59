package controllers

import "github.com/Talis-dev/logvault/pkg/logentry"

// Request/response bodies of the logs API.

// createLogReq is the body of POST /api/logs.
type createLogReq struct {
	Level    string         `json:"level"`
	Category string         `json:"category"`
	Message  string         `json:"message"`
	Data     map[string]any `json:"data,omitempty"`
}

type memoryLogsResp struct {
	Success bool             `json:"success"`
	Source  string           `json:"source"`
	Count   int              `json:"count"`
	Logs    []logentry.Entry `json:"logs"`
}

type datesResp struct {
	Success bool     `json:"success"`
	Dates   []string `json:"dates"`
}

type fileLogsResp struct {
	Success bool             `json:"success"`
	Date    string           `json:"date"`
	Count   int              `json:"count"`
	Logs    []logentry.Entry `json:"logs"`
}

type deleteResp struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Deleted *int   `json:"deleted,omitempty"`
}

type createLogResp struct {
	Success bool           `json:"success"`
	Log     logentry.Entry `json:"log"`
}
