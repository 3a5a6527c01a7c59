package controllers

import (
	"net/http"

	"github.com/Talis-dev/logvault/internal/runtime"
	logpkg "github.com/Talis-dev/logvault/pkg/log"
)

// ControllerRegistry owns every HTTP controller and registers their routes.
type ControllerRegistry struct {
	general *GeneralController
	logs    *LogsController
}

// NewControllerRegistry builds all controllers over rt.
func NewControllerRegistry(rt *runtime.Runtime, logger logpkg.Logger) *ControllerRegistry {
	return &ControllerRegistry{
		general: NewGeneralController(rt),
		logs:    NewLogsController(rt.Store(), logger),
	}
}

// RegisterAllRoutes registers all controller routes with the given mux.
func (r *ControllerRegistry) RegisterAllRoutes(mux *http.ServeMux) {
	r.general.RegisterRoutes(mux)
	r.logs.RegisterRoutes(mux)
}
