package handlers

import (
	"net/http"

	"github.com/minutehq/usagewatch/internal/pkg/errors"
	"github.com/minutehq/usagewatch/internal/pkg/utils"
)

// writeServiceError maps a service error onto an HTTP response: typed
// application errors keep their status code, anything else becomes a 500
func writeServiceError(w http.ResponseWriter, err error, message string) {
	if appErr, ok := err.(*errors.AppError); ok {
		utils.WriteError(w, appErr)
		return
	}
	utils.WriteError(w, errors.Internal(message, err))
}
