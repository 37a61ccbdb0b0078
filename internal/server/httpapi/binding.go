package httpapi

import (
	"errors"
	"net/http"
	"sync"

	"github.com/dmitrijs2005/credkeeper/internal/server/services"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var wireNamesOnce sync.Once

// useWireFieldNames makes gin's validator report json field names.
func useWireFieldNames() {
	wireNamesOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			v.RegisterTagNameFunc(services.WireFieldName)
		}
	})
}

// bindJSON decodes and validates the body into req. On failure it writes the
// error response and returns false.
func bindJSON(c *gin.Context, req any) bool {
	err := c.ShouldBindJSON(req)
	if err == nil {
		return true
	}
	_ = c.Error(err)

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(c, errBodyTooLarge)
		return false
	}
	if verr := services.FieldError(err); verr != nil {
		writeError(c, verr)
		return false
	}
	writeError(c, errMalformedBody)
	return false
}
