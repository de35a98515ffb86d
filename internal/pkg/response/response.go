package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/webapi/proxyutil"
)

// envelopeErr carries a csassist errcode into the proxyutil envelope.
type envelopeErr struct {
	code uint32
	msg  string
}

func (e envelopeErr) Error() string {
	return e.msg
}

func (e envelopeErr) Code() uint32 {
	return e.code
}

// Success writes {code:0, message, data} for a chat or properties payload.
func Success(c *gin.Context, data interface{}) {
	proxyutil.SuccessJson(c, data)
}

// Error keeps http 200 so chat clients branch on the envelope code alone.
func Error(c *gin.Context, code int, message string) {
	proxyutil.FailJson(c, http.StatusOK, envelopeErr{code: uint32(code), msg: message})
}
