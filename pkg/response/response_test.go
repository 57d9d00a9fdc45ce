package response

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestFailEchoesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Set(ContextRequestID, "req-42")

	BadRequestHint(c, "offer has already ended", "move end_date_time forward")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"success":false,"error":"offer has already ended","hint":"move end_date_time forward","request_id":"req-42"}`, w.Body.String())
}

func TestOKOmitsErrorFields(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Set(ContextRequestID, "req-42")

	OK(c, map[string]int{"armed": 2})

	assert.JSONEq(t, `{"success":true,"data":{"armed":2}}`, w.Body.String())
}
