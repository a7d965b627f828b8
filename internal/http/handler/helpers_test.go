package handler_test

import (
	"bytes"
	"net/http/httptest"

	"github.com/gin-gonic/gin"

	"minicrm.app/pipeline/internal/http/middleware"
)

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func do(router *gin.Engine, method, path, body, owner string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if owner != "" {
		req.Header.Set(middleware.OwnerHeader, owner)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}
