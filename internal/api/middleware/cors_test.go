package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/inkfold/newsletter_go_server/config"
)

func inkfoldCORSConfig() config.CORSConfig {
	return config.CORSConfig{
		AllowedOrigins: []string{"http://localhost:5173", "https://app.inkfold.io"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}
}

func newCORSRouter(cfg config.CORSConfig) *gin.Engine {
	router := gin.New()
	router.Use(CORS(cfg))
	router.GET("/api/v1/newsletters", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"items": []string{}})
	})
	router.OPTIONS("/api/v1/newsletters", func(c *gin.Context) {
		// 预检请求应被中间件截断，到不了这里
		c.Status(http.StatusOK)
	})
	return router
}

func corsRequest(router http.Handler, method, origin string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/api/v1/newsletters", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCORS_AllowedOrigin(t *testing.T) {
	router := newCORSRouter(inkfoldCORSConfig())

	w := corsRequest(router, "GET", "https://app.inkfold.io")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://app.inkfold.io", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Origin", w.Header().Get("Vary"))
	assert.Equal(t, "GET, POST, PUT, DELETE, OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Content-Type, Authorization", w.Header().Get("Access-Control-Allow-Headers"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
	assert.Equal(t, "86400", w.Header().Get("Access-Control-Max-Age"))
}

func TestCORS_EachListedOriginEchoedBack(t *testing.T) {
	cfg := inkfoldCORSConfig()
	router := newCORSRouter(cfg)

	for _, origin := range cfg.AllowedOrigins {
		w := corsRequest(router, "GET", origin)
		assert.Equal(t, origin, w.Header().Get("Access-Control-Allow-Origin"))
	}
}

func TestCORS_UnlistedOrigin(t *testing.T) {
	router := newCORSRouter(inkfoldCORSConfig())

	w := corsRequest(router, "GET", "https://phish.example.com")

	// 请求照常处理，但不回 Allow-Origin，浏览器侧会拦截响应
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET, POST, PUT, DELETE, OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))
}

func TestCORS_NoOriginHeader(t *testing.T) {
	router := newCORSRouter(inkfoldCORSConfig())

	w := corsRequest(router, "GET", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_PreflightShortCircuits(t *testing.T) {
	router := newCORSRouter(inkfoldCORSConfig())

	w := corsRequest(router, "OPTIONS", "http://localhost:5173")

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, w.Body.String())
}

func TestCORS_EmptyConfig(t *testing.T) {
	router := newCORSRouter(config.CORSConfig{})

	w := corsRequest(router, "GET", "https://app.inkfold.io")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Methods"))
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Headers"))
}
