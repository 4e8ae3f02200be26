package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/voicememo/logger"
	"github.com/kbukum/voicememo/server/middleware"
)

func init() { gin.SetMode(gin.TestMode) }

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	e := gin.New()
	e.Use(mw...)
	return e
}

func loopbackRequest(method, path string, body string) *http.Request {
	r := httptest.NewRequest(method, path, strings.NewReader(body))
	r.RemoteAddr = "127.0.0.1:51000"
	return r
}

func TestRecovery_Panic(t *testing.T) {
	e := newEngine(middleware.Recovery(logger.Nop()))
	e.GET("/boom", func(*gin.Context) { panic("test panic") })

	rr := httptest.NewRecorder()
	e.ServeHTTP(rr, loopbackRequest("GET", "/boom", ""))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if body["error"] != "Internal server error" {
		t.Fatalf("unexpected error message: %s", body["error"])
	}
}

func TestRequestID(t *testing.T) {
	e := newEngine(middleware.RequestID())
	var seen string
	e.GET("/", func(c *gin.Context) {
		seen = c.GetHeader(middleware.HeaderRequestID)
		c.Status(http.StatusOK)
	})

	rr := httptest.NewRecorder()
	e.ServeHTTP(rr, loopbackRequest("GET", "/", ""))
	if seen == "" || rr.Header().Get(middleware.HeaderRequestID) != seen {
		t.Errorf("generated id not propagated: request=%q response=%q", seen, rr.Header().Get(middleware.HeaderRequestID))
	}

	rr = httptest.NewRecorder()
	req := loopbackRequest("GET", "/", "")
	req.Header.Set(middleware.HeaderRequestID, "given-id")
	e.ServeHTTP(rr, req)
	if got := rr.Header().Get(middleware.HeaderRequestID); got != "given-id" {
		t.Errorf("expected existing id to be preserved, got %q", got)
	}

	for _, bad := range []string{"line\nbreak", "has space", strings.Repeat("x", 65)} {
		rr = httptest.NewRecorder()
		req = loopbackRequest("GET", "/", "")
		req.Header.Set(middleware.HeaderRequestID, bad)
		e.ServeHTTP(rr, req)
		if got := rr.Header().Get(middleware.HeaderRequestID); got == bad || got == "" {
			t.Errorf("id %q should be replaced, got %q", bad, got)
		}
	}
}

func TestLoopbackOnly(t *testing.T) {
	e := newEngine(middleware.LoopbackOnly())
	e.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	tests := []struct {
		remote string
		want   int
	}{
		{"127.0.0.1:1234", http.StatusOK},
		{"[::1]:1234", http.StatusOK},
		{"192.168.1.20:1234", http.StatusForbidden},
		{"garbage", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.remote, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", http.NoBody)
			req.RemoteAddr = tt.remote
			rr := httptest.NewRecorder()
			e.ServeHTTP(rr, req)
			if rr.Code != tt.want {
				t.Errorf("status = %d, want %d", rr.Code, tt.want)
			}
		})
	}
}

func TestBodySizeLimit(t *testing.T) {
	e := newEngine(middleware.BodySizeLimit("8"))
	e.POST("/", func(c *gin.Context) {
		var v map[string]any
		if err := c.ShouldBindJSON(&v); err != nil {
			c.Status(http.StatusRequestEntityTooLarge)
			return
		}
		c.Status(http.StatusOK)
	})

	rr := httptest.NewRecorder()
	e.ServeHTTP(rr, loopbackRequest("POST", "/", `{"a":1}`))
	if rr.Code != http.StatusOK {
		t.Errorf("small body: status %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	e.ServeHTTP(rr, loopbackRequest("POST", "/", `{"a":"a much longer body"}`))
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("large body: status %d", rr.Code)
	}
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"", 99},
		{"512", 512},
		{"64KB", 64 << 10},
		{"10mb", 10 << 20},
		{"2GB", 2 << 30},
		{"lots", 99},
		{"-5KB", 99},
	}
	for _, tt := range tests {
		if got := middleware.ParseSize(tt.in, 99); got != tt.want {
			t.Errorf("ParseSize(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestRequestLoggerPassesThrough(t *testing.T) {
	e := newEngine(middleware.RequestID(), middleware.RequestLogger(logger.Nop()))
	e.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	e.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	for path, want := range map[string]int{"/missing": 404, "/health": 200} {
		rr := httptest.NewRecorder()
		e.ServeHTTP(rr, loopbackRequest("GET", path, ""))
		if rr.Code != want {
			t.Errorf("%s: status %d, want %d", path, rr.Code, want)
		}
	}
}
