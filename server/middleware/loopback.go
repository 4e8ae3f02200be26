package middleware

import (
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
)

// LoopbackOnly rejects requests whose peer is not a loopback address. The
// listener is already bound to loopback; this also covers a misconfigured
// host or a reverse proxy in front of it.
func LoopbackOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		host, _, err := net.SplitHostPort(c.Request.RemoteAddr)
		if err != nil {
			host = c.Request.RemoteAddr
		}
		if ip := net.ParseIP(host); ip == nil || !ip.IsLoopback() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "loopback clients only"})
			return
		}
		c.Next()
	}
}
