package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// MaxBodyBytes ограничивает размер тела запроса, как bodyParser
// в прошлой версии сервиса (1 MB).
const MaxBodyBytes = 1 << 20

// BodyLimitMiddleware обрезает чтение тела запроса на MaxBodyBytes;
// превышение всплывет ошибкой разбора JSON в обработчике.
func BodyLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxBodyBytes)
		c.Next()
	}
}
