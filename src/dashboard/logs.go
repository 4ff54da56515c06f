package dashboard

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"ObservatoireDelinquance/src/storage"
)

// LogStream 日志写入时推送给客户端
type LogStream struct {
	logger *storage.Logger
}

func NewLogStream(logger *storage.Logger) *LogStream {
	return &LogStream{logger: logger}
}

func (l *LogStream) Register(g *echo.Group) {
	g.GET("/logs", l.Stream)
}

func (l *LogStream) Stream(c echo.Context) error {
	if l.logger == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "journal désactivé"})
	}
	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Flush()

	logChan := l.logger.Subscribe()
	defer l.logger.Unsubscribe(logChan)

	ctx := c.Request().Context()
	for {
		select {
		case msg, ok := <-logChan:
			if !ok {
				return nil
			}
			// 客户端断开时写入失败
			if _, err := fmt.Fprintln(w, msg); err != nil {
				return nil
			}
			w.Flush()
		case <-ctx.Done():
			return nil
		}
	}
}
