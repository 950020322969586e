package logging

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lmittmann/tint"
)

// New builds a tint-backed slog logger. The returned LevelVar may be changed
// at runtime.
func New(w io.Writer, level slog.Level, color bool) (*slog.Logger, *slog.LevelVar) {
	lvl := &slog.LevelVar{}
	lvl.Set(level)
	logger := slog.New(tint.NewHandler(w, &tint.Options{
		Level:      lvl,
		NoColor:    !color,
		TimeFormat: "2006-01-02 15:04:05.000",
	}))
	return logger, lvl
}

// Middleware logs one line per request once the handler chain has finished.
func Middleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info(
			fmt.Sprintf("%s %s", c.Request.Method, c.Request.URL.Path),
			"response_code", c.Writer.Status(),
			"duration", time.Since(start),
			"bytes_sent", c.Writer.Size(),
			"remote_addr", c.ClientIP(),
		)
	}
}
