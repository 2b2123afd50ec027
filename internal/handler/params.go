package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// queryInt reads a positive integer query parameter, falling back to def and capping at max.
func queryInt(c *gin.Context, name string, def, max int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, false
	}
	if v > max {
		v = max
	}
	return v, true
}
