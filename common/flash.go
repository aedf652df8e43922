package common

import (
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const (
	flashNotice = "notice"
	flashError  = "error"
)

// Flashes holds the one-shot messages shown after a redirect.
type Flashes struct {
	Notice string `json:"notice,omitempty"`
	Error  string `json:"error,omitempty"`
}

func FlashNotice(c *gin.Context, msg string) { addFlash(c, msg, flashNotice) }

func FlashError(c *gin.Context, msg string) { addFlash(c, msg, flashError) }

func addFlash(c *gin.Context, msg, kind string) {
	if msg == "" {
		return
	}
	session := sessions.Default(c)
	session.AddFlash(msg, kind)
	_ = session.Save()
}

// PopFlashes returns and clears the pending messages.
func PopFlashes(c *gin.Context) Flashes {
	session := sessions.Default(c)
	var f Flashes
	if v := session.Flashes(flashNotice); len(v) > 0 {
		f.Notice, _ = v[len(v)-1].(string)
	}
	if v := session.Flashes(flashError); len(v) > 0 {
		f.Error, _ = v[len(v)-1].(string)
	}
	if f.Notice != "" || f.Error != "" {
		_ = session.Save()
	}
	return f
}
