package restexecutor

import (
	"net/http"

	"github.com/codearena/judge/language"
	"github.com/gin-gonic/gin"
)

type languageHandle struct {
	languages *language.Registry
}

// NewLanguageHandle creates a handle that lists the supported languages
func NewLanguageHandle(languages *language.Registry) Register {
	return &languageHandle{languages: languages}
}

func (l *languageHandle) Register(r *gin.Engine) {
	r.GET("/languages", l.handleLanguages)
}

func (l *languageHandle) handleLanguages(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"languages": l.languages.List()})
}
