package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/csassist/internal/model"
	"github.com/xxxsen/csassist/internal/pkg/errcode"
	"github.com/xxxsen/csassist/internal/pkg/response"
	"github.com/xxxsen/csassist/internal/render"
	"github.com/xxxsen/csassist/internal/service"
)

type ChatHandler struct {
	chat        *service.ChatService
	renderer    *render.Markdown
	showSources bool
}

func NewChatHandler(chat *service.ChatService, renderer *render.Markdown, showSources bool) *ChatHandler {
	return &ChatHandler{chat: chat, renderer: renderer, showSources: showSources}
}

type askRequest struct {
	Question    string `json:"question"`
	TopK        int    `json:"top_k"`
	ShowSources *bool  `json:"show_sources"`
}

type turnView struct {
	Role        model.Role        `json:"role"`
	Content     string            `json:"content"`
	ContentHTML string            `json:"content_html,omitempty"`
	References  []model.Reference `json:"references,omitempty"`
	Ctime       int64             `json:"ctime"`
}

func (h *ChatHandler) CreateSession(c *gin.Context) {
	id, err := h.chat.NewSession(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"session_id": id})
}

func (h *ChatHandler) Ask(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	showSources := h.showSources
	if req.ShowSources != nil {
		showSources = *req.ShowSources
	}
	turn, err := h.chat.Ask(c.Request.Context(), c.Param("id"), req.Question, req.TopK)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"turn": h.view(c, turn, showSources)})
}

func (h *ChatHandler) History(c *gin.Context) {
	showSources, err := queryBool(c, "show_sources", h.showSources)
	if err != nil {
		handleError(c, err)
		return
	}
	id := c.Param("id")
	turns, err := h.chat.History(c.Request.Context(), id)
	if err != nil {
		handleError(c, err)
		return
	}
	views := make([]turnView, 0, len(turns))
	for _, turn := range turns {
		views = append(views, h.view(c, turn, showSources))
	}
	response.Success(c, gin.H{"session_id": id, "messages": views})
}

func (h *ChatHandler) Reset(c *gin.Context) {
	id := c.Param("id")
	if err := h.chat.Reset(c.Request.Context(), id); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"session_id": id})
}

func (h *ChatHandler) view(c *gin.Context, turn model.Turn, showSources bool) turnView {
	v := turnView{Role: turn.Role, Content: turn.Content, Ctime: turn.Ctime}
	if turn.Role != model.RoleAssistant {
		return v
	}
	if showSources {
		v.References = turn.References
	}
	if h.renderer != nil {
		html, err := h.renderer.Render(turn.Content)
		if err != nil {
			logutil.GetLogger(c.Request.Context()).Warn("render answer failed", zap.Error(err))
		} else {
			v.ContentHTML = html
		}
	}
	return v
}
