package handlers

import (
	"errors"
	"net/http"

	"hearth/internal/services"
	"hearth/internal/utils"

	"github.com/gin-gonic/gin"
)

type NewsHandler struct {
	news   *services.NewsService
	ingest *services.IngestService
	// 请求体上限，比 HTML 上限多留出 JSON 包装的余量
	maxBody int64
}

func NewNewsHandler(news *services.NewsService, ingest *services.IngestService, maxHTMLBytes int64) *NewsHandler {
	return &NewsHandler{news: news, ingest: ingest, maxBody: maxHTMLBytes*2 + 64<<10}
}

// Feed ?source=&type=rss|ingest&q=&sort=new|top|liked|popular
func (h *NewsHandler) Feed(c *gin.Context) {
	req, ok := bindPage(c)
	if !ok {
		return
	}
	f := services.NewsFilter{SourceType: c.Query("type"), Query: c.Query("q")}
	if source := c.Query("source"); source != "" {
		id, ok := utils.StringToUint(source)
		if !ok {
			Fail(c, http.StatusBadRequest, "无效的订阅源")
			return
		}
		f.SourceID = id
	}

	page, err := h.news.Feed(c.Request.Context(), viewerID(c), f, req)
	if err != nil {
		Error(c, err)
		return
	}
	OK(c, gin.H{"page": page})
}

func (h *NewsHandler) Detail(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	article, err := h.news.Detail(c.Request.Context(), viewerID(c), id)
	if err != nil {
		Error(c, err)
		return
	}
	OK(c, gin.H{"article": article})
}

func (h *NewsHandler) Sources(c *gin.Context) {
	sources, err := h.news.Sources(c.Request.Context())
	if err != nil {
		Error(c, err)
		return
	}
	OK(c, gin.H{"sources": sources})
}

type parseRequest struct {
	HTML string `json:"html"`
	URL  string `json:"url"`
}

// Parse POST /api/parse {html, url?}
func (h *NewsHandler) Parse(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBody)

	var req parseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			Fail(c, http.StatusBadRequest, services.ErrTooLarge.Error())
			return
		}
		Fail(c, http.StatusBadRequest, "无效的请求体")
		return
	}

	result, err := h.ingest.Ingest(c.Request.Context(), services.IngestInput{
		HTML:        req.HTML,
		URL:         req.URL,
		SubmitterID: viewerID(c),
	})
	h.respondIngest(c, result, err)
}

type parseURLRequest struct {
	URL string `json:"url" binding:"required"`
}

// ParseURL POST /api/parse/url {url}
func (h *NewsHandler) ParseURL(c *gin.Context) {
	var req parseURLRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.ingest.IngestURL(c.Request.Context(), viewerID(c), req.URL)
	h.respondIngest(c, result, err)
}

func (h *NewsHandler) respondIngest(c *gin.Context, result *services.IngestResult, err error) {
	switch {
	case err == nil:
		OK(c, gin.H{"id": result.ID, "title": result.Title, "counts": result.Counts})
	case errors.Is(err, services.ErrAlreadyIngested):
		c.JSON(http.StatusConflict, gin.H{"success": false, "error": err.Error(), "id": result.ID})
	case errors.Is(err, services.ErrTooLarge):
		// 超限也按 400 返回
		Fail(c, http.StatusBadRequest, err.Error())
	default:
		Error(c, err)
	}
}
