package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/z-wentao/lingoflow/pkg/dictionary"
	"github.com/z-wentao/lingoflow/pkg/llm"
	"github.com/z-wentao/lingoflow/pkg/maimemo"
	"github.com/z-wentao/lingoflow/pkg/models"
	"github.com/z-wentao/lingoflow/pkg/queue"
	"github.com/z-wentao/lingoflow/pkg/storage"
)

const version = "1.0.0"

// Querier 执行单词查询
type Querier interface {
	QueryWord(ctx context.Context, word string, languages []string, exampleCount int) (*models.QueryResult, error)
}

// WordSource 生成随机单词
type WordSource interface {
	GenerateRandomWord(ctx context.Context, style string) (string, error)
}

// Server HTTP 处理器依赖
type Server struct {
	querier  Querier
	words    WordSource
	records  storage.RecordStore
	jobs     *storage.JobStore
	queue    queue.Queue
	audioDir string
	maimemo  func(token string) *maimemo.Client
	logger   *slog.Logger
}

// setupRouter 设置路由
func (s *Server) setupRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.logger), cors())

	api := r.Group("/api")
	{
		api.GET("/ping", s.handlePing)
		api.POST("/query", s.handleQuery)
		api.POST("/random-query", s.handleRandomQuery)

		api.GET("/queries", s.handleListQueries)
		api.GET("/queries/:id", s.handleGetQuery)
		api.DELETE("/queries/:id", s.handleDeleteQuery)
		api.DELETE("/queries", s.handleDeleteQueryByTimestamp)           // ?timestamp=1700000000.123
		api.POST("/queries/:id/sync-to-maimemo", s.handleSyncToMaimemo) // 同步到墨墨

		api.GET("/audio/:filename", s.handleAudio)

		api.POST("/jobs", s.handleCreateJob)
		api.GET("/jobs/:job_id", s.handleGetJob)
		api.GET("/jobs", s.handleListJobs)

		api.POST("/maimemo/list-notepads", s.handleListNotepads)
	}

	return r
}

// cors 允许任意来源
func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func requestLogger(l *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		l.Info("请求",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"elapsed", time.Since(start).Round(time.Millisecond),
		)
	}
}

func (s *Server) handlePing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "pong",
		"version": version,
	})
}

// QueryRequest 单词查询请求
type QueryRequest struct {
	Word         string   `json:"word"`
	Languages    []string `json:"languages"`
	ExampleCount int      `json:"example_count"`
}

func (s *Server) handleQuery(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数错误: " + err.Error()})
		return
	}

	s.query(c, req.Word, req.Languages, req.ExampleCount)
}

// RandomQueryRequest 随机单词查询请求
type RandomQueryRequest struct {
	Style        string   `json:"style"`
	Languages    []string `json:"languages"`
	ExampleCount int      `json:"example_count"`
}

func (s *Server) handleRandomQuery(c *gin.Context) {
	var req RandomQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数错误: " + err.Error()})
		return
	}

	style, err := llm.NormalizeStyle(req.Style)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "styles": llm.Styles})
		return
	}

	word, err := s.words.GenerateRandomWord(c.Request.Context(), style)
	if err != nil {
		s.logger.Warn("生成随机单词失败", "style", style, "err", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "生成随机单词失败"})
		return
	}

	s.query(c, word, req.Languages, req.ExampleCount)
}

func (s *Server) query(c *gin.Context, word string, languages []string, exampleCount int) {
	result, err := s.querier.QueryWord(c.Request.Context(), word, languages, exampleCount)
	switch {
	case errors.Is(err, dictionary.ErrEmptyWord), errors.Is(err, dictionary.ErrNoLanguages):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		s.logger.Error("查询失败", "word", word, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询失败"})
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) handleListQueries(c *gin.Context) {
	records, err := s.records.List()
	if err != nil {
		s.logger.Error("读取查询历史失败", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "读取查询历史失败"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"queries": records,
		"total":   len(records),
	})
}

func (s *Server) handleGetQuery(c *gin.Context) {
	record, err := s.records.Get(c.Param("id"))
	if err != nil {
		s.storageError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (s *Server) handleDeleteQuery(c *gin.Context) {
	id := c.Param("id")
	if err := s.records.Delete(id); err != nil {
		s.storageError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "删除成功", "id": id})
}

func (s *Server) handleDeleteQueryByTimestamp(c *gin.Context) {
	raw := c.Query("timestamp")
	ts, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的时间戳: " + raw})
		return
	}

	if err := s.records.DeleteByTimestamp(ts); err != nil {
		s.storageError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "删除成功", "timestamp": ts})
}

func (s *Server) storageError(c *gin.Context, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "记录不存在"})
		return
	}
	s.logger.Error("存储操作失败", "path", c.Request.URL.Path, "err", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "存储操作失败"})
}

// handleAudio 只允许访问音频目录下的文件名
func (s *Server) handleAudio(c *gin.Context) {
	name := c.Param("filename")
	if name == "" || name != filepath.Base(name) || strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的文件名"})
		return
	}

	path := filepath.Join(s.audioDir, name)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		c.JSON(http.StatusNotFound, gin.H{"error": "音频文件不存在"})
		return
	}

	c.File(path)
}

func (s *Server) handleCreateJob(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数错误: " + err.Error()})
		return
	}
	if strings.TrimSpace(req.Word) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": dictionary.ErrEmptyWord.Error()})
		return
	}
	languages := dictionary.NormalizeLanguages(req.Languages)
	if len(languages) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": dictionary.ErrNoLanguages.Error()})
		return
	}

	job := &models.LookupJob{
		JobID:        uuid.New().String(),
		Word:         strings.TrimSpace(req.Word),
		Languages:    languages,
		ExampleCount: req.ExampleCount,
		Status:       models.StatusPending,
		CreatedAt:    time.Now(),
	}
	if err := s.jobs.Save(job); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "保存任务失败"})
		return
	}

	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Warn("任务加入队列失败", "job_id", job.JobID, "err", err)
		_ = s.jobs.Update(job.JobID, func(j *models.LookupJob) {
			j.Status = models.StatusFailed
			j.Error = err.Error()
			j.CompletedAt = time.Now()
		})
		status := http.StatusInternalServerError
		if errors.Is(err, queue.ErrQueueFull) {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"error": "任务加入队列失败"})
		return
	}

	s.logger.Info("任务已加入队列", "job_id", job.JobID, "word", job.Word)
	c.JSON(http.StatusAccepted, gin.H{
		"job_id": job.JobID,
		"status": job.Status,
	})
}

func (s *Server) handleGetJob(c *gin.Context) {
	job, err := s.jobs.Get(c.Param("job_id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "任务不存在"})
		return
	}
	c.JSON(http.StatusOK, job)
}

func (s *Server) handleListJobs(c *gin.Context) {
	jobs, _ := s.jobs.List()
	c.JSON(http.StatusOK, gin.H{
		"jobs":  jobs,
		"total": len(jobs),
	})
}

// SyncToMaimemoRequest 同步到墨墨的请求
type SyncToMaimemoRequest struct {
	Token     string `json:"token" binding:"required"`      // 墨墨 API Token
	NotepadID string `json:"notepad_id" binding:"required"` // 云词本 ID
}

// handleSyncToMaimemo 把记录中的单词追加到墨墨云词本
func (s *Server) handleSyncToMaimemo(c *gin.Context) {
	var req SyncToMaimemoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数错误: " + err.Error()})
		return
	}

	record, err := s.records.Get(c.Param("id"))
	if err != nil {
		s.storageError(c, err)
		return
	}

	words := []string{record.Word}
	if err := s.maimemo(req.Token).AppendWords(c.Request.Context(), req.NotepadID, words); err != nil {
		s.logger.Error("同步到墨墨失败", "id", record.ID, "err", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "同步到墨墨失败: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "同步成功",
		"count":   len(words),
	})
}

// ListNotepadsRequest 查询云词本列表的请求
type ListNotepadsRequest struct {
	Token string `json:"token" binding:"required"` // 墨墨 API Token
}

func (s *Server) handleListNotepads(c *gin.Context) {
	var req ListNotepadsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数错误: " + err.Error()})
		return
	}

	notepads, err := s.maimemo(req.Token).ListNotepads(c.Request.Context())
	if err != nil {
		s.logger.Error("查询云词本列表失败", "err", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "查询失败: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"notepads": notepads,
		"count":    len(notepads),
	})
}
