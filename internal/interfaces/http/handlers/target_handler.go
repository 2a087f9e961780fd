package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	appvis "github.com/turtacn/aivis/internal/application/visibility"
	"github.com/turtacn/aivis/internal/domain/target"
	"github.com/turtacn/aivis/pkg/types/visibility"
)

// TargetHandler exposes the target lifecycle and analysis endpoints.
type TargetHandler struct {
	svc *appvis.Service
}

// NewTargetHandler builds the handler around the application service.
func NewTargetHandler(svc *appvis.Service) *TargetHandler {
	return &TargetHandler{svc: svc}
}

// ─────────────────────────────────────────────────────────────────────────────
// Request / response shapes
// ─────────────────────────────────────────────────────────────────────────────

// InitRequest is the body of POST /targets/init.
type InitRequest struct {
	BusinessName string `json:"businessName" binding:"required"`
	WebsiteURL   string `json:"websiteUrl" binding:"required"`
}

// UpdateKeywordsRequest is the body of PUT /targets/:id/keywords.
type UpdateKeywordsRequest struct {
	Keywords []string `json:"keywords" binding:"required"`
}

// UpdatePromptsRequest is the body of PUT /targets/:id/prompts.
type UpdatePromptsRequest struct {
	Prompts []string `json:"prompts" binding:"required"`
}

// AnalyzeRequest optionally overrides the per-pair trial count.
type AnalyzeRequest struct {
	TrialsPerPair int `json:"trialsPerPair"`
}

// AnalyzeResponse wraps the score with the target it belongs to and the
// completion timestamp.
type AnalyzeResponse struct {
	TargetID   string                     `json:"targetId"`
	Score      visibility.VisibilityScore `json:"score"`
	AnalyzedAt time.Time                  `json:"analyzedAt"`
}

// TargetResponse is the wire form of a target.
type TargetResponse struct {
	ID           string               `json:"id"`
	BusinessName string               `json:"businessName"`
	WebsiteURL   string               `json:"websiteUrl"`
	Keywords     []visibility.Keyword `json:"keywords"`
	Prompts      []visibility.Prompt  `json:"prompts"`
	CreatedAt    time.Time            `json:"createdAt"`
	UpdatedAt    time.Time            `json:"updatedAt"`
}

func toTargetResponse(t *target.Target) TargetResponse {
	return TargetResponse{
		ID:           t.ID.String(),
		BusinessName: t.BusinessName,
		WebsiteURL:   t.WebsiteURL,
		Keywords:     t.Keywords,
		Prompts:      t.Prompts,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
}

// ListResponse wraps a page of targets.
type ListResponse struct {
	Targets []TargetResponse `json:"targets"`
	Limit   int              `json:"limit"`
	Offset  int              `json:"offset"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Handlers
// ─────────────────────────────────────────────────────────────────────────────

// Init handles POST /targets/init: create the target and generate its
// keywords and prompts from the site content.
func (h *TargetHandler) Init(c *gin.Context) {
	var req InitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	tgt, err := h.svc.InitializeContent(c.Request.Context(), req.BusinessName, req.WebsiteURL)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toTargetResponse(tgt))
}

// Get handles GET /targets/:id.
func (h *TargetHandler) Get(c *gin.Context) {
	tgt, err := h.svc.GetTarget(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toTargetResponse(tgt))
}

// List handles GET /targets.
func (h *TargetHandler) List(c *gin.Context) {
	limit, offset := parsePagination(c)
	targets, err := h.svc.ListTargets(c.Request.Context(), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := ListResponse{Targets: make([]TargetResponse, 0, len(targets)), Limit: limit, Offset: offset}
	for _, t := range targets {
		resp.Targets = append(resp.Targets, toTargetResponse(t))
	}
	c.JSON(http.StatusOK, resp)
}

// UpdateKeywords handles PUT /targets/:id/keywords. Prompts are rebuilt
// from the new keywords.
func (h *TargetHandler) UpdateKeywords(c *gin.Context) {
	var req UpdateKeywordsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	tgt, err := h.svc.UpdateKeywords(c.Request.Context(), c.Param("id"), req.Keywords)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toTargetResponse(tgt))
}

// UpdatePrompts handles PUT /targets/:id/prompts.
func (h *TargetHandler) UpdatePrompts(c *gin.Context) {
	var req UpdatePromptsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	tgt, err := h.svc.UpdatePrompts(c.Request.Context(), c.Param("id"), req.Prompts)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toTargetResponse(tgt))
}

// Analyze handles POST /targets/:id/analyze: run the full sampling pipeline
// synchronously and return the aggregated score.
func (h *TargetHandler) Analyze(c *gin.Context) {
	var req AnalyzeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}
	}

	var opts []appvis.AnalyzeOption
	if req.TrialsPerPair > 0 {
		opts = append(opts, appvis.WithTrialsPerPair(req.TrialsPerPair))
	}

	score, err := h.svc.Analyze(c.Request.Context(), c.Param("id"), opts...)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, AnalyzeResponse{
		TargetID:   c.Param("id"),
		Score:      *score,
		AnalyzedAt: time.Now().UTC(),
	})
}

// AnalyzeAsync handles POST /targets/:id/analyze/async: enqueue the run and
// return immediately.
func (h *TargetHandler) AnalyzeAsync(c *gin.Context) {
	if err := h.svc.RequestAnalysis(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"targetId": c.Param("id"),
		"status":   "queued",
	})
}

// Delete handles DELETE /targets/:id.
func (h *TargetHandler) Delete(c *gin.Context) {
	if err := h.svc.DeleteTarget(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
