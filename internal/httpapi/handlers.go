package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"ContentRewriter/internal/domain"
	"ContentRewriter/internal/prompt"
	"ContentRewriter/internal/usage"
)

// defaultUsageDays is the range summarised when no from date is given.
const defaultUsageDays = 7

type pendingItem struct {
	ID               int64     `json:"id"`
	Title            string    `json:"title"`
	MetaDescription  string    `json:"metaDescription"`
	Body             string    `json:"body"`
	Keywords         []string  `json:"keywords"`
	Category         string    `json:"category"`
	QualityScore     float64   `json:"qualityScore"`
	OriginalityScore float64   `json:"originalityScore"`
	SEOScore         float64   `json:"seoScore"`
	HeuristicScore   int       `json:"heuristicScore"`
	SourceURL        string    `json:"sourceUrl"`
	SourceName       string    `json:"sourceName"`
	VariantID        string    `json:"variantId"`
	PublishError     string    `json:"publishError,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
}

type decisionRequest struct {
	Notes string `json:"notes"`
}

type decisionResponse struct {
	Success        bool   `json:"success"`
	Message        string `json:"message,omitempty"`
	Published      bool   `json:"published"`
	PublicationURL string `json:"publicationUrl,omitempty"`
}

type statsResponse struct {
	domain.ApprovalStats
	Total int `json:"total"`
}

func toPendingItem(r domain.ApprovalRecord) pendingItem {
	keywords := r.Result.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	return pendingItem{
		ID:               r.ID,
		Title:            r.Result.Title,
		MetaDescription:  r.Result.MetaDescription,
		Body:             r.Result.Body,
		Keywords:         keywords,
		Category:         r.Result.Category,
		QualityScore:     r.Result.QualityScore,
		OriginalityScore: r.Result.OriginalityScore,
		SEOScore:         r.Result.SEOScore,
		HeuristicScore:   r.HeuristicScore,
		SourceURL:        r.SourceURL,
		SourceName:       r.SourceName,
		VariantID:        r.VariantID,
		PublishError:     r.PublishError,
		CreatedAt:        r.CreatedAt,
	}
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) listPending(w http.ResponseWriter, r *http.Request) {
	records, err := h.workflow.ListPending(r.Context())
	if err != nil {
		h.writeMappedError(w, r, "list_pending", err)
		return
	}
	items := make([]pendingItem, 0, len(records))
	for _, rec := range records {
		items = append(items, toPendingItem(rec))
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	id, req, ok := h.decision(w, r)
	if !ok {
		return
	}
	outcome, err := h.workflow.Approve(r.Context(), id, req.Notes)
	if err != nil {
		h.writeMappedError(w, r, "approve", err)
		return
	}
	writeJSON(w, http.StatusOK, decisionResponse{
		Success:        true,
		Message:        outcome.Message,
		Published:      outcome.Published,
		PublicationURL: outcome.PublicationURL,
	})
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	id, req, ok := h.decision(w, r)
	if !ok {
		return
	}
	if err := h.workflow.Reject(r.Context(), id, req.Notes); err != nil {
		h.writeMappedError(w, r, "reject", err)
		return
	}
	writeJSON(w, http.StatusOK, decisionResponse{Success: true, Message: "rejected"})
}

func (h *Handler) publish(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	outcome, err := h.workflow.RetryPublication(r.Context(), id)
	if err != nil {
		h.writeMappedError(w, r, "publish", err)
		return
	}
	writeJSON(w, http.StatusOK, decisionResponse{
		Success:        outcome.Published,
		Message:        outcome.Message,
		Published:      outcome.Published,
		PublicationURL: outcome.PublicationURL,
	})
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.workflow.Stats(r.Context())
	if err != nil {
		h.writeMappedError(w, r, "stats", err)
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{ApprovalStats: stats, Total: stats.Total()})
}

func (h *Handler) prompts(w http.ResponseWriter, r *http.Request) {
	if h.selector == nil {
		writeJSON(w, http.StatusOK, []prompt.Report{})
		return
	}
	reports, err := h.selector.Statistics(r.Context())
	if err != nil {
		h.writeMappedError(w, r, "prompts", err)
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

func (h *Handler) usageSummary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	service := strings.TrimSpace(q.Get("service"))
	if service == "" {
		service = h.usageService
	}

	to := usage.Day(h.now())
	if raw := q.Get("to"); raw != "" {
		parsed, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "to must be YYYY-MM-DD")
			return
		}
		to = parsed
	}
	from := to.AddDate(0, 0, -(defaultUsageDays - 1))
	if raw := q.Get("from"); raw != "" {
		parsed, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "from must be YYYY-MM-DD")
			return
		}
		from = parsed
	}
	if to.Before(from) {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "from must not be after to")
		return
	}

	summary, err := h.usage.Summarize(r.Context(), service, from, to)
	if err != nil {
		h.writeMappedError(w, r, "usage", err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) decision(w http.ResponseWriter, r *http.Request) (int64, decisionRequest, bool) {
	id, ok := h.pathID(w, r)
	if !ok {
		return 0, decisionRequest{}, false
	}
	var req decisionRequest
	if err := decodeOptionalBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return 0, decisionRequest{}, false
	}
	return id, req, true
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "INVALID_ID", fmt.Sprintf("invalid approval id %q", raw))
		return 0, false
	}
	return id, true
}

func (h *Handler) writeMappedError(w http.ResponseWriter, r *http.Request, operation string, err error) {
	status, code, msg := mapDomainError(err)
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed",
			"operation", operation,
			"request_id", requestIDFromContext(r.Context()),
			"error", err,
		)
	}
	writeError(w, status, code, msg)
}
