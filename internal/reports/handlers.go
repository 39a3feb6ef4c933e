package reports

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/riddle015/riverhacks/internal/apperr"
	"github.com/riddle015/riverhacks/internal/geo"
	"github.com/riddle015/riverhacks/internal/logger"
	"github.com/riddle015/riverhacks/internal/respond"
	"github.com/riddle015/riverhacks/internal/utils"
)

// Advisor produces advisory duplicate/context output for a submission. It
// never fails the request; a nil result is omitted.
type Advisor interface {
	Advise(ctx context.Context, description string, p geo.Point, exclude *uuid.UUID) interface{}
}

type Handler struct {
	store         *Store
	advisor       Advisor
	adviseTimeout time.Duration
	log           *logger.Logger
}

func NewHandler(store *Store, advisor Advisor, adviseTimeout time.Duration, log *logger.Logger) *Handler {
	if adviseTimeout <= 0 {
		adviseTimeout = 5 * time.Second
	}
	return &Handler{store: store, advisor: advisor, adviseTimeout: adviseTimeout, log: logger.OrNop(log)}
}

type createReportRequest struct {
	CategoryID    string   `json:"category_id"`
	SubcategoryID *int     `json:"subcategory_id"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Severity      int      `json:"severity"`
	Longitude     *float64 `json:"longitude"`
	Latitude      *float64 `json:"latitude"`
	Address       string   `json:"address"`
}

// createReportResponse is the report object with an "advisory" member appended.
type createReportResponse struct {
	report   *Report
	advisory interface{}
}

func (c createReportResponse) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(c.report)
	if err != nil || c.advisory == nil {
		return base, err
	}
	adv, err := json.Marshal(c.advisory)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(base)+len(adv)+13)
	out = append(out, base[:len(base)-1]...)
	out = append(out, `,"advisory":`...)
	out = append(out, adv...)
	return append(out, '}'), nil
}

func (h *Handler) CreateReport(w http.ResponseWriter, r *http.Request) {
	var req createReportRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, err)
		return
	}
	if req.Longitude == nil || req.Latitude == nil {
		respond.Error(w, apperr.Validation("missing required fields: longitude, latitude"))
		return
	}

	report, err := h.store.CreateReport(r.Context(), CreateInput{
		OwnerID:       utils.OptionalUserID(r.Context()),
		CategoryID:    req.CategoryID,
		SubcategoryID: req.SubcategoryID,
		Title:         req.Title,
		Description:   req.Description,
		Severity:      req.Severity,
		Longitude:     *req.Longitude,
		Latitude:      *req.Latitude,
		Address:       req.Address,
	})
	if err != nil {
		respond.Error(w, err)
		return
	}

	resp := createReportResponse{report: report}
	if h.advisor != nil {
		ctx, cancel := context.WithTimeout(r.Context(), h.adviseTimeout)
		resp.advisory = h.advisor.Advise(ctx, report.Description, report.Location, &report.ID)
		cancel()
	}
	respond.JSON(w, http.StatusCreated, resp)
}

type checkDuplicatesRequest struct {
	Description string   `json:"description"`
	Longitude   *float64 `json:"longitude"`
	Latitude    *float64 `json:"latitude"`
}

// CheckDuplicates runs the advisor without creating anything.
func (h *Handler) CheckDuplicates(w http.ResponseWriter, r *http.Request) {
	var req checkDuplicatesRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, err)
		return
	}
	if strings.TrimSpace(req.Description) == "" || req.Longitude == nil || req.Latitude == nil {
		respond.Error(w, apperr.Validation("description, longitude and latitude are required"))
		return
	}
	pt, err := geo.NewPoint(*req.Longitude, *req.Latitude)
	if err != nil {
		respond.Error(w, err)
		return
	}
	if h.advisor == nil {
		respond.JSON(w, http.StatusOK, map[string]interface{}{})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.adviseTimeout)
	defer cancel()
	respond.JSON(w, http.StatusOK, h.advisor.Advise(ctx, req.Description, pt, nil))
}

func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.store.GetReport(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, report)
}

func (h *Handler) ListReports(w http.ResponseWriter, r *http.Request) {
	opts := ListOptions{}
	if owner := strings.TrimSpace(r.URL.Query().Get("user_id")); owner != "" {
		opts.OwnerID = &owner
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			respond.Error(w, apperr.Validation("limit must be a positive integer"))
			return
		}
		opts.Limit = n
	}

	reports, err := h.store.ListReports(r.Context(), opts)
	if err != nil {
		respond.Error(w, err)
		return
	}
	if reports == nil {
		reports = []Report{}
	}
	respond.JSON(w, http.StatusOK, reports)
}

func (h *Handler) DeleteReport(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteReport(r.Context(), chi.URLParam(r, "id")); err != nil {
		respond.Error(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type appendUpdateRequest struct {
	Status         string  `json:"status_change"`
	StatusAlias    string  `json:"status"`
	Comment        string  `json:"comment"`
	ParentUpdateID *string `json:"parent_update_id"`
}

func (h *Handler) AppendUpdate(w http.ResponseWriter, r *http.Request) {
	var req appendUpdateRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, err)
		return
	}
	status := req.Status
	if status == "" {
		status = req.StatusAlias
	}

	in := UpdateInput{
		ActorID: utils.OptionalUserID(r.Context()),
		Status:  status,
		Comment: req.Comment,
	}
	if req.ParentUpdateID != nil && *req.ParentUpdateID != "" {
		pid, err := uuid.Parse(*req.ParentUpdateID)
		if err != nil {
			respond.Error(w, apperr.Validation("parent_update_id must be a UUID"))
			return
		}
		in.ParentUpdateID = &pid
	}

	upd, err := h.store.AppendUpdate(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusCreated, upd)
}

func (h *Handler) ListUpdates(w http.ResponseWriter, r *http.Request) {
	updates, err := h.store.ListUpdates(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, err)
		return
	}
	if updates == nil {
		updates = []ReportUpdate{}
	}
	respond.JSON(w, http.StatusOK, updates)
}

type castVoteRequest struct {
	VoteType string `json:"vote_type"`
	Comment  string `json:"comment"`
}

func (h *Handler) CastVote(w http.ResponseWriter, r *http.Request) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		respond.Error(w, apperr.Unauthorized("authentication required to vote"))
		return
	}
	var req castVoteRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, err)
		return
	}
	vote, err := h.store.CastVote(r.Context(), chi.URLParam(r, "id"), userID, req.VoteType, req.Comment)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, vote)
}

func (h *Handler) VoteSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.store.VoteSummary(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, sum)
}

func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.store.ListCategories(r.Context())
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, cats)
}
