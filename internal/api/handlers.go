package api

import (
	"bytes"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sells-group/rankboard/internal/apperr"
	"github.com/sells-group/rankboard/internal/model"
	"github.com/sells-group/rankboard/internal/registry"
	"github.com/sells-group/rankboard/internal/store"
	"github.com/sells-group/rankboard/internal/syncer"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- apps ---

type appPayload struct {
	Name                string                  `json:"name"`
	Org                 string                  `json:"org"`
	Category            string                  `json:"category"`
	Description         string                  `json:"description"`
	Status              model.AppStatus         `json:"status"`
	ReleaseDate         string                  `json:"release_date"`
	ContactName         string                  `json:"contact_name"`
	TargetSystem        string                  `json:"target_system"`
	TargetUsers         string                  `json:"target_users"`
	ProblemStatement    string                  `json:"problem_statement"`
	EffectivenessType   model.EffectivenessType `json:"effectiveness_type"`
	EffectivenessMetric string                  `json:"effectiveness_metric"`
	CoverImageURL       string                  `json:"cover_image_url"`
	Metrics             model.AppMetrics        `json:"metrics"`
}

func (s *Server) handleListApps(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.AppFilter{
		Section:  model.Section(q.Get("section")),
		Status:   model.AppStatus(q.Get("status")),
		Category: q.Get("category"),
		Query:    q.Get("q"),
		Limit:    intParam(q.Get("limit")),
		Offset:   intParam(q.Get("offset")),
	}
	apps, err := s.store.ListApps(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, apps)
}

func (s *Server) handleGetApp(w http.ResponseWriter, r *http.Request) {
	app, err := s.store.GetApp(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

// handleCreateApp registers a group-section app directly; province apps
// only enter through submission approval.
func (s *Server) handleCreateApp(w http.ResponseWriter, r *http.Request) {
	var in appPayload
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	if in.Name == "" {
		writeError(w, r, apperr.Validationf("name", "name is required"))
		return
	}
	if in.Org == "" {
		writeError(w, r, apperr.Validationf("org", "org is required"))
		return
	}

	now := time.Now().UTC()
	app := &model.Application{
		ID:                  uuid.NewString(),
		Name:                in.Name,
		Org:                 in.Org,
		Section:             model.SectionGroup,
		Category:            in.Category,
		Description:         in.Description,
		Status:              in.Status,
		ContactName:         in.ContactName,
		TargetSystem:        in.TargetSystem,
		TargetUsers:         in.TargetUsers,
		ProblemStatement:    in.ProblemStatement,
		EffectivenessType:   in.EffectivenessType,
		EffectivenessMetric: in.EffectivenessMetric,
		CoverImageURL:       in.CoverImageURL,
		Metrics:             in.Metrics,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if app.Status == "" {
		app.Status = model.AppStatusAvailable
	}
	if in.ReleaseDate != "" {
		release, err := time.Parse("2006-01-02", in.ReleaseDate)
		if err != nil {
			writeError(w, r, apperr.Validationf("release_date", "must be YYYY-MM-DD"))
			return
		}
		app.ReleaseDate = release
	}

	if err := s.store.CreateApp(r.Context(), app); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, app)
}

func (s *Server) handleUpdateApp(w http.ResponseWriter, r *http.Request) {
	app, err := s.store.GetApp(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in appPayload
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	if in.Name == "" {
		writeError(w, r, apperr.Validationf("name", "name is required"))
		return
	}

	app.Name = in.Name
	if in.Org != "" {
		app.Org = in.Org
	}
	app.Category = in.Category
	app.Description = in.Description
	if in.Status != "" {
		app.Status = in.Status
	}
	app.ContactName = in.ContactName
	app.TargetSystem = in.TargetSystem
	app.TargetUsers = in.TargetUsers
	app.ProblemStatement = in.ProblemStatement
	if in.EffectivenessType != "" {
		app.EffectivenessType = in.EffectivenessType
	}
	app.EffectivenessMetric = in.EffectivenessMetric
	app.CoverImageURL = in.CoverImageURL
	app.Metrics = in.Metrics
	if in.ReleaseDate != "" {
		release, err := time.Parse("2006-01-02", in.ReleaseDate)
		if err != nil {
			writeError(w, r, apperr.Validationf("release_date", "must be YYYY-MM-DD"))
			return
		}
		app.ReleaseDate = release
	}
	app.UpdatedAt = time.Now().UTC()

	if err := s.store.UpdateApp(r.Context(), app); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

// --- participations ---

func (s *Server) handleListAppParticipations(w http.ResponseWriter, r *http.Request) {
	parts, err := s.registry.ListParticipationsByApp(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, parts)
}

func (s *Server) handleEnroll(w http.ResponseWriter, r *http.Request) {
	var in registry.ParticipationInput
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &in); err != nil {
			writeError(w, r, err)
			return
		}
	}
	in.AppID = chi.URLParam(r, "id")
	in.ConfigID = chi.URLParam(r, "config")

	part, err := s.registry.Enroll(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, part)
}

func (s *Server) handleUnenroll(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.Unenroll(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "config")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

// --- dimensions ---

func (s *Server) handleListDimensions(w http.ResponseWriter, r *http.Request) {
	dims, err := s.registry.ListDimensions(r.Context(), r.URL.Query().Get("active") == "true")
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dims)
}

func (s *Server) handleCreateDimension(w http.ResponseWriter, r *http.Request) {
	var in registry.DimensionInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	dim, err := s.registry.CreateDimension(r.Context(), in, operator(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, dim)
}

func (s *Server) handleUpdateDimension(w http.ResponseWriter, r *http.Request) {
	var patch registry.DimensionPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, r, err)
		return
	}
	dim, err := s.registry.UpdateDimension(r.Context(), chi.URLParam(r, "id"), patch, operator(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dim)
}

func (s *Server) handleDeleteDimension(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.DeleteDimension(r.Context(), chi.URLParam(r, "id"), operator(r)); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleDimensionLogs(w http.ResponseWriter, r *http.Request) {
	limit := intParam(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 50
	}
	logs, err := s.registry.ListDimensionLogs(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

// --- ranking configs ---

func (s *Server) handleListConfigs(w http.ResponseWriter, r *http.Request) {
	configs, err := s.registry.ListConfigs(r.Context(), r.URL.Query().Get("active") == "true")
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, configs)
}

func (s *Server) handleCreateConfig(w http.ResponseWriter, r *http.Request) {
	var in registry.ConfigInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	cfg, err := s.registry.CreateConfig(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, cfg)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.registry.GetConfig(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var patch registry.ConfigPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, r, err)
		return
	}
	cfg, err := s.registry.UpdateConfig(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleDeleteConfig(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.DeleteConfig(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

// --- rankings ---

type rankingResponse struct {
	ConfigID   string                `json:"config_id"`
	PeriodDate string                `json:"period_date,omitempty"`
	RunID      string                `json:"run_id,omitempty"`
	Entries    []model.SnapshotEntry `json:"entries"`
}

func (s *Server) handleGetRanking(w http.ResponseWriter, r *http.Request) {
	configID := chi.URLParam(r, "config")
	date := r.URL.Query().Get("date")
	ctx := r.Context()

	if _, err := s.registry.GetConfig(ctx, configID); err != nil {
		writeError(w, r, err)
		return
	}

	var entries []model.SnapshotEntry
	cached := false
	if date == "" {
		entries, cached = s.cache.GetLatest(ctx, configID)
	}
	if !cached {
		var err error
		entries, err = s.store.GetSnapshot(ctx, configID, date)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if date == "" {
			s.cache.SetLatest(ctx, configID, entries)
		}
	}

	resp := rankingResponse{ConfigID: configID, Entries: entries}
	if len(entries) > 0 {
		resp.PeriodDate = entries[0].PeriodDate
		resp.RunID = entries[0].RunID
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRankingDates(w http.ResponseWriter, r *http.Request) {
	configID := chi.URLParam(r, "config")
	if _, err := s.registry.GetConfig(r.Context(), configID); err != nil {
		writeError(w, r, err)
		return
	}
	dates, err := s.store.ListSnapshotDates(r.Context(), configID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dates)
}

func (s *Server) handleExportRanking(w http.ResponseWriter, r *http.Request) {
	configID := chi.URLParam(r, "config")
	date := r.URL.Query().Get("date")

	// Render to a buffer first so failures still produce a clean error
	// response instead of a truncated workbook.
	var buf bytes.Buffer
	if err := s.exporter.WriteReport(r.Context(), &buf, []string{configID}, date); err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="ranking-`+configID+`.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// --- submissions ---

func (s *Server) handleCreateSubmission(w http.ResponseWriter, r *http.Request) {
	var in model.Submission
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	sub, err := s.pipeline.Submit(r.Context(), &in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

func (s *Server) handleListSubmissions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	subs, err := s.pipeline.List(r.Context(), store.SubmissionFilter{
		Status: model.SubmissionStatus(q.Get("status")),
		Limit:  intParam(q.Get("limit")),
		Offset: intParam(q.Get("offset")),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, subs)
}

func (s *Server) handleGetSubmission(w http.ResponseWriter, r *http.Request) {
	sub, err := s.pipeline.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (s *Server) handleApproveSubmission(w http.ResponseWriter, r *http.Request) {
	app, err := s.pipeline.Approve(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

func (s *Server) handleRejectSubmission(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Reason string `json:"reason"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.pipeline.Reject(r.Context(), chi.URLParam(r, "id"), in.Reason); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

// --- operations ---

type syncResponse struct {
	UpdatedCount int             `json:"updated_count"`
	Results      []syncer.Result `json:"results"`
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	results, err := s.syncer.SyncAll(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := syncResponse{Results: results}
	for _, res := range results {
		resp.UpdatedCount += res.UpdatedCount
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	overview, err := s.stats.Collect(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

func intParam(v string) int {
	n, _ := strconv.Atoi(v)
	return n
}

// operator resolves the acting admin identity for audit rows.
func operator(r *http.Request) string {
	if v := r.Header.Get("X-Operator"); v != "" {
		return v
	}
	return "system"
}
