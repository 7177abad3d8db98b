package watchlist

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"animehub/internal/catalog"
	"animehub/internal/session"
	synchub "animehub/internal/sync"
	"animehub/pkg/models"
)

// Publisher receives watchlist change events.
type Publisher interface {
	Publish(ev synchub.WatchlistEvent)
}

type Handler struct {
	Stores  *Registry
	Catalog catalog.Source
	Hub     Publisher
	Logger  *zap.Logger
}

func NewHandler(stores *Registry, src catalog.Source, hub Publisher, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{Stores: stores, Catalog: src, Hub: hub, Logger: logger}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/watchlist", h.list)
	rg.GET("/watchlist/stats", h.stats)
	rg.GET("/watchlist/:mal_id", h.getOne)
	rg.POST("/watchlist", h.add)
	rg.PATCH("/watchlist/:mal_id", h.edit)
	rg.PUT("/watchlist", h.replace)
	rg.DELETE("/watchlist/:mal_id", h.remove)
	rg.DELETE("/watchlist", h.clear)
}

type addReq struct {
	MalID int `json:"mal_id"`
}

type editReq struct {
	Status         *string `json:"status"`
	PersonalRating *int    `json:"personal_rating"`
	ClearRating    bool    `json:"clear_rating"`
	Notes          *string `json:"notes"`
	Progress       *string `json:"progress"`
}

type entryReq struct {
	MalID          int    `json:"mal_id"`
	Title          string `json:"title"`
	Status         string `json:"status"`
	PersonalRating *int   `json:"personal_rating"`
	Notes          string `json:"notes"`
	Progress       string `json:"progress"`
}

type replaceReq struct {
	Items []entryReq `json:"items"`
}

func (h *Handler) add(c *gin.Context) {
	store, owner, release, ok := h.store(c)
	if !ok {
		return
	}
	defer release()

	var req addReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.MalID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "mal_id required"})
		return
	}

	entries, err := h.Catalog.Catalog()
	if err != nil {
		h.Logger.Error("load catalog", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "catalog unavailable"})
		return
	}
	anime, found := catalog.Lookup(entries, req.MalID)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "not in catalog"})
		return
	}

	res, err := store.Add(c.Request.Context(), anime.ID, anime.Title)
	if err != nil {
		h.writeError(c, err)
		return
	}

	if res == AlreadyPresent {
		c.JSON(http.StatusOK, gin.H{"result": res.String(), "mal_id": anime.ID})
		return
	}
	h.publish(synchub.WatchlistEvent{Type: synchub.EventAdd, Owner: owner, CatalogID: anime.ID, Status: string(models.StatusNotStarted)})
	saved, _ := store.Get(anime.ID)
	c.JSON(http.StatusCreated, gin.H{"result": res.String(), "item": saved})
}

func (h *Handler) edit(c *gin.Context) {
	store, owner, release, ok := h.store(c)
	if !ok {
		return
	}
	defer release()
	id, ok := malIDParam(c)
	if !ok {
		return
	}

	var req editReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	patch := models.WatchlistPatch{
		PersonalRating: req.PersonalRating,
		ClearRating:    req.ClearRating,
		Notes:          req.Notes,
		Progress:       req.Progress,
	}
	if req.Status != nil {
		st := normalizeStatus(*req.Status)
		patch.Status = &st
	}

	res, err := store.Edit(c.Request.Context(), id, patch)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if res == NotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found", "result": res.String()})
		return
	}

	saved, _ := store.Get(id)
	h.publish(synchub.WatchlistEvent{Type: synchub.EventUpdate, Owner: owner, CatalogID: id, Status: string(saved.Status)})
	c.JSON(http.StatusOK, gin.H{"result": res.String(), "item": saved})
}

func (h *Handler) replace(c *gin.Context) {
	store, owner, release, ok := h.store(c)
	if !ok {
		return
	}
	defer release()

	var req replaceReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	entries := make([]models.WatchlistEntry, 0, len(req.Items))
	for _, it := range req.Items {
		entries = append(entries, models.WatchlistEntry{
			CatalogID:      it.MalID,
			Title:          it.Title,
			Status:         normalizeStatus(it.Status),
			PersonalRating: it.PersonalRating,
			Notes:          it.Notes,
			Progress:       it.Progress,
		})
	}

	if c.Query("strict") == "true" {
		if err := Validate(entries); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	if err := store.BulkReplace(c.Request.Context(), entries); err != nil {
		h.writeError(c, err)
		return
	}
	h.publish(synchub.WatchlistEvent{Type: synchub.EventReplace, Owner: owner, Count: store.Len()})
	c.JSON(http.StatusOK, gin.H{"total": store.Len(), "items": store.Entries()})
}

func (h *Handler) remove(c *gin.Context) {
	store, owner, release, ok := h.store(c)
	if !ok {
		return
	}
	defer release()
	id, ok := malIDParam(c)
	if !ok {
		return
	}

	res, err := store.Remove(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if res == NotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found", "result": res.String()})
		return
	}

	h.publish(synchub.WatchlistEvent{Type: synchub.EventRemove, Owner: owner, CatalogID: id})
	c.JSON(http.StatusOK, gin.H{"result": res.String()})
}

func (h *Handler) clear(c *gin.Context) {
	store, owner, release, ok := h.store(c)
	if !ok {
		return
	}
	defer release()
	if err := store.Clear(c.Request.Context()); err != nil {
		h.writeError(c, err)
		return
	}
	h.publish(synchub.WatchlistEvent{Type: synchub.EventClear, Owner: owner})
	c.JSON(http.StatusOK, gin.H{"message": "cleared"})
}

func (h *Handler) list(c *gin.Context) {
	store, _, release, ok := h.store(c)
	if !ok {
		return
	}
	defer release()

	var status models.WatchStatus
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		st, valid := models.ParseWatchStatus(raw)
		if !valid {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status filter"})
			return
		}
		status = st
	}

	rows := store.Enrich(h.catalogOrEmpty())
	if status != "" {
		filtered := rows[:0]
		for _, r := range rows {
			if r.Status == status {
				filtered = append(filtered, r)
			}
		}
		rows = filtered
	}

	limit, offset := catalog.ClampPage(parseInt(c.Query("limit"), 20), parseInt(c.Query("offset"), 0))
	c.JSON(http.StatusOK, gin.H{
		"total":  len(rows),
		"limit":  limit,
		"offset": offset,
		"items":  catalog.Page(rows, limit, offset),
	})
}

func (h *Handler) getOne(c *gin.Context) {
	store, _, release, ok := h.store(c)
	if !ok {
		return
	}
	defer release()
	id, ok := malIDParam(c)
	if !ok {
		return
	}

	it, found := store.Get(id)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	rows := Enrich([]models.WatchlistEntry{it}, h.catalogOrEmpty())
	c.JSON(http.StatusOK, rows[0])
}

func (h *Handler) stats(c *gin.Context) {
	store, _, release, ok := h.store(c)
	if !ok {
		return
	}
	defer release()
	rows := store.Enrich(h.catalogOrEmpty())
	c.JSON(http.StatusOK, gin.H{
		"total":  len(rows),
		"status": catalog.CountBy(rows, byWatchStatus),
		"genres": catalog.CountBy(rows, byEnrichedGenre),
	})
}

// store acquires the caller's watchlist; release must be called when the
// request is done with it.
func (h *Handler) store(c *gin.Context) (*Store, string, func(), bool) {
	claims := session.MustGetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return nil, "", nil, false
	}
	s, release, err := h.Stores.Acquire(c.Request.Context(), claims.SessionID)
	if err != nil {
		h.Logger.Error("open watchlist", zap.String("owner", claims.SessionID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "watchlist unavailable"})
		return nil, "", nil, false
	}
	return s, claims.SessionID, release, true
}

// catalogOrEmpty lets watchlist reads degrade to unjoined rows when the
// catalog cannot be loaded.
func (h *Handler) catalogOrEmpty() []models.CatalogEntry {
	entries, err := h.Catalog.Catalog()
	if err != nil {
		h.Logger.Warn("catalog unavailable for join", zap.Error(err))
		return nil
	}
	return entries
}

// publish runs on the request goroutine after the commit, so a client's
// events go out in the order its requests completed.
func (h *Handler) publish(ev synchub.WatchlistEvent) {
	if h.Hub == nil {
		return
	}
	h.Hub.Publish(ev)
}

func (h *Handler) writeError(c *gin.Context, err error) {
	var verr *ValidationError
	var perr *PersistenceError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Reason.Error(), "mal_id": verr.CatalogID})
	case errors.As(err, &perr):
		h.Logger.Error("persist watchlist", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save failed"})
	default:
		h.Logger.Error("watchlist operation", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func byWatchStatus(e models.EnrichedEntry) []string { return []string{string(e.Status)} }

func byEnrichedGenre(e models.EnrichedEntry) []string { return e.Genres }

// normalizeStatus maps accepted spellings to a WatchStatus. Unknown values
// pass through unchanged so the store rejects them; empty stays empty.
func normalizeStatus(s string) models.WatchStatus {
	if st, ok := models.ParseWatchStatus(s); ok {
		return st
	}
	return models.WatchStatus(strings.TrimSpace(s))
}

func malIDParam(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(strings.TrimSpace(c.Param("mal_id")))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "mal_id must be a positive integer"})
		return 0, false
	}
	return id, true
}

func parseInt(s string, def int) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
