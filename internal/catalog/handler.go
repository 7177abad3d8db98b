package catalog

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"animehub/pkg/models"
)

// Source yields the current catalog.
type Source interface {
	Catalog() ([]models.CatalogEntry, error)
}

// FileSource reads the catalog at Path through a Cache.
type FileSource struct {
	Path  string
	Cache *Cache
}

func (s FileSource) Catalog() ([]models.CatalogEntry, error) {
	return s.Cache.Get(s.Path)
}

type Handler struct {
	Source Source
	Logger *zap.Logger
}

func NewHandler(src Source, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{Source: src, Logger: logger}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.list)        // GET /anime
	rg.GET("/:id", h.getByID) // GET /anime/:id
}

func (h *Handler) list(c *gin.Context) {
	q, err := ParseQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entries, ok := h.catalog(c)
	if !ok {
		return
	}

	limit, offset := ClampPage(parseInt(c.Query("limit"), 20), parseInt(c.Query("offset"), 0))
	view := Explore(entries, q, ClampBins(parseInt(c.Query("bins"), DefaultBins)))

	c.JSON(http.StatusOK, gin.H{
		"total":           len(view.Rows),
		"limit":           limit,
		"offset":          offset,
		"items":           Page(view.Rows, limit, offset),
		"counts":          view.Counts,
		"score_histogram": view.ScoreHistogram,
	})
}

func (h *Handler) getByID(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id must be an integer"})
		return
	}

	entries, ok := h.catalog(c)
	if !ok {
		return
	}
	e, found := Lookup(entries, id)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, e)
}

func (h *Handler) catalog(c *gin.Context) ([]models.CatalogEntry, bool) {
	entries, err := h.Source.Catalog()
	if err != nil {
		h.Logger.Error("load catalog", zap.Error(err))
		status := http.StatusInternalServerError
		if errors.Is(err, ErrNotFound) {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"error": "catalog unavailable"})
		return nil, false
	}
	return entries, true
}

// ParseQuery reads a predicate set from query parameters. List parameters
// accept repeats (types=TV&types=Movie) or a comma list (types=TV,Movie).
func ParseQuery(c *gin.Context) (Query, error) {
	q := Query{
		Q:       c.Query("q"),
		Types:   listParam(c, "types"),
		Sources: listParam(c, "sources"),
		Genres:  listParam(c, "genres"),
	}

	minRaw, maxRaw := c.Query("score_min"), c.Query("score_max")
	if minRaw != "" || maxRaw != "" {
		r := Range{Min: 0, Max: 10}
		var err error
		if minRaw != "" {
			if r.Min, err = strconv.ParseFloat(minRaw, 64); err != nil {
				return Query{}, errors.New("score_min must be a number")
			}
		}
		if maxRaw != "" {
			if r.Max, err = strconv.ParseFloat(maxRaw, 64); err != nil {
				return Query{}, errors.New("score_max must be a number")
			}
		}
		q.ScoreRange = &r
	}

	if raw := c.Query("max_episodes"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return Query{}, errors.New("max_episodes must be an integer")
		}
		q.MaxEpisodes = &n
	}
	return q, nil
}

func listParam(c *gin.Context, key string) []string {
	var out []string
	for _, v := range c.QueryArray(key) {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func parseInt(s string, def int) int {
	if strings.TrimSpace(s) == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
