package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/Sternrassler/kitsu-catalog/pkg/catalog"
	"github.com/Sternrassler/kitsu-catalog/pkg/client"
	"github.com/Sternrassler/kitsu-catalog/pkg/pagination"
	"github.com/gin-gonic/gin"
)

// Relation names accepted in /media/:media/:slug/:relation.
const (
	RelationCharacters = "characters"
	RelationFranchises = "franchises"
)

type pageResponse struct {
	Items  []catalog.Entity `json:"items"`
	Offset int              `json:"offset"`
	Next   *int             `json:"next"`
	Total  int              `json:"total,omitempty"`
}

type recordResponse struct {
	Data     catalog.Entity   `json:"data"`
	Included []catalog.Entity `json:"included"`
	Preview  *client.Preview  `json:"preview,omitempty"`
}

func newPageResponse(offset catalog.Cursor, page *catalog.Page, items []catalog.Entity) pageResponse {
	resp := pageResponse{
		Items:  items,
		Offset: offset.Int(),
		Total:  page.Total,
	}
	if resp.Items == nil {
		resp.Items = []catalog.Entity{}
	}
	if page.Next != nil {
		n := page.Next.Int()
		resp.Next = &n
	}
	return resp
}

func (s *Server) search(c *gin.Context) {
	media, ok := mediaParam(c)
	if !ok {
		return
	}
	text := strings.TrimSpace(c.Query("q"))
	if text == "" {
		badRequest(c, "q is required")
		return
	}
	offset, ok := offsetParam(c)
	if !ok {
		return
	}

	q := catalog.Search(media, text)
	page, err := s.catalog.FetchPage(c.Request.Context(), q, offset)
	if err != nil {
		writeError(c, err)
		return
	}

	items := page.Items
	if c.Query("rank") == "true" {
		items = catalog.RankByTitle(items, text)
	}
	c.JSON(http.StatusOK, newPageResponse(offset, page, items))
}

func (s *Server) trending(c *gin.Context) {
	media, ok := mediaParam(c)
	if !ok {
		return
	}

	page, err := s.catalog.FetchPage(c.Request.Context(), catalog.Trending(media), 0)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newPageResponse(0, page, page.Items))
}

func (s *Server) record(c *gin.Context) {
	media, ok := mediaParam(c)
	if !ok {
		return
	}
	s.writeRecord(c, catalog.BySlug(media, c.Param("slug")))
}

func (s *Server) recordByID(c *gin.Context) {
	media, ok := mediaParam(c)
	if !ok {
		return
	}
	s.writeRecord(c, catalog.ByID(media, c.Param("id")))
}

// writeRecord answers with one record and, with ?preview=true, the first
// few of its characters and franchises.
func (s *Server) writeRecord(c *gin.Context, q catalog.Query) {
	ctx := c.Request.Context()
	rec, err := s.catalog.FetchRecord(ctx, q)
	if err != nil {
		writeError(c, err)
		return
	}

	resp := recordResponse{Data: rec.Entity, Included: rec.Included}
	if resp.Included == nil {
		resp.Included = []catalog.Entity{}
	}
	if c.Query("preview") == "true" {
		resp.Preview, err = client.FetchPreview(ctx, s.catalog, q.Media, rec.Entity.ID)
		if err != nil {
			writeError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) relation(c *gin.Context) {
	media, ok := mediaParam(c)
	if !ok {
		return
	}
	q, err := relationQuery(media, c.Param("slug"), c.Param("relation"))
	if err != nil {
		notFound(c, err.Error())
		return
	}
	offset, ok := offsetParam(c)
	if !ok {
		return
	}

	page, err := s.catalog.FetchPage(c.Request.Context(), q, offset)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newPageResponse(offset, page, catalog.ViewItems(q, page.Items)))
}

// relationQuery maps a relation path segment to its collection query.
func relationQuery(media catalog.MediaType, slug, relation string) (catalog.Query, error) {
	switch relation {
	case RelationCharacters:
		return catalog.Characters(media, slug), nil
	case RelationFranchises:
		return catalog.Franchises(media, slug), nil
	default:
		return catalog.Query{}, fmt.Errorf("unknown relation %q", relation)
	}
}

func mediaParam(c *gin.Context) (catalog.MediaType, bool) {
	media, err := catalog.ParseMediaType(c.Param("media"))
	if err != nil {
		badRequest(c, err.Error())
		return "", false
	}
	return media, true
}

func offsetParam(c *gin.Context) (catalog.Cursor, bool) {
	raw := c.Query("offset")
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		badRequest(c, "offset must be a non-negative integer")
		return 0, false
	}
	return catalog.Cursor(n), true
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg})
}

func notFound(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": msg})
}

func writeError(c *gin.Context, err error) {
	_ = c.Error(err)
	body := gin.H{"error": err.Error()}
	if class := errorClass(err); class != "" {
		body["class"] = class
	}
	c.AbortWithStatusJSON(statusOf(err), body)
}

// statusOf maps a fetch failure to the status returned to our caller.
func statusOf(err error) int {
	var fe *client.FetchError
	if errors.As(err, &fe) {
		switch fe.Class {
		case client.ErrorClassNotFound:
			return http.StatusNotFound
		case client.ErrorClassInvalidQuery, client.ErrorClassClient:
			return http.StatusBadRequest
		case client.ErrorClassRateLimit:
			return http.StatusTooManyRequests
		case client.ErrorClassNetwork:
			if errors.Is(err, context.DeadlineExceeded) {
				return http.StatusGatewayTimeout
			}
		}
		return http.StatusBadGateway
	}

	switch {
	case errors.Is(err, catalog.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, catalog.ErrInvalidQuery):
		return http.StatusBadRequest
	case errors.Is(err, pagination.ErrLoadTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func errorClass(err error) string {
	var fe *client.FetchError
	if errors.As(err, &fe) {
		return string(fe.Class)
	}
	if errors.Is(err, pagination.ErrLoadTimeout) {
		return "timeout"
	}
	return ""
}
