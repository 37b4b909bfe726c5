package api

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/openkaraoke/studio/internal/domain/entities"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

func intQuery(c *gin.Context, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func boolQuery(c *gin.Context, key string) bool {
	raw := c.Query(key)
	return raw == "true" || raw == "1"
}

func directionQuery(c *gin.Context, key string) entities.SortDirection {
	if c.Query(key) == string(entities.Ascending) {
		return entities.Ascending
	}
	return entities.Descending
}

func listSongsOptions(c *gin.Context) entities.ListSongsOptions {
	limit := intQuery(c, "limit", defaultLimit)
	if limit <= 0 || limit > maxLimit {
		limit = defaultLimit
	}
	return entities.ListSongsOptions{
		Query:         c.Query("q"),
		Offset:        intQuery(c, "offset", 0),
		Limit:         limit,
		SortBy:        c.DefaultQuery("sort_by", c.Query("sort")),
		Direction:     directionQuery(c, "direction"),
		GroupByArtist: boolQuery(c, "group_by_artist"),
	}
}

func listArtistsOptions(c *gin.Context) entities.ListArtistsOptions {
	limit := intQuery(c, "limit", defaultLimit)
	if limit <= 0 || limit > maxLimit {
		limit = defaultLimit
	}
	return entities.ListArtistsOptions{
		Search: c.Query("search"),
		Offset: intQuery(c, "offset", 0),
		Limit:  limit,
	}
}
