package handler

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/attendance-api/internal/service"
	appErrors "github.com/noah-isme/attendance-api/pkg/errors"
	"github.com/noah-isme/attendance-api/pkg/istdate"
)

// listQuery collects comma-separated and repeated values of the given keys.
func listQuery(c *gin.Context, keys ...string) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, key := range keys {
		for _, raw := range c.QueryArray(key) {
			for _, part := range strings.Split(raw, ",") {
				part = strings.TrimSpace(part)
				if part == "" {
					continue
				}
				if _, dup := seen[part]; dup {
					continue
				}
				seen[part] = struct{}{}
				out = append(out, part)
			}
		}
	}
	return out
}

// parseStatsQuery reads the batch selection and date range shared by the
// stats, export and report endpoints. Explicit dates win over allDates, which
// wins over preset. Without any of them the service defaults to today.
func parseStatsQuery(c *gin.Context) (service.StatsQuery, error) {
	q := service.StatsQuery{
		BatchIDs: listQuery(c, "batchId", "batchIds"),
		Sort:     strings.TrimSpace(c.Query("sort")),
	}

	deptIDs := listQuery(c, "deptIds")
	if !(len(deptIDs) == 1 && strings.EqualFold(deptIDs[0], "ALL")) {
		q.DepartmentIDs = deptIDs
	}

	for _, raw := range listQuery(c, "batchYears") {
		year, err := strconv.Atoi(raw)
		if err != nil || year <= 0 {
			return q, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid batch year %q", raw))
		}
		q.Years = append(q.Years, year)
	}

	start := strings.TrimSpace(c.Query("startDate"))
	end := strings.TrimSpace(c.Query("endDate"))
	switch {
	case start != "" || end != "":
		if start == "" {
			start = end
		}
		if end == "" {
			end = start
		}
		rng, err := istdate.NewRange(start, end)
		if err != nil {
			return q, appErrors.Wrap(err, appErrors.ErrInvalidDate.Code, appErrors.ErrInvalidDate.Status, "startDate and endDate must be YYYY-MM-DD")
		}
		q.Range = rng
	case isTruthy(c.Query("allDates")):
		q.Range = istdate.Range{All: true}
	case c.Query("preset") != "":
		preset, err := istdate.ParsePreset(c.Query("preset"))
		if err != nil {
			return q, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "preset must be one of today, thisWeek, thisMonth, all")
		}
		q.Range = istdate.ResolvePresetNow(preset)
	}
	return q, nil
}

func isTruthy(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "1":
		return true
	}
	return false
}
