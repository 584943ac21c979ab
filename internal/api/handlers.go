package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jmylchreest/coursesched/internal/store"
	"github.com/jmylchreest/coursesched/pkg/catalog"
	"github.com/jmylchreest/coursesched/pkg/timeparse"
)

// DefaultEveningAfter is the start time an evening query uses when none is
// given.
var DefaultEveningAfter = timeparse.NewClock(17, 0)

// Handler serves read-only course queries.
type Handler struct {
	store *store.Store
}

// NewHandler creates a Handler.
func NewHandler(s *store.Store) *Handler {
	return &Handler{store: s}
}

// Health reports liveness and database reachability.
// GET /healthz
func (h *Handler) Health(c *gin.Context) {
	if err := h.store.Ping(c.Request.Context()); err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "database": "down"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "database": "up"})
}

// Departments lists department prefixes that have scheduled courses.
// GET /api/v1/departments
func (h *Handler) Departments(c *gin.Context) {
	prefixes, err := h.store.Departments(c.Request.Context())
	if err != nil {
		internalError(c, err)
		return
	}
	ok(c, prefixes, len(prefixes))
}

// DepartmentCourses lists a department's courses. ?in_person=true limits
// the result to on-campus courses with schedules.
// GET /api/v1/departments/:prefix/courses
func (h *Handler) DepartmentCourses(c *gin.Context) {
	prefix, valid := departmentParam(c)
	if !valid {
		return
	}
	inPerson, err := boolQuery(c, "in_person")
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	var courses []store.Course
	if inPerson {
		courses, err = h.store.InPersonByDepartment(c.Request.Context(), prefix)
	} else {
		courses, err = h.store.CoursesByDepartment(c.Request.Context(), prefix)
	}
	if err != nil {
		internalError(c, err)
		return
	}
	ok(c, courses, len(courses))
}

// Evening lists on-campus courses meeting on any of the requested days at
// or after a start time.
// GET /api/v1/departments/:prefix/evening?day=Tuesday&day=Friday&after=17:00&summary=true
func (h *Handler) Evening(c *gin.Context) {
	prefix, valid := departmentParam(c)
	if !valid {
		return
	}
	days := splitDays(c.QueryArray("day"))
	if len(days) == 0 {
		fail(c, http.StatusBadRequest, store.ErrNoDays.Error())
		return
	}
	after := DefaultEveningAfter
	if raw := c.Query("after"); raw != "" {
		clock, parsed := timeparse.ParseTime(raw)
		if !parsed {
			fail(c, http.StatusBadRequest, "invalid after time: "+raw)
			return
		}
		after = clock
	}
	summary, err := boolQuery(c, "summary")
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx := c.Request.Context()
	if summary {
		result, err := h.store.EveningSummary(ctx, prefix, days, after)
		if err != nil {
			h.queryError(c, err)
			return
		}
		ok(c, result, len(result))
		return
	}
	result, err := h.store.EveningByDays(ctx, prefix, days, after)
	if err != nil {
		h.queryError(c, err)
		return
	}
	ok(c, result, len(result))
}

// Course returns one course by code, e.g. /api/v1/courses/HOSF%209489.
// GET /api/v1/courses/:code
func (h *Handler) Course(c *gin.Context) {
	code := strings.ToUpper(strings.TrimSpace(c.Param("code")))
	if _, _, valid := catalog.SplitCourseCode(code); !valid {
		fail(c, http.StatusBadRequest, "invalid course code: "+code)
		return
	}
	course, err := h.store.CourseByCode(c.Request.Context(), code)
	if err != nil {
		h.queryError(c, err)
		return
	}
	ok(c, course, 1)
}

func (h *Handler) queryError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		fail(c, http.StatusNotFound, "not found")
	case errors.Is(err, store.ErrNoDays):
		fail(c, http.StatusBadRequest, err.Error())
	default:
		internalError(c, err)
	}
}

func departmentParam(c *gin.Context) (string, bool) {
	prefix := strings.ToUpper(strings.TrimSpace(c.Param("prefix")))
	if len(prefix) == 0 || len(prefix) > 4 {
		fail(c, http.StatusBadRequest, "department prefix must be 1 to 4 characters")
		return "", false
	}
	return prefix, true
}

func boolQuery(c *gin.Context, key string) (bool, error) {
	raw := c.Query(key)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, errors.New("invalid " + key + ": " + raw)
	}
	return v, nil
}

// splitDays accepts repeated ?day= values and comma-separated lists.
func splitDays(values []string) []string {
	var out []string
	for _, v := range values {
		for _, d := range strings.Split(v, ",") {
			if d = strings.TrimSpace(d); d != "" {
				out = append(out, d)
			}
		}
	}
	return out
}
