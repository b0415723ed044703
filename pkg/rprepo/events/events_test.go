package events

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/vrrprepo/rprepo/pkg/rprepo/api"
	"github.com/vrrprepo/rprepo/pkg/rprepo/models"
	"github.com/vrrprepo/rprepo/pkg/rprepo/schedules"
	"github.com/vrrprepo/rprepo/pkg/rprepo/testdb"
)

var day = 24 * time.Hour

func intPtr(n int) *int { return &n }

func TestExpandOneShot(t *testing.T) {
	start := time.Date(2026, 4, 10, 20, 0, 0, 0, time.UTC)
	from := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	r := models.Runtime{ProjectID: 1, Start: start}

	assert.Len(t, Expand(r, "p", "", from, from.Add(30*day)), 1)
	assert.Empty(t, Expand(r, "p", "", from, start))
	assert.Empty(t, Expand(r, "p", "", start.Add(time.Second), start.Add(day)))
}

func TestExpandWeekly(t *testing.T) {
	start := time.Date(2026, 1, 3, 19, 0, 0, 0, time.UTC)
	end := start.Add(3 * time.Hour)
	r := models.Runtime{ProjectID: 1, Start: start, End: &end, RepeatDays: intPtr(7)}

	from := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(14 * day)
	got := Expand(r, "p", "", from, to)

	require.Len(t, got, 2)
	assert.Equal(t, time.Date(2026, 2, 7, 19, 0, 0, 0, time.UTC), got[0].Start)
	assert.Equal(t, time.Date(2026, 2, 14, 19, 0, 0, 0, time.UTC), got[1].Start)
	assert.Equal(t, got[0].Start.Add(3*time.Hour), *got[0].End)
	for _, o := range got {
		assert.False(t, o.Start.Before(from))
		assert.True(t, o.Start.Before(to))
	}
}

func TestExpandStartsOnBoundary(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r := models.Runtime{Start: start, RepeatDays: intPtr(1)}

	got := Expand(r, "p", "", start.Add(2*day), start.Add(4*day))
	require.Len(t, got, 2)
	assert.Equal(t, start.Add(2*day), got[0].Start)
}

func seed(t *testing.T, db *gorm.DB) {
	t.Helper()
	harbor := models.Project{Name: "Harbor", Status: models.StatusActive}
	vale := models.Project{Name: "Vale", Status: models.StatusHiatus}
	require.NoError(t, db.Create(&harbor).Error)
	require.NoError(t, db.Create(&vale).Error)
	db.Create(&models.ProjectTag{ProjectID: harbor.ID, Tag: "cyberpunk"})

	start := time.Date(2026, 6, 6, 20, 0, 0, 0, time.UTC)
	db.Create(&models.Runtime{ProjectID: harbor.ID, Start: start, RepeatDays: intPtr(7)})
	db.Create(&models.Runtime{ProjectID: vale.ID, Start: start})
	db.Create(&models.Runtime{ProjectID: vale.ID, Start: start.Add(60 * day)})
}

func TestFind(t *testing.T) {
	db := testdb.New(t)
	seed(t, db)
	ctx := context.Background()
	from := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	got, err := Find(ctx, db, Query{From: from, To: from.Add(14 * day)})
	require.NoError(t, err)
	require.Len(t, got, 3)
	// same start: ordered by project name
	assert.Equal(t, "Harbor", got[0].ProjectName)
	assert.Equal(t, "Vale", got[1].ProjectName)
	assert.Equal(t, "Harbor", got[2].ProjectName)

	got, err = Find(ctx, db, Query{From: from, To: from.Add(14 * day), ActiveOnly: true})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = Find(ctx, db, Query{From: from, To: from.Add(14 * day), Tags: []string{"cyberpunk"}})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	_, err = Find(ctx, db, Query{From: from, To: from})
	assert.True(t, api.IsName(err, api.NameValidation))
	_, err = Find(ctx, db, Query{From: from, To: from.Add(400 * day)})
	assert.True(t, api.IsName(err, api.NameValidation))
}

func TestFindRuntimeSavedWithOffset(t *testing.T) {
	db := testdb.New(t)
	ctx := context.Background()
	project := models.Project{Name: "Lantern Court", Status: models.StatusActive}
	require.NoError(t, db.Create(&project).Error)

	// 19:00 at +02:00 is 17:00Z, inside a window that closes at 18:00Z
	start := time.Date(2026, 3, 7, 19, 0, 0, 0, time.FixedZone("EET", 2*60*60))
	end := start.Add(2 * time.Hour)
	_, err := schedules.Save(ctx, db, project.ID, schedules.Input{
		Type:     models.ScheduleOneShot,
		Runtimes: []schedules.RuntimeInput{{Start: start, End: &end}},
	})
	require.NoError(t, err)

	from := time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC)
	got, err := Find(ctx, db, Query{From: from, To: from.Add(18 * time.Hour)})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Start.Equal(start))
	require.NotNil(t, got[0].End)
	assert.True(t, got[0].End.Equal(end))

	got, err = Find(ctx, db, Query{From: from, To: from.Add(17 * time.Hour)})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestEventsEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := testdb.New(t)
	seed(t, db)
	router := gin.New()
	NewHandler(db).RegisterRoutes(router.Group("/events"))

	get := func(query string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/events?"+query, nil))
		return w
	}

	w := get("start_date=2026-06-01&end_date=2026-06-15&limit=2")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Data struct {
			Data       []Occurrence `json:"data"`
			HasNext    bool         `json:"hasNext"`
			NextCursor int          `json:"nextCursor"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Data.Data, 2)
	assert.True(t, resp.Data.HasNext)
	assert.Equal(t, 2, resp.Data.NextCursor)

	assert.Equal(t, http.StatusBadRequest, get("end_date=2026-06-15").Code)
	assert.Equal(t, http.StatusBadRequest, get("start_date=June&end_date=2026-06-15").Code)
	assert.Equal(t, http.StatusOK, get("start_date=2026-06-01T00:00:00Z&end_date=2026-06-02T00:00:00Z").Code)
}
