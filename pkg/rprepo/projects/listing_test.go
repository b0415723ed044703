package projects

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/vrrprepo/rprepo/pkg/rprepo/api"
	"github.com/vrrprepo/rprepo/pkg/rprepo/models"
	"github.com/vrrprepo/rprepo/pkg/rprepo/pagination"
	"github.com/vrrprepo/rprepo/pkg/rprepo/testdb"
)

type seedProject struct {
	name   string
	status models.ProjectStatus
	tags   []string
}

var catalog = []seedProject{
	{"Neon Harbor", models.StatusActive, []string{"cyberpunk", "city"}},
	{"Ashen Vale", models.StatusHiatus, []string{"fantasy"}},
	{"Neon Harbour", models.StatusUpcoming, []string{"cyberpunk"}},
	{"Starfall Academy", models.StatusActive, []string{"scifi", "school", "city"}},
}

// seedCatalog inserts catalog with increasing created_at and returns ids by name
func seedCatalog(t *testing.T, db *gorm.DB) map[string]uint {
	t.Helper()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	ids := make(map[string]uint)
	for i, s := range catalog {
		p := models.Project{Name: s.name, Status: s.status, CreatedAt: base.Add(time.Duration(i) * time.Hour)}
		require.NoError(t, db.Create(&p).Error)
		require.NoError(t, replaceTags(db, p.ID, s.tags))
		ids[s.name] = p.ID
	}
	return ids
}

func names(page pagination.Page[models.Project]) []string {
	out := make([]string, len(page.Data))
	for i, p := range page.Data {
		out[i] = p.Name
	}
	return out
}

func list(t *testing.T, db *gorm.DB, p ListParams) pagination.Page[models.Project] {
	t.Helper()
	if p.Limit == 0 {
		p.Limit = pagination.MaxLimit
	}
	if p.SortBy == "" {
		p.SortBy = "name"
	}
	page, err := List(context.Background(), db, p)
	require.NoError(t, err)
	return page
}

func TestListDefaultOrderAndPaging(t *testing.T) {
	db := testdb.New(t)
	seedCatalog(t, db)

	page := list(t, db, ListParams{Params: pagination.Params{Start: 0, Limit: 2}, Asc: true})
	assert.Equal(t, []string{"Ashen Vale", "Neon Harbor"}, names(page))
	assert.True(t, page.HasNext)
	assert.Equal(t, 2, page.NextCursor)

	page = list(t, db, ListParams{Params: pagination.Params{Start: 2, Limit: 2}, Asc: true})
	assert.Equal(t, []string{"Neon Harbour", "Starfall Academy"}, names(page))
	assert.False(t, page.HasNext)
	assert.Equal(t, 4, page.NextCursor)

	page = list(t, db, ListParams{Params: pagination.Params{Start: 4, Limit: 2}, Asc: true})
	assert.Empty(t, page.Data)
	assert.False(t, page.HasNext)
}

func TestListSortByColumnWithTieBreak(t *testing.T) {
	db := testdb.New(t)
	seedCatalog(t, db)

	page := list(t, db, ListParams{SortBy: "status", Asc: false})
	assert.Equal(t, []string{"Neon Harbour", "Ashen Vale", "Neon Harbor", "Starfall Academy"}, names(page))

	page = list(t, db, ListParams{SortBy: "createdAt", Asc: false})
	assert.Equal(t, []string{"Starfall Academy", "Neon Harbour", "Ashen Vale", "Neon Harbor"}, names(page))
}

func TestListTagFilterIsSuperset(t *testing.T) {
	db := testdb.New(t)
	seedCatalog(t, db)

	page := list(t, db, ListParams{Asc: true, Tags: []string{"cyberpunk", "city"}})
	assert.Equal(t, []string{"Neon Harbor"}, names(page))

	page = list(t, db, ListParams{Asc: true, Tags: []string{"city"}})
	assert.Equal(t, []string{"Neon Harbor", "Starfall Academy"}, names(page))

	// set membership, not substring
	page = list(t, db, ListParams{Asc: true, Tags: []string{"cyber"}})
	assert.Empty(t, page.Data)

	for _, p := range list(t, db, ListParams{Asc: true, Tags: []string{"city"}}).Data {
		assert.Subset(t, p.TagNames(), []string{"city"})
	}
}

func TestListNameSearchOverridesSort(t *testing.T) {
	db := testdb.New(t)
	seedCatalog(t, db)

	page := list(t, db, ListParams{SortBy: "createdAt", Asc: false, Name: "neon harbour"})
	require.Len(t, page.Data, 4)
	assert.Equal(t, []string{"Neon Harbour", "Neon Harbor"}, names(page)[:2])

	page = list(t, db, ListParams{Asc: true, Name: "starfal academy"})
	assert.Equal(t, "Starfall Academy", page.Data[0].Name)
}

func TestListActiveOnly(t *testing.T) {
	db := testdb.New(t)
	seedCatalog(t, db)

	page := list(t, db, ListParams{Asc: true, ActiveOnly: true})
	assert.Equal(t, []string{"Neon Harbor", "Starfall Academy"}, names(page))
}

func TestListLoadsActiveOwnersAndLinks(t *testing.T) {
	db := testdb.New(t)
	ids := seedCatalog(t, db)

	owner := models.User{Name: "Owner"}
	pending := models.User{Name: "Pending"}
	db.Create(&owner)
	db.Create(&pending)
	db.Create(&models.Ownership{ProjectID: ids["Neon Harbor"], UserID: owner.ID, Active: true})
	db.Create(&models.Ownership{ProjectID: ids["Neon Harbor"], UserID: pending.ID})
	db.Create(&models.RoleplayLink{ProjectID: ids["Neon Harbor"], Label: "Wiki", URL: "https://wiki.example"})

	page := list(t, db, ListParams{Asc: true, Tags: []string{"cyberpunk", "city"}})
	require.Len(t, page.Data, 1)
	p := page.Data[0]
	require.Len(t, p.Owners, 1)
	assert.Equal(t, "Owner", p.Owners[0].User.Name)
	require.Len(t, p.OtherLinks, 1)
	assert.Equal(t, "Wiki", p.OtherLinks[0].Label)
	assert.Equal(t, []string{"city", "cyberpunk"}, p.TagNames())
}

func TestBuildListQueryRejectsUnknownSort(t *testing.T) {
	db := testdb.New(t)

	_, err := BuildListQuery(db, ListParams{SortBy: "name; DROP TABLE projects"})
	assert.True(t, api.IsName(err, api.NameValidation))
}

func TestParseListParams(t *testing.T) {
	gin.SetMode(gin.TestMode)
	parse := func(query string) (ListParams, error) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/projects?"+query, nil)
		return ParseListParams(c)
	}

	p, err := parse("")
	require.NoError(t, err)
	assert.Equal(t, "name", p.SortBy)
	assert.True(t, p.Asc)
	assert.Equal(t, pagination.MaxLimit, p.Limit)

	p, err = parse("sortBy=updated_at&asc=false&tags=a|%20b%20||a&active=true&name=%20neon%20")
	require.NoError(t, err)
	assert.Equal(t, "updated_at", p.SortBy)
	assert.False(t, p.Asc)
	assert.Equal(t, []string{"a", "b"}, p.Tags)
	assert.True(t, p.ActiveOnly)
	assert.Equal(t, "neon", p.Name)

	_, err = parse("sortBy=password")
	assert.True(t, api.IsName(err, api.NameValidation))
	_, err = parse("asc=maybe")
	assert.True(t, api.IsName(err, api.NameValidation))
	_, err = parse("limit=0")
	assert.True(t, api.IsName(err, api.NameValidation))
}

func uintStr(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
