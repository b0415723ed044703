package admin

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/vrrprepo/rprepo/pkg/rprepo/api"
	"github.com/vrrprepo/rprepo/pkg/rprepo/auth"
	"github.com/vrrprepo/rprepo/pkg/rprepo/config"
	"github.com/vrrprepo/rprepo/pkg/rprepo/models"
	"github.com/vrrprepo/rprepo/pkg/rprepo/pagination"
	"github.com/vrrprepo/rprepo/pkg/rprepo/testdb"
)

var tokens = auth.NewTokens(config.AuthConfig{JWTSecret: "test-secret", TokenTTL: time.Hour})

func setupTestRouter(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	api.RegisterValidators()
	r := gin.New()
	mw := auth.NewMiddleware(db, tokens)
	NewHandler(db).RegisterRoutes(r.Group("/admin", mw.RequireUser(), auth.RequireAdmin()))
	return r
}

func createTestUser(t *testing.T, db *gorm.DB, name string, role models.Role) *models.User {
	user := &models.User{Name: name, Role: role}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	return user
}

func createTestProject(t *testing.T, db *gorm.DB, name string, status models.ProjectStatus, ownerID uint) *models.Project {
	project := &models.Project{Name: name, Status: status}
	if err := db.Create(project).Error; err != nil {
		t.Fatalf("Failed to create test project: %v", err)
	}
	if ownerID != 0 {
		if err := db.Create(&models.Ownership{ProjectID: project.ID, UserID: ownerID, Active: true}).Error; err != nil {
			t.Fatalf("Failed to create ownership: %v", err)
		}
	}
	return project
}

func doRequest(r *gin.Engine, method, path string, user *models.User, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != nil {
		token, _ := tokens.Generate(user.ID, user.Role)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	envelope := struct {
		Data interface{} `json:"data"`
	}{Data: dest}
	if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	db := testdb.New(t)
	r := setupTestRouter(db)
	user := createTestUser(t, db, "regular", models.RoleUser)

	if w := doRequest(r, http.MethodGet, "/admin/stats", nil, nil); w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401 without login, got %d", w.Code)
	}
	if w := doRequest(r, http.MethodGet, "/admin/stats", user, nil); w.Code != http.StatusForbidden {
		t.Errorf("Expected status 403 for non-admin, got %d", w.Code)
	}
}

func TestListUsers(t *testing.T) {
	db := testdb.New(t)
	r := setupTestRouter(db)
	admin := createTestUser(t, db, "Admin Ada", models.RoleAdmin)
	gm := createTestUser(t, db, "Gamemaster Gil", models.RoleUser)
	createTestUser(t, db, "Banned Bob", models.RoleBanned)

	createTestProject(t, db, "Neon Harbor", models.StatusActive, gm.ID)
	createTestProject(t, db, "Ashen Vale", models.StatusUpcoming, gm.ID)
	if err := db.Create(&models.Update{UserID: gm.ID, Content: "session tonight"}).Error; err != nil {
		t.Fatalf("Failed to create update: %v", err)
	}

	w := doRequest(r, http.MethodGet, "/admin/users", admin, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var page pagination.Page[UserResponse]
	decodeData(t, w, &page)
	if len(page.Data) != 3 {
		t.Fatalf("Expected 3 users, got %d", len(page.Data))
	}
	for _, u := range page.Data {
		if u.ID == gm.ID && (u.ProjectCount != 2 || u.UpdateCount != 1) {
			t.Errorf("Expected 2 projects and 1 update for %s, got %d and %d", u.Name, u.ProjectCount, u.UpdateCount)
		}
	}

	w = doRequest(r, http.MethodGet, "/admin/users?q=gil", admin, nil)
	decodeData(t, w, &page)
	if len(page.Data) != 1 || page.Data[0].ID != gm.ID {
		t.Errorf("Expected search to find only Gil, got %+v", page.Data)
	}

	w = doRequest(r, http.MethodGet, "/admin/users?role=Banned", admin, nil)
	decodeData(t, w, &page)
	if len(page.Data) != 1 || page.Data[0].Role != models.RoleBanned {
		t.Errorf("Expected one banned user, got %+v", page.Data)
	}

	if w := doRequest(r, http.MethodGet, "/admin/users?role=Owner", admin, nil); w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for unknown role, got %d", w.Code)
	}
}

func TestListUsersPagination(t *testing.T) {
	db := testdb.New(t)
	r := setupTestRouter(db)
	admin := createTestUser(t, db, "admin", models.RoleAdmin)
	for i := 0; i < 4; i++ {
		createTestUser(t, db, fmt.Sprintf("player %d", i), models.RoleUser)
	}

	var page pagination.Page[UserResponse]
	decodeData(t, doRequest(r, http.MethodGet, "/admin/users?limit=2", admin, nil), &page)
	if len(page.Data) != 2 || !page.HasNext || page.NextCursor != 2 {
		t.Errorf("Unexpected first page: %+v", page)
	}

	decodeData(t, doRequest(r, http.MethodGet, "/admin/users?start=4&limit=2", admin, nil), &page)
	if len(page.Data) != 1 || page.HasNext {
		t.Errorf("Unexpected last page: %+v", page)
	}
}

func TestSetRole(t *testing.T) {
	db := testdb.New(t)
	r := setupTestRouter(db)
	admin := createTestUser(t, db, "admin", models.RoleAdmin)
	user := createTestUser(t, db, "player", models.RoleUser)
	path := fmt.Sprintf("/admin/users/%d/role", user.ID)

	w := doRequest(r, http.MethodPut, path, admin, SetRoleRequest{Role: models.RoleBanned})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var updated models.User
	db.First(&updated, user.ID)
	if updated.Role != models.RoleBanned {
		t.Errorf("Expected role Banned, got %s", updated.Role)
	}

	// the ban applies to the next request, even with an old token
	if w := doRequest(r, http.MethodGet, "/admin/stats", user, nil); w.Code != http.StatusForbidden {
		t.Errorf("Expected banned user to get 403, got %d", w.Code)
	}

	if w := doRequest(r, http.MethodPut, path, admin, SetRoleRequest{Role: "Moderator"}); w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for invalid role, got %d", w.Code)
	}
	if w := doRequest(r, http.MethodPut, "/admin/users/9999/role", admin, SetRoleRequest{Role: models.RoleUser}); w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for unknown user, got %d", w.Code)
	}
}

func TestSetRoleReturnsCounts(t *testing.T) {
	db := testdb.New(t)
	r := setupTestRouter(db)
	admin := createTestUser(t, db, "admin", models.RoleAdmin)
	gm := createTestUser(t, db, "gm", models.RoleUser)

	p := createTestProject(t, db, "Neon Harbor", models.StatusActive, gm.ID)
	createTestProject(t, db, "Ashen Vale", models.StatusHiatus, gm.ID)
	pending := createTestProject(t, db, "Glass Spire", models.StatusUpcoming, 0)
	db.Create(&models.Ownership{ProjectID: pending.ID, UserID: gm.ID, Active: false})
	db.Create(&models.Update{UserID: gm.ID, ProjectID: &p.ID, Content: "session tonight"})

	w := doRequest(r, http.MethodPut, fmt.Sprintf("/admin/users/%d/role", gm.ID), admin, SetRoleRequest{Role: models.RoleAdmin})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp UserResponse
	decodeData(t, w, &resp)
	if resp.Role != models.RoleAdmin {
		t.Errorf("Expected role Admin, got %s", resp.Role)
	}
	if resp.ProjectCount != 2 {
		t.Errorf("Expected 2 active projects, got %d", resp.ProjectCount)
	}
	if resp.UpdateCount != 1 {
		t.Errorf("Expected 1 update, got %d", resp.UpdateCount)
	}
}

func TestSetRoleCannotDemoteSelf(t *testing.T) {
	db := testdb.New(t)
	r := setupTestRouter(db)
	admin := createTestUser(t, db, "admin", models.RoleAdmin)

	w := doRequest(r, http.MethodPut, fmt.Sprintf("/admin/users/%d/role", admin.ID), admin, SetRoleRequest{Role: models.RoleUser})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}

	var unchanged models.User
	db.First(&unchanged, admin.ID)
	if unchanged.Role != models.RoleAdmin {
		t.Errorf("Expected admin to keep role, got %s", unchanged.Role)
	}
}

func TestGetStats(t *testing.T) {
	db := testdb.New(t)
	r := setupTestRouter(db)
	admin := createTestUser(t, db, "admin", models.RoleAdmin)
	gm := createTestUser(t, db, "gm", models.RoleUser)
	requester := createTestUser(t, db, "requester", models.RoleUser)
	createTestUser(t, db, "troll", models.RoleBanned)

	p := createTestProject(t, db, "Neon Harbor", models.StatusActive, gm.ID)
	createTestProject(t, db, "Ashen Vale", models.StatusHiatus, 0)
	db.Create(&models.Ownership{ProjectID: p.ID, UserID: requester.ID})
	db.Create(&models.ProjectTag{ProjectID: p.ID, Tag: "scifi"})
	db.Create(&models.ProjectTag{ProjectID: p.ID, Tag: "noir"})
	db.Create(&models.Update{UserID: gm.ID, Content: "hello"})

	w := doRequest(r, http.MethodGet, "/admin/stats", admin, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var stats StatsResponse
	decodeData(t, w, &stats)

	want := StatsResponse{
		TotalUsers:       4,
		AdminUsers:       1,
		BannedUsers:      1,
		TotalProjects:    2,
		ActiveProjects:   1,
		PendingOwnership: 1,
		TotalUpdates:     1,
		DistinctTags:     2,
	}
	if stats != want {
		t.Errorf("Expected %+v, got %+v", want, stats)
	}
}
