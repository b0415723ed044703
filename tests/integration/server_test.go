package integration

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

	"github.com/vrrprepo/rprepo/pkg/rprepo/auth"
	"github.com/vrrprepo/rprepo/pkg/rprepo/config"
	"github.com/vrrprepo/rprepo/pkg/rprepo/models"
	"github.com/vrrprepo/rprepo/pkg/rprepo/server"
	"github.com/vrrprepo/rprepo/pkg/rprepo/testdb"
)

var testAuth = config.AuthConfig{JWTSecret: "integration-secret", TokenTTL: time.Hour}

// setupFullServer creates a Gin engine with all routes registered
// This mirrors the setup in cmd/rprepo-server/main.go
func setupFullServer(t *testing.T, db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router, err := server.NewRouter(server.Deps{
		DB:     db,
		Config: &config.Config{Auth: testAuth, Server: config.ServerConfig{ClientURL: "http://localhost:5173"}},
		Tokens: auth.NewTokens(testAuth),
	})
	if err != nil {
		t.Fatalf("Failed to build router: %v", err)
	}
	return router
}

func createUser(t *testing.T, db *gorm.DB, name string, role models.Role) (*models.User, string) {
	user := &models.User{Name: name, Role: role}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	token, err := auth.NewTokens(testAuth).Generate(user.ID, user.Role)
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}
	return user, token
}

func doJSON(router *gin.Engine, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: token})
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func decode(t *testing.T, resp *httptest.ResponseRecorder, dest interface{}) {
	envelope := struct {
		Success bool        `json:"success"`
		Data    interface{} `json:"data"`
	}{Data: dest}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if !envelope.Success {
		t.Fatalf("Expected success envelope, got %s", resp.Body.String())
	}
}

// TestServerStartup verifies that all routes can be registered without conflicts
// This test would fail if there are route parameter conflicts (like :id vs :projectId)
func TestServerStartup(t *testing.T) {
	router := setupFullServer(t, testdb.New(t))
	if router == nil {
		t.Fatal("Expected router to be created")
	}
}

// TestProtectedEndpointsRequireAuth verifies that protected endpoints return 401 without auth
func TestProtectedEndpointsRequireAuth(t *testing.T) {
	router := setupFullServer(t, testdb.New(t))

	protectedEndpoints := []struct {
		method string
		path   string
	}{
		{"POST", "/api/projects"},
		{"PATCH", "/api/projects/1"},
		{"DELETE", "/api/projects/1"},
		{"POST", "/api/projects/1/owners"},
		{"PUT", "/api/projects/1/schedule"},
		{"POST", "/api/updates"},
		{"DELETE", "/api/updates/1"},
		{"PATCH", "/api/users/name"},
		{"GET", "/api/auth/me"},
		{"GET", "/api/admin/users"},
	}

	for _, endpoint := range protectedEndpoints {
		t.Run(endpoint.method+" "+endpoint.path, func(t *testing.T) {
			resp := doJSON(router, endpoint.method, endpoint.path, "", nil)
			if resp.Code != http.StatusUnauthorized {
				t.Errorf("Expected status 401 for %s %s, got %d", endpoint.method, endpoint.path, resp.Code)
			}
		})
	}
}

// TestPublicEndpointsNoAuth verifies that public endpoints don't require auth
func TestPublicEndpointsNoAuth(t *testing.T) {
	router := setupFullServer(t, testdb.New(t))

	publicEndpoints := []struct {
		method       string
		path         string
		expectedCode int
	}{
		{"GET", "/health", http.StatusOK},
		{"GET", "/api/health", http.StatusOK},
		{"GET", "/api/projects?sortBy=name&asc=true", http.StatusOK},
		{"GET", "/api/projects?sortBy=password", http.StatusBadRequest},
		{"GET", "/api/tags", http.StatusOK},
		{"GET", "/api/updates", http.StatusOK},
		{"GET", "/api/events", http.StatusBadRequest}, // dates required, but not 401
		{"GET", "/api/users/1", http.StatusNotFound},
		{"POST", "/api/auth/token", http.StatusBadRequest},
		{"GET", "/api/auth/discord", http.StatusNotFound}, // provider not configured
	}

	for _, endpoint := range publicEndpoints {
		t.Run(endpoint.method+" "+endpoint.path, func(t *testing.T) {
			resp := doJSON(router, endpoint.method, endpoint.path, "", nil)
			if resp.Code != endpoint.expectedCode {
				t.Errorf("Expected status %d for %s %s, got %d", endpoint.expectedCode, endpoint.method, endpoint.path, resp.Code)
			}
		})
	}
}

// TestProjectLifecycle walks a project from creation through schedule,
// ownership and the activity feed using the session cookie.
func TestProjectLifecycle(t *testing.T) {
	db := testdb.New(t)
	router := setupFullServer(t, db)
	_, gmToken := createUser(t, db, "Gamemaster", models.RoleUser)
	player, playerToken := createUser(t, db, "Player", models.RoleUser)
	_, adminToken := createUser(t, db, "Admin", models.RoleAdmin)

	resp := doJSON(router, "POST", "/api/projects", gmToken, map[string]interface{}{
		"name":   "Neon Harbor",
		"status": "Upcoming",
		"tags":   []string{"Cyberpunk", "Noir"},
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var project struct {
		ID uint `json:"id"`
	}
	decode(t, resp, &project)
	base := fmt.Sprintf("/api/projects/%d", project.ID)

	resp = doJSON(router, "PUT", base+"/schedule", gmToken, map[string]interface{}{
		"type": "Periodic",
		"runtimes": []map[string]interface{}{
			{"start": "2026-01-05T19:00:00Z", "end": "2026-01-05T22:00:00Z", "repeatDays": 7},
		},
		"otherLinks": []map[string]string{{"label": "Wiki", "url": "https://wiki.example.com"}},
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected schedule save to succeed, got %d: %s", resp.Code, resp.Body.String())
	}

	// players cannot edit someone else's project
	resp = doJSON(router, "PATCH", base, playerToken, map[string]string{"name": "Stolen"})
	if resp.Code != http.StatusForbidden {
		t.Errorf("Expected status 403, got %d", resp.Code)
	}

	// ownership request, then admin approval
	if resp = doJSON(router, "POST", base+"/owners", playerToken, nil); resp.Code != http.StatusCreated {
		t.Fatalf("Expected ownership request to be created, got %d: %s", resp.Code, resp.Body.String())
	}
	if resp = doJSON(router, "PUT", fmt.Sprintf("%s/owners/%d", base, player.ID), adminToken, nil); resp.Code != http.StatusOK {
		t.Fatalf("Expected approval to succeed, got %d: %s", resp.Code, resp.Body.String())
	}

	var owners []struct {
		UserID uint   `json:"userId"`
		Name   string `json:"name"`
	}
	decode(t, doJSON(router, "GET", base+"/owners", "", nil), &owners)
	if len(owners) != 2 {
		t.Fatalf("Expected 2 owners, got %d", len(owners))
	}

	// the listing carries the same owners as the owners endpoint
	var page struct {
		Data []struct {
			ID     uint `json:"id"`
			Owners []struct {
				UserID uint `json:"userId"`
			} `json:"owners"`
			Tags []string `json:"tags"`
		} `json:"data"`
	}
	decode(t, doJSON(router, "GET", "/api/projects?tags=Noir|Cyberpunk", "", nil), &page)
	if len(page.Data) != 1 || len(page.Data[0].Owners) != 2 {
		t.Fatalf("Expected one listed project with 2 owners, got %+v", page.Data)
	}

	// the new owner can now post to the feed on the project's behalf
	resp = doJSON(router, "POST", "/api/updates", playerToken, map[string]interface{}{
		"content":   "Session zero this Monday",
		"projectId": project.ID,
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("Expected update to be created, got %d: %s", resp.Code, resp.Body.String())
	}

	var events struct {
		Data []struct {
			ProjectID uint `json:"projectId"`
		} `json:"data"`
	}
	decode(t, doJSON(router, "GET", "/api/events?start_date=2026-01-01&end_date=2026-02-01", "", nil), &events)
	if len(events.Data) != 4 {
		t.Errorf("Expected 4 weekly sessions in January, got %d", len(events.Data))
	}

	if resp = doJSON(router, "DELETE", base, adminToken, nil); resp.Code != http.StatusOK {
		t.Fatalf("Expected delete to succeed, got %d: %s", resp.Code, resp.Body.String())
	}
	if resp = doJSON(router, "GET", base, "", nil); resp.Code != http.StatusNotFound {
		t.Errorf("Expected deleted project to be gone, got %d", resp.Code)
	}
}
