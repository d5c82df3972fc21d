package testutils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/bcrypt"

	"github.com/ChanceW/WiseTowerBuilders/internal/api"
	"github.com/ChanceW/WiseTowerBuilders/internal/config"
	"github.com/ChanceW/WiseTowerBuilders/internal/generation"
	"github.com/ChanceW/WiseTowerBuilders/internal/models"
	"github.com/ChanceW/WiseTowerBuilders/internal/repository"
	"github.com/ChanceW/WiseTowerBuilders/internal/service"
	"github.com/ChanceW/WiseTowerBuilders/internal/utils"
)

// StubGenerator returns a fixed question set, or fails when Err is set.
// Endpoint tests swap it in for the real completion client.
type StubGenerator struct {
	Questions []generation.GeneratedQuestion
	Err       error
}

func (g *StubGenerator) GenerateQuestions(_ context.Context, _ string, _ int) ([]generation.GeneratedQuestion, error) {
	if g.Err != nil {
		return nil, g.Err
	}
	return g.Questions, nil
}

// FixedQuestions builds a valid generated payload for stubbing.
func FixedQuestions() []generation.GeneratedQuestion {
	questions := make([]generation.GeneratedQuestion, generation.QuestionCount)
	for i := range questions {
		questions[i] = generation.GeneratedQuestion{
			Context:    fmt.Sprintf("Context %d", i+1),
			Discussion: fmt.Sprintf("Discussion question %d?", i+1),
			Principle:  fmt.Sprintf("Principle %d", i+1),
			Passage:    fmt.Sprintf("Verses %d-%d", i+1, i+2),
		}
	}
	return questions
}

// TestContext holds all dependencies for tests
type TestContext struct {
	Router      *gin.Engine
	Repository  repository.Repository
	Service     service.Service
	Generator   *StubGenerator
	JWTSecret   []byte
	DB          *sqlx.DB
	TestUserID  string
	TestUserJWT string
}

// SetupTestContext creates a new test context with initialized dependencies.
// The suite is skipped when the test database is not reachable.
func SetupTestContext(t *testing.T) *TestContext {
	// Load configuration from environment
	cfg := config.LoadConfig()

	// Override with test-specific config
	if cfg.Database.DBName != cfg.Database.TestDBName && cfg.Database.TestDBName != "" {
		cfg.Database.DBName = cfg.Database.TestDBName
	}

	// Use a test JWT secret
	if cfg.Auth.JWTSecret == "" {
		cfg.Auth.JWTSecret = "test-secret-key"
	}

	// Migrations live at the repository root; resolve them relative to this file
	_, thisFile, _, _ := runtime.Caller(0)
	cfg.Database.MigrationsPath = filepath.Join(filepath.Dir(thisFile), "..", "..", "..", "migrations")

	// Set up database
	db, err := config.SetupDatabase(cfg)
	if err != nil {
		t.Skipf("Skipping: test database unavailable: %v", err)
	}

	// Create repository
	repo := repository.NewPostgresRepository(db)

	// Create service with a stubbed generator
	generator := &StubGenerator{Questions: FixedQuestions()}
	svc := service.NewDefaultService(repo, generator, cfg.Auth.JWTSecret)

	// Create API handler
	handler := api.NewHandler(svc, utils.NewLogger("error"))

	// Set up Gin router
	gin.SetMode(gin.TestMode)
	router := gin.Default()

	// Add middleware for JWT secret
	router.Use(func(c *gin.Context) {
		c.Set("jwtSecret", []byte(cfg.Auth.JWTSecret))
		c.Next()
	})

	// Set up routes
	handler.SetupRoutes(router)

	// Create test user
	testUserID, token := createTestUser(t, repo, cfg.Auth.JWTSecret)

	return &TestContext{
		Router:      router,
		Repository:  repo,
		Service:     svc,
		Generator:   generator,
		JWTSecret:   []byte(cfg.Auth.JWTSecret),
		DB:          db,
		TestUserID:  testUserID,
		TestUserJWT: token,
	}
}

// CleanupTestContext cleans up test resources
func CleanupTestContext(t *TestContext) {
	if t.DB != nil {
		cleanupTestDatabase(nil, t.Repository)
		t.DB.Close()
	}
}

// cleanupTestDatabase removes any existing test users and data
func cleanupTestDatabase(t *testing.T, repo repository.Repository) {
	pgRepo, ok := repo.(*repository.PostgresRepository)
	if !ok {
		return
	}
	db := pgRepo.GetDB()

	// Child tables first, due to foreign key constraints
	tables := []string{
		"answers",
		"questions",
		"studies",
		"study_group_members",
		"study_groups",
		"users",
	}

	for _, table := range tables {
		_, err := db.Exec("DELETE FROM " + table)
		if t != nil && err != nil {
			t.Logf("Warning: Failed to clean %s: %v", table, err)
		}
	}
}

// Helper functions
func createTestUser(t *testing.T, repo repository.Repository, jwtSecret string) (string, string) {
	// Clean up any existing test data first
	cleanupTestDatabase(t, repo)

	return RegisterUser(t, repo, jwtSecret, "testuser@example.com", "Test User")
}

// RegisterUser inserts a user directly and returns its id with a signed JWT.
func RegisterUser(t *testing.T, repo repository.Repository, jwtSecret, email, name string) (string, string) {
	hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("testpassword"), bcrypt.DefaultCost)

	user := &models.User{
		ID:       uuid.New().String(),
		Email:    email,
		Name:     name,
		Password: string(hashedPassword),
	}

	err := repo.CreateUser(context.Background(), user)
	assert.NoError(t, err, "Failed to create test user")

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": user.ID,
		"exp": time.Now().Add(24 * time.Hour).Unix(),
		"iat": time.Now().Unix(),
	})

	tokenString, err := token.SignedString([]byte(jwtSecret))
	assert.NoError(t, err, "Failed to generate JWT token")

	return user.ID, tokenString
}

// SecondaryUser creates another user in the test database and returns its id and JWT.
func (tc *TestContext) SecondaryUser(t *testing.T, email, name string) (string, string) {
	return RegisterUser(t, tc.Repository, string(tc.JWTSecret), email, name)
}

// PerformRequest executes an HTTP request against the router
func PerformRequest(r http.Handler, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer

	if body != nil {
		jsonBody, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBody)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// AuthHeaders returns headers with Authorization token
func AuthHeaders(token string) map[string]string {
	return map[string]string{
		"Authorization": fmt.Sprintf("Bearer %s", token),
	}
}
