package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ChanceW/WiseTowerBuilders/internal/api/testutils"
	"github.com/ChanceW/WiseTowerBuilders/internal/models"
	"github.com/ChanceW/WiseTowerBuilders/internal/repository"
)

func TestSignUpAndLogin(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	signupReq := models.SignUpRequest{
		Email:    "newuser@example.com",
		Password: "Password123",
		Name:     "New User",
	}

	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/auth/signup",
		signupReq,
		nil,
	)

	assert.Equal(t, http.StatusCreated, w.Code)

	var signupResponse models.AuthResponse
	err := json.Unmarshal(w.Body.Bytes(), &signupResponse)
	assert.NoError(t, err)
	assert.Equal(t, "success", signupResponse.Status)
	assert.NotEmpty(t, signupResponse.UserID)
	assert.Equal(t, "newuser@example.com", signupResponse.Email)

	// Signing up twice with the same email conflicts
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/auth/signup",
		signupReq,
		nil,
	)

	assert.Equal(t, http.StatusConflict, w.Code)

	// Login with the right password
	loginReq := models.LoginRequest{
		Email:    "newuser@example.com",
		Password: "Password123",
	}

	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/auth/login",
		loginReq,
		nil,
	)

	assert.Equal(t, http.StatusOK, w.Code)

	var loginResponse models.AuthResponse
	err = json.Unmarshal(w.Body.Bytes(), &loginResponse)
	assert.NoError(t, err)
	assert.NotEmpty(t, loginResponse.Token)

	// Login with the wrong password
	loginReq.Password = "WrongPassword"
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/auth/login",
		loginReq,
		nil,
	)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthRequired(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	// No token
	w := testutils.PerformRequest(testCtx.Router, http.MethodGet, "/api/groups", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Malformed token
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodGet,
		"/api/groups",
		nil,
		testutils.AuthHeaders("not-a-real-token"),
	)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUpdateProfile(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPatch,
		"/api/user/profile",
		models.UpdateProfileRequest{Name: "Renamed User"},
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp models.ProfileResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err)
	assert.Equal(t, "Renamed User", resp.User.Name)
	assert.Equal(t, testCtx.TestUserID, resp.User.ID)
}

func TestDuplicateEmailInsert(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	first := &models.User{Email: "taken@example.com", Name: "First", Password: "hash"}
	err := testCtx.Repository.CreateUser(context.Background(), first)
	assert.NoError(t, err)

	// A registration that passes the existence check concurrently still
	// lands on the unique constraint; the repository surfaces it as a
	// typed error so the service can answer with a conflict
	second := &models.User{Email: "taken@example.com", Name: "Second", Password: "hash"}
	err = testCtx.Repository.CreateUser(context.Background(), second)
	assert.ErrorIs(t, err, repository.ErrDuplicateEmail)
}
