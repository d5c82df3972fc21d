package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ChanceW/WiseTowerBuilders/internal/api/testutils"
	"github.com/ChanceW/WiseTowerBuilders/internal/models"
	"github.com/ChanceW/WiseTowerBuilders/internal/repository"
)

func joinGroup(t *testing.T, testCtx *testutils.TestContext, token, inviteCode string) {
	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		fmt.Sprintf("/api/invite/%s/accept", inviteCode),
		nil,
		testutils.AuthHeaders(token),
	)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSoleAdminLeaveDeletesGroup(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	group := createGroup(t, testCtx, testCtx.TestUserJWT, "Doomed Group")

	// Give the group a study with a question and an answer so the cascade
	// has something to clean up
	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/studies",
		models.CreateStudyRequest{
			StudyGroupID: group.ID,
			BibleBook:    "John",
			BibleChapter: 3,
			Questions: []models.QuestionInput{
				{Context: "Nicodemus visits at night", Discussion: "Why at night?"},
			},
		},
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)
	assert.Equal(t, http.StatusCreated, w.Code)

	var studyResp models.StudyResponse
	err := json.Unmarshal(w.Body.Bytes(), &studyResp)
	assert.NoError(t, err)
	questionID := studyResp.Study.Questions[0].ID

	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		fmt.Sprintf("/api/questions/%s/answers", questionID),
		models.SubmitAnswerRequest{Content: "Fear of the council"},
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)
	assert.Equal(t, http.StatusOK, w.Code)

	// The sole member is the admin; leaving deletes the group
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		fmt.Sprintf("/api/groups/%s/leave", group.ID),
		nil,
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)
	assert.Equal(t, http.StatusOK, w.Code)

	var leaveResp models.LeaveGroupResponse
	err = json.Unmarshal(w.Body.Bytes(), &leaveResp)
	assert.NoError(t, err)
	assert.True(t, leaveResp.GroupDeleted)

	// The group and its dependents are gone
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodGet,
		fmt.Sprintf("/api/groups/%s", group.ID),
		nil,
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodGet,
		fmt.Sprintf("/api/questions/%s/answers", questionID),
		nil,
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminLeaveRequiresSuccessor(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	group := createGroup(t, testCtx, testCtx.TestUserJWT, "Handoff Group")

	memberID, memberToken := testCtx.SecondaryUser(t, "successor@example.com", "Successor")
	_, otherToken := testCtx.SecondaryUser(t, "bystander@example.com", "Bystander")
	joinGroup(t, testCtx, memberToken, group.InviteCode)
	joinGroup(t, testCtx, otherToken, group.InviteCode)

	// Leaving without designating a successor fails
	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		fmt.Sprintf("/api/groups/%s/leave", group.ID),
		nil,
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// A successor outside the roster fails
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		fmt.Sprintf("/api/groups/%s/leave", group.ID),
		models.LeaveGroupRequest{NewAdminID: "00000000-0000-0000-0000-000000000000"},
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Handing off to a member succeeds
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		fmt.Sprintf("/api/groups/%s/leave", group.ID),
		models.LeaveGroupRequest{NewAdminID: memberID},
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)
	assert.Equal(t, http.StatusOK, w.Code)

	var leaveResp models.LeaveGroupResponse
	err := json.Unmarshal(w.Body.Bytes(), &leaveResp)
	assert.NoError(t, err)
	assert.False(t, leaveResp.GroupDeleted)
	assert.Equal(t, memberID, leaveResp.NewAdminID)

	// The group remains accessible to remaining members, with the new admin
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodGet,
		fmt.Sprintf("/api/groups/%s", group.ID),
		nil,
		testutils.AuthHeaders(otherToken),
	)
	assert.Equal(t, http.StatusOK, w.Code)

	var detail models.GroupDetailResponse
	err = json.Unmarshal(w.Body.Bytes(), &detail)
	assert.NoError(t, err)
	assert.Equal(t, memberID, detail.Admin.ID)

	// The former admin is no longer a member
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodGet,
		fmt.Sprintf("/api/groups/%s", group.ID),
		nil,
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// The admin is in the member roster after the transfer
	members, err := testCtx.Repository.ListGroupMembers(context.Background(), group.ID)
	assert.NoError(t, err)
	found := false
	for _, m := range members {
		assert.NotEqual(t, testCtx.TestUserID, m.ID)
		if m.ID == memberID {
			found = true
		}
	}
	assert.True(t, found, "new admin should remain in the member roster")
}

func TestPlainMemberLeave(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	group := createGroup(t, testCtx, testCtx.TestUserJWT, "Revolving Door")

	_, memberToken := testCtx.SecondaryUser(t, "leaver@example.com", "Leaver")
	joinGroup(t, testCtx, memberToken, group.InviteCode)

	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		fmt.Sprintf("/api/groups/%s/leave", group.ID),
		nil,
		testutils.AuthHeaders(memberToken),
	)
	assert.Equal(t, http.StatusOK, w.Code)

	// The group still exists for the admin
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodGet,
		fmt.Sprintf("/api/groups/%s", group.ID),
		nil,
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)
	assert.Equal(t, http.StatusOK, w.Code)

	// A non-member cannot leave
	_, strangerToken := testCtx.SecondaryUser(t, "stranger@example.com", "Stranger")
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		fmt.Sprintf("/api/groups/%s/leave", group.ID),
		nil,
		testutils.AuthHeaders(strangerToken),
	)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestTransferRejectsDepartedSuccessor(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	group := createGroup(t, testCtx, testCtx.TestUserJWT, "Handoff Race")

	successorID, successorToken := testCtx.SecondaryUser(t, "departing@example.com", "Departing")
	_, remainingToken := testCtx.SecondaryUser(t, "remaining@example.com", "Remaining")
	joinGroup(t, testCtx, successorToken, group.InviteCode)
	joinGroup(t, testCtx, remainingToken, group.InviteCode)

	// The designated successor leaves after the admin's roster read but
	// before the transfer commits; the transfer rechecks membership under
	// the group lock and refuses
	err := testCtx.Repository.RemoveGroupMember(context.Background(), group.ID, successorID)
	assert.NoError(t, err)

	err = testCtx.Repository.TransferAdmin(context.Background(), group.ID, testCtx.TestUserID, successorID)
	assert.ErrorIs(t, err, repository.ErrAdminChanged)

	// The admin seat and the admin's membership are untouched
	g, err := testCtx.Repository.GetGroup(context.Background(), group.ID)
	assert.NoError(t, err)
	assert.Equal(t, testCtx.TestUserID, g.AdminID)

	isMember, err := testCtx.Repository.IsGroupMember(context.Background(), group.ID, testCtx.TestUserID)
	assert.NoError(t, err)
	assert.True(t, isMember)
}

func TestTransferRejectsStaleAdmin(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	group := createGroup(t, testCtx, testCtx.TestUserJWT, "Stale Admin")

	firstID, firstToken := testCtx.SecondaryUser(t, "first@example.com", "First")
	secondID, secondToken := testCtx.SecondaryUser(t, "second@example.com", "Second")
	joinGroup(t, testCtx, firstToken, group.InviteCode)
	joinGroup(t, testCtx, secondToken, group.InviteCode)

	err := testCtx.Repository.TransferAdmin(context.Background(), group.ID, testCtx.TestUserID, firstID)
	assert.NoError(t, err)

	// A retry from the former admin loses the seat check
	err = testCtx.Repository.TransferAdmin(context.Background(), group.ID, testCtx.TestUserID, secondID)
	assert.ErrorIs(t, err, repository.ErrAdminChanged)

	g, err := testCtx.Repository.GetGroup(context.Background(), group.ID)
	assert.NoError(t, err)
	assert.Equal(t, firstID, g.AdminID)
}

func TestMemberRemovalRefusesAdminSeat(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	group := createGroup(t, testCtx, testCtx.TestUserJWT, "Seat Guard")

	_, memberToken := testCtx.SecondaryUser(t, "roster@example.com", "Roster")
	joinGroup(t, testCtx, memberToken, group.InviteCode)

	// Removing whoever holds the admin seat is a conflict, never a removal
	err := testCtx.Repository.RemoveGroupMember(context.Background(), group.ID, testCtx.TestUserID)
	assert.ErrorIs(t, err, repository.ErrAdminChanged)

	isMember, err := testCtx.Repository.IsGroupMember(context.Background(), group.ID, testCtx.TestUserID)
	assert.NoError(t, err)
	assert.True(t, isMember)
}

func TestLeaveBindsBodyWithoutDeclaredLength(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	group := createGroup(t, testCtx, testCtx.TestUserJWT, "Chunked Leave")

	successorID, successorToken := testCtx.SecondaryUser(t, "chunked@example.com", "Chunked")
	joinGroup(t, testCtx, successorToken, group.InviteCode)

	body, err := json.Marshal(models.LeaveGroupRequest{NewAdminID: successorID})
	assert.NoError(t, err)

	// A chunked request declares no Content-Length; the successor in the
	// body must still be honored
	req, err := http.NewRequest(http.MethodPost, fmt.Sprintf("/api/groups/%s/leave", group.ID), bytes.NewReader(body))
	assert.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", testCtx.TestUserJWT))
	req.ContentLength = -1

	w := httptest.NewRecorder()
	testCtx.Router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	var leaveResp models.LeaveGroupResponse
	err = json.Unmarshal(w.Body.Bytes(), &leaveResp)
	assert.NoError(t, err)
	assert.Equal(t, successorID, leaveResp.NewAdminID)

	g, err := testCtx.Repository.GetGroup(context.Background(), group.ID)
	assert.NoError(t, err)
	assert.Equal(t, successorID, g.AdminID)
}
