package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ChanceW/WiseTowerBuilders/internal/domain"
	"github.com/ChanceW/WiseTowerBuilders/internal/generation"
	"github.com/ChanceW/WiseTowerBuilders/internal/models"
	"github.com/ChanceW/WiseTowerBuilders/internal/repository"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// inviteCodeBytes is the entropy of an invite code; hex-encoded it yields a
// 12-character token.
const inviteCodeBytes = 6

// Service defines all the business logic operations
type Service interface {
	// Authentication and profile
	SignUp(ctx context.Context, req models.SignUpRequest) (*models.AuthResponse, error)
	Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error)
	UpdateProfile(ctx context.Context, userID string, req models.UpdateProfileRequest) (*models.ProfileResponse, error)

	// Group operations
	CreateGroup(ctx context.Context, userID string, req models.CreateGroupRequest) (*models.GroupResponse, error)
	ListGroups(ctx context.Context, userID string) (*models.GroupListResponse, error)
	GetGroup(ctx context.Context, userID, groupID string) (*models.GroupDetailResponse, error)
	RenameGroup(ctx context.Context, userID, groupID string, req models.RenameGroupRequest) (*models.GroupResponse, error)
	LeaveGroup(ctx context.Context, userID, groupID string, req models.LeaveGroupRequest) (*models.LeaveGroupResponse, error)

	// Invite operations
	LookupInvite(ctx context.Context, userID, code string) (*models.InviteResponse, error)
	AcceptInvite(ctx context.Context, userID, code string) (*models.AcceptInviteResponse, error)

	// Study operations
	CreateStudyWithQuestions(ctx context.Context, userID string, req models.CreateStudyRequest) (*models.StudyResponse, error)
	CreateStudyGenerated(ctx context.Context, userID string, req models.GenerateStudyRequest) (*models.StudyResponse, error)
	CompleteStudy(ctx context.Context, userID, studyID string) (*models.StudyResponse, error)

	// Answer operations
	ListAnswers(ctx context.Context, userID, questionID string) (*models.AnswerListResponse, error)
	SubmitAnswer(ctx context.Context, userID, questionID string, req models.SubmitAnswerRequest) (*models.AnswerResponse, error)
}

// DefaultService implements the Service interface
type DefaultService struct {
	repo          repository.Repository
	generator     generation.Generator
	jwtSecret     []byte
	tokenDuration time.Duration
}

// NewDefaultService creates a new DefaultService
func NewDefaultService(repo repository.Repository, generator generation.Generator, jwtSecret string) Service {
	return &DefaultService{
		repo:          repo,
		generator:     generator,
		jwtSecret:     []byte(jwtSecret),
		tokenDuration: 24 * time.Hour, // 24 hours token validity
	}
}

// Authentication methods
func (s *DefaultService) SignUp(ctx context.Context, req models.SignUpRequest) (*models.AuthResponse, error) {
	// Check if user already exists
	existingUser, err := s.repo.GetUserByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("error checking user existence: %w", err)
	}

	if existingUser != nil {
		return nil, domain.Conflict("user with this email already exists")
	}

	// Hash the password
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	// Create the user
	user := &models.User{
		ID:       uuid.New().String(),
		Email:    req.Email,
		Name:     req.Name,
		Password: string(hashedPassword),
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		// A concurrent registration can slip past the existence check and
		// land on the unique constraint instead
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, domain.Conflict("user with this email already exists")
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	return &models.AuthResponse{
		Status: "success",
		UserID: user.ID,
		Email:  user.Email,
		Name:   user.Name,
	}, nil
}

func (s *DefaultService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	// Get the user
	user, err := s.repo.GetUserByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("error getting user: %w", err)
	}

	if user == nil || user.Password == "" {
		return nil, domain.Unauthorized("invalid email or password")
	}

	// Verify password
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, domain.Unauthorized("invalid email or password")
	}

	// Generate JWT token
	token, err := s.generateJWT(user)
	if err != nil {
		return nil, fmt.Errorf("error generating token: %w", err)
	}

	return &models.AuthResponse{
		Status:    "success",
		UserID:    user.ID,
		Token:     token,
		ExpiresIn: int(s.tokenDuration.Seconds()),
	}, nil
}

func (s *DefaultService) UpdateProfile(ctx context.Context, userID string, req models.UpdateProfileRequest) (*models.ProfileResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.Validation("name is required")
	}

	user, err := s.repo.UpdateUserName(ctx, userID, name)
	if err != nil {
		return nil, fmt.Errorf("error updating profile: %w", err)
	}
	if user == nil {
		return nil, domain.NotFound("user not found")
	}

	return &models.ProfileResponse{
		Status: "success",
		User:   user.Profile(),
	}, nil
}

// Group operations
func (s *DefaultService) CreateGroup(ctx context.Context, userID string, req models.CreateGroupRequest) (*models.GroupResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.Validation("group name is required")
	}

	code, err := generateInviteCode()
	if err != nil {
		return nil, fmt.Errorf("error generating invite code: %w", err)
	}

	group := &models.StudyGroup{
		ID:         uuid.New().String(),
		Name:       name,
		InviteCode: code,
		AdminID:    userID,
	}

	if err := s.repo.CreateGroup(ctx, group); err != nil {
		return nil, fmt.Errorf("error creating group: %w", err)
	}

	summary, err := s.groupSummary(ctx, group)
	if err != nil {
		return nil, err
	}

	return &models.GroupResponse{
		Status: "success",
		Group:  *summary,
	}, nil
}

func (s *DefaultService) ListGroups(ctx context.Context, userID string) (*models.GroupListResponse, error) {
	adminGroups, err := s.repo.ListAdminGroups(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error listing admin groups: %w", err)
	}

	memberGroups, err := s.repo.ListMemberGroups(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error listing member groups: %w", err)
	}

	resp := &models.GroupListResponse{
		Status:   "success",
		AdminOf:  []models.GroupSummary{},
		MemberOf: []models.GroupSummary{},
	}

	for i := range adminGroups {
		summary, err := s.groupSummary(ctx, &adminGroups[i])
		if err != nil {
			return nil, err
		}
		resp.AdminOf = append(resp.AdminOf, *summary)
	}

	for i := range memberGroups {
		summary, err := s.groupSummary(ctx, &memberGroups[i])
		if err != nil {
			return nil, err
		}
		resp.MemberOf = append(resp.MemberOf, *summary)
	}

	return resp, nil
}

func (s *DefaultService) GetGroup(ctx context.Context, userID, groupID string) (*models.GroupDetailResponse, error) {
	group, err := s.repo.GetGroup(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("error getting group: %w", err)
	}
	if group == nil {
		return nil, domain.NotFound("study group not found")
	}

	if err := s.requireMembership(ctx, group, userID); err != nil {
		return nil, err
	}

	admin, err := s.adminProfile(ctx, group)
	if err != nil {
		return nil, err
	}

	studies, err := s.repo.ListGroupStudies(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("error listing studies: %w", err)
	}

	withQuestions := make([]models.StudyWithQuestions, 0, len(studies))
	for _, study := range studies {
		questions, err := s.repo.ListStudyQuestions(ctx, study.ID)
		if err != nil {
			return nil, fmt.Errorf("error listing questions: %w", err)
		}
		withQuestions = append(withQuestions, models.StudyWithQuestions{
			Study:     study,
			Questions: questions,
		})
	}

	return &models.GroupDetailResponse{
		Status:  "success",
		ID:      group.ID,
		Name:    group.Name,
		Admin:   admin,
		Studies: withQuestions,
	}, nil
}

func (s *DefaultService) RenameGroup(ctx context.Context, userID, groupID string, req models.RenameGroupRequest) (*models.GroupResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.Validation("group name is required")
	}

	group, err := s.repo.GetGroup(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("error getting group: %w", err)
	}
	if group == nil {
		return nil, domain.NotFound("study group not found")
	}

	if group.AdminID != userID {
		return nil, domain.Forbidden("only the admin can rename the group")
	}

	if err := s.repo.RenameGroup(ctx, groupID, name); err != nil {
		return nil, fmt.Errorf("error renaming group: %w", err)
	}
	group.Name = name

	summary, err := s.groupSummary(ctx, group)
	if err != nil {
		return nil, err
	}

	return &models.GroupResponse{
		Status: "success",
		Group:  *summary,
	}, nil
}

// LeaveGroup implements the departure rules. A plain member is simply removed.
// The admin must hand off to a designated member, except when alone, in which
// case the whole group is deleted.
func (s *DefaultService) LeaveGroup(ctx context.Context, userID, groupID string, req models.LeaveGroupRequest) (*models.LeaveGroupResponse, error) {
	group, err := s.repo.GetGroup(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("error getting group: %w", err)
	}
	if group == nil {
		return nil, domain.NotFound("study group not found")
	}

	members, err := s.repo.ListGroupMembers(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("error listing members: %w", err)
	}

	isAdmin := group.AdminID == userID
	isMember := false
	for _, m := range members {
		if m.ID == userID {
			isMember = true
			break
		}
	}

	if !isMember && !isAdmin {
		return nil, domain.Forbidden("you are not a member of this study group")
	}

	if !isAdmin {
		if err := s.repo.RemoveGroupMember(ctx, groupID, userID); err != nil {
			if errors.Is(err, repository.ErrAdminChanged) {
				return nil, domain.Conflict("group admin changed, retry the request")
			}
			return nil, fmt.Errorf("error removing member: %w", err)
		}
		return &models.LeaveGroupResponse{
			Status:  "success",
			Message: "Successfully left the study group",
		}, nil
	}

	// Remaining roster without the departing admin
	others := make([]models.UserProfile, 0, len(members))
	for _, m := range members {
		if m.ID != userID {
			others = append(others, m)
		}
	}

	if len(others) == 0 {
		if err := s.repo.DeleteGroup(ctx, groupID); err != nil {
			return nil, fmt.Errorf("error deleting group: %w", err)
		}
		return &models.LeaveGroupResponse{
			Status:       "success",
			Message:      "Study group deleted",
			GroupDeleted: true,
		}, nil
	}

	if req.NewAdminID == "" {
		return nil, domain.Validation("a new admin must be designated before leaving")
	}

	successorIsMember := false
	for _, m := range others {
		if m.ID == req.NewAdminID {
			successorIsMember = true
			break
		}
	}
	if !successorIsMember {
		return nil, domain.Validation("the new admin must be a member of the group")
	}

	if err := s.repo.TransferAdmin(ctx, groupID, userID, req.NewAdminID); err != nil {
		if errors.Is(err, repository.ErrAdminChanged) {
			return nil, domain.Conflict("group admin changed, retry the request")
		}
		return nil, fmt.Errorf("error transferring admin: %w", err)
	}

	return &models.LeaveGroupResponse{
		Status:     "success",
		Message:    "Successfully left the study group",
		NewAdminID: req.NewAdminID,
	}, nil
}

// Invite operations

// LookupInvite resolves an invite code to public group fields. Unknown codes
// are a uniform not-found; the member list is never exposed.
func (s *DefaultService) LookupInvite(ctx context.Context, userID, code string) (*models.InviteResponse, error) {
	group, err := s.repo.GetGroupByInviteCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("error looking up invite: %w", err)
	}
	if group == nil {
		return nil, domain.NotFound("invalid invitation code")
	}

	isMember, err := s.repo.IsGroupMember(ctx, group.ID, userID)
	if err != nil {
		return nil, fmt.Errorf("error checking membership: %w", err)
	}
	if isMember {
		return nil, domain.Conflict("already a member of this group")
	}

	admin, err := s.adminProfile(ctx, group)
	if err != nil {
		return nil, err
	}

	return &models.InviteResponse{
		Status:  "success",
		GroupID: group.ID,
		Name:    group.Name,
		Admin:   admin,
	}, nil
}

func (s *DefaultService) AcceptInvite(ctx context.Context, userID, code string) (*models.AcceptInviteResponse, error) {
	group, err := s.repo.GetGroupByInviteCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("error looking up invite: %w", err)
	}
	if group == nil {
		return nil, domain.NotFound("invalid invitation code")
	}

	isMember, err := s.repo.IsGroupMember(ctx, group.ID, userID)
	if err != nil {
		return nil, fmt.Errorf("error checking membership: %w", err)
	}
	if isMember {
		return nil, domain.Conflict("already a member of this group")
	}

	if err := s.repo.AddGroupMember(ctx, group.ID, userID); err != nil {
		return nil, fmt.Errorf("error adding member: %w", err)
	}

	return &models.AcceptInviteResponse{
		Status:  "success",
		Message: "Successfully joined the study group",
		GroupID: group.ID,
	}, nil
}

// Study operations
func (s *DefaultService) CreateStudyWithQuestions(ctx context.Context, userID string, req models.CreateStudyRequest) (*models.StudyResponse, error) {
	if err := s.requireGroupAdmin(ctx, req.StudyGroupID, userID); err != nil {
		return nil, err
	}

	questions := make([]models.Question, 0, len(req.Questions))
	for _, q := range req.Questions {
		questions = append(questions, models.Question{
			Context:    q.Context,
			Discussion: q.Discussion,
			Principle:  q.Principle,
			Passage:    q.Passage,
		})
	}

	return s.insertStudy(ctx, req.StudyGroupID, req.BibleBook, req.BibleChapter, questions)
}

func (s *DefaultService) CreateStudyGenerated(ctx context.Context, userID string, req models.GenerateStudyRequest) (*models.StudyResponse, error) {
	if err := s.requireGroupAdmin(ctx, req.StudyGroupID, userID); err != nil {
		return nil, err
	}

	generated, err := s.generator.GenerateQuestions(ctx, req.BibleBook, req.BibleChapter)
	if err != nil {
		return nil, domain.Generation("failed to generate study questions", err)
	}

	questions := make([]models.Question, 0, len(generated))
	for _, q := range generated {
		questions = append(questions, models.Question{
			Context:    q.Context,
			Discussion: q.Discussion,
			Principle:  q.Principle,
			Passage:    q.Passage,
		})
	}

	return s.insertStudy(ctx, req.StudyGroupID, req.BibleBook, req.BibleChapter, questions)
}

func (s *DefaultService) CompleteStudy(ctx context.Context, userID, studyID string) (*models.StudyResponse, error) {
	study, err := s.repo.GetStudy(ctx, studyID)
	if err != nil {
		return nil, fmt.Errorf("error getting study: %w", err)
	}
	if study == nil {
		return nil, domain.NotFound("study not found")
	}

	group, err := s.repo.GetGroup(ctx, study.StudyGroupID)
	if err != nil {
		return nil, fmt.Errorf("error getting group: %w", err)
	}
	if group == nil {
		return nil, domain.NotFound("study group not found")
	}

	if group.AdminID != userID {
		return nil, domain.Forbidden("only the admin can complete studies")
	}

	if !study.IsCurrent {
		return nil, domain.Conflict("only the current study can be completed")
	}

	completed, err := s.repo.CompleteStudy(ctx, studyID)
	if err != nil {
		return nil, fmt.Errorf("error completing study: %w", err)
	}
	if !completed {
		// Lost a race with another completion
		return nil, domain.Conflict("only the current study can be completed")
	}

	study.IsCurrent = false
	study.Status = models.StudyStatusCompleted

	questions, err := s.repo.ListStudyQuestions(ctx, studyID)
	if err != nil {
		return nil, fmt.Errorf("error listing questions: %w", err)
	}

	return &models.StudyResponse{
		Status: "success",
		Study: models.StudyWithQuestions{
			Study:     *study,
			Questions: questions,
		},
	}, nil
}

// Answer operations
func (s *DefaultService) ListAnswers(ctx context.Context, userID, questionID string) (*models.AnswerListResponse, error) {
	if err := s.requireQuestionAccess(ctx, questionID, userID); err != nil {
		return nil, err
	}

	answers, err := s.repo.ListAnswers(ctx, questionID)
	if err != nil {
		return nil, fmt.Errorf("error listing answers: %w", err)
	}

	return &models.AnswerListResponse{
		Status:  "success",
		Answers: answers,
	}, nil
}

func (s *DefaultService) SubmitAnswer(ctx context.Context, userID, questionID string, req models.SubmitAnswerRequest) (*models.AnswerResponse, error) {
	if strings.TrimSpace(req.Content) == "" {
		return nil, domain.Validation("content is required")
	}

	if err := s.requireQuestionAccess(ctx, questionID, userID); err != nil {
		return nil, err
	}

	answer := &models.Answer{
		QuestionID: questionID,
		UserID:     userID,
		Content:    req.Content,
	}

	created, err := s.repo.UpsertAnswer(ctx, answer)
	if err != nil {
		return nil, fmt.Errorf("error saving answer: %w", err)
	}

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error getting user: %w", err)
	}
	if user == nil {
		return nil, domain.NotFound("user not found")
	}

	return &models.AnswerResponse{
		Status:  "success",
		Created: created,
		Answer: models.AnswerWithUser{
			Answer: *answer,
			User:   user.Profile(),
		},
	}, nil
}

// Helper methods

// insertStudy writes the study and its questions; the repository demotes any
// existing current study in the same transaction.
func (s *DefaultService) insertStudy(ctx context.Context, groupID, book string, chapter int, questions []models.Question) (*models.StudyResponse, error) {
	study := &models.Study{
		ID:           uuid.New().String(),
		StudyGroupID: groupID,
		BibleBook:    book,
		BibleChapter: chapter,
	}

	if err := s.repo.CreateStudy(ctx, study, questions); err != nil {
		return nil, fmt.Errorf("error creating study: %w", err)
	}

	return &models.StudyResponse{
		Status: "success",
		Study: models.StudyWithQuestions{
			Study:     *study,
			Questions: questions,
		},
	}, nil
}

func (s *DefaultService) requireGroupAdmin(ctx context.Context, groupID, userID string) error {
	group, err := s.repo.GetGroup(ctx, groupID)
	if err != nil {
		return fmt.Errorf("error getting group: %w", err)
	}
	if group == nil {
		return domain.NotFound("study group not found")
	}
	if group.AdminID != userID {
		return domain.Forbidden("only the admin can create studies")
	}
	return nil
}

func (s *DefaultService) requireMembership(ctx context.Context, group *models.StudyGroup, userID string) error {
	if group.AdminID == userID {
		return nil
	}

	isMember, err := s.repo.IsGroupMember(ctx, group.ID, userID)
	if err != nil {
		return fmt.Errorf("error checking membership: %w", err)
	}
	if !isMember {
		return domain.Forbidden("you are not a member of this study group")
	}
	return nil
}

// requireQuestionAccess resolves a question to its group and checks the user
// belongs to it.
func (s *DefaultService) requireQuestionAccess(ctx context.Context, questionID, userID string) error {
	question, err := s.repo.GetQuestion(ctx, questionID)
	if err != nil {
		return fmt.Errorf("error getting question: %w", err)
	}
	if question == nil {
		return domain.NotFound("question not found")
	}

	study, err := s.repo.GetStudy(ctx, question.StudyID)
	if err != nil {
		return fmt.Errorf("error getting study: %w", err)
	}
	if study == nil {
		return domain.NotFound("study not found")
	}

	group, err := s.repo.GetGroup(ctx, study.StudyGroupID)
	if err != nil {
		return fmt.Errorf("error getting group: %w", err)
	}
	if group == nil {
		return domain.NotFound("study group not found")
	}

	return s.requireMembership(ctx, group, userID)
}

func (s *DefaultService) adminProfile(ctx context.Context, group *models.StudyGroup) (models.UserProfile, error) {
	admin, err := s.repo.GetUserByID(ctx, group.AdminID)
	if err != nil {
		return models.UserProfile{}, fmt.Errorf("error getting admin: %w", err)
	}
	if admin == nil {
		return models.UserProfile{}, fmt.Errorf("group %s has no admin user", group.ID)
	}
	return admin.Profile(), nil
}

func (s *DefaultService) groupSummary(ctx context.Context, group *models.StudyGroup) (*models.GroupSummary, error) {
	admin, err := s.adminProfile(ctx, group)
	if err != nil {
		return nil, err
	}

	members, err := s.repo.ListGroupMembers(ctx, group.ID)
	if err != nil {
		return nil, fmt.Errorf("error listing members: %w", err)
	}

	return &models.GroupSummary{
		ID:         group.ID,
		Name:       group.Name,
		InviteCode: group.InviteCode,
		Admin:      admin,
		Members:    members,
		CreatedAt:  group.CreatedAt.Format(time.RFC3339),
	}, nil
}

// generateInviteCode returns a cryptographically random hex token.
func generateInviteCode() (string, error) {
	buf := make([]byte, inviteCodeBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func (s *DefaultService) generateJWT(user *models.User) (string, error) {
	expirationTime := time.Now().Add(s.tokenDuration)

	claims := jwt.MapClaims{
		"sub": user.ID, // subject
		"exp": expirationTime.Unix(),
		"iat": time.Now().Unix(), // issued at
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}
