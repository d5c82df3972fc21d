package models

// Request models
type SignUpRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Name     string `json:"name" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type UpdateProfileRequest struct {
	Name string `json:"name" binding:"required"`
}

type CreateGroupRequest struct {
	Name string `json:"name" binding:"required"`
}

type RenameGroupRequest struct {
	Name string `json:"name" binding:"required"`
}

// LeaveGroupRequest carries the successor when the admin leaves a group that
// still has other members. Plain members leave with an empty body.
type LeaveGroupRequest struct {
	NewAdminID string `json:"newAdminId"`
}

type QuestionInput struct {
	Context    string `json:"context" binding:"required"`
	Discussion string `json:"discussion" binding:"required"`
	Principle  string `json:"principle"`
	Passage    string `json:"passage"`
}

type CreateStudyRequest struct {
	StudyGroupID string          `json:"studyGroupId" binding:"required"`
	BibleBook    string          `json:"bibleBook" binding:"required"`
	BibleChapter int             `json:"bibleChapter" binding:"required,min=1"`
	Questions    []QuestionInput `json:"questions" binding:"required,min=1,dive"`
}

type GenerateStudyRequest struct {
	StudyGroupID string `json:"studyGroupId" binding:"required"`
	BibleBook    string `json:"bibleBook" binding:"required"`
	BibleChapter int    `json:"bibleChapter" binding:"required,min=1"`
}

type SubmitAnswerRequest struct {
	Content string `json:"content" binding:"required"`
}

// Response models
type AuthResponse struct {
	Status    string `json:"status"`
	UserID    string `json:"userId,omitempty"`
	Email     string `json:"email,omitempty"`
	Name      string `json:"name,omitempty"`
	Token     string `json:"token,omitempty"`
	ExpiresIn int    `json:"expiresIn,omitempty"`
}

type ProfileResponse struct {
	Status string      `json:"status"`
	User   UserProfile `json:"user"`
}

// GroupSummary is a group as seen in listings, with the roster's public profiles.
type GroupSummary struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	InviteCode string        `json:"inviteCode"`
	Admin      UserProfile   `json:"admin"`
	Members    []UserProfile `json:"members"`
	CreatedAt  string        `json:"createdAt"`
}

type GroupResponse struct {
	Status string       `json:"status"`
	Group  GroupSummary `json:"group"`
}

type GroupListResponse struct {
	Status   string         `json:"status"`
	AdminOf  []GroupSummary `json:"adminOf"`
	MemberOf []GroupSummary `json:"memberOf"`
}

// StudyWithQuestions bundles a study with its question set.
type StudyWithQuestions struct {
	Study
	Questions []Question `json:"questions"`
}

// GroupDetailResponse is the member-facing view of a group. It carries the
// study history but deliberately omits the raw member list.
type GroupDetailResponse struct {
	Status  string               `json:"status"`
	ID      string               `json:"id"`
	Name    string               `json:"name"`
	Admin   UserProfile          `json:"admin"`
	Studies []StudyWithQuestions `json:"studies"`
}

// InviteResponse exposes only public group fields to invite holders.
type InviteResponse struct {
	Status  string      `json:"status"`
	GroupID string      `json:"groupId"`
	Name    string      `json:"name"`
	Admin   UserProfile `json:"admin"`
}

type AcceptInviteResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	GroupID string `json:"groupId"`
}

type LeaveGroupResponse struct {
	Status       string `json:"status"`
	Message      string `json:"message"`
	GroupDeleted bool   `json:"groupDeleted"`
	NewAdminID   string `json:"newAdminId,omitempty"`
}

type StudyResponse struct {
	Status string             `json:"status"`
	Study  StudyWithQuestions `json:"study"`
}

type AnswerListResponse struct {
	Status  string           `json:"status"`
	Answers []AnswerWithUser `json:"answers"`
}

// AnswerResponse reports the upsert outcome: Created is true when the answer
// was new, false when an existing answer was replaced.
type AnswerResponse struct {
	Status  string         `json:"status"`
	Created bool           `json:"created"`
	Answer  AnswerWithUser `json:"answer"`
}

type ErrorResponse struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
