package models

import (
	"time"
)

// User represents a user in the system
type User struct {
	ID        string    `db:"id" json:"id"`
	Email     string    `db:"email" json:"email"`
	Name      string    `db:"name" json:"name"`
	Password  string    `db:"password" json:"-"` // Password hash, not returned in JSON
	Image     string    `db:"image" json:"image,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// UserProfile is the public subset of a user that may be shown to other members.
type UserProfile struct {
	ID    string `db:"id" json:"id"`
	Name  string `db:"name" json:"name"`
	Email string `db:"email" json:"email"`
	Image string `db:"image" json:"image,omitempty"`
}

// Profile returns the public view of the user.
func (u *User) Profile() UserProfile {
	return UserProfile{
		ID:    u.ID,
		Name:  u.Name,
		Email: u.Email,
		Image: u.Image,
	}
}

// StudyGroup represents a study group with one admin and a member roster
type StudyGroup struct {
	ID         string    `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	InviteCode string    `db:"invite_code" json:"inviteCode"`
	AdminID    string    `db:"admin_id" json:"adminId"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time `db:"updated_at" json:"updatedAt"`
}

// GroupMember represents the membership relationship between users and study groups
type GroupMember struct {
	GroupID   string    `db:"group_id" json:"groupId"`
	UserID    string    `db:"user_id" json:"userId"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// Study statuses. A study is created active and completes exactly once.
const (
	StudyStatusActive    = "active"
	StudyStatusCompleted = "completed"
)

// Study represents one discussion study for a group. At most one study per
// group has IsCurrent set.
type Study struct {
	ID           string    `db:"id" json:"id"`
	StudyGroupID string    `db:"study_group_id" json:"studyGroupId"`
	BibleBook    string    `db:"bible_book" json:"bibleBook"`
	BibleChapter int       `db:"bible_chapter" json:"bibleChapter"`
	IsCurrent    bool      `db:"is_current" json:"isCurrent"`
	Status       string    `db:"status" json:"status"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

// Question represents a discussion question belonging to a study.
// Questions are created with their study and never change afterwards.
type Question struct {
	ID         string `db:"id" json:"id"`
	StudyID    string `db:"study_id" json:"studyId"`
	Position   int    `db:"position" json:"position"`
	Context    string `db:"context" json:"context"`
	Discussion string `db:"discussion" json:"discussion"`
	Principle  string `db:"principle" json:"principle,omitempty"`
	Passage    string `db:"passage" json:"passage,omitempty"`
}

// Answer represents a user's answer to a question. There is at most one
// answer per (question, user) pair; resubmission replaces the content.
type Answer struct {
	ID         string    `db:"id" json:"id"`
	QuestionID string    `db:"question_id" json:"questionId"`
	UserID     string    `db:"user_id" json:"userId"`
	Content    string    `db:"content" json:"content"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time `db:"updated_at" json:"updatedAt"`
}

// AnswerWithUser joins an answer with the answering user's public profile
type AnswerWithUser struct {
	Answer
	User UserProfile `json:"user"`
}
