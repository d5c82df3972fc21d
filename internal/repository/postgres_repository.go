package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/ChanceW/WiseTowerBuilders/internal/models"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// ErrAdminChanged is returned when an admin transfer or a member removal
// loses a race with a concurrent change to the group's admin seat.
var ErrAdminChanged = errors.New("group admin changed concurrently")

// ErrDuplicateEmail is returned when a user insert collides with an already
// registered email address.
var ErrDuplicateEmail = errors.New("email already registered")

// Repository interface defines the methods that any repository implementation must satisfy
type Repository interface {
	// User operations
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	UpdateUserName(ctx context.Context, id, name string) (*models.User, error)

	// Group operations
	CreateGroup(ctx context.Context, group *models.StudyGroup) error
	GetGroup(ctx context.Context, groupID string) (*models.StudyGroup, error)
	GetGroupByInviteCode(ctx context.Context, code string) (*models.StudyGroup, error)
	RenameGroup(ctx context.Context, groupID, name string) error
	DeleteGroup(ctx context.Context, groupID string) error
	ListAdminGroups(ctx context.Context, userID string) ([]models.StudyGroup, error)
	ListMemberGroups(ctx context.Context, userID string) ([]models.StudyGroup, error)

	// Membership operations
	ListGroupMembers(ctx context.Context, groupID string) ([]models.UserProfile, error)
	IsGroupMember(ctx context.Context, groupID, userID string) (bool, error)
	AddGroupMember(ctx context.Context, groupID, userID string) error
	RemoveGroupMember(ctx context.Context, groupID, userID string) error
	TransferAdmin(ctx context.Context, groupID, oldAdminID, newAdminID string) error

	// Study operations
	CreateStudy(ctx context.Context, study *models.Study, questions []models.Question) error
	GetStudy(ctx context.Context, studyID string) (*models.Study, error)
	ListGroupStudies(ctx context.Context, groupID string) ([]models.Study, error)
	CompleteStudy(ctx context.Context, studyID string) (bool, error)

	// Question and answer operations
	GetQuestion(ctx context.Context, questionID string) (*models.Question, error)
	ListStudyQuestions(ctx context.Context, studyID string) ([]models.Question, error)
	ListAnswers(ctx context.Context, questionID string) ([]models.AnswerWithUser, error)
	UpsertAnswer(ctx context.Context, answer *models.Answer) (bool, error)
}

// PostgresRepository implements the Repository interface using PostgreSQL
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{
		db: db,
	}
}

// GetDB returns the underlying database connection
func (r *PostgresRepository) GetDB() *sqlx.DB {
	return r.db
}

// User repository methods
func (r *PostgresRepository) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, email, name, password, image, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	// Generate a new UUID if not provided
	if user.ID == "" {
		user.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, query,
		user.ID, user.Email, user.Name, user.Password, user.Image, user.CreatedAt, user.UpdatedAt)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
		return ErrDuplicateEmail
	}

	return err
}

func (r *PostgresRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT * FROM users WHERE email = $1`

	var user models.User
	err := r.db.GetContext(ctx, &user, query, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // User not found
		}
		return nil, err
	}

	return &user, nil
}

func (r *PostgresRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT * FROM users WHERE id = $1`

	var user models.User
	err := r.db.GetContext(ctx, &user, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // User not found
		}
		return nil, err
	}

	return &user, nil
}

func (r *PostgresRepository) UpdateUserName(ctx context.Context, id, name string) (*models.User, error) {
	query := `UPDATE users SET name = $1, updated_at = $2 WHERE id = $3`

	_, err := r.db.ExecContext(ctx, query, name, time.Now().UTC(), id)
	if err != nil {
		return nil, err
	}

	return r.GetUserByID(ctx, id)
}

// Group repository methods
func (r *PostgresRepository) CreateGroup(ctx context.Context, group *models.StudyGroup) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
			return
		}
	}()

	// Generate a new UUID if not provided
	if group.ID == "" {
		group.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	group.CreatedAt = now
	group.UpdatedAt = now

	query := `
		INSERT INTO study_groups (id, name, invite_code, admin_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err = tx.ExecContext(ctx, query,
		group.ID, group.Name, group.InviteCode, group.AdminID, group.CreatedAt, group.UpdatedAt)
	if err != nil {
		return err
	}

	// The admin is always also a member
	_, err = tx.ExecContext(ctx,
		`INSERT INTO study_group_members (group_id, user_id, created_at) VALUES ($1, $2, $3)`,
		group.ID, group.AdminID, now)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (r *PostgresRepository) GetGroup(ctx context.Context, groupID string) (*models.StudyGroup, error) {
	query := `SELECT * FROM study_groups WHERE id = $1`

	var group models.StudyGroup
	err := r.db.GetContext(ctx, &group, query, groupID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Group not found
		}
		return nil, err
	}

	return &group, nil
}

func (r *PostgresRepository) GetGroupByInviteCode(ctx context.Context, code string) (*models.StudyGroup, error) {
	query := `SELECT * FROM study_groups WHERE invite_code = $1`

	var group models.StudyGroup
	err := r.db.GetContext(ctx, &group, query, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Group not found
		}
		return nil, err
	}

	return &group, nil
}

func (r *PostgresRepository) RenameGroup(ctx context.Context, groupID, name string) error {
	query := `UPDATE study_groups SET name = $1, updated_at = $2 WHERE id = $3`

	_, err := r.db.ExecContext(ctx, query, name, time.Now().UTC(), groupID)
	return err
}

// DeleteGroup removes a group and everything that hangs off it. The schema
// has cascading foreign keys, but the dependents are deleted explicitly so
// the cleanup happens in one visible transaction.
func (r *PostgresRepository) DeleteGroup(ctx context.Context, groupID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
			return
		}
	}()

	_, err = tx.ExecContext(ctx, `
		DELETE FROM answers WHERE question_id IN (
			SELECT q.id FROM questions q
			JOIN studies s ON q.study_id = s.id
			WHERE s.study_group_id = $1
		)`, groupID)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM questions WHERE study_id IN (
			SELECT id FROM studies WHERE study_group_id = $1
		)`, groupID)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `DELETE FROM studies WHERE study_group_id = $1`, groupID)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `DELETE FROM study_group_members WHERE group_id = $1`, groupID)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `DELETE FROM study_groups WHERE id = $1`, groupID)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (r *PostgresRepository) ListAdminGroups(ctx context.Context, userID string) ([]models.StudyGroup, error) {
	query := `SELECT * FROM study_groups WHERE admin_id = $1 ORDER BY created_at DESC`

	groups := []models.StudyGroup{}
	err := r.db.SelectContext(ctx, &groups, query, userID)
	if err != nil {
		return nil, err
	}

	return groups, nil
}

func (r *PostgresRepository) ListMemberGroups(ctx context.Context, userID string) ([]models.StudyGroup, error) {
	query := `
		SELECT g.* FROM study_groups g
		JOIN study_group_members m ON g.id = m.group_id
		WHERE m.user_id = $1 AND g.admin_id != $1
		ORDER BY g.created_at DESC
	`

	groups := []models.StudyGroup{}
	err := r.db.SelectContext(ctx, &groups, query, userID)
	if err != nil {
		return nil, err
	}

	return groups, nil
}

// Membership repository methods
func (r *PostgresRepository) ListGroupMembers(ctx context.Context, groupID string) ([]models.UserProfile, error) {
	query := `
		SELECT u.id, u.name, u.email, u.image FROM users u
		JOIN study_group_members m ON u.id = m.user_id
		WHERE m.group_id = $1
		ORDER BY m.created_at ASC
	`

	members := []models.UserProfile{}
	err := r.db.SelectContext(ctx, &members, query, groupID)
	if err != nil {
		return nil, err
	}

	return members, nil
}

func (r *PostgresRepository) IsGroupMember(ctx context.Context, groupID, userID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM study_group_members WHERE group_id = $1 AND user_id = $2)`,
		groupID, userID).Scan(&exists)
	if err != nil {
		return false, err
	}

	return exists, nil
}

func (r *PostgresRepository) AddGroupMember(ctx context.Context, groupID, userID string) error {
	query := `
		INSERT INTO study_group_members (group_id, user_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (group_id, user_id) DO NOTHING
	`

	_, err := r.db.ExecContext(ctx, query, groupID, userID, time.Now().UTC())
	return err
}

// RemoveGroupMember removes a plain member from the roster. The group row is
// locked first so removals serialize with admin transfers; if the departing
// user holds the admin seat by the time the lock is acquired, ErrAdminChanged
// is returned and the roster is left untouched.
func (r *PostgresRepository) RemoveGroupMember(ctx context.Context, groupID, userID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
			return
		}
	}()

	var adminID string
	err = tx.QueryRowContext(ctx,
		`SELECT admin_id FROM study_groups WHERE id = $1 FOR UPDATE`,
		groupID).Scan(&adminID)
	if errors.Is(err, sql.ErrNoRows) {
		// Group deleted concurrently; nothing left to remove
		err = nil
		return tx.Rollback()
	}
	if err != nil {
		return err
	}
	if adminID == userID {
		err = ErrAdminChanged
		return err
	}

	_, err = tx.ExecContext(ctx,
		`DELETE FROM study_group_members WHERE group_id = $1 AND user_id = $2`,
		groupID, userID)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// TransferAdmin reassigns the group admin and removes the departing admin
// from the member roster in one transaction. The group row is locked first so
// concurrent transfers and leaves serialize, and the successor's membership
// is rechecked under that lock: the caller's roster read predates the
// transaction and the successor may have left in the meantime.
func (r *PostgresRepository) TransferAdmin(ctx context.Context, groupID, oldAdminID, newAdminID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
			return
		}
	}()

	var adminID string
	err = tx.QueryRowContext(ctx,
		`SELECT admin_id FROM study_groups WHERE id = $1 FOR UPDATE`,
		groupID).Scan(&adminID)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrAdminChanged
		return err
	}
	if err != nil {
		return err
	}
	if adminID != oldAdminID {
		err = ErrAdminChanged
		return err
	}

	var successorIsMember bool
	err = tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM study_group_members WHERE group_id = $1 AND user_id = $2)`,
		groupID, newAdminID).Scan(&successorIsMember)
	if err != nil {
		return err
	}
	if !successorIsMember {
		err = ErrAdminChanged
		return err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE study_groups SET admin_id = $1, updated_at = $2 WHERE id = $3`,
		newAdminID, time.Now().UTC(), groupID)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`DELETE FROM study_group_members WHERE group_id = $1 AND user_id = $2`,
		groupID, oldAdminID)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// Study repository methods

// CreateStudy demotes any current study of the group and inserts the new
// study with its questions as one atomic write.
func (r *PostgresRepository) CreateStudy(ctx context.Context, study *models.Study, questions []models.Question) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
			return
		}
	}()

	_, err = tx.ExecContext(ctx,
		`UPDATE studies SET is_current = FALSE WHERE study_group_id = $1 AND is_current = TRUE`,
		study.StudyGroupID)
	if err != nil {
		return err
	}

	if study.ID == "" {
		study.ID = uuid.New().String()
	}
	study.IsCurrent = true
	study.Status = models.StudyStatusActive
	study.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO studies (id, study_group_id, bible_book, bible_chapter, is_current, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = tx.ExecContext(ctx, query,
		study.ID, study.StudyGroupID, study.BibleBook, study.BibleChapter,
		study.IsCurrent, study.Status, study.CreatedAt)
	if err != nil {
		return err
	}

	for i := range questions {
		if questions[i].ID == "" {
			questions[i].ID = uuid.New().String()
		}
		questions[i].StudyID = study.ID
		questions[i].Position = i

		_, err = tx.ExecContext(ctx,
			`INSERT INTO questions (id, study_id, position, context, discussion, principle, passage)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			questions[i].ID, questions[i].StudyID, questions[i].Position, questions[i].Context,
			questions[i].Discussion, questions[i].Principle, questions[i].Passage)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *PostgresRepository) GetStudy(ctx context.Context, studyID string) (*models.Study, error) {
	query := `SELECT * FROM studies WHERE id = $1`

	var study models.Study
	err := r.db.GetContext(ctx, &study, query, studyID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Study not found
		}
		return nil, err
	}

	return &study, nil
}

func (r *PostgresRepository) ListGroupStudies(ctx context.Context, groupID string) ([]models.Study, error) {
	query := `SELECT * FROM studies WHERE study_group_id = $1 ORDER BY created_at DESC`

	studies := []models.Study{}
	err := r.db.SelectContext(ctx, &studies, query, groupID)
	if err != nil {
		return nil, err
	}

	return studies, nil
}

// CompleteStudy marks the study completed. The update is guarded on
// is_current so only the current study can complete; the bool reports
// whether the transition happened.
func (r *PostgresRepository) CompleteStudy(ctx context.Context, studyID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE studies SET is_current = FALSE, status = $1 WHERE id = $2 AND is_current = TRUE`,
		models.StudyStatusCompleted, studyID)
	if err != nil {
		return false, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rows > 0, nil
}

// Question and answer repository methods
func (r *PostgresRepository) GetQuestion(ctx context.Context, questionID string) (*models.Question, error) {
	query := `SELECT * FROM questions WHERE id = $1`

	var question models.Question
	err := r.db.GetContext(ctx, &question, query, questionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Question not found
		}
		return nil, err
	}

	return &question, nil
}

func (r *PostgresRepository) ListStudyQuestions(ctx context.Context, studyID string) ([]models.Question, error) {
	query := `SELECT * FROM questions WHERE study_id = $1 ORDER BY position ASC`

	questions := []models.Question{}
	err := r.db.SelectContext(ctx, &questions, query, studyID)
	if err != nil {
		return nil, err
	}

	return questions, nil
}

// answerUserRow is the flat join row for answers with their author's profile
type answerUserRow struct {
	models.Answer
	UserName  string `db:"user_name"`
	UserEmail string `db:"user_email"`
	UserImage string `db:"user_image"`
}

func (r *PostgresRepository) ListAnswers(ctx context.Context, questionID string) ([]models.AnswerWithUser, error) {
	query := `
		SELECT a.id, a.question_id, a.user_id, a.content, a.created_at, a.updated_at,
			u.name AS user_name, u.email AS user_email, u.image AS user_image
		FROM answers a
		JOIN users u ON a.user_id = u.id
		WHERE a.question_id = $1
		ORDER BY a.created_at DESC
	`

	rows := []answerUserRow{}
	err := r.db.SelectContext(ctx, &rows, query, questionID)
	if err != nil {
		return nil, err
	}

	answers := make([]models.AnswerWithUser, 0, len(rows))
	for _, row := range rows {
		answers = append(answers, models.AnswerWithUser{
			Answer: row.Answer,
			User: models.UserProfile{
				ID:    row.UserID,
				Name:  row.UserName,
				Email: row.UserEmail,
				Image: row.UserImage,
			},
		})
	}

	return answers, nil
}

// UpsertAnswer inserts the answer or replaces the content of an existing one,
// keyed on the (question_id, user_id) uniqueness constraint. Returns true when
// a new row was created. The single statement avoids the read-then-write race
// of two concurrent submissions from the same user.
func (r *PostgresRepository) UpsertAnswer(ctx context.Context, answer *models.Answer) (bool, error) {
	if answer.ID == "" {
		answer.ID = uuid.New().String()
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO answers (id, question_id, user_id, content, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (question_id, user_id)
		DO UPDATE SET content = EXCLUDED.content, updated_at = EXCLUDED.updated_at
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRowContext(ctx, query,
		answer.ID, answer.QuestionID, answer.UserID, answer.Content, now).
		Scan(&answer.ID, &answer.CreatedAt, &answer.UpdatedAt)
	if err != nil {
		return false, err
	}

	// On insert both timestamps carry the value passed in; on update only
	// updated_at does.
	created := answer.CreatedAt.Equal(answer.UpdatedAt)

	return created, nil
}
