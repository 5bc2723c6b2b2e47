package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"talentline/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// ErrVersionConflict signals a lost optimistic-concurrency race on a
// candidate aggregate: the row version changed between read and write.
var ErrVersionConflict = errors.New("candidate was modified concurrently")

const candidateColumns = `id,first_name,last_name,email,COALESCE(phone,'') AS phone,current_status,offer_json,hired_json,rejection_json,version,created_at,updated_at`

func scanCandidate(scan func(dest ...any) error) (domain.Candidate, error) {
	var c domain.Candidate
	var offerJSON, hiredJSON, rejectionJSON sql.NullString
	err := scan(&c.ID, &c.FirstName, &c.LastName, &c.Email, &c.Phone, &c.CurrentStatus,
		&offerJSON, &hiredJSON, &rejectionJSON, &c.Version, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	if err != nil {
		return c, err
	}
	if offerJSON.Valid {
		c.Offer = &domain.Offer{}
		if err := json.Unmarshal([]byte(offerJSON.String), c.Offer); err != nil {
			return c, fmt.Errorf("decode offer: %w", err)
		}
	}
	if hiredJSON.Valid {
		c.HiredDetails = &domain.HireRecord{}
		if err := json.Unmarshal([]byte(hiredJSON.String), c.HiredDetails); err != nil {
			return c, fmt.Errorf("decode hire record: %w", err)
		}
	}
	if rejectionJSON.Valid {
		c.RejectionDetails = &domain.RejectionRecord{}
		if err := json.Unmarshal([]byte(rejectionJSON.String), c.RejectionDetails); err != nil {
			return c, fmt.Errorf("decode rejection record: %w", err)
		}
	}
	return c, nil
}

func (r Repo) InsertCandidate(ctx context.Context, tx *sql.Tx, c domain.Candidate) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO candidates(id,first_name,last_name,email,phone,current_status,version,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?)`,
		c.ID, c.FirstName, c.LastName, c.Email, nullable(c.Phone), c.CurrentStatus, c.Version, c.CreatedAt, c.UpdatedAt)
	return err
}

// GetCandidate loads the full aggregate: candidate row plus nested
// assessments and interviews ordered by sequence.
func (r Repo) GetCandidate(ctx context.Context, id string) (domain.Candidate, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+candidateColumns+` FROM candidates WHERE id=?`, id)
	c, err := scanCandidate(row.Scan)
	if err != nil {
		return c, err
	}
	if c.Assessments, err = r.listAssessments(ctx, id); err != nil {
		return c, err
	}
	if c.Interviews, err = r.listInterviews(ctx, id); err != nil {
		return c, err
	}
	return c, nil
}

func (r Repo) ListCandidates(ctx context.Context) ([]domain.Candidate, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+candidateColumns+` FROM candidates ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Candidate
	for rows.Next() {
		c, err := scanCandidate(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range res {
		if res[i].Assessments, err = r.listAssessments(ctx, res[i].ID); err != nil {
			return nil, err
		}
		if res[i].Interviews, err = r.listInterviews(ctx, res[i].ID); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// SaveCandidateTx writes the whole aggregate back. The candidate row update
// carries a version check; zero affected rows means another writer got there
// first and the caller must retry from a fresh read.
func (r Repo) SaveCandidateTx(ctx context.Context, tx *sql.Tx, c domain.Candidate) error {
	offerJSON, err := marshalOptional(c.Offer)
	if err != nil {
		return fmt.Errorf("encode offer: %w", err)
	}
	hiredJSON, err := marshalOptional(c.HiredDetails)
	if err != nil {
		return fmt.Errorf("encode hire record: %w", err)
	}
	rejectionJSON, err := marshalOptional(c.RejectionDetails)
	if err != nil {
		return fmt.Errorf("encode rejection record: %w", err)
	}
	res, err := tx.ExecContext(ctx, `UPDATE candidates SET first_name=?,last_name=?,email=?,phone=?,current_status=?,offer_json=?,hired_json=?,rejection_json=?,version=version+1,updated_at=? WHERE id=? AND version=?`,
		c.FirstName, c.LastName, c.Email, nullable(c.Phone), c.CurrentStatus, offerJSON, hiredJSON, rejectionJSON, c.UpdatedAt, c.ID, c.Version)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var one int
		switch err := tx.QueryRowContext(ctx, `SELECT 1 FROM candidates WHERE id=?`, c.ID).Scan(&one); err {
		case sql.ErrNoRows:
			return ErrNotFound
		case nil:
			return ErrVersionConflict
		default:
			return err
		}
	}
	for _, a := range c.Assessments {
		if err := r.upsertAssessmentTx(ctx, tx, c.ID, a); err != nil {
			return err
		}
	}
	for _, iv := range c.Interviews {
		if err := r.upsertInterviewTx(ctx, tx, c.ID, iv); err != nil {
			return err
		}
	}
	return nil
}

func marshalOptional(v any) (any, error) {
	switch x := v.(type) {
	case *domain.Offer:
		if x == nil {
			return nil, nil
		}
	case *domain.HireRecord:
		if x == nil {
			return nil, nil
		}
	case *domain.RejectionRecord:
		if x == nil {
			return nil, nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (r Repo) listAssessments(ctx context.Context, candidateID string) ([]domain.CandidateAssessment, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,assessment_id,assessment_name,max_score,COALESCE(evaluator_id,'') AS evaluator_id,sequence,scheduled_date,status,score,remarks,completion_date,evaluation_date FROM candidate_assessments WHERE candidate_id=? ORDER BY sequence ASC`, candidateID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.CandidateAssessment
	for rows.Next() {
		var a domain.CandidateAssessment
		var score sql.NullInt64
		var remarks, completion, evaluation sql.NullString
		if err := rows.Scan(&a.ID, &a.AssessmentID, &a.AssessmentName, &a.MaxScore, &a.EvaluatorID,
			&a.Sequence, &a.ScheduledDate, &a.Status, &score, &remarks, &completion, &evaluation); err != nil {
			return nil, err
		}
		if score.Valid {
			v := int(score.Int64)
			a.Score = &v
		}
		a.Remarks = optionalNullString(remarks)
		a.CompletionDate = optionalNullString(completion)
		a.EvaluationDate = optionalNullString(evaluation)
		res = append(res, a)
	}
	return res, rows.Err()
}

func (r Repo) listInterviews(ctx context.Context, candidateID string) ([]domain.CandidateInterview, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,interview_type,COALESCE(interview_location,'') AS interview_location,COALESCE(evaluator_id,'') AS evaluator_id,sequence,scheduled_datetime,status,score,remarks,conducted_date,evaluation_date FROM candidate_interviews WHERE candidate_id=? ORDER BY sequence ASC`, candidateID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.CandidateInterview
	for rows.Next() {
		var iv domain.CandidateInterview
		var score sql.NullInt64
		var remarks, conducted, evaluation sql.NullString
		if err := rows.Scan(&iv.ID, &iv.InterviewType, &iv.InterviewLocation, &iv.EvaluatorID,
			&iv.Sequence, &iv.ScheduledDatetime, &iv.Status, &score, &remarks, &conducted, &evaluation); err != nil {
			return nil, err
		}
		if score.Valid {
			v := int(score.Int64)
			iv.Score = &v
		}
		iv.Remarks = optionalNullString(remarks)
		iv.ConductedDate = optionalNullString(conducted)
		iv.EvaluationDate = optionalNullString(evaluation)
		res = append(res, iv)
	}
	return res, rows.Err()
}

func (r Repo) upsertAssessmentTx(ctx context.Context, tx *sql.Tx, candidateID string, a domain.CandidateAssessment) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO candidate_assessments(id,candidate_id,assessment_id,assessment_name,max_score,evaluator_id,sequence,scheduled_date,status,score,remarks,completion_date,evaluation_date)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET status=excluded.status, score=excluded.score, remarks=excluded.remarks, completion_date=excluded.completion_date, evaluation_date=excluded.evaluation_date, scheduled_date=excluded.scheduled_date`,
		a.ID, candidateID, a.AssessmentID, a.AssessmentName, a.MaxScore, nullable(a.EvaluatorID), a.Sequence, a.ScheduledDate, a.Status,
		nullableInt(a.Score), nullableString(a.Remarks), nullableString(a.CompletionDate), nullableString(a.EvaluationDate))
	return err
}

func (r Repo) upsertInterviewTx(ctx context.Context, tx *sql.Tx, candidateID string, iv domain.CandidateInterview) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO candidate_interviews(id,candidate_id,interview_type,interview_location,evaluator_id,sequence,scheduled_datetime,status,score,remarks,conducted_date,evaluation_date)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET status=excluded.status, score=excluded.score, remarks=excluded.remarks, conducted_date=excluded.conducted_date, evaluation_date=excluded.evaluation_date, scheduled_datetime=excluded.scheduled_datetime`,
		iv.ID, candidateID, iv.InterviewType, nullable(iv.InterviewLocation), nullable(iv.EvaluatorID), iv.Sequence, iv.ScheduledDatetime, iv.Status,
		nullableInt(iv.Score), nullableString(iv.Remarks), nullableString(iv.ConductedDate), nullableString(iv.EvaluationDate))
	return err
}

// --- catalog: assessment definitions, positions, evaluators ---

func (r Repo) InsertAssessmentDefinition(ctx context.Context, d domain.AssessmentDefinition) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO assessment_definitions(id,name,description,max_score,created_at) VALUES (?,?,?,?,?)`,
		d.ID, d.Name, nullable(d.Description), d.MaxScore, d.CreatedAt)
	return err
}

func (r Repo) GetAssessmentDefinition(ctx context.Context, id string) (domain.AssessmentDefinition, error) {
	var d domain.AssessmentDefinition
	err := r.DB.QueryRowContext(ctx, `SELECT id,name,COALESCE(description,''),max_score,created_at FROM assessment_definitions WHERE id=?`, id).
		Scan(&d.ID, &d.Name, &d.Description, &d.MaxScore, &d.CreatedAt)
	if err == sql.ErrNoRows {
		return d, fmt.Errorf("assessment definition %s: %w", id, ErrNotFound)
	}
	return d, err
}

func (r Repo) ListAssessmentDefinitions(ctx context.Context) ([]domain.AssessmentDefinition, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,name,COALESCE(description,''),max_score,created_at FROM assessment_definitions ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.AssessmentDefinition
	for rows.Next() {
		var d domain.AssessmentDefinition
		if err := rows.Scan(&d.ID, &d.Name, &d.Description, &d.MaxScore, &d.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, rows.Err()
}

func (r Repo) InsertPosition(ctx context.Context, p domain.Position) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO positions(id,title,department,created_at) VALUES (?,?,?,?)`,
		p.ID, p.Title, nullable(p.Department), p.CreatedAt)
	return err
}

func (r Repo) GetPosition(ctx context.Context, id string) (domain.Position, error) {
	var p domain.Position
	err := r.DB.QueryRowContext(ctx, `SELECT id,title,COALESCE(department,''),created_at FROM positions WHERE id=?`, id).
		Scan(&p.ID, &p.Title, &p.Department, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return p, fmt.Errorf("position %s: %w", id, ErrNotFound)
	}
	return p, err
}

func (r Repo) ListPositions(ctx context.Context) ([]domain.Position, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,title,COALESCE(department,''),created_at FROM positions ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Position
	for rows.Next() {
		var p domain.Position
		if err := rows.Scan(&p.ID, &p.Title, &p.Department, &p.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func (r Repo) InsertEvaluator(ctx context.Context, e domain.Evaluator) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO evaluators(id,name,email,created_at) VALUES (?,?,?,?)`,
		e.ID, e.Name, nullable(e.Email), e.CreatedAt)
	return err
}

func (r Repo) GetEvaluator(ctx context.Context, id string) (domain.Evaluator, error) {
	var e domain.Evaluator
	err := r.DB.QueryRowContext(ctx, `SELECT id,name,COALESCE(email,''),created_at FROM evaluators WHERE id=?`, id).
		Scan(&e.ID, &e.Name, &e.Email, &e.CreatedAt)
	if err == sql.ErrNoRows {
		return e, fmt.Errorf("evaluator %s: %w", id, ErrNotFound)
	}
	return e, err
}

func (r Repo) ListEvaluators(ctx context.Context) ([]domain.Evaluator, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,name,COALESCE(email,''),created_at FROM evaluators ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Evaluator
	for rows.Next() {
		var e domain.Evaluator
		if err := rows.Scan(&e.ID, &e.Name, &e.Email, &e.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// --- audit log ---

// ListEvents returns events for a candidate, newest first, keyset-paginated
// on the numeric id.
func (r Repo) ListEvents(ctx context.Context, candidateID string, limit int, cursorID int64) ([]domain.Event, error) {
	clauses := []string{"candidate_id=?"}
	args := []any{candidateID}
	if cursorID > 0 {
		clauses = append(clauses, "id < ?")
		args = append(args, cursorID)
	}
	query := `SELECT id,ts,type,COALESCE(candidate_id,''),entity_kind,COALESCE(entity_id,''),actor_id,payload_json FROM events WHERE ` +
		strings.Join(clauses, " AND ") + ` ORDER BY id DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var ev domain.Event
		if err := rows.Scan(&ev.ID, &ev.TS, &ev.Type, &ev.CandidateID, &ev.EntityKind, &ev.EntityID, &ev.ActorID, &ev.Payload); err != nil {
			return nil, err
		}
		res = append(res, ev)
	}
	return res, rows.Err()
}

// --- helpers ---

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableString(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func optionalNullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
