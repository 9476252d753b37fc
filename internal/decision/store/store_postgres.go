package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"verigate/internal/decision"
	"verigate/internal/level"
	"verigate/internal/scoring"
	id "verigate/pkg/domain"
	"verigate/pkg/platform/sentinel"
)

const uniqueViolation = "23505"

// PostgresStore persists reports in the decision_reports table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed report store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const reportColumns = `id, subject_id, evidence_ref,
	document_score, biometric_score, behavioral_score, external_score,
	overall_score, risk_level, flags, recommendations, evaluated_at,
	verification_level, document_verification, biometric_match,
	address_verification, background_check, created_at, supersedes_id`

// Save inserts report and links it to the subject's previous latest report.
// A transaction-scoped advisory lock on the subject serializes concurrent
// saves so the supersession chain stays linear.
func (s *PostgresStore) Save(ctx context.Context, report *decision.DecisionReport) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save report: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	subject := uuid.UUID(report.SubjectID)
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, subject.String()); err != nil {
		return fmt.Errorf("lock subject: %w", err)
	}

	var prev uuid.NullUUID
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM decision_reports WHERE subject_id = $1 ORDER BY seq DESC LIMIT 1`,
		subject,
	).Scan(&prev)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("find latest report: %w", err)
	}

	var supersedes *id.ReportID
	if prev.Valid {
		p := id.ReportID(prev.UUID)
		supersedes = &p
	}

	levelText, err := report.Level.MarshalText()
	if err != nil {
		return fmt.Errorf("encode verification level: %w", err)
	}
	risk := report.Risk
	_, err = tx.ExecContext(ctx, `INSERT INTO decision_reports (`+reportColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		uuid.UUID(report.ID), subject, uuid.UUID(report.EvidenceRef),
		risk.Components.Document, risk.Components.Biometric, risk.Components.Behavioral, risk.Components.External,
		risk.Overall, string(risk.Level), pq.Array(nonNil(risk.Flags)), pq.Array(nonNil(risk.Recommendations)), risk.EvaluatedAt,
		string(levelText), report.Requirements.DocumentVerification, report.Requirements.BiometricMatch,
		report.Requirements.AddressVerification, report.Requirements.BackgroundCheck,
		report.CreatedAt, nullUUID(supersedes),
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("insert report: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("insert report: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit report: %w", err)
	}
	report.SupersedesID = supersedes
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, reportID id.ReportID) (*decision.DecisionReport, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+reportColumns+` FROM decision_reports WHERE id = $1`,
		uuid.UUID(reportID),
	)
	report, err := scanReport(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find report by id: %w", err)
	}
	return report, nil
}

// ListBySubject returns the subject's reports newest first.
func (s *PostgresStore) ListBySubject(ctx context.Context, subjectID id.SubjectID) ([]*decision.DecisionReport, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+reportColumns+` FROM decision_reports WHERE subject_id = $1 ORDER BY seq DESC`,
		uuid.UUID(subjectID),
	)
	if err != nil {
		return nil, fmt.Errorf("list reports by subject: %w", err)
	}
	defer rows.Close()

	reports := []*decision.DecisionReport{}
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		reports = append(reports, report)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reports: %w", err)
	}
	return reports, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (*decision.DecisionReport, error) {
	var (
		reportID, subjectID, evidenceRef uuid.UUID
		supersedes                       uuid.NullUUID
		riskLevel, levelText             string
		r                                decision.DecisionReport
	)
	err := row.Scan(
		&reportID, &subjectID, &evidenceRef,
		&r.Risk.Components.Document, &r.Risk.Components.Biometric, &r.Risk.Components.Behavioral, &r.Risk.Components.External,
		&r.Risk.Overall, &riskLevel, pq.Array(&r.Risk.Flags), pq.Array(&r.Risk.Recommendations), &r.Risk.EvaluatedAt,
		&levelText, &r.Requirements.DocumentVerification, &r.Requirements.BiometricMatch,
		&r.Requirements.AddressVerification, &r.Requirements.BackgroundCheck,
		&r.CreatedAt, &supersedes,
	)
	if err != nil {
		return nil, err
	}

	r.ID = id.ReportID(reportID)
	r.SubjectID = id.SubjectID(subjectID)
	r.EvidenceRef = id.EvidenceRef(evidenceRef)
	lvl, ok := scoring.ParseRiskLevel(riskLevel)
	if !ok {
		return nil, fmt.Errorf("unknown risk level %q", riskLevel)
	}
	r.Risk.Level = lvl
	if r.Level, err = level.ParseLevel(levelText); err != nil {
		return nil, err
	}
	r.Risk.Flags = nonNil(r.Risk.Flags)
	r.Risk.Recommendations = nonNil(r.Risk.Recommendations)
	r.Risk.EvaluatedAt = r.Risk.EvaluatedAt.UTC()
	r.CreatedAt = r.CreatedAt.UTC()
	if supersedes.Valid {
		prev := id.ReportID(supersedes.UUID)
		r.SupersedesID = &prev
	}
	return &r, nil
}

func nullUUID(rid *id.ReportID) uuid.NullUUID {
	if rid == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(*rid), Valid: true}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
