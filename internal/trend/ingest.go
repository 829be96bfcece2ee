package trend

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/dbhealthcheck/engine/internal/domain"
)

// Store is the Trend Ingest write surface: three stored-procedure
// shaped operations, invoked inside one transaction per run so a reader
// never observes a partial write.
type Store struct {
	db          *sql.DB
	keyProvider KeyProvider
}

// NewStore wraps an already-opened *sql.DB (see internal/platform/database.Open).
func NewStore(db *sql.DB, keyProvider KeyProvider) *Store {
	if keyProvider == nil {
		keyProvider = NoneKeyProvider{}
	}
	return &Store{db: db, keyProvider: keyProvider}
}

// IngestRun persists one completed Run atomically: save_run, then
// save_triggered_rules, then update_run_metadata, all inside a single
// transaction.
//
// Idempotence: re-ingesting the same (company_id, target, started_at)
// tuple replaces the prior row and cascades to its triggered-rule rows.
func (s *Store) IngestRun(ctx context.Context, run domain.Run, infrastructureMetadataJSON []byte) error {
	blob, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("trend: marshal findings blob: %w", err)
	}

	encrypted, mode, err := EncryptFindingsBlob(ctx, s.keyProvider, run.CompanyID, blob)
	if err != nil {
		return fmt.Errorf("trend: encrypt findings blob: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("trend: begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := saveRun(ctx, tx, run, encrypted, mode); err != nil {
		return err
	}
	if err := saveTriggeredRules(ctx, tx, run.RunID, run.Triggered); err != nil {
		return err
	}
	if err := updateRunMetadata(ctx, tx, run, infrastructureMetadataJSON); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("trend: commit transaction: %w", err)
	}
	return nil
}

// saveRun implements the save_run(target_metadata, findings_blob,
// encryption_mode) operation, replacing any prior row for
// the same (company_id, target, started_at) tuple.
func saveRun(ctx context.Context, tx *sql.Tx, run domain.Run, blob []byte, mode EncryptionMode) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO trend_runs (run_id, company_id, technology, cluster_name, started_at, ended_at, health_score, findings_blob, encryption_mode)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (company_id, technology, started_at)
		DO UPDATE SET
			run_id = EXCLUDED.run_id,
			cluster_name = EXCLUDED.cluster_name,
			ended_at = EXCLUDED.ended_at,
			health_score = EXCLUDED.health_score,
			findings_blob = EXCLUDED.findings_blob,
			encryption_mode = EXCLUDED.encryption_mode
	`, run.RunID, run.CompanyID, string(run.Target.Technology), run.Target.ClusterName, run.StartedAt, run.EndedAt, run.HealthScore, blob, string(mode))
	if err != nil {
		return fmt.Errorf("trend: save_run: %w", err)
	}
	return nil
}

// saveTriggeredRules implements save_triggered_rules(run_id, [rule
// record]), replacing any prior rows for run_id cascade-style.
func saveTriggeredRules(ctx context.Context, tx *sql.Tx, runID string, rules []domain.TriggeredRule) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM trend_triggered_rules WHERE run_id = $1`, runID); err != nil {
		return fmt.Errorf("trend: save_triggered_rules delete: %w", err)
	}
	for _, r := range rules {
		recs, err := json.Marshal(r.Recommendations)
		if err != nil {
			return fmt.Errorf("trend: marshal recommendations: %w", err)
		}
		row, err := json.Marshal(r.TriggeringRow)
		if err != nil {
			return fmt.Errorf("trend: marshal triggering row: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO trend_triggered_rules (run_id, check_id, metric_name, severity, score, reason, recommendations, triggering_row)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, runID, r.CheckID, r.MetricName, string(r.Severity), r.Score, r.Reason, recs, row)
		if err != nil {
			return fmt.Errorf("trend: save_triggered_rules insert: %w", err)
		}
	}
	return nil
}

// updateRunMetadata implements update_run_metadata(run_id, version_major,
// version_minor, cluster_name, node_count, infrastructure_metadata_json,
// health_score). When no metadata JSON is passed, Target.Provider is
// stored as the infrastructure metadata ({} when Provider is empty).
func updateRunMetadata(ctx context.Context, tx *sql.Tx, run domain.Run, infrastructureMetadataJSON []byte) error {
	if infrastructureMetadataJSON == nil {
		infrastructureMetadataJSON = []byte("{}")
		if run.Target.Provider != (domain.ProviderHints{}) {
			if raw, err := json.Marshal(run.Target.Provider); err == nil {
				infrastructureMetadataJSON = raw
			}
		}
	}
	_, err := tx.ExecContext(ctx, `
		UPDATE trend_runs SET
			version_major = $2,
			version_minor = $3,
			cluster_name = $4,
			node_count = $5,
			infrastructure_metadata = $6,
			health_score = $7
		WHERE run_id = $1
	`, run.RunID, run.Version.Major, run.Version.Minor, run.Target.ClusterName, run.Version.NodeCount, infrastructureMetadataJSON, run.HealthScore)
	if err != nil {
		return fmt.Errorf("trend: update_run_metadata: %w", err)
	}
	return nil
}
