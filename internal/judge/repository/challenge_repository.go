package repository

import (
	"context"
	"database/sql"
	"io"

	"github.com/klauspost/compress/zstd"

	"crucible/internal/common/db"
	"crucible/internal/common/storage"
	"crucible/internal/exec/lang"
	"crucible/internal/judge/model"
	apperrors "crucible/pkg/errors"
)

// ChallengeStore is the read-only query surface over challenge-authoring
// data: ordered test cases and the baseline runtime per language. This
// subsystem never writes to it.
type ChallengeStore interface {
	GetTestCases(ctx context.Context, challengeID string) ([]model.TestCase, error)
	GetBaseline(ctx context.Context, challengeID string, language lang.Language) (*model.Baseline, error)
}

// maxOverflowBytes caps a hydrated test-case payload pulled from object
// storage.
const maxOverflowBytes = 8 << 20

type challengeStore struct {
	db      db.Database
	objects storage.ObjectStorage
	bucket  string
}

// NewChallengeStore wires the store. objects may be nil when no test case
// uses object-storage overflow payloads.
func NewChallengeStore(database db.Database, objects storage.ObjectStorage, bucket string) ChallengeStore {
	return &challengeStore{db: database, objects: objects, bucket: bucket}
}

func (s *challengeStore) GetTestCases(ctx context.Context, challengeID string) ([]model.TestCase, error) {
	const query = `
		SELECT id, challenge_id, input, expected_output, input_object_key, expected_object_key,
		       timeout_ms, memory_mb, points, order_index
		FROM test_cases WHERE challenge_id = ?
		ORDER BY order_index ASC`
	rows, err := s.db.Query(ctx, query, challengeID)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.DatabaseError, "test cases for challenge %s", challengeID)
	}
	defer rows.Close()

	var cases []model.TestCase
	for rows.Next() {
		var tc model.TestCase
		var inputKey, expectedKey sql.NullString
		if err := rows.Scan(&tc.ID, &tc.ChallengeID, &tc.Input, &tc.ExpectedOutput,
			&inputKey, &expectedKey, &tc.TimeoutMs, &tc.MemoryMB, &tc.Points, &tc.OrderIndex); err != nil {
			return nil, apperrors.Wrap(err, apperrors.DatabaseError)
		}
		tc.InputObjectKey = inputKey.String
		tc.ExpectedObjectKey = expectedKey.String
		if err := s.hydrate(ctx, &tc); err != nil {
			return nil, err
		}
		cases = append(cases, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.DatabaseError)
	}
	return cases, nil
}

func (s *challengeStore) GetBaseline(ctx context.Context, challengeID string, language lang.Language) (*model.Baseline, error) {
	const query = `
		SELECT challenge_id, language, runtime_ms
		FROM baselines WHERE challenge_id = ? AND language = ?`

	var b model.Baseline
	var langName string
	err := s.db.QueryRow(ctx, query, challengeID, language.String()).Scan(&b.ChallengeID, &langName, &b.RuntimeMs)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.DatabaseError, "baseline for challenge %s", challengeID)
	}
	b.Language, err = lang.Parse(langName)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.LanguageNotSupported)
	}
	return &b, nil
}

// hydrate pulls zstd-compressed overflow payloads from object storage for
// test cases too large to store inline.
func (s *challengeStore) hydrate(ctx context.Context, tc *model.TestCase) error {
	if tc.InputObjectKey != "" {
		data, err := s.fetch(ctx, tc.InputObjectKey)
		if err != nil {
			return err
		}
		tc.Input = data
	}
	if tc.ExpectedObjectKey != "" {
		data, err := s.fetch(ctx, tc.ExpectedObjectKey)
		if err != nil {
			return err
		}
		tc.ExpectedOutput = data
	}
	return nil
}

func (s *challengeStore) fetch(ctx context.Context, key string) (string, error) {
	if s.objects == nil {
		return "", apperrors.Newf(apperrors.StorageError, "test case references object %s but no object storage is configured", key)
	}
	obj, err := s.objects.GetObject(ctx, s.bucket, key)
	if err != nil {
		return "", apperrors.Wrapf(err, apperrors.StorageError, "fetch object %s", key)
	}
	defer obj.Close()

	reader, err := zstd.NewReader(obj)
	if err != nil {
		return "", apperrors.Wrapf(err, apperrors.StorageError, "zstd reader for %s", key)
	}
	defer reader.Close()

	data, err := io.ReadAll(io.LimitReader(reader, maxOverflowBytes))
	if err != nil {
		return "", apperrors.Wrapf(err, apperrors.StorageError, "decompress object %s", key)
	}
	return string(data), nil
}
