//go:build integration

package store_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"verigate/internal/decision"
	"verigate/internal/decision/store"
	"verigate/internal/level"
	"verigate/internal/platform/config"
	"verigate/internal/platform/postgres"
	platformredis "verigate/internal/platform/redis"
	"verigate/internal/scoring"
	id "verigate/pkg/domain"
	"verigate/pkg/platform/sentinel"
	"verigate/pkg/testutil/containers"
)

var createdAt = time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

func sampleReport(subject id.SubjectID) *decision.DecisionReport {
	return &decision.DecisionReport{
		ID:          id.NewReportID(),
		SubjectID:   subject,
		EvidenceRef: id.NewEvidenceRef(),
		Risk: scoring.RiskScore{
			Components:      scoring.ComponentScores{Document: 15, Biometric: 0, Behavioral: 25, External: 6.25},
			Overall:         46.25,
			Level:           scoring.RiskLevelHigh,
			Flags:           []string{scoring.FlagDocumentExpiresSoon, scoring.FlagLowBiometric, scoring.FlagLimitedExternal},
			Recommendations: []string{scoring.RecRenewDocument, scoring.RecRetakeBiometrics, scoring.RecMoreVerifications},
			EvaluatedAt:     createdAt,
		},
		Level:        level.Basic,
		Requirements: level.Requirements{DocumentVerification: true},
		CreatedAt:    createdAt,
	}
}

// =============================================================================
// PostgreSQL store
// =============================================================================

type PostgresStoreSuite struct {
	suite.Suite
	db    *sql.DB
	store *store.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	ctx := context.Background()
	db, err := postgres.Open(ctx, containers.NewPostgres(s.T()))
	s.Require().NoError(err)
	s.Require().NoError(postgres.Migrate(ctx, db))
	s.db = db
	s.store = store.NewPostgres(db)
}

func (s *PostgresStoreSuite) TearDownSuite() {
	_ = s.db.Close()
}

func (s *PostgresStoreSuite) SetupTest() {
	_, err := s.db.Exec(`TRUNCATE decision_reports`)
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	r := sampleReport(id.SubjectID(id.NewReportID()))
	s.Require().NoError(s.store.Save(ctx, r))

	got, err := s.store.FindByID(ctx, r.ID)
	s.Require().NoError(err)
	s.Equal(r, got)
}

func (s *PostgresStoreSuite) TestSupersession() {
	ctx := context.Background()
	subject := id.SubjectID(id.NewReportID())
	first := sampleReport(subject)
	second := sampleReport(subject)
	s.Require().NoError(s.store.Save(ctx, first))
	s.Require().NoError(s.store.Save(ctx, second))

	s.Nil(first.SupersedesID)
	s.Require().NotNil(second.SupersedesID)
	s.Equal(first.ID, *second.SupersedesID)

	history, err := s.store.ListBySubject(ctx, subject)
	s.Require().NoError(err)
	s.Require().Len(history, 2)
	s.Equal(second.ID, history[0].ID)
	s.Equal(first.ID, history[1].ID)
}

func (s *PostgresStoreSuite) TestConcurrentSavesFormOneChain() {
	ctx := context.Background()
	subject := id.SubjectID(id.NewReportID())
	const writers = 16

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.NoError(s.store.Save(ctx, sampleReport(subject)))
		}()
	}
	wg.Wait()

	history, err := s.store.ListBySubject(ctx, subject)
	s.Require().NoError(err)
	s.Require().Len(history, writers)
	for i := 0; i < writers-1; i++ {
		s.Require().NotNil(history[i].SupersedesID)
		s.Equal(history[i+1].ID, *history[i].SupersedesID)
	}
	s.Nil(history[writers-1].SupersedesID)
}

func (s *PostgresStoreSuite) TestErrors() {
	ctx := context.Background()
	_, err := s.store.FindByID(ctx, id.NewReportID())
	s.ErrorIs(err, sentinel.ErrNotFound)

	r := sampleReport(id.SubjectID(id.NewReportID()))
	s.Require().NoError(s.store.Save(ctx, r))
	s.ErrorIs(s.store.Save(ctx, r), sentinel.ErrConflict)
}

// =============================================================================
// Redis cache
// =============================================================================

type RedisCacheSuite struct {
	suite.Suite
	redis *platformredis.Client
	cache *store.RedisCache
}

func TestRedisCacheSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisCacheSuite))
}

func (s *RedisCacheSuite) SetupSuite() {
	client, err := platformredis.New(context.Background(), config.RedisConfig{
		URL:      containers.NewRedis(s.T()),
		PoolSize: 4,
	})
	s.Require().NoError(err)
	s.Require().NotNil(client)
	s.T().Cleanup(func() { _ = client.Close() })

	s.redis = client
	s.cache = store.NewRedisCache(client.Client, time.Minute)
}

func (s *RedisCacheSuite) SetupTest() {
	ctx := context.Background()
	s.Require().NoError(s.redis.Health(ctx))
	s.Require().NoError(s.redis.FlushAll(ctx).Err())
}

func (s *RedisCacheSuite) TestRoundTrip() {
	ctx := context.Background()
	r := sampleReport(id.SubjectID(id.NewReportID()))
	prev := id.NewReportID()
	r.SupersedesID = &prev

	s.Require().NoError(s.cache.Set(ctx, r))
	got, err := s.cache.Get(ctx, r.ID)
	s.Require().NoError(err)
	s.Equal(r, got)

	ttl, err := s.redis.Client.TTL(ctx, "verigate:report:"+r.ID.String()).Result()
	s.Require().NoError(err)
	s.Greater(ttl, time.Duration(0))
}

func (s *RedisCacheSuite) TestMiss() {
	_, err := s.cache.Get(context.Background(), id.NewReportID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}
