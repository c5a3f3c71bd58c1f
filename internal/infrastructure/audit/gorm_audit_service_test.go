package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/soleron/sessiond/internal/domain/models"
	"github.com/soleron/sessiond/pkg/constants"
)

type GormAuditServiceSuite struct {
	suite.Suite
	svc *GormAuditService
}

func (s *GormAuditServiceSuite) SetupTest() {
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(s.T(), err)
	require.NoError(s.T(), db.Migrator().DropTable(&models.SecurityEvent{}))

	sink, err := NewGormAuditService(db)
	require.NoError(s.T(), err)
	s.svc = sink.(*GormAuditService)
}

func (s *GormAuditServiceSuite) TestRecordAndQueryEvents() {
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)

	events := []*models.SecurityEvent{
		{EventType: constants.EventFingerprintMismatch, UserID: "u1", SessionID: "sess-1", IPAddress: "198.51.100.23", CreatedAt: base},
		{EventType: constants.EventCSRFRejected, IPAddress: "198.51.100.23", Detail: "missing CSRF cookie", CreatedAt: base.Add(time.Second)},
		{EventType: constants.EventFingerprintMismatch, UserID: "u2", SessionID: "sess-2", CreatedAt: base.Add(2 * time.Second)},
	}
	for _, e := range events {
		s.Require().NoError(s.svc.RecordEvent(ctx, e))
	}

	mismatches, err := s.svc.RecentEvents(ctx, constants.EventFingerprintMismatch, 10)
	s.Require().NoError(err)
	s.Require().Len(mismatches, 2)
	s.Equal("u2", mismatches[0].UserID, "newest first")
	s.Equal("u1", mismatches[1].UserID)

	all, err := s.svc.RecentEvents(ctx, "", 10)
	s.Require().NoError(err)
	s.Len(all, 3)
}

func (s *GormAuditServiceSuite) TestRecentEventsHonorsLimit() {
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < 5; i++ {
		s.Require().NoError(s.svc.RecordEvent(ctx, &models.SecurityEvent{
			EventType: constants.EventCSRFRejected,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	got, err := s.svc.RecentEvents(ctx, constants.EventCSRFRejected, 2)
	s.Require().NoError(err)
	s.Len(got, 2)
}

func (s *GormAuditServiceSuite) TestRecentEventsEmptyStore() {
	got, err := s.svc.RecentEvents(context.Background(), constants.EventFingerprintMismatch, 10)
	s.Require().NoError(err)
	s.Empty(got)
}

func TestGormAuditServiceSuite(t *testing.T) {
	suite.Run(t, new(GormAuditServiceSuite))
}
