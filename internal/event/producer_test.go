package event

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kader009/trustedge-backend/internal/domain"
	pkgkafka "github.com/kader009/trustedge-backend/pkg/kafka"
	"github.com/kader009/trustedge-backend/pkg/logger"
	"github.com/kader009/trustedge-backend/pkg/middleware"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, topic string, evt *pkgkafka.Event) error {
	args := m.Called(ctx, topic, evt)
	return args.Error(0)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestProducer_ReviewModerated(t *testing.T) {
	pub := new(mockPublisher)
	p := NewProducer(pub, discardLogger())
	ctx := logger.WithCorrelationID(context.Background(), "corr-1")
	ctx = middleware.WithClaims(ctx, &middleware.Claims{UserID: "u-admin", Role: "admin"})

	review := &domain.Review{ID: "r-1", ProductID: "p-1", Status: domain.ReviewStatusUnpublished, ModerationReason: "spam"}

	pub.On("Publish", mock.Anything, TopicReviewModerated, mock.MatchedBy(func(evt *pkgkafka.Event) bool {
		var data ReviewModeratedData
		if err := json.Unmarshal(evt.Data, &data); err != nil {
			return false
		}
		return evt.AggregateID == "r-1" &&
			evt.AggregateType == AggregateTypeReview &&
			evt.CorrelationID == "corr-1" &&
			evt.ActorID == "u-admin" &&
			data.From == domain.ReviewStatusPending &&
			data.To == domain.ReviewStatusUnpublished &&
			data.Reason == "spam"
	})).Return(nil).Once()

	require.NoError(t, p.ReviewModerated(ctx, review, domain.ReviewStatusPending))
	pub.AssertExpectations(t)
}

func TestProducer_ProductRatingRecalculated(t *testing.T) {
	pub := new(mockPublisher)
	p := NewProducer(pub, discardLogger())

	pub.On("Publish", mock.Anything, TopicProductRatingRecalculated, mock.MatchedBy(func(evt *pkgkafka.Event) bool {
		var data RatingRecalculatedData
		return json.Unmarshal(evt.Data, &data) == nil &&
			evt.ActorID == "" &&
			data.NumReviews == 2 && data.Ratings == 4.0
	})).Return(nil).Once()

	require.NoError(t, p.ProductRatingRecalculated(context.Background(), "p-1", domain.RatingStats{NumReviews: 2, Ratings: 4.0}))
	pub.AssertExpectations(t)
}

func TestProducer_PublishError(t *testing.T) {
	pub := new(mockPublisher)
	p := NewProducer(pub, discardLogger())

	pub.On("Publish", mock.Anything, TopicCommentCreated, mock.Anything).Return(errors.New("broker down")).Once()

	err := p.CommentCreated(context.Background(), &domain.Comment{ID: "cm-1", ReviewID: "r-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), TopicCommentCreated)
}

func TestProducer_NilPublisherDiscards(t *testing.T) {
	p := NewProducer(nil, discardLogger())
	assert.NoError(t, p.ReviewCreated(context.Background(), &domain.Review{ID: "r-1"}))
}
