package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/aggrun/internal/domain"
	"github.com/sawpanic/aggrun/internal/metrics"
)

func TestPut_WritesAllTokensAndPerTokenKeys(t *testing.T) {
	db, mock := redismock.NewClientMock()
	s := New(db, 30*time.Second, nil, zerolog.Nop())

	snapshot := domain.Snapshot{
		Tokens:    []domain.Token{{Address: "0xabc", Price: 1}},
		CreatedAt: time.Now(),
	}
	payload, err := json.Marshal(snapshot)
	require.NoError(t, err)
	tokPayload, err := json.Marshal(snapshot.Tokens[0])
	require.NoError(t, err)

	mock.ExpectSet(allTokensKey, payload, 30*time.Second).SetVal("OK")
	mock.ExpectSet(tokenKeyPrefix+"0xabc", tokPayload, 30*time.Second).SetVal("OK")

	require.NoError(t, s.Put(context.Background(), snapshot))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPut_ReturnsCacheUnavailableOnRedisError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	s := New(db, 30*time.Second, nil, zerolog.Nop())

	snapshot := domain.Snapshot{Tokens: []domain.Token{{Address: "0xabc", Price: 1}}}
	payload, err := json.Marshal(snapshot)
	require.NoError(t, err)
	mock.ExpectSet(allTokensKey, payload, 30*time.Second).SetErr(errors.New("connection refused"))

	putErr := s.Put(context.Background(), snapshot)
	require.Error(t, putErr)
	var cacheErr *domain.CacheUnavailable
	assert.ErrorAs(t, putErr, &cacheErr)
}

func TestGet_MissWhenKeyAbsent(t *testing.T) {
	db, mock := redismock.NewClientMock()
	m := metrics.New(nil)
	s := New(db, 30*time.Second, m, zerolog.Nop())

	mock.ExpectGet(allTokensKey).RedisNil()

	snapshot, ok := s.Get(context.Background())
	assert.False(t, ok)
	assert.Nil(t, snapshot)
}

func TestGet_HitReturnsDecodedSnapshot(t *testing.T) {
	db, mock := redismock.NewClientMock()
	s := New(db, 30*time.Second, nil, zerolog.Nop())

	snapshot := domain.Snapshot{Tokens: []domain.Token{{Address: "0xabc", Price: 1}}, CreatedAt: time.Now()}
	payload, err := json.Marshal(snapshot)
	require.NoError(t, err)
	mock.ExpectGet(allTokensKey).SetVal(string(payload))

	got, ok := s.Get(context.Background())
	require.True(t, ok)
	assert.Equal(t, "0xabc", got.Tokens[0].Address)
}

func TestGetToken_FallsBackToFullSnapshotScan(t *testing.T) {
	db, mock := redismock.NewClientMock()
	s := New(db, 30*time.Second, nil, zerolog.Nop())

	snapshot := domain.Snapshot{Tokens: []domain.Token{{Address: "0xdef", Price: 2}}}
	payload, err := json.Marshal(snapshot)
	require.NoError(t, err)

	mock.ExpectGet(tokenKeyPrefix + "0xdef").RedisNil()
	mock.ExpectGet(allTokensKey).SetVal(string(payload))

	tok, ok := s.GetToken(context.Background(), "0xDEF")
	require.True(t, ok)
	assert.Equal(t, "0xdef", tok.NormalizedAddress())
}
