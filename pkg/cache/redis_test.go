package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	Name string `json:"name"`
}

func TestRedisCache(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewFromClient(db)
	ctx := context.Background()

	mock.ExpectGet("k").RedisNil()
	var out entry
	assert.ErrorIs(t, c.Get(ctx, "k", &out), ErrMiss)

	mock.ExpectSet("k", []byte(`{"name":"growth"}`), time.Minute).SetVal("OK")
	require.NoError(t, c.Set(ctx, "k", entry{Name: "growth"}, time.Minute))

	mock.ExpectGet("k").SetVal(`{"name":"growth"}`)
	require.NoError(t, c.Get(ctx, "k", &out))
	assert.Equal(t, "growth", out.Name)

	mock.ExpectGet("k").SetErr(errors.New("connection refused"))
	err := c.Get(ctx, "k", &out)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMiss)

	mock.ExpectDel("k", "other").SetVal(1)
	require.NoError(t, c.Delete(ctx, "k", "other"))

	assert.NoError(t, mock.ExpectationsWereMet())
}
