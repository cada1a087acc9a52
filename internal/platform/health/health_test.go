package health

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	_ "github.com/mattn/go-sqlite3"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)

	_, err = db.Exec("CREATE TABLE probe (id INTEGER PRIMARY KEY)")
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func setupMockRedis(t *testing.T) *redis.Client {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})

	return client
}

func probe(checker *Checker) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", "/readyz", nil)
	w := httptest.NewRecorder()
	checker.ReadyHandler().ServeHTTP(w, req)
	return w
}

func TestReadyHandler_WhenAllBackendsUp_Returns200(t *testing.T) {
	checker := NewChecker(setupDB(t), setupMockRedis(t))

	w := probe(checker)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}

func TestReadyHandler_WhenBackendsNil_SkipsChecks(t *testing.T) {
	checker := NewChecker(nil, nil)

	w := probe(checker)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestReadyHandler_WhenDBDown_Returns503(t *testing.T) {
	db := setupDB(t)
	db.Close()
	checker := NewChecker(db, setupMockRedis(t))

	w := probe(checker)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "database unavailable\n", w.Body.String())
}

func TestReadyHandler_WhenRedisDown_Returns503(t *testing.T) {
	redisClient := setupMockRedis(t)
	redisClient.Close()
	checker := NewChecker(setupDB(t), redisClient)

	w := probe(checker)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "redis unavailable\n", w.Body.String())
}
