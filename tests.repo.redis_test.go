package main

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// startDockerContainer runs the given image and waits until ready succeeds. The
// test is skipped when docker is not reachable.
func startDockerContainer(t *testing.T, repository, tag string, env []string, port string, ready func(addr string) error) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container based test in short mode")
	}

	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Skipf("Failed to start Dockertest: %+v", err)
	}

	err = pool.Client.Ping()
	if err != nil {
		t.Skipf("Could not connect to Docker: %+v", err)
	}

	resource, err := pool.Run(repository, tag, env)
	if err != nil {
		t.Fatalf("Failed to start %s: %+v", repository, err)
	}
	t.Cleanup(func() {
		if err := pool.Purge(resource); err != nil {
			t.Logf("Failed to purge resource: %+v", err)
		}
	})

	// build address the container is listening on
	addr := net.JoinHostPort("localhost", resource.GetPort(port))

	// ensure to wait for the container to be ready
	pool.MaxWait = 2 * time.Minute
	if err = pool.Retry(func() error { return ready(addr) }); err != nil {
		t.Fatalf("Failed to reach %s: %+v", repository, err)
	}
	return addr
}

func startRedisDockerContainer(t *testing.T) string {
	return startDockerContainer(t, "redis", "7.0.10-alpine", nil, "6379/tcp", func(addr string) error {
		client := redis.NewClient(&redis.Options{Addr: addr})
		defer client.Close()
		return client.Ping(context.Background()).Err()
	})
}

// TestRedisStore ensures the redis store honors the storage behavior.
func TestRedisStore(t *testing.T) {
	addr := startRedisDockerContainer(t)
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	testBookStorage(t, NewRedisBookStorage(zap.NewNop(), client))
}

// newTestRedisClient starts a redis container and returns a client on it.
func newTestRedisClient(t *testing.T) *redis.Client {
	addr := startRedisDockerContainer(t)
	host, port, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	client, err := GetRedisClient(&RedisConfig{Host: host, Port: port, DialTimeout: 5 * time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

// TestRedisQueue ensures events of different kinds are popped in the order
// they were pushed.
func TestRedisQueue(t *testing.T) {
	q := NewRedisQueue(newTestRedisClient(t))
	ctx := context.Background()
	book := testStoredBook("00000000000000000000000000000001", "Queued", 9)
	require.NoError(t, q.Push(ctx, MirrorQueue, BookEvent{Kind: ReplaceEvent, Book: book}))
	require.NoError(t, q.Push(ctx, MirrorQueue, BookEvent{Kind: PatchEvent, Book: Book{PK: book.PK, BookFields: BookFields{Image: "b"}}}))
	require.NoError(t, q.Push(ctx, MirrorQueue, BookEvent{Kind: DeleteEvent, Book: Book{PK: book.PK}}))

	qid, got, err := q.Pop(ctx, MirrorQueues...)
	require.NoError(t, err)
	assert.Equal(t, MirrorQueue, qid)
	assert.Equal(t, ReplaceEvent, got.Kind)
	assertSameBook(t, book, got.Book)

	_, got, err = q.Pop(ctx, MirrorQueues...)
	require.NoError(t, err)
	assert.Equal(t, PatchEvent, got.Kind)
	assert.Equal(t, "b", got.Book.Image)

	_, got, err = q.Pop(ctx, MirrorQueues...)
	require.NoError(t, err)
	assert.Equal(t, DeleteEvent, got.Kind)
	assert.Equal(t, book.PK, got.Book.PK)

	cctx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()
	_, _, err = q.Pop(cctx, MirrorQueues...)
	assert.Error(t, err)
}

// TestRedisMirrorReplaysInOrder ensures a replace followed by a patch on the
// same book ends with the patched image on the mirror, as on the primary.
func TestRedisMirrorReplaysInOrder(t *testing.T) {
	client := newTestRedisClient(t)
	primary := NewRedisBookStorage(zap.NewNop(), client)
	queue := NewRedisQueue(client)
	mirror := newTestBoltStore(t)
	bs := NewBookService(zap.NewNop(), NewClock(), NewIDsHandler(), primary, queue)

	ctx := context.Background()
	book, err := bs.Create(ctx, BookFields{Title: "Go", Price: 10, Image: "a"})
	require.NoError(t, err)
	_, err = bs.Replace(ctx, book.PK, BookFields{Title: "Go v2", Price: 12, Image: "replaced"})
	require.NoError(t, err)
	_, err = bs.PatchImage(ctx, book.PK, "patched")
	require.NoError(t, err)

	cctx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- NewMirrorConsumer(zap.NewNop(), queue, mirror).Consume(cctx, MirrorQueues...)
	}()

	require.Eventually(t, func() bool {
		n, err := client.LLen(ctx, MirrorQueue).Result()
		return err == nil && n == 0
	}, 10*time.Second, 20*time.Millisecond)
	require.Eventually(t, func() bool {
		got, err := mirror.GetByPK(ctx, book.PK)
		return err == nil && got.Title == "Go v2" && got.Image == "patched"
	}, 5*time.Second, 20*time.Millisecond)
	cancel()
	<-done

	primaryBook, err := primary.GetByPK(ctx, book.PK)
	require.NoError(t, err)
	mirrorBook, err := mirror.GetByPK(ctx, book.PK)
	require.NoError(t, err)
	assertSameBook(t, primaryBook, mirrorBook)
}

// TestRedisStoreConcurrentWrites ensures updates of one book succeed while
// other books are being created.
func TestRedisStoreConcurrentWrites(t *testing.T) {
	store := NewRedisBookStorage(zap.NewNop(), newTestRedisClient(t))
	ctx := context.Background()
	target := testStoredBook("00000000000000000000000000000000", "Target", 1)
	require.NoError(t, store.Create(ctx, target))

	const n = 50
	images := make(map[string]bool, n)
	pks := make([]string, n)
	for i := 0; i < n; i++ {
		images[fmt.Sprintf("https://img/%d", i)] = true
		pks[i] = fmt.Sprintf("%032d", i+1)
	}

	var g errgroup.Group
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			return store.PatchImage(ctx, target.PK, fmt.Sprintf("https://img/%d", i))
		})
		g.Go(func() error {
			return store.Create(ctx, testStoredBook(pks[i], fmt.Sprintf("Book %d", i), 2))
		})
	}
	require.NoError(t, g.Wait())

	got, err := store.GetByPK(ctx, target.PK)
	require.NoError(t, err)
	assert.True(t, images[got.Image], "unexpected image %q", got.Image)
	assert.Equal(t, "Target", got.Title)
	for _, pk := range pks {
		_, err := store.GetByPK(ctx, pk)
		assert.NoError(t, err, pk)
	}
}
