package pool

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"hypothesis-rating/internal/models"
	"hypothesis-rating/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testEnv struct {
	hypotheses *repository.HypothesisRepository
	pools      *repository.PoolRepository
	cache      *Cache
	builder    *Builder
	selector   *Selector
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zap.NewNop()

	db, err := repository.NewDB(repository.TypeSQLite, filepath.Join(t.TempDir(), "pool.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, repository.MigrateDB(db, logger))

	env := &testEnv{
		hypotheses: repository.NewHypothesisRepository(db, logger),
		pools:      repository.NewPoolRepository(db, logger),
	}
	env.cache = NewCache(env.pools, time.Minute)
	env.builder = NewBuilder(env.hypotheses, env.pools, env.cache, DefaultSeed, logger)
	env.selector = NewSelector(env.cache, logger)
	return env
}

// seed inserts n hypotheses into (topic, subTopic) with titles "t<topic>-<sub>-<i>"
func (e *testEnv) seed(t *testing.T, topic, subTopic, n int) []int64 {
	t.Helper()
	ids := make([]int64, 0, n)
	for i := 0; i < n; i++ {
		raw, err := json.Marshal(models.Content{
			Title:            fmt.Sprintf("t%d-%d-%d", topic, subTopic, i),
			ProblemStatement: "problem",
		})
		require.NoError(t, err)
		h := &models.Hypothesis{Topic: topic, SubTopic: subTopic, ModelSource: "m", RawContent: string(raw)}
		require.NoError(t, e.hypotheses.Insert(context.Background(), h))
		ids = append(ids, h.ID)
	}
	return ids
}

func (e *testEnv) seedRaw(t *testing.T, topic, subTopic int, raw string) int64 {
	t.Helper()
	h := &models.Hypothesis{Topic: topic, SubTopic: subTopic, RawContent: raw}
	require.NoError(t, e.hypotheses.Insert(context.Background(), h))
	return h.ID
}

func originalIDs(entries []models.PoolEntry) []int64 {
	ids := make([]int64, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.OriginalHypothesisID)
	}
	return ids
}

func assertValidPool(t *testing.T, entries []models.PoolEntry, source []int64) {
	t.Helper()
	require.Len(t, entries, Size)

	seen := make(map[int64]bool)
	for i, e := range entries {
		assert.Equal(t, i+1, e.Rank)
		assert.False(t, seen[e.OriginalHypothesisID], "duplicate hypothesis %d", e.OriginalHypothesisID)
		seen[e.OriginalHypothesisID] = true
		assert.Contains(t, source, e.OriginalHypothesisID)
	}
}

func TestBuildAll_CreatesEightRankedRows(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	ids := env.seed(t, 3, 2, 20)
	env.seed(t, 4, 0, 5)

	report, err := env.builder.BuildAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"topic3"}, report.Built)
	assert.Equal(t, []string{"topic4"}, report.SkippedInsufficient)

	entries, err := env.pools.ListByTopic(ctx, "topic3")
	require.NoError(t, err)
	assertValidPool(t, entries, ids)

	empty, err := env.pools.ListByTopic(ctx, "topic4")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestBuildAll_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seed(t, 1, 1, 12)
	_, err := env.builder.BuildAll(ctx)
	require.NoError(t, err)
	before, err := env.pools.ListByTopic(ctx, "topic1")
	require.NoError(t, err)

	// more raw data does not change an existing pool
	env.seed(t, 1, 1, 30)
	report, err := env.builder.BuildAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, report.Built)
	assert.Equal(t, []string{"topic1"}, report.SkippedExisting)

	after, err := env.pools.ListByTopic(ctx, "topic1")
	require.NoError(t, err)
	assert.Equal(t, originalIDs(before), originalIDs(after))
}

func TestBuildAll_ExcludesMalformedContent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seed(t, 6, 2, 7)
	env.seedRaw(t, 6, 2, "{not json")
	env.seedRaw(t, 6, 2, "")

	report, err := env.builder.BuildAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"topic6"}, report.SkippedInsufficient)

	count, err := env.pools.CountByTopic(ctx, "topic6")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestBuildAll_SameSeedSamePool(t *testing.T) {
	first := newTestEnv(t)
	second := newTestEnv(t)
	ctx := context.Background()

	first.seed(t, 2, 0, 25)
	second.seed(t, 2, 0, 25)

	_, err := first.builder.BuildAll(ctx)
	require.NoError(t, err)
	_, err = second.builder.BuildAll(ctx)
	require.NoError(t, err)

	a, err := first.pools.ListByTopic(ctx, "topic2")
	require.NoError(t, err)
	b, err := second.pools.ListByTopic(ctx, "topic2")
	require.NoError(t, err)
	assert.Equal(t, originalIDs(a), originalIDs(b))
}

func TestRebuild_Deterministic(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seed(t, 3, 2, 15)
	env.seed(t, 3, 1, 15)

	criteria := []Selection{{Topic: 3, SubTopic: 2}}
	_, err := env.builder.Rebuild(ctx, criteria)
	require.NoError(t, err)
	first, err := env.pools.ListByTopic(ctx, "topic3")
	require.NoError(t, err)

	_, err = env.builder.Rebuild(ctx, criteria)
	require.NoError(t, err)
	second, err := env.pools.ListByTopic(ctx, "topic3")
	require.NoError(t, err)

	assert.Equal(t, originalIDs(first), originalIDs(second))
	for _, e := range second {
		assert.Equal(t, 2, e.SubTopic)
	}
}

func TestRebuild_UnionOfSubTopics(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	zero := env.seed(t, 10, 0, 4)
	four := env.seed(t, 10, 4, 4)
	env.seed(t, 10, 1, 10)

	// either bucket alone is too small; together they fill the pool exactly
	report, err := env.builder.Rebuild(ctx, []Selection{{10, 0}, {10, 4}, {10, 0}})
	require.NoError(t, err)
	assert.Equal(t, []string{"topic10"}, report.Built)

	entries, err := env.pools.ListByTopic(ctx, "topic10")
	require.NoError(t, err)
	assertValidPool(t, entries, append(zero, four...))
}

func TestRebuild_WipesTopicsOutsideCriteria(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seed(t, 1, 1, 10)
	env.seed(t, 5, 3, 10)
	env.seed(t, 7, 0, 3)

	_, err := env.builder.BuildAll(ctx)
	require.NoError(t, err)

	report, err := env.builder.Rebuild(ctx, []Selection{{5, 3}, {7, 0}})
	require.NoError(t, err)
	assert.Equal(t, []string{"topic5"}, report.Built)
	assert.Equal(t, []string{"topic7"}, report.SkippedInsufficient)

	topics, err := env.pools.Topics(ctx)
	require.NoError(t, err)
	assert.Equal(t, []repository.TopicCount{{TopicName: "topic5", Count: Size}}, topics)
}

func TestRebuild_InvalidatesCache(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seed(t, 3, 2, 10)
	env.seed(t, 3, 1, 10)

	_, err := env.builder.Rebuild(ctx, []Selection{{3, 2}})
	require.NoError(t, err)
	cached, err := env.cache.Get(ctx, "topic3")
	require.NoError(t, err)

	_, err = env.builder.Rebuild(ctx, []Selection{{3, 1}})
	require.NoError(t, err)
	fresh, err := env.cache.Get(ctx, "topic3")
	require.NoError(t, err)

	assert.NotEqual(t, originalIDs(cached), originalIDs(fresh))
	for _, e := range fresh {
		assert.Equal(t, 1, e.SubTopic)
	}
}

func TestSelectPair_DistinctMembersOfPool(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seed(t, 3, 2, 12)
	_, err := env.builder.BuildAll(ctx)
	require.NoError(t, err)

	entries, err := env.pools.ListByTopic(ctx, "topic3")
	require.NoError(t, err)
	rowByHypothesis := make(map[int64]int64)
	for _, e := range entries {
		rowByHypothesis[e.OriginalHypothesisID] = e.ID
	}

	pairs := make(map[[2]int64]bool)
	for i := 0; i < 200; i++ {
		pair, err := env.selector.SelectPair(ctx, "topic3", models.English)
		require.NoError(t, err)
		assert.NotEqual(t, pair.A.ID, pair.B.ID)
		require.Contains(t, rowByHypothesis, pair.A.ID)
		require.Contains(t, rowByHypothesis, pair.B.ID)
		assert.Equal(t, rowByHypothesis[pair.A.ID], pair.A.PoolEntryID)
		assert.Equal(t, rowByHypothesis[pair.B.ID], pair.B.PoolEntryID)
		assert.NotEmpty(t, pair.A.Content.Title)
		pairs[[2]int64{pair.A.ID, pair.B.ID}] = true
	}

	// each call draws again
	assert.Greater(t, len(pairs), 1)
}

func TestSelectPair_ChineseWithoutTranslationIsEmpty(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seed(t, 3, 2, 8)
	_, err := env.builder.BuildAll(ctx)
	require.NoError(t, err)

	pair, err := env.selector.SelectPair(ctx, "topic3", models.Chinese)
	require.NoError(t, err)
	assert.Equal(t, models.Chinese, pair.Language)
	assert.True(t, pair.A.Content.IsEmpty())
	assert.True(t, pair.B.Content.IsEmpty())
}

func TestSelectPair_UsesTranslation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seed(t, 3, 2, 8)
	_, err := env.builder.BuildAll(ctx)
	require.NoError(t, err)

	entries, err := env.pools.ListByTopic(ctx, "topic3")
	require.NoError(t, err)
	for _, e := range entries {
		require.NoError(t, env.pools.SetTranslation(ctx, e.ID, fmt.Sprintf(`{"title":"标题%d"}`, e.Rank)))
	}

	a, b := entries[0].OriginalHypothesisID, entries[1].OriginalHypothesisID
	pair, err := env.selector.PairByIDs(ctx, "topic3", models.Chinese, a, b)
	require.NoError(t, err)
	assert.Equal(t, "标题1", pair.A.Content.Title)
	assert.Equal(t, "标题2", pair.B.Content.Title)

	english, err := env.selector.PairByIDs(ctx, "topic3", models.English, a, b)
	require.NoError(t, err)
	assert.NotEqual(t, "标题1", english.A.Content.Title)
}

func TestSelectPair_MalformedContentIsEmpty(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	entries := make([]models.PoolEntry, 0, 2)
	for rank := 1; rank <= 2; rank++ {
		entries = append(entries, models.PoolEntry{
			TopicName:            "topic9",
			Rank:                 rank,
			OriginalHypothesisID: int64(rank),
			ContentEN:            "not json at all",
		})
	}
	require.NoError(t, env.pools.InsertTopic(ctx, entries))

	pair, err := env.selector.SelectPair(ctx, "topic9", models.English)
	require.NoError(t, err)
	assert.True(t, pair.A.Content.IsEmpty())
	assert.True(t, pair.B.Content.IsEmpty())
}

func TestSelectPair_PoolNotFound(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.selector.SelectPair(ctx, "topic42", models.English)
	assert.ErrorIs(t, err, ErrPoolNotFound)

	require.NoError(t, env.pools.InsertTopic(ctx, []models.PoolEntry{{
		TopicName: "topic8", Rank: 1, OriginalHypothesisID: 1, ContentEN: `{"title":"only"}`,
	}}))
	_, err = env.selector.SelectPair(ctx, "topic8", models.English)
	assert.ErrorIs(t, err, ErrPoolNotFound)
}

func TestPairByIDs_UnknownIDs(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seed(t, 3, 2, 8)
	_, err := env.builder.BuildAll(ctx)
	require.NoError(t, err)
	entries, err := env.pools.ListByTopic(ctx, "topic3")
	require.NoError(t, err)

	a, b := entries[0].OriginalHypothesisID, entries[1].OriginalHypothesisID

	_, err = env.selector.PairByIDs(ctx, "topic3", models.English, a, 99999)
	assert.ErrorIs(t, err, ErrPoolNotFound)

	_, err = env.selector.PairByIDs(ctx, "topic3", models.English, a, a)
	assert.ErrorIs(t, err, ErrPoolNotFound)

	// pool row ids are not hypothesis ids
	if entries[0].ID != a || entries[1].ID != b {
		_, err = env.selector.PairByIDs(ctx, "topic3", models.English, entries[0].ID, entries[1].ID)
		assert.ErrorIs(t, err, ErrPoolNotFound)
	}
}

func TestPairIDs_AreHypothesisIDsStableAcrossRebuild(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// filler rows push the raw ids of topic3 away from pool row ids
	env.seed(t, 9, 0, 50)
	ids := env.seed(t, 3, 2, 8)

	_, err := env.builder.Rebuild(ctx, []Selection{{3, 2}})
	require.NoError(t, err)
	pair, err := env.selector.SelectPair(ctx, "topic3", models.English)
	require.NoError(t, err)
	assert.Contains(t, ids, pair.A.ID)
	assert.Contains(t, ids, pair.B.ID)

	_, err = env.builder.Rebuild(ctx, []Selection{{3, 2}})
	require.NoError(t, err)

	again, err := env.selector.PairByIDs(ctx, "topic3", models.English, pair.A.ID, pair.B.ID)
	require.NoError(t, err)
	assert.Equal(t, pair.A.Content.Title, again.A.Content.Title)
	assert.Equal(t, pair.B.Content.Title, again.B.Content.Title)
	assert.NotEqual(t, pair.A.PoolEntryID, again.A.PoolEntryID)
}

func TestSelectPair_SeesWritesFromAnotherProcess(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seed(t, 3, 2, 8)
	_, err := env.builder.BuildAll(ctx)
	require.NoError(t, err)

	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	env.cache.now = func() time.Time { return clock }

	pair, err := env.selector.SelectPair(ctx, "topic3", models.Chinese)
	require.NoError(t, err)
	assert.True(t, pair.A.Content.IsEmpty())

	// a separate writer fills the Chinese column without touching the cache
	entries, err := env.pools.ListByTopic(ctx, "topic3")
	require.NoError(t, err)
	for _, e := range entries {
		require.NoError(t, env.pools.SetTranslation(ctx, e.ID, `{"title":"标题"}`))
	}

	clock = clock.Add(time.Minute)
	pair, err = env.selector.SelectPair(ctx, "topic3", models.Chinese)
	require.NoError(t, err)
	assert.Equal(t, "标题", pair.A.Content.Title)
	assert.Equal(t, "标题", pair.B.Content.Title)
}

type countingReader struct {
	calls   int
	entries map[string][]models.PoolEntry
}

func (r *countingReader) ListByTopic(_ context.Context, topicName string) ([]models.PoolEntry, error) {
	r.calls++
	return r.entries[topicName], nil
}

func TestCache_ReadThrough(t *testing.T) {
	reader := &countingReader{entries: map[string][]models.PoolEntry{
		"topic1": {{ID: 1, Rank: 1}, {ID: 2, Rank: 2}},
	}}
	cache := NewCache(reader, time.Minute)
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return clock }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		got, err := cache.Get(ctx, "topic1")
		require.NoError(t, err)
		assert.Len(t, got, 2)
	}
	assert.Equal(t, 1, reader.calls)

	cache.Invalidate("topic1")
	_, err := cache.Get(ctx, "topic1")
	require.NoError(t, err)
	assert.Equal(t, 2, reader.calls)

	// empty pools are looked up every time
	_, err = cache.Get(ctx, "topic2")
	require.NoError(t, err)
	_, err = cache.Get(ctx, "topic2")
	require.NoError(t, err)
	assert.Equal(t, 4, reader.calls)

	cache.InvalidateAll()
	_, err = cache.Get(ctx, "topic1")
	require.NoError(t, err)
	assert.Equal(t, 5, reader.calls)

	// expired entries are read again
	clock = clock.Add(59 * time.Second)
	_, err = cache.Get(ctx, "topic1")
	require.NoError(t, err)
	assert.Equal(t, 5, reader.calls)
	clock = clock.Add(time.Second)
	_, err = cache.Get(ctx, "topic1")
	require.NoError(t, err)
	assert.Equal(t, 6, reader.calls)
}

func TestCache_ZeroTTLDisablesCaching(t *testing.T) {
	reader := &countingReader{entries: map[string][]models.PoolEntry{
		"topic1": {{ID: 1, Rank: 1}, {ID: 2, Rank: 2}},
	}}
	cache := NewCache(reader, 0)

	for i := 0; i < 3; i++ {
		_, err := cache.Get(context.Background(), "topic1")
		require.NoError(t, err)
	}
	assert.Equal(t, 3, reader.calls)
}
