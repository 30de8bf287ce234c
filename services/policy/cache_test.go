package policy

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Hycient195/academia-pro-access/models"
)

func cacheKey(types ...models.PolicyType) CacheKey {
	return CacheKey{Types: types}
}

func TestCacheKey_String(t *testing.T) {
	// Type order never changes the key.
	a := cacheKey(models.PolicyTypeAccessControl, models.PolicyTypeRole, models.PolicyTypePermission)
	b := cacheKey(models.PolicyTypePermission, models.PolicyTypeAccessControl, models.PolicyTypeRole)

	assert.Equal(t, "access_control,permission,role", a.String())
	assert.Equal(t, a.String(), b.String())
}

func TestCandidateCache_GetSet(t *testing.T) {
	c := NewCandidateCache(4, time.Minute)
	key := cacheKey(models.PolicyTypeAccessControl)
	policies := []*models.Policy{activePolicy("a", models.PolicyTypeAccessControl)}

	assert.Nil(t, c.Get(key))

	c.Set(key, policies)
	assert.Equal(t, policies, c.Get(key))

	stats := c.Stats()
	assert.Equal(t, 1, stats.Size)
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
}

func TestCandidateCache_TTLExpiry(t *testing.T) {
	c := NewCandidateCache(4, 10*time.Millisecond)
	key := cacheKey(models.PolicyTypeAccessControl)
	c.Set(key, []*models.Policy{activePolicy("a", models.PolicyTypeAccessControl)})

	assert.NotNil(t, c.Get(key))

	time.Sleep(20 * time.Millisecond)

	assert.Nil(t, c.Get(key))
	assert.Equal(t, 0, c.Stats().Size)
}

func TestCandidateCache_LRUEviction(t *testing.T) {
	c := NewCandidateCache(2, time.Minute)

	first := cacheKey(models.PolicyTypePassword)
	second := cacheKey(models.PolicyTypeMFA)
	third := cacheKey(models.PolicyTypeSession)

	set := []*models.Policy{activePolicy("p", models.PolicyTypePassword)}
	c.Set(first, set)
	c.Set(second, set)

	// Touch first so second becomes least recently used.
	c.Get(first)

	c.Set(third, set)

	stats := c.Stats()
	assert.Equal(t, 2, stats.Size)
	assert.Nil(t, c.Get(second))
	assert.NotNil(t, c.Get(first))
	assert.NotNil(t, c.Get(third))
}

func TestCandidateCache_SetRefreshesExisting(t *testing.T) {
	c := NewCandidateCache(4, time.Minute)
	key := cacheKey(models.PolicyTypeAccessControl)

	c.Set(key, []*models.Policy{activePolicy("old", models.PolicyTypeAccessControl)})
	replacement := []*models.Policy{activePolicy("new", models.PolicyTypeAccessControl)}
	c.Set(key, replacement)

	assert.Equal(t, replacement, c.Get(key))
	assert.Equal(t, 1, c.Stats().Size)
}

func TestCandidateCache_Purge(t *testing.T) {
	c := NewCandidateCache(8, time.Minute)
	for i := 0; i < 5; i++ {
		c.Set(cacheKey(models.PolicyType(fmt.Sprintf("type-%d", i))), nil)
	}
	assert.Equal(t, 5, c.Stats().Size)

	c.Purge()

	assert.Equal(t, 0, c.Stats().Size)
	assert.Nil(t, c.Get(cacheKey("type-0")))
}

func TestCandidateCache_CleanupWorker(t *testing.T) {
	c := NewCandidateCache(8, 5*time.Millisecond)
	stop := make(chan struct{})
	defer close(stop)

	c.StartCleanupWorker(10*time.Millisecond, stop)

	c.Set(cacheKey(models.PolicyTypeAccessControl), nil)
	assert.Equal(t, 1, c.Stats().Size)

	assert.Eventually(t, func() bool {
		return c.Stats().Size == 0
	}, time.Second, 5*time.Millisecond)
}
