package idgen

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextIDUnique(t *testing.T) {
	const n = 10000
	seen := make(map[int64]struct{}, n)
	for i := 0; i < n; i++ {
		id := NextID()
		_, dup := seen[id]
		require.False(t, dup, "生成了重复ID: %d", id)
		seen[id] = struct{}{}
	}
}

func TestNextIDUniqueConcurrent(t *testing.T) {
	const goroutines = 8
	const perGoroutine = 2000

	var mu sync.Mutex
	seen := make(map[int64]struct{}, goroutines*perGoroutine)

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids := make([]int64, 0, perGoroutine)
			for i := 0; i < perGoroutine; i++ {
				ids = append(ids, NextID())
			}
			mu.Lock()
			defer mu.Unlock()
			for _, id := range ids {
				_, dup := seen[id]
				assert.False(t, dup)
				seen[id] = struct{}{}
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, goroutines*perGoroutine)
}

func TestNumberPrefixes(t *testing.T) {
	assert.True(t, strings.HasPrefix(GenerateTransactionNo(), "TXN"))
	assert.True(t, strings.HasPrefix(GenerateRequestNo(), "REQ"))
	assert.True(t, strings.HasPrefix(GeneratePurchaseNo(), "PUR"))
	assert.True(t, strings.HasPrefix(GenerateOpeningNo(), "CSE"))

	// 前缀 + 14位时间戳 + 8位序列
	assert.Len(t, GenerateTransactionNo(), 3+14+8)
}
