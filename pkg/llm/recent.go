package llm

import (
	"strings"
	"sync"
)

// DefaultRecentWords 最近单词列表默认容量
const DefaultRecentWords = 50

// RecentWords 最近生成过的随机单词（定长环形缓冲，并发安全）
type RecentWords struct {
	mu    sync.Mutex
	words []string
	next  int
	full  bool
}

// NewRecentWords 创建容量为 capacity 的最近单词列表
func NewRecentWords(capacity int) *RecentWords {
	if capacity <= 0 {
		capacity = DefaultRecentWords
	}
	return &RecentWords{words: make([]string, capacity)}
}

// Contains 判断单词是否在最近列表中（忽略大小写）
func (r *RecentWords) Contains(word string) bool {
	key := normalizeWord(word)

	r.mu.Lock()
	defer r.mu.Unlock()

	for i := 0; i < r.lenLocked(); i++ {
		if r.words[i] == key {
			return true
		}
	}
	return false
}

// TryAdd 单词不在列表中时加入并返回 true，已满时覆盖最早的一个
// 检查与写入在同一把锁内完成
func (r *RecentWords) TryAdd(word string) bool {
	key := normalizeWord(word)

	r.mu.Lock()
	defer r.mu.Unlock()

	for i := 0; i < r.lenLocked(); i++ {
		if r.words[i] == key {
			return false
		}
	}

	r.words[r.next] = key
	r.next = (r.next + 1) % len(r.words)
	if r.next == 0 {
		r.full = true
	}
	return true
}

// Words 按从旧到新的顺序返回列表快照
func (r *RecentWords) Words() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.full {
		return append([]string(nil), r.words[:r.next]...)
	}

	out := make([]string, 0, len(r.words))
	out = append(out, r.words[r.next:]...)
	out = append(out, r.words[:r.next]...)
	return out
}

func (r *RecentWords) lenLocked() int {
	if r.full {
		return len(r.words)
	}
	return r.next
}

func normalizeWord(word string) string {
	return strings.ToLower(strings.TrimSpace(word))
}
