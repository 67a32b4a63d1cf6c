package util

/* =========================================================
   确定性乱序引擎
   同一个 key 永远产生同一个顺序：学生刷新页面、恢复作答时
   题目/选项顺序保持不变。不同集合使用不同的 key 后缀
   （-section-<i>、-options-<qid>、-cloze-<qid>-<n>），
   互相之间的乱序互不相关。
========================================================= */

// FoldSeed 把字符串 key 折叠成 32 位种子（逐字符滚动乘加）
func FoldSeed(key string) uint32 {
	var h uint32
	for _, r := range key {
		h = h*31 + uint32(r)
	}
	return h
}

// seededRand 线性同余生成器，仅用于乱序，不做任何密码学用途
type seededRand struct {
	state uint32
}

func newSeededRand(seed uint32) *seededRand {
	return &seededRand{state: seed}
}

func (r *seededRand) Float64() float64 {
	r.state = r.state*1664525 + 1013904223
	return float64(r.state) / (1 << 32)
}

// ShuffleIndex 返回 [0,n) 的确定性排列（Fisher–Yates）
func ShuffleIndex(n int, key string) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	r := newSeededRand(FoldSeed(key))
	for i := n - 1; i > 0; i-- {
		j := int(r.Float64() * float64(i+1))
		idx[i], idx[j] = idx[j], idx[i]
	}
	return idx
}

// ShuffleStrings 按 key 乱序字符串切片，不修改入参
func ShuffleStrings(items []string, key string) []string {
	idx := ShuffleIndex(len(items), key)
	out := make([]string, len(items))
	for i, j := range idx {
		out[i] = items[j]
	}
	return out
}
