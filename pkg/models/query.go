package models

import "time"

// Definition 单个语言的释义与注音
// 失败时各字段为空字符串，而不是缺失
type Definition struct {
	Definition    string `json:"definition"`
	Phonetic      string `json:"phonetic"`
	PronounceWord string `json:"pronounce_word,omitempty"` // 非中文单词先翻译得到的中文词
}

// ExampleSentence 例句及其音频
type ExampleSentence struct {
	Text     string `json:"text"`
	AudioURL string `json:"audio_url"`
}

// QueryResults 按语言分组的查询结果
type QueryResults struct {
	Definitions map[string]Definition        `json:"definitions"`
	Examples    map[string][]ExampleSentence `json:"examples"`
}

// QueryResult 一次单词查询的完整结果，同时也是持久化的查询记录
type QueryResult struct {
	ID        string       `json:"id,omitempty"`
	Word      string       `json:"word"`
	Languages []string     `json:"languages"`
	Results   QueryResults `json:"results"`
	Timestamp time.Time    `json:"timestamp"`
}

// QueryRecord 持久化的查询记录
type QueryRecord = QueryResult

// UnixSeconds 带小数的秒级时间戳，用于文件名和按时间戳删除
func (r *QueryResult) UnixSeconds() float64 {
	return float64(r.Timestamp.UnixNano()) / 1e9
}

// FromUnixSeconds 将带小数的秒级时间戳转换为 time.Time（UTC，微秒精度）
func FromUnixSeconds(ts float64) time.Time {
	sec := int64(ts)
	usec := int64((ts-float64(sec))*1e6 + 0.5)
	return time.Unix(sec, usec*int64(time.Microsecond)).UTC()
}
