package utils

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"unicode"
)

// SanitizeFilename 把任意字符串转换为安全的文件名片段
// 保留各种文字的字母与数字（包括汉字），其余字符替换为下划线
func SanitizeFilename(s string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}

// ContentHash 文本的稳定内容哈希（md5 前 16 位十六进制）
// 同一文本在任何进程、任何时间得到的结果都相同
func ContentHash(text string) string {
	sum := md5.Sum([]byte(text))
	return hex.EncodeToString(sum[:])[:16]
}
