// Package tts 语音合成后端
//
// 每个后端把 (文本, 语言) 合成为音频文件并返回文件名。
// 文件名由 (单词, 语言, 文本哈希) 决定，同一句话重复合成会覆盖而不是堆积。
package tts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/z-wentao/lingoflow/pkg/utils"
)

var (
	// ErrUnsupportedLanguage 后端不支持该语言
	ErrUnsupportedLanguage = errors.New("不支持的语言")

	// ErrEmptyInput 文本、语言或单词为空
	ErrEmptyInput = errors.New("文本、语言和单词都不能为空")
)

// Generator 语音合成后端
type Generator interface {
	// GenerateAudio 合成音频并返回存储目录下的文件名
	GenerateAudio(ctx context.Context, text, language, word string) (string, error)
}

// AudioFilename 计算音频文件名：<单词>_<语言>_<文本哈希>.<扩展名>
func AudioFilename(word, language, text, ext string) string {
	return fmt.Sprintf("%s_%s_%s.%s",
		utils.SanitizeFilename(word),
		utils.SanitizeFilename(strings.ToLower(language)),
		utils.ContentHash(text),
		ext,
	)
}

func validateInput(text, language, word string) error {
	if strings.TrimSpace(text) == "" || strings.TrimSpace(language) == "" || strings.TrimSpace(word) == "" {
		return ErrEmptyInput
	}
	return nil
}

// saveAudio 先写临时文件再重命名，避免并发读到写了一半的音频
func saveAudio(dir, filename string, r io.Reader) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("创建音频目录失败: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("创建临时文件失败: %w", err)
	}
	defer os.Remove(tmp.Name())

	written, err := io.Copy(tmp, r)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("写入音频失败: %w", err)
	}
	if written == 0 {
		return fmt.Errorf("未收到音频数据")
	}

	if err := os.Rename(tmp.Name(), filepath.Join(dir, filename)); err != nil {
		return fmt.Errorf("保存音频文件失败: %w", err)
	}
	return nil
}
