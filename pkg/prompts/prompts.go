// Package prompts 保存所有发给大模型的提示词模板
package prompts

import "fmt"

const examplesTemplate = `Please generate %d authentic English sentences using the word "%s".
Requirements:
1. Return a JSON string
2. Include an array of example sentences
3. Each sentence should be natural and idiomatic, demonstrating proper word usage
4. Sentences should only contain English; translate any proper nouns or place names to English or use pinyin
Example output:
{
    "examples": [
        "Hello, how are you doing today?",
        "She said hello to everyone at the party."
    ]
}
`

const randomWordTemplate = `Please generate an English word based on the following conditions:
1. Style type: %s
2. Timestamp: %d
3. Style specifications:
   - work: vocabulary related to work and professional settings
   - life: commonly used words in daily life
   - computer: vocabulary related to computers and technology
   - study: vocabulary related to academics and education

Requirements:
1. Return a JSON string
2. Include a word field
3. The word should be common and suitable for learning
4. Use the timestamp as a random seed to generate different words
5. Ensure the generated word matches the specified style type

Example output:
{
    "word": "collaboration"
}
`

// Examples 生成英文基础例句
func Examples(word string, count int) string {
	return fmt.Sprintf(examplesTemplate, count, word)
}

// RandomWord 按风格生成随机单词，timestamp 作为随机种子
func RandomWord(style string, timestamp int64) string {
	return fmt.Sprintf(randomWordTemplate, style, timestamp)
}

// 英语
func EnglishDefinition(word string) string {
	return fmt.Sprintf("Please provide the definition and phonetic transcription of '%s' in English. Format your response as follows:\n"+
		"Definition: [clear, concise definition]\n"+
		"Phonetic: [IPA transcription]", word)
}

// 普通话
func MandarinTranslateWord(word string) string {
	return fmt.Sprintf("Please translate the English word '%s' to Chinese. Requirements:\n"+
		"1. Return ONLY the Chinese word\n"+
		"2. If multiple meanings exist, return ONLY the most common one\n"+
		"3. Do not include any explanations or additional text", word)
}

func MandarinDefinition(word string) string {
	return fmt.Sprintf("Please provide the definition and phonetic transcription of '%s' in Mandarin Chinese. Format your response as follows:\n"+
		"Definition: [clear and concise definition in Simplified Chinese]\n"+
		"Phonetic: [Mandarin pinyin with tone marks]", word)
}

func MandarinSentence(sentence string) string {
	return "Please translate the following English sentence to Mandarin Chinese (using Simplified Chinese characters). Requirements:\n" +
		"1. Use natural, everyday Mandarin expressions\n" +
		"2. Ensure the translation follows standard Mandarin grammar and speaking habits\n" +
		"3. The translation should be fluent and natural, avoid literal translations\n" +
		"4. Return ONLY the translated sentence, no additional explanations\n" +
		"5. Use only Chinese characters, no letters or symbols\n" +
		"Sentence: " + sentence
}

// 粤语
func CantoneseTranslateWord(word string) string {
	return fmt.Sprintf("请将英文单词 '%s' 翻译成中文。要求：\n"+
		"1. 只返回对应的中文词，不要其他解释\n"+
		"2. 如果有多个含义，只返回最常用的一个", word)
}

func CantoneseDefinition(word string) string {
	return fmt.Sprintf("请提供单词 '%s' 的广东话（粤语）解释及粤语拼音。要求：\n"+
		"1. 只使用繁体字，不要英文。\n"+
		"2. 解释简洁易懂，避免混杂其他语言或符号。\n"+
		"3. 使用标准粤语拼音（粤拼）注音。\n"+
		"4. 按以下格式回复：\n"+
		"解释： [广东话解释]\n"+
		"粤拼： [粤语拼音]", word)
}

func CantoneseSentence(sentence string) string {
	return "请将以下英语句子翻译成地道的广东话（使用繁体字）。要求：\n" +
		"0.只要繁体字，不要英文\n" +
		"1. 使用日常口语中的粤语表达。\n" +
		"2. 确保语法和表达符合粤语习惯。\n" +
		"3. 翻译自然流畅，避免生硬的直译。\n" +
		"4. 仅返回翻译后的句子，不要附加说明。\n" +
		"句子：" + sentence
}

// 四川话
func SichuaneseDefinition(word string) string {
	return fmt.Sprintf("请提供词语 '%s' 的四川话解释和注音。要求：\n"+
		"1. 使用简体字\n"+
		"2. 解释要简洁易懂，使用地道的四川话表达\n"+
		"3. 使用四川话拼音注音（参考汉语拼音，标注声调）\n"+
		"4. 按以下格式回复：\n"+
		"解释：[四川话解释]\n"+
		"音标：[四川话拼音]", word)
}

func SichuaneseSentence(sentence string) string {
	return "请将以下英语句子翻译成四川话（使用简体字），不需要解释：\n" + sentence
}
