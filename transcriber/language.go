package transcriber

import "strings"

// NormalizeLanguage folds a whisper language tag into the closed set
// zh/en/other. Whisper reports Chinese variously as "zh", "zh-CN",
// "zh-TW", "chinese", "cmn" or "yue" depending on model and build.
func NormalizeLanguage(tag string) string {
	t := strings.ToLower(strings.TrimSpace(tag))
	if t == "" {
		return LangOther
	}
	if i := strings.IndexAny(t, "-_"); i > 0 {
		t = t[:i]
	}
	switch t {
	case "zh", "chinese", "cmn", "yue", "mandarin":
		return LangChinese
	case "en", "english":
		return LangEnglish
	default:
		return LangOther
	}
}
