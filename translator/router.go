package translator

import "duosub/transcriber"

// Route resolves the translation direction from the detected language:
// zh→en, en→zh, anything else produces no job. The mapping is total
// and deterministic over the closed language set. Failed results and
// empty text never produce a job, so silence and noise are not
// translated.
func Route(res transcriber.Result) (Job, bool) {
	if res.Failed || res.Text == "" {
		return Job{}, false
	}
	switch res.Language {
	case transcriber.LangChinese:
		return Job{Text: res.Text, Direction: Direction{Source: "zh", Target: "en"}}, true
	case transcriber.LangEnglish:
		return Job{Text: res.Text, Direction: Direction{Source: "en", Target: "zh"}}, true
	default:
		return Job{}, false
	}
}
