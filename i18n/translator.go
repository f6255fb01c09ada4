package i18n

import "sync"

// Translator retrieves localized messages for error codes.
// data provides optional metadata to embed in the message (for example,
// "type" or "field").
type Translator interface {
	Message(code string, data map[string]string) string
}

// dictTranslator is the built-in dictionary-based Translator.
type dictTranslator struct{ lang string }

func (t dictTranslator) Message(code string, data map[string]string) string {
	switch t.lang {
	case "ja":
		switch code {
		case "unsupported_type":
			return "変換できない型です"
		case "malformed_descriptor":
			return "型記述子が不正です"
		case "arity_mismatch":
			return "要素数が一致しません"
		case "invalid_enum_value":
			return "列挙値が不正です"
		case "field_construction":
			return "インスタンスを生成できません"
		case "max_depth_exceeded":
			return "ネストが深すぎます"
		case "cycle":
			return "循環参照です"
		case "conversion":
			return "変換エラー"
		case "unbound_field":
			return "フィールドが見つかりません"
		}
	default: // "en"
		switch code {
		case "unsupported_type":
			return "unsupported type"
		case "malformed_descriptor":
			return "malformed type descriptor"
		case "arity_mismatch":
			return "arity mismatch"
		case "invalid_enum_value":
			return "invalid enum value"
		case "field_construction":
			return "cannot construct value"
		case "max_depth_exceeded":
			return "max depth exceeded"
		case "cycle":
			return "cycle detected"
		case "conversion":
			return "conversion failed"
		case "unbound_field":
			return "unbound field"
		}
	}
	return code
}

var (
	mu                sync.RWMutex
	currentTranslator Translator = dictTranslator{lang: "en"}
)

// SetLanguage switches the built-in Translator language ("en"/"ja").
func SetLanguage(lang string) {
	if lang != "ja" {
		lang = "en"
	}
	mu.Lock()
	currentTranslator = dictTranslator{lang: lang}
	mu.Unlock()
}

// SetTranslator replaces the Translator implementation (not limited to the
// dictionary version). nil restores the English dictionary.
func SetTranslator(tr Translator) {
	if tr == nil {
		tr = dictTranslator{lang: "en"}
	}
	mu.Lock()
	currentTranslator = tr
	mu.Unlock()
}

// T fetches a message for the given code using the current Translator.
func T(code string, data map[string]string) string {
	mu.RLock()
	tr := currentTranslator
	mu.RUnlock()
	return tr.Message(code, data)
}
