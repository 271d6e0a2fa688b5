package main

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Language selects the locale of difference messages.
type Language string

const (
	LanguageEnglish Language = "english"
	LanguageKorean  Language = "korean"
)

func parseLanguage(s string) (Language, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "english", "en":
		return LanguageEnglish, nil
	case "korean", "ko":
		return LanguageKorean, nil
	default:
		return "", fmt.Errorf("unsupported language %q (must be english or korean)", s)
	}
}

func (l Language) Tag() language.Tag {
	if l == LanguageKorean {
		return language.Korean
	}
	return language.English
}

// Message arguments, in order:
//
//	table_missing:           table
//	table_comment:           table, base value, target value
//	*_missing:               table, object
//	everything else:         table, object, base value, target value
var diffMessages = map[DiffKind]struct{ english, korean string }{
	KindTableMissing: {
		"Table: %s exists in the base database, but not in the target database.",
		"Table: %s가 base 데이터베이스에는 있지만, target 데이터베이스에는 없습니다.",
	},
	KindTableComment: {
		"Table: %s has different comment. => %s != %s",
		"Table: %s의 코멘트가 다릅니다. => %s != %s",
	},
	KindColumnMissing: {
		"Column: %s.%s exists in the base database, but not in the target database.",
		"Column: %s.%s가 base 데이터베이스에는 있지만, target 데이터베이스에는 없습니다.",
	},
	KindColumnDataType: {
		"Column: %s.%s has different data type. => %s != %s",
		"Column: %s.%s의 데이터 타입이 다릅니다. => %s != %s",
	},
	KindColumnComment: {
		"Column: %s.%s has different comment. => %s != %s",
		"Column: %s.%s의 코멘트가 다릅니다. => %s != %s",
	},
	KindColumnNullable: {
		"Column: %s.%s has different nullable. => %s != %s",
		"Column: %s.%s의 NULLABLE이 다릅니다. => %s != %s",
	},
	KindColumnDefault: {
		"Column: %s.%s has different default value. => %s != %s",
		"Column: %s.%s의 DEFAULT 값이 다릅니다. => %s != %s",
	},
	KindColumnAutoIncrement: {
		"Column: %s.%s has different AUTO_INCREMENT. => %s != %s",
		"Column: %s.%s의 AUTO_INCREMENT 여부가 다릅니다. => %s != %s",
	},
	KindIndexMissing: {
		"Index: %s.%s exists in the base database, but not in the target database.",
		"Index: %s.%s가 base 데이터베이스에는 있지만, target 데이터베이스에는 없습니다.",
	},
	KindIndexColumns: {
		"Index: %s.%s has different columns. Please check the order. => %s != %s",
		"Index: %s.%s의 컬럼이 다릅니다. 순서까지 확인해주세요. => %s != %s",
	},
	KindIndexPredicate: {
		"Index: %s.%s has different predicate. => %s != %s",
		"Index: %s.%s의 조건이 다릅니다. => %s != %s",
	},
	KindIndexUnique: {
		"Index: %s.%s has different uniqueness. => %s != %s",
		"Index: %s.%s의 UNIQUE 여부가 다릅니다. => %s != %s",
	},
	KindForeignKeyMissing: {
		"Foreign Key: %s.%s exists in the base database, but not in the target database.",
		"Foreign Key: %s.%s가 base 데이터베이스에는 있지만, target 데이터베이스에는 없습니다.",
	},
	KindForeignKeyReference: {
		"Foreign Key: %s.%s references different column. => %s != %s",
		"Foreign Key: %s.%s의 참조 컬럼이 다릅니다. => %s != %s",
	},
}

var messageCatalog = mustBuildCatalog()

func mustBuildCatalog() catalog.Catalog {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for kind, m := range diffMessages {
		if err := b.SetString(language.English, string(kind), m.english); err != nil {
			panic(fmt.Sprintf("catalog %s/en: %v", kind, err))
		}
		if err := b.SetString(language.Korean, string(kind), m.korean); err != nil {
			panic(fmt.Sprintf("catalog %s/ko: %v", kind, err))
		}
	}
	return b
}

func newPrinter(lang Language) *message.Printer {
	return message.NewPrinter(lang.Tag(), message.Catalog(messageCatalog))
}

// renderDifference formats one difference line in the printer's language.
func renderDifference(p *message.Printer, d Difference) string {
	switch d.Kind {
	case KindTableMissing:
		return p.Sprintf(string(d.Kind), d.Table)
	case KindTableComment:
		return p.Sprintf(string(d.Kind), d.Table, d.Base, d.Target)
	case KindColumnMissing, KindIndexMissing, KindForeignKeyMissing:
		return p.Sprintf(string(d.Kind), d.Table, d.Object)
	default:
		return p.Sprintf(string(d.Kind), d.Table, d.Object, d.Base, d.Target)
	}
}
