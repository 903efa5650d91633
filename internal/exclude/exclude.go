// Package exclude 实现“排除名单”：自由文本 → 小写子串集合 → contains 匹配。
package exclude

import (
	"sort"
	"strings"
)

// Set 是规范化后的小写子串集合（无序；重复无害）。
//
// 匹配语义是“包含”而不是整词/通配：短 token 会匹配很多名字（例如 "cal" 命中 "Calidad.docx"），
// 这是既有行为，保持不变。
type Set struct {
	tokens map[string]struct{}
}

// Parse 把逗号/换行分隔的文本解析为 Set；空文本得到空集合。
func Parse(text string) Set {
	s := Set{tokens: map[string]struct{}{}}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\n", ",")
	for _, tok := range strings.Split(text, ",") {
		tok = strings.ToLower(strings.TrimSpace(tok))
		if tok == "" {
			continue
		}
		s.tokens[tok] = struct{}{}
	}
	return s
}

// Match 报告 name（小写后）是否包含任一 token。空集合永远不匹配。
func (s Set) Match(name string) bool {
	if len(s.tokens) == 0 {
		return false
	}
	lower := strings.ToLower(name)
	for tok := range s.tokens {
		if strings.Contains(lower, tok) {
			return true
		}
	}
	return false
}

// Tokens 返回排序后的 token（仅用于日志/报告的稳定输出）。
func (s Set) Tokens() []string {
	out := make([]string, 0, len(s.tokens))
	for tok := range s.tokens {
		out = append(out, tok)
	}
	sort.Strings(out)
	return out
}
