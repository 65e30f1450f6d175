package util

import "strings"

const (
	KakaoSeeMorePadding = 500
	KakaoZeroWidthSpace = "\u200b"
)

// 카카오톡은 긴 첫 줄 뒤를 '전체보기'로 접는다. header만 보이고 body는 접힌다.
func SeeMore(header, body string) string {
	body = strings.TrimLeft(stripHeader(body, header), "\r\n")
	if strings.TrimSpace(body) == "" {
		return strings.TrimSpace(header)
	}

	header = strings.TrimSpace(header)
	var b strings.Builder
	b.Grow(len(header) + len(body) + KakaoSeeMorePadding*len(KakaoZeroWidthSpace) + 1)
	b.WriteString(header)
	b.WriteString(strings.Repeat(KakaoZeroWidthSpace, KakaoSeeMorePadding))
	b.WriteByte('\n')
	b.WriteString(body)
	return b.String()
}

func stripHeader(text, header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return text
	}
	return strings.TrimPrefix(strings.TrimLeft(text, " "), header)
}
