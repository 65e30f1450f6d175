package rpspresenter

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/park285/rpsminus-bot/internal/msgcat"
	"github.com/park285/rpsminus-bot/internal/rps"
	"github.com/park285/rpsminus-bot/internal/util"
	"github.com/park285/rpsminus-bot/pkg/rpsdto"
)

// PrefixProvider exposes the command prefix shown in hints.
type PrefixProvider interface {
	Prefix() string
}

type staticPrefix string

func (p staticPrefix) Prefix() string { return string(p) }

// StaticPrefix wraps a fixed prefix.
func StaticPrefix(p string) PrefixProvider { return staticPrefix(p) }

// Formatter renders round views into Kakao-friendly text.
type Formatter struct {
	prefixProvider PrefixProvider
	catalog        *msgcat.Catalog
	timings        rps.Timings
}

func NewFormatter(provider PrefixProvider, catalog *msgcat.Catalog, timings rps.Timings) *Formatter {
	return &Formatter{prefixProvider: provider, catalog: catalog, timings: timings}
}

func (f *Formatter) Prefix() string {
	if f == nil || f.prefixProvider == nil {
		return ""
	}
	return strings.TrimSpace(f.prefixProvider.Prefix())
}

func (f *Formatter) Start(v rpsdto.RoundView, resumed bool) string {
	data := map[string]any{
		"Difficulty": f.difficulty(v.Difficulty),
		"Round":      v.RoundNumber,
	}
	var sb strings.Builder
	if resumed {
		sb.WriteString(f.text("rps.resumed", data, "진행 중인 가위바위보를 불러왔습니다."))
		sb.WriteString("\n")
		sb.WriteString(f.Status(v))
		return sb.String()
	}
	sb.WriteString(f.text("rps.start", data, "가위바위보 하나빼기를 시작합니다!"))
	if v.Score.Volatile {
		sb.WriteString("\n")
		sb.WriteString(f.text("rps.score_volatile", nil, "전적이 저장되지 않습니다."))
	}
	sb.WriteString("\n")
	sb.WriteString(f.Prompt(v))
	return sb.String()
}

// Event renders the message for a pushed snapshot. Empty means nothing to send.
func (f *Formatter) Event(v rpsdto.RoundView) string {
	switch v.Event {
	case "ended":
		return f.text("rps.ended_idle", nil, "가위바위보를 종료했습니다.")
	case "resolved":
		return f.withForced(v, f.Result(v))
	case "advanced":
		return f.withForced(v, f.Prompt(v))
	case "round_started":
		if v.RoundNumber <= 1 {
			// the start reply already carries the first prompt
			return ""
		}
		return f.Prompt(v)
	default:
		return ""
	}
}

// Status is the current phase prompt, or the result while the round is held.
func (f *Formatter) Status(v rpsdto.RoundView) string {
	if v.Resolved() {
		return f.Result(v)
	}
	return f.Prompt(v)
}

func (f *Formatter) Prompt(v rpsdto.RoundView) string {
	data := map[string]any{
		"Round":        v.RoundNumber,
		"Countdown":    Countdown(v.Remaining),
		"PlayerFirst":  f.symbol(v.PlayerFirst),
		"PlayerSecond": f.symbol(v.PlayerSecond),
		"BotFirst":     f.symbol(v.BotFirst),
		"BotSecond":    f.symbol(v.BotSecond),
	}
	switch v.Phase {
	case "awaiting_first_pick":
		return f.text("rps.prompt.first_pick", data, "첫 번째 손을 내세요! "+Countdown(v.Remaining))
	case "awaiting_second_pick":
		return f.text("rps.prompt.second_pick", data, "두 번째 손을 내세요! "+Countdown(v.Remaining))
	case "awaiting_discard":
		return f.text("rps.prompt.discard", data, "하나 빼기! "+Countdown(v.Remaining))
	default:
		return ""
	}
}

func (f *Formatter) Result(v rpsdto.RoundView) string {
	var sb strings.Builder
	switch v.Result {
	case "player":
		sb.WriteString(f.text("rps.result.player", nil, "You win!"))
	case "bot":
		sb.WriteString(f.text("rps.result.bot", nil, "Bot wins!"))
	default:
		sb.WriteString(f.text("rps.result.tie", nil, "It's a tie!"))
	}
	sb.WriteString("\n")
	sb.WriteString(f.text("rps.result.line", map[string]any{
		"PlayerFinal": f.symbol(v.PlayerFinal),
		"BotFinal":    f.symbol(v.BotFinal),
	}, v.PlayerFinal+" vs "+v.BotFinal))
	sb.WriteString("\n")
	sb.WriteString(f.scoreLine(v.Score))
	if !v.Ended {
		sb.WriteString("\n")
		sb.WriteString(f.text("rps.next_round", map[string]any{
			"Seconds": seconds(f.timings.ResultHold),
			"Prefix":  f.Prefix(),
		}, ""))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (f *Formatter) Score(s rpsdto.ScoreView) string {
	line := f.scoreLine(s)
	if s.Total() == 0 {
		return line
	}
	rate := float64(s.PlayerWins) / float64(s.Total()) * 100
	return fmt.Sprintf("%s (승률 %.1f%%)", line, rate)
}

func (f *Formatter) scoreLine(s rpsdto.ScoreView) string {
	line := f.text("rps.score", map[string]any{
		"PlayerWins": s.PlayerWins,
		"BotWins":    s.BotWins,
	}, fmt.Sprintf("%d : %d", s.PlayerWins, s.BotWins))
	if s.Volatile {
		line += "\n" + f.text("rps.score_volatile", nil, "전적이 저장되지 않습니다.")
	}
	return line
}

func (f *Formatter) Stopped(v rpsdto.RoundView) string {
	return f.text("rps.stopped", map[string]any{"Rounds": v.RoundNumber}, "가위바위보를 종료했습니다.") +
		"\n" + f.scoreLine(v.Score)
}

func (f *Formatter) Reset() string {
	return f.text("rps.reset", nil, "전적을 초기화했습니다.")
}

func (f *Formatter) Help() string {
	title := f.text("rps.help_title", nil, "가위바위보 안내")
	body := f.text("rps.help", map[string]any{
		"Prefix":     f.Prefix(),
		"FirstPick":  seconds(f.timings.FirstPick),
		"SecondPick": seconds(f.timings.SecondPick),
		"Discard":    seconds(f.timings.Discard),
	}, "")
	return util.SeeMore(title, strings.TrimRight(body, "\n"))
}

func (f *Formatter) Error(err error) string {
	de := ToDomainError(err)
	data := map[string]any{"Prefix": f.Prefix(), "Hint": ""}
	switch de.Code {
	case "":
		return ""
	case "invalid_choice":
		data["Hint"] = invalidHint(de.Message)
	}
	key := "rps.errors." + de.Code
	if f.catalog == nil || !f.catalog.Has(key) {
		key = "rps.errors.generic"
	}
	return f.text(key, data, "요청을 처리하지 못했습니다.")
}

func (f *Formatter) UnknownInput() string {
	return f.text("rps.errors.unknown_input", map[string]any{"Prefix": f.Prefix()}, "알 수 없는 입력입니다.")
}

func (f *Formatter) withForced(v rpsdto.RoundView, body string) string {
	if !v.Forced {
		return body
	}
	var picked string
	switch v.Phase {
	case "awaiting_second_pick":
		picked = v.PlayerFirst
	case "awaiting_discard":
		picked = v.PlayerSecond
	case "resolved":
		picked = v.PlayerFinal
	}
	if picked == "" {
		return body
	}
	return f.text("rps.forced", map[string]any{"Symbol": f.symbol(picked)}, "시간 초과!") + "\n" + body
}

func (f *Formatter) symbol(name string) string {
	if name == "" {
		return "-"
	}
	return f.text("rps.symbol."+name, nil, name)
}

func (f *Formatter) difficulty(name string) string {
	if name == "" {
		return "-"
	}
	return f.text("rps.difficulty."+name, nil, name)
}

func (f *Formatter) text(key string, data any, fallback string) string {
	if f == nil {
		return fallback
	}
	return f.catalog.RenderOr(key, data, fallback)
}

func invalidHint(reason string) string {
	switch {
	case strings.Contains(reason, "already picked"):
		return "첫 손과 다른 손을 내세요."
	case strings.Contains(reason, "kept pair"):
		return "내가 낸 두 손 중 하나만 남길 수 있어요."
	case strings.Contains(reason, "resolved"):
		return "다음 판을 기다려주세요."
	default:
		return ""
	}
}

// Countdown formats a remaining duration as seconds with millisecond precision ("3.250").
func Countdown(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	ms := d.Milliseconds()
	return fmt.Sprintf("%d.%03d", ms/1000, ms%1000)
}

func seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}
