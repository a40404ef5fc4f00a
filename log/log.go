// Package log is a small structured logger in the style the teacher
// repo imports throughout eth/stagedsync and core/state (itself a
// log15-derived logger). It is kept deliberately dependency-free: every
// stage and the pipeline driver log through it with key/value pairs,
// e.g. log.Info("[Execution] Executed blocks", "blk/s", 120.0).
package log

import (
	"fmt"
	"os"
	"strings"
	"time"
)

type Lvl int

const (
	LvlError Lvl = iota
	LvlWarn
	LvlInfo
	LvlDebug
	LvlTrace
)

var current = LvlInfo

func SetLevel(l Lvl) { current = l }

type Logger struct {
	ctx []interface{}
}

func New(ctx ...interface{}) Logger {
	return Logger{ctx: ctx}
}

func (l Logger) with(kv []interface{}) []interface{} {
	if len(l.ctx) == 0 {
		return kv
	}
	out := make([]interface{}, 0, len(l.ctx)+len(kv))
	out = append(out, l.ctx...)
	out = append(out, kv...)
	return out
}

func (l Logger) Info(msg string, ctx ...interface{})  { write(LvlInfo, msg, l.with(ctx)) }
func (l Logger) Warn(msg string, ctx ...interface{})  { write(LvlWarn, msg, l.with(ctx)) }
func (l Logger) Error(msg string, ctx ...interface{}) { write(LvlError, msg, l.with(ctx)) }
func (l Logger) Debug(msg string, ctx ...interface{}) { write(LvlDebug, msg, l.with(ctx)) }

func Info(msg string, ctx ...interface{})  { write(LvlInfo, msg, ctx) }
func Warn(msg string, ctx ...interface{})  { write(LvlWarn, msg, ctx) }
func Error(msg string, ctx ...interface{}) { write(LvlError, msg, ctx) }
func Debug(msg string, ctx ...interface{}) { write(LvlDebug, msg, ctx) }

func write(lvl Lvl, msg string, ctx []interface{}) {
	if lvl > current {
		return
	}
	var sb strings.Builder
	sb.WriteString(time.Now().Format("2006-01-02T15:04:05-0700"))
	sb.WriteByte(' ')
	sb.WriteString(lvlString(lvl))
	sb.WriteByte(' ')
	sb.WriteString(msg)
	for i := 0; i+1 < len(ctx); i += 2 {
		fmt.Fprintf(&sb, " %v=%v", ctx[i], ctx[i+1])
	}
	fmt.Fprintln(os.Stderr, sb.String())
}

func lvlString(l Lvl) string {
	switch l {
	case LvlError:
		return "EROR"
	case LvlWarn:
		return "WARN"
	case LvlInfo:
		return "INFO"
	case LvlDebug:
		return "DBUG"
	default:
		return "TRCE"
	}
}
