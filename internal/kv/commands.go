package kv

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/koustreak/unidb/internal/value"
)

// Command text is space-delimited, command name first. Values are inserted
// verbatim: a value containing whitespace is split into several arguments
// by the wire layer. Callers must keep keys, fields and values free of
// spaces.

func cmdSet(key string, v value.Value, expireSeconds int64) string {
	ex := ""
	if expireSeconds > 0 {
		ex = "ex " + strconv.FormatInt(expireSeconds, 10)
	}
	return fmt.Sprintf("set %s %s %s", key, v.AsString(), ex)
}

func cmdAuth(user, password string) string {
	return fmt.Sprintf("auth %s %s", user, password)
}

func cmdScan(match string, count, cursor int64) string {
	m := ""
	if match != "" {
		m = "match " + match
	}
	c := ""
	if count > 0 {
		c = fmt.Sprintf("count %d", count)
	}
	return fmt.Sprintf("scan %d %s %s", cursor, m, c)
}

func cmdXRead(stream string, block, count int64) string {
	c := ""
	if count > 0 {
		c = fmt.Sprintf("count %d", count)
	}
	b := ""
	if block > 0 {
		b = fmt.Sprintf("block %d", block)
	}
	return fmt.Sprintf("xread %s %s streams %s 0", c, b, stream)
}

// cmdWithPairs renders "<prefix> f1 v1 f2 v2 ...".
func cmdWithPairs(prefix string, fields *FieldMap) string {
	var sb strings.Builder
	sb.WriteString(prefix)
	if fields == nil {
		return sb.String()
	}
	for _, k := range fields.keys {
		sb.WriteString(" ")
		sb.WriteString(k)
		sb.WriteString(" ")
		sb.WriteString(fields.vals[k].AsString())
	}
	return sb.String()
}

// cmdWithValues renders "<prefix> v1 v2 ...".
func cmdWithValues(prefix string, vals []value.Value) string {
	var sb strings.Builder
	sb.WriteString(prefix)
	for _, v := range vals {
		sb.WriteString(" ")
		sb.WriteString(v.AsString())
	}
	return sb.String()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
