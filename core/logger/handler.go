package logger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"
)

type logFormat string

const (
	formatJSON logFormat = "json"
	formatKV   logFormat = "kv"

	timeFormatMillis = "2006-01-02T15:04:05.000Z07:00"
)

var errNoWriter = errors.New("logger: writer not initialized")

type handlerConfig struct {
	level    slog.Leveler
	writer   *asyncWriter
	format   logFormat
	keyOrder []string
}

// structuredHandler renders one flat line per record. Groups become dotted
// key prefixes; attributes bound with WithAttrs are flattened once up front.
type structuredHandler struct {
	cfg    handlerConfig
	bound  fields
	prefix string
}

func newStructuredHandler(cfg handlerConfig) *structuredHandler {
	if cfg.level == nil {
		cfg.level = slog.LevelInfo
	}
	if cfg.keyOrder == nil {
		cfg.keyOrder = slices.Clone(defaultKeyOrder)
	}
	return &structuredHandler{cfg: cfg}
}

// Enabled reports whether records at level are written.
func (h *structuredHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.cfg.level.Level()
}

// Handle renders r with the bound and context fields and queues the line.
func (h *structuredHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.cfg.writer == nil {
		return errNoWriter
	}
	f := make(fields, 16+len(h.bound))
	maps.Copy(f, h.bound)
	r.Attrs(func(a slog.Attr) bool {
		f.add(h.prefix, a)
		return true
	})
	f.fromContext(ctx)

	isJSON := h.cfg.format == formatJSON
	f.stamp(r, isJSON)
	f.tidy(isJSON)

	var line []byte
	if isJSON {
		line = f.appendJSON(nil, h.cfg.keyOrder)
	} else {
		line = f.appendKV(nil, h.cfg.keyOrder)
	}
	return h.cfg.writer.Write(append(line, '\n'))
}

// WithAttrs returns a handler that adds attrs to every record.
func (h *structuredHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	clone := *h
	clone.bound = maps.Clone(h.bound)
	if clone.bound == nil {
		clone.bound = make(fields, len(attrs))
	}
	for _, a := range attrs {
		clone.bound.add(h.prefix, a)
	}
	return &clone
}

// WithGroup returns a handler that prefixes later keys with name.
func (h *structuredHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.prefix = joinKey(h.prefix, name)
	return &clone
}

// fields holds the flattened, normalized attributes of one line.
type fields map[string]any

func joinKey(prefix, key string) string {
	switch {
	case prefix == "":
		return key
	case key == "":
		return prefix
	}
	return prefix + "." + key
}

func (f fields) add(prefix string, a slog.Attr) {
	key := joinKey(prefix, a.Key)
	val := a.Value.Resolve()
	if val.Kind() == slog.KindGroup {
		for _, child := range val.Group() {
			f.add(key, child)
		}
		return
	}
	if key == "" {
		return
	}
	if key, v, ok := normalize(key, val); ok {
		f[key] = v
	}
}

// normalize maps a value onto the few types the encoders know.
// Durations are written as whole milliseconds under a key ending in _ms.
func normalize(key string, val slog.Value) (string, any, bool) {
	switch val.Kind() {
	case slog.KindString:
		return key, strings.TrimSpace(val.String()), true
	case slog.KindBool:
		return key, val.Bool(), true
	case slog.KindInt64:
		return key, val.Int64(), true
	case slog.KindUint64:
		if u := val.Uint64(); u <= math.MaxInt64 {
			return key, int64(u), true
		}
		return key, val.Uint64(), true
	case slog.KindFloat64:
		return key, val.Float64(), true
	case slog.KindDuration:
		return durationKey(key), RoundMS(val.Duration()).Milliseconds(), true
	case slog.KindTime:
		return key, val.Time().UTC().Format(time.RFC3339Nano), true
	}
	switch x := val.Any().(type) {
	case nil:
		return key, nil, false
	case error:
		return key, x.Error(), true
	case string:
		return key, strings.TrimSpace(x), true
	case time.Duration:
		return durationKey(key), RoundMS(x).Milliseconds(), true
	case fmt.Stringer:
		return key, x.String(), true
	default:
		return key, fmt.Sprint(x), true
	}
}

// durationKey renames duration attributes so their unit is explicit.
func durationKey(key string) string {
	switch {
	case key == "duration":
		return "duration_ms"
	case strings.HasSuffix(key, "_ms"):
		return key
	}
	return key + "_ms"
}

// fromContext copies the request metadata carried by ctx. Explicit attributes win.
func (f fields) fromContext(ctx context.Context) {
	if ctx == nil {
		return
	}
	f.fallback("rid", RIDFrom(ctx))
	f.fallback("handler", HandlerFrom(ctx))
	if id := UpdateIDFrom(ctx); id != 0 {
		f.fallback("update_id", int64(id))
	}
	if id := UserIDFrom(ctx); id != 0 {
		f.fallback("user_id", id)
	}
	if id := ChatIDFrom(ctx); id != 0 {
		f.fallback("chat_id", id)
	}
}

// fallback sets key to val unless key already holds a non-empty value.
func (f fields) fallback(key string, val any) {
	if val == nil || val == "" {
		return
	}
	if cur, ok := f[key]; ok && cur != nil && cur != "" {
		return
	}
	f[key] = val
}

// stamp writes the record time and level and fills event and component.
func (f fields) stamp(r slog.Record, isJSON bool) {
	ts := r.Time.UTC()
	f["ts"] = ts.Truncate(time.Millisecond).Format(timeFormatMillis)
	if isJSON {
		f["ts_unix_nano"] = ts.UnixNano()
	}
	f["level"] = normalizeLevel(r.Level.String())

	event := strings.TrimSpace(r.Message)
	if event == "" {
		event = "unknown"
	}
	f.fallback("event", event)
	f.fallback("component", CompApp)
}

// tidy compacts the request ID, canonicalizes enumerations and drops empty values.
func (f fields) tidy(keepFullRID bool) {
	if rid, ok := f["rid"].(string); ok {
		if compact := CompactRID(rid); compact != "" && compact != rid {
			if _, seen := f["rid_full"]; keepFullRID && !seen {
				f["rid_full"] = rid
			}
			f["rid"] = compact
		}
	}
	if status, ok := f["status"].(string); ok {
		f["status"] = strings.ToLower(status)
	}
	if outcome, ok := f["outcome"].(string); ok {
		if canonical, valid := normalizeOutcome(outcome); valid {
			f["outcome"] = canonical
		} else {
			delete(f, "outcome")
		}
	}
	maps.DeleteFunc(f, func(_ string, v any) bool {
		return v == nil || v == ""
	})
}

// keys lists the keys named in order first, then the rest alphabetically.
func (f fields) keys(order []string) []string {
	out := make([]string, 0, len(f))
	for _, key := range order {
		if _, ok := f[key]; ok && !slices.Contains(out, key) {
			out = append(out, key)
		}
	}
	head := len(out)
	for key := range f {
		if !slices.Contains(out[:head], key) {
			out = append(out, key)
		}
	}
	slices.Sort(out[head:])
	return out
}

func (f fields) appendJSON(dst []byte, order []string) []byte {
	dst = append(dst, '{')
	for i, key := range f.keys(order) {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = strconv.AppendQuote(dst, key)
		dst = append(dst, ':')
		data, err := json.Marshal(f[key])
		if err != nil {
			// NaN and Inf have no JSON form.
			data = strconv.AppendQuote(nil, fmt.Sprint(f[key]))
		}
		dst = append(dst, data...)
	}
	return append(dst, '}')
}

func (f fields) appendKV(dst []byte, order []string) []byte {
	for i, key := range f.keys(order) {
		if i > 0 {
			dst = append(dst, ' ')
		}
		dst = append(dst, key...)
		dst = append(dst, '=')
		dst = appendKVValue(dst, f[key])
	}
	return dst
}

func appendKVValue(dst []byte, val any) []byte {
	switch v := val.(type) {
	case bool:
		return strconv.AppendBool(dst, v)
	case int64:
		return strconv.AppendInt(dst, v, 10)
	case uint64:
		return strconv.AppendUint(dst, v, 10)
	case float64:
		return strconv.AppendFloat(dst, v, 'g', -1, 64)
	}
	s, ok := val.(string)
	if !ok {
		s = fmt.Sprint(val)
	}
	if strings.IndexFunc(s, needsQuote) >= 0 {
		return strconv.AppendQuote(dst, s)
	}
	return append(dst, s...)
}

func needsQuote(r rune) bool {
	return r <= ' ' || r == '=' || r == '"'
}
