package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyBuildID    = "build_id"
	KeyMode       = "mode"
	KeyStage      = "stage"
	KeyDurationMS = "duration_ms"
	KeyPath       = "path"
	KeyFile       = "file"
	KeyRule       = "rule"
	KeyLoader     = "loader"
	KeyChunk      = "chunk"
	KeyEntry      = "entry"
	KeyPlugin     = "plugin"
	KeyAssetClass = "asset_class"
	KeyCount      = "count"
	KeyBytes      = "bytes"
	KeyMethod     = "method"
	KeyStatus     = "status"
	KeyRemoteAddr = "remote_addr"
	KeyUserAgent  = "user_agent"
	KeyPort       = "port"
	KeyTrigger    = "trigger"
	KeyOp         = "op"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func BuildID(id string) slog.Attr       { return slog.String(KeyBuildID, id) }
func Mode(m string) slog.Attr           { return slog.String(KeyMode, m) }
func Stage(name string) slog.Attr       { return slog.String(KeyStage, name) }
func DurationMS(ms float64) slog.Attr   { return slog.Float64(KeyDurationMS, ms) }
func Path(p string) slog.Attr           { return slog.String(KeyPath, p) }
func File(f string) slog.Attr           { return slog.String(KeyFile, f) }
func Rule(name string) slog.Attr        { return slog.String(KeyRule, name) }
func Loader(name string) slog.Attr      { return slog.String(KeyLoader, name) }
func Chunk(name string) slog.Attr       { return slog.String(KeyChunk, name) }
func Entry(name string) slog.Attr       { return slog.String(KeyEntry, name) }
func Plugin(name string) slog.Attr      { return slog.String(KeyPlugin, name) }
func AssetClass(c string) slog.Attr     { return slog.String(KeyAssetClass, c) }
func Count(n int) slog.Attr             { return slog.Int(KeyCount, n) }
func Bytes(n int64) slog.Attr           { return slog.Int64(KeyBytes, n) }
func Method(m string) slog.Attr         { return slog.String(KeyMethod, m) }
func Status(code int) slog.Attr         { return slog.Int(KeyStatus, code) }
func RemoteAddr(addr string) slog.Attr  { return slog.String(KeyRemoteAddr, addr) }
func UserAgent(ua string) slog.Attr     { return slog.String(KeyUserAgent, ua) }
func Port(p int) slog.Attr              { return slog.Int(KeyPort, p) }
func Trigger(t string) slog.Attr        { return slog.String(KeyTrigger, t) }
func Op(op string) slog.Attr            { return slog.String(KeyOp, op) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
