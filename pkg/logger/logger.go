package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger はzapのSugaredLoggerをラップしたロガー。
type Logger struct {
	// SugaredLogger は内部で使用するzapのロガー。
	SugaredLogger *zap.SugaredLogger
}

// New は動作モードに応じたロガーを生成する。
// "prod" または "production" の場合はJSON形式、それ以外は開発向けのコンソール形式で出力する。
func New(mode string) (*Logger, error) {
	var cfg zap.Config
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "prod", "production":
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	default:
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	zapLogger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{SugaredLogger: zapLogger.Sugar()}, nil
}

// NewNop は何も出力しないロガーを生成する。テストで使用する。
func NewNop() *Logger {
	return &Logger{SugaredLogger: zap.NewNop().Sugar()}
}

// Sync はバッファされたログを書き出す。
func (l *Logger) Sync() {
	_ = l.SugaredLogger.Sync()
}

// Debug は開発時の調査用のログをキーバリュー付きで出力する。
func (l *Logger) Debug(msg string, keysAndValues ...any) {
	l.SugaredLogger.Debugw(msg, keysAndValues...)
}

// Info は通常の動作を記録するログをキーバリュー付きで出力する。
func (l *Logger) Info(msg string, keysAndValues ...any) {
	l.SugaredLogger.Infow(msg, keysAndValues...)
}

// Warn は処理を継続できる異常をキーバリュー付きで出力する。
func (l *Logger) Warn(msg string, keysAndValues ...any) {
	l.SugaredLogger.Warnw(msg, keysAndValues...)
}

// Error は処理に失敗したことをキーバリュー付きで出力する。
func (l *Logger) Error(msg string, keysAndValues ...any) {
	l.SugaredLogger.Errorw(msg, keysAndValues...)
}

// With は指定したキーバリューを常に付与する子ロガーを返す。
func (l *Logger) With(keysAndValues ...any) *Logger {
	return &Logger{SugaredLogger: l.SugaredLogger.With(keysAndValues...)}
}
