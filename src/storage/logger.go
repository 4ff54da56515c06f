package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel 定义日志级别类型
type LogLevel int

// 日志级别常量定义
const (
	DEBUG   LogLevel = iota // 调试信息
	INFO                    // 普通信息
	WARNING                 // 警告信息
	ERROR                   // 错误信息
	FATAL                   // 致命错误, 只记录不退出
)

// Logger 日志记录器: zap 写入日志文件, 同时推送给订阅者
type Logger struct {
	zl          *zap.Logger
	path        string
	file        *os.File      // 日志文件句柄
	mu          sync.Mutex    // 互斥锁，保证并发安全
	subscribers []chan string // 订阅者通道列表
}

// Option 配置 Logger
type Option func(*options)

type options struct {
	console bool
	level   zapcore.Level
}

// WithConsole 同时输出到 stderr
func WithConsole() Option {
	return func(o *options) { o.console = true }
}

// WithLevel 最低日志级别
func WithLevel(level LogLevel) Option {
	return func(o *options) { o.level = level.zapLevel() }
}

// NewLogger 创建新的日志记录器
func NewLogger(filename string, opts ...Option) (*Logger, error) {
	o := options{level: zapcore.InfoLevel}
	for _, opt := range opts {
		opt(&o)
	}

	file, err := openLogFile(filename)
	if err != nil {
		return nil, err
	}

	l := &Logger{path: filename, file: file}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(l), o.level),
	}
	if o.console {
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stderr), o.level))
	}
	l.zl = zap.New(zapcore.NewTee(cores...))
	return l, nil
}

func openLogFile(filename string) (*os.File, error) {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
}

// Write 实现 io.Writer, 由 zap core 调用
func (l *Logger) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return 0, os.ErrClosed
	}
	n, err := l.file.Write(p)

	entry := strings.TrimRight(string(p), "\n")
	for _, ch := range l.subscribers {
		select {
		case ch <- entry:
		default: // 如果通道已满则跳过
		}
	}
	return n, err
}

// Zap 返回底层 zap.Logger
func (l *Logger) Zap() *zap.Logger {
	return l.zl
}

// Close 关闭日志文件
func (l *Logger) Close() error {
	_ = l.zl.Sync()

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}

// Reopen 重新打开一个文件 (SIGHUP); 新文件打开失败时保留原句柄
func (l *Logger) Reopen(filename string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	file, err := openLogFile(filename)
	if err != nil {
		return err
	}
	if l.file != nil {
		_ = l.file.Close()
	}
	l.file = file
	l.path = filename
	return nil
}

// Log 记录日志方法
func (l *Logger) Log(level LogLevel, message string, fields ...zap.Field) {
	if l == nil {
		return
	}
	if level == FATAL {
		fields = append(fields, zap.Bool("fatal", true))
	}
	l.zl.Log(level.zapLevel(), message, fields...)
}

// CheckRotate 文件超过 maxBytes 时轮转, 返回是否轮转
func (l *Logger) CheckRotate(maxBytes int64) (bool, error) {
	if maxBytes <= 0 {
		return false, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return false, nil
	}
	info, err := l.file.Stat()
	if err != nil {
		return false, err
	}
	if info.Size() <= maxBytes {
		return false, nil
	}
	return true, l.rotateLocked()
}

// rotateLocked 先改名再打开新文件, 成功后才替换句柄
func (l *Logger) rotateLocked() error {
	ext := filepath.Ext(l.path)
	base := strings.TrimSuffix(l.path, ext)
	rotated := fmt.Sprintf("%s.%s%s", base, time.Now().Format("20060102150405"), ext)
	renameErr := os.Rename(l.path, rotated)

	// 改名失败 (文件被外部删除等) 时在原路径重建文件
	file, err := openLogFile(l.path)
	if err != nil {
		if renameErr != nil {
			return renameErr
		}
		return err
	}
	_ = l.file.Close()
	l.file = file
	return renameErr
}

// Subscribe 订阅日志消息
func (l *Logger) Subscribe() <-chan string {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch := make(chan string, 100)
	l.subscribers = append(l.subscribers, ch)
	return ch
}

// Unsubscribe 取消订阅并关闭通道
func (l *Logger) Unsubscribe(ch <-chan string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, sub := range l.subscribers {
		if sub == ch {
			l.subscribers = append(l.subscribers[:i], l.subscribers[i+1:]...)
			close(sub)
			return
		}
	}
}

// String 实现LogLevel的String方法
func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARNING:
		return "WARNING"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case DEBUG:
		return zapcore.DebugLevel
	case WARNING:
		return zapcore.WarnLevel
	case ERROR, FATAL:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// 以下是快捷日志方法
func (l *Logger) Debug(msg string, fields ...zap.Field)   { l.Log(DEBUG, msg, fields...) }
func (l *Logger) Info(msg string, fields ...zap.Field)    { l.Log(INFO, msg, fields...) }
func (l *Logger) Warning(msg string, fields ...zap.Field) { l.Log(WARNING, msg, fields...) }
func (l *Logger) Error(msg string, fields ...zap.Field)   { l.Log(ERROR, msg, fields...) }
func (l *Logger) Fatal(msg string, fields ...zap.Field)   { l.Log(FATAL, msg, fields...) }
