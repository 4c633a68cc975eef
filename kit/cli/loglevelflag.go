package cli

import (
	"fmt"

	"github.com/spf13/pflag"
	"go.uber.org/zap/zapcore"
)

// levels are the levels accepted on the command line.
var levels = []zapcore.Level{
	zapcore.DebugLevel,
	zapcore.InfoLevel,
	zapcore.WarnLevel,
	zapcore.ErrorLevel,
}

// levelFlag is a pflag.Value writing through to a zapcore.Level.
type levelFlag struct {
	p *zapcore.Level
}

func (f levelFlag) String() string {
	if f.p == nil {
		return zapcore.InfoLevel.String()
	}
	return f.p.String()
}

func (f levelFlag) Set(s string) error {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(s)); err == nil {
		for _, ok := range levels {
			if l == ok {
				*f.p = l
				return nil
			}
		}
	}
	return fmt.Errorf("unknown log level %q; supported levels are debug, info, warn, error", s)
}

func (f levelFlag) Type() string { return "level" }

// LevelVar defines a zapcore.Level flag with specified name, default value, and usage string.
// The argument p points to a zapcore.Level variable in which to store the value of the flag.
func LevelVar(fs *pflag.FlagSet, p *zapcore.Level, name string, value zapcore.Level, usage string) {
	LevelVarP(fs, p, name, "", value, usage)
}

// LevelVarP is like LevelVar, but accepts a shorthand letter that can be used after a single dash.
func LevelVarP(fs *pflag.FlagSet, p *zapcore.Level, name, shorthand string, value zapcore.Level, usage string) {
	*p = value
	fs.VarP(levelFlag{p: p}, name, shorthand, usage)
}
