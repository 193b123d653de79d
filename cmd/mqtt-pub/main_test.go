package main

import (
	"flag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"os"
	"path/filepath"
	"testing"
)

func parseOptions(t *testing.T, args ...string) (*options, *flag.FlagSet) {
	t.Helper()
	fs := flag.NewFlagSet("mqtt-pub", flag.ContinueOnError)
	opts := &options{}
	fs.StringVar(&opts.topic, "t", "", "")
	fs.StringVar(&opts.message, "m", "", "")
	fs.StringVar(&opts.file, "f", "", "")
	fs.BoolVar(&opts.null, "n", false, "")
	fs.BoolVar(&opts.lines, "l", false, "")
	fs.IntVar(&opts.qos, "q", 0, "")
	require.NoError(t, fs.Parse(args))
	return opts, fs
}

func TestValidateMessageSources(t *testing.T) {
	file := filepath.Join(t.TempDir(), "payload.bin")
	require.NoError(t, os.WriteFile(file, []byte{0x00, 0x01, 0xff}, 0o644))

	tests := []struct {
		name    string
		args    []string
		payload []byte
		wantErr bool
	}{
		{"message", []string{"-t", "a/b", "-m", "hello"}, []byte("hello"), false},
		{"empty message is still a source", []string{"-t", "a/b", "-m", ""}, []byte{}, false},
		{"file", []string{"-t", "a/b", "-f", file}, []byte{0x00, 0x01, 0xff}, false},
		{"null", []string{"-t", "a/b", "-n"}, []byte{}, false},
		{"lines", []string{"-t", "a/b", "-l"}, []byte{}, false},
		{"no topic", []string{"-m", "x"}, nil, true},
		{"no source", []string{"-t", "a/b"}, nil, true},
		{"two sources", []string{"-t", "a/b", "-m", "x", "-n"}, nil, true},
		{"bad qos", []string{"-t", "a/b", "-m", "x", "-q", "3"}, nil, true},
		{"missing file", []string{"-t", "a/b", "-f", file + ".missing"}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, fs := parseOptions(t, tt.args...)
			payload, err := opts.validate(fs)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if !opts.lines {
				assert.Equal(t, tt.payload, payload)
			}
		})
	}
}
