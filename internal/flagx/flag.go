// Package flagx holds small helpers for sharing os.Args between several
// independent flag sets (JSON config path, server flags).
package flagx

import (
	"flag"
	"os"
	"strings"
)

// FilterArgs keeps only the flags named in allowed, together with their
// values. Both "-f value" and "-f=value" forms are recognised; a following
// token that starts with "-" is never consumed as a value.
func FilterArgs(args []string, allowed []string) []string {
	known := make(map[string]bool, len(allowed))
	for _, f := range allowed {
		known[f] = true
	}

	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "-") {
			continue
		}

		if name, _, ok := strings.Cut(arg, "="); ok {
			if known[name] {
				out = append(out, arg)
			}
			continue
		}

		if !known[arg] {
			continue
		}
		out = append(out, arg)
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			i++
			out = append(out, args[i])
		}
	}
	return out
}

// ConfigFileFlag returns the JSON config path given via -c or -config, or ""
// when neither is present. Other flags on the command line are ignored.
func ConfigFileFlag() string {
	var path string

	fs := flag.NewFlagSet("config-file", flag.ContinueOnError)
	fs.SetOutput(discard{})
	fs.StringVar(&path, "config", "", "path to JSON config file")
	fs.StringVar(&path, "c", "", "path to JSON config file (short)")
	_ = fs.Parse(FilterArgs(os.Args[1:], []string{"-c", "-config", "--config"}))

	return path
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
