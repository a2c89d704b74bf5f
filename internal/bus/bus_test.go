package bus

import "testing"

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line string
		cmd  string
		arg  string
	}{
		{"status\n", "status", ""},
		{"start weekly sync\n", "start", "weekly sync"},
		{"invoke what did we decide?", "invoke", "what did we decide?"},
		{"  end  no-summary  ", "end", "no-summary"},
		{"", "", ""},
	}

	for _, tt := range tests {
		cmd, arg := ParseCommand(tt.line)
		if cmd != tt.cmd || arg != tt.arg {
			t.Errorf("ParseCommand(%q) = (%q, %q), want (%q, %q)", tt.line, cmd, arg, tt.cmd, tt.arg)
		}
	}
}
